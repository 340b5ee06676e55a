package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/esdm-project/esdmd/internal/connserver"
)

func TestRegistrySatisfiesConnserverObserver(t *testing.T) {
	r, _ := NewRegistry()
	var _ connserver.Observer = r
}

func TestConnectionCountersTrackOpenAndClose(t *testing.T) {
	r, reg := NewRegistry()

	r.ConnectionOpened()
	r.ConnectionOpened()
	r.ConnectionClosed()

	families, err := reg.Gather()
	require.NoError(t, err)

	open := findGaugeValue(t, families, "esdmd_connections_open")
	require.Equal(t, 1.0, open)

	total := findCounterValue(t, families, "esdmd_connections_total")
	require.Equal(t, 2.0, total)
}

func TestObserveRequestRecordsLabeledCounterAndHistogram(t *testing.T) {
	r, reg := NewRegistry()

	r.ObserveRequest(0, 0, 5*time.Millisecond)
	r.ObserveRequest(0, 1, 5*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	var sawSuccess, sawFailed bool
	for _, mf := range families {
		if mf.GetName() != "esdmd_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["method_index"] == "0" && labels["status_code"] == "0" {
				sawSuccess = true
			}
			if labels["method_index"] == "0" && labels["status_code"] == "1" {
				sawFailed = true
			}
		}
	}
	require.True(t, sawSuccess, "expected a requests_total series for method_index=0,status_code=0")
	require.True(t, sawFailed, "expected a requests_total series for method_index=0,status_code=1")
}

func TestServerServesMetricsOverHTTP(t *testing.T) {
	_, reg := NewRegistry()

	srv, err := NewServer("127.0.0.1:0", reg)
	require.NoError(t, err)

	go srv.Serve()
	defer srv.Shutdown(context.Background())

	// Give the accept loop a moment to start serving.
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + srv.Addr() + "/metrics")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "esdmd_"))
}

func findGaugeValue(t *testing.T, families []*dto.MetricFamily, name string) float64 {
	t.Helper()
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric family %s not found", name)
	return 0
}

func findCounterValue(t *testing.T, families []*dto.MetricFamily, name string) float64 {
	t.Helper()
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric family %s not found", name)
	return 0
}

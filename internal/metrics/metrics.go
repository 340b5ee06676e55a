// Package metrics exports esdmd's operational counters over Prometheus
// (SPEC_FULL.md §2/§6 expansion — the original scope's observability
// Non-goal covers compliance/entropy-health telemetry, not basic service
// counters).
//
// Counts connections, requests by outcome, and latency through a real
// Prometheus registry rather than print-only counters.
package metrics

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric esdmd exports and satisfies
// internal/connserver.Observer.
type Registry struct {
	connectionsOpen  prometheus.Gauge
	connectionsTotal prometheus.Counter
	requestsTotal    *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
}

// NewRegistry creates and registers every metric against its own fresh
// prometheus.Registry, so multiple Registry instances in tests never
// collide on the global default registry.
func NewRegistry() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()

	r := &Registry{
		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "esdmd",
			Name:      "connections_open",
			Help:      "Number of currently open RPC connections.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esdmd",
			Name:      "connections_total",
			Help:      "Total RPC connections accepted since process start.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "esdmd",
			Name:      "requests_total",
			Help:      "Total requests handled, by method_index and status_code.",
		}, []string{"method_index", "status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "esdmd",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency in seconds, by method_index.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method_index"}),
	}

	reg.MustRegister(r.connectionsOpen, r.connectionsTotal, r.requestsTotal, r.requestLatency)
	return r, reg
}

// ConnectionOpened implements internal/connserver.Observer.
func (r *Registry) ConnectionOpened() {
	r.connectionsOpen.Inc()
	r.connectionsTotal.Inc()
}

// ConnectionClosed implements internal/connserver.Observer.
func (r *Registry) ConnectionClosed() {
	r.connectionsOpen.Dec()
}

// ObserveRequest implements internal/connserver.Observer.
func (r *Registry) ObserveRequest(methodIndex uint32, status uint32, latency time.Duration) {
	mi := methodIndexLabel(methodIndex)
	sc := statusLabel(status)
	r.requestsTotal.WithLabelValues(mi, sc).Inc()
	r.requestLatency.WithLabelValues(mi).Observe(latency.Seconds())
}

func methodIndexLabel(methodIndex uint32) string {
	return strconv.FormatUint(uint64(methodIndex), 10)
}

func statusLabel(status uint32) string {
	return strconv.FormatUint(uint64(status), 10)
}

// Server is the HTTP server exposing /metrics. It binds whatever address
// it is given; the loopback default comes from esdmd.DefaultMetricsAddr
// (SPEC_FULL.md §6), and NewServer does not reject other addresses.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// NewServer binds addr (expected to be loopback, e.g. "127.0.0.1:9393")
// and serves reg's metrics at /metrics.
func NewServer(addr string, reg *prometheus.Registry) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{
		httpServer: &http.Server{Handler: mux},
		listener:   ln,
	}, nil
}

// Addr reports the address the server is actually listening on (useful
// in tests that bind port 0).
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks, serving /metrics until Shutdown is called.
func (s *Server) Serve() error {
	err := s.httpServer.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

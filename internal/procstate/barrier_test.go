package procstate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBarrierReleaseWakesWaiters(t *testing.T) {
	b := NewBarrier()

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			b.Wait()
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("waiters returned before Release was called")
	case <-time.After(50 * time.Millisecond):
	}

	b.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiters did not wake within 1s of Release")
	}
}

func TestBarrierWaitAfterReleaseReturnsImmediately(t *testing.T) {
	b := NewBarrier()
	b.Release()

	done := make(chan struct{})
	go func() {
		b.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait after Release should not block")
	}
}

func TestBarrierReleaseIsIdempotent(t *testing.T) {
	b := NewBarrier()
	b.Release()
	b.Release() // must not panic or double-broadcast into a bad state
	require.True(t, b.Released())
}

func TestExitFlag(t *testing.T) {
	var f ExitFlag
	require.False(t, f.IsSet())
	f.Set()
	require.True(t, f.IsSet())
}

// Package drng is a stand-in for the real SP800-90A DRBG chain fed by
// SP800-90B entropy sources (spec §1). That chain's internal behavior is
// explicitly out of scope (spec §1: "these exist, but their internal
// behavior is not specified here") — this package exists only so the RPC
// service plane has something concrete to dispatch to end-to-end. It
// must not be read as an attempt to model a compliant DRBG: it is
// crypto/rand plus a reseed counter.
package drng

import (
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
)

// Backend is the collaborator interface the service handlers
// (internal/service) depend on. The real daemon would back this with an
// SP800-90A DRBG instance reseeded from SP800-90B entropy sources; this
// package is the only implementation in this repository.
type Backend interface {
	GetRandom(n int) ([]byte, error)
	Reseed() error
	ReseedCount() uint64
}

// Stub is the crypto/rand-backed Backend used by this daemon.
type Stub struct {
	mu     sync.Mutex
	reseed atomic.Uint64
}

// New returns a ready-to-use Stub.
func New() *Stub {
	return &Stub{}
}

// GetRandom returns n cryptographically strong random bytes. n must be
// non-negative; callers (internal/service) are responsible for bounding
// n against MAX_MSG before calling.
func (s *Stub) GetRandom(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("drng: negative length %d", n)
	}
	b := make([]byte, n)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("drng: read: %w", err)
	}
	return b, nil
}

// Reseed is a no-op for the stub (crypto/rand reseeds itself from the OS
// CSPRNG on every call); it only increments the counter so Status can
// report that a reseed was requested.
func (s *Stub) Reseed() error {
	s.reseed.Add(1)
	return nil
}

// ReseedCount reports how many times Reseed has been called.
func (s *Stub) ReseedCount() uint64 {
	return s.reseed.Load()
}

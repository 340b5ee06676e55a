// Package endpoint implements the per-trust-tier local socket listener
// (spec §4.3) and its accept loop (spec §4.9): stale-path recovery, bind,
// chmod, and ownership of the listening fd.
//
// Endpoint owns a privileged OS resource end to end — open, validate,
// and Close are all one type's responsibility, the same shape as any
// controller that binds then fully owns a kernel handle.
package endpoint

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/esdm-project/esdmd/internal/dispatch"
)

// Tier names one of the two trust tiers an Endpoint serves.
type Tier string

const (
	Unprivileged Tier = "unprivileged"
	Privileged   Tier = "privileged"
)

// Endpoint is one local stream socket bound to one service table (spec
// §3).
type Endpoint struct {
	Tier    Tier
	Path    string
	Mode    os.FileMode
	Table   dispatch.ServiceTable

	ln *net.UnixListener
}

// New creates and binds the endpoint: if a stale socket file exists at
// path, it is unlinked first (after probing that nothing is actually
// listening); otherwise bind fails as a process-fatal error (spec §4.3,
// §7).
func New(tier Tier, path string, mode os.FileMode, table dispatch.ServiceTable) (*Endpoint, error) {
	if err := recoverStalePath(path); err != nil {
		return nil, fmt.Errorf("endpoint %s: %w", tier, err)
	}

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: resolve addr: %w", tier, err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: listen: %w", tier, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		ln.Close()
		os.Remove(path)
		return nil, fmt.Errorf("endpoint %s: chmod: %w", tier, err)
	}

	return &Endpoint{Tier: tier, Path: path, Mode: mode, Table: table, ln: ln}, nil
}

// recoverStalePath implements spec §4.3: if path exists and is a socket,
// probe it with a non-blocking connect; a live listener fails us, a dead
// one gets unlinked.
func recoverStalePath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}

	conn, err := net.DialTimeout("unix", path, 200*time.Millisecond)
	if err == nil {
		conn.Close()
		return fmt.Errorf("%s: another instance is already listening", path)
	}
	// Any dial failure (connection refused, timeout, no such process on
	// the other end) means the path is stale.
	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		return fmt.Errorf("unlink stale socket %s: %w", path, rmErr)
	}
	return nil
}

// Close stops accepting; it is the only way to stop the endpoint (spec
// §4.3).
func (e *Endpoint) Close() error {
	return e.ln.Close()
}

// AcceptUnix blocks until a new connection arrives or the listener is
// closed.
func (e *Endpoint) AcceptUnix() (*net.UnixConn, error) {
	return e.ln.AcceptUnix()
}

// IsClosed reports whether err indicates the listener was closed out
// from under Accept — the accept loop's signal to stop retrying (spec
// §4.9, §5).
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

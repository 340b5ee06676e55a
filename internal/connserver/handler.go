// Package connserver implements the connection handler (spec §4.4): one
// goroutine per accepted connection, bounded-timeout reads into a fixed
// buffer, hand-off to the dispatcher, and strict per-connection request
// serialization (spec §4.5 ordering clause, §5).
//
// Each connection gets a dedicated goroutine owning its own fixed
// buffers, running a tight completion loop until the peer disconnects,
// times out, or errors.
package connserver

import (
	"net"
	"time"

	"github.com/esdm-project/esdmd/internal/access"
	"github.com/esdm-project/esdmd/internal/dispatch"
	"github.com/esdm-project/esdmd/internal/scratch"
	"github.com/esdm-project/esdmd/internal/wire"
)

// Observer receives per-request telemetry. internal/metrics implements
// this; tests can use a no-op or recording stub.
type Observer interface {
	ObserveRequest(methodIndex uint32, status uint32, latency time.Duration)
	ConnectionOpened()
	ConnectionClosed()
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(uint32, uint32, time.Duration) {}
func (noopObserver) ConnectionOpened()                            {}
func (noopObserver) ConnectionClosed()                            {}

// NoopObserver is the default Observer used when Handle is called with a
// nil one.
var NoopObserver Observer = noopObserver{}

// Config controls the per-connection handler loop.
type Config struct {
	MaxMsg      int
	ReadTimeout time.Duration
	Table       dispatch.ServiceTable
	Observer    Observer
}

// Handle runs the connection handler loop for conn until the peer closes,
// errors, or times out (spec §4.4). It owns conn and closes it exactly
// once on return (spec §3 invariant 1 / §8 invariant 1).
func Handle(conn *net.UnixConn, cfg Config) {
	defer conn.Close()

	obs := cfg.Observer
	if obs == nil {
		obs = NoopObserver
	}
	obs.ConnectionOpened()
	defer obs.ConnectionClosed()

	creds, err := access.PeerCredentials(conn)
	if err != nil {
		// Cannot resolve peer identity: connection-fatal, no reply
		// possible before even accepting (spec §7: transport's own fatal
		// errors are reported by tearing down the connection silently).
		return
	}
	dconn := &dispatch.Conn{Creds: creds, RemoteAddr: conn.RemoteAddr().String()}

	arena := scratch.New(cfg.MaxMsg)
	defer arena.Release()

	// Fixed receive buffer sized RequestHeaderSize+MaxMsg, allocated once
	// per connection and reused for every request on it. MaxMsg is a
	// runtime setting, so the buffer is a heap slice, not a stack array.
	recvBuf := make([]byte, wire.RequestHeaderSize+cfg.MaxMsg)

	for {
		if err := readOneFrame(conn, recvBuf, cfg); err != nil {
			return
		}

		hdr := wire.DecodeRequestHeader(recvBuf[:wire.RequestHeaderSize])
		msgLen := hdr.MessageLength
		if msgLen > uint32(cfg.MaxMsg) {
			msgLen = uint32(cfg.MaxMsg) // spec §3 invariant: always clamped before use
		}
		payload := recvBuf[wire.RequestHeaderSize : wire.RequestHeaderSize+int(msgLen)]

		start := time.Now()
		status := dispatchAndReply(conn, hdr, payload, arena, dconn, cfg.Table)
		obs.ObserveRequest(hdr.MethodIndex, status, time.Since(start))
		if status == writeFailedStatus {
			return
		}

		// Zero the receive buffer's used portion and reset the scratch
		// allocator before the next loop iteration (spec §4.4 step 4).
		for i := range recvBuf[:wire.RequestHeaderSize+int(msgLen)] {
			recvBuf[i] = 0
		}
		arena.Reset()
	}
}

// writeFailedStatus is an internal sentinel (not a wire status code)
// meaning the reply write itself failed, so the connection must close.
const writeFailedStatus = ^uint32(0)

// readOneFrame reads exactly one header+payload frame into buf, applying
// the bounded read-timeout to every individual Read call so a peer that
// trickles bytes in slower than the timeout is still reaped (spec §4.4).
func readOneFrame(conn *net.UnixConn, buf []byte, cfg Config) error {
	got := 0
	need := wire.RequestHeaderSize
	for got < need {
		if err := conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout)); err != nil {
			return err
		}
		n, err := conn.Read(buf[got:need])
		got += n
		if err != nil {
			return err
		}
		if got == wire.RequestHeaderSize && need == wire.RequestHeaderSize {
			hdr := wire.DecodeRequestHeader(buf[:wire.RequestHeaderSize])
			msgLen := hdr.MessageLength
			if msgLen > uint32(cfg.MaxMsg) {
				msgLen = uint32(cfg.MaxMsg)
			}
			need = wire.RequestHeaderSize + int(msgLen)
		}
	}
	return nil
}

// dispatchAndReply runs the dispatcher for one request and writes the
// reply, returning the status code written (or writeFailedStatus if the
// write itself failed and the connection must close).
func dispatchAndReply(conn *net.UnixConn, hdr wire.RequestHeader, payload []byte, arena *scratch.Arena, dconn *dispatch.Conn, table dispatch.ServiceTable) uint32 {
	var replyPayload []byte
	var replyErr error

	// Handlers call reply exactly once, synchronously, before Dispatch
	// returns (spec §4.5) — no goroutine hand-off needed here.
	dispatch.Dispatch(table, hdr.MethodIndex, payload, arena, dconn, func(p []byte, err error) {
		replyPayload, replyErr = p, err
	})

	if replyErr != nil {
		if writeErr := wire.WriteServiceFailed(conn, hdr.MethodIndex, hdr.RequestID); writeErr != nil {
			return writeFailedStatus
		}
		return 1 // SERVICE_FAILED
	}

	if writeErr := wire.WriteResponse(conn, wire.ResponseHeader{
		StatusCode:    0,
		MethodIndex:   hdr.MethodIndex,
		MessageLength: uint32(len(replyPayload)),
		RequestID:     hdr.RequestID,
	}, replyPayload); writeErr != nil {
		return writeFailedStatus
	}
	return 0 // SUCCESS
}

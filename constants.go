package esdmd

import "time"

// Status codes carried in the server->client frame header (spec §3, §6).
const (
	StatusSuccess       uint32 = 0
	StatusServiceFailed uint32 = 1
)

// Defaults for the configuration collaborator (internal/config). These
// are the values used when nothing else is configured; they are not
// compile-time-fixed the way MAX_MSG is in the C original, but every
// production deployment is expected to pin them explicitly.
const (
	// DefaultMaxMsg bounds the payload length of any single request or
	// reply. message_length read off the wire is always clamped to this
	// value before use (spec §3 invariant).
	DefaultMaxMsg = 16 * 1024

	// DefaultReadTimeout is the per-read bounded-timeout default from
	// spec §4.4.
	DefaultReadTimeout = 2 * time.Second

	// DefaultDropUser is the unprivileged account the bootstrap child
	// permanently drops into (spec §4.8 S3).
	DefaultDropUser = "nobody"

	// DefaultUnprivSocket and DefaultPrivSocket are the two local
	// stream-socket paths (spec §6).
	DefaultUnprivSocket = "/run/esdmd/esdmd-rpc-unpriv.socket"
	DefaultPrivSocket   = "/run/esdmd/esdmd-rpc-priv.socket"

	// DefaultMetricsAddr binds the loopback-only metrics HTTP server
	// (SPEC_FULL §6 expansion). Never bound to a non-loopback address by
	// default.
	DefaultMetricsAddr = "127.0.0.1:9393"

	// unprivMode and privMode are the endpoint file-modes from spec §3.
	unprivMode = 0o666
	privMode   = 0o600
)

// HeaderSize is the byte length of the client->server request header
// (3 x uint32); internal/wire defines the same value as
// RequestHeaderSize, which is what internal/connserver sizes its receive
// buffer with. The server->client header carries one additional uint32
// (status_code).
const HeaderSize = 4 * 3
const ResponseHeaderSize = 4 * 4

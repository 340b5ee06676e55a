// Package esdmd implements the RPC service plane of a userspace
// random-number daemon: a privilege-separated, length-framed local IPC
// transport that multiplexes clients onto a pool of DRNGs.
//
// The protocol, access-control, and process-lifecycle details are
// described alongside the package boundaries under internal/; this
// package holds the wire-level constants and error type shared by all of
// them plus the small amount of glue cmd/esdmd needs to assemble a
// running daemon.
package esdmd

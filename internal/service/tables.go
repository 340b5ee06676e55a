// Package service assembles the two concrete service tables (spec §3,
// §6: service_table_unpriv, service_table_priv) out of handlers bound to
// an internal/drng.Backend. The generated per-method request/response
// schemas are explicitly out of scope (spec §1); the payload formats
// here are the minimal concrete stand-in needed to exercise the RPC
// plane end-to-end, not a reimplementation of the real wire schema.
package service

import (
	"encoding/binary"
	"fmt"

	"github.com/esdm-project/esdmd/internal/access"
	"github.com/esdm-project/esdmd/internal/dispatch"
	"github.com/esdm-project/esdmd/internal/drng"
	"github.com/esdm-project/esdmd/internal/scratch"
)

// Method indices. Unprivileged and privileged tables have independent
// index spaces (spec §3), so GetRandom and Status reuse small indices in
// both tables while Reseed only exists on the privileged table.
const (
	MethodGetRandom uint32 = 0
	MethodStatus    uint32 = 1
	MethodReseed    uint32 = 0 // privileged table only
)

// Tables holds the two constant service-table instances assembled at
// bootstrap (spec §4.8 S1/S2) from a single DRNG backend.
type Tables struct {
	Unprivileged dispatch.ServiceTable
	Privileged   dispatch.ServiceTable
}

// New builds the unprivileged and privileged service tables, grounded on
// the one DRNG backend both trust tiers draw from. maxMsg bounds how many
// bytes a single GetRandom call may request — the same MAX_MSG the
// connection handler already enforces on the request payload, so a
// hostile client's per-request footprint stays O(MAX_MSG) end to end
// (spec §4.2) rather than an independently-chosen ceiling.
func New(backend drng.Backend, maxMsg int) *Tables {
	return &Tables{
		Unprivileged: dispatch.NewStaticTable(
			getRandomMethod(backend, maxMsg),
			statusMethod(backend),
		),
		Privileged: dispatch.NewStaticTable(
			reseedMethod(backend),
		),
	}
}

// getRandomMethod handles MethodGetRandom: request payload is a 4-byte
// little-endian count, reply payload is that many random bytes allocated
// out of the connection's scratch arena rather than the heap (spec
// §4.2's per-connection bound applies to reply construction too, not
// just request decoding).
func getRandomMethod(backend drng.Backend, maxMsg int) dispatch.Method {
	return dispatch.Method{
		Descriptor: dispatch.Descriptor{MethodIndex: MethodGetRandom, Name: "GetRandom"},
		Handler: func(payload []byte, arena *scratch.Arena, conn *dispatch.Conn, reply dispatch.ReplyFunc) {
			if len(payload) != 4 {
				reply(nil, fmt.Errorf("service: GetRandom requires a 4-byte count, got %d bytes", len(payload)))
				return
			}
			n := int(binary.LittleEndian.Uint32(payload))
			if n < 0 || n > maxMsg {
				reply(nil, fmt.Errorf("service: GetRandom count %d out of range", n))
				return
			}
			out, err := arena.Alloc(n)
			if err != nil {
				reply(nil, err)
				return
			}
			b, err := backend.GetRandom(n)
			if err != nil {
				reply(nil, err)
				return
			}
			copy(out, b)
			reply(out, nil)
		},
	}
}

// statusMethod handles MethodStatus: no request payload, reply is a
// single 8-byte little-endian reseed counter allocated from the arena.
func statusMethod(backend drng.Backend) dispatch.Method {
	return dispatch.Method{
		Descriptor: dispatch.Descriptor{MethodIndex: MethodStatus, Name: "Status"},
		Handler: func(payload []byte, arena *scratch.Arena, conn *dispatch.Conn, reply dispatch.ReplyFunc) {
			out, err := arena.Alloc(8)
			if err != nil {
				reply(nil, err)
				return
			}
			binary.LittleEndian.PutUint64(out, backend.ReseedCount())
			reply(out, nil)
		},
	}
}

// reseedMethod handles MethodReseed on the privileged table only. It
// re-checks peer credentials itself (defense in depth, spec §4.6) even
// though only a privileged client can reach the privileged endpoint at
// all thanks to the endpoint's file-mode.
func reseedMethod(backend drng.Backend) dispatch.Method {
	return dispatch.Method{
		Descriptor: dispatch.Descriptor{MethodIndex: MethodReseed, Name: "Reseed"},
		Handler: func(payload []byte, arena *scratch.Arena, conn *dispatch.Conn, reply dispatch.ReplyFunc) {
			if conn == nil || !access.IsPrivileged(conn.Creds) {
				reply(nil, fmt.Errorf("service: Reseed requires a privileged peer"))
				return
			}
			if err := backend.Reseed(); err != nil {
				reply(nil, err)
				return
			}
			reply(nil, nil)
		},
	}
}

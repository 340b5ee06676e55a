// Package dispatch implements the dispatcher (spec §4.5): routing a
// decoded (method_index, payload) to a handler registered in one of two
// service tables, and invoking it with a completion callback the handler
// calls exactly once.
//
// ServiceTable is modeled as a small capability interface with two
// constant instances rather than an inheritance hierarchy, per spec §9's
// explicit design note.
package dispatch

import (
	"github.com/esdm-project/esdmd/internal/access"
	"github.com/esdm-project/esdmd/internal/scratch"
)

// Descriptor identifies a registered method.
type Descriptor struct {
	MethodIndex uint32
	Name        string
}

// ReplyFunc is the completion callback a handler calls exactly once with
// its response payload (or an error, which the dispatcher turns into a
// SERVICE_FAILED reply).
type ReplyFunc func(payload []byte, err error)

// Conn is the subset of connection state a handler is allowed to see:
// enough to run the access guard, nothing that lets it reach into
// transport internals.
type Conn struct {
	Creds         access.Credentials
	RemoteAddr    string
}

// Handler processes one decoded request and must call reply exactly
// once.
type Handler func(payload []byte, arena *scratch.Arena, conn *Conn, reply ReplyFunc)

// Method bundles a Descriptor with its Handler.
type Method struct {
	Descriptor Descriptor
	Handler    Handler
}

// ServiceTable maps method_index to a handler. Two instances exist,
// independent method-index spaces (spec §3).
type ServiceTable interface {
	// Lookup returns the method registered at index, or ok=false if none
	// is registered — the dispatcher answers SERVICE_FAILED in that case
	// (spec §4.5).
	Lookup(index uint32) (Method, bool)
}

// StaticTable is a ServiceTable built once at bootstrap and never
// mutated afterward, so it needs no synchronization for concurrent reads
// (spec §5: "immutable after bootstrap; readable by all handlers without
// synchronization").
type StaticTable struct {
	methods map[uint32]Method
}

// NewStaticTable builds a StaticTable from a fixed list of methods.
// Panics on a duplicate method_index: that is a programming error caught
// at bootstrap, not a runtime condition.
func NewStaticTable(methods ...Method) *StaticTable {
	m := make(map[uint32]Method, len(methods))
	for _, meth := range methods {
		if _, dup := m[meth.Descriptor.MethodIndex]; dup {
			panic("dispatch: duplicate method_index in service table")
		}
		m[meth.Descriptor.MethodIndex] = meth
	}
	return &StaticTable{methods: m}
}

func (t *StaticTable) Lookup(index uint32) (Method, bool) {
	m, ok := t.methods[index]
	return m, ok
}

// Dispatch locates the handler for methodIndex in table and invokes it.
// If no handler is registered, reply is called with an error immediately
// and the handler is never invoked — the caller (internal/connserver)
// turns that into a SERVICE_FAILED frame.
func Dispatch(table ServiceTable, methodIndex uint32, payload []byte, arena *scratch.Arena, conn *Conn, reply ReplyFunc) {
	method, ok := table.Lookup(methodIndex)
	if !ok {
		reply(nil, ErrUnknownMethod)
		return
	}
	method.Handler(payload, arena, conn, reply)
}

package dispatch

import (
	"errors"
	"testing"

	"github.com/esdm-project/esdmd/internal/scratch"
	"github.com/stretchr/testify/require"
)

func TestStaticTableLookup(t *testing.T) {
	table := NewStaticTable(
		Method{
			Descriptor: Descriptor{MethodIndex: 0, Name: "GetRandom"},
			Handler:    func(p []byte, a *scratch.Arena, c *Conn, r ReplyFunc) {},
		},
	)
	_, ok := table.Lookup(0)
	require.True(t, ok)
	_, ok = table.Lookup(99)
	require.False(t, ok)
}

func TestNewStaticTablePanicsOnDuplicateIndex(t *testing.T) {
	h := func(p []byte, a *scratch.Arena, c *Conn, r ReplyFunc) {}
	require.Panics(t, func() {
		NewStaticTable(
			Method{Descriptor: Descriptor{MethodIndex: 1}, Handler: h},
			Method{Descriptor: Descriptor{MethodIndex: 1}, Handler: h},
		)
	})
}

func TestDispatchUnknownMethodRepliesWithError(t *testing.T) {
	table := NewStaticTable()
	var gotErr error
	var called bool
	Dispatch(table, 42, nil, nil, &Conn{}, func(payload []byte, err error) {
		called = true
		gotErr = err
	})
	require.True(t, called)
	require.True(t, errors.Is(gotErr, ErrUnknownMethod))
}

func TestDispatchInvokesRegisteredHandlerExactlyOnce(t *testing.T) {
	calls := 0
	table := NewStaticTable(Method{
		Descriptor: Descriptor{MethodIndex: 5},
		Handler: func(payload []byte, arena *scratch.Arena, conn *Conn, reply ReplyFunc) {
			calls++
			reply(payload, nil)
		},
	})

	var got []byte
	Dispatch(table, 5, []byte("ping"), nil, &Conn{}, func(payload []byte, err error) {
		got = payload
	})

	require.Equal(t, 1, calls)
	require.Equal(t, []byte("ping"), got)
}

package drng

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetRandomReturnsRequestedLength(t *testing.T) {
	d := New()
	b, err := d.GetRandom(32)
	require.NoError(t, err)
	require.Len(t, b, 32)
}

func TestGetRandomZeroLength(t *testing.T) {
	d := New()
	b, err := d.GetRandom(0)
	require.NoError(t, err)
	require.Len(t, b, 0)
}

func TestGetRandomNegativeLengthErrors(t *testing.T) {
	d := New()
	_, err := d.GetRandom(-1)
	require.Error(t, err)
}

func TestGetRandomOutputsDiffer(t *testing.T) {
	d := New()
	a, err := d.GetRandom(32)
	require.NoError(t, err)
	b, err := d.GetRandom(32)
	require.NoError(t, err)
	require.NotEqual(t, a, b, "two draws should not collide")
}

func TestReseedIncrementsCounter(t *testing.T) {
	d := New()
	require.Equal(t, uint64(0), d.ReseedCount())
	require.NoError(t, d.Reseed())
	require.NoError(t, d.Reseed())
	require.Equal(t, uint64(2), d.ReseedCount())
}

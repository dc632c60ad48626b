package slotpool_test

import (
	"testing"

	"github.com/nullfetch/uthreads/slotpool"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := slotpool.New(3)
	require.Equal(t, 3, p.Cap())
	require.Equal(t, 0, p.InUse())

	a, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, 0, a)

	b, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, 1, b)
	require.Equal(t, 2, p.InUse())

	p.Release(a)
	require.Equal(t, 1, p.InUse())

	c, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, 0, c, "the lowest-indexed free slot should be reused")
}

func TestAcquireExhausted(t *testing.T) {
	p := slotpool.New(1)
	_, err := p.Acquire()
	require.NoError(t, err)

	_, err = p.Acquire()
	require.ErrorIs(t, err, slotpool.ErrFull)
}

func TestReleaseIsIdempotentAndBoundsChecked(t *testing.T) {
	p := slotpool.New(2)
	p.Release(0)     // never acquired
	p.Release(-1)    // out of range
	p.Release(1000)  // out of range
	require.Equal(t, 0, p.InUse())

	slot, err := p.Acquire()
	require.NoError(t, err)
	p.Release(slot)
	p.Release(slot) // double release
	require.Equal(t, 0, p.InUse())
}

package block

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkMapSetTestCount(t *testing.T) {
	c := NewChunkMap(100)
	require.Equal(t, 0, c.Count())
	require.False(t, c.Full())

	c.Set(0)
	c.Set(63)
	c.Set(64)
	c.Set(99)
	require.Equal(t, 4, c.Count())
	require.True(t, c.Test(0))
	require.True(t, c.Test(64))
	require.False(t, c.Test(50))
}

func TestChunkMapSetAllRespectsWidth(t *testing.T) {
	c := NewChunkMap(30)
	c.SetAll()
	require.Equal(t, 30, c.Count())
	require.True(t, c.Full())
	for i := 0; i < 30; i++ {
		require.True(t, c.Test(i))
	}
}

func TestChunkMapOr(t *testing.T) {
	a := NewChunkMap(10)
	a.Set(1)
	b := NewChunkMap(10)
	b.Set(2)

	a.Or(b)
	require.True(t, a.Test(1))
	require.True(t, a.Test(2))
	require.Equal(t, 2, a.Count())
	// b is untouched
	require.Equal(t, 1, b.Count())
}

func TestChunkMapAndNotForFillStepMask(t *testing.T) {
	// mask = peerReq & ~peerAvail & downloaded (spec §4.5-C)
	downloaded := NewChunkMap(8)
	downloaded.SetAll()

	peerReq := NewChunkMap(8)
	peerReq.Set(0)
	peerReq.Set(1)
	peerReq.Set(2)

	peerAvail := NewChunkMap(8)
	peerAvail.Set(1) // peer already has chunk 1

	mask := peerReq.AndNot(peerAvail).And(downloaded)
	require.Equal(t, []int{0, 2}, mask.Bits())
}

func TestChunkMapIndexOutOfRangePanics(t *testing.T) {
	c := NewChunkMap(4)
	require.Panics(t, func() { c.Set(4) })
	require.Panics(t, func() { c.Test(-1) })
}

func TestChunkMapCloneIsIndependent(t *testing.T) {
	a := NewChunkMap(8)
	a.Set(0)
	b := a.Clone()
	b.Set(1)
	require.Equal(t, 1, a.Count())
	require.Equal(t, 2, b.Count())
}

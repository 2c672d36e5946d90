package block

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyIgnoresHeightAndTimeMined(t *testing.T) {
	a := Block{Miner: 1, Seq: 7, Height: 100, TimeMined: 0}
	b := Block{Miner: 1, Seq: 7, Height: 999, TimeMined: 42}
	require.Equal(t, a.Key(), b.Key(), "height/timeMined must not affect identity")

	c := Block{Miner: 2, Seq: 7}
	require.NotEqual(t, a.Key(), c.Key())
}

func TestKeyPacksMinerAndSeq(t *testing.T) {
	b := Block{Miner: 3, Seq: 5}
	require.Equal(t, Key(3)<<32|Key(5), b.Key())
}

func TestStateAdvanceIsMonotone(t *testing.T) {
	var s State
	require.True(t, s.Advance(Received))
	require.Equal(t, Received, s)

	// Repeating or regressing is a silent no-op.
	require.False(t, s.Advance(Learned))
	require.Equal(t, Received, s)
	require.False(t, s.Advance(Received))

	require.True(t, s.Advance(Processed))
	require.Equal(t, Processed, s)
}

func TestStoreCreatesLazily(t *testing.T) {
	st := NewStore(10)
	require.Equal(t, 0, st.Len())

	_, ok := st.Peek(Key(1))
	require.False(t, ok)

	m := st.Get(Key(1))
	require.Equal(t, Learned, m.State)
	require.Equal(t, 1, st.Len())

	m2 := st.Get(Key(1))
	require.Same(t, m, m2, "Get must return the same Meta on repeated lookups")
}

package simclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAbsTimeArithmetic(t *testing.T) {
	start := Zero.Add(5 * time.Second)
	require.Equal(t, 5.0, start.Seconds())

	later := start.Add(250 * time.Millisecond)
	require.Equal(t, 250*time.Millisecond, later.Sub(start))
	require.True(t, start.Before(later))
	require.False(t, later.Before(start))
}

func TestFromSeconds(t *testing.T) {
	require.Equal(t, 1500*time.Millisecond, FromSeconds(1.5))
	require.Equal(t, time.Duration(0), FromSeconds(0))
}

func TestFromBitsAtRate(t *testing.T) {
	// 20,000 bits at 1,000,000 bps = 20ms, matching spec scenario S2's
	// first-chunk timing.
	require.Equal(t, 20*time.Millisecond, FromBitsAtRate(20_000, 1_000_000))
}

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockbroadcast/simulator/mining"
)

// TestMiningModeSelection exercises spec §6's three-way rule directly.
func TestMiningModeSelection(t *testing.T) {
	require.Equal(t, mining.Continuous, config{RoundIntv: 0}.miningMode())
	require.Equal(t, mining.FixedCommittee, config{RoundIntv: 1, NumFixedMiners: 2}.miningMode())
	require.Equal(t, mining.Round, config{RoundIntv: 1, NumFixedMiners: 0}.miningMode())
}

// TestHashAnnounceFullMeshProducesBlockDelaySamples exercises the whole
// wiring path (network -> ratelimiter -> p2p -> mining) end to end: a
// small full mesh running discipline A for a few seconds of virtual time
// should see every node record at least one blockDelay sample once a
// peer's block has propagated around the mesh.
func TestHashAnnounceFullMeshProducesBlockDelaySamples(t *testing.T) {
	cfg := config{
		Discipline:   disciplineHashAnnounce,
		NumNodes:     4,
		LinkDelay:    10 * time.Millisecond,
		Duration:     5 * time.Second,
		MineIntv:     0.5,
		RoundIntv:    0,
		ProcTime:     0.005,
		TotalChunks:  1,
		Seed:         7,
	}

	result, err := buildAndRun(cfg, nil)
	require.NoError(t, err)
	require.Greater(t, result.Delivered, int64(0))
	require.NotEmpty(t, result.BlockDelay)
}

// TestHoneyBadgerFullMeshAdvancesEpochs exercises the HB wiring path:
// four nodes should advance past epoch zero and record at least one
// roundInterval sample within a short virtual-time window.
func TestHoneyBadgerFullMeshAdvancesEpochs(t *testing.T) {
	cfg := config{
		Discipline: disciplineHoneyBadger,
		NumNodes:   4,
		LinkDelay:  time.Millisecond,
		Duration:   2 * time.Second,
		ProcTime:   0.01,
	}

	result, err := buildAndRun(cfg, nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.RoundIntv)
}

// TestUnknownDisciplineIsRejected exercises the invariant that a
// misconfigured discipline name is a wiring error, not a silent no-op.
func TestUnknownDisciplineIsRejected(t *testing.T) {
	_, err := buildAndRun(config{Discipline: "not-a-real-discipline", NumNodes: 2, Duration: time.Second}, nil)
	require.Error(t, err)
}

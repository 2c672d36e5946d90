// Package network provides the minimal wiring glue a run needs to connect
// a set of rate limiters into a topology — not a topology generator or
// configuration-file reader (spec §1 Non-goals explicitly exclude both
// "topology construction" and "configuration file parsing"). It exists so
// cmd/bbsim and tests have one shared way to build the gate/channel mesh
// described in spec §4.2, instead of each re-deriving it.
package network

import (
	"time"

	"github.com/blockbroadcast/simulator/gate"
	"github.com/blockbroadcast/simulator/kernel"
	"github.com/blockbroadcast/simulator/ratelimiter"
)

// Edge is one directed propagation-delay link from From to To.
type Edge struct {
	From, To int
	Delay    time.Duration
}

// FullMesh returns every directed edge of a complete graph over
// [0, numNodes), each carrying the same delay — the topology spec
// scenarios S1-S4 and S6 all use.
func FullMesh(numNodes int, delay time.Duration) []Edge {
	edges := make([]Edge, 0, numNodes*(numNodes-1))
	for i := 0; i < numNodes; i++ {
		for j := 0; j < numNodes; j++ {
			if i == j {
				continue
			}
			edges = append(edges, Edge{From: i, To: j, Delay: delay})
		}
	}
	return edges
}

// BuildLimiters creates one ratelimiter.Limiter per node (inner receiver
// left nil — callers bind it once their P2P node or HoneyBadger
// coordinator exists, via Limiter.SetInner, breaking the construction
// cycle the same way p2p's own tests do) and connects every edge as a
// PeerLink. edges need not be symmetric or complete; an isolated node
// with no edges is valid (it simply never hears from anyone).
func BuildLimiters(k *kernel.Kernel, numNodes int, edges []Edge, incomingRate, outgoingRate float64) []*ratelimiter.Limiter {
	limiters := make([]*ratelimiter.Limiter, numNodes)
	for i := range limiters {
		limiters[i] = ratelimiter.New(i, incomingRate, outgoingRate, nil)
	}
	for _, e := range edges {
		limiters[e.From].Connect(&ratelimiter.PeerLink{
			LocalIndex:  e.To,
			RemoteIndex: e.From,
			Link:        gate.Channel{Delay: e.Delay, To: limiters[e.To]},
		})
	}
	return limiters
}

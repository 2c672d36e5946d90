package p2p

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/blockbroadcast/simulator/block"
	"github.com/blockbroadcast/simulator/envelope"
)

// heardSet tracks block ids this node has already requested via discipline
// A, grounded on FullNode.cc's `unordered_set<long> heardBlocks` — kept
// alongside (not instead of) the per-block Meta.State, because the
// original guards a re-request on both: "not yet heard" AND "still
// genuinely short of the block" (see receiveHashAnnounce).
type heardSet struct {
	ids mapset.Set[block.Key]
}

func newHeardSet() heardSet {
	return heardSet{ids: mapset.NewThreadUnsafeSet[block.Key]()}
}

// receiveHashAnnounce implements discipline A (spec §4.5-A): "On receipt
// of NewBlockHash: if not yet heard, record heard, send GetBlock back
// along the mirror gate. On GetBlock: respond with NewBlock. On NewBlock
// from peer: deliver upward to consensus and transition Learned →
// Received."
func (n *Node) receiveHashAnnounce(peerIndex int, msg envelope.Message) {
	switch m := msg.(type) {
	case envelope.NewBlockHash:
		key := m.Block.Key()
		if n.heard.ids.Contains(key) {
			return
		}
		meta := n.Store.GetFor(m.Block)
		// FullNode.cc's triple guard: not already heard, and genuinely
		// still short on this block, not merely re-announced mid-flight.
		if meta.State != block.Learned || meta.Requested.Count() >= n.TotalChunks || meta.Downloaded.Count() >= n.TotalChunks {
			return
		}
		n.heard.ids.Add(key)
		meta.Requested.SetAll()
		n.send(peerIndex, envelope.GetBlock{Block: m.Block})

	case envelope.GetBlock:
		n.send(peerIndex, envelope.NewBlock{Block: m.Block, Bits: envelope.TotalBlockBits})

	case envelope.NewBlock:
		meta := n.Store.GetFor(m.Block)
		if !meta.State.Advance(block.Received) {
			return // duplicate full-block delivery: idempotent (spec §7)
		}
		meta.Downloaded.SetAll()
		meta.Requested.SetAll()
		n.upward.ReceiveBlock(m.Block)

	default:
		// Unknown envelope kind at a terminal module: forward up to the
		// node rather than drop it (spec §7: "P2P forwards up to the
		// node").
		n.upward.ReceiveEnvelope(peerIndex, msg)
	}
}

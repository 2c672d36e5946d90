package p2p

import (
	"golang.org/x/exp/slices"

	"github.com/blockbroadcast/simulator/block"
	"github.com/blockbroadcast/simulator/envelope"
)

// fillCap bounds in-flight fill-step work per node (spec §4.5-C: "stop as
// soon as the rate-limiter's outbound queue length reaches 5 000").
const fillCap = 5000

// receiveAvailabilityGossip implements discipline C (spec §4.5-C), the
// most elaborate of the three: bitmap gossip, a single bulk request once
// a block is first heard of, and a fair priority-ordered fill step run
// after every peer-originated event.
func (n *Node) receiveAvailabilityGossip(peerIndex int, msg envelope.Message) {
	switch m := msg.(type) {
	case envelope.BlockAvailability:
		meta := n.Store.GetFor(m.Block)
		meta.MergeAvail(peerIndex, m.Chunks)
		if meta.Requested.Count() == 0 {
			meta.Requested.SetAll()
			n.broadcast(envelope.GetBlockChunks{Block: m.Block, Chunks: meta.Requested.Clone()})
		}

	case envelope.GetBlockChunks:
		meta := n.Store.GetFor(m.Block)
		meta.MergeReq(peerIndex, m.Chunks)

	case envelope.BlockChunk:
		meta := n.Store.GetFor(m.Block)
		if !meta.Downloaded.Test(m.ChunkID) {
			meta.Downloaded.Set(m.ChunkID)
			n.broadcast(envelope.BlockAvailability{Block: m.Block, Chunks: meta.Downloaded.Clone()})
			if meta.Downloaded.Full() && meta.State == block.Learned {
				if meta.State.Advance(block.Received) {
					n.upward.ReceiveBlock(m.Block)
				}
			}
		}

	default:
		// Unknown envelope kind at a terminal module: forward up to the
		// node rather than drop it (spec §7); no fill step follows since
		// an unrecognized kind carries no chunk-request information.
		n.upward.ReceiveEnvelope(peerIndex, msg)
		return
	}

	n.fillStep()
}

// fillStep services outstanding peer requests with chunks this node has,
// highest peer index first, stopping once the rate limiter's egress
// queue reaches fillCap (spec §4.5-C). The peerAvail update after each
// sent chunk is optimistic: it assumes the chunk will arrive, suppressing
// a duplicate send if that peer's own BlockAvailability is still in
// flight (spec §9).
func (n *Node) fillStep() {
	seen := make(map[int]struct{})
	for _, key := range n.Store.Keys() {
		for p := range n.Store.Get(key).PeerReq {
			seen[p] = struct{}{}
		}
	}
	peers := make([]int, 0, len(seen))
	for p := range seen {
		peers = append(peers, p)
	}
	slices.Sort(peers) // ascending; walked back-to-front below for highest-first

	for i := len(peers) - 1; i >= 0; i-- {
		p := peers[i]
		for _, key := range n.Store.Keys() {
			meta := n.Store.Get(key)
			mask := meta.Req(p).AndNot(meta.Avail(p)).And(meta.Downloaded)
			for _, c := range mask.Bits() {
				n.send(p, envelope.BlockChunk{Block: meta.Block, ChunkID: c, Bits: envelope.ChunkBitLength(n.TotalChunks)})
				meta.SetAvailBit(p, c)
				if n.limiter.OutQueueLength() >= fillCap {
					return
				}
			}
		}
	}
}

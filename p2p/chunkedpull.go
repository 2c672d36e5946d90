package p2p

import (
	"github.com/blockbroadcast/simulator/block"
	"github.com/blockbroadcast/simulator/envelope"
)

// receiveChunkedPull implements discipline B (spec §4.5-B): the same
// hash-announce broadcast as discipline A, but GetBlock is replaced by a
// per-chunk request/response pipelined on a single peer link. requested
// and downloaded bitmaps prevent double-requests.
func (n *Node) receiveChunkedPull(peerIndex int, msg envelope.Message) {
	switch m := msg.(type) {
	case envelope.NewBlockHash:
		meta := n.Store.GetFor(m.Block)
		if meta.State != block.Learned {
			return
		}
		idx, ok := firstUnset(meta.Requested, n.TotalChunks)
		if !ok {
			return // every chunk already requested; ignore a duplicate announce
		}
		meta.Requested.Set(idx)
		n.send(peerIndex, envelope.GetBlockChunk{Block: m.Block, ChunkID: idx})

	case envelope.GetBlockChunk:
		n.send(peerIndex, envelope.BlockChunk{
			Block:   m.Block,
			ChunkID: m.ChunkID,
			Bits:    envelope.ChunkBitLength(n.TotalChunks),
		})

	case envelope.BlockChunk:
		meta := n.Store.GetFor(m.Block)
		if meta.Downloaded.Test(m.ChunkID) {
			return // duplicate chunk delivery: idempotent (spec §7)
		}
		meta.Downloaded.Set(m.ChunkID)

		if meta.Downloaded.Count() < n.TotalChunks {
			if idx, ok := firstUnset(meta.Requested, n.TotalChunks); ok {
				meta.Requested.Set(idx)
				n.send(peerIndex, envelope.GetBlockChunk{Block: m.Block, ChunkID: idx})
			}
			return
		}
		if meta.State.Advance(block.Received) {
			n.upward.ReceiveBlock(m.Block)
		}

	default:
		// Unknown envelope kind at a terminal module: forward up to the
		// node rather than drop it (spec §7).
		n.upward.ReceiveEnvelope(peerIndex, msg)
	}
}

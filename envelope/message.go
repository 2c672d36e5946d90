// Package envelope defines the typed, self-identifying messages exchanged
// between P2P nodes across gates (spec §6 "Envelope schema"). Every kind is
// its own Go type implementing Message; dispatch is an exhaustive type
// switch at the receiver rather than a runtime downcast, per spec §9
// ("Dynamic dispatch on envelope kind... Replace with a tagged sum variant
// matched exhaustively").
package envelope

import "github.com/blockbroadcast/simulator/block"

// Message is implemented by every envelope kind carried between P2P nodes.
// BitLength reports the packet size in bits for rate-limiter shaping; kinds
// with no wire cost (pure control messages) return 0, which the rate
// limiter treats as "pass through instantly" (spec §4.3: "Only envelopes
// tagged as packets (bit-length > 0) are shaped").
type Message interface {
	BitLength() int
}

// NewBlock carries a full block between peers: as discipline A's
// full-block response (Bits = TotalBlockBits), or as the HoneyBadger
// coordinator's block flood, which sends it with Bits 0 and so unshaped.
type NewBlock struct {
	Block block.Block
	Bits  int
}

func (m NewBlock) BitLength() int { return m.Bits }

// NewBlockHash announces that the sender has processed a block, without
// its bytes (disciplines A and B).
type NewBlockHash struct {
	Block block.Block
}

func (m NewBlockHash) BitLength() int { return 0 }

// GetBlock requests the full block body (discipline A).
type GetBlock struct {
	Block block.Block
}

func (m GetBlock) BitLength() int { return 0 }

// GetBlockChunk requests a single chunk (discipline B).
type GetBlockChunk struct {
	Block   block.Block
	ChunkID int
}

func (m GetBlockChunk) BitLength() int { return 0 }

// GetBlockChunks requests a set of chunks in one message, addressed by
// bitmap (discipline C).
type GetBlockChunks struct {
	Block  block.Block
	Chunks block.ChunkMap
}

func (m GetBlockChunks) BitLength() int { return 0 }

// BlockChunk carries a single chunk. Bits is 2_000_000 / totalChunks, per
// spec §6.
type BlockChunk struct {
	Block   block.Block
	ChunkID int
	Bits    int
}

func (m BlockChunk) BitLength() int { return m.Bits }

// BlockAvailability gossips the sender's current chunk-possession bitmap
// for a block (discipline C).
type BlockAvailability struct {
	Block  block.Block
	Chunks block.ChunkMap
}

func (m BlockAvailability) BitLength() int { return 0 }

// GotBlock is the HoneyBadger variant's epoch-reception acknowledgement.
type GotBlock struct {
	Epoch uint32
	Node  int
}

func (m GotBlock) BitLength() int { return 0 }

// TotalBlockBits is the constant total block size, in bits, that the rate
// limiter shapes against (spec §3/§6: a full block is 2,000,000 divided
// evenly into totalChunks; spec scenario S2 only checks out against this
// total being a bit count, not a byte count — a full block at
// outgoingRate = 10^6 bps split into 100 chunks yields a 20ms first-chunk
// service time and a 2s full transfer, which only holds if 2_000_000 is
// bits).
const TotalBlockBits = 2_000_000

// ChunkBitLength returns the per-chunk bit length for a block split into
// numChunks equal chunks, discarding any residue (spec §3: "residue is
// discarded").
func ChunkBitLength(numChunks int) int {
	return TotalBlockBits / numChunks
}

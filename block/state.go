package block

import "fmt"

// State is a block's monotone lifecycle stage at a single node (spec §3).
// It only ever moves forward: Learned -> Received -> Processed.
type State uint8

const (
	// Learned means the node knows the block exists but holds none of its
	// bytes.
	Learned State = iota
	// Received means every chunk has been downloaded but the block has
	// not yet been surfaced to the local consensus/mining layer.
	Received
	// Processed means the block has been surfaced to consensus and
	// announced onward to peers.
	Processed
)

func (s State) String() string {
	switch s {
	case Learned:
		return "learned"
	case Received:
		return "received"
	case Processed:
		return "processed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Advance moves the state to next if next is strictly further along the
// Learned -> Received -> Processed order. It reports whether the state
// actually changed; calling it with a next that would regress or repeat is
// a silent no-op (spec I: "no regress" — callers that need to detect a
// regression attempt should compare states directly instead).
func (s *State) Advance(next State) bool {
	if next > *s {
		*s = next
		return true
	}
	return false
}

// Meta is the per-node, per-block metadata record (spec §3 "BlockMeta").
// It is created lazily on first reference and never destroyed during a
// run.
type Meta struct {
	// Block carries the full identity/payload fields (Height, TimeMined)
	// of the block this record is about, as first observed. Recorded so
	// later code — e.g. a discipline-C fill step that only has a Key to
	// work from — can reconstruct an authentic Block instead of one with
	// zeroed payload fields.
	Block Block

	State      State
	Downloaded ChunkMap
	Requested  ChunkMap

	// PeerAvail[p] is peer p's last-known chunk availability (discipline
	// C); PeerReq[p] is the set of chunks peer p has asked this node for.
	// Both are monotone non-decreasing per peer for the run (spec I4).
	PeerAvail map[int]ChunkMap
	PeerReq   map[int]ChunkMap
}

// NewMeta allocates a fresh, all-Learned record with chunk maps sized for
// numChunks chunks.
func NewMeta(numChunks int) *Meta {
	return &Meta{
		State:      Learned,
		Downloaded: NewChunkMap(numChunks),
		Requested:  NewChunkMap(numChunks),
		PeerAvail:  make(map[int]ChunkMap),
		PeerReq:    make(map[int]ChunkMap),
	}
}

// Avail lazily creates and returns the entry for peer p in PeerAvail,
// sized to match Downloaded — the safe way to read a peer's availability
// bitmap, since a direct m.PeerAvail[p] lookup on a peer never yet heard
// from returns a zero-width ChunkMap that would panic against Downloaded
// in a bitwise op.
func (m *Meta) Avail(p int) ChunkMap {
	cm, ok := m.PeerAvail[p]
	if !ok {
		cm = NewChunkMap(m.Downloaded.N())
		m.PeerAvail[p] = cm
	}
	return cm
}

// MergeAvail ORs chunks into peer p's availability bitmap (discipline C:
// "peerAvail[peer] |= chunks").
func (m *Meta) MergeAvail(p int, chunks ChunkMap) {
	cur := m.Avail(p)
	cur.Or(chunks)
	m.PeerAvail[p] = cur
}

// SetAvailBit optimistically marks a single chunk present for peer p
// without waiting for that peer's next BlockAvailability (the fill step's
// "optimistic peerAvail update", spec §4.5-C / §9).
func (m *Meta) SetAvailBit(p, chunk int) {
	cur := m.Avail(p)
	cur.Set(chunk)
	m.PeerAvail[p] = cur
}

// Req lazily creates and returns the entry for peer p in PeerReq, sized
// to match Downloaded.
func (m *Meta) Req(p int) ChunkMap {
	cm, ok := m.PeerReq[p]
	if !ok {
		cm = NewChunkMap(m.Downloaded.N())
		m.PeerReq[p] = cm
	}
	return cm
}

// MergeReq ORs chunks into peer p's outstanding-request bitmap
// ("peerReq[peer] |= chunks").
func (m *Meta) MergeReq(p int, chunks ChunkMap) {
	cur := m.Req(p)
	cur.Or(chunks)
	m.PeerReq[p] = cur
}

// Store is the per-node map from block identity to its metadata, created
// lazily (spec §3: "Created lazily on first reference to a block id; never
// destroyed during a run").
type Store struct {
	numChunks int
	blocks    map[Key]*Meta
}

// NewStore creates an empty store sized for numChunks per block.
func NewStore(numChunks int) *Store {
	return &Store{numChunks: numChunks, blocks: make(map[Key]*Meta)}
}

// Get returns the Meta for key, creating it (as Learned, empty bitmaps) on
// first reference.
func (s *Store) Get(key Key) *Meta {
	m, ok := s.blocks[key]
	if !ok {
		m = NewMeta(s.numChunks)
		s.blocks[key] = m
	}
	return m
}

// GetFor is Get keyed off a full Block value: it also (re)records blk on
// the Meta, so later code holding only a Key (e.g. a discipline-C fill
// step iterating Store.Keys()) can still recover an authentic Block with
// real Height/TimeMined instead of zeroed payload fields. Safe to call
// repeatedly — within one run a given (miner, seq) pair always carries
// the same Height/TimeMined (spec §3 invariant).
func (s *Store) GetFor(blk Block) *Meta {
	m := s.Get(blk.Key())
	m.Block = blk
	return m
}

// Peek returns the Meta for key without creating it, and whether it
// existed.
func (s *Store) Peek(key Key) (*Meta, bool) {
	m, ok := s.blocks[key]
	return m, ok
}

// Keys returns every block id referenced so far, in no particular order
// (spec §4.5-C's fill step iterates blocks "any order").
func (s *Store) Keys() []Key {
	keys := make([]Key, 0, len(s.blocks))
	for k := range s.blocks {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of distinct blocks referenced so far.
func (s *Store) Len() int { return len(s.blocks) }

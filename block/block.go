// Package block defines the shared block-identity and per-node
// block-metadata types used across the mining driver, the P2P disciplines,
// and the HoneyBadger coordinator (spec §3).
package block

import "github.com/blockbroadcast/simulator/simclock"

// Block is a mined block. Two blocks are equal iff all four fields match,
// but equality for hashing/dedup purposes is weaker: see Key (spec §3,
// §9 "Global block identity").
type Block struct {
	Miner     uint16
	Seq       uint32
	Height    uint32
	TimeMined simclock.AbsTime
}

// Key is the canonical 48-bit identity used for map lookups and set
// membership: (miner << 32) | seq. Height and TimeMined are payload
// metadata only — they never contribute to equality for dedup purposes
// (spec §3: "Invariant: within one simulator run a given (miner, seq) pair
// is produced by at most one mining event", and §9: "explicitly document
// this weaker equality — it is load-bearing for set-based dedup").
//
// Grounded on helpers.cc's packBlockId / Block.cc's Block::id() from
// original_source, which pack the same two fields into a single integer
// for hashing.
type Key uint64

// Key computes b's canonical identity.
func (b Block) Key() Key {
	return Key(b.Miner)<<32 | Key(b.Seq)
}

// Package p2p implements the per-node block-dissemination state machine
// (spec §4.5): three disciplines sharing one block store and one
// "announce on processed" entrypoint, with the per-discipline message
// handling split across hashannounce.go (A), chunkedpull.go (B), and
// availability.go (C).
package p2p

import (
	"fmt"

	"github.com/blockbroadcast/simulator/block"
	"github.com/blockbroadcast/simulator/envelope"
	"github.com/blockbroadcast/simulator/kernel"
	"github.com/blockbroadcast/simulator/ratelimiter"
)

// Discipline selects which of the three dissemination strategies a Node
// runs. Modeled as a run-time field rather than the original's build-time
// selection (spec §9 generally steers toward run-time configuration; see
// DESIGN.md Open Questions).
type Discipline uint8

const (
	// HashAnnounce is discipline A: announce a hash, pull the full block.
	HashAnnounce Discipline = iota
	// ChunkedPull is discipline B: announce a hash, pull chunk by chunk.
	ChunkedPull
	// AvailabilityGossip is discipline C: gossip bitmaps, request en masse,
	// serve via the priority fill step.
	AvailabilityGossip
)

func (d Discipline) String() string {
	switch d {
	case HashAnnounce:
		return "hash-announce"
	case ChunkedPull:
		return "chunked-pull"
	case AvailabilityGossip:
		return "availability-gossip"
	default:
		return fmt.Sprintf("Discipline(%d)", uint8(d))
	}
}

// Upward is the consumer above the P2P layer — the mining driver's
// block-processing queue (spec §4.7). A Node
// hands every block it learns about, directly mined or fully assembled
// from peers, to ReceiveBlock. Any envelope kind a discipline's handler
// doesn't recognize (the HoneyBadger variant's GotBlock ack, which no
// dissemination discipline interprets) is forwarded untouched to
// ReceiveEnvelope rather than dropped (spec §7: "P2P forwards up to the
// node").
type Upward interface {
	ReceiveBlock(blk block.Block)
	ReceiveEnvelope(peerIndex int, msg envelope.Message)
}

// Node is one peer's P2P state machine. It implements ratelimiter.Receiver
// to take shaped deliveries from its own rate limiter, and calls back into
// that same limiter's SubmitFromInner to send (spec §4.2's "inner" side of
// the gate fabric — this node's limiter is the only thing a Node ever
// addresses directly).
type Node struct {
	k *kernel.Kernel

	ID         int
	Discipline Discipline
	TotalChunks int
	NumPeers   int

	Store   *block.Store
	limiter *ratelimiter.Limiter
	upward  Upward

	heard heardSet // discipline A only
}

// New creates a Node. numPeers is the size of the network-wide node-ID
// space [0, numPeers) that peer indices are drawn from (this node's own
// ID is one of those indices, skipped by broadcast); limiter must already
// be wired with a PeerLink for every other index in that space.
func New(k *kernel.Kernel, id int, d Discipline, totalChunks, numPeers int, limiter *ratelimiter.Limiter, upward Upward) *Node {
	return &Node{
		k:           k,
		ID:          id,
		Discipline:  d,
		TotalChunks: totalChunks,
		NumPeers:    numPeers,
		Store:       block.NewStore(totalChunks),
		limiter:     limiter,
		upward:      upward,
		heard:       newHeardSet(),
	}
}

// send submits msg to the peer at localPeerIndex through this node's rate
// limiter — the zero-delay "inner gate" hop (spec §4.2); only the
// limiter's own service time and the channel to the peer cost virtual
// time.
func (n *Node) send(peerIndex int, msg envelope.Message) {
	n.limiter.SubmitFromInner(n.k, peerIndex, msg)
}

// broadcast submits msg to every configured peer. Peer indices share the
// network-wide node-ID space [0, NumPeers); this node's own ID is skipped
// since a node is never its own peer.
func (n *Node) broadcast(msg envelope.Message) {
	for p := 0; p < n.NumPeers; p++ {
		if p == n.ID {
			continue
		}
		n.send(p, msg)
	}
}

// AnnounceLocal is the path every discipline shares (spec §4.5 preamble):
// "on a locally produced or fully-assembled NewBlock from the module
// above, mark state Processed, set downloaded and requested to full, and
// announce." The mining driver calls this both for a freshly mined block
// (zero processing delay) and for a peer-received block once its
// blockProcQueue delay has elapsed.
func (n *Node) AnnounceLocal(blk block.Block) {
	meta := n.Store.GetFor(blk)
	meta.State.Advance(block.Processed)
	meta.Downloaded.SetAll()
	meta.Requested.SetAll()

	switch n.Discipline {
	case HashAnnounce, ChunkedPull:
		n.broadcast(envelope.NewBlockHash{Block: blk})
	case AvailabilityGossip:
		n.broadcast(envelope.BlockAvailability{Block: blk, Chunks: meta.Downloaded.Clone()})
	default:
		panic(&kernel.InvariantViolation{Component: fmt.Sprintf("p2p.Node[%d]", n.ID), Reason: fmt.Sprintf("unknown discipline %v", n.Discipline)})
	}
}

// ReceiveFromPeer implements ratelimiter.Receiver: dispatch by discipline,
// then by envelope kind, via an exhaustive type switch rather than a
// runtime downcast (spec §9 "Dynamic dispatch on envelope kind").
func (n *Node) ReceiveFromPeer(peerIndex int, msg envelope.Message) {
	switch n.Discipline {
	case HashAnnounce:
		n.receiveHashAnnounce(peerIndex, msg)
	case ChunkedPull:
		n.receiveChunkedPull(peerIndex, msg)
	case AvailabilityGossip:
		n.receiveAvailabilityGossip(peerIndex, msg)
	default:
		panic(&kernel.InvariantViolation{Component: fmt.Sprintf("p2p.Node[%d]", n.ID), Reason: fmt.Sprintf("unknown discipline %v", n.Discipline)})
	}
}

// firstUnset returns the lowest index below limit (which must be <= cm.N())
// that cm does not have set, and whether one exists.
func firstUnset(cm block.ChunkMap, limit int) (int, bool) {
	for i := 0; i < limit; i++ {
		if !cm.Test(i) {
			return i, true
		}
	}
	return 0, false
}

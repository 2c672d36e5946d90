// Package ratelimiter implements the per-node ingress/egress byte-rate
// shaper sitting between a node's inner stack (mining + P2P) and the outer
// world (its peers), spec §4.3. It is close to a direct behavioral port of
// original_source/NodeRateLimiter.cc: independent inbound/outbound FIFO-vs-
// priority queues, size-proportional service time, and a zero rate meaning
// "pass through instantly".
package ratelimiter

import (
	"container/heap"
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/blockbroadcast/simulator/envelope"
	"github.com/blockbroadcast/simulator/gate"
	"github.com/blockbroadcast/simulator/kernel"
	"github.com/blockbroadcast/simulator/simclock"
)

// Receiver is whatever sits on the inner side of the limiter — the local
// P2P node — and accepts shaped, in-order deliveries from peers.
type Receiver interface {
	ReceiveFromPeer(peerIndex int, msg envelope.Message)
}

// PeerLink connects this limiter's outer gate at LocalIndex to a peer
// limiter, with the propagation Delay the channel between the two imposes.
// RemoteIndex is the gate index the peer uses to address this node — the
// value handed to Receiver.ReceiveFromPeer so a reply can be addressed back
// via the mirror gate (spec §4.2).
type PeerLink struct {
	LocalIndex  int
	RemoteIndex int
	Link        gate.Channel // carries the propagation delay and the peer limiter as its Handler
}

// queuedPacket is one entry in either direction's service queue.
type queuedPacket struct {
	peerIndex int // egress: LocalIndex to send on; ingress: the FromIndex to deliver as
	msg       envelope.Message
	bits      int
	seq       uint64
}

// egressHeap orders queuedPacket by (-peerIndex, seq) ascending, i.e. the
// peer with the largest index drains first, ties by insertion order (spec
// §4.3 "Egress queue is priority-ordered: larger arrival-gate index drains
// first"; spec §9 flags the original's pointer-difference comparator as a
// bug and prescribes index-descending with insertion-order tiebreak, which
// is what this implements).
type egressHeap []*queuedPacket

func (h egressHeap) Len() int { return len(h) }
func (h egressHeap) Less(i, j int) bool {
	if h[i].peerIndex != h[j].peerIndex {
		return h[i].peerIndex > h[j].peerIndex
	}
	return h[i].seq < h[j].seq
}
func (h egressHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *egressHeap) Push(x any)        { *h = append(*h, x.(*queuedPacket)) }
func (h *egressHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return p
}

// self-event markers, delivered as Event.Payload to this limiter's own
// Deliver method.
type nextSendEvent struct{}
type nextReceiveEvent struct{}

// wireArrival is what a peer's egress side schedules onto this limiter: a
// packet that has crossed the channel and is now arriving on this node's
// outer gate.
type wireArrival struct {
	fromIndex int
	msg       envelope.Message
	bits      int
}

// Limiter is the per-node rate shaper.
type Limiter struct {
	nodeID int

	incomingRate float64 // bits/sec; 0 = unshaped
	outgoingRate float64

	inQueue  []queuedPacket // FIFO
	outQueue egressHeap     // priority by peer index
	outSeq   uint64

	sendScheduled    bool
	sendHandle       kernel.Handle
	receiveScheduled bool
	receiveHandle    kernel.Handle

	inner Receiver
	peers map[int]*PeerLink // by LocalIndex
}

// New creates a limiter for nodeID. A rate of 0 disables shaping in that
// direction (spec §6: "0 disables shaping").
func New(nodeID int, incomingRate, outgoingRate float64, inner Receiver) *Limiter {
	l := &Limiter{
		nodeID:       nodeID,
		incomingRate: incomingRate,
		outgoingRate: outgoingRate,
		inner:        inner,
		peers:        make(map[int]*PeerLink),
	}
	heap.Init(&l.outQueue)
	return l
}

// Connect registers a peer link addressed by link.LocalIndex.
func (l *Limiter) Connect(link *PeerLink) {
	l.peers[link.LocalIndex] = link
}

// SetInner (re)binds the receiver on the inner side of the limiter. Lets
// network wiring break the Limiter/Node construction cycle: build every
// node's Limiter first (inner nil), build the Nodes against those
// Limiters, then bind each Limiter's inner back to its Node.
func (l *Limiter) SetInner(r Receiver) {
	l.inner = r
}

// PeerIndices returns the LocalIndex of every peer this limiter has a
// PeerLink for, sorted ascending — used by wiring diagnostics (a run's
// --verbose log, or a test asserting a topology was built as expected)
// rather than by anything on the hot event path.
func (l *Limiter) PeerIndices() []int {
	indices := maps.Keys(l.peers)
	slices.Sort(indices)
	return indices
}

// OutQueueLength returns the current egress queue depth — the backpressure
// signal discipline C's fill step polls against its 5000-entry cap (spec
// §4.3, §4.5-C).
func (l *Limiter) OutQueueLength() int {
	return len(l.outQueue)
}

// SubmitFromInner is the entrypoint the local P2P node calls to send msg to
// the peer addressed by localPeerIndex. This is the "inner" side of the
// limiter; there is no channel or propagation delay between the P2P stack
// and its own node's limiter (they are the same process, same instant) —
// only the limiter's internal service time and the channel to the peer
// apply delay.
func (l *Limiter) SubmitFromInner(k *kernel.Kernel, localPeerIndex int, msg envelope.Message) {
	bits := msg.BitLength()
	if bits == 0 || l.outgoingRate == 0 {
		l.sendOverWire(k, localPeerIndex, msg, bits)
		return
	}
	l.outSeq++
	heap.Push(&l.outQueue, &queuedPacket{peerIndex: localPeerIndex, msg: msg, bits: bits, seq: l.outSeq})
	if !l.sendScheduled {
		l.scheduleNextSend(k)
	}
}

func (l *Limiter) scheduleNextSend(k *kernel.Kernel) {
	if len(l.outQueue) == 0 {
		l.sendScheduled = false
		return
	}
	head := l.outQueue[0]
	delay := simclock.FromBitsAtRate(head.bits, l.outgoingRate)
	l.sendHandle = k.ScheduleAt(k.Now().Add(delay), l, nextSendEvent{})
	l.sendScheduled = true
}

func (l *Limiter) scheduleNextReceive(k *kernel.Kernel) {
	if len(l.inQueue) == 0 {
		l.receiveScheduled = false
		return
	}
	head := l.inQueue[0]
	delay := simclock.FromBitsAtRate(head.bits, l.incomingRate)
	l.receiveHandle = k.ScheduleAt(k.Now().Add(delay), l, nextReceiveEvent{})
	l.receiveScheduled = true
}

// sendOverWire places msg on the channel to localPeerIndex's peer, which
// after the channel's propagation delay arrives as that peer's wireArrival
// (spec §4.2: a channel "may impose a propagation delay").
func (l *Limiter) sendOverWire(k *kernel.Kernel, localPeerIndex int, msg envelope.Message, bits int) {
	link, ok := l.peers[localPeerIndex]
	if !ok {
		panic(&kernel.InvariantViolation{
			Component: fmt.Sprintf("ratelimiter[node=%d]", l.nodeID),
			Reason:    fmt.Sprintf("unknown peer index %d", localPeerIndex),
		})
	}
	link.Link.Send(k, wireArrival{
		fromIndex: link.RemoteIndex,
		msg:       msg,
		bits:      bits,
	})
}

// Deliver implements kernel.Handler. It is the single dispatch point for
// this limiter's self-events (nextSend/nextReceive) and for wireArrival
// deliveries scheduled by a peer's egress side.
func (l *Limiter) Deliver(k *kernel.Kernel, ev *kernel.Event) {
	switch p := ev.Payload.(type) {
	case nextSendEvent:
		head := heap.Pop(&l.outQueue).(*queuedPacket)
		l.sendOverWire(k, head.peerIndex, head.msg, head.bits)
		l.scheduleNextSend(k)

	case nextReceiveEvent:
		head := l.inQueue[0]
		l.inQueue = l.inQueue[1:]
		l.inner.ReceiveFromPeer(head.peerIndex, head.msg)
		l.scheduleNextReceive(k)

	case wireArrival:
		if p.bits == 0 || l.incomingRate == 0 {
			l.inner.ReceiveFromPeer(p.fromIndex, p.msg)
			return
		}
		l.inQueue = append(l.inQueue, queuedPacket{peerIndex: p.fromIndex, msg: p.msg, bits: p.bits})
		if !l.receiveScheduled {
			l.scheduleNextReceive(k)
		}

	default:
		panic(&kernel.InvariantViolation{
			Component: fmt.Sprintf("ratelimiter[node=%d]", l.nodeID),
			Reason:    fmt.Sprintf("unrecognized event payload %T", ev.Payload),
		})
	}
}

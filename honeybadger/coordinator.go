// Package honeybadger implements the epoch coordinator for the
// HoneyBadgerBFT-style batched variant (spec §4.6): a self-contained
// per-node state machine that mines one block per epoch, floods it (and a
// GotBlock acknowledgement) to every peer, and advances to the next epoch
// once a numNodes² reception quorum has accrued for the current one.
//
// Unlike mining.Driver, the Coordinator does not sit behind a p2p.Node —
// it wires directly to its own ratelimiter.Limiter, the way
// original_source/HoneyBadger.cc sends straight over its own "p2p$o" gate
// rather than through NodeP2P's dissemination disciplines. It reuses the
// same proc-queue discipline as mining.Driver (spec §4.7) for peer-sourced
// blocks, and the same rate-limiter package the dissemination layer uses,
// rather than inventing a second transport.
package honeybadger

import (
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/blockbroadcast/simulator/block"
	"github.com/blockbroadcast/simulator/envelope"
	"github.com/blockbroadcast/simulator/kernel"
	"github.com/blockbroadcast/simulator/ratelimiter"
	"github.com/blockbroadcast/simulator/simclock"
	"github.com/blockbroadcast/simulator/stats"
)

// Config bundles the per-node knobs spec §6 enumerates for the HB variant.
type Config struct {
	NumNodes int
	ProcTime time.Duration
}

type mineEvent struct{}
type procEvent struct{}

// Coordinator is one node's HoneyBadger epoch state machine.
//
// Grounded on original_source/HoneyBadger.cc: procBlock runs identically
// for a node's own freshly-mined block (zero delay) and for a peer block
// drained off the proc queue after ProcTime — both confirm reception
// locally *and* re-broadcast the block plus a fresh GotBlock ack to every
// peer. The original has no guard against re-processing the same block
// twice, which on a literal port re-floods forever; this repo adds the
// one guard spec §7 asks for generally ("duplicate delivery... idempotent
// — detected via bitmaps/id-sets, discarded"): a per-block `seen` set
// gates entry into local processing, so each of the numNodes blocks
// mined in an epoch is processed, and re-broadcast, at most once per
// node. That single gate is also what makes spec scenario S4's worked
// numbers exact: in a full mesh every node processes all numNodes blocks
// for the epoch (4 local-block receptions at numNodes=4) and, because
// GotBlock itself is never deduped, receives one fresh ack per processing
// event from each of its numNodes-1 peers (4·3 = 12) — 16 = numNodes²
// total, landing precisely at the quorum spec §4.6 defines.
type Coordinator struct {
	k  *kernel.Kernel
	id int

	numNodes int
	procTime time.Duration

	limiter   *ratelimiter.Limiter
	collector stats.Collector

	nextBlockSeq    uint32
	epochs          map[uint32]int
	seen            mapset.Set[block.Key] // blocks ever accepted for local processing
	lastEpochFinish simclock.AbsTime

	procQueue     []block.Block
	procScheduled bool

	mineHandle kernel.Handle
}

// New creates a Coordinator wired to limiter (as its Receiver) and
// schedules the first epoch's nextMine at the current time.
func New(k *kernel.Kernel, id int, cfg Config, limiter *ratelimiter.Limiter, collector stats.Collector) *Coordinator {
	c := &Coordinator{
		k:         k,
		id:        id,
		numNodes:  cfg.NumNodes,
		procTime:  cfg.ProcTime,
		limiter:   limiter,
		collector: collector,
		epochs:    make(map[uint32]int),
		seen:      mapset.NewThreadUnsafeSet[block.Key](),
	}
	limiter.SetInner(c)
	c.mineHandle = k.ScheduleAt(k.Now(), c, mineEvent{})
	return c
}

// NextBlockSeq returns the sequence of the epoch this node has not yet
// started mining — i.e. one past the current epoch.
func (c *Coordinator) NextBlockSeq() uint32 { return c.nextBlockSeq }

// EpochCount returns the current reception counter for epoch e, for tests
// that want to assert P6 directly rather than just observing the advance.
func (c *Coordinator) EpochCount(e uint32) int { return c.epochs[e] }

func (c *Coordinator) broadcast(msg envelope.Message) {
	for p := 0; p < c.numNodes; p++ {
		if p == c.id {
			continue
		}
		c.limiter.SubmitFromInner(c.k, p, msg)
	}
}

// mineBlock stamps a block for the current epoch (seq = nextBlockSeq) and
// advances the epoch counter (spec §4.6: "Epoch e starts when the node
// fires its nextMine for sequence e").
func (c *Coordinator) mineBlock() block.Block {
	blk := block.Block{
		Miner:     uint16(c.id),
		Seq:       c.nextBlockSeq,
		Height:    c.nextBlockSeq + 1,
		TimeMined: c.k.Now(),
	}
	c.nextBlockSeq++
	return blk
}

// procBlock is the shared tail for both the zero-delay (own block) and
// ProcTime-delayed (peer block) paths: confirm reception, then broadcast
// the block and a GotBlock ack outward to every peer. Only ever called
// once per distinct block, per node — gated by the seen set at the two
// acceptance points (onMine, ReceiveFromPeer).
func (c *Coordinator) procBlock(blk block.Block) {
	c.confirmReception(blk.Seq)
	c.broadcast(envelope.NewBlock{Block: blk})
	c.broadcast(envelope.GotBlock{Epoch: blk.Seq, Node: c.id})
}

// confirmReception increments epochs[e] and, if e is still the live epoch
// and the quorum threshold has been met, schedules the next nextMine at
// now (spec §4.6's advance rule). The "e == nextBlockSeq-1" guard — here
// phrased as e+1 == nextBlockSeq to avoid a uint32 underflow on e==0 —
// prevents re-triggering while still inside epoch e: nextBlockSeq only
// moves once mineBlock runs for the next epoch.
func (c *Coordinator) confirmReception(e uint32) {
	c.epochs[e]++
	if e+1 != c.nextBlockSeq {
		return
	}
	if c.epochs[e] < c.numNodes*c.numNodes {
		return
	}
	now := c.k.Now()
	if c.collector != nil {
		c.collector.Observe(c.id, stats.MetricRoundInterval, now.Sub(c.lastEpochFinish).Seconds())
	}
	c.lastEpochFinish = now
	c.k.Cancel(c.mineHandle)
	c.mineHandle = c.k.ScheduleAt(now, c, mineEvent{})
}

// ReceiveFromPeer implements ratelimiter.Receiver.
func (c *Coordinator) ReceiveFromPeer(peerIndex int, msg envelope.Message) {
	switch m := msg.(type) {
	case envelope.NewBlock:
		key := m.Block.Key()
		if c.seen.Contains(key) {
			return // already processed (directly or via an earlier flood): idempotent (spec §7)
		}
		c.seen.Add(key)
		if len(c.procQueue) == 0 && !c.procScheduled {
			c.k.ScheduleAt(c.k.Now().Add(c.procTime), c, procEvent{})
			c.procScheduled = true
		}
		c.procQueue = append(c.procQueue, m.Block)

	case envelope.GotBlock:
		// GotBlock acks are not CPU-bound — they confirm immediately, the
		// way the original's handleMessage branch does. Not deduped: a
		// peer legitimately sends one fresh ack per distinct block it
		// processes (spec §4.6's "every node emits numNodes acks"), so
		// more than one ack from the same sender within an epoch is
		// expected, not a retransmit.
		c.confirmReception(m.Epoch)

	default:
		// Unknown envelope kind at a terminal module: pass through
		// untouched (spec §7) — nothing above this coordinator to
		// forward to, so this is a silent no-op.
	}
}

// Deliver implements kernel.Handler for this node's two self-event kinds.
func (c *Coordinator) Deliver(k *kernel.Kernel, ev *kernel.Event) {
	switch ev.Payload.(type) {
	case mineEvent:
		blk := c.mineBlock()
		c.seen.Add(blk.Key())
		c.procBlock(blk)

	case procEvent:
		blk := c.procQueue[0]
		c.procQueue = c.procQueue[1:]
		c.procBlock(blk)
		if len(c.procQueue) > 0 {
			k.ScheduleAt(k.Now().Add(c.procTime), c, procEvent{})
		} else {
			c.procScheduled = false
		}

	default:
		panic(&kernel.InvariantViolation{
			Component: fmt.Sprintf("honeybadger.Coordinator[%d]", c.id),
			Reason:    fmt.Sprintf("unrecognized event payload %T", ev.Payload),
		})
	}
}

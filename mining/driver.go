// Package mining implements the per-node block production and
// CPU-bound processing queue, spec §4.4 and §4.7. It is a close
// behavioral port of original_source/Miner.cc: the same three mining
// modes, the same mine-then-process-locally-with-zero-delay path for a
// node's own blocks, and the same FIFO blockProcQueue for peer-sourced
// ones. The exponential/Poisson draws are reproduced with stdlib
// math/rand (inverse-CDF exponential, Knuth's algorithm for Poisson) —
// the only relevant retrieved reference for this exact simulation
// domain, LarryRuane-minesim.go, draws its own solve times the same
// way, with no third-party distribution library.
package mining

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/blockbroadcast/simulator/block"
	"github.com/blockbroadcast/simulator/envelope"
	"github.com/blockbroadcast/simulator/kernel"
	"github.com/blockbroadcast/simulator/simclock"
	"github.com/blockbroadcast/simulator/stats"
)

// Mode selects one of the three mining disciplines (spec §4.4).
type Mode uint8

const (
	// Continuous draws i.i.d. exponential inter-block times, mining one
	// block per firing — PoW-like.
	Continuous Mode = iota
	// Round draws k ~ Poisson(roundInterval*miningRate) blocks every
	// roundInterval, all sharing one timeMined — PoS-like.
	Round
	// FixedCommittee mines exactly one block every roundInterval iff this
	// node's id is below numFixedMiners, else zero.
	FixedCommittee
)

func (m Mode) String() string {
	switch m {
	case Continuous:
		return "continuous"
	case Round:
		return "round"
	case FixedCommittee:
		return "fixed-committee"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Announcer is the downward hookup into the P2P layer (*p2p.Node
// satisfies it): AnnounceLocal marks a block Processed locally and
// disseminates it per the node's discipline.
type Announcer interface {
	AnnounceLocal(blk block.Block)
}

// Config bundles the per-node knobs spec §6 enumerates.
type Config struct {
	Mode           Mode
	MiningRate     float64 // blocks/sec; continuous mean, round Poisson rate
	RoundInterval  time.Duration
	NumFixedMiners int
	ProcTime       time.Duration
	Seed           int64
}

type mineEvent struct{}
type procEvent struct{}

// Driver is the per-node mining and block-processing state machine.
type Driver struct {
	k  *kernel.Kernel
	id int

	mode           Mode
	mineMean       time.Duration // continuous mode: 1/miningRate
	roundInterval  time.Duration
	roundLambda    float64 // round mode: roundInterval * miningRate
	numFixedMiners int
	procTime       time.Duration

	rng *rand.Rand

	announcer Announcer
	collector stats.Collector

	nextBlockSeq uint32
	bestLevel    uint32

	procQueue     []block.Block
	procScheduled bool

	mineHandle kernel.Handle
}

// New creates a Driver and schedules its first nextMine event.
func New(k *kernel.Kernel, id int, cfg Config, announcer Announcer, collector stats.Collector) *Driver {
	d := &Driver{
		k:              k,
		id:             id,
		mode:           cfg.Mode,
		roundInterval:  cfg.RoundInterval,
		numFixedMiners: cfg.NumFixedMiners,
		procTime:       cfg.ProcTime,
		rng:            rand.New(rand.NewSource(cfg.Seed)),
		announcer:      announcer,
		collector:      collector,
	}
	if cfg.MiningRate > 0 {
		d.mineMean = simclock.FromSeconds(1.0 / cfg.MiningRate)
	}
	d.roundLambda = cfg.RoundInterval.Seconds() * cfg.MiningRate
	d.scheduleNextMine()
	return d
}

// NextBlockSeq returns the sequence number the next block this driver
// mines will carry.
func (d *Driver) NextBlockSeq() uint32 { return d.nextBlockSeq }

// BestLevel returns the highest block height processed so far.
func (d *Driver) BestLevel() uint32 { return d.bestLevel }

// ScheduleMineNow cancels the pending nextMine and schedules one at the
// current time instead of waiting out the driver's own timer.
func (d *Driver) ScheduleMineNow() {
	d.k.Cancel(d.mineHandle)
	d.mineHandle = d.k.ScheduleAt(d.k.Now(), d, mineEvent{})
}

func (d *Driver) scheduleNextMine() {
	var delay time.Duration
	if d.mode == Continuous {
		delay = time.Duration(d.rng.ExpFloat64() * float64(d.mineMean))
	} else {
		delay = d.roundInterval
	}
	d.mineHandle = d.k.ScheduleAt(d.k.Now().Add(delay), d, mineEvent{})
}

func (d *Driver) mineBlock() block.Block {
	blk := block.Block{
		Miner:     uint16(d.id),
		Seq:       d.nextBlockSeq,
		Height:    d.bestLevel + 1,
		TimeMined: d.k.Now(),
	}
	d.nextBlockSeq++
	return blk
}

// procBlock is the shared tail of both the zero-delay (own block) and
// proc_time-delayed (peer block) paths: update bestLevel, record the
// delay sample, announce (spec §4.4).
func (d *Driver) procBlock(blk block.Block) {
	if blk.Height > d.bestLevel {
		d.bestLevel = blk.Height
	}
	if d.collector != nil {
		delay := d.k.Now().Sub(blk.TimeMined).Seconds()
		d.collector.Observe(d.id, stats.MetricBlockDelay, delay)
	}
	d.announcer.AnnounceLocal(blk)
}

// ReceiveBlock implements p2p.Upward: a fully-assembled peer block enters
// the CPU-bound processing queue (spec §4.7).
func (d *Driver) ReceiveBlock(blk block.Block) {
	if len(d.procQueue) == 0 && !d.procScheduled {
		d.k.ScheduleAt(d.k.Now().Add(d.procTime), d, procEvent{})
		d.procScheduled = true
	}
	d.procQueue = append(d.procQueue, blk)
}

// ReceiveEnvelope implements p2p.Upward: a dissemination discipline that
// cannot interpret an envelope kind forwards it here (spec §7). None of
// the three disciplines currently produce one — the mining driver has no
// envelope kinds of its own — so this is an intentional no-op rather than
// dead code: it exists to satisfy the Upward capability so a Driver can be
// wired directly behind a p2p.Node.
func (d *Driver) ReceiveEnvelope(peerIndex int, msg envelope.Message) {}

// Deliver implements kernel.Handler for this node's two self-event kinds.
func (d *Driver) Deliver(k *kernel.Kernel, ev *kernel.Event) {
	switch ev.Payload.(type) {
	case mineEvent:
		d.onMine()
		d.scheduleNextMine()

	case procEvent:
		blk := d.procQueue[0]
		d.procQueue = d.procQueue[1:]
		d.procBlock(blk)
		if len(d.procQueue) > 0 {
			k.ScheduleAt(k.Now().Add(d.procTime), d, procEvent{})
		} else {
			d.procScheduled = false
		}

	default:
		panic(&kernel.InvariantViolation{
			Component: fmt.Sprintf("mining.Driver[%d]", d.id),
			Reason:    fmt.Sprintf("unrecognized event payload %T", ev.Payload),
		})
	}
}

func (d *Driver) onMine() {
	switch d.mode {
	case Continuous:
		d.procBlock(d.mineBlock())

	case Round:
		n := poisson(d.rng, d.roundLambda)
		for i := 0; i < n; i++ {
			d.procBlock(d.mineBlock())
		}

	case FixedCommittee:
		if d.id < d.numFixedMiners {
			d.procBlock(d.mineBlock())
		}

	default:
		panic(&kernel.InvariantViolation{
			Component: fmt.Sprintf("mining.Driver[%d]", d.id),
			Reason:    fmt.Sprintf("unknown mode %v", d.mode),
		})
	}
}

// poisson draws from a Poisson distribution with mean lambda via Knuth's
// algorithm. Adequate for the small round-block counts this simulator
// deals in; not intended for large lambda.
func poisson(rng *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		k++
		p *= rng.Float64()
		if p <= l {
			return k - 1
		}
	}
}

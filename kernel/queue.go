package kernel

import (
	"container/heap"

	"github.com/blockbroadcast/simulator/simclock"
)

// scheduledEvent is one entry in the kernel's event heap. It is ordered by
// (time, seq): seq is a monotonically increasing insertion counter, so two
// events scheduled for the same time deliver in the order they were
// scheduled (spec §4.1: "ties broken by insertion sequence").
type scheduledEvent struct {
	time    simclock.AbsTime
	seq     uint64
	ev      *Event
	index   int  // heap index, maintained by container/heap
	removed bool // tombstone: lazily dropped at pop time (spec §9)
}

// eventHeap is a small priority queue of scheduled events grounded on the shape of
// go-ethereum's common/prque (Push/Pop/Size/Empty ordered by priority,
// lowest first) — that package's implementation file did not survive this
// retrieval (only its tests did, see DESIGN.md), so this is a from-scratch
// reimplementation of the same contract on top of container/heap rather
// than an import of the original.
type eventHeap []*scheduledEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	se := x.(*scheduledEvent)
	se.index = len(*h)
	*h = append(*h, se)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	se := old[n-1]
	old[n-1] = nil
	se.index = -1
	*h = old[:n-1]
	return se
}

// eventQueue wraps eventHeap with the tombstone-on-cancel discipline
// described in spec §9 ("Cancellable self-events... the queue may lazily
// drop tombstoned entries at pop time").
type eventQueue struct {
	h   eventHeap
	seq uint64
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	heap.Init(&q.h)
	return q
}

// push enqueues ev for delivery at t and returns a handle that can be
// passed to cancel.
func (q *eventQueue) push(t simclock.AbsTime, ev *Event) *scheduledEvent {
	se := &scheduledEvent{time: t, seq: q.seq, ev: ev}
	q.seq++
	heap.Push(&q.h, se)
	return se
}

// cancel tombstones a previously scheduled entry. Idempotent: cancelling an
// already-fired or already-cancelled handle is a no-op (spec §4.1).
func (q *eventQueue) cancel(se *scheduledEvent) {
	if se == nil || se.removed {
		return
	}
	se.removed = true
}

// empty reports whether the queue holds no live (non-tombstoned) entries.
// It must drain tombstones to answer correctly.
func (q *eventQueue) empty() bool {
	q.dropTombstones()
	return q.h.Len() == 0
}

func (q *eventQueue) dropTombstones() {
	for q.h.Len() > 0 && q.h[0].removed {
		heap.Pop(&q.h)
	}
}

// pop removes and returns the earliest live entry.
func (q *eventQueue) pop() *scheduledEvent {
	q.dropTombstones()
	if q.h.Len() == 0 {
		return nil
	}
	se := heap.Pop(&q.h).(*scheduledEvent)
	return se
}

// peekTime returns the time of the earliest live entry and true, or
// (0, false) if the queue is empty.
func (q *eventQueue) peekTime() (simclock.AbsTime, bool) {
	q.dropTombstones()
	if q.h.Len() == 0 {
		return 0, false
	}
	return q.h[0].time, true
}

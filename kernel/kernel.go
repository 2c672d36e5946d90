// Package kernel implements the single-threaded discrete-event engine at
// the bottom of the simulator (spec §4.1). It owns the priority queue of
// (time, insertion-sequence) ordered events and is the sole source of
// virtual time; nothing else in this module reads a wall clock.
package kernel

import (
	"fmt"

	"github.com/blockbroadcast/simulator/simclock"
)

// InvariantViolation is panicked by a Handler when it observes state that
// should be impossible in a correctly wired simulation — an unknown gate
// base id, scheduling into the past, a message that should have been
// exhaustively matched. RunUntil, RunUntilEmpty and RunCount recover the
// first one raised during a call and turn it into a returned error (spec §7: "fatal; abort the run with a
// diagnostic").
type InvariantViolation struct {
	Component string
	Reason    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Component, e.Reason)
}

// Kernel is the discrete-event engine. It is not safe for concurrent use —
// the whole point of the model is single-threaded cooperative scheduling
// (spec §5).
type Kernel struct {
	now      simclock.AbsTime
	queue    *eventQueue
	delivered int64
}

// New creates a kernel whose virtual clock starts at simclock.Zero.
func New() *Kernel {
	return &Kernel{queue: newEventQueue()}
}

// Now returns the current virtual time: the time of the event currently (or
// most recently) being delivered.
func (k *Kernel) Now() simclock.AbsTime { return k.now }

// Delivered returns the number of events delivered so far in this run.
func (k *Kernel) Delivered() int64 { return k.delivered }

// ScheduleAt enqueues payload for delivery to h at virtual time t. Requires
// t >= Now(); per spec §4.1 this is a hard precondition, not a clamp —
// scheduling into the past is an invariant violation.
func (k *Kernel) ScheduleAt(t simclock.AbsTime, h Handler, payload any) Handle {
	if t.Before(k.now) {
		panic(&InvariantViolation{Component: "kernel", Reason: fmt.Sprintf("scheduleAt(%s) is before now=%s", t, k.now)})
	}
	ev := &Event{Time: t, Handler: h, Payload: payload}
	se := k.queue.push(t, ev)
	ev.handle = se
	return Handle{se: se}
}

// Cancel removes a previously scheduled event. Idempotent: cancelling a
// handle that already fired, or was never valid, is a no-op (spec §4.1).
//
// The discipline this protects is the one spec §4.1 calls out explicitly:
// re-scheduling an already-scheduled self-event handle must go through
// Cancel then ScheduleAt; scheduling over a live handle without cancelling
// it first is a bug in the caller (each component is responsible for this,
// the kernel does not try to detect it since it has no notion of "the same
// logical self-event" across calls).
func (k *Kernel) Cancel(h Handle) {
	if h.se == nil {
		return
	}
	k.queue.cancel(h.se)
}

// RunUntilEmpty drains every event in non-decreasing time order until the
// queue is empty.
func (k *Kernel) RunUntilEmpty() error {
	return k.run(func() bool { return !k.queue.empty() })
}

// RunUntil drains events in order until the queue is empty or the next
// event's time would exceed tEnd, whichever comes first. Now is then
// advanced to tEnd if it is still earlier; if the queue still holds events
// beyond tEnd they remain scheduled for a later call.
func (k *Kernel) RunUntil(tEnd simclock.AbsTime) error {
	err := k.run(func() bool {
		t, ok := k.queue.peekTime()
		return ok && !tEnd.Before(t)
	})
	if err != nil {
		return err
	}
	if k.now.Before(tEnd) {
		k.now = tEnd
	}
	return nil
}

// RunCount delivers up to n more events (fewer if the queue empties first).
func (k *Kernel) RunCount(n int) error {
	delivered := 0
	return k.run(func() bool {
		if delivered >= n {
			return false
		}
		delivered++
		return !k.queue.empty()
	})
}

// run is the shared drain loop. cond is re-evaluated before popping each
// event; it must itself check queue emptiness since run always pops when
// cond returns true.
func (k *Kernel) run(cond func() bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if iv, ok := r.(*InvariantViolation); ok {
				err = iv
				return
			}
			panic(r)
		}
	}()
	for cond() {
		se := k.queue.pop()
		if se == nil {
			break
		}
		k.now = se.time
		se.ev.Handler.Deliver(k, se.ev)
		k.delivered++
	}
	return nil
}

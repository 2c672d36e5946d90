package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockbroadcast/simulator/simclock"
)

type recorder struct {
	order []string
}

func (r *recorder) Deliver(k *Kernel, ev *Event) {
	r.order = append(r.order, ev.Payload.(string))
}

func TestOrderingByTimeThenSequence(t *testing.T) {
	k := New()
	r := &recorder{}

	// Scheduled out of time order; delivery must still be non-decreasing
	// in time, ties broken by insertion sequence (spec P5).
	k.ScheduleAt(simclock.Zero.Add(2*time.Second), r, "b")
	k.ScheduleAt(simclock.Zero.Add(1*time.Second), r, "a")
	k.ScheduleAt(simclock.Zero.Add(2*time.Second), r, "c") // same time as "b", inserted after

	require.NoError(t, k.RunUntilEmpty())
	require.Equal(t, []string{"a", "b", "c"}, r.order)
}

func TestCancelIsIdempotent(t *testing.T) {
	k := New()
	r := &recorder{}

	h := k.ScheduleAt(simclock.Zero.Add(time.Second), r, "x")
	k.Cancel(h)
	k.Cancel(h) // cancelling twice must not panic

	require.NoError(t, k.RunUntilEmpty())
	require.Empty(t, r.order)
}

func TestCancelThenReschedule(t *testing.T) {
	k := New()
	r := &recorder{}

	h := k.ScheduleAt(simclock.Zero.Add(time.Second), r, "first")
	k.Cancel(h)
	k.ScheduleAt(simclock.Zero.Add(2*time.Second), r, "second")

	require.NoError(t, k.RunUntilEmpty())
	require.Equal(t, []string{"second"}, r.order)
}

func TestScheduleIntoPastPanics(t *testing.T) {
	k := New()
	r := &recorder{}
	k.ScheduleAt(simclock.Zero.Add(5*time.Second), r, "advance")
	require.NoError(t, k.RunUntil(simclock.Zero.Add(5*time.Second)))

	require.PanicsWithValue(t, &InvariantViolation{Component: "kernel", Reason: "scheduleAt(0.000000000s) is before now=5.000000000s"}, func() {
		k.ScheduleAt(simclock.Zero, r, "late")
	})
}

func TestRunUntilLeavesFutureEventsQueued(t *testing.T) {
	k := New()
	r := &recorder{}
	k.ScheduleAt(simclock.Zero.Add(1*time.Second), r, "early")
	k.ScheduleAt(simclock.Zero.Add(10*time.Second), r, "late")

	require.NoError(t, k.RunUntil(simclock.Zero.Add(5*time.Second)))
	require.Equal(t, []string{"early"}, r.order)
	require.Equal(t, simclock.Zero.Add(5*time.Second), k.Now())

	require.NoError(t, k.RunUntilEmpty())
	require.Equal(t, []string{"early", "late"}, r.order)
}

func TestRunCountDeliversAtMostN(t *testing.T) {
	k := New()
	r := &recorder{}
	for i := 0; i < 5; i++ {
		k.ScheduleAt(simclock.Zero.Add(time.Duration(i)*time.Second), r, "e")
	}
	require.NoError(t, k.RunCount(3))
	require.Equal(t, int64(3), k.Delivered())
	require.NoError(t, k.RunUntilEmpty())
	require.Equal(t, int64(5), k.Delivered())
}

// handlerThatSchedulesAtNow verifies that events a handler schedules at the
// current instant run after the current handler returns, but before any
// future-time event already queued — FIFO among same-time events (spec
// §4.1).
type handlerThatSchedulesAtNow struct {
	r      *recorder
	armed  bool
}

func (h *handlerThatSchedulesAtNow) Deliver(k *Kernel, ev *Event) {
	h.r.order = append(h.r.order, ev.Payload.(string))
	if !h.armed {
		h.armed = true
		k.ScheduleAt(k.Now(), h, "reentrant-now")
	}
}

func TestSameTimeReentrantScheduleRunsAfterCurrentHandler(t *testing.T) {
	k := New()
	r := &recorder{}
	h := &handlerThatSchedulesAtNow{r: r}

	k.ScheduleAt(simclock.Zero, h, "first")
	k.ScheduleAt(simclock.Zero.Add(time.Second), &recorder{}, "later") // different handler, just advances time

	require.NoError(t, k.RunUntilEmpty())
	require.Equal(t, []string{"first", "reentrant-now"}, r.order)
}

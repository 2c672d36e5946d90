package kernel

import "github.com/blockbroadcast/simulator/simclock"

// Handler is any module the kernel can deliver an event to. Every component
// in this simulator (rate limiter, P2P node, mining driver, HoneyBadger
// coordinator) implements Handler for its own self-events and for envelopes
// routed to it across a gate.
type Handler interface {
	// Deliver runs to completion for a single event and must not block; it
	// may call Kernel.ScheduleAt to enqueue future events (spec §5: "every
	// module handler runs to completion... and may enqueue future events
	// but never blocks").
	Deliver(k *Kernel, ev *Event)
}

// Event is the envelope the kernel schedules and delivers: a virtual-time
// target, the handler responsible for it, and an opaque payload. Payload is
// `any` deliberately — the concrete message kinds (envelope.NewBlock, ...,
// and each component's internal self-event markers) are defined by their
// owning packages, not by the kernel, which only needs to order and
// deliver them (spec §9: "tagged sum variant matched exhaustively" lives at
// the handler, not here).
type Event struct {
	Time    simclock.AbsTime
	Handler Handler
	Payload any

	handle *scheduledEvent // set once scheduled; used by Cancel
}

// Handle is an opaque reference to a scheduled event, returned by
// Kernel.ScheduleAt and accepted by Kernel.Cancel.
type Handle struct {
	se *scheduledEvent
}

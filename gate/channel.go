package gate

import (
	"time"

	"github.com/blockbroadcast/simulator/kernel"
)

// Channel is the propagation-delay link attached to a gate pair connecting
// two nodes' outer gates (spec §4.2: "Channels attached to gate pairs may
// impose a propagation delay"). It has no buffering or rate of its own —
// shaping is the rate limiter's job (spec §4.3); the channel only adds a
// constant delay before the far side's Handler sees the message.
//
// Because the delay is constant for a given channel, departures in
// non-decreasing time order arrive in non-decreasing time order: FIFO
// per (sender, gate, receiver) is a structural property of this type, not
// something that needs separate bookkeeping (spec §5).
type Channel struct {
	Delay time.Duration
	To    kernel.Handler
}

// Send schedules payload for delivery to the far end of the channel at
// k.Now()+Delay.
func (c Channel) Send(k *kernel.Kernel, payload any) {
	k.ScheduleAt(k.Now().Add(c.Delay), c.To, payload)
}

// Zero is a convenience Channel with no propagation delay. Same-node
// intra-stack hops (e.g. P2P to rate limiter) do not go through a Channel
// at all — they are direct calls, not gate sends (see
// ratelimiter.Limiter.SubmitFromInner).
var Zero = Channel{}

// AbsZeroDelay reports whether c imposes no delay.
func (c Channel) AbsZeroDelay() bool { return c.Delay == 0 }

// Package simclock defines the virtual-time type shared by every component
// of the simulator. Virtual time never advances on its own; it only moves
// forward when the event kernel (package kernel) delivers the next event.
package simclock

import (
	"fmt"
	"time"
)

// AbsTime is a point in virtual time, expressed in nanoseconds since the
// start of a simulation run. The zero value is the instant the kernel
// starts running.
//
// This mirrors the shape of go-ethereum's common/mclock.AbsTime: an opaque
// monotonic instant type, kept distinct from wall-clock time.Time so that a
// run can never accidentally read the real clock.
type AbsTime int64

// Zero is the instant a simulation run begins.
const Zero AbsTime = 0

// Add returns t advanced by d.
func (t AbsTime) Add(d time.Duration) AbsTime {
	return t + AbsTime(d)
}

// Sub returns the duration between t and t2 (t - t2).
func (t AbsTime) Sub(t2 AbsTime) time.Duration {
	return time.Duration(t - t2)
}

// Before reports whether t occurs strictly before t2.
func (t AbsTime) Before(t2 AbsTime) bool {
	return t < t2
}

// Seconds returns t, measured in virtual seconds since Zero, as a float64.
// Used at the boundary with the stats collector, which samples plain
// floating-point values (spec: "an external collector that accepts
// floating-point samples").
func (t AbsTime) Seconds() float64 {
	return float64(t) / float64(time.Second)
}

func (t AbsTime) String() string {
	return fmt.Sprintf("%.9fs", t.Seconds())
}

// FromSeconds converts a duration expressed in virtual seconds (as most of
// the spec's configuration parameters are: mineIntv, roundIntv, procTime,
// ...) into a time.Duration suitable for arithmetic against AbsTime.
func FromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// FromBitsAtRate returns the service time required to move bitLength bits
// at the given bit rate (bits per second). Used by the rate limiter to
// convert a packet's bit length into a scheduling delay. A zero rate is
// never passed in here — callers must special-case rate == 0 as
// "unshaped" before calling this, per spec §4.3.
func FromBitsAtRate(bitLength int, rate float64) time.Duration {
	return FromSeconds(float64(bitLength) / rate)
}

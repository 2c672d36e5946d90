package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockbroadcast/simulator/kernel"
	"github.com/blockbroadcast/simulator/simclock"
)

func TestMirrorFlipsDirectionOnly(t *testing.T) {
	r := Ref{NodeID: 3, Vector: "peer", Index: 2, Dir: In}
	m := r.Mirror()

	require.Equal(t, r.NodeID, m.NodeID)
	require.Equal(t, r.Vector, m.Vector)
	require.Equal(t, r.Index, m.Index)
	require.Equal(t, Out, m.Dir)
	require.Equal(t, In, m.Mirror().Dir) // mirroring twice is the identity
}

type sink struct{ got []any }

func (s *sink) Deliver(k *kernel.Kernel, ev *kernel.Event) { s.got = append(s.got, ev.Payload) }

func TestChannelAppliesPropagationDelay(t *testing.T) {
	k := kernel.New()
	s := &sink{}
	ch := Channel{Delay: 100 * time.Millisecond, To: s}

	ch.Send(k, "hello")
	require.NoError(t, k.RunUntilEmpty())

	require.Equal(t, []any{"hello"}, s.got)
	require.Equal(t, simclock.Zero.Add(100*time.Millisecond), k.Now())
}

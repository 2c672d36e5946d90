package ratelimiter

import (
	"testing"
	"time"

	"github.com/blockbroadcast/simulator/block"
	"github.com/blockbroadcast/simulator/envelope"
	"github.com/blockbroadcast/simulator/gate"
	"github.com/blockbroadcast/simulator/kernel"
	"github.com/blockbroadcast/simulator/simclock"
	"github.com/stretchr/testify/require"
)

type recordedDelivery struct {
	at   simclock.AbsTime
	peer int
	msg  envelope.Message
}

type captureReceiver struct {
	k        *kernel.Kernel
	received []recordedDelivery
}

func (r *captureReceiver) ReceiveFromPeer(peerIndex int, msg envelope.Message) {
	r.received = append(r.received, recordedDelivery{at: r.k.Now(), peer: peerIndex, msg: msg})
}

type noopReceiver struct{}

func (noopReceiver) ReceiveFromPeer(int, envelope.Message) {}

// TestRateLimitedChunkedPullTiming reproduces spec scenario S2: a single
// sender and receiver, outgoingRate = 10^6 bps, totalChunks = 100. The
// first chunk should emerge 20ms after submission and the full block
// should finish assembling 2s after submission (no channel delay here).
func TestRateLimitedChunkedPullTiming(t *testing.T) {
	k := kernel.New()
	recv := &captureReceiver{k: k}

	sender := New(0, 0, 1_000_000, noopReceiver{})
	receiver := New(1, 0, 0, recv)
	sender.Connect(&PeerLink{LocalIndex: 0, RemoteIndex: 0, Link: gate.Channel{To: receiver}})

	b := block.Block{Miner: 1, Seq: 1}
	bits := envelope.ChunkBitLength(100)
	require.Equal(t, 20_000, bits)

	for i := 0; i < 100; i++ {
		sender.SubmitFromInner(k, 0, envelope.BlockChunk{Block: b, ChunkID: i, Bits: bits})
	}

	require.NoError(t, k.RunUntilEmpty())
	require.Len(t, recv.received, 100)
	require.Equal(t, simclock.Zero.Add(20*time.Millisecond), recv.received[0].at)
	require.Equal(t, simclock.Zero.Add(2*time.Second), recv.received[99].at)
}

// TestEgressQueueDrainsHigherPeerIndexFirst reproduces spec scenario S6:
// two peers at indices 0 and 3 both request the full block at once; the
// sender's egress queue must drain every chunk addressed to peer 3 before
// any addressed to peer 0, even though chunks were submitted interleaved.
func TestEgressQueueDrainsHigherPeerIndexFirst(t *testing.T) {
	k := kernel.New()
	recv := &captureReceiver{k: k}

	sender := New(0, 0, 1_000_000, noopReceiver{})
	peer0 := New(1, 0, 0, recv)
	peer3 := New(2, 0, 0, recv)
	sender.Connect(&PeerLink{LocalIndex: 0, RemoteIndex: 0, Link: gate.Channel{To: peer0}})
	sender.Connect(&PeerLink{LocalIndex: 3, RemoteIndex: 3, Link: gate.Channel{To: peer3}})

	b := block.Block{Miner: 1, Seq: 1}
	bits := envelope.ChunkBitLength(100)

	for i := 0; i < 100; i++ {
		sender.SubmitFromInner(k, 0, envelope.BlockChunk{Block: b, ChunkID: i, Bits: bits})
		sender.SubmitFromInner(k, 3, envelope.BlockChunk{Block: b, ChunkID: i, Bits: bits})
	}

	require.NoError(t, k.RunUntilEmpty())
	require.Len(t, recv.received, 200)

	firstPeer0 := -1
	peer3Count := 0
	for i, d := range recv.received {
		if d.peer == 0 && firstPeer0 == -1 {
			firstPeer0 = i
		}
		if d.peer == 3 {
			peer3Count++
		}
	}
	require.Equal(t, 100, peer3Count)
	require.Equal(t, 100, firstPeer0, "every peer-3 chunk must drain before the first peer-0 chunk")
}

// TestZeroRateIsUnshaped verifies spec §6's "0 disables shaping": with
// outgoingRate == 0 a submission reaches the peer with no queueing delay.
func TestZeroRateIsUnshaped(t *testing.T) {
	k := kernel.New()
	recv := &captureReceiver{k: k}

	sender := New(0, 0, 0, noopReceiver{})
	receiver := New(1, 0, 0, recv)
	sender.Connect(&PeerLink{LocalIndex: 0, RemoteIndex: 0, Link: gate.Channel{Delay: 5 * time.Millisecond, To: receiver}})

	b := block.Block{Miner: 1, Seq: 1}
	sender.SubmitFromInner(k, 0, envelope.BlockChunk{Block: b, ChunkID: 0, Bits: 20_000})

	require.NoError(t, k.RunUntilEmpty())
	require.Len(t, recv.received, 1)
	require.Equal(t, simclock.Zero.Add(5*time.Millisecond), recv.received[0].at)
}

// TestControlMessagesPassThroughRegardlessOfRate verifies that a zero
// bit-length envelope (e.g. GetBlock) is never shaped, even when the
// configured rate is non-zero.
func TestControlMessagesPassThroughRegardlessOfRate(t *testing.T) {
	k := kernel.New()
	recv := &captureReceiver{k: k}

	sender := New(0, 0, 1_000, noopReceiver{})
	receiver := New(1, 0, 0, recv)
	sender.Connect(&PeerLink{LocalIndex: 0, RemoteIndex: 0, Link: gate.Channel{To: receiver}})

	b := block.Block{Miner: 1, Seq: 1}
	sender.SubmitFromInner(k, 0, envelope.GetBlock{Block: b})

	require.NoError(t, k.RunUntilEmpty())
	require.Len(t, recv.received, 1)
	require.Equal(t, simclock.Zero, recv.received[0].at)
}

// TestOutQueueLengthTracksBacklog exercises the accessor discipline C's
// fill step polls against its 5000-entry cap.
func TestOutQueueLengthTracksBacklog(t *testing.T) {
	k := kernel.New()
	sender := New(0, 0, 1_000_000, noopReceiver{})
	receiver := New(1, 0, 0, noopReceiver{})
	sender.Connect(&PeerLink{LocalIndex: 0, RemoteIndex: 0, Link: gate.Channel{To: receiver}})

	b := block.Block{Miner: 1, Seq: 1}
	for i := 0; i < 5; i++ {
		sender.SubmitFromInner(k, 0, envelope.BlockChunk{Block: b, ChunkID: i, Bits: 20_000})
	}
	// nothing has been delivered yet; all five submissions sit queued
	// behind the scheduled (but not yet fired) nextSend self-event
	require.Equal(t, 5, sender.OutQueueLength())
}

func TestPeerIndicesReturnsConnectedPeersSorted(t *testing.T) {
	sender := New(0, 0, 0, noopReceiver{})
	require.Empty(t, sender.PeerIndices())

	receiver := New(1, 0, 0, noopReceiver{})
	sender.Connect(&PeerLink{LocalIndex: 2, RemoteIndex: 0, Link: gate.Channel{To: receiver}})
	sender.Connect(&PeerLink{LocalIndex: 1, RemoteIndex: 0, Link: gate.Channel{To: receiver}})

	require.Equal(t, []int{1, 2}, sender.PeerIndices())
}

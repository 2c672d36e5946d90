package envelope

import (
	"testing"

	"github.com/blockbroadcast/simulator/block"
	"github.com/stretchr/testify/require"
)

func TestControlMessagesCarryNoBits(t *testing.T) {
	b := block.Block{Miner: 1, Seq: 1}
	require.Equal(t, 0, NewBlockHash{Block: b}.BitLength())
	require.Equal(t, 0, GetBlock{Block: b}.BitLength())
	require.Equal(t, 0, GetBlockChunk{Block: b}.BitLength())
	require.Equal(t, 0, GetBlockChunks{Block: b}.BitLength())
	require.Equal(t, 0, BlockAvailability{Block: b}.BitLength())
	require.Equal(t, 0, GotBlock{Epoch: 1, Node: 1}.BitLength())
	require.Equal(t, 0, NewBlock{Block: b}.BitLength())
}

func TestNewBlockCarriesItsWireSize(t *testing.T) {
	m := NewBlock{Block: block.Block{Miner: 1, Seq: 1}, Bits: TotalBlockBits}
	require.Equal(t, 2_000_000, m.BitLength())
}

func TestChunkBitLengthMatchesScenarioS2(t *testing.T) {
	// spec scenario S2: totalChunks = 100, outgoingRate = 10^6 bps, first
	// chunk emerges after 2*10^4 / 10^6 = 20ms of service time.
	bits := ChunkBitLength(100)
	require.Equal(t, 20_000, bits)

	chunk := BlockChunk{Block: block.Block{Miner: 1, Seq: 1}, ChunkID: 0, Bits: bits}
	require.Equal(t, 20_000, chunk.BitLength())
}

func TestChunkBitLengthDiscardsResidue(t *testing.T) {
	require.Equal(t, 666_666, ChunkBitLength(3))
}

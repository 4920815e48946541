package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessagePadsToPayloadMultiple(t *testing.T) {
	msg, err := NewMessage(1, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint16(1), msg.NumPackets)
	assert.Len(t, msg.Bytes(), 60)
}

func TestNewMessageExactMultipleNeedsNoPadding(t *testing.T) {
	payload := make([]byte, 120)
	msg, err := NewMessage(2, payload)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), msg.NumPackets)
	assert.Len(t, msg.Bytes(), 120)
}

func TestNewMessageRejectsEmptyPayload(t *testing.T) {
	_, err := NewMessage(3, nil)
	require.Error(t, err)
}

func TestFrameRoundTrip(t *testing.T) {
	f := NewDataFrame(7, []byte("abc"))
	wire := f.Marshal()
	got := UnmarshalFrame(wire)
	assert.Equal(t, uint16(7), got.SeqNum)
	assert.Equal(t, FrameData, got.Type)
	assert.Equal(t, uint8(3), got.PayloadSize)
	assert.Equal(t, byte('a'), got.Payload[0])
}

func TestHeaderFrameRoundTrip(t *testing.T) {
	f := NewHeaderFrame(9, 42)
	wire := f.Marshal()
	got := UnmarshalFrame(wire)
	msgType, numPackets := ParseHeaderPayload(got)
	assert.Equal(t, uint8(9), msgType)
	assert.Equal(t, uint16(42), numPackets)
}

func TestReassemblerAssemblesInOrder(t *testing.T) {
	chunkA := make([]byte, 60)
	chunkA[0] = 0xAA
	chunkB := make([]byte, 60)
	chunkB[0] = 0xBB

	r := newReassembler(1, 2)
	r.add(2, chunkB)
	assert.False(t, r.complete())
	r.add(1, chunkA)
	assert.True(t, r.complete())

	msg := r.message()
	assert.Equal(t, byte(0xAA), msg.Bytes()[0])
	assert.Equal(t, byte(0xBB), msg.Bytes()[60])
}

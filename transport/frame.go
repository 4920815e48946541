// Package transport implements the fixed 64-byte framed UART protocol
// linking the flight computer to its co-processor: HEADER/DATA/ACK/NACK/RESET frames,
// sequencing, and a stop-and-wait sender/receiver pair.
package transport

import (
	"encoding/binary"

	"github.com/lunasat/fsw-core/internal/constants"
)

// FrameType identifies a frame's role in the protocol.
type FrameType uint8

const (
	FrameHeader FrameType = iota
	FrameData
	FrameAck
	FrameNack
	FrameReset
)

func (t FrameType) String() string {
	switch t {
	case FrameHeader:
		return "HEADER"
	case FrameData:
		return "DATA"
	case FrameAck:
		return "ACK"
	case FrameNack:
		return "NACK"
	case FrameReset:
		return "RESET"
	default:
		return "UNKNOWN"
	}
}

// Frame is one 64-byte unit on the wire: a 2-byte sequence number, a
// 1-byte type, a 1-byte payload size, and a fixed 60-byte payload.
type Frame struct {
	SeqNum      uint16
	Type        FrameType
	PayloadSize uint8
	Payload     [constants.FramePayloadSize]byte
}

// Marshal encodes the frame into its wire form, little-endian, with no
// padding between fields.
func (f Frame) Marshal() [constants.FrameSize]byte {
	var buf [constants.FrameSize]byte
	binary.LittleEndian.PutUint16(buf[0:2], f.SeqNum)
	buf[2] = byte(f.Type)
	buf[3] = f.PayloadSize
	copy(buf[4:], f.Payload[:])
	return buf
}

// UnmarshalFrame decodes a wire frame.
func UnmarshalFrame(buf [constants.FrameSize]byte) Frame {
	var f Frame
	f.SeqNum = binary.LittleEndian.Uint16(buf[0:2])
	f.Type = FrameType(buf[2])
	f.PayloadSize = buf[3]
	copy(f.Payload[:], buf[4:])
	return f
}

// NewHeaderFrame builds the HEADER frame that opens a Message: message
// type, a reserved byte, and the little-endian packet count.
func NewHeaderFrame(messageType uint8, numPackets uint16) Frame {
	f := Frame{SeqNum: 0, Type: FrameHeader, PayloadSize: constants.HeaderPayloadSize}
	f.Payload[0] = messageType
	f.Payload[1] = 0
	binary.LittleEndian.PutUint16(f.Payload[2:4], numPackets)
	return f
}

// ParseHeaderPayload extracts the message type and packet count from a
// HEADER frame.
func ParseHeaderPayload(f Frame) (messageType uint8, numPackets uint16) {
	messageType = f.Payload[0]
	numPackets = binary.LittleEndian.Uint16(f.Payload[2:4])
	return
}

// NewDataFrame builds a DATA frame carrying one chunk of up to 60 bytes at
// the given sequence number; PayloadSize is the chunk's length.
func NewDataFrame(seq uint16, chunk []byte) Frame {
	f := Frame{SeqNum: seq, Type: FrameData, PayloadSize: uint8(len(chunk))}
	copy(f.Payload[:], chunk)
	return f
}

// NewAckFrame builds an ACK acknowledging the given sequence number.
func NewAckFrame(seq uint16) Frame {
	return Frame{SeqNum: seq, Type: FrameAck}
}

// NewNackFrame builds a NACK rejecting the given sequence number.
func NewNackFrame(seq uint16) Frame {
	return Frame{SeqNum: seq, Type: FrameNack}
}

// NewResetFrame builds a RESET frame, aborting the in-progress message.
func NewResetFrame() Frame {
	return Frame{Type: FrameReset}
}

package transport

import (
	"fmt"

	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/internal/bufpool"
	"github.com/lunasat/fsw-core/internal/constants"
)

// Message is an application payload split into fixed 60-byte chunks for
// transmission as a HEADER frame followed by one DATA frame per chunk.
type Message struct {
	Type       uint8
	NumPackets uint16
	padded     []byte // Payload, zero-padded to a multiple of 60 bytes
}

// NewMessage pads payload to a multiple of the frame payload size and
// computes the packet count the HEADER frame will advertise.
func NewMessage(messageType uint8, payload []byte) (*Message, error) {
	if len(payload) == 0 {
		return nil, fsw.NewError("transport.NewMessage", fsw.ErrTransport, "message data must not be empty")
	}

	padLen := constants.FramePayloadSize - len(payload)%constants.FramePayloadSize
	if padLen == constants.FramePayloadSize {
		padLen = 0
	}
	padded := make([]byte, len(payload)+padLen)
	copy(padded, payload)

	numPackets := len(padded) / constants.FramePayloadSize
	if numPackets > constants.MaxPacketsPerMessage {
		return nil, fsw.NewError("transport.NewMessage", fsw.ErrTransport,
			fmt.Sprintf("message needs %d packets, exceeds limit of %d", numPackets, constants.MaxPacketsPerMessage))
	}

	return &Message{Type: messageType, NumPackets: uint16(numPackets), padded: padded}, nil
}

// Chunks splits the padded payload into its per-frame 60-byte pieces.
func (m *Message) Chunks() [][]byte {
	chunks := make([][]byte, m.NumPackets)
	for i := range chunks {
		start := i * constants.FramePayloadSize
		chunks[i] = m.padded[start : start+constants.FramePayloadSize]
	}
	return chunks
}

// Bytes returns the full zero-padded payload (length NumPackets*60).
func (m *Message) Bytes() []byte {
	return m.padded
}

// Release returns a received Message's reassembly buffer to the bufpool
// once the caller is done reading it, saving an allocation on the next
// receive of a similarly sized message. Safe to call on any Message,
// including ones built by NewMessage; bufpool.Put silently drops buffers
// whose capacity doesn't match a pooled bucket.
func (m *Message) Release() {
	bufpool.Put(m.padded)
}

// reassembler accumulates DATA frame chunks as the receiver reads them.
type reassembler struct {
	messageType uint8
	numPackets  uint16
	chunks      [][]byte
}

func newReassembler(messageType uint8, numPackets uint16) *reassembler {
	return &reassembler{messageType: messageType, numPackets: numPackets, chunks: make([][]byte, numPackets)}
}

func (r *reassembler) add(seq uint16, payload []byte) {
	idx := int(seq) - 1
	if idx < 0 || idx >= len(r.chunks) {
		return
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	r.chunks[idx] = buf
}

func (r *reassembler) complete() bool {
	for _, c := range r.chunks {
		if c == nil {
			return false
		}
	}
	return true
}

func (r *reassembler) message() *Message {
	total := bufpool.Get(int(r.numPackets) * constants.FramePayloadSize)
	for _, c := range r.chunks {
		total = append(total, c...)
	}
	return &Message{Type: r.messageType, NumPackets: r.numPackets, padded: total}
}

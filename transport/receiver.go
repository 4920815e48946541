package transport

import (
	"context"

	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/internal/constants"
	"github.com/lunasat/fsw-core/internal/interfaces"
)

// Receiver drives the stop-and-wait receive side: read the HEADER, ACK
// it, then read each DATA frame in order, NACKing anything out of
// sequence until the sender retransmits it correctly.
type Receiver struct {
	uart   UART
	logger interfaces.Logger
}

// NewReceiver creates a Receiver reading from uart.
func NewReceiver(uart UART, logger interfaces.Logger) *Receiver {
	return &Receiver{uart: uart, logger: logger}
}

// ReceiveMessage blocks until a full Message has been reassembled, the
// sender sends RESET, or the retry budget is exhausted.
func (r *Receiver) ReceiveMessage(ctx context.Context) (*Message, error) {
	messageType, numPackets, err := r.awaitHeader(ctx)
	if err != nil {
		return nil, fsw.WrapError("transport.Receiver.ReceiveMessage", err)
	}

	reasm := newReassembler(messageType, numPackets)
	expected := uint16(1)
	budget := int(numPackets) * (constants.MaxRetransmits + 1)

	for !reasm.complete() {
		if budget <= 0 {
			return nil, fsw.NewError("transport.Receiver.ReceiveMessage", fsw.ErrTransport, "retry budget exhausted reassembling message")
		}
		budget--

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		wire, err := r.uart.ReadFrame(ctx)
		if err != nil {
			continue
		}
		rf := UnmarshalFrame(wire)

		if rf.Type == FrameReset {
			return nil, fsw.NewError("transport.Receiver.ReceiveMessage", fsw.ErrTransport, "sender sent RESET")
		}

		if rf.Type != FrameData || rf.SeqNum != expected {
			_ = r.uart.WriteFrame(ctx, NewNackFrame(expected).Marshal())
			continue
		}

		reasm.add(rf.SeqNum, rf.Payload[:rf.PayloadSize])
		if err := r.uart.WriteFrame(ctx, NewAckFrame(rf.SeqNum).Marshal()); err != nil {
			return nil, fsw.WrapError("transport.Receiver.ReceiveMessage", err)
		}
		expected++
	}

	return reasm.message(), nil
}

// awaitHeader waits for a HEADER frame, NACKing anything else, up to
// MaxRetransmits times.
func (r *Receiver) awaitHeader(ctx context.Context) (messageType uint8, numPackets uint16, err error) {
	for attempt := 0; attempt <= constants.MaxRetransmits; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return 0, 0, cerr
		}

		wire, rerr := r.uart.ReadFrame(ctx)
		if rerr != nil {
			err = rerr
			continue
		}
		rf := UnmarshalFrame(wire)

		if rf.Type == FrameReset {
			return 0, 0, fsw.NewError("transport.Receiver.awaitHeader", fsw.ErrTransport, "sender sent RESET")
		}
		if rf.Type != FrameHeader {
			_ = r.uart.WriteFrame(ctx, NewNackFrame(rf.SeqNum).Marshal())
			err = fsw.NewError("transport.Receiver.awaitHeader", fsw.ErrTransport, "expected HEADER frame")
			continue
		}

		messageType, numPackets = ParseHeaderPayload(rf)
		if werr := r.uart.WriteFrame(ctx, NewAckFrame(0).Marshal()); werr != nil {
			return 0, 0, fsw.WrapError("transport.Receiver.awaitHeader", werr)
		}
		return messageType, numPackets, nil
	}

	if err == nil {
		err = fsw.NewError("transport.Receiver.awaitHeader", fsw.ErrTransport, "retransmits exhausted awaiting HEADER")
	}
	return 0, 0, fsw.WrapError("transport.Receiver.awaitHeader", err)
}

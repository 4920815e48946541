package transport

import (
	"context"

	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/internal/constants"
	"github.com/lunasat/fsw-core/internal/interfaces"
)

// Sender drives the stop-and-wait transmit side of the protocol. It never
// advances past an un-acked frame: current_seq only moves forward on a
// matching ACK, holds in place on NACK, and snaps back to 0 (resending the
// HEADER) on RESET or any other protocol violation, exactly as spec.md
// §4.5 describes. A bounded restart budget keeps a permanently broken
// link from hanging SendMessage forever.
type Sender struct {
	uart   UART
	logger interfaces.Logger
}

// NewSender creates a Sender writing to uart.
func NewSender(uart UART, logger interfaces.Logger) *Sender {
	return &Sender{uart: uart, logger: logger}
}

// SendMessage transmits msg as a HEADER frame followed by one DATA frame
// per chunk, stop-and-wait, restarting at seq 0 on RESET or a protocol
// error.
func (s *Sender) SendMessage(ctx context.Context, msg *Message) error {
	chunks := msg.Chunks()
	total := int(msg.NumPackets)

	currentSeq := 0
	restarts := 0
	maxRestarts := (total + 1) * constants.MaxRetransmits

	for currentSeq <= total {
		if err := ctx.Err(); err != nil {
			return err
		}

		var frame Frame
		if currentSeq == 0 {
			frame = NewHeaderFrame(msg.Type, msg.NumPackets)
		} else {
			frame = NewDataFrame(uint16(currentSeq), chunks[currentSeq-1])
		}

		if err := s.uart.WriteFrame(ctx, frame.Marshal()); err != nil {
			return fsw.WrapError("transport.Sender.SendMessage", err)
		}

		resp, err := s.uart.ReadFrame(ctx)
		if err != nil {
			if restarts, err = s.restart(&currentSeq, restarts, maxRestarts); err != nil {
				return fsw.WrapError("transport.Sender.SendMessage", err)
			}
			continue
		}

		rf := UnmarshalFrame(resp)
		switch rf.Type {
		case FrameAck:
			if int(rf.SeqNum) == currentSeq {
				currentSeq++
				continue
			}
			if restarts, err = s.restart(&currentSeq, restarts, maxRestarts); err != nil {
				return fsw.WrapError("transport.Sender.SendMessage", err)
			}
		case FrameNack:
			// Hold at currentSeq; the next loop iteration resends it.
			if restarts, err = s.checkBudget(restarts, maxRestarts); err != nil {
				return fsw.WrapError("transport.Sender.SendMessage", err)
			}
		case FrameReset:
			if restarts, err = s.restart(&currentSeq, restarts, maxRestarts); err != nil {
				return fsw.WrapError("transport.Sender.SendMessage", err)
			}
		default:
			if restarts, err = s.restart(&currentSeq, restarts, maxRestarts); err != nil {
				return fsw.WrapError("transport.Sender.SendMessage", err)
			}
		}
	}
	return nil
}

// restart snaps currentSeq back to 0 and consumes one unit of restart
// budget, returning a TransportError once the budget is exhausted.
func (s *Sender) restart(currentSeq *int, restarts, maxRestarts int) (int, error) {
	restarts, err := s.checkBudget(restarts, maxRestarts)
	if err != nil {
		return restarts, err
	}
	*currentSeq = 0
	return restarts, nil
}

func (s *Sender) checkBudget(restarts, maxRestarts int) (int, error) {
	restarts++
	if restarts > maxRestarts {
		return restarts, fsw.NewError("transport.Sender.SendMessage", fsw.ErrTransport, "restart budget exhausted")
	}
	return restarts, nil
}

package tasks

import (
	"context"

	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/internal/interfaces"
	"github.com/lunasat/fsw-core/transport"
)

// DownlinkStore is the slice of DataStore the downlink task needs: lease
// a file, read it, and report the outcome back.
type DownlinkStore interface {
	RequestTMPath(tag string, latest bool) (string, error)
	NotifyTMPath(tag, path string, success bool) error
	ReadFile(path string) ([]byte, error)
}

// DownlinkSender is the slice of transport.Sender the downlink task
// needs, kept as an interface so tests can swap in a fake without a real
// UART.
type DownlinkSender interface {
	SendMessage(ctx context.Context, msg *transport.Message) error
}

// Downlink bridges the DataStore and the FramedTransport: each
// activation leases the oldest untransmitted file from tag, sends it to
// the co-processor as one Message, and reports success or failure back
// to the DataStore so the file is queued for deletion or returned to the
// pool of candidates on the next activation. This is the single task
// spec.md §2 assigns the data-flow arrow "Downlink Task →
// DataStore.request_tm_path → FramedTransport → notify_tm_path", a
// pairing the original source keeps split across apps/data_handler.py
// and jetson-comm/jetson_comm.py.
type Downlink struct {
	fsw.Base
	store       DownlinkStore
	sender      DownlinkSender
	tag         string
	messageType uint8
}

// NewDownlink constructs a Downlink task transmitting files leased from
// tag in store, over sender, tagged with messageType on the wire.
func NewDownlink(store DownlinkStore, sender DownlinkSender, tag string, messageType uint8, logger interfaces.Logger, observer interfaces.Observer) *Downlink {
	t := &Downlink{Base: newBase(IDDownlink, "DOWNLINK", logger, observer), store: store, sender: sender, tag: tag, messageType: messageType}
	t.MainTask = t.mainTask
	return t
}

func (t *Downlink) mainTask(ctx context.Context) error {
	path, err := t.store.RequestTMPath(t.tag, false)
	if err != nil {
		if fsw.IsCode(err, fsw.ErrIO) {
			// Nothing queued for transmit this activation; not an error.
			return nil
		}
		return fsw.WrapError("tasks.Downlink", err)
	}

	data, err := t.store.ReadFile(path)
	if err != nil {
		return fsw.WrapError("tasks.Downlink", err)
	}

	msg, err := transport.NewMessage(t.messageType, data)
	if err != nil {
		return fsw.WrapError("tasks.Downlink", err)
	}

	sendErr := t.sender.SendMessage(ctx, msg)
	if notifyErr := t.store.NotifyTMPath(t.tag, path, sendErr == nil); notifyErr != nil {
		if t.Logger != nil {
			t.Logger.Warn("downlink notify failed", "path", path, "err", notifyErr)
		}
	}
	if sendErr != nil {
		return fsw.WrapError("tasks.Downlink", sendErr)
	}
	return nil
}

var _ fsw.Task = (*Downlink)(nil)

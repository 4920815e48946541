package tasks

import (
	"context"

	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/internal/interfaces"
)

// OBDHStore is the slice of DataStore the housekeeping task drives:
// bring-up (Scan, DeleteAll) and steady-state maintenance (CleanUp).
type OBDHStore interface {
	Scan() error
	DeleteAll() error
	CleanUp() error
}

// ModeSwitcher is the slice of StateManager the housekeeping task needs:
// read the current mode and request a transition out of STARTUP once
// bring-up is done.
type ModeSwitcher interface {
	ModeReader
	SwitchTo(ctx context.Context, newMode string) error
}

// OBDH is the on-board data handler's housekeeping task: it owns the
// DataStore's bring-up (clearing and re-scanning mass storage on
// STARTUP) and its steady-state maintenance (draining delete_paths on
// every NOMINAL activation). It is the Go rendition of tasks/obdh.py,
// with the commented-out NOMINAL clean_up branch in the original
// source enabled here rather than left dormant.
type OBDH struct {
	fsw.Base
	sm      ModeSwitcher
	store   OBDHStore
	scanned bool
}

// NewOBDH constructs the OBDH housekeeping task.
func NewOBDH(sm ModeSwitcher, store OBDHStore, logger interfaces.Logger, observer interfaces.Observer) *OBDH {
	t := &OBDH{Base: newBase(IDOBDH, "OBDH", logger, observer), sm: sm, store: store}
	t.MainTask = t.mainTask
	return t
}

func (t *OBDH) mainTask(ctx context.Context) error {
	switch t.sm.Current() {
	case "STARTUP":
		if err := t.store.DeleteAll(); err != nil {
			return fsw.WrapError("tasks.OBDH", err)
		}
		if !t.scanned {
			if err := t.store.Scan(); err != nil {
				return fsw.WrapError("tasks.OBDH", err)
			}
			t.scanned = true
		}
		return t.sm.SwitchTo(ctx, "NOMINAL")
	case "NOMINAL":
		if err := t.store.CleanUp(); err != nil {
			return fsw.WrapError("tasks.OBDH", err)
		}
	}
	return nil
}

var _ fsw.Task = (*OBDH)(nil)

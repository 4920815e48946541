package tasks

import (
	"context"

	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/internal/interfaces"
)

// ModeReader is the minimal view Timing needs of the StateManager: just
// the current mode name, not the ability to switch modes.
type ModeReader interface {
	Current() string
}

// Timing reports the vehicle's current mode every activation. It is the
// placeholder tasks/timing.py grew into: the original prints "no time
// distribution & handling yet" and stops there, so this task's body
// matches that scope rather than inventing an on-board clock sync this
// spec doesn't ask for.
type Timing struct {
	fsw.Base
	sm ModeReader
}

// NewTiming constructs a Timing task bound to sm for mode reporting.
func NewTiming(sm ModeReader, logger interfaces.Logger, observer interfaces.Observer) *Timing {
	t := &Timing{Base: newBase(IDTiming, "TIMING", logger, observer), sm: sm}
	t.MainTask = t.mainTask
	return t
}

func (t *Timing) mainTask(ctx context.Context) error {
	if t.Logger != nil {
		t.Logger.Debug("timing tick", "mode", t.sm.Current())
	}
	return nil
}

var _ fsw.Task = (*Timing)(nil)

// Package tasks provides the concrete Task implementations that run under
// the Scheduler: system monitoring, time distribution, sensor collection,
// on-board data handling, and downlink. Each embeds fsw.Base the way every
// Python task subclassed DebugTask, picking up the fixed Run/MainTask
// wrapper for free.
package tasks

import (
	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/internal/interfaces"
)

// Task IDs, stable across the registry the way the original source pinned
// a numeric ID to each tasks/*.py module.
const (
	IDMonitor  uint8 = 0x00
	IDTiming   uint8 = 0x01
	IDOBDH     uint8 = 0x02
	IDDownlink uint8 = 0x03
	IDIMU      uint8 = 0x05
)

// newBase builds the fsw.Base every concrete task here embeds, wiring its
// identity and the shared logger/observer. The caller sets MainTask once
// the concrete task's own method set exists, since MainTask closes over
// the task itself.
func newBase(id uint8, name string, logger interfaces.Logger, observer interfaces.Observer) fsw.Base {
	return fsw.Base{
		TaskID:   id,
		TaskName: name,
		Logger:   logger,
		Observer: observer,
	}
}

package fsw

import (
	"context"

	"github.com/lunasat/fsw-core/internal/interfaces"
)

// Task is the unit of work the Scheduler dispatches. Implementations
// embed Base and override MainTask.
type Task interface {
	ID() uint8
	Name() string
	Run(ctx context.Context)
}

// TaskFactory constructs a fresh Task instance, the way a registry entry
// instantiates a registered task class once at startup.
type TaskFactory func() Task

// Base provides the fixed Run wrapper every Task gets for free: call
// MainTask, and if it returns an error, log it and swallow it. A task
// that errors stays in the active set; it simply runs again at its next
// due time.
type Base struct {
	TaskID   uint8
	TaskName string
	MainTask func(ctx context.Context) error
	Logger   interfaces.Logger
	Observer interfaces.Observer
}

func (b *Base) ID() uint8 {
	return b.TaskID
}

func (b *Base) Name() string {
	return b.TaskName
}

// Run executes MainTask once, logging and discarding any error it returns.
func (b *Base) Run(ctx context.Context) {
	if b.MainTask == nil {
		return
	}
	if err := b.MainTask(ctx); err != nil {
		if b.Logger != nil {
			b.Logger.Error("task error", "task", b.TaskName, "err", err)
		}
		if b.Observer != nil {
			b.Observer.ObserveTaskError(b.TaskName, err)
		}
	}
}

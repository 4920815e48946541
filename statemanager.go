package fsw

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lunasat/fsw-core/internal/interfaces"
)

// ModeEntry describes one task's activation within a Mode.
type ModeEntry struct {
	TaskName      string
	Period        time.Duration
	Priority      int
	ScheduleLater bool
	Delay         time.Duration // only meaningful when ScheduleLater is true
}

// Mode is a named vehicle state: the set of tasks active while in it, the
// modes it may transition to, and hooks run on entry/exit.
type Mode struct {
	Name    string
	Entries []ModeEntry
	MovesTo []string
	OnEnter []func(ctx context.Context) error
	OnExit  []func(ctx context.Context) error
}

// StateManager drives the Scheduler's active task set according to the
// vehicle's current Mode, enforcing the permitted-transition graph.
type StateManager struct {
	mu sync.Mutex

	scheduler *Scheduler
	registry  map[string]TaskFactory
	modes     map[string]*Mode

	current        string
	tasks          map[string]Task
	scheduledTasks map[string]*ScheduledTask

	logger   interfaces.Logger
	observer interfaces.Observer
}

// NewStateManager constructs a StateManager. logger and observer may be
// nil.
func NewStateManager(scheduler *Scheduler, registry map[string]TaskFactory, modes map[string]*Mode, logger interfaces.Logger, observer interfaces.Observer) *StateManager {
	if observer == nil {
		observer = NoOpObserver{}
	}
	return &StateManager{
		scheduler:      scheduler,
		registry:       registry,
		modes:          modes,
		scheduledTasks: make(map[string]*ScheduledTask),
		logger:         logger,
		observer:       observer,
	}
}

// Start instantiates every registered Task exactly once, then activates
// startMode without checking a permitted-transition list; there is no
// prior mode to have permitted it. A Task instance survives every later
// mode switch -- it is only activated and deactivated, never rebuilt.
func (sm *StateManager) Start(ctx context.Context, startMode string) error {
	sm.mu.Lock()
	if sm.tasks == nil {
		sm.tasks = make(map[string]Task, len(sm.registry))
	}
	for name, factory := range sm.registry {
		if _, ok := sm.tasks[name]; !ok {
			sm.tasks[name] = factory()
		}
	}
	sm.mu.Unlock()
	return sm.switchTo(ctx, startMode, true)
}

// SwitchTo transitions to newMode if it is a permitted successor of the
// current mode. On any failure the current mode is left unchanged.
func (sm *StateManager) SwitchTo(ctx context.Context, newMode string) error {
	return sm.switchTo(ctx, newMode, false)
}

// Current returns the active mode's name.
func (sm *StateManager) Current() string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current
}

func (sm *StateManager) switchTo(ctx context.Context, newModeName string, first bool) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	mode, ok := sm.modes[newModeName]
	if !ok {
		return NewError("StateManager.SwitchTo", ErrConfiguration, fmt.Sprintf("unknown mode %q", newModeName))
	}

	var curMode *Mode
	if !first {
		curMode, ok = sm.modes[sm.current]
		if !ok {
			return NewError("StateManager.SwitchTo", ErrConfiguration, fmt.Sprintf("current mode %q is no longer registered", sm.current))
		}
		if !permits(curMode, newModeName) {
			return NewError("StateManager.SwitchTo", ErrConfiguration,
				fmt.Sprintf("mode %q cannot move to %q", sm.current, newModeName))
		}
	}

	// Resolve the new mode's task set from the already-instantiated
	// registry before touching anything from the old mode, so an
	// unregistered task name leaves current mode untouched. Task
	// instances are never rebuilt here -- only (re)activated.
	newTasks := make(map[string]Task, len(mode.Entries))
	for _, e := range mode.Entries {
		t, ok := sm.tasks[e.TaskName]
		if !ok {
			return NewError("StateManager.SwitchTo", ErrConfiguration,
				fmt.Sprintf("task %q is not registered", e.TaskName))
		}
		newTasks[e.TaskName] = t
	}

	if curMode != nil {
		for _, hook := range curMode.OnExit {
			if err := hook(ctx); err != nil {
				return WrapError("StateManager.SwitchTo.OnExit", err)
			}
		}
	}

	for _, st := range sm.scheduledTasks {
		st.Stop()
	}
	sm.scheduledTasks = make(map[string]*ScheduledTask, len(mode.Entries))

	for _, e := range mode.Entries {
		t := newTasks[e.TaskName]
		var st *ScheduledTask
		if e.ScheduleLater {
			st = sm.scheduler.ScheduleLater(t, e.Delay, e.Period, e.Priority)
		} else {
			st = sm.scheduler.Schedule(t, e.Period, e.Priority)
		}
		sm.scheduledTasks[e.TaskName] = st
	}

	for _, hook := range mode.OnEnter {
		if err := hook(ctx); err != nil {
			return WrapError("StateManager.SwitchTo.OnEnter", err)
		}
	}

	prev := sm.current
	sm.current = newModeName
	sm.observer.ObserveModeTransition(prev, newModeName)
	return nil
}

func permits(mode *Mode, target string) bool {
	for _, m := range mode.MovesTo {
		if m == target {
			return true
		}
	}
	return false
}

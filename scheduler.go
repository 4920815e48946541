package fsw

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lunasat/fsw-core/internal/interfaces"
)

// ScheduledTask is a handle to a task the Scheduler is dispatching. Calling
// Stop removes it from the active set; it takes effect between dispatches,
// never mid-run.
type ScheduledTask struct {
	task     Task
	period   time.Duration
	priority int
	seq      uint64
	nextDue  time.Time
	stopped  atomic.Bool
}

// Stop removes the task from the active set. Safe to call from within the
// task's own MainTask.
func (st *ScheduledTask) Stop() {
	st.stopped.Store(true)
}

// Scheduler is a cooperative, single-goroutine dispatch loop. Tasks never
// run concurrently with each other; each dispatch runs to completion
// before the next is considered.
type Scheduler struct {
	mu    sync.Mutex
	tasks []*ScheduledTask
	seq   uint64

	clock    interfaces.Clock
	logger   interfaces.Logger
	observer interfaces.Observer
}

// NewScheduler creates a Scheduler. clock, logger, and observer may be nil,
// in which case a real clock, a no-op logger, and NoOpObserver are used.
func NewScheduler(clock interfaces.Clock, logger interfaces.Logger, observer interfaces.Observer) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}
	if observer == nil {
		observer = NoOpObserver{}
	}
	return &Scheduler{clock: clock, logger: logger, observer: observer}
}

// Schedule adds a task to the active set with its first dispatch due
// immediately.
func (s *Scheduler) Schedule(task Task, period time.Duration, priority int) *ScheduledTask {
	return s.scheduleAt(task, period, priority, s.clock.Now())
}

// ScheduleLater adds a task whose first dispatch is due after delay.
func (s *Scheduler) ScheduleLater(task Task, delay, period time.Duration, priority int) *ScheduledTask {
	return s.scheduleAt(task, period, priority, s.clock.Now().Add(delay))
}

func (s *Scheduler) scheduleAt(task Task, period time.Duration, priority int, due time.Time) *ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	st := &ScheduledTask{
		task:     task,
		period:   period,
		priority: priority,
		seq:      s.seq,
		nextDue:  due,
	}
	s.tasks = append(s.tasks, st)
	return st
}

// activeTasks returns the live (non-stopped) task list, compacting out
// stopped entries.
func (s *Scheduler) activeTasks() []*ScheduledTask {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.stopped.Load() {
			live = append(live, t)
		}
	}
	s.tasks = live
	return s.tasks
}

// Run dispatches due tasks until ctx is cancelled. Within a single due set,
// tasks run in (priority ascending, next_due ascending, insertion order)
// order -- smaller priority numbers run first, ties broken by whichever has
// waited longest, then by registration order.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now := s.clock.Now()

		s.mu.Lock()
		active := s.activeTasks()
		due := dueSet(active, now)
		s.mu.Unlock()

		if len(due) == 0 {
			wait := nextWait(active, now)
			if wait <= 0 {
				wait = time.Millisecond
			}
			timer := s.clock.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C():
			}
			continue
		}

		for _, st := range due {
			if st.stopped.Load() {
				continue
			}
			start := s.clock.Now()
			st.task.Run(ctx)
			elapsed := s.clock.Now().Sub(start)
			s.observer.ObserveDispatch(st.task.Name(), uint64(elapsed.Nanoseconds()))

			resyncAt := s.clock.Now()
			next := st.nextDue.Add(st.period)
			if next.Before(resyncAt) {
				s.observer.ObserveOverrun(st.task.Name())
				next = resyncAt
			}
			st.nextDue = next
		}
	}
}

// dueSet selects and orders the tasks due at or before now.
func dueSet(tasks []*ScheduledTask, now time.Time) []*ScheduledTask {
	var due []*ScheduledTask
	for _, t := range tasks {
		if !t.nextDue.After(now) {
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].priority != due[j].priority {
			return due[i].priority < due[j].priority
		}
		if !due[i].nextDue.Equal(due[j].nextDue) {
			return due[i].nextDue.Before(due[j].nextDue)
		}
		return due[i].seq < due[j].seq
	})
	return due
}

// nextWait returns how long to sleep until the earliest due task.
func nextWait(tasks []*ScheduledTask, now time.Time) time.Duration {
	if len(tasks) == 0 {
		return time.Second
	}
	earliest := tasks[0].nextDue
	for _, t := range tasks[1:] {
		if t.nextDue.Before(earliest) {
			earliest = t.nextDue
		}
	}
	return earliest.Sub(now)
}

// realClock is the production interfaces.Clock, backed by the standard
// library.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) interfaces.Timer {
	return realTimer{t: time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) C() <-chan time.Time       { return r.t.C }
func (r realTimer) Stop() bool                { return r.t.Stop() }
func (r realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }

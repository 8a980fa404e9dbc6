package host

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// TicksPerSecond is the nominal host tick rate
const TicksPerSecond = 20

// ErrSchedulerStopped is returned by Call once the scheduler has shut down
var ErrSchedulerStopped = errors.New("scheduler stopped")

// TaskState is the lifecycle of a scheduled task
type TaskState int

const (
	TaskIdle    TaskState = iota // never scheduled (nil task)
	TaskRunning                  // scheduled and not yet stopped
	TaskStopped                  // cancelled or finished
)

// Task is a handle to a scheduled callback. A nil *Task is a valid idle task.
// Callbacks run on the tick goroutine; the state may be read or cancelled
// from anywhere.
type Task struct {
	id     uint64
	next   uint64
	period uint64
	fn     func()
	state  atomic.Int32
}

// State returns the task's lifecycle state
func (t *Task) State() TaskState {
	if t == nil {
		return TaskIdle
	}
	return TaskState(t.state.Load())
}

// Active reports whether the task will fire again
func (t *Task) Active() bool {
	return t.State() == TaskRunning
}

// Cancel stops the task. Cancelling an idle or stopped task does nothing.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.state.Store(int32(TaskStopped))
}

type call struct {
	fn   func()
	done chan struct{}
}

// Scheduler is the host's main tick loop. Every task and every Call runs on
// the goroutine that invokes Tick, so game state needs no further locking.
type Scheduler struct {
	mu     sync.Mutex
	tick   uint64
	nextID uint64
	tasks  []*Task

	calls    chan call
	stopped  chan struct{}
	stopOnce sync.Once
	cron     gocron.Scheduler
}

// NewScheduler creates a scheduler. It does not tick until Start is called
// or Tick is invoked directly.
func NewScheduler() *Scheduler {
	return &Scheduler{
		calls:   make(chan call, 256),
		stopped: make(chan struct{}),
	}
}

// Start drives Tick from a gocron singleton job every interval
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second / TicksPerSecond
	}
	cron, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	_, err = cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.Tick),
		gocron.WithName("host-tick"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = cron.Shutdown()
		return fmt.Errorf("registering tick job: %w", err)
	}
	s.cron = cron
	cron.Start()
	log.Printf("Scheduler: ticking every %v", interval)
	return nil
}

// Stop halts ticking and fails pending and future Calls
func (s *Scheduler) Stop() error {
	s.stopOnce.Do(func() { close(s.stopped) })
	if s.cron != nil {
		return s.cron.Shutdown()
	}
	return nil
}

// CurrentTick returns the number of ticks processed so far
func (s *Scheduler) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// RunTaskTimer runs fn every period ticks after an initial delay
func (s *Scheduler) RunTaskTimer(delay, period int, fn func()) *Task {
	if period < 1 {
		period = 1
	}
	return s.schedule(delay, uint64(period), fn)
}

// RunTaskLater runs fn once after delay ticks
func (s *Scheduler) RunTaskLater(delay int, fn func()) *Task {
	return s.schedule(delay, 0, fn)
}

func (s *Scheduler) schedule(delay int, period uint64, fn func()) *Task {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := &Task{
		id:     s.nextID,
		next:   s.tick + uint64(delay),
		period: period,
		fn:     fn,
	}
	t.state.Store(int32(TaskRunning))
	s.tasks = append(s.tasks, t)
	return t
}

// Call runs fn on the tick goroutine and waits for it to finish
func (s *Scheduler) Call(ctx context.Context, fn func()) error {
	select {
	case <-s.stopped:
		return ErrSchedulerStopped
	default:
	}
	c := call{fn: fn, done: make(chan struct{})}
	select {
	case s.calls <- c:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrSchedulerStopped
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrSchedulerStopped
	}
}

// Tick advances one tick: queued calls first, then every due task
func (s *Scheduler) Tick() {
	for {
		select {
		case c := <-s.calls:
			s.run(0, c.fn)
			close(c.done)
			continue
		default:
		}
		break
	}

	s.mu.Lock()
	s.tick++
	now := s.tick
	var due []*Task
	for _, t := range s.tasks {
		if t.Active() && t.next <= now {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		// an earlier task this tick may have cancelled it
		if !t.Active() {
			continue
		}
		if t.period == 0 {
			t.state.Store(int32(TaskStopped))
		} else {
			t.next = now + t.period
		}
		s.run(t.id, t.fn)
	}

	s.mu.Lock()
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if t.Active() {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(s.tasks); i++ {
		s.tasks[i] = nil
	}
	s.tasks = live
	s.mu.Unlock()
}

// Pending returns the number of live tasks
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.Active() {
			n++
		}
	}
	return n
}

func (s *Scheduler) run(id uint64, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Scheduler: task %d panicked: %v", id, r)
		}
	}()
	fn()
}

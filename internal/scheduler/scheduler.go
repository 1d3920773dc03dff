package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"marketscraper/internal/metrics"
	"marketscraper/logger"
)

var ErrAlreadyRunning = errors.New("scheduler already running")

// State is the lifecycle position of a task.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// CycleFunc performs one collection cycle. A returned error or a panic is a
// cycle-level failure and delays the next cycle by the error backoff.
type CycleFunc func(ctx context.Context) error

type Task struct {
	Name     string
	Interval time.Duration
	Cycle    CycleFunc
}

// TaskStatus is a point-in-time view of a task.
type TaskStatus struct {
	Name           string    `json:"name"`
	State          string    `json:"state"`
	Interval       string    `json:"interval"`
	Cycles         int64     `json:"cycles"`
	Failures       int64     `json:"failures"`
	LastCycleStart time.Time `json:"last_cycle_start"`
	LastError      string    `json:"last_error,omitempty"`
}

type runner struct {
	task Task

	mu             sync.RWMutex
	state          State
	cycles         int64
	failures       int64
	lastCycleStart time.Time
	lastError      string
}

// Group runs independent repeating tasks. Cycles of one task never overlap;
// tasks interleave freely.
type Group struct {
	errorBackoff time.Duration
	runners      []*runner
	log          *logger.Log

	mu       sync.Mutex
	running  bool
	stopped  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(errorBackoff time.Duration) *Group {
	if errorBackoff <= 0 {
		errorBackoff = 10 * time.Second
	}
	return &Group{
		errorBackoff: errorBackoff,
		log:          logger.GetLogger(),
		stopCh:       make(chan struct{}),
	}
}

// Add registers a task. Tasks must be added before Start.
func (g *Group) Add(task Task) error {
	if task.Name == "" || task.Cycle == nil {
		return fmt.Errorf("task requires a name and a cycle function")
	}
	if task.Interval <= 0 {
		return fmt.Errorf("task %s: interval must be greater than 0", task.Name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running || g.stopped {
		return ErrAlreadyRunning
	}
	for _, r := range g.runners {
		if r.task.Name == task.Name {
			return fmt.Errorf("task %s already registered", task.Name)
		}
	}
	g.runners = append(g.runners, &runner{task: task, state: StateIdle})
	return nil
}

// Start launches every task. Cycles run under ctx, so cancelling it aborts
// in-flight fetches; Stop only prevents further cycles.
func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.running || g.stopped {
		g.mu.Unlock()
		return ErrAlreadyRunning
	}
	g.running = true
	g.mu.Unlock()

	log := g.log.WithComponent("scheduler")
	for _, r := range g.runners {
		g.wg.Add(1)
		go g.loop(ctx, r)
	}
	log.WithFields(logger.Fields{"tasks": len(g.runners)}).Info("scheduler started")
	return nil
}

// Stop lets every task finish its current cycle, then waits for all loops to
// exit. It never interrupts a cycle and is safe to call more than once.
func (g *Group) Stop() {
	g.mu.Lock()
	wasRunning := g.running
	g.running = false
	g.stopped = true
	g.mu.Unlock()

	g.stopOnce.Do(func() { close(g.stopCh) })
	g.wg.Wait()
	if wasRunning {
		g.log.WithComponent("scheduler").Info("scheduler stopped")
	}
}

func (g *Group) stopRequested() bool {
	select {
	case <-g.stopCh:
		return true
	default:
		return false
	}
}

// Wait blocks until every task loop has exited.
func (g *Group) Wait() {
	g.wg.Wait()
}

func (g *Group) Status() []TaskStatus {
	out := make([]TaskStatus, 0, len(g.runners))
	for _, r := range g.runners {
		r.mu.RLock()
		out = append(out, TaskStatus{
			Name:           r.task.Name,
			State:          r.state.String(),
			Interval:       r.task.Interval.String(),
			Cycles:         r.cycles,
			Failures:       r.failures,
			LastCycleStart: r.lastCycleStart,
			LastError:      r.lastError,
		})
		r.mu.RUnlock()
	}
	return out
}

func (g *Group) loop(ctx context.Context, r *runner) {
	defer g.wg.Done()
	defer r.setState(StateStopped)

	log := g.log.WithComponent("scheduler").WithFields(logger.Fields{
		"task":     r.task.Name,
		"interval": r.task.Interval.String(),
	})
	log.Info("task started")

	for {
		if g.stopRequested() || ctx.Err() != nil {
			log.Info("task stopped")
			return
		}

		start := time.Now()
		r.beginCycle(start)
		err := runCycle(ctx, r.task.Cycle)
		duration := time.Since(start)

		if ctxErr := ctx.Err(); ctxErr != nil && (err == nil || errors.Is(err, ctxErr)) {
			r.endCycle(nil)
			log.Info("task stopped")
			return
		}
		r.endCycle(err)
		logger.RecordCycle(r.task.Name)
		metrics.CycleDuration(g.log, r.task.Name, duration)

		wait := r.task.Interval
		if err != nil {
			wait = g.errorBackoff
			log.WithError(err).WithFields(logger.Fields{
				"duration_ms": duration.Milliseconds(),
				"backoff":     wait.String(),
			}).Error("cycle failed")
		} else {
			log.WithFields(logger.Fields{"duration_ms": duration.Milliseconds()}).Info("cycle completed")
		}

		r.setState(StateSleeping)
		timer := time.NewTimer(wait)
		select {
		case <-g.stopCh:
			timer.Stop()
			log.Info("task stopped")
			return
		case <-ctx.Done():
			timer.Stop()
			log.Info("task stopped")
			return
		case <-timer.C:
		}
	}
}

// runCycle converts a panic escaping fn into an error.
func runCycle(ctx context.Context, fn CycleFunc) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cycle panic: %v\n%s", rec, debug.Stack())
		}
	}()
	return fn(ctx)
}

func (r *runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *runner) beginCycle(start time.Time) {
	r.mu.Lock()
	r.state = StateRunning
	r.lastCycleStart = start.UTC()
	r.mu.Unlock()
}

func (r *runner) endCycle(err error) {
	r.mu.Lock()
	r.cycles++
	if err != nil {
		r.failures++
		r.lastError = err.Error()
	}
	r.mu.Unlock()
}

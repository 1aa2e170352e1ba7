package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// Controller owns the periodic tasks. Start is idempotent; Stop cancels all
// task loops and waits for them to drain. When a lock manager is configured,
// each run takes a short distributed lock so that multiple engine instances
// against one database never double-run a task.
type Controller struct {
	locks  domain.LockManager
	logger *slog.Logger

	mu      sync.Mutex
	tasks   []Task
	crons   []CronTask
	states  map[string]*taskState
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
}

// NewController creates an empty controller. The lock manager may be nil for
// single-instance deployments.
func NewController(locks domain.LockManager, logger *slog.Logger) *Controller {
	return &Controller{
		locks:  locks,
		logger: logger.With(slog.String("component", "scheduler")),
		states: make(map[string]*taskState),
	}
}

// Register adds a repeating task. Registration after Start has no effect
// until the next Start.
func (c *Controller) Register(t Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, t)
	c.states[t.Name] = newTaskState(t.Name, t.Interval)
}

// RegisterCron adds a cron-scheduled task.
func (c *Controller) RegisterCron(t CronTask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crons = append(c.crons, t)
	c.states[t.Name] = newTaskState(t.Name, 0)
}

// Start launches every registered task loop. Calling Start while running is
// a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.logger.Warn("start ignored, scheduler already running")
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.started = time.Now().UTC()
	tasks := make([]Task, len(c.tasks))
	copy(tasks, c.tasks)
	crons := make([]CronTask, len(c.crons))
	copy(crons, c.crons)
	done := c.done
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(runCtx)
	for _, t := range tasks {
		task := t
		g.Go(func() error {
			c.runLoop(gctx, task)
			return nil
		})
	}
	for _, t := range crons {
		task := t
		g.Go(func() error {
			return c.runCronLoop(gctx, task)
		})
	}

	go func() {
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("scheduler stopped with error", slog.Any("error", err))
		}
		close(done)
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	c.logger.Info("scheduler started",
		slog.Int("tasks", len(tasks)),
		slog.Int("cron_tasks", len(crons)))
	return nil
}

// Stop cancels all task loops and blocks until they have drained. Stopping a
// stopped controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	<-done
	c.logger.Info("scheduler stopped")
}

// Trigger requests an immediate out-of-band run of the named task. The run
// happens on the task's own loop, so overlapping executions are impossible.
func (c *Controller) Trigger(name string) error {
	c.mu.Lock()
	state, ok := c.states[name]
	running := c.running
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown task %q", name)
	}
	if !running {
		return fmt.Errorf("scheduler: not running")
	}
	state.fire()
	return nil
}

// Status reports every task's run history, sorted by name.
func (c *Controller) Status() []TaskStatus {
	c.mu.Lock()
	states := make([]*taskState, 0, len(c.states))
	for _, s := range c.states {
		states = append(states, s)
	}
	c.mu.Unlock()

	out := make([]TaskStatus, 0, len(states))
	for _, s := range states {
		out = append(out, s.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Running reports whether the task loops are live.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// StartedAt returns when the current run began, zero when stopped.
func (c *Controller) StartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return time.Time{}
	}
	return c.started
}

// runLoop drives one repeating task. The timer is re-armed after each run
// completes, so long runs delay the next execution instead of overlapping
// it. When a run fails and RetryDelay is configured, the next run comes
// after that shorter delay; a failure on the retry itself falls back to the
// normal interval, so a persistently broken task never hot-loops on the
// short delay.
func (c *Controller) runLoop(ctx context.Context, task Task) {
	state := c.state(task.Name)

	wait := task.Interval
	if task.Immediate {
		wait = 0
	}
	retried := false

	timer := time.NewTimer(wait)
	defer timer.Stop()
	state.setNextRun(time.Now().UTC().Add(wait))

	for {
		select {
		case <-ctx.Done():
			return
		case <-state.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}

		err := c.runOnce(ctx, task.Name, task.Run)

		next := task.Interval
		if err != nil && task.RetryDelay > 0 && !retried {
			next = task.RetryDelay
			retried = true
		} else {
			retried = false
		}
		now := time.Now().UTC()
		state.recordRun(now, now.Add(next), err)
		timer.Reset(next)
	}
}

// runCronLoop drives one cron task.
func (c *Controller) runCronLoop(ctx context.Context, task CronTask) error {
	state := c.state(task.Name)

	for {
		next, err := nextCronTime(task.Expr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("scheduler: task %s: %w", task.Name, err)
		}
		state.setNextRun(next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-state.trigger:
			timer.Stop()
		case <-timer.C:
		}

		runErr := c.runOnce(ctx, task.Name, task.Run)
		state.recordRun(time.Now().UTC(), time.Time{}, runErr)
	}
}

// runOnce executes a task body under the per-task distributed lock. A held
// lock means another instance is on it; that is a skip, not a failure.
func (c *Controller) runOnce(ctx context.Context, name string, run TaskFunc) error {
	if c.locks != nil {
		unlock, err := c.locks.Acquire(ctx, "task:"+name, time.Minute)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				c.logger.Debug("task skipped, lock held elsewhere", slog.String("task", name))
				return nil
			}
			c.logger.Warn("task lock unavailable, running anyway",
				slog.String("task", name), slog.Any("error", err))
		} else {
			defer unlock()
		}
	}

	start := time.Now()
	err := run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		c.logger.Warn("task failed",
			slog.String("task", name),
			slog.Duration("took", time.Since(start)),
			slog.Any("error", err))
		return err
	}
	c.logger.Debug("task done",
		slog.String("task", name),
		slog.Duration("took", time.Since(start)))
	return nil
}

func (c *Controller) state(name string) *taskState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[name]
}

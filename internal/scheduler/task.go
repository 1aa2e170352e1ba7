// Package scheduler runs the engine's periodic tasks: market refresh, risk
// scans, economy ticks, world events, health probes, and the monthly cron
// jobs. Tasks reschedule after completion, so a slow run never stacks.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// TaskFunc is one unit of periodic work.
type TaskFunc func(ctx context.Context) error

// Task is a repeating task definition. RetryDelay, when set, shortens the
// wait after a failed run so transient errors recover quickly.
type Task struct {
	Name       string
	Interval   time.Duration
	RetryDelay time.Duration
	Immediate  bool // run once at start before the first wait
	Run        TaskFunc
}

// CronTask fires on a 5-field cron expression instead of a fixed interval.
type CronTask struct {
	Name string
	Expr string
	Run  TaskFunc
}

// TaskStatus is a snapshot of one task's run history.
type TaskStatus struct {
	Name                string        `json:"name"`
	Interval            time.Duration `json:"interval"`
	Runs                int64         `json:"runs"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastRun             time.Time     `json:"last_run"`
	LastError           string        `json:"last_error,omitempty"`
	NextRun             time.Time     `json:"next_run"`
}

// taskState tracks the mutable run history of one task.
type taskState struct {
	mu      sync.Mutex
	status  TaskStatus
	trigger chan struct{}
}

func newTaskState(name string, interval time.Duration) *taskState {
	return &taskState{
		status:  TaskStatus{Name: name, Interval: interval},
		trigger: make(chan struct{}, 1),
	}
}

// fire requests an out-of-band run. A pending request is not stacked.
func (s *taskState) fire() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *taskState) recordRun(at time.Time, next time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Runs++
	s.status.LastRun = at
	s.status.NextRun = next
	if err != nil {
		s.status.ConsecutiveFailures++
		s.status.LastError = err.Error()
		return
	}
	s.status.ConsecutiveFailures = 0
	s.status.LastError = ""
}

func (s *taskState) setNextRun(next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.NextRun = next
}

func (s *taskState) snapshot() TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

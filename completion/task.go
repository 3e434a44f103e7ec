package completion

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// Task is a cancellable, awaitable handle to one running background unit of
// work. The coordinator that spawned the work owns the Task; the handler
// that described the work never sees it.
type Task struct {
	id        string
	cancel    context.CancelFunc
	done      chan struct{}
	cancelled atomic.Bool
}

// NewTask wraps the cancel function of a freshly derived task context.
func NewTask(cancel context.CancelFunc) *Task {
	return &Task{
		id:     uuid.New().String(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (t *Task) ID() string { return t.id }

// Cancel requests cooperative cancellation. Safe to call more than once.
func (t *Task) Cancel() {
	if t.cancelled.CompareAndSwap(false, true) {
		t.cancel()
	}
}

func (t *Task) Cancelled() bool { return t.cancelled.Load() }

// Done is closed once the work function has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Finish marks the task as completed. Called exactly once, by the goroutine
// running the work.
func (t *Task) Finish() { close(t.done) }

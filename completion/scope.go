// Package completion correlates one dispatched action with every background
// task it transitively spawned, so a caller can await "everything this
// action triggered is done" or cancel it as a unit.
//
// Propagation across nested spawns is ambient: the coordinator stores the
// active scope on the task context with Into, and any code that spawns its
// own goroutines can pick it up with From and register them. Handlers
// written without any awareness of completion tracking still participate,
// because the coordinator's spawn path is the single choke point.
package completion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/on-the-ground/reactive_go/shared/helper"
	"go.uber.org/zap"
)

// ErrSealed is returned when a task is registered after the scope's
// registration window has closed.
var ErrSealed = errors.New("completion scope already sealed")

// Scope collects the tasks spawned while one dispatched action is being
// processed. It starts open, seals once the coordinator's grace window
// elapses, and resolves when every registered task has finished.
type Scope struct {
	id     string
	logger *zap.Logger

	mu       sync.Mutex
	tasks    []*Task
	sealed   bool
	sealedCh chan struct{}

	cancelled atomic.Bool
}

func NewScope(logger *zap.Logger) *Scope {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scope{
		id:       uuid.New().String(),
		logger:   logger,
		sealedCh: make(chan struct{}),
	}
}

func (s *Scope) ID() string { return s.id }

// Register adds a task to the scope. Registering after Seal is a contract
// violation: it DPanics under a development logger and is logged and dropped
// in production. The task itself keeps running either way, merely untracked.
//
// Registering into an already-cancelled scope cancels the task immediately,
// so late spawns cannot outlive a cancelled dispatch.
func (s *Scope) Register(t *Task) error {
	s.mu.Lock()
	if s.sealed {
		s.mu.Unlock()
		s.logger.DPanic("task registered after completion scope was sealed",
			zap.String("scopeId", s.id),
			zap.String("taskId", t.ID()),
		)
		return ErrSealed
	}
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	if s.cancelled.Load() {
		t.Cancel()
	}
	return nil
}

// Seal closes the registration window. Idempotent.
func (s *Scope) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sealed {
		s.sealed = true
		close(s.sealedCh)
	}
}

func (s *Scope) Sealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}

// Tasks returns a snapshot of the registered tasks.
func (s *Scope) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]*Task, len(s.tasks))
	copy(snapshot, s.tasks)
	return snapshot
}

// CancelAll cancels every registered task and marks the scope cancelled.
func (s *Scope) CancelAll() {
	s.cancelled.Store(true)
	for _, t := range s.Tasks() {
		t.Cancel()
	}
}

func (s *Scope) Cancelled() bool { return s.cancelled.Load() }

// Wait blocks until the scope is sealed and every registered task has
// finished. Tasks run concurrently; Wait only observes their completion.
func (s *Scope) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.sealedCh:
	}
	for _, t := range s.Tasks() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Done():
		}
	}
	return nil
}

type scopeKey struct{}

// Into returns a context carrying the scope, making it ambient for
// everything spawned beneath it.
func Into(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// From extracts the ambient completion scope, if one is active.
func From(ctx context.Context) (*Scope, bool) {
	return helper.GetTypedValueOf2[*Scope](func() (any, bool) {
		v := ctx.Value(scopeKey{})
		return v, v != nil
	})
}

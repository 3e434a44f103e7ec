package completion_test

import (
	"context"
	"testing"
	"time"

	"github.com/on-the-ground/reactive_go/completion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTask() (*completion.Task, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	return completion.NewTask(cancel), ctx
}

func TestScope_WaitResolvesAfterSealAndTaskCompletion(t *testing.T) {
	scope := completion.NewScope(zap.NewNop())
	task, _ := newTask()
	require.NoError(t, scope.Register(task))

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- scope.Wait(context.Background())
	}()

	// Neither sealed nor finished: Wait must still be blocked.
	select {
	case err := <-waitErr:
		t.Fatalf("wait returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	scope.Seal()
	task.Finish()

	select {
	case err := <-waitErr:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not resolve")
	}
}

func TestScope_WaitOnEmptySealedScopeResolvesImmediately(t *testing.T) {
	scope := completion.NewScope(zap.NewNop())
	scope.Seal()
	assert.NoError(t, scope.Wait(context.Background()))
}

func TestScope_RegisterAfterSealIsRejected(t *testing.T) {
	scope := completion.NewScope(zap.NewNop())
	scope.Seal()

	task, _ := newTask()
	err := scope.Register(task)
	assert.ErrorIs(t, err, completion.ErrSealed)
	assert.Empty(t, scope.Tasks())
}

func TestScope_RegisterAfterSealDPanicsUnderDevelopmentLogger(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	scope := completion.NewScope(logger)
	scope.Seal()

	task, _ := newTask()
	assert.Panics(t, func() {
		_ = scope.Register(task)
	})
}

func TestScope_CancelAllPropagatesToEveryTask(t *testing.T) {
	scope := completion.NewScope(zap.NewNop())

	first, firstCtx := newTask()
	second, secondCtx := newTask()
	require.NoError(t, scope.Register(first))
	require.NoError(t, scope.Register(second))

	scope.CancelAll()

	assert.True(t, scope.Cancelled())
	assert.True(t, first.Cancelled())
	assert.True(t, second.Cancelled())
	assert.ErrorIs(t, firstCtx.Err(), context.Canceled)
	assert.ErrorIs(t, secondCtx.Err(), context.Canceled)
}

func TestScope_LateRegistrationIntoCancelledScopeIsCancelled(t *testing.T) {
	scope := completion.NewScope(zap.NewNop())
	scope.CancelAll()

	task, taskCtx := newTask()
	require.NoError(t, scope.Register(task))
	assert.True(t, task.Cancelled())
	assert.ErrorIs(t, taskCtx.Err(), context.Canceled)
}

func TestScope_WaitHonoursCallerContext(t *testing.T) {
	scope := completion.NewScope(zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Never sealed: only the caller's deadline can release Wait.
	assert.ErrorIs(t, scope.Wait(ctx), context.DeadlineExceeded)
}

func TestAmbientPropagation(t *testing.T) {
	scope := completion.NewScope(zap.NewNop())

	ctx := completion.Into(context.Background(), scope)
	got, ok := completion.From(ctx)
	require.True(t, ok)
	assert.Same(t, scope, got)

	_, ok = completion.From(context.Background())
	assert.False(t, ok)
}

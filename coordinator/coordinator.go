package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/on-the-ground/reactive_go/completion"
	"github.com/on-the-ground/reactive_go/effect"
	"github.com/on-the-ground/reactive_go/handler"
	"go.uber.org/zap"
)

// ErrClosed is returned by Dispatch, Send and state reads once the
// coordinator has been torn down.
var ErrClosed = errors.New("coordinator closed")

// message is the sealed mailbox protocol of the writer goroutine.
type message[S, A any] interface {
	message()
}

type dispatchMsg[S, A any] struct {
	action A
	scope  *completion.Scope
	// resumeCh is closed once the synchronous phase has finished, which is
	// what gives back-to-back dispatches their issuance-order guarantee.
	resumeCh chan struct{}
}

func (dispatchMsg[S, A]) message() {}

type sendMsg[S, A any] struct {
	state    S
	resumeCh chan struct{}
}

func (sendMsg[S, A]) message() {}

type readMsg[S, A any] struct {
	resumeCh chan S
}

func (readMsg[S, A]) message() {}

// Coordinator owns one state value and serializes every mutation through a
// single writer goroutine.
type Coordinator[S, A any] struct {
	id     string
	root   handler.Handler[S, A]
	config Config
	logger *zap.Logger
	clock  clockwork.Clock

	mailbox chan message[S, A]

	runCtx    context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup

	notifier *notifier[S]
}

// New starts a coordinator owning initial and dispatching through root.
// A nil logger falls back to zap's production logger; a nil clock to the
// real clock. Close must be called to release the writer goroutine and
// cancel outstanding tasks.
func New[S, A any](
	initial S,
	root handler.Handler[S, A],
	config Config,
	logger *zap.Logger,
	clock clockwork.Clock,
) *Coordinator[S, A] {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	config = config.normalized()

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Coordinator[S, A]{
		id:       uuid.New().String(),
		root:     root,
		config:   config,
		logger:   logger,
		clock:    clock,
		mailbox:  make(chan message[S, A], config.MailboxSize),
		runCtx:   runCtx,
		cancel:   cancel,
		notifier: newNotifier[S](runCtx, config.NotifyWorkers, config.SubscriberBuffer, clock, logger),
	}

	ready := make(chan struct{})
	c.wg.Add(1)
	go c.run(initial, ready)
	<-ready

	c.logger.Debug("coordinator started", zap.String("coordinatorId", c.id))
	return c
}

// run is the writer goroutine. It is the only code that ever holds a
// mutable reference to the state.
func (c *Coordinator[S, A]) run(initial S, ready chan struct{}) {
	defer c.wg.Done()
	state := initial
	close(ready)
	for {
		select {
		case <-c.runCtx.Done():
			return
		case msg := <-c.mailbox:
			switch msg := msg.(type) {
			case dispatchMsg[S, A]:
				c.handleDispatch(&state, msg)
			case sendMsg[S, A]:
				state = msg.state
				c.notifier.publish(state)
				close(msg.resumeCh)
			case readMsg[S, A]:
				msg.resumeCh <- state
			default:
				panic(fmt.Errorf("exhaustive match fallback, message type: %T", msg))
			}
		}
	}
}

func (c *Coordinator[S, A]) handleDispatch(state *S, msg dispatchMsg[S, A]) {
	descriptor := c.root.Handle(state, msg.action)
	c.interpret(state, descriptor, msg.scope)
	c.notifier.publish(*state)
	// With a zero grace the scope is sealed before Dispatch returns; with a
	// positive one the timer starts ticking before the caller resumes.
	c.sealAfterGrace(msg.scope)
	close(msg.resumeCh)
}

// sealAfterGrace closes the scope's registration window once SealGrace has
// elapsed. A zero grace seals synchronously, before Dispatch returns.
func (c *Coordinator[S, A]) sealAfterGrace(scope *completion.Scope) {
	if c.config.SealGrace <= 0 {
		scope.Seal()
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-c.clock.After(c.config.SealGrace):
		case <-c.runCtx.Done():
		}
		scope.Seal()
	}()
}

// interpret walks the descriptor tree in spawn order. It runs on the writer
// goroutine, so re-dispatched actions mutate state with no interleaving.
func (c *Coordinator[S, A]) interpret(state *S, d effect.Descriptor[S, A], scope *completion.Scope) {
	switch d := d.(type) {
	case nil, effect.None[S, A]:
	case effect.Of[S, A]:
		// Guarding against infinite synchronous recursion is the
		// application's responsibility.
		next := c.root.Handle(state, d.Action)
		c.interpret(state, next, scope)
	case effect.Perform[S, A]:
		c.spawn(d.Work, scope)
	case effect.Observe[S, A]:
		c.spawn(d.Work, scope)
	case effect.Merge[S, A]:
		for _, child := range d.Descriptors {
			c.interpret(state, child, scope)
		}
	default:
		panic(fmt.Errorf("exhaustive match fallback, descriptor type: %T", d))
	}
}

// spawn runs one unit of work as a tracked, cancellable task. The task's
// context carries the ambient completion scope so transitively spawned work
// can register itself too.
func (c *Coordinator[S, A]) spawn(work effect.Work[S], scope *completion.Scope) {
	taskCtx, cancelTask := context.WithCancel(c.runCtx)
	task := completion.NewTask(cancelTask)
	taskCtx = completion.Into(taskCtx, scope)

	if err := scope.Register(task); err != nil {
		c.logger.Warn("task runs untracked",
			zap.String("coordinatorId", c.id),
			zap.String("taskId", task.ID()),
			zap.Error(err),
		)
	}

	ready := make(chan struct{})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer task.Finish()
		defer cancelTask()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("panic in background work",
					zap.String("coordinatorId", c.id),
					zap.String("taskId", task.ID()),
					zap.Any("error", r),
				)
			}
		}()
		close(ready)
		work(taskCtx, c.readFn(), c.sendFn())
	}()
	<-ready
}

// Dispatch runs the root handler against the action inside the writer
// goroutine and interprets the returned descriptor. It blocks until the
// synchronous phase (handler run, immediate re-dispatches, task spawning,
// commit notification) has finished, so two back-to-back dispatches mutate
// state strictly in issuance order.
//
// The returned handle may be discarded by fire-and-forget callers.
func (c *Coordinator[S, A]) Dispatch(ctx context.Context, action A) (*Handle, error) {
	scope := completion.NewScope(c.logger)
	msg := dispatchMsg[S, A]{
		action:   action,
		scope:    scope,
		resumeCh: make(chan struct{}),
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.runCtx.Done():
		return nil, ErrClosed
	case c.mailbox <- msg:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.runCtx.Done():
		return nil, ErrClosed
	case <-msg.resumeCh:
	}
	return &Handle{scope: scope}, nil
}

// State returns a snapshot of the current state by hopping into the writer
// goroutine, so it reflects every write committed before the call.
func (c *Coordinator[S, A]) State(ctx context.Context) (S, error) {
	return c.readFn()(ctx)
}

func (c *Coordinator[S, A]) readFn() effect.ReadFn[S] {
	return func(ctx context.Context) (S, error) {
		var zero S
		msg := readMsg[S, A]{resumeCh: make(chan S, 1)}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-c.runCtx.Done():
			return zero, ErrClosed
		case c.mailbox <- msg:
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-c.runCtx.Done():
			return zero, ErrClosed
		case state := <-msg.resumeCh:
			return state, nil
		}
	}
}

// sendFn builds the Send handle given to background work. A send from a
// cancelled task is a no-op returning the context error, which keeps stale
// writes from racing a cancelled operation.
func (c *Coordinator[S, A]) sendFn() effect.SendFn[S] {
	return func(ctx context.Context, state S) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := sendMsg[S, A]{state: state, resumeCh: make(chan struct{})}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.runCtx.Done():
			return ErrClosed
		case c.mailbox <- msg:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.runCtx.Done():
			return ErrClosed
		case <-msg.resumeCh:
			return nil
		}
	}
}

// Subscribe registers a commit observer under the given id. Commits are
// delivered in order per subscriber; unsubscribing closes the stream.
func (c *Coordinator[S, A]) Subscribe(id string) (<-chan Commit[S], func()) {
	return c.notifier.subscribe(id)
}

// Close cancels every outstanding task the coordinator has ever spawned,
// stops the writer goroutine, and closes subscriber streams. Idempotent.
func (c *Coordinator[S, A]) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
		c.notifier.close()
		c.logger.Debug("coordinator closed", zap.String("coordinatorId", c.id))
	})
}

package handler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/on-the-ground/reactive_go/effect"
	"go.uber.org/zap"
)

// debounceOutcome is the terminal state of one debounced unit of work. Both
// outcomes collapse to "no parent-visible action" at the boundary, but they
// stay distinguishable here.
type debounceOutcome int

const (
	outcomeFired debounceOutcome = iota
	outcomeSuperseded
)

// Debounce wraps child so that only the asynchronous work of the last call
// within window actually runs.
//
// State changes are never debounced: the child still handles every action
// synchronously and its mutations commit immediately. Each call replaces the
// pending delayed work; a superseded call observably produces neither state
// writes nor side effects from its unit of work. Immediate re-dispatch
// actions returned by the child cannot be delayed without re-entering the
// coordinator and pass through un-coalesced.
//
// The clock is injected so tests can drive the window deterministically.
func Debounce[S, A any](
	child Handler[S, A],
	window time.Duration,
	clock clockwork.Clock,
	logger *zap.Logger,
) Handler[S, A] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &debouncer[S, A]{
		child:  child,
		window: window,
		clock:  clock,
		logger: logger,
	}
	return Func[S, A](d.handle)
}

type debouncer[S, A any] struct {
	child  Handler[S, A]
	window time.Duration
	clock  clockwork.Clock
	logger *zap.Logger

	mu         sync.Mutex
	generation uint64
	pending    []effect.Work[S]
}

func (d *debouncer[S, A]) handle(state *S, action A) effect.Descriptor[S, A] {
	descriptor := d.child.Handle(state, action)

	works := make([]effect.Work[S], 0, 1)
	passthrough := make([]effect.Descriptor[S, A], 0, 1)
	for _, leaf := range effect.Flatten[S, A](descriptor) {
		switch leaf := leaf.(type) {
		case effect.Perform[S, A]:
			works = append(works, leaf.Work)
		case effect.Observe[S, A]:
			works = append(works, leaf.Work)
		case effect.Of[S, A]:
			passthrough = append(passthrough, leaf)
		}
	}

	// Every call supersedes the pending work, even one that scheduled none.
	d.mu.Lock()
	d.generation++
	generation := d.generation
	d.pending = works
	d.mu.Unlock()

	descriptors := passthrough
	if len(works) > 0 {
		descriptors = append(descriptors, effect.Perform[S, A]{Work: d.delayed(generation)})
	}
	switch len(descriptors) {
	case 0:
		return effect.None[S, A]{}
	case 1:
		return descriptors[0]
	default:
		return effect.Merge[S, A]{Descriptors: descriptors}
	}
}

// delayed returns the work that waits out the window and then either runs
// the latest pending unit or yields to whichever call superseded it.
func (d *debouncer[S, A]) delayed(generation uint64) effect.Work[S] {
	return func(ctx context.Context, read effect.ReadFn[S], send effect.SendFn[S]) {
		select {
		case <-ctx.Done():
			return
		case <-d.clock.After(d.window):
		}
		works, outcome := d.resolve(generation)
		if outcome == outcomeSuperseded {
			d.logger.Debug("debounced work superseded", zap.Uint64("generation", generation))
			return
		}
		d.logger.Debug("debounced work fired", zap.Uint64("generation", generation))
		for _, work := range works {
			work(ctx, read, send)
		}
	}
}

func (d *debouncer[S, A]) resolve(generation uint64) ([]effect.Work[S], debounceOutcome) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.generation != generation {
		return nil, outcomeSuperseded
	}
	works := d.pending
	d.pending = nil
	return works, outcomeFired
}

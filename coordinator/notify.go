package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rickb777/date/v2/timespan"
	"go.uber.org/zap"
)

// Commit is one committed state change, enveloped with the wall-clock span
// of the commit so observers can order and correlate changes across
// coordinators.
type Commit[S any] struct {
	State S
	Span  timespan.TimeSpan
}

const commitEpsilon = time.Millisecond

func commitOf[S any](state S, now time.Time) Commit[S] {
	return Commit[S]{
		State: state,
		Span:  timespan.BetweenTimes(now.Add(-commitEpsilon), now.Add(commitEpsilon)),
	}
}

type subscriber[S any] struct {
	id string
	ch chan Commit[S]
}

type notification[S any] struct {
	sub    *subscriber[S]
	commit Commit[S]
}

// notifier fans committed state changes out to subscribers through a
// partitioned worker pool. One subscriber always lands on the same worker,
// so a slow subscriber never reorders another subscriber's stream.
type notifier[S any] struct {
	ctx        context.Context
	clock      clockwork.Clock
	logger     *zap.Logger
	bufferSize int

	workerChs []chan notification[S]

	mu   sync.RWMutex
	subs map[string]*subscriber[S]
}

func newNotifier[S any](
	ctx context.Context,
	numWorkers, bufferSize int,
	clock clockwork.Clock,
	logger *zap.Logger,
) *notifier[S] {
	n := &notifier[S]{
		ctx:        ctx,
		clock:      clock,
		logger:     logger,
		bufferSize: bufferSize,
		workerChs:  make([]chan notification[S], numWorkers),
		subs:       make(map[string]*subscriber[S]),
	}

	ready := sync.WaitGroup{}
	for i := range n.workerChs {
		ch := make(chan notification[S], bufferSize)
		ready.Add(1)
		go func(ch chan notification[S]) {
			defer close(ch)
			ready.Done()
			for {
				select {
				case msg := <-ch:
					n.deliver(msg)
				case <-ctx.Done():
					return
				}
			}
		}(ch)
		n.workerChs[i] = ch
	}
	ready.Wait()

	return n
}

// deliver pushes one commit to its subscriber, dropping it when the
// subscriber's buffer is full rather than stalling the worker.
func (n *notifier[S]) deliver(msg notification[S]) {
	defer func() {
		if r := recover(); r != nil {
			// The subscriber unsubscribed while this commit was in flight.
			n.logger.Debug("commit delivery raced an unsubscribe",
				zap.String("subscriberId", msg.sub.id),
			)
		}
	}()
	select {
	case msg.sub.ch <- msg.commit:
	default:
		n.logger.Debug("subscriber buffer full, commit dropped",
			zap.String("subscriberId", msg.sub.id),
		)
	}
}

func (n *notifier[S]) workerFor(id string) chan notification[S] {
	if len(n.workerChs) == 1 {
		return n.workerChs[0]
	}
	idx := int(xxhash.Sum64String(id) % uint64(len(n.workerChs)))
	return n.workerChs[idx]
}

// publish is called from the writer goroutine after every commit. Worker
// queues are drained concurrently; a full worker queue drops rather than
// stalls the writer.
func (n *notifier[S]) publish(state S) {
	defer func() {
		if r := recover(); r != nil {
			// Teardown closed a worker queue while this publish was in flight.
			n.logger.Debug("publish raced notifier shutdown")
		}
	}()
	commit := commitOf(state, n.clock.Now())

	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, sub := range n.subs {
		select {
		case n.workerFor(sub.id) <- notification[S]{sub: sub, commit: commit}:
		case <-n.ctx.Done():
			return
		default:
			n.logger.Debug("notifier worker saturated, commit dropped",
				zap.String("subscriberId", sub.id),
			)
		}
	}
}

func (n *notifier[S]) subscribe(id string) (<-chan Commit[S], func()) {
	sub := &subscriber[S]{
		id: id,
		ch: make(chan Commit[S], n.bufferSize),
	}

	n.mu.Lock()
	n.subs[id] = sub
	n.mu.Unlock()

	return sub.ch, func() {
		n.mu.Lock()
		existing, ok := n.subs[id]
		if ok && existing == sub {
			delete(n.subs, id)
		}
		n.mu.Unlock()
		if ok && existing == sub {
			close(sub.ch)
		}
	}
}

func (n *notifier[S]) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, sub := range n.subs {
		delete(n.subs, id)
		close(sub.ch)
	}
}

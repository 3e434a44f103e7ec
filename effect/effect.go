package effect

import "context"

// ReadFn returns a snapshot of the coordinator-owned state. The call hops
// into the coordinator's writer goroutine, so the snapshot reflects every
// write committed before the call, never a stale captured copy.
type ReadFn[S any] func(ctx context.Context) (S, error)

// SendFn commits a new state value from a background task. When the calling
// task has been cancelled the write is dropped and the context error is
// returned instead.
type SendFn[S any] func(ctx context.Context, state S) error

// Work is one asynchronous unit of work produced by a handler. A Work cannot
// fail the task it runs on: failures must be reported through send as an
// error-carrying state value.
type Work[S any] func(ctx context.Context, read ReadFn[S], send SendFn[S])

// Descriptor describes the follow-up work for one handled action without
// performing any of it. Descriptors stay pure data until the coordinator
// interprets them; they never carry running tasks.
//
// The interface is sealed: only the variants in this package implement it.
type Descriptor[S, A any] interface {
	descriptor()
}

// None reports that the action needs no follow-up work.
type None[S, A any] struct{}

func (None[S, A]) descriptor() {}

// Of re-dispatches the embedded action through the same handler tree,
// synchronously, before the original dispatch returns to its caller.
type Of[S, A any] struct {
	Action A
}

func (Of[S, A]) descriptor() {}

// Perform schedules the embedded work to run once, off the synchronous path.
type Perform[S, A any] struct {
	Work Work[S]
}

func (Perform[S, A]) descriptor() {}

// Observe schedules a long-lived observation. Same shape as Perform; the
// work is expected to loop until cancelled or naturally exhausted.
type Observe[S, A any] struct {
	Work Work[S]
}

func (Observe[S, A]) descriptor() {}

// Merge holds descriptors to be processed as if each had been returned
// independently. List order is the task-spawn order.
type Merge[S, A any] struct {
	Descriptors []Descriptor[S, A]
}

func (Merge[S, A]) descriptor() {}

// MergeAll wraps the given descriptors into a single Merge.
func MergeAll[S, A any](descriptors ...Descriptor[S, A]) Descriptor[S, A] {
	return Merge[S, A]{Descriptors: descriptors}
}

// Flatten expands nested merges into the ordered list of leaf descriptors.
// A nil descriptor flattens to nothing.
func Flatten[S, A any](d Descriptor[S, A]) []Descriptor[S, A] {
	leaves := make([]Descriptor[S, A], 0, 4)
	var walk func(Descriptor[S, A])
	walk = func(d Descriptor[S, A]) {
		switch d := d.(type) {
		case nil:
		case Merge[S, A]:
			for _, child := range d.Descriptors {
				walk(child)
			}
		default:
			leaves = append(leaves, d)
		}
	}
	walk(d)
	return leaves
}

package coordinator

import (
	"context"

	"github.com/on-the-ground/reactive_go/completion"
)

// Handle correlates one dispatched action with every background task it
// transitively spawned.
type Handle struct {
	scope *completion.Scope
}

// Wait blocks until the dispatch's completion scope has sealed and every
// task registered in it has finished. The tasks run concurrently; Wait only
// observes their completion. A dispatch that spawned nothing resolves as
// soon as its scope seals.
func (h *Handle) Wait(ctx context.Context) error {
	return h.scope.Wait(ctx)
}

// Cancel cancels every task the dispatch spawned. Cancellation is
// cooperative: each task observes it at its next suspension point, and its
// subsequent sends are dropped.
func (h *Handle) Cancel() {
	h.scope.CancelAll()
}

func (h *Handle) IsCancelled() bool {
	return h.scope.Cancelled()
}

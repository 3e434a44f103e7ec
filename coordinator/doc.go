// Package coordinator is the single-writer runtime of the system.
//
// A Coordinator owns one state value. Inbound actions are handed to the root
// handler inside one writer goroutine, which is the only place the state is
// ever mutated. The descriptor the handler returns is interpreted right
// there: immediate actions re-enter the handler synchronously, asynchronous
// work is spawned as tracked tasks, merges expand in list order.
//
// Background work never touches the state directly. It reads through an
// accessor that hops into the writer goroutine and writes by sending a whole
// new state value back through the same goroutine, so reads are never stale
// relative to committed writes and there is exactly one mutator at any
// instant. Committed changes fan out to subscribers as time-bounded commits.
//
// Every dispatch opens a completion scope; the tasks it (transitively)
// spawns are registered there during a bounded grace window, after which the
// scope seals. The returned Handle lets the caller await or cancel
// everything the action triggered.
//
// Example:
//
//	coord := coordinator.New(initial, root, coordinator.Config{}, logger, nil)
//	defer coord.Close()
//
//	h, err := coord.Dispatch(ctx, action)
//	if err == nil {
//	    _ = h.Wait(ctx)
//	}
package coordinator

// Package handler defines the composable state-handler contract and the
// combinators that build handler trees out of leaves: broadcast (Merge,
// MergeMany), scoping (When, WhenVariant) and time coalescing (Debounce).
//
// A handler mutates state synchronously and returns an effect descriptor; it
// never blocks and never spawns tasks itself. Because every combinator
// output satisfies the same contract, trees compose uniformly.
package handler

import "github.com/on-the-ground/reactive_go/effect"

// Handler is the primitive unit of the system: given mutable access to state
// and an action, it mutates state and describes the desired follow-up work.
type Handler[S, A any] interface {
	Handle(state *S, action A) effect.Descriptor[S, A]
}

// Func adapts a plain function to the Handler interface.
type Func[S, A any] func(state *S, action A) effect.Descriptor[S, A]

func (f Func[S, A]) Handle(state *S, action A) effect.Descriptor[S, A] {
	return f(state, action)
}

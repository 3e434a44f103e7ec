package handler

import "github.com/on-the-ground/reactive_go/effect"

// Merge broadcasts every action to both children in fixed order.
//
// Each child observes the state as mutated by the one before it: this is
// sequential application over one shared state, not fan-out over independent
// copies. The returned descriptor merges the children's descriptors in the
// same order.
func Merge[S, A any](first, second Handler[S, A]) Handler[S, A] {
	return MergeMany(first, second)
}

// MergeMany is Merge over any number of children.
func MergeMany[S, A any](children ...Handler[S, A]) Handler[S, A] {
	return Func[S, A](func(state *S, action A) effect.Descriptor[S, A] {
		descriptors := make([]effect.Descriptor[S, A], 0, len(children))
		for _, child := range children {
			descriptors = append(descriptors, child.Handle(state, action))
		}
		return effect.Merge[S, A]{Descriptors: descriptors}
	})
}

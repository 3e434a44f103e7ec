package handler

import (
	"context"
	"errors"

	"github.com/on-the-ground/reactive_go/effect"
)

// ErrVariantMismatch is returned by a lifted read when the parent state has
// left the variant a WhenVariant child was scoped to.
var ErrVariantMismatch = errors.New("parent state is no longer in the scoped variant")

// Lens gives read/write access to a child value embedded in a struct-like
// parent. Get must return a pointer into the parent so that mutating the
// child is mutating the parent.
type Lens[P, C any] struct {
	Get func(*P) *C
}

// Prism gives extract/embed access to a child value held by one variant of
// an enum-like parent. Embed(Extract(p)) must reproduce p whenever Extract
// succeeds.
type Prism[P, C any] struct {
	Extract func(P) (C, bool)
	Embed   func(C) P
}

// When scopes child to the state slice selected by state and the actions
// selected by action.
//
// An action that does not extract returns None without touching state.
// Child effects are mapped back to parent space: embedded child actions go
// through action.Embed, and child work is lifted so its reads and sends go
// through the parent slice.
func When[PS, CS, PA, CA any](
	action Prism[PA, CA],
	state Lens[PS, CS],
	child Handler[CS, CA],
) Handler[PS, PA] {
	return Func[PS, PA](func(parent *PS, pa PA) effect.Descriptor[PS, PA] {
		ca, ok := action.Extract(pa)
		if !ok {
			return effect.None[PS, PA]{}
		}
		descriptor := child.Handle(state.Get(parent), ca)
		return liftDescriptor(descriptor, action, liftWorkThroughLens[PS](state))
	})
}

// WhenVariant is When for a child state living inside a variant of an
// enum-like parent. If the parent is in the wrong variant the action is
// ignored. The child state is re-embedded into the parent after the child
// call, even on early return, so state is never lost.
func WhenVariant[PS, CS, PA, CA any](
	action Prism[PA, CA],
	state Prism[PS, CS],
	child Handler[CS, CA],
) Handler[PS, PA] {
	return Func[PS, PA](func(parent *PS, pa PA) effect.Descriptor[PS, PA] {
		ca, ok := action.Extract(pa)
		if !ok {
			return effect.None[PS, PA]{}
		}
		cs, ok := state.Extract(*parent)
		if !ok {
			return effect.None[PS, PA]{}
		}
		descriptor := child.Handle(&cs, ca)
		*parent = state.Embed(cs)
		return liftDescriptor(descriptor, action, liftWorkThroughPrism[PS](state))
	})
}

// liftDescriptor maps a child descriptor into parent space. Only embedded
// child actions need re-mapping; work is adapted by the given lift so its
// state accessors operate on the parent.
func liftDescriptor[PS, CS, PA, CA any](
	d effect.Descriptor[CS, CA],
	action Prism[PA, CA],
	lift func(effect.Work[CS]) effect.Work[PS],
) effect.Descriptor[PS, PA] {
	switch d := d.(type) {
	case nil, effect.None[CS, CA]:
		return effect.None[PS, PA]{}
	case effect.Of[CS, CA]:
		return effect.Of[PS, PA]{Action: action.Embed(d.Action)}
	case effect.Perform[CS, CA]:
		return effect.Perform[PS, PA]{Work: lift(d.Work)}
	case effect.Observe[CS, CA]:
		return effect.Observe[PS, PA]{Work: lift(d.Work)}
	case effect.Merge[CS, CA]:
		lifted := make([]effect.Descriptor[PS, PA], 0, len(d.Descriptors))
		for _, child := range d.Descriptors {
			lifted = append(lifted, liftDescriptor(child, action, lift))
		}
		return effect.Merge[PS, PA]{Descriptors: lifted}
	default:
		return effect.None[PS, PA]{}
	}
}

// liftWorkThroughLens adapts child work to parent accessors. The parent
// snapshot is re-read at send time, so sibling slices keep their latest
// committed values when the child slice is written back.
func liftWorkThroughLens[PS, CS any](state Lens[PS, CS]) func(effect.Work[CS]) effect.Work[PS] {
	return func(work effect.Work[CS]) effect.Work[PS] {
		return func(ctx context.Context, read effect.ReadFn[PS], send effect.SendFn[PS]) {
			childRead := func(ctx context.Context) (CS, error) {
				parent, err := read(ctx)
				if err != nil {
					var zero CS
					return zero, err
				}
				return *state.Get(&parent), nil
			}
			childSend := func(ctx context.Context, cs CS) error {
				parent, err := read(ctx)
				if err != nil {
					return err
				}
				*state.Get(&parent) = cs
				return send(ctx, parent)
			}
			work(ctx, childRead, childSend)
		}
	}
}

// liftWorkThroughPrism adapts child work to parent accessors for the variant
// case. Reads fail with ErrVariantMismatch once the parent leaves the scoped
// variant; sends re-embed unconditionally.
func liftWorkThroughPrism[PS, CS any](state Prism[PS, CS]) func(effect.Work[CS]) effect.Work[PS] {
	return func(work effect.Work[CS]) effect.Work[PS] {
		return func(ctx context.Context, read effect.ReadFn[PS], send effect.SendFn[PS]) {
			childRead := func(ctx context.Context) (CS, error) {
				parent, err := read(ctx)
				if err != nil {
					var zero CS
					return zero, err
				}
				cs, ok := state.Extract(parent)
				if !ok {
					var zero CS
					return zero, ErrVariantMismatch
				}
				return cs, nil
			}
			childSend := func(ctx context.Context, cs CS) error {
				return send(ctx, state.Embed(cs))
			}
			work(ctx, childRead, childSend)
		}
	}
}

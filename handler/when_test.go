package handler_test

import (
	"context"
	"testing"

	"github.com/on-the-ground/reactive_go/effect"
	"github.com/on-the-ground/reactive_go/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Name   string
	Visits int
}

type appState struct {
	Profile profile
	Clicks  int
}

type appAction any

type profileRenamed struct{ Name string }

type clicked struct{}

var profileLens = handler.Lens[appState, profile]{
	Get: func(s *appState) *profile { return &s.Profile },
}

var renameActions = handler.Prism[appAction, profileRenamed]{
	Extract: func(a appAction) (profileRenamed, bool) {
		pr, ok := a.(profileRenamed)
		return pr, ok
	},
	Embed: func(pr profileRenamed) appAction { return pr },
}

func renameHandler(descriptor func(*profile) effect.Descriptor[profile, profileRenamed]) handler.Handler[profile, profileRenamed] {
	return handler.Func[profile, profileRenamed](func(s *profile, a profileRenamed) effect.Descriptor[profile, profileRenamed] {
		s.Name = a.Name
		s.Visits++
		return descriptor(s)
	})
}

func TestWhen_NonMatchingActionLeavesStateUntouched(t *testing.T) {
	scoped := handler.When(renameActions, profileLens, renameHandler(
		func(*profile) effect.Descriptor[profile, profileRenamed] {
			return effect.None[profile, profileRenamed]{}
		},
	))

	state := appState{Profile: profile{Name: "ada", Visits: 3}, Clicks: 9}
	before := state.Profile

	descriptor := scoped.Handle(&state, clicked{})

	assert.IsType(t, effect.None[appState, appAction]{}, descriptor)
	assert.Equal(t, before, state.Profile)
	assert.Equal(t, 9, state.Clicks)
}

func TestWhen_MatchingActionMutatesSliceAndMapsActions(t *testing.T) {
	scoped := handler.When(renameActions, profileLens, renameHandler(
		func(*profile) effect.Descriptor[profile, profileRenamed] {
			return effect.Of[profile, profileRenamed]{Action: profileRenamed{Name: "followup"}}
		},
	))

	state := appState{Profile: profile{Name: "ada"}}
	descriptor := scoped.Handle(&state, profileRenamed{Name: "grace"})

	assert.Equal(t, "grace", state.Profile.Name)
	assert.Equal(t, 1, state.Profile.Visits)

	of, ok := descriptor.(effect.Of[appState, appAction])
	require.True(t, ok)
	assert.Equal(t, profileRenamed{Name: "followup"}, of.Action)
}

func TestWhen_LiftedWorkReadsAndSendsThroughParent(t *testing.T) {
	scoped := handler.When(renameActions, profileLens, renameHandler(
		func(*profile) effect.Descriptor[profile, profileRenamed] {
			return effect.Perform[profile, profileRenamed]{
				Work: func(ctx context.Context, read effect.ReadFn[profile], send effect.SendFn[profile]) {
					p, err := read(ctx)
					if err != nil {
						return
					}
					p.Visits += 100
					_ = send(ctx, p)
				},
			}
		},
	))

	state := appState{Profile: profile{Name: "ada"}, Clicks: 5}
	descriptor := scoped.Handle(&state, profileRenamed{Name: "grace"})

	perform, ok := descriptor.(effect.Perform[appState, appAction])
	require.True(t, ok)

	var sent appState
	read := func(context.Context) (appState, error) { return state, nil }
	send := func(_ context.Context, s appState) error {
		sent = s
		return nil
	}
	perform.Work(context.Background(), read, send)

	// The child slice was updated through the parent; siblings kept intact.
	assert.Equal(t, 101, sent.Profile.Visits)
	assert.Equal(t, "grace", sent.Profile.Name)
	assert.Equal(t, 5, sent.Clicks)
}

// --- variant-scoped state ---

type connState any

type connecting struct{ Attempts int }

type connected struct{ Addr string }

type connAction any

type retry struct{}

var connectingPrism = handler.Prism[connState, connecting]{
	Extract: func(s connState) (connecting, bool) {
		c, ok := s.(connecting)
		return c, ok
	},
	Embed: func(c connecting) connState { return c },
}

var retryActions = handler.Prism[connAction, retry]{
	Extract: func(a connAction) (retry, bool) {
		r, ok := a.(retry)
		return r, ok
	},
	Embed: func(r retry) connAction { return r },
}

func TestWhenVariant_WrongVariantReturnsNone(t *testing.T) {
	scoped := handler.WhenVariant(retryActions, connectingPrism, handler.Func[connecting, retry](
		func(s *connecting, _ retry) effect.Descriptor[connecting, retry] {
			s.Attempts++
			return effect.None[connecting, retry]{}
		},
	))

	var state connState = connected{Addr: "10.0.0.1"}
	descriptor := scoped.Handle(&state, retry{})

	assert.IsType(t, effect.None[connState, connAction]{}, descriptor)
	assert.Equal(t, connected{Addr: "10.0.0.1"}, state)
}

func TestWhenVariant_EmbedExtractRoundTrip(t *testing.T) {
	scoped := handler.WhenVariant(retryActions, connectingPrism, handler.Func[connecting, retry](
		func(s *connecting, _ retry) effect.Descriptor[connecting, retry] {
			s.Attempts++
			return effect.None[connecting, retry]{}
		},
	))

	var state connState = connecting{Attempts: 1}
	scoped.Handle(&state, retry{})

	// Mutation is re-embedded into the parent even though the child state was
	// extracted by value.
	require.IsType(t, connecting{}, state)
	assert.Equal(t, 2, state.(connecting).Attempts)

	// Embed/extract law on the updated value.
	extracted, ok := connectingPrism.Extract(state)
	require.True(t, ok)
	assert.Equal(t, state, connectingPrism.Embed(extracted))
}

func TestWhenVariant_LiftedReadFailsAfterVariantChange(t *testing.T) {
	scoped := handler.WhenVariant(retryActions, connectingPrism, handler.Func[connecting, retry](
		func(s *connecting, _ retry) effect.Descriptor[connecting, retry] {
			return effect.Perform[connecting, retry]{
				Work: func(ctx context.Context, read effect.ReadFn[connecting], send effect.SendFn[connecting]) {
					_, err := read(ctx)
					assert.ErrorIs(t, err, handler.ErrVariantMismatch)
				},
			}
		},
	))

	var state connState = connecting{}
	descriptor := scoped.Handle(&state, retry{})

	perform, ok := descriptor.(effect.Perform[connState, connAction])
	require.True(t, ok)

	// By the time the work runs, the parent has moved on to another variant.
	read := func(context.Context) (connState, error) { return connected{Addr: "10.0.0.2"}, nil }
	send := func(context.Context, connState) error { return nil }
	perform.Work(context.Background(), read, send)
}

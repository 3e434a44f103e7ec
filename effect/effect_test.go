package effect_test

import (
	"context"
	"testing"

	"github.com/on-the-ground/reactive_go/effect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct{ n int }

type testAction string

type descriptor = effect.Descriptor[testState, testAction]

func TestFlatten_NilAndNone(t *testing.T) {
	assert.Empty(t, effect.Flatten[testState, testAction](nil))

	leaves := effect.Flatten[testState, testAction](effect.None[testState, testAction]{})
	require.Len(t, leaves, 1)
	assert.IsType(t, effect.None[testState, testAction]{}, leaves[0])
}

func TestFlatten_PreservesListOrder(t *testing.T) {
	first := effect.Of[testState, testAction]{Action: "first"}
	second := effect.Perform[testState, testAction]{
		Work: func(context.Context, effect.ReadFn[testState], effect.SendFn[testState]) {},
	}
	third := effect.Of[testState, testAction]{Action: "third"}

	nested := effect.MergeAll[testState, testAction](
		first,
		effect.MergeAll[testState, testAction](second, third),
	)

	leaves := effect.Flatten[testState, testAction](nested)
	require.Len(t, leaves, 3)
	assert.Equal(t, first, leaves[0])
	assert.IsType(t, effect.Perform[testState, testAction]{}, leaves[1])
	assert.Equal(t, third, leaves[2])
}

func TestFlatten_EmptyMerge(t *testing.T) {
	var empty descriptor = effect.Merge[testState, testAction]{}
	assert.Empty(t, effect.Flatten[testState, testAction](empty))
}

func TestDescriptor_IsPureData(t *testing.T) {
	ran := false
	d := effect.Perform[testState, testAction]{
		Work: func(context.Context, effect.ReadFn[testState], effect.SendFn[testState]) {
			ran = true
		},
	}
	// Building and flattening descriptors must not execute any work.
	effect.Flatten[testState, testAction](effect.MergeAll[testState, testAction](d, d))
	assert.False(t, ran)
}

package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextDeclareAndLookup(t *testing.T) {
	ctx := NewContext()
	vehicle, err := ctx.Declare("vehicle", nil)
	require.NoError(t, err)
	car, err := ctx.Declare("car", vehicle)
	require.NoError(t, err)

	require.Equal(t, car, ctx.Lookup("car"))
	require.True(t, car.IsSubtypeOf(vehicle))
	require.True(t, car.IsSubtypeOf(car))
	require.False(t, vehicle.IsSubtypeOf(car))
}

func TestContextDeclareDuplicateName(t *testing.T) {
	ctx := NewContext()
	_, err := ctx.Declare("car", nil)
	require.NoError(t, err)
	_, err = ctx.Declare("car", nil)
	require.Error(t, err)
}

func TestContextDeclareUnknownParent(t *testing.T) {
	ctx := NewContext()
	foreign := &UserType{}
	_, err := ctx.Declare("car", foreign)
	require.Error(t, err)
}

// TestContextAllIsDeterministic guards the spec.md §5 determinism
// requirement: All() must replay declaration order, not Go's
// unspecified map iteration order, across repeated calls and across
// many declared types (large enough that map iteration would almost
// certainly disagree with itself run to run if All() still read the
// map directly).
func TestContextAllIsDeterministic(t *testing.T) {
	ctx := NewContext()
	var want []*UserType
	for i := 0; i < 50; i++ {
		name := string(rune('a' + i%26))
		if i >= 26 {
			name += string(rune('a' + i/26))
		}
		ty, err := ctx.Declare(name, nil)
		require.NoError(t, err)
		want = append(want, ty)
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, want, ctx.All())
	}
}

package planner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePlanClassicalShape(t *testing.T) {
	out := "; comment line\n(cross r1 r2)\n(finish r1)\n"
	plan, unsolvable := parsePlan(out)
	require.False(t, unsolvable)
	require.Len(t, plan.Steps, 2)
	require.Equal(t, "cross", plan.Steps[0].Action.ActionName)
	require.Equal(t, []string{"r1", "r2"}, plan.Steps[0].Action.Args)
	require.Equal(t, "finish", plan.Steps[1].Action.ActionName)
}

func TestParsePlanTemporalShape(t *testing.T) {
	out := "0.000: (cross r1 r2) [5.000]\n"
	plan, unsolvable := parsePlan(out)
	require.False(t, unsolvable)
	require.Len(t, plan.Steps, 1)
	step := plan.Steps[0]
	require.Equal(t, 0.0, step.StartTime)
	require.Equal(t, 5.0, step.Duration)
	require.Equal(t, "cross", step.Action.ActionName)
	require.Equal(t, []string{"r1", "r2"}, step.Action.Args)
}

func TestParsePlanDetectsUnsolvable(t *testing.T) {
	_, unsolvable := parsePlan("Problem is unsolvable\n")
	require.True(t, unsolvable)
}

func TestParsePlanLineRejectsMalformedLine(t *testing.T) {
	_, ok := parsePlanLine("not an action at all")
	require.False(t, ok)
}

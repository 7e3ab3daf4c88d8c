package planner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusStringAndSolved(t *testing.T) {
	cases := []struct {
		status Status
		want   string
		solved bool
	}{
		{SolvedSat, "SOLVED_SAT", true},
		{SolvedOpt, "SOLVED_OPT", true},
		{UnsolvableProven, "UNSOLVABLE_PROVEN", false},
		{UnsolvableIncomplete, "UNSOLVABLE_INCOMPLETE", false},
		{Timeout, "TIMEOUT", false},
		{Error, "ERROR", false},
		{Status(99), "UNKNOWN", false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, c.status.String())
		require.Equal(t, c.solved, c.status.Solved())
	}
}

func TestActionInstanceString(t *testing.T) {
	require.Equal(t, "(noop)", ActionInstance{ActionName: "noop"}.String())
	require.Equal(t, "(cross r1 r2)", ActionInstance{ActionName: "cross", Args: []string{"r1", "r2"}}.String())
}

func TestPlanActionsDiscardsTiming(t *testing.T) {
	plan := Plan{Steps: []Step{
		{StartTime: 0, Action: ActionInstance{ActionName: "a"}, Duration: 1},
		{StartTime: 1, Action: ActionInstance{ActionName: "b"}, Duration: 2},
	}}
	actions := plan.Actions()
	require.Equal(t, []ActionInstance{{ActionName: "a"}, {ActionName: "b"}}, actions)
}

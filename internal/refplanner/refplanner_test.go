package refplanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/expr"
	"github.com/gitrdm/sociallaw/pkg/planner"
	"github.com/gitrdm/sociallaw/pkg/problem"
	"github.com/gitrdm/sociallaw/pkg/types"
)

// buildSwitchProblem builds a trivial one-action, one-fluent problem:
// toggling "lit" from false to true satisfies the goal.
func buildSwitchProblem(t *testing.T) *problem.Problem {
	t.Helper()
	ctx := expr.NewContext()
	typeCtx := types.NewContext()
	p := problem.New("switch", ctx, typeCtx)

	lit := entity.NewFluent("lit", entity.ValueBool, nil)
	require.NoError(t, p.AddFluent(lit, nil))
	litApp, err := ctx.FluentApp(lit)
	require.NoError(t, err)
	require.NoError(t, p.SetInitialValue(litApp, ctx.FALSE()))

	turnOn := problem.NewInstantaneousAction("turn-on")
	notLit, err := ctx.Not(litApp)
	require.NoError(t, err)
	turnOn.AddPrecondition(notLit)
	eff, err := problem.NewEffect(litApp, ctx.TRUE(), nil)
	require.NoError(t, err)
	turnOn.AddEffect(eff)
	require.NoError(t, p.AddAction(turnOn))

	require.NoError(t, p.AddGoal(litApp))
	return p
}

func TestSolveFindsOneStepPlan(t *testing.T) {
	p := buildSwitchProblem(t)
	pl := New()
	result, err := pl.Solve(p)
	require.NoError(t, err)
	require.True(t, result.Status.Solved())
	require.NotNil(t, result.Plan)
	require.Len(t, result.Plan.Actions(), 1)
	require.Equal(t, "turn-on", result.Plan.Actions()[0].ActionName)
}

func TestSolveReportsUnsolvableWhenGoalUnreachable(t *testing.T) {
	ctx := expr.NewContext()
	typeCtx := types.NewContext()
	p := problem.New("stuck", ctx, typeCtx)

	lit := entity.NewFluent("lit", entity.ValueBool, nil)
	require.NoError(t, p.AddFluent(lit, nil))
	litApp, err := ctx.FluentApp(lit)
	require.NoError(t, err)
	require.NoError(t, p.SetInitialValue(litApp, ctx.FALSE()))
	require.NoError(t, p.AddGoal(litApp))
	// No action can ever make "lit" true.

	pl := New()
	result, err := pl.Solve(p)
	require.NoError(t, err)
	require.Equal(t, planner.UnsolvableProven, result.Status)
}

// TestSolveRespectsParameterTyping exercises cartesianBindings over a
// two-object domain: only the binding matching the goal's specific
// object should ever lead anywhere, and the planner must still find
// it among the full cross product of bindings.
func TestSolveRespectsParameterTyping(t *testing.T) {
	ctx := expr.NewContext()
	typeCtx := types.NewContext()
	robot, err := typeCtx.Declare("robot", nil)
	require.NoError(t, err)

	p := problem.New("pick", ctx, typeCtx)
	r1 := entity.NewObject("r1", robot)
	r2 := entity.NewObject("r2", robot)
	require.NoError(t, p.AddObject(r1))
	require.NoError(t, p.AddObject(r2))

	ready := entity.NewFluent("ready", entity.ValueBool, []*entity.Parameter{entity.NewParameter("r", robot)})
	require.NoError(t, p.AddFluent(ready, ctx.FALSE()))

	pm := entity.NewParameter("x0", robot)
	activate := problem.NewInstantaneousAction("activate", pm)
	readyParam, err := ctx.FluentApp(ready, ctx.ParamRef(pm))
	require.NoError(t, err)
	eff, err := problem.NewEffect(readyParam, ctx.TRUE(), nil)
	require.NoError(t, err)
	activate.AddEffect(eff)
	require.NoError(t, p.AddAction(activate))

	readyR2, err := ctx.FluentApp(ready, ctx.ObjectRef(r2))
	require.NoError(t, err)
	require.NoError(t, p.AddGoal(readyR2))

	pl := New()
	result, err := pl.Solve(p)
	require.NoError(t, err)
	require.True(t, result.Status.Solved())
	require.Len(t, result.Plan.Actions(), 1)
	require.Equal(t, []string{"r2"}, result.Plan.Actions()[0].Args)
}

package social

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitrdm/sociallaw/internal/refplanner"
	"github.com/gitrdm/sociallaw/pkg/agent"
	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/expr"
	"github.com/gitrdm/sociallaw/pkg/planner"
	"github.com/gitrdm/sociallaw/pkg/problem"
	"github.com/gitrdm/sociallaw/pkg/types"
)

func TestActionFamilyClassification(t *testing.T) {
	cases := map[string]actionFamilyKind{
		"cross_s":         familyOther,
		"cross_f_0":       familyFail,
		"cross_f_start_1": familyFail,
		"cross_f_end_0":   familyFail,
		"cross_w_0":       familyWait,
		"refuel_waiting_2": familyWait,
		"cross_pc":        familyOther,
		"cross_pw":        familyOther,
		"refuel_p":        familyOther,
		"end_s_agent-r1":  familyOther,
	}
	for name, want := range cases {
		require.Equalf(t, want, actionFamily(name), "action name %s", name)
	}
}

func TestClassifyCounterexamplePrefersFirstNonRationalStep(t *testing.T) {
	plan := &planner.Plan{Steps: []planner.Step{
		{Action: planner.ActionInstance{ActionName: "cross_s"}},
		{Action: planner.ActionInstance{ActionName: "cross_w_0"}},
		{Action: planner.ActionInstance{ActionName: "cross_f_0"}},
	}}
	require.Equal(t, NonRobustDeadlock, classifyCounterexample(plan))

	failFirst := &planner.Plan{Steps: []planner.Step{
		{Action: planner.ActionInstance{ActionName: "cross_f_0"}},
		{Action: planner.ActionInstance{ActionName: "cross_w_0"}},
	}}
	require.Equal(t, NonRobustFail, classifyCounterexample(failFirst))

	require.Equal(t, NonRobustFail, classifyCounterexample(nil))
}

// buildUnconditionalGoalProblem is a one-agent problem whose single
// action has no preconditions at all, so the robustness-verification
// game can never route its local and global views out of lockstep —
// an end-to-end smoke test for the ROBUST verdict.
func buildUnconditionalGoalProblem(t *testing.T) *problem.Problem {
	t.Helper()
	ctx := expr.NewContext()
	typeCtx := types.NewContext()
	robot, err := typeCtx.Declare("robot", nil)
	require.NoError(t, err)

	p := problem.New("finish", ctx, typeCtx)
	r1 := entity.NewObject("r1", robot)

	done := entity.NewFluent("done", entity.ValueBool, []*entity.Parameter{entity.NewParameter("r", robot)})
	require.NoError(t, p.AddFluent(done, ctx.FALSE()))
	doneR1, err := ctx.FluentApp(done, ctx.ObjectRef(r1))
	require.NoError(t, err)

	finish := problem.NewInstantaneousAction("finish")
	finish.SetBinding(problem.FixedAgent(r1))
	eff, err := problem.NewEffect(doneR1, ctx.TRUE(), nil)
	require.NoError(t, err)
	finish.AddEffect(eff)
	require.NoError(t, p.AddAction(finish))

	a1 := agent.New("agent-r1", r1, []*expr.Expression{doneR1})
	require.NoError(t, p.AddAgent(a1))
	return p
}

func TestOrchestratorFindsRobustLaw(t *testing.T) {
	p := buildUnconditionalGoalProblem(t)
	orch := New(p, refplanner.New())

	status, err := orch.IsRobust()
	require.NoError(t, err)
	require.Equal(t, Robust, status)
	require.Nil(t, orch.Counterexample())
}

// buildUnreachableGoalProblem declares an agent whose goal no action
// ever achieves, so even the cooperative single-agent projection must
// fail — an end-to-end smoke test for NON_ROBUST_SINGLE_AGENT.
func buildUnreachableGoalProblem(t *testing.T) *problem.Problem {
	t.Helper()
	ctx := expr.NewContext()
	typeCtx := types.NewContext()
	robot, err := typeCtx.Declare("robot", nil)
	require.NoError(t, err)

	p := problem.New("stuck", ctx, typeCtx)
	r1 := entity.NewObject("r1", robot)

	done := entity.NewFluent("done", entity.ValueBool, []*entity.Parameter{entity.NewParameter("r", robot)})
	require.NoError(t, p.AddFluent(done, ctx.FALSE()))
	doneR1, err := ctx.FluentApp(done, ctx.ObjectRef(r1))
	require.NoError(t, err)

	// No action ever sets "done" true.
	noop := problem.NewInstantaneousAction("noop")
	noop.SetBinding(problem.FixedAgent(r1))
	require.NoError(t, p.AddAction(noop))

	a1 := agent.New("agent-r1", r1, []*expr.Expression{doneR1})
	require.NoError(t, p.AddAgent(a1))
	return p
}

func TestOrchestratorFindsSingleAgentUnsolvable(t *testing.T) {
	p := buildUnreachableGoalProblem(t)
	orch := New(p, refplanner.New())

	status, err := orch.IsRobust()
	require.NoError(t, err)
	require.Equal(t, NonRobustSingleAgent, status)
}

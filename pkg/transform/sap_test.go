package transform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitrdm/sociallaw/pkg/agent"
	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/expr"
	"github.com/gitrdm/sociallaw/pkg/problem"
	"github.com/gitrdm/sociallaw/pkg/types"
)

// buildTwoAgentCrossing builds a two-agent problem: each agent has its
// own "crossed" goal fluent and a single fixed-binding action that
// achieves it, so the single-agent projection for one agent should
// only ever need its own action to reach its own goal.
func buildTwoAgentCrossing(t *testing.T) (*problem.Problem, *agent.Agent, *agent.Agent) {
	t.Helper()
	ctx := expr.NewContext()
	typeCtx := types.NewContext()
	robotType, err := typeCtx.Declare("robot", nil)
	require.NoError(t, err)

	p := problem.New("crossing", ctx, typeCtx)

	r1 := entity.NewObject("r1", robotType)
	r2 := entity.NewObject("r2", robotType)

	crossed := entity.NewFluent("crossed", entity.ValueBool, []*entity.Parameter{entity.NewParameter("r", robotType)})
	require.NoError(t, p.AddFluent(crossed, ctx.FALSE()))

	crossedR1, err := ctx.FluentApp(crossed, ctx.ObjectRef(r1))
	require.NoError(t, err)
	crossedR2, err := ctx.FluentApp(crossed, ctx.ObjectRef(r2))
	require.NoError(t, err)

	cross1 := problem.NewInstantaneousAction("cross-r1")
	cross1.SetBinding(problem.FixedAgent(r1))
	eff1, err := problem.NewEffect(crossedR1, ctx.TRUE(), nil)
	require.NoError(t, err)
	cross1.AddEffect(eff1)
	require.NoError(t, p.AddAction(cross1))

	cross2 := problem.NewInstantaneousAction("cross-r2")
	cross2.SetBinding(problem.FixedAgent(r2))
	eff2, err := problem.NewEffect(crossedR2, ctx.TRUE(), nil)
	require.NoError(t, err)
	cross2.AddEffect(eff2)
	require.NoError(t, p.AddAction(cross2))

	a1 := agent.New("agent-r1", r1, []*expr.Expression{crossedR1})
	a2 := agent.New("agent-r2", r2, []*expr.Expression{crossedR2})
	require.NoError(t, p.AddAgent(a1))
	require.NoError(t, p.AddAgent(a2))

	return p, a1, a2
}

func TestSingleAgentProjectionNarrowsGoals(t *testing.T) {
	p, a1, _ := buildTwoAgentCrossing(t)
	sap := NewSingleAgentProjection(p, a1)
	out, err := sap.RewrittenProblem()
	require.NoError(t, err)

	require.Len(t, out.Goals(), 1)
	require.Equal(t, a1.Goals()[0], out.Goals()[0])
}

func TestSingleAgentProjectionGatesOnActiveAgent(t *testing.T) {
	p, a1, _ := buildTwoAgentCrossing(t)
	sap := NewSingleAgentProjection(p, a1)
	out, err := sap.RewrittenProblem()
	require.NoError(t, err)

	ctx := out.ExpressionContext()
	r1 := out.Object("r1")
	r2 := out.Object("r2")
	require.NotNil(t, r1)
	require.NotNil(t, r2)

	activeAgent := out.Fluent("active-agent")
	require.NotNil(t, activeAgent)

	activeR1, err := ctx.FluentApp(activeAgent, ctx.ObjectRef(r1))
	require.NoError(t, err)
	activeR2, err := ctx.FluentApp(activeAgent, ctx.ObjectRef(r2))
	require.NoError(t, err)

	v1, ok := out.InitialValue(activeR1)
	require.True(t, ok)
	require.True(t, v1.IsTrue())

	v2, ok := out.InitialValue(activeR2)
	require.True(t, ok)
	require.False(t, v2.IsTrue())

	crossR1 := out.Action("cross-r1")
	require.NotNil(t, crossR1)
	inst, ok := crossR1.(*problem.InstantaneousAction)
	require.True(t, ok)
	require.Contains(t, inst.Preconditions(), activeR1)

	crossR2 := out.Action("cross-r2")
	require.NotNil(t, crossR2)
	inst2, ok := crossR2.(*problem.InstantaneousAction)
	require.True(t, ok)
	require.Contains(t, inst2.Preconditions(), activeR2)
}

func TestSingleAgentProjectionActionMapperRoundTrip(t *testing.T) {
	p, a1, _ := buildTwoAgentCrossing(t)
	sap := NewSingleAgentProjection(p, a1)
	_, err := sap.RewrittenProblem()
	require.NoError(t, err)

	original := p.Action("cross-r1")
	require.NotNil(t, original)
	mapped := sap.OldToNew(original)
	require.Len(t, mapped, 1)
	require.Equal(t, original, sap.NewToOld(mapped[0]))
}

package problem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitrdm/sociallaw/pkg/agent"
	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/expr"
	"github.com/gitrdm/sociallaw/pkg/types"
)

func newTestProblem(t *testing.T) (*Problem, *expr.Context, *types.Context) {
	t.Helper()
	ctx := expr.NewContext()
	typeCtx := types.NewContext()
	return New("p", ctx, typeCtx), ctx, typeCtx
}

func TestAddFluentRejectsDuplicateNames(t *testing.T) {
	p, ctx, _ := newTestProblem(t)
	f := entity.NewFluent("open", entity.ValueBool, nil)
	require.NoError(t, p.AddFluent(f, ctx.FALSE()))
	require.Error(t, p.AddFluent(entity.NewFluent("open", entity.ValueBool, nil), nil))
}

func TestAddObjectRejectsDuplicateNames(t *testing.T) {
	p, _, typeCtx := newTestProblem(t)
	robot, err := typeCtx.Declare("robot", nil)
	require.NoError(t, err)
	require.NoError(t, p.AddObject(entity.NewObject("r1", robot)))
	require.Error(t, p.AddObject(entity.NewObject("r1", robot)))
}

func TestAddActionRejectsDuplicateNames(t *testing.T) {
	p, _, _ := newTestProblem(t)
	require.NoError(t, p.AddAction(NewInstantaneousAction("noop")))
	require.Error(t, p.AddAction(NewInstantaneousAction("noop")))
}

func TestInitialValueFallsBackToDefault(t *testing.T) {
	p, ctx, _ := newTestProblem(t)
	f := entity.NewFluent("open", entity.ValueBool, nil)
	require.NoError(t, p.AddFluent(f, ctx.TRUE()))
	app, err := ctx.FluentApp(f)
	require.NoError(t, err)

	val, ok := p.InitialValue(app)
	require.True(t, ok)
	require.True(t, val.IsTrue())

	require.NoError(t, p.SetInitialValue(app, ctx.FALSE()))
	val, ok = p.InitialValue(app)
	require.True(t, ok)
	require.True(t, val.IsFalse())
}

func TestSetInitialValueRejectsUngroundApplication(t *testing.T) {
	p, ctx, _ := newTestProblem(t)
	typeCtx := p.TypeContext()
	robot, err := typeCtx.Declare("robot", nil)
	require.NoError(t, err)
	pm := entity.NewParameter("x", robot)
	f := entity.NewFluent("ready", entity.ValueBool, []*entity.Parameter{pm})
	require.NoError(t, p.AddFluent(f, nil))
	paramApp, err := ctx.FluentApp(f, ctx.ParamRef(pm))
	require.NoError(t, err)

	require.Error(t, p.SetInitialValue(paramApp, ctx.TRUE()))
}

func TestAddGoalRejectsNonBooleanExpression(t *testing.T) {
	p, ctx, _ := newTestProblem(t)
	require.Error(t, p.AddGoal(ctx.Int(1)))
}

func TestAgentTypeRejectsHeterogeneousAgentTypes(t *testing.T) {
	p, _, typeCtx := newTestProblem(t)
	robot, err := typeCtx.Declare("robot", nil)
	require.NoError(t, err)
	drone, err := typeCtx.Declare("drone", nil)
	require.NoError(t, err)

	r1 := entity.NewObject("r1", robot)
	d1 := entity.NewObject("d1", drone)
	require.NoError(t, p.AddAgent(agent.New("agent-r1", r1, nil)))
	require.NoError(t, p.AddAgent(agent.New("agent-d1", d1, nil)))

	_, err = p.AgentType()
	require.Error(t, err)
}

func TestAgentTypeReturnsSharedType(t *testing.T) {
	p, _, typeCtx := newTestProblem(t)
	robot, err := typeCtx.Declare("robot", nil)
	require.NoError(t, err)
	r1 := entity.NewObject("r1", robot)
	r2 := entity.NewObject("r2", robot)
	require.NoError(t, p.AddAgent(agent.New("agent-r1", r1, nil)))
	require.NoError(t, p.AddAgent(agent.New("agent-r2", r2, nil)))

	got, err := p.AgentType()
	require.NoError(t, err)
	require.Equal(t, robot, got)
}

func TestKindDetectsMultiAgentAndNegativeConditions(t *testing.T) {
	p, ctx, typeCtx := newTestProblem(t)
	robot, err := typeCtx.Declare("robot", nil)
	require.NoError(t, err)
	r1 := entity.NewObject("r1", robot)
	require.NoError(t, p.AddAgent(agent.New("agent-r1", r1, nil)))

	open := entity.NewFluent("open", entity.ValueBool, nil)
	require.NoError(t, p.AddFluent(open, ctx.FALSE()))
	openApp, err := ctx.FluentApp(open)
	require.NoError(t, err)
	notOpen, err := ctx.Not(openApp)
	require.NoError(t, err)
	require.NoError(t, p.AddGoal(notOpen))

	k := p.Kind()
	require.True(t, k.Has(HasMultiAgent))
	require.True(t, k.Has(HasNegativeConditions))
	require.False(t, k.Has(HasDurativeActions))
}

func TestGroundFluentApplicationsComputesCartesianProduct(t *testing.T) {
	p, _, typeCtx := newTestProblem(t)
	robot, err := typeCtx.Declare("robot", nil)
	require.NoError(t, err)
	r1 := entity.NewObject("r1", robot)
	r2 := entity.NewObject("r2", robot)
	require.NoError(t, p.AddObject(r1))
	require.NoError(t, p.AddObject(r2))

	pair := entity.NewFluent("near", entity.ValueBool, []*entity.Parameter{
		entity.NewParameter("a", robot),
		entity.NewParameter("b", robot),
	})
	require.NoError(t, p.AddFluent(pair, nil))

	apps, err := p.GroundFluentApplications(pair)
	require.NoError(t, err)
	require.Len(t, apps, 4)
}

func TestGroundFluentApplicationsNullaryFluent(t *testing.T) {
	p, _, _ := newTestProblem(t)
	f := entity.NewFluent("open", entity.ValueBool, nil)
	require.NoError(t, p.AddFluent(f, nil))

	apps, err := p.GroundFluentApplications(f)
	require.NoError(t, err)
	require.Len(t, apps, 1)
}

func TestGroundFluentApplicationsEmptyDomainYieldsNone(t *testing.T) {
	p, _, typeCtx := newTestProblem(t)
	robot, err := typeCtx.Declare("robot", nil)
	require.NoError(t, err)
	f := entity.NewFluent("ready", entity.ValueBool, []*entity.Parameter{entity.NewParameter("r", robot)})
	require.NoError(t, p.AddFluent(f, nil))

	apps, err := p.GroundFluentApplications(f)
	require.NoError(t, err)
	require.Nil(t, apps)
}

func TestGuessAgentNameUsesFirstParameter(t *testing.T) {
	typeCtx := types.NewContext()
	robot, err := typeCtx.Declare("robot", nil)
	require.NoError(t, err)
	pm := entity.NewParameter("x0", robot)
	a := NewInstantaneousAction("cross", pm)
	require.Equal(t, "x0", GuessAgentName(a))
}

func TestGuessAgentNameFallsBackToUnderscoreComponent(t *testing.T) {
	a := NewInstantaneousAction("cross_r1_s")
	require.Equal(t, "r1", GuessAgentName(a))
}

func TestGuessAgentNameDefaultsToNull(t *testing.T) {
	a := NewInstantaneousAction("noop")
	require.Equal(t, "null", GuessAgentName(a))
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	p, ctx, _ := newTestProblem(t)
	f := entity.NewFluent("open", entity.ValueBool, nil)
	require.NoError(t, p.AddFluent(f, ctx.FALSE()))
	require.NoError(t, p.AddAction(NewInstantaneousAction("noop")))

	clone := p.Clone()
	require.NoError(t, clone.AddAction(NewInstantaneousAction("extra")))

	require.Len(t, p.Actions(), 1)
	require.Len(t, clone.Actions(), 2)
}

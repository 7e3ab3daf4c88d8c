package verify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitrdm/sociallaw/pkg/agent"
	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/expr"
	"github.com/gitrdm/sociallaw/pkg/problem"
	"github.com/gitrdm/sociallaw/pkg/types"
)

// buildOneAgentRefuel builds a one-agent durative problem: "refuel"
// requires "fuel-port-open" throughout its duration and again at its
// end, and sets "refuelled" true at the end, so the compiled verifier
// exercises an over-all condition (invariant counter) plus a fail-end
// copy for the at-end condition.
func buildOneAgentRefuel(t *testing.T) *problem.Problem {
	t.Helper()
	ctx := expr.NewContext()
	typeCtx := types.NewContext()
	robotType, err := typeCtx.Declare("robot", nil)
	require.NoError(t, err)

	p := problem.New("refuel", ctx, typeCtx)
	r1 := entity.NewObject("r1", robotType)
	require.NoError(t, p.AddObject(r1))

	portOpen := entity.NewFluent("fuel-port-open", entity.ValueBool, nil)
	require.NoError(t, p.AddFluent(portOpen, nil))
	portOpenApp, err := ctx.FluentApp(portOpen)
	require.NoError(t, err)
	require.NoError(t, p.SetInitialValue(portOpenApp, ctx.TRUE()))

	refuelled := entity.NewFluent("refuelled", entity.ValueBool, []*entity.Parameter{entity.NewParameter("r", robotType)})
	require.NoError(t, p.AddFluent(refuelled, ctx.FALSE()))
	refuelledR1, err := ctx.FluentApp(refuelled, ctx.ObjectRef(r1))
	require.NoError(t, err)

	refuel := problem.NewDurativeAction("refuel-r1")
	refuel.SetBinding(problem.FixedAgent(r1))
	refuel.SetDurationConstraint(problem.Duration{Min: ctx.Int(5), Max: ctx.Int(5)})
	refuel.AddCondition(problem.OverClosed, portOpenApp)
	refuel.AddCondition(problem.AtEnd, portOpenApp)
	eff, err := problem.NewEffect(refuelledR1, ctx.TRUE(), nil)
	require.NoError(t, err)
	refuel.AddEffect(problem.TimingEnd, eff)
	require.NoError(t, p.AddAction(refuel))

	a1 := agent.New("agent-r1", r1, []*expr.Expression{refuelledR1})
	require.NoError(t, p.AddAgent(a1))
	return p
}

func TestDurativeVerifierEmitsActionFamily(t *testing.T) {
	p := buildOneAgentRefuel(t)
	v := NewDurativeRobustnessVerifier(p)
	out, err := v.RewrittenProblem()
	require.NoError(t, err)

	require.NotNil(t, out.Action("refuel-r1_s"))
	require.NotNil(t, out.Action("refuel-r1_f_end_0"))
	require.NotNil(t, out.Action("refuel-r1_p"))

	require.NotNil(t, out.Fluent("i-fuel-port-open"))
	require.NotNil(t, out.Fluent("g-fuel-port-open"))
	require.NotNil(t, out.Fluent("l-fuel-port-open"))
	require.NotNil(t, out.Fluent("w-fuel-port-open"))

	succ, ok := out.Action("refuel-r1_s").(*problem.DurativeAction)
	require.True(t, ok)
	atEndConds := succ.ConditionsAt(problem.AtEnd)
	require.NotEmpty(t, atEndConds)
	overConds := succ.ConditionsAt(problem.OverClosed)
	require.NotEmpty(t, overConds)

	startEffects := succ.EffectsAt(problem.TimingStart)
	endEffects := succ.EffectsAt(problem.TimingEnd)
	require.NotEmpty(t, startEffects, "expected the invariant-counter increment at start")
	require.NotEmpty(t, endEffects, "expected the invariant-counter decrement plus mirrored effects at end")
}

// TestDurativeVerifierLocalIsolation checks P6 for the durative
// variant: the success copy's local-mirror effects target only the
// acting agent's own slot.
func TestDurativeVerifierLocalIsolation(t *testing.T) {
	p := buildOneAgentRefuel(t)
	v := NewDurativeRobustnessVerifier(p)
	out, err := v.RewrittenProblem()
	require.NoError(t, err)

	r1 := out.Object("r1")
	require.NotNil(t, r1)

	succ, ok := out.Action("refuel-r1_s").(*problem.DurativeAction)
	require.True(t, ok)

	sawLocalEffect := false
	for _, te := range succ.Effects() {
		if !strings.HasPrefix(te.Effect.Target.Fluent().Name(), "l-") {
			continue
		}
		sawLocalEffect = true
		require.Equal(t, r1, te.Effect.Target.Args()[0].Object())
	}
	require.True(t, sawLocalEffect, "expected at least one local-mirror effect")
}

// TestDurativeVerifierGuardsTrueEffectAgainstWaitingPeers checks that
// setting "refuelled" true at the end of the success copy is gated on
// no agent being parked waiting on it (spec.md §4.5.2).
func TestDurativeVerifierGuardsTrueEffectAgainstWaitingPeers(t *testing.T) {
	p := buildOneAgentRefuel(t)
	v := NewDurativeRobustnessVerifier(p)
	out, err := v.RewrittenProblem()
	require.NoError(t, err)

	succ, ok := out.Action("refuel-r1_s").(*problem.DurativeAction)
	require.True(t, ok)

	waitFluent := out.Fluent("w-refuelled")
	require.NotNil(t, waitFluent)

	found := false
	for _, c := range succ.ConditionsAt(problem.AtEnd) {
		if c.Kind() == expr.KindNot && c.Arg(0).Kind() == expr.KindFluentApp && c.Arg(0).Fluent() == waitFluent {
			found = true
		}
	}
	require.True(t, found, "expected a Not(w-refuelled(...)) condition at end guarding the true-valued effect")

	foundOverClosed := false
	for _, c := range succ.ConditionsAt(problem.OverClosed) {
		if c.Kind() == expr.KindNot && c.Arg(0).Kind() == expr.KindFluentApp && c.Arg(0).Fluent() == waitFluent {
			foundOverClosed = true
		}
	}
	require.True(t, foundOverClosed, "expected the same guard to also hold over the action's whole duration")
}

// buildOneAgentGateRelease builds a one-agent durative problem whose
// action releases a gate fluent (sets it false) at its end, while
// another action asserts that same fluent as an over-all invariant —
// exercising the del-inv guard on the invariant counter.
func buildOneAgentGateRelease(t *testing.T) *problem.Problem {
	t.Helper()
	ctx := expr.NewContext()
	typeCtx := types.NewContext()
	robotType, err := typeCtx.Declare("robot", nil)
	require.NoError(t, err)

	p := problem.New("gate", ctx, typeCtx)
	r1 := entity.NewObject("r1", robotType)
	require.NoError(t, p.AddObject(r1))

	gateHeld := entity.NewFluent("gate-held", entity.ValueBool, nil)
	require.NoError(t, p.AddFluent(gateHeld, ctx.TRUE()))
	gateHeldApp, err := ctx.FluentApp(gateHeld)
	require.NoError(t, err)

	passed := entity.NewFluent("passed", entity.ValueBool, []*entity.Parameter{entity.NewParameter("r", robotType)})
	require.NoError(t, p.AddFluent(passed, ctx.FALSE()))
	passedR1, err := ctx.FluentApp(passed, ctx.ObjectRef(r1))
	require.NoError(t, err)

	cross := problem.NewDurativeAction("cross-r1")
	cross.SetBinding(problem.FixedAgent(r1))
	cross.SetDurationConstraint(problem.Duration{Min: ctx.Int(3), Max: ctx.Int(3)})
	cross.AddCondition(problem.OverClosed, gateHeldApp)
	crossEff, err := problem.NewEffect(passedR1, ctx.TRUE(), nil)
	require.NoError(t, err)
	cross.AddEffect(problem.TimingEnd, crossEff)
	require.NoError(t, p.AddAction(cross))

	release := problem.NewDurativeAction("release-r1")
	release.SetBinding(problem.FixedAgent(r1))
	release.SetDurationConstraint(problem.Duration{Min: ctx.Int(1), Max: ctx.Int(1)})
	releaseEff, err := problem.NewEffect(gateHeldApp, ctx.FALSE(), nil)
	require.NoError(t, err)
	release.AddEffect(problem.TimingEnd, releaseEff)
	require.NoError(t, p.AddAction(release))

	a1 := agent.New("agent-r1", r1, []*expr.Expression{passedR1})
	require.NoError(t, p.AddAgent(a1))
	return p
}

// TestDurativeVerifierGuardsFalseEffectOnInvariantCounter checks the
// del-inv rule: retracting "gate-held" is gated on its invariant
// counter reading zero (spec.md §4.5.2).
func TestDurativeVerifierGuardsFalseEffectOnInvariantCounter(t *testing.T) {
	p := buildOneAgentGateRelease(t)
	v := NewDurativeRobustnessVerifier(p)
	out, err := v.RewrittenProblem()
	require.NoError(t, err)

	releaseSucc, ok := out.Action("release-r1_s").(*problem.DurativeAction)
	require.True(t, ok)

	invCounter := out.Fluent("i-gate-held")
	require.NotNil(t, invCounter)

	found := false
	for _, c := range releaseSucc.ConditionsAt(problem.AtEnd) {
		if c.Kind() == expr.KindEquals && c.Arg(0).Kind() == expr.KindFluentApp && c.Arg(0).Fluent() == invCounter {
			found = true
		}
	}
	require.True(t, found, "expected Equals(i-gate-held, 0) condition guarding the false-valued effect")
}

package verify

import (
	"fmt"

	"github.com/gitrdm/sociallaw/pkg/agent"
	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/errs"
	"github.com/gitrdm/sociallaw/pkg/expr"
	"github.com/gitrdm/sociallaw/pkg/problem"
	"github.com/gitrdm/sociallaw/pkg/transform"
)

// DurativeRobustnessVerifier is the temporal counterpart of
// InstantaneousRobustnessVerifier (spec.md §4.5.2 "Durative variant").
//
// It keeps the at-start/over-all/at-end interval structure of each
// original condition on the emitted action rather than hand-compiling
// interval overlap itself, so the target temporal planner's own
// concurrency semantics enforce "over all" correctness; an integer
// invariant counter i_f(args) is maintained alongside it, incremented
// at the start and decremented at the end of every interval that holds
// f as an invariant, and a false-valued effect on f is gated on that
// counter reading zero before it may fire (del-inv, spec.md §4.5.2),
// per the integer-counter resolution of spec.md §9's open question
// (the alternative successor-chain compilation is not implemented: see
// the design notes for why).
type DurativeRobustnessVerifier struct {
	*transform.Base
	problem *problem.Problem

	oldToNew map[problem.Action][]problem.Action
	newToOld map[problem.Action]problem.Action
}

// NewDurativeRobustnessVerifier builds a verifier for p.
func NewDurativeRobustnessVerifier(p *problem.Problem) *DurativeRobustnessVerifier {
	v := &DurativeRobustnessVerifier{
		problem:  p,
		oldToNew: make(map[problem.Action][]problem.Action),
		newToOld: make(map[problem.Action]problem.Action),
	}
	v.Base = transform.NewBase(p, v.build)
	return v
}

// OldToNew implements transform.ActionMapper.
func (v *DurativeRobustnessVerifier) OldToNew(old problem.Action) []problem.Action {
	return v.oldToNew[old]
}

// NewToOld implements transform.ActionMapper.
func (v *DurativeRobustnessVerifier) NewToOld(newAction problem.Action) problem.Action {
	return v.newToOld[newAction]
}

func (v *DurativeRobustnessVerifier) build() (*problem.Problem, error) {
	src := v.problem
	ctx := src.ExpressionContext()

	agentType, err := requireSingleAgentType(src)
	if err != nil {
		return nil, err
	}

	out := problem.New("verify_"+src.Name, ctx, src.TypeContext())
	for _, a := range src.Agents() {
		if err := out.AddAgent(a); err != nil {
			return nil, err
		}
	}
	for _, o := range src.Objects() {
		if out.Object(o.Name()) == nil {
			if err := out.AddObject(o); err != nil {
				return nil, err
			}
		}
	}

	m, err := buildMirrors(out, src, agentType, true)
	if err != nil {
		return nil, err
	}

	invariantCounters := make(map[*entity.Fluent]*entity.Fluent)
	for _, f := range src.Fluents() {
		ic := entity.NewFluent("i-"+f.Name(), entity.ValueInt, f.Signature())
		invariantCounters[f] = ic
		if err := out.AddFluent(ic, ctx.Int(0)); err != nil {
			return nil, err
		}
	}

	if err := seedInitialState(out, src, m); err != nil {
		return nil, err
	}

	for _, a := range src.Actions() {
		dur, ok := a.(*problem.DurativeAction)
		if !ok {
			return nil, &errs.UnsupportedFeatureError{Feature: "instantaneous action in the durative robustness verifier: " + a.Name()}
		}
		if err := v.emitActionFamily(out, ctx, m, invariantCounters, dur); err != nil {
			return nil, err
		}
	}

	for _, agt := range src.Agents() {
		if err := v.emitEndActions(out, ctx, m, src, agt); err != nil {
			return nil, err
		}
	}

	failureApp, err := ctx.FluentApp(m.failure)
	if err != nil {
		return nil, err
	}
	if err := out.AddGoal(failureApp); err != nil {
		return nil, err
	}
	for _, agt := range src.Agents() {
		finApp, err := ctx.FluentApp(m.fin, ctx.ObjectRef(agt.Object()))
		if err != nil {
			return nil, err
		}
		if err := out.AddGoal(finApp); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// intervalForTiming maps an effect's firing timing to the matching
// instantaneous condition interval, so a condition guarding an effect
// can be attached at the same point the effect fires.
func intervalForTiming(t problem.Timing) problem.Interval {
	if t == problem.TimingStart {
		return problem.AtStart
	}
	return problem.AtEnd
}

// emitActionFamily emits, for one original durative action, its
// success, fail-start-i/fail-end-i, waiting and phantom copies
// (spec.md §4.5.2 "Durative variant").
func (v *DurativeRobustnessVerifier) emitActionFamily(out *problem.Problem, ctx *expr.Context, m *mirrorSet, invariantCounters map[*entity.Fluent]*entity.Fluent, a *problem.DurativeAction) error {
	binding := a.Binding()
	if binding == nil {
		return &errs.ProblemDefinitionError{Reason: "action without agent binding in the robustness verifier: " + a.Name()}
	}
	agentExpr := binding.Expression(ctx, a.Parameters())
	waitingApp := ctx.MustFluentApp(m.waiting, agentExpr)
	notWaiting, err := ctx.Not(waitingApp)
	if err != nil {
		return err
	}
	failureApp := ctx.MustFluentApp(m.failure)

	startConds := a.ConditionsAt(problem.AtStart)
	endConds := a.ConditionsAt(problem.AtEnd)
	overConds := append(append([]*expr.Expression{}, a.ConditionsAt(problem.OverOpen)...), a.ConditionsAt(problem.OverClosed)...)
	waitConds := a.ConditionsWait()

	globalStart := make([]*expr.Expression, len(startConds))
	for i, c := range startConds {
		g, err := toGlobal(ctx, c, m)
		if err != nil {
			return err
		}
		globalStart[i] = g
	}
	globalEnd := make([]*expr.Expression, len(endConds))
	for i, c := range endConds {
		g, err := toGlobal(ctx, c, m)
		if err != nil {
			return err
		}
		globalEnd[i] = g
	}
	globalWait := make([]*expr.Expression, len(waitConds))
	for i, tc := range waitConds {
		g, err := toGlobal(ctx, tc.Expr, m)
		if err != nil {
			return err
		}
		globalWait[i] = g
	}

	// --- success copy ---
	succ := problem.NewDurativeAction(a.Name()+"_s", a.Parameters()...)
	succ.SetBinding(binding)
	succ.SetDurationConstraint(a.Duration())
	succ.AddCondition(problem.AtStart, notWaiting)
	for _, g := range globalStart {
		succ.AddCondition(problem.AtStart, g)
	}
	for _, g := range globalWait {
		succ.AddCondition(problem.AtStart, g)
	}
	for _, g := range globalEnd {
		succ.AddCondition(problem.AtEnd, g)
	}
	for _, c := range overConds {
		gc, err := toGlobal(ctx, c, m)
		if err != nil {
			return err
		}
		succ.AddCondition(problem.OverClosed, gc)
		for _, fapp := range collectFluentApps(c) {
			ic := invariantCounters[fapp.Fluent()]
			icTarget := ctx.MustFluentApp(ic, fapp.Args()...)
			incremented, err := ctx.Plus(icTarget, ctx.Int(1))
			if err != nil {
				return err
			}
			decremented, err := ctx.Minus(icTarget, ctx.Int(1))
			if err != nil {
				return err
			}
			succ.AddEffect(problem.TimingStart, &problem.Effect{Target: icTarget, Value: incremented})
			succ.AddEffect(problem.TimingEnd, &problem.Effect{Target: icTarget, Value: decremented})
		}
	}
	for _, te := range a.Effects() {
		geff, err := effectToGlobal(ctx, te.Effect, m)
		if err != nil {
			return err
		}
		leff, err := effectToLocal(ctx, te.Effect, m, agentExpr)
		if err != nil {
			return err
		}
		succ.AddEffect(te.Timing, geff)
		succ.AddEffect(te.Timing, leff)

		interval := intervalForTiming(te.Timing)
		switch {
		case te.Effect.Value.IsFalse():
			// del-inv: a false effect may not fire while any action
			// still has this fluent as an over-all invariant.
			ic := invariantCounters[te.Effect.Target.Fluent()]
			icTarget := ctx.MustFluentApp(ic, te.Effect.Target.Args()...)
			zero, err := ctx.Equals(icTarget, ctx.Int(0))
			if err != nil {
				return err
			}
			succ.AddCondition(interval, zero)
		case te.Effect.Value.IsTrue():
			// a true effect may not fire while any agent is parked
			// waiting on this fluent.
			wMirror := m.wait[te.Effect.Target.Fluent()]
			for _, peer := range v.problem.Agents() {
				wApp := ctx.MustFluentApp(wMirror, append([]*expr.Expression{ctx.ObjectRef(peer.Object())}, te.Effect.Target.Args()...)...)
				notW, err := ctx.Not(wApp)
				if err != nil {
					return err
				}
				succ.AddCondition(interval, notW)
				if te.Timing == problem.TimingEnd {
					succ.AddCondition(problem.OverClosed, notW)
				}
			}
		}
	}
	if err := out.AddAction(succ); err != nil {
		return err
	}
	v.oldToNew[a] = append(v.oldToNew[a], succ)
	v.newToOld[succ] = a

	// --- fail-start-i copies: a start condition is violated ---
	for i := range startConds {
		notPre, err := ctx.Not(globalStart[i])
		if err != nil {
			return err
		}
		fa := problem.NewInstantaneousAction(fmt.Sprintf("%s_f_start_%d", a.Name(), i), a.Parameters()...)
		fa.SetBinding(binding)
		fa.AddPrecondition(notWaiting)
		for _, g := range globalWait {
			fa.AddPrecondition(g)
		}
		fa.AddPrecondition(notPre)
		fa.AddEffect(&problem.Effect{Target: failureApp, Value: ctx.TRUE()})
		for _, te := range a.Effects() {
			if te.Timing != problem.TimingStart {
				continue
			}
			leff, err := effectToLocal(ctx, te.Effect, m, agentExpr)
			if err != nil {
				return err
			}
			fa.AddEffect(leff)
		}
		if err := out.AddAction(fa); err != nil {
			return err
		}
		v.oldToNew[a] = append(v.oldToNew[a], fa)
		v.newToOld[fa] = a
	}

	// --- fail-end-i copies: an end condition is violated ---
	for i := range endConds {
		notPre, err := ctx.Not(globalEnd[i])
		if err != nil {
			return err
		}
		fa := problem.NewInstantaneousAction(fmt.Sprintf("%s_f_end_%d", a.Name(), i), a.Parameters()...)
		fa.SetBinding(binding)
		fa.AddPrecondition(notWaiting)
		fa.AddPrecondition(notPre)
		fa.AddEffect(&problem.Effect{Target: failureApp, Value: ctx.TRUE()})
		for _, te := range a.Effects() {
			leff, err := effectToLocal(ctx, te.Effect, m, agentExpr)
			if err != nil {
				return err
			}
			fa.AddEffect(leff)
		}
		if err := out.AddAction(fa); err != nil {
			return err
		}
		v.oldToNew[a] = append(v.oldToNew[a], fa)
		v.newToOld[fa] = a
	}

	// --- waiting copies: a waitfor condition is not yet true ---
	for j, tc := range waitConds {
		notWait, err := ctx.Not(globalWait[j])
		if err != nil {
			return err
		}
		wa := problem.NewInstantaneousAction(fmt.Sprintf("%s_waiting_%d", a.Name(), j), a.Parameters()...)
		wa.SetBinding(binding)
		wa.AddPrecondition(notWaiting)
		wa.AddPrecondition(notWait)
		for _, fapp := range collectFluentApps(tc.Expr) {
			wMirror := m.wait[fapp.Fluent()]
			wTarget := ctx.MustFluentApp(wMirror, append([]*expr.Expression{agentExpr}, fapp.Args()...)...)
			wa.AddEffect(&problem.Effect{Target: wTarget, Value: ctx.TRUE()})
		}
		wa.AddEffect(&problem.Effect{Target: waitingApp, Value: ctx.TRUE()})
		wa.AddEffect(&problem.Effect{Target: failureApp, Value: ctx.TRUE()})
		if err := out.AddAction(wa); err != nil {
			return err
		}
		v.oldToNew[a] = append(v.oldToNew[a], wa)
		v.newToOld[wa] = a
	}

	// --- phantom copy: keeps A's local projection moving once it has
	// failed or stalled, analogous to the instantaneous variant's
	// _pc/_pw copies but unsplit, since durative actions have no
	// separate crash flag ---
	failedOrWaiting, err := ctx.Or(failureApp, waitingApp)
	if err != nil {
		return err
	}
	ph := problem.NewInstantaneousAction(a.Name()+"_p", a.Parameters()...)
	ph.SetBinding(binding)
	ph.AddPrecondition(failedOrWaiting)
	for _, te := range a.Effects() {
		leff, err := effectToLocal(ctx, te.Effect, m, agentExpr)
		if err != nil {
			return err
		}
		ph.AddEffect(leff)
	}
	if err := out.AddAction(ph); err != nil {
		return err
	}
	v.oldToNew[a] = append(v.oldToNew[a], ph)
	v.newToOld[ph] = a

	return nil
}

// emitEndActions mirrors InstantaneousRobustnessVerifier's end actions;
// end_w_A here uses the shared waiting(A) flag rather than quantifying
// over every w_f(A, …) mirror, since the waiting family above already
// routes every stall through that flag (spec.md §4.5.3).
func (v *DurativeRobustnessVerifier) emitEndActions(out *problem.Problem, ctx *expr.Context, m *mirrorSet, src *problem.Problem, agt *agent.Agent) error {
	obj := agt.Object()
	agentExpr := ctx.ObjectRef(obj)
	notFin, err := ctx.Not(ctx.MustFluentApp(m.fin, agentExpr))
	if err != nil {
		return err
	}

	localGoals := make([]*expr.Expression, len(agt.Goals()))
	globalGoals := make([]*expr.Expression, len(agt.Goals()))
	for i, g := range agt.Goals() {
		lg, err := toLocal(ctx, g, m, agentExpr)
		if err != nil {
			return err
		}
		gg, err := toGlobal(ctx, g, m)
		if err != nil {
			return err
		}
		localGoals[i] = lg
		globalGoals[i] = gg
	}

	othersFin := make([]*expr.Expression, 0, len(src.Agents())-1)
	for _, other := range src.Agents() {
		if other.Name() == agt.Name() {
			continue
		}
		othersFin = append(othersFin, ctx.MustFluentApp(m.fin, ctx.ObjectRef(other.Object())))
	}
	allOthersFin, err := andAll(ctx, othersFin...)
	if err != nil {
		return err
	}

	endS := problem.NewInstantaneousAction("end_s_" + agt.Name())
	endS.AddPrecondition(notFin)
	for _, lg := range localGoals {
		endS.AddPrecondition(lg)
	}
	for _, gg := range globalGoals {
		endS.AddPrecondition(gg)
	}
	endS.AddEffect(&problem.Effect{Target: ctx.MustFluentApp(m.fin, agentExpr), Value: ctx.TRUE()})
	endS.AddEffect(&problem.Effect{Target: ctx.MustFluentApp(m.act), Value: ctx.FALSE(), Condition: allOthersFin})
	if err := out.AddAction(endS); err != nil {
		return err
	}

	waitingApp := ctx.MustFluentApp(m.waiting, agentExpr)
	endW := problem.NewInstantaneousAction("end_w_" + agt.Name())
	endW.AddPrecondition(notFin)
	endW.AddPrecondition(waitingApp)
	for _, lg := range localGoals {
		endW.AddPrecondition(lg)
	}
	endW.AddEffect(&problem.Effect{Target: ctx.MustFluentApp(m.fin, agentExpr), Value: ctx.TRUE()})
	if err := out.AddAction(endW); err != nil {
		return err
	}

	for i := range agt.Goals() {
		notGlobal, err := ctx.Not(globalGoals[i])
		if err != nil {
			return err
		}
		endF := problem.NewInstantaneousAction(fmt.Sprintf("end_f_%s_%d", agt.Name(), i))
		endF.AddPrecondition(notFin)
		for _, lg := range localGoals {
			endF.AddPrecondition(lg)
		}
		endF.AddPrecondition(notGlobal)
		endF.AddEffect(&problem.Effect{Target: ctx.MustFluentApp(m.fin, agentExpr), Value: ctx.TRUE()})
		endF.AddEffect(&problem.Effect{Target: ctx.MustFluentApp(m.failure), Value: ctx.TRUE()})
		if err := out.AddAction(endF); err != nil {
			return err
		}
	}

	return nil
}

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

// InstantaneousRobustnessVerifier compiles a classical multi-agent
// problem into the robustness-verification game described in spec.md
// §4.5: a plan for the produced problem is, by construction, a
// counterexample to the input law's robustness.
type InstantaneousRobustnessVerifier struct {
	*transform.Base
	problem *problem.Problem

	oldToNew map[problem.Action][]problem.Action
	newToOld map[problem.Action]problem.Action
}

// NewInstantaneousRobustnessVerifier builds a verifier for p.
func NewInstantaneousRobustnessVerifier(p *problem.Problem) *InstantaneousRobustnessVerifier {
	v := &InstantaneousRobustnessVerifier{
		problem:  p,
		oldToNew: make(map[problem.Action][]problem.Action),
		newToOld: make(map[problem.Action]problem.Action),
	}
	v.Base = transform.NewBase(p, v.build)
	return v
}

// OldToNew implements transform.ActionMapper.
func (v *InstantaneousRobustnessVerifier) OldToNew(old problem.Action) []problem.Action {
	return v.oldToNew[old]
}

// NewToOld implements transform.ActionMapper.
func (v *InstantaneousRobustnessVerifier) NewToOld(newAction problem.Action) problem.Action {
	return v.newToOld[newAction]
}

func (v *InstantaneousRobustnessVerifier) build() (*problem.Problem, error) {
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

	m, err := buildMirrors(out, src, agentType, false)
	if err != nil {
		return nil, err
	}
	crash := entity.NewFluent("crash", entity.ValueBool, nil)
	m.crash = crash
	if err := out.AddFluent(crash, ctx.FALSE()); err != nil {
		return nil, err
	}

	if err := seedInitialState(out, src, m); err != nil {
		return nil, err
	}

	for _, a := range src.Actions() {
		inst, ok := a.(*problem.InstantaneousAction)
		if !ok {
			return nil, &errs.UnsupportedFeatureError{Feature: "durative action in the instantaneous robustness verifier: " + a.Name()}
		}
		if err := v.emitActionFamily(out, ctx, m, inst); err != nil {
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

// emitActionFamily emits, for one original action, its success,
// fail-i, wait-i and phantom copies (spec.md §4.5.2).
func (v *InstantaneousRobustnessVerifier) emitActionFamily(out *problem.Problem, ctx *expr.Context, m *mirrorSet, a *problem.InstantaneousAction) error {
	binding := a.Binding()
	if binding == nil {
		return &errs.ProblemDefinitionError{Reason: "action without agent binding in the robustness verifier: " + a.Name()}
	}
	agentExpr := binding.Expression(ctx, a.Parameters())

	notWaiting, err := ctx.Not(ctx.MustFluentApp(m.waiting, agentExpr))
	if err != nil {
		return err
	}
	crashApp := ctx.MustFluentApp(m.crash)
	notCrash, err := ctx.Not(crashApp)
	if err != nil {
		return err
	}
	waitingApp := ctx.MustFluentApp(m.waiting, agentExpr)

	globalPres := make([]*expr.Expression, len(a.Preconditions()))
	for i, pc := range a.Preconditions() {
		gp, err := toGlobal(ctx, pc, m)
		if err != nil {
			return err
		}
		globalPres[i] = gp
	}
	globalWaits := make([]*expr.Expression, len(a.PreconditionsWait()))
	for j, wc := range a.PreconditionsWait() {
		gw, err := toGlobal(ctx, wc, m)
		if err != nil {
			return err
		}
		globalWaits[j] = gw
	}

	// --- success copy ---
	succ := problem.NewInstantaneousAction(a.Name()+"_s", a.Parameters()...)
	succ.SetBinding(binding)
	succ.AddPrecondition(notWaiting)
	succ.AddPrecondition(notCrash)
	for _, gp := range globalPres {
		succ.AddPrecondition(gp)
	}
	for _, gw := range globalWaits {
		succ.AddPrecondition(gw)
	}
	for _, eff := range a.Effects() {
		if eff.Value.IsTrue() {
			wApp := ctx.MustFluentApp(m.wait[eff.Target.Fluent()], eff.Target.Args()...)
			notW, err := ctx.Not(wApp)
			if err != nil {
				return err
			}
			succ.AddPrecondition(notW)
		}
		geff, err := effectToGlobal(ctx, eff, m)
		if err != nil {
			return err
		}
		leff, err := effectToLocal(ctx, eff, m, agentExpr)
		if err != nil {
			return err
		}
		succ.AddEffect(geff)
		succ.AddEffect(leff)
	}
	if err := out.AddAction(succ); err != nil {
		return err
	}
	v.oldToNew[a] = append(v.oldToNew[a], succ)
	v.newToOld[succ] = a

	// --- fail-i copies ---
	for i := range a.Preconditions() {
		notPre, err := ctx.Not(globalPres[i])
		if err != nil {
			return err
		}
		fa := problem.NewInstantaneousAction(fmt.Sprintf("%s_f_%d", a.Name(), i), a.Parameters()...)
		fa.SetBinding(binding)
		fa.AddPrecondition(notCrash)
		fa.AddPrecondition(notWaiting)
		for _, gw := range globalWaits {
			fa.AddPrecondition(gw)
		}
		fa.AddPrecondition(notPre)
		fa.AddEffect(&problem.Effect{Target: ctx.MustFluentApp(m.failure), Value: ctx.TRUE()})
		fa.AddEffect(&problem.Effect{Target: crashApp, Value: ctx.TRUE()})
		for _, eff := range a.Effects() {
			leff, err := effectToLocal(ctx, eff, m, agentExpr)
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

	// --- wait-i copies ---
	for j, wc := range a.PreconditionsWait() {
		notWait, err := ctx.Not(globalWaits[j])
		if err != nil {
			return err
		}
		wa := problem.NewInstantaneousAction(fmt.Sprintf("%s_w_%d", a.Name(), j), a.Parameters()...)
		wa.SetBinding(binding)
		wa.AddPrecondition(notCrash)
		wa.AddPrecondition(notWaiting)
		wa.AddPrecondition(notWait)
		for _, fapp := range collectFluentApps(wc) {
			wMirror := m.wait[fapp.Fluent()]
			wTarget := ctx.MustFluentApp(wMirror, fapp.Args()...)
			wa.AddEffect(&problem.Effect{Target: wTarget, Value: ctx.TRUE()})
		}
		wa.AddEffect(&problem.Effect{Target: waitingApp, Value: ctx.TRUE()})
		wa.AddEffect(&problem.Effect{Target: ctx.MustFluentApp(m.failure), Value: ctx.TRUE()})
		if err := out.AddAction(wa); err != nil {
			return err
		}
		v.oldToNew[a] = append(v.oldToNew[a], wa)
		v.newToOld[wa] = a
	}

	// --- phantom copies: keep A's local projection moving once it has
	// crashed or stalled, so end_s_A/end_f_A_i remain reachable ---
	pc := problem.NewInstantaneousAction(a.Name()+"_pc", a.Parameters()...)
	pc.SetBinding(binding)
	pc.AddPrecondition(crashApp)
	for _, eff := range a.Effects() {
		leff, err := effectToLocal(ctx, eff, m, agentExpr)
		if err != nil {
			return err
		}
		pc.AddEffect(leff)
	}
	if err := out.AddAction(pc); err != nil {
		return err
	}
	v.oldToNew[a] = append(v.oldToNew[a], pc)
	v.newToOld[pc] = a

	pw := problem.NewInstantaneousAction(a.Name()+"_pw", a.Parameters()...)
	pw.SetBinding(binding)
	pw.AddPrecondition(waitingApp)
	for _, eff := range a.Effects() {
		leff, err := effectToLocal(ctx, eff, m, agentExpr)
		if err != nil {
			return err
		}
		pw.AddEffect(leff)
	}
	if err := out.AddAction(pw); err != nil {
		return err
	}
	v.oldToNew[a] = append(v.oldToNew[a], pw)
	v.newToOld[pw] = a

	return nil
}

// emitEndActions emits end_s_A, end_w_A and end_f_A_i for one agent
// (spec.md §4.5.3).
func (v *InstantaneousRobustnessVerifier) emitEndActions(out *problem.Problem, ctx *expr.Context, m *mirrorSet, src *problem.Problem, agt *agent.Agent) error {
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

	// end_s_A
	endS := problem.NewInstantaneousAction("end_s_"+agt.Name())
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

	// end_w_A: agent gives up while blocked, as long as its own local
	// view already satisfies its goals.
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

	// end_f_A_i: one per goal, witnessing that the agent believes its
	// goals are met locally while the world disagrees.
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

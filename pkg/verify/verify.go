// Package verify implements the robustness-verification compilation:
// given a multi-agent problem and (for the durative variant) a
// duration model, produce a classical or temporal planning problem
// whose solutions are counterexamples to robustness — plans in which
// some agent, acting only on its own local view of the world, either
// violates a precondition or deadlocks waiting on a proposition that
// never becomes true (spec.md §4.5).
//
// Both verifiers share the state-space extension (global/local/waiting
// fluent mirrors, the act/failure/crash/fin/waiting flags) and the
// rewrite helpers that project an original expression into its global
// or agent-local form; only the action-family compilation differs
// between the instantaneous and durative variants, so that shared
// machinery lives in this file and each variant gets its own.
package verify

import (
	"fmt"

	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/errs"
	"github.com/gitrdm/sociallaw/pkg/expr"
	"github.com/gitrdm/sociallaw/pkg/problem"
	"github.com/gitrdm/sociallaw/pkg/types"
)

// mirrorSet collects, for one verifier run, the g_/l_/w_ fluents paired
// with every original fluent, plus the nullary/unary flags shared by
// both variants.
type mirrorSet struct {
	global map[*entity.Fluent]*entity.Fluent
	local  map[*entity.Fluent]*entity.Fluent
	wait   map[*entity.Fluent]*entity.Fluent

	act     *entity.Fluent
	failure *entity.Fluent
	crash   *entity.Fluent // nil in the durative variant: no single crash flag
	fin     *entity.Fluent
	waiting *entity.Fluent

	agentParam *entity.Parameter
}

// mirrorFluent declares a fluent named prefix+f.Name(), optionally
// prefixing f's signature with extra, over the same value type as f.
func mirrorFluent(f *entity.Fluent, prefix string, extra ...*entity.Parameter) *entity.Fluent {
	sig := append(append([]*entity.Parameter{}, extra...), f.Signature()...)
	return entity.NewFluent(prefix+f.Name(), f.ValueType(), sig)
}

// buildMirrors declares g_/l_/w_ mirrors for every fluent in src plus
// the shared flags, registers them on out, and returns the lookup
// tables. waitHasAgent selects whether w_ fluents take an agent
// parameter (the durative variant, spec.md §4.5.1) or not (the
// instantaneous variant).
func buildMirrors(out *problem.Problem, src *problem.Problem, agentType *types.UserType, waitHasAgent bool) (*mirrorSet, error) {
	ctx := out.ExpressionContext()
	agentParam := entity.NewParameter("agent", agentType)

	m := &mirrorSet{
		global:     make(map[*entity.Fluent]*entity.Fluent),
		local:      make(map[*entity.Fluent]*entity.Fluent),
		wait:       make(map[*entity.Fluent]*entity.Fluent),
		agentParam: agentParam,
	}

	for _, f := range src.Fluents() {
		gf := mirrorFluent(f, "g-")
		lf := mirrorFluent(f, "l-", agentParam)
		var wf *entity.Fluent
		if waitHasAgent {
			wf = mirrorFluent(f, "w-", agentParam)
		} else {
			wf = mirrorFluent(f, "w-")
		}
		m.global[f] = gf
		m.local[f] = lf
		m.wait[f] = wf
		if err := out.AddFluent(gf, ctx.FALSE()); err != nil {
			return nil, err
		}
		if err := out.AddFluent(lf, ctx.FALSE()); err != nil {
			return nil, err
		}
		if err := out.AddFluent(wf, ctx.FALSE()); err != nil {
			return nil, err
		}
	}

	m.act = entity.NewFluent("act", entity.ValueBool, nil)
	m.failure = entity.NewFluent("failure", entity.ValueBool, nil)
	m.fin = entity.NewFluent("fin", entity.ValueBool, []*entity.Parameter{agentParam})
	m.waiting = entity.NewFluent("waiting", entity.ValueBool, []*entity.Parameter{agentParam})
	if err := out.AddFluent(m.act, ctx.FALSE()); err != nil {
		return nil, err
	}
	if err := out.AddFluent(m.failure, ctx.FALSE()); err != nil {
		return nil, err
	}
	if err := out.AddFluent(m.fin, ctx.FALSE()); err != nil {
		return nil, err
	}
	if err := out.AddFluent(m.waiting, ctx.FALSE()); err != nil {
		return nil, err
	}
	return m, nil
}

// seedInitialState copies src's initial state into the global mirror
// and into every agent's local mirror, and sets act true (spec.md
// §4.5.1 "Initial state").
func seedInitialState(out *problem.Problem, src *problem.Problem, m *mirrorSet) error {
	ctx := out.ExpressionContext()
	for _, entry := range src.InitialValues() {
		f := entry.App.Fluent()
		gApp, err := ctx.FluentApp(m.global[f], entry.App.Args()...)
		if err != nil {
			return err
		}
		if err := out.SetInitialValue(gApp, entry.Value); err != nil {
			return err
		}
		for _, a := range src.Agents() {
			lApp, err := ctx.FluentApp(m.local[f], append([]*expr.Expression{ctx.ObjectRef(a.Object())}, entry.App.Args()...)...)
			if err != nil {
				return err
			}
			if err := out.SetInitialValue(lApp, entry.Value); err != nil {
				return err
			}
		}
	}
	actApp, err := ctx.FluentApp(m.act)
	if err != nil {
		return err
	}
	return out.SetInitialValue(actApp, ctx.TRUE())
}

// rewriteWithMirror rewrites every fluent application in e, replacing
// fluent f with mirrors[f] and prepending prefixArgs to its argument
// list. It is the single engine behind both toGlobal and toLocal.
func rewriteWithMirror(ctx *expr.Context, e *expr.Expression, mirrors map[*entity.Fluent]*entity.Fluent, prefixArgs ...*expr.Expression) (*expr.Expression, error) {
	replace := func(x *expr.Expression) (*expr.Expression, bool) {
		if x.Kind() != expr.KindFluentApp {
			return nil, false
		}
		mf, ok := mirrors[x.Fluent()]
		if !ok {
			return nil, false
		}
		args := append(append([]*expr.Expression{}, prefixArgs...), x.Args()...)
		return ctx.MustFluentApp(mf, args...), true
	}
	return expr.Rewrite(ctx, e, replace)
}

func toGlobal(ctx *expr.Context, e *expr.Expression, m *mirrorSet) (*expr.Expression, error) {
	return rewriteWithMirror(ctx, e, m.global)
}

func toLocal(ctx *expr.Context, e *expr.Expression, m *mirrorSet, agentExpr *expr.Expression) (*expr.Expression, error) {
	return rewriteWithMirror(ctx, e, m.local, agentExpr)
}

func effectToGlobal(ctx *expr.Context, eff *problem.Effect, m *mirrorSet) (*problem.Effect, error) {
	target, err := toGlobal(ctx, eff.Target, m)
	if err != nil {
		return nil, err
	}
	value, err := toGlobal(ctx, eff.Value, m)
	if err != nil {
		return nil, err
	}
	var cond *expr.Expression
	if eff.Condition != nil {
		if cond, err = toGlobal(ctx, eff.Condition, m); err != nil {
			return nil, err
		}
	}
	return &problem.Effect{Target: target, Value: value, Condition: cond}, nil
}

func effectToLocal(ctx *expr.Context, eff *problem.Effect, m *mirrorSet, agentExpr *expr.Expression) (*problem.Effect, error) {
	target, err := toLocal(ctx, eff.Target, m, agentExpr)
	if err != nil {
		return nil, err
	}
	value, err := toLocal(ctx, eff.Value, m, agentExpr)
	if err != nil {
		return nil, err
	}
	var cond *expr.Expression
	if eff.Condition != nil {
		if cond, err = toLocal(ctx, eff.Condition, m, agentExpr); err != nil {
			return nil, err
		}
	}
	return &problem.Effect{Target: target, Value: value, Condition: cond}, nil
}

// andAll returns the conjunction of args, or TRUE for an empty list
// (the vacuous case that arises when an agent has no peers).
func andAll(ctx *expr.Context, args ...*expr.Expression) (*expr.Expression, error) {
	if len(args) == 0 {
		return ctx.TRUE(), nil
	}
	return ctx.And(args...)
}

// collectFluentApps returns, in first-seen order, every distinct
// ground-or-parametric fluent application occurring anywhere in e
// (positively or negated) — used to find which fluent a waitfor
// condition is actually stalling on.
func collectFluentApps(e *expr.Expression) []*expr.Expression {
	var out []*expr.Expression
	seen := make(map[int]bool)
	expr.Walk(e, false, func(n *expr.Expression) {
		if n.Kind() == expr.KindFluentApp && !seen[n.ID()] {
			seen[n.ID()] = true
			out = append(out, n)
		}
	})
	return out
}

func actionSuffix(idx int, prefix string) string {
	return fmt.Sprintf("%s%d", prefix, idx)
}

func requireSingleAgentType(p *problem.Problem) (*types.UserType, error) {
	t, err := p.AgentType()
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, &errs.ProblemDefinitionError{Reason: "robustness verification requires at least one declared agent"}
	}
	return t, nil
}

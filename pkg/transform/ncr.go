package transform

import (
	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/expr"
	"github.com/gitrdm/sociallaw/pkg/problem"
)

// NegativeConditionsRemover rewrites a problem so that no Boolean
// expression negates a fluent application directly: for every fluent f
// used under a Not, it introduces a fresh mirror fluent neg_f whose
// value always tracks !f, and replaces every Not(f(args)) with
// neg_f(args) (spec.md §4.3).
type NegativeConditionsRemover struct {
	*Base
	problem *problem.Problem
	negMap  map[*entity.Fluent]*entity.Fluent
}

// NewNegativeConditionsRemover builds a remover for p.
func NewNegativeConditionsRemover(p *problem.Problem) *NegativeConditionsRemover {
	n := &NegativeConditionsRemover{problem: p, negMap: make(map[*entity.Fluent]*entity.Fluent)}
	n.Base = NewBase(p, n.build)
	return n
}

// NegatedFluent returns the mirror fluent introduced for f, or nil if
// f was never negated in the input problem. Valid only after
// RewrittenProblem has been called once.
func (n *NegativeConditionsRemover) NegatedFluent(f *entity.Fluent) *entity.Fluent {
	return n.negMap[f]
}

func (n *NegativeConditionsRemover) build() (*problem.Problem, error) {
	src := n.problem
	ctx := src.ExpressionContext()

	normalized, err := normalizeProblemToNNF(src)
	if err != nil {
		return nil, err
	}

	negated := collectNegatedFluents(normalized)

	out := normalized.Clone()
	out.Name = "ncr_" + normalized.Name
	out.ClearActions()

	for _, f := range negated {
		negF := entity.NewFluent("neg-"+f.Name(), f.ValueType(), f.Signature())
		n.negMap[f] = negF
		if err := out.AddFluent(negF, nil); err != nil {
			return nil, err
		}
	}

	replace := func(e *expr.Expression) (*expr.Expression, bool) {
		if e.Kind() != expr.KindNot {
			return nil, false
		}
		child := e.Arg(0)
		if child.Kind() != expr.KindFluentApp {
			return nil, false
		}
		negF, ok := n.negMap[child.Fluent()]
		if !ok {
			return nil, false
		}
		// negF was declared with f's exact signature, so this can never
		// fail on arity/type grounds.
		return ctx.MustFluentApp(negF, child.Args()...), true
	}

	rewrite := func(e *expr.Expression) (*expr.Expression, error) {
		return expr.Rewrite(ctx, e, replace)
	}

	for _, app := range groundEveryNegatedFluent(normalized, negated) {
		f := app.Fluent()
		negF := n.negMap[f]
		val, ok := normalized.InitialValue(app)
		if !ok {
			continue
		}
		negApp, err := ctx.FluentApp(negF, app.Args()...)
		if err != nil {
			return nil, err
		}
		negVal, err := negateBool(ctx, val)
		if err != nil {
			return nil, err
		}
		out.SetInitialValue(negApp, negVal)
	}

	out.ClearGoals()
	for _, g := range normalized.Goals() {
		rg, err := rewrite(g)
		if err != nil {
			return nil, err
		}
		if err := out.AddGoal(rg); err != nil {
			return nil, err
		}
	}

	for _, a := range normalized.Actions() {
		switch act := a.(type) {
		case *problem.InstantaneousAction:
			na := problem.NewInstantaneousAction(act.Name(), act.Parameters()...)
			na.SetBinding(act.Binding())
			for _, pc := range act.Preconditions() {
				rpc, err := rewrite(pc)
				if err != nil {
					return nil, err
				}
				na.AddPrecondition(rpc)
			}
			for _, pc := range act.PreconditionsWait() {
				rpc, err := rewrite(pc)
				if err != nil {
					return nil, err
				}
				na.AddPreconditionWait(rpc)
			}
			for _, eff := range act.Effects() {
				rEff, err := rewriteEffect(ctx, rewrite, eff, n.negMap)
				if err != nil {
					return nil, err
				}
				na.AddEffect(rEff)
				if mirror, ok := n.negMap[eff.Target.Fluent()]; ok {
					mirrorEff, err := mirrorEffect(ctx, rewrite, eff, mirror)
					if err != nil {
						return nil, err
					}
					na.AddEffect(mirrorEff)
				}
			}
			if err := out.AddAction(na); err != nil {
				return nil, err
			}
		case *problem.DurativeAction:
			na := problem.NewDurativeAction(act.Name(), act.Parameters()...)
			na.SetBinding(act.Binding())
			na.SetDurationConstraint(act.Duration())
			for _, tc := range act.Conditions() {
				rc, err := rewrite(tc.Expr)
				if err != nil {
					return nil, err
				}
				na.AddCondition(tc.Interval, rc)
			}
			for _, tc := range act.ConditionsWait() {
				rc, err := rewrite(tc.Expr)
				if err != nil {
					return nil, err
				}
				na.AddConditionWait(tc.Interval, rc)
			}
			for _, te := range act.Effects() {
				rEff, err := rewriteEffect(ctx, rewrite, te.Effect, n.negMap)
				if err != nil {
					return nil, err
				}
				na.AddEffect(te.Timing, rEff)
				if mirror, ok := n.negMap[te.Effect.Target.Fluent()]; ok {
					mirrorEff, err := mirrorEffect(ctx, rewrite, te.Effect, mirror)
					if err != nil {
						return nil, err
					}
					na.AddEffect(te.Timing, mirrorEff)
				}
			}
			if err := out.AddAction(na); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

func rewriteEffect(ctx *expr.Context, rewrite func(*expr.Expression) (*expr.Expression, error), eff *problem.Effect, negMap map[*entity.Fluent]*entity.Fluent) (*problem.Effect, error) {
	var cond *expr.Expression
	if eff.Condition != nil {
		var err error
		cond, err = rewrite(eff.Condition)
		if err != nil {
			return nil, err
		}
	}
	return &problem.Effect{Target: eff.Target, Value: eff.Value, Condition: cond}, nil
}

// mirrorEffect builds the paired effect setting the mirror fluent to
// the negation of the original effect's value, under the same
// (rewritten) condition and timing as the original (spec.md §4.3 step
// 3).
func mirrorEffect(ctx *expr.Context, rewrite func(*expr.Expression) (*expr.Expression, error), eff *problem.Effect, mirror *entity.Fluent) (*problem.Effect, error) {
	mirrorTarget, err := ctx.FluentApp(mirror, eff.Target.Args()...)
	if err != nil {
		return nil, err
	}
	mirrorValue, err := negateBool(ctx, eff.Value)
	if err != nil {
		return nil, err
	}
	var cond *expr.Expression
	if eff.Condition != nil {
		cond, err = rewrite(eff.Condition)
		if err != nil {
			return nil, err
		}
	}
	return &problem.Effect{Target: mirrorTarget, Value: mirrorValue, Condition: cond}, nil
}

func negateBool(ctx *expr.Context, v *expr.Expression) (*expr.Expression, error) {
	if v.Kind() == expr.KindBoolConst {
		return ctx.Bool(!v.BoolValue()), nil
	}
	return ctx.Not(v)
}

// collectNegatedFluents returns, in first-seen order, every distinct
// fluent negated anywhere in p's preconditions, waitfor preconditions,
// goals, timed goals, or effect conditions.
func collectNegatedFluents(p *problem.Problem) []*entity.Fluent {
	var order []*entity.Fluent
	seen := make(map[*entity.Fluent]bool)
	add := func(e *expr.Expression) {
		for _, f := range expr.FluentsUnderNot(e) {
			if !seen[f] {
				seen[f] = true
				order = append(order, f)
			}
		}
	}
	for _, g := range p.Goals() {
		add(g)
	}
	for _, tg := range p.TimedGoals() {
		add(tg.Goal)
	}
	for _, a := range p.Actions() {
		switch act := a.(type) {
		case *problem.InstantaneousAction:
			for _, pc := range act.Preconditions() {
				add(pc)
			}
			for _, pc := range act.PreconditionsWait() {
				add(pc)
			}
			for _, eff := range act.Effects() {
				if eff.Condition != nil {
					add(eff.Condition)
				}
			}
		case *problem.DurativeAction:
			for _, tc := range act.Conditions() {
				add(tc.Expr)
			}
			for _, tc := range act.ConditionsWait() {
				add(tc.Expr)
			}
			for _, te := range act.Effects() {
				if te.Effect.Condition != nil {
					add(te.Effect.Condition)
				}
			}
		}
	}
	return order
}

func groundEveryNegatedFluent(p *problem.Problem, fluents []*entity.Fluent) []*expr.Expression {
	var out []*expr.Expression
	for _, f := range fluents {
		apps, err := p.GroundFluentApplications(f)
		if err != nil {
			continue
		}
		out = append(out, apps...)
	}
	return out
}

// normalizeProblemToNNF returns a clone of p with every Boolean
// expression pushed to negation normal form, failing with
// ExpressionDefinitionError if an Iff blocks normalisation anywhere
// (spec.md §4.3 "Failure").
func normalizeProblemToNNF(p *problem.Problem) (*problem.Problem, error) {
	ctx := p.ExpressionContext()
	out := p.Clone()
	out.ClearGoals()
	for _, g := range p.Goals() {
		ng, err := expr.ToNNF(ctx, g)
		if err != nil {
			return nil, err
		}
		if err := out.AddGoal(ng); err != nil {
			return nil, err
		}
	}
	out.ClearActions()
	for _, a := range p.Actions() {
		switch act := a.(type) {
		case *problem.InstantaneousAction:
			na := problem.NewInstantaneousAction(act.Name(), act.Parameters()...)
			na.SetBinding(act.Binding())
			for _, pc := range act.Preconditions() {
				npc, err := expr.ToNNF(ctx, pc)
				if err != nil {
					return nil, err
				}
				na.AddPrecondition(npc)
			}
			for _, pc := range act.PreconditionsWait() {
				npc, err := expr.ToNNF(ctx, pc)
				if err != nil {
					return nil, err
				}
				na.AddPreconditionWait(npc)
			}
			for _, eff := range act.Effects() {
				cond := eff.Condition
				if cond != nil {
					var err error
					cond, err = expr.ToNNF(ctx, cond)
					if err != nil {
						return nil, err
					}
				}
				na.AddEffect(&problem.Effect{Target: eff.Target, Value: eff.Value, Condition: cond})
			}
			if err := out.AddAction(na); err != nil {
				return nil, err
			}
		case *problem.DurativeAction:
			na := problem.NewDurativeAction(act.Name(), act.Parameters()...)
			na.SetBinding(act.Binding())
			na.SetDurationConstraint(act.Duration())
			for _, tc := range act.Conditions() {
				nc, err := expr.ToNNF(ctx, tc.Expr)
				if err != nil {
					return nil, err
				}
				na.AddCondition(tc.Interval, nc)
			}
			for _, tc := range act.ConditionsWait() {
				nc, err := expr.ToNNF(ctx, tc.Expr)
				if err != nil {
					return nil, err
				}
				na.AddConditionWait(tc.Interval, nc)
			}
			for _, te := range act.Effects() {
				cond := te.Effect.Condition
				if cond != nil {
					var err error
					cond, err = expr.ToNNF(ctx, cond)
					if err != nil {
						return nil, err
					}
				}
				na.AddEffect(te.Timing, &problem.Effect{Target: te.Effect.Target, Value: te.Effect.Value, Condition: cond})
			}
			if err := out.AddAction(na); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

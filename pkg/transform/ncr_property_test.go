package transform

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/expr"
	"github.com/gitrdm/sociallaw/pkg/problem"
	"github.com/gitrdm/sociallaw/pkg/types"
)

// buildNegationProblem builds a fresh problem with one nullary Boolean
// fluent per entry of negate, each initially true, whose goal conjoins
// fluent i negated when negate[i] is true and bare otherwise. Varying
// negate exercises the negative-conditions remover over every possible
// subset of negated fluents.
func buildNegationProblem(negate []bool) (*problem.Problem, *expr.Context, []*entity.Fluent, error) {
	ctx := expr.NewContext()
	typeCtx := types.NewContext()
	p := problem.New("gen", ctx, typeCtx)

	fluents := make([]*entity.Fluent, len(negate))
	var goalParts []*expr.Expression
	for i, neg := range negate {
		f := entity.NewFluent(fmt.Sprintf("f%d", i), entity.ValueBool, nil)
		fluents[i] = f
		if err := p.AddFluent(f, nil); err != nil {
			return nil, nil, nil, err
		}
		app, err := ctx.FluentApp(f)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := p.SetInitialValue(app, ctx.TRUE()); err != nil {
			return nil, nil, nil, err
		}
		if neg {
			napp, err := ctx.Not(app)
			if err != nil {
				return nil, nil, nil, err
			}
			goalParts = append(goalParts, napp)
		} else {
			goalParts = append(goalParts, app)
		}
	}
	if len(goalParts) > 0 {
		goal, err := ctx.And(goalParts...)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := p.AddGoal(goal); err != nil {
			return nil, nil, nil, err
		}
	}
	return p, ctx, fluents, nil
}

// TestNegativeConditionsRemoverFluentCountIsExact verifies Property 2
// (spec.md §8 P2): the remover adds exactly one mirror fluent per
// distinct fluent negated anywhere in the problem, never more, never
// fewer, for any subset of negated fluents.
func TestNegativeConditionsRemoverFluentCountIsExact(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 80
	properties := gopter.NewProperties(parameters)

	properties.Property("added fluent count equals negated fluent count", prop.ForAll(
		func(negate []bool) bool {
			p, _, fluents, err := buildNegationProblem(negate)
			if err != nil {
				return false
			}
			ncr := NewNegativeConditionsRemover(p)
			out, err := ncr.RewrittenProblem()
			if err != nil {
				return false
			}

			wantNegated := 0
			for _, neg := range negate {
				if neg {
					wantNegated++
				}
			}
			if len(out.Fluents()) != len(p.Fluents())+wantNegated {
				return false
			}
			for i, neg := range negate {
				mirror := ncr.NegatedFluent(fluents[i])
				if neg != (mirror != nil) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(6, gen.Bool()),
	))

	properties.TestingRun(t)
}

// TestNegativeConditionsRemoverFlipsInitialSign verifies Property 3
// (spec.md §8 P3): every mirror fluent's initial value is the Boolean
// negation of the original fluent's initial value.
func TestNegativeConditionsRemoverFlipsInitialSign(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 80
	properties := gopter.NewProperties(parameters)

	properties.Property("mirror initial value is the negation of the original", prop.ForAll(
		func(negate []bool) bool {
			p, ctx, fluents, err := buildNegationProblem(negate)
			if err != nil {
				return false
			}
			ncr := NewNegativeConditionsRemover(p)
			out, err := ncr.RewrittenProblem()
			if err != nil {
				return false
			}

			for i, neg := range negate {
				if !neg {
					continue
				}
				mirror := ncr.NegatedFluent(fluents[i])
				if mirror == nil {
					return false
				}
				negApp, err := out.ExpressionContext().FluentApp(mirror)
				if err != nil {
					return false
				}
				negVal, ok := out.InitialValue(negApp)
				if !ok {
					return false
				}
				origApp, err := ctx.FluentApp(fluents[i])
				if err != nil {
					return false
				}
				origVal, ok := p.InitialValue(origApp)
				if !ok {
					return false
				}
				if negVal.IsTrue() == origVal.IsTrue() {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(6, gen.Bool()),
	))

	properties.TestingRun(t)
}

// TestNegativeConditionsRemoverIsIdempotentAcrossInputs verifies
// Property 1 (spec.md §8 P1): calling RewrittenProblem twice on the
// same remover returns the identical pointer, for any input shape.
func TestNegativeConditionsRemoverIsIdempotentAcrossInputs(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 80
	properties := gopter.NewProperties(parameters)

	properties.Property("RewrittenProblem is cached", prop.ForAll(
		func(negate []bool) bool {
			p, _, _, err := buildNegationProblem(negate)
			if err != nil {
				return false
			}
			ncr := NewNegativeConditionsRemover(p)
			first, err := ncr.RewrittenProblem()
			if err != nil {
				return false
			}
			second, err := ncr.RewrittenProblem()
			if err != nil {
				return false
			}
			return first == second
		},
		gen.SliceOfN(6, gen.Bool()),
	))

	properties.TestingRun(t)
}

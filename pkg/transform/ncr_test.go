package transform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/expr"
	"github.com/gitrdm/sociallaw/pkg/problem"
	"github.com/gitrdm/sociallaw/pkg/types"
)

// buildBlockWorldProblem builds a minimal one-action classical problem
// over two fluents, one of them required by the precondition and
// negated in the goal, used to exercise P2/P3 (NCR's fluent-count and sign-flip
// invariants) without depending on any larger domain.
func buildBlockWorldProblem(t *testing.T) (*problem.Problem, *entity.Fluent, *entity.Fluent) {
	t.Helper()
	ctx := expr.NewContext()
	typeCtx := types.NewContext()
	block, err := typeCtx.Declare("block", nil)
	require.NoError(t, err)

	p := problem.New("blocks", ctx, typeCtx)
	a := entity.NewObject("a", block)
	require.NoError(t, p.AddObject(a))

	clear := entity.NewFluent("clear", entity.ValueBool, []*entity.Parameter{entity.NewParameter("b", block)})
	onTable := entity.NewFluent("on-table", entity.ValueBool, []*entity.Parameter{entity.NewParameter("b", block)})
	require.NoError(t, p.AddFluent(clear, nil))
	require.NoError(t, p.AddFluent(onTable, nil))

	clearA, err := ctx.FluentApp(clear, ctx.ObjectRef(a))
	require.NoError(t, err)
	onTableA, err := ctx.FluentApp(onTable, ctx.ObjectRef(a))
	require.NoError(t, err)
	require.NoError(t, p.SetInitialValue(clearA, ctx.TRUE()))
	require.NoError(t, p.SetInitialValue(onTableA, ctx.FALSE()))

	notClearA, err := ctx.Not(clearA)
	require.NoError(t, err)

	pickUp := problem.NewInstantaneousAction("pick-up")
	pickUp.AddPrecondition(clearA)
	eff, err := problem.NewEffect(clearA, ctx.FALSE(), nil)
	require.NoError(t, err)
	pickUp.AddEffect(eff)
	require.NoError(t, p.AddAction(pickUp))

	require.NoError(t, p.AddGoal(notClearA))
	return p, clear, onTable
}

func TestNegativeConditionsRemoverFluentCount(t *testing.T) {
	p, clear, onTable := buildBlockWorldProblem(t)
	require.True(t, p.Kind().Has(problem.HasNegativeConditions))

	ncr := NewNegativeConditionsRemover(p)
	out, err := ncr.RewrittenProblem()
	require.NoError(t, err)

	// P2: |fluents(NCR(P))| = |fluents(P)| + n, n = number of distinct
	// fluent symbols negated in preconditions/goals/conditional
	// effects. Here only "clear" is ever negated (in the goal);
	// "on-table" never appears under Not.
	require.Len(t, out.Fluents(), len(p.Fluents())+1)
	require.NotNil(t, ncr.NegatedFluent(clear))
	require.Nil(t, ncr.NegatedFluent(onTable))
}

func TestNegativeConditionsRemoverSignFlip(t *testing.T) {
	p, clear, _ := buildBlockWorldProblem(t)
	ncr := NewNegativeConditionsRemover(p)
	out, err := ncr.RewrittenProblem()
	require.NoError(t, err)

	ctx := out.ExpressionContext()
	negClear := ncr.NegatedFluent(clear)
	require.NotNil(t, negClear)

	a := out.Object("a")
	require.NotNil(t, a)

	clearA, err := ctx.FluentApp(clear, ctx.ObjectRef(a))
	require.NoError(t, err)
	negClearA, err := ctx.FluentApp(negClear, ctx.ObjectRef(a))
	require.NoError(t, err)

	clearVal, ok := out.InitialValue(clearA)
	require.True(t, ok)
	negVal, ok := out.InitialValue(negClearA)
	require.True(t, ok)

	// P3: in the initial state, s(neg_f(a)) = !s(f(a)).
	require.Equal(t, clearVal.IsTrue(), !negVal.IsTrue())

	// The goal, originally not(clear(a)), must have been rewritten to
	// the mirror fluent directly rather than left as a negation.
	require.Len(t, out.Goals(), 1)
	goal := out.Goals()[0]
	require.Equal(t, expr.KindFluentApp, goal.Kind())
	require.Equal(t, negClear, goal.Fluent())
}

func TestIdempotentCaching(t *testing.T) {
	p, _, _ := buildBlockWorldProblem(t)
	ncr := NewNegativeConditionsRemover(p)
	first, err := ncr.RewrittenProblem()
	require.NoError(t, err)
	second, err := ncr.RewrittenProblem()
	require.NoError(t, err)
	require.Same(t, first, second)
}

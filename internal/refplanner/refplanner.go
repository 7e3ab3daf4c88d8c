// Package refplanner is a small breadth-first STRIPS planner used only
// by this module's own tests to exercise the compiled problems end to
// end without a real external planner binary on the test machine. It
// implements planner.Planner but must never be imported by pkg/social,
// pkg/verify, pkg/transform, pkg/problem or pkg/expr: it is test
// infrastructure, not part of the core.
//
// Grounded on the teacher's iterative, frontier-based search in
// pkg/minikanren/search.go: a BFS frontier plays the role DFSSearch's
// explicit stack plays there, with states instead of constraint-store
// snapshots and a node budget instead of a solution-count limit.
package refplanner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/errs"
	"github.com/gitrdm/sociallaw/pkg/expr"
	"github.com/gitrdm/sociallaw/pkg/planner"
	"github.com/gitrdm/sociallaw/pkg/problem"
)

// DefaultNodeBudget bounds how many states the search expands before
// giving up and reporting UnsolvableIncomplete, so a runaway grounding
// (e.g. a mis-specified test domain) fails a test instead of hanging
// it.
const DefaultNodeBudget = 200_000

// Planner is a breadth-first, fully-grounded STRIPS planner over
// instantaneous actions. Durative actions are supported at reduced
// fidelity: every condition across all intervals is treated as a
// single applicability precondition and every effect (at start or at
// end) fires atomically in one step, discarding true temporal extent
// — adequate for driving the functional scenarios this module tests
// against, not a substitute for a real temporal planner.
type Planner struct {
	// NodeBudget overrides DefaultNodeBudget when non-zero.
	NodeBudget int
}

// New builds a Planner with the default node budget.
func New() *Planner { return &Planner{} }

// groundAction is one fully-typed ground instance of a declared
// action: a precondition, an effect list, and the object arguments
// used to report it back as a planner.ActionInstance.
type groundAction struct {
	name      string
	args      []*entity.Object
	precond   *expr.Expression
	effects   []*problem.Effect
}

// Solve runs breadth-first search over p's ground action instances
// from its initial state to a state satisfying every goal conjunct.
func (pl *Planner) Solve(p *problem.Problem) (planner.Result, error) {
	ctx := p.ExpressionContext()
	budget := pl.NodeBudget
	if budget <= 0 {
		budget = DefaultNodeBudget
	}

	grounded, err := groundActions(p)
	if err != nil {
		return planner.Result{Status: planner.Error}, err
	}

	start, err := initialState(p)
	if err != nil {
		return planner.Result{Status: planner.Error}, err
	}

	goal, err := ctx.And(p.Goals()...)
	if err != nil {
		return planner.Result{Status: planner.Error}, &errs.PlannerError{Reason: "conjoining goals", Err: err}
	}

	type node struct {
		state state
		path  []planner.ActionInstance
	}

	visited := map[string]bool{start.key(): true}
	frontier := []node{{state: start}}
	expanded := 0

	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]

		if ok, err := evalBool(ctx, goal, cur.state); err != nil {
			return planner.Result{Status: planner.Error}, err
		} else if ok {
			plan := planner.Plan{}
			for _, ai := range cur.path {
				plan.Steps = append(plan.Steps, planner.Step{Action: ai})
			}
			return planner.Result{Status: planner.SolvedSat, Plan: &plan}, nil
		}

		expanded++
		if expanded > budget {
			return planner.Result{Status: planner.UnsolvableIncomplete}, nil
		}

		for _, ga := range grounded {
			applicable, err := evalBool(ctx, ga.precond, cur.state)
			if err != nil {
				return planner.Result{Status: planner.Error}, err
			}
			if !applicable {
				continue
			}
			next, err := applyEffects(ctx, cur.state, ga.effects)
			if err != nil {
				return planner.Result{Status: planner.Error}, err
			}
			key := next.key()
			if visited[key] {
				continue
			}
			visited[key] = true
			args := make([]string, len(ga.args))
			for i, o := range ga.args {
				args[i] = o.Name()
			}
			path := append(append([]planner.ActionInstance{}, cur.path...), planner.ActionInstance{ActionName: ga.name, Args: args})
			frontier = append(frontier, node{state: next, path: path})
		}
	}
	return planner.Result{Status: planner.UnsolvableProven}, nil
}

// state maps a canonical ground fluent-application key to its current
// value expression (a BoolConst or IntConst).
type state map[string]*expr.Expression

func (s state) key() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, valueToken(s[k]))
	}
	return b.String()
}

func valueToken(v *expr.Expression) any {
	if v.ValueType() == entity.ValueBool {
		return v.IsTrue()
	}
	return v.IntValue()
}

func (s state) clone() state {
	out := make(state, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func groundKey(f *entity.Fluent, args []*entity.Object) string {
	var b strings.Builder
	b.WriteString(f.Name())
	b.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(a.Name())
	}
	b.WriteByte(')')
	return b.String()
}

func initialState(p *problem.Problem) (state, error) {
	ctx := p.ExpressionContext()
	s := make(state)
	for _, f := range p.Fluents() {
		apps, err := p.GroundFluentApplications(f)
		if err != nil {
			return nil, err
		}
		for _, app := range apps {
			val, ok := p.InitialValue(app)
			if !ok {
				if f.ValueType() == entity.ValueBool {
					val = ctx.FALSE()
				} else {
					val = ctx.Int(0)
				}
			}
			s[stateKeyOf(app)] = val
		}
	}
	return s, nil
}

func stateKeyOf(groundApp *expr.Expression) string {
	args := make([]*entity.Object, len(groundApp.Args()))
	for i, a := range groundApp.Args() {
		args[i] = a.Object()
	}
	return groundKey(groundApp.Fluent(), args)
}

// groundActions enumerates every ground instance of every declared
// instantaneous action by taking the cartesian product of each
// parameter's typed object set. Preconditions-wait are folded into
// the ordinary applicability precondition: in the untransformed
// domain a waitfor condition is still a condition the action's
// ordinary execution depends on (only the robustness-verifier
// compilation splits "can't proceed" from "stalls waiting"), matching
// the same folding transform.SingleAgentProjection performs.
func groundActions(p *problem.Problem) ([]groundAction, error) {
	ctx := p.ExpressionContext()
	var out []groundAction
	for _, a := range p.Actions() {
		ia, ok := a.(*problem.InstantaneousAction)
		if !ok {
			da, ok := a.(*problem.DurativeAction)
			if !ok {
				return nil, &errs.UnsupportedFeatureError{Feature: "unknown action kind in reference planner"}
			}
			actions, err := groundDurative(p, da)
			if err != nil {
				return nil, err
			}
			out = append(out, actions...)
			continue
		}

		bindings, err := cartesianBindings(p, ia.Parameters())
		if err != nil {
			return nil, err
		}
		for _, binding := range bindings {
			precondExprs := append(append([]*expr.Expression{}, ia.Preconditions()...), ia.PreconditionsWait()...)
			grounded := make([]*expr.Expression, len(precondExprs))
			for i, e := range precondExprs {
				g, err := groundExpr(ctx, e, binding)
				if err != nil {
					return nil, err
				}
				grounded[i] = g
			}
			precond, err := ctx.And(grounded...)
			if err != nil {
				return nil, err
			}
			effects, err := groundEffects(ctx, ia.Effects(), binding)
			if err != nil {
				return nil, err
			}
			out = append(out, groundAction{
				name:    ia.Name(),
				args:    objectArgs(ia.Parameters(), binding),
				precond: precond,
				effects: effects,
			})
		}
	}
	return out, nil
}

func groundDurative(p *problem.Problem, da *problem.DurativeAction) ([]groundAction, error) {
	ctx := p.ExpressionContext()
	bindings, err := cartesianBindings(p, da.Parameters())
	if err != nil {
		return nil, err
	}
	var out []groundAction
	for _, binding := range bindings {
		var condExprs []*expr.Expression
		for _, tc := range da.Conditions() {
			condExprs = append(condExprs, tc.Expr)
		}
		for _, tc := range da.ConditionsWait() {
			condExprs = append(condExprs, tc.Expr)
		}
		grounded := make([]*expr.Expression, len(condExprs))
		for i, e := range condExprs {
			g, err := groundExpr(ctx, e, binding)
			if err != nil {
				return nil, err
			}
			grounded[i] = g
		}
		precond, err := ctx.And(grounded...)
		if err != nil {
			return nil, err
		}
		var rawEffects []*problem.Effect
		for _, te := range da.Effects() {
			rawEffects = append(rawEffects, te.Effect)
		}
		effects, err := groundEffects(ctx, rawEffects, binding)
		if err != nil {
			return nil, err
		}
		out = append(out, groundAction{
			name:    da.Name(),
			args:    objectArgs(da.Parameters(), binding),
			precond: precond,
			effects: effects,
		})
	}
	return out, nil
}

func objectArgs(params []*entity.Parameter, binding map[*entity.Parameter]*entity.Object) []*entity.Object {
	out := make([]*entity.Object, len(params))
	for i, pm := range params {
		out[i] = binding[pm]
	}
	return out
}

// cartesianBindings enumerates every assignment of params to objects
// of the problem whose type matches (or subtypes) the parameter's
// declared type, in a deterministic order (outer loop over the first
// parameter, matching declaration order throughout).
func cartesianBindings(p *problem.Problem, params []*entity.Parameter) ([]map[*entity.Parameter]*entity.Object, error) {
	if len(params) == 0 {
		return []map[*entity.Parameter]*entity.Object{{}}, nil
	}
	domains := make([][]*entity.Object, len(params))
	for i, pm := range params {
		domains[i] = p.ObjectsOfType(pm.Type())
		if len(domains[i]) == 0 {
			return nil, nil
		}
	}
	var out []map[*entity.Parameter]*entity.Object
	indices := make([]int, len(params))
	for {
		binding := make(map[*entity.Parameter]*entity.Object, len(params))
		for i, pm := range params {
			binding[pm] = domains[i][indices[i]]
		}
		out = append(out, binding)

		pos := len(params) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(domains[pos]) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return out, nil
}

// groundExpr substitutes every ParamRef in e bound by binding with the
// corresponding object, producing a fully ground expression.
func groundExpr(ctx *expr.Context, e *expr.Expression, binding map[*entity.Parameter]*entity.Object) (*expr.Expression, error) {
	return expr.Rewrite(ctx, e, func(n *expr.Expression) (*expr.Expression, bool) {
		if n.Kind() != expr.KindParamRef {
			return nil, false
		}
		obj, ok := binding[n.Parameter()]
		if !ok {
			return nil, false
		}
		return ctx.ObjectRef(obj), true
	})
}

func groundEffects(ctx *expr.Context, effects []*problem.Effect, binding map[*entity.Parameter]*entity.Object) ([]*problem.Effect, error) {
	out := make([]*problem.Effect, len(effects))
	for i, e := range effects {
		target, err := groundExpr(ctx, e.Target, binding)
		if err != nil {
			return nil, err
		}
		value, err := groundExpr(ctx, e.Value, binding)
		if err != nil {
			return nil, err
		}
		var cond *expr.Expression
		if e.Condition != nil {
			cond, err = groundExpr(ctx, e.Condition, binding)
			if err != nil {
				return nil, err
			}
		}
		ge, err := problem.NewEffect(target, value, cond)
		if err != nil {
			return nil, err
		}
		out[i] = ge
	}
	return out, nil
}

func applyEffects(ctx *expr.Context, s state, effects []*problem.Effect) (state, error) {
	next := s.clone()
	for _, e := range effects {
		if e.Condition != nil {
			ok, err := evalBool(ctx, e.Condition, s)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		val, err := evalValue(ctx, e.Value, s)
		if err != nil {
			return nil, err
		}
		next[stateKeyOf(e.Target)] = val
	}
	return next, nil
}

// evalValue evaluates a ground expression to its constant value under
// state s (no free parameters: actions are already grounded before
// this is called). Arithmetic results are built fresh via ctx rather
// than reused from the state map, since they are transient scratch
// values, never looked up again by identity.
func evalValue(ctx *expr.Context, e *expr.Expression, s state) (*expr.Expression, error) {
	switch e.Kind() {
	case expr.KindBoolConst, expr.KindIntConst:
		return e, nil
	case expr.KindFluentApp:
		v, ok := s[stateKeyOf(e)]
		if !ok {
			return nil, &errs.ProblemDefinitionError{Reason: "reference planner: unbound fluent application " + stateKeyOf(e)}
		}
		return v, nil
	case expr.KindPlus, expr.KindMinus, expr.KindTimes:
		var acc int64
		for i, arg := range e.Args() {
			v, err := evalValue(ctx, arg, s)
			if err != nil {
				return nil, err
			}
			n := v.IntValue()
			switch {
			case i == 0:
				acc = n
			case e.Kind() == expr.KindPlus:
				acc += n
			case e.Kind() == expr.KindMinus:
				acc -= n
			case e.Kind() == expr.KindTimes:
				acc *= n
			}
		}
		return ctx.Int(acc), nil
	default:
		return nil, &errs.UnsupportedFeatureError{Feature: "reference planner: cannot evaluate expression kind as a value"}
	}
}

// evalBool evaluates a ground Boolean expression under state s.
func evalBool(ctx *expr.Context, e *expr.Expression, s state) (bool, error) {
	switch e.Kind() {
	case expr.KindBoolConst:
		return e.IsTrue(), nil
	case expr.KindFluentApp:
		v, ok := s[stateKeyOf(e)]
		if !ok {
			return false, &errs.ProblemDefinitionError{Reason: "reference planner: unbound fluent application " + stateKeyOf(e)}
		}
		return v.IsTrue(), nil
	case expr.KindNot:
		v, err := evalBool(ctx, e.Arg(0), s)
		return !v, err
	case expr.KindAnd:
		for _, a := range e.Args() {
			v, err := evalBool(ctx, a, s)
			if err != nil || !v {
				return false, err
			}
		}
		return true, nil
	case expr.KindOr:
		for _, a := range e.Args() {
			v, err := evalBool(ctx, a, s)
			if err != nil {
				return false, err
			}
			if v {
				return true, nil
			}
		}
		return false, nil
	case expr.KindIff:
		a, err := evalBool(ctx, e.Arg(0), s)
		if err != nil {
			return false, err
		}
		b, err := evalBool(ctx, e.Arg(1), s)
		if err != nil {
			return false, err
		}
		return a == b, nil
	case expr.KindEquals:
		return evalEquals(ctx, e, s)
	case expr.KindGT:
		a, err := evalValue(ctx, e.Arg(0), s)
		if err != nil {
			return false, err
		}
		b, err := evalValue(ctx, e.Arg(1), s)
		if err != nil {
			return false, err
		}
		return a.IntValue() > b.IntValue(), nil
	default:
		return false, &errs.UnsupportedFeatureError{Feature: "reference planner: cannot evaluate expression kind as boolean"}
	}
}

func evalEquals(ctx *expr.Context, e *expr.Expression, s state) (bool, error) {
	a, err := evalValue(ctx, e.Arg(0), s)
	if err != nil {
		return false, err
	}
	b, err := evalValue(ctx, e.Arg(1), s)
	if err != nil {
		return false, err
	}
	if a.ValueType() == entity.ValueBool {
		return a.IsTrue() == b.IsTrue(), nil
	}
	return a.IntValue() == b.IntValue(), nil
}

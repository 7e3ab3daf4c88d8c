// Package problem implements the symbolic planning problem model:
// typed objects, fluents, parameterised instantaneous/durative
// actions, a total (defaults-allowed) initial value map, goals, and
// the multi-agent extension (agent objects, per-action agent binding).
//
// A Problem exclusively owns its declared fluents, objects, actions
// and agents. Expressions are shared via the owning expr.Context's
// intern table. Entities are created via builder-style methods; once
// inserted into a problem they must not be mutated in place — clone
// the action, modify the clone, then insert the clone.
package problem

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/gitrdm/sociallaw/internal/parallel"
	"github.com/gitrdm/sociallaw/pkg/agent"
	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/errs"
	"github.com/gitrdm/sociallaw/pkg/expr"
	"github.com/gitrdm/sociallaw/pkg/types"
)

// Kind is a set of feature flags describing which language features a
// Problem uses, so a pass or the orchestrator can pick the right
// variant (spec.md §4.2).
type Kind uint32

const (
	HasNegativeConditions Kind = 1 << iota
	HasDurativeActions
	HasMultiAgent
	HasWaitfor
	HasNumericEffects
	HasQuantifiers
	HasConditionalEffects
)

// Has reports whether every flag in want is set in k.
func (k Kind) Has(want Kind) bool { return k&want == want }

// initialEntry is one (ground fluent application, value) pair in the
// initial state map, kept in insertion order for determinism.
type initialEntry struct {
	app   *expr.Expression
	value *expr.Expression
}

// Problem aggregates fluent declarations, objects, actions, the initial
// state, goals, timed goals, timed effects and agents.
type Problem struct {
	Name string

	ctx     *expr.Context
	typeCtx *types.Context

	fluents      []*entity.Fluent
	fluentByName map[string]*entity.Fluent

	objects      []*entity.Object
	objectByName map[string]*entity.Object

	actions      []Action
	actionByName map[string]Action

	initial      []initialEntry
	initialIndex map[int]int // ground fluent-app expression ID -> index into initial
	defaults     map[*entity.Fluent]*expr.Expression

	goals []*expr.Expression

	// timedGoals holds goals that must hold at a specific timing rather
	// than at the end of the plan, e.g. a deadline goal.
	timedGoals []TimedGoal

	// timedEffects holds exogenous effects not attached to any action,
	// firing at a fixed timing.
	timedEffects []TimedEffect

	agents      []*agent.Agent
	agentByName map[string]*agent.Agent
}

// TimedGoal is a goal that must hold at a fixed timing rather than
// simply at plan end.
type TimedGoal struct {
	Timing Timing
	Goal   *expr.Expression
}

// New creates an empty problem named name, backed by the given
// expression and type contexts (spec.md §9: "specify it as an explicit
// Context passed into every constructor").
func New(name string, ctx *expr.Context, typeCtx *types.Context) *Problem {
	return &Problem{
		Name:         name,
		ctx:          ctx,
		typeCtx:      typeCtx,
		fluentByName: make(map[string]*entity.Fluent),
		objectByName: make(map[string]*entity.Object),
		actionByName: make(map[string]Action),
		initialIndex: make(map[int]int),
		defaults:     make(map[*entity.Fluent]*expr.Expression),
		agentByName:  make(map[string]*agent.Agent),
	}
}

// ExpressionContext returns the expr.Context this problem's expressions
// are interned in.
func (p *Problem) ExpressionContext() *expr.Context { return p.ctx }

// TypeContext returns this problem's user type context.
func (p *Problem) TypeContext() *types.Context { return p.typeCtx }

// AddFluent declares a new fluent. defaultInitialValue, if non-nil, is
// the value ground applications of f take unless SetInitialValue gives
// them an explicit value (spec.md §3: "a total map ... to values;
// defaults allowed"). Duplicate names fail fast.
func (p *Problem) AddFluent(f *entity.Fluent, defaultInitialValue *expr.Expression) error {
	if _, exists := p.fluentByName[f.Name()]; exists {
		return &errs.ProblemDefinitionError{Reason: "duplicate fluent name: " + f.Name()}
	}
	p.fluents = append(p.fluents, f)
	p.fluentByName[f.Name()] = f
	if defaultInitialValue != nil {
		p.defaults[f] = defaultInitialValue
	}
	return nil
}

// Fluents returns every declared fluent, in declaration order.
func (p *Problem) Fluents() []*entity.Fluent {
	out := make([]*entity.Fluent, len(p.fluents))
	copy(out, p.fluents)
	return out
}

// Fluent looks up a declared fluent by name.
func (p *Problem) Fluent(name string) *entity.Fluent { return p.fluentByName[name] }

// HasFluentNamed reports whether a fluent named name is declared.
func (p *Problem) HasFluentNamed(name string) bool {
	_, ok := p.fluentByName[name]
	return ok
}

// AddObject declares a new object. Duplicate names fail fast.
func (p *Problem) AddObject(o *entity.Object) error {
	if _, exists := p.objectByName[o.Name()]; exists {
		return &errs.ProblemDefinitionError{Reason: "duplicate object name: " + o.Name()}
	}
	p.objects = append(p.objects, o)
	p.objectByName[o.Name()] = o
	return nil
}

// AddObjects declares every object in os, stopping at the first error.
func (p *Problem) AddObjects(os []*entity.Object) error {
	for _, o := range os {
		if err := p.AddObject(o); err != nil {
			return err
		}
	}
	return nil
}

// Objects returns every declared object, in declaration order.
func (p *Problem) Objects() []*entity.Object {
	out := make([]*entity.Object, len(p.objects))
	copy(out, p.objects)
	return out
}

// Object looks up a declared object by name.
func (p *Problem) Object(name string) *entity.Object { return p.objectByName[name] }

// ObjectsOfType returns every declared object whose type is t or a
// subtype of t, in declaration order.
func (p *Problem) ObjectsOfType(t *types.UserType) []*entity.Object {
	var out []*entity.Object
	for _, o := range p.objects {
		if o.Type().IsSubtypeOf(t) {
			out = append(out, o)
		}
	}
	return out
}

// HasType reports whether t (looked up by name) is declared in this
// problem's type context.
func (p *Problem) HasType(name string) bool { return p.typeCtx.Lookup(name) != nil }

// AddAction declares a new action. Duplicate names fail fast.
func (p *Problem) AddAction(a Action) error {
	if _, exists := p.actionByName[a.Name()]; exists {
		return &errs.ProblemDefinitionError{Reason: "duplicate action name: " + a.Name()}
	}
	p.actions = append(p.actions, a)
	p.actionByName[a.Name()] = a
	return nil
}

// ClearActions removes every declared action (used by transformers
// that rebuild the action set from scratch on a clone).
func (p *Problem) ClearActions() {
	p.actions = nil
	p.actionByName = make(map[string]Action)
}

// Actions returns every declared action, in declaration order.
func (p *Problem) Actions() []Action {
	out := make([]Action, len(p.actions))
	copy(out, p.actions)
	return out
}

// Action looks up a declared action by name.
func (p *Problem) Action(name string) Action { return p.actionByName[name] }

// SetInitialValue sets the initial value of the ground fluent
// application app to value, overwriting any previous value. app must
// be a FluentApp with no ParamRef among its arguments.
func (p *Problem) SetInitialValue(app, value *expr.Expression) error {
	if app.Kind() != expr.KindFluentApp {
		return &errs.ProblemDefinitionError{Reason: "initial value target must be a fluent application"}
	}
	for _, arg := range app.Args() {
		if arg.Kind() == expr.KindParamRef {
			return &errs.ProblemDefinitionError{Reason: "initial value target must be ground"}
		}
	}
	if idx, ok := p.initialIndex[app.ID()]; ok {
		p.initial[idx].value = value
		return nil
	}
	p.initialIndex[app.ID()] = len(p.initial)
	p.initial = append(p.initial, initialEntry{app: app, value: value})
	return nil
}

// InitialValue returns the initial value of the ground fluent
// application app: an explicit value if one was set, otherwise the
// fluent's declared default, otherwise ok is false.
func (p *Problem) InitialValue(app *expr.Expression) (value *expr.Expression, ok bool) {
	if idx, exists := p.initialIndex[app.ID()]; exists {
		return p.initial[idx].value, true
	}
	if d, exists := p.defaults[app.Fluent()]; exists {
		return d, true
	}
	return nil, false
}

// InitialValues returns every explicitly-set (ground fluent
// application, value) pair, in insertion order — deterministic, as
// required by spec.md §5.
func (p *Problem) InitialValues() []struct {
	App   *expr.Expression
	Value *expr.Expression
} {
	out := make([]struct {
		App   *expr.Expression
		Value *expr.Expression
	}, len(p.initial))
	for i, e := range p.initial {
		out[i].App = e.app
		out[i].Value = e.value
	}
	return out
}

// AddGoal appends g to the problem's goal conjunction.
func (p *Problem) AddGoal(g *expr.Expression) error {
	if g.ValueType() != entity.ValueBool {
		return &errs.TypeError{Context: "goal", Expected: "bool", Actual: g.ValueType().String()}
	}
	p.goals = append(p.goals, g)
	return nil
}

// Goals returns the problem's goal conjunction, in insertion order.
func (p *Problem) Goals() []*expr.Expression {
	out := make([]*expr.Expression, len(p.goals))
	copy(out, p.goals)
	return out
}

// ClearGoals removes every declared goal.
func (p *Problem) ClearGoals() { p.goals = nil }

// AddTimedGoal appends a goal that must hold at timing t rather than
// merely at plan end.
func (p *Problem) AddTimedGoal(t Timing, g *expr.Expression) {
	p.timedGoals = append(p.timedGoals, TimedGoal{Timing: t, Goal: g})
}

// TimedGoals returns every timed goal, in insertion order.
func (p *Problem) TimedGoals() []TimedGoal {
	out := make([]TimedGoal, len(p.timedGoals))
	copy(out, p.timedGoals)
	return out
}

// AddTimedEffect appends an exogenous effect firing at timing t,
// independent of any action.
func (p *Problem) AddTimedEffect(t Timing, e *Effect) {
	p.timedEffects = append(p.timedEffects, TimedEffect{Timing: t, Effect: e})
}

// TimedEffects returns every exogenous timed effect, in insertion
// order.
func (p *Problem) TimedEffects() []TimedEffect {
	out := make([]TimedEffect, len(p.timedEffects))
	copy(out, p.timedEffects)
	return out
}

// AddAgent declares an agent. Unless the agent is backed by an object
// that already exists in the problem for other reasons (NewExisting),
// its object is added to the problem's object set. Duplicate agent
// names, or agents whose object collides with a differently-typed
// existing object, fail fast.
func (p *Problem) AddAgent(a *agent.Agent) error {
	if _, exists := p.agentByName[a.Name()]; exists {
		return &errs.ProblemDefinitionError{Reason: "duplicate agent name: " + a.Name()}
	}
	if !a.IsExisting() {
		if existing := p.Object(a.Object().Name()); existing == nil {
			if err := p.AddObject(a.Object()); err != nil {
				return err
			}
		} else if existing.Type() != a.Object().Type() {
			return &errs.ProblemDefinitionError{Reason: "agent object collides with a differently-typed object: " + a.Object().Name()}
		}
	} else if existing := p.Object(a.Object().Name()); existing != a.Object() {
		return &errs.ProblemDefinitionError{Reason: "existing agent object not declared in problem: " + a.Object().Name()}
	}
	p.agents = append(p.agents, a)
	p.agentByName[a.Name()] = a
	return nil
}

// Agents returns every declared agent, in declaration order.
func (p *Problem) Agents() []*agent.Agent {
	out := make([]*agent.Agent, len(p.agents))
	copy(out, p.agents)
	return out
}

// Agent looks up a declared agent by name.
func (p *Problem) Agent(name string) *agent.Agent { return p.agentByName[name] }

// AgentType returns the single user type shared by every declared
// agent's object, or an error if agents of heterogeneous types are
// declared (a ProblemDefinitionError per spec.md §7 — the robustness
// verifier requires exactly one agent type).
func (p *Problem) AgentType() (*types.UserType, error) {
	var t *types.UserType
	for _, a := range p.agents {
		if t == nil {
			t = a.Object().Type()
		} else if t != a.Object().Type() {
			return nil, &errs.ProblemDefinitionError{Reason: "agents of heterogeneous types are not supported by the robustness verifier"}
		}
	}
	return t, nil
}

// Kind computes the feature-flag summary used to pick the right
// transformer/verifier variant (spec.md §4.2).
func (p *Problem) Kind() Kind {
	var k Kind
	if len(p.agents) > 0 {
		k |= HasMultiAgent
	}
	visit := func(e *expr.Expression) {
		if e == nil {
			return
		}
		expr.Walk(e, false, func(n *expr.Expression) {
			switch n.Kind() {
			case expr.KindNot:
				if n.Arg(0).Kind() == expr.KindFluentApp {
					k |= HasNegativeConditions
				}
			case expr.KindForall, expr.KindExists:
				k |= HasQuantifiers
			case expr.KindPlus, expr.KindMinus, expr.KindTimes, expr.KindGT:
				k |= HasNumericEffects
			}
		})
	}
	for _, g := range p.goals {
		visit(g)
	}
	for _, tg := range p.timedGoals {
		visit(tg.Goal)
	}
	for _, a := range p.actions {
		switch act := a.(type) {
		case *InstantaneousAction:
			if len(act.PreconditionsWait()) > 0 {
				k |= HasWaitfor
			}
			for _, pc := range act.Preconditions() {
				visit(pc)
			}
			for _, pc := range act.PreconditionsWait() {
				visit(pc)
			}
			for _, eff := range act.Effects() {
				if eff.Condition != nil {
					k |= HasConditionalEffects
					visit(eff.Condition)
				}
				if eff.Value.ValueType() == entity.ValueInt {
					k |= HasNumericEffects
				}
			}
		case *DurativeAction:
			k |= HasDurativeActions
			if len(act.ConditionsWait()) > 0 {
				k |= HasWaitfor
			}
			for _, tc := range act.Conditions() {
				visit(tc.Expr)
			}
			for _, tc := range act.ConditionsWait() {
				visit(tc.Expr)
			}
			for _, te := range act.Effects() {
				if te.Effect.Condition != nil {
					k |= HasConditionalEffects
					visit(te.Effect.Condition)
				}
			}
		}
	}
	return k
}

// GroundFluentApplications returns the cartesian product of f's typed
// parameter signature over this problem's objects: every ground
// application of f. For small signatures this iterates sequentially;
// for large fan-outs it parallelises the product expansion over the
// internal worker pool, since that is the one place in this module
// with genuine batch parallelism to exploit.
func (p *Problem) GroundFluentApplications(f *entity.Fluent) ([]*expr.Expression, error) {
	sig := f.Signature()
	if len(sig) == 0 {
		app, err := p.ctx.FluentApp(f)
		if err != nil {
			return nil, err
		}
		return []*expr.Expression{app}, nil
	}

	domains := make([][]*entity.Object, len(sig))
	total := 1
	for i, param := range sig {
		domains[i] = p.ObjectsOfType(param.Type())
		if len(domains[i]) == 0 {
			return nil, nil
		}
		total *= len(domains[i])
	}

	const parallelThreshold = 2048
	if total < parallelThreshold {
		return groundSequential(p.ctx, f, domains)
	}
	return groundParallel(p.ctx, f, domains)
}

func groundSequential(c *expr.Context, f *entity.Fluent, domains [][]*entity.Object) ([]*expr.Expression, error) {
	indices := make([]int, len(domains))
	var out []*expr.Expression
	for {
		args := make([]*expr.Expression, len(domains))
		for i, idx := range indices {
			args[i] = c.ObjectRef(domains[i][idx])
		}
		app, err := c.FluentApp(f, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, app)

		pos := len(indices) - 1
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

// groundParallel expands the cartesian product by fanning out over the
// first dimension on the worker pool and grounding each slice
// sequentially, combining results in index order for determinism.
func groundParallel(c *expr.Context, f *entity.Fluent, domains [][]*entity.Object) ([]*expr.Expression, error) {
	pool := parallel.NewStaticWorkerPool(runtime.NumCPU())
	defer pool.Shutdown()

	results := make([][]*expr.Expression, len(domains[0]))
	taskErrs := make([]error, len(domains[0]))
	var wg sync.WaitGroup
	wg.Add(len(domains[0]))
	for i, head := range domains[0] {
		i, head := i, head
		_ = pool.Submit(context.Background(), func() {
			defer wg.Done()
			results[i], taskErrs[i] = groundSequential(c, f, append([][]*entity.Object{{head}}, domains[1:]...))
		})
	}
	wg.Wait()

	var out []*expr.Expression
	for i := range results {
		if taskErrs[i] != nil {
			return nil, taskErrs[i]
		}
		out = append(out, results[i]...)
	}
	return out, nil
}

// GuessAgentName heuristically names the agent performing an
// ungrounded action for diagnostics only (never for semantic binding
// resolution): the action's first parameter name if it has parameters,
// otherwise the second underscore-delimited component of a grounded
// action name, otherwise "null" (mirrors the original
// get_agent_name_from_action heuristic).
func GuessAgentName(a Action) string {
	if params := a.Parameters(); len(params) > 0 {
		return params[0].Name()
	}
	name := a.Name()
	parts := splitOnUnderscore(name)
	if len(parts) > 1 {
		return parts[1]
	}
	return "null"
}

func splitOnUnderscore(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// Clone returns a deep copy of p: fresh collections, but expressions
// remain shared via the same expr.Context (interning is the whole
// point — clones never re-intern). The clone shares the same
// ExpressionContext and TypeContext as p.
func (p *Problem) Clone() *Problem {
	c := New(p.Name, p.ctx, p.typeCtx)
	c.fluents = append(c.fluents, p.fluents...)
	for k, v := range p.fluentByName {
		c.fluentByName[k] = v
	}
	c.objects = append(c.objects, p.objects...)
	for k, v := range p.objectByName {
		c.objectByName[k] = v
	}
	for _, a := range p.actions {
		cloned := a.Clone()
		c.actions = append(c.actions, cloned)
		c.actionByName[cloned.Name()] = cloned
	}
	c.initial = append(c.initial, p.initial...)
	for k, v := range p.initialIndex {
		c.initialIndex[k] = v
	}
	for k, v := range p.defaults {
		c.defaults[k] = v
	}
	c.goals = append(c.goals, p.goals...)
	c.timedGoals = append(c.timedGoals, p.timedGoals...)
	c.timedEffects = append(c.timedEffects, p.timedEffects...)
	c.agents = append(c.agents, p.agents...)
	for k, v := range p.agentByName {
		c.agentByName[k] = v
	}
	return c
}

func (p *Problem) String() string {
	return fmt.Sprintf("Problem[%s: %d fluents, %d objects, %d actions, %d agents]",
		p.Name, len(p.fluents), len(p.objects), len(p.actions), len(p.agents))
}

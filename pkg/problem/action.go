package problem

import (
	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/errs"
	"github.com/gitrdm/sociallaw/pkg/expr"
)

// Effect changes a fluent application's value, optionally only when a
// condition holds. The target must be a fluent application over the
// action's own parameters and/or declared objects.
type Effect struct {
	Target    *expr.Expression
	Value     *expr.Expression
	Condition *expr.Expression // nil means unconditional
}

// NewEffect builds an effect setting target to value, guarded by the
// optional condition (nil for unconditional).
func NewEffect(target, value *expr.Expression, condition *expr.Expression) (*Effect, error) {
	if target.Kind() != expr.KindFluentApp {
		return nil, &errs.ProblemDefinitionError{Reason: "effect target must be a fluent application"}
	}
	if target.ValueType() != value.ValueType() {
		return nil, &errs.TypeError{Context: "effect value", Expected: target.ValueType().String(), Actual: value.ValueType().String()}
	}
	return &Effect{Target: target, Value: value, Condition: condition}, nil
}

// Clone returns a shallow copy (expressions are shared via interning).
func (e *Effect) Clone() *Effect {
	return &Effect{Target: e.Target, Value: e.Value, Condition: e.Condition}
}

// AgentBindingKind distinguishes the two ways an action can be bound
// to the agent that performs it.
type AgentBindingKind int

const (
	// BindingFixed binds the action to a concrete, already-known agent
	// object (the original ExistingObjectAgent case).
	BindingFixed AgentBindingKind = iota
	// BindingParam binds the action to one of its own parameters: the
	// acting agent is determined at grounding/verification time by
	// which object fills that parameter slot.
	BindingParam
)

// AgentBinding carries, on an action, either a fixed agent object or a
// reference to one of the action's own parameters (spec.md §9: "Carry
// on each action one of AgentBinding = FixedObject(ObjectId) |
// Parameter(ParamIndex)").
type AgentBinding struct {
	kind       AgentBindingKind
	fixed      *entity.Object
	paramIndex int
}

// FixedAgent returns a binding to a concrete agent object.
func FixedAgent(obj *entity.Object) *AgentBinding {
	return &AgentBinding{kind: BindingFixed, fixed: obj}
}

// ParamAgent returns a binding to the action's paramIndex-th parameter.
func ParamAgent(paramIndex int) *AgentBinding {
	return &AgentBinding{kind: BindingParam, paramIndex: paramIndex}
}

// Kind returns which form of binding this is.
func (b *AgentBinding) Kind() AgentBindingKind { return b.kind }

// FixedObject returns the bound object for a BindingFixed binding.
func (b *AgentBinding) FixedObject() *entity.Object { return b.fixed }

// ParamIndex returns the bound parameter index for a BindingParam
// binding.
func (b *AgentBinding) ParamIndex() int { return b.paramIndex }

// Expression resolves the binding, given the action's parameter list,
// to an expression denoting the acting agent: an ObjectRef for a fixed
// binding, a ParamRef for a parameter binding.
func (b *AgentBinding) Expression(c *expr.Context, params []*entity.Parameter) *expr.Expression {
	switch b.kind {
	case BindingFixed:
		return c.ObjectRef(b.fixed)
	case BindingParam:
		return c.ParamRef(params[b.paramIndex])
	default:
		return nil
	}
}

// Action is the tagged variant over InstantaneousAction and
// DurativeAction (spec.md §9: "Model Action as a tagged variant...
// transformers dispatch on the tag. Avoid deep inheritance.").
type Action interface {
	Name() string
	Parameters() []*entity.Parameter
	Binding() *AgentBinding
	Clone() Action
	isAction()
}

// InstantaneousAction is a parameterised, instantaneous state
// transition: a conjunction of preconditions (and, separately, waitfor
// preconditions) gates a list of (optionally conditional) effects.
type InstantaneousAction struct {
	name              string
	parameters        []*entity.Parameter
	preconditions     []*expr.Expression
	preconditionsWait []*expr.Expression
	effects           []*Effect
	binding           *AgentBinding
}

// NewInstantaneousAction declares an instantaneous action named name
// with the given parameters.
func NewInstantaneousAction(name string, parameters ...*entity.Parameter) *InstantaneousAction {
	return &InstantaneousAction{name: name, parameters: append([]*entity.Parameter{}, parameters...)}
}

func (a *InstantaneousAction) isAction() {}

// Name returns the action's name.
func (a *InstantaneousAction) Name() string { return a.name }

// Parameters returns the action's formal parameters.
func (a *InstantaneousAction) Parameters() []*entity.Parameter {
	out := make([]*entity.Parameter, len(a.parameters))
	copy(out, a.parameters)
	return out
}

// Parameter looks up a parameter by name, or nil if none matches.
func (a *InstantaneousAction) Parameter(name string) *entity.Parameter {
	for _, p := range a.parameters {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Binding returns the action's agent binding, or nil if unset.
func (a *InstantaneousAction) Binding() *AgentBinding { return a.binding }

// SetBinding sets the action's agent binding.
func (a *InstantaneousAction) SetBinding(b *AgentBinding) { a.binding = b }

// Preconditions returns the action's regular (non-waitfor)
// preconditions.
func (a *InstantaneousAction) Preconditions() []*expr.Expression {
	out := make([]*expr.Expression, len(a.preconditions))
	copy(out, a.preconditions)
	return out
}

// PreconditionsWait returns the action's waitfor preconditions: a
// precondition that, if false, causes the acting agent to stall rather
// than fail (spec.md §9: "never merge implicitly").
func (a *InstantaneousAction) PreconditionsWait() []*expr.Expression {
	out := make([]*expr.Expression, len(a.preconditionsWait))
	copy(out, a.preconditionsWait)
	return out
}

// Effects returns the action's effect list.
func (a *InstantaneousAction) Effects() []*Effect {
	out := make([]*Effect, len(a.effects))
	copy(out, a.effects)
	return out
}

// AddPrecondition appends a regular precondition.
func (a *InstantaneousAction) AddPrecondition(e *expr.Expression) {
	a.preconditions = append(a.preconditions, e)
}

// AddPreconditionWait appends a waitfor precondition.
func (a *InstantaneousAction) AddPreconditionWait(e *expr.Expression) {
	a.preconditionsWait = append(a.preconditionsWait, e)
}

// ClearPreconditions removes all regular preconditions.
func (a *InstantaneousAction) ClearPreconditions() { a.preconditions = nil }

// ClearPreconditionsWait removes all waitfor preconditions.
func (a *InstantaneousAction) ClearPreconditionsWait() { a.preconditionsWait = nil }

// AddEffect appends an effect.
func (a *InstantaneousAction) AddEffect(e *Effect) {
	a.effects = append(a.effects, e)
}

// Clone returns a deep copy of a (as an Action), safe to mutate
// independently (expressions remain shared via interning).
func (a *InstantaneousAction) Clone() Action {
	c := &InstantaneousAction{
		name:              a.name,
		parameters:        append([]*entity.Parameter{}, a.parameters...),
		preconditions:     append([]*expr.Expression{}, a.preconditions...),
		preconditionsWait: append([]*expr.Expression{}, a.preconditionsWait...),
		binding:           a.binding,
	}
	for _, e := range a.effects {
		c.effects = append(c.effects, e.Clone())
	}
	return c
}

// Timing identifies the start or end instant of a durative action.
type Timing int

const (
	TimingStart Timing = iota
	TimingEnd
)

func (t Timing) String() string {
	if t == TimingStart {
		return "start"
	}
	return "end"
}

// IntervalKind identifies the shape of a durative condition interval.
type IntervalKind int

const (
	// IntervalAtStart is the instantaneous interval [start, start].
	IntervalAtStart IntervalKind = iota
	// IntervalAtEnd is the instantaneous interval [end, end].
	IntervalAtEnd
	// IntervalOpen is the open interval (start, end).
	IntervalOpen
	// IntervalClosed is the closed interval [start, end].
	IntervalClosed
)

// Interval is one of {Start, End, OpenInterval(Start,End),
// ClosedInterval(Start,End)} (spec.md §3).
type Interval struct {
	Kind IntervalKind
}

var (
	AtStart       = Interval{Kind: IntervalAtStart}
	AtEnd         = Interval{Kind: IntervalAtEnd}
	OverOpen      = Interval{Kind: IntervalOpen}
	OverClosed    = Interval{Kind: IntervalClosed}
)

// Overlaps reports whether the interval spans more than a single
// instant, i.e. is OverOpen or OverClosed. The durative verifier's
// invariant counter only tracks conditions over such intervals.
func (iv Interval) Overlaps() bool {
	return iv.Kind == IntervalOpen || iv.Kind == IntervalClosed
}

func (iv Interval) String() string {
	switch iv.Kind {
	case IntervalAtStart:
		return "at start"
	case IntervalAtEnd:
		return "at end"
	case IntervalOpen:
		return "over open"
	default:
		return "over all"
	}
}

// Duration constrains a durative action's length. Both bounds are
// optional; a fixed duration sets Min == Max.
type Duration struct {
	Min *expr.Expression
	Max *expr.Expression
}

// TimedCondition pairs a condition with the interval it must hold over.
type TimedCondition struct {
	Interval Interval
	Expr     *expr.Expression
}

// TimedEffect pairs an effect with the instant it fires at.
type TimedEffect struct {
	Timing Timing
	Effect *Effect
}

// DurativeAction is a parameterised action with temporal extent: a
// duration constraint, conditions/waitfor-conditions keyed by
// interval, and effects keyed by timing.
type DurativeAction struct {
	name           string
	parameters     []*entity.Parameter
	duration       Duration
	conditions     []TimedCondition
	conditionsWait []TimedCondition
	effects        []TimedEffect
	binding        *AgentBinding
}

// NewDurativeAction declares a durative action named name with the
// given parameters.
func NewDurativeAction(name string, parameters ...*entity.Parameter) *DurativeAction {
	return &DurativeAction{name: name, parameters: append([]*entity.Parameter{}, parameters...)}
}

func (a *DurativeAction) isAction() {}

// Name returns the action's name.
func (a *DurativeAction) Name() string { return a.name }

// Parameters returns the action's formal parameters.
func (a *DurativeAction) Parameters() []*entity.Parameter {
	out := make([]*entity.Parameter, len(a.parameters))
	copy(out, a.parameters)
	return out
}

// Parameter looks up a parameter by name, or nil if none matches.
func (a *DurativeAction) Parameter(name string) *entity.Parameter {
	for _, p := range a.parameters {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Binding returns the action's agent binding, or nil if unset.
func (a *DurativeAction) Binding() *AgentBinding { return a.binding }

// SetBinding sets the action's agent binding.
func (a *DurativeAction) SetBinding(b *AgentBinding) { a.binding = b }

// SetDurationConstraint sets the action's duration bounds.
func (a *DurativeAction) SetDurationConstraint(d Duration) { a.duration = d }

// Duration returns the action's duration bounds.
func (a *DurativeAction) Duration() Duration { return a.duration }

// AddCondition appends a condition over the given interval.
func (a *DurativeAction) AddCondition(iv Interval, e *expr.Expression) {
	a.conditions = append(a.conditions, TimedCondition{Interval: iv, Expr: e})
}

// AddConditionWait appends a waitfor condition over the given interval.
func (a *DurativeAction) AddConditionWait(iv Interval, e *expr.Expression) {
	a.conditionsWait = append(a.conditionsWait, TimedCondition{Interval: iv, Expr: e})
}

// AddEffect appends an effect that fires at the given timing.
func (a *DurativeAction) AddEffect(t Timing, e *Effect) {
	a.effects = append(a.effects, TimedEffect{Timing: t, Effect: e})
}

// Conditions returns every (interval, expression) condition pair, in
// insertion order — deterministic, unlike a Go map (spec.md §5).
func (a *DurativeAction) Conditions() []TimedCondition {
	out := make([]TimedCondition, len(a.conditions))
	copy(out, a.conditions)
	return out
}

// ConditionsWait returns every (interval, expression) waitfor pair, in
// insertion order.
func (a *DurativeAction) ConditionsWait() []TimedCondition {
	out := make([]TimedCondition, len(a.conditionsWait))
	copy(out, a.conditionsWait)
	return out
}

// Effects returns every (timing, effect) pair, in insertion order.
func (a *DurativeAction) Effects() []TimedEffect {
	out := make([]TimedEffect, len(a.effects))
	copy(out, a.effects)
	return out
}

// ConditionsAt returns the conditions declared over exactly iv, in
// insertion order.
func (a *DurativeAction) ConditionsAt(iv Interval) []*expr.Expression {
	var out []*expr.Expression
	for _, tc := range a.conditions {
		if tc.Interval == iv {
			out = append(out, tc.Expr)
		}
	}
	return out
}

// ConditionsWaitAt returns the waitfor conditions declared over
// exactly iv, in insertion order.
func (a *DurativeAction) ConditionsWaitAt(iv Interval) []*expr.Expression {
	var out []*expr.Expression
	for _, tc := range a.conditionsWait {
		if tc.Interval == iv {
			out = append(out, tc.Expr)
		}
	}
	return out
}

// EffectsAt returns the effects that fire at exactly t, in insertion
// order.
func (a *DurativeAction) EffectsAt(t Timing) []*Effect {
	var out []*Effect
	for _, te := range a.effects {
		if te.Timing == t {
			out = append(out, te.Effect)
		}
	}
	return out
}

// Clone returns a deep copy of a (as an Action).
func (a *DurativeAction) Clone() Action {
	c := &DurativeAction{
		name:       a.name,
		parameters: append([]*entity.Parameter{}, a.parameters...),
		duration:   a.duration,
		binding:    a.binding,
	}
	c.conditions = append(c.conditions, a.conditions...)
	c.conditionsWait = append(c.conditionsWait, a.conditionsWait...)
	for _, te := range a.effects {
		c.effects = append(c.effects, TimedEffect{Timing: te.Timing, Effect: te.Effect.Clone()})
	}
	return c
}

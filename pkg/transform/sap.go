package transform

import (
	"github.com/gitrdm/sociallaw/pkg/agent"
	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/errs"
	"github.com/gitrdm/sociallaw/pkg/problem"
)

// SingleAgentProjection derives, for one agent, the classical
// single-agent problem obtained by folding that agent's waitfor
// preconditions into regular preconditions, requiring only that
// agent's goals, and gating every action on an "active-agent" flag so
// that the cooperative view (every other agent's action is available
// too) does not let the projection silently assume help it was never
// promised (spec.md §4.4).
type SingleAgentProjection struct {
	*Base
	problem *problem.Problem
	agent   *agent.Agent

	oldToNew map[problem.Action][]problem.Action
	newToOld map[problem.Action]problem.Action
}

// NewSingleAgentProjection builds the single-agent projection of p for
// for agent a.
func NewSingleAgentProjection(p *problem.Problem, a *agent.Agent) *SingleAgentProjection {
	s := &SingleAgentProjection{
		problem:  p,
		agent:    a,
		oldToNew: make(map[problem.Action][]problem.Action),
		newToOld: make(map[problem.Action]problem.Action),
	}
	s.Base = NewBase(p, s.build)
	return s
}

// Agent returns the agent this projection was built for.
func (s *SingleAgentProjection) Agent() *agent.Agent { return s.agent }

// OldToNew implements ActionMapper.
func (s *SingleAgentProjection) OldToNew(old problem.Action) []problem.Action {
	return s.oldToNew[old]
}

// NewToOld implements ActionMapper.
func (s *SingleAgentProjection) NewToOld(newAction problem.Action) problem.Action {
	return s.newToOld[newAction]
}

func (s *SingleAgentProjection) build() (*problem.Problem, error) {
	src := s.problem
	ctx := src.ExpressionContext()

	agentType, err := src.AgentType()
	if err != nil {
		return nil, err
	}
	if agentType == nil {
		return nil, &errs.ProblemDefinitionError{Reason: "single-agent projection requires at least one declared agent"}
	}

	out := src.Clone()
	out.Name = "sap_" + src.Name

	activeAgent := entity.NewFluent("active-agent", entity.ValueBool, []*entity.Parameter{entity.NewParameter("a", agentType)})
	if err := out.AddFluent(activeAgent, ctx.FALSE()); err != nil {
		return nil, err
	}
	selfApp, err := ctx.FluentApp(activeAgent, ctx.ObjectRef(s.agent.Object()))
	if err != nil {
		return nil, err
	}
	if err := out.SetInitialValue(selfApp, ctx.TRUE()); err != nil {
		return nil, err
	}

	out.ClearActions()
	for _, a := range src.Actions() {
		binding := a.Binding()
		if binding == nil {
			return nil, &errs.ProblemDefinitionError{Reason: "action without agent binding in a multi-agent pass: " + a.Name()}
		}
		// Cooperative view: every agent's action is available, not just
		// the projected agent's own. A fixed (ExistingObjectAgent)
		// binding is always available; a parameter binding is available
		// for whichever object fills it, gated by active-agent(binding)
		// below rather than by identity with s.agent.
		inst, ok := a.(*problem.InstantaneousAction)
		if !ok {
			return nil, &errs.UnsupportedFeatureError{Feature: "single-agent projection of durative actions"}
		}

		na := problem.NewInstantaneousAction(a.Name(), a.Parameters()...)
		na.SetBinding(binding)
		for _, pc := range inst.Preconditions() {
			na.AddPrecondition(pc)
		}
		for _, pc := range inst.PreconditionsWait() {
			na.AddPrecondition(pc)
		}
		agentExpr := binding.Expression(ctx, a.Parameters())
		activeApp, err := ctx.FluentApp(activeAgent, agentExpr)
		if err != nil {
			return nil, err
		}
		na.AddPrecondition(activeApp)
		for _, eff := range inst.Effects() {
			na.AddEffect(eff.Clone())
		}

		if err := out.AddAction(na); err != nil {
			return nil, err
		}
		s.oldToNew[a] = []problem.Action{na}
		s.newToOld[na] = a
	}

	out.ClearGoals()
	for _, g := range s.agent.Goals() {
		if err := out.AddGoal(g); err != nil {
			return nil, err
		}
	}

	return out, nil
}

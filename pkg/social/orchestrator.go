// Package social implements the orchestrator that sequences the
// compilation passes and the external planner into a single robustness
// verdict: build every agent's single-agent projection, build the
// robustness-verification problem, strip its negative conditions, hand
// the result to the configured planner, and classify whatever
// counterexample comes back.
package social

import (
	"strings"

	"github.com/gitrdm/sociallaw/pkg/errs"
	"github.com/gitrdm/sociallaw/pkg/pddl"
	"github.com/gitrdm/sociallaw/pkg/planner"
	"github.com/gitrdm/sociallaw/pkg/problem"
	"github.com/gitrdm/sociallaw/pkg/transform"
	"github.com/gitrdm/sociallaw/pkg/verify"
)

// RobustnessStatus is the outcome of checking whether a social law is
// robust against the rational failures the verifier compiles in.
type RobustnessStatus int

const (
	// Robust means every agent's single-agent projection is solvable
	// and no counterexample plan survives the robustness check.
	Robust RobustnessStatus = iota
	// NonRobustSingleAgent means at least one agent cannot reach its
	// own goal alone, under the social law's own rules.
	NonRobustSingleAgent
	// NonRobustFail means a counterexample exists and its first
	// non-rational action is a precondition failure (an `_f*` copy).
	NonRobustFail
	// NonRobustDeadlock means a counterexample exists and its first
	// non-rational action is a wait/stall (a `_w*` copy).
	NonRobustDeadlock
)

func (s RobustnessStatus) String() string {
	switch s {
	case Robust:
		return "ROBUST"
	case NonRobustSingleAgent:
		return "NON_ROBUST_SINGLE_AGENT"
	case NonRobustFail:
		return "NON_ROBUST_FAIL"
	case NonRobustDeadlock:
		return "NON_ROBUST_DEADLOCK"
	default:
		return "UNKNOWN"
	}
}

// Orchestrator runs the single-agent and multi-agent robustness checks
// for one social law (one Problem) against one configured planner.
type Orchestrator struct {
	problem *problem.Problem
	solver  planner.Planner
	writer  *pddl.Writer

	// DebugDumpDir, when non-empty, causes the rendered robustness
	// domain/problem PDDL pair to be written to
	// <DebugDumpDir>/domain_rv.pddl and <DebugDumpDir>/problem_rv.pddl
	// just before the planner is invoked by IsMultiAgentRobust.
	DebugDumpDir string

	counterexample *planner.Plan
}

// New builds an Orchestrator that checks p against planner solver.
func New(p *problem.Problem, solver planner.Planner) *Orchestrator {
	return &Orchestrator{problem: p, solver: solver, writer: pddl.NewWriter()}
}

// Counterexample returns the plan recorded by the most recent
// IsMultiAgentRobust call that found the social law non-robust, or nil
// if the social law was found robust or the check has not run yet.
func (o *Orchestrator) Counterexample() *planner.Plan {
	return o.counterexample
}

// IsSingleAgentSolvable builds every agent's single-agent projection
// and invokes the planner on it, returning false as soon as one agent
// cannot solve its own projection alone.
func (o *Orchestrator) IsSingleAgentSolvable() (bool, error) {
	for _, a := range o.problem.Agents() {
		proj := transform.NewSingleAgentProjection(o.problem, a)
		rewritten, err := proj.RewrittenProblem()
		if err != nil {
			return false, err
		}
		result, err := o.solver.Solve(rewritten)
		if err != nil {
			return false, err
		}
		if !result.Status.Solved() {
			return false, nil
		}
	}
	return true, nil
}

// IsMultiAgentRobust builds the robustness-verification problem,
// strips its negative conditions, and invokes the planner. A plan
// found means the social law is not robust: the plan is recorded as
// the counterexample and false is returned. No plan (the planner
// proves or reports unsolvability) means true.
func (o *Orchestrator) IsMultiAgentRobust() (bool, error) {
	o.counterexample = nil

	verifier, err := o.buildVerifier()
	if err != nil {
		return false, err
	}
	verified, err := verifier.RewrittenProblem()
	if err != nil {
		return false, err
	}

	ncr := transform.NewNegativeConditionsRemover(verified)
	stripped, err := ncr.RewrittenProblem()
	if err != nil {
		return false, err
	}

	if o.DebugDumpDir != "" {
		if err := o.dumpDebugPDDL(stripped); err != nil {
			return false, err
		}
	}

	result, err := o.solver.Solve(stripped)
	if err != nil {
		return false, err
	}
	if !result.Status.Solved() || result.Plan == nil {
		return true, nil
	}
	o.counterexample = result.Plan
	return false, nil
}

// IsRobust sequences IsSingleAgentSolvable and IsMultiAgentRobust into
// a single RobustnessStatus verdict.
func (o *Orchestrator) IsRobust() (RobustnessStatus, error) {
	solvable, err := o.IsSingleAgentSolvable()
	if err != nil {
		return 0, err
	}
	if !solvable {
		return NonRobustSingleAgent, nil
	}

	robust, err := o.IsMultiAgentRobust()
	if err != nil {
		return 0, err
	}
	if robust {
		return Robust, nil
	}
	return classifyCounterexample(o.counterexample), nil
}

// classifyCounterexample scans a counterexample plan in order and
// returns NonRobustFail for the first `_f`/`_f_*`-suffixed action,
// NonRobustDeadlock for the first `_w`/`_w_*`-suffixed action, and
// conservatively NonRobustFail if neither suffix appears (spec.md
// §4.6, P5).
func classifyCounterexample(plan *planner.Plan) RobustnessStatus {
	if plan == nil {
		return NonRobustFail
	}
	for _, step := range plan.Actions() {
		switch actionFamily(step.ActionName) {
		case familyFail:
			return NonRobustFail
		case familyWait:
			return NonRobustDeadlock
		}
	}
	return NonRobustFail
}

type actionFamilyKind int

const (
	familyOther actionFamilyKind = iota
	familyFail
	familyWait
)

// actionFamily classifies a compiled action name by the underscore-
// separated tokens the emitters in pkg/verify use: a bare "f" token
// covers "_f", "_f_<n>", "_f_start_<n>" and "_f_end_<n>" copies; a
// bare "w" or "waiting" token covers "_w", "_w_<n>" and "_waiting_<n>"
// copies. Success ("_s") and phantom ("_p", "_pc", "_pw") copies match
// neither and fall through as familyOther.
func actionFamily(name string) actionFamilyKind {
	for _, p := range strings.Split(name, "_") {
		switch p {
		case "f":
			return familyFail
		case "w", "waiting":
			return familyWait
		}
	}
	return familyOther
}

func (o *Orchestrator) buildVerifier() (transform.Transformer, error) {
	if o.problem.Kind().Has(problem.HasDurativeActions) {
		return verify.NewDurativeRobustnessVerifier(o.problem), nil
	}
	return verify.NewInstantaneousRobustnessVerifier(o.problem), nil
}

func (o *Orchestrator) dumpDebugPDDL(p *problem.Problem) error {
	domainText, err := o.writer.WriteDomain(p)
	if err != nil {
		return &errs.PlannerError{Reason: "rendering debug-dump domain", Err: err}
	}
	problemText, err := o.writer.WriteProblem(p)
	if err != nil {
		return &errs.PlannerError{Reason: "rendering debug-dump problem", Err: err}
	}
	return writeDebugFiles(o.DebugDumpDir, domainText, problemText)
}

// Package planner declares the boundary between the core and an
// external classical/temporal planner: a single synchronous operation
// that turns a Problem into a Plan or a reason it has none (spec.md
// §6 "Planner interface").
package planner

import (
	"fmt"

	"github.com/gitrdm/sociallaw/pkg/problem"
)

// Status is the outcome of one solve call.
type Status int

const (
	// SolvedSat means a plan was found; no optimality claim is made.
	SolvedSat Status = iota
	// SolvedOpt means a plan was found and proven optimal.
	SolvedOpt
	// UnsolvableProven means the planner proved no plan exists.
	UnsolvableProven
	// UnsolvableIncomplete means the planner gave up without proving
	// unsolvability (e.g. a search bound was hit).
	UnsolvableIncomplete
	// Timeout means the planner did not finish within its budget.
	Timeout
	// Error means the planner crashed or returned malformed output.
	Error
)

func (s Status) String() string {
	switch s {
	case SolvedSat:
		return "SOLVED_SAT"
	case SolvedOpt:
		return "SOLVED_OPT"
	case UnsolvableProven:
		return "UNSOLVABLE_PROVEN"
	case UnsolvableIncomplete:
		return "UNSOLVABLE_INCOMPLETE"
	case Timeout:
		return "TIMEOUT"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Solved reports whether status represents a usable plan.
func (s Status) Solved() bool { return s == SolvedSat || s == SolvedOpt }

// ActionInstance is one grounded action occurrence in a plan: the
// action's name and the ordered list of object names bound to its
// parameters.
type ActionInstance struct {
	ActionName string
	Args       []string
}

func (ai ActionInstance) String() string {
	if len(ai.Args) == 0 {
		return fmt.Sprintf("(%s)", ai.ActionName)
	}
	s := "(" + ai.ActionName
	for _, a := range ai.Args {
		s += " " + a
	}
	return s + ")"
}

// Step is one scheduled occurrence of an ActionInstance. StartTime and
// Duration are zero for classical (non-temporal) plans.
type Step struct {
	StartTime float64
	Action    ActionInstance
	Duration  float64
}

// Plan is an ordered list of scheduled action occurrences.
type Plan struct {
	Steps []Step
}

// Actions returns the plan's ActionInstance values, in plan order,
// discarding timing.
func (p Plan) Actions() []ActionInstance {
	out := make([]ActionInstance, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Action
	}
	return out
}

// Result is the outcome of a solve call: a status plus, when solved, a
// plan.
type Result struct {
	Status Status
	Plan   *Plan
}

// Planner is implemented by anything that can turn a problem into a
// Result. The core treats it as a pure function: (Problem) -> Result
// (spec.md §5: "from the core's point of view it is a pure function").
type Planner interface {
	Solve(p *problem.Problem) (Result, error)
}

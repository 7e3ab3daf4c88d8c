// Package errs defines the tagged error variants surfaced by the planning
// core. Every pass fails fast on one of these and leaves no partial
// problem visible; none of them are recoverable inside the core itself.
package errs

import "fmt"

// TypeError reports that an expression's inferred type mismatches the
// context it was used in (e.g. an integer expression used where a
// Boolean was required).
type TypeError struct {
	Context  string
	Expected string
	Actual   string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type error in %s: expected %s, got %s", e.Context, e.Expected, e.Actual)
}

// ExpressionDefinitionError reports a malformed expression: NNF was
// required but the expression is not in NNF, a quantifier body is
// malformed, or similar structural defects.
type ExpressionDefinitionError struct {
	Reason string
}

func (e *ExpressionDefinitionError) Error() string {
	return "expression definition error: " + e.Reason
}

// ProblemDefinitionError reports a defect in a Problem itself: a missing
// agent binding on a multi-agent action, agent objects of heterogeneous
// types where a pass requires one agent type, a duplicate fluent/object/
// action name, or a goal referencing an undeclared fluent.
type ProblemDefinitionError struct {
	Reason string
}

func (e *ProblemDefinitionError) Error() string {
	return "problem definition error: " + e.Reason
}

// UnsupportedFeatureError reports that a pass reached a construct it is
// not configured to handle: a durative action in a classical-only pass,
// a quantifier, or a numeric effect where only Boolean effects are
// supported.
type UnsupportedFeatureError struct {
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return "unsupported feature: " + e.Feature
}

// PlannerError reports that the external planner returned ERROR or
// crashed.
type PlannerError struct {
	Reason string
	Err    error
}

func (e *PlannerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planner error: %s: %v", e.Reason, e.Err)
	}
	return "planner error: " + e.Reason
}

func (e *PlannerError) Unwrap() error { return e.Err }

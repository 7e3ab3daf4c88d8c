// Package transform implements the compilation-pass framework and the
// two lighter passes: the negative-conditions remover and the
// single-agent projection. The heavier robustness-verifier pass lives
// in pkg/verify, since it is large enough to warrant its own package,
// but shares this package's Transformer base and action back-map
// convention.
package transform

import "github.com/gitrdm/sociallaw/pkg/problem"

// Transformer is the common contract every compilation pass satisfies:
// given an input problem, lazily produce a rewritten problem plus
// optional forward/back action maps (spec.md §2 "Transformer
// Framework", §3 "Lifecycles: Transformers are one-shot").
type Transformer interface {
	// RewrittenProblem returns the rewritten problem, computing and
	// caching it on first call. Every subsequent call returns the same
	// *problem.Problem value (spec.md P1: idempotent caching).
	RewrittenProblem() (*problem.Problem, error)
}

// ActionMapper is implemented by transformers that track which new
// action(s) an old action was rewritten into, and vice versa, so a
// caller can map a plan over the rewritten problem back to the
// original (spec.md §3 "Ownership": "Transformers produce a new owned
// Problem and keep two maps: old_to_new and new_to_old over actions").
type ActionMapper interface {
	OldToNew(old problem.Action) []problem.Action
	NewToOld(newAction problem.Action) problem.Action
}

// Base provides the idempotent-caching skeleton shared by every pass
// in this package: build is called at most once, and its result (or
// error) is cached and replayed on every subsequent call to
// RewrittenProblem.
type Base struct {
	input  *problem.Problem
	built  bool
	result *problem.Problem
	err    error
	build  func() (*problem.Problem, error)
}

// NewBase wires a Base around the given input problem and build
// function. build is invoked exactly once, on the first call to
// RewrittenProblem.
func NewBase(input *problem.Problem, build func() (*problem.Problem, error)) *Base {
	return &Base{input: input, build: build}
}

// RewrittenProblem implements Transformer.
func (b *Base) RewrittenProblem() (*problem.Problem, error) {
	if !b.built {
		b.result, b.err = b.build()
		b.built = true
	}
	return b.result, b.err
}

// Input returns the problem this transformer was constructed from.
func (b *Base) Input() *problem.Problem { return b.input }

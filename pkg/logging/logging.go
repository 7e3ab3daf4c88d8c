// Package logging provides the structured logger of the planning core.
// It is explicit, passed in through a constructor (today only
// planner.NewExecPlanner takes one), never global.
package logging

import "go.uber.org/zap"

// Logger is the structured logger planner.NewExecPlanner accepts. A nil
// Logger is replaced with Nop() at construction, so it is never passed
// further; callers that don't care about diagnostics pass nil or Nop().
type Logger = zap.Logger

// Nop returns a logger that discards everything, used as the default
// when a caller does not supply one.
func Nop() *Logger {
	return zap.NewNop()
}

// Default returns a development logger suitable for local runs of the
// example harness and for debugging failing tests.
func Default() *Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		return Nop()
	}
	return l
}

// OrNop returns l if non-nil, otherwise Nop(). NewExecPlanner calls
// this once at construction time instead of checking for nil on every
// log call.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// Package agent implements the agent abstraction of the multi-agent
// extension: an agent is identified by an object of a designated user
// type and carries a conjunction of private goals.
package agent

import (
	"fmt"

	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/expr"
)

// Agent is the basic agent class: a name, a goal conjunction, and the
// object that represents it in the shared state.
type Agent struct {
	name  string
	obj   *entity.Object
	goals []*expr.Expression
	// existing marks an ExistingObjectAgent: the agent's object is an
	// object that already exists in the problem for other reasons
	// (typically a lifted problem's own typed constant) rather than one
	// the agent declaration itself needs to add.
	existing bool
}

// New creates an agent named name backed by a freshly-introduced
// object obj, with the given goal conjunction.
func New(name string, obj *entity.Object, goals []*expr.Expression) *Agent {
	return &Agent{name: name, obj: obj, goals: append([]*expr.Expression{}, goals...)}
}

// NewExisting creates an agent backed by an object that already exists
// in the problem independently of the agent declaration (mirrors the
// original ExistingObjectAgent: used for lifted problems where the
// agent objects are already among the problem's declared constants).
func NewExisting(obj *entity.Object, goals []*expr.Expression) *Agent {
	return &Agent{name: obj.Name(), obj: obj, goals: append([]*expr.Expression{}, goals...), existing: true}
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Object returns the object representing this agent in the shared
// state.
func (a *Agent) Object() *entity.Object { return a.obj }

// Goals returns the agent's goal conjunction.
func (a *Agent) Goals() []*expr.Expression {
	out := make([]*expr.Expression, len(a.goals))
	copy(out, a.goals)
	return out
}

// AddGoal appends goal to the agent's goal conjunction. The TRUE
// literal is dropped rather than stored, matching the original
// implementation's treatment of trivial goals.
func (a *Agent) AddGoal(goal *expr.Expression) {
	if goal.IsTrue() {
		return
	}
	a.goals = append(a.goals, goal)
}

// IsExisting reports whether the agent's object is an
// already-declared problem object rather than one introduced solely to
// represent the agent.
func (a *Agent) IsExisting() bool { return a.existing }

// Clone returns a shallow copy of a (goals slice is copied, but the
// expressions themselves are shared via interning).
func (a *Agent) Clone() *Agent {
	return &Agent{name: a.name, obj: a.obj, goals: append([]*expr.Expression{}, a.goals...), existing: a.existing}
}

func (a *Agent) String() string {
	return fmt.Sprintf("Agent[name=%s, goals=%v]", a.name, a.goals)
}

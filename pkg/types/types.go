// Package types implements the user type hierarchy of the symbolic
// problem model: a single-parent tree of named types over which
// objects, fluent parameters, and action parameters are declared.
package types

import "github.com/gitrdm/sociallaw/pkg/errs"

// UserType is a named node in the (single-parent) type hierarchy.
// Two UserTypes are the same type iff they are the same pointer; the
// Context that created them guarantees name uniqueness.
type UserType struct {
	name   string
	parent *UserType
}

// Name returns the type's declared name.
func (t *UserType) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Parent returns the type's declared parent, or nil for a root type.
func (t *UserType) Parent() *UserType {
	if t == nil {
		return nil
	}
	return t.parent
}

// IsSubtypeOf reports whether t is other, or a descendant of other,
// walking the parent chain. A type is always a subtype of itself.
func (t *UserType) IsSubtypeOf(other *UserType) bool {
	for cur := t; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

// Context owns the set of declared user types and guarantees their
// names are unique and their hierarchy acyclic, mirroring the
// uniqueness guarantees the Problem model provides for fluents,
// objects and actions (spec.md §3).
type Context struct {
	byName map[string]*UserType
	order  []*UserType
}

// NewContext creates an empty type context.
func NewContext() *Context {
	return &Context{byName: make(map[string]*UserType)}
}

// Declare creates a new user type named name, optionally with a parent
// (nil for a root type). Declaring a duplicate name, or a parent not
// already declared in this context, is a ProblemDefinitionError.
func (c *Context) Declare(name string, parent *UserType) (*UserType, error) {
	if _, exists := c.byName[name]; exists {
		return nil, &errs.ProblemDefinitionError{Reason: "duplicate user type name: " + name}
	}
	if parent != nil {
		if owned, ok := c.byName[parent.name]; !ok || owned != parent {
			return nil, &errs.ProblemDefinitionError{Reason: "parent type not declared in this context: " + parent.name}
		}
	}
	t := &UserType{name: name, parent: parent}
	c.byName[name] = t
	c.order = append(c.order, t)
	return t, nil
}

// Lookup returns the declared type named name, or nil if none exists.
func (c *Context) Lookup(name string) *UserType {
	return c.byName[name]
}

// All returns every declared type, in declaration order (spec.md §5:
// deterministic iteration over collections).
func (c *Context) All() []*UserType {
	out := make([]*UserType, len(c.order))
	copy(out, c.order)
	return out
}

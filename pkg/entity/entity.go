// Package entity declares the typed building blocks expressions and
// problems are built from: fluents, objects and action parameters.
// Keeping them in their own package (rather than inside expr or
// problem) breaks what would otherwise be an import cycle, since
// expressions reference fluents/objects/parameters and problems
// reference both expressions and these declarations.
package entity

import "github.com/gitrdm/sociallaw/pkg/types"

// ValueType is the value type of a fluent or expression: Boolean or
// integer. The model deliberately has no float/rational type (spec.md
// non-goals: no numeric optimisation).
type ValueType int

const (
	// ValueBool is the type of Boolean-valued fluents and expressions.
	ValueBool ValueType = iota
	// ValueInt is the type of integer-valued fluents and expressions.
	ValueInt
)

func (v ValueType) String() string {
	switch v {
	case ValueBool:
		return "bool"
	case ValueInt:
		return "int"
	default:
		return "unknown"
	}
}

// Parameter is a typed formal parameter, scoped to the action or
// quantifier that declares it.
type Parameter struct {
	name string
	typ  *types.UserType
}

// NewParameter creates a parameter named name of type typ.
func NewParameter(name string, typ *types.UserType) *Parameter {
	return &Parameter{name: name, typ: typ}
}

// Name returns the parameter's name.
func (p *Parameter) Name() string { return p.name }

// Type returns the parameter's declared type.
func (p *Parameter) Type() *types.UserType { return p.typ }

// Object is a constant of a declared user type.
type Object struct {
	name string
	typ  *types.UserType
}

// NewObject creates an object named name of type typ.
func NewObject(name string, typ *types.UserType) *Object {
	return &Object{name: name, typ: typ}
}

// Name returns the object's name.
func (o *Object) Name() string { return o.name }

// Type returns the object's declared type.
func (o *Object) Type() *types.UserType { return o.typ }

// Fluent is a named, typed predicate or function whose value depends on
// the state. Its signature is an ordered list of typed parameters over
// which it is implicitly universally quantified; a fluent with an empty
// signature is a nullary proposition.
type Fluent struct {
	name      string
	valueType ValueType
	signature []*Parameter
}

// NewFluent declares a fluent named name of the given value type and
// parameter signature.
func NewFluent(name string, valueType ValueType, signature []*Parameter) *Fluent {
	sig := make([]*Parameter, len(signature))
	copy(sig, signature)
	return &Fluent{name: name, valueType: valueType, signature: sig}
}

// Name returns the fluent's name.
func (f *Fluent) Name() string { return f.name }

// ValueType returns the fluent's value type.
func (f *Fluent) ValueType() ValueType { return f.valueType }

// Arity returns the number of parameters in the fluent's signature.
func (f *Fluent) Arity() int { return len(f.signature) }

// Signature returns the fluent's typed parameter signature.
func (f *Fluent) Signature() []*Parameter {
	out := make([]*Parameter, len(f.signature))
	copy(out, f.signature)
	return out
}

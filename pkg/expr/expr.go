// Package expr implements the expression tree of the symbolic planning
// core: typed Boolean/arithmetic nodes over fluents, objects and
// parameters, interned for structural equality and hashing by a
// Context, exactly as the teacher interns terms by content hash in its
// constraint store.
package expr

import (
	"fmt"
	"strings"

	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/errs"
)

// Kind identifies an Expression node's variant.
type Kind int

const (
	KindBoolConst Kind = iota
	KindIntConst
	KindObjectRef
	KindParamRef
	KindFluentApp
	KindNot
	KindAnd
	KindOr
	KindIff
	KindEquals
	KindGT
	KindPlus
	KindMinus
	KindTimes
	KindForall
	KindExists
)

func (k Kind) String() string {
	switch k {
	case KindBoolConst:
		return "bool-const"
	case KindIntConst:
		return "int-const"
	case KindObjectRef:
		return "object-ref"
	case KindParamRef:
		return "param-ref"
	case KindFluentApp:
		return "fluent-app"
	case KindNot:
		return "not"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindIff:
		return "iff"
	case KindEquals:
		return "equals"
	case KindGT:
		return "gt"
	case KindPlus:
		return "plus"
	case KindMinus:
		return "minus"
	case KindTimes:
		return "times"
	case KindForall:
		return "forall"
	case KindExists:
		return "exists"
	default:
		return "unknown"
	}
}

// Expression is an interned, immutable node of the expression DAG.
// Structural equality is pointer equality: two expressions built the
// same way from the same Context are the same *Expression.
type Expression struct {
	id        int
	kind      Kind
	valueType entity.ValueType

	boolValue bool
	intValue  int64

	fluent *entity.Fluent
	object *entity.Object
	param  *entity.Parameter

	// boundVar is the quantified variable for Forall/Exists.
	boundVar *entity.Parameter

	children []*Expression
}

// ID returns the expression's arena identifier, stable for the
// lifetime of its owning Context. Two expressions have the same ID iff
// they are the same interned node.
func (e *Expression) ID() int { return e.id }

// Kind returns the node's variant.
func (e *Expression) Kind() Kind { return e.kind }

// ValueType returns the expression's inferred type.
func (e *Expression) ValueType() entity.ValueType { return e.valueType }

// Args returns the node's children (empty for leaves).
func (e *Expression) Args() []*Expression {
	out := make([]*Expression, len(e.children))
	copy(out, e.children)
	return out
}

// Arg returns the i-th child.
func (e *Expression) Arg(i int) *Expression { return e.children[i] }

// Fluent returns the applied fluent for a FluentApp node, nil otherwise.
func (e *Expression) Fluent() *entity.Fluent { return e.fluent }

// Object returns the referenced object for an ObjectRef node, nil
// otherwise.
func (e *Expression) Object() *entity.Object { return e.object }

// Parameter returns the referenced parameter for a ParamRef node, nil
// otherwise.
func (e *Expression) Parameter() *entity.Parameter { return e.param }

// BoundVariable returns the quantified parameter for Forall/Exists
// nodes, nil otherwise.
func (e *Expression) BoundVariable() *entity.Parameter { return e.boundVar }

// BoolValue returns the literal value of a BoolConst node.
func (e *Expression) BoolValue() bool { return e.boolValue }

// IntValue returns the literal value of an IntConst node.
func (e *Expression) IntValue() int64 { return e.intValue }

// IsNot reports whether e is a Not node.
func (e *Expression) IsNot() bool { return e.kind == KindNot }

// IsAnd reports whether e is an And node.
func (e *Expression) IsAnd() bool { return e.kind == KindAnd }

// IsTrue reports whether e is the BoolConst(true) literal.
func (e *Expression) IsTrue() bool { return e.kind == KindBoolConst && e.boolValue }

// IsFalse reports whether e is the BoolConst(false) literal.
func (e *Expression) IsFalse() bool { return e.kind == KindBoolConst && !e.boolValue }

// String renders a human-readable, fully-parenthesised form of e.
func (e *Expression) String() string {
	switch e.kind {
	case KindBoolConst:
		if e.boolValue {
			return "true"
		}
		return "false"
	case KindIntConst:
		return fmt.Sprintf("%d", e.intValue)
	case KindObjectRef:
		return e.object.Name()
	case KindParamRef:
		return "?" + e.param.Name()
	case KindFluentApp:
		args := make([]string, len(e.children))
		for i, c := range e.children {
			args[i] = c.String()
		}
		return fmt.Sprintf("%s(%s)", e.fluent.Name(), strings.Join(args, ", "))
	case KindNot:
		return "!" + e.children[0].String()
	case KindForall, KindExists:
		q := "forall"
		if e.kind == KindExists {
			q = "exists"
		}
		return fmt.Sprintf("%s ?%s (%s)", q, e.boundVar.Name(), e.children[0].String())
	default:
		op := map[Kind]string{
			KindAnd: "&", KindOr: "|", KindIff: "<->", KindEquals: "=",
			KindGT: ">", KindPlus: "+", KindMinus: "-", KindTimes: "*",
		}[e.kind]
		parts := make([]string, len(e.children))
		for i, c := range e.children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, " "+op+" ") + ")"
	}
}

// Context is the expression manager: it interns every node built
// through its constructors so that structurally identical expressions
// are represented by the very same *Expression, giving O(1) structural
// equality and hash-based lookups, mirroring the teacher's content-hash
// interning of constraint terms.
type Context struct {
	nextID int
	table  map[string]*Expression
}

// NewContext creates an empty, fresh expression manager.
func NewContext() *Context {
	return &Context{table: make(map[string]*Expression)}
}

func (c *Context) intern(e *Expression, key string) *Expression {
	if existing, ok := c.table[key]; ok {
		return existing
	}
	e.id = c.nextID
	c.nextID++
	c.table[key] = e
	return e
}

func childKeys(children []*Expression) string {
	var b strings.Builder
	for _, ch := range children {
		fmt.Fprintf(&b, "#%d", ch.id)
	}
	return b.String()
}

// TRUE returns the interned Boolean literal true.
func (c *Context) TRUE() *Expression {
	key := fmt.Sprintf("bool:true")
	return c.intern(&Expression{kind: KindBoolConst, valueType: entity.ValueBool, boolValue: true}, key)
}

// FALSE returns the interned Boolean literal false.
func (c *Context) FALSE() *Expression {
	key := fmt.Sprintf("bool:false")
	return c.intern(&Expression{kind: KindBoolConst, valueType: entity.ValueBool, boolValue: false}, key)
}

// Bool returns TRUE() or FALSE() for v.
func (c *Context) Bool(v bool) *Expression {
	if v {
		return c.TRUE()
	}
	return c.FALSE()
}

// Int returns the interned integer literal v.
func (c *Context) Int(v int64) *Expression {
	key := fmt.Sprintf("int:%d", v)
	return c.intern(&Expression{kind: KindIntConst, valueType: entity.ValueInt, intValue: v}, key)
}

// ObjectRef returns the interned reference to object o.
func (c *Context) ObjectRef(o *entity.Object) *Expression {
	key := fmt.Sprintf("obj:%p", o)
	return c.intern(&Expression{kind: KindObjectRef, valueType: entity.ValueBool, object: o}, key)
}

// ParamRef returns the interned reference to parameter p. Its
// ValueType is ValueBool by convention for typed (non-numeric)
// parameters; this package has no constructor for an integer-typed
// parameter reference.
func (c *Context) ParamRef(p *entity.Parameter) *Expression {
	key := fmt.Sprintf("param:%p", p)
	return c.intern(&Expression{kind: KindParamRef, valueType: entity.ValueBool, param: p}, key)
}

// FluentApp returns the interned application of fluent f to args. The
// arity of args must match f's signature.
func (c *Context) FluentApp(f *entity.Fluent, args ...*Expression) (*Expression, error) {
	if len(args) != f.Arity() {
		return nil, &errs.TypeError{Context: "FluentApp(" + f.Name() + ")", Expected: fmt.Sprintf("%d args", f.Arity()), Actual: fmt.Sprintf("%d args", len(args))}
	}
	key := fmt.Sprintf("fluent:%p%s", f, childKeys(args))
	return c.intern(&Expression{kind: KindFluentApp, valueType: f.ValueType(), fluent: f, children: append([]*Expression{}, args...)}, key), nil
}

// MustFluentApp is FluentApp but panics on error; intended for
// call sites building a well-typed problem where the arity is known to
// be correct by construction (mirrors the teacher's convention of
// panicking on programmer error, not user error).
func (c *Context) MustFluentApp(f *entity.Fluent, args ...*Expression) *Expression {
	e, err := c.FluentApp(f, args...)
	if err != nil {
		panic(err)
	}
	return e
}

func (c *Context) unary(kind Kind, vt entity.ValueType, child *Expression) *Expression {
	key := fmt.Sprintf("%s:%s", kind, childKeys([]*Expression{child}))
	return c.intern(&Expression{kind: kind, valueType: vt, children: []*Expression{child}}, key)
}

func (c *Context) nary(kind Kind, vt entity.ValueType, children []*Expression) *Expression {
	key := fmt.Sprintf("%s:%s", kind, childKeys(children))
	return c.intern(&Expression{kind: kind, valueType: vt, children: append([]*Expression{}, children...)}, key)
}

// Not returns !e. Double negation is not automatically cancelled: that
// normalisation is to_nnf's job, not the constructor's.
func (c *Context) Not(e *Expression) (*Expression, error) {
	if e.valueType != entity.ValueBool {
		return nil, &errs.TypeError{Context: "Not", Expected: "bool", Actual: e.valueType.String()}
	}
	return c.unary(KindNot, entity.ValueBool, e), nil
}

// And returns the conjunction of args (args must be Boolean).
func (c *Context) And(args ...*Expression) (*Expression, error) {
	for _, a := range args {
		if a.valueType != entity.ValueBool {
			return nil, &errs.TypeError{Context: "And", Expected: "bool", Actual: a.valueType.String()}
		}
	}
	return c.nary(KindAnd, entity.ValueBool, args), nil
}

// Or returns the disjunction of args (args must be Boolean).
func (c *Context) Or(args ...*Expression) (*Expression, error) {
	for _, a := range args {
		if a.valueType != entity.ValueBool {
			return nil, &errs.TypeError{Context: "Or", Expected: "bool", Actual: a.valueType.String()}
		}
	}
	return c.nary(KindOr, entity.ValueBool, args), nil
}

// Iff returns a <-> b.
func (c *Context) Iff(a, b *Expression) (*Expression, error) {
	if a.valueType != entity.ValueBool || b.valueType != entity.ValueBool {
		return nil, &errs.TypeError{Context: "Iff", Expected: "bool", Actual: "non-bool operand"}
	}
	return c.nary(KindIff, entity.ValueBool, []*Expression{a, b}), nil
}

// Equals returns a = b. Operands must share a value type.
func (c *Context) Equals(a, b *Expression) (*Expression, error) {
	if a.valueType != b.valueType {
		return nil, &errs.TypeError{Context: "Equals", Expected: a.valueType.String(), Actual: b.valueType.String()}
	}
	return c.nary(KindEquals, entity.ValueBool, []*Expression{a, b}), nil
}

// GT returns a > b (integer comparison).
func (c *Context) GT(a, b *Expression) (*Expression, error) {
	if a.valueType != entity.ValueInt || b.valueType != entity.ValueInt {
		return nil, &errs.TypeError{Context: "GT", Expected: "int", Actual: "non-int operand"}
	}
	return c.nary(KindGT, entity.ValueBool, []*Expression{a, b}), nil
}

func (c *Context) arith(kind Kind, args ...*Expression) (*Expression, error) {
	for _, a := range args {
		if a.valueType != entity.ValueInt {
			return nil, &errs.TypeError{Context: kind.String(), Expected: "int", Actual: a.valueType.String()}
		}
	}
	return c.nary(kind, entity.ValueInt, args), nil
}

// Plus returns the integer sum of args.
func (c *Context) Plus(args ...*Expression) (*Expression, error) { return c.arith(KindPlus, args...) }

// Minus returns a - b.
func (c *Context) Minus(a, b *Expression) (*Expression, error) { return c.arith(KindMinus, a, b) }

// Times returns the integer product of args.
func (c *Context) Times(args ...*Expression) (*Expression, error) {
	return c.arith(KindTimes, args...)
}

// Forall returns the universally quantified body over boundVar.
func (c *Context) Forall(boundVar *entity.Parameter, body *Expression) (*Expression, error) {
	if body.valueType != entity.ValueBool {
		return nil, &errs.TypeError{Context: "Forall", Expected: "bool", Actual: body.valueType.String()}
	}
	key := fmt.Sprintf("forall:%p%s", boundVar, childKeys([]*Expression{body}))
	return c.intern(&Expression{kind: KindForall, valueType: entity.ValueBool, boundVar: boundVar, children: []*Expression{body}}, key), nil
}

// Exists returns the existentially quantified body over boundVar.
func (c *Context) Exists(boundVar *entity.Parameter, body *Expression) (*Expression, error) {
	if body.valueType != entity.ValueBool {
		return nil, &errs.TypeError{Context: "Exists", Expected: "bool", Actual: body.valueType.String()}
	}
	key := fmt.Sprintf("exists:%p%s", boundVar, childKeys([]*Expression{body}))
	return c.intern(&Expression{kind: KindExists, valueType: entity.ValueBool, boundVar: boundVar, children: []*Expression{body}}, key), nil
}

// AutoPromote lifts v into an Expression: *Expression passes through
// unchanged, bool/int literals become BoolConst/IntConst, *entity.Object
// becomes an ObjectRef and *entity.Parameter becomes a ParamRef.
func (c *Context) AutoPromote(v any) (*Expression, error) {
	switch x := v.(type) {
	case *Expression:
		return x, nil
	case bool:
		return c.Bool(x), nil
	case int:
		return c.Int(int64(x)), nil
	case int64:
		return c.Int(x), nil
	case *entity.Object:
		return c.ObjectRef(x), nil
	case *entity.Parameter:
		return c.ParamRef(x), nil
	default:
		return nil, &errs.TypeError{Context: "AutoPromote", Expected: "expression-promotable value", Actual: fmt.Sprintf("%T", v)}
	}
}

// Substitute performs capture-free substitution of parameters by
// expressions in e, according to mapping. Parameters not present in
// mapping are left untouched. Quantifier-bound variables shadow an
// outer mapping entry of the same parameter within their body, which is
// "capture-free" in the sense required here: parameters are scoped
// identifiers, never renamed, so shadowing is simply "don't substitute
// under a Forall/Exists that rebinds the same parameter".
func Substitute(c *Context, e *Expression, mapping map[*entity.Parameter]*Expression) (*Expression, error) {
	switch e.kind {
	case KindParamRef:
		if repl, ok := mapping[e.param]; ok {
			return repl, nil
		}
		return e, nil
	case KindForall, KindExists:
		if _, shadowed := mapping[e.boundVar]; shadowed {
			inner := make(map[*entity.Parameter]*Expression, len(mapping))
			for k, v := range mapping {
				if k != e.boundVar {
					inner[k] = v
				}
			}
			mapping = inner
		}
		body, err := Substitute(c, e.children[0], mapping)
		if err != nil {
			return nil, err
		}
		if e.kind == KindForall {
			return c.Forall(e.boundVar, body)
		}
		return c.Exists(e.boundVar, body)
	case KindFluentApp:
		newArgs := make([]*Expression, len(e.children))
		for i, ch := range e.children {
			na, err := Substitute(c, ch, mapping)
			if err != nil {
				return nil, err
			}
			newArgs[i] = na
		}
		return c.FluentApp(e.fluent, newArgs...)
	case KindBoolConst, KindIntConst, KindObjectRef:
		return e, nil
	default:
		newArgs := make([]*Expression, len(e.children))
		for i, ch := range e.children {
			na, err := Substitute(c, ch, mapping)
			if err != nil {
				return nil, err
			}
			newArgs[i] = na
		}
		return rebuild(c, e, newArgs)
	}
}

func rebuild(c *Context, e *Expression, children []*Expression) (*Expression, error) {
	switch e.kind {
	case KindNot:
		return c.Not(children[0])
	case KindAnd:
		return c.And(children...)
	case KindOr:
		return c.Or(children...)
	case KindIff:
		return c.Iff(children[0], children[1])
	case KindEquals:
		return c.Equals(children[0], children[1])
	case KindGT:
		return c.GT(children[0], children[1])
	case KindPlus:
		return c.Plus(children...)
	case KindMinus:
		return c.Minus(children[0], children[1])
	case KindTimes:
		return c.Times(children...)
	default:
		return nil, &errs.ExpressionDefinitionError{Reason: "rebuild: unhandled kind " + e.kind.String()}
	}
}

// IsNNF reports whether e is in negation normal form: Not appears only
// directly above a FluentApp node.
func IsNNF(e *Expression) bool {
	switch e.kind {
	case KindNot:
		return e.children[0].kind == KindFluentApp
	case KindIff:
		return false
	default:
		for _, ch := range e.children {
			if !IsNNF(ch) {
				return false
			}
		}
		return true
	}
}

// ToNNF pushes negations down to the fluent level via De Morgan's laws.
// It fails with ExpressionDefinitionError on any Iff node, negated or
// not: IsNNF never accepts Iff, and pushing a Not through one would
// need a fresh disjunction of conjunctions that the rest of the
// pipeline does not expect.
func ToNNF(c *Context, e *Expression) (*Expression, error) {
	return toNNF(c, e, false)
}

func toNNF(c *Context, e *Expression, negate bool) (*Expression, error) {
	switch e.kind {
	case KindFluentApp, KindObjectRef, KindParamRef, KindBoolConst, KindIntConst:
		if !negate {
			return e, nil
		}
		if e.kind == KindBoolConst {
			return c.Bool(!e.boolValue), nil
		}
		return c.Not(e)
	case KindNot:
		return toNNF(c, e.children[0], !negate)
	case KindAnd, KindOr:
		newArgs := make([]*Expression, len(e.children))
		for i, ch := range e.children {
			na, err := toNNF(c, ch, negate)
			if err != nil {
				return nil, err
			}
			newArgs[i] = na
		}
		if (e.kind == KindAnd) != negate {
			return c.And(newArgs...)
		}
		return c.Or(newArgs...)
	case KindIff:
		return nil, &errs.ExpressionDefinitionError{Reason: "Iff is not in NNF and cannot be pushed through Not"}
	case KindForall, KindExists:
		body, err := toNNF(c, e.children[0], negate)
		if err != nil {
			return nil, err
		}
		if (e.kind == KindForall) != negate {
			return c.Forall(e.boundVar, body)
		}
		return c.Exists(e.boundVar, body)
	case KindEquals, KindGT, KindPlus, KindMinus, KindTimes:
		if negate {
			return nil, &errs.ExpressionDefinitionError{Reason: "cannot push Not through " + e.kind.String()}
		}
		return e, nil
	default:
		return nil, &errs.ExpressionDefinitionError{Reason: "ToNNF: unhandled kind " + e.kind.String()}
	}
}

// Visitor is called once per distinct node of the DAG during Walk, in
// the given order.
type Visitor func(e *Expression)

// Walk performs a single traversal of e respecting interning: each
// distinct node (by ID) is visited exactly once, even if it is shared
// by multiple parents. post selects post-order (children before
// parent); otherwise pre-order.
func Walk(e *Expression, post bool, visit Visitor) {
	seen := make(map[int]bool)
	var rec func(n *Expression)
	rec = func(n *Expression) {
		if seen[n.id] {
			return
		}
		seen[n.id] = true
		if !post {
			visit(n)
		}
		for _, ch := range n.children {
			rec(ch)
		}
		if post {
			visit(n)
		}
	}
	rec(e)
}

// FluentsUnderNot returns, in first-seen order, every distinct fluent
// that appears as the argument of a Not node anywhere in e. Used by
// the negative-conditions remover to decide which fluents need a
// mirror.
func FluentsUnderNot(e *Expression) []*entity.Fluent {
	var order []*entity.Fluent
	seen := make(map[*entity.Fluent]bool)
	Walk(e, false, func(n *Expression) {
		if n.kind == KindNot && n.children[0].kind == KindFluentApp {
			f := n.children[0].fluent
			if !seen[f] {
				seen[f] = true
				order = append(order, f)
			}
		}
	})
	return order
}

// Rewrite performs a structural, interning-preserving rewrite of e.
// Before descending into a node, replace(n) is tried; if it returns
// (r, true), r is used verbatim in place of n without descending into
// n's original children. Otherwise n's children are rewritten first
// and n is rebuilt from the rewritten children (a no-op if nothing
// underneath changed, since rebuilding an unchanged node re-interns to
// the same *Expression).
func Rewrite(c *Context, e *Expression, replace func(*Expression) (*Expression, bool)) (*Expression, error) {
	if r, ok := replace(e); ok {
		return r, nil
	}
	switch e.kind {
	case KindBoolConst, KindIntConst, KindObjectRef, KindParamRef:
		return e, nil
	case KindFluentApp:
		newArgs := make([]*Expression, len(e.children))
		for i, ch := range e.children {
			na, err := Rewrite(c, ch, replace)
			if err != nil {
				return nil, err
			}
			newArgs[i] = na
		}
		return c.FluentApp(e.fluent, newArgs...)
	case KindForall, KindExists:
		body, err := Rewrite(c, e.children[0], replace)
		if err != nil {
			return nil, err
		}
		if e.kind == KindForall {
			return c.Forall(e.boundVar, body)
		}
		return c.Exists(e.boundVar, body)
	default:
		newArgs := make([]*Expression, len(e.children))
		for i, ch := range e.children {
			na, err := Rewrite(c, ch, replace)
			if err != nil {
				return nil, err
			}
			newArgs[i] = na
		}
		return rebuild(c, e, newArgs)
	}
}

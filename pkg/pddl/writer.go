// Package pddl reads and writes the domain+problem pair used widely in
// the classical/temporal planning field (spec.md §6 "File format
// interface"), including the multi-agent extensions this module's
// problems need: an `:agent` attribute on actions and a parallel
// `:preconditions-wait` list.
package pddl

import (
	"fmt"
	"strings"

	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/expr"
	"github.com/gitrdm/sociallaw/pkg/problem"
	"github.com/gitrdm/sociallaw/pkg/types"
)

// Writer renders a Problem as a (domain, problem) PDDL text pair.
type Writer struct{}

// NewWriter returns a Writer. It carries no state: every method call is
// a pure function of its argument.
func NewWriter() *Writer { return &Writer{} }

// WriteDomain renders p's types, predicates/functions and actions as a
// PDDL domain definition.
func (w *Writer) WriteDomain(p *problem.Problem) (string, error) {
	var b strings.Builder
	name := domainName(p)
	fmt.Fprintf(&b, "(define (domain %s)\n", name)
	fmt.Fprintf(&b, "  (:requirements %s)\n", w.requirements(p))
	b.WriteString("  (:types\n")
	for _, t := range p.TypeContext().All() {
		if t.Parent() != nil {
			fmt.Fprintf(&b, "    %s - %s\n", t.Name(), t.Parent().Name())
		} else {
			fmt.Fprintf(&b, "    %s\n", t.Name())
		}
	}
	b.WriteString("  )\n")

	b.WriteString("  (:predicates\n")
	for _, f := range p.Fluents() {
		if f.ValueType() == entity.ValueBool {
			fmt.Fprintf(&b, "    %s\n", predicateSig(f))
		}
	}
	b.WriteString("  )\n")

	hasNumeric := false
	for _, f := range p.Fluents() {
		if f.ValueType() == entity.ValueInt {
			hasNumeric = true
			break
		}
	}
	if hasNumeric {
		b.WriteString("  (:functions\n")
		for _, f := range p.Fluents() {
			if f.ValueType() == entity.ValueInt {
				fmt.Fprintf(&b, "    %s\n", predicateSig(f))
			}
		}
		b.WriteString("  )\n")
	}

	for _, a := range p.Actions() {
		var err error
		switch act := a.(type) {
		case *problem.InstantaneousAction:
			err = w.writeInstantaneousAction(&b, act)
		case *problem.DurativeAction:
			err = w.writeDurativeAction(&b, act)
		}
		if err != nil {
			return "", err
		}
	}
	b.WriteString(")\n")
	return b.String(), nil
}

func (w *Writer) requirements(p *problem.Problem) string {
	reqs := []string{":strips", ":typing"}
	k := p.Kind()
	if k.Has(problem.HasNegativeConditions) {
		reqs = append(reqs, ":negative-preconditions")
	}
	if k.Has(problem.HasConditionalEffects) {
		reqs = append(reqs, ":conditional-effects")
	}
	if k.Has(problem.HasDurativeActions) {
		reqs = append(reqs, ":durative-actions")
	}
	if k.Has(problem.HasNumericEffects) {
		reqs = append(reqs, ":fluents")
	}
	if k.Has(problem.HasQuantifiers) {
		reqs = append(reqs, ":universal-preconditions", ":existential-preconditions")
	}
	return strings.Join(reqs, " ")
}

func predicateSig(f *entity.Fluent) string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(f.Name())
	for i, param := range f.Signature() {
		fmt.Fprintf(&b, " ?x%d - %s", i, param.Type().Name())
	}
	b.WriteString(")")
	return b.String()
}

func (w *Writer) writeInstantaneousAction(b *strings.Builder, a *problem.InstantaneousAction) error {
	fmt.Fprintf(b, "  (:action %s\n", a.Name())
	fmt.Fprintf(b, "   :parameters (%s)\n", paramList(a.Parameters()))
	if binding := a.Binding(); binding != nil && binding.Kind() == problem.BindingParam {
		fmt.Fprintf(b, "   :agent ?x%d\n", binding.ParamIndex())
	}
	precond, err := conjunctionSexpr(a.Preconditions())
	if err != nil {
		return err
	}
	fmt.Fprintf(b, "   :precondition %s\n", precond)
	if waits := a.PreconditionsWait(); len(waits) > 0 {
		waitSexpr, err := conjunctionSexpr(waits)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "   :preconditions-wait %s\n", waitSexpr)
	}
	effSexpr, err := effectsSexpr(a.Effects())
	if err != nil {
		return err
	}
	fmt.Fprintf(b, "   :effect %s\n", effSexpr)
	b.WriteString("  )\n")
	return nil
}

func (w *Writer) writeDurativeAction(b *strings.Builder, a *problem.DurativeAction) error {
	fmt.Fprintf(b, "  (:durative-action %s\n", a.Name())
	fmt.Fprintf(b, "   :parameters (%s)\n", paramList(a.Parameters()))
	if binding := a.Binding(); binding != nil && binding.Kind() == problem.BindingParam {
		fmt.Fprintf(b, "   :agent ?x%d\n", binding.ParamIndex())
	}
	dur := a.Duration()
	switch {
	case dur.Min != nil && dur.Max != nil:
		minS, err := sexpr(dur.Min)
		if err != nil {
			return err
		}
		maxS, err := sexpr(dur.Max)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "   :duration (and (>= ?duration %s) (<= ?duration %s))\n", minS, maxS)
	case dur.Min != nil:
		minS, err := sexpr(dur.Min)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "   :duration (>= ?duration %s)\n", minS)
	}

	b.WriteString("   :condition (and\n")
	for _, tc := range a.Conditions() {
		s, err := sexpr(tc.Expr)
		if err != nil {
			return err
		}
		iv := tc.Interval.String()
		if tc.Interval.Overlaps() {
			iv = "over all"
		}
		fmt.Fprintf(b, "     (%s %s)\n", iv, s)
	}
	for _, tc := range a.ConditionsWait() {
		s, err := sexpr(tc.Expr)
		if err != nil {
			return err
		}
		iv := tc.Interval.String()
		if tc.Interval.Overlaps() {
			iv = "over all"
		}
		fmt.Fprintf(b, "     (:wait %s %s)\n", iv, s)
	}
	b.WriteString("   )\n")

	b.WriteString("   :effect (and\n")
	for _, te := range a.Effects() {
		effS, err := effectSexpr(te.Effect)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "     (at %s %s)\n", te.Timing.String(), effS)
	}
	b.WriteString("   )\n")
	b.WriteString("  )\n")
	return nil
}

func paramList(params []*entity.Parameter) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("?x%d - %s", i, p.Type().Name())
	}
	return strings.Join(parts, " ")
}

func conjunctionSexpr(exprs []*expr.Expression) (string, error) {
	if len(exprs) == 0 {
		return "(and)", nil
	}
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		s, err := sexpr(e)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "(and " + strings.Join(parts, " ") + ")", nil
}

func effectsSexpr(effs []*problem.Effect) (string, error) {
	if len(effs) == 0 {
		return "(and)", nil
	}
	parts := make([]string, len(effs))
	for i, e := range effs {
		s, err := effectSexpr(e)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "(and " + strings.Join(parts, " ") + ")", nil
}

func effectSexpr(e *problem.Effect) (string, error) {
	target, err := sexpr(e.Target)
	if err != nil {
		return "", err
	}
	var lit string
	switch {
	case e.Value.Kind() == expr.KindBoolConst && e.Value.IsTrue():
		lit = target
	case e.Value.Kind() == expr.KindBoolConst && e.Value.IsFalse():
		lit = "(not " + target + ")"
	default:
		valS, err := sexpr(e.Value)
		if err != nil {
			return "", err
		}
		lit = fmt.Sprintf("(assign %s %s)", target, valS)
	}
	if e.Condition == nil {
		return lit, nil
	}
	condS, err := sexpr(e.Condition)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(when %s %s)", condS, lit), nil
}

// sexpr renders an expression as PDDL s-expression syntax.
func sexpr(e *expr.Expression) (string, error) {
	switch e.Kind() {
	case expr.KindBoolConst:
		if e.IsTrue() {
			return "(and)", nil
		}
		return "(or)", nil
	case expr.KindIntConst:
		return fmt.Sprintf("%d", e.IntValue()), nil
	case expr.KindObjectRef:
		return e.Object().Name(), nil
	case expr.KindParamRef:
		return "?" + e.Parameter().Name(), nil
	case expr.KindFluentApp:
		parts := []string{e.Fluent().Name()}
		for _, arg := range e.Args() {
			s, err := sexpr(arg)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "(" + strings.Join(parts, " ") + ")", nil
	case expr.KindNot:
		s, err := sexpr(e.Arg(0))
		if err != nil {
			return "", err
		}
		return "(not " + s + ")", nil
	case expr.KindAnd, expr.KindOr:
		op := "and"
		if e.Kind() == expr.KindOr {
			op = "or"
		}
		parts := make([]string, len(e.Args()))
		for i, a := range e.Args() {
			s, err := sexpr(a)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + op + " " + strings.Join(parts, " ") + ")", nil
	case expr.KindIff:
		a, err := sexpr(e.Arg(0))
		if err != nil {
			return "", err
		}
		bs, err := sexpr(e.Arg(1))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(= %s %s)", a, bs), nil
	case expr.KindEquals:
		a, err := sexpr(e.Arg(0))
		if err != nil {
			return "", err
		}
		bs, err := sexpr(e.Arg(1))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(= %s %s)", a, bs), nil
	case expr.KindGT:
		a, err := sexpr(e.Arg(0))
		if err != nil {
			return "", err
		}
		bs, err := sexpr(e.Arg(1))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(> %s %s)", a, bs), nil
	case expr.KindPlus, expr.KindMinus, expr.KindTimes:
		op := map[expr.Kind]string{expr.KindPlus: "+", expr.KindMinus: "-", expr.KindTimes: "*"}[e.Kind()]
		parts := make([]string, len(e.Args()))
		for i, a := range e.Args() {
			s, err := sexpr(a)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + op + " " + strings.Join(parts, " ") + ")", nil
	case expr.KindForall, expr.KindExists:
		quant := "forall"
		if e.Kind() == expr.KindExists {
			quant = "exists"
		}
		body, err := sexpr(e.Arg(0))
		if err != nil {
			return "", err
		}
		bv := e.BoundVariable()
		return fmt.Sprintf("(%s (?%s - %s) %s)", quant, bv.Name(), bv.Type().Name(), body), nil
	default:
		return "", fmt.Errorf("pddl: unsupported expression kind %s", e.Kind())
	}
}

// WriteProblem renders p's objects, initial state and goal as a PDDL
// problem definition, referencing the domain named domainName.
func (w *Writer) WriteProblem(p *problem.Problem) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "(define (problem %s)\n", p.Name)
	fmt.Fprintf(&b, "  (:domain %s)\n", domainName(p))

	b.WriteString("  (:objects\n")
	byType := groupObjectsByType(p)
	for _, t := range p.TypeContext().All() {
		objs := byType[t]
		if len(objs) == 0 {
			continue
		}
		names := make([]string, len(objs))
		for i, o := range objs {
			names[i] = o.Name()
		}
		fmt.Fprintf(&b, "    %s - %s\n", strings.Join(names, " "), t.Name())
	}
	b.WriteString("  )\n")

	b.WriteString("  (:init\n")
	for _, entry := range p.InitialValues() {
		appS, err := sexpr(entry.App)
		if err != nil {
			return "", err
		}
		switch {
		case entry.Value.Kind() == expr.KindBoolConst && entry.Value.IsTrue():
			fmt.Fprintf(&b, "    %s\n", appS)
		case entry.Value.Kind() == expr.KindBoolConst && entry.Value.IsFalse():
			// Closed-world assumption: a false literal is simply omitted.
		default:
			valS, err := sexpr(entry.Value)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "    (= %s %s)\n", appS, valS)
		}
	}
	b.WriteString("  )\n")

	goalS, err := conjunctionSexpr(p.Goals())
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "  (:goal %s)\n", goalS)
	b.WriteString(")\n")
	return b.String(), nil
}

func domainName(p *problem.Problem) string {
	return p.Name + "-domain"
}

func groupObjectsByType(p *problem.Problem) map[*types.UserType][]*entity.Object {
	out := make(map[*types.UserType][]*entity.Object)
	for _, o := range p.Objects() {
		out[o.Type()] = append(out[o.Type()], o)
	}
	return out
}

package pddl

import (
	"strconv"
	"strings"

	"github.com/gitrdm/sociallaw/pkg/entity"
	"github.com/gitrdm/sociallaw/pkg/errs"
	"github.com/gitrdm/sociallaw/pkg/expr"
	"github.com/gitrdm/sociallaw/pkg/problem"
	"github.com/gitrdm/sociallaw/pkg/types"
)

// Reader parses a (domain, problem) PDDL text pair back into a Problem,
// covering the subset this module's Writer emits: typed objects,
// Boolean predicates, integer functions, STRIPS-style instantaneous
// actions with conjunctive preconditions and (possibly conditional)
// literal effects, and the `:agent`/`:preconditions-wait` multi-agent
// extensions. Durative actions and quantified preconditions round-trip
// through Writer but are not reconstructed by Reader: a domain using
// either reports UnsupportedFeatureError, since reading them back
// requires a real s-expression grammar this module has no external
// consumer for (the core never reads planner-authored PDDL, only
// writes it for the debug dump and ExecPlanner boundary).
type Reader struct {
	ctx     *expr.Context
	typeCtx *types.Context

	// currentFluents/currentObjects are populated per ReadProblem call
	// (and, for fluents, per ReadDomain call) so that parseFluentApp
	// and parseTerm can resolve bare names without threading a lookup
	// table through every recursive parse call.
	currentFluents map[string]*entity.Fluent
	currentObjects map[string]*entity.Object
}

// NewReader builds a Reader that interns parsed expressions in ctx and
// resolves/declares types in typeCtx.
func NewReader(ctx *expr.Context, typeCtx *types.Context) *Reader {
	return &Reader{ctx: ctx, typeCtx: typeCtx}
}

// sexp is a minimal parsed s-expression: either an atom or a list.
type sexp struct {
	atom string
	list []sexp
}

func (s sexp) isAtom() bool { return s.list == nil }

func tokenize(src string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range src {
		switch r {
		case '(', ')':
			flush()
			toks = append(toks, string(r))
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

func stripComments(src string) string {
	lines := strings.Split(src, "\n")
	for i, l := range lines {
		if idx := strings.Index(l, ";"); idx >= 0 {
			lines[i] = l[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

func parseSexps(toks []string) ([]sexp, error) {
	pos := 0
	var parseOne func() (sexp, error)
	parseOne = func() (sexp, error) {
		if pos >= len(toks) {
			return sexp{}, &errs.ProblemDefinitionError{Reason: "pddl: unexpected end of input"}
		}
		tok := toks[pos]
		if tok == "(" {
			pos++
			var items []sexp
			for pos < len(toks) && toks[pos] != ")" {
				item, err := parseOne()
				if err != nil {
					return sexp{}, err
				}
				items = append(items, item)
			}
			if pos >= len(toks) {
				return sexp{}, &errs.ProblemDefinitionError{Reason: "pddl: unbalanced parentheses"}
			}
			pos++ // consume ")"
			return sexp{list: items}, nil
		}
		if tok == ")" {
			return sexp{}, &errs.ProblemDefinitionError{Reason: "pddl: unexpected )"}
		}
		pos++
		return sexp{atom: tok}, nil
	}
	var out []sexp
	for pos < len(toks) {
		item, err := parseOne()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func parseTopLevel(src string) (sexp, error) {
	toks := tokenize(stripComments(src))
	forms, err := parseSexps(toks)
	if err != nil {
		return sexp{}, err
	}
	if len(forms) != 1 {
		return sexp{}, &errs.ProblemDefinitionError{Reason: "pddl: expected exactly one top-level form"}
	}
	return forms[0], nil
}

func find(items []sexp, keyword string) (sexp, bool) {
	for _, it := range items {
		if !it.isAtom() && len(it.list) > 0 && it.list[0].isAtom() && it.list[0].atom == keyword {
			return it, true
		}
	}
	return sexp{}, false
}

// ReadDomain parses domainText into a fresh Problem carrying only
// types, fluents and actions (no objects, initial state or goal — call
// ReadProblem afterward to populate those into the same Problem).
func (r *Reader) ReadDomain(domainText string) (*problem.Problem, error) {
	root, err := parseTopLevel(domainText)
	if err != nil {
		return nil, err
	}
	if len(root.list) < 2 || root.list[0].atom != "define" {
		return nil, &errs.ProblemDefinitionError{Reason: "pddl: domain does not start with (define ...)"}
	}
	nameForm := root.list[1]
	name := "domain"
	if len(nameForm.list) == 2 {
		name = nameForm.list[1].atom
	}

	p := problem.New(name, r.ctx, r.typeCtx)
	r.currentFluents = make(map[string]*entity.Fluent)
	r.currentObjects = make(map[string]*entity.Object)

	if typesForm, ok := find(root.list[2:], ":types"); ok {
		if err := r.readTypes(typesForm.list[1:]); err != nil {
			return nil, err
		}
	}
	if predsForm, ok := find(root.list[2:], ":predicates"); ok {
		if err := r.readFluents(p, predsForm.list[1:], entity.ValueBool); err != nil {
			return nil, err
		}
	}
	if funcsForm, ok := find(root.list[2:], ":functions"); ok {
		if err := r.readFluents(p, funcsForm.list[1:], entity.ValueInt); err != nil {
			return nil, err
		}
	}

	for _, form := range root.list[2:] {
		if form.isAtom() || len(form.list) == 0 || !form.list[0].isAtom() {
			continue
		}
		switch form.list[0].atom {
		case ":action":
			if err := r.readAction(p, form.list[1:]); err != nil {
				return nil, err
			}
		case ":durative-action":
			return nil, &errs.UnsupportedFeatureError{Feature: "reading durative actions back from PDDL"}
		}
	}
	return p, nil
}

func (r *Reader) readTypes(items []sexp) error {
	// "a b c - parent d - other" style typed lists.
	var pending []string
	for i := 0; i < len(items); i++ {
		if items[i].atom == "-" {
			continue
		}
		if i+1 < len(items) && items[i+1].atom == "-" {
			parentName := items[i+2].atom
			parent := r.typeCtx.Lookup(parentName)
			if parent == nil {
				declared, err := r.typeCtx.Declare(parentName, nil)
				if err != nil {
					return err
				}
				parent = declared
			}
			pending = append(pending, items[i].atom)
			for _, tn := range pending {
				if r.typeCtx.Lookup(tn) == nil {
					if _, err := r.typeCtx.Declare(tn, parent); err != nil {
						return err
					}
				}
			}
			pending = nil
			i += 2
			continue
		}
		pending = append(pending, items[i].atom)
	}
	for _, tn := range pending {
		if r.typeCtx.Lookup(tn) == nil {
			if _, err := r.typeCtx.Declare(tn, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Reader) readFluents(p *problem.Problem, items []sexp, vt entity.ValueType) error {
	for _, sig := range items {
		if sig.isAtom() || len(sig.list) == 0 {
			continue
		}
		fname := sig.list[0].atom
		params, err := r.readTypedParams(sig.list[1:])
		if err != nil {
			return err
		}
		f := entity.NewFluent(fname, vt, params)
		if err := p.AddFluent(f, nil); err != nil {
			return err
		}
		r.currentFluents[f.Name()] = f
	}
	return nil
}

func (r *Reader) readTypedParams(items []sexp) ([]*entity.Parameter, error) {
	var params []*entity.Parameter
	var pending []string
	flush := func(t *types.UserType) {
		for _, n := range pending {
			params = append(params, entity.NewParameter(strings.TrimPrefix(n, "?"), t))
		}
		pending = nil
	}
	for i := 0; i < len(items); i++ {
		if items[i].atom == "-" {
			continue
		}
		if i+1 < len(items) && items[i+1].atom == "-" {
			pending = append(pending, items[i].atom)
			t := r.typeCtx.Lookup(items[i+2].atom)
			if t == nil {
				return nil, &errs.ProblemDefinitionError{Reason: "pddl: undeclared type " + items[i+2].atom}
			}
			flush(t)
			i += 2
			continue
		}
		pending = append(pending, items[i].atom)
	}
	if len(pending) > 0 {
		return nil, &errs.ProblemDefinitionError{Reason: "pddl: parameter list missing a type"}
	}
	return params, nil
}

func (r *Reader) readAction(p *problem.Problem, items []sexp) error {
	if len(items) == 0 {
		return &errs.ProblemDefinitionError{Reason: "pddl: action missing a name"}
	}
	name := items[0].atom
	var params []*entity.Parameter
	var binding *problem.AgentBinding
	var precond, effect sexp
	var waits sexp
	haveWaits := false

	for i := 1; i < len(items); i++ {
		if !items[i].isAtom() {
			continue
		}
		switch items[i].atom {
		case ":parameters":
			var err error
			params, err = r.readTypedParams(items[i+1].list)
			if err != nil {
				return err
			}
			i++
		case ":agent":
			idx, err := paramIndex(items[i+1].atom)
			if err != nil {
				return err
			}
			binding = problem.ParamAgent(idx)
			i++
		case ":precondition":
			precond = items[i+1]
			i++
		case ":preconditions-wait":
			waits = items[i+1]
			haveWaits = true
			i++
		case ":effect":
			effect = items[i+1]
			i++
		}
	}

	paramByRef := make(map[string]*entity.Parameter)
	for _, pm := range params {
		paramByRef["?"+pm.Name()] = pm
	}

	na := problem.NewInstantaneousAction(name, params...)
	if binding != nil {
		na.SetBinding(binding)
	}
	if !precond.isAtom() {
		pc, err := r.parseExpr(precond, paramByRef)
		if err != nil {
			return err
		}
		for _, conj := range flattenAnd(pc) {
			na.AddPrecondition(conj)
		}
	}
	if haveWaits {
		wc, err := r.parseExpr(waits, paramByRef)
		if err != nil {
			return err
		}
		for _, conj := range flattenAnd(wc) {
			na.AddPreconditionWait(conj)
		}
	}
	if !effect.isAtom() {
		effs, err := r.parseEffects(effect, paramByRef)
		if err != nil {
			return err
		}
		for _, e := range effs {
			na.AddEffect(e)
		}
	}
	return p.AddAction(na)
}

func paramIndex(ref string) (int, error) {
	ref = strings.TrimPrefix(ref, "?x")
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, &errs.ProblemDefinitionError{Reason: "pddl: malformed :agent reference"}
	}
	return n, nil
}

func flattenAnd(e *expr.Expression) []*expr.Expression {
	if e.Kind() == expr.KindAnd {
		return e.Args()
	}
	return []*expr.Expression{e}
}

func (r *Reader) parseExpr(s sexp, params map[string]*entity.Parameter) (*expr.Expression, error) {
	if s.isAtom() {
		return nil, &errs.ProblemDefinitionError{Reason: "pddl: expected an expression, found atom " + s.atom}
	}
	if len(s.list) == 0 {
		return r.ctx.TRUE(), nil
	}
	head := s.list[0].atom
	switch head {
	case "and":
		args, err := r.parseExprList(s.list[1:], params)
		if err != nil {
			return nil, err
		}
		return r.ctx.And(args...)
	case "or":
		args, err := r.parseExprList(s.list[1:], params)
		if err != nil {
			return nil, err
		}
		return r.ctx.Or(args...)
	case "not":
		inner, err := r.parseExpr(s.list[1], params)
		if err != nil {
			return nil, err
		}
		return r.ctx.Not(inner)
	case "=":
		a, err := r.parseTerm(s.list[1], params)
		if err != nil {
			return nil, err
		}
		b, err := r.parseTerm(s.list[2], params)
		if err != nil {
			return nil, err
		}
		return r.ctx.Equals(a, b)
	case ">":
		a, err := r.parseTerm(s.list[1], params)
		if err != nil {
			return nil, err
		}
		b, err := r.parseTerm(s.list[2], params)
		if err != nil {
			return nil, err
		}
		return r.ctx.GT(a, b)
	case "forall", "exists":
		return nil, &errs.UnsupportedFeatureError{Feature: "reading quantified expressions back from PDDL"}
	default:
		return r.parseFluentApp(s, params)
	}
}

func (r *Reader) parseExprList(items []sexp, params map[string]*entity.Parameter) ([]*expr.Expression, error) {
	out := make([]*expr.Expression, len(items))
	for i, it := range items {
		e, err := r.parseExpr(it, params)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (r *Reader) parseFluentApp(s sexp, params map[string]*entity.Parameter) (*expr.Expression, error) {
	fname := s.list[0].atom
	args := make([]*expr.Expression, len(s.list)-1)
	for i, a := range s.list[1:] {
		term, err := r.parseTerm(a, params)
		if err != nil {
			return nil, err
		}
		args[i] = term
	}
	f := r.currentFluents[fname]
	if f == nil {
		return nil, &errs.ProblemDefinitionError{Reason: "pddl: reference to undeclared predicate/function " + fname}
	}
	return r.ctx.FluentApp(f, args...)
}

func (r *Reader) parseTerm(s sexp, params map[string]*entity.Parameter) (*expr.Expression, error) {
	if !s.isAtom() {
		return r.parseExpr(s, params)
	}
	if strings.HasPrefix(s.atom, "?") {
		p, ok := params[s.atom]
		if !ok {
			return nil, &errs.ProblemDefinitionError{Reason: "pddl: reference to undeclared parameter " + s.atom}
		}
		return r.ctx.ParamRef(p), nil
	}
	if n, err := strconv.ParseInt(s.atom, 10, 64); err == nil {
		return r.ctx.Int(n), nil
	}
	obj := r.currentObjects[s.atom]
	if obj == nil {
		return nil, &errs.ProblemDefinitionError{Reason: "pddl: reference to undeclared object " + s.atom}
	}
	return r.ctx.ObjectRef(obj), nil
}

func (r *Reader) parseEffects(s sexp, params map[string]*entity.Parameter) ([]*problem.Effect, error) {
	if s.isAtom() {
		return nil, nil
	}
	if s.list[0].atom == "and" {
		var out []*problem.Effect
		for _, it := range s.list[1:] {
			effs, err := r.parseEffects(it, params)
			if err != nil {
				return nil, err
			}
			out = append(out, effs...)
		}
		return out, nil
	}
	if s.list[0].atom == "when" {
		cond, err := r.parseExpr(s.list[1], params)
		if err != nil {
			return nil, err
		}
		inner, err := r.parseEffects(s.list[2], params)
		if err != nil {
			return nil, err
		}
		for i, e := range inner {
			withCond, err := problem.NewEffect(e.Target, e.Value, cond)
			if err != nil {
				return nil, err
			}
			inner[i] = withCond
		}
		return inner, nil
	}
	if s.list[0].atom == "not" {
		target, err := r.parseFluentApp(s.list[1], params)
		if err != nil {
			return nil, err
		}
		eff, err := problem.NewEffect(target, r.ctx.FALSE(), nil)
		if err != nil {
			return nil, err
		}
		return []*problem.Effect{eff}, nil
	}
	if s.list[0].atom == "assign" {
		target, err := r.parseFluentApp(s.list[1], params)
		if err != nil {
			return nil, err
		}
		value, err := r.parseTerm(s.list[2], params)
		if err != nil {
			return nil, err
		}
		eff, err := problem.NewEffect(target, value, nil)
		if err != nil {
			return nil, err
		}
		return []*problem.Effect{eff}, nil
	}
	target, err := r.parseFluentApp(s, params)
	if err != nil {
		return nil, err
	}
	eff, err := problem.NewEffect(target, r.ctx.TRUE(), nil)
	if err != nil {
		return nil, err
	}
	return []*problem.Effect{eff}, nil
}

// ReadProblem parses problemText's objects, initial state and goal
// into the Problem domain was read into (which must already carry
// every fluent the problem references).
func (r *Reader) ReadProblem(domain *problem.Problem, problemText string) error {
	root, err := parseTopLevel(problemText)
	if err != nil {
		return err
	}
	if len(root.list) < 2 || root.list[0].atom != "define" {
		return &errs.ProblemDefinitionError{Reason: "pddl: problem does not start with (define ...)"}
	}

	r.currentFluents = make(map[string]*entity.Fluent)
	for _, f := range domain.Fluents() {
		r.currentFluents[f.Name()] = f
	}
	r.currentObjects = make(map[string]*entity.Object)

	if objForm, ok := find(root.list[2:], ":objects"); ok {
		params, err := r.readTypedParams(objForm.list[1:])
		if err != nil {
			return err
		}
		for _, pm := range params {
			obj := entity.NewObject(pm.Name(), pm.Type())
			if err := domain.AddObject(obj); err != nil {
				return err
			}
			r.currentObjects[obj.Name()] = obj
		}
	}

	if initForm, ok := find(root.list[2:], ":init"); ok {
		for _, lit := range initForm.list[1:] {
			if lit.isAtom() {
				continue
			}
			if lit.list[0].atom == "=" {
				app, err := r.parseFluentApp(lit.list[1], nil)
				if err != nil {
					return err
				}
				val, err := r.parseTerm(lit.list[2], nil)
				if err != nil {
					return err
				}
				if err := domain.SetInitialValue(app, val); err != nil {
					return err
				}
				continue
			}
			app, err := r.parseFluentApp(lit, nil)
			if err != nil {
				return err
			}
			if err := domain.SetInitialValue(app, r.ctx.TRUE()); err != nil {
				return err
			}
		}
	}

	if goalForm, ok := find(root.list[2:], ":goal"); ok {
		goal, err := r.parseExpr(goalForm.list[1], nil)
		if err != nil {
			return err
		}
		for _, conj := range flattenAnd(goal) {
			if err := domain.AddGoal(conj); err != nil {
				return err
			}
		}
	}
	return nil
}

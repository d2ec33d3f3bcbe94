package taint

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/ast"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/patterns"
)

type hitKey struct {
	sink *ast.Node
	rule string
}

// walker carries the state of a single Analyze call.
type walker struct {
	ctx      context.Context
	reg      *patterns.Registry
	lang     schemas.Language
	logger   *zap.Logger
	maxDepth int

	env        *Env
	depth      int
	deepWarned bool
	res        *Result
	seen       map[hitKey]bool
	err        error
}

func (w *walker) stopped() bool {
	if w.err != nil {
		return true
	}
	if err := w.ctx.Err(); err != nil {
		w.err = err
		return true
	}
	return false
}

func (w *walker) enter(n *ast.Node) bool {
	if w.maxDepth > 0 && w.depth >= w.maxDepth {
		if !w.deepWarned {
			w.deepWarned = true
			w.warn(n, "nesting exceeds the maximum depth, subtree skipped")
		}
		return false
	}
	w.depth++
	return true
}

func (w *walker) leave() { w.depth-- }

func (w *walker) warn(n *ast.Node, msg string) {
	w.res.Warnings = append(w.res.Warnings, Warning{Line: n.Line(), Message: msg})
	w.logger.Warn(msg, zap.Int("line", n.Line()), zap.String("node", n.Type))
}

func (w *walker) invariant(n *ast.Node, detail string) {
	if w.err == nil {
		w.err = &schemas.InternalInvariantViolation{Detail: detail, Line: n.Line()}
	}
}

// -- Statements --

func (w *walker) exec(n *ast.Node) {
	if n == nil || w.stopped() || !w.enter(n) {
		return
	}
	defer w.leave()

	switch n.Kind {
	case ast.KindModule, ast.KindBlock:
		for _, c := range n.Children {
			w.exec(c)
		}
	case ast.KindAssign:
		w.assign(n)
	case ast.KindIf:
		w.branch(n)
	case ast.KindSwitch:
		w.switchStmt(n)
	case ast.KindLoop:
		w.loop(n)
	case ast.KindFunction:
		w.function(n)
	case ast.KindCase:
		w.exec(n.Body())
	case ast.KindError:
		w.warn(n, "syntax error in region, subtree skipped")
	default:
		w.eval(n)
	}
}

func (w *walker) join(other *Env, at *ast.Node) {
	if err := w.env.Join(other); err != nil {
		w.invariant(at, err.Error())
	}
}

// branch runs each arm on its own copy of the environment and joins them.
// A missing else arm is the unchanged entry state.
func (w *walker) branch(n *ast.Node) {
	w.eval(n.Child(0))
	entry := w.env
	w.env = entry.Clone()
	w.exec(n.Child(1))
	then := w.env

	w.env = entry
	if alt := n.Child(2); alt != nil {
		w.exec(alt)
	}
	w.join(then, n)
}

func (w *walker) switchStmt(n *ast.Node) {
	w.eval(n.Child(0))
	if len(n.Children) < 2 {
		return
	}
	entry := w.env
	var arms []*Env
	exhaustive := false
	for _, c := range n.Children[1:] {
		if c.Kind != ast.KindCase {
			continue
		}
		if c.Text == "default" {
			exhaustive = true
		}
		w.env = entry.Clone()
		w.exec(c.Body())
		arms = append(arms, w.env)
	}

	w.env = entry
	if exhaustive && len(arms) > 0 {
		w.env, arms = arms[0], arms[1:]
	}
	for _, arm := range arms {
		w.join(arm, n)
	}
}

// loop analyzes the body once and joins the result with the state before
// the loop, which stands for zero iterations.
func (w *walker) loop(n *ast.Node) {
	skip := w.env.Clone()
	last := len(n.Children) - 1
	for i, c := range n.Children {
		if i < last && c.Kind == ast.KindAssign {
			w.assign(c)
			continue
		}
		w.exec(c)
	}
	w.join(skip, n)
}

// function analyzes a nested body in a fresh scope. Parameters shadow outer
// names; those matching a source rule start tainted.
func (w *walker) function(n *ast.Node) {
	w.env.Push()
	for _, p := range n.Params() {
		if p.Kind != ast.KindParam || p.Text == "" {
			continue
		}
		v := w.eval(p.Child(0))
		if m, ok := w.reg.MatchParam(w.lang, p); ok {
			v = v.Union(Fresh(m.Spec, p.Text, p.Line(), p.Span.Column))
		}
		w.env.Set(p.Text, v)
	}
	w.exec(n.Body())
	if err := w.env.Pop(); err != nil {
		w.invariant(n, err.Error())
	}
}

// -- Assignment --

func (w *walker) assign(n *ast.Node) Value {
	target, value := n.Child(0), n.Child(1)
	if target == nil {
		return w.eval(value)
	}

	plain := n.Op == "=" || n.Op == ":=" || n.Op == ""
	if plain && target.Kind == ast.KindTuple && value != nil && value.Kind == ast.KindTuple &&
		len(target.Children) == len(value.Children) {
		var all Value
		for i, t := range target.Children {
			all = all.Union(w.flow(n, t, value.Children[i], w.eval(value.Children[i])))
		}
		return all
	}

	v := w.eval(value)
	switch {
	case plain:
	case n.Op == "in" || n.Op == "of" || n.Op == "range":
		v = v.Extend(Step{Line: n.Line(), Kind: StepIterate, Detail: ast.Path(value)}, false)
	default:
		// Augmented assignment keeps what the target already held.
		v = w.eval(target).Union(v).Extend(Step{Line: n.Line(), Kind: StepConcat, Detail: n.Op}, true)
	}
	return w.flow(n, target, value, v)
}

// flow records the assignment step, checks property sinks and binds.
func (w *walker) flow(n, target, value *ast.Node, v Value) Value {
	if v.Tainted() {
		v = v.Extend(Step{Line: n.Line(), Kind: StepAssign, Detail: ast.Path(target)}, false)
	}
	if m, ok := w.reg.MatchTarget(w.lang, target); ok {
		if l, tainted := v.FirstFor(m.Category); tainted {
			w.hit(m, target, value, l)
		}
	}
	w.bind(target, v)
	return v
}

func (w *walker) bind(target *ast.Node, v Value) {
	switch target.Kind {
	case ast.KindIdentifier:
		w.env.Set(target.Text, v)
	case ast.KindAttribute:
		if p := ast.Path(target); bindable(p) {
			w.env.Set(p, v)
		}
	case ast.KindSubscript:
		// Writing one element taints the container without clearing it.
		w.eval(target.Child(1))
		if p := ast.Path(target); bindable(p) {
			cur, _ := w.env.Get(p)
			w.env.Set(p, cur.Union(v))
		}
	case ast.KindTuple:
		for _, c := range target.Children {
			w.bind(c, v)
		}
	default:
		// Destructuring patterns: every name bound by the pattern receives
		// the whole value.
		ast.Walk(target, func(c *ast.Node) bool {
			if c.Kind == ast.KindIdentifier {
				w.env.Set(c.Text, v)
				return false
			}
			return true
		})
	}
}

func bindable(path string) bool {
	return path != "" && !strings.Contains(path, "?")
}

// -- Expressions --

func (w *walker) eval(n *ast.Node) Value {
	if n == nil || w.stopped() || !w.enter(n) {
		return Value{}
	}
	defer w.leave()

	switch n.Kind {
	case ast.KindIdentifier:
		if v, ok := w.env.Get(n.Text); ok {
			return v
		}
		if m, ok := w.reg.MatchAttribute(w.lang, n); ok {
			return Fresh(m.Spec, m.Binding, n.Line(), n.Span.Column)
		}
		return Value{}
	case ast.KindAttribute:
		return w.attribute(n)
	case ast.KindSubscript:
		obj := w.eval(n.Child(0))
		w.eval(n.Child(1))
		return obj
	case ast.KindCall:
		return w.call(n)
	case ast.KindKeywordArg:
		return w.eval(n.Child(0))
	case ast.KindBinaryOp:
		v := w.eval(n.Child(0)).Union(w.eval(n.Child(1)))
		return v.Extend(Step{Line: n.Line(), Kind: StepConcat, Detail: n.Op}, true)
	case ast.KindCompare:
		for _, c := range n.Children {
			w.eval(c)
		}
		return Value{}
	case ast.KindString:
		var v Value
		for _, c := range n.Children {
			v = v.Union(w.eval(c))
		}
		return v.Extend(Step{Line: n.Line(), Kind: StepInterpolate}, true)
	case ast.KindLiteral:
		return Value{}
	case ast.KindAssign:
		return w.assign(n)
	case ast.KindFunction:
		w.function(n)
		return Value{}
	case ast.KindError:
		w.warn(n, "syntax error in region, subtree skipped")
		return Value{}
	case ast.KindModule, ast.KindBlock, ast.KindIf, ast.KindSwitch, ast.KindLoop:
		w.exec(n)
		return Value{}
	}

	// Returns, tuples, containers and unrecognized expressions carry the
	// union of their parts.
	var v Value
	for _, c := range n.Children {
		v = v.Union(w.eval(c))
	}
	return v
}

func (w *walker) attribute(n *ast.Node) Value {
	path := ast.Path(n)
	if bindable(path) {
		if v, ok := w.env.Get(path); ok {
			return v
		}
	}
	if m, ok := w.reg.MatchAttribute(w.lang, n); ok {
		return Fresh(m.Spec, m.Binding, n.Line(), n.Span.Column)
	}
	// Reading a field of a tainted object yields tainted data.
	return w.eval(n.Child(0))
}

// call evaluates arguments first, then consults the rules. Precedence after
// the sink check is sanitizer, source, pass-through; any other call returns
// a clean value. A sanitizer without a category returns a clean value; one
// with a category returns the input cleared for that category only.
func (w *walker) call(n *ast.Node) Value {
	var recv Value
	switch callee := n.Callee(); {
	case callee == nil, callee.Kind == ast.KindIdentifier:
	case callee.Kind == ast.KindAttribute:
		recv = w.eval(callee.Child(0))
	default:
		recv = w.eval(callee)
	}

	args := n.Args()
	vals := make([]Value, len(args))
	for i, a := range args {
		vals[i] = w.eval(a)
	}

	if m, ok := w.reg.MatchCall(w.lang, patterns.RoleSink, n); ok {
		nodes, picked := pick(m.Spec.Args, args, vals)
		for i, v := range picked {
			if l, tainted := v.FirstFor(m.Category); tainted {
				w.hit(m, n, nodes[i], l)
				break
			}
		}
	}

	if m, ok := w.reg.MatchCall(w.lang, patterns.RoleSanitizer, n); ok {
		in := recv.Union(UnionAll(vals...))
		if !in.Tainted() {
			return Value{}
		}
		w.res.Sanitizations = append(w.res.Sanitizations, Sanitization{Rule: m.Spec, Call: n, Category: m.Category, Cleared: in.Labels})
		w.logger.Debug("Sanitizer cleared taint.",
			zap.String("rule", m.Spec.ID),
			zap.String("category", string(m.Category)),
			zap.Int("line", n.Line()),
			zap.Int("labels", len(in.Labels)),
		)
		return in.Sanitize(m.Category).Extend(Step{Line: n.Line(), Kind: StepSanitize, Detail: m.Binding}, false)
	}
	if m, ok := w.reg.MatchCall(w.lang, patterns.RoleSource, n); ok {
		return Fresh(m.Spec, m.Binding, n.Line(), n.Span.Column)
	}
	if m, ok := w.reg.MatchCall(w.lang, patterns.RolePassthrough, n); ok {
		_, picked := pick(m.Spec.Args, args, vals)
		v := recv.Union(UnionAll(picked...))
		return v.Extend(Step{Line: n.Line(), Kind: StepCall, Detail: m.Binding}, true)
	}
	return Value{}
}

// pick selects the arguments a rule applies to. An empty index list selects
// every argument, keyword arguments included; indexes count positional
// arguments only.
func pick(idx []int, args []*ast.Node, vals []Value) ([]*ast.Node, []Value) {
	if len(idx) == 0 {
		return args, vals
	}
	var positional []int
	for i, a := range args {
		if a.Kind != ast.KindKeywordArg {
			positional = append(positional, i)
		}
	}
	var nodes []*ast.Node
	var out []Value
	for _, p := range idx {
		if p < len(positional) {
			nodes = append(nodes, args[positional[p]])
			out = append(out, vals[positional[p]])
		}
	}
	return nodes, out
}

func (w *walker) hit(m patterns.MatchResult, sink, arg *ast.Node, l Label) {
	key := hitKey{sink: sink, rule: m.Spec.ID}
	if w.seen[key] {
		return
	}
	w.seen[key] = true
	w.res.Hits = append(w.res.Hits, SinkHit{Rule: m.Spec, Binding: m.Binding, Sink: sink, Arg: arg, Label: l})
	w.logger.Debug("Tainted value reached sink.",
		zap.String("rule", m.Spec.ID),
		zap.String("source", l.Binding),
		zap.Int("source_line", l.Line),
		zap.Int("sink_line", sink.Line()),
	)
}

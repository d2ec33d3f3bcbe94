// Package taint implements the flow sensitive, intraprocedural propagation
// engine. It walks the normalized tree of one file in program order, keeps a
// scoped environment of tainted bindings and reports every sink reached by
// attacker controlled data.
package taint

import (
	"fmt"
	"slices"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/patterns"
)

// StepKind names the operation a propagation step records.
type StepKind string

const (
	StepAssign      StepKind = "assign"
	StepConcat      StepKind = "concat"
	StepInterpolate StepKind = "interpolate"
	StepCall        StepKind = "call"
	StepIterate     StepKind = "iterate"
	StepSanitize    StepKind = "sanitize"
)

// Step is one hop between a source and a sink.
type Step struct {
	Line   int
	Kind   StepKind
	Detail string
}

// Label identifies one flow of untrusted data: where it entered and how it
// travelled since. Labels are values; extending one returns a copy.
type Label struct {
	Rule    *patterns.Spec
	Binding string // The text that matched the source rule.
	Line    int
	Column  int
	Steps   []Step
	// Transforms counts string operations applied since the source.
	Transforms int
	// Cleared lists, sorted, the categories a sanitizer made this flow safe
	// for.
	Cleared []schemas.Category
}

// Reaches reports whether the flow is dangerous for sinks of category c:
// the source is not restricted to another category and no sanitizer cleared
// c.
func (l Label) Reaches(c schemas.Category) bool {
	if l.Rule != nil && l.Rule.Category != "" && l.Rule.Category != c {
		return false
	}
	_, cleared := slices.BinarySearch(l.Cleared, c)
	return !cleared
}

func (l Label) clear(c schemas.Category) Label {
	i, found := slices.BinarySearch(l.Cleared, c)
	if found {
		return l
	}
	out := l
	out.Cleared = slices.Insert(slices.Clone(l.Cleared), i, c)
	return out
}

// intersect keeps only the categories cleared on both paths.
func intersect(a, b []schemas.Category) []schemas.Category {
	var out []schemas.Category
	for _, c := range a {
		if _, ok := slices.BinarySearch(b, c); ok {
			out = append(out, c)
		}
	}
	return out
}

// Origin is the identity of the source a label came from. Labels with the
// same origin are merged at join points.
func (l Label) Origin() string {
	id := ""
	if l.Rule != nil {
		id = l.Rule.ID
	}
	return fmt.Sprintf("%s@%d:%d", id, l.Line, l.Column)
}

// LastLine is the line of the most recent hop, the source line when no step
// was recorded.
func (l Label) LastLine() int {
	if n := len(l.Steps); n > 0 {
		return l.Steps[n-1].Line
	}
	return l.Line
}

func (l Label) extend(s Step, transform bool) Label {
	out := l
	if transform {
		out.Transforms++
	}
	if s.Line == 0 || s.Line == l.LastLine() {
		return out
	}
	out.Steps = make([]Step, len(l.Steps), len(l.Steps)+1)
	copy(out.Steps, l.Steps)
	out.Steps = append(out.Steps, s)
	return out
}

// Value is the taint carried by an expression or binding. The zero Value is
// clean.
type Value struct {
	Labels []Label
}

// Tainted reports whether any label is present.
func (v Value) Tainted() bool { return len(v.Labels) > 0 }

// First returns the earliest label, used to describe a sink hit.
func (v Value) First() (Label, bool) {
	if len(v.Labels) == 0 {
		return Label{}, false
	}
	return v.Labels[0], true
}

// FirstFor returns the earliest label still dangerous for category c.
func (v Value) FirstFor(c schemas.Category) (Label, bool) {
	for _, l := range v.Labels {
		if l.Reaches(c) {
			return l, true
		}
	}
	return Label{}, false
}

// Sanitize clears category c on every label. An empty category clears the
// value entirely.
func (v Value) Sanitize(c schemas.Category) Value {
	if c == "" || !v.Tainted() {
		return Value{}
	}
	out := make([]Label, len(v.Labels))
	for i, l := range v.Labels {
		out[i] = l.clear(c)
	}
	return Value{Labels: out}
}

// Fresh starts a new flow at a source.
func Fresh(rule *patterns.Spec, binding string, line, column int) Value {
	return Value{Labels: []Label{{Rule: rule, Binding: binding, Line: line, Column: column}}}
}

// Union merges two values. Labels keep their order of first appearance. A
// label whose origin is already present is folded into it: the first path
// is kept and only categories cleared on both remain cleared.
func (v Value) Union(o Value) Value {
	switch {
	case !o.Tainted():
		return v
	case !v.Tainted():
		return o
	}
	index := make(map[string]int, len(v.Labels)+len(o.Labels))
	out := make([]Label, 0, len(v.Labels)+len(o.Labels))
	for _, set := range [][]Label{v.Labels, o.Labels} {
		for _, l := range set {
			key := l.Origin()
			if i, ok := index[key]; ok {
				out[i].Cleared = intersect(out[i].Cleared, l.Cleared)
				continue
			}
			index[key] = len(out)
			out = append(out, l)
		}
	}
	return Value{Labels: out}
}

// Extend records a step on every label.
func (v Value) Extend(s Step, transform bool) Value {
	if !v.Tainted() {
		return v
	}
	out := make([]Label, len(v.Labels))
	for i, l := range v.Labels {
		out[i] = l.extend(s, transform)
	}
	return Value{Labels: out}
}

// UnionAll folds Union over values.
func UnionAll(vs ...Value) Value {
	var out Value
	for _, v := range vs {
		out = out.Union(v)
	}
	return out
}

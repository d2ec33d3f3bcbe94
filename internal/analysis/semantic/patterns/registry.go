package patterns

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/ast"
)

// MatchResult describes a node that matched a rule. Binding is the dotted
// path that satisfied the predicate.
type MatchResult struct {
	Spec     *Spec
	Role     Role
	Category schemas.Category
	Binding  string
}

type compiled struct {
	spec    *Spec
	pattern namePattern
}

// Registry is an immutable, validated rule set. It is safe for concurrent
// use by any number of analysis tasks.
type Registry struct {
	specs []*Spec
	// index[language][role] in declaration order.
	index map[schemas.Language]map[Role][]compiled
}

// New validates specs and builds a registry. source names the origin of the
// rules in errors.
func New(source string, specs ...Spec) (*Registry, error) {
	r := &Registry{index: make(map[schemas.Language]map[Role][]compiled)}
	seen := make(map[string]bool, len(specs))

	for i := range specs {
		s := specs[i]
		if err := s.validate(); err != nil {
			return nil, &schemas.PatternRegistryError{Source: source, RuleID: s.ID, Err: err}
		}
		if seen[s.ID] {
			return nil, &schemas.PatternRegistryError{Source: source, RuleID: s.ID, Err: fmt.Errorf("duplicate rule id")}
		}
		seen[s.ID] = true

		c := compiled{spec: &s}
		switch {
		case s.Callee != "", s.Attribute != "", s.Property != "":
			_, raw := s.Predicate()
			c.pattern, _ = compileName(raw)
		}
		r.specs = append(r.specs, c.spec)
		for _, l := range s.Languages {
			byRole, ok := r.index[l]
			if !ok {
				byRole = make(map[Role][]compiled)
				r.index[l] = byRole
			}
			byRole[s.Role] = append(byRole[s.Role], c)
		}
	}
	return r, nil
}

// Specs returns the rules sorted by id.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len is the number of rules.
func (r *Registry) Len() int { return len(r.specs) }

// Lookup finds a rule by id.
func (r *Registry) Lookup(id string) (*Spec, bool) {
	for _, s := range r.specs {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

func (r *Registry) rules(l schemas.Language, role Role) []compiled {
	if r == nil {
		return nil
	}
	return r.index[l][role]
}

func result(c compiled, binding string) MatchResult {
	return MatchResult{Spec: c.spec, Role: c.spec.Role, Category: c.spec.Category, Binding: binding}
}

// Match classifies a node against every rule for the language. Calls are
// tried as sanitizer, source, sink, then pass-through; attributes as
// sources; parameters as sources; assignments to properties as sinks.
func (r *Registry) Match(l schemas.Language, n *ast.Node) (MatchResult, bool) {
	if n == nil {
		return MatchResult{}, false
	}
	switch n.Kind {
	case ast.KindCall:
		for _, role := range []Role{RoleSanitizer, RoleSource, RoleSink, RolePassthrough} {
			if m, ok := r.MatchCall(l, role, n); ok {
				return m, true
			}
		}
	case ast.KindAttribute:
		return r.MatchAttribute(l, n)
	case ast.KindParam:
		return r.MatchParam(l, n)
	case ast.KindAssign:
		return r.MatchTarget(l, n.Child(0))
	}
	return MatchResult{}, false
}

// MatchCall matches a call's callee path against rules of one role,
// honoring keyword constraints.
func (r *Registry) MatchCall(l schemas.Language, role Role, call *ast.Node) (MatchResult, bool) {
	if call == nil || call.Kind != ast.KindCall {
		return MatchResult{}, false
	}
	path := ast.Path(call.Callee())
	if path == "" {
		return MatchResult{}, false
	}
	for _, c := range r.rules(l, role) {
		if c.spec.Callee == "" || !c.pattern.match(path) {
			continue
		}
		if !keywordsSatisfied(c.spec, call) {
			continue
		}
		return result(c, path), true
	}
	return MatchResult{}, false
}

// MatchAttribute matches a member access chain, or any of its prefixes,
// against attribute sources.
func (r *Registry) MatchAttribute(l schemas.Language, n *ast.Node) (MatchResult, bool) {
	if n == nil || (n.Kind != ast.KindAttribute && n.Kind != ast.KindIdentifier) {
		return MatchResult{}, false
	}
	path := ast.Path(n)
	for _, c := range r.rules(l, RoleSource) {
		if c.spec.Attribute == "" {
			continue
		}
		if bound, ok := c.pattern.matchPrefixes(path); ok {
			return result(c, bound), true
		}
	}
	return MatchResult{}, false
}

// MatchParam matches a function parameter by name or declared type.
func (r *Registry) MatchParam(l schemas.Language, p *ast.Node) (MatchResult, bool) {
	if p == nil || p.Kind != ast.KindParam || p.Text == "" {
		return MatchResult{}, false
	}
	for _, c := range r.rules(l, RoleSource) {
		switch {
		case c.spec.Parameter != "" && c.spec.Parameter == p.Text:
			return result(c, p.Text), true
		case c.spec.ParameterType != "" && normalizeType(p.Annotation) == normalizeType(c.spec.ParameterType):
			return result(c, p.Text), true
		}
	}
	return MatchResult{}, false
}

// MatchTarget matches the target of an assignment against property sinks
// such as element.innerHTML.
func (r *Registry) MatchTarget(l schemas.Language, target *ast.Node) (MatchResult, bool) {
	if target == nil || target.Kind != ast.KindAttribute {
		return MatchResult{}, false
	}
	path := ast.Path(target)
	for _, c := range r.rules(l, RoleSink) {
		if c.spec.Property != "" && c.pattern.match(path) {
			return result(c, path), true
		}
	}
	return MatchResult{}, false
}

// Candidates counts the nodes of a tree matching each role.
type Candidates struct {
	Sources      int
	Sinks        int
	Sanitizers   int
	Passthroughs int
}

// Total is the number of matched nodes.
func (c Candidates) Total() int {
	return c.Sources + c.Sinks + c.Sanitizers + c.Passthroughs
}

// Candidates enumerates rule matches under root. Calls are counted once per
// role they match, so a call can be both a sink and a source.
func (r *Registry) Candidates(l schemas.Language, root *ast.Node) Candidates {
	var out Candidates
	count := func(role Role) {
		switch role {
		case RoleSource:
			out.Sources++
		case RoleSink:
			out.Sinks++
		case RoleSanitizer:
			out.Sanitizers++
		case RolePassthrough:
			out.Passthroughs++
		}
	}
	pred := ast.OfKind(ast.KindCall, ast.KindAttribute, ast.KindParam, ast.KindAssign)
	for n := range ast.Query(root, pred) {
		if n.Kind == ast.KindCall {
			for _, role := range []Role{RoleSanitizer, RoleSource, RoleSink, RolePassthrough} {
				if _, ok := r.MatchCall(l, role, n); ok {
					count(role)
				}
			}
			continue
		}
		if m, ok := r.Match(l, n); ok {
			count(m.Role)
		}
	}
	return out
}

func keywordsSatisfied(s *Spec, call *ast.Node) bool {
	for name, want := range s.Keywords {
		v, ok := call.Keyword(name)
		if !ok || ast.LiteralText(v) != want {
			return false
		}
	}
	for name, safe := range s.UnlessKeywords {
		v, ok := call.Keyword(name)
		if !ok {
			continue
		}
		got := ast.LiteralText(v)
		for _, sv := range safe {
			if got == sv {
				return false
			}
		}
	}
	return true
}

func normalizeType(t string) string {
	return strings.Join(strings.Fields(t), "")
}

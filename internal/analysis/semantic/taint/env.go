package taint

import (
	"errors"
	"sort"
	"strings"
)

var (
	errScopeUnderflow = errors.New("scope stack underflow")
	errScopeMismatch  = errors.New("joined environments have different scope depths")
)

type scope struct {
	vars map[string]Value
}

// Env is the scope stack of tainted bindings. Reads fall through to
// enclosing scopes; writes always go to the innermost one, where a clean
// value shadows any outer binding of the same name.
type Env struct {
	scopes []*scope
}

// NewEnv returns an environment holding only the module scope.
func NewEnv() *Env {
	return &Env{scopes: []*scope{{vars: map[string]Value{}}}}
}

// Depth is the number of open scopes.
func (e *Env) Depth() int { return len(e.scopes) }

// Push opens a scope for a function body.
func (e *Env) Push() {
	e.scopes = append(e.scopes, &scope{vars: map[string]Value{}})
}

// Pop closes the innermost scope. The module scope cannot be popped.
func (e *Env) Pop() error {
	if len(e.scopes) <= 1 {
		return errScopeUnderflow
	}
	e.scopes[len(e.scopes)-1] = nil
	e.scopes = e.scopes[:len(e.scopes)-1]
	return nil
}

// Get resolves a name from the innermost scope outwards.
func (e *Env) Get(name string) (Value, bool) {
	return e.lookupFrom(len(e.scopes)-1, name)
}

func (e *Env) lookupFrom(i int, name string) (Value, bool) {
	for ; i >= 0; i-- {
		if v, ok := e.scopes[i].vars[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// Set binds name in the innermost scope, replacing any previous value.
// Member bindings below name ("name.field") are dropped with it.
func (e *Env) Set(name string, v Value) {
	top := e.scopes[len(e.scopes)-1]
	if !strings.Contains(name, ".") {
		prefix := name + "."
		for k := range top.vars {
			if strings.HasPrefix(k, prefix) {
				delete(top.vars, k)
			}
		}
	}
	if !v.Tainted() && len(e.scopes) == 1 {
		delete(top.vars, name)
		return
	}
	top.vars[name] = v
}

// Clone copies the environment. Values are immutable, so only the maps are
// duplicated.
func (e *Env) Clone() *Env {
	out := &Env{scopes: make([]*scope, len(e.scopes))}
	for i, s := range e.scopes {
		vars := make(map[string]Value, len(s.vars))
		for k, v := range s.vars {
			vars[k] = v
		}
		out.scopes[i] = &scope{vars: vars}
	}
	return out
}

// Join merges another environment reached by a different control flow path
// into e. A binding is tainted afterwards if it was tainted on either path.
func (e *Env) Join(o *Env) error {
	if len(e.scopes) != len(o.scopes) {
		return errScopeMismatch
	}
	for i := range e.scopes {
		names := make(map[string]struct{}, len(e.scopes[i].vars)+len(o.scopes[i].vars))
		for k := range e.scopes[i].vars {
			names[k] = struct{}{}
		}
		for k := range o.scopes[i].vars {
			names[k] = struct{}{}
		}
		for name := range names {
			a, _ := e.lookupFrom(i, name)
			b, _ := o.lookupFrom(i, name)
			merged := a.Union(b)
			if !merged.Tainted() && i == 0 {
				delete(e.scopes[i].vars, name)
				continue
			}
			e.scopes[i].vars[name] = merged
		}
	}
	return nil
}

// Names lists the tainted bindings visible from the innermost scope, sorted.
func (e *Env) Names() []string {
	seen := map[string]bool{}
	var out []string
	for i := len(e.scopes) - 1; i >= 0; i-- {
		for k, v := range e.scopes[i].vars {
			if seen[k] {
				continue
			}
			seen[k] = true
			if v.Tainted() {
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

package patterns

import (
	"fmt"
	"strings"
)

type nameMatch int

const (
	matchExact nameMatch = iota
	matchSuffix
	matchPrefix
)

// namePattern matches dotted paths. Supported shapes are an exact name
// ("os.system"), a receiver wildcard ("*.execute") and a member wildcard
// ("request.*").
type namePattern struct {
	raw   string
	kind  nameMatch
	value string
}

func compileName(raw string) (namePattern, error) {
	switch {
	case raw == "" || raw == "*" || raw == "*.*":
		return namePattern{}, fmt.Errorf("pattern %q matches nothing useful", raw)
	case strings.HasPrefix(raw, "*."):
		rest := raw[1:]
		if strings.Contains(rest, "*") {
			return namePattern{}, fmt.Errorf("pattern %q: only one wildcard allowed", raw)
		}
		return namePattern{raw: raw, kind: matchSuffix, value: rest}, nil
	case strings.HasSuffix(raw, ".*"):
		rest := raw[:len(raw)-1]
		if strings.Contains(rest, "*") {
			return namePattern{}, fmt.Errorf("pattern %q: only one wildcard allowed", raw)
		}
		return namePattern{raw: raw, kind: matchPrefix, value: rest}, nil
	case strings.Contains(raw, "*"):
		return namePattern{}, fmt.Errorf("pattern %q: wildcards must lead (*.name) or trail (name.*)", raw)
	}
	return namePattern{raw: raw, kind: matchExact, value: raw}, nil
}

func (p namePattern) match(path string) bool {
	if path == "" {
		return false
	}
	switch p.kind {
	case matchSuffix:
		return strings.HasSuffix(path, p.value) && len(path) > len(p.value)
	case matchPrefix:
		return strings.HasPrefix(path, p.value) && len(path) > len(p.value)
	}
	return path == p.value
}

// matchPrefixes tries path and each of its dotted prefixes, longest first,
// and returns the one that matched. req.query.cmd is matched by a rule for
// req.query.
func (p namePattern) matchPrefixes(path string) (string, bool) {
	for cur := path; cur != ""; {
		if p.match(cur) {
			return cur, true
		}
		i := strings.LastIndexByte(cur, '.')
		if i < 0 {
			break
		}
		cur = cur[:i]
	}
	return "", false
}

// internal/discovery/scope.go
package discovery

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Scope decides which paths under a scan root take part in the scan.
type Scope struct {
	exclude []string
}

// NewScope validates the exclude patterns. A pattern uses filepath.Match
// syntax and is tried against both the base name and the slash separated
// path relative to the scan root, so "vendor" and "internal/gen/*" both work.
func NewScope(exclude []string) (*Scope, error) {
	for _, p := range exclude {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
	}
	return &Scope{exclude: append([]string(nil), exclude...)}, nil
}

// InScope reports whether rel (relative to the scan root) should be visited.
func (s *Scope) InScope(rel string) bool {
	if s == nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	base := path.Base(rel)
	for _, p := range s.exclude {
		if ok, _ := path.Match(p, base); ok {
			return false
		}
		if ok, _ := path.Match(p, rel); ok {
			return false
		}
		// A bare directory name excludes everything beneath it.
		if !strings.ContainsAny(p, "*?[") && (strings.HasPrefix(rel, p+"/") || strings.Contains(rel, "/"+p+"/")) {
			return false
		}
	}
	return true
}

// Package patterns holds the declarative source, sink, sanitizer and
// pass-through rules the taint engine consults. Rules are plain data loaded
// from YAML; adding one never requires touching the engine.
package patterns

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/taintscan/api/schemas"
)

// Role is what a rule does to taint.
type Role string

const (
	RoleSource      Role = "source"
	RoleSink        Role = "sink"
	RoleSanitizer   Role = "sanitizer"
	RolePassthrough Role = "passthrough"
)

// Spec is a single rule. Exactly one of Callee, Attribute, Property,
// Parameter or ParameterType is set.
type Spec struct {
	ID        string             `yaml:"id" json:"id"`
	Languages []schemas.Language `yaml:"languages" json:"languages"`
	Role      Role               `yaml:"role" json:"role"`
	Category  schemas.Category   `yaml:"category,omitempty" json:"category,omitempty"`
	// SourceKind labels the kind of untrusted input a source produces
	// (http_request, user_input, environment, ...).
	SourceKind string `yaml:"source_kind,omitempty" json:"source_kind,omitempty"`

	Callee        string `yaml:"callee,omitempty" json:"callee,omitempty"`
	Attribute     string `yaml:"attribute,omitempty" json:"attribute,omitempty"`
	Property      string `yaml:"property,omitempty" json:"property,omitempty"`
	Parameter     string `yaml:"parameter,omitempty" json:"parameter,omitempty"`
	ParameterType string `yaml:"parameter_type,omitempty" json:"parameter_type,omitempty"`

	// Args restricts sinks and pass-throughs to positional arguments.
	// Empty means every argument.
	Args []int `yaml:"args,omitempty" json:"args,omitempty"`
	// Keywords must all be present with these literal values.
	Keywords map[string]string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	// UnlessKeywords disables the rule when a keyword carries one of the
	// listed values (yaml.load with Loader=SafeLoader).
	UnlessKeywords map[string][]string `yaml:"unless_keywords,omitempty" json:"unless_keywords,omitempty"`

	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Remediation string `yaml:"remediation,omitempty" json:"remediation,omitempty"`
}

// File is the on-disk rule document.
type File struct {
	Version int    `yaml:"version" json:"version"`
	Rules   []Spec `yaml:"rules" json:"rules"`
}

// Predicate returns the structural predicate kind and its pattern.
func (s *Spec) Predicate() (string, string) {
	switch {
	case s.Callee != "":
		return "callee", s.Callee
	case s.Attribute != "":
		return "attribute", s.Attribute
	case s.Property != "":
		return "property", s.Property
	case s.Parameter != "":
		return "parameter", s.Parameter
	case s.ParameterType != "":
		return "parameter_type", s.ParameterType
	}
	return "", ""
}

// Label is a short human readable name for the matched construct.
func (s *Spec) Label() string {
	if s.Description != "" {
		return s.Description
	}
	_, p := s.Predicate()
	return p
}

func (s *Spec) appliesTo(l schemas.Language) bool {
	for _, sl := range s.Languages {
		if sl == l {
			return true
		}
	}
	return false
}

var ruleLanguages = map[schemas.Language]bool{
	schemas.LanguagePython:     true,
	schemas.LanguageJavaScript: true,
	schemas.LanguageGo:         true,
}

// validate enforces what the JSON schema cannot express.
func (s *Spec) validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("missing id")
	}
	if len(s.Languages) == 0 {
		return fmt.Errorf("no languages")
	}
	for _, l := range s.Languages {
		if !ruleLanguages[l] {
			return fmt.Errorf("unsupported language %q", l)
		}
	}

	predicates := 0
	for _, p := range []string{s.Callee, s.Attribute, s.Property, s.Parameter, s.ParameterType} {
		if p != "" {
			predicates++
		}
	}
	if predicates != 1 {
		return fmt.Errorf("exactly one of callee, attribute, property, parameter, parameter_type is required (got %d)", predicates)
	}

	switch s.Role {
	case RoleSource:
		if s.Property != "" {
			return fmt.Errorf("property predicates are only valid for sinks")
		}
	case RoleSink:
		if !s.Category.Valid() {
			return fmt.Errorf("sink requires a known category, got %q", s.Category)
		}
		if s.Attribute != "" || s.Parameter != "" || s.ParameterType != "" {
			return fmt.Errorf("sinks match callee or property only")
		}
	case RoleSanitizer, RolePassthrough:
		if s.Callee == "" {
			return fmt.Errorf("%s rules match callee only", s.Role)
		}
	default:
		return fmt.Errorf("unknown role %q", s.Role)
	}
	if s.Category != "" && !s.Category.Valid() {
		return fmt.Errorf("unknown category %q", s.Category)
	}

	for _, a := range s.Args {
		if a < 0 {
			return fmt.Errorf("negative argument index %d", a)
		}
	}
	_, pattern := s.Predicate()
	if s.Parameter == "" && s.ParameterType == "" {
		if _, err := compileName(pattern); err != nil {
			return err
		}
	}
	return nil
}

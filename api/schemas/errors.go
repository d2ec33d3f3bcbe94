package schemas

import (
	"errors"
	"fmt"
	"time"
)

// -- Error Taxonomy --

// ParseError reports source that the language adapter could not turn into a
// usable tree. It is recoverable: the file is skipped by the semantic pass.
type ParseError struct {
	File     string
	Language Language
	Line     int // First line with a syntax error, 0 when unknown.
	Column   int
	Err      error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s (%s): syntax error at %d:%d: %v", e.File, e.Language, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("parse %s (%s): %v", e.File, e.Language, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PatternRegistryError reports a malformed rule definition. It is fatal at
// startup.
type PatternRegistryError struct {
	Source string // File name or "builtin:<name>".
	RuleID string // Offending rule, empty for document level failures.
	Err    error
}

func (e *PatternRegistryError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("pattern registry %s: rule %q: %v", e.Source, e.RuleID, e.Err)
	}
	return fmt.Sprintf("pattern registry %s: %v", e.Source, e.Err)
}

func (e *PatternRegistryError) Unwrap() error { return e.Err }

// AnalysisTimeout reports a file whose analysis exceeded its budget. The
// file's semantic findings are dropped.
type AnalysisTimeout struct {
	File    string
	Timeout time.Duration
}

func (e *AnalysisTimeout) Error() string {
	return fmt.Sprintf("analysis of %s exceeded %s", e.File, e.Timeout)
}

// InternalInvariantViolation reports a broken internal assumption, such as a
// scope stack underflow or a recovered panic. The file's semantic pass is
// abandoned; the scan continues.
type InternalInvariantViolation struct {
	File   string
	Detail string
	Line   int
}

func (e *InternalInvariantViolation) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("internal invariant violated in %s at line %d: %s", e.File, e.Line, e.Detail)
	}
	return fmt.Sprintf("internal invariant violated in %s: %s", e.File, e.Detail)
}

// ErrUnsupportedLanguage is returned when no adapter handles a file.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// WarningKind classifies a recorded partial failure.
type WarningKind string

const (
	WarningParseError     WarningKind = "parse_error"
	WarningTimeout        WarningKind = "timeout"
	WarningInvariant      WarningKind = "invariant_violation"
	WarningDetectorFailed WarningKind = "detector_failed"
	WarningSkipped        WarningKind = "skipped"

	// WarningPartial marks a file analyzed with parts of its tree ignored
	// (error regions in tolerant mode, depth limit).
	WarningPartial WarningKind = "partial_analysis"
)

// ClassifyWarning maps an analysis error onto its warning kind.
func ClassifyWarning(err error) WarningKind {
	var (
		parseErr   *ParseError
		timeoutErr *AnalysisTimeout
		invErr     *InternalInvariantViolation
	)
	switch {
	case errors.As(err, &parseErr):
		return WarningParseError
	case errors.As(err, &timeoutErr):
		return WarningTimeout
	case errors.As(err, &invErr):
		return WarningInvariant
	case errors.Is(err, ErrUnsupportedLanguage):
		return WarningSkipped
	default:
		return WarningDetectorFailed
	}
}

package schemas_test

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/taintscan/api/schemas"
)

func TestErrorMessages(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "ParseError with position",
			err:  &schemas.ParseError{File: "a.py", Language: schemas.LanguagePython, Line: 2, Column: 5, Err: io.ErrUnexpectedEOF},
			want: "parse a.py (python): syntax error at 2:5: unexpected EOF",
		},
		{
			name: "ParseError without position",
			err:  &schemas.ParseError{File: "a.go", Language: schemas.LanguageGo, Err: io.EOF},
			want: "parse a.go (go): EOF",
		},
		{
			name: "PatternRegistryError for a rule",
			err:  &schemas.PatternRegistryError{Source: "rules.yaml", RuleID: "x", Err: errors.New("no predicate")},
			want: `pattern registry rules.yaml: rule "x": no predicate`,
		},
		{
			name: "PatternRegistryError for a document",
			err:  &schemas.PatternRegistryError{Source: "builtin:python.yaml", Err: errors.New("invalid yaml")},
			want: "pattern registry builtin:python.yaml: invalid yaml",
		},
		{
			name: "AnalysisTimeout",
			err:  &schemas.AnalysisTimeout{File: "big.js", Timeout: 2 * time.Second},
			want: "analysis of big.js exceeded 2s",
		},
		{
			name: "InternalInvariantViolation with line",
			err:  &schemas.InternalInvariantViolation{File: "a.py", Line: 7, Detail: "nil scope"},
			want: "internal invariant violated in a.py at line 7: nil scope",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestErrorsUnwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("root cause")

	wrapped := fmt.Errorf("loading: %w", &schemas.PatternRegistryError{Source: "r.yaml", Err: cause})
	var regErr *schemas.PatternRegistryError
	require.ErrorAs(t, wrapped, &regErr)
	assert.Equal(t, "r.yaml", regErr.Source)
	assert.ErrorIs(t, wrapped, cause)

	parse := fmt.Errorf("file: %w", &schemas.ParseError{File: "a.py", Err: cause})
	assert.ErrorIs(t, parse, cause)
}

func TestClassifyWarning(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		err  error
		want schemas.WarningKind
	}{
		{"parse", &schemas.ParseError{File: "a.py"}, schemas.WarningParseError},
		{"wrapped parse", fmt.Errorf("x: %w", &schemas.ParseError{File: "a.py"}), schemas.WarningParseError},
		{"timeout", &schemas.AnalysisTimeout{File: "a.py"}, schemas.WarningTimeout},
		{"invariant", &schemas.InternalInvariantViolation{File: "a.py"}, schemas.WarningInvariant},
		{"unsupported", fmt.Errorf("a.rb: %w", schemas.ErrUnsupportedLanguage), schemas.WarningSkipped},
		{"anything else", errors.New("regex engine crashed"), schemas.WarningDetectorFailed},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, schemas.ClassifyWarning(tc.err))
		})
	}
}

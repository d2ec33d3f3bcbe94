// Package semantic is the per-file driver of the AST taint analysis: it
// picks the language adapter, parses, checks the file for sink candidates,
// runs the propagation engine and turns sink hits into findings.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/lang"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/patterns"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/synth"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/taint"
)

// FileResult is the outcome of analyzing one file. Findings are in program
// order.
type FileResult struct {
	File       string
	Language   schemas.Language
	Findings   []schemas.Finding
	Warnings   []schemas.Warning
	Candidates patterns.Candidates
	// Sanitized counts sanitizer calls that cleared taint.
	Sanitized int
	// Skipped is set when the file was not analyzed: unsupported or
	// disabled language, or over the size limit.
	Skipped bool
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithTolerance analyzes files with syntax errors, skipping the broken
// regions, instead of rejecting them with a ParseError.
func WithTolerance(tolerant bool) Option {
	return func(a *Analyzer) { a.tolerant = tolerant }
}

// WithMaxDepth bounds expression nesting in the engine.
func WithMaxDepth(depth int) Option {
	return func(a *Analyzer) { a.maxDepth = depth }
}

// WithMaxFileSize skips files larger than n bytes. Zero disables the limit.
func WithMaxFileSize(n int64) Option {
	return func(a *Analyzer) { a.maxFileSize = n }
}

// WithLanguages restricts analysis to the given language tags. TypeScript
// and TSX follow the javascript tag unless listed on their own.
func WithLanguages(langs ...schemas.Language) Option {
	return func(a *Analyzer) {
		if len(langs) == 0 {
			a.languages = nil
			return
		}
		a.languages = make(map[schemas.Language]bool, len(langs))
		for _, l := range langs {
			a.languages[l] = true
		}
	}
}

// Analyzer runs the semantic pass. It keeps no per-file state; one instance
// serves every worker.
type Analyzer struct {
	rules  *patterns.Store
	logger *zap.Logger

	tolerant    bool
	maxDepth    int
	maxFileSize int64
	languages   map[schemas.Language]bool
}

// NewAnalyzer builds an analyzer reading rules from store, so a rule reload
// takes effect on the next file.
func NewAnalyzer(store *patterns.Store, logger *zap.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Analyzer{
		rules:    store,
		logger:   logger.Named("semantic"),
		maxDepth: taint.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements schemas.Detector.
func (a *Analyzer) Name() string { return synth.DetectorName }

// Detect implements schemas.Detector.
func (a *Analyzer) Detect(ctx context.Context, file schemas.SourceFile) ([]schemas.Finding, error) {
	res, err := a.AnalyzeFile(ctx, file)
	return res.Findings, err
}

func (a *Analyzer) enabled(l schemas.Language) bool {
	if a.languages == nil {
		return true
	}
	return a.languages[l] || a.languages[lang.Family(l)]
}

// AnalyzeFile analyzes one file. It returns a *schemas.ParseError for
// source the adapter rejects, the context error when ctx ends mid-analysis,
// and a *schemas.InternalInvariantViolation when the engine detects a
// broken assumption. In every error case the result carries no findings.
func (a *Analyzer) AnalyzeFile(ctx context.Context, file schemas.SourceFile) (FileResult, error) {
	res := FileResult{File: file.Path, Language: file.Language}
	if res.Language == "" {
		res.Language = lang.Detect(file.Path)
	}
	logger := a.logger.With(zap.String("file", file.Path), zap.String("language", string(res.Language)))

	adapter, ok := lang.ForLanguage(res.Language)
	if !ok || !a.enabled(res.Language) {
		res.Skipped = true
		return res, nil
	}
	if a.maxFileSize > 0 && int64(len(file.Content)) > a.maxFileSize {
		res.Skipped = true
		res.Warnings = append(res.Warnings, schemas.Warning{
			File:    file.Path,
			Kind:    schemas.WarningSkipped,
			Message: fmt.Sprintf("file size %d exceeds limit of %d bytes", len(file.Content), a.maxFileSize),
		})
		logger.Warn("Skipping oversized file.", zap.Int("size", len(file.Content)), zap.Int64("limit", a.maxFileSize))
		return res, nil
	}

	var registry *patterns.Registry
	if a.rules != nil {
		registry = a.rules.Load()
	}
	if registry == nil {
		return res, &schemas.InternalInvariantViolation{File: file.Path, Detail: "no pattern registry loaded"}
	}

	tree, err := adapter.Parse(ctx, file.Path, file.Content, lang.WithTolerance(a.tolerant))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		logger.Warn("Could not parse file, skipping semantic analysis.", zap.Error(err))
		return res, err
	}
	if tree.Errors > 0 {
		res.Warnings = append(res.Warnings, schemas.Warning{
			File:    file.Path,
			Kind:    schemas.WarningPartial,
			Message: fmt.Sprintf("%d syntax error region(s) skipped", tree.Errors),
		})
	}

	family := lang.Family(tree.Language)
	res.Candidates = registry.Candidates(family, tree.Root)
	if res.Candidates.Sinks == 0 {
		logger.Debug("No sink candidates, skipping propagation.")
		return res, nil
	}

	engine := taint.New(registry, logger, taint.WithMaxDepth(a.maxDepth))
	out, err := engine.Analyze(ctx, family, tree.Root)
	if err != nil {
		var inv *schemas.InternalInvariantViolation
		if errors.As(err, &inv) && inv.File == "" {
			inv.File = file.Path
		}
		return res, err
	}

	for _, w := range out.Warnings {
		res.Warnings = append(res.Warnings, schemas.Warning{
			File:    file.Path,
			Kind:    schemas.WarningPartial,
			Message: fmt.Sprintf("line %d: %s", w.Line, w.Message),
		})
	}
	res.Sanitized = len(out.Sanitizations)

	res.Findings = make([]schemas.Finding, 0, len(out.Hits))
	for _, hit := range out.Hits {
		res.Findings = append(res.Findings, synth.Synthesize(tree, hit))
	}
	sort.SliceStable(res.Findings, func(i, j int) bool {
		fi, fj := res.Findings[i], res.Findings[j]
		if fi.Line != fj.Line {
			return fi.Line < fj.Line
		}
		return fi.Column < fj.Column
	})

	logger.Debug("Semantic analysis complete.",
		zap.Int("findings", len(res.Findings)),
		zap.Int("sources", res.Candidates.Sources),
		zap.Int("sinks", res.Candidates.Sinks),
		zap.Int("sanitized", res.Sanitized),
	)
	return res, nil
}

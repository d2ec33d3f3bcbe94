package taint

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/ast"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/patterns"
)

// DefaultMaxDepth bounds recursion over deeply nested expressions.
const DefaultMaxDepth = 512

// SinkHit is a tainted value arriving at a sink. Sink is the call, or the
// assignment target for property sinks; Arg is the offending argument.
type SinkHit struct {
	Rule    *patterns.Spec
	Binding string
	Sink    *ast.Node
	Arg     *ast.Node
	Label   Label
}

// Line is the line of the sink.
func (h SinkHit) Line() int { return h.Sink.Line() }

// Sanitization records a sanitizer call that cleared taint. An empty
// Category means every category was cleared.
type Sanitization struct {
	Rule     *patterns.Spec
	Call     *ast.Node
	Category schemas.Category
	Cleared  []Label
}

// Warning is a recoverable problem met during the walk.
type Warning struct {
	Line    int
	Message string
}

// Result is everything the engine learned about one file.
type Result struct {
	Hits          []SinkHit
	Sanitizations []Sanitization
	Warnings      []Warning
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth overrides the nesting limit. Zero or less disables it.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) { e.maxDepth = depth }
}

// Engine propagates taint through one normalized tree at a time. It holds no
// per-file state and is safe for concurrent use.
type Engine struct {
	registry *patterns.Registry
	logger   *zap.Logger
	maxDepth int
}

// New creates an engine over a rule registry.
func New(registry *patterns.Registry, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		registry: registry,
		logger:   logger.Named("taint"),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze walks root in program order. language selects the rule set and
// must be a rule family (python, javascript, go). A cancelled context
// returns ctx.Err(); a broken internal assumption returns
// *schemas.InternalInvariantViolation. No partial result is returned with
// an error.
func (e *Engine) Analyze(ctx context.Context, language schemas.Language, root *ast.Node) (*Result, error) {
	if root == nil {
		return nil, &schemas.InternalInvariantViolation{Detail: "nil syntax tree"}
	}
	if e.registry == nil {
		return nil, &schemas.InternalInvariantViolation{Detail: "engine has no pattern registry"}
	}

	w := &walker{
		ctx:      ctx,
		reg:      e.registry,
		lang:     language,
		logger:   e.logger,
		maxDepth: e.maxDepth,
		env:      NewEnv(),
		res:      &Result{},
		seen:     make(map[hitKey]bool),
	}
	w.exec(root)

	if w.err == nil && w.env.Depth() != 1 {
		w.invariant(root, "scope stack not balanced after walk")
	}
	if w.err != nil {
		return nil, w.err
	}
	return w.res, nil
}

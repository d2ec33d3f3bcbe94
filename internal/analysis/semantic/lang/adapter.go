// File: internal/analysis/semantic/lang/adapter.go
// Language adapters wrap a tree-sitter grammar and lower its concrete syntax
// tree into the normalized ast. Selection is a table lookup keyed by file
// extension or language tag.
package lang

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/ast"
)

// errSyntax is wrapped by ParseError when the grammar reports error nodes.
var errSyntax = errors.New("source contains syntax errors")

// Adapter parses one language. It holds only the compiled grammar and its
// lowering function, so a single instance is shared by every worker.
type Adapter struct {
	language schemas.Language
	grammar  *sitter.Language
	lower    lowerFunc
}

// Tree is the parsed, normalized form of one file.
type Tree struct {
	Language schemas.Language
	Path     string
	Root     *ast.Node
	// Errors counts error subtrees kept in tolerant mode.
	Errors int
	lines  [][]byte
}

// Line returns the trimmed text of a 1-based line, or "" when out of range.
func (t *Tree) Line(n int) string {
	if t == nil || n < 1 || n > len(t.lines) {
		return ""
	}
	return string(bytes.TrimSpace(t.lines[n-1]))
}

// ParseOption tweaks a single Parse call.
type ParseOption func(*parseOptions)

type parseOptions struct {
	tolerant bool
}

// WithTolerance keeps going on syntax errors: error subtrees are lowered to
// ast.KindError nodes instead of failing the parse.
func WithTolerance(tolerant bool) ParseOption {
	return func(o *parseOptions) { o.tolerant = tolerant }
}

var adapters = map[schemas.Language]*Adapter{
	schemas.LanguagePython:     {language: schemas.LanguagePython, grammar: python.GetLanguage(), lower: lowerPython},
	schemas.LanguageJavaScript: {language: schemas.LanguageJavaScript, grammar: javascript.GetLanguage(), lower: lowerJavaScript},
	schemas.LanguageTypeScript: {language: schemas.LanguageTypeScript, grammar: typescript.GetLanguage(), lower: lowerJavaScript},
	schemas.LanguageTSX:        {language: schemas.LanguageTSX, grammar: tsx.GetLanguage(), lower: lowerJavaScript},
	schemas.LanguageGo:         {language: schemas.LanguageGo, grammar: golang.GetLanguage(), lower: lowerGo},
}

var extensions = map[string]schemas.Language{
	".py":  schemas.LanguagePython,
	".pyw": schemas.LanguagePython,
	".js":  schemas.LanguageJavaScript,
	".mjs": schemas.LanguageJavaScript,
	".cjs": schemas.LanguageJavaScript,
	".jsx": schemas.LanguageJavaScript,
	".ts":  schemas.LanguageTypeScript,
	".mts": schemas.LanguageTypeScript,
	".cts": schemas.LanguageTypeScript,
	".tsx": schemas.LanguageTSX,
	".go":  schemas.LanguageGo,
}

// Detect maps a file path to its language tag by extension.
func Detect(path string) schemas.Language {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// ForPath returns the adapter for a file path.
func ForPath(path string) (*Adapter, bool) {
	return ForLanguage(Detect(path))
}

// ForLanguage returns the adapter for a language tag.
func ForLanguage(l schemas.Language) (*Adapter, bool) {
	a, ok := adapters[l]
	return a, ok
}

// Languages lists the supported language tags in a stable order.
func Languages() []schemas.Language {
	out := make([]schemas.Language, 0, len(adapters))
	for l := range adapters {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Family folds dialects onto the tag rules are written for: TypeScript and
// TSX share the JavaScript rules.
func Family(l schemas.Language) schemas.Language {
	switch l {
	case schemas.LanguageTypeScript, schemas.LanguageTSX:
		return schemas.LanguageJavaScript
	}
	return l
}

// Language returns the tag this adapter parses.
func (a *Adapter) Language() schemas.Language { return a.language }

// Parse turns content into a normalized tree. Syntax errors yield a
// *schemas.ParseError unless tolerance is enabled.
func (a *Adapter) Parse(ctx context.Context, path string, content []byte, opts ...ParseOption) (*Tree, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Parsers are not safe for concurrent use; the grammar is.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(a.grammar)

	raw, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, &schemas.ParseError{File: path, Language: a.language, Err: err}
	}
	if raw == nil {
		return nil, &schemas.ParseError{File: path, Language: a.language, Err: errors.New("parser returned no tree")}
	}
	defer raw.Close()

	root := raw.RootNode()
	if root == nil || root.IsNull() {
		return nil, &schemas.ParseError{File: path, Language: a.language, Err: errors.New("empty syntax tree")}
	}

	errCount := 0
	if root.HasError() {
		first, count := firstError(root)
		errCount = count
		if !o.tolerant {
			pe := &schemas.ParseError{File: path, Language: a.language, Err: errSyntax}
			if first != nil {
				p := first.StartPoint()
				pe.Line, pe.Column = int(p.Row)+1, int(p.Column)+1
			}
			return nil, pe
		}
	}

	l := &lowerer{src: content, lower: a.lower}
	module := l.node(root)
	if module != nil && module.Kind == ast.KindError {
		// Tolerant mode on input the grammar could not recognize at all.
		module = &ast.Node{Kind: ast.KindModule, Type: root.Type(), Span: module.Span, Children: []*ast.Node{module}}
	}
	if module == nil || module.Kind != ast.KindModule {
		return nil, &schemas.ParseError{File: path, Language: a.language, Err: fmt.Errorf("unexpected root %q", root.Type())}
	}

	return &Tree{
		Language: a.language,
		Path:     path,
		Root:     module,
		Errors:   errCount,
		lines:    bytes.Split(content, []byte("\n")),
	}, nil
}

// Query lazily yields the nodes of t matching pred in pre-order. The
// returned sequence may be ranged over repeatedly.
func (a *Adapter) Query(t *Tree, pred ast.Predicate) iter.Seq[*ast.Node] {
	if t == nil {
		return func(func(*ast.Node) bool) {}
	}
	return ast.Query(t.Root, pred)
}

// firstError returns the first error or missing node in document order and
// the number of such nodes.
func firstError(n *sitter.Node) (*sitter.Node, int) {
	var first *sitter.Node
	count := 0
	var visit func(*sitter.Node)
	visit = func(c *sitter.Node) {
		if c == nil || c.IsNull() {
			return
		}
		if c.Type() == "ERROR" || c.IsMissing() {
			if first == nil {
				first = c
			}
			count++
			return
		}
		if !c.HasError() {
			return
		}
		for i := 0; i < int(c.ChildCount()); i++ {
			visit(c.Child(i))
		}
	}
	visit(n)
	return first, count
}

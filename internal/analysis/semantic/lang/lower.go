package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/ast"
)

// lowerFunc maps one grammar node onto the normalized tree. Returning nil
// drops the node (comments, imports, type declarations).
type lowerFunc func(l *lowerer, n *sitter.Node) *ast.Node

type lowerer struct {
	src   []byte
	lower lowerFunc
}

func (l *lowerer) node(n *sitter.Node) *ast.Node {
	if n == nil || n.IsNull() {
		return nil
	}
	if n.Type() == "ERROR" {
		return l.make(ast.KindError, n)
	}
	return l.lower(l, n)
}

func (l *lowerer) field(n *sitter.Node, name string) *ast.Node {
	return l.node(n.ChildByFieldName(name))
}

func (l *lowerer) make(kind ast.Kind, n *sitter.Node, children ...*ast.Node) *ast.Node {
	start, end := n.StartPoint(), n.EndPoint()
	out := &ast.Node{
		Kind: kind,
		Type: n.Type(),
		Span: ast.Span{
			StartByte: n.StartByte(),
			EndByte:   n.EndByte(),
			Line:      int(start.Row) + 1,
			Column:    int(start.Column) + 1,
			EndLine:   int(end.Row) + 1,
		},
	}
	for _, c := range children {
		if c != nil {
			out.Children = append(out.Children, c)
		}
	}
	return out
}

// positional builds a node whose child slots are significant: nil slots are
// replaced by empty placeholders so later slots keep their index.
func (l *lowerer) positional(kind ast.Kind, n *sitter.Node, slots ...*ast.Node) *ast.Node {
	out := l.make(kind, n)
	for _, c := range slots {
		if c == nil {
			c = &ast.Node{Kind: ast.KindOther, Span: out.Span}
		}
		out.Children = append(out.Children, c)
	}
	return out
}

func (l *lowerer) leaf(kind ast.Kind, n *sitter.Node) *ast.Node {
	out := l.make(kind, n)
	out.Text = l.text(n)
	return out
}

func (l *lowerer) text(n *sitter.Node) string {
	if n == nil || n.IsNull() {
		return ""
	}
	return n.Content(l.src)
}

// named lowers all named children of n, skipping dropped ones.
func (l *lowerer) named(n *sitter.Node) []*ast.Node {
	count := int(n.NamedChildCount())
	out := make([]*ast.Node, 0, count)
	for i := 0; i < count; i++ {
		if c := l.node(n.NamedChild(i)); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// namedExcept lowers named children that are not skip.
func (l *lowerer) namedExcept(n *sitter.Node, skip ...*sitter.Node) []*ast.Node {
	count := int(n.NamedChildCount())
	out := make([]*ast.Node, 0, count)
outer:
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		for _, s := range skip {
			if sameNode(c, s) {
				continue outer
			}
		}
		if lc := l.node(c); lc != nil {
			out = append(out, lc)
		}
	}
	return out
}

func (l *lowerer) other(n *sitter.Node) *ast.Node {
	return l.make(ast.KindOther, n, l.named(n)...)
}

// unwrap lowers the first meaningful named child, for wrappers such as
// parentheses, await or type assertions.
func (l *lowerer) unwrap(n *sitter.Node) *ast.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		return l.node(c)
	}
	return nil
}

func (l *lowerer) block(n *sitter.Node, stmts []*ast.Node) *ast.Node {
	return l.make(ast.KindBlock, n, stmts...)
}

// seq wraps a list of expressions: a single element is returned as is.
func (l *lowerer) seq(n *sitter.Node) *ast.Node {
	if n == nil || n.IsNull() {
		return nil
	}
	items := l.named(n)
	if len(items) == 1 {
		return items[0]
	}
	return l.make(ast.KindTuple, n, items...)
}

func (l *lowerer) assign(n *sitter.Node, op string, target, value *ast.Node) *ast.Node {
	out := l.make(ast.KindAssign, n, target, value)
	if target == nil {
		out.Children = nil
		out.Kind = ast.KindOther
		if value != nil {
			out.Children = []*ast.Node{value}
		}
		return out
	}
	out.Op = op
	return out
}

func (l *lowerer) call(n *sitter.Node, callee *ast.Node, args []*ast.Node) *ast.Node {
	out := l.positional(ast.KindCall, n, callee)
	out.Children = append(out.Children, args...)
	return out
}

func (l *lowerer) attribute(n *sitter.Node, object *ast.Node, prop *sitter.Node) *ast.Node {
	out := l.positional(ast.KindAttribute, n, object)
	out.Text = l.text(prop)
	return out
}

func (l *lowerer) param(n *sitter.Node, name, annotation string, def *ast.Node) *ast.Node {
	out := l.make(ast.KindParam, n, def)
	out.Text = name
	out.Annotation = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(annotation), ":"))
	return out
}

func (l *lowerer) binary(n *sitter.Node, compare bool) *ast.Node {
	kind := ast.KindBinaryOp
	if compare {
		kind = ast.KindCompare
	}
	out := l.positional(kind, n, l.field(n, "left"), l.field(n, "right"))
	out.Op = l.text(n.ChildByFieldName("operator"))
	return out
}

func (l *lowerer) function(n *sitter.Node, name string, params []*ast.Node, body *ast.Node) *ast.Node {
	if body == nil {
		body = &ast.Node{Kind: ast.KindBlock}
	}
	out := l.make(ast.KindFunction, n, append(params, body)...)
	out.Text = name
	return out
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

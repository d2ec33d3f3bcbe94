package lang

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/ast"
)

func lowerPython(l *lowerer, n *sitter.Node) *ast.Node {
	switch n.Type() {
	case "module":
		return l.make(ast.KindModule, n, l.named(n)...)
	case "block":
		return l.block(n, l.named(n))
	case "expression_statement":
		return l.seq(n)

	case "assignment":
		right := n.ChildByFieldName("right")
		if right == nil {
			// Annotated declaration without a value: `x: int`.
			return l.assign(n, "=", l.field(n, "left"), nil)
		}
		return l.assign(n, "=", l.field(n, "left"), l.node(right))
	case "augmented_assignment":
		return l.assign(n, l.text(n.ChildByFieldName("operator")), l.field(n, "left"), l.field(n, "right"))
	case "named_expression":
		return l.assign(n, ":=", l.field(n, "name"), l.field(n, "value"))

	case "function_definition":
		return l.function(n, l.text(n.ChildByFieldName("name")), pythonParams(l, n.ChildByFieldName("parameters")), l.field(n, "body"))
	case "lambda":
		return l.function(n, "", pythonParams(l, n.ChildByFieldName("parameters")), l.field(n, "body"))

	case "if_statement":
		return pythonIf(l, n)
	case "for_statement":
		header := l.assign(n, "in", l.field(n, "left"), l.field(n, "right"))
		loop := l.positional(ast.KindLoop, n, header, l.field(n, "body"))
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			return l.block(n, []*ast.Node{loop, l.field(alt, "body")})
		}
		return loop
	case "while_statement":
		loop := l.positional(ast.KindLoop, n, l.field(n, "condition"), l.field(n, "body"))
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			return l.block(n, []*ast.Node{loop, l.field(alt, "body")})
		}
		return loop
	case "return_statement":
		return l.make(ast.KindReturn, n, l.named(n)...)

	case "call":
		return l.call(n, l.field(n, "function"), pythonArgs(l, n.ChildByFieldName("arguments")))
	case "keyword_argument":
		out := l.positional(ast.KindKeywordArg, n, l.field(n, "value"))
		out.Text = l.text(n.ChildByFieldName("name"))
		return out
	case "attribute":
		return l.attribute(n, l.field(n, "object"), n.ChildByFieldName("attribute"))
	case "subscript":
		return l.positional(ast.KindSubscript, n, l.field(n, "value"), l.field(n, "subscript"))

	case "binary_operator", "boolean_operator":
		return l.binary(n, false)
	case "comparison_operator", "not_operator":
		return l.make(ast.KindCompare, n, l.named(n)...)

	case "string":
		out := l.make(ast.KindString, n, pythonInterpolations(l, n)...)
		out.Text = l.text(n)
		return out
	case "concatenated_string":
		out := l.make(ast.KindString, n, l.named(n)...)
		out.Text = l.text(n)
		return out
	case "integer", "float", "true", "false", "none", "ellipsis":
		return l.leaf(ast.KindLiteral, n)
	case "identifier":
		return l.leaf(ast.KindIdentifier, n)

	case "parenthesized_expression", "await", "list_splat", "dictionary_splat",
		"list_splat_pattern", "dictionary_splat_pattern", "type":
		return l.unwrap(n)
	case "tuple", "list", "set", "pattern_list", "tuple_pattern", "list_pattern", "expression_list":
		return l.make(ast.KindTuple, n, l.named(n)...)

	case "comment", "pass_statement", "break_statement", "continue_statement",
		"import_statement", "import_from_statement", "future_import_statement",
		"global_statement", "nonlocal_statement", "string_start", "string_end",
		"string_content", "escape_sequence":
		return nil
	}
	return l.other(n)
}

// pythonIf folds elif/else clauses into a right-nested chain of If nodes.
func pythonIf(l *lowerer, n *sitter.Node) *ast.Node {
	var clauses []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if t := c.Type(); t == "elif_clause" || t == "else_clause" {
			clauses = append(clauses, c)
		}
	}

	var alt *ast.Node
	for i := len(clauses) - 1; i >= 0; i-- {
		c := clauses[i]
		if c.Type() == "else_clause" {
			alt = l.field(c, "body")
			continue
		}
		elif := l.positional(ast.KindIf, c, l.field(c, "condition"), l.field(c, "consequence"))
		if alt != nil {
			elif.Children = append(elif.Children, alt)
		}
		alt = elif
	}

	out := l.positional(ast.KindIf, n, l.field(n, "condition"), l.field(n, "consequence"))
	if alt != nil {
		out.Children = append(out.Children, alt)
	}
	return out
}

func pythonParams(l *lowerer, n *sitter.Node) []*ast.Node {
	if n == nil || n.IsNull() {
		return nil
	}
	var out []*ast.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p := n.NamedChild(i)
		switch p.Type() {
		case "identifier":
			out = append(out, l.param(p, l.text(p), "", nil))
		case "typed_parameter":
			name := ""
			if id := p.NamedChild(0); id != nil {
				name = l.text(firstIdentifier(id))
			}
			out = append(out, l.param(p, name, l.text(p.ChildByFieldName("type")), nil))
		case "default_parameter", "typed_default_parameter":
			out = append(out, l.param(p, l.text(p.ChildByFieldName("name")), l.text(p.ChildByFieldName("type")), l.field(p, "value")))
		case "list_splat_pattern", "dictionary_splat_pattern":
			out = append(out, l.param(p, l.text(firstIdentifier(p)), "", nil))
		}
	}
	return out
}

func pythonArgs(l *lowerer, n *sitter.Node) []*ast.Node {
	if n == nil || n.IsNull() {
		return nil
	}
	if n.Type() == "generator_expression" {
		return []*ast.Node{l.other(n)}
	}
	return l.named(n)
}

// pythonInterpolations returns the expressions embedded in an f-string.
func pythonInterpolations(l *lowerer, n *sitter.Node) []*ast.Node {
	var out []*ast.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "interpolation" {
			continue
		}
		if expr := c.ChildByFieldName("expression"); expr != nil {
			out = append(out, l.node(expr))
			continue
		}
		if c.NamedChildCount() > 0 {
			out = append(out, l.node(c.NamedChild(0)))
		}
	}
	return out
}

// firstIdentifier descends to the first identifier below n, or returns n.
func firstIdentifier(n *sitter.Node) *sitter.Node {
	if n == nil || n.Type() == "identifier" {
		return n
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if id := firstIdentifier(n.NamedChild(i)); id != nil && id.Type() == "identifier" {
			return id
		}
	}
	return n
}

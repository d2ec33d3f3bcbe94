package lang

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/ast"
)

var goComparisons = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"&&": true, "||": true,
}

func lowerGo(l *lowerer, n *sitter.Node) *ast.Node {
	switch n.Type() {
	case "source_file":
		return l.make(ast.KindModule, n, l.named(n)...)
	case "block", "statement_list":
		return l.block(n, goStatements(l, n))
	case "expression_statement":
		return l.unwrap(n)

	case "short_var_declaration":
		return l.assign(n, ":=", l.seq(n.ChildByFieldName("left")), l.seq(n.ChildByFieldName("right")))
	case "assignment_statement":
		return l.assign(n, l.text(n.ChildByFieldName("operator")), l.seq(n.ChildByFieldName("left")), l.seq(n.ChildByFieldName("right")))
	case "var_declaration", "const_declaration", "var_spec_list":
		return l.block(n, l.named(n))
	case "var_spec", "const_spec":
		return goSpec(l, n)

	case "function_declaration":
		return l.function(n, l.text(n.ChildByFieldName("name")), goParams(l, n.ChildByFieldName("parameters")), l.field(n, "body"))
	case "method_declaration":
		params := append(goParams(l, n.ChildByFieldName("receiver")), goParams(l, n.ChildByFieldName("parameters"))...)
		return l.function(n, l.text(n.ChildByFieldName("name")), params, l.field(n, "body"))
	case "func_literal":
		return l.function(n, "", goParams(l, n.ChildByFieldName("parameters")), l.field(n, "body"))

	case "if_statement":
		out := l.positional(ast.KindIf, n, l.field(n, "condition"), l.field(n, "consequence"))
		if alt := l.field(n, "alternative"); alt != nil {
			out.Children = append(out.Children, alt)
		}
		if init := l.field(n, "initializer"); init != nil {
			return l.block(n, []*ast.Node{init, out})
		}
		return out
	case "for_statement":
		return goFor(l, n)
	case "expression_switch_statement":
		out := l.positional(ast.KindSwitch, n, l.field(n, "value"))
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "expression_case":
				out.Children = append(out.Children, l.make(ast.KindCase, c, l.block(c, l.namedExcept(c, c.ChildByFieldName("value")))))
			case "default_case":
				dc := l.make(ast.KindCase, c, l.block(c, l.named(c)))
				dc.Text = "default"
				out.Children = append(out.Children, dc)
			}
		}
		if init := l.field(n, "initializer"); init != nil {
			return l.block(n, []*ast.Node{init, out})
		}
		return out
	case "return_statement":
		return l.make(ast.KindReturn, n, l.named(n)...)

	case "call_expression":
		var args []*ast.Node
		if a := n.ChildByFieldName("arguments"); a != nil {
			args = l.named(a)
		}
		return l.call(n, l.field(n, "function"), args)
	case "selector_expression":
		return l.attribute(n, l.field(n, "operand"), n.ChildByFieldName("field"))
	case "index_expression":
		return l.positional(ast.KindSubscript, n, l.field(n, "operand"), l.field(n, "index"))
	case "slice_expression":
		return l.positional(ast.KindSubscript, n, l.field(n, "operand"))

	case "binary_expression":
		return l.binary(n, goComparisons[l.text(n.ChildByFieldName("operator"))])
	case "unary_expression":
		if l.text(n.ChildByFieldName("operator")) == "!" {
			return l.make(ast.KindCompare, n, l.field(n, "operand"))
		}
		return l.field(n, "operand")

	case "interpreted_string_literal", "raw_string_literal":
		return l.leaf(ast.KindString, n)
	case "int_literal", "float_literal", "imaginary_literal", "rune_literal",
		"true", "false", "nil", "iota":
		return l.leaf(ast.KindLiteral, n)
	case "identifier", "field_identifier", "package_identifier":
		return l.leaf(ast.KindIdentifier, n)

	case "parenthesized_expression", "variadic_argument":
		return l.unwrap(n)
	case "type_assertion_expression":
		return l.field(n, "operand")
	case "expression_list":
		return l.seq(n)

	case "comment", "package_clause", "import_declaration", "type_declaration",
		"break_statement", "continue_statement", "goto_statement",
		"fallthrough_statement", "empty_statement", "type_identifier",
		"pointer_type", "qualified_type", "slice_type", "map_type",
		"array_type", "interface_type", "struct_type", "function_type",
		"channel_type", "generic_type", "type_arguments":
		return nil
	}
	return l.other(n)
}

// goStatements flattens statement_list wrappers used by newer grammars.
func goStatements(l *lowerer, n *sitter.Node) []*ast.Node {
	var out []*ast.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "statement_list" {
			out = append(out, goStatements(l, c)...)
			continue
		}
		if lc := l.node(c); lc != nil {
			out = append(out, lc)
		}
	}
	return out
}

func goSpec(l *lowerer, n *sitter.Node) *ast.Node {
	var names []*ast.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "identifier" {
			names = append(names, l.leaf(ast.KindIdentifier, c))
		}
	}
	if len(names) == 0 {
		return nil
	}
	target := names[0]
	if len(names) > 1 {
		target = l.make(ast.KindTuple, n, names...)
	}
	return l.assign(n, "=", target, l.seq(n.ChildByFieldName("value")))
}

func goFor(l *lowerer, n *sitter.Node) *ast.Node {
	body := n.ChildByFieldName("body")
	var header []*ast.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if sameNode(c, body) {
			continue
		}
		switch c.Type() {
		case "for_clause":
			header = append(header, l.field(c, "initializer"), l.field(c, "condition"), l.field(c, "update"))
		case "range_clause":
			left := c.ChildByFieldName("left")
			if left == nil {
				header = append(header, l.field(c, "right"))
				continue
			}
			header = append(header, l.assign(c, "range", l.seq(left), l.field(c, "right")))
		default:
			header = append(header, l.node(c))
		}
	}
	header = append(header, l.positional(ast.KindBlock, n, l.node(body)))
	return l.make(ast.KindLoop, n, header...)
}

func goParams(l *lowerer, n *sitter.Node) []*ast.Node {
	if n == nil || n.IsNull() {
		return nil
	}
	var out []*ast.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p := n.NamedChild(i)
		if p.Type() != "parameter_declaration" && p.Type() != "variadic_parameter_declaration" {
			continue
		}
		typ := l.text(p.ChildByFieldName("type"))
		if p.Type() == "variadic_parameter_declaration" {
			typ = "..." + typ
		}
		for j := 0; j < int(p.NamedChildCount()); j++ {
			c := p.NamedChild(j)
			if c.Type() == "identifier" {
				out = append(out, l.param(c, l.text(c), typ, nil))
			}
		}
	}
	return out
}

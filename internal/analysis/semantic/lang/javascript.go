package lang

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/ast"
)

// jsComparisons produce booleans, so their result never carries taint.
var jsComparisons = map[string]bool{
	"==": true, "===": true, "!=": true, "!==": true,
	"<": true, ">": true, "<=": true, ">=": true,
	"instanceof": true, "in": true,
}

// lowerJavaScript handles JavaScript, TypeScript and TSX; the TypeScript
// grammars are supersets that only add type syntax.
func lowerJavaScript(l *lowerer, n *sitter.Node) *ast.Node {
	switch n.Type() {
	case "program":
		return l.make(ast.KindModule, n, l.named(n)...)
	case "statement_block", "class_body":
		return l.block(n, l.named(n))
	case "expression_statement":
		return l.unwrap(n)
	case "lexical_declaration", "variable_declaration":
		return l.block(n, l.named(n))
	case "variable_declarator":
		return l.assign(n, "=", l.field(n, "name"), l.field(n, "value"))
	case "assignment_expression":
		return l.assign(n, "=", l.field(n, "left"), l.field(n, "right"))
	case "augmented_assignment_expression":
		return l.assign(n, l.text(n.ChildByFieldName("operator")), l.field(n, "left"), l.field(n, "right"))

	case "function_declaration", "generator_function_declaration", "function",
		"function_expression", "generator_function", "method_definition":
		return l.function(n, l.text(n.ChildByFieldName("name")), jsParams(l, n.ChildByFieldName("parameters")), l.field(n, "body"))
	case "arrow_function":
		var params []*ast.Node
		if p := n.ChildByFieldName("parameter"); p != nil {
			params = []*ast.Node{l.param(p, l.text(p), "", nil)}
		} else {
			params = jsParams(l, n.ChildByFieldName("parameters"))
		}
		return l.function(n, "", params, l.field(n, "body"))

	case "if_statement":
		out := l.positional(ast.KindIf, n, l.field(n, "condition"), l.field(n, "consequence"))
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			// else_clause wraps a single statement.
			if a := l.unwrap(alt); a != nil {
				out.Children = append(out.Children, a)
			}
		}
		return out
	case "for_statement":
		return l.make(ast.KindLoop, n,
			l.field(n, "initializer"), l.field(n, "condition"), l.field(n, "increment"),
			l.positional(ast.KindBlock, n, l.field(n, "body")))
	case "for_in_statement":
		op := l.text(n.ChildByFieldName("operator"))
		if op == "" {
			op = "in"
		}
		header := l.assign(n, op, l.field(n, "left"), l.field(n, "right"))
		return l.positional(ast.KindLoop, n, header, l.field(n, "body"))
	case "while_statement", "do_statement":
		return l.positional(ast.KindLoop, n, l.field(n, "condition"), l.field(n, "body"))
	case "switch_statement":
		out := l.positional(ast.KindSwitch, n, l.field(n, "value"))
		if body := n.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.NamedChildCount()); i++ {
				if c := jsCase(l, body.NamedChild(i)); c != nil {
					out.Children = append(out.Children, c)
				}
			}
		}
		return out
	case "return_statement":
		return l.make(ast.KindReturn, n, l.named(n)...)
	case "else_clause":
		return l.unwrap(n)

	case "call_expression":
		args := n.ChildByFieldName("arguments")
		var lowered []*ast.Node
		if args != nil && args.Type() == "template_string" {
			lowered = []*ast.Node{l.node(args)}
		} else if args != nil {
			lowered = l.named(args)
		}
		return l.call(n, l.field(n, "function"), lowered)
	case "new_expression":
		var args []*ast.Node
		if a := n.ChildByFieldName("arguments"); a != nil {
			args = l.named(a)
		}
		return l.call(n, l.field(n, "constructor"), args)
	case "member_expression":
		return l.attribute(n, l.field(n, "object"), n.ChildByFieldName("property"))
	case "subscript_expression":
		return l.positional(ast.KindSubscript, n, l.field(n, "object"), l.field(n, "index"))

	case "binary_expression":
		return l.binary(n, jsComparisons[l.text(n.ChildByFieldName("operator"))])
	case "unary_expression":
		return l.make(ast.KindCompare, n, l.named(n)...)

	case "template_string":
		var subs []*ast.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() == "template_substitution" {
				subs = append(subs, l.unwrap(c))
			}
		}
		out := l.make(ast.KindString, n, subs...)
		out.Text = l.text(n)
		return out
	case "string":
		return l.leaf(ast.KindString, n)
	case "number", "true", "false", "null", "undefined", "regex":
		return l.leaf(ast.KindLiteral, n)
	case "identifier", "this", "super", "property_identifier",
		"shorthand_property_identifier", "shorthand_property_identifier_pattern":
		return l.leaf(ast.KindIdentifier, n)

	case "parenthesized_expression", "await_expression", "as_expression",
		"satisfies_expression", "non_null_expression", "type_assertion",
		"spread_element", "rest_pattern":
		return l.unwrap(n)
	case "array", "array_pattern", "object_pattern":
		return l.make(ast.KindTuple, n, l.named(n)...)
	case "pair", "pair_pattern":
		return l.make(ast.KindOther, n, l.field(n, "value"))
	case "object_assignment_pattern", "assignment_pattern":
		return l.field(n, "left")

	case "comment", "import_statement", "empty_statement", "break_statement",
		"continue_statement", "debugger_statement", "type_alias_declaration",
		"interface_declaration", "type_annotation", "ambient_declaration",
		"abstract_class_declaration", "hash_bang_line":
		return nil
	}
	return l.other(n)
}

func jsCase(l *lowerer, n *sitter.Node) *ast.Node {
	switch n.Type() {
	case "switch_case":
		body := l.namedExcept(n, n.ChildByFieldName("value"))
		return l.make(ast.KindCase, n, l.block(n, body))
	case "switch_default":
		out := l.make(ast.KindCase, n, l.block(n, l.named(n)))
		out.Text = "default"
		return out
	}
	return nil
}

func jsParams(l *lowerer, n *sitter.Node) []*ast.Node {
	if n == nil || n.IsNull() {
		return nil
	}
	var out []*ast.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p := n.NamedChild(i)
		switch p.Type() {
		case "identifier":
			out = append(out, l.param(p, l.text(p), "", nil))
		case "assignment_pattern":
			out = append(out, l.param(p, l.text(p.ChildByFieldName("left")), "", l.field(p, "right")))
		case "rest_pattern":
			out = append(out, l.param(p, l.text(firstNamed(p)), "", nil))
		case "required_parameter", "optional_parameter":
			out = append(out, l.param(p, l.text(p.ChildByFieldName("pattern")), l.text(p.ChildByFieldName("type")), l.field(p, "value")))
		case "object_pattern", "array_pattern":
			out = append(out, l.param(p, l.text(p), "", nil))
		}
	}
	return out
}

func firstNamed(n *sitter.Node) *sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return n
	}
	return n.NamedChild(0)
}

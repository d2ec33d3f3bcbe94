// Package ast defines the language neutral tree the taint engine walks.
// Language adapters lower tree-sitter output into it; nothing in this package
// knows about any concrete grammar.
package ast

import (
	"strings"
)

// Kind tags a normalized node.
type Kind int

const (
	KindOther Kind = iota
	KindModule
	KindBlock
	KindFunction
	KindParam
	KindAssign
	KindIf
	KindSwitch
	KindCase
	KindLoop
	KindReturn
	KindCall
	KindKeywordArg
	KindAttribute
	KindSubscript
	KindBinaryOp
	KindCompare
	KindString
	KindLiteral
	KindIdentifier
	KindTuple
	KindError
)

var kindNames = [...]string{
	KindOther:      "other",
	KindModule:     "module",
	KindBlock:      "block",
	KindFunction:   "function",
	KindParam:      "param",
	KindAssign:     "assign",
	KindIf:         "if",
	KindSwitch:     "switch",
	KindCase:       "case",
	KindLoop:       "loop",
	KindReturn:     "return",
	KindCall:       "call",
	KindKeywordArg: "keyword_arg",
	KindAttribute:  "attribute",
	KindSubscript:  "subscript",
	KindBinaryOp:   "binary_op",
	KindCompare:    "compare",
	KindString:     "string",
	KindLiteral:    "literal",
	KindIdentifier: "identifier",
	KindTuple:      "tuple",
	KindError:      "error",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Span locates a node in its file. Line and Column are 1-based.
type Span struct {
	StartByte uint32
	EndByte   uint32
	Line      int
	Column    int
	EndLine   int
}

// Node is a normalized syntax node. Child layout depends on Kind:
//
//	Function   params (KindParam)..., body
//	Param      optional default value; Text is the name, Annotation the type
//	Assign     target, value (value absent for bare declarations)
//	If         condition, consequence, optional alternative
//	Switch     subject, cases (KindCase)...
//	Case       body; Text is "default" for the default arm
//	Loop       header expressions..., body
//	Call       callee, arguments...
//	KeywordArg value; Text is the keyword
//	Attribute  object; Text is the property name
//	Subscript  object, index
//	BinaryOp   left, right; Op is the operator
//	String     interpolated expressions...
//
// Nodes are read-only once the adapter returns them.
type Node struct {
	Kind       Kind
	Type       string // Grammar node type the node was lowered from.
	Text       string
	Op         string
	Annotation string
	Span       Span
	Children   []*Node
}

// Child returns the i-th child or nil.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Line is a nil-safe accessor for the start line.
func (n *Node) Line() int {
	if n == nil {
		return 0
	}
	return n.Span.Line
}

// Callee returns the called expression of a KindCall node.
func (n *Node) Callee() *Node {
	if n == nil || n.Kind != KindCall {
		return nil
	}
	return n.Child(0)
}

// Args returns the argument list of a KindCall node, keyword arguments included.
func (n *Node) Args() []*Node {
	if n == nil || n.Kind != KindCall || len(n.Children) < 2 {
		return nil
	}
	return n.Children[1:]
}

// Positional returns the i-th positional argument of a call, skipping
// keyword arguments.
func (n *Node) Positional(i int) *Node {
	pos := 0
	for _, a := range n.Args() {
		if a.Kind == KindKeywordArg {
			continue
		}
		if pos == i {
			return a
		}
		pos++
	}
	return nil
}

// Keyword returns the value bound to a keyword argument of a call.
func (n *Node) Keyword(name string) (*Node, bool) {
	for _, a := range n.Args() {
		if a.Kind == KindKeywordArg && a.Text == name {
			return a.Child(0), true
		}
	}
	return nil, false
}

// Params returns the parameters of a KindFunction node.
func (n *Node) Params() []*Node {
	if n == nil || n.Kind != KindFunction || len(n.Children) == 0 {
		return nil
	}
	return n.Children[:len(n.Children)-1]
}

// Body returns the last child of functions, loops and cases.
func (n *Node) Body() *Node {
	if n == nil || len(n.Children) == 0 {
		return nil
	}
	return n.Children[len(n.Children)-1]
}

// Path flattens identifier, attribute, subscript and call chains into a
// dotted name: r.URL.Query().Get becomes "r.URL.Query.Get". Objects that
// are not names become "?" so suffix patterns still apply; an expression
// that is not a name at all yields "".
func Path(n *Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case KindIdentifier:
		return n.Text
	case KindAttribute:
		obj := Path(n.Child(0))
		if obj == "" {
			obj = "?"
		}
		return obj + "." + n.Text
	case KindCall:
		return Path(n.Callee())
	case KindSubscript:
		return Path(n.Child(0))
	}
	return ""
}

// LiteralText returns the comparable text of a literal, identifier or
// attribute node, used by keyword predicates such as shell=True.
func LiteralText(n *Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case KindLiteral:
		return n.Text
	case KindString:
		return strings.Trim(n.Text, "\"'`")
	}
	return Path(n)
}

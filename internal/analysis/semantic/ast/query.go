package ast

import "iter"

// Predicate selects nodes during a query.
type Predicate func(*Node) bool

// Walk visits n and its descendants in pre-order. Returning false from fn
// prunes the subtree below the current node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Query returns the nodes under root matching pred, in pre-order. The
// sequence is lazy and can be ranged over any number of times.
func Query(root *Node, pred Predicate) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		var visit func(*Node) bool
		visit = func(n *Node) bool {
			if n == nil {
				return true
			}
			if pred == nil || pred(n) {
				if !yield(n) {
					return false
				}
			}
			for _, c := range n.Children {
				if !visit(c) {
					return false
				}
			}
			return true
		}
		visit(root)
	}
}

// OfKind matches nodes with any of the given kinds.
func OfKind(kinds ...Kind) Predicate {
	return func(n *Node) bool {
		for _, k := range kinds {
			if n.Kind == k {
				return true
			}
		}
		return false
	}
}

// CallTo matches calls whose flattened callee path equals name.
func CallTo(name string) Predicate {
	return func(n *Node) bool {
		return n.Kind == KindCall && Path(n.Callee()) == name
	}
}

// And combines predicates.
func And(preds ...Predicate) Predicate {
	return func(n *Node) bool {
		for _, p := range preds {
			if !p(n) {
				return false
			}
		}
		return true
	}
}

// Count drains a sequence.
func Count(seq iter.Seq[*Node]) int {
	n := 0
	for range seq {
		n++
	}
	return n
}

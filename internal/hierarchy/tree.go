package hierarchy

import (
	"github.com/google/uuid"

	"github.com/uplinepay/uplinepay-backend/internal/types"
)

// Node is a materialized tree node: one user plus its ordered children.
type Node struct {
	User     *types.User
	Children []*Node
}

// BuildTree assembles a forest from a flat record set. Two passes: the first
// indexes every record by id with an empty child list, so the input may
// arrive in any order (a child before its parent is fine); the second
// attaches each record to its parent when the parent is part of the input.
// A record with no parent, a parent equal to the viewer, or a parent absent
// from the input becomes a root of the result. The absent-parent case is a
// recovery policy, not an error: partial record sets are expected and an
// orphaned subtree should still render.
func BuildTree(records []*types.User, viewerID uuid.UUID) []*Node {
	index := make(map[uuid.UUID]*Node, len(records))
	for _, u := range records {
		if u == nil || u.ID == uuid.Nil {
			continue
		}
		index[u.ID] = &Node{User: u}
	}

	var roots []*Node
	for _, u := range records {
		if u == nil || u.ID == uuid.Nil {
			continue
		}
		node := index[u.ID]
		if u.ParentID == nil || *u.ParentID == viewerID {
			roots = append(roots, node)
			continue
		}
		parent, ok := index[*u.ParentID]
		if !ok {
			// Orphaned root: declared parent is outside this record set.
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	return roots
}

// Walk visits every node of the forest depth-first with its depth below the
// roots. An explicit stack keeps very deep hierarchies off the call stack.
func Walk(roots []*Node, visit func(n *Node, depth int)) {
	type frame struct {
		node  *Node
		depth int
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: roots[i], depth: 0})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(top.node, top.depth)
		for i := len(top.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: top.node.Children[i], depth: top.depth + 1})
		}
	}
}

// Count returns the number of nodes in the forest.
func Count(roots []*Node) int {
	total := 0
	Walk(roots, func(_ *Node, _ int) { total++ })
	return total
}

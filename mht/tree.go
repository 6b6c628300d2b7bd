package mht

import "github.com/google/uuid"

// unassignedGroupID is the sentinel group id a tree carries from creation
// until Engine.splitAndMergeGroups assigns it a real group id.
const unassignedGroupID = -1

// Tree is a track tree: a rooted tree whose paths are alternative
// interpretations of one target's history.
type Tree struct {
	UUID    uuid.UUID
	TrackID int
	Root    *Node
	GroupID int

	leaves []*Node
}

// newTree roots a fresh tree at time (spec section 4.6 step 1: new trees
// are rooted with timestamp current_time - 1).
func newTree(trackID int, time int) *Tree {
	t := &Tree{
		UUID:    uuid.New(),
		TrackID: trackID,
		GroupID: unassignedGroupID,
	}
	root := newNode(NodeRoot, nil, t, time)
	t.Root = root
	return t
}

// Leaves returns the tree's current active leaves.
func (t *Tree) Leaves() []*Node { return t.leaves }

// setLeaves replaces the tree's leaf list.
func (t *Tree) setLeaves(leaves []*Node) { t.leaves = leaves }

// depth returns the number of edges from root to the deepest leaf still
// tracing back to it (used for N-scanback pruning, spec 4.7).
func (t *Tree) depth() int {
	max := 0
	var walk func(n *Node, d int)
	walk = func(n *Node, d int) {
		if len(n.Children) == 0 {
			if d > max {
				max = d
			}
			return
		}
		for _, c := range n.Children {
			walk(c, d+1)
		}
	}
	walk(t.Root, 0)
	return max
}

// collectLeaves walks the tree from root and returns every current
// zero-children node, used to rebuild the engine's leaf list after a scan
// (spec section 4.6 step 11).
func (t *Tree) collectLeaves() []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if len(n.Children) == 0 {
			out = append(out, n)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
	return out
}

// leafReports returns the set of reports referenced by this tree's current
// leaves, used to compute group membership by shared-report relation.
func (t *Tree) leafReports() map[*Report]struct{} {
	out := make(map[*Report]struct{})
	for _, leaf := range t.leaves {
		if leaf.Report != nil {
			out[leaf.Report] = struct{}{}
		}
	}
	return out
}

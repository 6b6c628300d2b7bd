package mht

import "github.com/google/uuid"

// GHypo is one group hypothesis (G_HYPO): one mutually consistent
// selection of one leaf per tree in a group.
type GHypo struct {
	UUID uuid.UUID

	LogLikelihood float64
	// NumTHyposUsed records the number of member leaves at the time this
	// G_HYPO's assignment problem was built (spec section 4.7 step 1).
	// The engine itself detects a hypothesis invalidated by N-scanback
	// pruning through its leaves' removed flag, not through this count.
	NumTHyposUsed int

	// Leaves maps tree -> the one leaf of that tree this hypothesis
	// postulates. Invariant: no two leaves reference the same report.
	Leaves map[*Tree]*Node
}

func newGHypo() *GHypo {
	return &GHypo{UUID: uuid.New(), Leaves: make(map[*Tree]*Node)}
}

// setLeaf installs leaf as tree's member in this hypothesis, registering
// the bidirectional back-link.
func (g *GHypo) setLeaf(tree *Tree, leaf *Node) {
	g.Leaves[tree] = leaf
	leaf.addHypo(g)
}

// unlink removes every back-link this hypothesis holds, e.g. when it is
// discarded by pruning.
func (g *GHypo) unlink() {
	for _, leaf := range g.Leaves {
		leaf.removeHypo(g)
	}
	g.Leaves = nil
}

// recomputeLogLikelihood implements spec section 4.7 step 6: a G_HYPO's
// likelihood is the sum of its current leaf log-likelihoods.
func (g *GHypo) recomputeLogLikelihood() {
	total := 0.0
	for _, leaf := range g.Leaves {
		total += leaf.LogLikelihood
	}
	g.LogLikelihood = total
}

// remainingLeafLinks counts how many of this hypothesis's originally
// postulated leaves are still present after N-scanback pruning may have
// removed some of the tree's root children.
func (g *GHypo) remainingLeafLinks() int {
	n := 0
	for _, leaf := range g.Leaves {
		if !leaf.removed {
			n++
		}
	}
	return n
}

// Group is a set of trees whose leaves share at least one report,
// directly or transitively.
type Group struct {
	UUID  uuid.UUID
	ID    int
	Trees []*Tree
	Hypos []*GHypo
}

func newGroup(id int) *Group {
	return &Group{UUID: uuid.New(), ID: id}
}

// reports returns the union of reports referenced by every tree's
// current leaves in this group.
func (g *Group) reports() map[*Report]struct{} {
	out := make(map[*Report]struct{})
	for _, t := range g.Trees {
		for r := range t.leafReports() {
			out[r] = struct{}{}
		}
	}
	return out
}

// split partitions g into maximal sub-groups whose trees no longer share
// any report (spec section 4.6 step 6), via union-find over the
// shared-report relation. If g is already a single component, split
// returns a slice containing only g itself.
func (g *Group) split() []*Group {
	n := len(g.Trees)
	if n <= 1 {
		return []*Group{g}
	}
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	reportOwner := make(map[*Report]int)
	for i, t := range g.Trees {
		for r := range t.leafReports() {
			if owner, ok := reportOwner[r]; ok {
				union(owner, i)
			} else {
				reportOwner[r] = i
			}
		}
	}

	components := make(map[int][]*Tree)
	for i, t := range g.Trees {
		root := find(i)
		components[root] = append(components[root], t)
	}
	if len(components) <= 1 {
		return []*Group{g}
	}

	// Emit components in order of their first tree, not map order, so the
	// sub-group order (and which one keeps g's hypotheses) is stable.
	out := make([]*Group, 0, len(components))
	first := true
	emitted := make(map[int]bool, len(components))
	for i := range g.Trees {
		root := find(i)
		if emitted[root] {
			continue
		}
		emitted[root] = true
		trees := components[root]
		var sub *Group
		if first {
			sub = g
			sub.Trees = trees
			first = false
		} else {
			sub = newGroup(g.ID)
			sub.Trees = trees
		}
		out = append(out, sub)
	}
	return out
}

// mergeInto absorbs other's trees into g and cross-combines each of g's
// surviving hypotheses with each of other's into new hypotheses covering
// every tree of the merged group, capped at maxGHypos (spec section 4.6
// step 7: "G_HYPO count after merge is capped by pruning parameters").
// Old hypotheses on both sides are unlinked once replaced.
func (g *Group) mergeInto(other *Group, maxGHypos int) {
	g.Trees = append(g.Trees, other.Trees...)

	switch {
	case len(g.Hypos) == 0:
		g.Hypos = other.Hypos
	case len(other.Hypos) == 0:
		// g.Hypos already covers g's trees; nothing to combine.
	default:
		oldA, oldB := g.Hypos, other.Hypos
		merged := make([]*GHypo, 0, len(oldA)*len(oldB))
	outer:
		for _, ga := range oldA {
			for _, gb := range oldB {
				combined := newGHypo()
				for t, leaf := range ga.Leaves {
					combined.setLeaf(t, leaf)
				}
				for t, leaf := range gb.Leaves {
					combined.setLeaf(t, leaf)
				}
				combined.recomputeLogLikelihood()
				merged = append(merged, combined)
				if len(merged) >= maxGHypos {
					break outer
				}
			}
		}
		for _, ga := range oldA {
			ga.unlink()
		}
		for _, gb := range oldB {
			gb.unlink()
		}
		g.Hypos = merged
	}

	other.Trees = nil
	other.Hypos = nil
}

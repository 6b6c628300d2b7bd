package mht

import "github.com/google/uuid"

// NodeKind is the tag of the sum-typed track-tree node: the seven node
// kinds of spec section 4.5 share only four real behaviors (default
// children, report-linked children, verification, and printing), so they
// are re-expressed here as one struct with a kind tag instead of a class
// hierarchy.
type NodeKind int

const (
	NodeRoot NodeKind = iota
	NodeDummy
	NodeFalarm
	NodeStart
	NodeContinue
	NodeSkip
	NodeEnd
)

// String names the node kind for diagnostics. The track-file 'M'/'S'
// code is chosen separately, in Engine.verify.
func (k NodeKind) String() string {
	switch k {
	case NodeRoot:
		return "ROOT"
	case NodeDummy:
		return "DUMMY"
	case NodeFalarm:
		return "FALARM"
	case NodeStart:
		return "START"
	case NodeContinue:
		return "CONTINUE"
	case NodeSkip:
		return "SKIP"
	case NodeEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// Node is one track-hypothesis node (tree node) of spec section 3.
type Node struct {
	UUID uuid.UUID
	Kind NodeKind
	Tree *Tree

	// Time is the scan at which this node was created.
	Time int

	// Report is the at-most-one report this node is linked to (set on
	// FALARM, START and measured CONTINUE nodes).
	Report *Report

	// State is non-nil for START, CONTINUE and SKIP nodes.
	State MotionState

	// Model is the model that produced State; nil unless State is set.
	// Carried on the node because generating a node's own default and
	// report-linked children (spec section 4.5) needs to consult the
	// same model that produced its state.
	Model Model

	// LogLikelihood is the cumulative path likelihood from the tree root
	// to this node.
	LogLikelihood float64

	EndsTrack  bool
	MustVerify bool

	Parent   *Node
	Children []*Node

	// hypos is the bidirectional link-set back to every G_HYPO currently
	// postulating this node as a leaf (spec section 9).
	hypos map[*GHypo]struct{}

	// removed marks a subtree collapsed away by N-scanback pruning
	// (spec section 4.7 step 3), so any older G_HYPO still referencing it
	// can be detected as stale and discarded (step 4) instead of feeding
	// a dead leaf into the next assignment problem.
	removed bool
}

func newNode(kind NodeKind, parent *Node, tree *Tree, time int) *Node {
	n := &Node{
		UUID:  uuid.New(),
		Kind:  kind,
		Tree:  tree,
		Time:  time,
		Parent: parent,
		hypos: make(map[*GHypo]struct{}),
	}
	switch kind {
	case NodeDummy, NodeFalarm, NodeEnd:
		n.EndsTrack = true
	}
	switch kind {
	case NodeFalarm, NodeStart, NodeContinue, NodeSkip, NodeEnd:
		n.MustVerify = true
	}
	return n
}

// addChild links child under n.
func (n *Node) addChild(child *Node) {
	n.Children = append(n.Children, child)
}

// IsLeaf reports whether n currently has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// IsActive reports whether n carries a motion state and can spawn
// continuations (START, CONTINUE, SKIP).
func (n *Node) IsActive() bool {
	switch n.Kind {
	case NodeStart, NodeContinue, NodeSkip:
		return true
	default:
		return false
	}
}

// addHypo registers g as postulating n as a leaf.
func (n *Node) addHypo(g *GHypo) { n.hypos[g] = struct{}{} }

// removeHypo unregisters g.
func (n *Node) removeHypo(g *GHypo) { delete(n.hypos, g) }

// postulated reports whether any live G_HYPO still postulates n.
func (n *Node) postulated() bool { return len(n.hypos) > 0 }

// removable implements spec section 3's node removal precondition: not
// postulated by any live group hypothesis, and no live children.
func (n *Node) removable() bool {
	return !n.postulated() && len(n.Children) == 0
}

// newRootDummyChild builds ROOT's fixed single DUMMY child.
func newRootDummyChild(root *Node, time int) *Node {
	c := newNode(NodeDummy, root, root.Tree, time)
	c.LogLikelihood = root.LogLikelihood
	return c
}

// newFalarmChild builds a ROOT's FALARM child linked to report.
func newFalarmChild(root *Node, report *Report, logLikelihood float64, time int) *Node {
	c := newNode(NodeFalarm, root, root.Tree, time)
	c.Report = report
	c.LogLikelihood = logLikelihood
	report.ref()
	return c
}

// newStartChild builds a ROOT's START child linked to report and state.
// Per spec section 4.5, START uses its state's own log-likelihood
// directly rather than adding to the parent's (ROOT's cumulative
// log-likelihood is always 0, so this is also just an absolute value).
func newStartChild(root *Node, report *Report, model Model, state MotionState, time int) *Node {
	c := newNode(NodeStart, root, root.Tree, time)
	c.Report = report
	c.State = state
	c.Model = model
	c.LogLikelihood = state.LogLikelihood()
	report.ref()
	return c
}

// newDummyFromTerminal builds the single DUMMY child of a DUMMY, FALARM
// or END node.
func newDummyFromTerminal(parent *Node, time int) *Node {
	c := newNode(NodeDummy, parent, parent.Tree, time)
	c.LogLikelihood = parent.LogLikelihood
	return c
}

// newEndChild builds an active node's END child. increment is the
// caller-computed sum of per-step contributions (spec section 4.5:
// "CONTINUE/SKIP/END add appropriate continue/skip/detect/end
// probabilities ... to the parent's cumulative log-likelihood") — here,
// the end log-likelihood evaluated at the parent's state.
func newEndChild(parent *Node, increment float64, time int) *Node {
	c := newNode(NodeEnd, parent, parent.Tree, time)
	c.LogLikelihood = parent.LogLikelihood + increment
	return c
}

// newSkipChild builds an active node's SKIP child from a model-produced
// skip state. increment is continueLL(parent state) + skipLL(parent
// state); the skip branch's own state log-likelihood is always 0 (spec
// section 4.4).
func newSkipChild(parent *Node, increment float64, model Model, state MotionState, time int) *Node {
	c := newNode(NodeSkip, parent, parent.Tree, time)
	c.State = state
	c.Model = model
	c.LogLikelihood = parent.LogLikelihood + increment
	return c
}

// newContinueChild builds an active node's CONTINUE child from a
// model-produced measured state, linked to report. increment is
// continueLL(parent state) + detectLL(parent state) + state's own
// log-likelihood.
func newContinueChild(parent *Node, report *Report, increment float64, model Model, state MotionState, time int) *Node {
	c := newNode(NodeContinue, parent, parent.Tree, time)
	c.Report = report
	c.State = state
	c.Model = model
	c.LogLikelihood = parent.LogLikelihood + increment
	report.ref()
	return c
}

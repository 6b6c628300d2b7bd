package mht

import (
	"math"
	"sort"
)

// freshTrackFallbackLL is the assignment-matrix cost for a brand-new
// candidate tree losing its own detection to a competing continuation
// from an older track sharing the same group: the candidate track simply
// never happened, at no cost, exactly like a terminal node's default
// successor. It is never the only route a detection's own row can take
// (Problem.SetFalseAlarm is never called, so a report can only be routed
// through a real leaf's measured or skip cell), so this cannot be used to
// "walk away" from a detection that has no other claimant.
const freshTrackFallbackLL = 0

// DetectionInput is one point-feature detection as read from an input
// detection-frame file (spec section 6).
type DetectionInput struct {
	X, Y        float64
	Texture     []float64 // 25-element, row-major 5x5 grid
	FrameNo     int
	DetectionID uint64
}

// Batch is one frame's worth of detections, as enqueued via AddReports.
// TimeDelta is carried through from the frame-sequence control file but,
// like the reference tracker's CONSTVEL_STATE::setup, is not consulted by
// the constant-velocity model's Kalman propagation, which always treats
// consecutive scans as one time unit apart.
type Batch struct {
	TimeDelta  float64
	Detections []DetectionInput
}

// ScanStatus is the outcome of one Engine.Scan call.
type ScanStatus int

const (
	ScanIdle ScanStatus = iota
	ScanProcessed
)

// Engine is the single-threaded, synchronous MHT engine of spec section
// 4.6: it owns the track forest, the group/hypothesis structure, and the
// pending detection-batch queue, and advances one batch per Scan call.
type Engine struct {
	models       []Model
	maxDepth     int
	minLogRatio  float64
	maxGHypos    int
	falseAlarmLL float64
	scanEndTime  int

	currentTime int
	lastTrackID int
	firstScan   bool

	trees  []*Tree
	groups []*Group
	leaves []*Node

	oldReports []*Report
	pending    []Batch

	collector *Collector
}

// NewEngine constructs an Engine per spec section 6's inbound API.
func NewEngine(maxDepth int, minGHypoRatio float64, maxGHypos int, models []Model, falseAlarmLogLikelihood float64, scanEndTime int) *Engine {
	return &Engine{
		models:       models,
		maxDepth:     maxDepth,
		minLogRatio:  logSafe(minGHypoRatio),
		maxGHypos:    maxGHypos,
		falseAlarmLL: falseAlarmLogLikelihood,
		scanEndTime:  scanEndTime,
		firstScan:    true,
		collector:    NewCollector(),
	}
}

// NewEngineFromParams builds an Engine wired to a single constant-velocity
// model from a loaded parameter file, mirroring the reference tracker's
// CORNER_TRACK_MHT(param.meanFalarms, param.maxDepth, param.minGHypoRatio,
// param.maxGHypos, mdl) construction: meanFalarms is used directly as a
// probability and log'd once into the engine-wide false-alarm
// log-likelihood shared by every report.
func NewEngineFromParams(p *Params) *Engine {
	model := NewCVModel(p.CVModelParams())
	return NewEngine(p.MaxDepth, p.MinGHypoRatio, p.MaxGHypos, []Model{model}, logSafe(p.MeanFalarms), p.EndScan)
}

// ScanEndTime returns the configured host-loop bound (spec section 6:
// "host typically loops until current_time > scan_end_time").
func (e *Engine) ScanEndTime() int { return e.scanEndTime }

// CurrentTime returns the engine's scan counter.
func (e *Engine) CurrentTime() int { return e.currentTime }

// AddReports enqueues one frame's detections.
func (e *Engine) AddReports(batch Batch) { e.pending = append(e.pending, batch) }

// Scan processes the next queued batch, or returns ScanIdle if the queue
// is empty (spec section 4.6 precondition).
func (e *Engine) Scan() (ScanStatus, error) {
	if len(e.pending) == 0 {
		return ScanIdle, nil
	}
	batch := e.pending[0]
	e.pending = e.pending[1:]
	if err := e.processBatch(batch); err != nil {
		return ScanIdle, err
	}
	return ScanProcessed, nil
}

// Tracks returns every verified track (spec section 4.8).
func (e *Engine) Tracks() []*Track { return e.collector.Tracks() }

// FalseAlarms returns every verified false alarm.
func (e *Engine) FalseAlarms() []FalseAlarm { return e.collector.FalseAlarms() }

// candidateColumn holds one tree's candidate children for the current
// scan, collapsed to its best "no detection claimed" alternative and its
// best per-report claim, ready to seed one column of an assignment
// Problem (spec section 4.7 step 1).
type candidateColumn struct {
	skipNode   *Node
	skipLL     float64
	measured   map[*Report]*Node
	measuredLL map[*Report]float64
}

func newCandidateColumn() *candidateColumn {
	return &candidateColumn{measured: map[*Report]*Node{}, measuredLL: map[*Report]float64{}}
}

func isFiniteLL(x float64) bool { return !math.IsInf(x, 0) && !math.IsNaN(x) }

// processBatch runs spec section 4.6 steps 1-12 for one batch.
func (e *Engine) processBatch(batch Batch) error {
	now := e.currentTime
	rootTime := now - 1

	newReports := make([]*Report, 0, len(batch.Detections))
	for i, d := range batch.Detections {
		r := NewReport(d.X, d.Y, d.Texture, d.FrameNo, d.DetectionID, e.falseAlarmLL)
		r.row = i
		newReports = append(newReports, r)
	}
	e.oldReports = append(e.oldReports, newReports...)

	columns := make(map[*Node]*candidateColumn)
	childrenByTree := make(map[*Tree][]*Node)

	// Step 1a: existing leaves spawn default and report-linked children.
	for _, leaf := range e.leaves {
		col := newCandidateColumn()
		e.spawnDefaultChildren(leaf, now, col)
		if leaf.IsActive() {
			for _, r := range newReports {
				e.spawnMeasuredChild(leaf, r, now, col)
			}
		}
		columns[leaf] = col
		childrenByTree[leaf.Tree] = append(childrenByTree[leaf.Tree], leaf.Children...)
	}

	// Step 1b + step 4: a fresh singleton tree and group per detection.
	for _, r := range newReports {
		e.lastTrackID++
		t := newTree(e.lastTrackID, rootTime)
		e.trees = append(e.trees, t)
		root := t.Root

		dummy := newRootDummyChild(root, now)
		root.addChild(dummy)

		falarm := newFalarmChild(root, r, e.falseAlarmLL, now)
		root.addChild(falarm)
		best, bestLL := falarm, e.falseAlarmLL

		for _, m := range e.models {
			if !m.AllowsNewTrackAt(e.firstScan) {
				continue
			}
			n := m.BeginNewStates(nil, r)
			for i := 0; i < n; i++ {
				st, ok := m.GetNewState(i, nil, r)
				if !ok {
					continue
				}
				start := newStartChild(root, r, m, st, now)
				root.addChild(start)
				if start.LogLikelihood > bestLL {
					best, bestLL = start, start.LogLikelihood
				}
			}
			m.EndNewStates()
		}

		col := newCandidateColumn()
		col.skipNode, col.skipLL = dummy, freshTrackFallbackLL
		col.measured[r] = best
		col.measuredLL[r] = bestLL
		columns[root] = col
		childrenByTree[t] = root.Children

		g := newGroup(0)
		g.Trees = []*Tree{t}
		hypo := newGHypo()
		hypo.setLeaf(t, root)
		g.Hypos = []*GHypo{hypo}
		e.groups = append(e.groups, g)
	}

	for tr, children := range childrenByTree {
		tr.setLeaves(children)
	}

	// Steps 5-7: relabel by regrouping from scratch via split then merge
	// on the current shared-report relation; this reaches the same
	// partition as iterative report-by-report relabeling without
	// re-deriving it procedurally.
	e.splitAndMergeGroups()

	// Step 8 (spec section 4.7).
	for _, g := range e.groups {
		if err := e.hypothesizeGroup(g, columns); err != nil {
			return err
		}
	}

	e.reclaim()
	e.verifyAndPopRoots()
	e.rebuildLeaves()

	e.currentTime = now + 1
	e.firstScan = false
	return nil
}

// spawnDefaultChildren builds leaf's kind-driven default children (spec
// section 4.5's "default children" column) and records the best
// "no detection claimed" alternative into col.
func (e *Engine) spawnDefaultChildren(leaf *Node, now int, col *candidateColumn) {
	switch leaf.Kind {
	case NodeRoot, NodeDummy, NodeFalarm, NodeEnd:
		child := newDummyFromTerminal(leaf, now)
		leaf.addChild(child)
		col.skipNode, col.skipLL = child, 0
	case NodeStart, NodeContinue, NodeSkip:
		model, state := leaf.Model, leaf.State

		var bestNode *Node
		bestLL := math.Inf(-1)

		if endLL := model.EndLogLikelihood(state); isFiniteLL(endLL) {
			end := newEndChild(leaf, endLL, now)
			leaf.addChild(end)
			bestNode, bestLL = end, endLL
		}

		if continueLL := model.ContinueLogLikelihood(state); isFiniteLL(continueLL) {
			skipLL := model.SkipLogLikelihood(state)
			n := model.BeginNewStates(state, nil)
			for i := 0; i < n; i++ {
				st, ok := model.GetNewState(i, state, nil)
				if !ok {
					continue
				}
				inc := continueLL + skipLL
				child := newSkipChild(leaf, inc, model, st, now)
				leaf.addChild(child)
				if inc > bestLL {
					bestNode, bestLL = child, inc
				}
			}
			model.EndNewStates()
		}

		if bestNode != nil {
			col.skipNode, col.skipLL = bestNode, bestLL
		}
	}
}

// spawnMeasuredChild attempts leaf's measured continuation against report
// r (spec section 4.5's "report-linked children" for active kinds),
// recording the best candidate into col.
func (e *Engine) spawnMeasuredChild(leaf *Node, r *Report, now int, col *candidateColumn) {
	model, state := leaf.Model, leaf.State
	n := model.BeginNewStates(state, r)
	var best *Node
	bestLL := math.Inf(-1)
	for i := 0; i < n; i++ {
		st, ok := model.GetNewState(i, state, r)
		if !ok {
			continue
		}
		continueLL := model.ContinueLogLikelihood(state)
		detectLL := model.DetectLogLikelihood(state)
		inc := continueLL + detectLL + st.LogLikelihood()
		child := newContinueChild(leaf, r, inc, model, st, now)
		leaf.addChild(child)
		if inc > bestLL {
			best, bestLL = child, inc
		}
	}
	model.EndNewStates()
	if best != nil {
		col.measured[r] = best
		col.measuredLL[r] = bestLL
	}
}

// splitAndMergeGroups implements spec section 4.6 steps 6-7: split every
// group into report-connected components, then merge components that now
// share a report across former group boundaries, and settle group ids.
func (e *Engine) splitAndMergeGroups() {
	var split []*Group
	for _, g := range e.groups {
		split = append(split, g.split()...)
	}
	e.groups = split

	n := len(e.groups)
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
	for i, g := range e.groups {
		for r := range g.reports() {
			if owner, ok := reportOwner[r]; ok {
				union(owner, i)
			} else {
				reportOwner[r] = i
			}
		}
	}

	components := make(map[int][]int)
	for i := range e.groups {
		root := find(i)
		components[root] = append(components[root], i)
	}

	// components is keyed by union-find root, so ranging over it directly
	// would order the merged groups arbitrarily; sort the roots first so
	// group IDs (and the hypothesizeGroup iteration order that follows)
	// are stable across runs on identical input.
	roots := make([]int, 0, len(components))
	for root := range components {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	merged := make([]*Group, 0, len(components))
	for _, root := range roots {
		idxs := components[root]
		base := e.groups[idxs[0]]
		for _, idx := range idxs[1:] {
			base.mergeInto(e.groups[idx], e.maxGHypos)
		}
		merged = append(merged, base)
	}

	for i, g := range merged {
		g.ID = i
		for _, t := range g.Trees {
			t.GroupID = i
		}
	}
	e.groups = merged
}

// byTrackID sorts a (trees, leaves) pair in lockstep by tree TrackID, so a
// hypothesis's leaves - originally gathered from map iteration - get a
// deterministic column order before seeding an assignment Problem.
type byTrackID struct {
	trees  []*Tree
	leaves []*Node
}

func (s byTrackID) Len() int { return len(s.trees) }
func (s byTrackID) Less(i, j int) bool { return s.trees[i].TrackID < s.trees[j].TrackID }
func (s byTrackID) Swap(i, j int) {
	s.trees[i], s.trees[j] = s.trees[j], s.trees[i]
	s.leaves[i], s.leaves[j] = s.leaves[j], s.leaves[i]
}

// hypothesizeGroup implements spec section 4.7 for one group.
func (e *Engine) hypothesizeGroup(g *Group, columns map[*Node]*candidateColumn) error {
	if len(g.Hypos) == 0 {
		return nil
	}
	oldHypos := g.Hypos

	type branch struct {
		trees   []*Tree
		enum    *AssignmentEnumerator
		pending *Assignment
	}
	var branches []*branch
	var newHypos []*GHypo
	bestLL := math.Inf(-1)

	for _, hypo := range oldHypos {
		stale := false
		for _, leaf := range hypo.Leaves {
			if leaf.removed {
				stale = true
				break
			}
		}
		if stale {
			hypo.unlink()
			continue
		}

		hypo.NumTHyposUsed = len(hypo.Leaves)

		trees := make([]*Tree, 0, len(hypo.Leaves))
		leaves := make([]*Node, 0, len(hypo.Leaves))
		for t, leaf := range hypo.Leaves {
			trees = append(trees, t)
			leaves = append(leaves, leaf)
		}
		// hypo.Leaves is a map, so trees/leaves come out in an arbitrary
		// order; sort by TrackID so the assignment problem's column
		// indices - and therefore the enumerator's insertion-order
		// tie-breaking - are stable across runs on identical input.
		sort.Sort(byTrackID{trees, leaves})

		reportSet := map[*Report]struct{}{}
		for _, leaf := range leaves {
			if col := columns[leaf]; col != nil {
				for r := range col.measured {
					reportSet[r] = struct{}{}
				}
			}
		}
		reports := make([]*Report, 0, len(reportSet))
		for r := range reportSet {
			reports = append(reports, r)
		}
		sort.Slice(reports, func(i, j int) bool { return reports[i].row < reports[j].row })

		problem := NewProblem(len(reports), len(leaves))
		for j, leaf := range leaves {
			col := columns[leaf]
			if col == nil {
				continue
			}
			if col.skipNode != nil {
				problem.SetSkip(j, col.skipLL, col.skipNode)
			}
			for i, r := range reports {
				if node, ok := col.measured[r]; ok {
					problem.SetMeasured(i, j, col.measuredLL[r], node)
				}
			}
		}

		enum, err := NewAssignmentEnumerator(problem)
		if err != nil {
			return err
		}
		first, ok, err := enum.Next()
		hypo.unlink()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		newHypo := newGHypo()
		for j, t := range trees {
			if child, present := first.LeafChild[j]; present {
				newHypo.setLeaf(t, child)
			}
		}
		newHypo.recomputeLogLikelihood()
		newHypos = append(newHypos, newHypo)
		if newHypo.LogLikelihood > bestLL {
			bestLL = newHypo.LogLikelihood
		}

		b := &branch{trees: trees, enum: enum}
		next, ok, err := enum.Next()
		if err != nil {
			return err
		}
		if ok {
			b.pending = next
		}
		branches = append(branches, b)
	}

	for len(newHypos) < e.maxGHypos {
		bestIdx := -1
		bestPending := math.Inf(-1)
		for i, b := range branches {
			if b.pending != nil && b.pending.TotalLogLikelihood > bestPending {
				bestPending = b.pending.TotalLogLikelihood
				bestIdx = i
			}
		}
		if bestIdx == -1 || bestPending < e.minLogRatio+bestLL {
			break
		}

		b := branches[bestIdx]
		newHypo := newGHypo()
		for j, t := range b.trees {
			if child, present := b.pending.LeafChild[j]; present {
				newHypo.setLeaf(t, child)
			}
		}
		newHypo.recomputeLogLikelihood()
		newHypos = append(newHypos, newHypo)

		next, ok, err := b.enum.Next()
		if err != nil {
			return err
		}
		b.pending = nil
		if ok {
			b.pending = next
		}
	}

	g.Hypos = newHypos

	// N-scanback pruning (spec section 4.7 step 3): once a tree has grown
	// past the depth budget, collapse it to the single branch consistent
	// with the group's single most likely surviving hypothesis, marking
	// every sibling branch removed so any hypothesis still depending on it
	// is caught as stale on its next assignment round (step 4).
	if len(newHypos) > 0 {
		var best *GHypo
		for _, h := range newHypos {
			if best == nil || h.LogLikelihood > best.LogLikelihood {
				best = h
			}
		}
		for _, t := range g.Trees {
			if t.depth() > e.maxDepth {
				scanbackPrune(t, best.Leaves[t])
			}
		}
	}

	return nil
}

// scanbackPrune implements N-scanback pruning (spec section 4.7 step 3):
// collapse tree's root to the single child leading to keepLeaf, marking
// every other branch removed so stale hypotheses referencing it can be
// detected (step 4).
func scanbackPrune(t *Tree, keepLeaf *Node) {
	if keepLeaf == nil {
		return
	}
	onPath := map[*Node]bool{}
	for n := keepLeaf; n != nil; n = n.Parent {
		onPath[n] = true
	}
	var keepChild *Node
	for _, c := range t.Root.Children {
		if onPath[c] {
			keepChild = c
		}
	}
	if keepChild == nil {
		return
	}
	for _, c := range t.Root.Children {
		if c != keepChild {
			markRemoved(c)
		}
	}
	t.Root.Children = []*Node{keepChild}
}

func markRemoved(n *Node) {
	n.removed = true
	for _, c := range n.Children {
		markRemoved(c)
	}
}

// reclaim implements spec section 4.6 step 9.
func (e *Engine) reclaim() {
	for _, t := range e.trees {
		reclaimChildren(t.Root)
	}

	live := e.oldReports[:0]
	for _, r := range e.oldReports {
		if r.live() {
			live = append(live, r)
		}
	}
	e.oldReports = live

	var groups []*Group
	for _, g := range e.groups {
		if len(g.Trees) > 0 {
			groups = append(groups, g)
		}
	}
	e.groups = groups
}

// reclaimChildren removes n's children that are neither postulated nor
// themselves parents, post-order (spec section 4.6 step 9).
func reclaimChildren(n *Node) {
	for _, c := range n.Children {
		reclaimChildren(c)
	}
	kept := n.Children[:0]
	for _, c := range n.Children {
		if c.removable() {
			if c.Report != nil {
				c.Report.unref()
			}
			continue
		}
		kept = append(kept, c)
	}
	n.Children = kept
}

// verifyAndPopRoots implements spec section 4.6 step 10.
func (e *Engine) verifyAndPopRoots() {
	for _, t := range e.trees {
		for len(t.Root.Children) == 1 && !t.Root.EndsTrack {
			root := t.Root
			if root.MustVerify {
				e.verify(t, root)
			}
			child := root.Children[0]
			child.Parent = nil
			t.Root = child
			if root.Report != nil {
				root.Report.unref()
			}
		}
		if t.Root.EndsTrack && t.Root.MustVerify {
			e.verify(t, t.Root)
		}
	}
}

// verify emits the collector record for a must-verify node (spec section
// 4.8), then clears MustVerify so a terminal node left sitting at the
// root of its tree (FALARM, END; DUMMY never carries MustVerify) is never
// re-emitted on a later scan.
func (e *Engine) verify(t *Tree, n *Node) {
	n.MustVerify = false
	switch n.Kind {
	case NodeFalarm:
		e.collector.recordFalseAlarm(FalseAlarm{
			ReportX:  n.Report.X,
			ReportY:  n.Report.Y,
			FrameNo:  n.Report.FrameNo,
			CornerID: n.Report.DetectionID,
		})
	case NodeStart, NodeContinue:
		e.recordElement(t, n, 'M')
	case NodeSkip:
		e.recordElement(t, n, 'S')
	}
}

func (e *Engine) recordElement(t *Tree, n *Node, code byte) {
	el := TrackElement{
		Code:          code,
		LogLikelihood: n.LogLikelihood,
		Time:          n.Time,
	}
	if n.Model != nil {
		el.ModelType = n.Model.Name()
	}
	if n.Report != nil {
		el.ReportX, el.ReportY = n.Report.X, n.Report.Y
		el.FrameNo = n.Report.FrameNo
		el.CornerID = n.Report.DetectionID
	}
	if st, ok := n.State.(*CVState); ok {
		el.StateX, el.StateY = st.X(), st.Y()
	}
	e.collector.recordElement(t.TrackID, el)
}

// rebuildLeaves implements spec section 4.6 step 11, dropping any tree
// whose root has resolved to a terminal node (DUMMY/FALARM/END) with no
// successor left: that tree is finished and already fully verified. A
// root sitting on an active (START/CONTINUE/SKIP) state with no children
// yet is not abandoned, just not grown past this scan, and is kept as
// that tree's sole current leaf.
func (e *Engine) rebuildLeaves() {
	trees := e.trees[:0]
	var leaves []*Node
	for _, t := range e.trees {
		if t.Root.EndsTrack && len(t.Root.Children) == 0 {
			continue
		}
		trees = append(trees, t)
		ls := t.collectLeaves()
		t.setLeaves(ls)
		leaves = append(leaves, ls...)
	}
	e.trees = trees
	e.leaves = leaves
}

// Clear drains every remaining tree, collapsing depth budgets from
// max_depth down to 0 (spec section 5: "clear() flushes all remaining
// trees by iteratively verifying roots with depth budget descending from
// max_depth to 0").
func (e *Engine) Clear() {
	for depth := e.maxDepth; depth >= 0; depth-- {
		for _, t := range e.trees {
			if t.depth() > depth {
				scanbackPrune(t, bestLeaf(t))
			}
		}
		e.reclaim()
		e.verifyAndPopRoots()
	}
	// Any root still sitting on an unconfirmed active state (no
	// ambiguity left to force with a smaller depth budget, just never
	// grown a successor because the input ended) is its track's final,
	// still-live state and gets verified directly.
	for _, t := range e.trees {
		if t.Root.MustVerify {
			e.verify(t, t.Root)
		}
	}
	e.rebuildLeaves()
}

func bestLeaf(t *Tree) *Node {
	var best *Node
	for _, l := range t.collectLeaves() {
		if best == nil || l.LogLikelihood > best.LogLikelihood {
			best = l
		}
	}
	return best
}

package mht

import (
	"container/heap"
	"sort"

	hungarian "github.com/arthurkushman/go-hungarian"
)

// negInf is a large finite penalty standing in for -Inf inside the
// assignment matrix. A true IEEE -Inf would turn any subtraction Murty's
// partitioning performs into NaN, so a big finite sentinel is used instead
// and any solution that lands on one is discarded as infeasible.
const negInf = -1e15

// AssignmentCell is one entry of an assignment Problem: the log-likelihood
// of picking this (detection, leaf) pairing and the tree-node payload that
// pairing would install as the leaf's next child.
type AssignmentCell struct {
	LogLikelihood float64
	Payload       *Node
}

// Problem is a k-best assignment problem per spec section 4.2, held as a
// square (nDet+nLeaf) x (nDet+nLeaf) matrix: rows are detections plus one
// virtual "skip" row per leaf, columns are leaves plus one virtual
// "false alarm" column per detection.
type Problem struct {
	nDet, nLeaf int
	size        int
	cost        [][]float64
	payload     [][]*Node
}

// NewProblem allocates a Problem for nDet detections against nLeaf leaves.
func NewProblem(nDet, nLeaf int) *Problem {
	size := nDet + nLeaf
	cost := make([][]float64, size)
	payload := make([][]*Node, size)
	for i := range cost {
		cost[i] = make([]float64, size)
		payload[i] = make([]*Node, size)
		for j := range cost[i] {
			cost[i][j] = negInf
		}
	}
	// Bottom-right block: dummy row (leaf skip slot) paired with dummy
	// column (detection false-alarm slot). Always feasible, contributes 0.
	for i := nDet; i < size; i++ {
		for j := nLeaf; j < size; j++ {
			cost[i][j] = 0
		}
	}
	return &Problem{nDet: nDet, nLeaf: nLeaf, size: size, cost: cost, payload: payload}
}

// SetMeasured records the log-likelihood and payload of detection i being
// assigned to leaf j (i.e. leaf j's measured/CONTINUE child for report i).
// Leave a pair unset (or pass a rejected cell) to model a gated-out pair.
func (p *Problem) SetMeasured(i, j int, logLikelihood float64, payload *Node) {
	p.cost[i][j] = logLikelihood
	p.payload[i][j] = payload
}

// SetFalseAlarm records the cost of detection i being left unclaimed by
// every leaf in this group (it is scored elsewhere, by its own tree's
// FALARM node, so this is ordinarily 0).
func (p *Problem) SetFalseAlarm(i int, logLikelihood float64) {
	p.cost[i][p.nLeaf+i] = logLikelihood
}

// SetSkip records the log-likelihood of leaf j's own SKIP child, chosen
// when no detection is assigned to it.
func (p *Problem) SetSkip(j int, logLikelihood float64, payload *Node) {
	p.cost[p.nDet+j][j] = logLikelihood
	p.payload[p.nDet+j][j] = payload
}

// Assignment maps leaf index -> chosen child node for one solution, plus
// the set of detection indices left unclaimed by every leaf.
type Assignment struct {
	TotalLogLikelihood float64
	LeafChild          map[int]*Node
	Unclaimed          []int
}

func (p *Problem) toAssignment(rowToCol map[int]int) *Assignment {
	a := &Assignment{LeafChild: make(map[int]*Node, p.nLeaf)}
	total := 0.0
	for row, col := range rowToCol {
		total += p.cost[row][col]
		switch {
		case row < p.nDet && col < p.nLeaf:
			a.LeafChild[col] = p.payload[row][col]
		case row < p.nDet && col >= p.nLeaf:
			a.Unclaimed = append(a.Unclaimed, row)
		case row >= p.nDet && col < p.nLeaf:
			a.LeafChild[col] = p.payload[row][col]
		default:
			// dummy-dummy filler, no consequence
		}
	}
	sort.Ints(a.Unclaimed)
	a.TotalLogLikelihood = total
	return a
}

// murtyNode is one partition in Murty's ranking algorithm: a set of rows
// forced onto specific columns (with their cost already booked), a set of
// additionally forbidden (row, col) pairs within the remaining free
// submatrix, and the best completion of that free submatrix.
type murtyNode struct {
	forced      map[int]int
	forcedCost  float64
	forbidden   map[int]map[int]bool
	freeRows    []int
	freeCols    []int
	freeSol     map[int]int // freeRow -> freeCol, best completion
	total       float64
	seq         int
}

type murtyHeap []*murtyNode

func (h murtyHeap) Len() int { return len(h) }
func (h murtyHeap) Less(i, j int) bool {
	if h[i].total != h[j].total {
		return h[i].total > h[j].total
	}
	return h[i].seq < h[j].seq
}
func (h murtyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *murtyHeap) Push(x any)   { *h = append(*h, x.(*murtyNode)) }
func (h *murtyHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// AssignmentEnumerator produces solutions to a Problem in strict
// non-increasing total-likelihood order via Murty's algorithm, using the
// Hungarian solver as the per-partition subroutine, matching the way
// ByteTracker feeds a zero-padded IoU matrix to hungarian.SolveMax.
type AssignmentEnumerator struct {
	problem *Problem
	heap    murtyHeap
	nextSeq int
}

// NewAssignmentEnumerator constructs an enumerator over problem, seeding
// the heap with the globally best assignment.
func NewAssignmentEnumerator(problem *Problem) (*AssignmentEnumerator, error) {
	e := &AssignmentEnumerator{problem: problem}
	if problem.size == 0 {
		return e, nil
	}
	root := &murtyNode{
		forced:    map[int]int{},
		forbidden: map[int]map[int]bool{},
		freeRows:  seqInts(problem.size),
		freeCols:  seqInts(problem.size),
	}
	if err := e.solveFree(root); err != nil {
		return nil, err
	}
	if root.freeSol != nil {
		root.seq = e.nextSeq
		e.nextSeq++
		heap.Init(&e.heap)
		heap.Push(&e.heap, root)
	}
	return e, nil
}

func seqInts(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// solveFree runs the Hungarian solver over node's free rows/cols (with
// forbidden pairs masked out) and fills in node.freeSol and node.total.
// If the free submatrix has no feasible perfect matching, node.freeSol is
// left nil.
func (e *AssignmentEnumerator) solveFree(node *murtyNode) error {
	n := len(node.freeRows)
	if n == 0 {
		node.freeSol = map[int]int{}
		node.total = node.forcedCost
		return nil
	}
	sub := make([][]float64, n)
	for i, r := range node.freeRows {
		row := make([]float64, n)
		for j, c := range node.freeCols {
			v := e.problem.cost[r][c]
			if node.forbidden[r] != nil && node.forbidden[r][c] {
				v = negInf
			}
			row[j] = v
		}
		sub[i] = row
	}
	assignments := hungarian.SolveMax(sub)
	if len(assignments) < n {
		node.freeSol = nil
		return nil
	}
	sol := make(map[int]int, n)
	freeCost := 0.0
	for subRow, cols := range assignments {
		for subCol := range cols {
			r := node.freeRows[subRow]
			c := node.freeCols[subCol]
			if node.forbidden[r] != nil && node.forbidden[r][c] {
				node.freeSol = nil
				return nil
			}
			v := e.problem.cost[r][c]
			if v <= negInf/2 {
				node.freeSol = nil
				return nil
			}
			sol[r] = c
			freeCost += v
			break
		}
	}
	if len(sol) != n {
		node.freeSol = nil
		return nil
	}
	node.freeSol = sol
	node.total = node.forcedCost + freeCost
	return nil
}

// Next returns the next-best feasible assignment, or ok=false once the
// enumerator is exhausted.
func (e *AssignmentEnumerator) Next() (*Assignment, bool, error) {
	if e.heap.Len() == 0 {
		return nil, false, nil
	}
	best := heap.Pop(&e.heap).(*murtyNode)

	full := make(map[int]int, e.problem.size)
	for r, c := range best.forced {
		full[r] = c
	}
	for r, c := range best.freeSol {
		full[r] = c
	}
	assignment := e.problem.toAssignment(full)

	// Partition (Murty): order free rows ascending, and for the k-th row
	// branch a child that locks rows before it to this solution's picks,
	// forbids this row's pick, and leaves rows from k onward free.
	order := append([]int(nil), best.freeRows...)
	sort.Ints(order)
	usedCols := map[int]bool{}
	prefixCost := 0.0
	for k, r := range order {
		c := best.freeSol[r]
		child := &murtyNode{
			forced:     copyIntMap(best.forced),
			forcedCost: best.forcedCost + prefixCost,
			forbidden:  copyForbidden(best.forbidden),
		}
		for _, ur := range order[:k] {
			child.forced[ur] = best.freeSol[ur]
		}
		if child.forbidden[r] == nil {
			child.forbidden[r] = map[int]bool{}
		}
		child.forbidden[r][c] = true
		child.freeRows = append([]int(nil), order[k:]...)

		remainingCols := make([]int, 0, len(best.freeCols))
		for _, fc := range best.freeCols {
			if usedCols[fc] {
				continue
			}
			remainingCols = append(remainingCols, fc)
		}
		child.freeCols = remainingCols

		if err := e.solveFree(child); err != nil {
			return nil, false, err
		}
		if child.freeSol != nil {
			child.seq = e.nextSeq
			e.nextSeq++
			heap.Push(&e.heap, child)
		}

		usedCols[c] = true
		prefixCost += e.problem.cost[r][c]
	}

	return assignment, true, nil
}

// NextUntil pulls solutions until stop returns true for the most recently
// returned solution, or the enumerator is exhausted. It returns every
// solution produced, in order.
func (e *AssignmentEnumerator) NextUntil(stop func(*Assignment) bool) ([]*Assignment, error) {
	var out []*Assignment
	for {
		a, ok, err := e.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, a)
		if stop(a) {
			return out, nil
		}
	}
}

func copyIntMap(m map[int]int) map[int]int {
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyForbidden(m map[int]map[int]bool) map[int]map[int]bool {
	out := make(map[int]map[int]bool, len(m))
	for k, v := range m {
		inner := make(map[int]bool, len(v))
		for ik, iv := range v {
			inner[ik] = iv
		}
		out[k] = inner
	}
	return out
}

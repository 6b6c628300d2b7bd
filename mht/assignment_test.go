package mht

import "testing"

// TestAssignmentSingleDetectionPrefersMeasured checks a 1-detection,
// 1-leaf problem picks the measured continuation over the skip slot when
// it scores higher, and returns the expected payload.
func TestAssignmentSingleDetectionPrefersMeasured(t *testing.T) {
	leaf := &Node{Kind: NodeContinue}
	skip := &Node{Kind: NodeSkip}

	p := NewProblem(1, 1)
	p.SetSkip(0, -5, skip)
	p.SetMeasured(0, 0, -1, leaf)

	enum, err := NewAssignmentEnumerator(p)
	if err != nil {
		t.Fatalf("NewAssignmentEnumerator: %v", err)
	}
	got, ok, err := enum.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok {
		t.Fatal("Next: expected a solution")
	}
	if got.LeafChild[0] != leaf {
		t.Errorf("LeafChild[0] = %v, want measured leaf", got.LeafChild[0])
	}
	if got.TotalLogLikelihood != -1 {
		t.Errorf("TotalLogLikelihood = %v, want -1", got.TotalLogLikelihood)
	}
}

// TestAssignmentEnumerationOrderNonIncreasing checks a 2x2 problem's
// solutions come out in strict non-increasing likelihood order, per spec
// section 8's determinism property.
func TestAssignmentEnumerationOrderNonIncreasing(t *testing.T) {
	n00, n01, n10, n11 := &Node{}, &Node{}, &Node{}, &Node{}
	s0, s1 := &Node{}, &Node{}

	p := NewProblem(2, 2)
	p.SetMeasured(0, 0, -1, n00)
	p.SetMeasured(0, 1, -4, n01)
	p.SetMeasured(1, 0, -3, n10)
	p.SetMeasured(1, 1, -2, n11)
	p.SetSkip(0, -100, s0)
	p.SetSkip(1, -100, s1)

	enum, err := NewAssignmentEnumerator(p)
	if err != nil {
		t.Fatalf("NewAssignmentEnumerator: %v", err)
	}

	var prev float64
	count := 0
	for {
		a, ok, err := enum.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		// Best solution should be the diagonal 00+11 = -1 + -2 = -3.
		if count == 0 && a.TotalLogLikelihood != -3 {
			t.Errorf("first solution likelihood = %v, want -3 (diagonal 00+11)", a.TotalLogLikelihood)
		}
		if count > 0 && a.TotalLogLikelihood > prev {
			t.Fatalf("solution %d likelihood %v > previous %v, expected non-increasing order", count, a.TotalLogLikelihood, prev)
		}
		prev = a.TotalLogLikelihood
		count++
		if count > 10 {
			t.Fatal("enumerator did not terminate")
		}
	}
	if count == 0 {
		t.Fatal("expected at least one solution")
	}
}

// TestAssignmentInfeasibleColumnHasNoSolution checks that a leaf column
// with no feasible cell at all makes the whole problem infeasible.
func TestAssignmentInfeasibleColumnHasNoSolution(t *testing.T) {
	p := NewProblem(1, 1)
	// No SetMeasured, no SetSkip: leaf column 0 has zero feasible cells,
	// and row 0's own skip-dummy pairing is only feasible in the bottom
	// right block, which does not cover this leaf's column.
	enum, err := NewAssignmentEnumerator(p)
	if err != nil {
		t.Fatalf("NewAssignmentEnumerator: %v", err)
	}
	_, ok, err := enum.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ok {
		t.Fatal("expected no feasible solution")
	}
}

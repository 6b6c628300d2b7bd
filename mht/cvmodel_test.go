package mht

import (
	"math"
	"testing"
)

func testTexture(fill float64) []float64 {
	t := make([]float64, TextureDim*TextureDim)
	for i := range t {
		t[i] = fill
	}
	return t
}

// rowGradientTexture builds a texture whose value depends only on row
// index (0..4), scaled by sign, so that two textures built with opposite
// signs are perfectly anti-correlated (correlation -1) regardless of
// which 3x3 window is compared, unlike two constant patches (which the
// matcher's degenerate-case rule always calls a match).
func rowGradientTexture(sign float64) []float64 {
	t := make([]float64, TextureDim*TextureDim)
	for i := range t {
		t[i] = sign * float64(i/TextureDim)
	}
	return t
}

func newTestCVModel() *CVModel {
	return NewCVModel(CVModelParams{
		SigmaX2:        1.0,
		SigmaY2:        1.0,
		SigmaProcess2:  0.1,
		SigmaState2:    10.0,
		ProbDetect:     0.9,
		MeanNew:        0.05,
		MaxMahalanobis: 9.21, // chi-square 2 dof, ~0.99
		Lambda:         2.0,
		Matcher:        CorrelationTextureMatcher{Threshold: 0.5},
	})
}

func TestCVModelNewTrackState(t *testing.T) {
	m := newTestCVModel()
	r := NewReport(10, 20, testTexture(1), 0, 1, -3)
	n := m.BeginNewStates(nil, r)
	if n != 1 {
		t.Fatalf("BeginNewStates(nil, report) = %d, want 1", n)
	}
	st, ok := m.GetNewState(0, nil, r)
	if !ok {
		t.Fatal("GetNewState(nil, report) rejected, want accepted")
	}
	cv := st.(*CVState)
	if cv.X() != 10 || cv.Y() != 20 {
		t.Errorf("new track state = (%v,%v), want (10,20)", cv.X(), cv.Y())
	}
	if st.SkipCount() != 0 {
		t.Errorf("SkipCount() = %d, want 0", st.SkipCount())
	}
}

func TestCVModelGateRejectsFarReport(t *testing.T) {
	m := newTestCVModel()
	r0 := NewReport(0, 0, testTexture(1), 0, 1, -3)
	prev, _ := m.GetNewState(0, nil, r0)

	far := NewReport(1000, 1000, testTexture(1), 1, 2, -3)
	_, ok := m.GetNewState(0, prev, far)
	if ok {
		t.Fatal("GetNewState should reject a report far outside the Mahalanobis gate")
	}
}

func TestCVModelGateAcceptsNearReport(t *testing.T) {
	m := newTestCVModel()
	r0 := NewReport(0, 0, testTexture(1), 0, 1, -3)
	prev, _ := m.GetNewState(0, nil, r0)

	near := NewReport(0.1, 0.1, testTexture(1), 1, 2, -3)
	st, ok := m.GetNewState(0, prev, near)
	if !ok {
		t.Fatal("GetNewState should accept a report near the predicted position")
	}
	if st.LogLikelihood() >= 0 {
		t.Errorf("measured LogLikelihood() = %v, want negative", st.LogLikelihood())
	}
}

func TestCVModelTextureGateRejectsMismatch(t *testing.T) {
	m := newTestCVModel()
	r0 := NewReport(0, 0, rowGradientTexture(1), 0, 1, -3)
	prev, _ := m.GetNewState(0, nil, r0)

	mismatched := NewReport(0.1, 0.1, rowGradientTexture(-1), 1, 2, -3)
	_, ok := m.GetNewState(0, prev, mismatched)
	if ok {
		t.Fatal("GetNewState should reject a report whose texture anti-correlates with the track's")
	}
}

func TestCVModelSkipState(t *testing.T) {
	m := newTestCVModel()
	r0 := NewReport(0, 0, testTexture(1), 0, 1, -3)
	prev, _ := m.GetNewState(0, nil, r0)

	skipped, ok := m.GetNewState(0, prev, nil)
	if !ok {
		t.Fatal("GetNewState(prevState, nil) should always succeed")
	}
	if skipped.SkipCount() != 1 {
		t.Errorf("SkipCount() = %d, want 1", skipped.SkipCount())
	}
	if skipped.LogLikelihood() != 0 {
		t.Errorf("skip state LogLikelihood() = %v, want 0", skipped.LogLikelihood())
	}
}

func TestCVModelEndContinueComplementary(t *testing.T) {
	m := newTestCVModel()
	st := &CVState{logLL: 0, skipCount: 3}
	end := m.EndLogLikelihood(st)
	cont := m.ContinueLogLikelihood(st)
	sum := math.Exp(end) + math.Exp(cont)
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("exp(end)+exp(continue) = %v, want 1", sum)
	}
}

func TestCVModelSkipDetectComplementary(t *testing.T) {
	m := newTestCVModel()
	st := &CVState{}
	sum := math.Exp(m.SkipLogLikelihood(st)) + math.Exp(m.DetectLogLikelihood(st))
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("exp(skip)+exp(detect) = %v, want 1", sum)
	}
}

func TestCVModelAllowsNewTrackAt(t *testing.T) {
	m := newTestCVModel()
	if !m.AllowsNewTrackAt(true) {
		t.Error("AllowsNewTrackAt(firstScan=true) = false, want true")
	}
	if m.AllowsNewTrackAt(false) {
		t.Error("AllowsNewTrackAt(firstScan=false) = true, want false (AllowNewTrackAfter unset)")
	}
}

func TestPearsonDegenerateConstant(t *testing.T) {
	a := []float64{5, 5, 5}
	b := []float64{5, 5, 5}
	if got := pearson(a, b); got != 1.0 {
		t.Errorf("pearson(constant, constant) = %v, want 1.0", got)
	}
}

func TestPearsonDegenerateMismatch(t *testing.T) {
	a := []float64{5, 5, 5}
	b := []float64{1, 2, 3}
	if got := pearson(a, b); got != 1.0 {
		t.Errorf("pearson(constant, varying) = %v, want 1.0 (zero variance forces zero covariance)", got)
	}
}

func TestSSDTextureMatcher(t *testing.T) {
	m := SSDTextureMatcher{Threshold: 0.01}
	var prev, cand Texture
	for i := range prev {
		prev[i] = 1.0
		cand[i] = 1.0
	}
	score := m.Score(prev, cand)
	if !m.Accept(score) {
		t.Errorf("SSDTextureMatcher should accept an identical patch, score=%v", score)
	}
}

package mht

import "testing"

func testEngineModel(meanNew float64) *CVModel {
	return NewCVModel(CVModelParams{
		SigmaX2:        1.0,
		SigmaY2:        1.0,
		SigmaProcess2:  0.1,
		SigmaState2:    10.0,
		ProbDetect:     0.9,
		MeanNew:        meanNew,
		MaxMahalanobis: 9.21,
		Lambda:         2.0,
		Matcher:        CorrelationTextureMatcher{Threshold: 0.5},
	})
}

func TestEngineScanIdleWhenQueueEmpty(t *testing.T) {
	e := NewEngine(5, 0.1, 10, []Model{testEngineModel(0.5)}, -5, 100)
	status, err := e.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if status != ScanIdle {
		t.Errorf("Scan() = %v, want ScanIdle", status)
	}
	if e.CurrentTime() != 0 {
		t.Errorf("CurrentTime() = %d, want 0", e.CurrentTime())
	}
	if e.ScanEndTime() != 100 {
		t.Errorf("ScanEndTime() = %d, want 100", e.ScanEndTime())
	}
}

// TestEngineSingleIsolatedDetectionStartsTrack exercises spec section
// 4.6's isolated-point scenario: one detection, far more likely to be a
// track start than a false alarm, ends up verified as a one-element
// track once Clear flushes the still-active leaf.
func TestEngineSingleIsolatedDetectionStartsTrack(t *testing.T) {
	e := NewEngine(5, 0.1, 10, []Model{testEngineModel(0.5)}, -5, 100)
	e.AddReports(Batch{Detections: []DetectionInput{
		{X: 10, Y: 20, Texture: testTexture(1), FrameNo: 0, DetectionID: 1},
	}})
	status, err := e.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if status != ScanProcessed {
		t.Fatalf("Scan() = %v, want ScanProcessed", status)
	}

	if got := len(e.Tracks()); got != 0 {
		t.Fatalf("Tracks() before Clear = %d, want 0 (still ambiguous)", got)
	}

	e.Clear()

	tracks := e.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("Tracks() after Clear = %d, want 1", len(tracks))
	}
	if len(tracks[0].Elements) != 1 {
		t.Fatalf("track elements = %d, want 1", len(tracks[0].Elements))
	}
	el := tracks[0].Elements[0]
	if el.Code != 'M' {
		t.Errorf("element code = %q, want 'M'", el.Code)
	}
	if el.ReportX != 10 || el.ReportY != 20 {
		t.Errorf("element report position = (%v,%v), want (10,20)", el.ReportX, el.ReportY)
	}
	if fa := e.FalseAlarms(); len(fa) != 0 {
		t.Errorf("FalseAlarms() = %d, want 0", len(fa))
	}
}

// TestEngineUnlikelyStartRecordsFalseAlarm mirrors the isolated-point
// scenario but with track initiation made far less likely than a false
// alarm, and checks the false-alarm branch resolves and drops its tree
// within the same scan rather than lingering.
func TestEngineUnlikelyStartRecordsFalseAlarm(t *testing.T) {
	e := NewEngine(5, 0.1, 10, []Model{testEngineModel(1e-10)}, -0.5, 100)
	e.AddReports(Batch{Detections: []DetectionInput{
		{X: 1, Y: 1, Texture: testTexture(1), FrameNo: 0, DetectionID: 7},
	}})
	if _, err := e.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(e.trees) != 0 {
		t.Fatalf("engine still holds %d tree(s) after a resolved false alarm, want 0", len(e.trees))
	}
	fa := e.FalseAlarms()
	if len(fa) != 1 {
		t.Fatalf("FalseAlarms() = %d, want 1", len(fa))
	}
	if fa[0].CornerID != 7 {
		t.Errorf("FalseAlarms()[0].CornerID = %d, want 7", fa[0].CornerID)
	}
	if len(e.Tracks()) != 0 {
		t.Errorf("Tracks() = %d, want 0", len(e.Tracks()))
	}
}

// TestEngineContinuesTrackAcrossScans checks that a second, nearby
// detection is explained as a continuation of the track started on the
// first scan rather than as its own competing false alarm, which is
// exactly the case the fresh-singleton fallback cost must not break: a
// large negative fallback would instead force the real track to skip its
// own matching detection so the singleton could claim it for free.
func TestEngineContinuesTrackAcrossScans(t *testing.T) {
	e := NewEngine(5, 0.1, 1, []Model{testEngineModel(0.5)}, -5, 100)

	e.AddReports(Batch{Detections: []DetectionInput{
		{X: 0, Y: 0, Texture: testTexture(1), FrameNo: 0, DetectionID: 1},
	}})
	if _, err := e.Scan(); err != nil {
		t.Fatalf("Scan 1: %v", err)
	}

	e.AddReports(Batch{Detections: []DetectionInput{
		{X: 0.1, Y: 0.1, Texture: testTexture(1), FrameNo: 1, DetectionID: 2},
	}})
	if _, err := e.Scan(); err != nil {
		t.Fatalf("Scan 2: %v", err)
	}

	// The scan-1 START commits as soon as the scan-2 hypothesis settles
	// on continuing it, before Clear is ever called.
	tracks := e.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("Tracks() after scan 2 = %d, want 1", len(tracks))
	}
	if len(tracks[0].Elements) != 1 {
		t.Fatalf("track elements after scan 2 = %d, want 1 (the committed start)", len(tracks[0].Elements))
	}
	if len(e.FalseAlarms()) != 0 {
		t.Fatalf("FalseAlarms() after scan 2 = %d, want 0: the competing singleton should lose for free, not win", len(e.FalseAlarms()))
	}
	if len(e.trees) != 1 {
		t.Fatalf("engine holds %d tree(s) after scan 2, want 1 (the losing singleton should have been dropped)", len(e.trees))
	}

	e.Clear()

	tracks = e.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("Tracks() after Clear = %d, want 1", len(tracks))
	}
	if len(tracks[0].Elements) != 2 {
		t.Fatalf("track elements after Clear = %d, want 2", len(tracks[0].Elements))
	}
	if tracks[0].Elements[1].ReportX != 0.1 || tracks[0].Elements[1].ReportY != 0.1 {
		t.Errorf("second element position = (%v,%v), want (0.1,0.1)",
			tracks[0].Elements[1].ReportX, tracks[0].Elements[1].ReportY)
	}
	if len(e.FalseAlarms()) != 0 {
		t.Errorf("FalseAlarms() after Clear = %d, want 0", len(e.FalseAlarms()))
	}
}

package format

import (
	"strings"
	"testing"

	"github.com/LdDl/mht-go/mht"
)

func TestWriteTrackFileLayout(t *testing.T) {
	p := &mht.Params{
		MaxDistance1: 1.0,
		MaxDistance2: 2.0,
		MaxDistance3: 3.0,
		MaxGHypos:    50,
		MaxDepth:     4,
	}
	tracks := []*mht.Track{
		{
			ID: 1,
			Elements: []mht.TrackElement{
				{Code: 'M', ReportX: 1, ReportY: 2, StateX: 1.1, StateY: 2.1, Time: 0, FrameNo: 0, ModelType: "const-velocity", CornerID: 9},
			},
		},
	}
	falarms := []mht.FalseAlarm{
		{ReportX: 5, ReportY: 6, FrameNo: 2, CornerID: 3},
	}

	var sb strings.Builder
	if err := WriteTrackFile(&sb, p, tracks, falarms); err != nil {
		t.Fatalf("WriteTrackFile: %v", err)
	}
	out := sb.String()

	// The reference tracker's literal bug: maxDistance1 echoed on all
	// three "Max Mahalinobus Dist" lines.
	if !strings.Contains(out, "Max Mahalinobus Dist1:  1\n") ||
		!strings.Contains(out, "Max Mahalinobus Dist2:  1\n") ||
		!strings.Contains(out, "Max Mahalinobus Dist3:  1\n") {
		t.Errorf("expected maxDistance1 echoed on all three Mahalinobus lines, got:\n%s", out)
	}
	if !strings.Contains(out, "Corrected Max Mahalinobus Dist2, Dist3:  2 3\n") {
		t.Errorf("expected corrected dist2/dist3 line, got:\n%s", out)
	}

	if !strings.Contains(out, "\n1\n1\n") {
		t.Errorf("expected track count 1 and falarm count 1 on their own lines, got:\n%s", out)
	}
	if !strings.Contains(out, "0 1\n") {
		t.Errorf("expected track header \"0 1\" (index 0, 1 element), got:\n%s", out)
	}
	if !strings.Contains(out, "M 1 2 1.1 2.1 0 0 0 const-velocity 9\n") {
		t.Errorf("expected element line, got:\n%s", out)
	}
	if !strings.Contains(out, "5 6 2 3\n") {
		t.Errorf("expected false-alarm line, got:\n%s", out)
	}
}

func TestWriteTrackFileEmpty(t *testing.T) {
	p := &mht.Params{}
	var sb strings.Builder
	if err := WriteTrackFile(&sb, p, nil, nil); err != nil {
		t.Fatalf("WriteTrackFile: %v", err)
	}
	if !strings.Contains(sb.String(), "0\n0\n") {
		t.Errorf("expected zero track/falarm counts, got:\n%s", sb.String())
	}
}

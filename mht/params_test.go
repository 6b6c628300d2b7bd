package mht

import (
	"strings"
	"testing"
)

// testParamFile exercises comment lines, a blank line (spec section 9's
// noted parser bug: this reader must skip it, not consume it as a
// spurious zero-valued field), and every one of the 23 positional
// fields.
const testParamFile = `1.0
2.0
0.1
0.2
0.05
0.9
0.01
0.05
0.02
100
5
0.01
0.8

9.21
9.21
25.0
10.0
1000
; comment lines are skipped
0
0
0
0
0
`

func TestLoadParamsFieldOrder(t *testing.T) {
	p, err := LoadParams(strings.NewReader(testParamFile))
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	if p.PositionVarianceX != 1.0 {
		t.Errorf("PositionVarianceX = %v, want 1.0", p.PositionVarianceX)
	}
	if p.PositionVarianceY != 2.0 {
		t.Errorf("PositionVarianceY = %v, want 2.0", p.PositionVarianceY)
	}
	if p.IntensityThreshold != 0.8 {
		t.Errorf("IntensityThreshold = %v, want 0.8", p.IntensityThreshold)
	}
	if p.MaxDistance1 != 9.21 || p.MaxDistance2 != 9.21 {
		t.Errorf("MaxDistance1/2 = %v/%v, want 9.21/9.21", p.MaxDistance1, p.MaxDistance2)
	}
	if p.MaxDistance3 != 25.0 {
		t.Errorf("MaxDistance3 = %v, want 25.0", p.MaxDistance3)
	}
	if p.StateVariance != 10.0 {
		t.Errorf("StateVariance = %v, want 10.0", p.StateVariance)
	}
	if p.EndScan != 1000 {
		t.Errorf("EndScan = %v, want 1000", p.EndScan)
	}
	if p.MaxGHypos != 100 || p.MaxDepth != 5 {
		t.Errorf("MaxGHypos/MaxDepth = %v/%v, want 100/5", p.MaxGHypos, p.MaxDepth)
	}
}

func TestLoadParamsTruncatedFileErrors(t *testing.T) {
	_, err := LoadParams(strings.NewReader("1.0\n2.0\n"))
	if err == nil {
		t.Fatal("LoadParams on a truncated file should error")
	}
}

func TestLoadParamsRejectsGarbage(t *testing.T) {
	_, err := LoadParams(strings.NewReader("not-a-number\n"))
	if err == nil {
		t.Fatal("LoadParams should error on an unparseable field")
	}
}

func TestCVModelParamsMapping(t *testing.T) {
	p, err := LoadParams(strings.NewReader(testParamFile))
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	cvp := p.CVModelParams()
	if cvp.MaxMahalanobis != p.MaxDistance2 {
		t.Errorf("CVModelParams.MaxMahalanobis = %v, want MaxDistance2 %v", cvp.MaxMahalanobis, p.MaxDistance2)
	}
	if cvp.Lambda != p.ProbEnd {
		t.Errorf("CVModelParams.Lambda = %v, want ProbEnd %v", cvp.Lambda, p.ProbEnd)
	}
	if cvp.MeanNew != p.MeanNew {
		t.Errorf("CVModelParams.MeanNew = %v, want %v", cvp.MeanNew, p.MeanNew)
	}
}

package mht

import "github.com/google/uuid"

// TextureDim is the side length of the texture descriptor grid a Report
// carries (5x5 = 25 samples, per spec section 3).
const TextureDim = 5

// Texture is a TextureDim x TextureDim intensity descriptor, stored in
// row-major order the way CORNERXY::m_textureInfo is laid out in the
// reference tracker.
type Texture [TextureDim * TextureDim]float64

// At returns the sample at grid row ym, column xm (0-based).
func (t Texture) At(ym, xm int) float64 { return t[ym*TextureDim+xm] }

// Center3x3 extracts the fixed central 3x3 window (offsets 1..3 in both
// axes) used as the reference patch for texture validation.
func (t Texture) Center3x3() [9]float64 {
	var out [9]float64
	k := 0
	for ym := 1; ym <= 3; ym++ {
		for xm := 1; xm <= 3; xm++ {
			out[k] = t.At(ym, xm)
			k++
		}
	}
	return out
}

// Window3x3At extracts the 3x3 window whose top-left corner is (ym, xm),
// ym, xm in {0,1,2}, i.e. it covers rows/cols [ym, ym+2] x [xm, xm+2].
func (t Texture) Window3x3At(ym, xm int) [9]float64 {
	var out [9]float64
	k := 0
	for dy := 0; dy < 3; dy++ {
		for dx := 0; dx < 3; dx++ {
			out[k] = t.At(ym+dy, xm+dx)
			k++
		}
	}
	return out
}

// Report is one immutable point-feature detection ingested by the engine.
// It corresponds to CORNERXY in the reference tracker.
type Report struct {
	UUID    uuid.UUID
	X, Y    float64
	Texture Texture
	FrameNo int
	// DetectionID is the corner/detection identifier assigned upstream
	// (e.g. by the corner detector), not the engine's row number.
	DetectionID uint64
	// FalseAlarmLogLikelihood is the scalar cost of this report being a
	// false alarm; the engine sets it to its own engine-wide value.
	FalseAlarmLogLikelihood float64

	// row is this report's position within the batch it was ingested in;
	// it seeds assignment-matrix row numbers and, transitively, the
	// enumerator's deterministic tie-breaking.
	row int

	// refs implements the bidirectional link-set of spec section 9: every
	// leaf that currently postulates this report holds one reference:
	// the report is dropped from the engine's report list once refs drops
	// to zero.
	refs int
}

// NewReport constructs a Report from a flat 25-element row-major texture
// slice, matching the on-disk detection-frame line format of spec section 6.
func NewReport(x, y float64, texture []float64, frameNo int, detectionID uint64, falseAlarmLL float64) *Report {
	r := &Report{
		UUID:                    uuid.New(),
		X:                       x,
		Y:                       y,
		FrameNo:                 frameNo,
		DetectionID:             detectionID,
		FalseAlarmLogLikelihood: falseAlarmLL,
	}
	n := len(texture)
	if n > len(r.Texture) {
		n = len(r.Texture)
	}
	copy(r.Texture[:n], texture[:n])
	return r
}

// ref registers one more leaf referencing this report.
func (r *Report) ref() { r.refs++ }

// unref removes one leaf's reference; returns true once no leaf is left,
// meaning the report is eligible for reclamation.
func (r *Report) unref() bool {
	r.refs--
	return r.refs <= 0
}

// live reports whether at least one leaf still references this report.
func (r *Report) live() bool { return r.refs > 0 }

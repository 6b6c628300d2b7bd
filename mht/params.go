package mht

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Params holds every value read from the parameter file of spec section
// 6, in the file's fixed field order. startA/B/C, pos2velLikelihood
// and vel2curvLikelihood are parsed but unused by CVModel — placeholders reserved for motion models this
// module does not implement, per spec section 9.
type Params struct {
	PositionVarianceX  float64
	PositionVarianceY  float64
	GradientVariance   float64
	IntensityVariance  float64
	ProcessVariance    float64
	ProbDetect         float64
	ProbEnd            float64
	MeanNew            float64
	MeanFalarms        float64
	MaxGHypos          int
	MaxDepth           int
	MinGHypoRatio      float64
	IntensityThreshold float64
	MaxDistance1       float64
	MaxDistance2       float64
	MaxDistance3       float64
	StateVariance      float64
	EndScan            int
	Pos2VelLikelihood  float64
	Vel2CurvLikelihood float64
	StartA             float64
	StartB             float64
	StartC             float64
}

// paramFields lists the fixed positional order of spec section 6's
// parameter file, each entry a setter into a *Params.
var paramFields = []struct {
	name string
	set  func(p *Params, v float64)
}{
	{"positionVarianceX", func(p *Params, v float64) { p.PositionVarianceX = v }},
	{"positionVarianceY", func(p *Params, v float64) { p.PositionVarianceY = v }},
	{"gradientVariance", func(p *Params, v float64) { p.GradientVariance = v }},
	{"intensityVariance", func(p *Params, v float64) { p.IntensityVariance = v }},
	{"processVariance", func(p *Params, v float64) { p.ProcessVariance = v }},
	{"probDetect", func(p *Params, v float64) { p.ProbDetect = v }},
	{"probEnd", func(p *Params, v float64) { p.ProbEnd = v }},
	{"meanNew", func(p *Params, v float64) { p.MeanNew = v }},
	{"meanFalarms", func(p *Params, v float64) { p.MeanFalarms = v }},
	{"maxGHypos", func(p *Params, v float64) { p.MaxGHypos = int(v) }},
	{"maxDepth", func(p *Params, v float64) { p.MaxDepth = int(v) }},
	{"minGHypoRatio", func(p *Params, v float64) { p.MinGHypoRatio = v }},
	{"intensityThreshold", func(p *Params, v float64) { p.IntensityThreshold = v }},
	{"maxDistance1", func(p *Params, v float64) { p.MaxDistance1 = v }},
	{"maxDistance2", func(p *Params, v float64) { p.MaxDistance2 = v }},
	{"maxDistance3", func(p *Params, v float64) { p.MaxDistance3 = v }},
	{"stateVariance", func(p *Params, v float64) { p.StateVariance = v }},
	{"endScan", func(p *Params, v float64) { p.EndScan = int(v) }},
	{"pos2velLikelihood", func(p *Params, v float64) { p.Pos2VelLikelihood = v }},
	{"vel2curvLikelihood", func(p *Params, v float64) { p.Vel2CurvLikelihood = v }},
	{"startA", func(p *Params, v float64) { p.StartA = v }},
	{"startB", func(p *Params, v float64) { p.StartB = v }},
	{"startC", func(p *Params, v float64) { p.StartC = v }},
}

// LoadParams reads a parameter file: one value per non-comment,
// non-blank line, in paramFields order. Lines beginning with ';' are
// comments. Unlike the reference reader (spec section 9's noted bug),
// blank lines are skipped rather than consumed as spurious zero fields.
func LoadParams(r io.Reader) (*Params, error) {
	p := &Params{}
	scanner := bufio.NewScanner(r)
	idx := 0
	for scanner.Scan() {
		if idx >= len(paramFields) {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "mht: parsing parameter %q (field %s)", line, paramFields[idx].name)
		}
		paramFields[idx].set(p, v)
		idx++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "mht: reading parameter file")
	}
	if idx < len(paramFields) {
		return nil, errors.Errorf("mht: parameter file has only %d of %d required values (missing %s onward)",
			idx, len(paramFields), paramFields[idx].name)
	}
	return p, nil
}

// CVModelParams adapts the parsed file parameters into the constant-
// velocity model's configuration, choosing the correlation texture
// matcher by default (SSDTextureMatcher is available for callers that
// built with the sum-of-squared-difference variant selected).
//
// probEnd is fed straight through as the skip-count decay constant
// (lambda_x) and maxDistance2, not maxDistance1, is the Mahalanobis gate
// handed to the constant-velocity model constructor; maxDistance1 and
// maxDistance3 are reserved for motion models this module does not
// implement.
func (p *Params) CVModelParams() CVModelParams {
	return CVModelParams{
		SigmaX2:        p.PositionVarianceX,
		SigmaY2:        p.PositionVarianceY,
		SigmaProcess2:  p.ProcessVariance,
		SigmaState2:    p.StateVariance,
		ProbDetect:     p.ProbDetect,
		MeanNew:        p.MeanNew,
		MaxMahalanobis: p.MaxDistance2,
		Lambda:         p.ProbEnd,
		Matcher:        CorrelationTextureMatcher{Threshold: p.IntensityThreshold},
	}
}

package mht

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TextureMatcher validates a candidate report's texture against a track's
// previous texture patch, complementing Mahalanobis gating (spec section
// 4.4's "configurable alternative"). Accept reports whether the
// implementation reasons in correlation (higher is better) or distance
// (lower is better); Accept encapsulates the comparison direction so the
// surrounding gating logic stays identical either way.
type TextureMatcher interface {
	// Score computes the match statistic between the track's previous
	// central 3x3 patch and the best-aligned 3x3 window of the
	// candidate's 5x5 descriptor.
	Score(prev Texture, candidate Texture) float64
	// Accept reports whether score clears the configured threshold.
	Accept(score float64) bool
}

// CorrelationTextureMatcher slides a 3x3 window over the interior of the
// candidate's 5x5 descriptor and takes the maximum Pearson correlation
// against the track's fixed central 3x3 patch, per spec section 4.4.
type CorrelationTextureMatcher struct {
	Threshold float64
}

// Score implements TextureMatcher.
func (m CorrelationTextureMatcher) Score(prev Texture, candidate Texture) float64 {
	center := prev.Center3x3()
	best := math.Inf(-1)
	for ym := 0; ym <= 2; ym++ {
		for xm := 0; xm <= 2; xm++ {
			window := candidate.Window3x3At(ym, xm)
			c := pearson(center[:], window[:])
			if c > best {
				best = c
			}
		}
	}
	return best
}

// Accept implements TextureMatcher: higher correlation is a better match.
func (m CorrelationTextureMatcher) Accept(score float64) bool { return score > m.Threshold }

// pearson computes the Pearson correlation coefficient of a and b via
// gonum/stat, with the spec's rule for the degenerate case: if either
// series has zero standard deviation and the centered cross-covariance is
// also zero, the correlation for that offset is defined as 1.0 rather
// than the 0/0 that stat.Correlation would produce.
func pearson(a, b []float64) float64 {
	meanA := stat.Mean(a, nil)
	meanB := stat.Mean(b, nil)
	var varA, varB, cov float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		varA += da * da
		varB += db * db
		cov += da * db
	}
	if varA == 0 || varB == 0 {
		// varA==0 forces every da==0 (and symmetrically for varB), which
		// forces cov==0, so this is the only reachable outcome here.
		return 1.0
	}
	c := stat.Correlation(a, b, nil)
	if math.IsNaN(c) {
		return cov / math.Sqrt(varA*varB)
	}
	return c
}

// SSDTextureMatcher is the configurable alternative of spec section 4.4:
// sum-of-squared differences between the same window pairing, accepted
// when the minimum SSD found is below Threshold.
type SSDTextureMatcher struct {
	Threshold float64
}

// Score implements TextureMatcher, returning the minimum SSD over all
// nine window placements (best alignment).
func (m SSDTextureMatcher) Score(prev Texture, candidate Texture) float64 {
	center := prev.Center3x3()
	best := math.Inf(1)
	for ym := 0; ym <= 2; ym++ {
		for xm := 0; xm <= 2; xm++ {
			window := candidate.Window3x3At(ym, xm)
			d := 0.0
			for i := range center {
				diff := center[i] - window[i]
				d += diff * diff
			}
			if d < best {
				best = d
			}
		}
	}
	return best
}

// Accept implements TextureMatcher: lower SSD is a better match.
func (m SSDTextureMatcher) Accept(score float64) bool { return score < m.Threshold }

// CVModelParams configures CVModel, sourced from spec section 6's
// parameter file.
type CVModelParams struct {
	SigmaX2, SigmaY2   float64 // measurement position variance
	SigmaProcess2      float64 // process noise variance
	SigmaState2        float64 // new-track velocity-component variance
	ProbDetect         float64
	MeanNew            float64 // start probability; its log is the new-track log-likelihood
	MaxMahalanobis     float64 // d_max, Mahalanobis gate on position innovation
	Lambda             float64 // skip-count decay constant for end/continue likelihoods
	Matcher            TextureMatcher
	AllowNewTrackAfter bool // spec 4.4: new-track initiation permitted only at scan 0 unless overridden
}

// CVModel is the constant-velocity + texture-correlation MODEL of spec
// section 4.4: 4-D state (x, xdot, y, ydot), Kalman-filtered, gated by
// Mahalanobis distance on position innovation and secondarily by texture
// correlation.
type CVModel struct {
	params CVModelParams

	skipLL   float64
	detectLL float64
	startLL  float64
}

// NewCVModel builds a CVModel and precomputes its two constant
// log-likelihoods (spec 4.4: "skip log-likelihood is a model constant
// ln(1 - p_detect); detect log-likelihood ln p_detect").
func NewCVModel(params CVModelParams) *CVModel {
	m := &CVModel{params: params}
	m.skipLL = logSafe(1.0 - params.ProbDetect)
	m.detectLL = logSafe(params.ProbDetect)
	// The reference tracker feeds meanNew straight in as the start
	// probability (CONSTVEL_MDL::m_startLogLikelihood = log(startProb)
	// with startProb bound to param.meanNew) rather than deriving one
	// from a Poisson rate; this module does the same.
	m.startLL = logSafe(params.MeanNew)
	return m
}

// Name implements Model.
func (m *CVModel) Name() string { return "const-velocity" }

func (m *CVModel) transition(dt float64) *Matrix {
	return NewMatrix(4, 4, []float64{
		1, dt, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, dt,
		0, 0, 0, 1,
	})
}

func (m *CVModel) processNoise(dt float64) *Matrix {
	sp2 := m.params.SigmaProcess2
	dt2 := dt * dt
	dt3 := dt2 * dt
	return NewMatrix(4, 4, []float64{
		dt3 / 3, dt2 / 2, 0, 0,
		dt2 / 2, dt, 0, 0,
		0, 0, dt3 / 3, dt2 / 2,
		0, 0, dt2 / 2, dt,
	}).Scale(sp2)
}

func (m *CVModel) observation() *Matrix {
	return NewMatrix(2, 4, []float64{
		1, 0, 0, 0,
		0, 0, 1, 0,
	})
}

func (m *CVModel) measurementNoise() *Matrix {
	return NewMatrix(2, 2, []float64{
		m.params.SigmaX2, 0,
		0, m.params.SigmaY2,
	})
}

// BeginNewStates implements Model. The constant-velocity model produces
// at most one child per (prevState, report) combination: a single
// Kalman-updated continuation, a single skip continuation, or a single
// new-track initiation.
func (m *CVModel) BeginNewStates(prevState MotionState, report *Report) int {
	return 1
}

// EndNewStates implements Model.
func (m *CVModel) EndNewStates() {}

// GetNewState implements Model's three branches per spec section 4.3/4.4.
func (m *CVModel) GetNewState(i int, prevState MotionState, report *Report) (MotionState, bool) {
	if i != 0 {
		return nil, false
	}
	prev, _ := prevState.(*CVState)

	switch {
	case prev == nil:
		return m.newTrackState(report), true
	case report == nil:
		return m.skipState(prev), true
	default:
		return m.measuredState(prev, report)
	}
}

func (m *CVModel) newTrackState(report *Report) *CVState {
	mean := NewMatrix(4, 1, []float64{report.X, 0, report.Y, 0})
	cov := NewMatrix(4, 4, []float64{
		m.params.SigmaX2, 0, 0, 0,
		0, m.params.SigmaState2, 0, 0,
		0, 0, m.params.SigmaY2, 0,
		0, 0, 0, m.params.SigmaState2,
	})
	return &CVState{
		model:       m,
		mean:        mean,
		cov:         cov,
		prevTexture: report.Texture,
		logLL:       m.startLL,
		skipCount:   0,
	}
}

// stateDT is the inter-frame interval used to build F/Q for the derived
// block. The reference tracker hardcodes this to 1 scan
// (CONSTVEL_STATE::setup sets m_ds = 1 regardless of the frame-sequence
// control file's parsed time delta, which only ever labels output
// timestamps), so this module does the same rather than inventing
// variable-rate Kalman propagation the original never implements.
const stateDT = 1.0

func (m *CVModel) skipState(prev *CVState) *CVState {
	prev.setup(stateDT)
	return &CVState{
		model:       m,
		mean:        prev.derived.predMean,
		cov:         prev.derived.nextCov,
		prevTexture: prev.prevTexture,
		logLL:       0,
		skipCount:   prev.skipCount + 1,
	}
}

func (m *CVModel) measuredState(prev *CVState, report *Report) (MotionState, bool) {
	prev.setup(stateDT)

	z := NewMatrix(2, 1, []float64{report.X, report.Y})
	innovation := z.Sub(m.observation().Mul(prev.derived.predMean))
	mdist := innovation.T().Mul(prev.derived.innovCovInv).Mul(innovation).At(0, 0)
	if mdist > m.params.MaxMahalanobis {
		return nil, false
	}

	matcher := m.params.Matcher
	if matcher == nil {
		matcher = CorrelationTextureMatcher{Threshold: 0.5}
	}
	score := matcher.Score(prev.prevTexture, report.Texture)
	if !matcher.Accept(score) {
		return nil, false
	}

	newMean := prev.derived.predMean.Add(prev.derived.gain.Mul(innovation))
	logLL := prev.derived.logCoef - mdist/2

	return &CVState{
		model:       m,
		mean:        newMean,
		cov:         prev.derived.nextCov,
		prevTexture: report.Texture,
		logLL:       logLL,
		skipCount:   0,
	}, true
}

// EndLogLikelihood implements Model per spec 4.4:
// p_end(m) = 1 - exp(-m/lambda), guarded against exact zero.
func (m *CVModel) EndLogLikelihood(state MotionState) float64 {
	endProb := m.endProb(state.SkipCount())
	return logSafe(endProb)
}

// ContinueLogLikelihood implements Model, the complement of EndLogLikelihood.
func (m *CVModel) ContinueLogLikelihood(state MotionState) float64 {
	endProb := m.endProb(state.SkipCount())
	return logSafe(1.0 - endProb)
}

func (m *CVModel) endProb(skipCount int) float64 {
	return 1.0 - math.Exp(-float64(skipCount)/m.params.Lambda)
}

// SkipLogLikelihood implements Model: a model-wide constant.
func (m *CVModel) SkipLogLikelihood(state MotionState) float64 { return m.skipLL }

// DetectLogLikelihood implements Model: a model-wide constant.
func (m *CVModel) DetectLogLikelihood(state MotionState) float64 { return m.detectLL }

// AllowsNewTrackAt implements Model (spec 4.4: "new-track initiation is
// permitted only at the very first scan" unless the caller has opted out
// of that restriction).
func (m *CVModel) AllowsNewTrackAt(firstScan bool) bool {
	return m.params.AllowNewTrackAfter || firstScan
}

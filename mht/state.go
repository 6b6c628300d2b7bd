package mht

import "sync"

// derivedBlock is the set of quantities section 3 describes as
// "populated at most once per state, on first use": the propagated
// covariance, innovation covariance and its inverse, Kalman gain, the
// next-step covariance, the predicted mean, and the Gaussian
// normalization coefficient used when scoring a measured continuation.
type derivedBlock struct {
	predMean    *Matrix // x_pred = F . x
	predCov     *Matrix // P1 = F P F^T + Q
	innovCov    *Matrix // S = H P1 H^T + R
	innovCovInv *Matrix // S^-1
	gain        *Matrix // W = P1 H^T S^-1
	nextCov     *Matrix // P_next = P1 - W S W^T
	logCoef     float64 // -(1.5963597 + 0.5 ln det S)
}

// CVState is the constant-velocity model's concrete MDL_STATE: a 4-D
// mean/covariance pair, the previous texture patch used for the next
// texture gate, this state's own log-likelihood contribution, and the
// track's current consecutive-skip count. The derived block is computed
// at most once, lazily, guarded by a sync.Once the way the reference's
// "if (!stateSetup) setup()" two-phase check works but made safe against
// duplicate concurrent setup.
type CVState struct {
	model *CVModel

	mean *Matrix // 4x1: x, xdot, y, ydot
	cov  *Matrix // 4x4

	prevTexture Texture
	logLL       float64
	skipCount   int

	once    sync.Once
	derived derivedBlock
}

// LogLikelihood implements MotionState.
func (s *CVState) LogLikelihood() float64 { return s.logLL }

// SkipCount implements MotionState.
func (s *CVState) SkipCount() int { return s.skipCount }

// X returns the estimated x position.
func (s *CVState) X() float64 { return s.mean.At(0, 0) }

// Y returns the estimated y position.
func (s *CVState) Y() float64 { return s.mean.At(2, 0) }

// VX returns the estimated x velocity.
func (s *CVState) VX() float64 { return s.mean.At(1, 0) }

// VY returns the estimated y velocity.
func (s *CVState) VY() float64 { return s.mean.At(3, 0) }

// Covariance returns the state's posterior covariance.
func (s *CVState) Covariance() *Matrix { return s.cov }

// setup populates the derived block exactly once, using dt as the
// interval from this state's own scan to the scan of the report or skip
// step that is consulting it. Only the first caller's dt takes effect,
// which is safe because each state is consulted as a "prevState" at most
// one time (the scan immediately after it was created).
func (s *CVState) setup(dt float64) {
	s.once.Do(func() {
		f := s.model.transition(dt)
		q := s.model.processNoise(dt)
		h := s.model.observation()
		r := s.model.measurementNoise()

		predMean := f.Mul(s.mean)
		predCov := f.Mul(s.cov).Mul(f.T()).Add(q)
		innovCov := h.Mul(predCov).Mul(h.T()).Add(r)
		innovCovInv, err := innovCov.Inverse()
		if err != nil {
			// Singular innovation covariance is a program-invariant
			// failure: R is always positive definite by construction.
			panic("mht: singular innovation covariance")
		}
		gain := predCov.Mul(h.T()).Mul(innovCovInv)
		nextCov := predCov.Sub(gain.Mul(innovCov).Mul(gain.T()))

		detS := innovCov.Det()
		logCoef := -(1.5963597 + 0.5*logSafe(detS))

		s.derived = derivedBlock{
			predMean:    predMean,
			predCov:     predCov,
			innovCov:    innovCov,
			innovCovInv: innovCovInv,
			gain:        gain,
			nextCov:     nextCov,
			logCoef:     logCoef,
		}
	})
}

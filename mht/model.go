package mht

// MotionState is the capability surface a concrete model's state
// (MDL_STATE) exposes to the rest of the engine, which otherwise treats
// motion physics as opaque. Concrete models attach whatever additional
// fields they need (mean, covariance, ...) on their own state type.
type MotionState interface {
	// LogLikelihood is this state's own contribution to its owning
	// node's cumulative path log-likelihood.
	LogLikelihood() float64
	// SkipCount is the number of consecutive scans without a detection
	// for the track this state belongs to.
	SkipCount() int
}

// Model is the polymorphic motion-model abstraction (MODEL) of spec
// section 4.3. The hypothesis generator drives tracks forward through a
// Model without any knowledge of the underlying physics.
type Model interface {
	// BeginNewStates announces how many child states could arise from
	// this (prevState, report) pair. Either argument may be nil.
	BeginNewStates(prevState MotionState, report *Report) int
	// GetNewState produces the i-th new state, or ok=false if it is
	// rejected (e.g. gated out). If prevState is nil this constructs a
	// new-track initial state from report. If report is nil this
	// constructs a skip continuation from prevState. If both are
	// present this constructs a measured continuation.
	GetNewState(i int, prevState MotionState, report *Report) (MotionState, bool)
	// EndNewStates is a cleanup hook called once BeginNewStates/
	// GetNewState are done being consulted for one (prevState, report)
	// pair.
	EndNewStates()

	// EndLogLikelihood and ContinueLogLikelihood are the complementary
	// probabilities of a track ending vs. continuing after state.
	EndLogLikelihood(state MotionState) float64
	ContinueLogLikelihood(state MotionState) float64
	// SkipLogLikelihood and DetectLogLikelihood are the complementary
	// probabilities that a continuing track is respectively unobserved
	// or observed on this scan.
	SkipLogLikelihood(state MotionState) float64
	DetectLogLikelihood(state MotionState) float64

	// Name identifies the model for diagnostics and the track-file
	// "modelType" column.
	Name() string

	// AllowsNewTrackAt reports whether this model may initiate a new
	// track this scan. firstScan is the engine's own first-scan flag
	// (spec section 9's "global scan time" note: re-expressed as
	// explicit engine state rather than a process-wide counter).
	AllowsNewTrackAt(firstScan bool) bool
}

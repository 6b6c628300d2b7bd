package mht

import "math"

// logEpsilon guards against ln(0) the way the reference tracker nudges
// probabilities away from exact zero before taking their log.
const logEpsilon = 1e-12

func logSafe(x float64) float64 {
	if x < logEpsilon {
		x = logEpsilon
	}
	return math.Log(x)
}

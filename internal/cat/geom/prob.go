package geom

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Probof returns the probability that a chi-square variable with ndof
// degrees of freedom exceeds chi2. Non-positive chi2 or ndof give 1.
func Probof(chi2 float64, ndof int) float64 {
	if math.IsNaN(chi2) {
		return 0
	}
	if chi2 <= 0 || ndof <= 0 {
		return 1
	}
	if math.IsInf(chi2, 1) {
		return 0
	}
	return distuv.ChiSquared{K: float64(ndof)}.Survival(chi2)
}

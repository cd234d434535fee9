// Package metrology implements the uncertainty calculations behind a
// calibration certificate: mean, signed error, repeatability, and the
// root-sum-square combination of uncertainty contributors.
//
// All functions are pure and operate at full float64 precision. Rounding to
// display precision happens in the template layer only, so combining values
// never compounds rounding error.
package metrology

import "math"

// CoverageFactor expands the combined standard uncertainty to roughly 95%
// confidence (k=2).
const CoverageFactor = 2.0

// Mean returns the arithmetic mean of the triplicate readings.
func Mean(m1, m2, m3 float64) float64 {
	return (m1 + m2 + m3) / 3
}

// SignedError returns standard − mean. The ordering matters: a positive error
// means the reference standard exceeds the instrument's mean reading.
func SignedError(standard, mean float64) float64 {
	return standard - mean
}

// Repeatability returns the sample standard deviation of the triplicate
// readings (Bessel's correction, n−1) divided by sqrt(3). Zero when fewer
// than two distinct readings are present.
func Repeatability(m1, m2, m3 float64) float64 {
	if m1 == m2 && m2 == m3 {
		return 0
	}
	mean := Mean(m1, m2, m3)
	sum := (m1-mean)*(m1-mean) + (m2-mean)*(m2-mean) + (m3-mean)*(m3-mean)
	stddev := math.Sqrt(sum / 2)
	return stddev / math.Sqrt(3)
}

// ResolutionUncertainty converts a declared instrument resolution into a
// standard uncertainty assuming a rectangular distribution over the half
// width: resolution / (2·sqrt(3)).
func ResolutionUncertainty(resolution float64) float64 {
	return resolution / (2 * math.Sqrt(3))
}

// Combined returns the root-sum-square of the standard uncertainty,
// repeatability, and resolution uncertainty contributors.
func Combined(uStandard, repeatability, uResolution float64) float64 {
	return math.Sqrt(uStandard*uStandard + repeatability*repeatability + uResolution*uResolution)
}

// Expanded scales the combined uncertainty by the coverage factor.
func Expanded(combined float64) float64 {
	return combined * CoverageFactor
}

// Round1 rounds to one decimal place. Presentation only.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

package fit

// ClipSigma computes the measurement uncertainty to weight a
// residual by, given a star-specific measured uncertainty and a
// configured default/floor. A configured default of exactly zero
// takes precedence and disables flooring (the caller wants raw
// measured uncertainties, even where none were computed); otherwise
// the larger of the two is used, so an under-reported measurement
// error never makes a contribution artificially dominant. Models
// (package model) use this to weight measurement residuals, and
// PhotometryModel also its reference residuals; AstrometryModel
// weights its reference residuals by a quadrature sum instead.
func ClipSigma(measuredSigma, defaultSigma float64) float64 {
	if defaultSigma == 0 {
		return measuredSigma
	}
	if measuredSigma == 0 {
		return defaultSigma
	}
	if defaultSigma > measuredSigma {
		return defaultSigma
	}
	return measuredSigma
}

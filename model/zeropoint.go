// Package model provides the two concrete fit.Model implementations
// (§4.9): AstrometryModel, which fits per-CcdImage Transforms against
// FittedStar positions, and PhotometryModel, which fits per-CcdImage
// flux zero-points against FittedStar fluxes. Both are built on the
// transform package and the fit package's parameter-layout helpers,
// and neither holds any FitterCore-specific logic of its own.
package model

// ZeroPoint is a one-parameter multiplicative photometric calibration:
// predicted reference flux = ZP * measured instrumental flux. It plays
// the same "per-image free parameter" role for PhotometryModel that a
// transform.Transform plays for AstrometryModel, but flux calibration
// has no need for the full 2-D Transform capability set.
type ZeroPoint struct {
	Value float64
}

// NewZeroPoint returns a ZeroPoint seeded at value (1.0 is a neutral
// starting point when instrumental and reference fluxes are already on
// comparable scales).
func NewZeroPoint(value float64) *ZeroPoint {
	return &ZeroPoint{Value: value}
}

// Apply returns the calibrated flux.
func (z *ZeroPoint) Apply(measuredFlux float64) float64 {
	return z.Value * measuredFlux
}

// DerivWrtZP returns d(Apply)/d(Value) at measuredFlux.
func (z *ZeroPoint) DerivWrtZP(measuredFlux float64) float64 {
	return measuredFlux
}

// ParameterCount is always 1.
func (z *ZeroPoint) ParameterCount() int { return 1 }

// OffsetParams applies delta[0] to Value.
func (z *ZeroPoint) OffsetParams(delta []float64) {
	z.Value += delta[0]
}

// Clone returns a copy.
func (z *ZeroPoint) Clone() *ZeroPoint {
	return &ZeroPoint{Value: z.Value}
}

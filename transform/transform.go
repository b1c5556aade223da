// Package transform defines the polymorphic ℝ²→ℝ² map capability that
// the fitter and the matcher consume (identity, shift, linear,
// rotation, and polynomial variants, plus a tangent-plane WCS), along
// with the text codec used to persist a polynomial transform.
package transform

import "github.com/batmanuel-sandbox/jointcal/geom"

// Jacobian is the 2x2 matrix of partial derivatives of a Transform's
// output with respect to its input, evaluated at a point: row i, col j
// is d(output_i)/d(input_j).
type Jacobian [2][2]float64

// Transform is the capability set the fitter and matcher see. Concrete
// variants (Identity, Shift, Linear, Rotation, Poly, TangentPlaneWCS)
// implement it without the fitter knowing which one it is holding.
type Transform interface {
	// Apply maps a point through the transform.
	Apply(p geom.Point) geom.Point

	// DerivativesWrtInputs returns the Jacobian of Apply at p.
	DerivativesWrtInputs(p geom.Point) Jacobian

	// DerivativesWrtParams returns, for each output component (x then
	// y), the partial derivative of that component with respect to
	// every one of this transform's free parameters, evaluated at p.
	// len(result) == 2, and len(result[i]) == ParameterCount().
	DerivativesWrtParams(p geom.Point) [2][]float64

	// ParameterCount reports how many free parameters this transform
	// has.
	ParameterCount() int

	// Params returns the current parameter vector, in the same order
	// DerivativesWrtParams and OffsetParams use.
	Params() []float64

	// OffsetParams applies an additive update to the parameter
	// vector, in place. len(delta) must equal ParameterCount().
	OffsetParams(delta []float64)

	// Compose returns the transform equivalent to applying t first,
	// then this transform (i.e. result(p) == this.Apply(t.Apply(p))).
	Compose(t Transform) Transform

	// Invert returns the inverse map, or an error if this transform
	// is not (numerically) invertible.
	Invert() (Transform, error)

	// Clone returns a deep copy, so a caller can try a tentative
	// update without mutating the original.
	Clone() Transform
}

// Identity is the 0-parameter identity map; it is the identity element
// for Compose.
var Identity Transform = identity{}

type identity struct{}

func (identity) Apply(p geom.Point) geom.Point { return p }

func (identity) DerivativesWrtInputs(geom.Point) Jacobian {
	return Jacobian{{1, 0}, {0, 1}}
}

func (identity) DerivativesWrtParams(geom.Point) [2][]float64 {
	return [2][]float64{{}, {}}
}

func (identity) ParameterCount() int         { return 0 }
func (identity) Params() []float64           { return nil }
func (identity) OffsetParams([]float64)      {}
func (identity) Compose(t Transform) Transform { return t }
func (identity) Invert() (Transform, error)  { return Identity, nil }
func (identity) Clone() Transform            { return Identity }

package transform

import (
	"math"

	"github.com/batmanuel-sandbox/jointcal/geom"
)

// TangentPlaneWCS composes a fixed gnomonic (tangent-plane) projection
// about a given sky pole with an affine pixel-to-tangent-plane map.
// The projection itself carries no free parameters; the Affine field
// (any Transform, typically a Shift composed with a Linear) is the
// only piece the fitter adjusts.
type TangentPlaneWCS struct {
	PoleRA, PoleDec float64 // radians
	Affine          Transform // pixel -> tangent-plane coordinates (radians)
}

// NewTangentPlaneWCS returns a WCS with the given pole and an initial
// affine part.
func NewTangentPlaneWCS(poleRA, poleDec float64, affine Transform) *TangentPlaneWCS {
	return &TangentPlaneWCS{PoleRA: poleRA, PoleDec: poleDec, Affine: affine}
}

// gnomonic projects a tangent-plane offset (radians) about the pole
// into (RA, Dec) radians. It has no free parameters.
func (w *TangentPlaneWCS) gnomonic(tp geom.Point) geom.Point {
	sinDec0, cosDec0 := math.Sincos(w.PoleDec)
	rho := math.Hypot(tp.X, tp.Y)
	if rho == 0 {
		return geom.Point{X: w.PoleRA, Y: w.PoleDec}
	}
	c := math.Atan(rho)
	sinC, cosC := math.Sincos(c)
	dec := math.Asin(cosC*sinDec0 + tp.Y*sinC*cosDec0/rho)
	ra := w.PoleRA + math.Atan2(tp.X*sinC, rho*cosDec0*cosC-tp.Y*sinDec0*sinC)
	return geom.Point{X: ra, Y: dec}
}

func (w *TangentPlaneWCS) Apply(p geom.Point) geom.Point {
	return w.gnomonic(w.Affine.Apply(p))
}

// DerivativesWrtInputs is evaluated by numerical differentiation of
// the projection composed with the affine part: the projection has no
// closed-form Jacobian worth hand-deriving here, and this transform is
// never itself composed further, only evaluated and fit.
func (w *TangentPlaneWCS) DerivativesWrtInputs(p geom.Point) Jacobian {
	const h = 1e-6
	base := w.Apply(p)
	dx := w.Apply(geom.Point{X: p.X + h, Y: p.Y})
	dy := w.Apply(geom.Point{X: p.X, Y: p.Y + h})
	return Jacobian{
		{(dx.X - base.X) / h, (dy.X - base.X) / h},
		{(dx.Y - base.Y) / h, (dy.Y - base.Y) / h},
	}
}

func (w *TangentPlaneWCS) DerivativesWrtParams(p geom.Point) [2][]float64 {
	mid := w.Affine.Apply(p)
	affineD := w.Affine.DerivativesWrtParams(p)
	jProj := w.projectionJacobianAt(mid)
	n := w.Affine.ParameterCount()
	out := [2][]float64{make([]float64, n), make([]float64, n)}
	for k := 0; k < n; k++ {
		vx, vy := affineD[0][k], affineD[1][k]
		out[0][k] = jProj[0][0]*vx + jProj[0][1]*vy
		out[1][k] = jProj[1][0]*vx + jProj[1][1]*vy
	}
	return out
}

func (w *TangentPlaneWCS) projectionJacobianAt(tp geom.Point) Jacobian {
	const h = 1e-6
	base := w.gnomonic(tp)
	dx := w.gnomonic(geom.Point{X: tp.X + h, Y: tp.Y})
	dy := w.gnomonic(geom.Point{X: tp.X, Y: tp.Y + h})
	return Jacobian{
		{(dx.X - base.X) / h, (dy.X - base.X) / h},
		{(dx.Y - base.Y) / h, (dy.Y - base.Y) / h},
	}
}

func (w *TangentPlaneWCS) ParameterCount() int { return w.Affine.ParameterCount() }
func (w *TangentPlaneWCS) Params() []float64   { return w.Affine.Params() }
func (w *TangentPlaneWCS) OffsetParams(delta []float64) {
	w.Affine.OffsetParams(delta)
}

func (w *TangentPlaneWCS) Compose(t Transform) Transform {
	return &Composed{Outer: w, Inner: t}
}

func (w *TangentPlaneWCS) Invert() (Transform, error) {
	affineInv, err := w.Affine.Invert()
	if err != nil {
		return nil, err
	}
	return &tangentPlaneInverse{fwd: w, affineInv: affineInv}, nil
}

func (w *TangentPlaneWCS) Clone() Transform {
	return &TangentPlaneWCS{PoleRA: w.PoleRA, PoleDec: w.PoleDec, Affine: w.Affine.Clone()}
}

// tangentPlaneInverse maps sky coordinates back to pixels: invert the
// gnomonic projection numerically (it is its own simple closed form
// for a tangent-plane, but expressed here via the same Newton
// machinery used for high-order polynomials, for uniformity), then
// apply the affine inverse.
type tangentPlaneInverse struct {
	fwd       *TangentPlaneWCS
	affineInv Transform
}

func (t *tangentPlaneInverse) Apply(sky geom.Point) geom.Point {
	tp := newNewtonInverse(gnomonicOnly{t.fwd}).Apply(sky)
	return t.affineInv.Apply(tp)
}

// gnomonicOnly adapts TangentPlaneWCS.gnomonic to the Transform
// interface subset newtonInverse needs (Apply, DerivativesWrtInputs).
type gnomonicOnly struct{ w *TangentPlaneWCS }

func (g gnomonicOnly) Apply(p geom.Point) geom.Point { return g.w.gnomonic(p) }
func (g gnomonicOnly) DerivativesWrtInputs(p geom.Point) Jacobian {
	return g.w.projectionJacobianAt(p)
}
func (g gnomonicOnly) DerivativesWrtParams(geom.Point) [2][]float64 { return [2][]float64{{}, {}} }
func (g gnomonicOnly) ParameterCount() int                          { return 0 }
func (g gnomonicOnly) Params() []float64                            { return nil }
func (g gnomonicOnly) OffsetParams([]float64)                       {}
func (g gnomonicOnly) Compose(t Transform) Transform                { return &Composed{Outer: g, Inner: t} }
func (g gnomonicOnly) Invert() (Transform, error)                   { return nil, errNoInverse }
func (g gnomonicOnly) Clone() Transform                             { return g }

// DerivativesWrtInputs is the matrix inverse of the forward Jacobian
// evaluated at Apply(p).
func (t *tangentPlaneInverse) DerivativesWrtInputs(p geom.Point) Jacobian {
	j := t.fwd.DerivativesWrtInputs(t.Apply(p))
	det := j[0][0]*j[1][1] - j[0][1]*j[1][0]
	if det == 0 {
		return Jacobian{}
	}
	inv := 1 / det
	return Jacobian{
		{j[1][1] * inv, -j[0][1] * inv},
		{-j[1][0] * inv, j[0][0] * inv},
	}
}
func (t *tangentPlaneInverse) DerivativesWrtParams(geom.Point) [2][]float64 {
	return [2][]float64{{}, {}}
}
func (t *tangentPlaneInverse) ParameterCount() int    { return 0 }
func (t *tangentPlaneInverse) Params() []float64      { return nil }
func (t *tangentPlaneInverse) OffsetParams([]float64) {}
func (t *tangentPlaneInverse) Compose(other Transform) Transform {
	return &Composed{Outer: t, Inner: other}
}
func (t *tangentPlaneInverse) Invert() (Transform, error) { return t.fwd.Clone(), nil }
func (t *tangentPlaneInverse) Clone() Transform {
	return &tangentPlaneInverse{fwd: t.fwd, affineInv: t.affineInv.Clone()}
}

package transform

import (
	"math"

	"github.com/batmanuel-sandbox/jointcal/geom"
)

// Rotation is a rotation by Theta radians about a fixed center. The
// center is configuration, not a free parameter: only Theta is fit.
type Rotation struct {
	Theta  float64
	Center geom.Point
}

// NewRotation returns a Rotation transform of theta radians about
// center.
func NewRotation(theta float64, center geom.Point) *Rotation {
	return &Rotation{Theta: theta, Center: center}
}

func (r *Rotation) Apply(p geom.Point) geom.Point {
	s, c := math.Sincos(r.Theta)
	dx, dy := p.X-r.Center.X, p.Y-r.Center.Y
	return geom.Point{
		X: r.Center.X + c*dx - s*dy,
		Y: r.Center.Y + s*dx + c*dy,
	}
}

func (r *Rotation) DerivativesWrtInputs(geom.Point) Jacobian {
	s, c := math.Sincos(r.Theta)
	return Jacobian{{c, -s}, {s, c}}
}

func (r *Rotation) DerivativesWrtParams(p geom.Point) [2][]float64 {
	s, c := math.Sincos(r.Theta)
	dx, dy := p.X-r.Center.X, p.Y-r.Center.Y
	return [2][]float64{
		{-s*dx - c*dy},
		{c*dx - s*dy},
	}
}

func (r *Rotation) ParameterCount() int { return 1 }

func (r *Rotation) Params() []float64 { return []float64{r.Theta} }

func (r *Rotation) OffsetParams(delta []float64) {
	r.Theta += delta[0]
}

func (r *Rotation) Compose(t Transform) Transform {
	if _, ok := t.(identity); ok {
		return r.Clone()
	}
	return &Composed{Outer: r, Inner: t}
}

func (r *Rotation) Invert() (Transform, error) {
	return NewRotation(-r.Theta, r.Center), nil
}

func (r *Rotation) Clone() Transform {
	c := *r
	return &c
}

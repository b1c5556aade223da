package transform

import (
	"errors"

	"github.com/batmanuel-sandbox/jointcal/geom"
)

// Linear is a pure 2x2 linear map (no translation): p' = [[A,B],[C,D]] p.
// It has 4 free parameters, in the order A, B, C, D.
type Linear struct {
	A, B, C, D float64
}

// NewLinear returns a Linear transform with the given matrix entries.
func NewLinear(a, b, c, d float64) *Linear {
	return &Linear{A: a, B: b, C: c, D: d}
}

func (l *Linear) Apply(p geom.Point) geom.Point {
	return geom.Point{X: l.A*p.X + l.B*p.Y, Y: l.C*p.X + l.D*p.Y}
}

func (l *Linear) DerivativesWrtInputs(geom.Point) Jacobian {
	return Jacobian{{l.A, l.B}, {l.C, l.D}}
}

func (l *Linear) DerivativesWrtParams(p geom.Point) [2][]float64 {
	return [2][]float64{
		{p.X, p.Y, 0, 0},
		{0, 0, p.X, p.Y},
	}
}

func (l *Linear) ParameterCount() int { return 4 }

func (l *Linear) Params() []float64 { return []float64{l.A, l.B, l.C, l.D} }

func (l *Linear) OffsetParams(delta []float64) {
	l.A += delta[0]
	l.B += delta[1]
	l.C += delta[2]
	l.D += delta[3]
}

func (l *Linear) Compose(t Transform) Transform {
	if _, ok := t.(identity); ok {
		return l.Clone()
	}
	return &Composed{Outer: l, Inner: t}
}

func (l *Linear) Invert() (Transform, error) {
	det := l.A*l.D - l.B*l.C
	if det == 0 {
		return nil, errors.New("transform: linear map is singular, cannot invert")
	}
	inv := 1 / det
	return NewLinear(l.D*inv, -l.B*inv, -l.C*inv, l.A*inv), nil
}

func (l *Linear) Clone() Transform {
	c := *l
	return &c
}

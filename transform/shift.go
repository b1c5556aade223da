package transform

import "github.com/batmanuel-sandbox/jointcal/geom"

// Shift is a pure translation: 2 free parameters (dx, dy).
type Shift struct {
	Dx, Dy float64
}

// NewShift returns a Shift transform with the given offset.
func NewShift(dx, dy float64) *Shift {
	return &Shift{Dx: dx, Dy: dy}
}

func (s *Shift) Apply(p geom.Point) geom.Point {
	return geom.Point{X: p.X + s.Dx, Y: p.Y + s.Dy}
}

func (s *Shift) DerivativesWrtInputs(geom.Point) Jacobian {
	return Jacobian{{1, 0}, {0, 1}}
}

func (s *Shift) DerivativesWrtParams(geom.Point) [2][]float64 {
	return [2][]float64{{1, 0}, {0, 1}}
}

func (s *Shift) ParameterCount() int { return 2 }

func (s *Shift) Params() []float64 { return []float64{s.Dx, s.Dy} }

func (s *Shift) OffsetParams(delta []float64) {
	s.Dx += delta[0]
	s.Dy += delta[1]
}

func (s *Shift) Compose(t Transform) Transform {
	if _, ok := t.(identity); ok {
		return s.Clone()
	}
	return &Composed{Outer: s, Inner: t}
}

func (s *Shift) Invert() (Transform, error) {
	return NewShift(-s.Dx, -s.Dy), nil
}

func (s *Shift) Clone() Transform {
	c := *s
	return &c
}

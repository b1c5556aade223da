package transform

import "github.com/batmanuel-sandbox/jointcal/geom"

// Composed is the generic transform equivalent to applying Inner
// first, then Outer. It implements the chain rule over whatever
// concrete transforms Outer and Inner are, so two transforms with no
// closed-form combination (e.g. two polynomials) can still be
// composed.
type Composed struct {
	Outer, Inner Transform
}

func (c *Composed) Apply(p geom.Point) geom.Point {
	return c.Outer.Apply(c.Inner.Apply(p))
}

func (c *Composed) DerivativesWrtInputs(p geom.Point) Jacobian {
	mid := c.Inner.Apply(p)
	jOuter := c.Outer.DerivativesWrtInputs(mid)
	jInner := c.Inner.DerivativesWrtInputs(p)
	return matMul(jOuter, jInner)
}

func matMul(a, b Jacobian) Jacobian {
	var r Jacobian
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			r[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j]
		}
	}
	return r
}

func (c *Composed) DerivativesWrtParams(p geom.Point) [2][]float64 {
	mid := c.Inner.Apply(p)
	outerD := c.Outer.DerivativesWrtParams(mid)
	innerD := c.Inner.DerivativesWrtParams(p)
	jOuter := c.Outer.DerivativesWrtInputs(mid)

	nOuter := c.Outer.ParameterCount()
	nInner := c.Inner.ParameterCount()
	var out [2][]float64
	out[0] = make([]float64, 0, nOuter+nInner)
	out[1] = make([]float64, 0, nOuter+nInner)

	// Outer's own parameters act directly on the final output.
	out[0] = append(out[0], outerD[0]...)
	out[1] = append(out[1], outerD[1]...)

	// Inner's parameters act on the midpoint; push their effect
	// through the outer Jacobian.
	for k := 0; k < nInner; k++ {
		vx, vy := innerD[0][k], innerD[1][k]
		out[0] = append(out[0], jOuter[0][0]*vx+jOuter[0][1]*vy)
		out[1] = append(out[1], jOuter[1][0]*vx+jOuter[1][1]*vy)
	}
	return out
}

func (c *Composed) ParameterCount() int {
	return c.Outer.ParameterCount() + c.Inner.ParameterCount()
}

func (c *Composed) Params() []float64 {
	return append(append([]float64{}, c.Outer.Params()...), c.Inner.Params()...)
}

func (c *Composed) OffsetParams(delta []float64) {
	nOuter := c.Outer.ParameterCount()
	c.Outer.OffsetParams(delta[:nOuter])
	c.Inner.OffsetParams(delta[nOuter:])
}

func (c *Composed) Compose(t Transform) Transform {
	return &Composed{Outer: c, Inner: t}
}

func (c *Composed) Invert() (Transform, error) {
	outerInv, err := c.Outer.Invert()
	if err != nil {
		return nil, err
	}
	innerInv, err := c.Inner.Invert()
	if err != nil {
		return nil, err
	}
	// inverse of Outer∘Inner is InnerInv∘OuterInv
	return &Composed{Outer: innerInv, Inner: outerInv}, nil
}

func (c *Composed) Clone() Transform {
	return &Composed{Outer: c.Outer.Clone(), Inner: c.Inner.Clone()}
}

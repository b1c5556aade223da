package transform

import "github.com/batmanuel-sandbox/jointcal/geom"

// term is one monomial x^px * y^py in a polynomial transform.
type term struct{ px, py int }

// monomialTerms enumerates the (px,py) exponent pairs for a polynomial
// of the given order, in the textual/parameter order the package
// uses: ascending total degree, and within a degree, px descending
// from the degree down to 0 (a00, a10, a01, a20, a11, a02, ...).
func monomialTerms(order int) []term {
	terms := make([]term, 0, (order+1)*(order+2)/2)
	for d := 0; d <= order; d++ {
		for px := d; px >= 0; px-- {
			terms = append(terms, term{px: px, py: d - px})
		}
	}
	return terms
}

// Poly is a polynomial transform of a fixed order: x' and y' are each
// a dense linear combination of monomials x^px*y^py with px+py<=Order.
// It is the type MatchList.RefineTransform fits, and the general case
// every lower-order Transform in this package is a special case of.
type Poly struct {
	Order  int
	terms  []term
	Ax, Ay []float64 // one coefficient per term, same order as terms
}

// NewPoly returns a zero (identity-like only at order>=1 with Ax={0,1,0},
// Ay={0,0,1}) polynomial transform of the given order with all
// coefficients zero. Use NewIdentityPoly for an order>=1 polynomial
// that starts as the identity map.
func NewPoly(order int) *Poly {
	terms := monomialTerms(order)
	return &Poly{Order: order, terms: terms, Ax: make([]float64, len(terms)), Ay: make([]float64, len(terms))}
}

// NewIdentityPoly returns an order>=1 polynomial transform whose
// coefficients reproduce the identity map: x'=x, y'=y.
func NewIdentityPoly(order int) *Poly {
	p := NewPoly(order)
	for i, t := range p.terms {
		if t.px == 1 && t.py == 0 {
			p.Ax[i] = 1
		}
		if t.px == 0 && t.py == 1 {
			p.Ay[i] = 1
		}
	}
	return p
}

func pow(base float64, exp int) float64 {
	r := 1.0
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}

func (p *Poly) monomial(px geom.Point, t term) float64 {
	return pow(px.X, t.px) * pow(px.Y, t.py)
}

// Coefficients returns the (px,py) term list this polynomial's Ax/Ay
// coefficients are indexed by, for callers (e.g. the least-squares
// polynomial fitter) that need to build a design matrix without
// duplicating the exponent-ordering rule.
func (p *Poly) Coefficients() []struct{ Px, Py int } {
	out := make([]struct{ Px, Py int }, len(p.terms))
	for i, t := range p.terms {
		out[i] = struct{ Px, Py int }{t.px, t.py}
	}
	return out
}

// MonomialRow evaluates every monomial of this polynomial's order at
// pt, in coefficient order, for use as one row of a least-squares
// design matrix.
func (p *Poly) MonomialRow(pt geom.Point) []float64 {
	row := make([]float64, len(p.terms))
	for i, t := range p.terms {
		row[i] = p.monomial(pt, t)
	}
	return row
}

func (p *Poly) Apply(pt geom.Point) geom.Point {
	var x, y float64
	for i, t := range p.terms {
		m := p.monomial(pt, t)
		x += p.Ax[i] * m
		y += p.Ay[i] * m
	}
	return geom.Point{X: x, Y: y}
}

func (p *Poly) DerivativesWrtInputs(pt geom.Point) Jacobian {
	var j Jacobian
	for i, t := range p.terms {
		if t.px > 0 {
			dmdx := float64(t.px) * pow(pt.X, t.px-1) * pow(pt.Y, t.py)
			j[0][0] += p.Ax[i] * dmdx
			j[1][0] += p.Ay[i] * dmdx
		}
		if t.py > 0 {
			dmdy := pow(pt.X, t.px) * float64(t.py) * pow(pt.Y, t.py-1)
			j[0][1] += p.Ax[i] * dmdy
			j[1][1] += p.Ay[i] * dmdy
		}
	}
	return j
}

func (p *Poly) DerivativesWrtParams(pt geom.Point) [2][]float64 {
	n := len(p.terms)
	dx := make([]float64, 2*n)
	dy := make([]float64, 2*n)
	for i, t := range p.terms {
		m := p.monomial(pt, t)
		dx[i] = m   // d(x')/d(Ax[i])
		dy[n+i] = m // d(y')/d(Ay[i])
	}
	return [2][]float64{dx, dy}
}

func (p *Poly) ParameterCount() int { return 2 * len(p.terms) }

func (p *Poly) Params() []float64 {
	out := make([]float64, 0, 2*len(p.terms))
	out = append(out, p.Ax...)
	out = append(out, p.Ay...)
	return out
}

func (p *Poly) OffsetParams(delta []float64) {
	n := len(p.terms)
	for i := 0; i < n; i++ {
		p.Ax[i] += delta[i]
		p.Ay[i] += delta[n+i]
	}
}

func (p *Poly) Compose(t Transform) Transform {
	if _, ok := t.(identity); ok {
		return p.Clone()
	}
	return &Composed{Outer: p, Inner: t}
}

// Invert returns the functional inverse. Order-1 polynomials (affine
// maps) are inverted in closed form; higher orders have no closed-form
// inverse and are wrapped in a Newton-iteration evaluator instead, per
// the design notes.
func (p *Poly) Invert() (Transform, error) {
	if p.Order == 1 {
		lin, shift := p.asAffine()
		linInv, err := lin.Invert()
		if err != nil {
			return nil, err
		}
		shiftInv := NewShift(-shift.Dx, -shift.Dy)
		// inverse of Shift∘Linear is LinearInv∘ShiftInv (apply ShiftInv
		// first, undoing the translation, then LinearInv).
		return &Composed{Outer: linInv, Inner: shiftInv}, nil
	}
	return newNewtonInverse(p), nil
}

// asAffine splits an order-1 Poly into its Linear and Shift parts:
// Apply(p) == Shift.Apply(Linear.Apply(p)).
func (p *Poly) asAffine() (*Linear, *Shift) {
	var a00x, a10x, a01x, a00y, a10y, a01y float64
	for i, t := range p.terms {
		switch {
		case t.px == 0 && t.py == 0:
			a00x, a00y = p.Ax[i], p.Ay[i]
		case t.px == 1 && t.py == 0:
			a10x, a10y = p.Ax[i], p.Ay[i]
		case t.px == 0 && t.py == 1:
			a01x, a01y = p.Ax[i], p.Ay[i]
		}
	}
	return NewLinear(a10x, a01x, a10y, a01y), NewShift(a00x, a00y)
}

func (p *Poly) Clone() Transform {
	c := &Poly{Order: p.Order, terms: p.terms, Ax: append([]float64{}, p.Ax...), Ay: append([]float64{}, p.Ay...)}
	return c
}

package transform

import (
	"math"

	"github.com/batmanuel-sandbox/jointcal/geom"
)

// newtonInverse numerically evaluates the functional inverse of a
// forward Transform that has no closed-form inverse (a polynomial of
// order>1). It is read-only with respect to fitting: it has no free
// parameters of its own, since "the inverse of a fitted polynomial"
// is a point-mapping utility the matcher and diagnostics use, not
// something the Gauss-Newton loop fits directly.
type newtonInverse struct {
	fwd Transform
}

func newNewtonInverse(fwd Transform) *newtonInverse {
	return &newtonInverse{fwd: fwd}
}

const (
	newtonMaxIter = 50
	newtonTol     = 1e-12
)

// Apply solves fwd(x) == target for x by Newton-Raphson, starting from
// target itself (a reasonable starting point for the near-identity
// distortions this package's polynomials represent).
func (n *newtonInverse) Apply(target geom.Point) geom.Point {
	x := target
	for i := 0; i < newtonMaxIter; i++ {
		cur := n.fwd.Apply(x)
		rx, ry := cur.X-target.X, cur.Y-target.Y
		if math.Hypot(rx, ry) < newtonTol {
			break
		}
		j := n.fwd.DerivativesWrtInputs(x)
		det := j[0][0]*j[1][1] - j[0][1]*j[1][0]
		if det == 0 {
			break
		}
		// solve J * delta = -residual
		invDet := 1 / det
		dx := invDet * (j[1][1]*(-rx) - j[0][1]*(-ry))
		dy := invDet * (-j[1][0]*(-rx) + j[0][0]*(-ry))
		x.X += dx
		x.Y += dy
	}
	return x
}

func (n *newtonInverse) DerivativesWrtInputs(p geom.Point) Jacobian {
	// Jacobian of the inverse at p is the matrix inverse of the
	// forward Jacobian evaluated at Apply(p).
	sol := n.Apply(p)
	j := n.fwd.DerivativesWrtInputs(sol)
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

func (n *newtonInverse) DerivativesWrtParams(geom.Point) [2][]float64 {
	return [2][]float64{{}, {}}
}

func (n *newtonInverse) ParameterCount() int    { return 0 }
func (n *newtonInverse) Params() []float64      { return nil }
func (n *newtonInverse) OffsetParams([]float64) {}

func (n *newtonInverse) Compose(t Transform) Transform {
	return &Composed{Outer: n, Inner: t}
}

func (n *newtonInverse) Invert() (Transform, error) {
	return n.fwd.Clone(), nil
}

func (n *newtonInverse) Clone() Transform {
	return &newtonInverse{fwd: n.fwd.Clone()}
}

package match

import (
	"errors"

	"github.com/batmanuel-sandbox/jointcal/transform"
	"gonum.org/v1/gonum/mat"
)

// FitPolyLeastSquares fits a Poly transform of the given order to
// pairs by ordinary least squares: for each pair, the polynomial's x
// and y components should map s1 to s2. Both components share the
// same design matrix (the monomials of s1), so the two normal
// equations are solved independently with the same QR factorization.
func FitPolyLeastSquares(pairs []Pair, order int) (*transform.Poly, error) {
	p := transform.NewPoly(order)
	nTerms := len(p.Coefficients())
	n := len(pairs)
	if n < nTerms {
		return nil, errors.New("match: not enough pairs to fit this polynomial order")
	}

	design := mat.NewDense(n, nTerms, nil)
	bx := mat.NewVecDense(n, nil)
	by := mat.NewVecDense(n, nil)
	for i, pr := range pairs {
		row := p.MonomialRow(pr.S1.Point)
		design.SetRow(i, row)
		bx.SetVec(i, pr.S2.X)
		by.SetVec(i, pr.S2.Y)
	}

	var qr mat.QR
	qr.Factorize(design)

	var solX, solY mat.VecDense
	if err := qr.SolveVecTo(&solX, false, bx); err != nil {
		return nil, errors.New("match: polynomial fit is rank-deficient (degenerate/collinear input)")
	}
	if err := qr.SolveVecTo(&solY, false, by); err != nil {
		return nil, errors.New("match: polynomial fit is rank-deficient (degenerate/collinear input)")
	}
	for i := 0; i < nTerms; i++ {
		p.Ax[i] = solX.AtVec(i)
		p.Ay[i] = solY.AtVec(i)
	}
	return p, nil
}

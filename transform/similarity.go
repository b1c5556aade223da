package transform

import (
	"errors"
	"math"

	"github.com/batmanuel-sandbox/jointcal/geom"
)

// SimilarityFromPair returns the unique similarity transform (uniform
// scale, rotation, translation, optionally a reflection) mapping a->aPrime
// and b->bPrime. It is the closed-form hypothesis the combinatorial
// matcher builds from one pair of source/target point pairs.
//
// With flip=false the returned transform preserves orientation; with
// flip=true it additionally reflects across the x-axis of the source
// frame before rotating, matching matchSearchRotShiftFlip's search
// over reflected hypotheses.
func SimilarityFromPair(a, b, aPrime, bPrime geom.Point, flip bool) (Transform, error) {
	d := complex(b.X-a.X, b.Y-a.Y)
	dPrime := complex(bPrime.X-aPrime.X, bPrime.Y-aPrime.Y)
	if d == 0 {
		return nil, errors.New("transform: degenerate point pair, zero baseline")
	}

	var m complex128
	var za complex128
	if flip {
		// reflect the source across the x-axis before rotating/scaling:
		// w = m*conj(z) + t
		dConj := complex(real(d), -imag(d))
		if dConj == 0 {
			return nil, errors.New("transform: degenerate point pair, zero baseline")
		}
		m = dPrime / dConj
		za = complex(a.X, -a.Y)
	} else {
		m = dPrime / d
		za = complex(a.X, a.Y)
	}
	t := complex(aPrime.X, aPrime.Y) - m*za
	mr, mi := real(m), imag(m)

	var lin *Linear
	if flip {
		// w = m*conj(z): (x,y) -> (mr*x+mi*y, mi*x-mr*y), an
		// orientation-reversing linear map.
		lin = NewLinear(mr, mi, mi, -mr)
	} else {
		// w = m*z: (x,y) -> (mr*x-mi*y, mi*x+mr*y).
		lin = NewLinear(mr, -mi, mi, mr)
	}
	shift := NewShift(real(t), imag(t))
	return shift.Compose(lin), nil
}

// ScaleOf returns the uniform scale factor of a Linear whose matrix is
// a pure scale+rotation(+reflection), such as the linear part of a
// similarity transform. SimilarityFromPair itself returns a Composed
// (Shift after Linear), not a *Linear.
func ScaleOf(lin *Linear) float64 {
	return (math.Hypot(lin.A, lin.C) + math.Hypot(lin.B, lin.D)) / 2
}

// Package match implements the combinatorial similarity-transform
// bootstrap matcher (§4.3) and its supporting MatchList container
// (§4.2), used to seed initial per-detector transforms before the
// fitter takes over.
package match

import (
	"errors"
	"math"

	"github.com/batmanuel-sandbox/jointcal/geom"
	"github.com/batmanuel-sandbox/jointcal/star"
	"github.com/batmanuel-sandbox/jointcal/transform"
)

// ErrNoInitialMatch is returned when the combinatorial search never
// reached MatchConditions.MinMatchRatio.
var ErrNoInitialMatch = errors.New("match: no initial match found")

// Pair is one (s1,s2) correspondence discovered by the matcher.
type Pair struct {
	S1, S2   star.BaseStar
	Residual float64 // |transform(s1)-s2|, valid once List.ApplyTransform has run
}

// List is an ordered sequence of star pairs plus the current fitted
// Transform relating them (s1's frame -> s2's frame).
type List struct {
	Pairs     []Pair
	Transform transform.Transform
}

// NewList returns an empty MatchList with the given initial
// transform (Identity if t is nil).
func NewList(t transform.Transform) *List {
	if t == nil {
		t = transform.Identity
	}
	return &List{Transform: t}
}

// Add appends one correspondence.
func (l *List) Add(s1, s2 star.BaseStar) {
	l.Pairs = append(l.Pairs, Pair{S1: s1, S2: s2})
}

// SetTransform replaces the current transform.
func (l *List) SetTransform(t transform.Transform) {
	l.Transform = t
}

// ApplyTransform recomputes each pair's Residual under the current
// transform and returns the residual vectors (transform(s1)-s2).
func (l *List) ApplyTransform() []geom.Point {
	residuals := make([]geom.Point, len(l.Pairs))
	for i := range l.Pairs {
		p := l.Pairs[i]
		mapped := l.Transform.Apply(p.S1.Point)
		r := mapped.Sub(p.S2.Point)
		l.Pairs[i].Residual = r.Norm()
		residuals[i] = r
	}
	return residuals
}

// Chi2 returns Σ|t(s1)-s2|² under the current transform.
func (l *List) Chi2() float64 {
	total := 0.0
	for _, p := range l.Pairs {
		d := l.Transform.Apply(p.S1.Point).Sub(p.S2.Point)
		total += d.X*d.X + d.Y*d.Y
	}
	return total
}

// Dedup removes duplicate correspondences: when the same s1 (compared
// by value equality of its position and flux, since BaseStar is a
// plain value) appears in multiple pairs, only the one with the smallest residual under the
// current transform is kept; likewise for s2.
func (l *List) Dedup() {
	l.ApplyTransform()
	bestForS1 := make(map[star.BaseStar]int)
	bestForS2 := make(map[star.BaseStar]int)
	keep := make([]bool, len(l.Pairs))
	for i := range keep {
		keep[i] = true
	}
	for i, p := range l.Pairs {
		if j, ok := bestForS1[p.S1]; ok {
			if l.Pairs[j].Residual <= p.Residual {
				keep[i] = false
				continue
			}
			keep[j] = false
		}
		bestForS1[p.S1] = i
	}
	for i, p := range l.Pairs {
		if !keep[i] {
			continue
		}
		if j, ok := bestForS2[p.S2]; ok {
			if l.Pairs[j].Residual <= p.Residual {
				keep[i] = false
				continue
			}
			keep[j] = false
		}
		bestForS2[p.S2] = i
	}
	out := l.Pairs[:0]
	for i, p := range l.Pairs {
		if keep[i] {
			out = append(out, p)
		}
	}
	l.Pairs = out
}

// RefineChi2Ndof reports the current chi2 and ndof (2 residual
// dimensions per pair minus the transform's parameter count) so
// callers can judge whether raising the polynomial order is helping.
func (l *List) RefineChi2Ndof() (chi2 float64, ndof int) {
	chi2 = l.Chi2()
	ndof = 2*len(l.Pairs) - l.Transform.ParameterCount()
	return chi2, ndof
}

// RefineTransform fits a polynomial transform of increasing order
// (starting at 1) to the current pairs by ordinary least squares,
// raising the order only while chi2/ndof keeps improving past
// refineImprovementThreshold, stopping at maxOrder or when residuals
// plateau. It replaces l.Transform with the best fit found.
const refineImprovementThreshold = 0.98

func (l *List) RefineTransform(maxOrder int) error {
	if len(l.Pairs) == 0 {
		return errors.New("match: cannot refine transform with no pairs")
	}
	var best transform.Transform
	bestRatio := math.MaxFloat64
	for order := 1; order <= maxOrder; order++ {
		if 2*len(l.Pairs) <= (order+1)*(order+2) {
			break // not enough pairs to constrain this order
		}
		fitted, err := FitPolyLeastSquares(l.Pairs, order)
		if err != nil {
			break
		}
		l.Transform = fitted
		chi2, ndof := l.RefineChi2Ndof()
		if ndof <= 0 {
			break
		}
		ratio := chi2 / float64(ndof)
		if best == nil || ratio < bestRatio*refineImprovementThreshold {
			best = fitted
			bestRatio = ratio
			continue
		}
		break
	}
	if best == nil {
		return errors.New("match: refine failed to improve on any order")
	}
	l.Transform = best
	return nil
}

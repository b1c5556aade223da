package match

import (
	"errors"
	"math"
	"sort"

	"github.com/batmanuel-sandbox/jointcal/geom"
	"github.com/batmanuel-sandbox/jointcal/spatial"
	"github.com/batmanuel-sandbox/jointcal/star"
	"github.com/batmanuel-sandbox/jointcal/transform"
)

// candidatePair is one (a,b) baseline drawn from a truncated,
// flux-sorted star list, used as a 2-point similarity-transform
// hypothesis anchor.
type candidatePair struct {
	a, b star.BaseStar
}

// truncateByFlux returns the n brightest stars of stars, brightest
// first.
func truncateByFlux(stars []star.BaseStar, n int) []star.BaseStar {
	cp := append([]star.BaseStar(nil), stars...)
	star.SortByFluxDescending(cp)
	if n < len(cp) {
		cp = cp[:n]
	}
	return cp
}

// baselineCandidates draws up to maxTrialCount consecutive-in-flux
// (a,b) baselines from the brightest end of a flux-sorted list: this
// bounds the combinatorial search to at most maxTrialCount*maxTrialCount
// total hypotheses, per the specification's trial-count budget.
func baselineCandidates(sorted []star.BaseStar, maxTrialCount int) []candidatePair {
	n := maxTrialCount
	if n > len(sorted)-1 {
		n = len(sorted) - 1
	}
	out := make([]candidatePair, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, candidatePair{a: sorted[i], b: sorted[i+1]})
	}
	return out
}

type hypothesis struct {
	t           transform.Transform
	matchCount  int
	totalResid  float64
	scaleOffset float64 // |scale-1|, smallest-wins tiebreak
	pairs       []Pair
}

// better reports whether h is a stronger hypothesis than other under
// the tie-break order: higher match count, then lower total residual,
// then smaller |scale-1|.
func (h hypothesis) better(other hypothesis) bool {
	if h.matchCount != other.matchCount {
		return h.matchCount > other.matchCount
	}
	if h.totalResid != other.totalResid {
		return h.totalResid < other.totalResid
	}
	return h.scaleOffset < other.scaleOffset
}

// tryHypothesis scores a candidate similarity transform: it maps
// every star in l1 through t and counts how many land within
// tolerance of a distinct star in l2 (via idx2, an index over l2).
func tryHypothesis(t transform.Transform, l1 []star.BaseStar, idx2 *spatial.Index[star.BaseStar], tol float64) hypothesis {
	h := hypothesis{t: t}
	used := make(map[star.BaseStar]bool)
	for _, s1 := range l1 {
		mapped := t.Apply(s1.Point)
		cand, ok := idx2.FindClosest(mapped, tol, func(s star.BaseStar) bool { return !used[s] })
		if !ok {
			continue
		}
		used[cand] = true
		h.matchCount++
		h.totalResid += mapped.Dist(cand.Point)
		h.pairs = append(h.pairs, Pair{S1: s1, S2: cand})
	}
	return h
}

// medianNearestNeighbourScale estimates the typical nearest-neighbour
// spacing in stars, used to scale the matching tolerance by NSigmas.
func medianNearestNeighbourScale(stars []star.BaseStar) float64 {
	if len(stars) < 2 {
		return 1
	}
	idx := spatial.New[star.BaseStar](stars)
	dists := make([]float64, 0, len(stars))
	for _, s := range stars {
		_, second, _, ok := idx.SecondClosest(s.Point, math.Inf(1), nil)
		if ok {
			dists = append(dists, s.Dist(second.Point))
		}
	}
	if len(dists) == 0 {
		return 1
	}
	sort.Float64s(dists)
	return dists[len(dists)/2]
}

// searchRotShift is the shared implementation behind
// MatchSearchRotShift and MatchSearchRotShiftFlip; allowFlip controls
// whether reflected hypotheses are also tried.
func searchRotShift(l1Full, l2Full []star.BaseStar, cond Conditions, allowFlip bool) (*List, error) {
	l1 := truncateByFlux(l1Full, cond.NStarsList1)
	l2 := truncateByFlux(l2Full, cond.NStarsList2)
	if len(l1) < 2 || len(l2) < 2 {
		return nil, star.ErrDegenerateInput
	}

	idx2 := spatial.New[star.BaseStar](l2)
	tol := cond.NSigmas * medianNearestNeighbourScale(l2)
	minR, maxR := cond.sizeRatioBounds()

	cand1 := baselineCandidates(l1, cond.MaxTrialCount)
	cand2 := baselineCandidates(l2, cond.MaxTrialCount)

	var best hypothesis
	haveBest := false

	flips := []bool{false}
	if allowFlip {
		flips = append(flips, true)
	}

	for _, c1 := range cand1 {
		baseLen := c1.a.Dist(c1.b.Point)
		if baseLen == 0 {
			continue
		}
		for _, c2 := range cand2 {
			scale := c2.a.Dist(c2.b.Point) / baseLen
			if scale < minR || scale > maxR {
				continue
			}
			for _, flip := range flips {
				t, err := transform.SimilarityFromPair(c1.a.Point, c1.b.Point, c2.a.Point, c2.b.Point, flip)
				if err != nil {
					continue
				}
				origin := t.Apply(geom.Point{})
				if math.Abs(origin.X) > cond.MaxShiftX || math.Abs(origin.Y) > cond.MaxShiftY {
					continue
				}
				h := tryHypothesis(t, l1, idx2, tol)
				h.scaleOffset = math.Abs(scale - 1)
				if !haveBest || h.better(best) {
					best = h
					haveBest = true
				}
			}
		}
	}

	if !haveBest {
		return nil, ErrNoInitialMatch
	}
	minLen := len(l1Full)
	if len(l2Full) < minLen {
		minLen = len(l2Full)
	}
	if minLen == 0 || float64(best.matchCount)/float64(minLen) < cond.MinMatchRatio {
		return nil, ErrNoInitialMatch
	}

	ml := NewList(best.t)
	ml.Pairs = best.pairs
	fitted, err := FitPolyLeastSquares(ml.Pairs, 1)
	if err == nil {
		ml.Transform = fitted
	}
	return ml, nil
}

// MatchSearchRotShift finds the best orientation-preserving similarity
// transform aligning l1 to l2 (§4.3.1).
func MatchSearchRotShift(l1, l2 []star.BaseStar, cond Conditions) (*List, error) {
	return searchRotShift(l1, l2, cond, false)
}

// MatchSearchRotShiftFlip additionally considers reflected-orientation
// hypotheses and returns the best across both parities.
func MatchSearchRotShiftFlip(l1, l2 []star.BaseStar, cond Conditions) (*List, error) {
	return searchRotShift(l1, l2, cond, true)
}

// ListMatchCollect transforms every star in l1 through t, finds the
// closest star in l2 within maxDist via a spatial index, and returns
// the resulting (deduplicated) MatchList.
func ListMatchCollect(l1, l2 []star.BaseStar, t transform.Transform, maxDist float64) *List {
	idx2 := spatial.New[star.BaseStar](l2)
	ml := NewList(t)
	for _, s1 := range l1 {
		mapped := t.Apply(s1.Point)
		if s2, ok := idx2.FindClosest(mapped, maxDist, nil); ok {
			ml.Add(s1, s2)
		}
	}
	ml.Dedup()
	return ml
}

// ListMatchRefine repeatedly re-fits a polynomial transform and
// re-collects pairs at a shrinking tolerance, raising the polynomial
// order while the residual standard deviation keeps improving, up to
// maxOrder (§4.3.4).
func ListMatchRefine(l1, l2 []star.BaseStar, initial transform.Transform, initialTol float64, maxOrder int) (*List, error) {
	if maxOrder < 1 {
		return nil, errors.New("match: maxOrder must be >= 1")
	}
	tol := initialTol
	ml := ListMatchCollect(l1, l2, initial, tol)
	if len(ml.Pairs) == 0 {
		return nil, ErrNoInitialMatch
	}
	_, prevSigma := residualStats(ml)

	for order := 1; order <= maxOrder; order++ {
		if err := ml.RefineTransform(order); err != nil {
			break
		}
		tol /= 1.5
		next := ListMatchCollect(l1, l2, ml.Transform, tol)
		if len(next.Pairs) == 0 {
			break
		}
		_, sigma := residualStats(next)
		if sigma >= prevSigma && order > 1 {
			break
		}
		ml = next
		prevSigma = sigma
	}
	return ml, nil
}

func residualStats(ml *List) (mean, sigma float64) {
	residuals := ml.ApplyTransform()
	n := len(residuals)
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, r := range residuals {
		sum += r.Norm()
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, r := range residuals {
		d := r.Norm() - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(n-1))
}

// MatchAndRefine composes the combinatorial similarity search with
// polynomial refinement (§4.3.5, resolving the source's dead
// "DO_WE_NEED_THAT" branch): MatchSearchRotShiftFlip seeds an initial
// transform, then ListMatchRefine raises it to a polynomial of order
// up to maxOrder. Callers with no stronger opinion may pass
// DefaultRefineMaxOrder.
func MatchAndRefine(l1Full, l2Full []star.BaseStar, cond Conditions, maxOrder int) (*List, error) {
	seed, err := MatchSearchRotShiftFlip(l1Full, l2Full, cond)
	if err != nil {
		return nil, err
	}
	tol := cond.NSigmas * medianNearestNeighbourScale(truncateByFlux(l2Full, cond.NStarsList2))
	return ListMatchRefine(l1Full, l2Full, seed.Transform, tol, maxOrder)
}

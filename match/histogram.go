package match

import (
	"math"

	"github.com/batmanuel-sandbox/jointcal/spatial"
	"github.com/batmanuel-sandbox/jointcal/star"
	"github.com/batmanuel-sandbox/jointcal/transform"
)

// ListMatchupShift refines an initial transform g by histogramming
// the residual shift (g(s1).x-s2.x, g(s1).y-s2.y) over every pair
// within maxShiftX/maxShiftY on each axis, locating the peak bin, and
// parabolically interpolating among its 3x3 neighbourhood (§4.3.2). It
// returns g followed by the shift that cancels that refined peak
// offset, so the result maps s1 onto s2. binSize<=0 selects the
// default of max(maxShiftX,maxShiftY)/100.
func ListMatchupShift(l1, l2 []star.BaseStar, g transform.Transform, maxShiftX, maxShiftY, binSize float64) (transform.Transform, error) {
	if binSize <= 0 {
		m := maxShiftX
		if maxShiftY > m {
			m = maxShiftY
		}
		binSize = m / 100
		if binSize <= 0 {
			binSize = 1
		}
	}

	idx2 := spatial.New[star.BaseStar](l2)
	maxDist := math.Max(maxShiftX, maxShiftY)

	type binKey struct{ ix, iy int }
	counts := make(map[binKey]int)
	shiftsSeen := 0

	for _, s1 := range l1 {
		mapped := g.Apply(s1.Point)
		idx2.Scan(mapped, maxDist, func(s2 star.BaseStar) {
			dx := mapped.X - s2.X
			dy := mapped.Y - s2.Y
			if math.Abs(dx) > maxShiftX || math.Abs(dy) > maxShiftY {
				return
			}
			k := binKey{ix: int(math.Floor(dx / binSize)), iy: int(math.Floor(dy / binSize))}
			counts[k]++
			shiftsSeen++
		})
	}
	if shiftsSeen == 0 {
		return nil, ErrNoInitialMatch
	}

	var peak binKey
	peakCount := -1
	for k, c := range counts {
		if c > peakCount {
			peakCount = c
			peak = k
		}
	}

	// Parabolic interpolation among the peak's 3x3 neighbourhood,
	// independently along each axis.
	at := func(dix, diy int) float64 {
		return float64(counts[binKey{peak.ix + dix, peak.iy + diy}])
	}
	dxRefine := parabolicOffset(at(-1, 0), at(0, 0), at(1, 0))
	dyRefine := parabolicOffset(at(0, -1), at(0, 0), at(0, 1))

	shiftX := (float64(peak.ix)+0.5+dxRefine)*binSize
	shiftY := (float64(peak.iy)+0.5+dyRefine)*binSize

	return transform.NewShift(-shiftX, -shiftY).Compose(g), nil
}

// parabolicOffset fits a parabola through three equally spaced
// samples (left, center, right) and returns the sub-bin offset of its
// vertex from center, in bin units, clamped to [-0.5,0.5].
func parabolicOffset(left, center, right float64) float64 {
	denom := left - 2*center + right
	if denom == 0 {
		return 0
	}
	offset := 0.5 * (left - right) / denom
	if offset > 0.5 {
		offset = 0.5
	}
	if offset < -0.5 {
		offset = -0.5
	}
	return offset
}

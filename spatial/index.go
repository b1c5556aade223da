// Package spatial implements the 2-D nearest-neighbour spatial index
// (x-sliced, y-sorted within each slice) the matcher uses to pair
// stars between catalogues.
package spatial

import (
	"math"
	"sort"

	"github.com/batmanuel-sandbox/jointcal/geom"
)

// Located is anything the index can place in the plane.
type Located interface {
	Location() geom.Point
}

// Predicate optionally filters candidates during a query; a nil
// Predicate accepts everything.
type Predicate[T Located] func(T) bool

// Index is a static, read-only-after-construction spatial index over
// a slice of Located items. The zero value is not usable; build one
// with New.
type Index[T Located] struct {
	items  []T          // sorted by x ascending
	slices []sliceRange // len(slices) == nslice
	xMin   float64
	xStep  float64
	nslice int
}

type sliceRange struct {
	start, end int // half-open [start,end) into items, sorted by y within
}

// defaultTargetPerSlice picks a slice count so each slice holds
// roughly this many items on average, bounded to the item count.
const defaultTargetPerSlice = 20

// New builds an Index over items. The items slice is copied and
// reordered; the caller's slice is left untouched.
func New[T Located](items []T) *Index[T] {
	requestedSlices := len(items)/defaultTargetPerSlice + 1
	return NewWithSliceCount(items, requestedSlices)
}

// NewWithSliceCount builds an Index with an explicit requested slice
// count (clamped to the item count, per the specification).
func NewWithSliceCount[T Located](items []T, requestedSlices int) *Index[T] {
	idx := &Index[T]{items: append([]T(nil), items...)}
	n := len(idx.items)
	if n == 0 {
		idx.nslice = 0
		return idx
	}
	sort.Slice(idx.items, func(i, j int) bool {
		return idx.items[i].Location().X < idx.items[j].Location().X
	})

	nslice := requestedSlices
	if nslice > n {
		nslice = n
	}
	if nslice < 1 {
		nslice = 1
	}
	idx.xMin = idx.items[0].Location().X
	xMax := idx.items[n-1].Location().X
	if idx.xMin == xMax {
		nslice = 1
	}
	idx.nslice = nslice
	if nslice == 1 {
		idx.xStep = 0
	} else {
		idx.xStep = (xMax - idx.xMin) / float64(nslice)
	}

	idx.slices = make([]sliceRange, nslice)
	if nslice == 1 {
		idx.slices[0] = sliceRange{0, n}
	} else {
		bounds := make([]int, nslice+1)
		bounds[0] = 0
		bounds[nslice] = n
		for i := 1; i < nslice; i++ {
			edge := idx.xMin + float64(i)*idx.xStep
			bounds[i] = sort.Search(n, func(k int) bool {
				return idx.items[k].Location().X >= edge
			})
		}
		for i := 0; i < nslice; i++ {
			idx.slices[i] = sliceRange{bounds[i], bounds[i+1]}
		}
	}

	for _, s := range idx.slices {
		sub := idx.items[s.start:s.end]
		sort.Slice(sub, func(i, j int) bool {
			return sub[i].Location().Y < sub[j].Location().Y
		})
	}
	return idx
}

// sliceRangeFor computes [startSlice,endSlice) covering x in
// [p.x-maxDist, p.x+maxDist].
func (idx *Index[T]) sliceRangeFor(p geom.Point, maxDist float64) (start, end int) {
	if idx.nslice == 0 {
		return 0, 0
	}
	if idx.xStep == 0 {
		return 0, idx.nslice
	}
	// Clamp in floating point before converting to int, so an infinite
	// or very large maxDist cannot overflow the conversion.
	lo := math.Max(math.Floor((p.X-maxDist-idx.xMin)/idx.xStep), 0)
	hi := math.Min(math.Floor((p.X+maxDist-idx.xMin)/idx.xStep)+1, float64(idx.nslice))
	if lo >= hi {
		return 0, 0
	}
	return int(lo), int(hi)
}

// yBounds binary-searches the [lo,hi) sub-range of s (already sorted
// by y) whose y lies in [yMin,yMax]. The two searches are symmetric:
// the lower bound finds the first element with y>=yMin, the upper
// bound finds the first element with y>yMax (so hi is exclusive).
func yBounds[T Located](items []T, s sliceRange, yMin, yMax float64) (lo, hi int) {
	sub := items[s.start:s.end]
	lo = s.start + sort.Search(len(sub), func(k int) bool {
		return sub[k].Location().Y >= yMin
	})
	sub2 := items[lo:s.end]
	hi = lo + sort.Search(len(sub2), func(k int) bool {
		return sub2[k].Location().Y > yMax
	})
	return lo, hi
}

// Scan calls visit for every item whose x lies within
// [p.x-maxDist,p.x+maxDist] and whose y lies within
// [p.y-maxDist,p.y+maxDist]. It performs no true 2-D distance check;
// callers filter candidates themselves. Iteration order is arbitrary
// (slice order, then y order within a slice).
func (idx *Index[T]) Scan(p geom.Point, maxDist float64, visit func(T)) {
	if idx.nslice == 0 {
		return
	}
	start, end := idx.sliceRangeFor(p, maxDist)
	for s := start; s < end; s++ {
		lo, hi := yBounds(idx.items, idx.slices[s], p.Y-maxDist, p.Y+maxDist)
		for k := lo; k < hi; k++ {
			visit(idx.items[k])
		}
	}
}

// FindClosest returns the item nearest p within maxDist satisfying
// pred (if non-nil), or ok=false if none qualifies.
func (idx *Index[T]) FindClosest(p geom.Point, maxDist float64, pred Predicate[T]) (best T, ok bool) {
	bestD2 := math.Inf(1)
	idx.Scan(p, maxDist, func(item T) {
		if pred != nil && !pred(item) {
			return
		}
		d2 := p.Dist2(item.Location())
		if d2 <= maxDist*maxDist && d2 < bestD2 {
			bestD2 = d2
			best = item
			ok = true
		}
	})
	return best, ok
}

// SecondClosest returns the closest and second-closest items to p
// within maxDist satisfying pred. Either result may come back with
// ok=false if fewer than that many candidates qualify.
func (idx *Index[T]) SecondClosest(p geom.Point, maxDist float64, pred Predicate[T]) (first, second T, firstOK, secondOK bool) {
	bestD2, secondD2 := math.Inf(1), math.Inf(1)
	idx.Scan(p, maxDist, func(item T) {
		if pred != nil && !pred(item) {
			return
		}
		d2 := p.Dist2(item.Location())
		if d2 > maxDist*maxDist {
			return
		}
		switch {
		case d2 < bestD2:
			second, secondD2, secondOK = first, bestD2, firstOK
			first, bestD2, firstOK = item, d2, true
		case d2 < secondD2:
			second, secondD2, secondOK = item, d2, true
		}
	})
	return first, second, firstOK, secondOK
}

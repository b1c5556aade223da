package spatial_test

import (
	"testing"

	"github.com/batmanuel-sandbox/jointcal/geom"
	"github.com/batmanuel-sandbox/jointcal/spatial"
)

type locPoint struct {
	geom.Point
	id string
}

func (l locPoint) Location() geom.Point { return l.Point }

func gridItems() []locPoint {
	var items []locPoint
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			items = append(items, locPoint{geom.Point{X: float64(x), Y: float64(y)}, "p"})
		}
	}
	return items
}

func TestFindClosestExact(t *testing.T) {
	idx := spatial.New(gridItems())
	best, ok := idx.FindClosest(geom.Point{X: 5.1, Y: 5.1}, 1.0, nil)
	if !ok {
		t.Fatal("expected a match")
	}
	if best.X != 5 || best.Y != 5 {
		t.Errorf("FindClosest = %v, want (5,5)", best.Point)
	}
}

func TestFindClosestNoneWithinRadius(t *testing.T) {
	idx := spatial.New(gridItems())
	_, ok := idx.FindClosest(geom.Point{X: 100, Y: 100}, 0.5, nil)
	if ok {
		t.Error("expected no match far from the grid")
	}
}

func TestFindClosestRespectsPredicate(t *testing.T) {
	idx := spatial.New(gridItems())
	_, ok := idx.FindClosest(geom.Point{X: 5, Y: 5}, 1.0, func(locPoint) bool { return false })
	if ok {
		t.Error("predicate rejecting everything should yield no match")
	}
}

func TestSecondClosestOrdering(t *testing.T) {
	idx := spatial.New(gridItems())
	first, second, firstOK, secondOK := idx.SecondClosest(geom.Point{X: 5, Y: 5}, 2.0, nil)
	if !firstOK || !secondOK {
		t.Fatal("expected both first and second matches in a dense grid")
	}
	d1 := geom.Point{X: 5, Y: 5}.Dist2(first.Point)
	d2 := geom.Point{X: 5, Y: 5}.Dist2(second.Point)
	if d1 > d2 {
		t.Errorf("first (%v) should not be farther than second (%v)", first.Point, second.Point)
	}
}

func TestScanVisitsAllWithinBoundingBox(t *testing.T) {
	idx := spatial.New(gridItems())
	count := 0
	idx.Scan(geom.Point{X: 5, Y: 5}, 0.5, func(locPoint) { count++ })
	if count != 1 {
		t.Errorf("Scan count = %d, want 1 (only (5,5) in box)", count)
	}
}

func TestEmptyIndex(t *testing.T) {
	idx := spatial.New([]locPoint{})
	_, ok := idx.FindClosest(geom.Point{}, 1, nil)
	if ok {
		t.Error("empty index should never find a match")
	}
}

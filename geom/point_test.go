package geom_test

import (
	"math"
	"testing"

	"github.com/batmanuel-sandbox/jointcal/geom"
)

func TestPointArithmetic(t *testing.T) {
	a := geom.Point{X: 1, Y: 2}
	b := geom.Point{X: 3, Y: -1}

	if got := a.Add(b); got != (geom.Point{X: 4, Y: 1}) {
		t.Errorf("Add = %v, want {4 1}", got)
	}
	if got := a.Sub(b); got != (geom.Point{X: -2, Y: 3}) {
		t.Errorf("Sub = %v, want {-2 3}", got)
	}
	if got := a.Scale(2); got != (geom.Point{X: 2, Y: 4}) {
		t.Errorf("Scale = %v, want {2 4}", got)
	}
}

func TestPointDistance(t *testing.T) {
	a := geom.Point{X: 0, Y: 0}
	b := geom.Point{X: 3, Y: 4}
	if got := a.Dist(b); got != 5 {
		t.Errorf("Dist = %v, want 5", got)
	}
	if got := a.Dist2(b); got != 25 {
		t.Errorf("Dist2 = %v, want 25", got)
	}
	if got := b.Norm(); math.Abs(got-5) > 1e-12 {
		t.Errorf("Norm = %v, want 5", got)
	}
}

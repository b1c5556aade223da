package match_test

import (
	"math"
	"testing"

	"github.com/batmanuel-sandbox/jointcal/geom"
	"github.com/batmanuel-sandbox/jointcal/match"
	"github.com/batmanuel-sandbox/jointcal/star"
)

// starGrid returns a pseudo-random-looking but deterministic scatter of
// stars with distinct fluxes, in descending brightness, so the
// combinatorial matcher has a stable baseline to anchor on.
func starGrid() []star.BaseStar {
	var stars []star.BaseStar
	flux := 1000.0
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			stars = append(stars, star.BaseStar{
				Point: geom.Point{X: float64(i*37%97) + float64(j), Y: float64(j*53%89) + float64(i)},
				Flux:  flux,
			})
			flux -= 1
		}
	}
	return stars
}

func shiftStars(stars []star.BaseStar, dx, dy float64) []star.BaseStar {
	out := make([]star.BaseStar, len(stars))
	for i, s := range stars {
		out[i] = star.BaseStar{Point: geom.Point{X: s.X + dx, Y: s.Y + dy}, Flux: s.Flux}
	}
	return out
}

func TestMatchSearchRotShiftFindsPureShift(t *testing.T) {
	l1 := starGrid()
	l2 := shiftStars(l1, 5, -3)

	ml, err := match.MatchSearchRotShift(l1, l2, match.DefaultConditions())
	if err != nil {
		t.Fatalf("MatchSearchRotShift failed: %v", err)
	}
	if len(ml.Pairs) == 0 {
		t.Fatal("expected at least one matched pair")
	}
	origin := ml.Transform.Apply(geom.Point{})
	if math.Abs(origin.X-5) > 0.5 || math.Abs(origin.Y+3) > 0.5 {
		t.Errorf("recovered shift = %v, want approx (5,-3)", origin)
	}
}

func TestMatchSearchRotShiftDegenerateInput(t *testing.T) {
	_, err := match.MatchSearchRotShift([]star.BaseStar{{Flux: 1}}, []star.BaseStar{{Flux: 1}}, match.DefaultConditions())
	if err != star.ErrDegenerateInput {
		t.Errorf("err = %v, want ErrDegenerateInput", err)
	}
}

func TestMatchAndRefineLeavesSmallResiduals(t *testing.T) {
	l1 := starGrid()
	l2 := shiftStars(l1, 2, 2)

	ml, err := match.MatchAndRefine(l1, l2, match.DefaultConditions(), match.DefaultRefineMaxOrder)
	if err != nil {
		t.Fatalf("MatchAndRefine failed: %v", err)
	}
	if len(ml.Pairs) == 0 {
		t.Fatal("expected matched pairs after refine")
	}
	mean, _ := func() (float64, float64) {
		residuals := ml.ApplyTransform()
		sum := 0.0
		for _, r := range residuals {
			sum += r.Norm()
		}
		return sum / float64(len(residuals)), 0
	}()
	if mean > 1.0 {
		t.Errorf("mean residual after refine = %v, want small", mean)
	}
}

func TestListDedupKeepsBestResidual(t *testing.T) {
	s1 := star.BaseStar{Point: geom.Point{X: 0, Y: 0}, Flux: 10}
	s2a := star.BaseStar{Point: geom.Point{X: 0.1, Y: 0}, Flux: 10}
	s2b := star.BaseStar{Point: geom.Point{X: 5, Y: 5}, Flux: 10}

	ml := match.NewList(nil)
	ml.Add(s1, s2b) // worse
	ml.Add(s1, s2a) // better, same s1
	ml.Dedup()

	if len(ml.Pairs) != 1 {
		t.Fatalf("len(Pairs) = %d, want 1 after dedup", len(ml.Pairs))
	}
	if ml.Pairs[0].S2 != s2a {
		t.Errorf("kept pair's S2 = %v, want the closer match", ml.Pairs[0].S2)
	}
}

func TestListChi2ZeroForExactMatch(t *testing.T) {
	s1 := star.BaseStar{Point: geom.Point{X: 1, Y: 2}, Flux: 1}
	ml := match.NewList(nil)
	ml.Add(s1, s1)
	if got := ml.Chi2(); got != 0 {
		t.Errorf("Chi2 = %v, want 0 for an exact self-match under identity", got)
	}
}

package model_test

import (
	"context"
	"testing"

	"github.com/batmanuel-sandbox/jointcal/fit"
	"github.com/batmanuel-sandbox/jointcal/geom"
	"github.com/batmanuel-sandbox/jointcal/model"
	"github.com/batmanuel-sandbox/jointcal/star"
)

func TestPhotometryModelFitsFluxesOnly(t *testing.T) {
	assoc := star.NewAssociations()
	ccd := star.NewCcdImage("ccd0")
	assoc.AddCcdImage(ccd)

	f := star.NewFittedStar(geom.Point{}, 0) // seeded at flux 0
	assoc.AddFittedStar(f)

	truth := 500.0
	for _, flux := range []float64{truth - 5, truth, truth + 5} {
		ms := &star.MeasuredStar{BaseStar: star.BaseStar{Flux: flux}, Valid: true, Fitted: f}
		ccd.AddMeasured(ms)
		f.MeasurementCount++
	}

	// Zero point held at 1 (Distortions not being fit), so the
	// instrumental flux passes through unchanged.
	phot := model.NewPhotometryModel(assoc, 1.0, 1.0)
	core := fit.NewCore(phot, assoc)

	result, err := core.Minimize(context.Background(), fit.WhatToFit{Fluxes: true}, 0, false)
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}
	if result != fit.Converged {
		t.Fatalf("result = %v, want Converged", result)
	}
	if diff := f.Flux - truth; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("fitted flux = %v, want %v", f.Flux, truth)
	}
}

func TestPhotometryModelFitsZeroPoint(t *testing.T) {
	assoc := star.NewAssociations()
	ccd := star.NewCcdImage("ccd0")
	assoc.AddCcdImage(ccd)

	f := star.NewFittedStar(geom.Point{}, 100) // reference-scale flux held fixed
	assoc.AddFittedStar(f)

	for _, instrumental := range []float64{48, 50, 52} {
		ms := &star.MeasuredStar{BaseStar: star.BaseStar{Flux: instrumental}, Valid: true, Fitted: f}
		ccd.AddMeasured(ms)
		f.MeasurementCount++
	}

	phot := model.NewPhotometryModel(assoc, 1.0, 1.0)
	core := fit.NewCore(phot, assoc)

	_, err := core.Minimize(context.Background(), fit.WhatToFit{Distortions: true}, 0, false)
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}

	zp := ccd.ModelData.(*model.ZeroPoint)
	// ZeroPoint has no intercept, so the weighted least-squares
	// solution for scattered instrumental fluxes isn't exactly 2.0
	// even though the mean instrumental flux is 50; it lands close.
	if diff := zp.Value - 2.0; diff > 0.01 || diff < -0.01 {
		t.Errorf("fitted zero point = %v, want close to 2.0", zp.Value)
	}
}

func TestPhotometryModelAccumulateStatRef(t *testing.T) {
	assoc := star.NewAssociations()
	f := star.NewFittedStar(geom.Point{}, 105)
	assoc.AddFittedStar(f)
	f.RefStar = &star.RefStar{BaseStar: star.BaseStar{Flux: 100}, ID: "r1"}
	f.MeasurementCount = 1

	phot := model.NewPhotometryModel(assoc, 1.0, 1.0)
	var sink fakeSink
	phot.AccumulateStatRef(&sink)
	if len(sink.chi2s) != 1 || sink.chi2s[0] <= 0 {
		t.Errorf("AccumulateStatRef = %v, want one positive contribution", sink.chi2s)
	}
}

type fakeSink struct {
	chi2s []float64
}

func (s *fakeSink) Add(owner interface{}, chi2Val float64, ndof int) {
	s.chi2s = append(s.chi2s, chi2Val)
}

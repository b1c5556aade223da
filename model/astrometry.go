package model

import (
	"math"

	"github.com/batmanuel-sandbox/jointcal/chi2"
	"github.com/batmanuel-sandbox/jointcal/fit"
	"github.com/batmanuel-sandbox/jointcal/sparse"
	"github.com/batmanuel-sandbox/jointcal/star"
	"github.com/batmanuel-sandbox/jointcal/transform"
)

// TransformFactory builds the initial per-CcdImage Transform for ccd,
// typically seeded from a matcher result or an identity/shift guess.
type TransformFactory func(ccd *star.CcdImage) transform.Transform

// AstrometryModel implements fit.Model for position fitting (§3.1,
// §4.9): each CcdImage owns one transform.Transform mapping pixel
// coordinates to tangent-plane (or whatever coordinate system the
// caller's factory targets) coordinates.
type AstrometryModel struct {
	assoc           *star.Associations
	defaultPosSigma float64

	baseIndex map[*star.CcdImage]int
	what      fit.WhatToFit
	base0     int
	used      int
}

// NewAstrometryModel seeds every CcdImage in assoc with a Transform
// from factory (stored on CcdImage.ModelData) and returns a Model ready
// to be assigned indices. defaultPosSigma floors per-star position
// uncertainty (pixels) for measurements or references that report none.
func NewAstrometryModel(assoc *star.Associations, factory TransformFactory, defaultPosSigma float64) *AstrometryModel {
	for _, ccd := range assoc.CcdImages {
		ccd.ModelData = factory(ccd)
		ccd.DistortionOK = true
	}
	return &AstrometryModel{assoc: assoc, defaultPosSigma: defaultPosSigma}
}

func (m *AstrometryModel) transformOf(ccd *star.CcdImage) transform.Transform {
	return ccd.ModelData.(transform.Transform)
}

// ParameterCount is the sum of every CcdImage's Transform parameter
// count.
func (m *AstrometryModel) ParameterCount() int {
	n := 0
	for _, ccd := range m.assoc.CcdImages {
		n += m.transformOf(ccd).ParameterCount()
	}
	return n
}

// AssignIndices implements fit.Model. It records what unconditionally
// (IndicesOfMeasuredStar and the Derivatives* methods need it even on
// calls that aren't fitting Distortions) but only reserves index space
// for the per-image Transforms when what.Distortions is set.
func (m *AstrometryModel) AssignIndices(what fit.WhatToFit, baseIndex int) int {
	m.what = what
	m.base0 = baseIndex
	m.baseIndex = make(map[*star.CcdImage]int, len(m.assoc.CcdImages))
	next := baseIndex
	for _, ccd := range m.assoc.CcdImages {
		m.baseIndex[ccd] = next
		if what.Distortions {
			next += m.transformOf(ccd).ParameterCount()
		}
	}
	m.used = next - baseIndex
	return m.used
}

// OffsetParams implements fit.Model. delta is this model's own slice,
// zero-based at its first parameter.
func (m *AstrometryModel) OffsetParams(delta []float64) {
	for _, ccd := range m.assoc.CcdImages {
		t := m.transformOf(ccd)
		n := t.ParameterCount()
		if n == 0 {
			continue
		}
		off := m.baseIndex[ccd] - m.base0
		t.OffsetParams(delta[off : off+n])
	}
}

func (m *AstrometryModel) posSigmas(errX, errY float64) (sx, sy float64) {
	return fit.ClipSigma(errX, m.defaultPosSigma), fit.ClipSigma(errY, m.defaultPosSigma)
}

// AccumulateStatImage implements fit.Model: one chi2 contribution per
// valid measured star, with ndof=2 (x and y residuals).
func (m *AstrometryModel) AccumulateStatImage(ccd *star.CcdImage, sink chi2.Sink) {
	t := m.transformOf(ccd)
	for _, ms := range ccd.Measured {
		if !ms.Valid || ms.Fitted == nil {
			continue
		}
		pred := t.Apply(ms.Point)
		dx, dy := pred.X-ms.Fitted.X, pred.Y-ms.Fitted.Y
		sx, sy := m.posSigmas(ms.ErrX, ms.ErrY)
		val := (dx/sx)*(dx/sx) + (dy/sy)*(dy/sy)
		sink.Add(ms, val, 2)
	}
}

// AccumulateStatRef implements fit.Model: one contribution per
// ref-linked, still-measured FittedStar.
func (m *AstrometryModel) AccumulateStatRef(sink chi2.Sink) {
	for _, f := range m.assoc.FittedStars {
		if f.RefStar == nil || f.MeasurementCount == 0 {
			continue
		}
		dx, dy := f.X-f.RefStar.X, f.Y-f.RefStar.Y
		sx := math.Hypot(m.defaultPosSigma, f.RefStar.ErrX)
		sy := math.Hypot(m.defaultPosSigma, f.RefStar.ErrY)
		val := (dx/sx)*(dx/sx) + (dy/sy)*(dy/sy)
		sink.Add(f, val, 2)
	}
}

// IndicesOfMeasuredStar implements fit.Model.
func (m *AstrometryModel) IndicesOfMeasuredStar(ms *star.MeasuredStar) []int {
	var out []int
	if m.what.Distortions {
		t := m.transformOf(ms.Ccd)
		base := m.baseIndex[ms.Ccd]
		for i := 0; i < t.ParameterCount(); i++ {
			out = append(out, base+i)
		}
	}
	if ms.Fitted != nil {
		out = append(out, fit.StarParamIndices(ms.Fitted, m.what)...)
	}
	return out
}

// DerivativesMeasurement implements fit.Model. It reserves one 2-wide
// column block per measurement (x residual, y residual) and writes both
// the weighted Jacobian triplets and the corresponding -JᵀWr
// contributions to grad in the same pass.
func (m *AstrometryModel) DerivativesMeasurement(ccd *star.CcdImage, triplets *sparse.Buffer, grad []float64, restriction func(*star.MeasuredStar) bool) {
	t := m.transformOf(ccd)
	base := m.baseIndex[ccd]
	n := t.ParameterCount()

	for _, ms := range ccd.Measured {
		if !ms.Valid || ms.Fitted == nil {
			continue
		}
		if restriction != nil && !restriction(ms) {
			continue
		}

		pred := t.Apply(ms.Point)
		rx, ry := pred.X-ms.Fitted.X, pred.Y-ms.Fitted.Y
		sx, sy := m.posSigmas(ms.ErrX, ms.ErrY)
		wx, wy := 1/sx, 1/sy
		urx, ury := rx*wx, ry*wy

		col := triplets.ReserveColumns(2)

		if m.what.Distortions && n > 0 {
			dp := t.DerivativesWrtParams(ms.Point)
			for i := 0; i < n; i++ {
				vx := dp[0][i] * wx
				vy := dp[1][i] * wy
				triplets.Add(base+i, col, vx)
				triplets.Add(base+i, col+1, vy)
				grad[base+i] += -vx*urx - vy*ury
			}
		}

		if ix, iy, ok := fit.PositionIndices(ms.Fitted, m.what); ok {
			vx, vy := -wx, -wy
			triplets.Add(ix, col, vx)
			triplets.Add(iy, col+1, vy)
			grad[ix] += -vx * urx
			grad[iy] += -vy * ury
		}
	}
}

// DerivativesReference implements fit.Model.
func (m *AstrometryModel) DerivativesReference(fittedStars []*star.FittedStar, triplets *sparse.Buffer, grad []float64) {
	for _, f := range fittedStars {
		if f.RefStar == nil || f.MeasurementCount == 0 {
			continue
		}
		ix, iy, ok := fit.PositionIndices(f, m.what)
		if !ok {
			continue
		}
		rx, ry := f.X-f.RefStar.X, f.Y-f.RefStar.Y
		sx := math.Hypot(m.defaultPosSigma, f.RefStar.ErrX)
		sy := math.Hypot(m.defaultPosSigma, f.RefStar.ErrY)
		wx, wy := 1/sx, 1/sy
		urx, ury := rx*wx, ry*wy

		col := triplets.ReserveColumns(2)
		triplets.Add(ix, col, wx)
		triplets.Add(iy, col+1, wy)
		grad[ix] += -wx * urx
		grad[iy] += -wy * ury
	}
}

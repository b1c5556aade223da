package model

import (
	"github.com/batmanuel-sandbox/jointcal/chi2"
	"github.com/batmanuel-sandbox/jointcal/fit"
	"github.com/batmanuel-sandbox/jointcal/sparse"
	"github.com/batmanuel-sandbox/jointcal/star"
)

// PhotometryModel implements fit.Model for flux fitting (§3.1, §4.9):
// each CcdImage owns one ZeroPoint scaling its measured instrumental
// fluxes onto the reference flux scale.
type PhotometryModel struct {
	assoc            *star.Associations
	defaultFluxSigma float64
	baseIndex        map[*star.CcdImage]int
	what             fit.WhatToFit
	base0            int
	used             int
}

// NewPhotometryModel seeds every CcdImage in assoc with a ZeroPoint
// (stored on CcdImage.ModelData) starting at initialZP.
// defaultFluxSigma floors per-star flux uncertainty for measurements or
// references that report none.
func NewPhotometryModel(assoc *star.Associations, initialZP, defaultFluxSigma float64) *PhotometryModel {
	for _, ccd := range assoc.CcdImages {
		ccd.ModelData = NewZeroPoint(initialZP)
	}
	return &PhotometryModel{assoc: assoc, defaultFluxSigma: defaultFluxSigma}
}

func (m *PhotometryModel) zpOf(ccd *star.CcdImage) *ZeroPoint {
	return ccd.ModelData.(*ZeroPoint)
}

// ParameterCount is one per CcdImage.
func (m *PhotometryModel) ParameterCount() int {
	return len(m.assoc.CcdImages)
}

// AssignIndices implements fit.Model. It records what unconditionally
// (IndicesOfMeasuredStar and the Derivatives* methods need it even on
// calls that aren't fitting Distortions) but only reserves index space
// for the per-image ZeroPoints when what.Distortions is set.
func (m *PhotometryModel) AssignIndices(what fit.WhatToFit, baseIndex int) int {
	m.what = what
	m.base0 = baseIndex
	m.baseIndex = make(map[*star.CcdImage]int, len(m.assoc.CcdImages))
	next := baseIndex
	for _, ccd := range m.assoc.CcdImages {
		m.baseIndex[ccd] = next
		if what.Distortions {
			next++
		}
	}
	m.used = next - baseIndex
	return m.used
}

// OffsetParams implements fit.Model.
func (m *PhotometryModel) OffsetParams(delta []float64) {
	for _, ccd := range m.assoc.CcdImages {
		off := m.baseIndex[ccd] - m.base0
		m.zpOf(ccd).OffsetParams(delta[off : off+1])
	}
}

func (m *PhotometryModel) fluxSigma(errFlux float64) float64 {
	return fit.ClipSigma(errFlux, m.defaultFluxSigma)
}

// AccumulateStatImage implements fit.Model: one contribution per valid
// measured star, ndof=1.
func (m *PhotometryModel) AccumulateStatImage(ccd *star.CcdImage, sink chi2.Sink) {
	zp := m.zpOf(ccd)
	for _, ms := range ccd.Measured {
		if !ms.Valid || ms.Fitted == nil {
			continue
		}
		pred := zp.Apply(ms.Flux)
		r := pred - ms.Fitted.Flux
		s := m.fluxSigma(ms.ErrFlux)
		val := (r / s) * (r / s)
		sink.Add(ms, val, 1)
	}
}

// AccumulateStatRef implements fit.Model.
func (m *PhotometryModel) AccumulateStatRef(sink chi2.Sink) {
	for _, f := range m.assoc.FittedStars {
		if f.RefStar == nil || f.MeasurementCount == 0 {
			continue
		}
		r := f.Flux - f.RefStar.Flux
		s := m.fluxSigma(f.RefStar.ErrFlux)
		val := (r / s) * (r / s)
		sink.Add(f, val, 1)
	}
}

// IndicesOfMeasuredStar implements fit.Model.
func (m *PhotometryModel) IndicesOfMeasuredStar(ms *star.MeasuredStar) []int {
	var out []int
	if m.what.Distortions {
		out = append(out, m.baseIndex[ms.Ccd])
	}
	if ms.Fitted != nil {
		if idx, ok := fit.FluxIndex(ms.Fitted, m.what); ok {
			out = append(out, idx)
		}
	}
	return out
}

// DerivativesMeasurement implements fit.Model: one 1-wide column block
// per measurement.
func (m *PhotometryModel) DerivativesMeasurement(ccd *star.CcdImage, triplets *sparse.Buffer, grad []float64, restriction func(*star.MeasuredStar) bool) {
	zp := m.zpOf(ccd)
	zpIdx := m.baseIndex[ccd]

	for _, ms := range ccd.Measured {
		if !ms.Valid || ms.Fitted == nil {
			continue
		}
		if restriction != nil && !restriction(ms) {
			continue
		}

		pred := zp.Apply(ms.Flux)
		r := pred - ms.Fitted.Flux
		s := m.fluxSigma(ms.ErrFlux)
		w := 1 / s
		ur := r * w

		col := triplets.ReserveColumns(1)

		if m.what.Distortions {
			v := zp.DerivWrtZP(ms.Flux) * w
			triplets.Add(zpIdx, col, v)
			grad[zpIdx] += -v * ur
		}
		if idx, ok := fit.FluxIndex(ms.Fitted, m.what); ok {
			v := -w
			triplets.Add(idx, col, v)
			grad[idx] += -v * ur
		}
	}
}

// DerivativesReference implements fit.Model.
func (m *PhotometryModel) DerivativesReference(fittedStars []*star.FittedStar, triplets *sparse.Buffer, grad []float64) {
	for _, f := range fittedStars {
		if f.RefStar == nil || f.MeasurementCount == 0 {
			continue
		}
		idx, ok := fit.FluxIndex(f, m.what)
		if !ok {
			continue
		}
		r := f.Flux - f.RefStar.Flux
		s := m.fluxSigma(f.RefStar.ErrFlux)
		w := 1 / s
		ur := r * w

		col := triplets.ReserveColumns(1)
		triplets.Add(idx, col, w)
		grad[idx] += -w * ur
	}
}

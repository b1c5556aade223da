package fit

import (
	"github.com/batmanuel-sandbox/jointcal/chi2"
	"github.com/batmanuel-sandbox/jointcal/sparse"
	"github.com/batmanuel-sandbox/jointcal/star"
)

// Model is the narrow capability contract (§4.7) any astrometric or
// photometric model implements so Core stays model-agnostic. A Model
// owns whatever per-CcdImage Transform or zero-point it fits and is
// responsible for turning the Associations graph into residuals,
// weighted derivatives, and parameter-index bookkeeping; Core supplies
// only the generic Gauss-Newton loop and outlier logic around it.
//
// Restriction, when non-nil, limits DerivativesMeasurement to measured
// stars for which it returns true. Core itself always passes nil: it
// rebuilds the full derivatives after each outlier pass rather than
// recomputing just the outlier block.
type Model interface {
	// ParameterCount reports this model's own free-parameter count
	// (e.g. the sum of its per-image Transforms' ParameterCount), not
	// counting FittedStar position/flux parameters.
	ParameterCount() int

	// AssignIndices is always called, once per Minimize call, so a
	// Model can record what for later use by IndicesOfMeasuredStar and
	// DerivativesMeasurement/DerivativesReference even when it isn't
	// fitting its own parameters this round. It allocates baseIndex
	// onward for its own parameters and returns how many indices it
	// used, which must be 0 when what.Distortions is false.
	AssignIndices(what WhatToFit, baseIndex int) (usedCount int)

	// OffsetParams applies an additive update to this model's own
	// parameters, in the same order AssignIndices allocated them.
	OffsetParams(delta []float64)

	// AccumulateStatImage reports one chi2 contribution per valid
	// measured star on ccd to sink.
	AccumulateStatImage(ccd *star.CcdImage, sink chi2.Sink)

	// AccumulateStatRef reports one chi2 contribution per ref-linked
	// FittedStar to sink.
	AccumulateStatRef(sink chi2.Sink)

	// IndicesOfMeasuredStar returns every parameter-vector index ms's
	// chi2 contribution depends on: this model's own per-image indices
	// plus (when being fit) ms's owning FittedStar's position/flux
	// indices.
	IndicesOfMeasuredStar(ms *star.MeasuredStar) []int

	// DerivativesMeasurement accumulates, for every valid measured star
	// on ccd passing restriction (nil restriction means all), its
	// weighted Jacobian entries into triplets (one reserved column
	// block per measurement via triplets.ReserveColumns) and its
	// weighted right-hand-side contribution (-JᵀWr) directly into grad.
	DerivativesMeasurement(ccd *star.CcdImage, triplets *sparse.Buffer, grad []float64, restriction func(*star.MeasuredStar) bool)

	// DerivativesReference accumulates the reference-anchor terms for
	// every ref-linked star among fittedStars the same way.
	DerivativesReference(fittedStars []*star.FittedStar, triplets *sparse.Buffer, grad []float64)
}

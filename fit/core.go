// Package fit implements the sparse-ish Gauss-Newton fitting engine:
// normal-equation assembly, a dense Cholesky solve, the outer
// minimize loop, and outlier rejection with parameter-identifiability
// protection (§4.6). It holds no astrometric or photometric knowledge
// of its own; that comes from whatever Model (§4.7) the caller plugs
// in.
package fit

import (
	"context"
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/batmanuel-sandbox/jointcal/chi2"
	"github.com/batmanuel-sandbox/jointcal/sparse"
	"github.com/batmanuel-sandbox/jointcal/star"
)

// Statistic is an (chi2, ndof) pair with ndof already adjusted for the
// number of fitted parameters.
type Statistic struct {
	Chi2 float64
	Ndof int
}

// Chi2PerDof returns Chi2/Ndof, or 0 if Ndof <= 0.
func (s Statistic) Chi2PerDof() float64 {
	if s.Ndof <= 0 {
		return 0
	}
	return s.Chi2 / float64(s.Ndof)
}

// MinimizeResult is the outcome tag Minimize returns (§4.6.2, §7).
type MinimizeResult int

const (
	// Converged means the loop stopped because no further outliers
	// were found (or nSigmaCut <= 0, a single solve with no rejection).
	Converged MinimizeResult = iota
	// Chi2Increased means a step made chi2 worse after at least one
	// outlier had already been removed; parameters remain at their
	// last-applied state.
	Chi2Increased
	// Failed means Hessian factorization failed, AssignIndices
	// produced zero parameters, or the context was cancelled.
	Failed
)

func (r MinimizeResult) String() string {
	switch r {
	case Converged:
		return "Converged"
	case Chi2Increased:
		return "Chi2Increased"
	case Failed:
		return "Failed"
	default:
		return "unknown"
	}
}

// Core is the generic Gauss-Newton driver (C6). It mutates the
// Associations graph it was given only during Minimize: offsetting
// model/star parameters, invalidating rejected measurements, and
// detaching rejected reference links.
type Core struct {
	Model Model
	Assoc *star.Associations

	// Logger receives NumericalWarning-class messages (§7); defaults
	// to log.Default() if nil.
	Logger *log.Logger

	// Workers, when > 1, fans the per-CcdImage derivative-assembly
	// phase out across that many goroutines (§5, §4.11). 0 or 1 runs
	// it sequentially. Chi2 accumulation and outlier selection always
	// run sequentially, since §5 requires deterministic traversal
	// order for outlier tie-breaking.
	Workers int

	whatToFit WhatToFit
	modelUsed int
	nParTot   int
}

// NewCore returns a Core driving model over assoc.
func NewCore(model Model, assoc *star.Associations) *Core {
	return &Core{Model: model, Assoc: assoc}
}

func (c *Core) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// NParTot reports the current total parameter count, valid after
// AssignIndices.
func (c *Core) NParTot() int { return c.nParTot }

// AssignIndices implements §4.6.1: the model's own parameters occupy
// the leading block, followed by one contiguous range per FittedStar
// for whichever of Positions/Fluxes are enabled (§3.1's layout, shared
// with Model implementations via StarParamLayout).
func (c *Core) AssignIndices(w WhatToFit) error {
	c.whatToFit = w
	next := 0
	c.modelUsed = c.Model.AssignIndices(w, next)
	next += c.modelUsed

	_, _, perStar := StarParamLayout(w)
	for _, f := range c.Assoc.FittedStars {
		if perStar == 0 {
			f.Index = -1
			continue
		}
		f.Index = next
		next += perStar
	}

	c.nParTot = next
	if c.nParTot == 0 {
		return fmt.Errorf("fit: AssignIndices produced zero parameters: %w", ErrDegenerateInput)
	}
	return nil
}

// OffsetParams applies delta (len == NParTot) to the model's own
// parameters and to every FittedStar's active position/flux slots.
func (c *Core) OffsetParams(delta []float64) {
	if c.whatToFit.Distortions && c.modelUsed > 0 {
		c.Model.OffsetParams(delta[:c.modelUsed])
	}
	posOffset, fluxOffset, perStar := StarParamLayout(c.whatToFit)
	if perStar == 0 {
		return
	}
	for _, f := range c.Assoc.FittedStars {
		if f.Index < 0 {
			continue
		}
		sub := delta[f.Index : f.Index+perStar]
		if posOffset >= 0 {
			f.X += sub[posOffset]
			f.Y += sub[posOffset+1]
		}
		if fluxOffset >= 0 {
			f.Flux += sub[fluxOffset]
		}
	}
}

// computeChi2List accumulates every measured and reference contribution
// over the whole Associations graph.
func (c *Core) computeChi2List() *chi2.List {
	list := &chi2.List{}
	for _, ccd := range c.Assoc.CcdImages {
		c.Model.AccumulateStatImage(ccd, list)
	}
	c.Model.AccumulateStatRef(list)
	return list
}

// ComputeChi2 implements computeChi2 (§4.6.1): ndof is the raw
// contribution count minus NParTot.
func (c *Core) ComputeChi2() Statistic {
	t := c.computeChi2List().Total()
	return Statistic{Chi2: t.Chi2, Ndof: t.Ndof - c.nParTot}
}

// leastSquareDerivatives implements §4.6.1: fill triplets and grad from
// the whole graph via the Model. It dispatches to the sequential or
// worker-pool path depending on c.Workers.
func (c *Core) leastSquareDerivatives(triplets *sparse.Buffer, grad []float64) {
	if c.Workers > 1 && len(c.Assoc.CcdImages) > 1 {
		c.leastSquareDerivativesParallel(triplets, grad)
	} else {
		for _, ccd := range c.Assoc.CcdImages {
			c.Model.DerivativesMeasurement(ccd, triplets, grad, nil)
		}
	}
	c.Model.DerivativesReference(c.Assoc.FittedStars, triplets, grad)
}

// buildHessian assembles H = JᵀJ from triplets, where each triplet's
// Col identifies one residual channel (a column block reserved via
// triplets.ReserveColumns by the Model for one measurement) and Row its
// touched parameter index, with Val already weighted. Grouping by
// column and outer-producting each column's sparse parameter list
// yields the Gauss-Newton normal matrix without ever materializing the
// (huge, sparse) Jacobian itself.
func (c *Core) buildHessian(triplets *sparse.Buffer) *mat.SymDense {
	byCol := make(map[int][]sparse.Triplet)
	for _, t := range triplets.Triplets() {
		byCol[t.Col] = append(byCol[t.Col], t)
	}
	h := mat.NewSymDense(c.nParTot, nil)
	for _, col := range byCol {
		for i := 0; i < len(col); i++ {
			for j := i; j < len(col); j++ {
				v := h.At(col[i].Row, col[j].Row) + col[i].Val*col[j].Val
				h.SetSym(col[i].Row, col[j].Row, v)
			}
		}
	}
	return h
}

// findOutliers implements §4.6.3.
func (c *Core) findOutliers(nSigmaCut float64) (msOut []*star.MeasuredStar, fsOut []*star.FittedStar) {
	list := c.computeChi2List()
	mean, sigma := list.AverageAndSigma()
	cut := mean + nSigmaCut*sigma
	list.SortDescending()

	affected := make([]int, c.nParTot)
	marked := func(indices []int) bool {
		for _, i := range indices {
			if i >= 0 && i < len(affected) && affected[i] > 0 {
				return true
			}
		}
		return false
	}
	mark := func(indices []int) {
		for _, i := range indices {
			if i >= 0 && i < len(affected) {
				affected[i]++
			}
		}
	}

	for _, e := range list.Entries() {
		if e.Chi2 <= cut {
			continue
		}
		switch owner := e.Owner.(type) {
		case *star.MeasuredStar:
			f := owner.Fitted
			if f != nil && f.MeasurementCount == 1 && f.RefStar == nil {
				c.logger().Printf("fit: refusing to orphan fitted star by removing its only measurement (chi2=%.3g)", e.Chi2)
				continue
			}
			indices := c.Model.IndicesOfMeasuredStar(owner)
			if marked(indices) {
				continue
			}
			msOut = append(msOut, owner)
			mark(indices)
		case *star.FittedStar:
			if owner.MeasurementCount == 0 {
				c.logger().Printf("fit: refusing to detach reference from fitted star with zero valid measurements (chi2=%.3g)", e.Chi2)
				continue
			}
			indices := StarParamIndices(owner, c.whatToFit)
			if marked(indices) {
				continue
			}
			fsOut = append(fsOut, owner)
			mark(indices)
		}
	}
	return msOut, fsOut
}

// Minimize runs the Gauss-Newton loop (§4.6.2). doRankUpdate is
// accepted for API compatibility with the specification but, per the
// design notes (no sparse-downdate library is wired; see DESIGN.md),
// both paths rebuild and refactor the Hessian from scratch every
// iteration — this is explicitly correctness-equivalent, only
// performance differs.
func (c *Core) Minimize(ctx context.Context, w WhatToFit, nSigmaCut float64, doRankUpdate bool) (MinimizeResult, error) {
	_ = doRankUpdate
	if err := c.AssignIndices(w); err != nil {
		return Failed, err
	}

	prevChi2 := math.Inf(1)
	removedAny := false

	for {
		select {
		case <-ctx.Done():
			return Failed, ctx.Err()
		default:
		}

		triplets := sparse.NewBuffer(0)
		grad := make([]float64, c.nParTot)
		c.leastSquareDerivatives(triplets, grad)

		h := c.buildHessian(triplets)
		var chol mat.Cholesky
		if ok := chol.Factorize(h); !ok {
			return Failed, ErrFactorizationFailed
		}

		var delta mat.VecDense
		if err := chol.SolveVecTo(&delta, mat.NewVecDense(c.nParTot, grad)); err != nil {
			return Failed, fmt.Errorf("fit: solving normal equations: %w", ErrFactorizationFailed)
		}
		c.OffsetParams(delta.RawVector().Data)

		stat := c.ComputeChi2()
		if stat.Chi2 > prevChi2 && removedAny {
			return Chi2Increased, nil
		}
		prevChi2 = stat.Chi2

		if nSigmaCut <= 0 {
			return Converged, nil
		}

		msOut, fsOut := c.findOutliers(nSigmaCut)
		if len(msOut) == 0 && len(fsOut) == 0 {
			return Converged, nil
		}
		for _, m := range msOut {
			m.Invalidate()
		}
		for _, f := range fsOut {
			f.DetachRefStar()
		}
		removedAny = true
	}
}

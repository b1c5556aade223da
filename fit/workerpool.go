package fit

import (
	"sync"

	"github.com/batmanuel-sandbox/jointcal/sparse"
)

// leastSquareDerivativesParallel fans DerivativesMeasurement out across
// c.Workers goroutines, one CcdImage at a time, modeled on the
// dispatcher-and-bounded-worker-pool shape used elsewhere in this
// codebase's ancestry for per-item fan-out (a jobs channel feeding a
// fixed worker count, results collected and merged by the caller).
// Each worker writes into its own Buffer and grad slice so no two
// goroutines ever touch the same memory; the column watermarks of the
// per-worker buffers are renumbered on merge since each started at
// zero independently, and per-worker grad slices are summed into the
// caller's, which is safe because multiple CcdImages can legitimately
// touch the same FittedStar's position/flux indices.
func (c *Core) leastSquareDerivativesParallel(triplets *sparse.Buffer, grad []float64) {
	images := c.Assoc.CcdImages
	jobs := make(chan int)
	type partial struct {
		buf  *sparse.Buffer
		grad []float64
	}
	partials := make([]partial, len(images))

	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for i := range jobs {
			pb := sparse.NewBuffer(0)
			pg := make([]float64, c.nParTot)
			c.Model.DerivativesMeasurement(images[i], pb, pg, nil)
			partials[i] = partial{buf: pb, grad: pg}
		}
	}

	n := c.Workers
	if n > len(images) {
		n = len(images)
	}
	wg.Add(n)
	for w := 0; w < n; w++ {
		go worker()
	}
	for i := range images {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, p := range partials {
		if p.buf == nil {
			continue
		}
		base := triplets.ReserveColumns(p.buf.NextFreeIndex())
		for _, t := range p.buf.Triplets() {
			triplets.Add(t.Row, t.Col+base, t.Val)
		}
		for i, v := range p.grad {
			grad[i] += v
		}
	}
}

// Package chi2 accumulates chi-square contributions during a fit and
// ranks them for outlier rejection. It knows nothing about stars,
// transforms, or CCD images beyond an opaque "owner" pointer attached
// to each contribution.
package chi2

import (
	"math"

	"golang.org/x/exp/slices"
)

// Accumulator is a running (chi2, ndof) pair. The zero value is ready
// to use.
type Accumulator struct {
	Chi2 float64
	Ndof int
}

// AddEntry adds one residual-squared contribution with the given
// degree-of-freedom count (usually 1 per scalar residual).
func (a *Accumulator) AddEntry(residualSq float64, ndof int) {
	a.Chi2 += residualSq
	a.Ndof += ndof
}

// Merge folds other into a.
func (a *Accumulator) Merge(other Accumulator) {
	a.Chi2 += other.Chi2
	a.Ndof += other.Ndof
}

// Star is one chi2 contribution traceable back to the star or
// reference anchor that produced it, so that outlier rejection can
// act on the owner once a contribution is flagged.
type Star struct {
	Owner interface{} // *star.MeasuredStar, or *star.FittedStar for a reference term; opaque here
	Chi2  float64
	Ndof  int
	// seq preserves the order contributions were appended, used to
	// break ties deterministically when sorting.
	seq int
}

// List is a sequence of Star contributions, with insertion order
// preserved until Sort is called.
type List struct {
	entries []Star
	next    int
}

// Sink is the narrow interface a Model uses to report a chi2
// contribution without importing the chi2 package's concrete types
// into the star package (breaking an import cycle) or vice versa.
type Sink interface {
	Add(owner interface{}, chi2 float64, ndof int)
}

// Add appends one contribution, implementing Sink.
func (l *List) Add(owner interface{}, chi2Val float64, ndof int) {
	l.entries = append(l.entries, Star{Owner: owner, Chi2: chi2Val, Ndof: ndof, seq: l.next})
	l.next++
}

// Len reports the number of contributions recorded.
func (l *List) Len() int {
	return len(l.entries)
}

// Entries returns the recorded contributions. The returned slice
// aliases List's storage.
func (l *List) Entries() []Star {
	return l.entries
}

// Total returns the unweighted sum of chi2 and ndof across all
// entries.
func (l *List) Total() Accumulator {
	var a Accumulator
	for _, e := range l.entries {
		a.Chi2 += e.Chi2
		a.Ndof += e.Ndof
	}
	return a
}

// SortDescending orders entries by chi2 descending, breaking ties by
// insertion order (earliest first) so outlier selection is
// deterministic across runs.
func (l *List) SortDescending() {
	slices.SortStableFunc(l.entries, func(a, b Star) int {
		switch {
		case a.Chi2 > b.Chi2:
			return -1
		case a.Chi2 < b.Chi2:
			return 1
		default:
			return 0
		}
	})
}

// AverageAndSigma returns the unweighted mean and sample standard
// deviation of the per-entry chi2 values. With fewer than 2 entries,
// sigma is reported as 0.
func (l *List) AverageAndSigma() (mean, sigma float64) {
	n := len(l.entries)
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, e := range l.entries {
		sum += e.Chi2
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	var ss float64
	for _, e := range l.entries {
		d := e.Chi2 - mean
		ss += d * d
	}
	sigma = math.Sqrt(ss / float64(n-1))
	return mean, sigma
}

// Median returns the middle chi2 value after sorting ascending; with
// an even count it returns the mean of the two middle values. It
// does not mutate the List's current order (it sorts a copy).
func (l *List) Median() float64 {
	n := len(l.entries)
	if n == 0 {
		return 0
	}
	vals := make([]float64, n)
	for i, e := range l.entries {
		vals[i] = e.Chi2
	}
	slices.Sort(vals)
	mid := n / 2
	if n%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

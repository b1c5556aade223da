// Package star holds the data model shared by the matcher and the
// fitter: stars, CCD images, and the Associations graph that ties
// them together. The graph is a few top-level slices of pointers,
// with MeasuredStars pointing back to their CcdImage and FittedStar.
package star

import (
	"errors"
	"sort"

	"github.com/batmanuel-sandbox/jointcal/geom"
)

// ErrDegenerateInput is returned by operations that require a
// nonempty, non-degenerate star list and did not get one.
var ErrDegenerateInput = errors.New("star: degenerate input")

// BaseStar is a 2-D position with a positive flux. Stars are ordered
// by flux only; no absolute photometric calibration is assumed at
// this level.
type BaseStar struct {
	geom.Point
	Flux float64
}

// Location implements spatial.Located so BaseStar (and everything
// that embeds it) can be indexed directly.
func (a BaseStar) Location() geom.Point {
	return a.Point
}

// Less reports whether a is fainter than b, establishing the
// flux-descending order the matcher truncates top-N lists with.
func (a BaseStar) Less(b BaseStar) bool {
	return a.Flux < b.Flux
}

// SortByFluxDescending sorts a slice of BaseStar by flux, brightest
// first, in place.
func SortByFluxDescending(stars []BaseStar) {
	sort.Slice(stars, func(i, j int) bool { return stars[i].Flux > stars[j].Flux })
}

// RefStar is an external-catalogue anchor with its own position and
// flux uncertainty.
type RefStar struct {
	BaseStar
	ID      string
	ErrX    float64
	ErrY    float64
	ErrFlux float64
}

// FittedStar is a sky object estimated from one or more MeasuredStars,
// optionally linked to a RefStar. Index is the base offset of this
// star's parameters (position and/or flux) in the fitter's parameter
// vector once assigned; it is -1 until assignment.
type FittedStar struct {
	BaseStar
	MeasurementCount int
	Index            int
	RefStar          *RefStar
}

// NewFittedStar returns a FittedStar seeded at the given position and
// flux, with no measurements yet attached.
func NewFittedStar(p geom.Point, flux float64) *FittedStar {
	return &FittedStar{BaseStar: BaseStar{Point: p, Flux: flux}, Index: -1}
}

// DetachRefStar removes this FittedStar's link to an external
// catalogue anchor, used when a reference contribution is rejected as
// an outlier.
func (f *FittedStar) DetachRefStar() {
	f.RefStar = nil
}

// MeasuredStar is one observation of a FittedStar on one CcdImage.
type MeasuredStar struct {
	BaseStar
	ErrX, ErrY, ErrFlux float64
	Ccd                 *CcdImage
	Fitted              *FittedStar
	Valid               bool
}

// Invalidate marks the measurement invalid and decrements its owning
// FittedStar's measurement count, preserving the invariant that
// MeasurementCount equals the number of currently valid children.
func (m *MeasuredStar) Invalidate() {
	if !m.Valid {
		return
	}
	m.Valid = false
	if m.Fitted != nil && m.Fitted.MeasurementCount > 0 {
		m.Fitted.MeasurementCount--
	}
}

// CcdImage is one detector exposure: its measured stars plus whatever
// per-image model handle (a Transform, a zero-point, ...) the caller's
// Model attaches via ModelData.
type CcdImage struct {
	Name         string
	Measured     []*MeasuredStar
	ModelData    interface{} // opaque slot for Model-specific per-image state
	DistortionOK bool        // false until this image's transform has been seeded
}

// NewCcdImage returns an empty CcdImage with the given name.
func NewCcdImage(name string) *CcdImage {
	return &CcdImage{Name: name}
}

// AddMeasured appends a MeasuredStar to this image and wires its Ccd
// back-reference.
func (c *CcdImage) AddMeasured(m *MeasuredStar) {
	m.Ccd = c
	c.Measured = append(c.Measured, m)
}

// ValidMeasured returns the subset of c.Measured currently marked
// Valid. The returned slice is freshly allocated.
func (c *CcdImage) ValidMeasured() []*MeasuredStar {
	out := make([]*MeasuredStar, 0, len(c.Measured))
	for _, m := range c.Measured {
		if m.Valid {
			out = append(out, m)
		}
	}
	return out
}

// Associations is the whole ensemble the fitter operates on: every
// CcdImage, every FittedStar, and every RefStar. The invariant that
// every valid MeasuredStar points to exactly one FittedStar, and that
// a FittedStar's MeasurementCount equals the number of valid children
// pointing to it, is maintained by the constructors/mutators in this
// package and in package fit; it is never violated mid-call by
// external code because the graph is read-only outside a fit (see
// the concurrency notes in the specification).
type Associations struct {
	CcdImages   []*CcdImage
	FittedStars []*FittedStar
	RefStars    []*RefStar
}

// NewAssociations returns an empty Associations ready to be populated.
func NewAssociations() *Associations {
	return &Associations{}
}

// AddCcdImage registers a CcdImage with this Associations.
func (a *Associations) AddCcdImage(c *CcdImage) {
	a.CcdImages = append(a.CcdImages, c)
}

// AddFittedStar registers a FittedStar with this Associations.
func (a *Associations) AddFittedStar(f *FittedStar) {
	a.FittedStars = append(a.FittedStars, f)
}

// AddRefStar registers a RefStar with this Associations.
func (a *Associations) AddRefStar(r *RefStar) {
	a.RefStars = append(a.RefStars, r)
}

// CheckInvariant verifies, for every FittedStar reachable from a, that
// MeasurementCount equals the number of valid MeasuredStar children
// pointing to it. It is intended for tests and diagnostics, not the
// hot fitting path.
func (a *Associations) CheckInvariant() error {
	counts := make(map[*FittedStar]int, len(a.FittedStars))
	for _, c := range a.CcdImages {
		for _, m := range c.Measured {
			if m.Valid && m.Fitted != nil {
				counts[m.Fitted]++
			}
		}
	}
	for _, f := range a.FittedStars {
		if counts[f] != f.MeasurementCount {
			return errors.New("star: measurement count invariant violated")
		}
	}
	return nil
}

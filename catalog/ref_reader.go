package catalog

import (
	"fmt"
	"io"

	"github.com/batmanuel-sandbox/jointcal/geom"
	"github.com/batmanuel-sandbox/jointcal/spatial"
	"github.com/batmanuel-sandbox/jointcal/star"
)

// LoadCatalogue reads an external reference catalogue: id, x, y, flux,
// and optionally errX, errY, errFlux (§4.10), in the same tabular text
// format as LoadMeasuredCatalogue.
func LoadCatalogue(r io.Reader) ([]star.RefStar, error) {
	cr := newTableReader(r)
	var out []star.RefStar
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("catalog: reading reference catalogue: %w", err)
		}
		fields := splitFields(record)
		if len(fields) < 4 {
			return out, fmt.Errorf("catalog: reference catalogue row has %d fields, need at least 4 (id x y flux)", len(fields))
		}
		x, err := parseFloat(fields[1], "reference x")
		if err != nil {
			return out, err
		}
		y, err := parseFloat(fields[2], "reference y")
		if err != nil {
			return out, err
		}
		flux, err := parseFloat(fields[3], "reference flux")
		if err != nil {
			return out, err
		}
		rs := star.RefStar{
			BaseStar: star.BaseStar{Point: geom.Point{X: x, Y: y}, Flux: flux},
			ID:       fields[0],
		}
		if len(fields) >= 7 {
			if rs.ErrX, err = parseFloat(fields[4], "reference errX"); err != nil {
				return out, err
			}
			if rs.ErrY, err = parseFloat(fields[5], "reference errY"); err != nil {
				return out, err
			}
			if rs.ErrFlux, err = parseFloat(fields[6], "reference errFlux"); err != nil {
				return out, err
			}
		}
		out = append(out, rs)
	}
	return out, nil
}

// AssignFittedStars implements §4.10: when no external grouping of
// MeasuredStars into sky objects is supplied, group every valid,
// as-yet-unassigned MeasuredStar across all CcdImages by
// nearest-neighbour proximity within matchRadius, creating one
// FittedStar per group and registering it with assoc. Existing
// FittedStars (already linked via ms.Fitted) are left untouched.
// RefStars already present in assoc are linked to the FittedStar
// nearest them, within matchRadius, if any.
func AssignFittedStars(assoc *star.Associations, matchRadius float64) {
	var unassigned []*star.MeasuredStar
	for _, ccd := range assoc.CcdImages {
		for _, ms := range ccd.Measured {
			if ms.Valid && ms.Fitted == nil {
				unassigned = append(unassigned, ms)
			}
		}
	}
	if len(unassigned) == 0 {
		return
	}

	idx := spatial.New[*star.MeasuredStar](unassigned)
	assigned := make(map[*star.MeasuredStar]bool, len(unassigned))
	for _, seed := range unassigned {
		if assigned[seed] {
			continue
		}
		f := star.NewFittedStar(seed.Point, seed.Flux)
		idx.Scan(seed.Point, matchRadius, func(ms *star.MeasuredStar) {
			if assigned[ms] || seed.Point.Dist(ms.Point) > matchRadius {
				return
			}
			assigned[ms] = true
			ms.Fitted = f
			f.MeasurementCount++
		})
		assoc.AddFittedStar(f)
	}

	if len(assoc.RefStars) == 0 || len(assoc.FittedStars) == 0 {
		return
	}
	fidx := spatial.New[*star.FittedStar](assoc.FittedStars)
	for _, r := range assoc.RefStars {
		if f, ok := fidx.FindClosest(r.Point, matchRadius, func(f *star.FittedStar) bool { return f.RefStar == nil }); ok {
			f.RefStar = r
		}
	}
}

// Package catalog provides the ambient-stack input/output the
// specification treats as an out-of-scope collaborator (§1) but a
// complete, runnable module still needs: whitespace/CSV star-catalogue
// loaders, chi2 diagnostic writers, and a nearest-neighbour grouping
// pass that turns raw measured stars into FittedStars (§4.10).
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/batmanuel-sandbox/jointcal/geom"
	"github.com/batmanuel-sandbox/jointcal/star"
)

// newTableReader wraps r in a csv.Reader configured for the
// whitespace-or-comma catalogue text format: comment lines start with
// '#', and short/blank lines are skipped rather than treated as
// malformed.
func newTableReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = ','
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

// splitFields tolerates the common case of a whitespace-separated line
// arriving as a single CSV field by re-splitting on whitespace whenever
// the reader only found one column.
func splitFields(record []string) []string {
	if len(record) == 1 {
		if fields := strings.Fields(record[0]); len(fields) > 1 {
			return fields
		}
	}
	return record
}

func parseFloat(field, context string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, fmt.Errorf("catalog: parsing %s %q: %w", context, field, err)
	}
	return v, nil
}

// LoadMeasuredCatalogue reads one CcdImage's worth of measured stars:
// id, x, y, flux, and optionally errX, errY, errFlux (§4.10). Each
// returned MeasuredStar is already attached to ccd via AddMeasured, but
// not yet grouped into a FittedStar (see AssignFittedStars).
func LoadMeasuredCatalogue(r io.Reader, ccd *star.CcdImage) ([]*star.MeasuredStar, error) {
	cr := newTableReader(r)
	var out []*star.MeasuredStar
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("catalog: reading measured catalogue for %s: %w", ccd.Name, err)
		}
		fields := splitFields(record)
		if len(fields) < 4 {
			return out, fmt.Errorf("catalog: measured catalogue row for %s has %d fields, need at least 4 (id x y flux)", ccd.Name, len(fields))
		}
		x, err := parseFloat(fields[1], "measured x")
		if err != nil {
			return out, err
		}
		y, err := parseFloat(fields[2], "measured y")
		if err != nil {
			return out, err
		}
		flux, err := parseFloat(fields[3], "measured flux")
		if err != nil {
			return out, err
		}
		ms := &star.MeasuredStar{
			BaseStar: star.BaseStar{Point: geom.Point{X: x, Y: y}, Flux: flux},
			Valid:    true,
		}
		if len(fields) >= 7 {
			if ms.ErrX, err = parseFloat(fields[4], "measured errX"); err != nil {
				return out, err
			}
			if ms.ErrY, err = parseFloat(fields[5], "measured errY"); err != nil {
				return out, err
			}
			if ms.ErrFlux, err = parseFloat(fields[6], "measured errFlux"); err != nil {
				return out, err
			}
		}
		ccd.AddMeasured(ms)
		out = append(out, ms)
	}
	return out, nil
}

// DiagnosticRow is one chi2-diagnostic table row, already resolved from
// a chi2.Star contribution to plain fields so this package need not
// import the chi2 package's Owner-typed internals.
type DiagnosticRow struct {
	StarID      string
	X, Y        float64
	Residual    float64
	Chi2        float64
	Ndof        int
	IsReference bool
}

// WriteChi2Diagnostics implements §4.10/§6: writes "<base>-meas<ext>"
// and "<base>-ref<ext>" (splitting baseName at its final '.', or at
// end-of-string if none), each a csv.Writer table of (star-id, x, y,
// residual, chi2, ndof). open creates each output file, typically
// os.Create, injected so this package has no direct os dependency.
func WriteChi2Diagnostics(baseName string, entries []DiagnosticRow, open func(name string) (io.WriteCloser, error)) error {
	measPath, refPath := diagnosticPaths(baseName)

	var measRows, refRows []DiagnosticRow
	for _, e := range entries {
		if e.IsReference {
			refRows = append(refRows, e)
		} else {
			measRows = append(measRows, e)
		}
	}
	if err := writeDiagnosticTable(measPath, measRows, open); err != nil {
		return err
	}
	if err := writeDiagnosticTable(refPath, refRows, open); err != nil {
		return err
	}
	return nil
}

func diagnosticPaths(baseName string) (meas, ref string) {
	dot := strings.LastIndexByte(baseName, '.')
	if dot < 0 {
		return baseName + "-meas", baseName + "-ref"
	}
	return baseName[:dot] + "-meas" + baseName[dot:], baseName[:dot] + "-ref" + baseName[dot:]
}

func writeDiagnosticTable(path string, rows []DiagnosticRow, open func(name string) (io.WriteCloser, error)) error {
	f, err := open(path)
	if err != nil {
		return fmt.Errorf("catalog: opening %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, r := range rows {
		record := []string{
			r.StarID,
			strconv.FormatFloat(r.X, 'g', -1, 64),
			strconv.FormatFloat(r.Y, 'g', -1, 64),
			strconv.FormatFloat(r.Residual, 'g', -1, 64),
			strconv.FormatFloat(r.Chi2, 'g', -1, 64),
			strconv.Itoa(r.Ndof),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("catalog: writing %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("catalog: flushing %s: %w", path, err)
	}
	return nil
}

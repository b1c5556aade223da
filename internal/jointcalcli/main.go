package jointcalcli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/batmanuel-sandbox/jointcal/catalog"
	"github.com/batmanuel-sandbox/jointcal/chi2"
	"github.com/batmanuel-sandbox/jointcal/fit"
	"github.com/batmanuel-sandbox/jointcal/match"
	"github.com/batmanuel-sandbox/jointcal/model"
	"github.com/batmanuel-sandbox/jointcal/star"
	"github.com/batmanuel-sandbox/jointcal/transform"
)

var logger = log.New(os.Stderr, "jointcal: ", log.LstdFlags)

// Main is the cmd/jointcal entry point. It parses flags, builds an
// Associations from the given catalogues, bootstraps per-CcdImage
// transforms via the matcher, and runs Core.Minimize, following
// digest2's Main-does-everything-then-returns-an-exit-code shape
// rather than os.Exit-ing from deep call stacks.
func Main(args []string) int {
	cl, err := parseConfig(args)
	if err != nil {
		return 2
	}
	if cl.version {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		return 0
	}
	if len(cl.measPaths) == 0 {
		logger.Println("at least one -meas catalogue is required")
		return 2
	}

	if err := run(cl); err != nil {
		logger.Println(err)
		return 1
	}
	return 0
}

func run(cl *config) error {
	assoc := star.NewAssociations()

	var refs []star.RefStar
	if cl.refPath != "" {
		var err error
		refs, err = loadRefCatalogue(cl.refPath)
		if err != nil {
			return err
		}
		for i := range refs {
			assoc.AddRefStar(&refs[i])
		}
	}
	refBase := refBaseStars(refs)

	seeds := make(map[*star.CcdImage]transform.Transform, len(cl.measPaths))
	for _, path := range cl.measPaths {
		ccd, err := loadCcdImage(path)
		if err != nil {
			return err
		}
		assoc.AddCcdImage(ccd)
		seeds[ccd] = seedTransform(ccd, refBase, cl.maxOrder)
	}

	catalog.AssignFittedStars(assoc, cl.matchRadius)
	if cl.verbose {
		logger.Printf("assembled %d CcdImages, %d FittedStars, %d RefStars", len(assoc.CcdImages), len(assoc.FittedStars), len(assoc.RefStars))
	}

	astro := model.NewAstrometryModel(assoc, func(ccd *star.CcdImage) transform.Transform {
		return seeds[ccd]
	}, 0.05)

	what, err := fit.ParseWhatToFit(strings.Split(cl.whatToFit, ",")...)
	if err != nil {
		return err
	}

	core := fit.NewCore(astro, assoc)
	core.Logger = logger
	core.Workers = cl.workers

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	result, err := core.Minimize(ctx, what, cl.nSigmaCut, cl.rankUpdate)
	if err != nil {
		return fmt.Errorf("jointcal: minimize: %w", err)
	}

	stat := core.ComputeChi2()
	logger.Printf("result=%s chi2=%.4f ndof=%d chi2/ndof=%.4f", result, stat.Chi2, stat.Ndof, stat.Chi2PerDof())

	if cl.chi2Out != "" {
		if err := writeDiagnostics(cl.chi2Out, assoc, astro); err != nil {
			return err
		}
	}
	return nil
}

func loadCcdImage(path string) (*star.CcdImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("jointcal: opening %s: %w", path, err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ccd := star.NewCcdImage(name)
	if _, err := catalog.LoadMeasuredCatalogue(f, ccd); err != nil {
		return nil, err
	}
	return ccd, nil
}

func loadRefCatalogue(path string) ([]star.RefStar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("jointcal: opening %s: %w", path, err)
	}
	defer f.Close()
	return catalog.LoadCatalogue(f)
}

func refBaseStars(refs []star.RefStar) []star.BaseStar {
	out := make([]star.BaseStar, len(refs))
	for i, r := range refs {
		out[i] = r.BaseStar
	}
	return out
}

func measuredBaseStars(ccd *star.CcdImage) []star.BaseStar {
	out := make([]star.BaseStar, len(ccd.Measured))
	for i, m := range ccd.Measured {
		out[i] = m.BaseStar
	}
	return out
}

// seedTransform bootstraps ccd's initial pixel-to-reference transform
// via the combinatorial matcher (§2's data flow: "the Matcher seeds
// initial per-detector transforms"), falling back to identity, logged,
// when there is no reference catalogue or the matcher fails to find one.
func seedTransform(ccd *star.CcdImage, refBase []star.BaseStar, maxOrder int) transform.Transform {
	if len(refBase) == 0 {
		return transform.Identity
	}
	ml, err := match.MatchAndRefine(measuredBaseStars(ccd), refBase, match.DefaultConditions(), maxOrder)
	if err != nil {
		logger.Printf("%s: no matcher seed (%v), starting from identity", ccd.Name, err)
		return transform.Identity
	}
	return ml.Transform
}

func writeDiagnostics(base string, assoc *star.Associations, m fit.Model) error {
	contribs := &chi2.List{}
	for _, ccd := range assoc.CcdImages {
		m.AccumulateStatImage(ccd, contribs)
	}
	m.AccumulateStatRef(contribs)
	byOwner := make(map[interface{}]chi2.Star, contribs.Len())
	for _, c := range contribs.Entries() {
		byOwner[c.Owner] = c
	}
	var rows []catalog.DiagnosticRow
	for _, ccd := range assoc.CcdImages {
		t, _ := ccd.ModelData.(transform.Transform)
		for i, ms := range ccd.Measured {
			if !ms.Valid || ms.Fitted == nil {
				continue
			}
			var residual float64
			if t != nil {
				pred := t.Apply(ms.Point)
				residual = pred.Dist(ms.Fitted.Point)
			}
			rows = append(rows, catalog.DiagnosticRow{
				StarID:   fmt.Sprintf("%s:%d", ccd.Name, i),
				X:        ms.X,
				Y:        ms.Y,
				Residual: residual,
				Chi2:     byOwner[ms].Chi2,
				Ndof:     byOwner[ms].Ndof,
			})
		}
	}
	for _, f := range assoc.FittedStars {
		if f.RefStar == nil {
			continue
		}
		rows = append(rows, catalog.DiagnosticRow{
			StarID:      f.RefStar.ID,
			X:           f.X,
			Y:           f.Y,
			Residual:    f.Point.Dist(f.RefStar.Point),
			Chi2:        byOwner[f].Chi2,
			Ndof:        byOwner[f].Ndof,
			IsReference: true,
		})
	}
	return catalog.WriteChi2Diagnostics(base, rows, func(name string) (io.WriteCloser, error) {
		return os.Create(name)
	})
}

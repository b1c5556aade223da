// Package jointcalcli holds the cmd/jointcal entry point (§4.11):
// flag parsing, catalogue loading, matcher-seeded transform bootstrap,
// and the fit/print/diagnostics pipeline, modeled on digest2's
// flag-based single-binary CLI and its dispatcher/worker fan-out.
package jointcalcli

import (
	"flag"
	"fmt"
	"os"
	"runtime"
)

const versionString = "jointcal version 0.1.0 Go source."
const copyrightString = "Based on the LSST jointcal algorithm design."

// config holds every flag jointcal accepts.
type config struct {
	measPaths   stringListFlag
	refPath     string
	whatToFit   string
	nSigmaCut   float64
	maxOrder    int
	rankUpdate  bool
	workers     int
	matchRadius float64
	chi2Out     string
	verbose     bool
	version     bool
}

// stringListFlag accumulates one value per -meas occurrence.
type stringListFlag []string

func (s *stringListFlag) String() string { return fmt.Sprint([]string(*s)) }
func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func parseConfig(args []string) (*config, error) {
	cl := &config{}
	fs := flag.NewFlagSet("jointcal", flag.ContinueOnError)
	fs.Var(&cl.measPaths, "meas", "path to a measured-star catalogue for one CcdImage (repeatable)")
	fs.StringVar(&cl.refPath, "ref", "", "path to the external reference catalogue")
	fs.StringVar(&cl.whatToFit, "what-to-fit", "Distortions,Positions", "comma-separated: Model|Distortions, Positions, Fluxes")
	fs.Float64Var(&cl.nSigmaCut, "n-sigma-cut", 5.0, "outlier rejection threshold in sigma; 0 disables rejection")
	fs.IntVar(&cl.maxOrder, "max-order", 3, "highest polynomial order the matcher's refine stage may reach")
	fs.BoolVar(&cl.rankUpdate, "rank-update", true, "request the Cholesky rank-update path (accepted for API compatibility; see DESIGN.md)")
	fs.IntVar(&cl.workers, "workers", runtime.GOMAXPROCS(0), "worker-pool size for per-CcdImage derivative assembly")
	fs.Float64Var(&cl.matchRadius, "match-radius", 1.0, "pixel radius for grouping MeasuredStars into FittedStars")
	fs.StringVar(&cl.chi2Out, "chi2-out", "", "base path for chi2 diagnostic tables; empty disables them")
	fs.BoolVar(&cl.verbose, "v", false, "verbose: log the assembled CcdImage/FittedStar/RefStar counts (per-iteration chi2 is not reported)")
	fs.BoolVar(&cl.version, "version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: jointcal -meas <catalogue> [-meas <catalogue> ...] [options]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cl, nil
}

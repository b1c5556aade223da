// Command jointcal fits per-detector geometric or photometric
// transforms and per-object fitted positions/fluxes across a set of
// overlapping exposures, against an optional external reference
// catalogue.
package main

import (
	"os"

	"github.com/batmanuel-sandbox/jointcal/internal/jointcalcli"
)

func main() {
	os.Exit(jointcalcli.Main(os.Args[1:]))
}

package fit

import (
	"fmt"
	"strings"

	"github.com/batmanuel-sandbox/jointcal/star"
)

// WhatToFit selects which parameter groups a Minimize call solves for.
// It is the Go rendering of the tag language in §4.6.1: the tokens
// "Model"/"Distortions", "Positions", and "Fluxes".
type WhatToFit struct {
	Distortions bool // per-CcdImage Model parameters ("Model" is an alias)
	Positions   bool // FittedStar x,y
	Fluxes      bool // FittedStar flux
}

// ParseWhatToFit interprets the tag-language tokens, case-insensitively.
// Unrecognized tokens are an error rather than silently ignored, since a
// caller who fat-fingered "Postions" should hear about it rather than
// fit nothing.
func ParseWhatToFit(tokens ...string) (WhatToFit, error) {
	var w WhatToFit
	for _, tok := range tokens {
		switch strings.ToLower(strings.TrimSpace(tok)) {
		case "model", "distortions":
			w.Distortions = true
		case "positions":
			w.Positions = true
		case "fluxes":
			w.Fluxes = true
		case "":
			// ignore stray empty tokens from split("" , ",")
		default:
			return WhatToFit{}, fmt.Errorf("fit: unrecognized what-to-fit token %q", tok)
		}
	}
	return w, nil
}

// StarParamLayout reports the per-FittedStar parameter layout implied by
// w: the offset (relative to a star's base index) of its position block
// and of its flux scalar, and the total per-star stride. An offset of
// -1 means that group is not being fit. Positions, when present, always
// occupy the first two slots so AstrometryModel and PhotometryModel
// agree on layout regardless of which groups are active.
func StarParamLayout(w WhatToFit) (posOffset, fluxOffset, perStar int) {
	posOffset, fluxOffset = -1, -1
	n := 0
	if w.Positions {
		posOffset = n
		n += 2
	}
	if w.Fluxes {
		fluxOffset = n
		n++
	}
	return posOffset, fluxOffset, n
}

// PositionIndices returns f's (x, y) parameter-vector indices under w, or
// ok=false if positions are not being fit or f has not been assigned an
// index yet.
func PositionIndices(f *star.FittedStar, w WhatToFit) (ix, iy int, ok bool) {
	posOffset, _, _ := StarParamLayout(w)
	if posOffset < 0 || f.Index < 0 {
		return 0, 0, false
	}
	return f.Index + posOffset, f.Index + posOffset + 1, true
}

// FluxIndex returns f's flux parameter-vector index under w, or ok=false
// if flux is not being fit or f has not been assigned an index yet.
func FluxIndex(f *star.FittedStar, w WhatToFit) (idx int, ok bool) {
	_, fluxOffset, _ := StarParamLayout(w)
	if fluxOffset < 0 || f.Index < 0 {
		return 0, false
	}
	return f.Index + fluxOffset, true
}

// StarParamIndices returns every parameter-vector index f currently
// occupies under w (position and/or flux), in no particular order.
func StarParamIndices(f *star.FittedStar, w WhatToFit) []int {
	var out []int
	if ix, iy, ok := PositionIndices(f, w); ok {
		out = append(out, ix, iy)
	}
	if idx, ok := FluxIndex(f, w); ok {
		out = append(out, idx)
	}
	return out
}

package match

// Conditions tunes the combinatorial similarity-transform search.
// These are configuration, not source constants (per the design
// notes): construct DefaultConditions and override fields as needed.
type Conditions struct {
	NStarsList1    int
	NStarsList2    int
	MaxTrialCount  int
	NSigmas        float64
	MaxShiftX      float64
	MaxShiftY      float64
	SizeRatio      float64
	DeltaSizeRatio float64
	MinMatchRatio  float64
	Algorithm      int
}

// DefaultConditions returns the specification's documented defaults.
func DefaultConditions() Conditions {
	return Conditions{
		NStarsList1:    70,
		NStarsList2:    70,
		MaxTrialCount:  4,
		NSigmas:        3.0,
		MaxShiftX:      50,
		MaxShiftY:      50,
		SizeRatio:      1.0,
		DeltaSizeRatio: 0.1,
		MinMatchRatio:  1.0 / 3.0,
		Algorithm:      2,
	}
}

// sizeRatioBounds returns the [min,max] acceptable scale ratio window.
func (c Conditions) sizeRatioBounds() (minR, maxR float64) {
	return c.SizeRatio * (1 - c.DeltaSizeRatio), c.SizeRatio * (1 + c.DeltaSizeRatio)
}

// DefaultRefineMaxOrder is the historical default polynomial order
// MatchAndRefine's refine stage climbs to when a caller has no
// stronger opinion (§4.3.5 / §9 open question resolution).
const DefaultRefineMaxOrder = 3

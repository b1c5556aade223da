package star_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batmanuel-sandbox/jointcal/geom"
	"github.com/batmanuel-sandbox/jointcal/star"
)

func TestFittedStarMeasurementCountInvariant(t *testing.T) {
	assoc := star.NewAssociations()
	ccd := star.NewCcdImage("ccd0")
	assoc.AddCcdImage(ccd)

	f := star.NewFittedStar(geom.Point{X: 1, Y: 1}, 100)
	assoc.AddFittedStar(f)

	for i := 0; i < 3; i++ {
		m := &star.MeasuredStar{BaseStar: star.BaseStar{Point: geom.Point{X: float64(i), Y: 0}, Flux: 100}, Valid: true, Fitted: f}
		ccd.AddMeasured(m)
		f.MeasurementCount++
	}
	require.NoError(t, assoc.CheckInvariant())

	ccd.Measured[0].Invalidate()
	assert.Equal(t, 2, f.MeasurementCount)
	require.NoError(t, assoc.CheckInvariant())

	// Invalidating twice must not double-decrement.
	ccd.Measured[0].Invalidate()
	assert.Equal(t, 2, f.MeasurementCount)
}

func TestCheckInvariantDetectsMismatch(t *testing.T) {
	assoc := star.NewAssociations()
	f := star.NewFittedStar(geom.Point{X: 0, Y: 0}, 1)
	f.MeasurementCount = 5
	assoc.AddFittedStar(f)
	assert.Error(t, assoc.CheckInvariant())
}

func TestValidMeasured(t *testing.T) {
	ccd := star.NewCcdImage("ccd1")
	ccd.AddMeasured(&star.MeasuredStar{Valid: true})
	ccd.AddMeasured(&star.MeasuredStar{Valid: false})
	ccd.AddMeasured(&star.MeasuredStar{Valid: true})

	valid := ccd.ValidMeasured()
	require.Len(t, valid, 2)
}

func TestSortByFluxDescending(t *testing.T) {
	stars := []star.BaseStar{{Flux: 1}, {Flux: 5}, {Flux: 3}}
	star.SortByFluxDescending(stars)
	require.Equal(t, []float64{5, 3, 1}, []float64{stars[0].Flux, stars[1].Flux, stars[2].Flux})
}

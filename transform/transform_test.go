package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batmanuel-sandbox/jointcal/geom"
	"github.com/batmanuel-sandbox/jointcal/transform"
)

func TestIdentityIsNoOp(t *testing.T) {
	p := geom.Point{X: 3, Y: -2}
	assert.Equal(t, p, transform.Identity.Apply(p))
	assert.Equal(t, 0, transform.Identity.ParameterCount())
}

func TestShiftApplyAndInvert(t *testing.T) {
	s := transform.NewShift(1, 2)
	p := geom.Point{X: 5, Y: 5}
	got := s.Apply(p)
	assert.Equal(t, geom.Point{X: 6, Y: 7}, got)

	inv, err := s.Invert()
	require.NoError(t, err)
	back := inv.Apply(got)
	assert.InDelta(t, p.X, back.X, 1e-12)
	assert.InDelta(t, p.Y, back.Y, 1e-12)
}

func TestShiftOffsetParams(t *testing.T) {
	s := transform.NewShift(0, 0)
	s.OffsetParams([]float64{1.5, -0.5})
	assert.Equal(t, []float64{1.5, -0.5}, s.Params())
}

func TestLinearInvertRoundTrip(t *testing.T) {
	l := transform.NewLinear(2, 0, 0, 3)
	p := geom.Point{X: 4, Y: 5}
	applied := l.Apply(p)

	inv, err := l.Invert()
	require.NoError(t, err)
	back := inv.Apply(applied)
	assert.InDelta(t, p.X, back.X, 1e-12)
	assert.InDelta(t, p.Y, back.Y, 1e-12)
}

func TestLinearSingularCannotInvert(t *testing.T) {
	l := transform.NewLinear(1, 2, 2, 4) // det = 0
	_, err := l.Invert()
	assert.Error(t, err)
}

func TestComposeWithIdentityIsCloneNotWrapper(t *testing.T) {
	s := transform.NewShift(1, 1)
	composed := s.Compose(transform.Identity)
	assert.IsType(t, &transform.Shift{}, composed)
	p := geom.Point{X: 1, Y: 1}
	assert.Equal(t, s.Apply(p), composed.Apply(p))
}

func TestComposeAppliesInnerThenOuter(t *testing.T) {
	inner := transform.NewShift(1, 0)
	outer := transform.NewLinear(2, 0, 0, 2)
	composed := outer.Compose(inner)

	p := geom.Point{X: 0, Y: 0}
	got := composed.Apply(p)
	want := outer.Apply(inner.Apply(p))
	assert.Equal(t, want, got)
}

func TestCloneIsIndependent(t *testing.T) {
	s := transform.NewShift(1, 1)
	c := s.Clone().(*transform.Shift)
	c.OffsetParams([]float64{10, 10})
	assert.NotEqual(t, s.Params(), c.Params())
}

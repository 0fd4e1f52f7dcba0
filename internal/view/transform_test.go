package view

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"falcomplot/pkg/geometry"
)

func assertPointNear(t *testing.T, want, got geometry.Point2D) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9)
	assert.InDelta(t, want.Y, got.Y, 1e-9)
}

func TestModelToScreen_Identity(t *testing.T) {
	v := New()
	p := geometry.Point2D{X: 3, Y: -4}
	assertPointNear(t, p, v.ModelToScreen(p))
	assertPointNear(t, p, v.ScreenToModel(p))
}

func TestModelToScreen_Composition(t *testing.T) {
	v := &Transform{X: 10, Y: 20, K: 2, Angle: math.Pi / 2, Center: geometry.Point2D{X: 1, Y: 1}}
	// p - c = (1, 0); rotated 90deg = (0, 1); + c = (1, 2); *2 = (2, 4); + T
	assertPointNear(t, geometry.Point2D{X: 12, Y: 24}, v.ModelToScreen(geometry.Point2D{X: 2, Y: 1}))

	v.FlipX = true
	// flip: (-1, 0); rotated = (0, -1); + c = (1, 0); *2 = (2, 0); + T
	assertPointNear(t, geometry.Point2D{X: 12, Y: 20}, v.ModelToScreen(geometry.Point2D{X: 2, Y: 1}))
}

func TestScreenToModel_RoundTrip(t *testing.T) {
	views := []*Transform{
		{X: 0, Y: 0, K: 1},
		{X: 13, Y: -7, K: 0.25, Angle: 0.7, Center: geometry.Point2D{X: 5, Y: 9}},
		{X: -300, Y: 42, K: 1700, Angle: -2.1, FlipX: true, Center: geometry.Point2D{X: -87.6, Y: 41.8}},
	}
	pts := []geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 2}, {X: -87.61, Y: 41.83}, {X: 1e3, Y: -1e3}}
	for _, v := range views {
		for _, p := range pts {
			got := v.ScreenToModel(v.ModelToScreen(p))
			assert.InDelta(t, p.X, got.X, 1e-6)
			assert.InDelta(t, p.Y, got.Y, 1e-6)
		}
	}
}

func TestAutoFit(t *testing.T) {
	v := New()
	b := geometry.Bounds{MinX: 0, MinY: 0, MaxX: 100, MaxY: 50}
	require.NoError(t, v.AutoFit(b, 880, 480, 40))

	assert.InDelta(t, 8.0, v.K, 1e-12) // min(800/100, 400/50)
	assert.Equal(t, geometry.Point2D{X: 50, Y: 25}, v.Center)
	assert.InDelta(t, 40+(880-8*100)/2.0, v.X, 1e-12)
	assert.InDelta(t, 40+(480-8*50)/2.0, v.Y, 1e-12)
	assert.Equal(t, 0.0, v.Angle)
	require.NotNil(t, v.Initial)
	assert.Equal(t, v.K, v.Initial.K)
}

func TestAutoFit_Degenerate(t *testing.T) {
	tests := map[string]geometry.Bounds{
		"zero width":  {MinX: 1, MinY: 0, MaxX: 1, MaxY: 5},
		"zero height": {MinX: 0, MinY: 2, MaxX: 5, MaxY: 2},
		"empty":       geometry.EmptyBounds(),
		"nan":         {MinX: math.NaN(), MinY: 0, MaxX: 1, MaxY: 1},
		"infinite":    {MinX: 0, MinY: 0, MaxX: math.Inf(1), MaxY: 1},
	}
	for name, b := range tests {
		t.Run(name, func(t *testing.T) {
			v := &Transform{X: 1, Y: 2, K: 3, Angle: 0.5}
			before := *v
			err := v.AutoFit(b, 800, 600, 40)
			assert.ErrorIs(t, err, ErrDegenerateBounds)
			assert.Equal(t, before, *v)
			assert.False(t, math.IsNaN(v.K) || math.IsInf(v.K, 0))
		})
	}
}

func TestScreenToModel_Collapsed(t *testing.T) {
	v := &Transform{X: 4, Y: 4, K: 0}
	got := v.ScreenToModel(geometry.Point2D{X: 4, Y: 4})
	assert.True(t, math.IsNaN(got.X))
	assert.True(t, math.IsNaN(got.Y))
}

func TestFitBounds(t *testing.T) {
	b := FitBounds(geometry.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, []geometry.Point2D{
		{X: 5, Y: -2},
		{X: math.NaN(), Y: 100},
		{X: math.Inf(1), Y: 0},
	})
	assert.Equal(t, geometry.Bounds{MinX: 0, MinY: -2, MaxX: 5, MaxY: 1}, b)
}

func TestZoomAt(t *testing.T) {
	v := &Transform{X: 10, Y: 5, K: 2}
	s := geometry.Point2D{X: 30, Y: 25}
	m := v.ScreenToModel(s)

	v.ZoomAt(s, ZoomInFactor)
	assert.InDelta(t, 2.2, v.K, 1e-12)
	assert.InDelta(t, 10-m.X*0.1*2, v.X, 1e-12)
	assert.InDelta(t, 5-m.Y*0.1*2, v.Y, 1e-12)

	v.ZoomAt(s, 0)
	assert.InDelta(t, 2.2, v.K, 1e-12)
}

func TestWheel(t *testing.T) {
	v := New()
	v.Wheel(geometry.Point2D{}, -1)
	assert.InDelta(t, 1.1, v.K, 1e-12)
	v.Wheel(geometry.Point2D{}, 1)
	assert.InDelta(t, 0.99, v.K, 1e-12)
}

func TestPanRotateReset(t *testing.T) {
	v := New()
	assert.False(t, v.Reset())

	require.NoError(t, v.AutoFit(geometry.Bounds{MaxX: 10, MaxY: 10}, 100, 100, 0))
	fitted := *v.Initial

	v.Pan(5, -3)
	v.Rotate(0.1, 100)
	assert.InDelta(t, 0.6, v.Angle, 1e-12)
	v.SetFlipX(true)
	v.ZoomAt(geometry.Point2D{X: 50, Y: 50}, 1.1)

	require.True(t, v.Reset())
	assert.Equal(t, fitted.X, v.X)
	assert.Equal(t, fitted.Y, v.Y)
	assert.Equal(t, fitted.K, v.K)
	assert.Equal(t, 0.0, v.Angle)
	assert.True(t, v.FlipX, "reset keeps the mirror setting")
}

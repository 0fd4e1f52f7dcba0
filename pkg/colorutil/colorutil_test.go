package colorutil

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistrictColor(t *testing.T) {
	assert.Equal(t, "hsl(137.508, 70%, 55%)", DistrictColor(1))
	assert.Equal(t, "hsl(275.016, 80%, 65%)", DistrictColor(2))
	assert.Equal(t, "hsl(0, 60%, 45%)", DistrictColor(0))
	assert.Equal(t, DistrictColor(7), DistrictColor(7))
	assert.NotEqual(t, DistrictColor(7), DistrictColor(8))
}

func TestLighten(t *testing.T) {
	tests := []struct {
		in, want string
		delta    int
	}{
		{"hsl(120, 60%, 45%)", "hsl(120, 60%, 65%)", 20},
		{"hsl(137.508, 70%, 90%)", "hsl(137.508, 70%, 100%)", 20},
		{"#ff0000", "#ff0000", 20},
		{"rgba(0,0,0,0.3)", "rgba(0,0,0,0.3)", 20},
		{"hsl(bad)", "hsl(bad)", 20},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Lighten(tt.in, tt.delta))
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#00e676", color.NRGBA{R: 0x00, G: 0xe6, B: 0x76, A: 255}},
		{"#333", color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 255}},
		{"#ffffff", color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{"rgba(255,255,255,0.95)", color.NRGBA{R: 255, G: 255, B: 255, A: 242}},
		{"rgba(80, 80, 80, 0.6)", color.NRGBA{R: 80, G: 80, B: 80, A: 153}},
		{"rgb(1, 2, 3)", color.NRGBA{R: 1, G: 2, B: 3, A: 255}},
		{"hsl(0, 100%, 50%)", color.NRGBA{R: 255, G: 0, B: 0, A: 255}},
		{"hsl(120, 100%, 50%)", color.NRGBA{R: 0, G: 255, B: 0, A: 255}},
		{"hsl(240, 100%, 50%)", color.NRGBA{R: 0, G: 0, B: 255, A: 255}},
		{"hsla(0, 0%, 100%, 0.5)", color.NRGBA{R: 255, G: 255, B: 255, A: 128}},
		{"transparent", Transparent},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{"", "red", "#12", "#zzzzzz", "rgb(1,2)", "hsl(a, 1%, 2%)"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrUnsupported, in)
	}
	assert.Equal(t, Black, MustParse("nope"))
}

func TestWithAlpha(t *testing.T) {
	c := color.NRGBA{R: 10, G: 20, B: 30, A: 200}
	assert.Equal(t, c, WithAlpha(c, 1))
	assert.Equal(t, uint8(60), WithAlpha(c, 0.3).A)
	assert.Equal(t, uint8(0), WithAlpha(c, -1).A)
}

// Package colorutil provides shared color utilities for the FalcomPlot viewer.
package colorutil

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Black is the MustParse fallback.
	Black = color.NRGBA{A: 255}
	// Transparent is what "transparent" parses to.
	Transparent = color.NRGBA{}
)

// ErrUnsupported is returned by Parse for strings it cannot interpret.
var ErrUnsupported = errors.New("unsupported color")

// goldenAngle spreads consecutive district hues around the wheel.
const goldenAngle = 137.508

var hslPattern = regexp.MustCompile(`^hsl\((\d+\.?\d*),\s*(\d+)%,\s*(\d+)%\)$`)

// DistrictColor returns the display color for the district born at the given
// iteration. The same iteration always yields the same string.
func DistrictColor(iteration int) string {
	hue := math.Mod(float64(iteration)*goldenAngle, 360)
	saturation := 60 + (iteration%5)*10
	lightness := 45 + (iteration%3)*10
	return fmt.Sprintf("hsl(%s, %d%%, %d%%)", formatFloat(hue), saturation, lightness)
}

// Lighten raises the lightness of an hsl(h, s%, l%) color by delta percentage
// points, clamped at 100. Any other color string is returned unchanged.
func Lighten(css string, delta int) string {
	m := hslPattern.FindStringSubmatch(strings.TrimSpace(css))
	if m == nil {
		return css
	}
	h, _ := strconv.ParseFloat(m[1], 64)
	s, _ := strconv.Atoi(m[2])
	l, _ := strconv.Atoi(m[3])
	l += delta
	if l > 100 {
		l = 100
	}
	return fmt.Sprintf("hsl(%s, %d%%, %d%%)", formatFloat(h), s, l)
}

// Parse converts a CSS color string into an NRGBA value. Supported forms are
// #rgb, #rrggbb, #rrggbbaa, rgb(), rgba(), hsl(), hsla() and "transparent".
func Parse(css string) (color.NRGBA, error) {
	s := strings.ToLower(strings.TrimSpace(css))
	switch {
	case s == "transparent":
		return Transparent, nil
	case strings.HasPrefix(s, "#"):
		return parseHex(s[1:])
	case strings.HasPrefix(s, "rgba(") || strings.HasPrefix(s, "rgb("):
		args, err := funcArgs(s)
		if err != nil {
			return color.NRGBA{}, err
		}
		return parseRGB(args)
	case strings.HasPrefix(s, "hsla(") || strings.HasPrefix(s, "hsl("):
		args, err := funcArgs(s)
		if err != nil {
			return color.NRGBA{}, err
		}
		return parseHSL(args)
	}
	return color.NRGBA{}, fmt.Errorf("%w: %q", ErrUnsupported, css)
}

// MustParse is like Parse but falls back to black on error.
func MustParse(css string) color.NRGBA {
	c, err := Parse(css)
	if err != nil {
		return Black
	}
	return c
}

// WithAlpha multiplies the color's alpha by a (0..1).
func WithAlpha(c color.NRGBA, a float64) color.NRGBA {
	if a >= 1 {
		return c
	}
	if a <= 0 {
		c.A = 0
		return c
	}
	c.A = uint8(math.Round(float64(c.A) * a))
	return c
}

// HSLToRGB converts hue (degrees), saturation and lightness (0..1) to 8-bit RGB.
func HSLToRGB(h, s, l float64) (r, g, b uint8) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = c, x, 0
	case h < 120:
		rf, gf, bf = x, c, 0
	case h < 180:
		rf, gf, bf = 0, c, x
	case h < 240:
		rf, gf, bf = 0, x, c
	case h < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}
	return to8(rf + m), to8(gf + m), to8(bf + m)
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func funcArgs(s string) ([]string, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, s)
	}
	parts := strings.Split(s[open+1:len(s)-1], ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func parseHex(h string) (color.NRGBA, error) {
	expand := func(s string) string {
		var b strings.Builder
		for _, ch := range s {
			b.WriteRune(ch)
			b.WriteRune(ch)
		}
		return b.String()
	}
	switch len(h) {
	case 3, 4:
		h = expand(h)
	case 6, 8:
	default:
		return color.NRGBA{}, fmt.Errorf("%w: #%s", ErrUnsupported, h)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: #%s", ErrUnsupported, h)
	}
	if len(h) == 6 {
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func parseRGB(args []string) (color.NRGBA, error) {
	if len(args) != 3 && len(args) != 4 {
		return color.NRGBA{}, fmt.Errorf("%w: rgb expects 3 or 4 components", ErrUnsupported)
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(strings.TrimSuffix(args[i], "%"), 64)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		if strings.HasSuffix(args[i], "%") {
			v = v * 255 / 100
		}
		ch[i] = uint8(math.Round(math.Max(0, math.Min(255, v))))
	}
	a, err := parseAlpha(args)
	if err != nil {
		return color.NRGBA{}, err
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: a}, nil
}

func parseHSL(args []string) (color.NRGBA, error) {
	if len(args) != 3 && len(args) != 4 {
		return color.NRGBA{}, fmt.Errorf("%w: hsl expects 3 or 4 components", ErrUnsupported)
	}
	h, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "deg"), 64)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	s, err := strconv.ParseFloat(strings.TrimSuffix(args[1], "%"), 64)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	l, err := strconv.ParseFloat(strings.TrimSuffix(args[2], "%"), 64)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	a, err := parseAlpha(args)
	if err != nil {
		return color.NRGBA{}, err
	}
	r, g, b := HSLToRGB(h, clamp01(s/100), clamp01(l/100))
	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}

func parseAlpha(args []string) (uint8, error) {
	if len(args) < 4 {
		return 255, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(args[3], "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if strings.HasSuffix(args[3], "%") {
		v /= 100
	}
	return uint8(math.Round(clamp01(v) * 255)), nil
}

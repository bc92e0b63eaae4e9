package palette

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	apperrors "portal/internal/pkg/errors"
)

var hexPattern = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

var (
	white       = colorful.Color{R: 1, G: 1, B: 1}
	black       = colorful.Color{R: 0, G: 0, B: 0}
	neutralGray = colorful.Color{R: 0.5, G: 0.5, B: 0.5}
)

// Parse reads a #rgb or #rrggbb color; the leading # is optional.
func Parse(s string) (colorful.Color, error) {
	s = strings.TrimSpace(s)
	if !hexPattern.MatchString(s) {
		return colorful.Color{}, apperrors.New(apperrors.KindInvalidColor, fmt.Sprintf("invalid color %q", s))
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(strings.ToLower(s))
	if err != nil {
		return colorful.Color{}, apperrors.Wrap(apperrors.KindInvalidColor, fmt.Sprintf("invalid color %q", s), err)
	}
	return c, nil
}

// quantize snaps c to the 8-bit grid so contrast is measured on the color
// that is actually emitted.
func quantize(c colorful.Color) colorful.Color {
	q, _ := colorful.Hex(c.Clamped().Hex())
	return q
}

func hex(c colorful.Color) string {
	return c.Clamped().Hex()
}

func mix(a, b colorful.Color, t float64) colorful.Color {
	return quantize(a.BlendRgb(b, t))
}

func lighten(c colorful.Color, amount float64) colorful.Color {
	h, s, l := c.Hsl()
	return quantize(colorful.Hsl(h, s, clamp01(l+amount)))
}

func darken(c colorful.Color, amount float64) colorful.Color {
	return lighten(c, -amount)
}

func desaturate(c colorful.Color, amount float64) colorful.Color {
	h, s, l := c.Hsl()
	return quantize(colorful.Hsl(h, clamp01(s-amount), l))
}

// spin rotates the hue by deg degrees.
func spin(c colorful.Color, deg float64) colorful.Color {
	h, s, l := c.Hsl()
	h = math.Mod(h+deg, 360)
	if h < 0 {
		h += 360
	}
	return quantize(colorful.Hsl(h, s, l))
}

func lightness(c colorful.Color) float64 {
	_, _, l := c.Hsl()
	return l
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Luminance is the WCAG relative luminance of c.
func Luminance(c colorful.Color) float64 {
	r, g, b := c.Clamped().LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// Contrast is the WCAG contrast ratio between two colors, in [1, 21].
func Contrast(a, b colorful.Color) float64 {
	la, lb := Luminance(a), Luminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

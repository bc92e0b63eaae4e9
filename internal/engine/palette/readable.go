package palette

import "github.com/lucasb-eyer/go-colorful"

const (
	// MinContrast is the WCAG AA ratio for body text.
	MinContrast = 4.5

	nudgeStep  = 0.03
	nudgeSteps = 8
)

// EnsureReadable returns a foreground hex for text drawn on bg.
func EnsureReadable(bg string) (string, error) {
	c, err := Parse(bg)
	if err != nil {
		return "", err
	}
	return hex(readable(c)), nil
}

func readable(bg colorful.Color) colorful.Color {
	return readableFrom(bg, white, black, MinContrast)
}

// readableFrom prefers light, then dark, when either reaches target. Otherwise
// the better of the two is pushed away from bg in lightness steps until it
// reaches target or the step budget runs out. The result is never less readable
// than the better starting candidate.
func readableFrom(bg, light, dark colorful.Color, target float64) colorful.Color {
	lr := Contrast(light, bg)
	if lr >= target {
		return light
	}
	dr := Contrast(dark, bg)
	if dr >= target {
		return dark
	}

	candidate, step := light, nudgeStep
	best := lr
	if dr > lr {
		candidate, step = dark, -nudgeStep
		best = dr
	}

	for i := 0; i < nudgeSteps; i++ {
		next := lighten(candidate, step)
		ratio := Contrast(next, bg)
		if ratio < best {
			break
		}
		candidate, best = next, ratio
		if ratio >= target {
			break
		}
	}
	return candidate
}

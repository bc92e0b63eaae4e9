package palette

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	apperrors "portal/internal/pkg/errors"
)

// Palette maps a theme token (for example "sidebar-primary") to a color.
type Palette map[string]string

const (
	TokenBackground               = "background"
	TokenForeground               = "foreground"
	TokenCard                     = "card"
	TokenCardForeground           = "card-foreground"
	TokenPopover                  = "popover"
	TokenPopoverForeground        = "popover-foreground"
	TokenPrimary                  = "primary"
	TokenPrimaryForeground        = "primary-foreground"
	TokenSecondary                = "secondary"
	TokenSecondaryForeground      = "secondary-foreground"
	TokenMuted                    = "muted"
	TokenMutedForeground          = "muted-foreground"
	TokenAccent                   = "accent"
	TokenAccentForeground         = "accent-foreground"
	TokenDestructive              = "destructive"
	TokenBorder                   = "border"
	TokenInput                    = "input"
	TokenRing                     = "ring"
	TokenChart1                   = "chart1"
	TokenChart2                   = "chart2"
	TokenChart3                   = "chart3"
	TokenChart4                   = "chart4"
	TokenChart5                   = "chart5"
	TokenSidebar                  = "sidebar"
	TokenSidebarForeground        = "sidebar-foreground"
	TokenSidebarPrimary           = "sidebar-primary"
	TokenSidebarPrimaryForeground = "sidebar-primary-foreground"
	TokenSidebarAccent            = "sidebar-accent"
	TokenSidebarAccentForeground  = "sidebar-accent-foreground"
	TokenSidebarBorder            = "sidebar-border"
	TokenSidebarRing              = "sidebar-ring"
)

// Tokens lists every key a complete palette carries.
var Tokens = []string{
	TokenBackground, TokenForeground,
	TokenCard, TokenCardForeground,
	TokenPopover, TokenPopoverForeground,
	TokenPrimary, TokenPrimaryForeground,
	TokenSecondary, TokenSecondaryForeground,
	TokenMuted, TokenMutedForeground,
	TokenAccent, TokenAccentForeground,
	TokenDestructive, TokenBorder, TokenInput, TokenRing,
	TokenChart1, TokenChart2, TokenChart3, TokenChart4, TokenChart5,
	TokenSidebar, TokenSidebarForeground,
	TokenSidebarPrimary, TokenSidebarPrimaryForeground,
	TokenSidebarAccent, TokenSidebarAccentForeground,
	TokenSidebarBorder, TokenSidebarRing,
}

const destructive = "#dc3545"

const (
	backgroundGrayBlend     = 0.35
	backgroundMaxSaturation = 0.18
	backgroundLightness     = 0.10
)

// Derive builds the full theme from a tenant's two brand colors. The
// primary and secondary entries are the inputs exactly as given.
func Derive(primary, secondary string) (Palette, error) {
	p, err := Parse(primary)
	if err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}
	s, err := Parse(secondary)
	if err != nil {
		return nil, fmt.Errorf("secondary: %w", err)
	}

	bg := background(p, s)
	card := lighten(bg, 0.04)
	popover := lighten(bg, 0.06)
	muted := desaturate(lighten(bg, 0.10), 0.05)
	accent := mix(s, bg, 0.35)
	sidebar := darken(bg, 0.04)
	sidebarPrimary := lighten(p, 0.06)
	sidebarAccent := darken(accent, 0.08)

	return Palette{
		TokenBackground:        hex(bg),
		TokenForeground:        hex(readable(bg)),
		TokenCard:              hex(card),
		TokenCardForeground:    hex(readable(card)),
		TokenPopover:           hex(popover),
		TokenPopoverForeground: hex(readable(popover)),

		TokenPrimary:             primary,
		TokenPrimaryForeground:   hex(readable(p)),
		TokenSecondary:           secondary,
		TokenSecondaryForeground: hex(readable(s)),

		TokenMuted:            hex(muted),
		TokenMutedForeground:  hex(readable(muted)),
		TokenAccent:           hex(accent),
		TokenAccentForeground: hex(readable(accent)),

		TokenDestructive: destructive,
		TokenBorder:      hex(lighten(bg, 0.12)),
		TokenInput:       hex(lighten(bg, 0.10)),
		TokenRing:        hex(lighten(p, 0.10)),

		TokenChart1: hex(spin(p, 10)),
		TokenChart2: hex(spin(p, -20)),
		TokenChart3: hex(spin(s, 30)),
		TokenChart4: hex(spin(s, -40)),
		TokenChart5: hex(spin(accent, 20)),

		TokenSidebar:                  hex(sidebar),
		TokenSidebarForeground:        hex(readable(sidebar)),
		TokenSidebarPrimary:           hex(sidebarPrimary),
		TokenSidebarPrimaryForeground: hex(readable(sidebarPrimary)),
		TokenSidebarAccent:            hex(sidebarAccent),
		TokenSidebarAccentForeground:  hex(readable(sidebarAccent)),
		TokenSidebarBorder:            hex(lighten(sidebar, 0.06)),
		TokenSidebarRing:              hex(lighten(p, 0.28)),
	}, nil
}

// background mixes the brand colors evenly, pulls the result toward gray and
// pins it to a dark, muted tone.
func background(p, s colorful.Color) colorful.Color {
	base := mix(p, s, 0.5)
	grayed := mix(base, neutralGray, backgroundGrayBlend)
	h, sat, _ := grayed.Hsl()
	if sat > backgroundMaxSaturation {
		sat = backgroundMaxSaturation
	}
	return quantize(colorful.Hsl(h, sat, backgroundLightness))
}

// Validate checks that colors holds every token and that each one parses.
func Validate(colors map[string]string) error {
	var missing []string
	for _, token := range Tokens {
		v, ok := colors[token]
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, token)
			continue
		}
		if _, err := Parse(v); err != nil {
			return fmt.Errorf("%s: %w", token, err)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return apperrors.Wrap(apperrors.KindIncompletePalette, "palette is incomplete",
			fmt.Errorf("missing tokens: %s", strings.Join(missing, ", ")))
	}
	return nil
}

var neutral = mustDerive("#71717a", "#52525b")

// Neutral is the fallback theme used when a tenant's palette cannot be resolved.
func Neutral() Palette {
	out := make(Palette, len(neutral))
	for k, v := range neutral {
		out[k] = v
	}
	return out
}

func mustDerive(primary, secondary string) Palette {
	p, err := Derive(primary, secondary)
	if err != nil {
		panic(err)
	}
	return p
}

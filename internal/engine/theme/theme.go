package theme

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"portal/internal/engine/palette"
	apperrors "portal/internal/pkg/errors"
	"portal/internal/platform/models"
)

// Stylesheet is a style-variable namespace. Each palette token is stored as a
// custom property named "--<token>".
type Stylesheet struct {
	mu   sync.RWMutex
	vars map[string]string
}

func NewStylesheet() *Stylesheet {
	return &Stylesheet{vars: make(map[string]string)}
}

// Apply writes every token of p into the namespace. Applying the same
// palette twice leaves the namespace as a single application would.
func (s *Stylesheet) Apply(p palette.Palette) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, value := range p {
		s.vars["--"+token] = value
	}
}

func (s *Stylesheet) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vars[name]
	return v, ok
}

// Vars returns a copy of the namespace.
func (s *Stylesheet) Vars() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// CSS renders the namespace as a :root rule with properties sorted by name.
func (s *Stylesheet) CSS() string {
	vars := s.Vars()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s: %s;\n", name, vars[name])
	}
	b.WriteString("}\n")
	return b.String()
}

// Resolve turns a tenant's stored whitelabel colors into a complete palette.
// A stored full palette is used as-is and a stored primary/secondary pair is
// derived. Any other set, including a full palette with a missing or corrupt
// token, fails closed.
func Resolve(wl *models.WhiteLabel) (palette.Palette, error) {
	if wl == nil || len(wl.Colors) == 0 {
		return nil, apperrors.ErrIncompletePalette
	}

	if seedsOnly(wl.Colors) {
		primary, hasPrimary := wl.Colors[palette.TokenPrimary]
		secondary, hasSecondary := wl.Colors[palette.TokenSecondary]
		if !hasPrimary || !hasSecondary {
			return nil, apperrors.ErrIncompletePalette
		}
		return palette.Derive(primary, secondary)
	}

	if err := palette.Validate(wl.Colors); err != nil {
		return nil, err
	}
	out := make(palette.Palette, len(palette.Tokens))
	for _, token := range palette.Tokens {
		out[token] = wl.Colors[token]
	}
	return out, nil
}

func seedsOnly(colors map[string]string) bool {
	for k := range colors {
		if k != palette.TokenPrimary && k != palette.TokenSecondary {
			return false
		}
	}
	return true
}

// Render resolves wl and returns the stylesheet for it. On failure the
// neutral palette is rendered and the resolution error is returned alongside.
func Render(wl *models.WhiteLabel) (*Stylesheet, error) {
	sheet := NewStylesheet()
	p, err := Resolve(wl)
	if err != nil {
		sheet.Apply(palette.Neutral())
		return sheet, err
	}
	sheet.Apply(p)
	return sheet, nil
}

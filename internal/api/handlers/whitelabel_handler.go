package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"portal/internal/engine/palette"
	"portal/internal/engine/session"
	"portal/internal/engine/theme"
	"portal/internal/pkg/errors"
	"portal/internal/platform/models"
	"portal/internal/platform/storage"
)

type WhiteLabelStore interface {
	GetByID(ctx context.Context, id string) (*models.Company, error)
	SaveWhiteLabel(ctx context.Context, companyID string, wl *models.WhiteLabel) error
}

type CacheInvalidator interface {
	Invalidate(companyID string)
}

// WhiteLabelHandler is the admin side of whitelabel configuration.
type WhiteLabelHandler struct {
	companies WhiteLabelStore
	assets    storage.AssetURLs
	cache     CacheInvalidator
}

func NewWhiteLabelHandler(companies WhiteLabelStore, assets storage.AssetURLs) *WhiteLabelHandler {
	return &WhiteLabelHandler{companies: companies, assets: assets}
}

// WithCache makes saves drop the company from a tenant lookup cache.
func (h *WhiteLabelHandler) WithCache(cache CacheInvalidator) *WhiteLabelHandler {
	h.cache = cache
	return h
}

type UpdateWhiteLabelRequest struct {
	LogoPath                       string            `json:"logo_path"`
	FaviconPath                    string            `json:"favicon_path"`
	BannerLoginPath                string            `json:"banner_login_path"`
	BannerSignupPath               string            `json:"banner_signup_path"`
	BannerChangePasswordPath       string            `json:"banner_change_password_path"`
	BannerRequestPasswordResetPath string            `json:"banner_request_password_reset_path"`
	Colors                         map[string]string `json:"colors"`
}

type AdminWhiteLabelResponse struct {
	WhiteLabel *models.WhiteLabel `json:"white_label"`
	WhiteLabelResponse
}

type PalettePreviewResponse struct {
	Colors palette.Palette `json:"colors"`
	CSS    string          `json:"css"`
}

func (h *WhiteLabelHandler) Get(w http.ResponseWriter, r *http.Request) {
	sc, ok := session.FromContext(r.Context())
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.KindUnauthorized, "No session found", nil)
		return
	}

	company, err := h.companies.GetByID(r.Context(), sc.CompanyID)
	if err != nil {
		log.Error().Err(err).Str("company_id", sc.CompanyID).Msg("failed to load company")
		errors.WriteError(w, http.StatusInternalServerError, errors.KindInternal, "Failed to load company", nil)
		return
	}
	if company == nil {
		errors.Write(w, errors.ErrTenantNotFound)
		return
	}

	writeJSON(w, http.StatusOK, AdminWhiteLabelResponse{
		WhiteLabel:         company.WhiteLabel,
		WhiteLabelResponse: whiteLabelResponse(r.Context(), h.assets, company),
	})
}

// Update replaces the company's whitelabel. Colors may be a complete palette
// or a primary/secondary pair, optionally with token overrides; the complete
// palette is what gets stored.
func (h *WhiteLabelHandler) Update(w http.ResponseWriter, r *http.Request) {
	sc, ok := session.FromContext(r.Context())
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.KindUnauthorized, "No session found", nil)
		return
	}

	var req UpdateWhiteLabelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	colors, err := completePalette(req.Colors)
	if err != nil {
		errors.Write(w, err)
		return
	}

	wl := &models.WhiteLabel{
		LogoPath:                       req.LogoPath,
		FaviconPath:                    req.FaviconPath,
		BannerLoginPath:                req.BannerLoginPath,
		BannerSignupPath:               req.BannerSignupPath,
		BannerChangePasswordPath:       req.BannerChangePasswordPath,
		BannerRequestPasswordResetPath: req.BannerRequestPasswordResetPath,
		Colors:                         colors,
		UpdatedBy:                      sc.User.ID,
	}
	if err := h.companies.SaveWhiteLabel(r.Context(), sc.CompanyID, wl); err != nil {
		log.Error().Err(err).Str("company_id", sc.CompanyID).Msg("failed to save whitelabel")
		errors.WriteError(w, http.StatusInternalServerError, errors.KindInternal, "Failed to save whitelabel", nil)
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(sc.CompanyID)
	}

	log.Info().Str("company_id", sc.CompanyID).Str("user_id", sc.User.ID).Msg("whitelabel updated")
	h.Get(w, r)
}

// Preview derives a palette from ?primary= and ?secondary= without storing it.
func (h *WhiteLabelHandler) Preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	primary, secondary := q.Get("primary"), q.Get("secondary")
	if primary == "" || secondary == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.KindInvalidInput, "primary and secondary are required", nil)
		return
	}

	p, err := palette.Derive(primary, secondary)
	if err != nil {
		errors.Write(w, err)
		return
	}

	sheet := theme.NewStylesheet()
	sheet.Apply(p)
	writeJSON(w, http.StatusOK, PalettePreviewResponse{Colors: p, CSS: sheet.CSS()})
}

func completePalette(colors map[string]string) (map[string]string, error) {
	err := palette.Validate(colors)
	if err == nil {
		out := make(map[string]string, len(palette.Tokens))
		for _, token := range palette.Tokens {
			out[token] = colors[token]
		}
		return out, nil
	}
	if errors.KindOf(err) != errors.KindIncompletePalette {
		return nil, err
	}

	primary, secondary := colors[palette.TokenPrimary], colors[palette.TokenSecondary]
	if primary == "" || secondary == "" {
		return nil, err
	}
	derived, err := palette.Derive(primary, secondary)
	if err != nil {
		return nil, err
	}
	for _, token := range palette.Tokens {
		v, ok := colors[token]
		if !ok || v == "" {
			continue
		}
		if _, err := palette.Parse(v); err != nil {
			return nil, err
		}
		derived[token] = v
	}
	return derived, nil
}

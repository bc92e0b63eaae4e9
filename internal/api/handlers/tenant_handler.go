package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"portal/internal/engine/palette"
	"portal/internal/engine/tenant"
	"portal/internal/engine/theme"
	"portal/internal/pkg/errors"
	"portal/internal/platform/models"
	"portal/internal/platform/storage"
)

// TenantHandler serves the public whitelabel of a tenant.
type TenantHandler struct {
	resolver *tenant.Resolver
	assets   storage.AssetURLs
}

func NewTenantHandler(resolver *tenant.Resolver, assets storage.AssetURLs) *TenantHandler {
	return &TenantHandler{resolver: resolver, assets: assets}
}

type CompanySummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Status   string `json:"status"`
	Locale   string `json:"locale,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Currency string `json:"currency,omitempty"`
}

type WhiteLabelResponse struct {
	Company  CompanySummary    `json:"company"`
	Assets   map[string]string `json:"assets"`
	Colors   palette.Palette   `json:"colors"`
	Fallback bool              `json:"fallback"`
}

// Resolve looks a tenant up by ?slug= or ?domain= and returns its whitelabel.
func (h *TenantHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	company, err := h.resolver.Resolve(r.Context(), tenant.Key{
		Slug:   q.Get("slug"),
		Domain: q.Get("domain"),
	})
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, whiteLabelResponse(r.Context(), h.assets, company))
}

func (h *TenantHandler) WhiteLabel(w http.ResponseWriter, r *http.Request) {
	company, ok := tenant.FromContext(r.Context())
	if !ok {
		errors.Write(w, errors.ErrMissingTenantKey)
		return
	}
	writeJSON(w, http.StatusOK, whiteLabelResponse(r.Context(), h.assets, company))
}

// ThemeCSS renders the tenant's palette as a stylesheet. A tenant whose
// palette cannot be resolved gets the neutral theme, flagged by a header.
func (h *TenantHandler) ThemeCSS(w http.ResponseWriter, r *http.Request) {
	company, ok := tenant.FromContext(r.Context())
	if !ok {
		errors.Write(w, errors.ErrMissingTenantKey)
		return
	}

	cacheControl := "public, max-age=300"
	sheet, err := theme.Render(company.WhiteLabel)
	if err != nil {
		log.Warn().Err(err).Str("company_id", company.ID).Msg("serving neutral theme")
		w.Header().Set("X-Theme-Fallback", "1")
		cacheControl = "no-store"
	}

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(sheet.CSS()))
}

func summarize(c *models.Company) CompanySummary {
	return CompanySummary{
		ID:       c.ID,
		Name:     c.Name,
		Slug:     c.Slug,
		Domain:   c.Domain,
		Status:   c.Status,
		Locale:   c.Locale,
		Timezone: c.Timezone,
		Currency: c.Currency,
	}
}

func whiteLabelResponse(ctx context.Context, assets storage.AssetURLs, company *models.Company) WhiteLabelResponse {
	resp := WhiteLabelResponse{Company: summarize(company)}

	urls, err := storage.WhiteLabelURLs(ctx, assets, company.WhiteLabel)
	if err != nil {
		log.Warn().Err(err).Str("company_id", company.ID).Msg("failed to resolve whitelabel assets")
		urls = map[string]string{}
	}
	resp.Assets = urls

	colors, err := theme.Resolve(company.WhiteLabel)
	if err != nil {
		colors = palette.Neutral()
		resp.Fallback = true
	}
	resp.Colors = colors
	return resp
}

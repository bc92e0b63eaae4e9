package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"portal/internal/engine/session"
	"portal/internal/pkg/errors"
	"portal/internal/platform/models"
)

type CompanyReader interface {
	GetByID(ctx context.Context, id string) (*models.Company, error)
}

type UserHandler struct {
	companies CompanyReader
}

func NewUserHandler(companies CompanyReader) *UserHandler {
	return &UserHandler{companies: companies}
}

type MeResponse struct {
	User      *models.User    `json:"user"`
	Company   *CompanySummary `json:"company"`
	ExpiresAt int64           `json:"expires_at"`
}

// Me returns the identity the request runs as.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
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

	resp := MeResponse{User: sc.User}
	if company != nil {
		s := summarize(company)
		resp.Company = &s
	}
	if sc.Claims != nil && sc.Claims.ExpiresAt != nil {
		resp.ExpiresAt = sc.Claims.ExpiresAt.Unix()
	}
	writeJSON(w, http.StatusOK, resp)
}

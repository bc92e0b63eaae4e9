package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"portal/internal/engine/session"
	"portal/internal/pkg/errors"
	"portal/internal/platform/models"
)

type AuditLister interface {
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*models.AuditEntry, error)
}

type AuditHandler struct {
	entries AuditLister
}

func NewAuditHandler(entries AuditLister) *AuditHandler {
	return &AuditHandler{entries: entries}
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	sc, ok := session.FromContext(r.Context())
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.KindUnauthorized, "No session found", nil)
		return
	}

	limit, err := intParam(r, "limit", defaultAuditLimit)
	if err != nil || limit <= 0 || limit > maxAuditLimit {
		errors.WriteError(w, http.StatusBadRequest, errors.KindInvalidInput, "limit must be between 1 and 200", nil)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		errors.WriteError(w, http.StatusBadRequest, errors.KindInvalidInput, "offset must not be negative", nil)
		return
	}

	entries, err := h.entries.ListByCompany(r.Context(), sc.CompanyID, limit, offset)
	if err != nil {
		log.Error().Err(err).Str("company_id", sc.CompanyID).Msg("failed to list audit entries")
		errors.WriteError(w, http.StatusInternalServerError, errors.KindInternal, "Failed to list audit entries", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"limit":   limit,
		"offset":  offset,
	})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

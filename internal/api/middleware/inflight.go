package middleware

import (
	"net/http"
	"sync"

	"portal/internal/engine/session"
	"portal/internal/engine/tenant"
	"portal/internal/pkg/errors"
)

// InFlight admits one request at a time per flow, tenant and client.
// A duplicate submission arriving while the first is still running is
// rejected rather than queued.
type InFlight struct {
	active sync.Map
	cookie string
}

// NewInFlight identifies clients by the tenant's session cookie (named from
// cookieName) when present, else by peer IP and user agent.
func NewInFlight(cookieName string) *InFlight {
	return &InFlight{cookie: cookieName}
}

func (g *InFlight) key(flow string, r *http.Request) string {
	companyID := "-"
	if company, ok := tenant.FromContext(r.Context()); ok {
		companyID = company.ID
	}

	client := ""
	if c, err := r.Cookie(session.CookieName(g.cookie, companyID)); err == nil && c.Value != "" {
		client = "s:" + c.Value
	} else {
		client = "c:" + peerIP(r) + "|" + r.UserAgent()
	}
	return flow + ":" + companyID + ":" + client
}

func (g *InFlight) Guard(flow string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := g.key(flow, r)
			if _, busy := g.active.LoadOrStore(key, struct{}{}); busy {
				errors.WriteError(w, http.StatusConflict, errors.KindRequestInFlight, "A request for this action is already in progress", nil)
				return
			}
			defer g.active.Delete(key)

			next(w, r)
		}
	}
}

package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"
	apiContext "portal/internal/api/context"
	"portal/internal/engine/tenant"
	"portal/internal/pkg/errors"
)

const (
	ModeSlug   = "slug"
	ModeDomain = "domain"
)

// TenantMiddleware resolves the company a request is addressed to, from the
// :slug route parameter or from the Host header depending on mode.
type TenantMiddleware struct {
	resolver *tenant.Resolver
	mode     string
}

func NewTenantMiddleware(resolver *tenant.Resolver, mode string) *TenantMiddleware {
	if mode != ModeDomain {
		mode = ModeSlug
	}
	return &TenantMiddleware{resolver: resolver, mode: mode}
}

func (m *TenantMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var key tenant.Key
		if m.mode == ModeDomain {
			key.Domain = r.Host
		} else {
			key.Slug = apiContext.Param(r.Context(), "slug")
		}

		company, err := m.resolver.Resolve(r.Context(), key)
		if err != nil {
			if errors.KindOf(err) == errors.KindTenantNotFound {
				log.Debug().Err(err).Str("slug", key.Slug).Str("domain", key.Domain).Msg("tenant not resolved")
			}
			errors.Write(w, err)
			return
		}

		next(w, r.WithContext(tenant.WithCompany(r.Context(), company)))
	}
}

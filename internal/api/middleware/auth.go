package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"portal/internal/engine/session"
	"portal/internal/engine/tenant"
	"portal/internal/pkg/errors"
	"portal/internal/platform/auth"
	"portal/internal/platform/models"
)

type UserLookup interface {
	GetByID(ctx context.Context, companyID, userID string) (*models.User, error)
}

// AuthMiddleware turns a bearer access token into the request's
// session.Context.
type AuthMiddleware struct {
	tokens *auth.TokenService
	users  UserLookup
}

func NewAuthMiddleware(tokens *auth.TokenService, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.KindUnauthorized, "Missing authorization header", nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			errors.WriteError(w, http.StatusUnauthorized, errors.KindUnauthorized, "Invalid authorization header format", nil)
			return
		}

		claims, err := m.tokens.VerifyAccess(parts[1])
		if err != nil {
			errors.Write(w, err)
			return
		}
		if !claims.Complete() {
			errors.WriteError(w, http.StatusUnauthorized, errors.KindMalformedToken, "Token is missing identity claims", nil)
			return
		}

		user, err := m.users.GetByID(r.Context(), claims.CompanyID, claims.UserID)
		if err != nil {
			log.Error().Err(err).Str("user_id", claims.UserID).Msg("failed to load user for request")
			errors.WriteError(w, http.StatusInternalServerError, errors.KindInternal, "Failed to load user", nil)
			return
		}
		if user == nil || user.Email != claims.Email {
			errors.WriteError(w, http.StatusUnauthorized, errors.KindUnauthorized, "Unknown user", nil)
			return
		}

		switch {
		case user.IsBanned:
			errors.Write(w, errors.ErrUserBanned)
			return
		case !user.IsActive:
			errors.Write(w, errors.ErrUserNotActive)
			return
		case user.CompanyStatus != models.CompanyStatusActive:
			errors.Write(w, errors.ErrCompanyNotActive)
			return
		}

		if company, ok := tenant.FromContext(r.Context()); ok && company.ID != claims.CompanyID {
			errors.WriteError(w, http.StatusForbidden, errors.KindForbidden, "Token belongs to another company", nil)
			return
		}

		ctx := session.WithContext(r.Context(), &session.Context{
			CompanyID: claims.CompanyID,
			User:      user,
			Claims:    claims,
		})
		next(w, r.WithContext(ctx))
	}
}

var areaTypes = map[string][]string{
	"admin": {models.UserTypeAdmin},
	"owner": {models.UserTypeOwner},
	"app":   {models.UserTypeUser, models.UserTypeAdmin, models.UserTypeOwner},
}

// RequireArea lets through users whose type may enter area. Unknown areas
// admit nobody.
func RequireArea(area string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sc, ok := session.FromContext(r.Context())
			if !ok {
				errors.WriteError(w, http.StatusUnauthorized, errors.KindUnauthorized, "No session found", nil)
				return
			}

			allowed := false
			for _, t := range areaTypes[area] {
				if sc.User.Type == t {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.KindForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}

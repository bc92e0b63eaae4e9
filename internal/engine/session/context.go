package session

import (
	"context"

	"portal/internal/platform/auth"
	"portal/internal/platform/models"
)

// Context is the identity a protected request runs as. It is resolved once
// per request and passed down explicitly.
type Context struct {
	CompanyID string
	User      *models.User
	Claims    *auth.Claims
}

type contextKey struct{}

func WithContext(ctx context.Context, s *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (*Context, bool) {
	s, ok := ctx.Value(contextKey{}).(*Context)
	return s, ok && s != nil
}

// CookieName is the browser cookie holding a session id for companyID. Each
// tenant gets its own cookie so sessions of different tenants in one browser
// never collide.
func CookieName(base, companyID string) string {
	return base + "_" + companyID
}

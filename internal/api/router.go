package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	apiContext "portal/internal/api/context"
	"portal/internal/api/handlers"
	"portal/internal/api/middleware"
	"portal/internal/pkg/errors"
)

type Dependencies struct {
	AuthHandler       *handlers.AuthHandler
	TenantHandler     *handlers.TenantHandler
	WhiteLabelHandler *handlers.WhiteLabelHandler
	UserHandler       *handlers.UserHandler
	AuditHandler      *handlers.AuditHandler
	HealthHandler     *handlers.HealthHandler
	AuthMiddleware    *middleware.AuthMiddleware
	TenantMiddleware  *middleware.TenantMiddleware
	RateLimiter       *middleware.RateLimiter
	InFlight          *middleware.InFlight
	// TenancyMode is "slug" (tenant routes under /t/:slug) or "domain".
	TenancyMode string
}

type mw = func(http.HandlerFunc) http.HandlerFunc

func NewRouter(deps *Dependencies) http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, "not_found", "Route not found", nil)
	})

	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/api/v1/tenants/resolve", wrap(deps.TenantHandler.Resolve))

	// Tenant-scoped routes
	prefix := "/t/:slug"
	if deps.TenancyMode == middleware.ModeDomain {
		prefix = ""
	}
	tenantMid := deps.TenantMiddleware.Handle

	// flow applies the tenant, rate limit and duplicate submission guards of an auth flow.
	flow := func(name string, h http.HandlerFunc) httprouter.Handle {
		return chain(h, tenantMid, deps.RateLimiter.Limit(name), deps.InFlight.Guard(name))
	}

	router.GET(prefix+"/whitelabel", chain(deps.TenantHandler.WhiteLabel, tenantMid))
	router.GET(prefix+"/theme.css", chain(deps.TenantHandler.ThemeCSS, tenantMid))
	router.GET(prefix+"/session", chain(deps.AuthHandler.Session, tenantMid))

	router.POST(prefix+"/auth/signin", flow("signin", deps.AuthHandler.SignIn))
	router.POST(prefix+"/auth/signup", flow("signup", deps.AuthHandler.Signup))
	router.POST(prefix+"/auth/google", flow("google", deps.AuthHandler.Google))
	router.POST(prefix+"/auth/refresh", chain(deps.AuthHandler.Refresh, tenantMid))
	router.POST(prefix+"/auth/password-reset", flow("password_reset", deps.AuthHandler.RequestPasswordReset))
	router.POST(prefix+"/auth/password-reset/validate", flow("password_reset_validate", deps.AuthHandler.ValidateResetToken))
	router.POST(prefix+"/auth/password", flow("change_password", deps.AuthHandler.ChangePassword))
	router.POST(prefix+"/auth/activation", flow("activation", deps.AuthHandler.SendActivation))
	router.POST(prefix+"/auth/activate", flow("activate", deps.AuthHandler.Activate))

	// Protected routes. In domain mode the Host names a tenant too, and a
	// token for another company is rejected.
	var protect []mw
	if deps.TenancyMode == middleware.ModeDomain {
		protect = append(protect, tenantMid)
	}
	protect = append(protect, deps.AuthMiddleware.Handle)
	admin := append(append([]mw{}, protect...), middleware.RequireArea("admin"))
	app := append(append([]mw{}, protect...), middleware.RequireArea("app"))

	router.POST("/api/v1/auth/logout", chain(deps.AuthHandler.Logout, protect...))
	router.GET("/api/v1/me", chain(deps.UserHandler.Me, app...))

	router.GET("/api/v1/admin/whitelabel", chain(deps.WhiteLabelHandler.Get, admin...))
	router.PUT("/api/v1/admin/whitelabel", chain(deps.WhiteLabelHandler.Update, admin...))
	router.GET("/api/v1/admin/palette/preview", chain(deps.WhiteLabelHandler.Preview, admin...))
	router.GET("/api/v1/admin/audit-logs", chain(deps.AuditHandler.List, admin...))

	return middleware.RequestLogger(router)
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

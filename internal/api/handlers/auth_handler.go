package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"portal/internal/api/middleware"
	"portal/internal/engine/authflow"
	"portal/internal/engine/session"
	"portal/internal/engine/tenant"
	"portal/internal/pkg/errors"
	"portal/internal/platform/auth"
	"portal/internal/platform/config"
	"portal/internal/platform/models"
)

type AuthHandler struct {
	flows    *authflow.Service
	sessions *session.Resolver
	cookie   config.SessionConfig
	tenancy  config.TenancyConfig
}

func NewAuthHandler(flows *authflow.Service, sessions *session.Resolver, cookie config.SessionConfig, tenancy config.TenancyConfig) *AuthHandler {
	return &AuthHandler{
		flows:    flows,
		sessions: sessions,
		cookie:   cookie,
		tenancy:  tenancy,
	}
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GoogleSignInRequest struct {
	Code string `json:"code"`
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type ChangePasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type SessionResponse struct {
	CompanyID   string `json:"company_id"`
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (h *AuthHandler) company(w http.ResponseWriter, r *http.Request) (*models.Company, bool) {
	company, ok := tenant.FromContext(r.Context())
	if !ok {
		errors.Write(w, errors.ErrMissingTenantKey)
		return nil, false
	}
	return company, true
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	company, ok := h.company(w, r)
	if !ok {
		return
	}
	var req SignInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.flows.SignInEmail(r.Context(), company, req.Email, req.Password)
	if err != nil {
		errors.Write(w, err)
		return
	}
	if !h.startSession(w, r, company, res.Tokens) {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	company, ok := h.company(w, r)
	if !ok {
		return
	}
	var req GoogleSignInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.flows.SignInGoogle(r.Context(), company, req.Code)
	if err != nil {
		errors.Write(w, err)
		return
	}
	if !h.startSession(w, r, company, res.Tokens) {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	company, ok := h.company(w, r)
	if !ok {
		return
	}
	var req SignupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.flows.SignUp(r.Context(), company, authflow.SignUpRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Refresh rotates a credential pair. The pair is returned at the top level so
// remote session resolvers can consume the response directly.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	company, ok := h.company(w, r)
	if !ok {
		return
	}
	var req RefreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := belongsTo(req.RefreshToken, company); err != nil {
		errors.Write(w, err)
		return
	}

	res, err := h.flows.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Tokens)
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	company, ok := h.company(w, r)
	if !ok {
		return
	}
	var req EmailRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.flows.RequestPasswordReset(r.Context(), company, req.Email); err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "sent"})
}

func (h *AuthHandler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	company, ok := h.company(w, r)
	if !ok {
		return
	}
	var req TokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := belongsTo(req.Token, company); err != nil {
		errors.Write(w, err)
		return
	}

	claims, err := h.flows.ValidateResetToken(r.Context(), req.Token)
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":      true,
		"email":      claims.Email,
		"expires_at": claims.ExpiresAt.Unix(),
	})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	company, ok := h.company(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := belongsTo(req.Token, company); err != nil {
		errors.Write(w, err)
		return
	}

	if err := h.flows.ChangePassword(r.Context(), req.Token, req.Password); err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "password_changed"})
}

func (h *AuthHandler) SendActivation(w http.ResponseWriter, r *http.Request) {
	company, ok := h.company(w, r)
	if !ok {
		return
	}
	var req EmailRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.flows.SendActivation(r.Context(), company, req.Email); err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "sent"})
}

func (h *AuthHandler) Activate(w http.ResponseWriter, r *http.Request) {
	company, ok := h.company(w, r)
	if !ok {
		return
	}
	var req TokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := belongsTo(req.Token, company); err != nil {
		errors.Write(w, err)
		return
	}

	if err := h.flows.Activate(r.Context(), req.Token); err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "activated"})
}

// Session resolves the cookie session of the current tenant. Any failure ends
// the session and sends the browser to the tenant's sign-in page.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	company, ok := h.company(w, r)
	if !ok {
		return
	}

	c, err := r.Cookie(session.CookieName(h.cookie.CookieName, company.ID))
	if err != nil || c.Value == "" {
		h.redirectToSignIn(w, r, company)
		return
	}

	pair, err := h.sessions.Credentials(r.Context(), c.Value)
	if err != nil {
		if errors.KindOf(err) == errors.KindInternal {
			errors.Write(w, err)
			return
		}
		log.Debug().Err(err).Str("company_id", company.ID).Msg("session not resolved")
		h.redirectToSignIn(w, r, company)
		return
	}

	claims, err := auth.Decode(pair.AccessToken)
	if err != nil {
		h.sessions.Logout(r.Context(), c.Value)
		h.redirectToSignIn(w, r, company)
		return
	}
	if claims.CompanyID != company.ID {
		// Not this tenant's session; drop the cookie but leave the owner's session alone.
		h.redirectToSignIn(w, r, company)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		CompanyID:   claims.CompanyID,
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.AccessTokenExpiresAt,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sc, ok := session.FromContext(r.Context())
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.KindUnauthorized, "No session found", nil)
		return
	}

	if err := h.flows.Logout(r.Context(), sc.CompanyID, sc.User.Email); err != nil {
		errors.Write(w, err)
		return
	}

	if c, err := r.Cookie(session.CookieName(h.cookie.CookieName, sc.CompanyID)); err == nil && c.Value != "" {
		h.sessions.Logout(r.Context(), c.Value)
	}
	h.clearCookie(w, sc.CompanyID)
	writeJSON(w, http.StatusOK, statusResponse{Status: "logged_out"})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, company *models.Company, pair *auth.TokenPair) bool {
	sid := uuid.NewString()
	if err := h.sessions.Start(r.Context(), sid, pair); err != nil {
		log.Error().Err(err).Msg("failed to start session")
		errors.Write(w, err)
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName(h.cookie.CookieName, company.ID),
		Value:    sid,
		Path:     "/",
		Expires:  time.Unix(pair.RefreshTokenExpiresAt, 0),
		HttpOnly: true,
		Secure:   h.cookie.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, companyID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName(h.cookie.CookieName, companyID),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) redirectToSignIn(w http.ResponseWriter, r *http.Request, company *models.Company) {
	h.clearCookie(w, company.ID)
	http.Redirect(w, r, h.signInURL(company), http.StatusSeeOther)
}

func (h *AuthHandler) signInURL(company *models.Company) string {
	path := h.tenancy.SignInPath
	if path == "" {
		path = "/auth/signin"
	}
	if h.tenancy.Mode == middleware.ModeDomain {
		return path
	}
	return "/t/" + company.Slug + path
}

// belongsTo rejects tokens issued for another company before any flow runs.
func belongsTo(token string, company *models.Company) error {
	if token == "" {
		return errors.New(errors.KindInvalidInput, "token is required")
	}
	claims, err := auth.Decode(token)
	if err != nil {
		return err
	}
	if claims.CompanyID != company.ID {
		return errors.ErrInvalidOrExpiredToken
	}
	return nil
}

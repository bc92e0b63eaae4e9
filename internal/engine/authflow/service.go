package authflow

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/rs/zerolog/log"
	"portal/internal/pkg/errors"
	"portal/internal/pkg/validator"
	"portal/internal/platform/audit"
	"portal/internal/platform/auth"
	"portal/internal/platform/mailer"
	"portal/internal/platform/models"
	"portal/internal/platform/oauth"
	"portal/internal/platform/repositories"
)

type Users interface {
	GetAccount(ctx context.Context, companyID, email string) (*models.User, error)
	GetByID(ctx context.Context, companyID, userID string) (*models.User, error)
	Create(ctx context.Context, user *models.User, auth *models.Authentication) error
	SetActive(ctx context.Context, userID string, active bool) error
}

type Authentications interface {
	GetByRefreshToken(ctx context.Context, userID, token string) (*models.Authentication, error)
	GetByResetToken(ctx context.Context, token string) (*models.Authentication, error)
	StoreTokens(ctx context.Context, authID string, pair *auth.TokenPair, login bool) error
	ClearTokens(ctx context.Context, authID string) error
	SetResetToken(ctx context.Context, authID, token string, expiresAt int64) error
	UpdatePassword(ctx context.Context, authID, passwordHash string) error
}

type Auditor interface {
	Record(ctx context.Context, companyID, actorRef, event string, metadata map[string]interface{})
}

type GoogleExchanger interface {
	Exchange(ctx context.Context, code string) (*oauth.Profile, error)
}

type Deps struct {
	Users           Users
	Authentications Authentications
	Tokens          *auth.TokenService
	Audit           Auditor
	Mailer          mailer.Mailer
	Google          GoogleExchanger
}

// Service runs the authentication flows against tenant-scoped user records.
type Service struct {
	users  Users
	auths  Authentications
	tokens *auth.TokenService
	audit  Auditor
	mail   mailer.Mailer
	google GoogleExchanger
}

func NewService(deps Deps) *Service {
	return &Service{
		users:  deps.Users,
		auths:  deps.Authentications,
		tokens: deps.Tokens,
		audit:  deps.Audit,
		mail:   deps.Mailer,
		google: deps.Google,
	}
}

// Result is returned by every flow that signs a user in.
type Result struct {
	User   *models.User    `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

func internal(msg string, err error) error {
	return errors.Wrap(errors.KindInternal, msg, err)
}

// SignInEmail authenticates a password user of company.
func (s *Service) SignInEmail(ctx context.Context, company *models.Company, email, password string) (*Result, error) {
	email, err := validator.NormalizeEmail(email)
	if err != nil || password == "" {
		return nil, errors.ErrInvalidCredentials
	}

	user, err := s.users.GetAccount(ctx, company.ID, email)
	if err != nil {
		return nil, internal("failed to load user", err)
	}
	if user == nil {
		return nil, errors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, errors.ErrUserNotActive
	}
	if user.IsBanned {
		return nil, errors.ErrUserBanned
	}
	if user.Authentication == nil || user.Authentication.Provider != models.ProviderEmail {
		return nil, errors.ErrInvalidAuthProvider
	}
	if !auth.CheckPassword(user.Authentication.PasswordHash, password) {
		return nil, errors.ErrInvalidCredentials
	}
	if user.CompanyStatus != models.CompanyStatusActive {
		return nil, errors.ErrCompanyNotActive
	}

	pair, err := s.issue(ctx, user, models.ProviderEmail)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, company.ID, user.Authentication.ID, audit.EventLogin, map[string]interface{}{
		"email":    user.Email,
		"provider": models.ProviderEmail,
	})
	return &Result{User: user, Tokens: pair}, nil
}

// SignInGoogle exchanges code for a Google identity and signs that user in,
// creating the account on first use.
func (s *Service) SignInGoogle(ctx context.Context, company *models.Company, code string) (*Result, error) {
	profile, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetAccount(ctx, company.ID, profile.Email)
	if err != nil {
		return nil, internal("failed to load user", err)
	}
	if user == nil {
		if !company.Active() {
			return nil, errors.ErrCompanyNotActive
		}
		user, err = s.createGoogleUser(ctx, company, profile)
		if err != nil {
			return nil, err
		}
	}

	if user.IsBanned {
		return nil, errors.ErrUserBanned
	}
	if !user.IsActive {
		return nil, errors.ErrUserNotActive
	}
	if user.Authentication == nil || user.Authentication.Provider != models.ProviderGoogle {
		return nil, errors.ErrInvalidAuthProvider
	}
	if user.CompanyStatus != models.CompanyStatusActive {
		return nil, errors.ErrCompanyNotActive
	}

	pair, err := s.issue(ctx, user, models.ProviderGoogle)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, company.ID, user.Authentication.ID, audit.EventLogin, map[string]interface{}{
		"email":    user.Email,
		"provider": models.ProviderGoogle,
	})
	return &Result{User: user, Tokens: pair}, nil
}

func (s *Service) createGoogleUser(ctx context.Context, company *models.Company, profile *oauth.Profile) (*models.User, error) {
	user := &models.User{
		CompanyID: company.ID,
		Email:     profile.Email,
		FullName:  profile.Name,
		Type:      models.UserTypeUser,
		IsActive:  true,
	}
	authRow := &models.Authentication{Provider: models.ProviderGoogle}

	if err := s.users.Create(ctx, user, authRow); err != nil {
		if stderrors.Is(err, repositories.ErrDuplicate) {
			return nil, errors.ErrUserAlreadyExists
		}
		return nil, internal("failed to create user", err)
	}
	user.CompanyStatus = company.Status
	user.Authentication = authRow

	s.audit.Record(ctx, company.ID, authRow.ID, audit.EventSignup, map[string]interface{}{
		"email":    user.Email,
		"provider": models.ProviderGoogle,
	})
	return user, nil
}

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// SignUp registers an active password user. Emails are unique per company.
func (s *Service) SignUp(ctx context.Context, company *models.Company, req SignUpRequest) (*models.User, error) {
	email, err := validator.NormalizeEmail(req.Email)
	if err != nil {
		return nil, errors.New(errors.KindInvalidInput, "invalid email")
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		return nil, errors.New(errors.KindInvalidInput, err.Error())
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, errors.New(errors.KindInvalidInput, "full name is required")
	}
	if !company.Active() {
		return nil, errors.ErrCompanyNotActive
	}

	existing, err := s.users.GetAccount(ctx, company.ID, email)
	if err != nil {
		return nil, internal("failed to check existing user", err)
	}
	if existing != nil {
		return nil, errors.ErrUserAlreadyExists
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, internal("failed to hash password", err)
	}

	user := &models.User{
		CompanyID: company.ID,
		Email:     email,
		FullName:  fullName,
		Type:      models.UserTypeUser,
		IsActive:  true,
	}
	authRow := &models.Authentication{Provider: models.ProviderEmail, PasswordHash: hash}
	if err := s.users.Create(ctx, user, authRow); err != nil {
		if stderrors.Is(err, repositories.ErrDuplicate) {
			return nil, errors.ErrUserAlreadyExists
		}
		return nil, internal("failed to create user", err)
	}

	s.audit.Record(ctx, company.ID, authRow.ID, audit.EventSignup, map[string]interface{}{
		"email":     email,
		"full_name": fullName,
	})
	return user, nil
}

// RequestPasswordReset issues a reset token for an email user, replacing any
// earlier one, and mails it.
func (s *Service) RequestPasswordReset(ctx context.Context, company *models.Company, email string) error {
	email, err := validator.NormalizeEmail(email)
	if err != nil {
		return errors.New(errors.KindInvalidInput, "invalid email")
	}

	user, err := s.users.GetAccount(ctx, company.ID, email)
	if err != nil {
		return internal("failed to load user", err)
	}
	if user == nil {
		return errors.ErrUserNotFound
	}
	if user.Authentication == nil || user.Authentication.Provider != models.ProviderEmail {
		return errors.ErrInvalidAuthProvider
	}

	token, expiresAt, err := s.tokens.IssueReset(auth.Claims{UserID: user.ID, Email: user.Email, CompanyID: company.ID})
	if err != nil {
		return internal("failed to issue reset token", err)
	}
	if err := s.auths.SetResetToken(ctx, user.Authentication.ID, token, expiresAt); err != nil {
		return errors.Wrap(errors.KindTokenStorageFailed, "failed to store reset token", err)
	}

	err = s.mail.SendPasswordReset(ctx, mailer.Message{
		To:          user.Email,
		Name:        user.FullName,
		CompanySlug: company.Slug,
		Token:       token,
	})
	if err != nil {
		return internal("failed to send password reset email", err)
	}

	s.audit.Record(ctx, company.ID, user.Authentication.ID, audit.EventPasswordResetRequested, map[string]interface{}{
		"email": user.Email,
	})
	return nil
}

// ValidateResetToken checks token against the stored reset token and its expiry.
func (s *Service) ValidateResetToken(ctx context.Context, token string) (*auth.Claims, error) {
	claims, _, err := s.checkReset(ctx, token)
	return claims, err
}

func (s *Service) checkReset(ctx context.Context, token string) (*auth.Claims, *models.Authentication, error) {
	if token == "" {
		return nil, nil, errors.New(errors.KindInvalidInput, "token is required")
	}
	decoded, err := auth.Decode(token)
	if err != nil {
		return nil, nil, err
	}
	if !decoded.Complete() {
		return nil, nil, errors.New(errors.KindMalformedToken, "token is missing identity claims")
	}
	claims, err := s.tokens.VerifyReset(token)
	if err != nil {
		return nil, nil, err
	}

	row, err := s.auths.GetByResetToken(ctx, token)
	if err != nil {
		return nil, nil, internal("failed to load reset token", err)
	}
	if row == nil || row.UserID != claims.UserID {
		return nil, nil, errors.ErrInvalidOrExpiredToken
	}
	if row.ResetTokenExpiresAt == nil || *row.ResetTokenExpiresAt < s.tokens.Now().Unix() {
		return nil, nil, errors.ErrInvalidOrExpiredToken
	}
	return claims, row, nil
}

// ChangePassword sets a new password for the owner of a valid reset token
// and invalidates the token.
func (s *Service) ChangePassword(ctx context.Context, token, newPassword string) error {
	if err := validator.ValidatePassword(newPassword); err != nil {
		return errors.New(errors.KindInvalidInput, err.Error())
	}

	claims, row, err := s.checkReset(ctx, token)
	if err != nil {
		return err
	}

	user, err := s.users.GetAccount(ctx, claims.CompanyID, claims.Email)
	if err != nil {
		return internal("failed to load user", err)
	}
	if user == nil || user.Authentication == nil || user.Authentication.ID != row.ID {
		return errors.ErrUserNotFound
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return internal("failed to hash password", err)
	}
	if err := s.auths.UpdatePassword(ctx, row.ID, hash); err != nil {
		return internal("failed to update password", err)
	}

	s.audit.Record(ctx, claims.CompanyID, row.ID, audit.EventPasswordChanged, map[string]interface{}{
		"email": user.Email,
	})
	return nil
}

// Logout revokes the user's stored credentials.
func (s *Service) Logout(ctx context.Context, companyID, email string) error {
	user, err := s.users.GetAccount(ctx, companyID, email)
	if err != nil {
		return internal("failed to load user", err)
	}
	if user == nil || user.Authentication == nil {
		return errors.ErrUserNotFound
	}

	if err := s.auths.ClearTokens(ctx, user.Authentication.ID); err != nil {
		return internal("failed to clear tokens", err)
	}

	s.audit.Record(ctx, companyID, user.Authentication.ID, audit.EventLogout, map[string]interface{}{
		"company_id": companyID,
		"email":      email,
	})
	return nil
}

// Refresh issues a new pair for a refresh token that is still the one stored
// for its user. The previous pair stops being valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	if !claims.Complete() {
		return nil, errors.ErrInvalidOrExpiredToken
	}

	row, err := s.auths.GetByRefreshToken(ctx, claims.UserID, refreshToken)
	if err != nil {
		return nil, internal("failed to load credentials", err)
	}
	if row == nil {
		return nil, errors.ErrInvalidOrExpiredToken
	}

	user, err := s.users.GetByID(ctx, claims.CompanyID, claims.UserID)
	if err != nil {
		return nil, internal("failed to load user", err)
	}
	if user == nil || user.Email != claims.Email {
		return nil, errors.ErrInvalidOrExpiredToken
	}
	if user.IsBanned {
		return nil, errors.ErrUserBanned
	}
	if !user.IsActive {
		return nil, errors.ErrUserNotActive
	}
	if user.CompanyStatus != models.CompanyStatusActive {
		return nil, errors.ErrCompanyNotActive
	}

	pair, err := s.tokens.IssuePair(auth.Claims{
		UserID:    user.ID,
		Email:     user.Email,
		CompanyID: user.CompanyID,
		Provider:  row.Provider,
	})
	if err != nil {
		return nil, internal("failed to issue tokens", err)
	}
	if err := s.auths.StoreTokens(ctx, row.ID, pair, false); err != nil {
		return nil, errors.Wrap(errors.KindTokenStorageFailed, "failed to store tokens", err)
	}
	return &Result{User: user, Tokens: pair}, nil
}

// SendActivation mails an activation link to an inactive user.
func (s *Service) SendActivation(ctx context.Context, company *models.Company, email string) error {
	email, err := validator.NormalizeEmail(email)
	if err != nil {
		return errors.New(errors.KindInvalidInput, "invalid email")
	}

	user, err := s.users.GetAccount(ctx, company.ID, email)
	if err != nil {
		return internal("failed to load user", err)
	}
	if user == nil {
		return errors.ErrUserNotFound
	}
	if user.IsActive {
		return errors.ErrAlreadyActive
	}

	token, _, err := s.tokens.IssueActivation(auth.Claims{UserID: user.ID, Email: user.Email, CompanyID: company.ID})
	if err != nil {
		return internal("failed to issue activation token", err)
	}

	err = s.mail.SendActivation(ctx, mailer.Message{
		To:          user.Email,
		Name:        user.FullName,
		CompanySlug: company.Slug,
		Token:       token,
	})
	if err != nil {
		return internal("failed to send activation email", err)
	}
	return nil
}

// Activate marks the user named by an activation token as active.
func (s *Service) Activate(ctx context.Context, token string) error {
	if token == "" {
		return errors.New(errors.KindInvalidInput, "token is required")
	}
	if _, err := auth.Decode(token); err != nil {
		return err
	}
	claims, err := s.tokens.VerifyActivation(token)
	if err != nil {
		return err
	}
	if !claims.Complete() {
		return errors.ErrInvalidOrExpiredToken
	}

	user, err := s.users.GetAccount(ctx, claims.CompanyID, claims.Email)
	if err != nil {
		return internal("failed to load user", err)
	}
	if user == nil || user.ID != claims.UserID {
		return errors.ErrUserNotFound
	}
	if user.IsActive {
		return errors.ErrAlreadyActive
	}

	if err := s.users.SetActive(ctx, user.ID, true); err != nil {
		return internal("failed to activate user", err)
	}

	actor := ""
	if user.Authentication != nil {
		actor = user.Authentication.ID
	}
	s.audit.Record(ctx, claims.CompanyID, actor, audit.EventAccountActivation, map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})
	return nil
}

func (s *Service) issue(ctx context.Context, user *models.User, provider string) (*auth.TokenPair, error) {
	pair, err := s.tokens.IssuePair(auth.Claims{
		UserID:    user.ID,
		Email:     user.Email,
		CompanyID: user.CompanyID,
		Provider:  provider,
	})
	if err != nil {
		return nil, internal("failed to issue tokens", err)
	}

	if err := s.auths.StoreTokens(ctx, user.Authentication.ID, pair, true); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to store tokens")
		return nil, errors.Wrap(errors.KindTokenStorageFailed, "failed to store tokens", err)
	}
	return pair, nil
}

// SessionRefresher adapts Service to the session package's Refresher.
type SessionRefresher struct {
	Service *Service
}

func (r SessionRefresher) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	res, err := r.Service.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return res.Tokens, nil
}

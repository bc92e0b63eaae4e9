package authflow

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"portal/internal/engine/session"
	"portal/internal/pkg/errors"
	"portal/internal/platform/audit"
	"portal/internal/platform/auth"
	"portal/internal/platform/config"
	"portal/internal/platform/database"
	"portal/internal/platform/mailer"
	"portal/internal/platform/models"
	"portal/internal/platform/oauth"
	"portal/internal/platform/repositories"
)

type recordingAuditor struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAuditor) Record(_ context.Context, _, _, event string, metadata map[string]interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *recordingAuditor) has(event string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.events {
		if e == event {
			return true
		}
	}
	return false
}

type recordingMailer struct {
	resets      []mailer.Message
	activations []mailer.Message
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, msg mailer.Message) error {
	m.resets = append(m.resets, msg)
	return nil
}

func (m *recordingMailer) SendActivation(_ context.Context, msg mailer.Message) error {
	m.activations = append(m.activations, msg)
	return nil
}

type fakeGoogle struct {
	profile *oauth.Profile
	err     error
}

func (g *fakeGoogle) Exchange(_ context.Context, code string) (*oauth.Profile, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.profile, nil
}

type fixture struct {
	svc     *Service
	db      *sql.DB
	users   *repositories.UserRepository
	auths   *repositories.AuthenticationRepository
	tokens  *auth.TokenService
	audit   *recordingAuditor
	mail    *recordingMailer
	google  *fakeGoogle
	now     time.Time
	acme    *models.Company
	globex  *models.Company
	initech *models.Company
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{URL: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, "../../../migrations"))
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:     db,
		users:  repositories.NewUserRepository(db),
		auths:  repositories.NewAuthenticationRepository(db),
		audit:  &recordingAuditor{},
		mail:   &recordingMailer{},
		google: &fakeGoogle{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.tokens = auth.NewTokenService(config.JWTConfig{
		AccessSecret:       "access-secret",
		RefreshSecret:      "refresh-secret",
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		ResetTokenTTL:      7 * time.Hour,
		ActivationTokenTTL: time.Hour,
	}).WithClock(func() time.Time { return f.now })

	companies := repositories.NewCompanyRepository(db)
	f.acme = &models.Company{ID: "c1", Slug: "acme", Name: "Acme", Status: models.CompanyStatusActive}
	f.globex = &models.Company{ID: "c2", Slug: "globex", Name: "Globex", Status: models.CompanyStatusSuspended}
	f.initech = &models.Company{ID: "c3", Slug: "initech", Name: "Initech", Status: models.CompanyStatusActive}
	for _, c := range []*models.Company{f.acme, f.globex, f.initech} {
		require.NoError(t, companies.Create(context.Background(), c))
	}

	f.svc = NewService(Deps{
		Users:           f.users,
		Authentications: f.auths,
		Tokens:          f.tokens,
		Audit:           f.audit,
		Mailer:          f.mail,
		Google:          f.google,
	})
	return f
}

type seed struct {
	company  string
	email    string
	password string
	provider string
	active   bool
	banned   bool
}

func (f *fixture) seedUser(t *testing.T, s seed) *models.User {
	t.Helper()
	hash := ""
	if s.password != "" {
		var err error
		hash, err = auth.HashPassword(s.password)
		require.NoError(t, err)
	}
	if s.provider == "" {
		s.provider = models.ProviderEmail
	}
	user := &models.User{
		CompanyID: s.company,
		Email:     s.email,
		FullName:  "Test User",
		Type:      models.UserTypeUser,
		IsActive:  s.active,
		IsBanned:  s.banned,
	}
	require.NoError(t, f.users.Create(context.Background(), user, &models.Authentication{Provider: s.provider, PasswordHash: hash}))
	return user
}

func TestSignInEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seedUser(t, seed{company: "c1", email: "ana@acme.com", password: "correct-horse", active: true})

	res, err := f.svc.SignInEmail(ctx, f.acme, " Ana@Acme.com ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "ana@acme.com", res.User.Email)

	claims, err := f.tokens.VerifyAccess(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "c1", claims.CompanyID)
	assert.Equal(t, models.ProviderEmail, claims.Provider)

	stored, err := f.auths.GetByUserID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Tokens.RefreshToken, stored.RefreshToken)
	assert.NotNil(t, stored.LastLogin)
	assert.True(t, f.audit.has(audit.EventLogin))
}

func TestSignInEmail_BannedUserFailsRegardlessOfPassword(t *testing.T) {
	f := setup(t)
	f.seedUser(t, seed{company: "c1", email: "ban@acme.com", password: "correct-horse", active: true, banned: true})

	for _, password := range []string{"correct-horse", "wrong-password"} {
		_, err := f.svc.SignInEmail(context.Background(), f.acme, "ban@acme.com", password)
		assert.ErrorIs(t, err, errors.ErrUserBanned, "password %q", password)
	}
}

func TestSignInEmail_Rejections(t *testing.T) {
	f := setup(t)
	f.seedUser(t, seed{company: "c1", email: "ana@acme.com", password: "correct-horse", active: true})
	f.seedUser(t, seed{company: "c1", email: "idle@acme.com", password: "correct-horse"})
	f.seedUser(t, seed{company: "c1", email: "g@acme.com", provider: models.ProviderGoogle, active: true})
	f.seedUser(t, seed{company: "c2", email: "bob@globex.com", password: "correct-horse", active: true})

	tests := []struct {
		name     string
		company  *models.Company
		email    string
		password string
		want     error
	}{
		{"unknown email", f.acme, "nobody@acme.com", "correct-horse", errors.ErrInvalidCredentials},
		{"other tenant", f.initech, "ana@acme.com", "correct-horse", errors.ErrInvalidCredentials},
		{"wrong password", f.acme, "ana@acme.com", "nope-nope", errors.ErrInvalidCredentials},
		{"inactive user", f.acme, "idle@acme.com", "correct-horse", errors.ErrUserNotActive},
		{"google account", f.acme, "g@acme.com", "correct-horse", errors.ErrInvalidAuthProvider},
		{"suspended company", f.globex, "bob@globex.com", "correct-horse", errors.ErrCompanyNotActive},
		{"malformed email", f.acme, "not-an-email", "correct-horse", errors.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.SignInEmail(context.Background(), tt.company, tt.email, tt.password)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignUp(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	user, err := f.svc.SignUp(ctx, f.acme, SignUpRequest{Email: "New@Acme.com", Password: "long-enough", FullName: " New User "})
	require.NoError(t, err)
	assert.Equal(t, "new@acme.com", user.Email)
	assert.Equal(t, "New User", user.FullName)
	assert.True(t, user.IsActive)
	assert.True(t, f.audit.has(audit.EventSignup))

	_, err = f.svc.SignInEmail(ctx, f.acme, "new@acme.com", "long-enough")
	assert.NoError(t, err)

	_, err = f.svc.SignUp(ctx, f.acme, SignUpRequest{Email: "new@acme.com", Password: "long-enough", FullName: "Again"})
	assert.ErrorIs(t, err, errors.ErrUserAlreadyExists)

	_, err = f.svc.SignUp(ctx, f.initech, SignUpRequest{Email: "new@acme.com", Password: "long-enough", FullName: "Elsewhere"})
	assert.NoError(t, err, "the same email may register with another company")

	_, err = f.svc.SignUp(ctx, f.globex, SignUpRequest{Email: "x@globex.com", Password: "long-enough", FullName: "X"})
	assert.ErrorIs(t, err, errors.ErrCompanyNotActive)

	_, err = f.svc.SignUp(ctx, f.acme, SignUpRequest{Email: "short@acme.com", Password: "short", FullName: "S"})
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
}

func TestSignInGoogle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.google.profile = &oauth.Profile{Email: "gina@acme.com", Name: "Gina"}

	first, err := f.svc.SignInGoogle(ctx, f.acme, "code")
	require.NoError(t, err)
	assert.Equal(t, "Gina", first.User.FullName)
	assert.Equal(t, models.UserTypeUser, first.User.Type)
	assert.True(t, f.audit.has(audit.EventSignup))

	claims, err := f.tokens.VerifyAccess(first.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGoogle, claims.Provider)

	second, err := f.svc.SignInGoogle(ctx, f.acme, "code")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	f.seedUser(t, seed{company: "c1", email: "ana@acme.com", password: "correct-horse", active: true})
	f.google.profile = &oauth.Profile{Email: "ana@acme.com", Name: "Ana"}
	_, err = f.svc.SignInGoogle(ctx, f.acme, "code")
	assert.ErrorIs(t, err, errors.ErrInvalidAuthProvider)

	f.seedUser(t, seed{company: "c1", email: "gban@acme.com", provider: models.ProviderGoogle, active: true, banned: true})
	f.google.profile = &oauth.Profile{Email: "gban@acme.com"}
	_, err = f.svc.SignInGoogle(ctx, f.acme, "code")
	assert.ErrorIs(t, err, errors.ErrUserBanned)

	f.google.profile = &oauth.Profile{Email: "new@globex.com"}
	_, err = f.svc.SignInGoogle(ctx, f.globex, "code")
	assert.ErrorIs(t, err, errors.ErrCompanyNotActive)

	f.google.err = errors.New(errors.KindGoogleAuthFailed, "bad code")
	_, err = f.svc.SignInGoogle(ctx, f.acme, "code")
	assert.Equal(t, errors.KindGoogleAuthFailed, errors.KindOf(err))
}

func TestPasswordResetFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seedUser(t, seed{company: "c1", email: "ana@acme.com", password: "old-password", active: true})

	require.NoError(t, f.svc.RequestPasswordReset(ctx, f.acme, "ana@acme.com"))
	require.Len(t, f.mail.resets, 1)
	first := f.mail.resets[0].Token
	assert.Equal(t, "acme", f.mail.resets[0].CompanySlug)

	claims, err := f.svc.ValidateResetToken(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "ana@acme.com", claims.Email)

	f.advance(time.Minute)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, f.acme, "ana@acme.com"))
	second := f.mail.resets[1].Token
	require.NotEqual(t, first, second)

	_, err = f.svc.ValidateResetToken(ctx, first)
	assert.ErrorIs(t, err, errors.ErrInvalidOrExpiredToken, "a new request replaces the previous token")

	require.NoError(t, f.svc.ChangePassword(ctx, second, "new-password"))
	assert.True(t, f.audit.has(audit.EventPasswordChanged))

	_, err = f.svc.SignInEmail(ctx, f.acme, "ana@acme.com", "old-password")
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
	_, err = f.svc.SignInEmail(ctx, f.acme, "ana@acme.com", "new-password")
	assert.NoError(t, err)

	err = f.svc.ChangePassword(ctx, second, "another-password")
	assert.ErrorIs(t, err, errors.ErrInvalidOrExpiredToken, "reset token is single use")
}

func TestPasswordReset_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.seedUser(t, seed{company: "c1", email: "ana@acme.com", password: "old-password", active: true})
	f.seedUser(t, seed{company: "c1", email: "g@acme.com", provider: models.ProviderGoogle, active: true})

	assert.ErrorIs(t, f.svc.RequestPasswordReset(ctx, f.acme, "nobody@acme.com"), errors.ErrUserNotFound)
	assert.ErrorIs(t, f.svc.RequestPasswordReset(ctx, f.acme, "g@acme.com"), errors.ErrInvalidAuthProvider)

	_, err := f.svc.ValidateResetToken(ctx, "garbage")
	assert.ErrorIs(t, err, errors.ErrMalformedToken)

	forged, err := auth.Issue(auth.Claims{UserID: user.ID, Email: user.Email, CompanyID: "c1", Purpose: auth.PurposePasswordReset}, "guessed", time.Hour, f.now)
	require.NoError(t, err)
	_, err = f.svc.ValidateResetToken(ctx, forged)
	assert.ErrorIs(t, err, errors.ErrInvalidOrExpiredToken)

	signIn, err := f.svc.SignInEmail(ctx, f.acme, "ana@acme.com", "old-password")
	require.NoError(t, err)
	_, err = f.svc.ValidateResetToken(ctx, signIn.Tokens.AccessToken)
	assert.ErrorIs(t, err, errors.ErrInvalidOrExpiredToken, "access tokens cannot reset passwords")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, f.acme, "ana@acme.com"))
	token := f.mail.resets[len(f.mail.resets)-1].Token
	f.advance(8 * time.Hour)
	_, err = f.svc.ValidateResetToken(ctx, token)
	assert.ErrorIs(t, err, errors.ErrInvalidOrExpiredToken)
}

func TestRefreshAndLogout(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seedUser(t, seed{company: "c1", email: "ana@acme.com", password: "correct-horse", active: true})

	signIn, err := f.svc.SignInEmail(ctx, f.acme, "ana@acme.com", "correct-horse")
	require.NoError(t, err)

	f.advance(2 * time.Hour)
	refreshed, err := f.svc.Refresh(ctx, signIn.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, signIn.Tokens.RefreshToken, refreshed.Tokens.RefreshToken)

	claims, err := f.tokens.VerifyAccess(refreshed.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "c1", claims.CompanyID)
	assert.Equal(t, models.ProviderEmail, claims.Provider)

	_, err = f.svc.Refresh(ctx, signIn.Tokens.RefreshToken)
	assert.ErrorIs(t, err, errors.ErrInvalidOrExpiredToken, "the replaced refresh token is revoked")

	_, err = f.svc.Refresh(ctx, refreshed.Tokens.AccessToken)
	assert.ErrorIs(t, err, errors.ErrInvalidOrExpiredToken, "access tokens are not refresh tokens")

	require.NoError(t, f.svc.Logout(ctx, "c1", "ana@acme.com"))
	assert.True(t, f.audit.has(audit.EventLogout))

	_, err = f.svc.Refresh(ctx, refreshed.Tokens.RefreshToken)
	assert.ErrorIs(t, err, errors.ErrInvalidOrExpiredToken)

	stored, err := f.auths.GetByUserID(ctx, refreshed.User.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.AccessToken)
	assert.Empty(t, stored.RefreshToken)
	assert.Nil(t, stored.AccessTokenExpiresAt)
	assert.Nil(t, stored.RefreshTokenExpiresAt)

	assert.ErrorIs(t, f.svc.Logout(ctx, "c1", "nobody@acme.com"), errors.ErrUserNotFound)
}

func TestRefresh_SameSecondRotation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seedUser(t, seed{company: "c1", email: "ana@acme.com", password: "correct-horse", active: true})

	signIn, err := f.svc.SignInEmail(ctx, f.acme, "ana@acme.com", "correct-horse")
	require.NoError(t, err)

	f.advance(500 * time.Millisecond)
	refreshed, err := f.svc.Refresh(ctx, signIn.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, signIn.Tokens.RefreshToken, refreshed.Tokens.RefreshToken)

	_, err = f.svc.Refresh(ctx, signIn.Tokens.RefreshToken)
	assert.ErrorIs(t, err, errors.ErrInvalidOrExpiredToken)
}

func TestRefresh_BannedAfterSignIn(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.seedUser(t, seed{company: "c1", email: "ana@acme.com", password: "correct-horse", active: true})

	signIn, err := f.svc.SignInEmail(ctx, f.acme, "ana@acme.com", "correct-horse")
	require.NoError(t, err)

	_, err = f.db.Exec(`UPDATE users SET is_banned = 1 WHERE id = ?`, user.ID)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, signIn.Tokens.RefreshToken)
	assert.ErrorIs(t, err, errors.ErrUserBanned)
}

func TestActivation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seedUser(t, seed{company: "c1", email: "idle@acme.com", password: "correct-horse"})

	require.NoError(t, f.svc.SendActivation(ctx, f.acme, "idle@acme.com"))
	require.Len(t, f.mail.activations, 1)
	token := f.mail.activations[0].Token

	require.NoError(t, f.svc.Activate(ctx, token))
	assert.True(t, f.audit.has(audit.EventAccountActivation))

	_, err := f.svc.SignInEmail(ctx, f.acme, "idle@acme.com", "correct-horse")
	assert.NoError(t, err)

	assert.ErrorIs(t, f.svc.SendActivation(ctx, f.acme, "idle@acme.com"), errors.ErrAlreadyActive)
	assert.ErrorIs(t, f.svc.Activate(ctx, token), errors.ErrAlreadyActive)
	assert.ErrorIs(t, f.svc.SendActivation(ctx, f.acme, "nobody@acme.com"), errors.ErrUserNotFound)
	assert.ErrorIs(t, f.svc.Activate(ctx, "garbage"), errors.ErrMalformedToken)
}

func TestSessionRefresher_WithResolver(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seedUser(t, seed{company: "c1", email: "ana@acme.com", password: "correct-horse", active: true})

	signIn, err := f.svc.SignInEmail(ctx, f.acme, "ana@acme.com", "correct-horse")
	require.NoError(t, err)

	store := session.NewMemoryStore()
	resolver := session.NewResolver(store, SessionRefresher{Service: f.svc}, func() time.Time { return f.now })
	require.NoError(t, resolver.Start(ctx, "sid", signIn.Tokens))

	f.advance(90 * time.Minute)
	companyID, err := resolver.ResolveCompanyID(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "c1", companyID)

	stored, err := store.Load(ctx, "sid")
	require.NoError(t, err)
	assert.NotEqual(t, signIn.Tokens.AccessToken, stored.AccessToken)

	require.NoError(t, f.svc.Logout(ctx, "c1", "ana@acme.com"))
	f.advance(90 * time.Minute)
	companyID, err = resolver.ResolveCompanyID(ctx, "sid")
	assert.Empty(t, companyID)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidOrExpiredToken))

	stored, err = store.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

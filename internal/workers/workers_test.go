package workers

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"portal/internal/platform/auth"
	"portal/internal/platform/config"
	"portal/internal/platform/database"
	"portal/internal/platform/models"
	"portal/internal/platform/repositories"
)

func TestSweeper_Sweep(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{URL: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, "../../migrations"))
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, repositories.NewCompanyRepository(db).Create(ctx, &models.Company{ID: "c1", Slug: "acme", Name: "Acme", Status: models.CompanyStatusActive}))

	users := repositories.NewUserRepository(db)
	auths := repositories.NewAuthenticationRepository(db)
	seed := func(email string) *models.Authentication {
		row := &models.Authentication{Provider: models.ProviderEmail}
		require.NoError(t, users.Create(ctx, &models.User{CompanyID: "c1", Email: email, Type: models.UserTypeUser, IsActive: true}, row))
		return row
	}

	now := time.Unix(1_800_000_000, 0)
	stale := seed("stale@acme.com")
	fresh := seed("fresh@acme.com")

	require.NoError(t, auths.StoreTokens(ctx, stale.ID, &auth.TokenPair{
		AccessToken: "a1", RefreshToken: "r1",
		AccessTokenExpiresAt: now.Add(-2 * time.Hour).Unix(), RefreshTokenExpiresAt: now.Add(-time.Hour).Unix(),
	}, true))
	require.NoError(t, auths.SetResetToken(ctx, stale.ID, "reset-1", now.Add(-time.Minute).Unix()))
	require.NoError(t, auths.StoreTokens(ctx, fresh.ID, &auth.TokenPair{
		AccessToken: "a2", RefreshToken: "r2",
		AccessTokenExpiresAt: now.Add(time.Hour).Unix(), RefreshTokenExpiresAt: now.Add(24 * time.Hour).Unix(),
	}, true))

	sweeper := NewSweeper(auths)
	sweeper.now = func() time.Time { return now }
	require.NoError(t, sweeper.Sweep(ctx))

	got, err := auths.GetByUserID(ctx, stale.UserID)
	require.NoError(t, err)
	assert.Empty(t, got.RefreshToken)
	assert.Empty(t, got.AccessToken)
	assert.Empty(t, got.ResetToken)

	got, err = auths.GetByUserID(ctx, fresh.UserID)
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RefreshToken)
}

type countingCleaner struct {
	calls atomic.Int32
	err   error
}

func (c *countingCleaner) ClearExpired(context.Context, time.Time) (int64, int64, error) {
	c.calls.Add(1)
	return 0, 0, c.err
}

func TestSweeper_StoreError(t *testing.T) {
	cleaner := &countingCleaner{err: stderrors.New("database is locked")}
	err := NewSweeper(cleaner).Sweep(context.Background())
	assert.Error(t, err)
}

func TestScheduler_RunsSweep(t *testing.T) {
	cleaner := &countingCleaner{}
	s, err := NewScheduler(NewSweeper(cleaner), 20*time.Millisecond)
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return cleaner.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"portal/internal/pkg/errors"
	"portal/internal/platform/auth"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func issuePair(t *testing.T, companyID string, issuedAt time.Time) *auth.TokenPair {
	t.Helper()
	claims := auth.Claims{UserID: "u1", Email: "ana@acme.com", CompanyID: companyID, Provider: "email"}
	access, err := auth.Issue(claims, "access", time.Hour, issuedAt)
	require.NoError(t, err)
	refresh, err := auth.Issue(claims, "refresh", 7*24*time.Hour, issuedAt)
	require.NoError(t, err)
	return &auth.TokenPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  issuedAt.Add(time.Hour).Unix(),
		RefreshTokenExpiresAt: issuedAt.Add(7 * 24 * time.Hour).Unix(),
	}
}

type fakeRefresher struct {
	calls   int32
	pair    *auth.TokenPair
	err     error
	release chan struct{}
}

func (f *fakeRefresher) Refresh(_ context.Context, refreshToken string) (*auth.TokenPair, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.pair, nil
}

func TestResolveCompanyID_ValidAccess(t *testing.T) {
	store := NewMemoryStore()
	refresher := &fakeRefresher{}
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid", issuePair(t, "c1", fixedNow.Add(-10*time.Minute))))

	r := NewResolver(store, refresher, clock)
	companyID, err := r.ResolveCompanyID(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "c1", companyID)
	assert.Zero(t, atomic.LoadInt32(&refresher.calls))
}

func TestResolveCompanyID_ExpiredRefreshesOnce(t *testing.T) {
	store := NewMemoryStore()
	fresh := issuePair(t, "c2", fixedNow)
	refresher := &fakeRefresher{pair: fresh}
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid", issuePair(t, "c1", fixedNow.Add(-2*time.Hour))))

	r := NewResolver(store, refresher, clock)
	companyID, err := r.ResolveCompanyID(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "c2", companyID)
	assert.EqualValues(t, 1, atomic.LoadInt32(&refresher.calls))

	stored, err := store.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, fresh.AccessToken, stored.AccessToken)
	assert.Equal(t, fresh.RefreshToken, stored.RefreshToken)

	companyID, err = r.ResolveCompanyID(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "c2", companyID)
	assert.EqualValues(t, 1, atomic.LoadInt32(&refresher.calls))
}

func TestResolveCompanyID_AccessExpiringExactlyNowIsExpired(t *testing.T) {
	store := NewMemoryStore()
	refresher := &fakeRefresher{pair: issuePair(t, "c1", fixedNow)}
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid", issuePair(t, "c1", fixedNow.Add(-time.Hour))))

	_, err := NewResolver(store, refresher, clock).ResolveCompanyID(ctx, "sid")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&refresher.calls))
}

func TestResolveCompanyID_RefreshNotFoundLogsOut(t *testing.T) {
	store := NewMemoryStore()
	refresher := &fakeRefresher{err: errors.ErrInvalidOrExpiredToken}
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid", issuePair(t, "c1", fixedNow.Add(-2*time.Hour))))

	companyID, err := NewResolver(store, refresher, clock).ResolveCompanyID(ctx, "sid")
	assert.Empty(t, companyID)
	assert.ErrorIs(t, err, errors.ErrInvalidOrExpiredToken)

	stored, err := store.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestResolveCompanyID_MissingCredentials(t *testing.T) {
	r := NewResolver(NewMemoryStore(), &fakeRefresher{}, clock)

	companyID, err := r.ResolveCompanyID(context.Background(), "unknown")
	assert.Empty(t, companyID)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestResolveCompanyID_MalformedOrIncomplete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := NewResolver(store, &fakeRefresher{}, clock)

	require.NoError(t, store.Save(ctx, "bad", &auth.TokenPair{AccessToken: "not-a-jwt", RefreshToken: "x"}))
	_, err := r.ResolveCompanyID(ctx, "bad")
	assert.ErrorIs(t, err, errors.ErrMalformedToken)
	stored, _ := store.Load(ctx, "bad")
	assert.Nil(t, stored)

	partial, err := auth.Issue(auth.Claims{UserID: "u1", Email: "ana@acme.com"}, "access", time.Hour, fixedNow)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "partial", &auth.TokenPair{AccessToken: partial}))
	_, err = r.ResolveCompanyID(ctx, "partial")
	assert.ErrorIs(t, err, errors.ErrMalformedToken)
	stored, _ = store.Load(ctx, "partial")
	assert.Nil(t, stored)
}

func TestResolveCompanyID_RefreshReturnsIncompleteClaims(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	bad, err := auth.Issue(auth.Claims{UserID: "u1"}, "access", time.Hour, fixedNow)
	require.NoError(t, err)
	refresher := &fakeRefresher{pair: &auth.TokenPair{AccessToken: bad, RefreshToken: "r"}}

	require.NoError(t, store.Save(ctx, "sid", issuePair(t, "c1", fixedNow.Add(-2*time.Hour))))
	companyID, err := NewResolver(store, refresher, clock).ResolveCompanyID(ctx, "sid")
	assert.Empty(t, companyID)
	assert.Error(t, err)

	stored, _ := store.Load(ctx, "sid")
	assert.Nil(t, stored)
}

func TestResolveCompanyID_ConcurrentCallersShareRefresh(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	refresher := &fakeRefresher{pair: issuePair(t, "c9", fixedNow), release: make(chan struct{})}
	require.NoError(t, store.Save(ctx, "sid", issuePair(t, "c1", fixedNow.Add(-2*time.Hour))))

	r := NewResolver(store, refresher, clock)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.ResolveCompanyID(ctx, "sid")
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(refresher.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "c9", results[i])
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&refresher.calls))
}

func TestResolver_Credentials(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fresh := issuePair(t, "c1", fixedNow)
	r := NewResolver(store, &fakeRefresher{pair: fresh}, clock)

	require.NoError(t, r.Start(ctx, "sid", issuePair(t, "c1", fixedNow.Add(-3*time.Hour))))
	pair, err := r.Credentials(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, fresh.AccessToken, pair.AccessToken)
}

func TestSessionContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithContext(context.Background(), &Context{CompanyID: "c1"})
	s, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "c1", s.CompanyID)
}

type contextRefresher struct {
	pair *auth.TokenPair
}

func (c *contextRefresher) Refresh(ctx context.Context, _ string) (*auth.TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.pair, nil
}

func TestResolveCompanyID_RefreshSurvivesCallerCancel(t *testing.T) {
	store := NewMemoryStore()
	fresh := issuePair(t, "c1", fixedNow)
	require.NoError(t, store.Save(context.Background(), "sid", issuePair(t, "c1", fixedNow.Add(-2*time.Hour))))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewResolver(store, &contextRefresher{pair: fresh}, clock)
	companyID, err := r.ResolveCompanyID(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "c1", companyID)

	stored, err := store.Load(context.Background(), "sid")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, fresh.AccessToken, stored.AccessToken)
}

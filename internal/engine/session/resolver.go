package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"portal/internal/pkg/errors"
	"portal/internal/platform/auth"
)

var ErrNoSession = errors.New(errors.KindUnauthorized, "no active session")

// Resolver turns a browser session into the company id its credentials are
// scoped to, refreshing the pair when the access credential has expired.
// Any failure logs the session out.
type Resolver struct {
	store     Store
	refresher Refresher
	now       func() time.Time
	group     singleflight.Group
}

func NewResolver(store Store, refresher Refresher, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{store: store, refresher: refresher, now: now}
}

// ResolveCompanyID returns the company id of the session's access
// credential. On error the returned id is always empty and the stored
// credentials have been cleared, unless the store itself failed.
func (r *Resolver) ResolveCompanyID(ctx context.Context, sessionID string) (string, error) {
	pair, err := r.store.Load(ctx, sessionID)
	if err != nil {
		return "", errors.Wrap(errors.KindInternal, "failed to load session", err)
	}

	claims, err := r.current(pair)
	if err != nil {
		r.Logout(ctx, sessionID)
		return "", err
	}
	if !claims.Expired(r.now()) {
		return claims.CompanyID, nil
	}

	// Callers for the same session share one refresh; none of them sees a
	// company id before the new pair is stored. The shared refresh outlives
	// the cancellation of whichever caller started it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(sessionID, func() (interface{}, error) {
		return r.refresh(shared, sessionID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Credentials returns the stored pair for sessionID after making sure the
// access credential is current.
func (r *Resolver) Credentials(ctx context.Context, sessionID string) (*auth.TokenPair, error) {
	if _, err := r.ResolveCompanyID(ctx, sessionID); err != nil {
		return nil, err
	}
	pair, err := r.store.Load(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to load session", err)
	}
	if pair == nil {
		return nil, ErrNoSession
	}
	return pair, nil
}

// Start stores a freshly issued pair for sessionID.
func (r *Resolver) Start(ctx context.Context, sessionID string, pair *auth.TokenPair) error {
	if err := r.store.Save(ctx, sessionID, pair); err != nil {
		return errors.Wrap(errors.KindTokenStorageFailed, "failed to store session", err)
	}
	return nil
}

// Logout clears the session's credentials.
func (r *Resolver) Logout(ctx context.Context, sessionID string) {
	if err := r.store.Clear(ctx, sessionID); err != nil {
		log.Warn().Err(err).Msg("failed to clear session credentials")
	}
}

func (r *Resolver) refresh(ctx context.Context, sessionID string) (string, error) {
	// A refresh that finished just before this one already replaced the pair.
	pair, err := r.store.Load(ctx, sessionID)
	if err != nil {
		return "", errors.Wrap(errors.KindInternal, "failed to load session", err)
	}
	claims, err := r.current(pair)
	if err != nil {
		r.Logout(ctx, sessionID)
		return "", err
	}
	if !claims.Expired(r.now()) {
		return claims.CompanyID, nil
	}

	if pair.RefreshToken == "" {
		r.Logout(ctx, sessionID)
		return "", ErrNoSession
	}

	fresh, err := r.refresher.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		log.Info().Err(err).Msg("session refresh rejected")
		r.Logout(ctx, sessionID)
		return "", err
	}

	claims, err = r.current(fresh)
	if err != nil {
		r.Logout(ctx, sessionID)
		return "", err
	}

	if err := r.store.Save(ctx, sessionID, fresh); err != nil {
		r.Logout(ctx, sessionID)
		return "", errors.Wrap(errors.KindTokenStorageFailed, "failed to store refreshed session", err)
	}
	return claims.CompanyID, nil
}

// current decodes the access credential of pair and requires complete claims.
func (r *Resolver) current(pair *auth.TokenPair) (*auth.Claims, error) {
	if pair == nil || pair.AccessToken == "" {
		return nil, ErrNoSession
	}
	claims, err := auth.Decode(pair.AccessToken)
	if err != nil {
		return nil, err
	}
	if !claims.Complete() {
		return nil, errors.New(errors.KindMalformedToken, "credential is missing identity claims")
	}
	return claims, nil
}

package repositories

import (
	"context"
	"database/sql"
	"time"

	"portal/internal/platform/auth"
	"portal/internal/platform/models"
)

type AuthenticationRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewAuthenticationRepository(db *sql.DB) *AuthenticationRepository {
	return &AuthenticationRepository{db: db, now: time.Now}
}

const authenticationSelect = `
	SELECT id, user_id, provider, password_hash, access_token, access_token_expires_at,
		refresh_token, refresh_token_expires_at, reset_token, expires_reset_token_at, last_login, created_at, updated_at
	FROM authentications
`

func scanAuthentication(row scanner) (*models.Authentication, error) {
	var (
		a                                          models.Authentication
		hash, access, refresh, reset               sql.NullString
		accessExp, refreshExp, resetExp, lastLogin sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Provider, &hash, &access, &accessExp,
		&refresh, &refreshExp, &reset, &resetExp, &lastLogin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.PasswordHash = hash.String
	a.AccessToken, a.AccessTokenExpiresAt = access.String, intPtr(accessExp)
	a.RefreshToken, a.RefreshTokenExpiresAt = refresh.String, intPtr(refreshExp)
	a.ResetToken, a.ResetTokenExpiresAt = reset.String, intPtr(resetExp)
	a.LastLogin = intPtr(lastLogin)
	return &a, nil
}

func (r *AuthenticationRepository) getOne(ctx context.Context, where string, args ...interface{}) (*models.Authentication, error) {
	a, err := scanAuthentication(r.db.QueryRowContext(ctx, authenticationSelect+" WHERE "+where, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (r *AuthenticationRepository) GetByUserID(ctx context.Context, userID string) (*models.Authentication, error) {
	return r.getOne(ctx, "user_id = ?", userID)
}

// GetByRefreshToken returns the row for userID only while it still holds
// exactly this refresh token.
func (r *AuthenticationRepository) GetByRefreshToken(ctx context.Context, userID, token string) (*models.Authentication, error) {
	if token == "" {
		return nil, nil
	}
	return r.getOne(ctx, "user_id = ? AND refresh_token = ?", userID, token)
}

func (r *AuthenticationRepository) GetByResetToken(ctx context.Context, token string) (*models.Authentication, error) {
	if token == "" {
		return nil, nil
	}
	return r.getOne(ctx, "reset_token = ?", token)
}

// StoreTokens overwrites the row's credential pair. When login is true the
// last_login stamp is updated too.
func (r *AuthenticationRepository) StoreTokens(ctx context.Context, authID string, pair *auth.TokenPair, login bool) error {
	now := r.now().Unix()
	query := `
		UPDATE authentications SET access_token = ?, access_token_expires_at = ?, refresh_token = ?, refresh_token_expires_at = ?, updated_at = ?
		WHERE id = ?
	`
	args := []interface{}{pair.AccessToken, pair.AccessTokenExpiresAt, pair.RefreshToken, pair.RefreshTokenExpiresAt, now, authID}
	if login {
		query = `
			UPDATE authentications SET access_token = ?, access_token_expires_at = ?, refresh_token = ?, refresh_token_expires_at = ?, updated_at = ?, last_login = ?
			WHERE id = ?
		`
		args = []interface{}{pair.AccessToken, pair.AccessTokenExpiresAt, pair.RefreshToken, pair.RefreshTokenExpiresAt, now, now, authID}
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ClearTokens revokes both credentials and their expiries.
func (r *AuthenticationRepository) ClearTokens(ctx context.Context, authID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE authentications SET access_token = NULL, access_token_expires_at = NULL,
			refresh_token = NULL, refresh_token_expires_at = NULL, updated_at = ?
		WHERE id = ?
	`, r.now().Unix(), authID)
	return err
}

// SetResetToken replaces any previous reset token on the row.
func (r *AuthenticationRepository) SetResetToken(ctx context.Context, authID, token string, expiresAt int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE authentications SET reset_token = ?, expires_reset_token_at = ?, updated_at = ? WHERE id = ?
	`, token, expiresAt, r.now().Unix(), authID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// UpdatePassword stores a new hash and invalidates the reset token.
func (r *AuthenticationRepository) UpdatePassword(ctx context.Context, authID, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE authentications SET password_hash = ?, reset_token = NULL, expires_reset_token_at = NULL, updated_at = ?
		WHERE id = ?
	`, passwordHash, r.now().Unix(), authID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ClearExpired revokes credential pairs whose refresh token expired and
// reset tokens past their expiry. It returns how many rows of each kind changed.
func (r *AuthenticationRepository) ClearExpired(ctx context.Context, now time.Time) (sessions int64, resets int64, err error) {
	ts := now.Unix()

	res, err := r.db.ExecContext(ctx, `
		UPDATE authentications SET access_token = NULL, access_token_expires_at = NULL,
			refresh_token = NULL, refresh_token_expires_at = NULL, updated_at = ?
		WHERE refresh_token_expires_at IS NOT NULL AND refresh_token_expires_at <= ?
	`, ts, ts)
	if err != nil {
		return 0, 0, err
	}
	if sessions, err = res.RowsAffected(); err != nil {
		return 0, 0, err
	}

	res, err = r.db.ExecContext(ctx, `
		UPDATE authentications SET reset_token = NULL, expires_reset_token_at = NULL, updated_at = ?
		WHERE expires_reset_token_at IS NOT NULL AND expires_reset_token_at < ?
	`, ts, ts)
	if err != nil {
		return sessions, 0, err
	}
	resets, err = res.RowsAffected()
	return sessions, resets, err
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return sql.ErrNoRows
	}
	return nil
}

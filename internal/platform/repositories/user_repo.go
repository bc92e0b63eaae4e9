package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"portal/internal/platform/models"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("record already exists")

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// GetAccount loads the user identified by (companyID, email) together with
// its company's status and its authentication row. It returns nil when no
// such user exists.
func (r *UserRepository) GetAccount(ctx context.Context, companyID, email string) (*models.User, error) {
	var (
		user             models.User
		authID, provider sql.NullString
		passwordHash     sql.NullString
		resetToken       sql.NullString
		resetExpires     sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.company_id, u.email, u.full_name, u.type, u.is_active, u.is_banned, u.created_at, u.updated_at,
			c.status,
			a.id, a.provider, a.password_hash, a.reset_token, a.expires_reset_token_at
		FROM users u
		JOIN companies c ON c.id = u.company_id
		LEFT JOIN authentications a ON a.user_id = u.id
		WHERE u.company_id = ? AND u.email = ?
	`, companyID, email).Scan(
		&user.ID, &user.CompanyID, &user.Email, &user.FullName, &user.Type, &user.IsActive, &user.IsBanned,
		&user.CreatedAt, &user.UpdatedAt,
		&user.CompanyStatus,
		&authID, &provider, &passwordHash, &resetToken, &resetExpires,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if authID.Valid {
		user.Authentication = &models.Authentication{
			ID:                  authID.String,
			UserID:              user.ID,
			Provider:            provider.String,
			PasswordHash:        passwordHash.String,
			ResetToken:          resetToken.String,
			ResetTokenExpiresAt: intPtr(resetExpires),
		}
	}
	return &user, nil
}

// GetByID returns the user only when it belongs to companyID.
func (r *UserRepository) GetByID(ctx context.Context, companyID, userID string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.company_id, u.email, u.full_name, u.type, u.is_active, u.is_banned, u.created_at, u.updated_at, c.status
		FROM users u
		JOIN companies c ON c.id = u.company_id
		WHERE u.id = ? AND u.company_id = ?
	`, userID, companyID).Scan(&user.ID, &user.CompanyID, &user.Email, &user.FullName, &user.Type,
		&user.IsActive, &user.IsBanned, &user.CreatedAt, &user.UpdatedAt, &user.CompanyStatus)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// Create inserts a user and its authentication row in one transaction.
func (r *UserRepository) Create(ctx context.Context, user *models.User, auth *models.Authentication) error {
	now := r.now().Unix()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if auth.ID == "" {
		auth.ID = uuid.NewString()
	}
	user.CreatedAt, user.UpdatedAt = now, now
	auth.UserID = user.ID
	auth.CreatedAt, auth.UpdatedAt = now, now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, company_id, email, full_name, type, is_active, is_banned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.CompanyID, user.Email, user.FullName, user.Type, user.IsActive, user.IsBanned, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO authentications (id, user_id, provider, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, auth.ID, auth.UserID, auth.Provider, nullString(auth.PasswordHash), auth.CreatedAt, auth.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *UserRepository) SetActive(ctx context.Context, userID string, active bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`, active, r.now().Unix(), userID)
	return err
}

package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"portal/internal/platform/models"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

type CompanyRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{db: db, now: time.Now}
}

const companySelect = `
	SELECT c.id, c.slug, c.domain, c.name, c.email, c.phone, c.locale, c.timezone, c.currency, c.status,
		c.white_label_id, c.address_id, c.created_at, c.updated_at,
		w.id, w.logo_path, w.favicon_path, w.banner_login_path, w.banner_signup_path,
		w.banner_change_password_path, w.banner_request_password_reset_path, w.colors,
		w.created_at, w.updated_at, w.updated_by,
		a.id, a.street, a.number, a.complement, a.district, a.city, a.state, a.zip_code, a.country
	FROM companies c
	LEFT JOIN white_labels w ON w.id = c.white_label_id
	LEFT JOIN addresses a ON a.id = c.address_id
`

func scanCompany(row scanner) (*models.Company, error) {
	var (
		c                                                      models.Company
		slug, domain, email, phone, locale, timezone, currency sql.NullString
		wlRef, addrRef                                         sql.NullString
		wlID, logo, favicon, bLogin, bSignup, bChange, bReset  sql.NullString
		colors, updatedBy                                      sql.NullString
		wlCreated, wlUpdated                                   sql.NullInt64
		aID, street, number, complement, district, city, state sql.NullString
		zip, country                                           sql.NullString
	)

	err := row.Scan(
		&c.ID, &slug, &domain, &c.Name, &email, &phone, &locale, &timezone, &currency, &c.Status,
		&wlRef, &addrRef, &c.CreatedAt, &c.UpdatedAt,
		&wlID, &logo, &favicon, &bLogin, &bSignup, &bChange, &bReset, &colors,
		&wlCreated, &wlUpdated, &updatedBy,
		&aID, &street, &number, &complement, &district, &city, &state, &zip, &country,
	)
	if err != nil {
		return nil, err
	}

	c.Slug, c.Domain = slug.String, domain.String
	c.Email, c.Phone = email.String, phone.String
	c.Locale, c.Timezone, c.Currency = locale.String, timezone.String, currency.String
	c.WhiteLabelID, c.AddressID = wlRef.String, addrRef.String

	if wlID.Valid {
		wl := &models.WhiteLabel{
			ID:                             wlID.String,
			LogoPath:                       logo.String,
			FaviconPath:                    favicon.String,
			BannerLoginPath:                bLogin.String,
			BannerSignupPath:               bSignup.String,
			BannerChangePasswordPath:       bChange.String,
			BannerRequestPasswordResetPath: bReset.String,
			CreatedAt:                      wlCreated.Int64,
			UpdatedAt:                      wlUpdated.Int64,
			UpdatedBy:                      updatedBy.String,
		}
		wl.Colors = map[string]string{}
		if colors.Valid && colors.String != "" {
			if err := json.Unmarshal([]byte(colors.String), &wl.Colors); err != nil {
				return nil, fmt.Errorf("decode colors of white label %s: %w", wl.ID, err)
			}
		}
		c.WhiteLabel = wl
	}

	if aID.Valid {
		c.Address = &models.Address{
			ID:         aID.String,
			Street:     street.String,
			Number:     number.String,
			Complement: complement.String,
			District:   district.String,
			City:       city.String,
			State:      state.String,
			ZipCode:    zip.String,
			Country:    country.String,
		}
	}

	return &c, nil
}

func (r *CompanyRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.Company, error) {
	company, err := scanCompany(r.db.QueryRowContext(ctx, companySelect+" WHERE "+where, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return company, nil
}

// GetBySlug returns the company with its white label and address, or nil
// when no company has the slug.
func (r *CompanyRepository) GetBySlug(ctx context.Context, slug string) (*models.Company, error) {
	return r.getOne(ctx, "c.slug = ?", slug)
}

func (r *CompanyRepository) GetByDomain(ctx context.Context, domain string) (*models.Company, error) {
	return r.getOne(ctx, "c.domain = ?", domain)
}

func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*models.Company, error) {
	return r.getOne(ctx, "c.id = ?", id)
}

func (r *CompanyRepository) Create(ctx context.Context, c *models.Company) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := r.now().Unix()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO companies (id, slug, domain, name, email, phone, locale, timezone, currency, status, white_label_id, address_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, nullString(c.Slug), nullString(c.Domain), c.Name, nullString(c.Email), nullString(c.Phone),
		nullString(c.Locale), nullString(c.Timezone), nullString(c.Currency), c.Status,
		nullString(c.WhiteLabelID), nullString(c.AddressID), c.CreatedAt, c.UpdatedAt)
	return err
}

// SaveWhiteLabel stores wl for the company, creating and linking a white
// label record when the company has none yet.
func (r *CompanyRepository) SaveWhiteLabel(ctx context.Context, companyID string, wl *models.WhiteLabel) error {
	colors, err := json.Marshal(wl.Colors)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current sql.NullString
	if err := tx.QueryRowContext(ctx, `SELECT white_label_id FROM companies WHERE id = ?`, companyID).Scan(&current); err != nil {
		return err
	}

	now := r.now().Unix()
	wl.UpdatedAt = now
	if current.Valid && current.String != "" {
		wl.ID = current.String
		_, err = tx.ExecContext(ctx, `
			UPDATE white_labels SET logo_path = ?, favicon_path = ?, banner_login_path = ?, banner_signup_path = ?,
				banner_change_password_path = ?, banner_request_password_reset_path = ?, colors = ?, updated_at = ?, updated_by = ?
			WHERE id = ?
		`, nullString(wl.LogoPath), nullString(wl.FaviconPath), nullString(wl.BannerLoginPath), nullString(wl.BannerSignupPath),
			nullString(wl.BannerChangePasswordPath), nullString(wl.BannerRequestPasswordResetPath), string(colors), now,
			nullString(wl.UpdatedBy), wl.ID)
		if err != nil {
			return err
		}
		return tx.Commit()
	}

	wl.ID = uuid.NewString()
	wl.CreatedAt = now
	_, err = tx.ExecContext(ctx, `
		INSERT INTO white_labels (id, logo_path, favicon_path, banner_login_path, banner_signup_path,
			banner_change_password_path, banner_request_password_reset_path, colors, created_at, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, wl.ID, nullString(wl.LogoPath), nullString(wl.FaviconPath), nullString(wl.BannerLoginPath), nullString(wl.BannerSignupPath),
		nullString(wl.BannerChangePasswordPath), nullString(wl.BannerRequestPasswordResetPath), string(colors), now, now,
		nullString(wl.UpdatedBy))
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE companies SET white_label_id = ?, updated_at = ? WHERE id = ?`, wl.ID, now, companyID); err != nil {
		return err
	}
	return tx.Commit()
}

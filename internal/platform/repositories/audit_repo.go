package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	"portal/internal/platform/models"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, e *models.AuditEntry) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, company_id, auth_id, event, ip_address, user_agent, origin, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, nullString(e.CompanyID), nullString(e.AuthID), e.Event, e.IPAddress, e.UserAgent, e.Origin, string(meta), e.CreatedAt)
	return err
}

// ListByCompany returns the newest entries first.
func (r *AuditRepository) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*models.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id, auth_id, event, ip_address, user_agent, origin, metadata, created_at
		FROM audit_logs WHERE company_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*models.AuditEntry{}
	for rows.Next() {
		var (
			e                       models.AuditEntry
			company, authID, ip, ua sql.NullString
			origin, meta            sql.NullString
		)
		if err := rows.Scan(&e.ID, &company, &authID, &e.Event, &ip, &ua, &origin, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CompanyID, e.AuthID = company.String, authID.String
		e.IPAddress, e.UserAgent, e.Origin = ip.String, ua.String, origin.String
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
				e.Metadata = map[string]interface{}{"raw": meta.String}
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

package tenant

import (
	"context"

	"portal/internal/pkg/errors"
	"portal/internal/pkg/validator"
	"portal/internal/platform/models"
)

// Key identifies a tenant by path slug or by request host. Only one is
// expected to be meaningful for a given deployment.
type Key struct {
	Slug   string
	Domain string
}

// CompanyFinder loads a company with its whitelabel and address joined.
// Implementations return nil, nil when nothing matches.
type CompanyFinder interface {
	GetBySlug(ctx context.Context, slug string) (*models.Company, error)
	GetByDomain(ctx context.Context, domain string) (*models.Company, error)
}

type Resolver struct {
	companies CompanyFinder
}

func NewResolver(companies CompanyFinder) *Resolver {
	return &Resolver{companies: companies}
}

// Resolve looks the company up by slug when present, else by domain.
func (r *Resolver) Resolve(ctx context.Context, key Key) (*models.Company, error) {
	slug := validator.NormalizeSlug(key.Slug)
	domain := validator.NormalizeHost(key.Domain)

	var (
		company *models.Company
		err     error
	)
	switch {
	case slug != "":
		company, err = r.companies.GetBySlug(ctx, slug)
	case domain != "":
		company, err = r.companies.GetByDomain(ctx, domain)
	default:
		return nil, errors.ErrMissingTenantKey
	}

	if err != nil {
		return nil, errors.Wrap(errors.KindTenantNotFound, "company not found", err)
	}
	if company == nil {
		return nil, errors.ErrTenantNotFound
	}
	return company, nil
}

type contextKey struct{}

// WithCompany stores the resolved tenant for the rest of the request.
func WithCompany(ctx context.Context, c *models.Company) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

func FromContext(ctx context.Context) (*models.Company, bool) {
	c, ok := ctx.Value(contextKey{}).(*models.Company)
	return c, ok && c != nil
}

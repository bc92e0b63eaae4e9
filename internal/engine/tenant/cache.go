package tenant

import (
	"context"
	"sync"
	"time"

	"portal/internal/platform/models"
)

type cachedCompany struct {
	company  *models.Company
	cachedAt time.Time
}

// CachedFinder memoizes company lookups for ttl. Misses are not cached, so a
// newly created tenant resolves immediately.
type CachedFinder struct {
	inner CompanyFinder
	store sync.Map // map["slug:<slug>" | "domain:<host>"]*cachedCompany
	ttl   time.Duration
	now   func() time.Time
}

func NewCachedFinder(inner CompanyFinder, ttl time.Duration) *CachedFinder {
	return &CachedFinder{inner: inner, ttl: ttl, now: time.Now}
}

func (c *CachedFinder) GetBySlug(ctx context.Context, slug string) (*models.Company, error) {
	return c.lookup("slug:"+slug, func() (*models.Company, error) {
		return c.inner.GetBySlug(ctx, slug)
	})
}

func (c *CachedFinder) GetByDomain(ctx context.Context, domain string) (*models.Company, error) {
	return c.lookup("domain:"+domain, func() (*models.Company, error) {
		return c.inner.GetByDomain(ctx, domain)
	})
}

// Invalidate drops every entry of companyID, e.g. after its whitelabel changed.
func (c *CachedFinder) Invalidate(companyID string) {
	c.store.Range(func(key, value interface{}) bool {
		if value.(*cachedCompany).company.ID == companyID {
			c.store.Delete(key)
		}
		return true
	})
}

func (c *CachedFinder) lookup(key string, load func() (*models.Company, error)) (*models.Company, error) {
	if val, ok := c.store.Load(key); ok {
		entry := val.(*cachedCompany)
		if c.now().Sub(entry.cachedAt) <= c.ttl {
			return entry.company, nil
		}
		c.store.Delete(key)
	}

	company, err := load()
	if err != nil || company == nil {
		return company, err
	}
	c.store.Store(key, &cachedCompany{company: company, cachedAt: c.now()})
	return company, nil
}

package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"portal/internal/pkg/parser"
	"portal/internal/platform/models"
)

type memoryStore struct {
	mu      sync.Mutex
	entries []*models.AuditEntry
	err     error
}

func (s *memoryStore) Insert(_ context.Context, e *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func TestLogger_Record(t *testing.T) {
	store := &memoryStore{}
	logger := NewLogger(store)

	ctx := WithRequestInfo(context.Background(), RequestInfo{
		IPAddress: "203.0.113.9",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0) Firefox/121.0",
		Origin:    "https://acme.portal.test",
	})
	logger.Record(ctx, "c1", "auth1", EventLogin, map[string]interface{}{"email": "ana@acme.com"})
	logger.Wait()

	require.Len(t, store.entries, 1)
	e := store.entries[0]
	assert.Equal(t, "c1", e.CompanyID)
	assert.Equal(t, "auth1", e.AuthID)
	assert.Equal(t, EventLogin, e.Event)
	assert.Equal(t, "203.0.113.9", e.IPAddress)
	assert.Equal(t, "https://acme.portal.test", e.Origin)
	assert.Equal(t, parser.Client{OS: "Windows", Browser: "Firefox"}, e.Metadata["client"])
	assert.Contains(t, e.ID, "audit_")
}

func TestLogger_StoreFailureDoesNotPropagate(t *testing.T) {
	store := &memoryStore{err: errors.New("disk full")}
	logger := NewLogger(store)

	assert.NotPanics(t, func() {
		logger.Record(context.Background(), "c1", "", EventSignup, nil)
		logger.Wait()
	})
	assert.Empty(t, store.entries)
}

func TestRequestInfoFromHTTP(t *testing.T) {
	req := httptest.NewRequest("POST", "/t/acme/auth/signin", nil)
	req.RemoteAddr = "192.0.2.1:4567"
	req.Header.Set("User-Agent", "curl/8")
	req.Header.Set("Origin", "https://acme.example")

	info := RequestInfoFromHTTP(req)
	assert.Equal(t, "192.0.2.1", info.IPAddress)
	assert.Equal(t, "curl/8", info.UserAgent)
	assert.Equal(t, "https://acme.example", info.Origin)

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", RequestInfoFromHTTP(req).IPAddress)
}

package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"portal/internal/engine/tenant"
	"portal/internal/platform/models"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2)
	defer rl.Stop()

	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("k"))
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))
	assert.True(t, rl.Allow("other"), "buckets are per key")

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Stop()

	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }
	rl.Allow("k")

	rl.sweep(now.Add(11 * time.Minute))
	_, ok := rl.store.Load("k")
	assert.False(t, ok)
}

func TestRateLimiter_Limit(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Stop()

	handler := rl.Limit("signin")(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	request := func(companyID, ip string) int {
		req := httptest.NewRequest("POST", "/t/acme/auth/signin", nil)
		req.RemoteAddr = ip + ":1234"
		req = req.WithContext(tenant.WithCompany(req.Context(), &models.Company{ID: companyID}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, request("c1", "192.0.2.1"))
	assert.Equal(t, http.StatusTooManyRequests, request("c1", "192.0.2.1"))
	assert.Equal(t, http.StatusOK, request("c3", "192.0.2.1"), "limits are per tenant")
	assert.Equal(t, http.StatusOK, request("c1", "192.0.2.2"), "limits are per client")
}

func TestRateLimiter_IgnoresForwardedHeaders(t *testing.T) {
	rl := NewRateLimiter(2)
	defer rl.Stop()

	handler := rl.Limit("signin")(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	admitted := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest("POST", "/t/acme/auth/signin", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("203.0.113.%d", i))
		req = req.WithContext(tenant.WithCompany(req.Context(), &models.Company{ID: "c1"}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code == http.StatusOK {
			admitted++
		}
	}
	assert.Equal(t, 2, admitted)
}

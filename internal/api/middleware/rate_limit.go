package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"portal/internal/engine/tenant"
	"portal/internal/pkg/errors"
)

// RateLimiter is a per-key token bucket refilled at limit tokens per minute.
type RateLimiter struct {
	store *sync.Map // map[string]*Bucket
	limit int
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

type Bucket struct {
	tokens     int
	lastRefill time.Time
	mu         sync.Mutex
	lastAccess time.Time
}

func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	rl := &RateLimiter{
		store: &sync.Map{},
		limit: perMinute,
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep(rl.now())
		}
	}
}

// sweep drops buckets idle for more than ten minutes.
func (rl *RateLimiter) sweep(now time.Time) {
	rl.store.Range(func(key, value interface{}) bool {
		bucket := value.(*Bucket)
		bucket.mu.Lock()
		if now.Sub(bucket.lastAccess) > 10*time.Minute {
			rl.store.Delete(key)
		}
		bucket.mu.Unlock()
		return true
	})
}

func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()

	val, _ := rl.store.LoadOrStore(key, &Bucket{
		tokens:     rl.limit,
		lastRefill: now,
		lastAccess: now,
	})

	bucket := val.(*Bucket)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.lastAccess = now

	elapsed := now.Sub(bucket.lastRefill)
	refillTokens := int(elapsed.Seconds() * float64(rl.limit) / 60.0)

	if refillTokens > 0 {
		bucket.tokens += refillTokens
		if bucket.tokens > rl.limit {
			bucket.tokens = rl.limit
		}
		bucket.lastRefill = now
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}

	return false
}

// Limit throttles flow per tenant and client IP.
func (rl *RateLimiter) Limit(flow string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			companyID := "-"
			if company, ok := tenant.FromContext(r.Context()); ok {
				companyID = company.ID
			}
			key := fmt.Sprintf("%s:%s:%s", companyID, peerIP(r), flow)

			if !rl.Allow(key) {
				w.Header().Set("Retry-After", strconv.Itoa(60/rl.limit+1))
				errors.WriteError(w, http.StatusTooManyRequests, errors.KindRateLimited, "Rate limit exceeded", nil)
				return
			}

			next(w, r)
		}
	}
}

// peerIP is the host part of the connection's remote address. Forwarded
// headers are client-controlled and never used for throttling keys.
func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

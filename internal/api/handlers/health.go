package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

type HealthHandler struct {
	db    *sql.DB
	redis redis.UniversalClient
	now   func() time.Time
}

// NewHealthHandler checks db and, when non-nil, the session store's Redis.
func NewHealthHandler(db *sql.DB, rdb redis.UniversalClient) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, now: time.Now}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
	} else {
		checks["database"] = "healthy"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["session_store"] = "unhealthy: " + err.Error()
		} else {
			checks["session_store"] = "healthy"
		}
	} else {
		checks["session_store"] = "healthy (memory)"
	}

	healthy := true
	for _, check := range checks {
		if strings.HasPrefix(check, "unhealthy") {
			healthy = false
		}
	}

	resp := HealthResponse{Status: "healthy", Timestamp: h.now().Unix(), Checks: checks}
	code := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

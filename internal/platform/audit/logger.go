package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"portal/internal/pkg/parser"
	"portal/internal/platform/models"
)

const (
	EventLogin                  = "login"
	EventLogout                 = "logout"
	EventSignup                 = "signup"
	EventPasswordResetRequested = "password_reset_requested"
	EventPasswordChanged        = "password_changed"
	EventAccountActivation      = "account_activation"
)

// RequestInfo is the client metadata attached to every audit entry.
type RequestInfo struct {
	IPAddress string
	UserAgent string
	Origin    string
}

type requestInfoKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// RequestInfoFromHTTP extracts client metadata, preferring proxy headers.
func RequestInfoFromHTTP(r *http.Request) RequestInfo {
	ip := r.RemoteAddr
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
	} else if real := r.Header.Get("X-Real-IP"); real != "" {
		ip = real
	} else if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.Header.Get("Referer")
	}

	return RequestInfo{IPAddress: ip, UserAgent: r.UserAgent(), Origin: origin}
}

type Store interface {
	Insert(ctx context.Context, e *models.AuditEntry) error
}

// Logger records audit entries without blocking the calling flow. Write
// failures are logged and dropped.
type Logger struct {
	store Store
	now   func() time.Time
	wg    sync.WaitGroup
}

func NewLogger(store Store) *Logger {
	return &Logger{store: store, now: time.Now}
}

// Record queues an entry for actorRef (an authentication id, possibly empty).
func (l *Logger) Record(ctx context.Context, companyID, actorRef, event string, metadata map[string]interface{}) {
	info := RequestInfoFrom(ctx)
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if info.UserAgent != "" {
		metadata["client"] = parser.ParseUserAgent(info.UserAgent)
	}

	entry := &models.AuditEntry{
		ID:        "audit_" + uuid.NewString(),
		CompanyID: companyID,
		AuthID:    actorRef,
		Event:     event,
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
		Origin:    info.Origin,
		Metadata:  metadata,
		CreatedAt: l.now().Unix(),
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := l.store.Insert(ctx, entry); err != nil {
			log.Warn().Err(err).Str("event", event).Str("company_id", companyID).Msg("failed to write audit entry")
		}
	}()
}

// Wait blocks until queued entries are written. Used on shutdown.
func (l *Logger) Wait() {
	l.wg.Wait()
}

package mailer

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"portal/internal/platform/config"
)

// Mailer delivers account emails. Delivery itself is left to the
// implementation; the flows only hand over recipient and link.
type Mailer interface {
	SendPasswordReset(ctx context.Context, m Message) error
	SendActivation(ctx context.Context, m Message) error
}

type Message struct {
	To          string
	Name        string
	CompanySlug string
	Token       string
}

// LogMailer writes outgoing mail to the log instead of sending it.
type LogMailer struct {
	cfg config.EmailConfig
}

func NewLogMailer(cfg config.EmailConfig) *LogMailer {
	return &LogMailer{cfg: cfg}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, msg Message) error {
	m.emit("password_reset", msg, m.Link("/auth/change-password", msg))
	return nil
}

func (m *LogMailer) SendActivation(_ context.Context, msg Message) error {
	m.emit("activation", msg, m.Link("/auth/activate", msg))
	return nil
}

// Link builds the tenant-scoped page URL that carries the token.
func (m *LogMailer) Link(path string, msg Message) string {
	base := strings.TrimRight(m.cfg.AppURL, "/")
	if msg.CompanySlug != "" {
		base += "/t/" + url.PathEscape(msg.CompanySlug)
	}
	return base + path + "?token=" + url.QueryEscape(msg.Token)
}

func (m *LogMailer) emit(kind string, msg Message, link string) {
	// The link carries a credential; only its presence is logged.
	log.Info().
		Str("mail", kind).
		Str("from", m.cfg.FromAddress).
		Str("to", msg.To).
		Bool("has_link", link != "").
		Msg("outgoing mail")
}

package validator

import (
	"errors"
	"net"
	"net/mail"
	"strings"
)

var (
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrPasswordTooWeak = errors.New("password must be at least 8 characters")
)

const MinPasswordLength = 8

// NormalizeEmail lower-cases and trims an address and checks its shape.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || !strings.Contains(parts[1], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooWeak
	}
	return nil
}

// NormalizeSlug is the lookup form of a slug: trimmed and lower-cased.
// Stored slugs are matched as-is otherwise.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeHost lower-cases a Host header value and strips any port.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

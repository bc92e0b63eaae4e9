package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

// Kind identifies a failure class. Its string value doubles as the i18n key
// clients use to localize the message.
type Kind string

const (
	KindMissingTenantKey      Kind = "missing_tenant_key"
	KindTenantNotFound        Kind = "tenant_not_found"
	KindCompanyNotActive      Kind = "company_not_active"
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindUserNotActive         Kind = "user_not_active"
	KindUserBanned            Kind = "user_banned"
	KindInvalidAuthProvider   Kind = "invalid_auth_provider"
	KindInvalidColor          Kind = "invalid_color"
	KindMalformedToken        Kind = "malformed_token"
	KindInvalidOrExpiredToken Kind = "invalid_or_expired_token"
	KindTokenStorageFailed    Kind = "token_storage_failed"
	KindInternal              Kind = "internal_error"

	KindInvalidInput      Kind = "invalid_input"
	KindUserAlreadyExists Kind = "user_already_exists"
	KindUserNotFound      Kind = "user_not_found"
	KindGoogleAuthFailed  Kind = "google_auth_failed"
	KindIncompletePalette Kind = "incomplete_palette"
	KindAlreadyActive     Kind = "already_active"
	KindRequestInFlight   Kind = "request_in_flight"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindRateLimited       Kind = "rate_limited"
)

// Error is the single failure type returned by the engine packages.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels below work with
// errors.Is regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

var (
	ErrMissingTenantKey      = New(KindMissingTenantKey, "slug or domain is required")
	ErrTenantNotFound        = New(KindTenantNotFound, "company not found")
	ErrCompanyNotActive      = New(KindCompanyNotActive, "company is not active")
	ErrInvalidCredentials    = New(KindInvalidCredentials, "invalid credentials")
	ErrUserNotActive         = New(KindUserNotActive, "user is not active")
	ErrUserBanned            = New(KindUserBanned, "user is banned")
	ErrInvalidAuthProvider   = New(KindInvalidAuthProvider, "invalid authentication provider")
	ErrInvalidColor          = New(KindInvalidColor, "invalid color")
	ErrMalformedToken        = New(KindMalformedToken, "malformed token")
	ErrInvalidOrExpiredToken = New(KindInvalidOrExpiredToken, "invalid or expired token")
	ErrTokenStorageFailed    = New(KindTokenStorageFailed, "failed to store tokens")
	ErrInternal              = New(KindInternal, "internal error")
	ErrUserAlreadyExists     = New(KindUserAlreadyExists, "user already exists")
	ErrUserNotFound          = New(KindUserNotFound, "user not found")
	ErrIncompletePalette     = New(KindIncompletePalette, "palette is incomplete")
	ErrAlreadyActive         = New(KindAlreadyActive, "user is already active")
)

// KindOf reports the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Status(kind Kind) int {
	switch kind {
	case KindMissingTenantKey, KindInvalidColor, KindInvalidInput, KindIncompletePalette:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindMalformedToken, KindInvalidOrExpiredToken,
		KindUnauthorized, KindGoogleAuthFailed:
		return http.StatusUnauthorized
	case KindCompanyNotActive, KindUserNotActive, KindUserBanned, KindInvalidAuthProvider, KindForbidden:
		return http.StatusForbidden
	case KindTenantNotFound, KindUserNotFound:
		return http.StatusNotFound
	case KindUserAlreadyExists, KindAlreadyActive, KindRequestInFlight:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func WriteError(w http.ResponseWriter, status int, code Kind, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    string(code),
		Details: details,
	})
}

// Write renders err using its kind. Internal errors never leak their cause.
func Write(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	message := "internal error"
	var e *Error
	if kind != KindInternal && stderrors.As(err, &e) {
		message = e.Message
		if message == "" {
			message = string(kind)
		}
	}
	WriteError(w, Status(kind), kind, message, nil)
}

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "portal/internal/pkg/errors"
	"portal/internal/platform/config"
)

// Claims is the payload of every credential the portal issues: access,
// refresh, password reset and activation tokens all carry the same identity.
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	CompanyID string `json:"company_id"`
	Provider  string `json:"provider,omitempty"`
	// Purpose marks single-use tokens. Session credentials leave it empty.
	Purpose   string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

const (
	PurposePasswordReset = "password_reset"
	PurposeActivation    = "activation"
)

// Expired reports whether the credential is no longer usable at now.
// A token whose exp equals now is expired.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return !now.Before(c.ExpiresAt.Time)
}

// Complete reports whether the identity claims needed to scope a session are present.
func (c *Claims) Complete() bool {
	return c.UserID != "" && c.Email != "" && c.CompanyID != ""
}

// Issue signs claims with secret (HS256). The payload is the given claims
// plus exp = now + ttl, iat and a fresh jti, so two tokens issued for the
// same identity in the same second still differ.
func Issue(claims Claims, secret string, ttl time.Duration, now time.Time) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Decode reads the claims of token without checking its signature or expiry.
// Clients use it to read company_id and exp from their own credential.
func Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, apperrors.Wrap(apperrors.KindMalformedToken, "malformed token", err)
	}
	return claims, nil
}

// Verify checks signature and expiry of token against secret.
func Verify(tokenString, secret string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidOrExpiredToken, "invalid or expired token", err)
	}
	if !token.Valid {
		return nil, apperrors.ErrInvalidOrExpiredToken
	}
	return claims, nil
}

type TokenPair struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	AccessTokenExpiresAt  int64  `json:"access_token_expires_at"`
	RefreshTokenExpiresAt int64  `json:"refresh_token_expires_at"`
}

// TokenService issues and verifies the portal's credentials. Access, reset
// and activation tokens share the access secret; refresh tokens have their own.
type TokenService struct {
	config config.JWTConfig
	now    func() time.Time
}

func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{config: cfg, now: time.Now}
}

// WithClock returns a copy of the service that reads time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	return &TokenService{config: s.config, now: now}
}

func (s *TokenService) Now() time.Time { return s.now() }

func (s *TokenService) IssuePair(claims Claims) (*TokenPair, error) {
	now := s.now()

	access, err := Issue(claims, s.config.AccessSecret, s.config.AccessTokenTTL, now)
	if err != nil {
		return nil, err
	}
	refresh, err := Issue(claims, s.config.RefreshSecret, s.config.RefreshTokenTTL, now)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  jwt.NewNumericDate(now.Add(s.config.AccessTokenTTL)).Unix(),
		RefreshTokenExpiresAt: jwt.NewNumericDate(now.Add(s.config.RefreshTokenTTL)).Unix(),
	}, nil
}

// IssueReset returns a password reset token and its expiry (unix seconds).
func (s *TokenService) IssueReset(claims Claims) (string, int64, error) {
	claims.Purpose = PurposePasswordReset
	return s.issueWithAccessSecret(claims, s.config.ResetTokenTTL)
}

// IssueActivation returns an account activation token and its expiry.
func (s *TokenService) IssueActivation(claims Claims) (string, int64, error) {
	claims.Purpose = PurposeActivation
	return s.issueWithAccessSecret(claims, s.config.ActivationTokenTTL)
}

func (s *TokenService) issueWithAccessSecret(claims Claims, ttl time.Duration) (string, int64, error) {
	now := s.now()
	token, err := Issue(claims, s.config.AccessSecret, ttl, now)
	if err != nil {
		return "", 0, err
	}
	return token, jwt.NewNumericDate(now.Add(ttl)).Unix(), nil
}

func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	return s.verifyPurpose(token, "")
}

// VerifyReset accepts only password reset tokens.
func (s *TokenService) VerifyReset(token string) (*Claims, error) {
	return s.verifyPurpose(token, PurposePasswordReset)
}

func (s *TokenService) VerifyActivation(token string) (*Claims, error) {
	return s.verifyPurpose(token, PurposeActivation)
}

func (s *TokenService) verifyPurpose(token, purpose string) (*Claims, error) {
	claims, err := Verify(token, s.config.AccessSecret, s.now())
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, apperrors.ErrInvalidOrExpiredToken
	}
	return claims, nil
}

func (s *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return Verify(token, s.config.RefreshSecret, s.now())
}

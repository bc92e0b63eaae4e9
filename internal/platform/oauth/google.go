package oauth

import (
	"context"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"portal/internal/pkg/errors"
	"portal/internal/pkg/validator"
	"portal/internal/platform/config"
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// Profile is the identity read from a Google id token.
type Profile struct {
	Email string
	Name  string
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	IDToken          string `json:"id_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// GoogleClient performs the authorization-code exchange and reads the
// resulting id token. Signature verification against Google's published
// keys is controlled by config.
type GoogleClient struct {
	cfg  config.GoogleConfig
	http *resty.Client

	once    sync.Once
	jwks    *keyfunc.JWKS
	keyfunc jwt.Keyfunc
	keysErr error
}

func NewGoogleClient(cfg config.GoogleConfig) *GoogleClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &GoogleClient{cfg: cfg, http: client}
}

// WithKeyfunc replaces the JWKS lookup, e.g. with a fixed test key.
func (g *GoogleClient) WithKeyfunc(kf jwt.Keyfunc) *GoogleClient {
	g.keyfunc = kf
	return g
}

// Exchange trades an authorization code for the user's profile.
func (g *GoogleClient) Exchange(ctx context.Context, code string) (*Profile, error) {
	if code == "" {
		return nil, errors.New(errors.KindInvalidInput, "authorization code is required")
	}

	var tok tokenResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"code":          code,
			"client_id":     g.cfg.ClientID,
			"client_secret": g.cfg.ClientSecret,
			"redirect_uri":  g.cfg.RedirectURI,
			"grant_type":    "authorization_code",
		}).
		SetResult(&tok).
		SetError(&tok).
		Post(g.cfg.TokenURL)
	if err != nil {
		return nil, errors.Wrap(errors.KindGoogleAuthFailed, "google token exchange failed", err)
	}
	if resp.IsError() {
		log.Warn().Int("status", resp.StatusCode()).Str("error", tok.Error).Msg("google rejected authorization code")
		msg := tok.ErrorDescription
		if msg == "" {
			msg = "google rejected the authorization code"
		}
		return nil, errors.New(errors.KindGoogleAuthFailed, msg)
	}
	if tok.IDToken == "" {
		return nil, errors.New(errors.KindGoogleAuthFailed, "google returned no id token")
	}

	return g.ParseIDToken(tok.IDToken)
}

// ParseIDToken reads email and name from an id token, verifying it first
// unless verification is disabled.
func (g *GoogleClient) ParseIDToken(idToken string) (*Profile, error) {
	claims := &idTokenClaims{}

	if g.cfg.VerifyIDToken {
		kf, err := g.keys()
		if err != nil {
			return nil, errors.Wrap(errors.KindGoogleAuthFailed, "google signing keys unavailable", err)
		}
		_, err = jwt.ParseWithClaims(idToken, claims, kf,
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithAudience(g.cfg.ClientID),
			jwt.WithExpirationRequired(),
		)
		if err != nil {
			return nil, errors.Wrap(errors.KindGoogleAuthFailed, "invalid google id token", err)
		}
		if !googleIssuers[claims.Issuer] {
			return nil, errors.New(errors.KindGoogleAuthFailed, "unexpected id token issuer")
		}
		if !claims.EmailVerified {
			return nil, errors.New(errors.KindGoogleAuthFailed, "google email address is not verified")
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
			return nil, errors.Wrap(errors.KindGoogleAuthFailed, "malformed google id token", err)
		}
	}

	email, err := validator.NormalizeEmail(claims.Email)
	if err != nil {
		return nil, errors.Wrap(errors.KindGoogleAuthFailed, "id token carries no usable email", err)
	}
	return &Profile{Email: email, Name: claims.Name}, nil
}

func (g *GoogleClient) keys() (jwt.Keyfunc, error) {
	if g.keyfunc != nil {
		return g.keyfunc, nil
	}

	g.once.Do(func() {
		jwks, err := keyfunc.Get(g.cfg.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshTimeout:    10 * time.Second,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				log.Warn().Err(err).Msg("failed to refresh google signing keys")
			},
		})
		if err != nil {
			g.keysErr = err
			return
		}
		g.jwks = jwks
	})
	if g.keysErr != nil {
		return nil, g.keysErr
	}
	return g.jwks.Keyfunc, nil
}

// Close stops the background key refresh.
func (g *GoogleClient) Close() {
	if g.jwks != nil {
		g.jwks.EndBackground()
	}
}

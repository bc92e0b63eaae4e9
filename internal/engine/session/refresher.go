package session

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"portal/internal/pkg/errors"
	"portal/internal/platform/auth"
)

// Refresher exchanges a refresh credential for a new pair. The server side
// verifies the credential against its stored row before issuing.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
}

// HTTPRefresher calls a remote portal's refresh endpoint.
type HTTPRefresher struct {
	client *resty.Client
	url    string
}

func NewHTTPRefresher(url string, timeout time.Duration) *HTTPRefresher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPRefresher{client: client, url: url}
}

func (h *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	var (
		pair   auth.TokenPair
		failed errors.ErrorResponse
	)
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"refresh_token": refreshToken}).
		SetResult(&pair).
		SetError(&failed).
		Post(h.url)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "refresh request failed", err)
	}

	if resp.IsError() {
		if resp.StatusCode() >= 500 {
			return nil, errors.New(errors.KindInternal, "refresh endpoint unavailable")
		}
		kind := errors.Kind(failed.Code)
		if kind == "" {
			kind = errors.KindInvalidOrExpiredToken
		}
		return nil, errors.New(kind, failed.Message)
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, errors.New(errors.KindMalformedToken, "refresh response carried no credentials")
	}
	return &pair, nil
}

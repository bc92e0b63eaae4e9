package storage

import (
	"context"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"portal/internal/platform/config"
	"portal/internal/platform/models"
)

// AssetURLs turns a stored whitelabel object path into a URL a browser can load.
type AssetURLs interface {
	URL(ctx context.Context, path string) (string, error)
}

// MinioAssets serves whitelabel assets from an S3-compatible bucket, either
// through a public base URL or as presigned GET links.
type MinioAssets struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	expiry        time.Duration
}

func NewMinioAssets(cfg config.StorageConfig) (*MinioAssets, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &MinioAssets{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		expiry:        expiry,
	}, nil
}

func (m *MinioAssets) URL(ctx context.Context, path string) (string, error) {
	if path == "" || isAbsolute(path) {
		return path, nil
	}
	path = strings.TrimLeft(path, "/")

	if m.publicBaseURL != "" {
		return m.publicBaseURL + "/" + m.bucket + "/" + path, nil
	}

	u, err := m.client.PresignedGetObject(ctx, m.bucket, path, m.expiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// StaticAssets joins paths onto a fixed base URL.
type StaticAssets struct {
	BaseURL string
}

func (s StaticAssets) URL(_ context.Context, path string) (string, error) {
	if path == "" || isAbsolute(path) {
		return path, nil
	}
	return strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

// WhiteLabelURLs resolves every populated asset slot of wl.
func WhiteLabelURLs(ctx context.Context, assets AssetURLs, wl *models.WhiteLabel) (map[string]string, error) {
	urls := map[string]string{}
	if wl == nil {
		return urls, nil
	}
	for slot, path := range wl.AssetPaths() {
		u, err := assets.URL(ctx, path)
		if err != nil {
			return nil, err
		}
		urls[slot] = u
	}
	return urls, nil
}

func isAbsolute(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

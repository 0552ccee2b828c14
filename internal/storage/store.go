package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"contactbook/internal/config"
)

// ErrForeignURL is returned by Delete for a url this store did not issue.
var ErrForeignURL = errors.New("url does not belong to this store")

// PhotoStore keeps contact photos and hands out their public urls.
type PhotoStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// New builds the backend selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (PhotoStore, error) {
	switch cfg.Driver {
	case "minio":
		store, err := NewObjectStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		return NewS3Store(ctx, cfg)
	case "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicURL)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}

// urlPrefix maps object keys to urls under a fixed prefix and back.
type urlPrefix string

func (p urlPrefix) url(key string) string {
	return string(p) + "/" + key
}

func (p urlPrefix) key(url string) (string, error) {
	key, ok := strings.CutPrefix(url, string(p)+"/")
	if !ok || key == "" || strings.Contains(key, "..") {
		return "", ErrForeignURL
	}
	return key, nil
}

func bucketPrefix(base string, bucket string) urlPrefix {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return urlPrefix(base + "/" + bucket)
}

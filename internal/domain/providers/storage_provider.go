package providers

import (
	"context"
	"io"
)

// ReportStorage persists uploaded report files under a key and exposes them by URL
type ReportStorage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

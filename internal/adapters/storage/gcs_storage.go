package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/eswasthya/portal/backend/internal/domain/providers"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

const gcsPublicHost = "https://storage.googleapis.com"

// GCSStorage keeps report files in a Google Cloud Storage bucket
type GCSStorage struct {
	client  *gcs.Client
	bucket  string
	baseURL string
}

var _ providers.ReportStorage = (*GCSStorage)(nil)

// NewGCSStorage connects to bucket. credentialsJSON is optional; without it
// application default credentials are used.
func NewGCSStorage(ctx context.Context, bucket, credentialsJSON string) (*GCSStorage, error) {
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("gcs bucket %q not found or not accessible: %w", bucket, err)
	}

	log.Info().Str("bucket", bucket).Msg("gcs report storage ready")
	return &GCSStorage{
		client:  client,
		bucket:  bucket,
		baseURL: fmt.Sprintf("%s/%s/", gcsPublicHost, bucket),
	}, nil
}

// Save uploads r under key
func (s *GCSStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) error {
	if !validKey(key) {
		return apperrors.NewValidationError("invalid storage key")
	}
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return apperrors.FromUpstream("failed to upload file", err)
	}
	if err := w.Close(); err != nil {
		return apperrors.FromUpstream("failed to upload file", err)
	}
	return nil
}

// Open downloads the object under key
func (s *GCSStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, apperrors.NewNotFoundError("File not found")
	}
	if err != nil {
		return nil, apperrors.FromUpstream("failed to read file", err)
	}
	return rc, nil
}

// Delete removes the object. Missing objects are not an error.
func (s *GCSStorage) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return apperrors.FromUpstream("failed to delete file", err)
	}
	return nil
}

// URL returns the public object URL
func (s *GCSStorage) URL(key string) string {
	return s.baseURL + key
}

// Close releases the client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

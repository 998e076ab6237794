package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/eswasthya/portal/backend/internal/domain/providers"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

// LocalStorage keeps report files on the local filesystem under root.
// Files are served by the API under baseURL.
type LocalStorage struct {
	root    string
	baseURL string
}

var _ providers.ReportStorage = (*LocalStorage)(nil)

// NewLocalStorage creates root if needed
func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &LocalStorage{root: root, baseURL: baseURL}, nil
}

// Save writes r to key. The file only appears once fully written.
func (s *LocalStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) error {
	dst, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperrors.NewInternalError("failed to create storage directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return apperrors.NewInternalError("failed to create file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return apperrors.FromUpstream("failed to write file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewInternalError("failed to write file", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return apperrors.NewInternalError("failed to store file", err)
	}
	return nil
}

// Open opens the file stored under key
func (s *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewNotFoundError("File not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to open file", err)
	}
	return f, nil
}

// Delete removes the file under key. Missing files are not an error.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.NewInternalError("failed to delete file", err)
	}
	return nil
}

// URL returns the public path of key
func (s *LocalStorage) URL(key string) string {
	return s.baseURL + strings.TrimPrefix(path.Clean("/"+key), "/")
}

func (s *LocalStorage) resolve(key string) (string, error) {
	if !validKey(key) {
		return "", apperrors.NewValidationError("invalid storage key")
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// validKey accepts relative slash-separated keys that stay inside the root
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	return fs.ValidPath(key)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

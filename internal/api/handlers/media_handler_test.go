package handlers_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eswasthya/portal/backend/internal/api/handlers"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

type stubMediaStorage struct {
	files map[string]string
	err   error
}

func (s *stubMediaStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) error {
	return nil
}

func (s *stubMediaStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	content, ok := s.files[key]
	if !ok {
		return nil, apperrors.NewNotFoundError("File not found")
	}
	// no Seek, like a bucket object reader
	return io.NopCloser(strings.NewReader(content)), nil
}

func (s *stubMediaStorage) Delete(ctx context.Context, key string) error { return nil }

func (s *stubMediaStorage) URL(key string) string { return "/media/" + key }

func TestMediaHandler(t *testing.T) {
	store := &stubMediaStorage{files: map[string]string{"reports/a.pdf": "%PDF"}}
	handler := handlers.NewMediaHandler(store)

	t.Run("streams file", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/a.pdf", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "%PDF", w.Body.String())
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	})

	t.Run("missing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/b.pdf", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		failing := handlers.NewMediaHandler(&stubMediaStorage{err: apperrors.NewInternalError("failed to open file", assert.AnError)})
		w := httptest.NewRecorder()
		failing.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/a.pdf", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), assert.AnError.Error())
	})
}

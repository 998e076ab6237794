package handlers

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

// MediaHandler streams stored report files. It expects the /media/ prefix
// to be stripped already.
type MediaHandler struct {
	storage providers.ReportStorage
}

// NewMediaHandler creates a handler over storage
func NewMediaHandler(storage providers.ReportStorage) *MediaHandler {
	return &MediaHandler{storage: storage}
}

func (h *MediaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	rc, err := h.storage.Open(r.Context(), key)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrorTypeNotFound) || apperrors.Is(err, apperrors.ErrorTypeValidation) {
			http.NotFound(w, r)
			return
		}
		handleError(w, r, err)
		return
	}
	defer rc.Close()

	name := path.Base(key)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}

	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if _, err := io.Copy(w, rc); err != nil {
		observability.LoggerFromContext(r.Context()).Warn().Err(err).Str("key", key).Msg("media stream interrupted")
	}
}

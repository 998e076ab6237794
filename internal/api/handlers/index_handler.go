package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// IndexHandler renders the portal landing page
type IndexHandler struct {
	version     string
	maxUploadMB int64
}

// NewIndexHandler creates a new index handler
func NewIndexHandler(version string, maxUploadBytes int64) *IndexHandler {
	return &IndexHandler{version: version, maxUploadMB: maxUploadBytes >> 20}
}

// Index handles GET /
func (h *IndexHandler) Index(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, map[string]interface{}{
		"Title":       "E-Swasthya+",
		"Version":     h.version,
		"MaxUploadMB": h.maxUploadMB,
	})
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("failed to render index")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

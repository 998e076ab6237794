package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
)

const defaultHeartbeat = 30 * time.Second

// SSEHandler streams completed emergency alerts to dashboards over Server-Sent Events
type SSEHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration
	clients   atomic.Int64
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{eventBus: eventBus, heartbeat: defaultHeartbeat}
}

// WithHeartbeat overrides the keep-alive interval
func (h *SSEHandler) WithHeartbeat(d time.Duration) *SSEHandler {
	h.heartbeat = d
	return h
}

// StreamAlerts handles GET /emergency-alerts/stream/
func (h *SSEHandler) StreamAlerts(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	events, err := h.eventBus.Subscribe(r.Context(), providers.EventChannelEmergencyAlerts)
	if err != nil {
		handleError(w, r, err)
		return
	}

	// the stream outlives the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	count := h.clients.Add(1)
	defer h.clients.Add(-1)
	logger.Debug().Int64("clients", count).Msg("alert stream client connected")

	h.sendEvent(w, r, "connected", map[string]interface{}{"timestamp": time.Now()})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Msg("alert stream client disconnected")
			return
		case <-ticker.C:
			h.sendEvent(w, r, "heartbeat", map[string]interface{}{"timestamp": time.Now()})
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			h.sendEvent(w, r, eventName(event), event)
			flusher.Flush()
		}
	}
}

// ClientCount returns the number of connected stream clients
func (h *SSEHandler) ClientCount() int64 {
	return h.clients.Load()
}

func eventName(event *entities.AlertEvent) string {
	return "alert." + string(event.AlertType)
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, r *http.Request, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("failed to marshal stream event")
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

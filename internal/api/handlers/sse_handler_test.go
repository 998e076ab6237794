package handlers_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eswasthya/portal/backend/internal/adapters/events"
	"github.com/eswasthya/portal/backend/internal/api/handlers"
	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
)

func readEvent(t *testing.T, reader *bufio.Reader) (string, string) {
	var name, data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestSSEHandler_StreamAlerts(t *testing.T) {
	bus := events.NewMemoryEventBus()
	defer bus.Close()
	handler := handlers.NewSSEHandler(bus).WithHeartbeat(time.Hour)

	server := httptest.NewServer(http.HandlerFunc(handler.StreamAlerts))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, reader)
	assert.Equal(t, "connected", name)
	assert.Equal(t, int64(1), handler.ClientCount())

	alert := &entities.EmergencyAlert{ID: "a1", AlertType: entities.AlertTypeFamily, Status: entities.AlertStatusCompleted}
	require.NoError(t, bus.Publish(ctx, providers.EventChannelEmergencyAlerts, entities.NewAlertEvent(alert, 2, time.Now())))

	name, data := readEvent(t, reader)
	assert.Equal(t, "alert.family", name)
	assert.Contains(t, data, `"alert_id":"a1"`)
	assert.Contains(t, data, `"notified":2`)
}

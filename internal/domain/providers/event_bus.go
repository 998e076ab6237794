package providers

import (
	"context"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
)

// EventChannelEmergencyAlerts carries every completed emergency alert
const EventChannelEmergencyAlerts = "emergency:alerts"

// EventBus defines the interface for publishing and subscribing to alert events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.AlertEvent) error

	// Subscribe subscribes to events on a channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.AlertEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

package events

import (
	"context"
	"sync"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
)

// MemoryEventBus delivers alert events within a single process. It is used
// when Redis is disabled.
type MemoryEventBus struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *entities.AlertEvent]struct{}
	closed      bool
}

var _ providers.EventBus = (*MemoryEventBus)(nil)

// NewMemoryEventBus creates an empty bus
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{subscribers: make(map[string]map[chan *entities.AlertEvent]struct{})}
}

// Publish delivers event to current subscribers of channel
func (b *MemoryEventBus) Publish(ctx context.Context, channel string, event *entities.AlertEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fanOut(channel, b.subscribers[channel], event)
	return nil
}

// Subscribe returns a channel that is closed when ctx is done
func (b *MemoryEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AlertEvent, error) {
	eventChan := make(chan *entities.AlertEvent, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(eventChan)
		return eventChan, nil
	}
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[chan *entities.AlertEvent]struct{})
	}
	b.subscribers[channel][eventChan] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(channel, eventChan)
	}()
	return eventChan, nil
}

// Unsubscribe closes every subscriber of channel
func (b *MemoryEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers[channel] {
		close(sub)
	}
	delete(b.subscribers, channel)
	return nil
}

// Close closes all subscribers
func (b *MemoryEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for channel, subs := range b.subscribers {
		for sub := range subs {
			close(sub)
		}
		delete(b.subscribers, channel)
	}
	b.closed = true
	return nil
}

func (b *MemoryEventBus) remove(channel string, eventChan chan *entities.AlertEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.subscribers[channel]
	if !ok {
		return
	}
	if _, ok := subs[eventChan]; !ok {
		return
	}
	delete(subs, eventChan)
	close(eventChan)
	if len(subs) == 0 {
		delete(b.subscribers, channel)
	}
}

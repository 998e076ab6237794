package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	redisclient "github.com/eswasthya/portal/backend/internal/infrastructure/clients/redis"
)

// subscriberBuffer is how many alert events a slow SSE client may lag behind
const subscriberBuffer = 32

// RedisEventBus fans alert events out across API replicas with Redis Pub/Sub.
// One Redis subscription per channel is shared by all local subscribers.
type RedisEventBus struct {
	client        *redisclient.Client
	subscriptions map[string]*redis.PubSub
	subscribers   map[string]map[chan *entities.AlertEvent]struct{}
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:        client,
		subscriptions: make(map[string]*redis.PubSub),
		subscribers:   make(map[string]map[chan *entities.AlertEvent]struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

var _ providers.EventBus = (*RedisEventBus)(nil)

// Publish publishes an event to all subscribers
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.AlertEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().Str("channel", channel).Str("event_id", event.ID).Str("alert_id", event.AlertID).Msg("published alert event")
	return nil
}

// Subscribe subscribes to events on a channel
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AlertEvent, error) {
	b.mu.Lock()

	if _, exists := b.subscriptions[channel]; !exists {
		pubsub := b.client.Client().Subscribe(b.ctx, channel)
		b.subscriptions[channel] = pubsub
		go b.receiveMessages(channel, pubsub)
	}

	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[chan *entities.AlertEvent]struct{})
	}

	eventChan := make(chan *entities.AlertEvent, subscriberBuffer)
	b.subscribers[channel][eventChan] = struct{}{}
	subscriberCount := len(b.subscribers[channel])
	b.mu.Unlock()

	log.Info().Str("channel", channel).Int("subscribers", subscriberCount).Msg("subscribed to event channel")

	go func() {
		<-ctx.Done()
		b.removeSubscriber(channel, eventChan)
	}()

	return eventChan, nil
}

// receiveMessages receives messages from Redis and broadcasts them to subscribers
func (b *RedisEventBus) receiveMessages(channel string, pubsub *redis.PubSub) {
	defer b.detach(channel, pubsub)

	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event entities.AlertEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable alert event")
				continue
			}

			b.mu.RLock()
			fanOut(channel, b.subscribers[channel], &event)
			b.mu.RUnlock()
		}
	}
}

func (b *RedisEventBus) removeSubscriber(channel string, eventChan chan *entities.AlertEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, exists := b.subscribers[channel]
	if !exists {
		return
	}

	if _, ok := subscribers[eventChan]; !ok {
		return
	}

	delete(subscribers, eventChan)
	close(eventChan)

	if len(subscribers) == 0 {
		delete(b.subscribers, channel)
		if pubsub, ok := b.subscriptions[channel]; ok {
			_ = pubsub.Close()
			delete(b.subscriptions, channel)
			log.Info().Str("channel", channel).Msg("closed event subscription")
		}
	}
}

// detach drops the channel's subscribers once its receive loop ends, unless
// a newer subscription has already replaced pubsub.
func (b *RedisEventBus) detach(channel string, pubsub *redis.PubSub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscriptions[channel] != pubsub {
		return
	}
	if err := b.cleanupLocked(channel); err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("failed to clean up event channel")
	}
}

func (b *RedisEventBus) cleanupChannel(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cleanupLocked(channel)
}

func (b *RedisEventBus) cleanupLocked(channel string) error {
	if subscribers, exists := b.subscribers[channel]; exists {
		for subscriber := range subscribers {
			close(subscriber)
		}
		delete(b.subscribers, channel)
	}

	pubsub, ok := b.subscriptions[channel]
	if !ok {
		return nil
	}
	delete(b.subscriptions, channel)
	if err := pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	log.Info().Str("channel", channel).Msg("closed event subscription")
	return nil
}

// Unsubscribe unsubscribes from a channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	if err := b.cleanupChannel(channel); err != nil {
		return err
	}
	log.Info().Str("channel", channel).Msg("unsubscribed from event channel")
	return nil
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.RLock()
	channels := make([]string, 0, len(b.subscriptions))
	for channel := range b.subscriptions {
		channels = append(channels, channel)
	}
	b.mu.RUnlock()

	var errs []error
	for _, channel := range channels {
		if err := b.cleanupChannel(channel); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("errors closing event bus: %w", err)
	}

	log.Info().Msg("event bus closed")
	return nil
}

// fanOut delivers event to every subscriber without blocking. Caller holds the read lock.
func fanOut(channel string, subscribers map[chan *entities.AlertEvent]struct{}, event *entities.AlertEvent) {
	for subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber buffer full, skipping event")
		}
	}
}

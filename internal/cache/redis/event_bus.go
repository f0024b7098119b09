package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
)

// EventBus fans match events out to every server instance over one Redis
// Pub/Sub channel.
type EventBus struct {
	rdb     *redis.Client
	channel string
	log     *slog.Logger
}

// NewEventBus creates an EventBus publishing on channel.
func NewEventBus(c *Client, channel string, logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{rdb: c.rdb, channel: channel, log: logger.With("component", "event_bus")}
}

// PublishMatchEvent implements service.Publisher.
func (b *EventBus) PublishMatchEvent(ctx context.Context, ev *domain.MatchEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: encode event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe returns a channel of decoded events. The subscription and the
// returned channel are closed when ctx is cancelled. Undecodable payloads
// are logged and skipped.
func (b *EventBus) Subscribe(ctx context.Context) (<-chan *domain.MatchEvent, error) {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", b.channel, err)
	}

	out := make(chan *domain.MatchEvent, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev domain.MatchEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn("dropping malformed event", "err", err)
					continue
				}
				select {
				case out <- &ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Forward relays every event received on the bus to sink until ctx ends.
// It is how each instance feeds its local WebSocket hub.
func (b *EventBus) Forward(ctx context.Context, sink service.Publisher) error {
	events, err := b.Subscribe(ctx)
	if err != nil {
		return err
	}
	for ev := range events {
		if err := sink.PublishMatchEvent(ctx, ev); err != nil {
			b.log.Warn("forward event failed", "type", ev.Type, "err", err)
		}
	}
	return nil
}

var _ service.Publisher = (*EventBus)(nil)

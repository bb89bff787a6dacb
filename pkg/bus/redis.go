package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/alertkit/pkg/logger"
)

// RedisBus fans delivery events out across processes via Redis pub/sub, so
// realtime transport nodes on other hosts see escalations and status
// changes.
type RedisBus struct {
	client    redis.UniversalClient
	channel   string
	logger    *slog.Logger
	closeOnce sync.Once
	closed    chan struct{}
}

// RedisBusOption configures a RedisBus.
type RedisBusOption func(*RedisBus)

// WithChannel overrides the default "alertkit:events" pub/sub channel.
func WithChannel(channel string) RedisBusOption {
	return func(b *RedisBus) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithLogger sets the logger used for subscription decode failures.
func WithLogger(log *slog.Logger) RedisBusOption {
	return func(b *RedisBus) {
		if log != nil {
			b.logger = log
		}
	}
}

// NewRedisBus creates a Redis-backed event bus.
func NewRedisBus(client redis.UniversalClient, opts ...RedisBusOption) (*RedisBus, error) {
	if client == nil {
		return nil, ErrClientRequired
	}

	b := &RedisBus{
		client:  client,
		channel: "alertkit:events",
		logger:  slog.Default(),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	select {
	case <-b.closed:
		return ErrBusClosed
	default:
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event to redis: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	select {
	case <-b.closed:
		return nil, ErrBusClosed
	default:
	}

	sub := b.client.Subscribe(ctx, b.channel)
	out := make(chan Event, 64)

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.closed:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.LogAttrs(ctx, slog.LevelWarn, "dropping undecodable bus event",
						logger.Error(err),
					)
					continue
				}
				select {
				case out <- event:
				default:
					// Subscriber buffer full: drop rather than block.
				}
			}
		}
	}()

	return out, nil
}

func (b *RedisBus) Close() error {
	b.closeOnce.Do(func() {
		close(b.closed)
	})
	return nil
}

// Package redisfeed delivers telemetry from Redis pub/sub channels.
package redisfeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arrowdash/engine/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrSubscriptionClosed is returned when the pub/sub channel closes while
// the context is still live.
var ErrSubscriptionClosed = errors.New("redis subscription closed")

// Config selects the Redis server and the channel patterns to follow.
type Config struct {
	Address  string
	Password string
	DB       int
	// Patterns are Redis PSUBSCRIBE globs, e.g. "vehicles/*".
	Patterns []string
}

// Feed is a telemetry.Feed backed by a Redis client.
type Feed struct {
	client   *redis.Client
	patterns []string
	logger   zerolog.Logger
}

var _ telemetry.Feed = (*Feed)(nil)

// New creates a feed with its own client. Nothing connects until Run.
func New(cfg Config, logger zerolog.Logger) *Feed {
	opts := &redis.Options{
		Addr: cfg.Address,
		DB:   cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	return NewWithClient(redis.NewClient(opts), cfg.Patterns, logger)
}

// NewWithClient wraps an existing client. Close closes it.
func NewWithClient(client *redis.Client, patterns []string, logger zerolog.Logger) *Feed {
	return &Feed{
		client:   client,
		patterns: append([]string(nil), patterns...),
		logger:   logger.With().Str("feed", "redis").Logger(),
	}
}

// Run subscribes to the configured patterns and delivers every message
// until ctx is cancelled. Connection and subscription failures are
// returned, not retried.
func (f *Feed) Run(ctx context.Context, deliver func(telemetry.Message)) error {
	if len(f.patterns) == 0 {
		return errors.New("redis feed: no patterns configured")
	}
	if err := f.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to redis %s: %w", f.client.Options().Addr, err)
	}

	pubsub := f.client.PSubscribe(ctx, f.patterns...)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %v: %w", f.patterns, err)
	}
	f.logger.Info().Strs("patterns", f.patterns).Msg("subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSubscriptionClosed
			}
			deliver(toMessage(msg, time.Now()))
		}
	}
}

// Close releases the underlying client.
func (f *Feed) Close() error {
	return f.client.Close()
}

func toMessage(msg *redis.Message, received time.Time) telemetry.Message {
	return telemetry.Message{
		Topic:    msg.Channel,
		Payload:  []byte(msg.Payload),
		Received: received,
	}
}

package realtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/config"
)

// RedisBroadcaster publishes notifications on Redis so every process relays
// them to its own hub.
type RedisBroadcaster struct {
	client *redis.Client
	cfg    config.RedisConfig
	local  *Hub
	topics []string
	logger *zap.Logger
}

// NewRedisBroadcaster builds a broadcaster relaying the given topics.
func NewRedisBroadcaster(client *redis.Client, cfg config.RedisConfig, local *Hub, logger *zap.Logger, topics ...string) *RedisBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroadcaster{
		client: client,
		cfg:    cfg,
		local:  local,
		topics: topics,
		logger: logger.Named("redis_relay"),
	}
}

// BroadcastAll publishes the frame. When Redis is unreachable the frame is
// still delivered to local connections and the publish error is returned.
func (b *RedisBroadcaster) BroadcastAll(ctx context.Context, topic string, payload any) error {
	data, err := EncodeFrame(topic, payload)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.cfg.Channel(topic), data).Err(); err != nil {
		b.local.Deliver(data)
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Run relays subscribed channels to the local hub until ctx is cancelled.
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	channels := make([]string, 0, len(b.topics))
	for _, topic := range b.topics {
		channels = append(channels, b.cfg.Channel(topic))
	}

	sub := b.client.Subscribe(ctx, channels...)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %v: %w", channels, err)
	}
	b.logger.Info("relaying channels", zap.Strings("channels", channels))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.local.Deliver([]byte(msg.Payload))
		}
	}
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskflow/backend/domain"
)

// RedisBridge shares events between service instances over Redis pub/sub.
// Published events reach the local hub through the subscription, so every
// instance (including the publisher) delivers exactly once.
type RedisBridge struct {
	client  redislib.UniversalClient
	channel string
	hub     *Hub
	logger  *zap.Logger
	ready   chan struct{}
}

func NewRedisBridge(client redislib.UniversalClient, channel string, hub *Hub, logger *zap.Logger) *RedisBridge {
	if channel == "" {
		channel = "taskflow:realtime"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// Publish sends ev to Redis. If Redis is unreachable the event is still
// delivered to local subscribers. The audience travels with the event so
// every instance filters its own streams.
func (b *RedisBridge) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn("redis publish failed, delivering locally", zap.Error(err))
		b.hub.Broadcast(ev)
		return nil
	}
	return nil
}

// Ready is closed once the Redis subscription is confirmed.
func (b *RedisBridge) Ready() <-chan struct{} {
	return b.ready
}

// Run consumes the Redis channel until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	close(b.ready)
	b.logger.Info("realtime bridge subscribed", zap.String("channel", b.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.deliver(msg.Payload)
		}
	}
}

// deliver hands one Redis message to local subscribers.
func (b *RedisBridge) deliver(payload string) {
	var ev domain.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		b.logger.Warn("discarding malformed realtime message", zap.Error(err))
		return
	}
	b.hub.Broadcast(ev)
}

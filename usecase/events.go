package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/taskflow/backend/domain"
)

// EventPublisher pushes realtime events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// PublishDocument emits a document change event visible to audience.
// Failures are logged, never returned: the write already succeeded and
// realtime delivery is best effort.
func PublishDocument(ctx context.Context, pub EventPublisher, logger *zap.Logger, audience domain.Audience, collection, id, action string, payload interface{}) {
	if pub == nil {
		return
	}
	ev, err := domain.NewDocumentEvent(collection, id, action, payload)
	if err != nil {
		logger.Warn("failed to encode realtime event", zap.String("collection", collection), zap.Error(err))
		return
	}
	ev.Audience = &audience
	if err := pub.Publish(ctx, ev); err != nil {
		logger.Warn("failed to publish realtime event",
			zap.String("collection", collection),
			zap.String("action", action),
			zap.Error(err))
	}
}

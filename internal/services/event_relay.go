package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/usecase"
	"github.com/taskflow/backend/usecase/notify"
)

// EventHandler reacts to published document events.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev domain.Event) notify.Result
}

// EventRelay publishes document events and hands each one to the
// notification dispatcher on the instance that produced it, so a cluster
// sharing a Redis channel notifies once per write.
type EventRelay struct {
	next    usecase.EventPublisher
	handler EventHandler
	logger  *zap.Logger
}

func NewEventRelay(next usecase.EventPublisher, handler EventHandler, logger *zap.Logger) *EventRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventRelay{next: next, handler: handler, logger: logger}
}

func (r *EventRelay) Publish(ctx context.Context, ev domain.Event) error {
	var err error
	if r.next != nil {
		err = r.next.Publish(ctx, ev)
	}
	if r.handler != nil {
		res := r.handler.HandleEvent(context.WithoutCancel(ctx), ev)
		if res.Notified > 0 {
			r.logger.Debug("event relayed to notifications",
				zap.Strings("events", ev.Events),
				zap.Int("notified", res.Notified))
		}
	}
	return err
}

var _ usecase.EventPublisher = (*EventRelay)(nil)

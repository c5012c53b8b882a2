package allocation

import (
	"context"

	"github.com/dealflow/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// publishEvents publishes pending domain events. A publish failure is
// logged and does not fail the operation that raised the events.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, log *zap.Logger, events []shared.DomainEvent) {
	if publisher == nil {
		return
	}
	for _, event := range events {
		if err := publisher.Publish(ctx, event); err != nil {
			log.Warn("domain event publish failed",
				zap.String("event_type", event.EventType()),
				zap.String("aggregate_id", event.AggregateID().String()),
				zap.Error(err))
		}
	}
}

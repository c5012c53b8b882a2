package calendar

import (
	"context"

	"github.com/dealflow/backend/internal/domain/allocation"
	"github.com/dealflow/backend/internal/domain/calendar"
	"github.com/dealflow/backend/internal/domain/scheduling"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CacheInvalidationHandler drops cached feeds when one of their source
// records changes. Subscribed on the event bus for every event that can
// move, add or remove a calendar entry.
type CacheInvalidationHandler struct {
	cache          calendar.FeedCache
	allocationRepo allocation.AllocationRepository
	logger         *zap.Logger
}

// NewCacheInvalidationHandler creates a new cache invalidation handler
func NewCacheInvalidationHandler(
	cache calendar.FeedCache,
	allocationRepo allocation.AllocationRepository,
	logger *zap.Logger,
) *CacheInvalidationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheInvalidationHandler{
		cache:          cache,
		allocationRepo: allocationRepo,
		logger:         logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *CacheInvalidationHandler) EventTypes() []string {
	return []string{
		allocation.EventTypeCapitalCallScheduled,
		allocation.EventTypeCapitalCallCompleted,
		allocation.EventTypeCapitalCallRescheduled,
		allocation.EventTypePaymentProcessed,
		scheduling.EventTypeClosingEventScheduled,
		scheduling.EventTypeClosingEventChanged,
		scheduling.EventTypeMeetingScheduled,
		scheduling.EventTypeMeetingChanged,
	}
}

// Handle invalidates the cached feeds for the deal the event touches.
// Capital call events carry only the allocation id, so the owning deal is
// resolved first; when that fails every feed is dropped rather than risk
// serving a stale one.
func (h *CacheInvalidationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.cache == nil {
		return nil
	}

	switch e := event.(type) {
	case *allocation.PaymentProcessedEvent:
		return h.invalidateDeal(ctx, e.DealID)
	case *scheduling.ClosingEventScheduledEvent:
		return h.invalidateDeal(ctx, e.DealID)
	case *scheduling.ClosingEventChangedEvent:
		return h.invalidateDeal(ctx, e.DealID)
	case *scheduling.MeetingScheduledEvent:
		return h.invalidateDeal(ctx, e.DealID)
	case *scheduling.MeetingChangedEvent:
		return h.invalidateDeal(ctx, e.DealID)
	case *allocation.CapitalCallScheduledEvent:
		return h.invalidateForAllocation(ctx, e.AllocationID)
	case *allocation.CapitalCallCompletedEvent:
		return h.invalidateForAllocation(ctx, e.AllocationID)
	case *allocation.CapitalCallRescheduledEvent:
		return h.invalidateForAllocation(ctx, e.AllocationID)
	default:
		return h.cache.InvalidateAll(ctx)
	}
}

func (h *CacheInvalidationHandler) invalidateDeal(ctx context.Context, dealID uuid.UUID) error {
	if err := h.cache.InvalidateDeal(ctx, dealID); err != nil {
		h.logger.Warn("calendar cache invalidation failed",
			zap.String("deal_id", dealID.String()),
			zap.Error(err))
		return err
	}
	return nil
}

func (h *CacheInvalidationHandler) invalidateForAllocation(ctx context.Context, allocationID uuid.UUID) error {
	a, err := h.allocationRepo.FindByID(ctx, allocationID)
	if err != nil || a == nil {
		if err != nil {
			h.logger.Warn("could not resolve allocation for cache invalidation",
				zap.String("allocation_id", allocationID.String()),
				zap.Error(err))
		}
		return h.cache.InvalidateAll(ctx)
	}
	return h.invalidateDeal(ctx, a.DealID)
}

// Ensure CacheInvalidationHandler implements EventHandler
var _ shared.EventHandler = (*CacheInvalidationHandler)(nil)

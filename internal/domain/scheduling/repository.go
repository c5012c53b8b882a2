package scheduling

import (
	"context"

	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ScheduleFilter defines filtering options for scheduling queries
type ScheduleFilter struct {
	shared.Filter
	DealID *uuid.UUID            `json:"deal_id,omitempty"`
	Status *ScheduleStatus       `json:"status,omitempty"`
	From   *valueobject.DateOnly `json:"from,omitempty"`
	To     *valueobject.DateOnly `json:"to,omitempty"`
}

// ClosingEventRepository defines the interface for closing timeline persistence
type ClosingEventRepository interface {
	// FindByID finds a closing event by its ID. Returns nil without error
	// when no row exists.
	FindByID(ctx context.Context, id uuid.UUID) (*ClosingScheduleEvent, error)

	// FindByDealID finds all closing events for a deal
	FindByDealID(ctx context.Context, dealID uuid.UUID) ([]ClosingScheduleEvent, error)

	// FindAll finds all closing events matching the filter
	FindAll(ctx context.Context, filter ScheduleFilter) ([]ClosingScheduleEvent, error)

	// FindBetween finds closing events with an effective date inside the range
	FindBetween(ctx context.Context, from, to valueobject.DateOnly) ([]ClosingScheduleEvent, error)

	// Save creates or updates a closing event
	Save(ctx context.Context, event *ClosingScheduleEvent) error

	// Delete deletes a closing event
	Delete(ctx context.Context, id uuid.UUID) error

	// Count counts closing events matching the filter
	Count(ctx context.Context, filter ScheduleFilter) (int64, error)
}

// MeetingRepository defines the interface for meeting persistence
type MeetingRepository interface {
	// FindByID finds a meeting by its ID. Returns nil without error when
	// no row exists.
	FindByID(ctx context.Context, id uuid.UUID) (*Meeting, error)

	// FindByDealID finds all meetings for a deal
	FindByDealID(ctx context.Context, dealID uuid.UUID) ([]Meeting, error)

	// FindAll finds all meetings matching the filter
	FindAll(ctx context.Context, filter ScheduleFilter) ([]Meeting, error)

	// FindBetween finds meetings dated inside the range
	FindBetween(ctx context.Context, from, to valueobject.DateOnly) ([]Meeting, error)

	// Save creates or updates a meeting
	Save(ctx context.Context, meeting *Meeting) error

	// Delete deletes a meeting
	Delete(ctx context.Context, id uuid.UUID) error

	// Count counts meetings matching the filter
	Count(ctx context.Context, filter ScheduleFilter) (int64, error)
}

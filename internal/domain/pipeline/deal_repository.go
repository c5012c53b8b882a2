package pipeline

import (
	"context"

	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DealFilter defines filtering options for deal queries
type DealFilter struct {
	shared.Filter
	Stage  *DealStage `json:"stage,omitempty"`
	Sector *string    `json:"sector,omitempty"`
}

// DealRepository defines the interface for deal persistence
type DealRepository interface {
	// FindByID finds a deal by its ID. Returns nil without error when no
	// row exists.
	FindByID(ctx context.Context, id uuid.UUID) (*Deal, error)

	// FindByIDs finds multiple deals by their IDs
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Deal, error)

	// FindAll finds all deals matching the filter
	FindAll(ctx context.Context, filter DealFilter) ([]Deal, error)

	// FindByStage finds all deals in a specific stage
	FindByStage(ctx context.Context, stage DealStage, filter shared.Filter) ([]Deal, error)

	// Save creates or updates a deal
	Save(ctx context.Context, deal *Deal) error

	// SaveWithLock updates a deal with optimistic locking
	SaveWithLock(ctx context.Context, deal *Deal) error

	// Delete deletes a deal
	Delete(ctx context.Context, id uuid.UUID) error

	// Count counts deals matching the filter
	Count(ctx context.Context, filter DealFilter) (int64, error)
}

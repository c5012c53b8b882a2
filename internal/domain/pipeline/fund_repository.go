package pipeline

import (
	"context"

	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// FundFilter defines filtering options for fund queries
type FundFilter struct {
	shared.Filter
	Status  *FundStatus `json:"status,omitempty"`
	Vintage *int        `json:"vintage,omitempty"`
}

// FundRepository defines the interface for fund persistence
type FundRepository interface {
	// FindByID finds a fund by its ID. Returns nil without error when no
	// row exists.
	FindByID(ctx context.Context, id uuid.UUID) (*Fund, error)

	// FindByIDs finds multiple funds by their IDs
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Fund, error)

	// FindAll finds all funds matching the filter
	FindAll(ctx context.Context, filter FundFilter) ([]Fund, error)

	// Save creates or updates a fund
	Save(ctx context.Context, fund *Fund) error

	// SaveWithLock updates a fund with optimistic locking
	SaveWithLock(ctx context.Context, fund *Fund) error

	// Delete deletes a fund
	Delete(ctx context.Context, id uuid.UUID) error

	// Count counts funds matching the filter
	Count(ctx context.Context, filter FundFilter) (int64, error)
}

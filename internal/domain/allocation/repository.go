package allocation

import (
	"context"

	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationFilter defines filtering options for allocation queries
type AllocationFilter struct {
	shared.Filter
	FundID         *uuid.UUID        // Filter by fund
	DealID         *uuid.UUID        // Filter by deal
	Status         *AllocationStatus // Filter by lifecycle status
	SecurityType   *SecurityType     // Filter by instrument type
	RequiresReview *bool             // Filter allocations flagged for manual review
	MinCommitted   *decimal.Decimal  // Filter by minimum committed amount
	MaxCommitted   *decimal.Decimal  // Filter by maximum committed amount
}

// FundTotals aggregates the financial position of one fund across its
// allocations
type FundTotals struct {
	TotalCommitted   decimal.Decimal
	TotalPaid        decimal.Decimal
	TotalOutstanding decimal.Decimal
	AllocationCount  int64
}

// AllocationRepository defines the interface for fund allocation persistence
type AllocationRepository interface {
	// FindByID finds an allocation by ID. Returns nil without error when no
	// row exists.
	FindByID(ctx context.Context, id uuid.UUID) (*FundAllocation, error)

	// FindByIDs finds allocations for a set of IDs in one query. The result
	// carries only the rows that exist; missing IDs are simply absent.
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]FundAllocation, error)

	// FindByDealID finds all allocations for a deal
	FindByDealID(ctx context.Context, dealID uuid.UUID) ([]FundAllocation, error)

	// FindByFundID finds all allocations for a fund
	FindByFundID(ctx context.Context, fundID uuid.UUID) ([]FundAllocation, error)

	// FindAll finds allocations with filtering and pagination
	FindAll(ctx context.Context, filter AllocationFilter) ([]FundAllocation, error)

	// FindAllIDs returns the IDs of every allocation, ordered by creation
	// time, for streaming scans
	FindAllIDs(ctx context.Context) ([]uuid.UUID, error)

	// Save creates or updates an allocation
	Save(ctx context.Context, a *FundAllocation) error

	// SaveWithLock saves with optimistic locking (version check). Returns
	// an OPTIMISTIC_LOCK_ERROR domain error when the stored version does
	// not match.
	SaveWithLock(ctx context.Context, a *FundAllocation) error

	// Count counts allocations matching the filter
	Count(ctx context.Context, filter AllocationFilter) (int64, error)

	// CountByStatus counts allocations in the given status, optionally
	// scoped to a fund (nil fundID counts across all funds)
	CountByStatus(ctx context.Context, fundID *uuid.UUID, status AllocationStatus) (int64, error)

	// SumTotalsByFund aggregates committed, paid, and outstanding amounts
	// across a fund's allocations
	SumTotalsByFund(ctx context.Context, fundID uuid.UUID) (*FundTotals, error)

	// ExistsActiveForFundAndDeal reports whether a non-defaulted allocation
	// already links the fund and deal
	ExistsActiveForFundAndDeal(ctx context.Context, fundID, dealID uuid.UUID) (bool, error)
}

// CapitalCallFilter defines filtering options for capital call queries
type CapitalCallFilter struct {
	shared.Filter
	AllocationID *uuid.UUID            // Filter by owning allocation
	DealID       *uuid.UUID            // Filter by deal (joined through allocations)
	Status       *CallStatus           // Filter by status
	DueFrom      *valueobject.DateOnly // Filter by due date range start
	DueTo        *valueobject.DateOnly // Filter by due date range end
}

// CapitalCallRepository defines the interface for capital call persistence
type CapitalCallRepository interface {
	// FindByID finds a capital call by ID. Returns nil without error when no
	// row exists.
	FindByID(ctx context.Context, id uuid.UUID) (*CapitalCall, error)

	// FindByAllocationID finds all calls against an allocation
	FindByAllocationID(ctx context.Context, allocationID uuid.UUID) ([]CapitalCall, error)

	// FindOpenByAllocationIDs returns, for each given allocation ID, whether
	// at least one open call exists. Allocation IDs with no open call are
	// absent from the map.
	FindOpenByAllocationIDs(ctx context.Context, allocationIDs []uuid.UUID) (map[uuid.UUID]bool, error)

	// FindByDealID finds all calls for a deal's allocations
	FindByDealID(ctx context.Context, dealID uuid.UUID) ([]CapitalCall, error)

	// FindAll finds capital calls with filtering and pagination
	FindAll(ctx context.Context, filter CapitalCallFilter) ([]CapitalCall, error)

	// FindDueBetween finds open calls whose due date falls in the range
	FindDueBetween(ctx context.Context, from, to valueobject.DateOnly) ([]CapitalCall, error)

	// Save creates or updates a capital call
	Save(ctx context.Context, c *CapitalCall) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, c *CapitalCall) error

	// SaveScheduled persists a newly created call together with the
	// allocation's flip to called in a single transaction. A version
	// conflict on the allocation rolls the call row back too, so a retried
	// schedule never leaves a duplicate call behind. A nil allocation
	// writes only the call row.
	SaveScheduled(ctx context.Context, c *CapitalCall, a *FundAllocation) error

	// SaveSettlement persists a settled call together with the paid
	// allocation in a single transaction, both under version checks.
	// Completing a call and recording its payment are never two separate
	// writes. A nil allocation writes only the call row (settlement against
	// payments that were already recorded).
	SaveSettlement(ctx context.Context, c *CapitalCall, a *FundAllocation) error

	// Count counts capital calls matching the filter
	Count(ctx context.Context, filter CapitalCallFilter) (int64, error)

	// CountOpenByAllocationID counts open calls against an allocation
	CountOpenByAllocationID(ctx context.Context, allocationID uuid.UUID) (int64, error)

	// GenerateCallNumber generates a unique human-readable call number
	GenerateCallNumber(ctx context.Context) (string, error)
}

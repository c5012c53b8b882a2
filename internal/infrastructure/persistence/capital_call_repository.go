package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealflow/backend/internal/domain/allocation"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/dealflow/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CapitalCallSortFields contains allowed sort fields for capital calls
var CapitalCallSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"call_number": true,
	"call_date":   true,
	"due_date":    true,
	"call_amount": true,
	"status":      true,
}

// openCallStatuses are the statuses in which a call still demands money
var openCallStatuses = []allocation.CallStatus{
	allocation.CallStatusScheduled,
	allocation.CallStatusCalled,
	allocation.CallStatusPartiallyPaid,
}

// GormCapitalCallRepository implements CapitalCallRepository using GORM
type GormCapitalCallRepository struct {
	db *gorm.DB
}

// NewGormCapitalCallRepository creates a new GormCapitalCallRepository
func NewGormCapitalCallRepository(db *gorm.DB) *GormCapitalCallRepository {
	return &GormCapitalCallRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormCapitalCallRepository) WithTx(tx *gorm.DB) *GormCapitalCallRepository {
	return &GormCapitalCallRepository{db: tx}
}

// FindByID finds a capital call by its ID
func (r *GormCapitalCallRepository) FindByID(ctx context.Context, id uuid.UUID) (*allocation.CapitalCall, error) {
	var model models.CapitalCallModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByAllocationID finds all calls against an allocation
func (r *GormCapitalCallRepository) FindByAllocationID(ctx context.Context, allocationID uuid.UUID) ([]allocation.CapitalCall, error) {
	var callModels []models.CapitalCallModel
	if err := r.db.WithContext(ctx).
		Where("allocation_id = ?", allocationID).
		Order("call_date ASC, created_at ASC").
		Find(&callModels).Error; err != nil {
		return nil, err
	}
	return toDomainCalls(callModels), nil
}

// FindOpenByAllocationIDs reports which of the given allocations have at
// least one open call. Allocations without one are absent from the map.
func (r *GormCapitalCallRepository) FindOpenByAllocationIDs(ctx context.Context, allocationIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool)
	if len(allocationIDs) == 0 {
		return result, nil
	}

	var openIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.CapitalCallModel{}).
		Distinct("allocation_id").
		Where("allocation_id IN ? AND status IN ?", allocationIDs, openCallStatuses).
		Pluck("allocation_id", &openIDs).Error; err != nil {
		return nil, err
	}

	for _, id := range openIDs {
		result[id] = true
	}
	return result, nil
}

// FindByDealID finds all calls issued against a deal's allocations
func (r *GormCapitalCallRepository) FindByDealID(ctx context.Context, dealID uuid.UUID) ([]allocation.CapitalCall, error) {
	var callModels []models.CapitalCallModel
	if err := r.db.WithContext(ctx).
		Joins("JOIN fund_allocations ON fund_allocations.id = capital_calls.allocation_id").
		Where("fund_allocations.deal_id = ?", dealID).
		Order("capital_calls.call_date ASC").
		Find(&callModels).Error; err != nil {
		return nil, err
	}
	return toDomainCalls(callModels), nil
}

// FindAll finds capital calls matching the filter
func (r *GormCapitalCallRepository) FindAll(ctx context.Context, filter allocation.CapitalCallFilter) ([]allocation.CapitalCall, error) {
	var callModels []models.CapitalCallModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.CapitalCallModel{}), filter)

	if err := query.Find(&callModels).Error; err != nil {
		return nil, err
	}
	return toDomainCalls(callModels), nil
}

// FindDueBetween finds open calls whose due date falls in the range
func (r *GormCapitalCallRepository) FindDueBetween(ctx context.Context, from, to valueobject.DateOnly) ([]allocation.CapitalCall, error) {
	var callModels []models.CapitalCallModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND due_date BETWEEN ? AND ?", openCallStatuses, from, to).
		Order("due_date ASC").
		Find(&callModels).Error; err != nil {
		return nil, err
	}
	return toDomainCalls(callModels), nil
}

// Save creates or updates a capital call
func (r *GormCapitalCallRepository) Save(ctx context.Context, c *allocation.CapitalCall) error {
	model := models.CapitalCallModelFromDomain(c)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves a capital call with optimistic locking (version check)
func (r *GormCapitalCallRepository) SaveWithLock(ctx context.Context, c *allocation.CapitalCall) error {
	model := models.CapitalCallModelFromDomain(c)
	result := r.db.WithContext(ctx).
		Model(&models.CapitalCallModel{}).
		Where("id = ? AND version = ?", c.ID, c.Version-1).
		Updates(map[string]any{
			"call_date":   model.CallDate,
			"due_date":    model.DueDate,
			"status":      model.Status,
			"paid_date":   model.PaidDate,
			"paid_amount": model.PaidAmount,
			"notes":       model.Notes,
			"version":     model.Version,
			"updated_at":  time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		r.db.WithContext(ctx).Model(&models.CapitalCallModel{}).Where("id = ?", c.ID).Count(&count)
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The capital call has been modified by another transaction")
	}
	return nil
}

// SaveSettlement persists a settled call together with the paid allocation
// in one transaction. Both writes run under their own version checks, so a
// concurrent payment rolls the whole settlement back. A nil allocation
// writes only the call row.
func (r *GormCapitalCallRepository) SaveSettlement(ctx context.Context, c *allocation.CapitalCall, a *allocation.FundAllocation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.WithTx(tx).SaveWithLock(ctx, c); err != nil {
			return err
		}
		if a != nil {
			if err := NewGormAllocationRepository(tx).SaveWithLock(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveScheduled persists a newly created call together with the
// allocation's flip to called in one transaction. A version conflict on
// the allocation rolls the call row back too. A nil allocation writes only
// the call row.
func (r *GormCapitalCallRepository) SaveScheduled(ctx context.Context, c *allocation.CapitalCall, a *allocation.FundAllocation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.WithTx(tx).Save(ctx, c); err != nil {
			return err
		}
		if a != nil {
			if err := NewGormAllocationRepository(tx).SaveWithLock(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count counts capital calls matching the filter
func (r *GormCapitalCallRepository) Count(ctx context.Context, filter allocation.CapitalCallFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.CapitalCallModel{})
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountOpenByAllocationID counts open calls against an allocation
func (r *GormCapitalCallRepository) CountOpenByAllocationID(ctx context.Context, allocationID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.CapitalCallModel{}).
		Where("allocation_id = ? AND status IN ?", allocationID, openCallStatuses).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GenerateCallNumber generates the next call number for today, in the form
// CC-YYYYMMDD-NNNNN. Calls are never deleted, so a per-day count is stable.
func (r *GormCapitalCallRepository) GenerateCallNumber(ctx context.Context) (string, error) {
	var count int64
	today := time.Now().Format("20060102")

	if err := r.db.WithContext(ctx).Model(&models.CapitalCallModel{}).
		Where("call_number LIKE ?", fmt.Sprintf("CC-%s-%%", today)).
		Count(&count).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("CC-%s-%05d", today, count+1), nil
}

// applyFilter applies filter conditions, sorting, and pagination to the query
func (r *GormCapitalCallRepository) applyFilter(query *gorm.DB, filter allocation.CapitalCallFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	// Columns are qualified because the deal filter joins the allocations table
	sortField := ValidateSortField(filter.OrderBy, CapitalCallSortFields, "call_date")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("capital_calls.%s %s", sortField, sortOrder))

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		offset := (filter.Page - 1) * filter.PageSize
		if offset > 0 {
			query = query.Offset(offset)
		}
	}

	return query
}

// applyFilterWithoutPagination applies filter conditions without pagination
func (r *GormCapitalCallRepository) applyFilterWithoutPagination(query *gorm.DB, filter allocation.CapitalCallFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("(capital_calls.call_number ILIKE ? OR capital_calls.notes ILIKE ?)", searchPattern, searchPattern)
	}

	if filter.AllocationID != nil {
		query = query.Where("capital_calls.allocation_id = ?", *filter.AllocationID)
	}
	if filter.DealID != nil {
		query = query.
			Joins("JOIN fund_allocations ON fund_allocations.id = capital_calls.allocation_id").
			Where("fund_allocations.deal_id = ?", *filter.DealID)
	}
	if filter.Status != nil {
		query = query.Where("capital_calls.status = ?", *filter.Status)
	}
	if filter.DueFrom != nil {
		query = query.Where("capital_calls.due_date >= ?", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		query = query.Where("capital_calls.due_date <= ?", *filter.DueTo)
	}

	return query
}

func toDomainCalls(callModels []models.CapitalCallModel) []allocation.CapitalCall {
	calls := make([]allocation.CapitalCall, len(callModels))
	for i, model := range callModels {
		calls[i] = *model.ToDomain()
	}
	return calls
}

// Ensure GormCapitalCallRepository implements CapitalCallRepository
var _ allocation.CapitalCallRepository = (*GormCapitalCallRepository)(nil)

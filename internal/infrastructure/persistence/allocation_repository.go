package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealflow/backend/internal/domain/allocation"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AllocationSortFields contains allowed sort fields for fund allocations
var AllocationSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"fund_id":          true,
	"deal_id":          true,
	"security_type":    true,
	"committed_amount": true,
	"paid_amount":      true,
	"status":           true,
	"requires_review":  true,
}

// GormAllocationRepository implements AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormAllocationRepository) WithTx(tx *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: tx}
}

// FindByID finds an allocation by its ID
func (r *GormAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*allocation.FundAllocation, error) {
	var model models.FundAllocationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs finds multiple allocations by their IDs
func (r *GormAllocationRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]allocation.FundAllocation, error) {
	if len(ids) == 0 {
		return []allocation.FundAllocation{}, nil
	}

	var allocationModels []models.FundAllocationModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}

	return toDomainAllocations(allocationModels), nil
}

// FindByDealID finds all allocations for a deal
func (r *GormAllocationRepository) FindByDealID(ctx context.Context, dealID uuid.UUID) ([]allocation.FundAllocation, error) {
	var allocationModels []models.FundAllocationModel
	if err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("created_at ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	return toDomainAllocations(allocationModels), nil
}

// FindByFundID finds all allocations for a fund
func (r *GormAllocationRepository) FindByFundID(ctx context.Context, fundID uuid.UUID) ([]allocation.FundAllocation, error) {
	var allocationModels []models.FundAllocationModel
	if err := r.db.WithContext(ctx).
		Where("fund_id = ?", fundID).
		Order("created_at ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	return toDomainAllocations(allocationModels), nil
}

// FindAll finds allocations matching the filter
func (r *GormAllocationRepository) FindAll(ctx context.Context, filter allocation.AllocationFilter) ([]allocation.FundAllocation, error) {
	var allocationModels []models.FundAllocationModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.FundAllocationModel{}), filter)

	if err := query.Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	return toDomainAllocations(allocationModels), nil
}

// FindAllIDs returns the IDs of every allocation ordered by creation time.
// The integrity scan walks these in chunks instead of loading full rows.
func (r *GormAllocationRepository) FindAllIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.FundAllocationModel{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save creates or updates an allocation
func (r *GormAllocationRepository) Save(ctx context.Context, a *allocation.FundAllocation) error {
	model := models.FundAllocationModelFromDomain(a)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves an allocation with optimistic locking (version check).
// The aggregate increments its version on every mutation, so the stored row
// must still be at the previous version.
func (r *GormAllocationRepository) SaveWithLock(ctx context.Context, a *allocation.FundAllocation) error {
	model := models.FundAllocationModelFromDomain(a)
	result := r.db.WithContext(ctx).
		Model(&models.FundAllocationModel{}).
		Where("id = ? AND version = ?", a.ID, a.Version-1).
		Updates(map[string]any{
			"security_type":    model.SecurityType,
			"committed_amount": model.CommittedAmount,
			"paid_amount":      model.PaidAmount,
			"status":           model.Status,
			"payments":         model.Payments,
			"notes":            model.Notes,
			"requires_review":  model.RequiresReview,
			"defaulted_at":     model.DefaultedAt,
			"default_reason":   model.DefaultReason,
			"version":          model.Version,
			"updated_at":       time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		r.db.WithContext(ctx).Model(&models.FundAllocationModel{}).Where("id = ?", a.ID).Count(&count)
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The allocation has been modified by another transaction")
	}
	return nil
}

// Count counts allocations matching the filter
func (r *GormAllocationRepository) Count(ctx context.Context, filter allocation.AllocationFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.FundAllocationModel{})
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByStatus counts allocations in the given status, optionally scoped to a fund
func (r *GormAllocationRepository) CountByStatus(ctx context.Context, fundID *uuid.UUID, status allocation.AllocationStatus) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&models.FundAllocationModel{}).
		Where("status = ?", status)
	if fundID != nil {
		query = query.Where("fund_id = ?", *fundID)
	}

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumTotalsByFund aggregates the fund's position in a single query
func (r *GormAllocationRepository) SumTotalsByFund(ctx context.Context, fundID uuid.UUID) (*allocation.FundTotals, error) {
	var result struct {
		TotalCommitted   decimal.Decimal
		TotalPaid        decimal.Decimal
		TotalOutstanding decimal.Decimal
		AllocationCount  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.FundAllocationModel{}).
		Select("COALESCE(SUM(committed_amount), 0) as total_committed, " +
			"COALESCE(SUM(paid_amount), 0) as total_paid, " +
			"COALESCE(SUM(committed_amount - paid_amount), 0) as total_outstanding, " +
			"COUNT(*) as allocation_count").
		Where("fund_id = ?", fundID).
		Scan(&result).Error; err != nil {
		return nil, err
	}

	return &allocation.FundTotals{
		TotalCommitted:   result.TotalCommitted,
		TotalPaid:        result.TotalPaid,
		TotalOutstanding: result.TotalOutstanding,
		AllocationCount:  result.AllocationCount,
	}, nil
}

// ExistsActiveForFundAndDeal checks for a non-defaulted allocation linking the fund and deal
func (r *GormAllocationRepository) ExistsActiveForFundAndDeal(ctx context.Context, fundID, dealID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.FundAllocationModel{}).
		Where("fund_id = ? AND deal_id = ? AND status <> ?", fundID, dealID, allocation.AllocationStatusDefaulted).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies filter conditions, sorting, and pagination to the query
func (r *GormAllocationRepository) applyFilter(query *gorm.DB, filter allocation.AllocationFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	// Apply sorting with whitelist validation to prevent SQL injection
	sortField := ValidateSortField(filter.OrderBy, AllocationSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", sortField, sortOrder))

	// Apply pagination
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
func (r *GormAllocationRepository) applyFilterWithoutPagination(query *gorm.DB, filter allocation.AllocationFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("notes ILIKE ?", searchPattern)
	}

	if filter.FundID != nil {
		query = query.Where("fund_id = ?", *filter.FundID)
	}
	if filter.DealID != nil {
		query = query.Where("deal_id = ?", *filter.DealID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.SecurityType != nil {
		query = query.Where("security_type = ?", *filter.SecurityType)
	}
	if filter.RequiresReview != nil {
		query = query.Where("requires_review = ?", *filter.RequiresReview)
	}
	if filter.MinCommitted != nil {
		query = query.Where("committed_amount >= ?", *filter.MinCommitted)
	}
	if filter.MaxCommitted != nil {
		query = query.Where("committed_amount <= ?", *filter.MaxCommitted)
	}

	return query
}

func toDomainAllocations(allocationModels []models.FundAllocationModel) []allocation.FundAllocation {
	allocations := make([]allocation.FundAllocation, len(allocationModels))
	for i, model := range allocationModels {
		allocations[i] = *model.ToDomain()
	}
	return allocations
}

// Ensure GormAllocationRepository implements AllocationRepository
var _ allocation.AllocationRepository = (*GormAllocationRepository)(nil)

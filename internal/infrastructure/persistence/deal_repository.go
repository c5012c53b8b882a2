package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealflow/backend/internal/domain/pipeline"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DealSortFields contains allowed sort fields for deals
var DealSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"name":         true,
	"sector":       true,
	"stage":        true,
	"target_raise": true,
}

// GormDealRepository implements DealRepository using GORM
type GormDealRepository struct {
	db *gorm.DB
}

// NewGormDealRepository creates a new GormDealRepository
func NewGormDealRepository(db *gorm.DB) *GormDealRepository {
	return &GormDealRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormDealRepository) WithTx(tx *gorm.DB) *GormDealRepository {
	return &GormDealRepository{db: tx}
}

// FindByID finds a deal by its ID
func (r *GormDealRepository) FindByID(ctx context.Context, id uuid.UUID) (*pipeline.Deal, error) {
	var model models.DealModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs finds multiple deals by their IDs
func (r *GormDealRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]pipeline.Deal, error) {
	if len(ids) == 0 {
		return []pipeline.Deal{}, nil
	}

	var dealModels []models.DealModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&dealModels).Error; err != nil {
		return nil, err
	}
	return toDomainDeals(dealModels), nil
}

// FindAll finds deals matching the filter
func (r *GormDealRepository) FindAll(ctx context.Context, filter pipeline.DealFilter) ([]pipeline.Deal, error) {
	var dealModels []models.DealModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DealModel{}), filter)

	if err := query.Find(&dealModels).Error; err != nil {
		return nil, err
	}
	return toDomainDeals(dealModels), nil
}

// FindByStage finds all deals in a specific stage
func (r *GormDealRepository) FindByStage(ctx context.Context, stage pipeline.DealStage, filter shared.Filter) ([]pipeline.Deal, error) {
	dealFilter := pipeline.DealFilter{Filter: filter, Stage: &stage}
	return r.FindAll(ctx, dealFilter)
}

// Save creates or updates a deal
func (r *GormDealRepository) Save(ctx context.Context, deal *pipeline.Deal) error {
	model := models.DealModelFromDomain(deal)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves a deal with optimistic locking (version check)
func (r *GormDealRepository) SaveWithLock(ctx context.Context, deal *pipeline.Deal) error {
	model := models.DealModelFromDomain(deal)
	result := r.db.WithContext(ctx).
		Model(&models.DealModel{}).
		Where("id = ? AND version = ?", deal.ID, deal.Version-1).
		Updates(map[string]any{
			"name":         model.Name,
			"sector":       model.Sector,
			"stage":        model.Stage,
			"target_raise": model.TargetRaise,
			"description":  model.Description,
			"version":      model.Version,
			"updated_at":   time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		r.db.WithContext(ctx).Model(&models.DealModel{}).Where("id = ?", deal.ID).Count(&count)
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The deal has been modified by another transaction")
	}
	return nil
}

// Delete deletes a deal
func (r *GormDealRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.DealModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count counts deals matching the filter
func (r *GormDealRepository) Count(ctx context.Context, filter pipeline.DealFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.DealModel{})
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter conditions, sorting, and pagination to the query
func (r *GormDealRepository) applyFilter(query *gorm.DB, filter pipeline.DealFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	sortField := ValidateSortField(filter.OrderBy, DealSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", sortField, sortOrder))

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
func (r *GormDealRepository) applyFilterWithoutPagination(query *gorm.DB, filter pipeline.DealFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("(name ILIKE ? OR sector ILIKE ? OR description ILIKE ?)",
			searchPattern, searchPattern, searchPattern)
	}

	if filter.Stage != nil {
		query = query.Where("stage = ?", *filter.Stage)
	}
	if filter.Sector != nil {
		query = query.Where("sector = ?", *filter.Sector)
	}

	return query
}

func toDomainDeals(dealModels []models.DealModel) []pipeline.Deal {
	deals := make([]pipeline.Deal, len(dealModels))
	for i, model := range dealModels {
		deals[i] = *model.ToDomain()
	}
	return deals
}

// Ensure GormDealRepository implements DealRepository
var _ pipeline.DealRepository = (*GormDealRepository)(nil)

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

// FundSortFields contains allowed sort fields for funds
var FundSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"name":        true,
	"vintage":     true,
	"target_size": true,
	"status":      true,
}

// GormFundRepository implements FundRepository using GORM
type GormFundRepository struct {
	db *gorm.DB
}

// NewGormFundRepository creates a new GormFundRepository
func NewGormFundRepository(db *gorm.DB) *GormFundRepository {
	return &GormFundRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormFundRepository) WithTx(tx *gorm.DB) *GormFundRepository {
	return &GormFundRepository{db: tx}
}

// FindByID finds a fund by its ID
func (r *GormFundRepository) FindByID(ctx context.Context, id uuid.UUID) (*pipeline.Fund, error) {
	var model models.FundModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs finds multiple funds by their IDs
func (r *GormFundRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]pipeline.Fund, error) {
	if len(ids) == 0 {
		return []pipeline.Fund{}, nil
	}

	var fundModels []models.FundModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&fundModels).Error; err != nil {
		return nil, err
	}
	return toDomainFunds(fundModels), nil
}

// FindAll finds funds matching the filter
func (r *GormFundRepository) FindAll(ctx context.Context, filter pipeline.FundFilter) ([]pipeline.Fund, error) {
	var fundModels []models.FundModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.FundModel{}), filter)

	if err := query.Find(&fundModels).Error; err != nil {
		return nil, err
	}
	return toDomainFunds(fundModels), nil
}

// Save creates or updates a fund
func (r *GormFundRepository) Save(ctx context.Context, fund *pipeline.Fund) error {
	model := models.FundModelFromDomain(fund)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves a fund with optimistic locking (version check)
func (r *GormFundRepository) SaveWithLock(ctx context.Context, fund *pipeline.Fund) error {
	model := models.FundModelFromDomain(fund)
	result := r.db.WithContext(ctx).
		Model(&models.FundModel{}).
		Where("id = ? AND version = ?", fund.ID, fund.Version-1).
		Updates(map[string]any{
			"name":        model.Name,
			"vintage":     model.Vintage,
			"target_size": model.TargetSize,
			"status":      model.Status,
			"version":     model.Version,
			"updated_at":  time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		r.db.WithContext(ctx).Model(&models.FundModel{}).Where("id = ?", fund.ID).Count(&count)
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The fund has been modified by another transaction")
	}
	return nil
}

// Delete deletes a fund
func (r *GormFundRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.FundModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count counts funds matching the filter
func (r *GormFundRepository) Count(ctx context.Context, filter pipeline.FundFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.FundModel{})
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter conditions, sorting, and pagination to the query
func (r *GormFundRepository) applyFilter(query *gorm.DB, filter pipeline.FundFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	sortField := ValidateSortField(filter.OrderBy, FundSortFields, "created_at")
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
func (r *GormFundRepository) applyFilterWithoutPagination(query *gorm.DB, filter pipeline.FundFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ?", searchPattern)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Vintage != nil {
		query = query.Where("vintage = ?", *filter.Vintage)
	}

	return query
}

func toDomainFunds(fundModels []models.FundModel) []pipeline.Fund {
	funds := make([]pipeline.Fund, len(fundModels))
	for i, model := range fundModels {
		funds[i] = *model.ToDomain()
	}
	return funds
}

// Ensure GormFundRepository implements FundRepository
var _ pipeline.FundRepository = (*GormFundRepository)(nil)

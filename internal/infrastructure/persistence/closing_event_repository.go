package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/dealflow/backend/internal/domain/scheduling"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/dealflow/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClosingEventSortFields contains allowed sort fields for closing events
var ClosingEventSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"event_name":     true,
	"scheduled_date": true,
	"actual_date":    true,
	"status":         true,
}

// effectiveDateExpr is the date a closing event occupies on the calendar:
// the recorded actual date once completed, the scheduled date until then.
const effectiveDateExpr = "COALESCE(actual_date, scheduled_date)"

// GormClosingEventRepository implements ClosingEventRepository using GORM
type GormClosingEventRepository struct {
	db *gorm.DB
}

// NewGormClosingEventRepository creates a new GormClosingEventRepository
func NewGormClosingEventRepository(db *gorm.DB) *GormClosingEventRepository {
	return &GormClosingEventRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormClosingEventRepository) WithTx(tx *gorm.DB) *GormClosingEventRepository {
	return &GormClosingEventRepository{db: tx}
}

// FindByID finds a closing event by its ID
func (r *GormClosingEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*scheduling.ClosingScheduleEvent, error) {
	var model models.ClosingEventModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByDealID finds all closing events for a deal
func (r *GormClosingEventRepository) FindByDealID(ctx context.Context, dealID uuid.UUID) ([]scheduling.ClosingScheduleEvent, error) {
	var eventModels []models.ClosingEventModel
	if err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("scheduled_date ASC").
		Find(&eventModels).Error; err != nil {
		return nil, err
	}
	return toDomainClosingEvents(eventModels), nil
}

// FindAll finds closing events matching the filter
func (r *GormClosingEventRepository) FindAll(ctx context.Context, filter scheduling.ScheduleFilter) ([]scheduling.ClosingScheduleEvent, error) {
	var eventModels []models.ClosingEventModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ClosingEventModel{}), filter)

	if err := query.Find(&eventModels).Error; err != nil {
		return nil, err
	}
	return toDomainClosingEvents(eventModels), nil
}

// FindBetween finds closing events with an effective date inside the range
func (r *GormClosingEventRepository) FindBetween(ctx context.Context, from, to valueobject.DateOnly) ([]scheduling.ClosingScheduleEvent, error) {
	var eventModels []models.ClosingEventModel
	if err := r.db.WithContext(ctx).
		Where(effectiveDateExpr+" BETWEEN ? AND ?", from, to).
		Order(effectiveDateExpr + " ASC").
		Find(&eventModels).Error; err != nil {
		return nil, err
	}
	return toDomainClosingEvents(eventModels), nil
}

// Save creates or updates a closing event
func (r *GormClosingEventRepository) Save(ctx context.Context, event *scheduling.ClosingScheduleEvent) error {
	model := models.ClosingEventModelFromDomain(event)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete deletes a closing event
func (r *GormClosingEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.ClosingEventModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count counts closing events matching the filter
func (r *GormClosingEventRepository) Count(ctx context.Context, filter scheduling.ScheduleFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.ClosingEventModel{})
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter conditions, sorting, and pagination to the query
func (r *GormClosingEventRepository) applyFilter(query *gorm.DB, filter scheduling.ScheduleFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	sortField := ValidateSortField(filter.OrderBy, ClosingEventSortFields, "scheduled_date")
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
func (r *GormClosingEventRepository) applyFilterWithoutPagination(query *gorm.DB, filter scheduling.ScheduleFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("(event_name ILIKE ? OR notes ILIKE ?)", searchPattern, searchPattern)
	}

	if filter.DealID != nil {
		query = query.Where("deal_id = ?", *filter.DealID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where(effectiveDateExpr+" >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where(effectiveDateExpr+" <= ?", *filter.To)
	}

	return query
}

func toDomainClosingEvents(eventModels []models.ClosingEventModel) []scheduling.ClosingScheduleEvent {
	events := make([]scheduling.ClosingScheduleEvent, len(eventModels))
	for i, model := range eventModels {
		events[i] = *model.ToDomain()
	}
	return events
}

// Ensure GormClosingEventRepository implements ClosingEventRepository
var _ scheduling.ClosingEventRepository = (*GormClosingEventRepository)(nil)

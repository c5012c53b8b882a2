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

// MeetingSortFields contains allowed sort fields for meetings
var MeetingSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"title":        true,
	"meeting_date": true,
	"status":       true,
}

// GormMeetingRepository implements MeetingRepository using GORM
type GormMeetingRepository struct {
	db *gorm.DB
}

// NewGormMeetingRepository creates a new GormMeetingRepository
func NewGormMeetingRepository(db *gorm.DB) *GormMeetingRepository {
	return &GormMeetingRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormMeetingRepository) WithTx(tx *gorm.DB) *GormMeetingRepository {
	return &GormMeetingRepository{db: tx}
}

// FindByID finds a meeting by its ID
func (r *GormMeetingRepository) FindByID(ctx context.Context, id uuid.UUID) (*scheduling.Meeting, error) {
	var model models.MeetingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByDealID finds all meetings for a deal
func (r *GormMeetingRepository) FindByDealID(ctx context.Context, dealID uuid.UUID) ([]scheduling.Meeting, error) {
	var meetingModels []models.MeetingModel
	if err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("meeting_date ASC").
		Find(&meetingModels).Error; err != nil {
		return nil, err
	}
	return toDomainMeetings(meetingModels), nil
}

// FindAll finds meetings matching the filter
func (r *GormMeetingRepository) FindAll(ctx context.Context, filter scheduling.ScheduleFilter) ([]scheduling.Meeting, error) {
	var meetingModels []models.MeetingModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.MeetingModel{}), filter)

	if err := query.Find(&meetingModels).Error; err != nil {
		return nil, err
	}
	return toDomainMeetings(meetingModels), nil
}

// FindBetween finds meetings dated inside the range
func (r *GormMeetingRepository) FindBetween(ctx context.Context, from, to valueobject.DateOnly) ([]scheduling.Meeting, error) {
	var meetingModels []models.MeetingModel
	if err := r.db.WithContext(ctx).
		Where("meeting_date BETWEEN ? AND ?", from, to).
		Order("meeting_date ASC").
		Find(&meetingModels).Error; err != nil {
		return nil, err
	}
	return toDomainMeetings(meetingModels), nil
}

// Save creates or updates a meeting
func (r *GormMeetingRepository) Save(ctx context.Context, meeting *scheduling.Meeting) error {
	model := models.MeetingModelFromDomain(meeting)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete deletes a meeting
func (r *GormMeetingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.MeetingModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count counts meetings matching the filter
func (r *GormMeetingRepository) Count(ctx context.Context, filter scheduling.ScheduleFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.MeetingModel{})
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter conditions, sorting, and pagination to the query
func (r *GormMeetingRepository) applyFilter(query *gorm.DB, filter scheduling.ScheduleFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	sortField := ValidateSortField(filter.OrderBy, MeetingSortFields, "meeting_date")
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
func (r *GormMeetingRepository) applyFilterWithoutPagination(query *gorm.DB, filter scheduling.ScheduleFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("(title ILIKE ? OR agenda ILIKE ?)", searchPattern, searchPattern)
	}

	if filter.DealID != nil {
		query = query.Where("deal_id = ?", *filter.DealID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where("meeting_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("meeting_date <= ?", *filter.To)
	}

	return query
}

func toDomainMeetings(meetingModels []models.MeetingModel) []scheduling.Meeting {
	meetings := make([]scheduling.Meeting, len(meetingModels))
	for i, model := range meetingModels {
		meetings[i] = *model.ToDomain()
	}
	return meetings
}

// Ensure GormMeetingRepository implements MeetingRepository
var _ scheduling.MeetingRepository = (*GormMeetingRepository)(nil)

// Package scheduling provides application services for deal-owned
// scheduling records: closing timeline events and meetings.
package scheduling

import (
	"context"
	"time"

	"github.com/dealflow/backend/internal/domain/pipeline"
	"github.com/dealflow/backend/internal/domain/scheduling"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClosingEventService provides application-level closing timeline operations
type ClosingEventService struct {
	closingRepo    scheduling.ClosingEventRepository
	dealRepo       pipeline.DealRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewClosingEventService creates a new ClosingEventService
func NewClosingEventService(closingRepo scheduling.ClosingEventRepository, dealRepo pipeline.DealRepository) *ClosingEventService {
	return &ClosingEventService{
		closingRepo: closingRepo,
		dealRepo:    dealRepo,
		logger:      zap.NewNop(),
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *ClosingEventService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLogger sets the logger used for non-fatal failures such as event
// publish errors
func (s *ClosingEventService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// ClosingEventResponse represents a closing timeline event in API responses
type ClosingEventResponse struct {
	ID            uuid.UUID `json:"id"`
	DealID        uuid.UUID `json:"deal_id"`
	EventName     string    `json:"event_name"`
	ScheduledDate string    `json:"scheduled_date"`
	ActualDate    *string   `json:"actual_date,omitempty"`
	EffectiveDate string    `json:"effective_date"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int       `json:"version"`
}

// CreateClosingEventRequest represents a request to add a closing milestone
type CreateClosingEventRequest struct {
	DealID        uuid.UUID `json:"deal_id" binding:"required"`
	EventName     string    `json:"event_name" binding:"required"`
	ScheduledDate string    `json:"scheduled_date" binding:"required"`
	Notes         string    `json:"notes"`
}

// UpdateClosingEventRequest represents a request to update a closing milestone
type UpdateClosingEventRequest struct {
	EventName string `json:"event_name" binding:"required"`
	Notes     string `json:"notes"`
}

// CompleteClosingEventRequest records the date a milestone actually happened
type CompleteClosingEventRequest struct {
	ActualDate string `json:"actual_date" binding:"required"`
}

// PostponeClosingEventRequest moves a milestone to a later date
type PostponeClosingEventRequest struct {
	NewDate string `json:"new_date" binding:"required"`
	Notes   string `json:"notes"`
}

// ScheduleListFilter defines filtering options for scheduling list queries
type ScheduleListFilter struct {
	DealID   *uuid.UUID `form:"deal_id"`
	Status   string     `form:"status"`
	From     string     `form:"from"`
	To       string     `form:"to"`
	Page     int        `form:"page"`
	PageSize int        `form:"page_size"`
}

// Create adds a milestone to a deal's closing timeline
func (s *ClosingEventService) Create(ctx context.Context, req CreateClosingEventRequest) (*ClosingEventResponse, error) {
	deal, err := s.dealRepo.FindByID(ctx, req.DealID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, shared.NewDomainError("DEAL_NOT_FOUND", "Deal not found")
	}

	scheduledDate, err := valueobject.ParseDateOnly(req.ScheduledDate)
	if err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Scheduled date must be in YYYY-MM-DD format")
	}

	event, err := scheduling.NewClosingScheduleEvent(req.DealID, req.EventName, scheduledDate, req.Notes)
	if err != nil {
		return nil, err
	}

	if err := s.closingRepo.Save(ctx, event); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, event.GetDomainEvents())

	return toClosingEventResponse(event), nil
}

// Get retrieves a closing timeline event by ID
func (s *ClosingEventService) Get(ctx context.Context, id uuid.UUID) (*ClosingEventResponse, error) {
	event, err := s.findEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return toClosingEventResponse(event), nil
}

// List retrieves closing timeline events matching the filter
func (s *ClosingEventService) List(ctx context.Context, filter ScheduleListFilter) ([]ClosingEventResponse, int64, error) {
	domainFilter, err := toScheduleFilter(filter)
	if err != nil {
		return nil, 0, err
	}

	events, err := s.closingRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.closingRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]ClosingEventResponse, len(events))
	for i := range events {
		responses[i] = *toClosingEventResponse(&events[i])
	}

	return responses, total, nil
}

// Update updates a milestone's name and notes
func (s *ClosingEventService) Update(ctx context.Context, id uuid.UUID, req UpdateClosingEventRequest) (*ClosingEventResponse, error) {
	event, err := s.findEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := event.Update(req.EventName, req.Notes); err != nil {
		return nil, err
	}

	if err := s.closingRepo.Save(ctx, event); err != nil {
		return nil, err
	}

	return toClosingEventResponse(event), nil
}

// MarkCompleted records the date the milestone actually happened
func (s *ClosingEventService) MarkCompleted(ctx context.Context, id uuid.UUID, req CompleteClosingEventRequest) (*ClosingEventResponse, error) {
	event, err := s.findEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	actualDate, err := valueobject.ParseDateOnly(req.ActualDate)
	if err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Actual date must be in YYYY-MM-DD format")
	}

	if err := event.MarkCompleted(actualDate); err != nil {
		return nil, err
	}

	if err := s.closingRepo.Save(ctx, event); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, event.GetDomainEvents())

	return toClosingEventResponse(event), nil
}

// Postpone moves the milestone to a later date and marks it delayed
func (s *ClosingEventService) Postpone(ctx context.Context, id uuid.UUID, req PostponeClosingEventRequest) (*ClosingEventResponse, error) {
	event, err := s.findEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	newDate, err := valueobject.ParseDateOnly(req.NewDate)
	if err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "New date must be in YYYY-MM-DD format")
	}

	if err := event.Postpone(newDate, req.Notes); err != nil {
		return nil, err
	}

	if err := s.closingRepo.Save(ctx, event); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, event.GetDomainEvents())

	return toClosingEventResponse(event), nil
}

// Cancel removes the milestone from the active timeline
func (s *ClosingEventService) Cancel(ctx context.Context, id uuid.UUID) (*ClosingEventResponse, error) {
	event, err := s.findEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := event.Cancel(); err != nil {
		return nil, err
	}

	if err := s.closingRepo.Save(ctx, event); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, event.GetDomainEvents())

	return toClosingEventResponse(event), nil
}

func (s *ClosingEventService) findEvent(ctx context.Context, id uuid.UUID) (*scheduling.ClosingScheduleEvent, error) {
	event, err := s.closingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, shared.NewDomainError("CLOSING_EVENT_NOT_FOUND", "Closing event not found")
	}
	return event, nil
}

// publishEvents publishes pending domain events. A publish failure is
// logged and does not fail the operation that raised the events.
func (s *ClosingEventService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	for _, event := range events {
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("domain event publish failed",
				zap.String("event_type", event.EventType()),
				zap.String("aggregate_id", event.AggregateID().String()),
				zap.Error(err))
		}
	}
}

// toScheduleFilter converts the list filter, parsing the optional date
// bounds
func toScheduleFilter(filter ScheduleListFilter) (scheduling.ScheduleFilter, error) {
	domainFilter := scheduling.ScheduleFilter{DealID: filter.DealID}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize

	if filter.Status != "" {
		status := scheduling.ScheduleStatus(filter.Status)
		if !status.IsValid() {
			return domainFilter, shared.NewDomainError("VALIDATION_ERROR", "Unknown status: "+filter.Status)
		}
		domainFilter.Status = &status
	}
	if filter.From != "" {
		from, err := valueobject.ParseDateOnly(filter.From)
		if err != nil {
			return domainFilter, shared.NewDomainError("VALIDATION_ERROR", "from must be in YYYY-MM-DD format")
		}
		domainFilter.From = &from
	}
	if filter.To != "" {
		to, err := valueobject.ParseDateOnly(filter.To)
		if err != nil {
			return domainFilter, shared.NewDomainError("VALIDATION_ERROR", "to must be in YYYY-MM-DD format")
		}
		domainFilter.To = &to
	}

	return domainFilter, nil
}

// toClosingEventResponse converts a domain closing event to a response
func toClosingEventResponse(e *scheduling.ClosingScheduleEvent) *ClosingEventResponse {
	resp := &ClosingEventResponse{
		ID:            e.ID,
		DealID:        e.DealID,
		EventName:     e.EventName,
		ScheduledDate: e.ScheduledDate.String(),
		EffectiveDate: e.EffectiveDate().String(),
		Status:        string(e.Status),
		Notes:         e.Notes,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		Version:       e.Version,
	}
	if e.ActualDate != nil {
		actualDate := e.ActualDate.String()
		resp.ActualDate = &actualDate
	}
	return resp
}

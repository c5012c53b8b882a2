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

// MeetingService provides application-level meeting operations
type MeetingService struct {
	meetingRepo    scheduling.MeetingRepository
	dealRepo       pipeline.DealRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewMeetingService creates a new MeetingService
func NewMeetingService(meetingRepo scheduling.MeetingRepository, dealRepo pipeline.DealRepository) *MeetingService {
	return &MeetingService{
		meetingRepo: meetingRepo,
		dealRepo:    dealRepo,
		logger:      zap.NewNop(),
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *MeetingService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLogger sets the logger used for non-fatal failures such as event
// publish errors
func (s *MeetingService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// MeetingResponse represents a meeting in API responses
type MeetingResponse struct {
	ID          uuid.UUID `json:"id"`
	DealID      uuid.UUID `json:"deal_id"`
	Title       string    `json:"title"`
	MeetingDate string    `json:"meeting_date"`
	Attendees   []string  `json:"attendees,omitempty"`
	Agenda      string    `json:"agenda,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"version"`
}

// CreateMeetingRequest represents a request to schedule a meeting
type CreateMeetingRequest struct {
	DealID      uuid.UUID `json:"deal_id" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	MeetingDate string    `json:"meeting_date" binding:"required"`
	Attendees   []string  `json:"attendees"`
	Agenda      string    `json:"agenda"`
}

// UpdateMeetingRequest represents a request to update a meeting
type UpdateMeetingRequest struct {
	Title     string   `json:"title" binding:"required"`
	Attendees []string `json:"attendees"`
	Agenda    string   `json:"agenda"`
}

// RescheduleMeetingRequest moves a meeting to a new date
type RescheduleMeetingRequest struct {
	NewDate string `json:"new_date" binding:"required"`
}

// Create schedules a meeting against a deal
func (s *MeetingService) Create(ctx context.Context, req CreateMeetingRequest) (*MeetingResponse, error) {
	deal, err := s.dealRepo.FindByID(ctx, req.DealID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, shared.NewDomainError("DEAL_NOT_FOUND", "Deal not found")
	}

	meetingDate, err := valueobject.ParseDateOnly(req.MeetingDate)
	if err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Meeting date must be in YYYY-MM-DD format")
	}

	meeting, err := scheduling.NewMeeting(req.DealID, req.Title, meetingDate, req.Attendees, req.Agenda)
	if err != nil {
		return nil, err
	}

	if err := s.meetingRepo.Save(ctx, meeting); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, meeting.GetDomainEvents())

	return toMeetingResponse(meeting), nil
}

// Get retrieves a meeting by ID
func (s *MeetingService) Get(ctx context.Context, id uuid.UUID) (*MeetingResponse, error) {
	meeting, err := s.findMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	return toMeetingResponse(meeting), nil
}

// List retrieves meetings matching the filter
func (s *MeetingService) List(ctx context.Context, filter ScheduleListFilter) ([]MeetingResponse, int64, error) {
	domainFilter, err := toScheduleFilter(filter)
	if err != nil {
		return nil, 0, err
	}

	meetings, err := s.meetingRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.meetingRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]MeetingResponse, len(meetings))
	for i := range meetings {
		responses[i] = *toMeetingResponse(&meetings[i])
	}

	return responses, total, nil
}

// Update updates a meeting's title, attendees and agenda
func (s *MeetingService) Update(ctx context.Context, id uuid.UUID, req UpdateMeetingRequest) (*MeetingResponse, error) {
	meeting, err := s.findMeeting(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := meeting.Update(req.Title, req.Attendees, req.Agenda); err != nil {
		return nil, err
	}

	if err := s.meetingRepo.Save(ctx, meeting); err != nil {
		return nil, err
	}

	return toMeetingResponse(meeting), nil
}

// Reschedule moves the meeting to a new date and marks it delayed
func (s *MeetingService) Reschedule(ctx context.Context, id uuid.UUID, req RescheduleMeetingRequest) (*MeetingResponse, error) {
	meeting, err := s.findMeeting(ctx, id)
	if err != nil {
		return nil, err
	}

	newDate, err := valueobject.ParseDateOnly(req.NewDate)
	if err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "New date must be in YYYY-MM-DD format")
	}

	if err := meeting.Reschedule(newDate); err != nil {
		return nil, err
	}

	if err := s.meetingRepo.Save(ctx, meeting); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, meeting.GetDomainEvents())

	return toMeetingResponse(meeting), nil
}

// MarkCompleted records that the meeting took place
func (s *MeetingService) MarkCompleted(ctx context.Context, id uuid.UUID) (*MeetingResponse, error) {
	meeting, err := s.findMeeting(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := meeting.MarkCompleted(); err != nil {
		return nil, err
	}

	if err := s.meetingRepo.Save(ctx, meeting); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, meeting.GetDomainEvents())

	return toMeetingResponse(meeting), nil
}

// Cancel removes the meeting from the active schedule
func (s *MeetingService) Cancel(ctx context.Context, id uuid.UUID) (*MeetingResponse, error) {
	meeting, err := s.findMeeting(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := meeting.Cancel(); err != nil {
		return nil, err
	}

	if err := s.meetingRepo.Save(ctx, meeting); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, meeting.GetDomainEvents())

	return toMeetingResponse(meeting), nil
}

func (s *MeetingService) findMeeting(ctx context.Context, id uuid.UUID) (*scheduling.Meeting, error) {
	meeting, err := s.meetingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if meeting == nil {
		return nil, shared.NewDomainError("MEETING_NOT_FOUND", "Meeting not found")
	}
	return meeting, nil
}

// publishEvents publishes pending domain events. A publish failure is
// logged and does not fail the operation that raised the events.
func (s *MeetingService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
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

// toMeetingResponse converts a domain meeting to a response
func toMeetingResponse(m *scheduling.Meeting) *MeetingResponse {
	return &MeetingResponse{
		ID:          m.ID,
		DealID:      m.DealID,
		Title:       m.Title,
		MeetingDate: m.MeetingDate.String(),
		Attendees:   m.Attendees,
		Agenda:      m.Agenda,
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		Version:     m.Version,
	}
}

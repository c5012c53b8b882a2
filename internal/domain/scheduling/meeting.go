package scheduling

import (
	"time"

	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Meeting is a scheduled meeting attached to a deal (IC sessions, partner
// calls, site visits). It is the aggregate root for meeting operations.
type Meeting struct {
	shared.BaseAggregateRoot
	DealID      uuid.UUID            `json:"deal_id"`
	Title       string               `json:"title"`
	MeetingDate valueobject.DateOnly `json:"meeting_date"`
	Attendees   []string             `json:"attendees,omitempty"`
	Agenda      string               `json:"agenda,omitempty"`
	Status      ScheduleStatus       `json:"status"`
}

// NewMeeting creates a new scheduled meeting
func NewMeeting(dealID uuid.UUID, title string, meetingDate valueobject.DateOnly, attendees []string, agenda string) (*Meeting, error) {
	if dealID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_DEAL", "Deal ID cannot be empty")
	}
	if title == "" {
		return nil, shared.NewDomainError("INVALID_TITLE", "Meeting title cannot be empty")
	}
	if meetingDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE", "Meeting date is required")
	}

	meeting := &Meeting{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		DealID:            dealID,
		Title:             title,
		MeetingDate:       meetingDate,
		Attendees:         attendees,
		Agenda:            agenda,
		Status:            ScheduleStatusScheduled,
	}

	meeting.AddDomainEvent(NewMeetingScheduledEvent(meeting))

	return meeting, nil
}

// Reschedule moves the meeting to a new date and marks it delayed
func (m *Meeting) Reschedule(newDate valueobject.DateOnly) error {
	if !m.Status.IsActive() {
		return shared.NewDomainError("INVALID_STATE", "Cannot reschedule meeting in "+m.Status.String()+" status")
	}
	if newDate.IsZero() {
		return shared.NewDomainError("INVALID_DATE", "New date is required")
	}

	m.MeetingDate = newDate
	m.Status = ScheduleStatusDelayed
	m.UpdatedAt = time.Now()
	m.IncrementVersion()
	m.AddDomainEvent(NewMeetingChangedEvent(m))

	return nil
}

// MarkCompleted records that the meeting took place
func (m *Meeting) MarkCompleted() error {
	if !m.Status.IsActive() {
		return shared.NewDomainError("INVALID_STATE", "Cannot complete meeting in "+m.Status.String()+" status")
	}

	m.Status = ScheduleStatusCompleted
	m.UpdatedAt = time.Now()
	m.IncrementVersion()
	m.AddDomainEvent(NewMeetingChangedEvent(m))

	return nil
}

// Cancel removes the meeting from the active schedule
func (m *Meeting) Cancel() error {
	if !m.Status.IsActive() {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel meeting in "+m.Status.String()+" status")
	}

	m.Status = ScheduleStatusCancelled
	m.UpdatedAt = time.Now()
	m.IncrementVersion()
	m.AddDomainEvent(NewMeetingChangedEvent(m))

	return nil
}

// Update updates the meeting's title, attendees and agenda
func (m *Meeting) Update(title string, attendees []string, agenda string) error {
	if title == "" {
		return shared.NewDomainError("INVALID_TITLE", "Meeting title cannot be empty")
	}

	m.Title = title
	m.Attendees = attendees
	m.Agenda = agenda
	m.UpdatedAt = time.Now()
	m.IncrementVersion()

	return nil
}

// AttendeeCount returns the number of attendees
func (m *Meeting) AttendeeCount() int {
	return len(m.Attendees)
}

package scheduling

import (
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constants
const (
	AggregateTypeClosingEvent = "ClosingScheduleEvent"
	AggregateTypeMeeting      = "Meeting"
)

// Event type constants
const (
	EventTypeClosingEventScheduled = "ClosingEventScheduled"
	EventTypeClosingEventChanged   = "ClosingEventChanged"
	EventTypeMeetingScheduled      = "MeetingScheduled"
	EventTypeMeetingChanged        = "MeetingChanged"
)

// ClosingEventScheduledEvent is published when a closing milestone is created
type ClosingEventScheduledEvent struct {
	shared.BaseDomainEvent
	ClosingEventID uuid.UUID `json:"closing_event_id"`
	DealID         uuid.UUID `json:"deal_id"`
	EventName      string    `json:"event_name"`
	ScheduledDate  string    `json:"scheduled_date"`
}

// NewClosingEventScheduledEvent creates a new ClosingEventScheduledEvent
func NewClosingEventScheduledEvent(event *ClosingScheduleEvent) *ClosingEventScheduledEvent {
	return &ClosingEventScheduledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeClosingEventScheduled, AggregateTypeClosingEvent, event.ID),
		ClosingEventID:  event.ID,
		DealID:          event.DealID,
		EventName:       event.EventName,
		ScheduledDate:   event.ScheduledDate.String(),
	}
}

// ClosingEventChangedEvent is published when a closing milestone is
// completed, postponed or cancelled
type ClosingEventChangedEvent struct {
	shared.BaseDomainEvent
	ClosingEventID uuid.UUID      `json:"closing_event_id"`
	DealID         uuid.UUID      `json:"deal_id"`
	EventName      string         `json:"event_name"`
	Status         ScheduleStatus `json:"status"`
}

// NewClosingEventChangedEvent creates a new ClosingEventChangedEvent
func NewClosingEventChangedEvent(event *ClosingScheduleEvent) *ClosingEventChangedEvent {
	return &ClosingEventChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeClosingEventChanged, AggregateTypeClosingEvent, event.ID),
		ClosingEventID:  event.ID,
		DealID:          event.DealID,
		EventName:       event.EventName,
		Status:          event.Status,
	}
}

// MeetingScheduledEvent is published when a meeting is created
type MeetingScheduledEvent struct {
	shared.BaseDomainEvent
	MeetingID   uuid.UUID `json:"meeting_id"`
	DealID      uuid.UUID `json:"deal_id"`
	Title       string    `json:"title"`
	MeetingDate string    `json:"meeting_date"`
}

// NewMeetingScheduledEvent creates a new MeetingScheduledEvent
func NewMeetingScheduledEvent(meeting *Meeting) *MeetingScheduledEvent {
	return &MeetingScheduledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMeetingScheduled, AggregateTypeMeeting, meeting.ID),
		MeetingID:       meeting.ID,
		DealID:          meeting.DealID,
		Title:           meeting.Title,
		MeetingDate:     meeting.MeetingDate.String(),
	}
}

// MeetingChangedEvent is published when a meeting is rescheduled, completed
// or cancelled
type MeetingChangedEvent struct {
	shared.BaseDomainEvent
	MeetingID uuid.UUID      `json:"meeting_id"`
	DealID    uuid.UUID      `json:"deal_id"`
	Title     string         `json:"title"`
	Status    ScheduleStatus `json:"status"`
}

// NewMeetingChangedEvent creates a new MeetingChangedEvent
func NewMeetingChangedEvent(meeting *Meeting) *MeetingChangedEvent {
	return &MeetingChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMeetingChanged, AggregateTypeMeeting, meeting.ID),
		MeetingID:       meeting.ID,
		DealID:          meeting.DealID,
		Title:           meeting.Title,
		Status:          meeting.Status,
	}
}

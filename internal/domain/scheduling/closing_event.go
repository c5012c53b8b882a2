// Package scheduling contains deal-owned scheduling records: closing
// timeline events and meetings. They carry no financial constraints; the
// calendar aggregator reads them alongside capital calls.
package scheduling

import (
	"time"

	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ScheduleStatus represents the lifecycle status of a scheduled record
type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	ScheduleStatusCompleted ScheduleStatus = "completed"
	ScheduleStatusDelayed   ScheduleStatus = "delayed"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
)

// IsValid checks if the status is a valid ScheduleStatus
func (s ScheduleStatus) IsValid() bool {
	switch s {
	case ScheduleStatusScheduled, ScheduleStatusCompleted, ScheduleStatusDelayed, ScheduleStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of ScheduleStatus
func (s ScheduleStatus) String() string {
	return string(s)
}

// IsActive returns true while the record still has a pending date
func (s ScheduleStatus) IsActive() bool {
	return s == ScheduleStatusScheduled || s == ScheduleStatusDelayed
}

// ClosingScheduleEvent is a milestone on a deal's closing timeline, such as
// signing or wire transfer. It is the aggregate root for closing timeline
// operations.
type ClosingScheduleEvent struct {
	shared.BaseAggregateRoot
	DealID        uuid.UUID             `json:"deal_id"`
	EventName     string                `json:"event_name"`
	ScheduledDate valueobject.DateOnly  `json:"scheduled_date"`
	ActualDate    *valueobject.DateOnly `json:"actual_date,omitempty"`
	Status        ScheduleStatus        `json:"status"`
	Notes         string                `json:"notes,omitempty"`
}

// NewClosingScheduleEvent creates a new closing timeline event
func NewClosingScheduleEvent(dealID uuid.UUID, eventName string, scheduledDate valueobject.DateOnly, notes string) (*ClosingScheduleEvent, error) {
	if dealID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_DEAL", "Deal ID cannot be empty")
	}
	if eventName == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Event name cannot be empty")
	}
	if scheduledDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE", "Scheduled date is required")
	}

	event := &ClosingScheduleEvent{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		DealID:            dealID,
		EventName:         eventName,
		ScheduledDate:     scheduledDate,
		Status:            ScheduleStatusScheduled,
		Notes:             notes,
	}

	event.AddDomainEvent(NewClosingEventScheduledEvent(event))

	return event, nil
}

// MarkCompleted records the date the milestone actually happened
func (e *ClosingScheduleEvent) MarkCompleted(actualDate valueobject.DateOnly) error {
	if !e.Status.IsActive() {
		return shared.NewDomainError("INVALID_STATE", "Cannot complete event in "+e.Status.String()+" status")
	}
	if actualDate.IsZero() {
		return shared.NewDomainError("INVALID_DATE", "Actual date is required")
	}

	e.ActualDate = &actualDate
	e.Status = ScheduleStatusCompleted
	e.UpdatedAt = time.Now()
	e.IncrementVersion()
	e.AddDomainEvent(NewClosingEventChangedEvent(e))

	return nil
}

// Postpone moves the milestone to a later date and marks it delayed
func (e *ClosingScheduleEvent) Postpone(newDate valueobject.DateOnly, notes string) error {
	if !e.Status.IsActive() {
		return shared.NewDomainError("INVALID_STATE", "Cannot postpone event in "+e.Status.String()+" status")
	}
	if newDate.IsZero() {
		return shared.NewDomainError("INVALID_DATE", "New date is required")
	}

	e.ScheduledDate = newDate
	e.Status = ScheduleStatusDelayed
	if notes != "" {
		e.Notes = notes
	}
	e.UpdatedAt = time.Now()
	e.IncrementVersion()
	e.AddDomainEvent(NewClosingEventChangedEvent(e))

	return nil
}

// Cancel removes the milestone from the active timeline
func (e *ClosingScheduleEvent) Cancel() error {
	if !e.Status.IsActive() {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel event in "+e.Status.String()+" status")
	}

	e.Status = ScheduleStatusCancelled
	e.UpdatedAt = time.Now()
	e.IncrementVersion()
	e.AddDomainEvent(NewClosingEventChangedEvent(e))

	return nil
}

// Update updates the event name and notes
func (e *ClosingScheduleEvent) Update(eventName, notes string) error {
	if eventName == "" {
		return shared.NewDomainError("INVALID_NAME", "Event name cannot be empty")
	}

	e.EventName = eventName
	e.Notes = notes
	e.UpdatedAt = time.Now()
	e.IncrementVersion()

	return nil
}

// EffectiveDate returns the actual date when set, the scheduled date
// otherwise. The calendar places the event on this date.
func (e *ClosingScheduleEvent) EffectiveDate() valueobject.DateOnly {
	if e.ActualDate != nil {
		return *e.ActualDate
	}
	return e.ScheduledDate
}

// Package calendar derives the unified deal calendar. Calendar events are a
// read-only projection assembled on demand from capital calls, closing
// timeline events and meetings; nothing in this package is ever persisted.
package calendar

import (
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// EventKind identifies the source record behind a calendar event
type EventKind string

const (
	EventKindCapitalCall EventKind = "capital_call"
	EventKindClosing     EventKind = "closing"
	EventKindMeeting     EventKind = "meeting"
)

// IsValid checks if the kind is a valid EventKind
func (k EventKind) IsValid() bool {
	switch k {
	case EventKindCapitalCall, EventKindClosing, EventKindMeeting:
		return true
	}
	return false
}

// String returns the string representation of EventKind
func (k EventKind) String() string {
	return string(k)
}

// sortRank fixes the ordering of kinds sharing a date: closing events first,
// then capital calls, then meetings.
func (k EventKind) sortRank() int {
	switch k {
	case EventKindClosing:
		return 0
	case EventKindCapitalCall:
		return 1
	case EventKindMeeting:
		return 2
	}
	return 3
}

// CalendarEvent is one entry in the unified calendar feed. It carries the
// source record's ID so clients can navigate back to it, and the source's
// native status vocabulary unchanged.
type CalendarEvent struct {
	ID         uuid.UUID            `json:"id"`
	Kind       EventKind            `json:"kind"`
	Title      string               `json:"title"`
	Date       valueobject.DateOnly `json:"date"`
	Amount     *valueobject.Money   `json:"amount,omitempty"`
	AmountType string               `json:"amount_type,omitempty"`
	Status     string               `json:"status"`
	DealID     uuid.UUID            `json:"deal_id"`
	DealName   string               `json:"deal_name,omitempty"`
	Detail     map[string]string    `json:"detail,omitempty"`
}

// MonthGroup is one month's worth of calendar events
type MonthGroup struct {
	Key    string          `json:"key"`   // "2024-03"
	Label  string          `json:"label"` // "March 2024"
	Events []CalendarEvent `json:"events"`
}

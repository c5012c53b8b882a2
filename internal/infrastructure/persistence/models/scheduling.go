package models

import (
	"encoding/json"

	"github.com/dealflow/backend/internal/domain/scheduling"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var modelLogger = zap.L().Named("scheduling.models")

// ClosingEventModel is the persistence model for the ClosingScheduleEvent
// aggregate root. The effective date (actual when recorded, scheduled
// otherwise) is computed in queries, not stored.
type ClosingEventModel struct {
	AggregateModel
	DealID        uuid.UUID                 `gorm:"type:uuid;not null;index"`
	EventName     string                    `gorm:"type:varchar(200);not null"`
	ScheduledDate valueobject.DateOnly      `gorm:"type:date;not null;index"`
	ActualDate    *valueobject.DateOnly     `gorm:"type:date"`
	Status        scheduling.ScheduleStatus `gorm:"type:varchar(20);not null;default:'scheduled';index"`
	Notes         string                    `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ClosingEventModel) TableName() string {
	return "closing_events"
}

// ToDomain converts the persistence model to a domain ClosingScheduleEvent entity.
func (m *ClosingEventModel) ToDomain() *scheduling.ClosingScheduleEvent {
	return &scheduling.ClosingScheduleEvent{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		DealID:        m.DealID,
		EventName:     m.EventName,
		ScheduledDate: m.ScheduledDate,
		ActualDate:    m.ActualDate,
		Status:        m.Status,
		Notes:         m.Notes,
	}
}

// FromDomain populates the persistence model from a domain ClosingScheduleEvent entity.
func (m *ClosingEventModel) FromDomain(e *scheduling.ClosingScheduleEvent) {
	m.FromDomainAggregateRoot(e.BaseAggregateRoot)
	m.DealID = e.DealID
	m.EventName = e.EventName
	m.ScheduledDate = e.ScheduledDate
	m.ActualDate = e.ActualDate
	m.Status = e.Status
	m.Notes = e.Notes
}

// ClosingEventModelFromDomain creates a new persistence model from a domain ClosingScheduleEvent.
func ClosingEventModelFromDomain(e *scheduling.ClosingScheduleEvent) *ClosingEventModel {
	m := &ClosingEventModel{}
	m.FromDomain(e)
	return m
}

// MeetingModel is the persistence model for the Meeting aggregate root.
type MeetingModel struct {
	AggregateModel
	DealID        uuid.UUID                 `gorm:"type:uuid;not null;index"`
	Title         string                    `gorm:"type:varchar(200);not null"`
	MeetingDate   valueobject.DateOnly      `gorm:"type:date;not null;index"`
	AttendeesJSON string                    `gorm:"column:attendees;type:jsonb;default:'[]'"`
	Agenda        string                    `gorm:"type:text"`
	Status        scheduling.ScheduleStatus `gorm:"type:varchar(20);not null;default:'scheduled';index"`
}

// TableName returns the table name for GORM
func (MeetingModel) TableName() string {
	return "meetings"
}

// ToDomain converts the persistence model to a domain Meeting entity.
func (m *MeetingModel) ToDomain() *scheduling.Meeting {
	meeting := &scheduling.Meeting{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		DealID:      m.DealID,
		Title:       m.Title,
		MeetingDate: m.MeetingDate,
		Attendees:   make([]string, 0),
		Agenda:      m.Agenda,
		Status:      m.Status,
	}

	if m.AttendeesJSON != "" && m.AttendeesJSON != "[]" {
		var attendees []string
		if err := json.Unmarshal([]byte(m.AttendeesJSON), &attendees); err != nil {
			modelLogger.Warn("failed to parse attendees JSON",
				zap.String("meeting_id", m.ID.String()),
				zap.String("raw_json", m.AttendeesJSON),
				zap.Error(err))
		} else {
			meeting.Attendees = attendees
		}
	}

	return meeting
}

// FromDomain populates the persistence model from a domain Meeting entity.
func (m *MeetingModel) FromDomain(meeting *scheduling.Meeting) {
	m.FromDomainAggregateRoot(meeting.BaseAggregateRoot)
	m.DealID = meeting.DealID
	m.Title = meeting.Title
	m.MeetingDate = meeting.MeetingDate
	m.Agenda = meeting.Agenda
	m.Status = meeting.Status

	if jsonBytes, err := json.Marshal(meeting.Attendees); err == nil && meeting.Attendees != nil {
		m.AttendeesJSON = string(jsonBytes)
	} else {
		m.AttendeesJSON = "[]"
	}
}

// MeetingModelFromDomain creates a new persistence model from a domain Meeting.
func MeetingModelFromDomain(meeting *scheduling.Meeting) *MeetingModel {
	m := &MeetingModel{}
	m.FromDomain(meeting)
	return m
}

package pipeline

import (
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeFund = "Fund"

// Event type constants
const (
	EventTypeFundCreated       = "FundCreated"
	EventTypeFundUpdated       = "FundUpdated"
	EventTypeFundStatusChanged = "FundStatusChanged"
)

// FundCreatedEvent is published when a new fund is created
type FundCreatedEvent struct {
	shared.BaseDomainEvent
	FundID  uuid.UUID `json:"fund_id"`
	Name    string    `json:"name"`
	Vintage int       `json:"vintage"`
}

// NewFundCreatedEvent creates a new FundCreatedEvent
func NewFundCreatedEvent(fund *Fund) *FundCreatedEvent {
	return &FundCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFundCreated, AggregateTypeFund, fund.ID),
		FundID:          fund.ID,
		Name:            fund.Name,
		Vintage:         fund.Vintage,
	}
}

// FundUpdatedEvent is published when a fund's basic information changes
type FundUpdatedEvent struct {
	shared.BaseDomainEvent
	FundID  uuid.UUID `json:"fund_id"`
	Name    string    `json:"name"`
	Vintage int       `json:"vintage"`
}

// NewFundUpdatedEvent creates a new FundUpdatedEvent
func NewFundUpdatedEvent(fund *Fund) *FundUpdatedEvent {
	return &FundUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFundUpdated, AggregateTypeFund, fund.ID),
		FundID:          fund.ID,
		Name:            fund.Name,
		Vintage:         fund.Vintage,
	}
}

// FundStatusChangedEvent is published when a fund's status changes
type FundStatusChangedEvent struct {
	shared.BaseDomainEvent
	FundID    uuid.UUID  `json:"fund_id"`
	Name      string     `json:"name"`
	OldStatus FundStatus `json:"old_status"`
	NewStatus FundStatus `json:"new_status"`
}

// NewFundStatusChangedEvent creates a new FundStatusChangedEvent
func NewFundStatusChangedEvent(fund *Fund, oldStatus, newStatus FundStatus) *FundStatusChangedEvent {
	return &FundStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFundStatusChanged, AggregateTypeFund, fund.ID),
		FundID:          fund.ID,
		Name:            fund.Name,
		OldStatus:       oldStatus,
		NewStatus:       newStatus,
	}
}

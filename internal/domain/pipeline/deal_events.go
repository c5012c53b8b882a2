package pipeline

import (
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeDeal = "Deal"

// Event type constants
const (
	EventTypeDealCreated      = "DealCreated"
	EventTypeDealUpdated      = "DealUpdated"
	EventTypeDealStageChanged = "DealStageChanged"
)

// DealCreatedEvent is published when a new deal enters the pipeline
type DealCreatedEvent struct {
	shared.BaseDomainEvent
	DealID uuid.UUID `json:"deal_id"`
	Name   string    `json:"name"`
	Sector string    `json:"sector,omitempty"`
	Stage  DealStage `json:"stage"`
}

// NewDealCreatedEvent creates a new DealCreatedEvent
func NewDealCreatedEvent(deal *Deal) *DealCreatedEvent {
	return &DealCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDealCreated, AggregateTypeDeal, deal.ID),
		DealID:          deal.ID,
		Name:            deal.Name,
		Sector:          deal.Sector,
		Stage:           deal.Stage,
	}
}

// DealUpdatedEvent is published when a deal's basic information changes
type DealUpdatedEvent struct {
	shared.BaseDomainEvent
	DealID uuid.UUID `json:"deal_id"`
	Name   string    `json:"name"`
	Sector string    `json:"sector,omitempty"`
}

// NewDealUpdatedEvent creates a new DealUpdatedEvent
func NewDealUpdatedEvent(deal *Deal) *DealUpdatedEvent {
	return &DealUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDealUpdated, AggregateTypeDeal, deal.ID),
		DealID:          deal.ID,
		Name:            deal.Name,
		Sector:          deal.Sector,
	}
}

// DealStageChangedEvent is published when a deal moves through the pipeline
type DealStageChangedEvent struct {
	shared.BaseDomainEvent
	DealID   uuid.UUID `json:"deal_id"`
	Name     string    `json:"name"`
	OldStage DealStage `json:"old_stage"`
	NewStage DealStage `json:"new_stage"`
}

// NewDealStageChangedEvent creates a new DealStageChangedEvent
func NewDealStageChangedEvent(deal *Deal, oldStage, newStage DealStage) *DealStageChangedEvent {
	return &DealStageChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDealStageChanged, AggregateTypeDeal, deal.ID),
		DealID:          deal.ID,
		Name:            deal.Name,
		OldStage:        oldStage,
		NewStage:        newStage,
	}
}

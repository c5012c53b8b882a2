package allocation

import (
	"time"

	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeFundAllocation = "FundAllocation"
	AggregateTypeCapitalCall    = "CapitalCall"
)

// Event type constants
const (
	EventTypeAllocationCreated      = "AllocationCreated"
	EventTypePaymentProcessed       = "PaymentProcessed"
	EventTypeAllocationDefaulted    = "AllocationDefaulted"
	EventTypeAllocationReinstated   = "AllocationReinstated"
	EventTypeCapitalCallScheduled   = "CapitalCallScheduled"
	EventTypeCapitalCallCompleted   = "CapitalCallCompleted"
	EventTypeCapitalCallRescheduled = "CapitalCallRescheduled"
)

// AllocationCreatedEvent is raised when a new fund allocation is created
type AllocationCreatedEvent struct {
	shared.BaseDomainEvent
	AllocationID    uuid.UUID       `json:"allocation_id"`
	FundID          uuid.UUID       `json:"fund_id"`
	DealID          uuid.UUID       `json:"deal_id"`
	SecurityType    SecurityType    `json:"security_type"`
	CommittedAmount decimal.Decimal `json:"committed_amount"`
}

// EventType returns the event type name
func (e *AllocationCreatedEvent) EventType() string {
	return EventTypeAllocationCreated
}

// NewAllocationCreatedEvent creates a new AllocationCreatedEvent
func NewAllocationCreatedEvent(a *FundAllocation) *AllocationCreatedEvent {
	return &AllocationCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocationCreated, AggregateTypeFundAllocation, a.ID),
		AllocationID:    a.ID,
		FundID:          a.FundID,
		DealID:          a.DealID,
		SecurityType:    a.SecurityType,
		CommittedAmount: a.CommittedAmount,
	}
}

// PaymentProcessedEvent is raised when a payment is applied to an allocation
type PaymentProcessedEvent struct {
	shared.BaseDomainEvent
	AllocationID    uuid.UUID        `json:"allocation_id"`
	FundID          uuid.UUID        `json:"fund_id"`
	DealID          uuid.UUID        `json:"deal_id"`
	PaymentID       uuid.UUID        `json:"payment_id"`
	CapitalCallID   *uuid.UUID       `json:"capital_call_id,omitempty"`
	PaymentAmount   decimal.Decimal  `json:"payment_amount"`
	PaidAmount      decimal.Decimal  `json:"paid_amount"`
	CommittedAmount decimal.Decimal  `json:"committed_amount"`
	Status          AllocationStatus `json:"status"`
	RequiresReview  bool             `json:"requires_review"`
}

// EventType returns the event type name
func (e *PaymentProcessedEvent) EventType() string {
	return EventTypePaymentProcessed
}

// NewPaymentProcessedEvent creates a new PaymentProcessedEvent
func NewPaymentProcessedEvent(a *FundAllocation, record *PaymentRecord) *PaymentProcessedEvent {
	return &PaymentProcessedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentProcessed, AggregateTypeFundAllocation, a.ID),
		AllocationID:    a.ID,
		FundID:          a.FundID,
		DealID:          a.DealID,
		PaymentID:       record.ID,
		CapitalCallID:   record.CapitalCallID,
		PaymentAmount:   record.Amount,
		PaidAmount:      a.PaidAmount,
		CommittedAmount: a.CommittedAmount,
		Status:          a.Status,
		RequiresReview:  a.RequiresReview,
	}
}

// AllocationDefaultedEvent is raised when an allocation is administratively defaulted
type AllocationDefaultedEvent struct {
	shared.BaseDomainEvent
	AllocationID   uuid.UUID        `json:"allocation_id"`
	FundID         uuid.UUID        `json:"fund_id"`
	DealID         uuid.UUID        `json:"deal_id"`
	PreviousStatus AllocationStatus `json:"previous_status"`
	Reason         string           `json:"reason"`
	DefaultedAt    time.Time        `json:"defaulted_at"`
}

// EventType returns the event type name
func (e *AllocationDefaultedEvent) EventType() string {
	return EventTypeAllocationDefaulted
}

// NewAllocationDefaultedEvent creates a new AllocationDefaultedEvent
func NewAllocationDefaultedEvent(a *FundAllocation, previous AllocationStatus) *AllocationDefaultedEvent {
	defaultedAt := time.Now()
	if a.DefaultedAt != nil {
		defaultedAt = *a.DefaultedAt
	}
	return &AllocationDefaultedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocationDefaulted, AggregateTypeFundAllocation, a.ID),
		AllocationID:    a.ID,
		FundID:          a.FundID,
		DealID:          a.DealID,
		PreviousStatus:  previous,
		Reason:          a.DefaultReason,
		DefaultedAt:     defaultedAt,
	}
}

// AllocationReinstatedEvent is raised when a defaulted allocation is reinstated
type AllocationReinstatedEvent struct {
	shared.BaseDomainEvent
	AllocationID uuid.UUID        `json:"allocation_id"`
	FundID       uuid.UUID        `json:"fund_id"`
	DealID       uuid.UUID        `json:"deal_id"`
	Status       AllocationStatus `json:"status"`
}

// EventType returns the event type name
func (e *AllocationReinstatedEvent) EventType() string {
	return EventTypeAllocationReinstated
}

// NewAllocationReinstatedEvent creates a new AllocationReinstatedEvent
func NewAllocationReinstatedEvent(a *FundAllocation) *AllocationReinstatedEvent {
	return &AllocationReinstatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocationReinstated, AggregateTypeFundAllocation, a.ID),
		AllocationID:    a.ID,
		FundID:          a.FundID,
		DealID:          a.DealID,
		Status:          a.Status,
	}
}

// CapitalCallScheduledEvent is raised when a capital call is created
type CapitalCallScheduledEvent struct {
	shared.BaseDomainEvent
	CallID       uuid.UUID       `json:"call_id"`
	AllocationID uuid.UUID       `json:"allocation_id"`
	CallNumber   string          `json:"call_number"`
	CallAmount   decimal.Decimal `json:"call_amount"`
	AmountType   AmountType      `json:"amount_type"`
	CallDate     string          `json:"call_date"`
	DueDate      string          `json:"due_date"`
}

// EventType returns the event type name
func (e *CapitalCallScheduledEvent) EventType() string {
	return EventTypeCapitalCallScheduled
}

// NewCapitalCallScheduledEvent creates a new CapitalCallScheduledEvent
func NewCapitalCallScheduledEvent(c *CapitalCall) *CapitalCallScheduledEvent {
	return &CapitalCallScheduledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCapitalCallScheduled, AggregateTypeCapitalCall, c.ID),
		CallID:          c.ID,
		AllocationID:    c.AllocationID,
		CallNumber:      c.CallNumber,
		CallAmount:      c.CallAmount,
		AmountType:      c.AmountType,
		CallDate:        c.CallDate.String(),
		DueDate:         c.DueDate.String(),
	}
}

// CapitalCallCompletedEvent is raised when a capital call settles
type CapitalCallCompletedEvent struct {
	shared.BaseDomainEvent
	CallID       uuid.UUID        `json:"call_id"`
	AllocationID uuid.UUID        `json:"allocation_id"`
	CallNumber   string           `json:"call_number"`
	Status       CallStatus       `json:"status"`
	PaidAmount   *decimal.Decimal `json:"paid_amount,omitempty"`
	PaidDate     string           `json:"paid_date,omitempty"`
}

// EventType returns the event type name
func (e *CapitalCallCompletedEvent) EventType() string {
	return EventTypeCapitalCallCompleted
}

// NewCapitalCallCompletedEvent creates a new CapitalCallCompletedEvent
func NewCapitalCallCompletedEvent(c *CapitalCall) *CapitalCallCompletedEvent {
	paidDate := ""
	if c.PaidDate != nil {
		paidDate = c.PaidDate.String()
	}
	return &CapitalCallCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCapitalCallCompleted, AggregateTypeCapitalCall, c.ID),
		CallID:          c.ID,
		AllocationID:    c.AllocationID,
		CallNumber:      c.CallNumber,
		Status:          c.Status,
		PaidAmount:      c.PaidAmount,
		PaidDate:        paidDate,
	}
}

// CapitalCallRescheduledEvent is raised when a call's dates move
type CapitalCallRescheduledEvent struct {
	shared.BaseDomainEvent
	CallID       uuid.UUID `json:"call_id"`
	AllocationID uuid.UUID `json:"allocation_id"`
	CallNumber   string    `json:"call_number"`
	CallDate     string    `json:"call_date"`
	DueDate      string    `json:"due_date"`
}

// EventType returns the event type name
func (e *CapitalCallRescheduledEvent) EventType() string {
	return EventTypeCapitalCallRescheduled
}

// NewCapitalCallRescheduledEvent creates a new CapitalCallRescheduledEvent
func NewCapitalCallRescheduledEvent(c *CapitalCall) *CapitalCallRescheduledEvent {
	return &CapitalCallRescheduledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCapitalCallRescheduled, AggregateTypeCapitalCall, c.ID),
		CallID:          c.ID,
		AllocationID:    c.AllocationID,
		CallNumber:      c.CallNumber,
		CallDate:        c.CallDate.String(),
		DueDate:         c.DueDate.String(),
	}
}

package models

import (
	"time"

	"github.com/dealflow/backend/internal/domain/allocation"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FundAllocationModel is the persistence model for the FundAllocation aggregate root.
// The payment ledger is stored as a JSONB column: payments are immutable facts
// appended under the allocation's own version check, never rows updated on
// their own.
type FundAllocationModel struct {
	AggregateModel
	FundID          uuid.UUID                   `gorm:"type:uuid;not null;index;index:idx_allocations_fund_deal,priority:1"`
	DealID          uuid.UUID                   `gorm:"type:uuid;not null;index;index:idx_allocations_fund_deal,priority:2"`
	SecurityType    allocation.SecurityType     `gorm:"type:varchar(20);not null"`
	CommittedAmount decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	PaidAmount      decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	Status          allocation.AllocationStatus `gorm:"type:varchar(20);not null;default:'committed';index"`
	Payments        allocation.PaymentLedger    `gorm:"type:jsonb;default:'[]'"`
	Notes           string                      `gorm:"type:text"`
	RequiresReview  bool                        `gorm:"not null;default:false;index"`
	DefaultedAt     *time.Time
	DefaultReason   string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (FundAllocationModel) TableName() string {
	return "fund_allocations"
}

// ToDomain converts the persistence model to a domain FundAllocation entity.
func (m *FundAllocationModel) ToDomain() *allocation.FundAllocation {
	payments := m.Payments
	if payments == nil {
		payments = allocation.PaymentLedger{}
	}
	return &allocation.FundAllocation{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		FundID:          m.FundID,
		DealID:          m.DealID,
		SecurityType:    m.SecurityType,
		CommittedAmount: m.CommittedAmount,
		PaidAmount:      m.PaidAmount,
		Status:          m.Status,
		Payments:        payments,
		Notes:           m.Notes,
		RequiresReview:  m.RequiresReview,
		DefaultedAt:     m.DefaultedAt,
		DefaultReason:   m.DefaultReason,
	}
}

// FromDomain populates the persistence model from a domain FundAllocation entity.
func (m *FundAllocationModel) FromDomain(a *allocation.FundAllocation) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.FundID = a.FundID
	m.DealID = a.DealID
	m.SecurityType = a.SecurityType
	m.CommittedAmount = a.CommittedAmount
	m.PaidAmount = a.PaidAmount
	m.Status = a.Status
	m.Payments = a.Payments
	m.Notes = a.Notes
	m.RequiresReview = a.RequiresReview
	m.DefaultedAt = a.DefaultedAt
	m.DefaultReason = a.DefaultReason
}

// FundAllocationModelFromDomain creates a new persistence model from a domain FundAllocation.
func FundAllocationModelFromDomain(a *allocation.FundAllocation) *FundAllocationModel {
	m := &FundAllocationModel{}
	m.FromDomain(a)
	return m
}

// CapitalCallModel is the persistence model for the CapitalCall aggregate root.
type CapitalCallModel struct {
	AggregateModel
	AllocationID uuid.UUID             `gorm:"type:uuid;not null;index"`
	CallNumber   string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	CallAmount   decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	AmountType   allocation.AmountType `gorm:"type:varchar(20);not null"`
	CallDate     valueobject.DateOnly  `gorm:"type:date;not null"`
	DueDate      valueobject.DateOnly  `gorm:"type:date;not null;index"`
	Status       allocation.CallStatus `gorm:"type:varchar(20);not null;default:'scheduled';index"`
	PaidDate     *valueobject.DateOnly `gorm:"type:date"`
	PaidAmount   *decimal.Decimal      `gorm:"type:decimal(18,4)"`
	Notes        string                `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (CapitalCallModel) TableName() string {
	return "capital_calls"
}

// ToDomain converts the persistence model to a domain CapitalCall entity.
func (m *CapitalCallModel) ToDomain() *allocation.CapitalCall {
	return &allocation.CapitalCall{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		AllocationID: m.AllocationID,
		CallNumber:   m.CallNumber,
		CallAmount:   m.CallAmount,
		AmountType:   m.AmountType,
		CallDate:     m.CallDate,
		DueDate:      m.DueDate,
		Status:       m.Status,
		PaidDate:     m.PaidDate,
		PaidAmount:   m.PaidAmount,
		Notes:        m.Notes,
	}
}

// FromDomain populates the persistence model from a domain CapitalCall entity.
func (m *CapitalCallModel) FromDomain(c *allocation.CapitalCall) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.AllocationID = c.AllocationID
	m.CallNumber = c.CallNumber
	m.CallAmount = c.CallAmount
	m.AmountType = c.AmountType
	m.CallDate = c.CallDate
	m.DueDate = c.DueDate
	m.Status = c.Status
	m.PaidDate = c.PaidDate
	m.PaidAmount = c.PaidAmount
	m.Notes = c.Notes
}

// CapitalCallModelFromDomain creates a new persistence model from a domain CapitalCall.
func CapitalCallModelFromDomain(c *allocation.CapitalCall) *CapitalCallModel {
	m := &CapitalCallModel{}
	m.FromDomain(c)
	return m
}

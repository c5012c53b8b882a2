package allocation

import (
	"fmt"
	"time"

	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmountType distinguishes how a capital call expresses its amount
type AmountType string

const (
	AmountTypePercentage AmountType = "percentage" // Percent of the allocation's committed amount
	AmountTypeAbsolute   AmountType = "absolute"   // Absolute currency amount
)

// IsValid checks if the amount type is valid
func (t AmountType) IsValid() bool {
	return t == AmountTypePercentage || t == AmountTypeAbsolute
}

// String returns the string representation of AmountType
func (t AmountType) String() string {
	return string(t)
}

// CallStatus represents the lifecycle status of a capital call
type CallStatus string

const (
	CallStatusScheduled     CallStatus = "scheduled"      // Created, not yet issued to the fund
	CallStatusCalled        CallStatus = "called"         // Formally issued, awaiting payment
	CallStatusPartiallyPaid CallStatus = "partially_paid" // Paid below the called amount
	CallStatusPaid          CallStatus = "paid"           // Settled in full
	CallStatusDefaulted     CallStatus = "defaulted"      // Owning allocation defaulted
)

// IsValid checks if the status is a valid CallStatus
func (s CallStatus) IsValid() bool {
	switch s {
	case CallStatusScheduled, CallStatusCalled, CallStatusPartiallyPaid,
		CallStatusPaid, CallStatusDefaulted:
		return true
	}
	return false
}

// String returns the string representation of CallStatus
func (s CallStatus) String() string {
	return string(s)
}

// IsOpen returns true while the call still demands money. Open calls make
// an unpaid allocation "called" rather than "committed" in the status
// derivation rule.
func (s CallStatus) IsOpen() bool {
	switch s {
	case CallStatusScheduled, CallStatusCalled, CallStatusPartiallyPaid:
		return true
	}
	return false
}

// CapitalCall is a scheduled or issued request for a specific amount
// against one allocation. Its paid fields are a read-only projection of the
// payment recorded on the owning allocation, never a second source of
// truth: completing a call and paying its allocation are one transaction.
type CapitalCall struct {
	shared.BaseAggregateRoot
	AllocationID uuid.UUID             `json:"allocation_id"`
	CallNumber   string                `json:"call_number"`
	CallAmount   decimal.Decimal       `json:"call_amount"`
	AmountType   AmountType            `json:"amount_type"`
	CallDate     valueobject.DateOnly  `json:"call_date"`
	DueDate      valueobject.DateOnly  `json:"due_date"`
	Status       CallStatus            `json:"status"`
	PaidDate     *valueobject.DateOnly `json:"paid_date,omitempty"`
	PaidAmount   *decimal.Decimal      `json:"paid_amount,omitempty"`
	Notes        string                `json:"notes,omitempty"`
}

// NewCapitalCall creates a scheduled capital call. The due date is derived
// from the call date plus the configured lead days; lead time is always a
// configuration value, never a literal.
func NewCapitalCall(allocationID uuid.UUID, callNumber string, amount decimal.Decimal, amountType AmountType, callDate valueobject.DateOnly, leadDays int, notes string) (*CapitalCall, error) {
	if allocationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ALLOCATION", "Allocation ID cannot be empty")
	}
	if callNumber == "" {
		return nil, shared.NewDomainError("INVALID_CALL_NUMBER", "Call number cannot be empty")
	}
	if !amountType.IsValid() {
		return nil, shared.NewDomainError("INVALID_AMOUNT_TYPE", fmt.Sprintf("Amount type %q is not valid", amountType))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Call amount must be positive")
	}
	if amountType == AmountTypePercentage && amount.GreaterThan(decimal.NewFromInt(100)) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Percentage call cannot exceed 100%")
	}
	if callDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_CALL_DATE", "Call date is required")
	}
	if leadDays < 0 {
		return nil, shared.NewDomainError("INVALID_LEAD_DAYS", "Lead days cannot be negative")
	}

	c := &CapitalCall{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		AllocationID:      allocationID,
		CallNumber:        callNumber,
		CallAmount:        amount,
		AmountType:        amountType,
		CallDate:          callDate,
		DueDate:           callDate.AddDays(leadDays),
		Status:            CallStatusScheduled,
		Notes:             notes,
	}

	c.AddDomainEvent(NewCapitalCallScheduledEvent(c))

	return c, nil
}

// NormalizedAmount converts the call amount to absolute currency against
// the owning allocation's committed amount. Percentage calls multiply; an
// absolute call passes through unchanged.
func (c *CapitalCall) NormalizedAmount(committed valueobject.Money) valueobject.Money {
	if c.AmountType == AmountTypePercentage {
		return committed.CalculatePercentage(c.CallAmount)
	}
	return valueobject.NewMoneyUSD(c.CallAmount)
}

// MarkIssued transitions a scheduled call to called
func (c *CapitalCall) MarkIssued() error {
	if c.Status != CallStatusScheduled {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot issue call in %s status", c.Status))
	}

	c.Status = CallStatusCalled
	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	return nil
}

// MarkCompleted records the settlement projection: the amount actually paid
// against the owning allocation and the date it landed. The call settles as
// paid when the payment covers the normalized call amount, partially paid
// otherwise.
func (c *CapitalCall) MarkCompleted(actualPaid valueobject.Money, paidDate valueobject.DateOnly, normalized valueobject.Money) error {
	if !c.Status.IsOpen() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete call in %s status", c.Status))
	}
	if actualPaid.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Paid amount must be positive")
	}

	paid := actualPaid.Amount()
	c.PaidAmount = &paid
	c.PaidDate = &paidDate
	if paid.GreaterThanOrEqual(normalized.Amount()) {
		c.Status = CallStatusPaid
	} else {
		c.Status = CallStatusPartiallyPaid
	}
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
	c.AddDomainEvent(NewCapitalCallCompletedEvent(c))

	return nil
}

// Reschedule moves the call date and recomputes the due date with the
// configured lead days. Only open, unpaid calls may be rescheduled.
func (c *CapitalCall) Reschedule(callDate valueobject.DateOnly, leadDays int, notes string) error {
	if c.Status != CallStatusScheduled && c.Status != CallStatusCalled {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot reschedule call in %s status", c.Status))
	}
	if callDate.IsZero() {
		return shared.NewDomainError("INVALID_CALL_DATE", "Call date is required")
	}
	if leadDays < 0 {
		return shared.NewDomainError("INVALID_LEAD_DAYS", "Lead days cannot be negative")
	}

	c.CallDate = callDate
	c.DueDate = callDate.AddDays(leadDays)
	if notes != "" {
		c.Notes = notes
	}
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
	c.AddDomainEvent(NewCapitalCallRescheduledEvent(c))

	return nil
}

// MarkDefaulted closes the call because its owning allocation defaulted
func (c *CapitalCall) MarkDefaulted() error {
	if !c.Status.IsOpen() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot default call in %s status", c.Status))
	}

	c.Status = CallStatusDefaulted
	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	return nil
}

// IsOverdue returns true if the call is open past its due date
func (c *CapitalCall) IsOverdue(today valueobject.DateOnly) bool {
	return c.Status.IsOpen() && today.After(c.DueDate)
}

// GetCallAmountMoney returns the raw call amount as Money. For percentage
// calls this is percentage points, not currency; use NormalizedAmount for
// comparisons against allocation totals.
func (c *CapitalCall) GetCallAmountMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(c.CallAmount)
}

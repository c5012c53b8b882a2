// Package allocation contains the fund allocation aggregate and the
// capital-call reconciliation rules built around it. An allocation tracks
// one fund's capital commitment to one deal: how much was committed, how
// much has actually been paid in, and the lifecycle status derived from
// those amounts.
package allocation

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationStatus represents the lifecycle status of a fund allocation
type AllocationStatus string

const (
	AllocationStatusCommitted     AllocationStatus = "committed"      // No call issued, nothing paid
	AllocationStatusCalled        AllocationStatus = "called"         // Capital call issued, nothing paid yet
	AllocationStatusPartiallyPaid AllocationStatus = "partially_paid" // 0 < paid < committed
	AllocationStatusFunded        AllocationStatus = "funded"         // Fully paid
	AllocationStatusDefaulted     AllocationStatus = "defaulted"      // Administrative terminal state
)

// IsValid checks if the status is a valid AllocationStatus
func (s AllocationStatus) IsValid() bool {
	switch s {
	case AllocationStatusCommitted, AllocationStatusCalled, AllocationStatusPartiallyPaid,
		AllocationStatusFunded, AllocationStatusDefaulted:
		return true
	}
	return false
}

// String returns the string representation of AllocationStatus
func (s AllocationStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the allocation is in a terminal state
func (s AllocationStatus) IsTerminal() bool {
	return s == AllocationStatusDefaulted
}

// AcceptsPayments returns true if payments can be applied in this status
func (s AllocationStatus) AcceptsPayments() bool {
	return s != AllocationStatusDefaulted
}

// DeriveStatus is the single canonical status-derivation rule. The lifecycle
// status of an allocation is a pure function of its committed amount, its
// paid amount, and whether an open capital call exists. No other code path
// may assign a status (the defaulted state is set only by the explicit
// administrative action and is handled by the aggregate, never here).
func DeriveStatus(committed, paid decimal.Decimal, hasOpenCall bool) AllocationStatus {
	switch {
	case paid.LessThanOrEqual(decimal.Zero) && !hasOpenCall:
		return AllocationStatusCommitted
	case paid.LessThanOrEqual(decimal.Zero) && hasOpenCall:
		return AllocationStatusCalled
	case paid.LessThan(committed):
		return AllocationStatusPartiallyPaid
	default:
		return AllocationStatusFunded
	}
}

// SecurityType represents the instrument type of an allocation
type SecurityType string

const (
	SecurityTypeEquity      SecurityType = "equity"
	SecurityTypeDebt        SecurityType = "debt"
	SecurityTypeConvertible SecurityType = "convertible"
	SecurityTypeSafe        SecurityType = "safe"
	SecurityTypeOther       SecurityType = "other"
)

// IsValid checks if the security type is valid
func (s SecurityType) IsValid() bool {
	switch s {
	case SecurityTypeEquity, SecurityTypeDebt, SecurityTypeConvertible,
		SecurityTypeSafe, SecurityTypeOther:
		return true
	}
	return false
}

// PaymentRecord is an immutable record of money received against an
// allocation, optionally attributed to a specific capital call. It is a
// value object within the FundAllocation aggregate, stored as JSONB.
// Reconciliation never deletes payment records, only recomputes aggregate
// totals from them.
type PaymentRecord struct {
	ID            uuid.UUID       `json:"id"`
	CapitalCallID *uuid.UUID      `json:"capital_call_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method,omitempty"`
	Description   string          `json:"description,omitempty"`
	ReceivedAt    time.Time       `json:"received_at"`
}

// NewPaymentRecord creates a new payment record
func NewPaymentRecord(amount valueobject.Money, method, description string, capitalCallID *uuid.UUID) *PaymentRecord {
	return &PaymentRecord{
		ID:            uuid.New(),
		CapitalCallID: capitalCallID,
		Amount:        amount.Amount(),
		Method:        method,
		Description:   description,
		ReceivedAt:    time.Now(),
	}
}

// GetAmountMoney returns the amount as Money value object
func (p *PaymentRecord) GetAmountMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(p.Amount)
}

// PaymentLedger is the append-only list of payments applied to an
// allocation. It implements GORM Scanner/Valuer for JSONB storage.
type PaymentLedger []PaymentRecord

// Value implements driver.Valuer interface for GORM to store as JSONB
func (l PaymentLedger) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (l *PaymentLedger) Scan(value interface{}) error {
	if value == nil {
		*l = PaymentLedger{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan PaymentLedger: unsupported type")
	}

	if len(bytes) == 0 {
		*l = PaymentLedger{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// Total returns the sum of all payments in the ledger. The ledger is the
// authoritative record: integrity repair re-derives the cached paid amount
// from this sum whenever the two disagree.
func (l PaymentLedger) Total() decimal.Decimal {
	total := decimal.Zero
	for _, record := range l {
		total = total.Add(record.Amount)
	}
	return total
}

// FundAllocation is the aggregate root for one fund's capital commitment to
// one deal. The committed amount is fixed at creation; the paid amount is a
// monotonically non-decreasing running total mutated only through
// ApplyPayment (or integrity repair, which re-derives it from the ledger);
// the outstanding amount and status are derived, never set independently.
type FundAllocation struct {
	shared.BaseAggregateRoot
	FundID          uuid.UUID        `json:"fund_id"`
	DealID          uuid.UUID        `json:"deal_id"`
	SecurityType    SecurityType     `json:"security_type"`
	CommittedAmount decimal.Decimal  `json:"committed_amount"`
	PaidAmount      decimal.Decimal  `json:"paid_amount"`
	Status          AllocationStatus `json:"status"`
	Payments        PaymentLedger    `json:"payments"`
	Notes           string           `json:"notes,omitempty"`
	RequiresReview  bool             `json:"requires_review"`
	DefaultedAt     *time.Time       `json:"defaulted_at,omitempty"`
	DefaultReason   string           `json:"default_reason,omitempty"`
}

// NewFundAllocation creates a new allocation in the committed state
func NewFundAllocation(fundID, dealID uuid.UUID, committed valueobject.Money, securityType SecurityType, notes string) (*FundAllocation, error) {
	if fundID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_FUND", "Fund ID cannot be empty")
	}
	if dealID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_DEAL", "Deal ID cannot be empty")
	}
	if committed.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Committed amount must be positive")
	}
	if !securityType.IsValid() {
		return nil, shared.NewDomainError("INVALID_SECURITY_TYPE", fmt.Sprintf("Security type %q is not valid", securityType))
	}

	a := &FundAllocation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		FundID:            fundID,
		DealID:            dealID,
		SecurityType:      securityType,
		CommittedAmount:   committed.Amount(),
		PaidAmount:        decimal.Zero,
		Status:            AllocationStatusCommitted,
		Payments:          PaymentLedger{},
		Notes:             notes,
	}

	a.AddDomainEvent(NewAllocationCreatedEvent(a))

	return a, nil
}

// OutstandingAmount returns committed minus paid
func (a *FundAllocation) OutstandingAmount() decimal.Decimal {
	return a.CommittedAmount.Sub(a.PaidAmount)
}

// ApplyPayment appends an immutable payment record, recomputes the paid
// total and re-derives the status through the canonical derivation rule.
// The caller supplies hasOpenCall (open capital calls live outside this
// aggregate) and the deployment's overpayment policy. When overpayments are
// permitted the payment is recorded in full and the allocation is flagged
// for manual review, never silently truncated.
func (a *FundAllocation) ApplyPayment(amount valueobject.Money, method, description string, capitalCallID *uuid.UUID, hasOpenCall, allowOverpayment bool) (*PaymentRecord, error) {
	if !a.Status.AcceptsPayments() {
		return nil, shared.NewDomainError("ALLOCATION_DEFAULTED", "Cannot apply payment to a defaulted allocation without reinstatement")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	newPaid := a.PaidAmount.Add(amount.Amount())
	overpaid := newPaid.GreaterThan(a.CommittedAmount)
	if overpaid && !allowOverpayment {
		return nil, shared.NewDomainError("OVERPAYMENT_REJECTED",
			fmt.Sprintf("Payment of %s would raise paid amount to %s, exceeding committed amount %s",
				amount.Amount().StringFixed(2), newPaid.StringFixed(2), a.CommittedAmount.StringFixed(2)))
	}

	record := NewPaymentRecord(amount, method, description, capitalCallID)
	a.Payments = append(a.Payments, *record)
	a.PaidAmount = newPaid
	a.Status = DeriveStatus(a.CommittedAmount, a.PaidAmount, hasOpenCall)
	if overpaid {
		a.RequiresReview = true
	}

	a.UpdatedAt = time.Now()
	a.IncrementVersion()
	a.AddDomainEvent(NewPaymentProcessedEvent(a, record))

	return record, nil
}

// RefreshStatus re-derives the status from the current amounts. Used when
// an open capital call appears or disappears without a payment (e.g. a
// committed allocation becomes called when its first call is scheduled).
// Defaulted allocations keep their status until explicitly reinstated.
func (a *FundAllocation) RefreshStatus(hasOpenCall bool) bool {
	if a.Status == AllocationStatusDefaulted {
		return false
	}
	derived := DeriveStatus(a.CommittedAmount, a.PaidAmount, hasOpenCall)
	if derived == a.Status {
		return false
	}
	a.Status = derived
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
	return true
}

// MarkDefaulted forces the allocation into the defaulted state. This is the
// only status assignment outside the derivation rule; once defaulted, no
// payments are accepted until Reinstate is called.
func (a *FundAllocation) MarkDefaulted(reason string) error {
	if a.Status == AllocationStatusDefaulted {
		return shared.NewDomainError("INVALID_STATE", "Allocation is already defaulted")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Default reason is required")
	}

	now := time.Now()
	previous := a.Status
	a.Status = AllocationStatusDefaulted
	a.DefaultedAt = &now
	a.DefaultReason = reason
	a.UpdatedAt = now
	a.IncrementVersion()
	a.AddDomainEvent(NewAllocationDefaultedEvent(a, previous))

	return nil
}

// Reinstate lifts the defaulted state and re-derives the status from the
// allocation's amounts
func (a *FundAllocation) Reinstate(hasOpenCall bool) error {
	if a.Status != AllocationStatusDefaulted {
		return shared.NewDomainError("INVALID_STATE", "Only defaulted allocations can be reinstated")
	}

	a.Status = DeriveStatus(a.CommittedAmount, a.PaidAmount, hasOpenCall)
	a.DefaultedAt = nil
	a.DefaultReason = ""
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
	a.AddDomainEvent(NewAllocationReinstatedEvent(a))

	return nil
}

// ReconcileLedger forces the cached paid amount back to the ledger sum and
// re-derives the status. The ledger is the authoritative record; this is
// the repair path for rows whose cached total has drifted. A defaulted
// allocation keeps its status but still gets its amounts fixed. Returns
// true when anything changed.
func (a *FundAllocation) ReconcileLedger(hasOpenCall bool) bool {
	ledgerTotal := a.Payments.Total()
	changed := false

	if !a.PaidAmount.Equal(ledgerTotal) {
		a.PaidAmount = ledgerTotal
		changed = true
	}
	if a.Status != AllocationStatusDefaulted {
		derived := DeriveStatus(a.CommittedAmount, a.PaidAmount, hasOpenCall)
		if derived != a.Status {
			a.Status = derived
			changed = true
		}
	}

	if changed {
		a.UpdatedAt = time.Now()
		a.IncrementVersion()
	}
	return changed
}

// SetNotes updates the free-form notes
func (a *FundAllocation) SetNotes(notes string) {
	a.Notes = notes
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
}

// ClearReviewFlag removes the manual-review marker after an overpayment has
// been resolved
func (a *FundAllocation) ClearReviewFlag() {
	if !a.RequiresReview {
		return
	}
	a.RequiresReview = false
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
}

// Helper methods

// GetCommittedAmountMoney returns the committed amount as Money
func (a *FundAllocation) GetCommittedAmountMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(a.CommittedAmount)
}

// GetPaidAmountMoney returns the paid amount as Money
func (a *FundAllocation) GetPaidAmountMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(a.PaidAmount)
}

// GetOutstandingAmountMoney returns the outstanding amount as Money
func (a *FundAllocation) GetOutstandingAmountMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(a.OutstandingAmount())
}

// IsFunded returns true if the allocation is fully paid
func (a *FundAllocation) IsFunded() bool {
	return a.Status == AllocationStatusFunded
}

// IsDefaulted returns true if the allocation is defaulted
func (a *FundAllocation) IsDefaulted() bool {
	return a.Status == AllocationStatusDefaulted
}

// PaymentCount returns the number of payments in the ledger
func (a *FundAllocation) PaymentCount() int {
	return len(a.Payments)
}

// PaidPercentage returns the percentage of committed that has been paid (0-100)
func (a *FundAllocation) PaidPercentage() decimal.Decimal {
	if a.CommittedAmount.IsZero() {
		return decimal.Zero
	}
	return a.PaidAmount.Div(a.CommittedAmount).Mul(decimal.NewFromInt(100)).Round(2)
}

// LedgerTotal returns the authoritative sum of the payment ledger
func (a *FundAllocation) LedgerTotal() decimal.Decimal {
	return a.Payments.Total()
}

package pipeline

import (
	"time"

	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// FundStatus represents the investing lifecycle of a fund
type FundStatus string

const (
	FundStatusOpen          FundStatus = "open"           // Raising, not yet investing
	FundStatusInvesting     FundStatus = "investing"      // Actively deploying capital
	FundStatusFullyDeployed FundStatus = "fully_deployed" // All capital committed
	FundStatusClosed        FundStatus = "closed"         // Wound down
)

// IsValid checks if the status is a valid FundStatus
func (s FundStatus) IsValid() bool {
	switch s {
	case FundStatusOpen, FundStatusInvesting, FundStatusFullyDeployed, FundStatusClosed:
		return true
	}
	return false
}

// String returns the string representation of FundStatus
func (s FundStatus) String() string {
	return string(s)
}

// CanAllocate returns true if new allocations may be opened for the fund
func (s FundStatus) CanAllocate() bool {
	return s == FundStatusOpen || s == FundStatusInvesting
}

// Fund represents an investment vehicle that commits capital to deals.
// It is the aggregate root for fund-related operations.
type Fund struct {
	shared.BaseAggregateRoot
	Name       string           `json:"name"`
	Vintage    int              `json:"vintage"`
	TargetSize *decimal.Decimal `json:"target_size,omitempty"`
	Status     FundStatus       `json:"status"`
}

// NewFund creates a new fund in the open status
func NewFund(name string, vintage int, targetSize *valueobject.Money) (*Fund, error) {
	if err := validateFundName(name); err != nil {
		return nil, err
	}
	if err := validateVintage(vintage); err != nil {
		return nil, err
	}

	fund := &Fund{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Vintage:           vintage,
		Status:            FundStatusOpen,
	}

	if targetSize != nil {
		if targetSize.Amount().LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError("INVALID_AMOUNT", "Target size must be positive")
		}
		amount := targetSize.Amount()
		fund.TargetSize = &amount
	}

	fund.AddDomainEvent(NewFundCreatedEvent(fund))

	return fund, nil
}

// Update updates the fund's basic information
func (f *Fund) Update(name string, vintage int) error {
	if err := validateFundName(name); err != nil {
		return err
	}
	if err := validateVintage(vintage); err != nil {
		return err
	}

	f.Name = name
	f.Vintage = vintage
	f.UpdatedAt = time.Now()
	f.IncrementVersion()

	f.AddDomainEvent(NewFundUpdatedEvent(f))

	return nil
}

// ChangeStatus moves the fund to the target status. A closed fund stays
// closed.
func (f *Fund) ChangeStatus(target FundStatus) error {
	if !target.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Target status is not valid")
	}
	if f.Status == FundStatusClosed {
		return shared.NewDomainError("INVALID_STATE", "Cannot change status of a closed fund")
	}
	if f.Status == target {
		return shared.NewDomainError("INVALID_STATE", "Fund is already "+target.String())
	}

	oldStatus := f.Status
	f.Status = target
	f.UpdatedAt = time.Now()
	f.IncrementVersion()

	f.AddDomainEvent(NewFundStatusChangedEvent(f, oldStatus, target))

	return nil
}

// SetTargetSize sets or clears the target size
func (f *Fund) SetTargetSize(targetSize *valueobject.Money) error {
	if targetSize == nil {
		f.TargetSize = nil
	} else {
		if targetSize.Amount().LessThanOrEqual(decimal.Zero) {
			return shared.NewDomainError("INVALID_AMOUNT", "Target size must be positive")
		}
		amount := targetSize.Amount()
		f.TargetSize = &amount
	}

	f.UpdatedAt = time.Now()
	f.IncrementVersion()

	return nil
}

// CanAllocate returns true if new allocations may be opened for this fund
func (f *Fund) CanAllocate() bool {
	return f.Status.CanAllocate()
}

// GetTargetSizeMoney returns the target size as Money, or nil when unset
func (f *Fund) GetTargetSizeMoney() *valueobject.Money {
	if f.TargetSize == nil {
		return nil
	}
	money := valueobject.NewMoneyUSD(*f.TargetSize)
	return &money
}

// validateFundName validates the fund name
func validateFundName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Fund name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Fund name cannot exceed 200 characters")
	}
	return nil
}

// validateVintage validates the vintage year
func validateVintage(vintage int) error {
	if vintage < 1980 || vintage > 2100 {
		return shared.NewDomainError("INVALID_VINTAGE", "Vintage year must be between 1980 and 2100")
	}
	return nil
}

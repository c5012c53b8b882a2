// Package pipeline contains the deal pipeline and fund aggregates. Deals
// move through a fixed stage graph; allocations may only be opened against
// deals that have reached an investable stage.
package pipeline

import (
	"time"

	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DealStage represents the pipeline stage of a deal
type DealStage string

const (
	DealStageScreening    DealStage = "screening"
	DealStageDueDiligence DealStage = "due_diligence"
	DealStageICReview     DealStage = "ic_review"
	DealStageInvested     DealStage = "invested"
	DealStageClosed       DealStage = "closed"
	DealStagePassed       DealStage = "passed"
)

// IsValid checks if the stage is a valid DealStage
func (s DealStage) IsValid() bool {
	switch s {
	case DealStageScreening, DealStageDueDiligence, DealStageICReview,
		DealStageInvested, DealStageClosed, DealStagePassed:
		return true
	}
	return false
}

// String returns the string representation of DealStage
func (s DealStage) String() string {
	return string(s)
}

// IsInvestable returns true if allocations may be created against a deal in
// this stage
func (s DealStage) IsInvestable() bool {
	return s == DealStageInvested
}

// IsTerminal returns true if the deal has left the active pipeline
func (s DealStage) IsTerminal() bool {
	return s == DealStageClosed || s == DealStagePassed
}

// CanTransitionTo checks if the stage can transition to the target stage
func (s DealStage) CanTransitionTo(target DealStage) bool {
	switch s {
	case DealStageScreening:
		return target == DealStageDueDiligence || target == DealStagePassed
	case DealStageDueDiligence:
		return target == DealStageICReview || target == DealStagePassed
	case DealStageICReview:
		return target == DealStageInvested || target == DealStagePassed
	case DealStageInvested:
		return target == DealStageClosed
	case DealStageClosed, DealStagePassed:
		return false // Terminal stages
	}
	return false
}

// Deal represents an investment opportunity moving through the pipeline.
// It is the aggregate root for deal-related operations.
type Deal struct {
	shared.BaseAggregateRoot
	Name        string           `json:"name"`
	Sector      string           `json:"sector"`
	Stage       DealStage        `json:"stage"`
	TargetRaise *decimal.Decimal `json:"target_raise,omitempty"`
	Description string           `json:"description,omitempty"`
}

// NewDeal creates a new deal in the screening stage
func NewDeal(name, sector string, targetRaise *valueobject.Money, description string) (*Deal, error) {
	if err := validateDealName(name); err != nil {
		return nil, err
	}

	deal := &Deal{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Sector:            sector,
		Stage:             DealStageScreening,
		Description:       description,
	}

	if targetRaise != nil {
		if targetRaise.Amount().LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError("INVALID_AMOUNT", "Target raise must be positive")
		}
		amount := targetRaise.Amount()
		deal.TargetRaise = &amount
	}

	deal.AddDomainEvent(NewDealCreatedEvent(deal))

	return deal, nil
}

// Update updates the deal's basic information
func (d *Deal) Update(name, sector, description string) error {
	if err := validateDealName(name); err != nil {
		return err
	}

	d.Name = name
	d.Sector = sector
	d.Description = description
	d.UpdatedAt = time.Now()
	d.IncrementVersion()

	d.AddDomainEvent(NewDealUpdatedEvent(d))

	return nil
}

// AdvanceStage moves the deal to the target stage. Only transitions allowed
// by the stage graph are accepted; terminal stages cannot be left.
func (d *Deal) AdvanceStage(target DealStage) error {
	if !target.IsValid() {
		return shared.NewDomainError("INVALID_STAGE", "Target stage is not valid")
	}
	if !d.Stage.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot move deal from "+d.Stage.String()+" to "+target.String())
	}

	oldStage := d.Stage
	d.Stage = target
	d.UpdatedAt = time.Now()
	d.IncrementVersion()

	d.AddDomainEvent(NewDealStageChangedEvent(d, oldStage, target))

	return nil
}

// SetTargetRaise sets or clears the target raise amount
func (d *Deal) SetTargetRaise(targetRaise *valueobject.Money) error {
	if targetRaise == nil {
		d.TargetRaise = nil
	} else {
		if targetRaise.Amount().LessThanOrEqual(decimal.Zero) {
			return shared.NewDomainError("INVALID_AMOUNT", "Target raise must be positive")
		}
		amount := targetRaise.Amount()
		d.TargetRaise = &amount
	}

	d.UpdatedAt = time.Now()
	d.IncrementVersion()

	return nil
}

// IsInvestable returns true if allocations may be created against this deal
func (d *Deal) IsInvestable() bool {
	return d.Stage.IsInvestable()
}

// GetTargetRaiseMoney returns the target raise as Money, or nil when unset
func (d *Deal) GetTargetRaiseMoney() *valueobject.Money {
	if d.TargetRaise == nil {
		return nil
	}
	money := valueobject.NewMoneyUSD(*d.TargetRaise)
	return &money
}

// validateDealName validates the deal name
func validateDealName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Deal name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Deal name cannot exceed 200 characters")
	}
	return nil
}

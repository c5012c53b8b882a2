package models

import (
	"github.com/dealflow/backend/internal/domain/pipeline"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DealModel is the persistence model for the Deal aggregate root.
type DealModel struct {
	AggregateModel
	Name        string             `gorm:"type:varchar(200);not null"`
	Sector      string             `gorm:"type:varchar(100);index"`
	Stage       pipeline.DealStage `gorm:"type:varchar(20);not null;default:'screening';index"`
	TargetRaise *decimal.Decimal   `gorm:"type:decimal(18,4)"`
	Description string             `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (DealModel) TableName() string {
	return "deals"
}

// ToDomain converts the persistence model to a domain Deal entity.
func (m *DealModel) ToDomain() *pipeline.Deal {
	return &pipeline.Deal{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		Name:        m.Name,
		Sector:      m.Sector,
		Stage:       m.Stage,
		TargetRaise: m.TargetRaise,
		Description: m.Description,
	}
}

// FromDomain populates the persistence model from a domain Deal entity.
func (m *DealModel) FromDomain(d *pipeline.Deal) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	m.Name = d.Name
	m.Sector = d.Sector
	m.Stage = d.Stage
	m.TargetRaise = d.TargetRaise
	m.Description = d.Description
}

// DealModelFromDomain creates a new persistence model from a domain Deal.
func DealModelFromDomain(d *pipeline.Deal) *DealModel {
	m := &DealModel{}
	m.FromDomain(d)
	return m
}

// FundModel is the persistence model for the Fund aggregate root.
type FundModel struct {
	AggregateModel
	Name       string              `gorm:"type:varchar(200);not null"`
	Vintage    int                 `gorm:"not null;index"`
	TargetSize *decimal.Decimal    `gorm:"type:decimal(18,4)"`
	Status     pipeline.FundStatus `gorm:"type:varchar(20);not null;default:'open';index"`
}

// TableName returns the table name for GORM
func (FundModel) TableName() string {
	return "funds"
}

// ToDomain converts the persistence model to a domain Fund entity.
func (m *FundModel) ToDomain() *pipeline.Fund {
	return &pipeline.Fund{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		Name:       m.Name,
		Vintage:    m.Vintage,
		TargetSize: m.TargetSize,
		Status:     m.Status,
	}
}

// FromDomain populates the persistence model from a domain Fund entity.
func (m *FundModel) FromDomain(f *pipeline.Fund) {
	m.FromDomainAggregateRoot(f.BaseAggregateRoot)
	m.Name = f.Name
	m.Vintage = f.Vintage
	m.TargetSize = f.TargetSize
	m.Status = f.Status
}

// FundModelFromDomain creates a new persistence model from a domain Fund.
func FundModelFromDomain(f *pipeline.Fund) *FundModel {
	m := &FundModel{}
	m.FromDomain(f)
	return m
}

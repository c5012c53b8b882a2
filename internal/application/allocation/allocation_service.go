package allocation

import (
	"context"
	"time"

	"github.com/dealflow/backend/internal/domain/allocation"
	"github.com/dealflow/backend/internal/domain/pipeline"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AllocationService provides application-level fund allocation operations
type AllocationService struct {
	allocationRepo allocation.AllocationRepository
	callRepo       allocation.CapitalCallRepository
	dealRepo       pipeline.DealRepository
	fundRepo       pipeline.FundRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(
	allocationRepo allocation.AllocationRepository,
	callRepo allocation.CapitalCallRepository,
	dealRepo pipeline.DealRepository,
	fundRepo pipeline.FundRepository,
) *AllocationService {
	return &AllocationService{
		allocationRepo: allocationRepo,
		callRepo:       callRepo,
		dealRepo:       dealRepo,
		fundRepo:       fundRepo,
		logger:         zap.NewNop(),
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *AllocationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLogger sets the logger used for non-fatal failures such as event
// publish errors
func (s *AllocationService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// AllocationResponse represents a fund allocation in API responses
type AllocationResponse struct {
	ID                uuid.UUID         `json:"id"`
	FundID            uuid.UUID         `json:"fund_id"`
	DealID            uuid.UUID         `json:"deal_id"`
	SecurityType      string            `json:"security_type"`
	CommittedAmount   decimal.Decimal   `json:"committed_amount"`
	PaidAmount        decimal.Decimal   `json:"paid_amount"`
	OutstandingAmount decimal.Decimal   `json:"outstanding_amount"`
	PaidPercentage    decimal.Decimal   `json:"paid_percentage"`
	Status            string            `json:"status"`
	Payments          []PaymentResponse `json:"payments,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	RequiresReview    bool              `json:"requires_review"`
	DefaultedAt       *time.Time        `json:"defaulted_at,omitempty"`
	DefaultReason     string            `json:"default_reason,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	Version           int               `json:"version"`
}

// PaymentResponse represents a ledger entry in API responses
type PaymentResponse struct {
	ID            uuid.UUID       `json:"id"`
	CapitalCallID *uuid.UUID      `json:"capital_call_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method,omitempty"`
	Description   string          `json:"description,omitempty"`
	ReceivedAt    time.Time       `json:"received_at"`
}

// CreateAllocationRequest represents a request to commit a fund to a deal
type CreateAllocationRequest struct {
	FundID          uuid.UUID       `json:"fund_id" binding:"required"`
	DealID          uuid.UUID       `json:"deal_id" binding:"required"`
	CommittedAmount decimal.Decimal `json:"committed_amount" binding:"required"`
	SecurityType    string          `json:"security_type"`
	Notes           string          `json:"notes"`
}

// AllocationListFilter defines filtering options for allocation list queries
type AllocationListFilter struct {
	Search         string     `form:"search"`
	FundID         *uuid.UUID `form:"fund_id"`
	DealID         *uuid.UUID `form:"deal_id"`
	Status         string     `form:"status"`
	SecurityType   string     `form:"security_type"`
	RequiresReview *bool      `form:"requires_review"`
	Page           int        `form:"page"`
	PageSize       int        `form:"page_size"`
}

// Create commits a fund to a deal. The deal must have reached the invested
// stage and the fund must still accept allocations; a fund commits to a
// given deal at most once while the earlier allocation is active.
func (s *AllocationService) Create(ctx context.Context, req CreateAllocationRequest) (*AllocationResponse, error) {
	fund, err := s.fundRepo.FindByID(ctx, req.FundID)
	if err != nil {
		return nil, err
	}
	if fund == nil {
		return nil, shared.NewDomainError("FUND_NOT_FOUND", "Fund not found")
	}
	if !fund.CanAllocate() {
		return nil, shared.NewDomainError("FUND_NOT_OPEN", "Fund "+fund.Name+" is not accepting allocations in status "+string(fund.Status))
	}

	deal, err := s.dealRepo.FindByID(ctx, req.DealID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, shared.NewDomainError("DEAL_NOT_FOUND", "Deal not found")
	}
	if !deal.IsInvestable() {
		return nil, shared.NewDomainError("DEAL_NOT_INVESTABLE", "Deal "+deal.Name+" is in stage "+string(deal.Stage)+" and cannot receive allocations")
	}

	exists, err := s.allocationRepo.ExistsActiveForFundAndDeal(ctx, req.FundID, req.DealID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("ALLOCATION_EXISTS", "An active allocation already links this fund and deal")
	}

	securityType := allocation.SecurityType(req.SecurityType)
	if req.SecurityType == "" {
		securityType = allocation.SecurityTypeEquity
	}

	committed := valueobject.NewMoneyUSD(req.CommittedAmount)
	alloc, err := allocation.NewFundAllocation(req.FundID, req.DealID, committed, securityType, req.Notes)
	if err != nil {
		return nil, err
	}

	if err := s.allocationRepo.Save(ctx, alloc); err != nil {
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, alloc.GetDomainEvents())

	return toAllocationResponse(alloc), nil
}

// Get gets an allocation by ID, including its payment ledger
func (s *AllocationService) Get(ctx context.Context, id uuid.UUID) (*AllocationResponse, error) {
	alloc, err := s.allocationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, shared.NewDomainError("ALLOCATION_NOT_FOUND", "Allocation not found")
	}
	return toAllocationResponse(alloc), nil
}

// List lists allocations with filtering
func (s *AllocationService) List(ctx context.Context, filter AllocationListFilter) ([]AllocationResponse, int64, error) {
	domainFilter := allocation.AllocationFilter{
		FundID:         filter.FundID,
		DealID:         filter.DealID,
		RequiresReview: filter.RequiresReview,
	}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize
	domainFilter.Search = filter.Search

	if filter.Status != "" {
		status := allocation.AllocationStatus(filter.Status)
		domainFilter.Status = &status
	}
	if filter.SecurityType != "" {
		securityType := allocation.SecurityType(filter.SecurityType)
		domainFilter.SecurityType = &securityType
	}

	allocations, err := s.allocationRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.allocationRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]AllocationResponse, len(allocations))
	for i := range allocations {
		responses[i] = *toAllocationResponse(&allocations[i])
	}

	return responses, total, nil
}

// ListByDeal lists every allocation committed to a deal
func (s *AllocationService) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]AllocationResponse, error) {
	allocations, err := s.allocationRepo.FindByDealID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	responses := make([]AllocationResponse, len(allocations))
	for i := range allocations {
		responses[i] = *toAllocationResponse(&allocations[i])
	}
	return responses, nil
}

// UpdateNotes replaces the free-form notes on an allocation
func (s *AllocationService) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*AllocationResponse, error) {
	alloc, err := s.allocationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, shared.NewDomainError("ALLOCATION_NOT_FOUND", "Allocation not found")
	}

	alloc.SetNotes(notes)
	if err := s.allocationRepo.SaveWithLock(ctx, alloc); err != nil {
		return nil, err
	}
	return toAllocationResponse(alloc), nil
}

// ClearReview clears the manual review flag after an overpayment has been
// looked at
func (s *AllocationService) ClearReview(ctx context.Context, id uuid.UUID) (*AllocationResponse, error) {
	alloc, err := s.allocationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, shared.NewDomainError("ALLOCATION_NOT_FOUND", "Allocation not found")
	}

	if alloc.RequiresReview {
		alloc.ClearReviewFlag()
		if err := s.allocationRepo.SaveWithLock(ctx, alloc); err != nil {
			return nil, err
		}
	}
	return toAllocationResponse(alloc), nil
}

// toAllocationResponse converts a domain allocation to a response
func toAllocationResponse(a *allocation.FundAllocation) *AllocationResponse {
	payments := make([]PaymentResponse, len(a.Payments))
	for i, p := range a.Payments {
		payments[i] = PaymentResponse{
			ID:            p.ID,
			CapitalCallID: p.CapitalCallID,
			Amount:        p.Amount,
			Method:        p.Method,
			Description:   p.Description,
			ReceivedAt:    p.ReceivedAt,
		}
	}

	return &AllocationResponse{
		ID:                a.ID,
		FundID:            a.FundID,
		DealID:            a.DealID,
		SecurityType:      string(a.SecurityType),
		CommittedAmount:   a.CommittedAmount,
		PaidAmount:        a.PaidAmount,
		OutstandingAmount: a.OutstandingAmount(),
		PaidPercentage:    a.PaidPercentage(),
		Status:            string(a.Status),
		Payments:          payments,
		Notes:             a.Notes,
		RequiresReview:    a.RequiresReview,
		DefaultedAt:       a.DefaultedAt,
		DefaultReason:     a.DefaultReason,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
		Version:           a.Version,
	}
}

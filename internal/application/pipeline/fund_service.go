package pipeline

import (
	"context"
	"time"

	"github.com/dealflow/backend/internal/domain/allocation"
	"github.com/dealflow/backend/internal/domain/pipeline"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FundService provides application-level fund operations
type FundService struct {
	fundRepo       pipeline.FundRepository
	allocationRepo allocation.AllocationRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewFundService creates a new FundService
func NewFundService(fundRepo pipeline.FundRepository, allocationRepo allocation.AllocationRepository) *FundService {
	return &FundService{
		fundRepo:       fundRepo,
		allocationRepo: allocationRepo,
		logger:         zap.NewNop(),
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *FundService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLogger sets the logger used for non-fatal failures such as event
// publish errors
func (s *FundService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// FundResponse represents a fund in API responses
type FundResponse struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Vintage     int              `json:"vintage"`
	TargetSize  *decimal.Decimal `json:"target_size,omitempty"`
	Status      string           `json:"status"`
	CanAllocate bool             `json:"can_allocate"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Version     int              `json:"version"`
}

// FundSummaryResponse aggregates a fund's financial position across all of
// its allocations
type FundSummaryResponse struct {
	FundID           uuid.UUID        `json:"fund_id"`
	Name             string           `json:"name"`
	Vintage          int              `json:"vintage"`
	Status           string           `json:"status"`
	TargetSize       *decimal.Decimal `json:"target_size,omitempty"`
	TotalCommitted   decimal.Decimal  `json:"total_committed"`
	TotalPaid        decimal.Decimal  `json:"total_paid"`
	TotalOutstanding decimal.Decimal  `json:"total_outstanding"`
	AllocationCount  int64            `json:"allocation_count"`
	CountsByStatus   map[string]int64 `json:"counts_by_status"`
}

// CreateFundRequest represents a request to create a fund
type CreateFundRequest struct {
	Name       string           `json:"name" binding:"required"`
	Vintage    int              `json:"vintage" binding:"required"`
	TargetSize *decimal.Decimal `json:"target_size"`
}

// UpdateFundRequest represents a request to update a fund's basic information
type UpdateFundRequest struct {
	Name       string           `json:"name" binding:"required"`
	Vintage    int              `json:"vintage" binding:"required"`
	TargetSize *decimal.Decimal `json:"target_size"`
	Status     string           `json:"status"`
}

// FundListFilter defines filtering options for fund list queries
type FundListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status"`
	Vintage  *int   `form:"vintage"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// Create creates a new fund in the open status
func (s *FundService) Create(ctx context.Context, req CreateFundRequest) (*FundResponse, error) {
	fund, err := pipeline.NewFund(req.Name, req.Vintage, moneyFromOptional(req.TargetSize))
	if err != nil {
		return nil, err
	}

	if err := s.fundRepo.Save(ctx, fund); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, fund.GetDomainEvents())

	return toFundResponse(fund), nil
}

// Get retrieves a fund by ID
func (s *FundService) Get(ctx context.Context, id uuid.UUID) (*FundResponse, error) {
	fund, err := s.findFund(ctx, id)
	if err != nil {
		return nil, err
	}
	return toFundResponse(fund), nil
}

// List retrieves funds matching the filter
func (s *FundService) List(ctx context.Context, filter FundListFilter) ([]FundResponse, int64, error) {
	domainFilter := pipeline.FundFilter{Vintage: filter.Vintage}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize
	domainFilter.Search = filter.Search

	if filter.Status != "" {
		status := pipeline.FundStatus(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewDomainError("VALIDATION_ERROR", "Unknown fund status: "+filter.Status)
		}
		domainFilter.Status = &status
	}

	funds, err := s.fundRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.fundRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]FundResponse, len(funds))
	for i := range funds {
		responses[i] = *toFundResponse(&funds[i])
	}

	return responses, total, nil
}

// Update updates a fund's basic information and, when requested, moves it
// to a new status
func (s *FundService) Update(ctx context.Context, id uuid.UUID, req UpdateFundRequest) (*FundResponse, error) {
	fund, err := s.findFund(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fund.Update(req.Name, req.Vintage); err != nil {
		return nil, err
	}
	if req.TargetSize != nil {
		if err := fund.SetTargetSize(moneyFromOptional(req.TargetSize)); err != nil {
			return nil, err
		}
	}
	if req.Status != "" && req.Status != string(fund.Status) {
		if err := fund.ChangeStatus(pipeline.FundStatus(req.Status)); err != nil {
			return nil, err
		}
	}

	if err := s.fundRepo.SaveWithLock(ctx, fund); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, fund.GetDomainEvents())

	return toFundResponse(fund), nil
}

// Summary aggregates the fund's position across all of its allocations:
// committed, paid and outstanding totals plus a per-status breakdown. The
// totals are summed in the store, not by loading every allocation.
func (s *FundService) Summary(ctx context.Context, fundID uuid.UUID) (*FundSummaryResponse, error) {
	var response *FundSummaryResponse
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.EngineOperationLabels(telemetry.OperationFundSummary, fundID.String()), func(c context.Context) {
		response, operationErr = s.summary(c, fundID)
	})
	return response, operationErr
}

func (s *FundService) summary(ctx context.Context, fundID uuid.UUID) (*FundSummaryResponse, error) {
	fund, err := s.findFund(ctx, fundID)
	if err != nil {
		return nil, err
	}

	totals, err := s.allocationRepo.SumTotalsByFund(ctx, fundID)
	if err != nil {
		return nil, err
	}

	countsByStatus := make(map[string]int64)
	for _, status := range []allocation.AllocationStatus{
		allocation.AllocationStatusCommitted,
		allocation.AllocationStatusCalled,
		allocation.AllocationStatusPartiallyPaid,
		allocation.AllocationStatusFunded,
		allocation.AllocationStatusDefaulted,
	} {
		count, err := s.allocationRepo.CountByStatus(ctx, &fundID, status)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			countsByStatus[string(status)] = count
		}
	}

	return &FundSummaryResponse{
		FundID:           fund.ID,
		Name:             fund.Name,
		Vintage:          fund.Vintage,
		Status:           string(fund.Status),
		TargetSize:       fund.TargetSize,
		TotalCommitted:   totals.TotalCommitted,
		TotalPaid:        totals.TotalPaid,
		TotalOutstanding: totals.TotalOutstanding,
		AllocationCount:  totals.AllocationCount,
		CountsByStatus:   countsByStatus,
	}, nil
}

func (s *FundService) findFund(ctx context.Context, id uuid.UUID) (*pipeline.Fund, error) {
	fund, err := s.fundRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if fund == nil {
		return nil, shared.NewDomainError("FUND_NOT_FOUND", "Fund not found")
	}
	return fund, nil
}

// publishEvents publishes pending domain events. A publish failure is
// logged and does not fail the operation that raised the events.
func (s *FundService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	for _, event := range events {
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("domain event publish failed",
				zap.String("event_type", event.EventType()),
				zap.String("aggregate_id", event.AggregateID().String()),
				zap.Error(err))
		}
	}
}

// toFundResponse converts a domain fund to a response
func toFundResponse(f *pipeline.Fund) *FundResponse {
	return &FundResponse{
		ID:          f.ID,
		Name:        f.Name,
		Vintage:     f.Vintage,
		TargetSize:  f.TargetSize,
		Status:      string(f.Status),
		CanAllocate: f.CanAllocate(),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		Version:     f.Version,
	}
}

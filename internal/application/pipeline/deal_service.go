// Package pipeline provides application services for the deal pipeline and
// fund contexts.
package pipeline

import (
	"context"
	"time"

	"github.com/dealflow/backend/internal/domain/pipeline"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DealService provides application-level deal pipeline operations
type DealService struct {
	dealRepo       pipeline.DealRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewDealService creates a new DealService
func NewDealService(dealRepo pipeline.DealRepository) *DealService {
	return &DealService{dealRepo: dealRepo, logger: zap.NewNop()}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *DealService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLogger sets the logger used for non-fatal failures such as event
// publish errors
func (s *DealService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// DealResponse represents a deal in API responses
type DealResponse struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Sector      string           `json:"sector,omitempty"`
	Stage       string           `json:"stage"`
	TargetRaise *decimal.Decimal `json:"target_raise,omitempty"`
	Description string           `json:"description,omitempty"`
	Investable  bool             `json:"investable"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Version     int              `json:"version"`
}

// CreateDealRequest represents a request to add a deal to the pipeline
type CreateDealRequest struct {
	Name        string           `json:"name" binding:"required"`
	Sector      string           `json:"sector"`
	TargetRaise *decimal.Decimal `json:"target_raise"`
	Description string           `json:"description"`
}

// UpdateDealRequest represents a request to update a deal's basic information
type UpdateDealRequest struct {
	Name        string           `json:"name" binding:"required"`
	Sector      string           `json:"sector"`
	TargetRaise *decimal.Decimal `json:"target_raise"`
	Description string           `json:"description"`
}

// AdvanceStageRequest represents a request to move a deal through the pipeline
type AdvanceStageRequest struct {
	Stage string `json:"stage" binding:"required"`
}

// DealListFilter defines filtering options for deal list queries
type DealListFilter struct {
	Search   string `form:"search"`
	Stage    string `form:"stage"`
	Sector   string `form:"sector"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// Create adds a new deal to the pipeline in the screening stage
func (s *DealService) Create(ctx context.Context, req CreateDealRequest) (*DealResponse, error) {
	deal, err := pipeline.NewDeal(req.Name, req.Sector, moneyFromOptional(req.TargetRaise), req.Description)
	if err != nil {
		return nil, err
	}

	if err := s.dealRepo.Save(ctx, deal); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, deal.GetDomainEvents())

	return toDealResponse(deal), nil
}

// Get retrieves a deal by ID
func (s *DealService) Get(ctx context.Context, id uuid.UUID) (*DealResponse, error) {
	deal, err := s.findDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDealResponse(deal), nil
}

// List retrieves deals matching the filter
func (s *DealService) List(ctx context.Context, filter DealListFilter) ([]DealResponse, int64, error) {
	domainFilter := pipeline.DealFilter{}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize
	domainFilter.Search = filter.Search

	if filter.Stage != "" {
		stage := pipeline.DealStage(filter.Stage)
		if !stage.IsValid() {
			return nil, 0, shared.NewDomainError("VALIDATION_ERROR", "Unknown deal stage: "+filter.Stage)
		}
		domainFilter.Stage = &stage
	}
	if filter.Sector != "" {
		sector := filter.Sector
		domainFilter.Sector = &sector
	}

	deals, err := s.dealRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.dealRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]DealResponse, len(deals))
	for i := range deals {
		responses[i] = *toDealResponse(&deals[i])
	}

	return responses, total, nil
}

// Update updates a deal's basic information
func (s *DealService) Update(ctx context.Context, id uuid.UUID, req UpdateDealRequest) (*DealResponse, error) {
	deal, err := s.findDeal(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := deal.Update(req.Name, req.Sector, req.Description); err != nil {
		return nil, err
	}
	if req.TargetRaise != nil {
		if err := deal.SetTargetRaise(moneyFromOptional(req.TargetRaise)); err != nil {
			return nil, err
		}
	}

	if err := s.dealRepo.SaveWithLock(ctx, deal); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, deal.GetDomainEvents())

	return toDealResponse(deal), nil
}

// AdvanceStage moves a deal to the target pipeline stage. Only transitions
// allowed by the stage graph are accepted.
func (s *DealService) AdvanceStage(ctx context.Context, id uuid.UUID, req AdvanceStageRequest) (*DealResponse, error) {
	deal, err := s.findDeal(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := deal.AdvanceStage(pipeline.DealStage(req.Stage)); err != nil {
		return nil, err
	}

	if err := s.dealRepo.SaveWithLock(ctx, deal); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, deal.GetDomainEvents())

	return toDealResponse(deal), nil
}

func (s *DealService) findDeal(ctx context.Context, id uuid.UUID) (*pipeline.Deal, error) {
	deal, err := s.dealRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, shared.NewDomainError("DEAL_NOT_FOUND", "Deal not found")
	}
	return deal, nil
}

// publishEvents publishes pending domain events. A publish failure is
// logged and does not fail the operation that raised the events.
func (s *DealService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
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

// moneyFromOptional converts an optional raw amount into Money. Positivity
// is enforced by the aggregate.
func moneyFromOptional(amount *decimal.Decimal) *valueobject.Money {
	if amount == nil {
		return nil
	}
	money := valueobject.NewMoneyUSD(*amount)
	return &money
}

// toDealResponse converts a domain deal to a response
func toDealResponse(d *pipeline.Deal) *DealResponse {
	return &DealResponse{
		ID:          d.ID,
		Name:        d.Name,
		Sector:      d.Sector,
		Stage:       string(d.Stage),
		TargetRaise: d.TargetRaise,
		Description: d.Description,
		Investable:  d.IsInvestable(),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		Version:     d.Version,
	}
}

package allocation

import (
	"context"
	"fmt"

	"github.com/dealflow/backend/internal/domain/allocation"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/dealflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CapitalCallService schedules and settles capital calls against fund
// allocations
type CapitalCallService struct {
	allocationRepo allocation.AllocationRepository
	callRepo       allocation.CapitalCallRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger

	leadDays          int
	allowOverpayments bool
	defaultMethod     string
}

// CapitalCallServiceOption is a functional option for configuring
// CapitalCallService
type CapitalCallServiceOption func(*CapitalCallService)

// WithCallLeadDays sets the number of days between a call's call date and
// its derived due date
func WithCallLeadDays(days int) CapitalCallServiceOption {
	return func(s *CapitalCallService) {
		if days > 0 {
			s.leadDays = days
		}
	}
}

// WithSettlementOverpaymentsAllowed controls the overpayment policy applied
// when a settlement amount pushes the allocation past its commitment. It
// mirrors the payment processor's policy and should be wired from the same
// configuration key.
func WithSettlementOverpaymentsAllowed(allowed bool) CapitalCallServiceOption {
	return func(s *CapitalCallService) {
		s.allowOverpayments = allowed
	}
}

// WithSettlementPaymentMethod sets the method recorded on payments created
// by call settlement
func WithSettlementPaymentMethod(method string) CapitalCallServiceOption {
	return func(s *CapitalCallService) {
		if method != "" {
			s.defaultMethod = method
		}
	}
}

// NewCapitalCallService creates a new CapitalCallService
func NewCapitalCallService(
	allocationRepo allocation.AllocationRepository,
	callRepo allocation.CapitalCallRepository,
	opts ...CapitalCallServiceOption,
) *CapitalCallService {
	s := &CapitalCallService{
		allocationRepo:    allocationRepo,
		callRepo:          callRepo,
		logger:            zap.NewNop(),
		leadDays:          10,
		allowOverpayments: false,
		defaultMethod:     "wire",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *CapitalCallService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLogger sets the logger used for non-fatal failures such as event
// publish errors
func (s *CapitalCallService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// CapitalCallResponse represents a capital call in API responses
type CapitalCallResponse struct {
	ID               uuid.UUID        `json:"id"`
	AllocationID     uuid.UUID        `json:"allocation_id"`
	CallNumber       string           `json:"call_number"`
	CallAmount       decimal.Decimal  `json:"call_amount"`
	AmountType       string           `json:"amount_type"`
	NormalizedAmount decimal.Decimal  `json:"normalized_amount"`
	CallDate         string           `json:"call_date"`
	DueDate          string           `json:"due_date"`
	Status           string           `json:"status"`
	PaidDate         *string          `json:"paid_date,omitempty"`
	PaidAmount       *decimal.Decimal `json:"paid_amount,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	Version          int              `json:"version"`
}

// ScheduleCallInput carries a request to schedule a capital call. Exactly
// one of AllocationID and DealID must be set; a deal-scoped schedule
// resolves the deal's single active allocation.
type ScheduleCallInput struct {
	AllocationID *uuid.UUID      `json:"allocation_id,omitempty"`
	DealID       *uuid.UUID      `json:"deal_id,omitempty"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	AmountType   string          `json:"amount_type" binding:"required"`
	CallDate     string          `json:"call_date" binding:"required"`
	Notes        string          `json:"notes"`
}

// SettleCallResult reports a settled call together with the allocation it
// drew from
type SettleCallResult struct {
	Call       *CapitalCallResponse `json:"call"`
	Allocation *AllocationResponse  `json:"allocation"`
}

// CapitalCallListFilter defines filtering options for capital call list
// queries
type CapitalCallListFilter struct {
	Search       string     `form:"search"`
	AllocationID *uuid.UUID `form:"allocation_id"`
	DealID       *uuid.UUID `form:"deal_id"`
	Status       string     `form:"status"`
	DueFrom      string     `form:"due_from"`
	DueTo        string     `form:"due_to"`
	Page         int        `form:"page"`
	PageSize     int        `form:"page_size"`
}

// Schedule schedules a capital call. Percentage amounts are normalized
// against the allocation's committed amount, and a call that would demand
// more than the outstanding balance is rejected with OVER_CALL_ATTEMPT.
func (s *CapitalCallService) Schedule(ctx context.Context, input ScheduleCallInput) (*CapitalCallResponse, error) {
	var response *CapitalCallResponse
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.EngineOperationLabels(telemetry.OperationScheduleCall, ""), func(c context.Context) {
		response, operationErr = s.schedule(c, input)
	})
	return response, operationErr
}

func (s *CapitalCallService) schedule(ctx context.Context, input ScheduleCallInput) (*CapitalCallResponse, error) {
	alloc, err := s.resolveAllocation(ctx, input)
	if err != nil {
		return nil, err
	}
	if alloc.IsDefaulted() {
		return nil, shared.NewDomainError("ALLOCATION_DEFAULTED", "Cannot schedule a call against a defaulted allocation")
	}

	callDate, err := valueobject.ParseDateOnly(input.CallDate)
	if err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Call date must be in YYYY-MM-DD format")
	}

	callNumber, err := s.callRepo.GenerateCallNumber(ctx)
	if err != nil {
		return nil, err
	}

	call, err := allocation.NewCapitalCall(alloc.ID, callNumber, input.Amount, allocation.AmountType(input.AmountType), callDate, s.leadDays, input.Notes)
	if err != nil {
		return nil, err
	}

	committed := alloc.GetCommittedAmountMoney()
	normalized := call.NormalizedAmount(committed)
	outstanding := alloc.GetOutstandingAmountMoney()
	if normalized.Amount().GreaterThan(outstanding.Amount()) {
		return nil, shared.NewDomainError("OVER_CALL_ATTEMPT",
			fmt.Sprintf("Call for %s exceeds outstanding amount %s on allocation %s", normalized.String(), outstanding.String(), alloc.ID))
	}

	// A freshly committed allocation becomes "called" once an open call
	// exists against it. The call row and the status flip commit together;
	// a version conflict on the allocation rolls the call back too, so a
	// retried schedule cannot leave a duplicate call behind.
	var flipped *allocation.FundAllocation
	if alloc.RefreshStatus(true) {
		flipped = alloc
	}
	if err := s.callRepo.SaveScheduled(ctx, call, flipped); err != nil {
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, call.GetDomainEvents())

	return s.toCallResponse(call, committed), nil
}

// resolveAllocation picks the allocation a schedule request targets. A
// deal-scoped request works only when the deal has exactly one active
// allocation; anything else must name the allocation explicitly.
func (s *CapitalCallService) resolveAllocation(ctx context.Context, input ScheduleCallInput) (*allocation.FundAllocation, error) {
	switch {
	case input.AllocationID != nil && input.DealID != nil:
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Provide either allocation_id or deal_id, not both")
	case input.AllocationID != nil:
		alloc, err := s.allocationRepo.FindByID(ctx, *input.AllocationID)
		if err != nil {
			return nil, err
		}
		if alloc == nil {
			return nil, shared.NewDomainError("ALLOCATION_NOT_FOUND", "Allocation not found")
		}
		return alloc, nil
	case input.DealID != nil:
		allocations, err := s.allocationRepo.FindByDealID(ctx, *input.DealID)
		if err != nil {
			return nil, err
		}
		active := make([]*allocation.FundAllocation, 0, len(allocations))
		for i := range allocations {
			if allocations[i].Status.AcceptsPayments() {
				active = append(active, &allocations[i])
			}
		}
		if len(active) == 0 {
			return nil, shared.NewDomainError("ALLOCATION_NOT_FOUND", "Deal has no active allocation to call against")
		}
		if len(active) > 1 {
			return nil, shared.NewDomainError("VALIDATION_ERROR",
				fmt.Sprintf("Deal has %d active allocations; schedule against a specific allocation_id", len(active)))
		}
		return active[0], nil
	default:
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Either allocation_id or deal_id is required")
	}
}

// MarkCompleted settles a capital call. When actualAmount is supplied the
// settlement runs the payment pipeline against the owning allocation with
// the payment attributed to the call, then writes the call's projection
// from the resulting ledger record; without it the call settles against
// the payments already recorded for it. Either way the call and the
// allocation commit in a single transaction.
func (s *CapitalCallService) MarkCompleted(ctx context.Context, callID uuid.UUID, actualAmount *decimal.Decimal) (*SettleCallResult, error) {
	var result *SettleCallResult
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.EngineOperationLabels(telemetry.OperationSettleCall, ""), func(c context.Context) {
		result, operationErr = s.settle(c, callID, actualAmount)
	})
	return result, operationErr
}

func (s *CapitalCallService) settle(ctx context.Context, callID uuid.UUID, actualAmount *decimal.Decimal) (*SettleCallResult, error) {
	call, err := s.callRepo.FindByID(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, shared.NewDomainError("CAPITAL_CALL_NOT_FOUND", "Capital call not found")
	}
	if !call.Status.IsOpen() {
		return nil, shared.NewDomainError("INVALID_STATE", "Call "+call.CallNumber+" is already settled")
	}

	alloc, err := s.allocationRepo.FindByID(ctx, call.AllocationID)
	if err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, shared.NewDomainError("ALLOCATION_NOT_FOUND", "Owning allocation not found for call "+call.CallNumber)
	}

	openCalls, err := s.callRepo.CountOpenByAllocationID(ctx, alloc.ID)
	if err != nil {
		return nil, err
	}
	// This call is itself still open; only calls beyond it keep the
	// allocation "called" after settlement
	hasOpenAfter := openCalls > 1

	committed := alloc.GetCommittedAmountMoney()
	normalized := call.NormalizedAmount(committed)
	today := valueobject.Today()

	if actualAmount != nil {
		paid := valueobject.NewMoneyUSD(*actualAmount)
		if _, err := alloc.ApplyPayment(paid, s.defaultMethod, "Settlement of "+call.CallNumber, &call.ID, hasOpenAfter, s.allowOverpayments); err != nil {
			return nil, err
		}
		// Projection covers everything attributed to the call, so a
		// top-up on a partially settled call accumulates
		projected := s.recordedAgainstCall(alloc, call.ID)
		if err := call.MarkCompleted(valueobject.NewMoneyUSD(projected), today, normalized); err != nil {
			return nil, err
		}
		if err := s.callRepo.SaveSettlement(ctx, call, alloc); err != nil {
			return nil, err
		}
	} else {
		recorded := s.recordedAgainstCall(alloc, call.ID)
		if recorded.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError("INVALID_AMOUNT",
				"No payments recorded against call "+call.CallNumber+"; supply the settled amount")
		}
		if err := call.MarkCompleted(valueobject.NewMoneyUSD(recorded), today, normalized); err != nil {
			return nil, err
		}
		// The ledger already carries the money; only the status can shift
		// once this call stops being open
		if alloc.RefreshStatus(hasOpenAfter) {
			if err := s.callRepo.SaveSettlement(ctx, call, alloc); err != nil {
				return nil, err
			}
		} else {
			if err := s.callRepo.SaveSettlement(ctx, call, nil); err != nil {
				return nil, err
			}
		}
	}

	publishEvents(ctx, s.eventPublisher, s.logger, append(call.GetDomainEvents(), alloc.GetDomainEvents()...))

	return &SettleCallResult{
		Call:       s.toCallResponse(call, committed),
		Allocation: toAllocationResponse(alloc),
	}, nil
}

// recordedAgainstCall sums the ledger entries attributed to a call
func (s *CapitalCallService) recordedAgainstCall(alloc *allocation.FundAllocation, callID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, p := range alloc.Payments {
		if p.CapitalCallID != nil && *p.CapitalCallID == callID {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// Reschedule moves an open call to a new call date and recomputes its due
// date with the configured lead days
func (s *CapitalCallService) Reschedule(ctx context.Context, callID uuid.UUID, callDate string, notes string) (*CapitalCallResponse, error) {
	call, err := s.callRepo.FindByID(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, shared.NewDomainError("CAPITAL_CALL_NOT_FOUND", "Capital call not found")
	}

	newDate, err := valueobject.ParseDateOnly(callDate)
	if err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Call date must be in YYYY-MM-DD format")
	}

	if err := call.Reschedule(newDate, s.leadDays, notes); err != nil {
		return nil, err
	}
	if err := s.callRepo.SaveWithLock(ctx, call); err != nil {
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, call.GetDomainEvents())

	return s.toCallResponseWithLookup(ctx, call), nil
}

// Get gets a capital call by ID
func (s *CapitalCallService) Get(ctx context.Context, callID uuid.UUID) (*CapitalCallResponse, error) {
	call, err := s.callRepo.FindByID(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, shared.NewDomainError("CAPITAL_CALL_NOT_FOUND", "Capital call not found")
	}
	return s.toCallResponseWithLookup(ctx, call), nil
}

// List lists capital calls with filtering
func (s *CapitalCallService) List(ctx context.Context, filter CapitalCallListFilter) ([]CapitalCallResponse, int64, error) {
	domainFilter := allocation.CapitalCallFilter{
		AllocationID: filter.AllocationID,
		DealID:       filter.DealID,
	}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize
	domainFilter.Search = filter.Search

	if filter.Status != "" {
		status := allocation.CallStatus(filter.Status)
		domainFilter.Status = &status
	}
	if filter.DueFrom != "" {
		from, err := valueobject.ParseDateOnly(filter.DueFrom)
		if err != nil {
			return nil, 0, shared.NewDomainError("VALIDATION_ERROR", "due_from must be in YYYY-MM-DD format")
		}
		domainFilter.DueFrom = &from
	}
	if filter.DueTo != "" {
		to, err := valueobject.ParseDateOnly(filter.DueTo)
		if err != nil {
			return nil, 0, shared.NewDomainError("VALIDATION_ERROR", "due_to must be in YYYY-MM-DD format")
		}
		domainFilter.DueTo = &to
	}

	calls, err := s.callRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.callRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses, err := s.toCallResponses(ctx, calls)
	if err != nil {
		return nil, 0, err
	}
	return responses, total, nil
}

// ListByDeal lists every call issued against a deal's allocations
func (s *CapitalCallService) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]CapitalCallResponse, error) {
	calls, err := s.callRepo.FindByDealID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	return s.toCallResponses(ctx, calls)
}

// ListUpcoming lists open calls due within the given number of days from
// today
func (s *CapitalCallService) ListUpcoming(ctx context.Context, withinDays int) ([]CapitalCallResponse, error) {
	if withinDays <= 0 {
		withinDays = 30
	}
	today := valueobject.Today()
	calls, err := s.callRepo.FindDueBetween(ctx, today, today.AddDays(withinDays))
	if err != nil {
		return nil, err
	}
	return s.toCallResponses(ctx, calls)
}

// toCallResponses converts a batch of calls, loading the owning
// allocations in one query so percentage amounts can be normalized
func (s *CapitalCallService) toCallResponses(ctx context.Context, calls []allocation.CapitalCall) ([]CapitalCallResponse, error) {
	ids := make([]uuid.UUID, 0, len(calls))
	seen := make(map[uuid.UUID]bool, len(calls))
	for i := range calls {
		if !seen[calls[i].AllocationID] {
			seen[calls[i].AllocationID] = true
			ids = append(ids, calls[i].AllocationID)
		}
	}

	committedByID := make(map[uuid.UUID]valueobject.Money, len(ids))
	if len(ids) > 0 {
		allocations, err := s.allocationRepo.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range allocations {
			committedByID[allocations[i].ID] = allocations[i].GetCommittedAmountMoney()
		}
	}

	responses := make([]CapitalCallResponse, len(calls))
	for i := range calls {
		committed, ok := committedByID[calls[i].AllocationID]
		if !ok {
			committed = valueobject.ZeroUSD()
		}
		responses[i] = *s.toCallResponse(&calls[i], committed)
	}
	return responses, nil
}

// toCallResponse converts a call to a response using an already-loaded
// committed amount for normalization
func (s *CapitalCallService) toCallResponse(c *allocation.CapitalCall, committed valueobject.Money) *CapitalCallResponse {
	resp := &CapitalCallResponse{
		ID:               c.ID,
		AllocationID:     c.AllocationID,
		CallNumber:       c.CallNumber,
		CallAmount:       c.CallAmount,
		AmountType:       string(c.AmountType),
		NormalizedAmount: c.NormalizedAmount(committed).Amount(),
		CallDate:         c.CallDate.String(),
		DueDate:          c.DueDate.String(),
		Status:           string(c.Status),
		Notes:            c.Notes,
		Version:          c.Version,
	}
	if c.PaidDate != nil {
		paidDate := c.PaidDate.String()
		resp.PaidDate = &paidDate
	}
	if c.PaidAmount != nil {
		paidAmount := *c.PaidAmount
		resp.PaidAmount = &paidAmount
	}
	return resp
}

// toCallResponseWithLookup resolves the owning allocation so percentage
// amounts can be normalized; reads never fail on a dangling allocation
// reference, the normalized amount just degrades to zero for percentage
// calls
func (s *CapitalCallService) toCallResponseWithLookup(ctx context.Context, c *allocation.CapitalCall) *CapitalCallResponse {
	committed := valueobject.ZeroUSD()
	if alloc, err := s.allocationRepo.FindByID(ctx, c.AllocationID); err == nil && alloc != nil {
		committed = alloc.GetCommittedAmountMoney()
	}
	return s.toCallResponse(c, committed)
}

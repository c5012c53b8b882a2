package allocation

import (
	"context"
	"errors"

	"github.com/dealflow/backend/internal/domain/allocation"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/dealflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService records investor payments against fund allocations. Every
// write goes through the aggregate's ledger so the cached paid total and
// the derived status can never drift apart on this path.
type PaymentService struct {
	allocationRepo allocation.AllocationRepository
	callRepo       allocation.CapitalCallRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger

	maxRetries        int
	allowOverpayments bool
	defaultMethod     string
}

// PaymentServiceOption is a functional option for configuring PaymentService
type PaymentServiceOption func(*PaymentService)

// WithPaymentMaxRetries sets how many times a payment is retried after an
// optimistic lock conflict before giving up
func WithPaymentMaxRetries(n int) PaymentServiceOption {
	return func(s *PaymentService) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithOverpaymentsAllowed controls the overpayment policy. When allowed,
// payments that push the paid total past the commitment are recorded in
// full and the allocation is flagged for review; when disallowed they are
// rejected outright.
func WithOverpaymentsAllowed(allowed bool) PaymentServiceOption {
	return func(s *PaymentService) {
		s.allowOverpayments = allowed
	}
}

// WithDefaultPaymentMethod sets the method recorded when a payment does not
// name one
func WithDefaultPaymentMethod(method string) PaymentServiceOption {
	return func(s *PaymentService) {
		if method != "" {
			s.defaultMethod = method
		}
	}
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	allocationRepo allocation.AllocationRepository,
	callRepo allocation.CapitalCallRepository,
	opts ...PaymentServiceOption,
) *PaymentService {
	s := &PaymentService{
		allocationRepo:    allocationRepo,
		callRepo:          callRepo,
		logger:            zap.NewNop(),
		maxRetries:        3,
		allowOverpayments: false,
		defaultMethod:     "wire",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *PaymentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLogger sets the logger used for non-fatal failures such as event
// publish errors
func (s *PaymentService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// ProcessPaymentInput carries a payment to record against an allocation
type ProcessPaymentInput struct {
	AllocationID  uuid.UUID       `json:"allocation_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Method        string          `json:"method"`
	Description   string          `json:"description"`
	CapitalCallID *uuid.UUID      `json:"capital_call_id,omitempty"`
}

// PaymentResult reports the allocation's position before and after a
// recorded payment
type PaymentResult struct {
	AllocationID       uuid.UUID       `json:"allocation_id"`
	PaymentID          uuid.UUID       `json:"payment_id"`
	PreviousPaidAmount decimal.Decimal `json:"previous_paid_amount"`
	NewPaidAmount      decimal.Decimal `json:"new_paid_amount"`
	PreviousStatus     string          `json:"previous_status"`
	NewStatus          string          `json:"new_status"`
	PaymentPercentage  decimal.Decimal `json:"payment_percentage"`
	RemainingAmount    decimal.Decimal `json:"remaining_amount"`
	RequiresReview     bool            `json:"requires_review"`
}

// ProcessPayment records a payment against an allocation. The allocation is
// loaded fresh on every attempt; an optimistic lock conflict retries the
// whole load-mutate-save cycle, and exhausting the retries surfaces
// CONCURRENCY_CONFLICT. Domain rejections are never retried.
func (s *PaymentService) ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*PaymentResult, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	method := input.Method
	if method == "" {
		method = s.defaultMethod
	}
	amount := valueobject.NewMoneyUSD(input.Amount)

	var result *PaymentResult
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.EngineOperationLabels(telemetry.OperationProcessPayment, ""), func(c context.Context) {
		result, operationErr = s.processWithRetry(c, input, amount, method)
	})
	return result, operationErr
}

func (s *PaymentService) processWithRetry(ctx context.Context, input ProcessPaymentInput, amount valueobject.Money, method string) (*PaymentResult, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		alloc, err := s.allocationRepo.FindByID(ctx, input.AllocationID)
		if err != nil {
			return nil, err
		}
		if alloc == nil {
			return nil, shared.NewDomainError("ALLOCATION_NOT_FOUND", "Allocation not found")
		}

		openCalls, err := s.callRepo.CountOpenByAllocationID(ctx, alloc.ID)
		if err != nil {
			return nil, err
		}

		previousPaid := alloc.PaidAmount
		previousStatus := alloc.Status

		record, err := alloc.ApplyPayment(amount, method, input.Description, input.CapitalCallID, openCalls > 0, s.allowOverpayments)
		if err != nil {
			return nil, err
		}

		if err := s.allocationRepo.SaveWithLock(ctx, alloc); err != nil {
			if isLockConflict(err) {
				// Another writer got there first; reload and replay
				continue
			}
			return nil, err
		}

		publishEvents(ctx, s.eventPublisher, s.logger, alloc.GetDomainEvents())

		return &PaymentResult{
			AllocationID:       alloc.ID,
			PaymentID:          record.ID,
			PreviousPaidAmount: previousPaid,
			NewPaidAmount:      alloc.PaidAmount,
			PreviousStatus:     string(previousStatus),
			NewStatus:          string(alloc.Status),
			PaymentPercentage:  alloc.PaidPercentage(),
			RemainingAmount:    alloc.OutstandingAmount(),
			RequiresReview:     alloc.RequiresReview,
		}, nil
	}

	return nil, shared.NewDomainError("CONCURRENCY_CONFLICT", "Payment could not be recorded after repeated version conflicts")
}

// MarkDefaulted marks an allocation as defaulted. The decision is
// administrative; amounts and the ledger stay as they are.
func (s *PaymentService) MarkDefaulted(ctx context.Context, allocationID uuid.UUID, reason string) (*AllocationResponse, error) {
	alloc, err := s.allocationRepo.FindByID(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, shared.NewDomainError("ALLOCATION_NOT_FOUND", "Allocation not found")
	}

	if err := alloc.MarkDefaulted(reason); err != nil {
		return nil, err
	}
	if err := s.allocationRepo.SaveWithLock(ctx, alloc); err != nil {
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, alloc.GetDomainEvents())

	return toAllocationResponse(alloc), nil
}

// Reinstate lifts a default and re-derives the allocation's status from
// its recorded amounts
func (s *PaymentService) Reinstate(ctx context.Context, allocationID uuid.UUID) (*AllocationResponse, error) {
	alloc, err := s.allocationRepo.FindByID(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, shared.NewDomainError("ALLOCATION_NOT_FOUND", "Allocation not found")
	}

	openCalls, err := s.callRepo.CountOpenByAllocationID(ctx, alloc.ID)
	if err != nil {
		return nil, err
	}

	if err := alloc.Reinstate(openCalls > 0); err != nil {
		return nil, err
	}
	if err := s.allocationRepo.SaveWithLock(ctx, alloc); err != nil {
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, alloc.GetDomainEvents())

	return toAllocationResponse(alloc), nil
}

// isLockConflict reports whether the error is an optimistic lock failure
// worth retrying
func isLockConflict(err error) bool {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == "OPTIMISTIC_LOCK_ERROR"
	}
	return false
}

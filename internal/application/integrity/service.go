// Package integrity scans the allocation book for rows whose cached totals
// or statuses have drifted from their payment ledgers and repairs them. The
// ledger is append-only and always authoritative; repair rewrites the
// derived fields, never the ledger.
package integrity

import (
	"context"
	"errors"
	"fmt"

	"github.com/dealflow/backend/internal/application/query"
	"github.com/dealflow/backend/internal/domain/allocation"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchFetcher loads allocations in bulk. Satisfied by query.BatchService.
type BatchFetcher interface {
	BatchFetch(ctx context.Context, req query.BatchRequest) (*query.BatchResult, error)
}

// Service verifies and repairs allocation ledger consistency
type Service struct {
	allocationRepo    allocation.AllocationRepository
	callRepo          allocation.CapitalCallRepository
	batch             BatchFetcher
	scanChunkSize     int
	maxRetries        int
	allowOverpayments bool
}

// ServiceOption is a functional option for the integrity Service
type ServiceOption func(*Service)

// WithScanChunkSize overrides how many allocations one scan pass loads at
// a time
func WithScanChunkSize(size int) ServiceOption {
	return func(s *Service) {
		if size > 0 {
			s.scanChunkSize = size
		}
	}
}

// WithRepairMaxRetries overrides the version-conflict retry budget per row
func WithRepairMaxRetries(retries int) ServiceOption {
	return func(s *Service) {
		if retries > 0 {
			s.maxRetries = retries
		}
	}
}

// WithOverpaymentsAllowed mirrors the payment processor's overpayment
// policy. When overpayments are allowed a ledger sum above the committed
// amount is a legal state, not a defect.
func WithOverpaymentsAllowed(allowed bool) ServiceOption {
	return func(s *Service) {
		s.allowOverpayments = allowed
	}
}

// NewService creates a new integrity service
func NewService(
	allocationRepo allocation.AllocationRepository,
	callRepo allocation.CapitalCallRepository,
	batch BatchFetcher,
	opts ...ServiceOption,
) *Service {
	service := &Service{
		allocationRepo: allocationRepo,
		callRepo:       callRepo,
		batch:          batch,
		scanChunkSize:  query.DefaultChunkSize,
		maxRetries:     3,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// InvalidAllocation names one allocation together with every invariant it
// violates
type InvalidAllocation struct {
	AllocationID uuid.UUID `json:"allocation_id"`
	Issues       []string  `json:"issues"`
}

// VerificationReport summarizes a full read-only scan of the allocation book
type VerificationReport struct {
	TotalAllocations   int                 `json:"total_allocations"`
	ValidAllocations   int                 `json:"valid_allocations"`
	InvalidAllocations []InvalidAllocation `json:"invalid_allocations"`
}

// RepairError names one allocation repair could not safely touch and why
type RepairError struct {
	AllocationID uuid.UUID `json:"allocation_id"`
	Reason       string    `json:"reason"`
}

// RepairReport summarizes a repair pass
type RepairReport struct {
	RepairedCount   int           `json:"repaired_count"`
	UnrepairedCount int           `json:"unrepaired_count"`
	Errors          []RepairError `json:"errors"`
}

// VerifyAllAllocations re-derives every allocation's status and ledger sum
// and reports each mismatch. Read-only: it may run concurrently with live
// payment traffic without blocking writers.
func (s *Service) VerifyAllAllocations(ctx context.Context) (*VerificationReport, error) {
	var report *VerificationReport
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.EngineOperationLabels(telemetry.OperationVerifyLedgers, ""), func(c context.Context) {
		report, operationErr = s.verify(c)
	})
	return report, operationErr
}

func (s *Service) verify(ctx context.Context) (*VerificationReport, error) {
	ids, err := s.allocationRepo.FindAllIDs(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalAllocations:   len(ids),
		InvalidAllocations: make([]InvalidAllocation, 0),
	}

	for start := 0; start < len(ids); start += s.scanChunkSize {
		end := start + s.scanChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		loaded, err := s.batch.BatchFetch(ctx, query.BatchRequest{AllocationIDs: chunk})
		if err != nil {
			return nil, err
		}
		openByID, err := s.callRepo.FindOpenByAllocationIDs(ctx, chunk)
		if err != nil {
			return nil, err
		}

		for _, id := range chunk {
			a, ok := loaded.Allocations[id]
			if !ok {
				report.InvalidAllocations = append(report.InvalidAllocations, InvalidAllocation{
					AllocationID: id,
					Issues:       []string{"listed by the store but missing during scan"},
				})
				continue
			}
			if issues := s.inspect(a, openByID[id]); len(issues) > 0 {
				report.InvalidAllocations = append(report.InvalidAllocations, InvalidAllocation{
					AllocationID: id,
					Issues:       issues,
				})
			}
		}
	}

	report.ValidAllocations = report.TotalAllocations - len(report.InvalidAllocations)
	return report, nil
}

// inspect names every invariant the allocation violates. The status check
// derives from the ledger sum, not the cached total, so a row with a
// drifted cache reports both problems.
func (s *Service) inspect(a *allocation.FundAllocation, hasOpenCall bool) []string {
	var issues []string
	ledger := a.Payments.Total()

	if a.CommittedAmount.LessThanOrEqual(decimal.Zero) {
		issues = append(issues, fmt.Sprintf("committed amount %s is not positive", a.CommittedAmount))
	}
	for i := range a.Payments {
		if a.Payments[i].Amount.LessThanOrEqual(decimal.Zero) {
			issues = append(issues, fmt.Sprintf("ledger entry %s has non-positive amount %s", a.Payments[i].ID, a.Payments[i].Amount))
		}
	}
	if !a.PaidAmount.Equal(ledger) {
		issues = append(issues, fmt.Sprintf("cached paid amount %s diverges from ledger sum %s", a.PaidAmount, ledger))
	}
	if a.Status != allocation.AllocationStatusDefaulted {
		derived := allocation.DeriveStatus(a.CommittedAmount, ledger, hasOpenCall)
		if a.Status != derived {
			issues = append(issues, fmt.Sprintf("stored status %s does not match derived status %s", a.Status, derived))
		}
	}
	if !s.allowOverpayments && ledger.GreaterThan(a.CommittedAmount) {
		issues = append(issues, fmt.Sprintf("ledger sum %s exceeds committed amount %s", ledger, a.CommittedAmount))
	}

	return issues
}

// Repair rewrites the cached paid amount and status of every divergent
// allocation from its ledger. Rows repair cannot safely write are reported
// and left untouched. Running repair twice produces no further changes.
func (s *Service) Repair(ctx context.Context) (*RepairReport, error) {
	var report *RepairReport
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.EngineOperationLabels(telemetry.OperationRepairLedgers, ""), func(c context.Context) {
		report, operationErr = s.repair(c)
	})
	return report, operationErr
}

func (s *Service) repair(ctx context.Context) (*RepairReport, error) {
	ids, err := s.allocationRepo.FindAllIDs(ctx)
	if err != nil {
		return nil, err
	}

	report := &RepairReport{Errors: make([]RepairError, 0)}

	for start := 0; start < len(ids); start += s.scanChunkSize {
		end := start + s.scanChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		loaded, err := s.batch.BatchFetch(ctx, query.BatchRequest{AllocationIDs: chunk})
		if err != nil {
			return nil, err
		}
		openByID, err := s.callRepo.FindOpenByAllocationIDs(ctx, chunk)
		if err != nil {
			return nil, err
		}

		for _, id := range chunk {
			a, ok := loaded.Allocations[id]
			if !ok {
				report.Errors = append(report.Errors, RepairError{
					AllocationID: id,
					Reason:       "listed by the store but missing during scan",
				})
				continue
			}

			repaired, failure, err := s.repairOne(ctx, a, openByID[id])
			if err != nil {
				return nil, err
			}
			if failure != nil {
				report.Errors = append(report.Errors, *failure)
				continue
			}
			if repaired {
				report.RepairedCount++
			}
		}
	}

	report.UnrepairedCount = len(report.Errors)
	return report, nil
}

// repairOne reconciles a single allocation under the same per-row
// optimistic lock the payment processor uses, reloading and re-deriving on
// each conflict so repair never clobbers a concurrent payment.
func (s *Service) repairOne(ctx context.Context, a *allocation.FundAllocation, hasOpenCall bool) (bool, *RepairError, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			fresh, err := s.allocationRepo.FindByID(ctx, a.ID)
			if err != nil {
				return false, nil, err
			}
			if fresh == nil {
				return false, &RepairError{AllocationID: a.ID, Reason: "row disappeared during repair"}, nil
			}
			openCalls, err := s.callRepo.CountOpenByAllocationID(ctx, a.ID)
			if err != nil {
				return false, nil, err
			}
			a = fresh
			hasOpenCall = openCalls > 0
		}

		if !s.isDivergent(a, hasOpenCall) {
			return false, nil, nil
		}
		if reason := s.unrepairableReason(a); reason != "" {
			return false, &RepairError{AllocationID: a.ID, Reason: reason}, nil
		}

		a.ReconcileLedger(hasOpenCall)

		err := s.allocationRepo.SaveWithLock(ctx, a)
		if err == nil {
			return true, nil, nil
		}
		if !isLockConflict(err) {
			return false, nil, err
		}
	}

	return false, &RepairError{
		AllocationID: a.ID,
		Reason:       "could not be repaired after repeated version conflicts",
	}, nil
}

func (s *Service) isDivergent(a *allocation.FundAllocation, hasOpenCall bool) bool {
	ledger := a.Payments.Total()
	if !a.PaidAmount.Equal(ledger) {
		return true
	}
	if a.Status == allocation.AllocationStatusDefaulted {
		return false
	}
	return a.Status != allocation.DeriveStatus(a.CommittedAmount, ledger, hasOpenCall)
}

// unrepairableReason reports why a divergent row must go to manual review
// instead of being rewritten. Repair never deletes ledger entries, so a
// ledger that itself violates policy cannot be fixed here.
func (s *Service) unrepairableReason(a *allocation.FundAllocation) string {
	ledger := a.Payments.Total()
	if a.CommittedAmount.LessThanOrEqual(decimal.Zero) {
		return fmt.Sprintf("committed amount %s is not positive", a.CommittedAmount)
	}
	if !s.allowOverpayments && ledger.GreaterThan(a.CommittedAmount) {
		return fmt.Sprintf("ledger sum %s exceeds committed amount %s and overpayments are disallowed", ledger, a.CommittedAmount)
	}
	return ""
}

func isLockConflict(err error) bool {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == "OPTIMISTIC_LOCK_ERROR"
	}
	return false
}

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	allocationapp "github.com/dealflow/backend/internal/application/allocation"
	integrityapp "github.com/dealflow/backend/internal/application/integrity"
	"github.com/dealflow/backend/internal/application/query"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/infrastructure/persistence"
)

// lifecycleEnv wires the allocation, payment, call, and integrity services
// against a real database.
type lifecycleEnv struct {
	db                *TestDB
	allocationService *allocationapp.AllocationService
	paymentService    *allocationapp.PaymentService
	callService       *allocationapp.CapitalCallService
	integrityService  *integrityapp.Service
	fundID            uuid.UUID
	dealID            uuid.UUID
}

func newLifecycleEnv(t *testing.T) *lifecycleEnv {
	t.Helper()

	testDB := NewTestDB(t)

	fundID := uuid.New()
	dealID := uuid.New()
	testDB.CreateTestFund(fundID)
	testDB.CreateTestDeal(dealID)

	allocationRepo := persistence.NewGormAllocationRepository(testDB.DB)
	callRepo := persistence.NewGormCapitalCallRepository(testDB.DB)
	fundRepo := persistence.NewGormFundRepository(testDB.DB)
	dealRepo := persistence.NewGormDealRepository(testDB.DB)

	batchService := query.NewBatchService(allocationRepo, dealRepo, fundRepo)

	return &lifecycleEnv{
		db:                testDB,
		allocationService: allocationapp.NewAllocationService(allocationRepo, callRepo, dealRepo, fundRepo),
		paymentService: allocationapp.NewPaymentService(allocationRepo, callRepo,
			allocationapp.WithPaymentMaxRetries(10),
		),
		callService: allocationapp.NewCapitalCallService(allocationRepo, callRepo,
			allocationapp.WithCallLeadDays(10),
		),
		integrityService: integrityapp.NewService(allocationRepo, callRepo, batchService),
		fundID:           fundID,
		dealID:           dealID,
	}
}

func domainErrCode(t *testing.T, err error) string {
	t.Helper()
	var dErr *shared.DomainError
	require.True(t, errors.As(err, &dErr), "expected a domain error, got %v", err)
	return dErr.Code
}

func TestAllocationLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := newLifecycleEnv(t)
	ctx := context.Background()

	// Commit 100k of the fund to the deal
	alloc, err := env.allocationService.Create(ctx, allocationapp.CreateAllocationRequest{
		FundID:          env.fundID,
		DealID:          env.dealID,
		CommittedAmount: decimal.NewFromInt(100000),
		SecurityType:    "equity",
	})
	require.NoError(t, err)
	assert.Equal(t, "committed", alloc.Status)
	assert.True(t, alloc.PaidAmount.IsZero())

	// A second active allocation for the same fund and deal is refused
	_, err = env.allocationService.Create(ctx, allocationapp.CreateAllocationRequest{
		FundID:          env.fundID,
		DealID:          env.dealID,
		CommittedAmount: decimal.NewFromInt(50000),
	})
	require.Error(t, err)
	assert.Equal(t, "ALLOCATION_EXISTS", domainErrCode(t, err))

	// Schedule a 40% call; the allocation moves to called
	call, err := env.callService.Schedule(ctx, allocationapp.ScheduleCallInput{
		AllocationID: &alloc.ID,
		Amount:       decimal.NewFromInt(40),
		AmountType:   "percentage",
		CallDate:     "2026-09-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "scheduled", call.Status)
	assert.NotEmpty(t, call.CallNumber)
	assert.Equal(t, "2026-09-11", call.DueDate)

	after, err := env.allocationService.Get(ctx, alloc.ID)
	require.NoError(t, err)
	assert.Equal(t, "called", after.Status)

	// First wire covers the call
	payment, err := env.paymentService.ProcessPayment(ctx, allocationapp.ProcessPaymentInput{
		AllocationID:  alloc.ID,
		Amount:        decimal.NewFromInt(40000),
		Method:        "wire",
		CapitalCallID: &call.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "partially_paid", payment.NewStatus)
	assert.True(t, payment.NewPaidAmount.Equal(decimal.NewFromInt(40000)))

	// Second wire funds the allocation in full
	payment, err = env.paymentService.ProcessPayment(ctx, allocationapp.ProcessPaymentInput{
		AllocationID: alloc.ID,
		Amount:       decimal.NewFromInt(60000),
		Method:       "wire",
	})
	require.NoError(t, err)
	assert.Equal(t, "funded", payment.NewStatus)
	assert.True(t, payment.RemainingAmount.IsZero())

	// Default policy refuses anything past the committed amount
	_, err = env.paymentService.ProcessPayment(ctx, allocationapp.ProcessPaymentInput{
		AllocationID: alloc.ID,
		Amount:       decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.Equal(t, "OVERPAYMENT_REJECTED", domainErrCode(t, err))

	// The ledger and the projection agree
	report, err := env.integrityService.VerifyAllAllocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalAllocations)
	assert.Empty(t, report.InvalidAllocations)
}

func TestAllocationLifecycle_RepairDivergence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := newLifecycleEnv(t)
	ctx := context.Background()

	alloc, err := env.allocationService.Create(ctx, allocationapp.CreateAllocationRequest{
		FundID:          env.fundID,
		DealID:          env.dealID,
		CommittedAmount: decimal.NewFromInt(100000),
	})
	require.NoError(t, err)

	_, err = env.paymentService.ProcessPayment(ctx, allocationapp.ProcessPaymentInput{
		AllocationID: alloc.ID,
		Amount:       decimal.NewFromInt(25000),
	})
	require.NoError(t, err)

	// Corrupt the projection behind the engine's back. The payments ledger
	// still records 25k, so the row is now divergent.
	err = env.db.DB.Exec(`
		UPDATE fund_allocations
		SET paid_amount = 0, status = 'committed'
		WHERE id = ?
	`, alloc.ID.String()).Error
	require.NoError(t, err)

	report, err := env.integrityService.VerifyAllAllocations(ctx)
	require.NoError(t, err)
	require.Len(t, report.InvalidAllocations, 1)
	assert.Equal(t, alloc.ID, report.InvalidAllocations[0].AllocationID)

	// Repair re-derives the projection from the ledger
	repair, err := env.integrityService.Repair(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repair.RepairedCount)
	assert.Equal(t, 0, repair.UnrepairedCount)

	repaired, err := env.allocationService.Get(ctx, alloc.ID)
	require.NoError(t, err)
	assert.True(t, repaired.PaidAmount.Equal(decimal.NewFromInt(25000)))
	assert.Equal(t, "partially_paid", repaired.Status)

	// A clean book repairs nothing
	repair, err = env.integrityService.Repair(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, repair.RepairedCount)
}

func TestAllocationLifecycle_ConcurrentPayments(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := newLifecycleEnv(t)
	ctx := context.Background()

	alloc, err := env.allocationService.Create(ctx, allocationapp.CreateAllocationRequest{
		FundID:          env.fundID,
		DealID:          env.dealID,
		CommittedAmount: decimal.NewFromInt(100000),
	})
	require.NoError(t, err)

	// Fire concurrent wires; every one must land exactly once through the
	// optimistic lock retry loop
	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = env.paymentService.ProcessPayment(ctx, allocationapp.ProcessPaymentInput{
				AllocationID: alloc.ID,
				Amount:       decimal.NewFromInt(1000),
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "payment %d failed", i)
	}

	final, err := env.allocationService.Get(ctx, alloc.ID)
	require.NoError(t, err)
	assert.True(t, final.PaidAmount.Equal(decimal.NewFromInt(8000)),
		"expected 8000 paid, got %s", final.PaidAmount)
	assert.Len(t, final.Payments, workers)
	assert.Equal(t, "partially_paid", final.Status)
}

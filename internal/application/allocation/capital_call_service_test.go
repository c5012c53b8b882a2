package allocation

import (
	"context"
	"testing"

	"github.com/dealflow/backend/internal/domain/allocation"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// =============================================================================
// Test Helper Functions
// =============================================================================

func createOpenCall(t *testing.T, allocationID uuid.UUID, amountType allocation.AmountType, amount float64) *allocation.CapitalCall {
	t.Helper()
	call, err := allocation.NewCapitalCall(
		allocationID,
		"CC-20240220-00001",
		decimal.NewFromFloat(amount),
		amountType,
		valueobject.MustParseDateOnly("2024-02-20"),
		10,
		"",
	)
	require.NoError(t, err)
	call.ClearDomainEvents()
	return call
}

// =============================================================================
// Test Cases for Schedule
// =============================================================================

func TestCapitalCallService_Schedule_AbsoluteAmount(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	alloc := createAllocation(t, 200000)

	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)
	callRepo.On("GenerateCallNumber", mock.Anything).Return("CC-20240220-00001", nil)
	callRepo.On("SaveScheduled", mock.Anything, mock.AnythingOfType("*allocation.CapitalCall"), alloc).Return(nil)

	result, err := service.Schedule(context.Background(), ScheduleCallInput{
		AllocationID: &alloc.ID,
		Amount:       decimal.NewFromInt(50000),
		AmountType:   "absolute",
		CallDate:     "2024-02-20",
		Notes:        "Q1 drawdown",
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "CC-20240220-00001", result.CallNumber)
	assert.Equal(t, "scheduled", result.Status)
	assert.True(t, result.NormalizedAmount.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, "2024-02-20", result.CallDate)
	assert.Equal(t, "2024-03-01", result.DueDate)

	// A committed allocation flips to called once the call is open
	assert.Equal(t, allocation.AllocationStatusCalled, alloc.Status)
	allocationRepo.AssertExpectations(t)
	callRepo.AssertExpectations(t)
}

func TestCapitalCallService_Schedule_PercentageWithinOutstanding(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	// 200k committed, 50k already paid: 150k outstanding
	alloc := createAllocation(t, 200000)
	_, err := alloc.ApplyPayment(valueobject.NewMoneyUSDFromFloat(50000), "wire", "", nil, false, false)
	require.NoError(t, err)

	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)
	callRepo.On("GenerateCallNumber", mock.Anything).Return("CC-20240220-00002", nil)
	var capturedAlloc *allocation.FundAllocation
	callRepo.On("SaveScheduled", mock.Anything, mock.AnythingOfType("*allocation.CapitalCall"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedAlloc, _ = args.Get(2).(*allocation.FundAllocation)
		}).Return(nil)

	// 70% of 200k = 140k, within the 150k outstanding
	result, err := service.Schedule(context.Background(), ScheduleCallInput{
		AllocationID: &alloc.ID,
		Amount:       decimal.NewFromInt(70),
		AmountType:   "percentage",
		CallDate:     "2024-02-20",
	})

	require.NoError(t, err)
	assert.True(t, result.NormalizedAmount.Equal(decimal.NewFromInt(140000)))
	// Already partially paid, so no status flip rides along with the call
	assert.Nil(t, capturedAlloc)
}

func TestCapitalCallService_Schedule_OverCallRejected(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	alloc := createAllocation(t, 200000)
	_, err := alloc.ApplyPayment(valueobject.NewMoneyUSDFromFloat(50000), "wire", "", nil, false, false)
	require.NoError(t, err)

	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)
	callRepo.On("GenerateCallNumber", mock.Anything).Return("CC-20240220-00003", nil)

	// 80% of 200k = 160k, over the 150k outstanding
	result, err := service.Schedule(context.Background(), ScheduleCallInput{
		AllocationID: &alloc.ID,
		Amount:       decimal.NewFromInt(80),
		AmountType:   "percentage",
		CallDate:     "2024-02-20",
	})

	assert.Nil(t, result)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "OVER_CALL_ATTEMPT", domainErr.Code)
	callRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCapitalCallService_Schedule_ExactlyOutstandingAllowed(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	alloc := createAllocation(t, 200000)
	_, err := alloc.ApplyPayment(valueobject.NewMoneyUSDFromFloat(50000), "wire", "", nil, false, false)
	require.NoError(t, err)

	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)
	callRepo.On("GenerateCallNumber", mock.Anything).Return("CC-20240220-00004", nil)
	callRepo.On("SaveScheduled", mock.Anything, mock.AnythingOfType("*allocation.CapitalCall"), mock.Anything).Return(nil)

	result, err := service.Schedule(context.Background(), ScheduleCallInput{
		AllocationID: &alloc.ID,
		Amount:       decimal.NewFromInt(150000),
		AmountType:   "absolute",
		CallDate:     "2024-02-20",
	})

	require.NoError(t, err)
	assert.True(t, result.NormalizedAmount.Equal(decimal.NewFromInt(150000)))
}

func TestCapitalCallService_Schedule_ConfiguredLeadDays(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo, WithCallLeadDays(15))

	alloc := createAllocation(t, 200000)

	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)
	callRepo.On("GenerateCallNumber", mock.Anything).Return("CC-20240220-00005", nil)
	callRepo.On("SaveScheduled", mock.Anything, mock.AnythingOfType("*allocation.CapitalCall"), alloc).Return(nil)

	result, err := service.Schedule(context.Background(), ScheduleCallInput{
		AllocationID: &alloc.ID,
		Amount:       decimal.NewFromInt(50000),
		AmountType:   "absolute",
		CallDate:     "2024-02-20",
	})

	require.NoError(t, err)
	assert.Equal(t, "2024-03-06", result.DueDate)
}

func TestCapitalCallService_Schedule_DealScopedResolution(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	dealID := uuid.New()
	defaulted := createAllocation(t, 100000)
	require.NoError(t, defaulted.MarkDefaulted("gone quiet"))
	active := createAllocation(t, 200000)

	allocationRepo.On("FindByDealID", mock.Anything, dealID).Return([]allocation.FundAllocation{*defaulted, *active}, nil)
	callRepo.On("GenerateCallNumber", mock.Anything).Return("CC-20240220-00006", nil)
	callRepo.On("SaveScheduled", mock.Anything, mock.AnythingOfType("*allocation.CapitalCall"), mock.AnythingOfType("*allocation.FundAllocation")).Return(nil)

	result, err := service.Schedule(context.Background(), ScheduleCallInput{
		DealID:     &dealID,
		Amount:     decimal.NewFromInt(50000),
		AmountType: "absolute",
		CallDate:   "2024-02-20",
	})

	require.NoError(t, err)
	assert.Equal(t, active.ID, result.AllocationID)
}

func TestCapitalCallService_Schedule_DealScopedAmbiguous(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	dealID := uuid.New()
	first := createAllocation(t, 100000)
	second := createAllocation(t, 200000)

	allocationRepo.On("FindByDealID", mock.Anything, dealID).Return([]allocation.FundAllocation{*first, *second}, nil)

	result, err := service.Schedule(context.Background(), ScheduleCallInput{
		DealID:     &dealID,
		Amount:     decimal.NewFromInt(50000),
		AmountType: "absolute",
		CallDate:   "2024-02-20",
	})

	assert.Nil(t, result)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
}

func TestCapitalCallService_Schedule_DealScopedNoneActive(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	dealID := uuid.New()
	allocationRepo.On("FindByDealID", mock.Anything, dealID).Return([]allocation.FundAllocation{}, nil)

	result, err := service.Schedule(context.Background(), ScheduleCallInput{
		DealID:     &dealID,
		Amount:     decimal.NewFromInt(50000),
		AmountType: "absolute",
		CallDate:   "2024-02-20",
	})

	assert.Nil(t, result)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "ALLOCATION_NOT_FOUND", domainErr.Code)
}

func TestCapitalCallService_Schedule_RequiresExactlyOneTarget(t *testing.T) {
	service := NewCapitalCallService(new(MockAllocationRepository), new(MockCapitalCallRepository))

	id := uuid.New()
	dealID := uuid.New()

	tests := []struct {
		name  string
		input ScheduleCallInput
	}{
		{"both targets", ScheduleCallInput{AllocationID: &id, DealID: &dealID, Amount: decimal.NewFromInt(1000), AmountType: "absolute", CallDate: "2024-02-20"}},
		{"no target", ScheduleCallInput{Amount: decimal.NewFromInt(1000), AmountType: "absolute", CallDate: "2024-02-20"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.Schedule(context.Background(), tt.input)
			assert.Nil(t, result)
			var domainErr *shared.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
		})
	}
}

func TestCapitalCallService_Schedule_DefaultedAllocation(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	service := NewCapitalCallService(allocationRepo, new(MockCapitalCallRepository))

	alloc := createAllocation(t, 100000)
	require.NoError(t, alloc.MarkDefaulted("gone quiet"))

	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)

	result, err := service.Schedule(context.Background(), ScheduleCallInput{
		AllocationID: &alloc.ID,
		Amount:       decimal.NewFromInt(1000),
		AmountType:   "absolute",
		CallDate:     "2024-02-20",
	})

	assert.Nil(t, result)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "ALLOCATION_DEFAULTED", domainErr.Code)
}

func TestCapitalCallService_Schedule_InvalidCallDate(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	service := NewCapitalCallService(allocationRepo, new(MockCapitalCallRepository))

	alloc := createAllocation(t, 100000)
	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)

	result, err := service.Schedule(context.Background(), ScheduleCallInput{
		AllocationID: &alloc.ID,
		Amount:       decimal.NewFromInt(1000),
		AmountType:   "absolute",
		CallDate:     "02/20/2024",
	})

	assert.Nil(t, result)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
}

func TestCapitalCallService_Schedule_StatusFlipConflictRollsBackCall(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	alloc := createAllocation(t, 200000)

	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)
	callRepo.On("GenerateCallNumber", mock.Anything).Return("CC-20240220-00009", nil)
	// The call row and the status flip commit as one write; a version
	// conflict on the allocation fails the whole schedule
	callRepo.On("SaveScheduled", mock.Anything, mock.AnythingOfType("*allocation.CapitalCall"), alloc).
		Return(shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "Allocation was modified by another transaction"))

	result, err := service.Schedule(context.Background(), ScheduleCallInput{
		AllocationID: &alloc.ID,
		Amount:       decimal.NewFromInt(50000),
		AmountType:   "absolute",
		CallDate:     "2024-02-20",
	})

	assert.Nil(t, result)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "OPTIMISTIC_LOCK_ERROR", domainErr.Code)
	// No call row is persisted outside the combined write
	callRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	allocationRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestCapitalCallService_Schedule_PublishFailureLoggedNotFatal(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	publisher := new(MockEventPublisher)
	core, observed := observer.New(zap.WarnLevel)

	service := NewCapitalCallService(allocationRepo, callRepo)
	service.SetEventPublisher(publisher)
	service.SetLogger(zap.New(core))

	alloc := createAllocation(t, 200000)

	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)
	callRepo.On("GenerateCallNumber", mock.Anything).Return("CC-20240220-00010", nil)
	callRepo.On("SaveScheduled", mock.Anything, mock.AnythingOfType("*allocation.CapitalCall"), alloc).Return(nil)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(assert.AnError)

	result, err := service.Schedule(context.Background(), ScheduleCallInput{
		AllocationID: &alloc.ID,
		Amount:       decimal.NewFromInt(50000),
		AmountType:   "absolute",
		CallDate:     "2024-02-20",
	})

	// The call is scheduled despite the publish failure, and the failure
	// lands in the log
	require.NoError(t, err)
	require.NotNil(t, result)
	warnings := observed.FilterMessage("domain event publish failed").All()
	require.NotEmpty(t, warnings)
	assert.Equal(t, allocation.EventTypeCapitalCallScheduled, warnings[0].ContextMap()["event_type"])
}

// =============================================================================
// Test Cases for MarkCompleted
// =============================================================================

func TestCapitalCallService_MarkCompleted_WithActualAmount(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	alloc := createAllocation(t, 200000)
	call := createOpenCall(t, alloc.ID, allocation.AmountTypeAbsolute, 50000)

	callRepo.On("FindByID", mock.Anything, call.ID).Return(call, nil)
	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)
	callRepo.On("CountOpenByAllocationID", mock.Anything, alloc.ID).Return(int64(1), nil)
	callRepo.On("SaveSettlement", mock.Anything, call, alloc).Return(nil)

	actual := decimal.NewFromInt(50000)
	result, err := service.MarkCompleted(context.Background(), call.ID, &actual)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "paid", result.Call.Status)
	require.NotNil(t, result.Call.PaidAmount)
	assert.True(t, result.Call.PaidAmount.Equal(decimal.NewFromInt(50000)))
	require.NotNil(t, result.Call.PaidDate)

	// The settlement payment landed in the allocation's ledger,
	// attributed to the call
	assert.Equal(t, "partially_paid", result.Allocation.Status)
	assert.True(t, result.Allocation.PaidAmount.Equal(decimal.NewFromInt(50000)))
	require.Len(t, alloc.Payments, 1)
	require.NotNil(t, alloc.Payments[0].CapitalCallID)
	assert.Equal(t, call.ID, *alloc.Payments[0].CapitalCallID)

	callRepo.AssertExpectations(t)
}

func TestCapitalCallService_MarkCompleted_ShortSettlement(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	alloc := createAllocation(t, 200000)
	call := createOpenCall(t, alloc.ID, allocation.AmountTypeAbsolute, 50000)

	callRepo.On("FindByID", mock.Anything, call.ID).Return(call, nil)
	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)
	callRepo.On("CountOpenByAllocationID", mock.Anything, alloc.ID).Return(int64(1), nil)
	callRepo.On("SaveSettlement", mock.Anything, call, alloc).Return(nil)

	actual := decimal.NewFromInt(30000)
	result, err := service.MarkCompleted(context.Background(), call.ID, &actual)

	require.NoError(t, err)
	assert.Equal(t, "partially_paid", result.Call.Status)
	assert.True(t, result.Call.PaidAmount.Equal(decimal.NewFromInt(30000)))
}

func TestCapitalCallService_MarkCompleted_TopUpAccumulatesProjection(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	alloc := createAllocation(t, 200000)
	call := createOpenCall(t, alloc.ID, allocation.AmountTypeAbsolute, 50000)

	// A previous short settlement left the call open with 30k recorded
	_, err := alloc.ApplyPayment(valueobject.NewMoneyUSDFromFloat(30000), "wire", "", &call.ID, true, false)
	require.NoError(t, err)
	require.NoError(t, call.MarkCompleted(valueobject.NewMoneyUSDFromFloat(30000), valueobject.MustParseDateOnly("2024-03-01"), valueobject.NewMoneyUSDFromFloat(50000)))
	require.Equal(t, allocation.CallStatusPartiallyPaid, call.Status)

	callRepo.On("FindByID", mock.Anything, call.ID).Return(call, nil)
	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)
	callRepo.On("CountOpenByAllocationID", mock.Anything, alloc.ID).Return(int64(1), nil)
	callRepo.On("SaveSettlement", mock.Anything, call, alloc).Return(nil)

	actual := decimal.NewFromInt(20000)
	result, err := service.MarkCompleted(context.Background(), call.ID, &actual)

	require.NoError(t, err)
	assert.Equal(t, "paid", result.Call.Status)
	// Projection covers both tranches attributed to the call
	assert.True(t, result.Call.PaidAmount.Equal(decimal.NewFromInt(50000)))
	assert.True(t, result.Allocation.PaidAmount.Equal(decimal.NewFromInt(50000)))
}

func TestCapitalCallService_MarkCompleted_AgainstRecordedPayments(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	alloc := createAllocation(t, 200000)
	call := createOpenCall(t, alloc.ID, allocation.AmountTypeAbsolute, 50000)
	_, err := alloc.ApplyPayment(valueobject.NewMoneyUSDFromFloat(40000), "wire", "partial wire", &call.ID, true, false)
	require.NoError(t, err)

	callRepo.On("FindByID", mock.Anything, call.ID).Return(call, nil)
	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)
	callRepo.On("CountOpenByAllocationID", mock.Anything, alloc.ID).Return(int64(1), nil)
	// Allocation row is untouched: the ledger already carries the money
	callRepo.On("SaveSettlement", mock.Anything, call, (*allocation.FundAllocation)(nil)).Return(nil)

	result, err := service.MarkCompleted(context.Background(), call.ID, nil)

	require.NoError(t, err)
	assert.Equal(t, "partially_paid", result.Call.Status)
	assert.True(t, result.Call.PaidAmount.Equal(decimal.NewFromInt(40000)))
	// No new ledger entry was created
	assert.Len(t, alloc.Payments, 1)

	callRepo.AssertExpectations(t)
}

func TestCapitalCallService_MarkCompleted_NothingRecorded(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	alloc := createAllocation(t, 200000)
	call := createOpenCall(t, alloc.ID, allocation.AmountTypeAbsolute, 50000)

	callRepo.On("FindByID", mock.Anything, call.ID).Return(call, nil)
	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)
	callRepo.On("CountOpenByAllocationID", mock.Anything, alloc.ID).Return(int64(1), nil)

	result, err := service.MarkCompleted(context.Background(), call.ID, nil)

	assert.Nil(t, result)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_AMOUNT", domainErr.Code)
	callRepo.AssertNotCalled(t, "SaveSettlement", mock.Anything, mock.Anything, mock.Anything)
}

func TestCapitalCallService_MarkCompleted_NotFound(t *testing.T) {
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(new(MockAllocationRepository), callRepo)

	id := uuid.New()
	callRepo.On("FindByID", mock.Anything, id).Return(nil, nil)

	result, err := service.MarkCompleted(context.Background(), id, nil)

	assert.Nil(t, result)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CAPITAL_CALL_NOT_FOUND", domainErr.Code)
}

func TestCapitalCallService_MarkCompleted_AlreadySettled(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	alloc := createAllocation(t, 200000)
	call := createOpenCall(t, alloc.ID, allocation.AmountTypeAbsolute, 50000)
	require.NoError(t, call.MarkCompleted(valueobject.NewMoneyUSDFromFloat(50000), valueobject.MustParseDateOnly("2024-03-01"), valueobject.NewMoneyUSDFromFloat(50000)))

	callRepo.On("FindByID", mock.Anything, call.ID).Return(call, nil)

	actual := decimal.NewFromInt(1000)
	result, err := service.MarkCompleted(context.Background(), call.ID, &actual)

	assert.Nil(t, result)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_STATE", domainErr.Code)
	allocationRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestCapitalCallService_MarkCompleted_SettlementOverpaymentRejected(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	// 200k committed, 190k paid: only 10k outstanding
	alloc := createAllocation(t, 200000)
	_, err := alloc.ApplyPayment(valueobject.NewMoneyUSDFromFloat(190000), "wire", "", nil, false, false)
	require.NoError(t, err)
	call := createOpenCall(t, alloc.ID, allocation.AmountTypeAbsolute, 50000)

	callRepo.On("FindByID", mock.Anything, call.ID).Return(call, nil)
	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)
	callRepo.On("CountOpenByAllocationID", mock.Anything, alloc.ID).Return(int64(1), nil)

	actual := decimal.NewFromInt(50000)
	result, err := service.MarkCompleted(context.Background(), call.ID, &actual)

	assert.Nil(t, result)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "OVERPAYMENT_REJECTED", domainErr.Code)
	callRepo.AssertNotCalled(t, "SaveSettlement", mock.Anything, mock.Anything, mock.Anything)
}

func TestCapitalCallService_MarkCompleted_PublishesEvents(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	publisher := new(MockEventPublisher)
	service := NewCapitalCallService(allocationRepo, callRepo)
	service.SetEventPublisher(publisher)

	alloc := createAllocation(t, 200000)
	call := createOpenCall(t, alloc.ID, allocation.AmountTypeAbsolute, 50000)

	callRepo.On("FindByID", mock.Anything, call.ID).Return(call, nil)
	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)
	callRepo.On("CountOpenByAllocationID", mock.Anything, alloc.ID).Return(int64(1), nil)
	callRepo.On("SaveSettlement", mock.Anything, call, alloc).Return(nil)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	actual := decimal.NewFromInt(50000)
	_, err := service.MarkCompleted(context.Background(), call.ID, &actual)

	require.NoError(t, err)
	// Settlement raises events on both aggregates
	publisher.AssertNumberOfCalls(t, "Publish", 2)
}

// =============================================================================
// Test Cases for Reschedule and Queries
// =============================================================================

func TestCapitalCallService_Reschedule_Success(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo, WithCallLeadDays(15))

	alloc := createAllocation(t, 200000)
	call := createOpenCall(t, alloc.ID, allocation.AmountTypeAbsolute, 50000)

	callRepo.On("FindByID", mock.Anything, call.ID).Return(call, nil)
	callRepo.On("SaveWithLock", mock.Anything, call).Return(nil)
	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)

	result, err := service.Reschedule(context.Background(), call.ID, "2024-04-01", "pushed to April close")

	require.NoError(t, err)
	assert.Equal(t, "2024-04-01", result.CallDate)
	assert.Equal(t, "2024-04-16", result.DueDate)
	assert.Equal(t, "pushed to April close", result.Notes)
}

func TestCapitalCallService_Reschedule_SettledCall(t *testing.T) {
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(new(MockAllocationRepository), callRepo)

	call := createOpenCall(t, uuid.New(), allocation.AmountTypeAbsolute, 50000)
	require.NoError(t, call.MarkCompleted(valueobject.NewMoneyUSDFromFloat(50000), valueobject.MustParseDateOnly("2024-03-01"), valueobject.NewMoneyUSDFromFloat(50000)))

	callRepo.On("FindByID", mock.Anything, call.ID).Return(call, nil)

	result, err := service.Reschedule(context.Background(), call.ID, "2024-04-01", "")

	assert.Nil(t, result)
	assert.Error(t, err)
	callRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestCapitalCallService_Get_NormalizesPercentage(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	alloc := createAllocation(t, 200000)
	call := createOpenCall(t, alloc.ID, allocation.AmountTypePercentage, 25)

	callRepo.On("FindByID", mock.Anything, call.ID).Return(call, nil)
	allocationRepo.On("FindByID", mock.Anything, alloc.ID).Return(alloc, nil)

	result, err := service.Get(context.Background(), call.ID)

	require.NoError(t, err)
	assert.True(t, result.CallAmount.Equal(decimal.NewFromInt(25)))
	assert.True(t, result.NormalizedAmount.Equal(decimal.NewFromInt(50000)))
}

func TestCapitalCallService_ListUpcoming_MapsBatch(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	alloc := createAllocation(t, 200000)
	first := createOpenCall(t, alloc.ID, allocation.AmountTypeAbsolute, 50000)
	second := createOpenCall(t, alloc.ID, allocation.AmountTypePercentage, 10)

	callRepo.On("FindDueBetween", mock.Anything, mock.Anything, mock.Anything).Return([]allocation.CapitalCall{*first, *second}, nil)
	allocationRepo.On("FindByIDs", mock.Anything, []uuid.UUID{alloc.ID}).Return([]allocation.FundAllocation{*alloc}, nil)

	results, err := service.ListUpcoming(context.Background(), 30)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].NormalizedAmount.Equal(decimal.NewFromInt(50000)))
	assert.True(t, results[1].NormalizedAmount.Equal(decimal.NewFromInt(20000)))

	// The owning allocation is resolved once for the whole batch
	allocationRepo.AssertNumberOfCalls(t, "FindByIDs", 1)
}

func TestCapitalCallService_ListByDeal_EmptyResult(t *testing.T) {
	allocationRepo := new(MockAllocationRepository)
	callRepo := new(MockCapitalCallRepository)
	service := NewCapitalCallService(allocationRepo, callRepo)

	dealID := uuid.New()
	callRepo.On("FindByDealID", mock.Anything, dealID).Return([]allocation.CapitalCall{}, nil)

	results, err := service.ListByDeal(context.Background(), dealID)

	require.NoError(t, err)
	assert.Empty(t, results)
	allocationRepo.AssertNotCalled(t, "FindByIDs", mock.Anything, mock.Anything)
}

package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dealflow/backend/internal/application/query"
	"github.com/dealflow/backend/internal/domain/allocation"
	"github.com/dealflow/backend/internal/domain/calendar"
	"github.com/dealflow/backend/internal/domain/pipeline"
	"github.com/dealflow/backend/internal/domain/scheduling"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock Repositories
// =============================================================================

type MockAllocationRepository struct {
	mock.Mock
}

func (m *MockAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*allocation.FundAllocation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*allocation.FundAllocation), args.Error(1)
}

func (m *MockAllocationRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]allocation.FundAllocation, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]allocation.FundAllocation), args.Error(1)
}

func (m *MockAllocationRepository) FindByDealID(ctx context.Context, dealID uuid.UUID) ([]allocation.FundAllocation, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]allocation.FundAllocation), args.Error(1)
}

func (m *MockAllocationRepository) FindByFundID(ctx context.Context, fundID uuid.UUID) ([]allocation.FundAllocation, error) {
	args := m.Called(ctx, fundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]allocation.FundAllocation), args.Error(1)
}

func (m *MockAllocationRepository) FindAll(ctx context.Context, filter allocation.AllocationFilter) ([]allocation.FundAllocation, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]allocation.FundAllocation), args.Error(1)
}

func (m *MockAllocationRepository) FindAllIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockAllocationRepository) Save(ctx context.Context, a *allocation.FundAllocation) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAllocationRepository) SaveWithLock(ctx context.Context, a *allocation.FundAllocation) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAllocationRepository) Count(ctx context.Context, filter allocation.AllocationFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAllocationRepository) CountByStatus(ctx context.Context, fundID *uuid.UUID, status allocation.AllocationStatus) (int64, error) {
	args := m.Called(ctx, fundID, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAllocationRepository) SumTotalsByFund(ctx context.Context, fundID uuid.UUID) (*allocation.FundTotals, error) {
	args := m.Called(ctx, fundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*allocation.FundTotals), args.Error(1)
}

func (m *MockAllocationRepository) ExistsActiveForFundAndDeal(ctx context.Context, fundID, dealID uuid.UUID) (bool, error) {
	args := m.Called(ctx, fundID, dealID)
	return args.Bool(0), args.Error(1)
}

type MockCapitalCallRepository struct {
	mock.Mock
}

func (m *MockCapitalCallRepository) FindByID(ctx context.Context, id uuid.UUID) (*allocation.CapitalCall, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*allocation.CapitalCall), args.Error(1)
}

func (m *MockCapitalCallRepository) FindByAllocationID(ctx context.Context, allocationID uuid.UUID) ([]allocation.CapitalCall, error) {
	args := m.Called(ctx, allocationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]allocation.CapitalCall), args.Error(1)
}

func (m *MockCapitalCallRepository) FindOpenByAllocationIDs(ctx context.Context, allocationIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	args := m.Called(ctx, allocationIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]bool), args.Error(1)
}

func (m *MockCapitalCallRepository) FindByDealID(ctx context.Context, dealID uuid.UUID) ([]allocation.CapitalCall, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]allocation.CapitalCall), args.Error(1)
}

func (m *MockCapitalCallRepository) FindAll(ctx context.Context, filter allocation.CapitalCallFilter) ([]allocation.CapitalCall, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]allocation.CapitalCall), args.Error(1)
}

func (m *MockCapitalCallRepository) FindDueBetween(ctx context.Context, from, to valueobject.DateOnly) ([]allocation.CapitalCall, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]allocation.CapitalCall), args.Error(1)
}

func (m *MockCapitalCallRepository) Save(ctx context.Context, c *allocation.CapitalCall) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCapitalCallRepository) SaveWithLock(ctx context.Context, c *allocation.CapitalCall) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCapitalCallRepository) SaveSettlement(ctx context.Context, c *allocation.CapitalCall, a *allocation.FundAllocation) error {
	args := m.Called(ctx, c, a)
	return args.Error(0)
}

func (m *MockCapitalCallRepository) SaveScheduled(ctx context.Context, c *allocation.CapitalCall, a *allocation.FundAllocation) error {
	args := m.Called(ctx, c, a)
	return args.Error(0)
}

func (m *MockCapitalCallRepository) Count(ctx context.Context, filter allocation.CapitalCallFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCapitalCallRepository) CountOpenByAllocationID(ctx context.Context, allocationID uuid.UUID) (int64, error) {
	args := m.Called(ctx, allocationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCapitalCallRepository) GenerateCallNumber(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type MockClosingEventRepository struct {
	mock.Mock
}

func (m *MockClosingEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*scheduling.ClosingScheduleEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduling.ClosingScheduleEvent), args.Error(1)
}

func (m *MockClosingEventRepository) FindByDealID(ctx context.Context, dealID uuid.UUID) ([]scheduling.ClosingScheduleEvent, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]scheduling.ClosingScheduleEvent), args.Error(1)
}

func (m *MockClosingEventRepository) FindAll(ctx context.Context, filter scheduling.ScheduleFilter) ([]scheduling.ClosingScheduleEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]scheduling.ClosingScheduleEvent), args.Error(1)
}

func (m *MockClosingEventRepository) FindBetween(ctx context.Context, from, to valueobject.DateOnly) ([]scheduling.ClosingScheduleEvent, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]scheduling.ClosingScheduleEvent), args.Error(1)
}

func (m *MockClosingEventRepository) Save(ctx context.Context, event *scheduling.ClosingScheduleEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockClosingEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockClosingEventRepository) Count(ctx context.Context, filter scheduling.ScheduleFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

type MockMeetingRepository struct {
	mock.Mock
}

func (m *MockMeetingRepository) FindByID(ctx context.Context, id uuid.UUID) (*scheduling.Meeting, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduling.Meeting), args.Error(1)
}

func (m *MockMeetingRepository) FindByDealID(ctx context.Context, dealID uuid.UUID) ([]scheduling.Meeting, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]scheduling.Meeting), args.Error(1)
}

func (m *MockMeetingRepository) FindAll(ctx context.Context, filter scheduling.ScheduleFilter) ([]scheduling.Meeting, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]scheduling.Meeting), args.Error(1)
}

func (m *MockMeetingRepository) FindBetween(ctx context.Context, from, to valueobject.DateOnly) ([]scheduling.Meeting, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]scheduling.Meeting), args.Error(1)
}

func (m *MockMeetingRepository) Save(ctx context.Context, meeting *scheduling.Meeting) error {
	args := m.Called(ctx, meeting)
	return args.Error(0)
}

func (m *MockMeetingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMeetingRepository) Count(ctx context.Context, filter scheduling.ScheduleFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

type MockBatchFetcher struct {
	mock.Mock
}

func (m *MockBatchFetcher) BatchFetch(ctx context.Context, req query.BatchRequest) (*query.BatchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*query.BatchResult), args.Error(1)
}

type MockFeedCache struct {
	mock.Mock
}

func (m *MockFeedCache) Get(ctx context.Context, key string) (*calendar.Feed, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*calendar.Feed), args.Error(1)
}

func (m *MockFeedCache) Set(ctx context.Context, key string, feed *calendar.Feed, ttl time.Duration) error {
	args := m.Called(ctx, key, feed, ttl)
	return args.Error(0)
}

func (m *MockFeedCache) InvalidateDeal(ctx context.Context, dealID uuid.UUID) error {
	args := m.Called(ctx, dealID)
	return args.Error(0)
}

func (m *MockFeedCache) InvalidateAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// =============================================================================
// Test Helper Functions
// =============================================================================

type feedFixture struct {
	fund    *pipeline.Fund
	deal    *pipeline.Deal
	alloc   *allocation.FundAllocation
	call    *allocation.CapitalCall
	closing *scheduling.ClosingScheduleEvent
	meeting *scheduling.Meeting
}

// newFeedFixture builds one deal with a closing on Mar 10, a capital call
// due Mar 15 and a meeting on Mar 20 of 2024
func newFeedFixture(t *testing.T) *feedFixture {
	t.Helper()

	target := valueobject.NewMoneyUSD(decimal.NewFromInt(50000000))
	fund, err := pipeline.NewFund("Meridian Capital Fund I", 2023, &target)
	require.NoError(t, err)
	fund.ClearDomainEvents()

	deal, err := pipeline.NewDeal("Acme Robotics", "Industrial Automation", nil, "")
	require.NoError(t, err)
	deal.ClearDomainEvents()

	alloc, err := allocation.NewFundAllocation(fund.ID, deal.ID, valueobject.NewMoneyUSDFromFloat(100000), allocation.SecurityTypeEquity, "")
	require.NoError(t, err)
	alloc.ClearDomainEvents()

	call, err := allocation.NewCapitalCall(alloc.ID, "CC-20240305-00001", decimal.NewFromInt(50000), allocation.AmountTypeAbsolute, valueobject.MustParseDateOnly("2024-03-05"), 10, "")
	require.NoError(t, err)
	call.ClearDomainEvents()

	closing, err := scheduling.NewClosingScheduleEvent(deal.ID, "Signing", valueobject.MustParseDateOnly("2024-03-10"), "")
	require.NoError(t, err)
	closing.ClearDomainEvents()

	meeting, err := scheduling.NewMeeting(deal.ID, "Partner sync", valueobject.MustParseDateOnly("2024-03-20"), []string{"Avery", "Jordan"}, "")
	require.NoError(t, err)
	meeting.ClearDomainEvents()

	return &feedFixture{fund: fund, deal: deal, alloc: alloc, call: call, closing: closing, meeting: meeting}
}

func (f *feedFixture) allocationsResult() *query.BatchResult {
	return &query.BatchResult{
		Allocations: map[uuid.UUID]*allocation.FundAllocation{f.alloc.ID: f.alloc},
		Deals:       map[uuid.UUID]*pipeline.Deal{},
		Funds:       map[uuid.UUID]*pipeline.Fund{},
	}
}

func (f *feedFixture) namesResult() *query.BatchResult {
	return &query.BatchResult{
		Allocations: map[uuid.UUID]*allocation.FundAllocation{},
		Deals:       map[uuid.UUID]*pipeline.Deal{f.deal.ID: f.deal},
		Funds:       map[uuid.UUID]*pipeline.Fund{f.fund.ID: f.fund},
	}
}

func emptyBatchResult() *query.BatchResult {
	return &query.BatchResult{
		Allocations: map[uuid.UUID]*allocation.FundAllocation{},
		Deals:       map[uuid.UUID]*pipeline.Deal{},
		Funds:       map[uuid.UUID]*pipeline.Fund{},
	}
}

func mockSources(callRepo *MockCapitalCallRepository, closingRepo *MockClosingEventRepository, meetingRepo *MockMeetingRepository, f *feedFixture) {
	callRepo.On("FindAll", mock.Anything, mock.Anything).Return([]allocation.CapitalCall{*f.call}, nil)
	closingRepo.On("FindAll", mock.Anything, mock.Anything).Return([]scheduling.ClosingScheduleEvent{*f.closing}, nil)
	meetingRepo.On("FindAll", mock.Anything, mock.Anything).Return([]scheduling.Meeting{*f.meeting}, nil)
}

// =============================================================================
// Test Cases for Events
// =============================================================================

func TestCalendarService_Events_MergesAndSortsSources(t *testing.T) {
	callRepo := new(MockCapitalCallRepository)
	closingRepo := new(MockClosingEventRepository)
	meetingRepo := new(MockMeetingRepository)
	batch := new(MockBatchFetcher)
	service := NewService(callRepo, closingRepo, meetingRepo, batch)

	f := newFeedFixture(t)
	mockSources(callRepo, closingRepo, meetingRepo, f)
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.allocationsResult(), nil).Once()
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.namesResult(), nil).Once()

	feed, err := service.Events(context.Background(), EventsQuery{})

	require.NoError(t, err)
	require.Equal(t, 3, feed.Total)
	require.Len(t, feed.Events, 3)
	assert.Empty(t, feed.Unresolved)

	assert.Equal(t, calendar.EventKindClosing, feed.Events[0].Kind)
	assert.Equal(t, "2024-03-10", feed.Events[0].Date.String())
	assert.Equal(t, "Signing", feed.Events[0].Title)

	assert.Equal(t, calendar.EventKindCapitalCall, feed.Events[1].Kind)
	assert.Equal(t, "2024-03-15", feed.Events[1].Date.String())
	assert.Equal(t, "Capital Call — Meridian Capital Fund I → Acme Robotics ($50,000)", feed.Events[1].Title)
	require.NotNil(t, feed.Events[1].Amount)
	assert.True(t, feed.Events[1].Amount.Amount().Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, "absolute", feed.Events[1].AmountType)
	assert.Equal(t, "CC-20240305-00001", feed.Events[1].Detail["call_number"])

	assert.Equal(t, calendar.EventKindMeeting, feed.Events[2].Kind)
	assert.Equal(t, "Partner sync", feed.Events[2].Title)
	assert.Equal(t, "Avery, Jordan", feed.Events[2].Detail["attendees"])

	for _, event := range feed.Events {
		assert.Equal(t, f.deal.ID, event.DealID)
		assert.Equal(t, "Acme Robotics", event.DealName)
	}

	batch.AssertNumberOfCalls(t, "BatchFetch", 2)
}

func TestCalendarService_Events_GroupsByMonth(t *testing.T) {
	callRepo := new(MockCapitalCallRepository)
	closingRepo := new(MockClosingEventRepository)
	meetingRepo := new(MockMeetingRepository)
	batch := new(MockBatchFetcher)
	service := NewService(callRepo, closingRepo, meetingRepo, batch)

	f := newFeedFixture(t)
	february, err := scheduling.NewMeeting(f.deal.ID, "Kickoff", valueobject.MustParseDateOnly("2024-02-01"), nil, "")
	require.NoError(t, err)

	callRepo.On("FindAll", mock.Anything, mock.Anything).Return([]allocation.CapitalCall{*f.call}, nil)
	closingRepo.On("FindAll", mock.Anything, mock.Anything).Return([]scheduling.ClosingScheduleEvent{}, nil)
	meetingRepo.On("FindAll", mock.Anything, mock.Anything).Return([]scheduling.Meeting{*february, *f.meeting}, nil)
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.allocationsResult(), nil).Once()
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.namesResult(), nil).Once()

	feed, err := service.Events(context.Background(), EventsQuery{GroupByMonth: true})

	require.NoError(t, err)
	require.Len(t, feed.Months, 2)
	assert.Equal(t, "2024-02", feed.Months[0].Key)
	assert.Equal(t, "February 2024", feed.Months[0].Label)
	require.Len(t, feed.Months[0].Events, 1)
	assert.Equal(t, "Kickoff", feed.Months[0].Events[0].Title)
	assert.Equal(t, "2024-03", feed.Months[1].Key)
	assert.Len(t, feed.Months[1].Events, 2)
}

func TestCalendarService_Events_FiltersBeforeGrouping(t *testing.T) {
	callRepo := new(MockCapitalCallRepository)
	closingRepo := new(MockClosingEventRepository)
	meetingRepo := new(MockMeetingRepository)
	batch := new(MockBatchFetcher)
	service := NewService(callRepo, closingRepo, meetingRepo, batch)

	f := newFeedFixture(t)
	mockSources(callRepo, closingRepo, meetingRepo, f)
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.allocationsResult(), nil).Once()
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.namesResult(), nil).Once()

	feed, err := service.Events(context.Background(), EventsQuery{Kinds: []string{"meeting"}, GroupByMonth: true})

	require.NoError(t, err)
	require.Equal(t, 1, feed.Total)
	assert.Equal(t, calendar.EventKindMeeting, feed.Events[0].Kind)
	require.Len(t, feed.Months, 1)
	assert.Len(t, feed.Months[0].Events, 1)
}

func TestCalendarService_Events_StatusFilterIsCaseInsensitive(t *testing.T) {
	callRepo := new(MockCapitalCallRepository)
	closingRepo := new(MockClosingEventRepository)
	meetingRepo := new(MockMeetingRepository)
	batch := new(MockBatchFetcher)
	service := NewService(callRepo, closingRepo, meetingRepo, batch)

	f := newFeedFixture(t)
	require.NoError(t, f.meeting.MarkCompleted())
	f.meeting.ClearDomainEvents()
	mockSources(callRepo, closingRepo, meetingRepo, f)
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.allocationsResult(), nil).Once()
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.namesResult(), nil).Once()

	feed, err := service.Events(context.Background(), EventsQuery{Statuses: []string{"COMPLETED"}})

	require.NoError(t, err)
	require.Equal(t, 1, feed.Total)
	assert.Equal(t, "Partner sync", feed.Events[0].Title)
}

func TestCalendarService_Events_RejectsUnknownKind(t *testing.T) {
	callRepo := new(MockCapitalCallRepository)
	service := NewService(callRepo, new(MockClosingEventRepository), new(MockMeetingRepository), new(MockBatchFetcher))

	feed, err := service.Events(context.Background(), EventsQuery{Kinds: []string{"birthday"}})

	assert.Nil(t, feed)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
	callRepo.AssertNotCalled(t, "FindAll", mock.Anything, mock.Anything)
}

func TestCalendarService_Events_RejectsInvertedRange(t *testing.T) {
	service := NewService(new(MockCapitalCallRepository), new(MockClosingEventRepository), new(MockMeetingRepository), new(MockBatchFetcher))

	feed, err := service.Events(context.Background(), EventsQuery{From: "2024-04-01", To: "2024-03-01"})

	assert.Nil(t, feed)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
}

func TestCalendarService_Events_DealScopeReachesAllSources(t *testing.T) {
	callRepo := new(MockCapitalCallRepository)
	closingRepo := new(MockClosingEventRepository)
	meetingRepo := new(MockMeetingRepository)
	batch := new(MockBatchFetcher)
	service := NewService(callRepo, closingRepo, meetingRepo, batch)

	f := newFeedFixture(t)
	dealID := f.deal.ID

	callRepo.On("FindAll", mock.Anything, mock.MatchedBy(func(filter allocation.CapitalCallFilter) bool {
		return filter.DealID != nil && *filter.DealID == dealID
	})).Return([]allocation.CapitalCall{}, nil)
	closingRepo.On("FindAll", mock.Anything, mock.MatchedBy(func(filter scheduling.ScheduleFilter) bool {
		return filter.DealID != nil && *filter.DealID == dealID
	})).Return([]scheduling.ClosingScheduleEvent{}, nil)
	meetingRepo.On("FindAll", mock.Anything, mock.MatchedBy(func(filter scheduling.ScheduleFilter) bool {
		return filter.DealID != nil && *filter.DealID == dealID
	})).Return([]scheduling.Meeting{}, nil)
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(emptyBatchResult(), nil)

	feed, err := service.Events(context.Background(), EventsQuery{DealID: &dealID})

	require.NoError(t, err)
	assert.Equal(t, 0, feed.Total)
	callRepo.AssertExpectations(t)
	closingRepo.AssertExpectations(t)
	meetingRepo.AssertExpectations(t)
}

func TestCalendarService_Events_UnresolvedNamesDegradeTitle(t *testing.T) {
	callRepo := new(MockCapitalCallRepository)
	closingRepo := new(MockClosingEventRepository)
	meetingRepo := new(MockMeetingRepository)
	batch := new(MockBatchFetcher)
	service := NewService(callRepo, closingRepo, meetingRepo, batch)

	f := newFeedFixture(t)
	callRepo.On("FindAll", mock.Anything, mock.Anything).Return([]allocation.CapitalCall{*f.call}, nil)
	closingRepo.On("FindAll", mock.Anything, mock.Anything).Return([]scheduling.ClosingScheduleEvent{}, nil)
	meetingRepo.On("FindAll", mock.Anything, mock.Anything).Return([]scheduling.Meeting{}, nil)

	names := emptyBatchResult()
	names.Missing.DealIDs = []uuid.UUID{f.deal.ID}
	names.Missing.FundIDs = []uuid.UUID{f.fund.ID}
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.allocationsResult(), nil).Once()
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(names, nil).Once()

	feed, err := service.Events(context.Background(), EventsQuery{})

	require.NoError(t, err)
	require.Equal(t, 1, feed.Total)
	// The event still renders, with the call number standing in for the
	// unresolved names
	assert.Equal(t, "Capital Call CC-20240305-00001 ($50,000)", feed.Events[0].Title)
	assert.Empty(t, feed.Events[0].DealName)
	assert.ElementsMatch(t, []uuid.UUID{f.deal.ID, f.fund.ID}, feed.Unresolved)
}

func TestCalendarService_Events_PercentageCallNormalized(t *testing.T) {
	callRepo := new(MockCapitalCallRepository)
	closingRepo := new(MockClosingEventRepository)
	meetingRepo := new(MockMeetingRepository)
	batch := new(MockBatchFetcher)
	service := NewService(callRepo, closingRepo, meetingRepo, batch)

	f := newFeedFixture(t)
	percentage, err := allocation.NewCapitalCall(f.alloc.ID, "CC-20240305-00002", decimal.NewFromInt(25), allocation.AmountTypePercentage, valueobject.MustParseDateOnly("2024-03-05"), 10, "")
	require.NoError(t, err)

	callRepo.On("FindAll", mock.Anything, mock.Anything).Return([]allocation.CapitalCall{*percentage}, nil)
	closingRepo.On("FindAll", mock.Anything, mock.Anything).Return([]scheduling.ClosingScheduleEvent{}, nil)
	meetingRepo.On("FindAll", mock.Anything, mock.Anything).Return([]scheduling.Meeting{}, nil)
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.allocationsResult(), nil).Once()
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.namesResult(), nil).Once()

	feed, err := service.Events(context.Background(), EventsQuery{})

	require.NoError(t, err)
	require.Equal(t, 1, feed.Total)
	// 25% of the 100k commitment
	require.NotNil(t, feed.Events[0].Amount)
	assert.True(t, feed.Events[0].Amount.Amount().Equal(decimal.NewFromInt(25000)))
	assert.Contains(t, feed.Events[0].Title, "($25,000)")
}

func TestCalendarService_Events_CacheHitSkipsSources(t *testing.T) {
	callRepo := new(MockCapitalCallRepository)
	closingRepo := new(MockClosingEventRepository)
	meetingRepo := new(MockMeetingRepository)
	batch := new(MockBatchFetcher)
	feedCache := new(MockFeedCache)
	service := NewService(callRepo, closingRepo, meetingRepo, batch, WithFeedCache(feedCache))

	cached := &calendar.Feed{Total: 7}
	feedCache.On("Get", mock.Anything, mock.Anything).Return(cached, nil)

	feed, err := service.Events(context.Background(), EventsQuery{})

	require.NoError(t, err)
	assert.Equal(t, cached, feed)
	callRepo.AssertNotCalled(t, "FindAll", mock.Anything, mock.Anything)
	batch.AssertNotCalled(t, "BatchFetch", mock.Anything, mock.Anything)
	feedCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCalendarService_Events_CacheMissStoresFeed(t *testing.T) {
	callRepo := new(MockCapitalCallRepository)
	closingRepo := new(MockClosingEventRepository)
	meetingRepo := new(MockMeetingRepository)
	batch := new(MockBatchFetcher)
	feedCache := new(MockFeedCache)
	service := NewService(callRepo, closingRepo, meetingRepo, batch,
		WithFeedCache(feedCache), WithCacheTTL(30*time.Second))

	f := newFeedFixture(t)
	mockSources(callRepo, closingRepo, meetingRepo, f)
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.allocationsResult(), nil).Once()
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.namesResult(), nil).Once()

	feedCache.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	feedCache.On("Set", mock.Anything, mock.Anything, mock.MatchedBy(func(feed *calendar.Feed) bool {
		return feed.Total == 3
	}), 30*time.Second).Return(nil)

	feed, err := service.Events(context.Background(), EventsQuery{})

	require.NoError(t, err)
	assert.Equal(t, 3, feed.Total)
	feedCache.AssertExpectations(t)
}

func TestCalendarService_Events_CacheOutageDegradesToDirectRead(t *testing.T) {
	callRepo := new(MockCapitalCallRepository)
	closingRepo := new(MockClosingEventRepository)
	meetingRepo := new(MockMeetingRepository)
	batch := new(MockBatchFetcher)
	feedCache := new(MockFeedCache)
	service := NewService(callRepo, closingRepo, meetingRepo, batch, WithFeedCache(feedCache))

	f := newFeedFixture(t)
	mockSources(callRepo, closingRepo, meetingRepo, f)
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.allocationsResult(), nil).Once()
	batch.On("BatchFetch", mock.Anything, mock.Anything).Return(f.namesResult(), nil).Once()

	redisDown := errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
	feedCache.On("Get", mock.Anything, mock.Anything).Return(nil, redisDown)
	feedCache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(redisDown)

	feed, err := service.Events(context.Background(), EventsQuery{})

	require.NoError(t, err)
	assert.Equal(t, 3, feed.Total)
}

func TestCalendarService_FeedCacheKey(t *testing.T) {
	dealID := uuid.New()

	base := feedCacheKey(EventsQuery{DealID: &dealID, Kinds: []string{"meeting", "closing"}, Statuses: []string{"Scheduled"}})
	reordered := feedCacheKey(EventsQuery{DealID: &dealID, Kinds: []string{"CLOSING", "meeting"}, Statuses: []string{"scheduled"}})
	assert.Equal(t, base, reordered)

	allDeals := feedCacheKey(EventsQuery{Kinds: []string{"meeting", "closing"}})
	assert.NotEqual(t, base, allDeals)
	assert.Contains(t, base, dealID.String()+":")
	assert.Contains(t, allDeals, "all:")

	grouped := feedCacheKey(EventsQuery{GroupByMonth: true})
	assert.NotEqual(t, feedCacheKey(EventsQuery{}), grouped)
}

func TestCalendarService_FormatUSD(t *testing.T) {
	assert.Equal(t, "$500,000", formatUSD(decimal.NewFromInt(500000)))
	assert.Equal(t, "$1,234.56", formatUSD(decimal.NewFromFloat(1234.56)))
	assert.Equal(t, "$0", formatUSD(decimal.Zero))
}

// =============================================================================
// Test Cases for CacheInvalidationHandler
// =============================================================================

func TestCacheInvalidationHandler_PaymentEventInvalidatesDeal(t *testing.T) {
	feedCache := new(MockFeedCache)
	allocationRepo := new(MockAllocationRepository)
	handler := NewCacheInvalidationHandler(feedCache, allocationRepo, nil)

	f := newFeedFixture(t)
	record, err := f.alloc.ApplyPayment(valueobject.NewMoneyUSDFromFloat(40000), "wire", "", nil, false, false)
	require.NoError(t, err)
	event := allocation.NewPaymentProcessedEvent(f.alloc, record)

	feedCache.On("InvalidateDeal", mock.Anything, f.deal.ID).Return(nil)

	require.NoError(t, handler.Handle(context.Background(), event))
	feedCache.AssertExpectations(t)
	feedCache.AssertNotCalled(t, "InvalidateAll", mock.Anything)
}

func TestCacheInvalidationHandler_CallEventResolvesDealThroughAllocation(t *testing.T) {
	feedCache := new(MockFeedCache)
	allocationRepo := new(MockAllocationRepository)
	handler := NewCacheInvalidationHandler(feedCache, allocationRepo, nil)

	f := newFeedFixture(t)
	event := allocation.NewCapitalCallScheduledEvent(f.call)

	allocationRepo.On("FindByID", mock.Anything, f.alloc.ID).Return(f.alloc, nil)
	feedCache.On("InvalidateDeal", mock.Anything, f.deal.ID).Return(nil)

	require.NoError(t, handler.Handle(context.Background(), event))
	feedCache.AssertExpectations(t)
}

func TestCacheInvalidationHandler_UnresolvableAllocationDropsEverything(t *testing.T) {
	feedCache := new(MockFeedCache)
	allocationRepo := new(MockAllocationRepository)
	handler := NewCacheInvalidationHandler(feedCache, allocationRepo, nil)

	f := newFeedFixture(t)
	event := allocation.NewCapitalCallCompletedEvent(f.call)

	allocationRepo.On("FindByID", mock.Anything, f.alloc.ID).Return(nil, nil)
	feedCache.On("InvalidateAll", mock.Anything).Return(nil)

	require.NoError(t, handler.Handle(context.Background(), event))
	feedCache.AssertExpectations(t)
	feedCache.AssertNotCalled(t, "InvalidateDeal", mock.Anything, mock.Anything)
}

func TestCacheInvalidationHandler_SchedulingEventsInvalidateDeal(t *testing.T) {
	feedCache := new(MockFeedCache)
	handler := NewCacheInvalidationHandler(feedCache, new(MockAllocationRepository), nil)

	f := newFeedFixture(t)
	require.NoError(t, f.meeting.MarkCompleted())
	event := scheduling.NewMeetingChangedEvent(f.meeting)

	feedCache.On("InvalidateDeal", mock.Anything, f.deal.ID).Return(nil)

	require.NoError(t, handler.Handle(context.Background(), event))
	feedCache.AssertExpectations(t)
}

func TestCacheInvalidationHandler_SubscribesToAllCalendarSources(t *testing.T) {
	handler := NewCacheInvalidationHandler(new(MockFeedCache), new(MockAllocationRepository), nil)

	types := handler.EventTypes()
	assert.Len(t, types, 8)
	assert.Contains(t, types, allocation.EventTypeCapitalCallScheduled)
	assert.Contains(t, types, allocation.EventTypePaymentProcessed)
	assert.Contains(t, types, scheduling.EventTypeClosingEventChanged)
	assert.Contains(t, types, scheduling.EventTypeMeetingChanged)
}

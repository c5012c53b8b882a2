// Package calendar assembles the unified deal calendar from capital calls,
// closing timeline events and meetings. The feed is a read-only projection:
// building it performs no writes and can be repeated at any time.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dealflow/backend/internal/application/query"
	"github.com/dealflow/backend/internal/domain/allocation"
	"github.com/dealflow/backend/internal/domain/calendar"
	"github.com/dealflow/backend/internal/domain/scheduling"
	"github.com/dealflow/backend/internal/domain/shared"
	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/dealflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultCacheTTL bounds how stale a cached feed may get when no
// invalidation reaches it
const DefaultCacheTTL = 60 * time.Second

// BatchFetcher loads allocations, deals and funds in bulk. Satisfied by
// query.BatchService.
type BatchFetcher interface {
	BatchFetch(ctx context.Context, req query.BatchRequest) (*query.BatchResult, error)
}

// Service builds calendar feeds
type Service struct {
	callRepo    allocation.CapitalCallRepository
	closingRepo scheduling.ClosingEventRepository
	meetingRepo scheduling.MeetingRepository
	batch       BatchFetcher
	cache       calendar.FeedCache
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// ServiceOption is a functional option for the calendar Service
type ServiceOption func(*Service)

// WithFeedCache attaches a feed cache. Without one every request rebuilds
// the feed from the stores.
func WithFeedCache(cache calendar.FeedCache) ServiceOption {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithCacheTTL overrides how long a cached feed stays valid
func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithLogger sets the logger used for cache degradation warnings
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a new calendar service
func NewService(
	callRepo allocation.CapitalCallRepository,
	closingRepo scheduling.ClosingEventRepository,
	meetingRepo scheduling.MeetingRepository,
	batch BatchFetcher,
	opts ...ServiceOption,
) *Service {
	service := &Service{
		callRepo:    callRepo,
		closingRepo: closingRepo,
		meetingRepo: meetingRepo,
		batch:       batch,
		cacheTTL:    DefaultCacheTTL,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// EventsQuery scopes and filters a feed request. A nil DealID means all
// deals. From and To are YYYY-MM-DD and inclusive.
type EventsQuery struct {
	DealID       *uuid.UUID
	Kinds        []string
	Statuses     []string
	From         string
	To           string
	GroupByMonth bool
}

// Events assembles the calendar feed for the query scope, serving from the
// cache when possible. A failing cache degrades to a direct rebuild.
func (s *Service) Events(ctx context.Context, q EventsQuery) (*calendar.Feed, error) {
	var feed *calendar.Feed
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.EngineOperationLabels(telemetry.OperationBuildCalendar, ""), func(c context.Context) {
		feed, operationErr = s.events(c, q)
	})
	return feed, operationErr
}

func (s *Service) events(ctx context.Context, q EventsQuery) (*calendar.Feed, error) {
	kinds, fromDate, toDate, err := s.parseQuery(q)
	if err != nil {
		return nil, err
	}

	key := feedCacheKey(q)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("calendar cache read failed, rebuilding feed",
				zap.String("key", key),
				zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	feed, err := s.buildFeed(ctx, q, kinds, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, feed, s.cacheTTL); err != nil {
			s.logger.Warn("calendar cache write failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}
	return feed, nil
}

func (s *Service) parseQuery(q EventsQuery) ([]calendar.EventKind, *valueobject.DateOnly, *valueobject.DateOnly, error) {
	kinds := make([]calendar.EventKind, 0, len(q.Kinds))
	for _, raw := range q.Kinds {
		kind := calendar.EventKind(strings.ToLower(strings.TrimSpace(raw)))
		if !kind.IsValid() {
			return nil, nil, nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Unknown event kind: %s", raw))
		}
		kinds = append(kinds, kind)
	}

	var fromDate, toDate *valueobject.DateOnly
	if q.From != "" {
		d, err := valueobject.ParseDateOnly(q.From)
		if err != nil {
			return nil, nil, nil, shared.NewDomainError("VALIDATION_ERROR", "from must be in YYYY-MM-DD format")
		}
		fromDate = &d
	}
	if q.To != "" {
		d, err := valueobject.ParseDateOnly(q.To)
		if err != nil {
			return nil, nil, nil, shared.NewDomainError("VALIDATION_ERROR", "to must be in YYYY-MM-DD format")
		}
		toDate = &d
	}
	if fromDate != nil && toDate != nil && toDate.Before(*fromDate) {
		return nil, nil, nil, shared.NewDomainError("VALIDATION_ERROR", "to must not be before from")
	}
	return kinds, fromDate, toDate, nil
}

func (s *Service) buildFeed(ctx context.Context, q EventsQuery, kinds []calendar.EventKind, fromDate, toDate *valueobject.DateOnly) (*calendar.Feed, error) {
	calls, err := s.callRepo.FindAll(ctx, allocation.CapitalCallFilter{
		DealID:  q.DealID,
		DueFrom: fromDate,
		DueTo:   toDate,
	})
	if err != nil {
		return nil, err
	}

	scheduleFilter := scheduling.ScheduleFilter{DealID: q.DealID, From: fromDate, To: toDate}
	closings, err := s.closingRepo.FindAll(ctx, scheduleFilter)
	if err != nil {
		return nil, err
	}
	meetings, err := s.meetingRepo.FindAll(ctx, scheduleFilter)
	if err != nil {
		return nil, err
	}

	// Two batched lookups resolve every display name: the calls'
	// allocations first, then the deals and funds the sources point at
	allocationIDs := make([]uuid.UUID, 0, len(calls))
	for i := range calls {
		allocationIDs = append(allocationIDs, calls[i].AllocationID)
	}
	allocations, err := s.batch.BatchFetch(ctx, query.BatchRequest{AllocationIDs: allocationIDs})
	if err != nil {
		return nil, err
	}

	dealIDs := make([]uuid.UUID, 0, len(closings)+len(meetings)+len(allocations.Allocations))
	fundIDs := make([]uuid.UUID, 0, len(allocations.Allocations))
	for i := range closings {
		dealIDs = append(dealIDs, closings[i].DealID)
	}
	for i := range meetings {
		dealIDs = append(dealIDs, meetings[i].DealID)
	}
	for _, a := range allocations.Allocations {
		dealIDs = append(dealIDs, a.DealID)
		fundIDs = append(fundIDs, a.FundID)
	}
	names, err := s.batch.BatchFetch(ctx, query.BatchRequest{DealIDs: dealIDs, FundIDs: fundIDs})
	if err != nil {
		return nil, err
	}

	unresolved := make([]uuid.UUID, 0)
	unresolved = append(unresolved, allocations.Missing.AllocationIDs...)
	unresolved = append(unresolved, names.Missing.DealIDs...)
	unresolved = append(unresolved, names.Missing.FundIDs...)
	if len(unresolved) > 0 {
		s.logger.Warn("calendar feed has unresolved references",
			zap.Int("count", len(unresolved)))
	}

	events := make([]calendar.CalendarEvent, 0, len(calls)+len(closings)+len(meetings))
	for i := range calls {
		events = append(events, s.callEvent(&calls[i], allocations, names))
	}
	for i := range closings {
		events = append(events, closingEvent(&closings[i], names))
	}
	for i := range meetings {
		events = append(events, meetingEvent(&meetings[i], names))
	}

	filtered := calendar.Filter(events, calendar.FilterOptions{
		Kinds:    kinds,
		Statuses: q.Statuses,
		From:     fromDate,
		To:       toDate,
	})
	sorted := calendar.SortChronological(filtered)

	feed := &calendar.Feed{
		Events:     sorted,
		Total:      len(sorted),
		Unresolved: unresolved,
	}
	if q.GroupByMonth {
		feed.Months = calendar.GroupByMonth(sorted)
	}
	return feed, nil
}

// callEvent maps a capital call onto the calendar, keyed by its due date.
// Unresolvable names degrade the title to the call number; nothing is ever
// rendered as "Unknown".
func (s *Service) callEvent(c *allocation.CapitalCall, allocations, names *query.BatchResult) calendar.CalendarEvent {
	event := calendar.CalendarEvent{
		ID:         c.ID,
		Kind:       calendar.EventKindCapitalCall,
		Date:       c.DueDate,
		AmountType: c.AmountType.String(),
		Status:     c.Status.String(),
		Detail: map[string]string{
			"call_number": c.CallNumber,
			"call_date":   c.CallDate.String(),
		},
	}

	a := allocations.Allocations[c.AllocationID]
	if a == nil {
		if c.AmountType == allocation.AmountTypeAbsolute {
			amount := valueobject.NewMoneyUSD(c.CallAmount)
			event.Amount = &amount
			event.Title = fmt.Sprintf("Capital Call %s (%s)", c.CallNumber, formatUSD(amount.Amount()))
		} else {
			// A percentage call cannot be normalized without the commitment
			event.Title = fmt.Sprintf("Capital Call %s", c.CallNumber)
		}
		return event
	}

	amount := c.NormalizedAmount(a.GetCommittedAmountMoney())
	event.Amount = &amount
	event.DealID = a.DealID

	deal := names.Deals[a.DealID]
	fund := names.Funds[a.FundID]
	if deal != nil {
		event.DealName = deal.Name
	}
	if deal != nil && fund != nil {
		event.Title = fmt.Sprintf("Capital Call — %s → %s (%s)", fund.Name, deal.Name, formatUSD(amount.Amount()))
	} else {
		event.Title = fmt.Sprintf("Capital Call %s (%s)", c.CallNumber, formatUSD(amount.Amount()))
	}
	return event
}

// closingEvent keys a closing milestone by its actual date when one is
// recorded, otherwise by its scheduled date
func closingEvent(e *scheduling.ClosingScheduleEvent, names *query.BatchResult) calendar.CalendarEvent {
	event := calendar.CalendarEvent{
		ID:     e.ID,
		Kind:   calendar.EventKindClosing,
		Title:  e.EventName,
		Date:   e.EffectiveDate(),
		Status: e.Status.String(),
		DealID: e.DealID,
	}
	if deal := names.Deals[e.DealID]; deal != nil {
		event.DealName = deal.Name
	}
	detail := make(map[string]string)
	if e.ActualDate != nil {
		detail["scheduled_date"] = e.ScheduledDate.String()
	}
	if e.Notes != "" {
		detail["notes"] = e.Notes
	}
	if len(detail) > 0 {
		event.Detail = detail
	}
	return event
}

func meetingEvent(m *scheduling.Meeting, names *query.BatchResult) calendar.CalendarEvent {
	event := calendar.CalendarEvent{
		ID:     m.ID,
		Kind:   calendar.EventKindMeeting,
		Title:  m.Title,
		Date:   m.MeetingDate,
		Status: m.Status.String(),
		DealID: m.DealID,
	}
	if deal := names.Deals[m.DealID]; deal != nil {
		event.DealName = deal.Name
	}
	detail := make(map[string]string)
	if count := m.AttendeeCount(); count > 0 {
		detail["attendees"] = strings.Join(m.Attendees, ", ")
	}
	if m.Agenda != "" {
		detail["agenda"] = m.Agenda
	}
	if len(detail) > 0 {
		event.Detail = detail
	}
	return event
}

// feedCacheKey derives a deterministic cache key from the query. The scope
// is the leading segment so invalidation can target one deal's keys.
func feedCacheKey(q EventsQuery) string {
	scope := "all"
	if q.DealID != nil {
		scope = q.DealID.String()
	}

	kinds := make([]string, 0, len(q.Kinds))
	for _, k := range q.Kinds {
		kinds = append(kinds, strings.ToLower(strings.TrimSpace(k)))
	}
	sort.Strings(kinds)

	statuses := make([]string, 0, len(q.Statuses))
	for _, s := range q.Statuses {
		statuses = append(statuses, strings.ToLower(strings.TrimSpace(s)))
	}
	sort.Strings(statuses)

	return fmt.Sprintf("%s:kinds=%s:statuses=%s:from=%s:to=%s:group=%t",
		scope,
		strings.Join(kinds, ","),
		strings.Join(statuses, ","),
		q.From, q.To, q.GroupByMonth)
}

var usdPrinter = message.NewPrinter(language.AmericanEnglish)

// formatUSD renders a dollar amount for display titles: whole amounts
// without cents ("$500,000"), fractional amounts with two ("$1,234.56")
func formatUSD(amount decimal.Decimal) string {
	value, _ := amount.Float64()
	if amount.Equal(amount.Truncate(0)) {
		return usdPrinter.Sprintf("$%v", number.Decimal(value, number.MaxFractionDigits(0)))
	}
	return usdPrinter.Sprintf("$%v", number.Decimal(value, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

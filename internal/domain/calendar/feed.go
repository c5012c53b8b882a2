package calendar

import (
	"sort"
	"strings"

	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Feed is one assembled calendar for a scope. Events is always populated;
// Months only when the caller asked for month grouping. Unresolved lists
// the deal and fund ids whose display names could not be loaded while the
// feed was built.
type Feed struct {
	Events     []CalendarEvent `json:"events"`
	Months     []MonthGroup    `json:"months,omitempty"`
	Total      int             `json:"total"`
	Unresolved []uuid.UUID     `json:"unresolved,omitempty"`
}

// FilterOptions narrows a calendar feed. Zero-valued fields match
// everything. Filtering always happens before sorting and grouping.
type FilterOptions struct {
	Kinds    []EventKind           `json:"kinds,omitempty"`
	Statuses []string              `json:"statuses,omitempty"`
	DealIDs  []string              `json:"deal_ids,omitempty"`
	From     *valueobject.DateOnly `json:"from,omitempty"`
	To       *valueobject.DateOnly `json:"to,omitempty"`
}

// Filter returns the events matching the options, preserving input order.
// Statuses are compared case-insensitively against each source's native
// vocabulary.
func Filter(events []CalendarEvent, opts FilterOptions) []CalendarEvent {
	result := make([]CalendarEvent, 0, len(events))
	for _, event := range events {
		if !matchesKind(event, opts.Kinds) {
			continue
		}
		if !matchesStatus(event, opts.Statuses) {
			continue
		}
		if !matchesDeal(event, opts.DealIDs) {
			continue
		}
		if opts.From != nil && event.Date.Before(*opts.From) {
			continue
		}
		if opts.To != nil && event.Date.After(*opts.To) {
			continue
		}
		result = append(result, event)
	}
	return result
}

func matchesKind(event CalendarEvent, kinds []EventKind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, kind := range kinds {
		if event.Kind == kind {
			return true
		}
	}
	return false
}

func matchesStatus(event CalendarEvent, statuses []string) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, status := range statuses {
		if strings.EqualFold(event.Status, status) {
			return true
		}
	}
	return false
}

func matchesDeal(event CalendarEvent, dealIDs []string) bool {
	if len(dealIDs) == 0 {
		return true
	}
	for _, dealID := range dealIDs {
		if event.DealID.String() == dealID {
			return true
		}
	}
	return false
}

// SortChronological sorts events ascending by date. Events on the same date
// are ordered by kind (closing, then capital call, then meeting) and
// finally by ID, so repeated calls over the same data always produce the
// same order.
func SortChronological(events []CalendarEvent) []CalendarEvent {
	sorted := make([]CalendarEvent, len(events))
	copy(sorted, events)

	sort.SliceStable(sorted, func(i, j int) bool {
		if cmp := sorted[i].Date.Compare(sorted[j].Date); cmp != 0 {
			return cmp < 0
		}
		if sorted[i].Kind.sortRank() != sorted[j].Kind.sortRank() {
			return sorted[i].Kind.sortRank() < sorted[j].Kind.sortRank()
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	return sorted
}

// GroupByMonth buckets chronologically sorted events into month groups. The
// groups come out in the order the months first appear, so sorted input
// yields chronologically ordered groups.
func GroupByMonth(events []CalendarEvent) []MonthGroup {
	groups := make([]MonthGroup, 0)
	index := make(map[string]int)

	for _, event := range events {
		key := event.Date.MonthKey()
		i, seen := index[key]
		if !seen {
			groups = append(groups, MonthGroup{
				Key:    key,
				Label:  event.Date.MonthLabel(),
				Events: make([]CalendarEvent, 0, 4),
			})
			i = len(groups) - 1
			index[key] = i
		}
		groups[i].Events = append(groups[i].Events, event)
	}

	return groups
}

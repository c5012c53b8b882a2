package handler

import (
	"strings"

	calendarapp "github.com/dealflow/backend/internal/application/calendar"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CalendarHandler handles the aggregated event feed API endpoint
type CalendarHandler struct {
	BaseHandler
	calendarService *calendarapp.Service
}

// NewCalendarHandler creates a new CalendarHandler
func NewCalendarHandler(calendarService *calendarapp.Service) *CalendarHandler {
	return &CalendarHandler{
		calendarService: calendarService,
	}
}

// Events godoc
// @ID           getCalendarEvents
// @Summary      Get the event calendar feed
// @Description  Aggregate capital calls, closing milestones and meetings into one date-sorted feed, optionally scoped to a deal and grouped by month
// @Tags         calendar
// @Produce      json
// @Param        dealId query string false "Scope to one deal" format(uuid)
// @Param        kinds query string false "Comma-separated event kinds" example(capital_call,closing,meeting)
// @Param        statuses query string false "Comma-separated status filter"
// @Param        from query string false "Inclusive lower date bound (YYYY-MM-DD)"
// @Param        to query string false "Inclusive upper date bound (YYYY-MM-DD)"
// @Param        groupByMonth query bool false "Group events by calendar month"
// @Success      200 {object} APIResponse[calendar.Feed]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /calendar/events [get]
func (h *CalendarHandler) Events(c *gin.Context) {
	q := calendarapp.EventsQuery{
		From:         c.Query("from"),
		To:           c.Query("to"),
		GroupByMonth: c.Query("groupByMonth") == "true",
	}

	if raw := c.Query("dealId"); raw != "" {
		dealID, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid deal ID format")
			return
		}
		q.DealID = &dealID
	}
	if raw := c.Query("kinds"); raw != "" {
		q.Kinds = splitCSV(raw)
	}
	if raw := c.Query("statuses"); raw != "" {
		q.Statuses = splitCSV(raw)
	}

	feed, err := h.calendarService.Events(c.Request.Context(), q)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, feed)
}

// splitCSV splits a comma-separated query value, dropping empty segments
func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

package router

import (
	"github.com/dealflow/backend/internal/interfaces/http/handler"
)

// Handlers collects every domain handler the API exposes
type Handlers struct {
	Fund        *handler.FundHandler
	Deal        *handler.DealHandler
	Allocation  *handler.AllocationHandler
	CapitalCall *handler.CapitalCallHandler
	Integrity   *handler.IntegrityHandler
	Calendar    *handler.CalendarHandler
	Closing     *handler.ClosingEventHandler
	Meeting     *handler.MeetingHandler
	System      *handler.SystemHandler
}

// RegisterAll wires the full API route table under /api/<version>
func RegisterAll(r *Router, h Handlers) {
	funds := NewDomainGroup("funds", "/funds")
	funds.POST("", h.Fund.Create)
	funds.GET("", h.Fund.List)
	funds.GET("/:id", h.Fund.GetByID)
	funds.PUT("/:id", h.Fund.Update)
	funds.GET("/:id/summary", h.Fund.Summary)

	deals := NewDomainGroup("deals", "/deals")
	deals.POST("", h.Deal.Create)
	deals.GET("", h.Deal.List)
	deals.GET("/:id", h.Deal.GetByID)
	deals.PUT("/:id", h.Deal.Update)
	deals.POST("/:id/stage", h.Deal.AdvanceStage)
	deals.GET("/:id/allocations", h.Deal.ListAllocations)

	allocations := NewDomainGroup("allocations", "/allocations")
	allocations.POST("", h.Allocation.Create)
	allocations.GET("", h.Allocation.List)
	allocations.GET("/:id", h.Allocation.GetByID)
	allocations.PATCH("/:id/notes", h.Allocation.UpdateNotes)
	allocations.POST("/:id/clear-review", h.Allocation.ClearReview)
	allocations.POST("/:id/payments", h.Allocation.ProcessPayment)
	allocations.POST("/:id/default", h.Allocation.MarkDefaulted)
	allocations.POST("/:id/reinstate", h.Allocation.Reinstate)

	calls := NewDomainGroup("capital-calls", "/capital-calls")
	calls.POST("", h.CapitalCall.Schedule)
	calls.GET("", h.CapitalCall.List)
	calls.GET("/upcoming", h.CapitalCall.ListUpcoming)
	calls.GET("/:id", h.CapitalCall.GetByID)
	calls.PATCH("/:id/complete", h.CapitalCall.MarkCompleted)
	calls.PATCH("/:id/schedule", h.CapitalCall.Reschedule)

	integrity := NewDomainGroup("integrity", "/integrity")
	integrity.GET("/allocations", h.Integrity.Verify)
	integrity.POST("/allocations/repair", h.Integrity.Repair)

	calendar := NewDomainGroup("calendar", "/calendar")
	calendar.GET("/events", h.Calendar.Events)

	closings := NewDomainGroup("closing-events", "/closing-events")
	closings.POST("", h.Closing.Create)
	closings.GET("", h.Closing.List)
	closings.GET("/:id", h.Closing.GetByID)
	closings.PUT("/:id", h.Closing.Update)
	closings.POST("/:id/complete", h.Closing.MarkCompleted)
	closings.POST("/:id/postpone", h.Closing.Postpone)
	closings.DELETE("/:id", h.Closing.Cancel)

	meetings := NewDomainGroup("meetings", "/meetings")
	meetings.POST("", h.Meeting.Create)
	meetings.GET("", h.Meeting.List)
	meetings.GET("/:id", h.Meeting.GetByID)
	meetings.PUT("/:id", h.Meeting.Update)
	meetings.POST("/:id/reschedule", h.Meeting.Reschedule)
	meetings.POST("/:id/complete", h.Meeting.MarkCompleted)
	meetings.DELETE("/:id", h.Meeting.Cancel)

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.GetSystemInfo)
	system.GET("/ping", h.System.Ping)

	r.Register(funds).
		Register(deals).
		Register(allocations).
		Register(calls).
		Register(integrity).
		Register(calendar).
		Register(closings).
		Register(meetings).
		Register(system)
}

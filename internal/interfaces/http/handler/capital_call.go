package handler

import (
	allocationapp "github.com/dealflow/backend/internal/application/allocation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CapitalCallHandler handles capital call API endpoints
type CapitalCallHandler struct {
	BaseHandler
	callService *allocationapp.CapitalCallService
}

// NewCapitalCallHandler creates a new CapitalCallHandler
func NewCapitalCallHandler(callService *allocationapp.CapitalCallService) *CapitalCallHandler {
	return &CapitalCallHandler{
		callService: callService,
	}
}

// ScheduleCallRequest represents a request to schedule a capital call.
// Exactly one of allocation_id and deal_id must be set.
// @Description Request body for scheduling a capital call
type ScheduleCallRequest struct {
	AllocationID *string `json:"allocation_id" binding:"omitempty,uuid"`
	DealID       *string `json:"deal_id" binding:"omitempty,uuid"`
	Amount       float64 `json:"amount" binding:"required,gt=0" example:"25000.00"`
	AmountType   string  `json:"amount_type" binding:"required,oneof=fixed percentage" example:"fixed"`
	CallDate     string  `json:"call_date" binding:"required" example:"2026-09-15"`
	Notes        string  `json:"notes" binding:"max=2000" example:"Q3 drawdown"`
}

// CompleteCallRequest represents a request to settle a capital call
// @Description Request body for completing a capital call
type CompleteCallRequest struct {
	ActualAmount *float64 `json:"actual_amount" binding:"omitempty,gt=0" example:"25000.00"`
}

// RescheduleCallRequest represents a request to move an open call's date
// @Description Request body for rescheduling a capital call
type RescheduleCallRequest struct {
	CallDate string `json:"call_date" binding:"required" example:"2026-10-01"`
	Notes    string `json:"notes" binding:"max=2000"`
}

// Schedule godoc
// @ID           createCapitalCall
// @Summary      Schedule a capital call
// @Description  Schedule a drawdown against an allocation. Percentage amounts normalize against the committed amount; a call exceeding the outstanding balance is rejected.
// @Tags         capital-calls
// @Accept       json
// @Produce      json
// @Param        request body ScheduleCallRequest true "Capital call schedule request"
// @Success      201 {object} APIResponse[allocationapp.CapitalCallResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /capital-calls [post]
func (h *CapitalCallHandler) Schedule(c *gin.Context) {
	var req ScheduleCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	input := allocationapp.ScheduleCallInput{
		Amount:     decimal.NewFromFloat(req.Amount),
		AmountType: req.AmountType,
		CallDate:   req.CallDate,
		Notes:      req.Notes,
	}
	if req.AllocationID != nil {
		id, err := uuid.Parse(*req.AllocationID)
		if err != nil {
			h.BadRequest(c, "Invalid allocation ID format")
			return
		}
		input.AllocationID = &id
	}
	if req.DealID != nil {
		id, err := uuid.Parse(*req.DealID)
		if err != nil {
			h.BadRequest(c, "Invalid deal ID format")
			return
		}
		input.DealID = &id
	}

	call, err := h.callService.Schedule(c.Request.Context(), input)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, call)
}

// List godoc
// @ID           listCapitalCalls
// @Summary      List capital calls
// @Description  List capital calls with optional filtering and pagination
// @Tags         capital-calls
// @Produce      json
// @Param        search query string false "Search by call number"
// @Param        allocation_id query string false "Filter by allocation" format(uuid)
// @Param        deal_id query string false "Filter by deal" format(uuid)
// @Param        status query string false "Filter by status" Enums(scheduled, notified, paid, overdue, cancelled)
// @Param        due_from query string false "Due date lower bound (YYYY-MM-DD)"
// @Param        due_to query string false "Due date upper bound (YYYY-MM-DD)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]allocationapp.CapitalCallResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /capital-calls [get]
func (h *CapitalCallHandler) List(c *gin.Context) {
	var filter allocationapp.CapitalCallListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	calls, total, err := h.callService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, calls, total, page, pageSize)
}

// ListUpcoming godoc
// @ID           listUpcomingCapitalCalls
// @Summary      List upcoming capital calls
// @Description  List open calls due within the given number of days
// @Tags         capital-calls
// @Produce      json
// @Param        within_days query int false "Horizon in days" default(30)
// @Success      200 {object} APIResponse[[]allocationapp.CapitalCallResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /capital-calls/upcoming [get]
func (h *CapitalCallHandler) ListUpcoming(c *gin.Context) {
	withinDays := 30
	if raw := c.Query("within_days"); raw != "" {
		parsed, ok := parsePositiveInt(raw)
		if !ok {
			h.BadRequest(c, "within_days must be a positive integer")
			return
		}
		withinDays = parsed
	}

	calls, err := h.callService.ListUpcoming(c.Request.Context(), withinDays)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, calls)
}

// GetByID godoc
// @ID           getCapitalCallById
// @Summary      Get capital call by ID
// @Description  Retrieve a capital call by its ID
// @Tags         capital-calls
// @Produce      json
// @Param        id path string true "Capital call ID" format(uuid)
// @Success      200 {object} APIResponse[allocationapp.CapitalCallResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /capital-calls/{id} [get]
func (h *CapitalCallHandler) GetByID(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid capital call ID format")
		return
	}

	call, err := h.callService.Get(c.Request.Context(), callID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, call)
}

// MarkCompleted godoc
// @ID           completeCapitalCall
// @Summary      Complete a capital call
// @Description  Settle a call: record the received amount on the allocation's ledger and close the call in one transaction
// @Tags         capital-calls
// @Accept       json
// @Produce      json
// @Param        id path string true "Capital call ID" format(uuid)
// @Param        request body CompleteCallRequest false "Settlement request (omit actual_amount to settle the full call amount)"
// @Success      200 {object} APIResponse[allocationapp.SettleCallResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /capital-calls/{id}/complete [patch]
func (h *CapitalCallHandler) MarkCompleted(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid capital call ID format")
		return
	}

	var req CompleteCallRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	var actualAmount *decimal.Decimal
	if req.ActualAmount != nil {
		actualAmount = toDecimalPtr(*req.ActualAmount)
	}

	result, err := h.callService.MarkCompleted(c.Request.Context(), callID, actualAmount)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Reschedule godoc
// @ID           rescheduleCapitalCall
// @Summary      Reschedule a capital call
// @Description  Move an open call to a new call date; the due date shifts by the configured lead time
// @Tags         capital-calls
// @Accept       json
// @Produce      json
// @Param        id path string true "Capital call ID" format(uuid)
// @Param        request body RescheduleCallRequest true "Reschedule request"
// @Success      200 {object} APIResponse[allocationapp.CapitalCallResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /capital-calls/{id}/schedule [patch]
func (h *CapitalCallHandler) Reschedule(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid capital call ID format")
		return
	}

	var req RescheduleCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	call, err := h.callService.Reschedule(c.Request.Context(), callID, req.CallDate, req.Notes)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, call)
}

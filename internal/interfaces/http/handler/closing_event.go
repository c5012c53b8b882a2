package handler

import (
	schedulingapp "github.com/dealflow/backend/internal/application/scheduling"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ClosingEventHandler handles closing timeline API endpoints
type ClosingEventHandler struct {
	BaseHandler
	closingService *schedulingapp.ClosingEventService
}

// NewClosingEventHandler creates a new ClosingEventHandler
func NewClosingEventHandler(closingService *schedulingapp.ClosingEventService) *ClosingEventHandler {
	return &ClosingEventHandler{
		closingService: closingService,
	}
}

// CreateClosingEventRequest represents a request to add a closing milestone
// @Description Request body for creating a closing milestone
type CreateClosingEventRequest struct {
	DealID        string `json:"deal_id" binding:"required,uuid"`
	EventName     string `json:"event_name" binding:"required,min=1,max=200" example:"Signing"`
	ScheduledDate string `json:"scheduled_date" binding:"required" example:"2026-10-15"`
	Notes         string `json:"notes" binding:"max=2000"`
}

// UpdateClosingEventRequest represents a request to update a closing milestone
// @Description Request body for updating a closing milestone
type UpdateClosingEventRequest struct {
	EventName string `json:"event_name" binding:"required,min=1,max=200" example:"Final Closing"`
	Notes     string `json:"notes" binding:"max=2000"`
}

// CompleteClosingEventRequest records the date a milestone actually happened
// @Description Request body for completing a closing milestone
type CompleteClosingEventRequest struct {
	ActualDate string `json:"actual_date" binding:"required" example:"2026-10-17"`
}

// PostponeClosingEventRequest moves a milestone to a later date
// @Description Request body for postponing a closing milestone
type PostponeClosingEventRequest struct {
	NewDate string `json:"new_date" binding:"required" example:"2026-11-01"`
	Notes   string `json:"notes" binding:"max=2000"`
}

// Create godoc
// @ID           createClosingEvent
// @Summary      Create a closing milestone
// @Description  Add a milestone to a deal's closing timeline
// @Tags         closing-events
// @Accept       json
// @Produce      json
// @Param        request body CreateClosingEventRequest true "Closing milestone creation request"
// @Success      201 {object} APIResponse[schedulingapp.ClosingEventResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /closing-events [post]
func (h *ClosingEventHandler) Create(c *gin.Context) {
	var req CreateClosingEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	dealID, err := uuid.Parse(req.DealID)
	if err != nil {
		h.BadRequest(c, "Invalid deal ID format")
		return
	}

	event, err := h.closingService.Create(c.Request.Context(), schedulingapp.CreateClosingEventRequest{
		DealID:        dealID,
		EventName:     req.EventName,
		ScheduledDate: req.ScheduledDate,
		Notes:         req.Notes,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, event)
}

// List godoc
// @ID           listClosingEvents
// @Summary      List closing milestones
// @Description  List closing milestones with optional filtering and pagination
// @Tags         closing-events
// @Produce      json
// @Param        deal_id query string false "Filter by deal" format(uuid)
// @Param        status query string false "Filter by status" Enums(scheduled, completed, postponed, cancelled)
// @Param        from query string false "Effective date lower bound (YYYY-MM-DD)"
// @Param        to query string false "Effective date upper bound (YYYY-MM-DD)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]schedulingapp.ClosingEventResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /closing-events [get]
func (h *ClosingEventHandler) List(c *gin.Context) {
	var filter schedulingapp.ScheduleListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	events, total, err := h.closingService.List(c.Request.Context(), filter)
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
	h.SuccessWithMeta(c, events, total, page, pageSize)
}

// GetByID godoc
// @ID           getClosingEventById
// @Summary      Get closing milestone by ID
// @Description  Retrieve a closing milestone by its ID
// @Tags         closing-events
// @Produce      json
// @Param        id path string true "Closing event ID" format(uuid)
// @Success      200 {object} APIResponse[schedulingapp.ClosingEventResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /closing-events/{id} [get]
func (h *ClosingEventHandler) GetByID(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid closing event ID format")
		return
	}

	event, err := h.closingService.Get(c.Request.Context(), eventID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, event)
}

// Update godoc
// @ID           updateClosingEvent
// @Summary      Update a closing milestone
// @Description  Update a milestone's name and notes
// @Tags         closing-events
// @Accept       json
// @Produce      json
// @Param        id path string true "Closing event ID" format(uuid)
// @Param        request body UpdateClosingEventRequest true "Closing milestone update request"
// @Success      200 {object} APIResponse[schedulingapp.ClosingEventResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /closing-events/{id} [put]
func (h *ClosingEventHandler) Update(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid closing event ID format")
		return
	}

	var req UpdateClosingEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	event, err := h.closingService.Update(c.Request.Context(), eventID, schedulingapp.UpdateClosingEventRequest{
		EventName: req.EventName,
		Notes:     req.Notes,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, event)
}

// MarkCompleted godoc
// @ID           completeClosingEvent
// @Summary      Complete a closing milestone
// @Description  Record the date the milestone actually happened
// @Tags         closing-events
// @Accept       json
// @Produce      json
// @Param        id path string true "Closing event ID" format(uuid)
// @Param        request body CompleteClosingEventRequest true "Completion request"
// @Success      200 {object} APIResponse[schedulingapp.ClosingEventResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /closing-events/{id}/complete [post]
func (h *ClosingEventHandler) MarkCompleted(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid closing event ID format")
		return
	}

	var req CompleteClosingEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	event, err := h.closingService.MarkCompleted(c.Request.Context(), eventID, schedulingapp.CompleteClosingEventRequest{
		ActualDate: req.ActualDate,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, event)
}

// Postpone godoc
// @ID           postponeClosingEvent
// @Summary      Postpone a closing milestone
// @Description  Move a scheduled milestone to a later date
// @Tags         closing-events
// @Accept       json
// @Produce      json
// @Param        id path string true "Closing event ID" format(uuid)
// @Param        request body PostponeClosingEventRequest true "Postpone request"
// @Success      200 {object} APIResponse[schedulingapp.ClosingEventResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /closing-events/{id}/postpone [post]
func (h *ClosingEventHandler) Postpone(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid closing event ID format")
		return
	}

	var req PostponeClosingEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	event, err := h.closingService.Postpone(c.Request.Context(), eventID, schedulingapp.PostponeClosingEventRequest{
		NewDate: req.NewDate,
		Notes:   req.Notes,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, event)
}

// Cancel godoc
// @ID           cancelClosingEvent
// @Summary      Cancel a closing milestone
// @Description  Cancel a milestone that will not happen
// @Tags         closing-events
// @Produce      json
// @Param        id path string true "Closing event ID" format(uuid)
// @Success      200 {object} APIResponse[schedulingapp.ClosingEventResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /closing-events/{id} [delete]
func (h *ClosingEventHandler) Cancel(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid closing event ID format")
		return
	}

	event, err := h.closingService.Cancel(c.Request.Context(), eventID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, event)
}

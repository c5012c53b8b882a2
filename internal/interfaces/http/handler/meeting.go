package handler

import (
	schedulingapp "github.com/dealflow/backend/internal/application/scheduling"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MeetingHandler handles deal meeting API endpoints
type MeetingHandler struct {
	BaseHandler
	meetingService *schedulingapp.MeetingService
}

// NewMeetingHandler creates a new MeetingHandler
func NewMeetingHandler(meetingService *schedulingapp.MeetingService) *MeetingHandler {
	return &MeetingHandler{
		meetingService: meetingService,
	}
}

// CreateMeetingRequest represents a request to schedule a meeting
// @Description Request body for scheduling a meeting
type CreateMeetingRequest struct {
	DealID      string   `json:"deal_id" binding:"required,uuid"`
	Title       string   `json:"title" binding:"required,min=1,max=200" example:"Partner review"`
	MeetingDate string   `json:"meeting_date" binding:"required" example:"2026-09-20"`
	Attendees   []string `json:"attendees" binding:"max=50,dive,max=100"`
	Agenda      string   `json:"agenda" binding:"max=2000"`
}

// UpdateMeetingRequest represents a request to update a meeting
// @Description Request body for updating a meeting
type UpdateMeetingRequest struct {
	Title     string   `json:"title" binding:"required,min=1,max=200" example:"Partner review (extended)"`
	Attendees []string `json:"attendees" binding:"max=50,dive,max=100"`
	Agenda    string   `json:"agenda" binding:"max=2000"`
}

// RescheduleMeetingRequest moves a meeting to a new date
// @Description Request body for rescheduling a meeting
type RescheduleMeetingRequest struct {
	NewDate string `json:"new_date" binding:"required" example:"2026-09-27"`
}

// Create godoc
// @ID           createMeeting
// @Summary      Schedule a meeting
// @Description  Schedule a meeting against a deal
// @Tags         meetings
// @Accept       json
// @Produce      json
// @Param        request body CreateMeetingRequest true "Meeting creation request"
// @Success      201 {object} APIResponse[schedulingapp.MeetingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /meetings [post]
func (h *MeetingHandler) Create(c *gin.Context) {
	var req CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	dealID, err := uuid.Parse(req.DealID)
	if err != nil {
		h.BadRequest(c, "Invalid deal ID format")
		return
	}

	meeting, err := h.meetingService.Create(c.Request.Context(), schedulingapp.CreateMeetingRequest{
		DealID:      dealID,
		Title:       req.Title,
		MeetingDate: req.MeetingDate,
		Attendees:   req.Attendees,
		Agenda:      req.Agenda,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, meeting)
}

// List godoc
// @ID           listMeetings
// @Summary      List meetings
// @Description  List meetings with optional filtering and pagination
// @Tags         meetings
// @Produce      json
// @Param        deal_id query string false "Filter by deal" format(uuid)
// @Param        status query string false "Filter by status" Enums(scheduled, completed, cancelled)
// @Param        from query string false "Meeting date lower bound (YYYY-MM-DD)"
// @Param        to query string false "Meeting date upper bound (YYYY-MM-DD)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]schedulingapp.MeetingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /meetings [get]
func (h *MeetingHandler) List(c *gin.Context) {
	var filter schedulingapp.ScheduleListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	meetings, total, err := h.meetingService.List(c.Request.Context(), filter)
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
	h.SuccessWithMeta(c, meetings, total, page, pageSize)
}

// GetByID godoc
// @ID           getMeetingById
// @Summary      Get meeting by ID
// @Description  Retrieve a meeting by its ID
// @Tags         meetings
// @Produce      json
// @Param        id path string true "Meeting ID" format(uuid)
// @Success      200 {object} APIResponse[schedulingapp.MeetingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /meetings/{id} [get]
func (h *MeetingHandler) GetByID(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid meeting ID format")
		return
	}

	meeting, err := h.meetingService.Get(c.Request.Context(), meetingID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, meeting)
}

// Update godoc
// @ID           updateMeeting
// @Summary      Update a meeting
// @Description  Update a meeting's title, attendees and agenda
// @Tags         meetings
// @Accept       json
// @Produce      json
// @Param        id path string true "Meeting ID" format(uuid)
// @Param        request body UpdateMeetingRequest true "Meeting update request"
// @Success      200 {object} APIResponse[schedulingapp.MeetingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /meetings/{id} [put]
func (h *MeetingHandler) Update(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid meeting ID format")
		return
	}

	var req UpdateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	meeting, err := h.meetingService.Update(c.Request.Context(), meetingID, schedulingapp.UpdateMeetingRequest{
		Title:     req.Title,
		Attendees: req.Attendees,
		Agenda:    req.Agenda,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, meeting)
}

// Reschedule godoc
// @ID           rescheduleMeeting
// @Summary      Reschedule a meeting
// @Description  Move a scheduled meeting to a new date
// @Tags         meetings
// @Accept       json
// @Produce      json
// @Param        id path string true "Meeting ID" format(uuid)
// @Param        request body RescheduleMeetingRequest true "Reschedule request"
// @Success      200 {object} APIResponse[schedulingapp.MeetingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /meetings/{id}/reschedule [post]
func (h *MeetingHandler) Reschedule(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid meeting ID format")
		return
	}

	var req RescheduleMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	meeting, err := h.meetingService.Reschedule(c.Request.Context(), meetingID, schedulingapp.RescheduleMeetingRequest{
		NewDate: req.NewDate,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, meeting)
}

// MarkCompleted godoc
// @ID           completeMeeting
// @Summary      Complete a meeting
// @Description  Mark a scheduled meeting as held
// @Tags         meetings
// @Produce      json
// @Param        id path string true "Meeting ID" format(uuid)
// @Success      200 {object} APIResponse[schedulingapp.MeetingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /meetings/{id}/complete [post]
func (h *MeetingHandler) MarkCompleted(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid meeting ID format")
		return
	}

	meeting, err := h.meetingService.MarkCompleted(c.Request.Context(), meetingID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, meeting)
}

// Cancel godoc
// @ID           cancelMeeting
// @Summary      Cancel a meeting
// @Description  Cancel a scheduled meeting
// @Tags         meetings
// @Produce      json
// @Param        id path string true "Meeting ID" format(uuid)
// @Success      200 {object} APIResponse[schedulingapp.MeetingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /meetings/{id} [delete]
func (h *MeetingHandler) Cancel(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid meeting ID format")
		return
	}

	meeting, err := h.meetingService.Cancel(c.Request.Context(), meetingID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, meeting)
}

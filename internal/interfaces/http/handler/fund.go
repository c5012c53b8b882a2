package handler

import (
	pipelineapp "github.com/dealflow/backend/internal/application/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FundHandler handles fund-related API endpoints
type FundHandler struct {
	BaseHandler
	fundService *pipelineapp.FundService
}

// NewFundHandler creates a new FundHandler
func NewFundHandler(fundService *pipelineapp.FundService) *FundHandler {
	return &FundHandler{
		fundService: fundService,
	}
}

// CreateFundRequest represents a request to create a fund
// @Description Request body for creating a fund
type CreateFundRequest struct {
	Name       string   `json:"name" binding:"required,min=1,max=200" example:"Growth Fund III"`
	Vintage    int      `json:"vintage" binding:"required,min=1980,max=2100" example:"2024"`
	TargetSize *float64 `json:"target_size" binding:"omitempty,gt=0" example:"250000000.00"`
}

// UpdateFundRequest represents a request to update a fund
// @Description Request body for updating a fund
type UpdateFundRequest struct {
	Name       string   `json:"name" binding:"required,min=1,max=200" example:"Growth Fund III"`
	Vintage    int      `json:"vintage" binding:"required,min=1980,max=2100" example:"2024"`
	TargetSize *float64 `json:"target_size" binding:"omitempty,gt=0" example:"300000000.00"`
	Status     string   `json:"status" binding:"omitempty,oneof=open closed fully_deployed" example:"open"`
}

// Create godoc
// @ID           createFund
// @Summary      Create a new fund
// @Description  Create a new fund in the open status
// @Tags         funds
// @Accept       json
// @Produce      json
// @Param        request body CreateFundRequest true "Fund creation request"
// @Success      201 {object} APIResponse[pipelineapp.FundResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /funds [post]
func (h *FundHandler) Create(c *gin.Context) {
	var req CreateFundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	appReq := pipelineapp.CreateFundRequest{
		Name:    req.Name,
		Vintage: req.Vintage,
	}
	if req.TargetSize != nil {
		appReq.TargetSize = toDecimalPtr(*req.TargetSize)
	}

	fund, err := h.fundService.Create(c.Request.Context(), appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, fund)
}

// List godoc
// @ID           listFunds
// @Summary      List funds
// @Description  List funds with optional filtering and pagination
// @Tags         funds
// @Produce      json
// @Param        search query string false "Search by name"
// @Param        status query string false "Filter by status" Enums(open, closed, fully_deployed)
// @Param        vintage query int false "Filter by vintage year"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]pipelineapp.FundResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /funds [get]
func (h *FundHandler) List(c *gin.Context) {
	var filter pipelineapp.FundListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	funds, total, err := h.fundService.List(c.Request.Context(), filter)
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
	h.SuccessWithMeta(c, funds, total, page, pageSize)
}

// GetByID godoc
// @ID           getFundById
// @Summary      Get fund by ID
// @Description  Retrieve a fund by its ID
// @Tags         funds
// @Produce      json
// @Param        id path string true "Fund ID" format(uuid)
// @Success      200 {object} APIResponse[pipelineapp.FundResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /funds/{id} [get]
func (h *FundHandler) GetByID(c *gin.Context) {
	fundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid fund ID format")
		return
	}

	fund, err := h.fundService.Get(c.Request.Context(), fundID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, fund)
}

// Update godoc
// @ID           updateFund
// @Summary      Update a fund
// @Description  Update a fund's basic information and status
// @Tags         funds
// @Accept       json
// @Produce      json
// @Param        id path string true "Fund ID" format(uuid)
// @Param        request body UpdateFundRequest true "Fund update request"
// @Success      200 {object} APIResponse[pipelineapp.FundResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /funds/{id} [put]
func (h *FundHandler) Update(c *gin.Context) {
	fundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid fund ID format")
		return
	}

	var req UpdateFundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	appReq := pipelineapp.UpdateFundRequest{
		Name:    req.Name,
		Vintage: req.Vintage,
		Status:  req.Status,
	}
	if req.TargetSize != nil {
		d := decimal.NewFromFloat(*req.TargetSize)
		appReq.TargetSize = &d
	}

	fund, err := h.fundService.Update(c.Request.Context(), fundID, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, fund)
}

// Summary godoc
// @ID           getFundSummary
// @Summary      Get fund financial summary
// @Description  Aggregate committed, paid and outstanding totals across the fund's allocations
// @Tags         funds
// @Produce      json
// @Param        id path string true "Fund ID" format(uuid)
// @Success      200 {object} APIResponse[pipelineapp.FundSummaryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /funds/{id}/summary [get]
func (h *FundHandler) Summary(c *gin.Context) {
	fundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid fund ID format")
		return
	}

	summary, err := h.fundService.Summary(c.Request.Context(), fundID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summary)
}

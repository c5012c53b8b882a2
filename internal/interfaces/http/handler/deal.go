package handler

import (
	allocationapp "github.com/dealflow/backend/internal/application/allocation"
	pipelineapp "github.com/dealflow/backend/internal/application/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DealHandler handles deal pipeline API endpoints
type DealHandler struct {
	BaseHandler
	dealService       *pipelineapp.DealService
	allocationService *allocationapp.AllocationService
}

// NewDealHandler creates a new DealHandler
func NewDealHandler(dealService *pipelineapp.DealService, allocationService *allocationapp.AllocationService) *DealHandler {
	return &DealHandler{
		dealService:       dealService,
		allocationService: allocationService,
	}
}

// CreateDealRequest represents a request to add a deal to the pipeline
// @Description Request body for creating a deal
type CreateDealRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=200" example:"Acme Robotics Series B"`
	Sector      string   `json:"sector" binding:"max=100" example:"robotics"`
	TargetRaise *float64 `json:"target_raise" binding:"omitempty,gt=0" example:"40000000.00"`
	Description string   `json:"description" binding:"max=2000" example:"Series B round"`
}

// UpdateDealRequest represents a request to update a deal
// @Description Request body for updating a deal
type UpdateDealRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=200" example:"Acme Robotics Series B"`
	Sector      string   `json:"sector" binding:"max=100" example:"robotics"`
	TargetRaise *float64 `json:"target_raise" binding:"omitempty,gt=0" example:"45000000.00"`
	Description string   `json:"description" binding:"max=2000" example:"Series B round, extended"`
}

// AdvanceStageRequest represents a request to move a deal through the pipeline
// @Description Request body for advancing a deal's stage
type AdvanceStageRequest struct {
	Stage string `json:"stage" binding:"required,oneof=screening diligence committed invested exited passed" example:"diligence"`
}

// Create godoc
// @ID           createDeal
// @Summary      Create a new deal
// @Description  Add a deal to the pipeline in the screening stage
// @Tags         deals
// @Accept       json
// @Produce      json
// @Param        request body CreateDealRequest true "Deal creation request"
// @Success      201 {object} APIResponse[pipelineapp.DealResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /deals [post]
func (h *DealHandler) Create(c *gin.Context) {
	var req CreateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	appReq := pipelineapp.CreateDealRequest{
		Name:        req.Name,
		Sector:      req.Sector,
		Description: req.Description,
	}
	if req.TargetRaise != nil {
		appReq.TargetRaise = toDecimalPtr(*req.TargetRaise)
	}

	deal, err := h.dealService.Create(c.Request.Context(), appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, deal)
}

// List godoc
// @ID           listDeals
// @Summary      List deals
// @Description  List pipeline deals with optional filtering and pagination
// @Tags         deals
// @Produce      json
// @Param        search query string false "Search by name"
// @Param        stage query string false "Filter by stage" Enums(screening, diligence, committed, invested, exited, passed)
// @Param        sector query string false "Filter by sector"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]pipelineapp.DealResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /deals [get]
func (h *DealHandler) List(c *gin.Context) {
	var filter pipelineapp.DealListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	deals, total, err := h.dealService.List(c.Request.Context(), filter)
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
	h.SuccessWithMeta(c, deals, total, page, pageSize)
}

// GetByID godoc
// @ID           getDealById
// @Summary      Get deal by ID
// @Description  Retrieve a deal by its ID
// @Tags         deals
// @Produce      json
// @Param        id path string true "Deal ID" format(uuid)
// @Success      200 {object} APIResponse[pipelineapp.DealResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /deals/{id} [get]
func (h *DealHandler) GetByID(c *gin.Context) {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid deal ID format")
		return
	}

	deal, err := h.dealService.Get(c.Request.Context(), dealID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// Update godoc
// @ID           updateDeal
// @Summary      Update a deal
// @Description  Update a deal's basic information
// @Tags         deals
// @Accept       json
// @Produce      json
// @Param        id path string true "Deal ID" format(uuid)
// @Param        request body UpdateDealRequest true "Deal update request"
// @Success      200 {object} APIResponse[pipelineapp.DealResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /deals/{id} [put]
func (h *DealHandler) Update(c *gin.Context) {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid deal ID format")
		return
	}

	var req UpdateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	appReq := pipelineapp.UpdateDealRequest{
		Name:        req.Name,
		Sector:      req.Sector,
		Description: req.Description,
	}
	if req.TargetRaise != nil {
		appReq.TargetRaise = toDecimalPtr(*req.TargetRaise)
	}

	deal, err := h.dealService.Update(c.Request.Context(), dealID, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// AdvanceStage godoc
// @ID           advanceDealStage
// @Summary      Advance a deal's stage
// @Description  Move a deal through the pipeline. Terminal stages (exited, passed) reject further transitions.
// @Tags         deals
// @Accept       json
// @Produce      json
// @Param        id path string true "Deal ID" format(uuid)
// @Param        request body AdvanceStageRequest true "Stage transition request"
// @Success      200 {object} APIResponse[pipelineapp.DealResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /deals/{id}/stage [post]
func (h *DealHandler) AdvanceStage(c *gin.Context) {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid deal ID format")
		return
	}

	var req AdvanceStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	deal, err := h.dealService.AdvanceStage(c.Request.Context(), dealID, pipelineapp.AdvanceStageRequest{Stage: req.Stage})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// ListAllocations godoc
// @ID           listDealAllocations
// @Summary      List a deal's allocations
// @Description  List every fund allocation committed to the deal
// @Tags         deals
// @Produce      json
// @Param        id path string true "Deal ID" format(uuid)
// @Success      200 {object} APIResponse[[]allocationapp.AllocationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /deals/{id}/allocations [get]
func (h *DealHandler) ListAllocations(c *gin.Context) {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid deal ID format")
		return
	}

	allocations, err := h.allocationService.ListByDeal(c.Request.Context(), dealID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, allocations)
}

package handler

import (
	allocationapp "github.com/dealflow/backend/internal/application/allocation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationHandler handles fund allocation and payment API endpoints
type AllocationHandler struct {
	BaseHandler
	allocationService *allocationapp.AllocationService
	paymentService    *allocationapp.PaymentService
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(
	allocationService *allocationapp.AllocationService,
	paymentService *allocationapp.PaymentService,
) *AllocationHandler {
	return &AllocationHandler{
		allocationService: allocationService,
		paymentService:    paymentService,
	}
}

// CreateAllocationRequest represents a request to commit a fund to a deal
// @Description Request body for creating a fund allocation
type CreateAllocationRequest struct {
	FundID          string  `json:"fund_id" binding:"required,uuid" example:"7f8c0e1a-1111-4a6b-9c70-2f64a1b0c9d1"`
	DealID          string  `json:"deal_id" binding:"required,uuid" example:"3b1d4f2c-2222-4e8d-8a11-5c9e7d3f6a02"`
	CommittedAmount float64 `json:"committed_amount" binding:"required,gt=0" example:"100000.00"`
	SecurityType    string  `json:"security_type" binding:"omitempty,oneof=equity debt convertible" example:"equity"`
	Notes           string  `json:"notes" binding:"max=2000" example:"Lead position"`
}

// UpdateAllocationNotesRequest represents a request to replace an allocation's notes
// @Description Request body for updating allocation notes
type UpdateAllocationNotesRequest struct {
	Notes string `json:"notes" binding:"max=2000" example:"Co-invest via SPV"`
}

// ProcessPaymentRequest represents a request to record a payment
// @Description Request body for recording a payment against an allocation
type ProcessPaymentRequest struct {
	Amount        float64 `json:"amount" binding:"required,gt=0" example:"40000.00"`
	Method        string  `json:"method" binding:"max=50" example:"wire"`
	Description   string  `json:"description" binding:"max=500" example:"First call settlement"`
	CapitalCallID *string `json:"capital_call_id" binding:"omitempty,uuid"`
}

// MarkDefaultedRequest represents a request to mark an allocation defaulted
// @Description Request body for defaulting an allocation
type MarkDefaultedRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"LP failed to meet the second capital call"`
}

// Create godoc
// @ID           createAllocation
// @Summary      Create a fund allocation
// @Description  Commit a fund to a deal. The deal must be invested and the fund open; a fund holds at most one active allocation per deal.
// @Tags         allocations
// @Accept       json
// @Produce      json
// @Param        request body CreateAllocationRequest true "Allocation creation request"
// @Success      201 {object} APIResponse[allocationapp.AllocationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /allocations [post]
func (h *AllocationHandler) Create(c *gin.Context) {
	var req CreateAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	fundID, err := uuid.Parse(req.FundID)
	if err != nil {
		h.BadRequest(c, "Invalid fund ID format")
		return
	}
	dealID, err := uuid.Parse(req.DealID)
	if err != nil {
		h.BadRequest(c, "Invalid deal ID format")
		return
	}

	appReq := allocationapp.CreateAllocationRequest{
		FundID:          fundID,
		DealID:          dealID,
		CommittedAmount: decimal.NewFromFloat(req.CommittedAmount),
		SecurityType:    req.SecurityType,
		Notes:           req.Notes,
	}

	alloc, err := h.allocationService.Create(c.Request.Context(), appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, alloc)
}

// List godoc
// @ID           listAllocations
// @Summary      List allocations
// @Description  List fund allocations with optional filtering and pagination
// @Tags         allocations
// @Produce      json
// @Param        search query string false "Search in notes"
// @Param        fund_id query string false "Filter by fund" format(uuid)
// @Param        deal_id query string false "Filter by deal" format(uuid)
// @Param        status query string false "Filter by status" Enums(committed, partially_paid, paid, defaulted)
// @Param        security_type query string false "Filter by security type" Enums(equity, debt, convertible)
// @Param        requires_review query bool false "Filter by review flag"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]allocationapp.AllocationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /allocations [get]
func (h *AllocationHandler) List(c *gin.Context) {
	var filter allocationapp.AllocationListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	allocations, total, err := h.allocationService.List(c.Request.Context(), filter)
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
	h.SuccessWithMeta(c, allocations, total, page, pageSize)
}

// GetByID godoc
// @ID           getAllocationById
// @Summary      Get allocation by ID
// @Description  Retrieve an allocation with its full payment ledger
// @Tags         allocations
// @Produce      json
// @Param        id path string true "Allocation ID" format(uuid)
// @Success      200 {object} APIResponse[allocationapp.AllocationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /allocations/{id} [get]
func (h *AllocationHandler) GetByID(c *gin.Context) {
	allocationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid allocation ID format")
		return
	}

	alloc, err := h.allocationService.Get(c.Request.Context(), allocationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, alloc)
}

// UpdateNotes godoc
// @ID           updateAllocationNotes
// @Summary      Update allocation notes
// @Description  Replace an allocation's free-form notes
// @Tags         allocations
// @Accept       json
// @Produce      json
// @Param        id path string true "Allocation ID" format(uuid)
// @Param        request body UpdateAllocationNotesRequest true "Notes update request"
// @Success      200 {object} APIResponse[allocationapp.AllocationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /allocations/{id}/notes [patch]
func (h *AllocationHandler) UpdateNotes(c *gin.Context) {
	allocationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid allocation ID format")
		return
	}

	var req UpdateAllocationNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	alloc, err := h.allocationService.UpdateNotes(c.Request.Context(), allocationID, req.Notes)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, alloc)
}

// ClearReview godoc
// @ID           clearAllocationReview
// @Summary      Clear the manual review flag
// @Description  Acknowledge and clear an allocation's requires_review flag after an overpayment was inspected
// @Tags         allocations
// @Produce      json
// @Param        id path string true "Allocation ID" format(uuid)
// @Success      200 {object} APIResponse[allocationapp.AllocationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /allocations/{id}/clear-review [post]
func (h *AllocationHandler) ClearReview(c *gin.Context) {
	allocationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid allocation ID format")
		return
	}

	alloc, err := h.allocationService.ClearReview(c.Request.Context(), allocationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, alloc)
}

// ProcessPayment godoc
// @ID           processAllocationPayment
// @Summary      Record a payment
// @Description  Record a payment against an allocation. Overpayments are rejected or flagged for review depending on engine policy; lock conflicts retry transparently.
// @Tags         allocations
// @Accept       json
// @Produce      json
// @Param        id path string true "Allocation ID" format(uuid)
// @Param        request body ProcessPaymentRequest true "Payment request"
// @Success      200 {object} APIResponse[allocationapp.PaymentResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /allocations/{id}/payments [post]
func (h *AllocationHandler) ProcessPayment(c *gin.Context) {
	allocationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid allocation ID format")
		return
	}

	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	input := allocationapp.ProcessPaymentInput{
		AllocationID: allocationID,
		Amount:       decimal.NewFromFloat(req.Amount),
		Method:       req.Method,
		Description:  req.Description,
	}
	if req.CapitalCallID != nil {
		callID, err := uuid.Parse(*req.CapitalCallID)
		if err != nil {
			h.BadRequest(c, "Invalid capital call ID format")
			return
		}
		input.CapitalCallID = &callID
	}

	result, err := h.paymentService.ProcessPayment(c.Request.Context(), input)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// MarkDefaulted godoc
// @ID           markAllocationDefaulted
// @Summary      Mark an allocation defaulted
// @Description  Administrative action recording that the fund failed to meet its commitment
// @Tags         allocations
// @Accept       json
// @Produce      json
// @Param        id path string true "Allocation ID" format(uuid)
// @Param        request body MarkDefaultedRequest true "Default request"
// @Success      200 {object} APIResponse[allocationapp.AllocationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /allocations/{id}/default [post]
func (h *AllocationHandler) MarkDefaulted(c *gin.Context) {
	allocationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid allocation ID format")
		return
	}

	var req MarkDefaultedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	alloc, err := h.paymentService.MarkDefaulted(c.Request.Context(), allocationID, req.Reason)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, alloc)
}

// Reinstate godoc
// @ID           reinstateAllocation
// @Summary      Reinstate a defaulted allocation
// @Description  Lift a default and re-derive the allocation's status from its ledger
// @Tags         allocations
// @Produce      json
// @Param        id path string true "Allocation ID" format(uuid)
// @Success      200 {object} APIResponse[allocationapp.AllocationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /allocations/{id}/reinstate [post]
func (h *AllocationHandler) Reinstate(c *gin.Context) {
	allocationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid allocation ID format")
		return
	}

	alloc, err := h.paymentService.Reinstate(c.Request.Context(), allocationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, alloc)
}

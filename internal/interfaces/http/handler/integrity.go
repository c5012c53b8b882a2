package handler

import (
	integrityapp "github.com/dealflow/backend/internal/application/integrity"
	"github.com/gin-gonic/gin"
)

// IntegrityHandler handles ledger verification and repair API endpoints
type IntegrityHandler struct {
	BaseHandler
	integrityService *integrityapp.Service
}

// NewIntegrityHandler creates a new IntegrityHandler
func NewIntegrityHandler(integrityService *integrityapp.Service) *IntegrityHandler {
	return &IntegrityHandler{
		integrityService: integrityService,
	}
}

// Verify godoc
// @ID           verifyAllocationIntegrity
// @Summary      Verify allocation ledgers
// @Description  Scan every allocation, re-derive its status and ledger sum, and report each divergence. Read-only.
// @Tags         integrity
// @Produce      json
// @Success      200 {object} APIResponse[integrityapp.VerificationReport]
// @Failure      500 {object} ErrorResponse
// @Router       /integrity/allocations [get]
func (h *IntegrityHandler) Verify(c *gin.Context) {
	report, err := h.integrityService.VerifyAllAllocations(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, report)
}

// Repair godoc
// @ID           repairAllocationIntegrity
// @Summary      Repair allocation ledgers
// @Description  Rewrite divergent cached amounts and statuses from the authoritative payment ledger. Idempotent; allocations that cannot be safely repaired are reported, not modified.
// @Tags         integrity
// @Produce      json
// @Success      200 {object} APIResponse[integrityapp.RepairReport]
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /integrity/allocations/repair [post]
func (h *IntegrityHandler) Repair(c *gin.Context) {
	report, err := h.integrityService.Repair(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, report)
}

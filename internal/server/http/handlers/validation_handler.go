package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	"github.com/polkiloo/loyaltyledger/internal/server/http/dto"
	"github.com/polkiloo/loyaltyledger/internal/usecase"
)

// ValidationHandler serves store operators consuming and cancelling redemptions.
type ValidationHandler struct {
	facade ValidationFacade
}

// NewValidationHandler constructs ValidationHandler.
func NewValidationHandler(facade ValidationFacade) *ValidationHandler {
	return &ValidationHandler{facade: facade}
}

// Validate handles POST /api/store/validations. The validating store is always the operator's.
func (h *ValidationHandler) Validate(c *gin.Context) {
	principal := CurrentPrincipal(c)
	var req dto.ValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	result, err := h.facade.ValidateRedemption(c.Request.Context(), usecase.ValidationRequest{
		StoreID:   principal.StoreID,
		QRPayload: req.QRPayload,
		Code:      req.Code,
		Metadata: model.ValidationMetadata{
			ValidatedBy: principal.Subject,
			Location:    req.Location,
			Notes:       req.Notes,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.ValidationResponse{
		RedemptionID: result.Redemption.ID.String(),
		CustomerID:   result.Redemption.CustomerID,
		RewardID:     result.Redemption.RewardID,
		CostPoints:   result.Redemption.CostPoints,
	}
	if result.Proof.ValidatedAt != nil {
		resp.ValidatedAt = *result.Proof.ValidatedAt
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel handles POST /api/store/redemptions/:id/cancel.
func (h *ValidationHandler) Cancel(c *gin.Context) {
	principal := CurrentPrincipal(c)
	id, ok := redemptionID(c)
	if !ok {
		return
	}
	var req dto.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c)
		return
	}

	red, err := h.facade.CancelRedemption(c.Request.Context(), usecase.CancelRequest{
		RedemptionID: id,
		StoreID:      principal.StoreID,
		Operator:     principal.Subject,
		Reason:       req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, redemptionResponse(*red))
}

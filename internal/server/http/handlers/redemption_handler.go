package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/polkiloo/loyaltyledger/internal/server/http/dto"
)

// RedemptionHandler serves the customer side of redemptions.
type RedemptionHandler struct {
	facade RedemptionFacade
}

// NewRedemptionHandler constructs RedemptionHandler.
func NewRedemptionHandler(facade RedemptionFacade) *RedemptionHandler {
	return &RedemptionHandler{facade: facade}
}

// Issue handles POST /api/redemptions.
func (h *RedemptionHandler) Issue(c *gin.Context) {
	principal := CurrentPrincipal(c)
	var req dto.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	issuance, err := h.facade.IssueRedemption(c.Request.Context(), principal.Subject, req.StoreID, req.RewardID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issuanceResponse(issuance))
}

// Regenerate handles POST /api/redemptions/:id/proof.
func (h *RedemptionHandler) Regenerate(c *gin.Context) {
	id, ok := redemptionID(c)
	if !ok {
		return
	}
	issuance, err := h.facade.RegenerateProof(c.Request.Context(), CurrentPrincipal(c).Subject, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issuanceResponse(issuance))
}

// List handles GET /api/redemptions with an optional store_id filter.
func (h *RedemptionHandler) List(c *gin.Context) {
	redemptions, err := h.facade.Redemptions(c.Request.Context(), CurrentPrincipal(c).Subject, c.Query("store_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if len(redemptions) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	resp := make([]dto.RedemptionResponse, 0, len(redemptions))
	for _, r := range redemptions {
		resp = append(resp, redemptionResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}

// Get handles GET /api/redemptions/:id and returns the current proof.
func (h *RedemptionHandler) Get(c *gin.Context) {
	id, ok := redemptionID(c)
	if !ok {
		return
	}
	issuance, err := h.facade.Redemption(c.Request.Context(), CurrentPrincipal(c).Subject, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issuanceResponse(issuance))
}

func redemptionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c)
		return uuid.Nil, false
	}
	return id, true
}

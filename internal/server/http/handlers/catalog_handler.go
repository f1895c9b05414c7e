package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	"github.com/polkiloo/loyaltyledger/internal/server/http/dto"
)

// CatalogHandler mirrors catalog pushes and lists rewards.
type CatalogHandler struct {
	facade CatalogFacade
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(facade CatalogFacade) *CatalogHandler {
	return &CatalogHandler{facade: facade}
}

// Upsert handles PUT /api/internal/rewards/:id. Omitted active defaults to true.
func (h *CatalogHandler) Upsert(c *gin.Context) {
	var req dto.RewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	reward, err := h.facade.UpsertReward(c.Request.Context(), model.Reward{
		ID:                     c.Param("id"),
		StoreID:                req.StoreID,
		Title:                  req.Title,
		CostPoints:             req.CostPoints,
		Quantity:               req.Quantity,
		Active:                 active,
		RedemptionValidityDays: req.RedemptionValidityDays,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rewardResponse(*reward))
}

// List handles GET /api/rewards/:store_id.
func (h *CatalogHandler) List(c *gin.Context) {
	rewards, err := h.facade.Rewards(c.Request.Context(), c.Param("store_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]dto.RewardResponse, 0, len(rewards))
	for _, r := range rewards {
		resp = append(resp, rewardResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}

func rewardResponse(r model.Reward) dto.RewardResponse {
	return dto.RewardResponse{
		ID:                     r.ID,
		StoreID:                r.StoreID,
		Title:                  r.Title,
		CostPoints:             r.CostPoints,
		Quantity:               r.Quantity,
		Active:                 r.Active,
		RedemptionValidityDays: r.ValidityDays(),
	}
}

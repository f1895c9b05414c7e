package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	"github.com/polkiloo/loyaltyledger/internal/server/http/dto"
)

// AwardHandler receives purchases and identity migrations from internal collaborators.
type AwardHandler struct {
	facade AwardFacade
}

// NewAwardHandler constructs AwardHandler.
func NewAwardHandler(facade AwardFacade) *AwardHandler {
	return &AwardHandler{facade: facade}
}

// Award handles POST /api/internal/awards. Credits parked against a tax ID answer 202.
func (h *AwardHandler) Award(c *gin.Context) {
	var req dto.AwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	result, err := h.facade.Award(c.Request.Context(), model.Purchase{
		AmountCents: req.AmountCents,
		StoreID:     req.StoreID,
		CustomerID:  req.CustomerID,
		TaxID:       req.TaxID,
		Reference:   req.Reference,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.AwardResponse{Points: result.Points, Status: dto.AwardNone}
	status := http.StatusOK
	switch {
	case result.Transaction != nil:
		resp.Status = dto.AwardCredited
		resp.TransactionID = result.Transaction.ID.String()
		if result.Balance != nil {
			b := balanceResponse(result.Balance)
			resp.Balance = &b
		}
	case result.PendingCredit != nil:
		resp.Status = dto.AwardPending
		resp.PendingCreditID = result.PendingCredit.ID.String()
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}

// Migrate handles POST /api/internal/migrations.
func (h *AwardHandler) Migrate(c *gin.Context) {
	var req dto.MigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	report, err := h.facade.Migrate(c.Request.Context(), req.TaxID, req.CustomerID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.MigrationResponse{
		TaxID:          report.TaxID,
		CustomerID:     report.CustomerID,
		MigratedPoints: report.MigratedPoints(),
		Stores:         make([]dto.StoreMigrationResponse, 0, len(report.Stores)),
	}
	for _, s := range report.Stores {
		item := dto.StoreMigrationResponse{StoreID: s.StoreID, Success: s.Success, Credits: s.Credits, Points: s.Points}
		if s.Err != nil {
			item.Error = domainCode(s.Err)
		}
		resp.Stores = append(resp.Stores, item)
	}
	c.JSON(http.StatusOK, resp)
}

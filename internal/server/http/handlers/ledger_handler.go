package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/loyaltyledger/internal/server/http/dto"
	"github.com/polkiloo/loyaltyledger/internal/usecase"
)

// LedgerHandler serves balances, history, adjustments and reconciliation.
type LedgerHandler struct {
	facade LedgerFacade
}

// NewLedgerHandler constructs LedgerHandler.
func NewLedgerHandler(facade LedgerFacade) *LedgerHandler {
	return &LedgerHandler{facade: facade}
}

// Balance handles GET /api/balances/:store_id.
func (h *LedgerHandler) Balance(c *gin.Context) {
	principal := CurrentPrincipal(c)
	balance, err := h.facade.Balance(c.Request.Context(), principal.Subject, c.Param("store_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balanceResponse(balance))
}

// History handles GET /api/balances/:store_id/transactions.
func (h *LedgerHandler) History(c *gin.Context) {
	principal := CurrentPrincipal(c)
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c)
			return
		}
		limit = n
	}

	entries, err := h.facade.History(c.Request.Context(), principal.Subject, c.Param("store_id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(entries) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	resp := make([]dto.TransactionResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dto.TransactionResponse{
			ID:        e.ID.String(),
			Type:      string(e.Type),
			Amount:    e.Amount,
			Reference: e.Reference,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
			ExpiresAt: e.ExpiresAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Adjust handles POST /api/store/adjustments. The store comes from the operator token.
func (h *LedgerHandler) Adjust(c *gin.Context) {
	principal := CurrentPrincipal(c)
	var req dto.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	balance, err := h.facade.Adjust(c.Request.Context(), usecase.Adjustment{
		CustomerID: req.CustomerID,
		StoreID:    principal.StoreID,
		Delta:      req.Delta,
		Reason:     req.Reason,
		Operator:   principal.Subject,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balanceResponse(balance))
}

// Reconcile handles GET /api/internal/reconcile.
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	rec, err := h.facade.Reconcile(c.Request.Context(), c.Query("customer_id"), c.Query("store_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ReconciliationResponse{
		CustomerID: rec.CustomerID,
		StoreID:    rec.StoreID,
		LedgerSum:  rec.LedgerSum,
		Available:  rec.Available,
		Reserved:   rec.Reserved,
		Consistent: rec.Consistent(),
	})
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	pkgAuth "github.com/polkiloo/loyaltyledger/internal/pkg/auth"
	"github.com/polkiloo/loyaltyledger/internal/server/http/dto"
	"github.com/polkiloo/loyaltyledger/internal/server/http/middleware"
)

// CurrentPrincipal extracts the authenticated caller from context.
func CurrentPrincipal(c *gin.Context) pkgAuth.Principal {
	p, _ := middleware.Principal(c)
	return p
}

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domainErrors.ErrInvalidRequest), errors.Is(err, domainErrors.ErrMissingIdentity):
		return http.StatusBadRequest
	case errors.Is(err, domainErrors.ErrInvalidAmount), errors.Is(err, domainErrors.ErrInvalidTaxID):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domainErrors.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, domainErrors.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, domainErrors.ErrRewardNotFound), errors.Is(err, domainErrors.ErrNotFound),
		errors.Is(err, domainErrors.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainErrors.ErrRewardUnavailable), errors.Is(err, domainErrors.ErrStoreMismatch),
		errors.Is(err, domainErrors.ErrAlreadyUsed), errors.Is(err, domainErrors.ErrExpired),
		errors.Is(err, domainErrors.ErrRedemptionClosed), errors.Is(err, domainErrors.ErrProofStillValid),
		errors.Is(err, domainErrors.ErrIdentityConflict), errors.Is(err, domainErrors.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domainErrors.ErrConcurrencyConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(StatusFor(err), dto.ErrorResponse{Error: domainErrors.Code(err)})
}

func badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: domainErrors.Code(domainErrors.ErrInvalidRequest)})
}

func balanceResponse(b *model.Balance) dto.BalanceResponse {
	return dto.BalanceResponse{
		StoreID:   b.StoreID,
		Available: b.Available,
		Reserved:  b.Reserved,
		Total:     b.Total(),
		UpdatedAt: b.UpdatedAt,
	}
}

func redemptionResponse(r model.Redemption) dto.RedemptionResponse {
	return dto.RedemptionResponse{
		ID:               r.ID.String(),
		CustomerID:       r.CustomerID,
		StoreID:          r.StoreID,
		RewardID:         r.RewardID,
		CostPoints:       r.CostPoints,
		Status:           string(r.Status),
		ValidationStatus: string(r.ValidationStatus),
		RedeemedAt:       r.RedeemedAt,
		CreatedAt:        r.CreatedAt,
	}
}

func issuanceResponse(i *model.Issuance) dto.IssuanceResponse {
	return dto.IssuanceResponse{
		Redemption: redemptionResponse(i.Redemption),
		Proof: dto.ProofResponse{
			QRPayload:        i.Proof.QRPayload,
			VerificationCode: i.Proof.VerificationCode,
			ExpiresAt:        i.Proof.ExpiresAt,
		},
	}
}

func domainCode(err error) string {
	return domainErrors.Code(err)
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	pkgAuth "github.com/polkiloo/loyaltyledger/internal/pkg/auth"
	"github.com/polkiloo/loyaltyledger/internal/server/http/dto"
	"github.com/polkiloo/loyaltyledger/internal/server/http/middleware"
	testhelpers "github.com/polkiloo/loyaltyledger/internal/test"
	"github.com/polkiloo/loyaltyledger/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(t *testing.T, method, route, path string, handler gin.HandlerFunc, principal *pkgAuth.Principal, body any) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.Handle(method, route, func(c *gin.Context) {
		if principal != nil {
			c.Set(middleware.PrincipalContextKey, *principal)
		}
		handler(c)
	})

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func principal(p pkgAuth.Principal) *pkgAuth.Principal { return &p }

func TestCurrentPrincipal(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := CurrentPrincipal(c); got != (pkgAuth.Principal{}) {
		t.Fatalf("expected zero principal, got %+v", got)
	}

	c.Set(middleware.PrincipalContextKey, testhelpers.Customer("c1"))
	if got := CurrentPrincipal(c); got.Subject != "c1" {
		t.Fatalf("expected c1, got %+v", got)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domainErrors.ErrInvalidRequest, http.StatusBadRequest},
		{domainErrors.ErrMissingIdentity, http.StatusBadRequest},
		{domainErrors.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{domainErrors.ErrInvalidTaxID, http.StatusUnprocessableEntity},
		{domainErrors.ErrInsufficientBalance, http.StatusPaymentRequired},
		{domainErrors.ErrRewardNotFound, http.StatusNotFound},
		{domainErrors.ErrNotFound, http.StatusNotFound},
		{domainErrors.ErrRewardUnavailable, http.StatusConflict},
		{domainErrors.ErrStoreMismatch, http.StatusConflict},
		{domainErrors.ErrAlreadyUsed, http.StatusConflict},
		{domainErrors.ErrExpired, http.StatusConflict},
		{domainErrors.ErrRedemptionClosed, http.StatusConflict},
		{domainErrors.ErrProofStillValid, http.StatusConflict},
		{domainErrors.ErrIdentityConflict, http.StatusConflict},
		{fmt.Errorf("retries exhausted: %w", domainErrors.ErrConcurrencyConflict), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, got)
		}
	}
}

func TestLedgerHandlerBalance(t *testing.T) {
	var gotCustomer, gotStore string
	handler := NewLedgerHandler(testhelpers.LoyaltyFacadeStub{
		BalanceFn: func(_ context.Context, customerID, storeID string) (*model.Balance, error) {
			gotCustomer, gotStore = customerID, storeID
			return &model.Balance{StoreID: storeID, Available: 40, Reserved: 60}, nil
		},
	})
	w := performRequest(t, http.MethodGet, "/api/balances/:store_id", "/api/balances/s1", handler.Balance, principal(testhelpers.Customer("c1")), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[dto.BalanceResponse](t, w)
	if resp.Available != 40 || resp.Reserved != 60 || resp.Total != 100 {
		t.Fatalf("unexpected balance %+v", resp)
	}
	if gotCustomer != "c1" || gotStore != "s1" {
		t.Fatalf("expected caller c1 at s1, got %s at %s", gotCustomer, gotStore)
	}
}

func TestLedgerHandlerHistory(t *testing.T) {
	var gotLimit int
	stub := testhelpers.LoyaltyFacadeStub{
		HistoryFn: func(_ context.Context, _, _ string, limit int) ([]model.Transaction, error) {
			gotLimit = limit
			return []model.Transaction{{ID: uuid.New(), Type: model.TransactionRedeem, Amount: 30, CreatedAt: testhelpers.FixedTime}}, nil
		},
	}
	handler := NewLedgerHandler(stub)
	w := performRequest(t, http.MethodGet, "/h/:store_id", "/h/s1?limit=5", handler.History, principal(testhelpers.Customer("c1")), nil)
	if w.Code != http.StatusOK || gotLimit != 5 {
		t.Fatalf("expected 200 with limit 5, got %d and %d", w.Code, gotLimit)
	}
	entries := decode[[]dto.TransactionResponse](t, w)
	if len(entries) != 1 || entries[0].Type != "redeem" || entries[0].Amount != 30 {
		t.Fatalf("unexpected history %+v", entries)
	}

	w = performRequest(t, http.MethodGet, "/h/:store_id", "/h/s1?limit=abc", handler.History, principal(testhelpers.Customer("c1")), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}

	empty := NewLedgerHandler(testhelpers.LoyaltyFacadeStub{
		HistoryFn: func(context.Context, string, string, int) ([]model.Transaction, error) { return nil, nil },
	})
	w = performRequest(t, http.MethodGet, "/h/:store_id", "/h/s1", empty.History, principal(testhelpers.Customer("c1")), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for empty history, got %d", w.Code)
	}
}

func TestLedgerHandlerAdjust(t *testing.T) {
	var got usecase.Adjustment
	handler := NewLedgerHandler(testhelpers.LoyaltyFacadeStub{
		AdjustFn: func(_ context.Context, adj usecase.Adjustment) (*model.Balance, error) {
			got = adj
			if adj.Delta < -100 {
				return nil, domainErrors.ErrInsufficientBalance
			}
			return &model.Balance{StoreID: adj.StoreID, Available: 100 + adj.Delta}, nil
		},
	})
	op := principal(testhelpers.Operator("op-1", "s1"))

	w := performRequest(t, http.MethodPost, "/adj", "/adj", handler.Adjust, op, dto.AdjustmentRequest{CustomerID: "c1", Delta: -20, Reason: "refund"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got.StoreID != "s1" || got.Operator != "op-1" || got.Reason != "refund" {
		t.Fatalf("adjustment must carry operator store and identity, got %+v", got)
	}

	w = performRequest(t, http.MethodPost, "/adj", "/adj", handler.Adjust, op, dto.AdjustmentRequest{CustomerID: "c1", Delta: -500, Reason: "x"})
	if w.Code != http.StatusPaymentRequired || decode[dto.ErrorResponse](t, w).Error != "insufficient_balance" {
		t.Fatalf("expected 402 insufficient_balance, got %d %s", w.Code, w.Body.String())
	}

	w = performRequest(t, http.MethodPost, "/adj", "/adj", handler.Adjust, op, "{")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", w.Code)
	}
}

func TestLedgerHandlerReconcile(t *testing.T) {
	handler := NewLedgerHandler(testhelpers.LoyaltyFacadeStub{
		ReconcileFn: func(_ context.Context, customerID, storeID string) (*model.Reconciliation, error) {
			return &model.Reconciliation{CustomerID: customerID, StoreID: storeID, LedgerSum: 10, Available: 7, Reserved: 2}, nil
		},
	})
	w := performRequest(t, http.MethodGet, "/rec", "/rec?customer_id=c1&store_id=s1", handler.Reconcile, nil, nil)
	resp := decode[dto.ReconciliationResponse](t, w)
	if w.Code != http.StatusOK || resp.Consistent || resp.LedgerSum != 10 {
		t.Fatalf("expected drift to be reported, got %d %+v", w.Code, resp)
	}
}

func TestAwardHandler(t *testing.T) {
	var got model.Purchase
	handler := NewAwardHandler(testhelpers.LoyaltyFacadeStub{
		AwardFn: func(_ context.Context, p model.Purchase) (*model.AwardResult, error) {
			got = p
			switch {
			case p.CustomerID != "":
				owner := p.CustomerID
				return &model.AwardResult{
					Points:      25,
					Transaction: &model.Transaction{ID: uuid.New(), CustomerID: &owner},
					Balance:     &model.Balance{StoreID: p.StoreID, Available: 25},
				}, nil
			case p.TaxID == "bad":
				return nil, domainErrors.ErrInvalidTaxID
			default:
				return &model.AwardResult{Points: 10, PendingCredit: &model.PendingCredit{ID: uuid.New(), TaxID: p.TaxID}}, nil
			}
		},
	})

	w := performRequest(t, http.MethodPost, "/awards", "/awards", handler.Award, nil,
		dto.AwardRequest{AmountCents: 2550, StoreID: "s1", CustomerID: "c1", Reference: "r1"})
	resp := decode[dto.AwardResponse](t, w)
	if w.Code != http.StatusOK || resp.Status != dto.AwardCredited || resp.Points != 25 || resp.Balance == nil {
		t.Fatalf("unexpected credited response %d %+v", w.Code, resp)
	}
	if got.AmountCents != 2550 || got.Reference != "r1" {
		t.Fatalf("unexpected purchase %+v", got)
	}

	w = performRequest(t, http.MethodPost, "/awards", "/awards", handler.Award, nil,
		dto.AwardRequest{AmountCents: 1000, StoreID: "s1", TaxID: testhelpers.RandomTaxID()})
	resp = decode[dto.AwardResponse](t, w)
	if w.Code != http.StatusAccepted || resp.Status != dto.AwardPending || resp.PendingCreditID == "" {
		t.Fatalf("unexpected pending response %d %+v", w.Code, resp)
	}

	w = performRequest(t, http.MethodPost, "/awards", "/awards", handler.Award, nil,
		dto.AwardRequest{AmountCents: 1000, StoreID: "s1", TaxID: "bad"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for invalid tax id, got %d", w.Code)
	}

	zero := NewAwardHandler(testhelpers.LoyaltyFacadeStub{})
	w = performRequest(t, http.MethodPost, "/awards", "/awards", zero.Award, nil, dto.AwardRequest{AmountCents: 1, StoreID: "s1", CustomerID: "c1"})
	if resp := decode[dto.AwardResponse](t, w); resp.Status != dto.AwardNone {
		t.Fatalf("expected no-op award, got %+v", resp)
	}
}

func TestAwardHandlerMigrate(t *testing.T) {
	handler := NewAwardHandler(testhelpers.LoyaltyFacadeStub{
		MigrateFn: func(_ context.Context, taxID, customerID string) (*model.MigrationReport, error) {
			return &model.MigrationReport{TaxID: taxID, CustomerID: customerID, Stores: []model.StoreMigration{
				{StoreID: "s1", Success: true, Credits: 2, Points: 30},
				{StoreID: "s2", Success: false, Err: domainErrors.ErrConcurrencyConflict},
			}}, nil
		},
	})
	w := performRequest(t, http.MethodPost, "/m", "/m", handler.Migrate, nil, dto.MigrationRequest{TaxID: "52998224725", CustomerID: "c1"})
	resp := decode[dto.MigrationResponse](t, w)
	if w.Code != http.StatusOK || resp.MigratedPoints != 30 || len(resp.Stores) != 2 {
		t.Fatalf("unexpected migration response %d %+v", w.Code, resp)
	}
	if resp.Stores[1].Success || resp.Stores[1].Error != "concurrency_conflict" {
		t.Fatalf("expected failed store to carry its code, got %+v", resp.Stores[1])
	}

	conflict := NewAwardHandler(testhelpers.LoyaltyFacadeStub{
		MigrateFn: func(context.Context, string, string) (*model.MigrationReport, error) {
			return nil, domainErrors.ErrIdentityConflict
		},
	})
	w = performRequest(t, http.MethodPost, "/m", "/m", conflict.Migrate, nil, dto.MigrationRequest{TaxID: "52998224725", CustomerID: "c2"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestCatalogHandler(t *testing.T) {
	var got model.Reward
	handler := NewCatalogHandler(testhelpers.LoyaltyFacadeStub{
		UpsertRewardFn: func(_ context.Context, r model.Reward) (*model.Reward, error) {
			got = r
			return &r, nil
		},
		RewardsFn: func(_ context.Context, storeID string) ([]model.Reward, error) {
			return []model.Reward{{ID: "coffee", StoreID: storeID, CostPoints: 100, Active: true}}, nil
		},
	})

	w := performRequest(t, http.MethodPut, "/rewards/:id", "/rewards/coffee", handler.Upsert, nil,
		dto.RewardRequest{StoreID: "s1", Title: "Coffee", CostPoints: 100})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got.ID != "coffee" || !got.Active {
		t.Fatalf("expected id from path and active default, got %+v", got)
	}
	if resp := decode[dto.RewardResponse](t, w); resp.RedemptionValidityDays != model.DefaultRedemptionValidityDays {
		t.Fatalf("expected default validity, got %+v", resp)
	}

	inactive := false
	performRequest(t, http.MethodPut, "/rewards/:id", "/rewards/coffee", handler.Upsert, nil,
		dto.RewardRequest{StoreID: "s1", Title: "Coffee", CostPoints: 100, Active: &inactive})
	if got.Active {
		t.Fatal("expected explicit inactive flag to be kept")
	}

	w = performRequest(t, http.MethodGet, "/rewards/:store_id", "/rewards/s1", handler.List, principal(testhelpers.Customer("c1")), nil)
	if list := decode[[]dto.RewardResponse](t, w); len(list) != 1 || list[0].StoreID != "s1" {
		t.Fatalf("unexpected reward list %+v", list)
	}
}

func TestRedemptionHandlerIssue(t *testing.T) {
	handler := NewRedemptionHandler(testhelpers.LoyaltyFacadeStub{
		IssueFn: func(_ context.Context, customerID, storeID, rewardID string) (*model.Issuance, error) {
			if rewardID == "gone" {
				return nil, domainErrors.ErrRewardUnavailable
			}
			if rewardID == "pricey" {
				return nil, domainErrors.ErrInsufficientBalance
			}
			return testhelpers.SampleIssuance(customerID, storeID, rewardID), nil
		},
	})
	customer := principal(testhelpers.Customer("c1"))

	w := performRequest(t, http.MethodPost, "/r", "/r", handler.Issue, customer, dto.IssueRequest{StoreID: "s1", RewardID: "coffee"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	resp := decode[dto.IssuanceResponse](t, w)
	if resp.Redemption.CustomerID != "c1" || resp.Proof.VerificationCode == "" || resp.Proof.QRPayload == "" {
		t.Fatalf("unexpected issuance %+v", resp)
	}

	w = performRequest(t, http.MethodPost, "/r", "/r", handler.Issue, customer, dto.IssueRequest{StoreID: "s1", RewardID: "gone"})
	if w.Code != http.StatusConflict || decode[dto.ErrorResponse](t, w).Error != "reward_unavailable" {
		t.Fatalf("expected 409 reward_unavailable, got %d %s", w.Code, w.Body.String())
	}

	w = performRequest(t, http.MethodPost, "/r", "/r", handler.Issue, customer, dto.IssueRequest{StoreID: "s1", RewardID: "pricey"})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", w.Code)
	}
}

func TestRedemptionHandlerRegenerateAndGet(t *testing.T) {
	id := uuid.New()
	handler := NewRedemptionHandler(testhelpers.LoyaltyFacadeStub{
		RegenerateFn: func(_ context.Context, _ string, got uuid.UUID) (*model.Issuance, error) {
			if got != id {
				return nil, domainErrors.ErrNotFound
			}
			return nil, domainErrors.ErrProofStillValid
		},
		RedemptionFn: func(_ context.Context, customerID string, got uuid.UUID) (*model.Issuance, error) {
			issuance := testhelpers.SampleIssuance(customerID, "s1", "coffee")
			issuance.Redemption.ID = got
			return issuance, nil
		},
	})
	customer := principal(testhelpers.Customer("c1"))

	w := performRequest(t, http.MethodPost, "/r/:id/proof", "/r/"+id.String()+"/proof", handler.Regenerate, customer, nil)
	if w.Code != http.StatusConflict || decode[dto.ErrorResponse](t, w).Error != "proof_still_valid" {
		t.Fatalf("expected 409 proof_still_valid, got %d %s", w.Code, w.Body.String())
	}

	w = performRequest(t, http.MethodPost, "/r/:id/proof", "/r/not-a-uuid/proof", handler.Regenerate, customer, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", w.Code)
	}

	w = performRequest(t, http.MethodGet, "/r/:id", "/r/"+id.String(), handler.Get, customer, nil)
	if w.Code != http.StatusOK || decode[dto.IssuanceResponse](t, w).Redemption.ID != id.String() {
		t.Fatalf("unexpected get response %d %s", w.Code, w.Body.String())
	}
}

func TestRedemptionHandlerList(t *testing.T) {
	var gotStore string
	handler := NewRedemptionHandler(testhelpers.LoyaltyFacadeStub{
		RedemptionsFn: func(_ context.Context, customerID, storeID string) ([]model.Redemption, error) {
			gotStore = storeID
			if storeID == "empty" {
				return nil, nil
			}
			return []model.Redemption{testhelpers.SampleIssuance(customerID, "s1", "coffee").Redemption}, nil
		},
	})
	customer := principal(testhelpers.Customer("c1"))

	w := performRequest(t, http.MethodGet, "/r", "/r?store_id=s1", handler.List, customer, nil)
	if w.Code != http.StatusOK || gotStore != "s1" || len(decode[[]dto.RedemptionResponse](t, w)) != 1 {
		t.Fatalf("unexpected list response %d %s", w.Code, w.Body.String())
	}
	w = performRequest(t, http.MethodGet, "/r", "/r?store_id=empty", handler.List, customer, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestValidationHandlerValidate(t *testing.T) {
	var got usecase.ValidationRequest
	handler := NewValidationHandler(testhelpers.LoyaltyFacadeStub{
		ValidateFn: func(ctx context.Context, req usecase.ValidationRequest) (*model.ValidationResult, error) {
			got = req
			switch req.Code {
			case "USED-CODE":
				return nil, domainErrors.ErrAlreadyUsed
			case "OTHER-STORE":
				return nil, domainErrors.ErrStoreMismatch
			}
			return testhelpers.LoyaltyFacadeStub{}.ValidateRedemption(ctx, req)
		},
	})
	op := principal(testhelpers.Operator("op-1", "s1"))

	w := performRequest(t, http.MethodPost, "/v", "/v", handler.Validate, op, dto.ValidationRequest{Code: "ABCD-EFGH2345", Location: "till 3"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	if got.StoreID != "s1" || got.Metadata.ValidatedBy != "op-1" || got.Metadata.Location != "till 3" {
		t.Fatalf("validation must run as the operator's store, got %+v", got)
	}
	if resp := decode[dto.ValidationResponse](t, w); resp.ValidatedAt.IsZero() || resp.CostPoints != 100 {
		t.Fatalf("unexpected validation response %+v", resp)
	}

	for code, expected := range map[string]string{"USED-CODE": "already_used", "OTHER-STORE": "store_mismatch"} {
		w = performRequest(t, http.MethodPost, "/v", "/v", handler.Validate, op, dto.ValidationRequest{Code: code})
		if w.Code != http.StatusConflict || decode[dto.ErrorResponse](t, w).Error != expected {
			t.Fatalf("%s: expected 409 %s, got %d %s", code, expected, w.Code, w.Body.String())
		}
	}
}

func TestValidationHandlerCancel(t *testing.T) {
	var got usecase.CancelRequest
	handler := NewValidationHandler(testhelpers.LoyaltyFacadeStub{
		CancelFn: func(ctx context.Context, req usecase.CancelRequest) (*model.Redemption, error) {
			got = req
			return testhelpers.LoyaltyFacadeStub{}.CancelRedemption(ctx, req)
		},
	})
	op := principal(testhelpers.Operator("op-1", "s1"))
	id := uuid.New()

	w := performRequest(t, http.MethodPost, "/c/:id", "/c/"+id.String(), handler.Cancel, op, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 without body, got %d %s", w.Code, w.Body.String())
	}
	if got.RedemptionID != id || got.StoreID != "s1" || got.Operator != "op-1" {
		t.Fatalf("unexpected cancel request %+v", got)
	}
	if resp := decode[dto.RedemptionResponse](t, w); resp.Status != string(model.RedemptionCancelled) {
		t.Fatalf("expected cancelled status, got %+v", resp)
	}

	performRequest(t, http.MethodPost, "/c/:id", "/c/"+id.String(), handler.Cancel, op, dto.CancelRequest{Reason: "customer left"})
	if got.Reason != "customer left" {
		t.Fatalf("expected reason to be forwarded, got %q", got.Reason)
	}
}

func TestHealthHandler(t *testing.T) {
	handler := NewHealthHandler(testhelpers.LoyaltyFacadeStub{})
	if w := performRequest(t, http.MethodGet, "/healthz", "/healthz", handler.Healthz, nil, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	down := NewHealthHandler(testhelpers.LoyaltyFacadeStub{HealthFn: func(context.Context) error { return errors.New("db down") }})
	if w := performRequest(t, http.MethodGet, "/healthz", "/healthz", down.Healthz, nil, nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

var _ LoyaltyFacade = testhelpers.LoyaltyFacadeStub{}

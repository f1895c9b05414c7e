package router

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/loyaltyledger/internal/config"
	"github.com/polkiloo/loyaltyledger/internal/metrics"
	pkgAuth "github.com/polkiloo/loyaltyledger/internal/pkg/auth"
	"github.com/polkiloo/loyaltyledger/internal/server/http/dto"
	"github.com/polkiloo/loyaltyledger/internal/server/http/handlers"
	testhelpers "github.com/polkiloo/loyaltyledger/internal/test"
)

func setupEngine(t *testing.T, burst int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return Setup(Params{
		Facade: testhelpers.LoyaltyFacadeStub{TokenParserStub: testhelpers.TokenParserStub{Principals: map[string]pkgAuth.Principal{
			"customer": testhelpers.Customer("c1"),
			"operator": testhelpers.Operator("op-1", "s1"),
			"service":  testhelpers.Service("intake"),
		}}},
		Logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Metrics: metrics.New(),
		Config:  &config.Config{ValidationRatePerMinute: 60, ValidationRateBurst: burst},
	})
}

func call(engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	return resp
}

func TestSetupPublicRoutes(t *testing.T) {
	engine := setupEngine(t, 10)

	if resp := call(engine, http.MethodGet, "/healthz", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for healthz, got %d", resp.Code)
	}
	call(engine, http.MethodGet, "/api/balances/s1", "customer", nil)

	resp := call(engine, http.MethodGet, "/metrics", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `loyalty_http_requests_total{method="GET",route="/api/balances/:store_id",status="200"} 1`) {
		t.Fatalf("expected request counter by route template, got %s", resp.Body.String())
	}
}

func TestSetupRoleRouting(t *testing.T) {
	engine := setupEngine(t, 10)
	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
	}{
		{"anonymous balance", http.MethodGet, "/api/balances/s1", "", nil, http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/balances/s1", "forged", nil, http.StatusUnauthorized},
		{"customer balance", http.MethodGet, "/api/balances/s1", "customer", nil, http.StatusOK},
		{"operator balance", http.MethodGet, "/api/balances/s1", "operator", nil, http.StatusForbidden},
		{"customer history", http.MethodGet, "/api/balances/s1/transactions", "customer", nil, http.StatusOK},
		{"customer issues", http.MethodPost, "/api/redemptions", "customer", dto.IssueRequest{StoreID: "s1", RewardID: "coffee"}, http.StatusCreated},
		{"customer lists", http.MethodGet, "/api/redemptions", "customer", nil, http.StatusNoContent},
		{"rewards for any role", http.MethodGet, "/api/rewards/s1", "operator", nil, http.StatusOK},
		{"customer validates", http.MethodPost, "/api/store/validations", "customer", dto.ValidationRequest{Code: "ABCD-EFGH2345"}, http.StatusForbidden},
		{"operator validates", http.MethodPost, "/api/store/validations", "operator", dto.ValidationRequest{Code: "ABCD-EFGH2345"}, http.StatusOK},
		{"operator adjusts", http.MethodPost, "/api/store/adjustments", "operator", dto.AdjustmentRequest{CustomerID: "c1", Delta: 5, Reason: "goodwill"}, http.StatusOK},
		{"operator awards", http.MethodPost, "/api/internal/awards", "operator", dto.AwardRequest{AmountCents: 100, StoreID: "s1", CustomerID: "c1"}, http.StatusForbidden},
		{"service awards", http.MethodPost, "/api/internal/awards", "service", dto.AwardRequest{AmountCents: 100, StoreID: "s1", CustomerID: "c1"}, http.StatusOK},
		{"service migrates", http.MethodPost, "/api/internal/migrations", "service", dto.MigrationRequest{TaxID: "52998224725", CustomerID: "c1"}, http.StatusOK},
		{"service upserts reward", http.MethodPut, "/api/internal/rewards/coffee", "service", dto.RewardRequest{StoreID: "s1", Title: "Coffee", CostPoints: 100}, http.StatusOK},
		{"service reconciles", http.MethodGet, "/api/internal/reconcile?customer_id=c1&store_id=s1", "service", nil, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if resp := call(engine, tc.method, tc.path, tc.token, tc.body); resp.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestSetupValidationRateLimit(t *testing.T) {
	engine := setupEngine(t, 1)
	body := dto.ValidationRequest{Code: "ABCD-EFGH2345"}

	if resp := call(engine, http.MethodPost, "/api/store/validations", "operator", body); resp.Code != http.StatusOK {
		t.Fatalf("expected first validation to pass, got %d", resp.Code)
	}
	if resp := call(engine, http.MethodPost, "/api/store/validations", "operator", body); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the burst is spent, got %d", resp.Code)
	}
	if resp := call(engine, http.MethodPost, "/api/store/adjustments", "operator", dto.AdjustmentRequest{CustomerID: "c1", Delta: 1}); resp.Code != http.StatusOK {
		t.Fatalf("expected adjustments to stay unthrottled, got %d", resp.Code)
	}
}

var _ handlers.LoyaltyFacade = testhelpers.LoyaltyFacadeStub{}

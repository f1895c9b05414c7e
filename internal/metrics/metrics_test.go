package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
)

func TestOperationOutcomes(t *testing.T) {
	m := New()
	m.Operation("validate", nil)
	m.Operation("validate", domainErrors.ErrAlreadyUsed)
	m.Operation("validate", domainErrors.ErrAlreadyUsed)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("validate", "ok")); got != 1 {
		t.Fatalf("unexpected ok count: %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("validate", "already_used")); got != 2 {
		t.Fatalf("unexpected already_used count: %v", got)
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.Points("award", 120)
	m.Points("award", 0)
	m.Retry("issue")
	m.Notification("dropped")
	m.Expired(3)
	m.Expired(0)
	m.ObserveRequest("/healthz", http.MethodGet, http.StatusOK, 10*time.Millisecond)

	if got := testutil.ToFloat64(m.points.WithLabelValues("award")); got != 120 {
		t.Fatalf("unexpected points: %v", got)
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues("issue")); got != 1 {
		t.Fatalf("unexpected retries: %v", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("dropped")); got != 1 {
		t.Fatalf("unexpected drops: %v", got)
	}
	if got := testutil.ToFloat64(m.expired); got != 3 {
		t.Fatalf("unexpected expired: %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("/healthz", http.MethodGet, "200")); got != 1 {
		t.Fatalf("unexpected requests: %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Operation("x", nil)
	m.Points("award", 1)
	m.Retry("x")
	m.Notification("sent")
	m.Expired(1)
	m.ObserveRequest("/", http.MethodGet, 200, time.Second)
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.Retry("validate")
	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "loyalty_conflict_retries_total") {
		t.Fatalf("metrics output missing counter: %s", body)
	}
	if m.Registry() == nil {
		t.Fatal("expected registry")
	}
}

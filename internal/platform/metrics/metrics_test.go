package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCountsRequests(t *testing.T) {
	c := New()
	c.Record(http.StatusOK, 10*time.Millisecond)
	c.Record(http.StatusOK, 20*time.Millisecond)
	c.Record(http.StatusTooManyRequests, time.Millisecond)

	if got := testutil.ToFloat64(c.requests.WithLabelValues("200")); got != 2 {
		t.Fatalf("expected 2 ok requests, got %v", got)
	}
	if got := testutil.ToFloat64(c.rateLimited); got != 1 {
		t.Fatalf("expected 1 rate limited request, got %v", got)
	}
}

func TestRecordConversion(t *testing.T) {
	c := New()
	c.RecordConversion("review", 2, map[string]int{"blank_name": 3}, 472)
	c.RecordConversion("completed", 0, nil, 100)

	if got := testutil.ToFloat64(c.conversions.WithLabelValues("review")); got != 1 {
		t.Fatalf("expected 1 review conversion, got %v", got)
	}
	if got := testutil.ToFloat64(c.unmatched); got != 2 {
		t.Fatalf("expected 2 unmatched, got %v", got)
	}
	if got := testutil.ToFloat64(c.droppedRows.WithLabelValues("blank_name")); got != 3 {
		t.Fatalf("expected 3 dropped rows, got %v", got)
	}
	if got := testutil.ToFloat64(c.grandTotal); got != 572 {
		t.Fatalf("expected grand total 572, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.Record(http.StatusInternalServerError, time.Millisecond)
	c.RecordHistoryDrop()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{"sierrawbs_http_requests_total", "sierrawbs_run_history_dropped_total"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("expected %s in exposition", name)
		}
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RecordHistoryDrop()
	if got := testutil.ToFloat64(b.historyDrops); got != 0 {
		t.Fatalf("expected separate registries, got %v", got)
	}
}

package shared

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidatorCollectsIssues(t *testing.T) {
	v := NewValidator()
	v.Required("file", " ", "is required")
	v.Enum("format", "pdf", []string{"xlsx", "json"}, "must be xlsx or json")
	v.Enum("format", "", []string{"xlsx"}, "ignored when empty")
	if _, ok := v.Date("period_end", "01/04/2026"); ok {
		t.Fatal("expected non ISO date to fail")
	}
	issues := v.Issues()
	if len(issues) != 3 || issues[0].Field != "file" || issues[1].Field != "format" {
		t.Fatalf("unexpected issues: %+v", issues)
	}

	rec := httptest.NewRecorder()
	if !v.Reject(rec, "req-1") || rec.Code != http.StatusBadRequest {
		t.Fatalf("expected rejection, got %d", rec.Code)
	}
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/runs?limit=500&offset=20", nil)
	p := ParsePagination(req, 25, 100)
	if p.Limit != 100 || p.Offset != 20 {
		t.Fatalf("unexpected pagination: %+v", p)
	}
	p = ParsePagination(httptest.NewRequest(http.MethodGet, "/runs?limit=-1&offset=x", nil), 25, 100)
	if p.Limit != 25 || p.Offset != 0 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}

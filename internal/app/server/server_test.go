package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sierrawbs/internal/domain/auth"
	"sierrawbs/internal/domain/payroll"
	"sierrawbs/internal/platform/config"
)

func testConfig(t *testing.T, roster string) config.Config {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("roster.csv", roster)
	write("name_overrides.yaml", "overrides:\n  \"Carrasco, J\": \"Mateos, Daniel\"\n")
	write("overtime_policies.yaml", "default: california_daily\n")

	cfg := config.Defaults()
	cfg.DataDir = dir
	cfg.RosterPath = filepath.Join(dir, "roster.csv")
	cfg.RosterOrderPath = filepath.Join(dir, "roster_order.txt")
	cfg.NameOverridesPath = filepath.Join(dir, "name_overrides.yaml")
	cfg.OvertimePolicyPath = filepath.Join(dir, "overtime_policies.yaml")
	cfg.ColumnAliasesPath = filepath.Join(dir, "column_aliases.yaml")
	return cfg
}

const testRoster = "Employee Name,Employee Number,SSN\n\"Doe, Jane\",100,123-45-6789\n\"Mateos, Daniel\",101,\n"

func TestNewServesProbesAndMetrics(t *testing.T) {
	app, err := New(context.Background(), testConfig(t, testRoster))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()

	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("%s: unexpected response %d %q", path, rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Request-ID") == "" || rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s: expected middleware headers, got %v", path, rec.Header())
		}
	}

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"rosterCount":2`) {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "sierrawbs_http_requests_total") {
		t.Fatalf("expected request metrics, got %d", rec.Code)
	}
}

func TestNewRejectsBadTables(t *testing.T) {
	_, err := New(context.Background(), testConfig(t, "Employee Name\n\"Doe, Jane\"\nJane Doe\n"))
	if !errors.Is(err, payroll.ErrRoster) {
		t.Fatalf("expected duplicate roster error, got %v", err)
	}

	cfg := testConfig(t, testRoster)
	cfg.OvertimePolicy = "nonexistent"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected unknown policy to fail")
	}

	cfg = testConfig(t, testRoster)
	cfg.RatePolicy = "median"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected unknown rate policy to fail")
	}
}

func TestProcessPayrollRequiresTokenWhenSecretSet(t *testing.T) {
	cfg := testConfig(t, testRoster)
	cfg.JWTSecret = "test-secret"
	app, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()

	newUpload := func() *http.Request {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		_ = mw.WriteField("format", "json")
		part, _ := mw.CreateFormFile("file", "week.csv")
		_, _ = io.WriteString(part, "Employee Name,Hours,Pay Rate\nJane Doe,6,20\nJ Carrasco,4,28\n")
		_ = mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/process-payroll", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req
	}

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, newUpload())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token, err := auth.GenerateToken(cfg.JWTSecret, "ops@sierra", auth.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	req := newUpload()
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"requiresReview":false`) {
		t.Fatalf("expected clean conversion, got %s", rec.Body.String())
	}
}

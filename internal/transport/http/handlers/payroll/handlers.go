package payrollhandler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/netip"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sierrawbs/internal/domain/auth"
	"sierrawbs/internal/domain/payroll"
	"sierrawbs/internal/platform/spreadsheet"
	"sierrawbs/internal/requestctx"
	"sierrawbs/internal/transport/http/api"
	"sierrawbs/internal/transport/http/middleware"
	"sierrawbs/internal/transport/http/shared"
)

const (
	maxMultipartMemory = 8 << 20
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ConversionMetrics observes every conversion attempt.
type ConversionMetrics interface {
	RecordConversion(outcome string, unmatched int, dropped map[string]int, grandTotal float64)
}

type Options struct {
	Version string
	Read    spreadsheet.Options
	// Client fills the WBS header block of generated workbooks.
	Client spreadsheet.WBSHeader
	// RequireAuth enforces role checks; it is off when no token secret is set.
	RequireAuth     bool
	UploadRateLimit int
	// TrustedProxies are peers whose X-Forwarded-For keys the upload limiter.
	TrustedProxies  []netip.Prefix
	Timeout         time.Duration
}

type Handler struct {
	Service *payroll.Service
	Runs    payroll.RunStore
	Metrics ConversionMetrics
	opts    Options
	now     func() time.Time
}

func NewHandler(service *payroll.Service, runs payroll.RunStore, metrics ConversionMetrics, opts Options) *Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	return &Handler{Service: service, Runs: runs, Metrics: metrics, opts: opts, now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.With(h.roles(auth.RoleAdmin, auth.RoleViewer)).Get("/roster", h.handleRoster)
	r.With(h.roles(auth.RoleAdmin)).Get("/runs", h.handleListRuns)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(h.opts.UploadRateLimit, time.Minute, middleware.WithTrustedProxies(h.opts.TrustedProxies)))
		r.With(h.roles(auth.RoleAdmin, auth.RoleViewer)).Post("/validate-file", h.handleValidateFile)
		r.With(h.roles(auth.RoleAdmin)).Post("/process-payroll", h.handleProcessPayroll)
		r.With(h.roles(auth.RoleAdmin)).Post("/process-payroll/review.pdf", h.handleReviewPDF)
	})
}

func (h *Handler) roles(roles ...string) func(http.Handler) http.Handler {
	if !h.opts.RequireAuth {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RequireRole(roles...)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.Success(w, map[string]any{
		"status":         "ok",
		"version":        h.opts.Version,
		"rosterCount":    len(h.Service.Roster()),
		"overtimePolicy": h.Service.PolicyName(),
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRoster(w http.ResponseWriter, r *http.Request) {
	roster := h.Service.Roster()
	for i := range roster {
		roster[i].TaxID = MaskTaxID(roster[i].TaxID)
	}
	api.Success(w, roster, middleware.GetRequestID(r.Context()))
}

// MaskTaxID keeps only the last four digits of a tax id.
func MaskTaxID(taxID string) string {
	digits := make([]rune, 0, len(taxID))
	for _, c := range taxID {
		if c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}
	if len(digits) == 0 {
		return ""
	}
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return "***-**-" + string(digits[len(digits)-4:])
}

func (h *Handler) handleValidateFile(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	summary, err := h.Service.Inspect(up.table)
	if err != nil {
		h.failConversion(w, err, requestID)
		return
	}
	api.Success(w, summary, requestID)
}

func (h *Handler) handleProcessPayroll(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	up, ok := h.readUpload(w, r, func(r *http.Request, v *shared.Validator) {
		v.Enum("format", r.FormValue("format"), []string{"xlsx", "json"}, "must be xlsx or json")
	})
	if !ok {
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.FormValue("format")))
	result, ok := h.convert(w, r, up)
	if !ok {
		return
	}

	if format == "json" {
		api.Success(w, result, requestID)
		return
	}

	var buf bytes.Buffer
	if err := spreadsheet.WriteWBS(&buf, result.Records, up.header); err != nil {
		slog.Error("write wbs workbook failed", "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to write WBS workbook", requestID)
		return
	}
	report := result.Report
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName(up.filename, ".xlsx")))
	w.Header().Set("X-Requires-Review", strconv.FormatBool(report.RequiresReview))
	w.Header().Set("X-Unmatched-Count", strconv.Itoa(report.UnmatchedCount))
	w.Header().Set("X-Grand-Total", strconv.FormatFloat(payroll.RoundCents(report.GrandTotal), 'f', 2, 64))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("write wbs response failed", "requestId", requestID, "err", err)
	}
}

func (h *Handler) handleReviewPDF(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	result, ok := h.convert(w, r, up)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.Service.RenderReviewPDF(&buf, result, up.filename); err != nil {
		slog.Error("render review pdf failed", "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to render review", requestID)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName(up.filename, "-review.pdf")))
	w.Header().Set("X-Requires-Review", strconv.FormatBool(result.Report.RequiresReview))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("write review response failed", "requestId", requestID, "err", err)
	}
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	if h.Runs == nil {
		api.Fail(w, http.StatusServiceUnavailable, "history_unavailable", "run history requires a database", requestID)
		return
	}
	page := shared.ParsePagination(r, 25, 100)
	total, err := h.Runs.CountRuns(r.Context())
	if err != nil {
		slog.Error("count runs failed", "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "history_failed", "failed to load run history", requestID)
		return
	}
	runs, err := h.Runs.ListRuns(r.Context(), page.Limit, page.Offset)
	if err != nil {
		slog.Error("list runs failed", "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "history_failed", "failed to load run history", requestID)
		return
	}
	if runs == nil {
		runs = []payroll.Run{}
	}
	api.Success(w, map[string]any{
		"runs":   runs,
		"total":  total,
		"limit":  page.Limit,
		"offset": page.Offset,
	}, requestID)
}

type upload struct {
	filename string
	table    payroll.Table
	header   spreadsheet.WBSHeader
}

type formCheck func(r *http.Request, v *shared.Validator)

// readUpload decodes the multipart file and the optional period dates.
// It writes the error response itself and reports whether to continue.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request, checks ...formCheck) (upload, bool) {
	requestID := middleware.GetRequestID(r.Context())
	v := shared.NewValidator()
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "upload exceeds the size limit", requestID)
			return upload{}, false
		}
		v.Add("file", "multipart form upload is required")
		v.Reject(w, requestID)
		return upload{}, false
	}

	header := h.opts.Client
	now := h.now()
	header.RunTime = now
	header.ReportDue = now
	header.PeriodEnd = now
	if raw := strings.TrimSpace(r.FormValue("period_end")); raw != "" {
		if t, ok := v.Date("period_end", raw); ok {
			header.PeriodEnd = t
		}
	}
	header.CheckDate = header.PeriodEnd
	if raw := strings.TrimSpace(r.FormValue("check_date")); raw != "" {
		if t, ok := v.Date("check_date", raw); ok {
			header.CheckDate = t
		}
	}
	v.DateOrder("period_end", header.PeriodEnd, "check_date", header.CheckDate)
	for _, check := range checks {
		check(r, v)
	}

	file, fh, err := r.FormFile("file")
	if err != nil {
		v.Add("file", "is required")
		v.Reject(w, requestID)
		return upload{}, false
	}
	defer file.Close()
	if v.Reject(w, requestID) {
		return upload{}, false
	}

	table, err := readTable(file, fh, h.opts.Read)
	if err != nil {
		h.observe("unreadable", nil)
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "parse_error", err.Error(),
			map[string]any{"filename": fh.Filename}, requestID)
		return upload{}, false
	}
	return upload{filename: fh.Filename, table: table, header: header}, true
}

func readTable(file multipart.File, fh *multipart.FileHeader, opts spreadsheet.Options) (payroll.Table, error) {
	if !spreadsheet.SupportedExtension(fh.Filename) {
		return payroll.Table{}, fmt.Errorf("%w: %s", spreadsheet.ErrUnsupportedFormat, filepath.Ext(fh.Filename))
	}
	return spreadsheet.ReadTable(file, fh.Filename, opts)
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request, up upload) (*payroll.ConversionResult, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.Timeout)
	defer cancel()

	meta := payroll.RunMeta{
		RequestID: middleware.GetRequestID(ctx),
		Actor:     requestctx.GetActor(ctx),
		Source:    up.filename,
	}
	result, err := h.Service.Convert(ctx, up.table, meta)
	if err != nil {
		h.failConversion(w, err, meta.RequestID)
		return nil, false
	}
	outcome := payroll.RunStatusCompleted
	if result.Report.RequiresReview {
		outcome = "review"
	}
	if h.Metrics != nil {
		h.Metrics.RecordConversion(outcome, result.Report.UnmatchedCount, result.Report.DroppedRows, payroll.RoundCents(result.Report.GrandTotal))
	}
	return result, true
}

func (h *Handler) failConversion(w http.ResponseWriter, err error, requestID string) {
	var parseErr *payroll.ParseError
	switch {
	case errors.As(err, &parseErr):
		h.observe("parse_error", nil)
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "parse_error", err.Error(),
			map[string]any{"role": parseErr.Role}, requestID)
	case errors.Is(err, payroll.ErrPolicy):
		h.observe("policy_error", err)
		api.Fail(w, http.StatusInternalServerError, "policy_error", "overtime policy is misconfigured", requestID)
	case errors.Is(err, payroll.ErrConsolidation):
		h.observe("consolidation_error", err)
		api.Fail(w, http.StatusInternalServerError, "consolidation_error", "failed to consolidate timesheet", requestID)
	case errors.Is(err, payroll.ErrRoster):
		h.observe("roster_error", err)
		api.Fail(w, http.StatusInternalServerError, "roster_error", "roster is misconfigured", requestID)
	default:
		h.observe("failed", err)
		api.Fail(w, http.StatusInternalServerError, "conversion_failed", "conversion failed", requestID)
	}
}

func (h *Handler) observe(outcome string, err error) {
	if err != nil {
		slog.Error("conversion failed", "outcome", outcome, "err", err)
	}
	if h.Metrics != nil {
		h.Metrics.RecordConversion(outcome, 0, nil, 0)
	}
}

func outputName(source, suffix string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if base == "" || base == "." {
		base = "payroll"
	}
	return "WBS_" + base + suffix
}

package payroll

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
)

type Service struct {
	opts     ConvertOptions
	recorder RunRecorder
	now      func() time.Time
}

func NewService(opts ConvertOptions, recorder RunRecorder) *Service {
	return &Service{opts: opts, recorder: recorder, now: time.Now}
}

func (s *Service) Roster() []RosterEntry {
	out := make([]RosterEntry, len(s.opts.Roster))
	copy(out, s.opts.Roster)
	return out
}

func (s *Service) PolicyName() string {
	return s.opts.Policies.Default.Name
}

func (s *Service) Inspect(table Table) (*FileSummary, error) {
	return Inspect(table, s.opts.Aliases, s.opts.Overrides)
}

// Convert runs the pipeline and hands a run summary to the recorder. Recording
// failures are logged, never returned.
func (s *Service) Convert(ctx context.Context, table Table, meta RunMeta) (*ConversionResult, error) {
	result, err := Convert(table, s.opts)
	run := Run{
		ID:          uuid.NewString(),
		RequestID:   meta.RequestID,
		Actor:       meta.Actor,
		Source:      meta.Source,
		RosterCount: len(s.opts.Roster),
		CreatedAt:   s.now().UTC(),
	}
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = RunStatusCompleted
		run.applyReport(result)
	}
	if s.recorder != nil {
		if recErr := s.recorder.RecordRun(ctx, run); recErr != nil {
			slog.Warn("record conversion run failed", "runId", run.ID, "err", recErr)
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RenderReviewPDF writes a one-page reconciliation summary listing every
// unmatched entry that needs manual review before payroll is finalized.
func (s *Service) RenderReviewPDF(w io.Writer, result *ConversionResult, source string) error {
	report := result.Report
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payroll Reconciliation Review")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	line := func(format string, args ...any) {
		pdf.Cell(0, 7, fmt.Sprintf(format, args...))
		pdf.Ln(6)
	}
	line("Source: %s", source)
	line("Generated: %s", s.now().UTC().Format("2006-01-02 15:04 MST"))
	line("Overtime policy: %s   Rate policy: %s", report.PolicyName, report.RatePolicy)
	pdf.Ln(4)
	line("Roster records: %d (matched %d, salaried %d, no activity %d)",
		len(result.Records), report.MatchedCount, report.SalariedCount, report.ZeroCount)
	line("Timesheet entries: %d   Distinct names: %d   Hours: %.2f", report.TotalEntries, report.DistinctNames, report.TotalHours)
	line("Grand total: %.2f", RoundCents(report.GrandTotal))
	for reason, count := range sortedCounts(report.DroppedRows) {
		line("Dropped rows (%s): %d", reason, count)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	if !report.RequiresReview {
		pdf.Cell(0, 8, "No unmatched timesheet entries.")
		pdf.Ln(8)
		return pdf.Output(w)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Unmatched entries requiring review: %d (%.2f hours, %.2f)",
		report.UnmatchedCount, report.UnmatchedHours, RoundCents(report.UnmatchedAmount)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(70, 7, "Canonical name", "1", 0, "", false, 0, "")
	pdf.CellFormat(25, 7, "Hours", "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "Rate", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, "Amount", "1", 0, "R", false, 0, "")
	pdf.CellFormat(20, 7, "Rows", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, u := range result.Unmatched {
		pdf.CellFormat(70, 7, string(u.CanonicalName), "1", 0, "", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", u.TotalHours), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", u.Rate), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", RoundCents(u.Breakdown.TotalAmount)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", u.EntryCount), "1", 1, "R", false, 0, "")
	}
	return pdf.Output(w)
}

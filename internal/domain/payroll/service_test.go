package payroll

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

type recorderStub struct {
	runs []Run
	err  error
}

func (r *recorderStub) RecordRun(_ context.Context, run Run) error {
	r.runs = append(r.runs, run)
	return r.err
}

func TestServiceConvertRecordsRun(t *testing.T) {
	rec := &recorderStub{}
	svc := NewService(sampleOptions(), rec)
	svc.now = func() time.Time { return time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC) }

	result, err := svc.Convert(context.Background(), sampleTable(), RunMeta{RequestID: "req-1", Actor: "ops", Source: "sierra.xlsx"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(rec.runs))
	}
	run := rec.runs[0]
	if run.Status != RunStatusCompleted || run.RequestID != "req-1" || run.Source != "sierra.xlsx" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.UnmatchedCount != 1 || run.UnmatchedNames[0] != "Nobody, Q" || !run.RequiresReview {
		t.Fatalf("unexpected unmatched summary: %+v", run)
	}
	if run.GrandTotal != RoundCents(result.Report.GrandTotal) || run.RosterCount != 3 {
		t.Fatalf("unexpected totals: %+v", run)
	}
	if run.ID == "" || !run.CreatedAt.Equal(svc.now()) {
		t.Fatalf("expected id and timestamp, got %+v", run)
	}
}

func TestServiceConvertRecordsFailure(t *testing.T) {
	rec := &recorderStub{err: errors.New("db down")}
	svc := NewService(sampleOptions(), rec)

	_, err := svc.Convert(context.Background(), Table{Header: []string{"Hours"}}, RunMeta{})
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if len(rec.runs) != 1 || rec.runs[0].Status != RunStatusFailed || rec.runs[0].Error == "" {
		t.Fatalf("expected failed run to be recorded, got %+v", rec.runs)
	}
}

func TestServiceRosterReturnsCopy(t *testing.T) {
	svc := NewService(sampleOptions(), nil)
	roster := svc.Roster()
	roster[0].CanonicalName = "Changed"
	if svc.Roster()[0].CanonicalName != "Doe, Jane" {
		t.Fatalf("expected roster to be copied")
	}
}

func TestRenderReviewPDF(t *testing.T) {
	svc := NewService(sampleOptions(), nil)
	result, err := svc.Convert(context.Background(), sampleTable(), RunMeta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var buf bytes.Buffer
	if err := svc.RenderReviewPDF(&buf, result, "sierra.xlsx"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected PDF output")
	}
}

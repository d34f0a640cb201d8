package payroll

import (
	"context"
	"iter"
	"maps"
	"slices"
	"time"
)

const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunMeta identifies the caller and input of one conversion.
type RunMeta struct {
	RequestID string
	Actor     string
	Source    string
}

// Run is the persisted summary of one conversion.
type Run struct {
	ID              string         `json:"id"`
	RequestID       string         `json:"requestId"`
	Actor           string         `json:"actor"`
	Source          string         `json:"source"`
	Status          string         `json:"status"`
	RosterCount     int            `json:"rosterCount"`
	MatchedCount    int            `json:"matchedCount"`
	ZeroCount       int            `json:"zeroCount"`
	SalariedCount   int            `json:"salariedCount"`
	UnmatchedCount  int            `json:"unmatchedCount"`
	DroppedRows     map[string]int `json:"droppedRows"`
	GrandTotal      float64        `json:"grandTotal"`
	UnmatchedAmount float64        `json:"unmatchedAmount"`
	UnmatchedNames  []string       `json:"unmatchedNames"`
	RequiresReview  bool           `json:"requiresReview"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

type RunRecorder interface {
	RecordRun(ctx context.Context, run Run) error
}

type RunStore interface {
	RunRecorder
	CountRuns(ctx context.Context) (int, error)
	ListRuns(ctx context.Context, limit, offset int) ([]Run, error)
}

func (r *Run) applyReport(result *ConversionResult) {
	report := result.Report
	r.MatchedCount = report.MatchedCount
	r.ZeroCount = report.ZeroCount
	r.SalariedCount = report.SalariedCount
	r.UnmatchedCount = report.UnmatchedCount
	r.DroppedRows = report.DroppedRows
	r.GrandTotal = RoundCents(report.GrandTotal)
	r.UnmatchedAmount = RoundCents(report.UnmatchedAmount)
	r.RequiresReview = report.RequiresReview
	for _, u := range result.Unmatched {
		r.UnmatchedNames = append(r.UnmatchedNames, string(u.CanonicalName))
	}
}

func sortedCounts(counts map[string]int) iter.Seq2[string, int] {
	return func(yield func(string, int) bool) {
		for _, k := range slices.Sorted(maps.Keys(counts)) {
			if !yield(k, counts[k]) {
				return
			}
		}
	}
}

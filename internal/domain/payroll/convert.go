package payroll

import (
	"fmt"
	"slices"
)

type ConvertOptions struct {
	Aliases    ColumnAliases
	Overrides  NameOverrides
	Roster     []RosterEntry
	Policies   PolicySet
	RatePolicy RatePolicy
}

// Convert runs the full pipeline over one timesheet. Hard failures (missing
// columns, bad policies, bad roster) abort; everything else lands in Report.
func Convert(table Table, opts ConvertOptions) (*ConversionResult, error) {
	if err := opts.Policies.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateRoster(opts.Roster); err != nil {
		return nil, err
	}

	parsed, err := NewParser(opts.Aliases).Parse(table)
	if err != nil {
		return nil, fmt.Errorf("parse timesheet: %w", err)
	}

	consolidation, err := Consolidate(slices.Values(parsed.Entries), opts.Overrides, opts.RatePolicy)
	if err != nil {
		return nil, fmt.Errorf("consolidate entries: %w", err)
	}

	rec, err := Reconcile(opts.Roster, consolidation.Employees, opts.Policies)
	if err != nil {
		return nil, fmt.Errorf("reconcile roster: %w", err)
	}

	report := Report{
		TotalEntries:  len(parsed.Entries),
		DistinctNames: len(consolidation.Employees),
		DroppedRows:   parsed.DroppedCount,
		SkippedNames:  consolidation.Skipped,
		GrandTotal:    rec.GrandTotal,
		PolicyName:    opts.Policies.Default.Name,
		RatePolicy:    opts.RatePolicy,
	}
	if report.RatePolicy == "" {
		report.RatePolicy = RateMode
	}
	for _, e := range parsed.Entries {
		report.TotalHours += e.Hours
	}
	for _, r := range rec.Records {
		switch r.MatchStatus {
		case StatusMatched:
			report.MatchedCount++
		case StatusSalaried:
			report.SalariedCount++
		default:
			report.ZeroCount++
		}
	}
	for _, u := range rec.Unmatched {
		report.UnmatchedCount++
		report.UnmatchedHours += u.TotalHours
		report.UnmatchedAmount += u.Breakdown.TotalAmount
	}
	report.RequiresReview = report.UnmatchedCount > 0

	return &ConversionResult{
		Records:   rec.Records,
		Unmatched: rec.Unmatched,
		Report:    report,
	}, nil
}

// FileSummary describes a timesheet without reconciling it.
type FileSummary struct {
	Valid         bool           `json:"valid"`
	Employees     int            `json:"employees"`
	TotalHours    float64        `json:"totalHours"`
	TotalEntries  int            `json:"totalEntries"`
	DroppedRows   map[string]int `json:"droppedRows"`
	Columns       ColumnIndex    `json:"columns"`
	CanonicalKeys []string       `json:"canonicalNames"`
}

func Inspect(table Table, aliases ColumnAliases, overrides NameOverrides) (*FileSummary, error) {
	parsed, err := NewParser(aliases).Parse(table)
	if err != nil {
		return nil, err
	}
	consolidation, err := Consolidate(slices.Values(parsed.Entries), overrides, RateMode)
	if err != nil {
		return nil, err
	}
	summary := &FileSummary{
		Valid:        len(parsed.Entries) > 0,
		Employees:    len(consolidation.Employees),
		TotalEntries: len(parsed.Entries),
		DroppedRows:  parsed.DroppedCount,
		Columns:      parsed.Columns,
	}
	for _, e := range parsed.Entries {
		summary.TotalHours += e.Hours
	}
	for _, name := range consolidation.Order {
		summary.CanonicalKeys = append(summary.CanonicalKeys, string(name))
	}
	return summary, nil
}

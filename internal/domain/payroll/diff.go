package payroll

import (
	"math"
	"slices"
	"strconv"
)

type FieldDiff struct {
	Name  CanonicalName `json:"name"`
	Field string        `json:"field"`
	Got   string        `json:"got"`
	Want  string        `json:"want"`
}

type DiffReport struct {
	Missing      []CanonicalName `json:"missing"`
	Extra        []CanonicalName `json:"extra"`
	Duplicates   []CanonicalName `json:"duplicates"`
	OrderChanged bool            `json:"orderChanged"`
	Fields       []FieldDiff     `json:"fields"`
	GotTotal     float64         `json:"gotTotal"`
	WantTotal    float64         `json:"wantTotal"`
}

func (d DiffReport) Empty() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0 && len(d.Duplicates) == 0 && !d.OrderChanged && len(d.Fields) == 0
}

// DiffRecords compares two ordered record sequences keyed by canonical name.
// Numeric fields are equal when they differ by at most tolerance. MatchStatus
// is only compared when both sides carry one. A name listed more than once on
// either side is reported in Duplicates and only its first record is compared.
func DiffRecords(got, want []OutputRecord, tolerance float64) DiffReport {
	var report DiffReport
	gotByName, gotOrder := indexRecords(got, &report)
	wantByName, wantOrder := indexRecords(want, &report)
	for _, r := range got {
		report.GotTotal += r.Breakdown.TotalAmount
	}
	for _, r := range want {
		report.WantTotal += r.Breakdown.TotalAmount
	}

	var gotShared, wantShared []CanonicalName
	for _, name := range wantOrder {
		g, ok := gotByName[name]
		if !ok {
			report.Missing = append(report.Missing, name)
			continue
		}
		wantShared = append(wantShared, name)
		report.Fields = append(report.Fields, compareRecord(g, wantByName[name], tolerance)...)
	}
	for _, name := range gotOrder {
		if _, ok := wantByName[name]; !ok {
			report.Extra = append(report.Extra, name)
			continue
		}
		gotShared = append(gotShared, name)
	}
	for i := range min(len(gotShared), len(wantShared)) {
		if gotShared[i] != wantShared[i] {
			report.OrderChanged = true
			break
		}
	}
	return report
}

// indexRecords keeps the first record per name and records repeats once.
func indexRecords(records []OutputRecord, report *DiffReport) (map[CanonicalName]OutputRecord, []CanonicalName) {
	byName := make(map[CanonicalName]OutputRecord, len(records))
	order := make([]CanonicalName, 0, len(records))
	for _, r := range records {
		if _, seen := byName[r.CanonicalName]; seen {
			if !slices.Contains(report.Duplicates, r.CanonicalName) {
				report.Duplicates = append(report.Duplicates, r.CanonicalName)
			}
			continue
		}
		byName[r.CanonicalName] = r
		order = append(order, r.CanonicalName)
	}
	return byName, order
}

func compareRecord(got, want OutputRecord, tolerance float64) []FieldDiff {
	var diffs []FieldDiff
	text := func(field, g, w string) {
		if g != w {
			diffs = append(diffs, FieldDiff{Name: want.CanonicalName, Field: field, Got: g, Want: w})
		}
	}
	num := func(field string, g, w float64) {
		if math.Abs(g-w) > tolerance {
			diffs = append(diffs, FieldDiff{Name: want.CanonicalName, Field: field, Got: formatAmount(g), Want: formatAmount(w)})
		}
	}

	text("employeeNumber", got.EmployeeNumber, want.EmployeeNumber)
	text("taxId", got.TaxID, want.TaxID)
	text("status", got.Status, want.Status)
	text("employmentType", got.EmploymentType, want.EmploymentType)
	text("department", got.Department, want.Department)
	num("rate", got.Rate, want.Rate)
	num("regularHours", got.Breakdown.RegularHours, want.Breakdown.RegularHours)
	num("tier1Hours", got.Breakdown.Tier1Hours, want.Breakdown.Tier1Hours)
	num("tier2Hours", got.Breakdown.Tier2Hours, want.Breakdown.Tier2Hours)
	num("totalAmount", got.Breakdown.TotalAmount, want.Breakdown.TotalAmount)
	if got.MatchStatus != "" && want.MatchStatus != "" {
		text("matchStatus", string(got.MatchStatus), string(want.MatchStatus))
	}
	return diffs
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package spreadsheet

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"sierrawbs/internal/domain/payroll"
)

const (
	WBSSheet     = "WEEKLY"
	wbsColumns   = 28
	wbsFirstData = 9
	wbsCodeRow   = "# E:26"
)

// WBS column positions, 1-based.
const (
	colEmployeeNumber = 1
	colSSN            = 2
	colName           = 3
	colStatus         = 4
	colType           = 5
	colRate           = 6
	colDepartment     = 7
	colRegular        = 8
	colOvertime       = 9
	colDoubletime     = 10
	colTotals         = 28
)

var wbsCodeLabels = []any{
	"# B:8", "", "", "", "Pay", "", "", "REGULAR", "OVERTIME", "DOUBLETIME",
	"VACATION", "SICK", "HOLIDAY", "BONUS", "COMMISSION", "PC HRS MON", "PC TTL MON",
	"PC HRS TUE", "PC TTL TUE", "PC HRS WED", "PC TTL WED", "PC HRS THU", "PC TTL THU",
	"PC HRS FRI", "PC TTL FRI", "TRAVEL AMOUNT", "Notes and",
}

var wbsCodes = []any{
	wbsCodeRow, "SSN", "Employee Name", "Status", "Type", "Pay Rate", "Dept", "A01", "A02", "A03",
	"A06", "A07", "A08", "A04", "A05", "AH1", "AI1", "AH2", "AI2", "AH3", "AI3", "AH4", "AI4",
	"AH5", "AI5", "ATE", "Comments", "Totals",
}

// WBSHeader carries the client metadata of the import block.
type WBSHeader struct {
	ClientID   string
	ClientName string
	Frequency  string
	PeriodEnd  time.Time
	ReportDue  time.Time
	CheckDate  time.Time
	RunTime    time.Time
}

func (h WBSHeader) rows() [][]any {
	date := func(t time.Time) string { return t.Format("01/02/2006") }
	freq := h.Frequency
	if freq == "" {
		freq = "W"
	}
	return [][]any{
		{"# V", "DO NOT EDIT", "Version = B90216-00", "FmtRev = 2.1",
			"RunTime = " + h.RunTime.Format("20060102-150405"), "CliUnqId = " + h.ClientID,
			"CliName = " + h.ClientName, "Freq = " + freq,
			"PEDate = " + date(h.PeriodEnd), "RptDate = " + date(h.ReportDue), "CkDate = " + date(h.CheckDate),
			"EmpType = SSN", "DoNotes = 1", "PayRates = H+;S+;E+;C+", "RateCol = 6", "T1 = 7+",
			"CodeBeg = 8", "CodeEnd = 26", "NoteCol = 27"},
		{"# U", "CliUnqID", h.ClientID},
		{"# N", "Client", h.ClientName},
		{"# P", "Period End", date(h.PeriodEnd)},
		{"# R", "Report Due", date(h.ReportDue)},
		{"# C", "Check Date", date(h.CheckDate)},
		wbsCodeLabels,
		wbsCodes,
	}
}

// WriteWBS encodes records, in order, as a single-sheet WBS import workbook.
func WriteWBS(w io.Writer, records []payroll.OutputRecord, header WBSHeader) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), WBSSheet); err != nil {
		return err
	}
	for i, row := range header.rows() {
		if err := setRow(f, i+1, row); err != nil {
			return err
		}
	}
	for i, rec := range records {
		if err := setRow(f, wbsFirstData+i, recordRow(rec)); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(WBSSheet, cell, &values)
}

func recordRow(rec payroll.OutputRecord) []any {
	row := make([]any, wbsColumns)
	row[colEmployeeNumber-1] = rec.EmployeeNumber
	row[colSSN-1] = rec.TaxID
	row[colName-1] = string(rec.CanonicalName)
	row[colStatus-1] = rec.Status
	row[colType-1] = rec.EmploymentType
	row[colRate-1] = positive(rec.Rate)
	row[colDepartment-1] = rec.Department
	row[colRegular-1] = positive(rec.Breakdown.RegularHours)
	row[colOvertime-1] = positive(rec.Breakdown.Tier1Hours)
	row[colDoubletime-1] = positive(rec.Breakdown.Tier2Hours)
	row[colTotals-1] = payroll.RoundCents(rec.Breakdown.TotalAmount)
	return row
}

func positive(v float64) any {
	if v > 0 {
		return v
	}
	return nil
}

// ReadWBS decodes the employee rows of a WBS workbook. Match status is not
// part of the format and is left empty.
func ReadWBS(r io.Reader) ([]payroll.OutputRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheet := WBSSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}

	start := -1
	for i, row := range rows {
		if len(row) > 0 && strings.TrimSpace(row[0]) == wbsCodeRow {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("no %q row found", wbsCodeRow)
	}

	var out []payroll.OutputRecord
	for i, row := range rows[start:] {
		name := strings.TrimSpace(cellAt(row, colName))
		if name == "" {
			continue
		}
		rec := payroll.OutputRecord{
			RosterEntry: payroll.RosterEntry{
				CanonicalName:  payroll.Canonicalize(name, nil),
				EmployeeNumber: strings.TrimSpace(cellAt(row, colEmployeeNumber)),
				TaxID:          strings.TrimSpace(cellAt(row, colSSN)),
				Status:         strings.TrimSpace(cellAt(row, colStatus)),
				EmploymentType: strings.TrimSpace(cellAt(row, colType)),
				Department:     strings.TrimSpace(cellAt(row, colDepartment)),
			},
		}
		line := start + i + 1
		fields := []struct {
			col int
			dst *float64
		}{
			{colRate, &rec.Rate},
			{colRegular, &rec.Breakdown.RegularHours},
			{colOvertime, &rec.Breakdown.Tier1Hours},
			{colDoubletime, &rec.Breakdown.Tier2Hours},
			{colTotals, &rec.Breakdown.TotalAmount},
		}
		for _, fld := range fields {
			v, err := number(cellAt(row, fld.col))
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", line, fld.col, err)
			}
			*fld.dst = v
		}
		out = append(out, rec)
	}
	return out, nil
}

func cellAt(row []string, col int) string {
	if col-1 < len(row) {
		return row[col-1]
	}
	return ""
}

func number(raw string) (float64, error) {
	s := strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(raw), "$"), ",", ""))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

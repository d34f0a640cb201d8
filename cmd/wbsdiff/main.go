// Command wbsdiff compares a generated WBS payroll file against a known-good
// one and reports missing or extra employees, order changes and per-field
// differences.
//
//	wbsdiff [-tolerance 0.01] [-json] generated.xlsx gold.xlsx
//
// Inputs are WBS workbooks (.xlsx) or the JSON produced by
// process-payroll?format=json. Exit status is 1 when differences are found and
// 2 on usage or read errors.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sierrawbs/internal/domain/payroll"
	"sierrawbs/internal/platform/spreadsheet"
)

const (
	exitOK    = 0
	exitDiff  = 1
	exitUsage = 2
)

var errUsage = errors.New("usage: wbsdiff [-tolerance 0.01] [-json] generated gold")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wbsdiff", flag.ContinueOnError)
	fs.SetOutput(stderr)
	tolerance := fs.Float64("tolerance", 0.01, "allowed absolute difference for hours, rates and amounts")
	asJSON := fs.Bool("json", false, "print the diff report as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 2 || *tolerance < 0 {
		fmt.Fprintln(stderr, errUsage)
		return exitUsage
	}

	got, err := readRecords(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "read %s: %v\n", fs.Arg(0), err)
		return exitUsage
	}
	want, err := readRecords(fs.Arg(1))
	if err != nil {
		fmt.Fprintf(stderr, "read %s: %v\n", fs.Arg(1), err)
		return exitUsage
	}

	report := payroll.DiffRecords(got, want, *tolerance)
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(stderr, "encode report: %v\n", err)
			return exitUsage
		}
	} else {
		printReport(stdout, report, len(got), len(want))
	}
	if !report.Empty() {
		return exitDiff
	}
	return exitOK
}

func readRecords(path string) ([]payroll.OutputRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return spreadsheet.ReadWBS(bytes.NewReader(data))
	case ".json":
		return decodeRecords(data)
	}
	return nil, fmt.Errorf("%w: %s", spreadsheet.ErrUnsupportedFormat, filepath.Ext(path))
}

// decodeRecords accepts a bare record array, a conversion result, or the API
// envelope wrapping one.
func decodeRecords(data []byte) ([]payroll.OutputRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []payroll.OutputRecord
		err := json.Unmarshal(trimmed, &records)
		return records, err
	}
	var doc struct {
		Records []payroll.OutputRecord `json:"records"`
		Data    *struct {
			Records []payroll.OutputRecord `json:"records"`
		} `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	if doc.Data != nil {
		return doc.Data.Records, nil
	}
	return doc.Records, nil
}

func printReport(w io.Writer, report payroll.DiffReport, gotCount, wantCount int) {
	fmt.Fprintf(w, "records: generated %d, gold %d\n", gotCount, wantCount)
	fmt.Fprintf(w, "totals: generated %.2f, gold %.2f\n", payroll.RoundCents(report.GotTotal), payroll.RoundCents(report.WantTotal))
	if report.Empty() {
		fmt.Fprintln(w, "no differences")
		return
	}
	for _, name := range report.Missing {
		fmt.Fprintf(w, "missing: %s\n", name)
	}
	for _, name := range report.Extra {
		fmt.Fprintf(w, "extra: %s\n", name)
	}
	for _, name := range report.Duplicates {
		fmt.Fprintf(w, "duplicate: %s\n", name)
	}
	if report.OrderChanged {
		fmt.Fprintln(w, "order differs from gold")
	}
	for _, d := range report.Fields {
		fmt.Fprintf(w, "%s %s: generated %s, gold %s\n", d.Name, d.Field, d.Got, d.Want)
	}
}

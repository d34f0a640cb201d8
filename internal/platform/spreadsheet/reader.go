// Package spreadsheet decodes uploaded timesheets into payroll tables and
// encodes reconciled records as WBS import workbooks.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"sierrawbs/internal/domain/payroll"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyWorksheet    = errors.New("worksheet is empty")
)

const maxXLSRows = 100000

type Options struct {
	// SheetName selects a worksheet by name; empty reads the first sheet.
	SheetName string
	// HeaderScanRows bounds how many leading rows are searched for the header.
	HeaderScanRows int
	Aliases        payroll.ColumnAliases
}

// SupportedExtension reports whether filename has an extension ReadTable
// can decode.
func SupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xls", ".csv":
		return true
	}
	return false
}

// ReadTable decodes a .xlsx, .xls or .csv timesheet and locates its header
// row. When no row within the scan window carries all three columns, the
// first non-empty row is used so the parser can report what is missing.
func ReadTable(r io.Reader, filename string, opts Options) (payroll.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return payroll.Table{}, err
	}

	var rows [][]string
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xls":
		rows, err = readXLS(data, opts.SheetName)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(data, opts.SheetName)
	case ".csv":
		rows, err = readCSV(data)
	default:
		return payroll.Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return payroll.Table{}, err
	}
	if len(rows) == 0 {
		return payroll.Table{}, ErrEmptyWorksheet
	}

	idx := locateHeader(rows, opts)
	return payroll.Table{
		Header:    rows[idx],
		Rows:      rows[idx+1:],
		HeaderRow: idx + 1,
	}, nil
}

func locateHeader(rows [][]string, opts Options) int {
	limit := opts.HeaderScanRows
	if limit <= 0 || limit > len(rows) {
		limit = len(rows)
	}
	parser := payroll.NewParser(opts.Aliases)
	firstNonEmpty := -1
	for i := range limit {
		if firstNonEmpty < 0 && !blankRow(rows[i]) {
			firstNonEmpty = i
		}
		if _, err := parser.Locate(rows[i]); err == nil {
			return i
		}
	}
	if firstNonEmpty < 0 {
		return 0
	}
	return firstNonEmpty
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readXLSX(data []byte, sheet string) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	sheetName := sheet
	if sheetName == "" {
		sheetName = file.GetSheetName(0)
	}
	if sheetName == "" {
		return nil, fmt.Errorf("no worksheet found")
	}
	rows, err := file.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func readXLS(data []byte, sheet string) ([][]string, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if workbook.NumSheets() == 0 {
		return nil, fmt.Errorf("no worksheet found")
	}

	ws := workbook.GetSheet(0)
	if sheet != "" {
		ws = nil
		for i := range workbook.NumSheets() {
			if s := workbook.GetSheet(i); s != nil && s.Name == sheet {
				ws = s
				break
			}
		}
		if ws == nil {
			return nil, fmt.Errorf("worksheet %q not found", sheet)
		}
	}
	if ws == nil {
		return nil, fmt.Errorf("no worksheet found")
	}

	var rows [][]string
	for i := 0; i <= int(ws.MaxRow) && i < maxXLSRows; i++ {
		row := ws.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol()+1)
		for j := 0; j <= row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.ReadAll()
}

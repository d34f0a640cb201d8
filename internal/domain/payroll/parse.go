package payroll

import (
	"iter"
	"math"
	"strconv"
	"strings"
)

// ColumnAliases lists the header spellings recognized for each role, most
// specific first.
type ColumnAliases struct {
	Name  []string `yaml:"name" json:"name"`
	Hours []string `yaml:"hours" json:"hours"`
	Rate  []string `yaml:"rate" json:"rate"`
}

func DefaultColumnAliases() ColumnAliases {
	return ColumnAliases{
		Name:  []string{"employee name", "name", "employee", "worker"},
		Hours: []string{"hours", "total hours", "hrs"},
		Rate:  []string{"pay rate", "rate", "wage"},
	}
}

var defaultHeaderTokens = []string{"name", "employee name", "employee"}

// ColumnIndex holds the zero-based source column of each role.
type ColumnIndex struct {
	Name  int `json:"name"`
	Hours int `json:"hours"`
	Rate  int `json:"rate"`
}

type Parser struct {
	Aliases      ColumnAliases
	HeaderTokens []string
}

func NewParser(aliases ColumnAliases) *Parser {
	defaults := DefaultColumnAliases()
	if len(aliases.Name) == 0 {
		aliases.Name = defaults.Name
	}
	if len(aliases.Hours) == 0 {
		aliases.Hours = defaults.Hours
	}
	if len(aliases.Rate) == 0 {
		aliases.Rate = defaults.Rate
	}
	return &Parser{Aliases: aliases, HeaderTokens: defaultHeaderTokens}
}

// Locate maps each role to a distinct header column. Exact alias matches win
// over substring matches, and a column claimed by one role is never reused.
func (p *Parser) Locate(header []string) (ColumnIndex, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}
	claimed := make(map[int]bool, 3)

	roles := []struct {
		role    string
		aliases []string
	}{
		{RoleName, p.Aliases.Name},
		{RoleHours, p.Aliases.Hours},
		{RoleRate, p.Aliases.Rate},
	}
	found := make(map[string]int, 3)
	for _, r := range roles {
		col := findColumn(normalized, r.aliases, claimed)
		if col < 0 {
			return ColumnIndex{}, &ParseError{Role: r.role, Reason: "expected one of " + strings.Join(r.aliases, ", ")}
		}
		claimed[col] = true
		found[r.role] = col
	}
	return ColumnIndex{Name: found[RoleName], Hours: found[RoleHours], Rate: found[RoleRate]}, nil
}

func findColumn(header []string, aliases []string, claimed map[int]bool) int {
	for _, alias := range aliases {
		alias = normalizeHeader(alias)
		for i, h := range header {
			if !claimed[i] && h != "" && h == alias {
				return i
			}
		}
	}
	for _, alias := range aliases {
		alias = normalizeHeader(alias)
		if alias == "" {
			continue
		}
		for i, h := range header {
			if !claimed[i] && strings.Contains(h, alias) {
				return i
			}
		}
	}
	return -1
}

// Entries lazily yields the valid time entries of table. Dropped rows are
// silently skipped; use Parse to get the drop report.
func (p *Parser) Entries(table Table) (iter.Seq[TimeEntry], error) {
	idx, err := p.Locate(table.Header)
	if err != nil {
		return nil, err
	}
	return func(yield func(TimeEntry) bool) {
		p.scan(table, idx, yield, nil)
	}, nil
}

func (p *Parser) Parse(table Table) (*ParseResult, error) {
	idx, err := p.Locate(table.Header)
	if err != nil {
		return nil, err
	}
	result := &ParseResult{
		Entries:      make([]TimeEntry, 0, len(table.Rows)),
		DroppedCount: map[string]int{},
		Columns:      idx,
	}
	p.scan(table, idx, func(e TimeEntry) bool {
		result.Entries = append(result.Entries, e)
		return true
	}, func(d DroppedRow) {
		result.Dropped = append(result.Dropped, d)
		result.DroppedCount[d.Reason]++
	})
	return result, nil
}

func (p *Parser) scan(table Table, idx ColumnIndex, yield func(TimeEntry) bool, drop func(DroppedRow)) {
	headerRow := table.HeaderRow
	if headerRow <= 0 {
		headerRow = 1
	}
	report := func(row int, reason, value string) {
		if drop != nil {
			drop(DroppedRow{Row: row, Reason: reason, Value: value})
		}
	}

	for i, cells := range table.Rows {
		row := headerRow + i + 1
		name := strings.TrimSpace(cell(cells, idx.Name))
		if name == "" {
			report(row, DropBlankName, "")
			continue
		}
		if p.isHeaderToken(name) {
			report(row, DropHeaderRepeat, name)
			continue
		}
		hours, ok := parseNumber(cell(cells, idx.Hours))
		if !ok || hours <= 0 {
			report(row, DropBadHours, cell(cells, idx.Hours))
			continue
		}
		rate, ok := parseNumber(cell(cells, idx.Rate))
		if !ok || rate <= 0 {
			report(row, DropBadRate, cell(cells, idx.Rate))
			continue
		}
		if !yield(TimeEntry{RawName: name, Hours: hours, Rate: rate, Row: row}) {
			return
		}
	}
}

func (p *Parser) isHeaderToken(name string) bool {
	lowered := normalizeHeader(name)
	for _, token := range p.HeaderTokens {
		if lowered == normalizeHeader(token) {
			return true
		}
	}
	return false
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func normalizeHeader(header string) string {
	return strings.Join(strings.Fields(strings.ToLower(header)), " ")
}

// parseNumber accepts plain decimals plus currency symbols and thousands
// separators as they appear in exported timesheets.
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

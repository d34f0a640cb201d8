package payroll

// Table is already-decoded tabular input: one header row plus data rows.
// HeaderRow is the 1-based source row of Header; zero means row 1.
type Table struct {
	Header    []string
	Rows      [][]string
	HeaderRow int
}

type TimeEntry struct {
	RawName string  `json:"rawName"`
	Hours   float64 `json:"hours"`
	Rate    float64 `json:"rate"`
	Row     int     `json:"row"`
}

// CanonicalName is the "Last, First" join key between timesheet and roster.
type CanonicalName string

type ConsolidatedEmployee struct {
	CanonicalName CanonicalName `json:"canonicalName"`
	TotalHours    float64       `json:"totalHours"`
	Rate          float64       `json:"rate"`
	EntryCount    int           `json:"entryCount"`
	RawNames      []string      `json:"rawNames"`
}

type OvertimeBreakdown struct {
	RegularHours  float64 `json:"regularHours"`
	Tier1Hours    float64 `json:"tier1Hours"`
	Tier2Hours    float64 `json:"tier2Hours"`
	RegularAmount float64 `json:"regularAmount"`
	Tier1Amount   float64 `json:"tier1Amount"`
	Tier2Amount   float64 `json:"tier2Amount"`
	TotalAmount   float64 `json:"totalAmount"`
}

// TotalHours is the sum of all three tiers.
func (b OvertimeBreakdown) TotalHours() float64 {
	return b.RegularHours + b.Tier1Hours + b.Tier2Hours
}

type RosterEntry struct {
	CanonicalName  CanonicalName `json:"canonicalName"`
	EmployeeNumber string        `json:"employeeNumber"`
	TaxID          string        `json:"taxId"`
	Status         string        `json:"status"`
	Department     string        `json:"department"`
	EmploymentType string        `json:"employmentType"`
	BaseRate       float64       `json:"baseRate"`
	FixedAmount    float64       `json:"fixedAmount,omitempty"`
	FixedHours     float64       `json:"fixedHours,omitempty"`
}

// Salaried reports whether the employee is paid a fixed amount per period.
func (r RosterEntry) Salaried() bool {
	return r.FixedAmount > 0
}

type MatchStatus string

type OutputRecord struct {
	RosterEntry
	Rate        float64           `json:"rate"`
	Breakdown   OvertimeBreakdown `json:"breakdown"`
	MatchStatus MatchStatus       `json:"matchStatus"`
}

type UnmatchedEntry struct {
	ConsolidatedEmployee
	Breakdown OvertimeBreakdown `json:"breakdown"`
}

type Reconciliation struct {
	Records    []OutputRecord   `json:"records"`
	Unmatched  []UnmatchedEntry `json:"unmatched"`
	GrandTotal float64          `json:"grandTotal"`
}

type DroppedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
	Value  string `json:"value,omitempty"`
}

type ParseResult struct {
	Entries      []TimeEntry    `json:"entries"`
	Dropped      []DroppedRow   `json:"dropped"`
	DroppedCount map[string]int `json:"droppedCount"`
	Columns      ColumnIndex    `json:"columns"`
}

// Report carries the soft failures of one conversion run.
type Report struct {
	TotalEntries    int            `json:"totalEntries"`
	DistinctNames   int            `json:"distinctNames"`
	TotalHours      float64        `json:"totalHours"`
	DroppedRows     map[string]int `json:"droppedRows"`
	SkippedNames    []string       `json:"skippedNames,omitempty"`
	MatchedCount    int            `json:"matchedCount"`
	ZeroCount       int            `json:"zeroCount"`
	SalariedCount   int            `json:"salariedCount"`
	UnmatchedCount  int            `json:"unmatchedCount"`
	UnmatchedHours  float64        `json:"unmatchedHours"`
	UnmatchedAmount float64        `json:"unmatchedAmount"`
	GrandTotal      float64        `json:"grandTotal"`
	RequiresReview  bool           `json:"requiresReview"`
	PolicyName      string         `json:"policyName"`
	RatePolicy      RatePolicy     `json:"ratePolicy"`
}

type ConversionResult struct {
	Records   []OutputRecord   `json:"records"`
	Unmatched []UnmatchedEntry `json:"unmatched"`
	Report    Report           `json:"report"`
}

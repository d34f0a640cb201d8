package payroll

import (
	"sort"
)

// Reconcile produces exactly one OutputRecord per roster entry, in roster
// order, and reports every consolidated employee that matched no roster
// entry. Each consolidated employee is consumed at most once.
func Reconcile(roster []RosterEntry, consolidated map[CanonicalName]*ConsolidatedEmployee, policies PolicySet) (*Reconciliation, error) {
	if err := policies.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateRoster(roster); err != nil {
		return nil, err
	}

	remaining := make(map[CanonicalName]*ConsolidatedEmployee, len(consolidated))
	for k, v := range consolidated {
		remaining[k] = v
	}

	out := &Reconciliation{
		Records:   make([]OutputRecord, 0, len(roster)),
		Unmatched: []UnmatchedEntry{},
	}
	for _, entry := range roster {
		record := OutputRecord{RosterEntry: entry, MatchStatus: StatusZeroNoActivity}
		emp, found := remaining[entry.CanonicalName]
		if found {
			delete(remaining, entry.CanonicalName)
		}

		switch {
		case entry.Salaried():
			record.MatchStatus = StatusSalaried
			record.Rate = entry.FixedAmount
			record.Breakdown = OvertimeBreakdown{
				RegularHours:  entry.FixedHours,
				RegularAmount: entry.FixedAmount,
				TotalAmount:   entry.FixedAmount,
			}
		case found:
			b, err := ApplyOvertime(emp.TotalHours, emp.Rate, policies.Resolve(entry.CanonicalName))
			if err != nil {
				return nil, err
			}
			record.MatchStatus = StatusMatched
			record.Rate = emp.Rate
			record.Breakdown = b
		}

		out.GrandTotal += record.Breakdown.TotalAmount
		out.Records = append(out.Records, record)
	}

	names := make([]string, 0, len(remaining))
	for name := range remaining {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		emp := remaining[CanonicalName(name)]
		b, err := ApplyOvertime(emp.TotalHours, emp.Rate, policies.Resolve(emp.CanonicalName))
		if err != nil {
			return nil, err
		}
		out.Unmatched = append(out.Unmatched, UnmatchedEntry{ConsolidatedEmployee: *emp, Breakdown: b})
	}
	return out, nil
}

// ValidateRoster rejects blank and duplicate canonical names.
func ValidateRoster(roster []RosterEntry) error {
	seen := make(map[CanonicalName]bool, len(roster))
	for _, entry := range roster {
		if entry.CanonicalName == "" {
			return &RosterError{Reason: "canonical name is empty"}
		}
		if seen[entry.CanonicalName] {
			return &RosterError{CanonicalName: entry.CanonicalName, Reason: "listed more than once"}
		}
		if entry.FixedAmount < 0 || entry.FixedHours < 0 {
			return &RosterError{CanonicalName: entry.CanonicalName, Reason: "fixed amount and hours must be non-negative"}
		}
		seen[entry.CanonicalName] = true
	}
	return nil
}

package payroll

import (
	"errors"
	"slices"
	"testing"
)

func TestConsolidateGroupsByCanonicalName(t *testing.T) {
	entries := []TimeEntry{
		{RawName: "Jane Doe", Hours: 4, Rate: 20},
		{RawName: "Doe, Jane", Hours: 3.5, Rate: 22},
		{RawName: "John Smith", Hours: 8, Rate: 18},
		{RawName: "Doe ,Jane", Hours: 2, Rate: 22},
	}
	c, err := Consolidate(slices.Values(entries), nil, RateMode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Employees) != 2 {
		t.Fatalf("expected 2 employees, got %d", len(c.Employees))
	}
	jane := c.Employees["Doe, Jane"]
	if jane.TotalHours != 9.5 || jane.Rate != 22 || jane.EntryCount != 3 {
		t.Fatalf("unexpected consolidation: %+v", jane)
	}
	if len(jane.RawNames) != 3 {
		t.Fatalf("expected 3 raw spellings, got %v", jane.RawNames)
	}
	if !slices.Equal(c.Order, []CanonicalName{"Doe, Jane", "Smith, John"}) {
		t.Fatalf("unexpected order: %v", c.Order)
	}
}

func TestConsolidateModeTieBreaksOnFirstRate(t *testing.T) {
	entries := []TimeEntry{
		{RawName: "Jane Doe", Hours: 1, Rate: 25},
		{RawName: "Jane Doe", Hours: 1, Rate: 20},
		{RawName: "Jane Doe", Hours: 1, Rate: 20},
		{RawName: "Jane Doe", Hours: 1, Rate: 25},
	}
	c, err := Consolidate(slices.Values(entries), nil, RateMode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.Employees["Doe, Jane"].Rate; got != 25 {
		t.Fatalf("expected first-seen rate 25, got %v", got)
	}
}

func TestConsolidateRatePolicies(t *testing.T) {
	entries := []TimeEntry{
		{RawName: "Jane Doe", Hours: 1, Rate: 10},
		{RawName: "Jane Doe", Hours: 1, Rate: 20},
		{RawName: "Jane Doe", Hours: 1, Rate: 30},
	}
	want := map[RatePolicy]float64{RateFirst: 10, RateLast: 30, RateAverage: 20, RateMode: 10}
	for policy, rate := range want {
		c, err := Consolidate(slices.Values(entries), nil, policy)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := c.Employees["Doe, Jane"].Rate; got != rate {
			t.Fatalf("%s: expected %v, got %v", policy, rate, got)
		}
	}
}

func TestConsolidateSkipsEmptyKeys(t *testing.T) {
	entries := []TimeEntry{{RawName: "...", Hours: 2, Rate: 10}, {RawName: "Jane Doe", Hours: 1, Rate: 10}}
	c, err := Consolidate(slices.Values(entries), nil, RateMode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Skipped) != 1 || len(c.Employees) != 1 {
		t.Fatalf("expected one skipped name, got %+v", c)
	}
}

func TestParseRatePolicy(t *testing.T) {
	if p, err := ParseRatePolicy(""); err != nil || p != RateMode {
		t.Fatalf("expected default mode, got %v %v", p, err)
	}
	if _, err := ParseRatePolicy("median"); err == nil {
		t.Fatalf("expected unknown policy error")
	}
}

func TestConsolidationErrorMatchesSentinel(t *testing.T) {
	err := error(&ConsolidationError{CanonicalName: "Doe, Jane"})
	if !errors.Is(err, ErrConsolidation) {
		t.Fatalf("expected sentinel match")
	}
}

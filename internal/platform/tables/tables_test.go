package tables

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sierrawbs/internal/domain/payroll"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestReadRosterCSV(t *testing.T) {
	input := "\xef\xbb\xbfEmployee Name,Employee Number,SSN,Status,Type,Dept,Pay Rate,Fixed Amount,Fixed Hours\n" +
		"\"Doe, Jane\",100,123-45-6789,A,H,10,$20.00,,\n" +
		",999,,,,,,,\n" +
		"\"Shafer,  Kim\",101,,A,S,20,,\"1,634.62\",40\n"
	roster, err := ReadRosterCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(roster))
	}
	jane := roster[0]
	if jane.CanonicalName != "Doe, Jane" || jane.TaxID != "123-45-6789" || jane.BaseRate != 20 || jane.Department != "10" {
		t.Fatalf("unexpected jane: %+v", jane)
	}
	kim := roster[1]
	if kim.CanonicalName != "Shafer, Kim" {
		t.Fatalf("unexpected canonical name: %q", kim.CanonicalName)
	}
	if !kim.Salaried() || kim.FixedAmount != 1634.62 || kim.FixedHours != 40 {
		t.Fatalf("unexpected salaried entry: %+v", kim)
	}
}

func TestReadRosterCSVRequiresName(t *testing.T) {
	if _, err := ReadRosterCSV(strings.NewReader("SSN,Status\n1,A\n")); err == nil {
		t.Fatal("expected missing name column error")
	}
	if _, err := ReadRosterCSV(strings.NewReader("Name,Pay Rate\nJane Doe,abc\n")); err == nil {
		t.Fatal("expected invalid rate error")
	}
}

func TestApplyOrder(t *testing.T) {
	roster := []payroll.RosterEntry{
		{CanonicalName: "Doe, Jane", EmployeeNumber: "1"},
		{CanonicalName: "Smith, John", EmployeeNumber: "2"},
		{CanonicalName: "Lee, Ann", EmployeeNumber: "3"},
	}
	order := []payroll.CanonicalName{"Smith, John", "Park, Min", "Doe, Jane", "Smith, John"}
	got := ApplyOrder(roster, order)
	want := []payroll.CanonicalName{"Smith, John", "Park, Min", "Doe, Jane", "Lee, Ann"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].CanonicalName != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], got[i].CanonicalName)
		}
	}
	if got[1].EmployeeNumber != "" || got[0].EmployeeNumber != "2" {
		t.Fatalf("unexpected attributes: %+v", got)
	}
}

func TestLoadRosterWithOrderFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "roster.csv", "Name\nJane Doe\nJohn Smith\n")
	orderPath := writeFile(t, dir, "roster_order.txt", "# payroll order\nSmith, John\n\nDoe, Jane\n")
	roster, err := LoadRoster(csvPath, orderPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if roster[0].CanonicalName != "Smith, John" || roster[1].CanonicalName != "Doe, Jane" {
		t.Fatalf("unexpected order: %+v", roster)
	}

	roster, err = LoadRoster(csvPath, filepath.Join(dir, "missing.txt"))
	if err != nil {
		t.Fatalf("expected missing order file to be ignored: %v", err)
	}
	if roster[0].CanonicalName != "Doe, Jane" {
		t.Fatalf("expected csv order, got %+v", roster)
	}

	if _, err := LoadRoster(filepath.Join(dir, "nope.csv"), ""); err == nil {
		t.Fatal("expected missing roster to fail")
	}
}

func TestLoadNameOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "name_overrides.yaml", "overrides:\n  \"Carrasco, J\": \"Mateos, Daniel\"\n")
	overrides, err := LoadNameOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payroll.Canonicalize("J Carrasco", overrides) != "Mateos, Daniel" {
		t.Fatalf("expected override to apply, got %v", overrides)
	}

	empty, err := LoadNameOverrides(filepath.Join(dir, "missing.yaml"))
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty table for missing file, got %v %v", empty, err)
	}

	bad := writeFile(t, dir, "bad.yaml", "overrides:\n  \"Doe, J\": \"\"\n")
	if _, err := LoadNameOverrides(bad); err == nil {
		t.Fatal("expected empty target to fail")
	}
}

func TestLoadPolicies(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "overtime_policies.yaml", `default: wbs32
policies:
  wbs32:
    preset: wbs_straight_time
  wbs24:
    preset: wbs_straight_time
    tier1_threshold: 24
  weekly:
    tier1_threshold: 40
    tier2_threshold: .inf
    tier1_multiplier: 1.5
    tier2_multiplier: 1.5
employees:
  "Jane Doe": wbs24
  "Smith, John": california_daily
`)
	set, err := LoadPolicies(path, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Default.Name != "wbs32" || set.Default.Tier1Threshold != 32 || !math.IsInf(set.Default.Tier2Threshold, 1) {
		t.Fatalf("unexpected default: %+v", set.Default)
	}
	if got := set.Resolve("Doe, Jane"); got.Tier1Threshold != 24 || got.Tier1Multiplier != 1 {
		t.Fatalf("unexpected jane policy: %+v", got)
	}
	if got := set.Resolve("Smith, John"); got.Name != payroll.PolicyCaliforniaDaily {
		t.Fatalf("unexpected john policy: %+v", got)
	}

	override, err := LoadPolicies(path, "weekly")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if override.Default.Name != "weekly" {
		t.Fatalf("expected explicit default to win, got %s", override.Default.Name)
	}
}

func TestLoadPoliciesDefaultsAndErrors(t *testing.T) {
	dir := t.TempDir()
	set, err := LoadPolicies(filepath.Join(dir, "missing.yaml"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Default.Name != payroll.PolicyCaliforniaDaily {
		t.Fatalf("expected california default, got %s", set.Default.Name)
	}

	if _, err := LoadPolicies("", "nonexistent"); err == nil {
		t.Fatal("expected unknown policy error")
	}

	bad := writeFile(t, dir, "bad.yaml", "policies:\n  broken:\n    tier1_threshold: 12\n    tier2_threshold: 8\n")
	if _, err := LoadPolicies(bad, ""); !errors.Is(err, payroll.ErrPolicy) {
		t.Fatalf("expected policy error, got %v", err)
	}
}

func TestLoadColumnAliases(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "column_aliases.yaml", "hours:\n  - regular hours\n  - hours\n")
	aliases, err := LoadColumnAliases(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aliases.Hours[0] != "regular hours" || len(aliases.Name) == 0 {
		t.Fatalf("unexpected aliases: %+v", aliases)
	}
}

func TestLoadBundle(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		Roster:           writeFile(t, dir, "roster.csv", "Name\nJane Doe\n"),
		RosterOrder:      filepath.Join(dir, "roster_order.txt"),
		NameOverrides:    filepath.Join(dir, "name_overrides.yaml"),
		OvertimePolicies: filepath.Join(dir, "overtime_policies.yaml"),
		ColumnAliases:    filepath.Join(dir, "column_aliases.yaml"),
	}
	bundle, err := Load(paths, payroll.PolicyWBSStraightTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bundle.Roster) != 1 || bundle.Policies.Default.Name != payroll.PolicyWBSStraightTime {
		t.Fatalf("unexpected bundle: %+v", bundle)
	}
}

func TestLoadRosterRejectsDuplicateRowsWithOrderFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "roster.csv", "Employee Name,Employee Number\n\"Doe, Jane\",1001\nJane Doe,2002\n")
	orderPath := writeFile(t, dir, "roster_order.txt", "Doe, Jane\n")

	for name, order := range map[string]string{"with order": orderPath, "without order": ""} {
		_, err := LoadRoster(csvPath, order)
		var rosterErr *payroll.RosterError
		if !errors.As(err, &rosterErr) || rosterErr.CanonicalName != "Doe, Jane" {
			t.Fatalf("%s: expected duplicate roster error, got %v", name, err)
		}
	}
}

func TestLoadNameOverridesNormalizesKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "name_overrides.yaml", "overrides:\n  \"Martinez, Alberto O.\": \"Martinez, Alberto\"\n  \"Kim  Shafer\": \"Shafer, Kim\"\n")
	overrides, err := LoadNameOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := payroll.Canonicalize("Alberto O. Martinez", overrides); got != "Martinez, Alberto" {
		t.Fatalf("expected dotted key to match, got %q (%v)", got, overrides)
	}
	if got := payroll.Canonicalize("Kim Shafer", overrides); got != "Shafer, Kim" {
		t.Fatalf("expected first-last key to match, got %q (%v)", got, overrides)
	}

	clash := writeFile(t, dir, "clash.yaml", "overrides:\n  \"Doe, J.\": \"Doe, Jane\"\n  \"Doe, J\": \"Doe, John\"\n")
	if _, err := LoadNameOverrides(clash); err == nil {
		t.Fatal("expected conflicting normalized keys to fail")
	}
}

func TestLoadPoliciesRequiresFieldsWithoutPreset(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "overtime_policies.yaml", "default: weekly40\npolicies:\n  weekly40:\n    tier1_threshold: 40\n    tier2_threshold: 60\n")
	_, err := LoadPolicies(path, "")
	var policyErr *payroll.PolicyError
	if !errors.As(err, &policyErr) || policyErr.Policy != "weekly40" || policyErr.Field != "tier1_multiplier" {
		t.Fatalf("expected missing multiplier policy error, got %v", err)
	}

	unknown := writeFile(t, dir, "unknown.yaml", "policies:\n  odd:\n    preset: nightly\n")
	if _, err := LoadPolicies(unknown, ""); !errors.Is(err, payroll.ErrPolicy) {
		t.Fatalf("expected unknown preset to be a policy error, got %v", err)
	}
}

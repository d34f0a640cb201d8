// Package tables loads the externally maintained lookup data a conversion
// depends on: the roster, its display order, name overrides, overtime
// policies and column aliases.
package tables

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"sierrawbs/internal/domain/payroll"
)

type Paths struct {
	Roster           string
	RosterOrder      string
	NameOverrides    string
	OvertimePolicies string
	ColumnAliases    string
}

type Bundle struct {
	Roster    []payroll.RosterEntry
	Overrides payroll.NameOverrides
	Policies  payroll.PolicySet
	Aliases   payroll.ColumnAliases
}

// Load reads every table. Only the roster is required; the other files fall
// back to empty tables or built-in defaults when absent. defaultPolicy, when
// set, wins over the policy file's own default.
func Load(paths Paths, defaultPolicy string) (*Bundle, error) {
	roster, err := LoadRoster(paths.Roster, paths.RosterOrder)
	if err != nil {
		return nil, err
	}
	overrides, err := LoadNameOverrides(paths.NameOverrides)
	if err != nil {
		return nil, err
	}
	policies, err := LoadPolicies(paths.OvertimePolicies, defaultPolicy)
	if err != nil {
		return nil, err
	}
	aliases, err := LoadColumnAliases(paths.ColumnAliases)
	if err != nil {
		return nil, err
	}
	return &Bundle{Roster: roster, Overrides: overrides, Policies: policies, Aliases: aliases}, nil
}

func LoadRoster(csvPath, orderPath string) ([]payroll.RosterEntry, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	roster, err := ReadRosterCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", csvPath, err)
	}
	// Duplicates are rejected before ordering, which would otherwise keep
	// only the first row for a name.
	if err := payroll.ValidateRoster(roster); err != nil {
		return nil, fmt.Errorf("read roster %s: %w", csvPath, err)
	}
	if orderPath == "" {
		return roster, nil
	}
	order, err := readOptional(orderPath)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return roster, nil
	}
	names, err := ReadOrder(bytes.NewReader(order))
	if err != nil {
		return nil, fmt.Errorf("read roster order %s: %w", orderPath, err)
	}
	return ApplyOrder(roster, names), nil
}

var rosterColumns = map[string]string{
	"employeename":   "name",
	"name":           "name",
	"employeenumber": "number",
	"empid":          "number",
	"employeeid":     "number",
	"ssn":            "ssn",
	"status":         "status",
	"type":           "type",
	"department":     "department",
	"dept":           "department",
	"payrate":        "rate",
	"fixedamount":    "fixed_amount",
	"salary":         "fixed_amount",
	"fixedhours":     "fixed_hours",
}

// ReadRosterCSV decodes a roster with case- and space-insensitive headers.
// Rows without a name are skipped.
func ReadRosterCSV(r io.Reader) ([]payroll.RosterEntry, error) {
	reader := csv.NewReader(bomReader(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("roster is empty")
		}
		return nil, err
	}
	cols := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(h), " ", ""))
		if field, ok := rosterColumns[key]; ok {
			if _, seen := cols[field]; !seen {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("roster has no employee name column")
	}

	var roster []payroll.RosterEntry
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		get := func(field string) string {
			idx, ok := cols[field]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}
		name := payroll.Canonicalize(get("name"), nil)
		if name == "" {
			continue
		}
		entry := payroll.RosterEntry{
			CanonicalName:  name,
			EmployeeNumber: get("number"),
			TaxID:          get("ssn"),
			Status:         get("status"),
			EmploymentType: get("type"),
			Department:     get("department"),
		}
		for field, dst := range map[string]*float64{"rate": &entry.BaseRate, "fixed_amount": &entry.FixedAmount, "fixed_hours": &entry.FixedHours} {
			raw := strings.ReplaceAll(strings.TrimPrefix(get(field), "$"), ",", "")
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q", line, field, get(field))
			}
			*dst = v
		}
		roster = append(roster, entry)
	}
	return roster, nil
}

// ReadOrder returns one canonical name per non-blank line. Lines starting with
// # are comments.
func ReadOrder(r io.Reader) ([]payroll.CanonicalName, error) {
	var names []payroll.CanonicalName
	scanner := bufio.NewScanner(bomReader(r))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, payroll.Canonicalize(line, nil))
	}
	return names, scanner.Err()
}

// ApplyOrder arranges roster by order. Ordered names absent from the roster
// become entries with empty attributes; roster entries absent from the order
// follow in their original order. A name listed twice in order keeps its
// first slot. roster is expected to hold unique names.
func ApplyOrder(roster []payroll.RosterEntry, order []payroll.CanonicalName) []payroll.RosterEntry {
	byName := make(map[payroll.CanonicalName]payroll.RosterEntry, len(roster))
	for _, e := range roster {
		if _, ok := byName[e.CanonicalName]; !ok {
			byName[e.CanonicalName] = e
		}
	}
	placed := map[payroll.CanonicalName]bool{}
	out := make([]payroll.RosterEntry, 0, len(roster)+len(order))
	for _, name := range order {
		if name == "" || placed[name] {
			continue
		}
		placed[name] = true
		if e, ok := byName[name]; ok {
			out = append(out, e)
		} else {
			out = append(out, payroll.RosterEntry{CanonicalName: name})
		}
	}
	for _, e := range roster {
		if placed[e.CanonicalName] {
			continue
		}
		placed[e.CanonicalName] = true
		out = append(out, e)
	}
	return out
}

type overridesDoc struct {
	Overrides map[string]string `yaml:"overrides"`
}

// LoadNameOverrides reads name_overrides.yaml. A missing file yields an empty
// table. Keys are stored in canonical form, the form Canonicalize looks up, so
// "Martinez, Alberto O." and "Alberto O Martinez" both match.
func LoadNameOverrides(path string) (payroll.NameOverrides, error) {
	data, err := readOptional(path)
	if err != nil || data == nil {
		return payroll.NameOverrides{}, err
	}
	var doc overridesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make(payroll.NameOverrides, len(doc.Overrides))
	written := make(map[string]string, len(doc.Overrides))
	for _, from := range slices.Sorted(maps.Keys(doc.Overrides)) {
		target := strings.TrimSpace(doc.Overrides[from])
		if target == "" {
			return nil, fmt.Errorf("parse %s: override for %q has an empty target", path, from)
		}
		key := string(payroll.Canonicalize(from, nil))
		if key == "" {
			return nil, fmt.Errorf("parse %s: override key %q is empty", path, from)
		}
		if key != strings.TrimSpace(from) {
			slog.Warn("name override key normalized", "file", path, "key", from, "canonical", key)
		}
		if prev, ok := out[key]; ok && prev != target {
			return nil, fmt.Errorf("parse %s: overrides %q and %q both normalize to %q with different targets", path, written[key], from, key)
		}
		out[key] = target
		written[key] = from
	}
	return out, nil
}

type policyDoc struct {
	Preset          string   `yaml:"preset"`
	Tier1Threshold  *float64 `yaml:"tier1_threshold"`
	Tier2Threshold  *float64 `yaml:"tier2_threshold"`
	Tier1Multiplier *float64 `yaml:"tier1_multiplier"`
	Tier2Multiplier *float64 `yaml:"tier2_multiplier"`
}

type policiesDoc struct {
	Default   string               `yaml:"default"`
	Policies  map[string]policyDoc `yaml:"policies"`
	Employees map[string]string    `yaml:"employees"`
}

// LoadPolicies reads overtime_policies.yaml. Policy references resolve
// against the file's named policies first, then the built-in presets. A
// missing file yields the defaultPolicy preset (california_daily when empty).
func LoadPolicies(path, defaultPolicy string) (payroll.PolicySet, error) {
	data, err := readOptional(path)
	if err != nil {
		return payroll.PolicySet{}, err
	}
	var doc policiesDoc
	if data != nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return payroll.PolicySet{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	named := make(map[string]payroll.OvertimePolicy, len(doc.Policies))
	for name, p := range doc.Policies {
		policy, err := p.build(name)
		if err != nil {
			return payroll.PolicySet{}, err
		}
		named[name] = policy
	}
	resolve := func(ref string) (payroll.OvertimePolicy, error) {
		if p, ok := named[ref]; ok {
			return p, nil
		}
		if p, ok := payroll.Preset(ref); ok {
			return p, nil
		}
		return payroll.OvertimePolicy{}, fmt.Errorf("unknown overtime policy %q", ref)
	}

	defaultName := defaultPolicy
	if defaultName == "" {
		defaultName = doc.Default
	}
	if defaultName == "" {
		defaultName = payroll.PolicyCaliforniaDaily
	}
	set := payroll.PolicySet{PerEmployee: map[payroll.CanonicalName]payroll.OvertimePolicy{}}
	if set.Default, err = resolve(defaultName); err != nil {
		return payroll.PolicySet{}, err
	}
	for name, ref := range doc.Employees {
		p, err := resolve(ref)
		if err != nil {
			return payroll.PolicySet{}, fmt.Errorf("employee %q: %w", name, err)
		}
		set.PerEmployee[payroll.Canonicalize(name, nil)] = p
	}
	if err := set.Validate(); err != nil {
		return payroll.PolicySet{}, err
	}
	return set, nil
}

// build starts from the named preset and applies the fields that are set.
// Without a preset every threshold and multiplier must be given.
func (d policyDoc) build(name string) (payroll.OvertimePolicy, error) {
	var p payroll.OvertimePolicy
	if d.Preset != "" {
		preset, ok := payroll.Preset(d.Preset)
		if !ok {
			return p, &payroll.PolicyError{Policy: name, Field: "preset", Reason: fmt.Sprintf("%q is not a known preset", d.Preset)}
		}
		p = preset
	} else {
		for _, field := range []struct {
			key string
			v   *float64
		}{
			{"tier1_threshold", d.Tier1Threshold},
			{"tier2_threshold", d.Tier2Threshold},
			{"tier1_multiplier", d.Tier1Multiplier},
			{"tier2_multiplier", d.Tier2Multiplier},
		} {
			if field.v == nil {
				return p, &payroll.PolicyError{Policy: name, Field: field.key, Reason: "is required when no preset is named"}
			}
		}
	}
	p.Name = name
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.Tier1Threshold, d.Tier1Threshold)
	set(&p.Tier2Threshold, d.Tier2Threshold)
	set(&p.Tier1Multiplier, d.Tier1Multiplier)
	set(&p.Tier2Multiplier, d.Tier2Multiplier)
	return p, p.Validate()
}

// LoadColumnAliases reads column_aliases.yaml; absent roles keep the
// defaults.
func LoadColumnAliases(path string) (payroll.ColumnAliases, error) {
	aliases := payroll.DefaultColumnAliases()
	data, err := readOptional(path)
	if err != nil || data == nil {
		return aliases, err
	}
	var doc payroll.ColumnAliases
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return aliases, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(doc.Name) > 0 {
		aliases.Name = doc.Name
	}
	if len(doc.Hours) > 0 {
		aliases.Hours = doc.Hours
	}
	if len(doc.Rate) > 0 {
		aliases.Rate = doc.Rate
	}
	return aliases, nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func bomReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte("\xef\xbb\xbf")) {
		_, _ = br.Discard(3)
	}
	return br
}

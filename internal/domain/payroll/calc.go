package payroll

import (
	"math"
	"sort"
)

// OvertimePolicy splits worked hours into three bands: up to Tier1Threshold at
// straight time, up to Tier2Threshold at Tier1Multiplier, and the remainder at
// Tier2Multiplier. An infinite Tier2Threshold disables the second band.
type OvertimePolicy struct {
	Name            string  `yaml:"name"`
	Tier1Threshold  float64 `yaml:"tier1_threshold"`
	Tier2Threshold  float64 `yaml:"tier2_threshold"`
	Tier1Multiplier float64 `yaml:"tier1_multiplier"`
	Tier2Multiplier float64 `yaml:"tier2_multiplier"`
}

func CaliforniaDaily() OvertimePolicy {
	return OvertimePolicy{
		Name:            PolicyCaliforniaDaily,
		Tier1Threshold:  8,
		Tier2Threshold:  12,
		Tier1Multiplier: 1.5,
		Tier2Multiplier: 2.0,
	}
}

// WBSStraightTime pays every hour at the base rate; hours past the threshold
// are still reported as overtime hours.
func WBSStraightTime(threshold float64) OvertimePolicy {
	return OvertimePolicy{
		Name:            PolicyWBSStraightTime,
		Tier1Threshold:  threshold,
		Tier2Threshold:  math.Inf(1),
		Tier1Multiplier: 1.0,
		Tier2Multiplier: 1.0,
	}
}

// Preset returns a built-in policy by name.
func Preset(name string) (OvertimePolicy, bool) {
	switch name {
	case PolicyCaliforniaDaily:
		return CaliforniaDaily(), true
	case PolicyWBSStraightTime:
		return WBSStraightTime(32), true
	}
	return OvertimePolicy{}, false
}

func (p OvertimePolicy) Validate() error {
	fail := func(field, reason string) error {
		return &PolicyError{Policy: p.Name, Field: field, Reason: reason}
	}
	if math.IsNaN(p.Tier1Threshold) || p.Tier1Threshold < 0 || math.IsInf(p.Tier1Threshold, 0) {
		return fail("tier1_threshold", "must be a finite non-negative number")
	}
	if math.IsNaN(p.Tier2Threshold) || p.Tier2Threshold < 0 {
		return fail("tier2_threshold", "must be non-negative")
	}
	if p.Tier1Threshold > p.Tier2Threshold {
		return fail("tier1_threshold", "must not exceed tier2_threshold")
	}
	if math.IsNaN(p.Tier1Multiplier) || p.Tier1Multiplier < 0 || math.IsInf(p.Tier1Multiplier, 0) {
		return fail("tier1_multiplier", "must be a finite non-negative number")
	}
	if math.IsNaN(p.Tier2Multiplier) || p.Tier2Multiplier < 0 || math.IsInf(p.Tier2Multiplier, 0) {
		return fail("tier2_multiplier", "must be a finite non-negative number")
	}
	return nil
}

// ApplyOvertime computes the tiered breakdown for h hours at rate. Zero or
// negative hours or rate yield an all-zero breakdown.
func ApplyOvertime(h, rate float64, policy OvertimePolicy) (OvertimeBreakdown, error) {
	if err := policy.Validate(); err != nil {
		return OvertimeBreakdown{}, err
	}
	if h <= 0 || rate <= 0 {
		return OvertimeBreakdown{}, nil
	}

	t1, t2 := policy.Tier1Threshold, policy.Tier2Threshold
	var b OvertimeBreakdown
	switch {
	case h <= t1:
		b.RegularHours = h
	case h <= t2:
		b.RegularHours = t1
		b.Tier1Hours = h - t1
	default:
		b.RegularHours = t1
		b.Tier1Hours = t2 - t1
		b.Tier2Hours = h - t2
	}

	b.RegularAmount = b.RegularHours * rate
	b.Tier1Amount = b.Tier1Hours * rate * policy.Tier1Multiplier
	b.Tier2Amount = b.Tier2Hours * rate * policy.Tier2Multiplier
	b.TotalAmount = b.RegularAmount + b.Tier1Amount + b.Tier2Amount
	return b, nil
}

// PolicySet resolves the overtime policy of each employee.
type PolicySet struct {
	Default     OvertimePolicy
	PerEmployee map[CanonicalName]OvertimePolicy
}

func (s PolicySet) Resolve(name CanonicalName) OvertimePolicy {
	if p, ok := s.PerEmployee[name]; ok {
		return p
	}
	return s.Default
}

// Validate checks every policy in the set, employee overrides in name order.
func (s PolicySet) Validate() error {
	if err := s.Default.Validate(); err != nil {
		return err
	}
	names := make([]string, 0, len(s.PerEmployee))
	for name := range s.PerEmployee {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.PerEmployee[CanonicalName(name)].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RoundCents rounds a currency amount half away from zero.
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

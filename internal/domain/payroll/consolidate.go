package payroll

import (
	"fmt"
	"iter"
)

// RatePolicy selects the representative rate of a consolidated employee.
type RatePolicy string

const (
	RateMode    RatePolicy = "mode"
	RateFirst   RatePolicy = "first"
	RateLast    RatePolicy = "last"
	RateAverage RatePolicy = "average"
)

func ParseRatePolicy(raw string) (RatePolicy, error) {
	switch RatePolicy(raw) {
	case "", RateMode:
		return RateMode, nil
	case RateFirst, RateLast, RateAverage:
		return RatePolicy(raw), nil
	}
	return "", fmt.Errorf("unknown rate policy %q", raw)
}

type Consolidation struct {
	Employees map[CanonicalName]*ConsolidatedEmployee
	// Order lists canonical names by first appearance in the input.
	Order []CanonicalName
	// Skipped holds raw names that canonicalized to an empty key.
	Skipped []string
}

type group struct {
	hours    float64
	rates    []float64
	rawNames []string
	seenRaw  map[string]bool
}

// Consolidate groups entries by canonical name, summing hours exactly and
// choosing one rate per group according to policy.
func Consolidate(entries iter.Seq[TimeEntry], overrides NameOverrides, policy RatePolicy) (*Consolidation, error) {
	groups := map[CanonicalName]*group{}
	out := &Consolidation{Employees: map[CanonicalName]*ConsolidatedEmployee{}}

	for entry := range entries {
		key := Canonicalize(entry.RawName, overrides)
		if key == "" {
			out.Skipped = append(out.Skipped, entry.RawName)
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &group{seenRaw: map[string]bool{}}
			groups[key] = g
			out.Order = append(out.Order, key)
		}
		g.hours += entry.Hours
		g.rates = append(g.rates, entry.Rate)
		if !g.seenRaw[entry.RawName] {
			g.seenRaw[entry.RawName] = true
			g.rawNames = append(g.rawNames, entry.RawName)
		}
	}

	for _, key := range out.Order {
		g := groups[key]
		if len(g.rates) == 0 {
			return nil, &ConsolidationError{CanonicalName: key}
		}
		out.Employees[key] = &ConsolidatedEmployee{
			CanonicalName: key,
			TotalHours:    g.hours,
			Rate:          pickRate(g.rates, policy),
			EntryCount:    len(g.rates),
			RawNames:      g.rawNames,
		}
	}
	return out, nil
}

func pickRate(rates []float64, policy RatePolicy) float64 {
	switch policy {
	case RateFirst:
		return rates[0]
	case RateLast:
		return rates[len(rates)-1]
	case RateAverage:
		var sum float64
		for _, r := range rates {
			sum += r
		}
		return sum / float64(len(rates))
	default:
		return modeRate(rates)
	}
}

// modeRate returns the most frequent rate; ties go to the rate seen first.
func modeRate(rates []float64) float64 {
	counts := make(map[float64]int, len(rates))
	best, bestCount := rates[0], 0
	for _, r := range rates {
		counts[r]++
	}
	for _, r := range rates {
		if counts[r] > bestCount {
			best, bestCount = r, counts[r]
		}
	}
	return best
}

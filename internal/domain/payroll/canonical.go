package payroll

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var commaSpacingRe = regexp.MustCompile(`\s*,\s*`)

// NameOverrides maps a reordered name to the roster spelling it stands for.
// Keys are matched exactly and case-sensitively against the cleaned, reordered
// name, so they must already be in canonical form.
type NameOverrides map[string]string

// Canonicalize derives the roster join key for a raw timesheet name:
//  1. NFC-normalize, strip periods, collapse whitespace, normalize comma spacing
//  2. names containing a comma are already "Last, First" and kept
//  3. otherwise "First Middle Last" becomes "Last, First Middle"
//  4. the result is replaced by its override target, if any
func Canonicalize(raw string, overrides NameOverrides) CanonicalName {
	cleaned := cleanName(raw)
	if cleaned == "" {
		return ""
	}

	reordered := cleaned
	if !strings.Contains(cleaned, ",") {
		tokens := strings.Fields(cleaned)
		if len(tokens) >= 2 {
			last := tokens[len(tokens)-1]
			reordered = last + ", " + strings.Join(tokens[:len(tokens)-1], " ")
		}
	}

	if target, ok := overrides[reordered]; ok {
		return CanonicalName(target)
	}
	return CanonicalName(reordered)
}

func cleanName(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Join(strings.Fields(s), " ")
	s = commaSpacingRe.ReplaceAllString(s, ", ")
	return strings.TrimSpace(s)
}

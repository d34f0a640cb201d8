package payroll

import "testing"

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		raw  string
		want CanonicalName
	}{
		{raw: "Jane Doe", want: "Doe, Jane"},
		{raw: "Doe, Jane", want: "Doe, Jane"},
		{raw: "Doe ,Jane", want: "Doe, Jane"},
		{raw: "  Mary   Ann  Smith ", want: "Smith, Mary Ann"},
		{raw: "J. R. Ewing", want: "Ewing, J R"},
		{raw: "Q Nobody", want: "Nobody, Q"},
		{raw: "Cher", want: "Cher"},
		{raw: "", want: ""},
		{raw: " . ", want: ""},
		{raw: "José Garcia", want: "Garcia, José"},
	}
	for _, tt := range tests {
		if got := Canonicalize(tt.raw, nil); got != tt.want {
			t.Fatalf("Canonicalize(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCanonicalizeAppliesOverrideAfterReorder(t *testing.T) {
	overrides := NameOverrides{"Carrasco, J": "Mateos, Daniel"}
	if got := Canonicalize("J Carrasco", overrides); got != "Mateos, Daniel" {
		t.Fatalf("expected override target, got %q", got)
	}
	if got := Canonicalize("Carrasco, J", overrides); got != "Mateos, Daniel" {
		t.Fatalf("expected override for already ordered name, got %q", got)
	}
	// Overrides are keyed on the reordered form only.
	if got := Canonicalize("J Carrasco", NameOverrides{"J Carrasco": "Mateos, Daniel"}); got != "Carrasco, J" {
		t.Fatalf("expected raw-form key to be ignored, got %q", got)
	}
}

func TestCanonicalizeIsDeterministic(t *testing.T) {
	overrides := NameOverrides{"Doe, Jane": "Doe-Smith, Jane"}
	first := Canonicalize("Jane  Doe", overrides)
	for range 50 {
		if got := Canonicalize("Jane  Doe", overrides); got != first {
			t.Fatalf("expected stable result %q, got %q", first, got)
		}
	}
}

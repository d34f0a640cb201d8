package payroll

import (
	"errors"
	"fmt"
)

var (
	ErrParse         = errors.New("timesheet parse failed")
	ErrConsolidation = errors.New("consolidation invariant violated")
	ErrPolicy        = errors.New("invalid overtime policy")
	ErrRoster        = errors.New("invalid roster")
)

// ParseError names the column role that could not be located.
type ParseError struct {
	Role   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("no %s column found: %s", e.Role, e.Reason)
	}
	return fmt.Sprintf("no %s column found", e.Role)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

type ConsolidationError struct {
	CanonicalName CanonicalName
}

func (e *ConsolidationError) Error() string {
	return fmt.Sprintf("empty consolidation group for %q", e.CanonicalName)
}

func (e *ConsolidationError) Is(target error) bool {
	return target == ErrConsolidation
}

type PolicyError struct {
	Policy string
	Field  string
	Reason string
}

func (e *PolicyError) Error() string {
	name := e.Policy
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("overtime policy %s: %s %s", name, e.Field, e.Reason)
}

func (e *PolicyError) Is(target error) bool {
	return target == ErrPolicy
}

type RosterError struct {
	CanonicalName CanonicalName
	Reason        string
}

func (e *RosterError) Error() string {
	return fmt.Sprintf("roster entry %q: %s", e.CanonicalName, e.Reason)
}

func (e *RosterError) Is(target error) bool {
	return target == ErrRoster
}

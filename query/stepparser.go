// Package query implements the safe analytical query layer: core metrics
// and breakdowns (spec §4.8), behavioral queries (spec §4.9), and the
// step-token grammar funnels and sequences are built from (spec §4.14).
package query

import (
	"fmt"
	"strings"

	"github.com/tomtom215/mallardmetrics/mmerr"
)

// StepKind distinguishes a page-path step from an event-name step.
type StepKind int

const (
	StepPage StepKind = iota
	StepEvent
)

// Step is one parsed funnel/sequence stage: a bound-safe SQL predicate
// fragment plus the literal value it compares against.
type Step struct {
	Kind    StepKind
	Column  string // "pathname" or "event_name" — closed enum, never user text
	Literal string // already quote-doubled, ready for single-quoted SQL
}

// ParseStep implements spec §4.14: `page:<path>` or `event:<name>`, with
// embedded single quotes doubled for safe SQL-literal interpolation.
// Anything else is rejected.
func ParseStep(token string) (Step, error) {
	switch {
	case strings.HasPrefix(token, "page:"):
		path := strings.TrimPrefix(token, "page:")
		return Step{Kind: StepPage, Column: "pathname", Literal: escapeLiteral(path)}, nil
	case strings.HasPrefix(token, "event:"):
		name := strings.TrimPrefix(token, "event:")
		return Step{Kind: StepEvent, Column: "event_name", Literal: escapeLiteral(name)}, nil
	default:
		return Step{}, mmerr.New(mmerr.ClientInvalid, fmt.Sprintf("invalid step token: %q", token))
	}
}

// ParseSteps parses a comma-separated step list.
func ParseSteps(raw string) ([]Step, error) {
	parts := strings.Split(raw, ",")
	steps := make([]Step, 0, len(parts))
	for _, p := range parts {
		step, err := ParseStep(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// escapeLiteral doubles embedded single quotes per spec §4.14/§4.15.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Predicate renders the step as a SQL condition fragment, e.g.
// `pathname = 'x'''`. Column is always one of a closed enum, never raw
// user text, so this never emits an unvetted identifier.
func (s Step) Predicate() string {
	return fmt.Sprintf("%s = '%s'", s.Column, s.Literal)
}

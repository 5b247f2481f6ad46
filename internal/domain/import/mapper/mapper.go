// Package mapper holds the correspondence between a file's physical columns
// and the logical transaction fields, plus the advisory suggestion
// collaborators that seed it. The mapper enforces nothing: an incomplete
// mapping is shown to the user as-is, and all constraint checking lives in
// the row validator.
package mapper

import (
	"context"

	"github.com/nordbok/nordbok/internal/domain/import/parser"
)

// Field names the logical transaction fields a column can map to.
type Field string

const (
	FieldAccountingDate Field = "accounting_date"
	FieldAmount         Field = "amount"
	FieldReference      Field = "reference"
	FieldBookedBalance  Field = "booked_balance"
)

// Fields lists the logical fields in display order.
var Fields = []Field{FieldAccountingDate, FieldAmount, FieldReference, FieldBookedBalance}

// FieldMapping maps logical fields to physical column indices. A nil entry
// means the field is unmapped. Only the accounting date and the amount are
// required for commit, and even that is enforced by the validator, not here.
type FieldMapping struct {
	AccountingDate *int
	Amount         *int
	Reference      *int
	BookedBalance  *int
}

// Column returns the mapped column index for a field, or -1.
func (m FieldMapping) Column(f Field) int {
	var p *int
	switch f {
	case FieldAccountingDate:
		p = m.AccountingDate
	case FieldAmount:
		p = m.Amount
	case FieldReference:
		p = m.Reference
	case FieldBookedBalance:
		p = m.BookedBalance
	}
	if p == nil {
		return -1
	}
	return *p
}

// Set assigns a column index to a field. A negative index unmaps the field.
func (m *FieldMapping) Set(f Field, col int) {
	var p **int
	switch f {
	case FieldAccountingDate:
		p = &m.AccountingDate
	case FieldAmount:
		p = &m.Amount
	case FieldReference:
		p = &m.Reference
	case FieldBookedBalance:
		p = &m.BookedBalance
	default:
		return
	}
	if col < 0 {
		*p = nil
		return
	}
	c := col
	*p = &c
}

// InBounds reports whether every mapped column references a valid index for
// the given header count.
func (m FieldMapping) InBounds(columns int) bool {
	for _, f := range Fields {
		if col := m.Column(f); col >= columns {
			return false
		}
	}
	return true
}

// FieldSuggestion carries one advisory guess: a column index and a
// confidence in [0,1]. Confidence is displayed to the user, never enforced.
type FieldSuggestion struct {
	Column     int
	Confidence float64
}

// Suggestion is the tagged result of a suggestion collaborator.
type Suggestion struct {
	// Available is false when the collaborator failed or declined; the
	// caller then falls back to manual mapping with an empty FieldMapping.
	Available bool
	Fields    map[Field]FieldSuggestion
}

// Unavailable is the fallback Suggestion when a collaborator fails.
func Unavailable() Suggestion {
	return Suggestion{Available: false}
}

// Suggester proposes a column mapping from headers and sample rows. It is an
// unreliable oracle: implementations may guess wrong or fail, and callers
// must treat the result as advisory only.
type Suggester interface {
	Suggest(ctx context.Context, headers []string, sampleRows [][]string) Suggestion
}

// Seed builds a FieldMapping from the highest-confidence suggestion per
// field, skipping fields with no guess. Two fields never share a column;
// on a collision the higher-confidence field keeps it.
func Seed(s Suggestion) FieldMapping {
	var m FieldMapping
	if !s.Available {
		return m
	}

	taken := map[int]Field{}
	for _, f := range Fields {
		guess, ok := s.Fields[f]
		if !ok || guess.Column < 0 {
			continue
		}
		if prev, clash := taken[guess.Column]; clash {
			if s.Fields[prev].Confidence >= guess.Confidence {
				continue
			}
			m.Set(prev, -1)
		}
		taken[guess.Column] = f
		m.Set(f, guess.Column)
	}
	return m
}

// SampleLimit caps how many rows are handed to suggestion collaborators.
const SampleLimit = 10

// Samples extracts up to SampleLimit rows for the suggestion call.
func Samples(table *parser.ParsedTable) [][]string {
	if table == nil {
		return nil
	}
	n := len(table.Rows)
	if n > SampleLimit {
		n = SampleLimit
	}
	return table.Rows[:n]
}

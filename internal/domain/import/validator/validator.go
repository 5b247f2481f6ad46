// Package validator applies a field mapping to tokenized rows and produces
// one candidate transaction per row, unconditionally. Rows are never dropped
// and nothing here returns an error for bad data: problems become
// field-level annotations the review surface shows to the user.
package validator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nordbok/nordbok/internal/domain/import/mapper"
	"github.com/nordbok/nordbok/internal/domain/import/normalizer"
	"github.com/nordbok/nordbok/internal/domain/import/parser"
)

// Config carries the locale settings validation needs.
type Config struct {
	DecimalSeparator normalizer.DecimalSeparator
}

// CandidateTransaction is one row's validation outcome. It lives only for
// the duration of the import session.
type CandidateTransaction struct {
	RowIndex       int
	AccountingDate string // canonical YYYY-MM-DD, empty when missing/malformed
	Amount         *decimal.Decimal
	Reference      string
	BookedBalance  *decimal.Decimal
	Errors         []string

	// Set by the duplicate detector, not here.
	IsDuplicate        bool
	FirstOccurrenceRow int
}

// Valid reports whether the row can be selected for commit.
func (c *CandidateTransaction) Valid() bool {
	return len(c.Errors) == 0 && c.AccountingDate != "" && c.Amount != nil
}

// ValidateTable runs ValidateRow over every row of the table.
func ValidateTable(table *parser.ParsedTable, m mapper.FieldMapping, cfg Config) []CandidateTransaction {
	candidates := make([]CandidateTransaction, 0, len(table.Rows))
	for i, row := range table.Rows {
		candidates = append(candidates, ValidateRow(i, row, m, cfg))
	}
	return candidates
}

// ValidateRow is a pure function of (row, mapping, config). Missing and
// malformed values get distinct error messages; the reference and booked
// balance are best-effort and never block acceptance.
func ValidateRow(rowIndex int, row []string, m mapper.FieldMapping, cfg Config) CandidateTransaction {
	c := CandidateTransaction{RowIndex: rowIndex, FirstOccurrenceRow: -1}

	// Accounting date: required for commit.
	switch raw := cell(row, m.Column(mapper.FieldAccountingDate)); {
	case m.Column(mapper.FieldAccountingDate) < 0:
		c.Errors = append(c.Errors, "accounting date: no column mapped")
	case raw == "":
		c.Errors = append(c.Errors, "accounting date: missing")
	default:
		date, ok := normalizer.NormalizeDate(raw)
		if !ok {
			c.Errors = append(c.Errors, fmt.Sprintf("accounting date: malformed value %q", raw))
			break
		}
		c.AccountingDate = date
	}

	// Amount: required for commit.
	switch raw := cell(row, m.Column(mapper.FieldAmount)); {
	case m.Column(mapper.FieldAmount) < 0:
		c.Errors = append(c.Errors, "amount: no column mapped")
	case raw == "":
		c.Errors = append(c.Errors, "amount: missing")
	default:
		amount, ok := normalizer.NormalizeAmount(raw, cfg.DecimalSeparator)
		if !ok {
			c.Errors = append(c.Errors, fmt.Sprintf("amount: malformed value %q", raw))
			break
		}
		c.Amount = &amount
	}

	// Reference: optional, cleaned for display.
	c.Reference = normalizer.CleanReference(cell(row, m.Column(mapper.FieldReference)))

	// Booked balance: optional, silently ignored when unparseable.
	if raw := cell(row, m.Column(mapper.FieldBookedBalance)); raw != "" {
		if balance, ok := normalizer.NormalizeAmount(raw, cfg.DecimalSeparator); ok {
			c.BookedBalance = &balance
		}
	}

	return c
}

// cell reads a column defensively: unmapped columns and short rows both
// yield the empty string.
func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

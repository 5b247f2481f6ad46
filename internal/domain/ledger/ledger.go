// Package ledger holds the double-entry types shared by the SIE import path
// and manually entered journal entries, and the balance invariant both must
// satisfy before anything is committed.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

// BalanceEpsilon is the tolerance for the debit/credit balance check, in
// currency units. Rounding differences below one öre are accepted; anything
// larger is a correctness error that is never auto-adjusted.
var BalanceEpsilon = decimal.RequireFromString("0.01")

// Line is one posting line of a journal entry.
type Line struct {
	AccountNumber string
	AccountName   string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Description   string
}

// Entry is one accounting event: a dated, described set of posting lines.
type Entry struct {
	Date        string // canonical YYYY-MM-DD
	Description string
	Lines       []Line
}

var (
	ErrNoLines     = errors.New("journal entry has no posting lines")
	ErrNotBalanced = errors.New("journal entry does not balance")
)

// Imbalance returns total debit minus total credit.
func Imbalance(lines []Line) decimal.Decimal {
	debit := decimal.Zero
	credit := decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit.Sub(credit)
}

// Balanced reports whether total debit equals total credit within
// BalanceEpsilon. This is the load-bearing invariant of the whole import
// pipeline; the committer re-checks it server-side regardless of what the
// client already verified.
func Balanced(lines []Line) bool {
	return Imbalance(lines).Abs().LessThan(BalanceEpsilon)
}

// Validate checks an entry for commit eligibility.
func (e *Entry) Validate() error {
	if len(e.Lines) == 0 {
		return ErrNoLines
	}
	if !Balanced(e.Lines) {
		return ErrNotBalanced
	}
	return nil
}

// WithholdingFunc computes payroll tax withholding from a gross pay and a
// tax table identifier. The real table lookup is supplied by an external
// collaborator; this package only fixes the signature.
type WithholdingFunc func(grossPay decimal.Decimal, taxTable string) (decimal.Decimal, error)

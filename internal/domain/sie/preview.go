package sie

import (
	"github.com/shopspring/decimal"

	"github.com/nordbok/nordbok/internal/domain/ledger"
)

// VerificationCandidate is one verification as shown on the review surface.
// Unbalanced candidates are flagged and excluded from the default selection;
// the user can inspect them but the committer re-checks the invariant and
// refuses them unless explicitly forced.
type VerificationCandidate struct {
	Verification
	Balanced  bool
	Imbalance decimal.Decimal
	Selected  bool
}

// Preview is the reviewable result of parsing one SIE file.
type Preview struct {
	CompanyName string
	OrgNumber   string
	FiscalYear  *FiscalYear
	Candidates  []VerificationCandidate
	Accounts    []Account
	Errors      []string
	Warnings    []string
}

// SelectedCount returns how many candidates are currently selected.
func (p *Preview) SelectedCount() int {
	n := 0
	for _, c := range p.Candidates {
		if c.Selected {
			n++
		}
	}
	return n
}

// BuildPreview evaluates the balance invariant for every verification and
// builds the default selection: balanced verifications in, everything else
// out.
func BuildPreview(doc *Document) *Preview {
	p := &Preview{
		CompanyName: doc.CompanyName,
		OrgNumber:   doc.OrgNumber,
		Accounts:    doc.Accounts,
		Errors:      doc.Errors,
		Warnings:    doc.Warnings,
	}
	if fy, ok := doc.FiscalYearCurrent(); ok {
		p.FiscalYear = &fy
	}

	p.Candidates = make([]VerificationCandidate, 0, len(doc.Verifications))
	for _, v := range doc.Verifications {
		balanced := ledger.Balanced(v.Lines)
		p.Candidates = append(p.Candidates, VerificationCandidate{
			Verification: v,
			Balanced:     balanced,
			Imbalance:    ledger.Imbalance(v.Lines),
			Selected:     balanced && len(v.Lines) > 0,
		})
	}
	return p
}

// Package dedup flags duplicate transactions by exact fingerprint match.
// No fuzzy matching: reference text is compared case-insensitively with
// collapsed whitespace, but differing dates or amounts are never duplicates.
package dedup

import (
	"strings"

	"github.com/nordbok/nordbok/internal/domain/import/normalizer"
	"github.com/nordbok/nordbok/internal/domain/import/validator"
)

// Fingerprint derives the dedup key for a candidate:
// date | amount fixed to two decimals | lowercased whitespace-collapsed
// reference. It is undefined (ok=false) when date or amount is missing,
// and such candidates are excluded from duplicate detection entirely.
func Fingerprint(c *validator.CandidateTransaction) (string, bool) {
	if c.AccountingDate == "" || c.Amount == nil {
		return "", false
	}
	ref := strings.ToLower(normalizer.CleanReference(c.Reference))
	return c.AccountingDate + "|" + c.Amount.StringFixed(2) + "|" + ref, true
}

// MarkBatch annotates intra-batch duplicates in place: a single linear pass
// mapping fingerprint to the first row that produced it. Later rows with the
// same fingerprint are flagged and point at that first occurrence.
func MarkBatch(candidates []validator.CandidateTransaction) {
	seen := make(map[string]int, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		fp, ok := Fingerprint(c)
		if !ok {
			continue
		}
		if first, dup := seen[fp]; dup {
			c.IsDuplicate = true
			c.FirstOccurrenceRow = first
			continue
		}
		seen[fp] = c.RowIndex
	}
}

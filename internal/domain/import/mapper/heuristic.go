package mapper

import (
	"context"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/nordbok/nordbok/internal/domain/import/normalizer"
)

// Header keywords per logical field, Swedish first. Matching is
// case-insensitive; fuzzy ranking catches abbreviated or decorated variants
// like "Bokf.datum" or "Belopp (SEK)".
var fieldKeywords = map[Field][]string{
	FieldAccountingDate: {"bokföringsdatum", "transaktionsdag", "transaktionsdatum", "datum", "date", "bokf datum", "valutadatum"},
	FieldAmount:         {"belopp", "amount", "summa", "belopp sek"},
	FieldReference:      {"referens", "text", "meddelande", "rubrik", "beskrivning", "mottagare", "reference", "description", "specifikation"},
	FieldBookedBalance:  {"saldo", "bokfört saldo", "balance", "disponibelt belopp"},
}

// HeuristicSuggester guesses the column mapping from header names and sample
// values. It is the offline fallback when no model collaborator is
// configured, and the baseline the model suggestion is compared against.
type HeuristicSuggester struct{}

// NewHeuristicSuggester returns a header/sample based suggester.
func NewHeuristicSuggester() *HeuristicSuggester {
	return &HeuristicSuggester{}
}

// Suggest never fails; with no headers and no samples it simply returns no
// field guesses (still Available, so the seed is an empty mapping).
func (h *HeuristicSuggester) Suggest(_ context.Context, headers []string, sampleRows [][]string) Suggestion {
	s := Suggestion{Available: true, Fields: map[Field]FieldSuggestion{}}

	for _, field := range Fields {
		col, conf := h.matchHeader(field, headers)
		if col < 0 {
			col, conf = sniffSamples(field, headers, sampleRows)
		}
		if col >= 0 {
			s.Fields[field] = FieldSuggestion{Column: col, Confidence: conf}
		}
	}
	return s
}

// matchHeader ranks every header against the field's keywords. Exact matches
// score highest; otherwise the best Levenshtein rank wins.
func (h *HeuristicSuggester) matchHeader(field Field, headers []string) (int, float64) {
	bestCol := -1
	bestConf := 0.0

	for i, header := range headers {
		cleaned := strings.ToLower(strings.TrimSpace(header))
		if cleaned == "" {
			continue
		}
		for _, kw := range fieldKeywords[field] {
			if cleaned == kw {
				return i, 0.95
			}
			if strings.Contains(cleaned, kw) {
				if 0.8 > bestConf {
					bestCol, bestConf = i, 0.8
				}
				continue
			}
			rank := fuzzy.RankMatchNormalizedFold(kw, cleaned)
			if rank < 0 {
				continue
			}
			// Shorter edit distance relative to keyword length scores higher.
			conf := 0.6 * (1.0 - float64(rank)/float64(len(kw)+1))
			if conf > bestConf {
				bestCol, bestConf = i, conf
			}
		}
	}
	return bestCol, bestConf
}

// sniffSamples falls back to content shape: a column whose samples parse as
// dates suggests the accounting date, numeric samples suggest the amount.
// Confidence is deliberately low; content sniffing cannot tell the amount
// from the booked balance, so the rightmost numeric column is assumed to be
// the balance (bank exports list it last) and the first one the amount.
func sniffSamples(field Field, headers []string, sampleRows [][]string) (int, float64) {
	columns := len(headers)
	for _, row := range sampleRows {
		if len(row) > columns {
			columns = len(row)
		}
	}

	switch field {
	case FieldAccountingDate:
		for col := 0; col < columns; col++ {
			if columnShare(sampleRows, col, isDate) >= 0.8 {
				return col, 0.5
			}
		}
	case FieldAmount:
		for col := 0; col < columns; col++ {
			if columnShare(sampleRows, col, isNumeric) >= 0.8 && !mostlyDates(sampleRows, col) {
				return col, 0.4
			}
		}
	case FieldBookedBalance:
		for col := columns - 1; col >= 0; col-- {
			if columnShare(sampleRows, col, isNumeric) >= 0.8 && !mostlyDates(sampleRows, col) {
				return col, 0.3
			}
		}
	}
	return -1, 0
}

func columnShare(rows [][]string, col int, pred func(string) bool) float64 {
	total, hits := 0, 0
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		total++
		if pred(v) {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func mostlyDates(rows [][]string, col int) bool {
	return columnShare(rows, col, isDate) >= 0.8
}

func isDate(v string) bool {
	_, ok := normalizer.NormalizeDate(v)
	return ok
}

func isNumeric(v string) bool {
	if _, ok := normalizer.NormalizeAmount(v, normalizer.DecimalComma); ok {
		return true
	}
	_, ok := normalizer.NormalizeAmount(v, normalizer.DecimalDot)
	return ok
}

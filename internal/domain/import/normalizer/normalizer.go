// Package normalizer converts locale-formatted date and amount strings into
// canonical values. All functions are pure and total: malformed input yields
// a not-ok result, never a panic and never a silently coerced zero.
package normalizer

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// DecimalSeparator configures amount parsing for the file's locale.
type DecimalSeparator rune

const (
	DecimalComma DecimalSeparator = ',' // Swedish convention: 1 234,56
	DecimalDot   DecimalSeparator = '.' // 1,234.56
)

// dateLayouts are tried in order. Two-digit years use the yyPivot below.
var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"02/01/06",
}

// yyPivot: two-digit years below it land in the 2000s, at or above in the 1900s.
const yyPivot = 50

// NormalizeDate parses the supported bank date formats into canonical
// YYYY-MM-DD. The parsed date must round-trip, which rejects impossible
// calendar dates such as 2023-02-30.
func NormalizeDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if layout == "02/01/06" {
			t = applyPivot(t)
		}
		if t.Format(layout) != raw {
			// time.Parse normalizes overflowing components; a mismatch on
			// re-format means the input was not a real calendar date.
			continue
		}
		return t.Format("2006-01-02"), true
	}
	return "", false
}

func applyPivot(t time.Time) time.Time {
	year := t.Year()
	yy := year % 100
	if yy < yyPivot {
		year = 2000 + yy
	} else {
		year = 1900 + yy
	}
	return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NormalizeAmount parses a locale-formatted amount into a decimal. With a
// comma separator, whitespace and dots before the last comma are treated as
// thousand separators; with a dot separator, commas are stripped. Currency
// symbols and other noise are removed. Empty or unparseable input is not-ok.
func NormalizeAmount(raw string, sep DecimalSeparator) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}

	if sep == DecimalComma {
		s = stripWhitespace(s)
		if i := strings.LastIndex(s, ","); i >= 0 {
			s = strings.ReplaceAll(s[:i], ".", "") + "." + s[i+1:]
		}
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)

	if s == "" || s == "-" || s == "." || s == "-." {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanReference trims and collapses internal whitespace in free-text
// reference fields. Case is preserved for display; the duplicate detector
// lowercases separately.
func CleanReference(raw string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(raw), " ")
}

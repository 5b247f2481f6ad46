// Package sie parses the Swedish SIE accounting interchange format into
// verification candidates. The format is line-oriented and keyword-tagged;
// vendor extensions abound, so unknown keywords become warnings and
// malformed lines become errors while the parse still returns everything it
// could read.
package sie

import (
	"github.com/nordbok/nordbok/internal/domain/ledger"
)

// Dialect is the SIE sub-format, chosen once from the #FORMAT marker.
type Dialect int

const (
	// DialectPC8 is the standard-mandated IBM PC8 (code page 437) encoding
	// used by the older exports.
	DialectPC8 Dialect = iota
	// DialectUTF8 is the newer UTF-8 variant some systems emit.
	DialectUTF8
)

func (d Dialect) String() string {
	if d == DialectUTF8 {
		return "UTF8"
	}
	return "PC8"
}

// Account is one row of the chart of accounts (#KONTO).
type Account struct {
	Number string
	Name   string
	Type   string // K/T/S/I from #KTYP, empty when absent
}

// FiscalYear is one #RAR row. Index 0 is the current year, -1 the previous.
type FiscalYear struct {
	Index int
	Start string // canonical YYYY-MM-DD
	End   string
}

// Verification is one #VER block with its posting lines.
type Verification struct {
	Series      string
	Number      string
	Date        string // canonical YYYY-MM-DD
	Description string
	Lines       []ledger.Line
}

// SourceID identifies the verification within the source file.
func (v *Verification) SourceID() string {
	if v.Series == "" {
		return v.Number
	}
	return v.Series + "-" + v.Number
}

// Document is the format-agnostic result of parsing one SIE file. A partial
// parse is still a valid Document: Errors lists the lines that could not be
// read, Warnings the keywords that were skipped.
type Document struct {
	Dialect        Dialect
	SIEType        string // #SIETYP: "1".."4"
	Program        string
	ProgramVersion string
	CompanyName    string
	OrgNumber      string
	FiscalYears    []FiscalYear
	Accounts       []Account
	Verifications  []Verification
	Errors         []string
	Warnings       []string
}

// Account lookups are by number; names come from #KONTO when present.
func (d *Document) AccountName(number string) string {
	for _, a := range d.Accounts {
		if a.Number == number {
			return a.Name
		}
	}
	return ""
}

// FiscalYearCurrent returns the index-0 fiscal year if the file carried one.
func (d *Document) FiscalYearCurrent() (FiscalYear, bool) {
	for _, fy := range d.FiscalYears {
		if fy.Index == 0 {
			return fy, true
		}
	}
	return FiscalYear{}, false
}

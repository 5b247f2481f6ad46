package parser

import (
	"encoding/csv"
	"strings"

	"github.com/gocarina/gocsv"
)

func init() {
	// Bank exports disagree on header casing; match them case-insensitively.
	gocsv.SetHeaderNormalizer(func(h string) string {
		return strings.ToLower(strings.TrimSpace(h))
	})
}

// statementRow binds the header names Swedish banks actually use. gocsv
// matches by header name, so one struct covers the common exports without
// any manual column mapping.
type statementRow struct {
	// Date columns
	Bokforingsdatum   string `csv:"bokföringsdatum"`
	Transaktionsdag   string `csv:"transaktionsdag"`
	Transaktionsdatum string `csv:"transaktionsdatum"`
	Datum             string `csv:"datum"`
	Date              string `csv:"date"`

	// Amount columns
	Belopp string `csv:"belopp"`
	Amount string `csv:"amount"`

	// Reference columns
	Referens    string `csv:"referens"`
	Text        string `csv:"text"`
	Meddelande  string `csv:"meddelande"`
	Rubrik      string `csv:"rubrik"`
	Beskrivning string `csv:"beskrivning"`
	Reference   string `csv:"reference"`
	Description string `csv:"description"`

	// Booked balance columns
	Saldo        string `csv:"saldo"`
	BokfortSaldo string `csv:"bokfört saldo"`
	Balance      string `csv:"balance"`
}

// KnownLayout is the result of recognizing a bank export by its header names
// alone. Indices are -1 when the column is absent.
type KnownLayout struct {
	DateCol      int
	AmountCol    int
	ReferenceCol int
	BalanceCol   int
}

// Recognized reports whether the two commit-required columns were found.
func (l KnownLayout) Recognized() bool {
	return l.DateCol >= 0 && l.AmountCol >= 0
}

// RecognizeLayout runs the struct-tag parse over the file and, when at least
// one row binds a date and an amount, locates the matching physical columns.
// It is a zero-config fast path; the user can still override the mapping.
func RecognizeLayout(text string, separator rune, skipFirstLine bool) (KnownLayout, bool) {
	layout := KnownLayout{DateCol: -1, AmountCol: -1, ReferenceCol: -1, BalanceCol: -1}

	if skipFirstLine {
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		} else {
			return layout, false
		}
	}

	var rows []*statementRow
	if err := gocsv.UnmarshalCSV(lazyReader(text, separator), &rows); err != nil || len(rows) == 0 {
		return layout, false
	}

	bound := false
	for _, row := range rows {
		date := firstNonEmpty(row.Bokforingsdatum, row.Transaktionsdag, row.Transaktionsdatum, row.Datum, row.Date)
		amount := firstNonEmpty(row.Belopp, row.Amount)
		if date != "" && amount != "" {
			bound = true
			break
		}
	}
	if !bound {
		return layout, false
	}

	headers := Tokenize(text, separator, false).Headers
	for i, h := range headers {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "bokföringsdatum", "transaktionsdag", "transaktionsdatum", "datum", "date":
			if layout.DateCol < 0 {
				layout.DateCol = i
			}
		case "belopp", "amount":
			if layout.AmountCol < 0 {
				layout.AmountCol = i
			}
		case "referens", "text", "meddelande", "rubrik", "beskrivning", "reference", "description":
			if layout.ReferenceCol < 0 {
				layout.ReferenceCol = i
			}
		case "saldo", "bokfört saldo", "balance":
			if layout.BalanceCol < 0 {
				layout.BalanceCol = i
			}
		}
	}

	return layout, layout.Recognized()
}

func lazyReader(text string, separator rune) *csv.Reader {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = separator
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

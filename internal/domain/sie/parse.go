package sie

import (
	"bufio"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/nordbok/nordbok/internal/domain/ledger"
)

// Parse reads an SIE file into a Document. It never fails outright on bad
// content: malformed lines are collected in Errors, unknown keywords in
// Warnings, and whatever verifications were readable are returned.
func Parse(data []byte) *Document {
	dialect := detectDialect(data)
	text := decodeDialect(data, dialect)

	doc := &Document{Dialect: dialect}
	accountTypes := map[string]string{}

	var current *Verification
	inBlock := false
	lineNo := 0

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimRight(sc.Text(), "\r"))
		if line == "" {
			continue
		}

		if line == "{" {
			if current == nil {
				doc.Errors = append(doc.Errors, fmt.Sprintf("line %d: posting block without a preceding #VER", lineNo))
				continue
			}
			inBlock = true
			continue
		}
		if line == "}" {
			if current == nil {
				doc.Errors = append(doc.Errors, fmt.Sprintf("line %d: unmatched closing brace", lineNo))
				continue
			}
			doc.Verifications = append(doc.Verifications, *current)
			current = nil
			inBlock = false
			continue
		}

		words, err := splitWords(line)
		if err != nil {
			doc.Errors = append(doc.Errors, fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}
		if len(words) == 0 || !strings.HasPrefix(words[0], "#") {
			doc.Errors = append(doc.Errors, fmt.Sprintf("line %d: expected #keyword, got %q", lineNo, line))
			continue
		}

		keyword := words[0]
		args := words[1:]

		switch keyword {
		case "#FLAGGA", "#FORMAT", "#GEN", "#KPTYP", "#VALUTA", "#ADRESS", "#FNR", "#OMFATTN", "#TAXAR":
			// Preamble rows with nothing the pipeline needs.

		case "#PROGRAM":
			if len(args) >= 1 {
				doc.Program = args[0]
			}
			if len(args) >= 2 {
				doc.ProgramVersion = args[1]
			}

		case "#SIETYP":
			if len(args) >= 1 {
				doc.SIEType = args[0]
			}

		case "#ORGNR":
			if len(args) >= 1 {
				doc.OrgNumber = args[0]
			}

		case "#FNAMN":
			if len(args) >= 1 {
				doc.CompanyName = args[0]
			}

		case "#RAR":
			fy, err := parseFiscalYear(args)
			if err != nil {
				doc.Errors = append(doc.Errors, fmt.Sprintf("line %d: #RAR: %v", lineNo, err))
				continue
			}
			doc.FiscalYears = append(doc.FiscalYears, fy)

		case "#KONTO":
			if len(args) < 2 {
				doc.Errors = append(doc.Errors, fmt.Sprintf("line %d: #KONTO needs account number and name", lineNo))
				continue
			}
			doc.Accounts = append(doc.Accounts, Account{Number: args[0], Name: args[1], Type: accountTypes[args[0]]})

		case "#KTYP":
			if len(args) < 2 {
				doc.Errors = append(doc.Errors, fmt.Sprintf("line %d: #KTYP needs account number and type", lineNo))
				continue
			}
			accountTypes[args[0]] = args[1]
			for i := range doc.Accounts {
				if doc.Accounts[i].Number == args[0] {
					doc.Accounts[i].Type = args[1]
				}
			}

		case "#VER":
			if current != nil {
				// Previous block never closed; keep what it had.
				doc.Errors = append(doc.Errors, fmt.Sprintf("line %d: #VER while previous verification still open", lineNo))
				doc.Verifications = append(doc.Verifications, *current)
			}
			v, err := parseVerification(args)
			if err != nil {
				doc.Errors = append(doc.Errors, fmt.Sprintf("line %d: #VER: %v", lineNo, err))
				current = nil
				continue
			}
			current = v

		case "#TRANS":
			if current == nil || !inBlock {
				doc.Errors = append(doc.Errors, fmt.Sprintf("line %d: #TRANS outside a verification block", lineNo))
				continue
			}
			tline, err := parseTrans(args, doc)
			if err != nil {
				doc.Errors = append(doc.Errors, fmt.Sprintf("line %d: #TRANS: %v", lineNo, err))
				continue
			}
			current.Lines = append(current.Lines, tline)

		case "#BTRANS", "#RTRANS":
			// Reversed/added correction lines; legal but out of scope for
			// import previews. Surface as a warning so nothing is silent.
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("line %d: %s skipped", lineNo, keyword))

		case "#IB", "#UB", "#RES", "#SRU", "#ENHET", "#OBJEKT", "#DIM", "#UNDERDIM", "#PSALDO", "#PBUDGET", "#OIB", "#OUB":
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("line %d: %s not imported", lineNo, keyword))

		default:
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("line %d: unknown keyword %s", lineNo, keyword))
		}
	}

	if current != nil {
		doc.Errors = append(doc.Errors, "unterminated verification block at end of file")
		doc.Verifications = append(doc.Verifications, *current)
	}

	return doc
}

// detectDialect scans the raw bytes for the #FORMAT marker. SIE keywords are
// ASCII, so the scan works before the real decode.
func detectDialect(data []byte) Dialect {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#FORMAT") {
			continue
		}
		value := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(line, "#FORMAT")))
		if strings.HasPrefix(value, "UTF8") || strings.HasPrefix(value, "UTF-8") {
			return DialectUTF8
		}
		return DialectPC8
	}
	// No marker: UTF-8 input is taken at face value, anything else is
	// assumed to be the standard PC8 encoding.
	if utf8.Valid(data) {
		return DialectUTF8
	}
	return DialectPC8
}

func decodeDialect(data []byte, dialect Dialect) string {
	if dialect == DialectUTF8 {
		return string(data)
	}
	decoded, err := charmap.CodePage437.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

// parseFiscalYear reads "#RAR index start end".
func parseFiscalYear(args []string) (FiscalYear, error) {
	if len(args) < 3 {
		return FiscalYear{}, fmt.Errorf("needs index, start and end date")
	}
	index := 0
	if _, err := fmt.Sscanf(args[0], "%d", &index); err != nil {
		return FiscalYear{}, fmt.Errorf("bad year index %q", args[0])
	}
	start, err := parseSIEDate(args[1])
	if err != nil {
		return FiscalYear{}, err
	}
	end, err := parseSIEDate(args[2])
	if err != nil {
		return FiscalYear{}, err
	}
	return FiscalYear{Index: index, Start: start, End: end}, nil
}

// parseVerification reads "#VER series number date description [regdate]".
func parseVerification(args []string) (*Verification, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("needs series, number and date")
	}
	date, err := parseSIEDate(args[2])
	if err != nil {
		return nil, err
	}
	v := &Verification{Series: args[0], Number: args[1], Date: date}
	if len(args) >= 4 {
		v.Description = args[3]
	}
	return v, nil
}

// parseTrans reads "#TRANS account {objects} amount [date] [description]".
// Positive amounts are debits, negative amounts credits.
func parseTrans(args []string, doc *Document) (ledger.Line, error) {
	if len(args) < 3 {
		return ledger.Line{}, fmt.Errorf("needs account, object list and amount")
	}
	amount, err := decimal.NewFromString(args[2])
	if err != nil {
		return ledger.Line{}, fmt.Errorf("bad amount %q", args[2])
	}

	line := ledger.Line{
		AccountNumber: args[0],
		AccountName:   doc.AccountName(args[0]),
	}
	if amount.IsNegative() {
		line.Credit = amount.Neg()
	} else {
		line.Debit = amount
	}
	if len(args) >= 5 {
		line.Description = args[4]
	}
	return line, nil
}

// parseSIEDate converts the format's YYYYMMDD dates to canonical YYYY-MM-DD.
func parseSIEDate(raw string) (string, error) {
	t, err := time.Parse("20060102", raw)
	if err != nil {
		return "", fmt.Errorf("bad date %q", raw)
	}
	return t.Format("2006-01-02"), nil
}

// splitWords tokenizes one SIE line: fields are whitespace-separated,
// double quotes group a field (with \" escaping), and a {...} group is kept
// as one field with the braces stripped.
func splitWords(line string) ([]string, error) {
	var words []string
	var current strings.Builder
	inQuote := false
	inBrace := false
	escaped := false
	hasField := false

	flush := func() {
		if hasField {
			words = append(words, current.String())
			current.Reset()
			hasField = false
		}
	}

	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"' && !inBrace:
			if inQuote {
				inQuote = false
				// A closing quote always terminates the field, even when
				// empty ("" is a legal empty field).
				words = append(words, current.String())
				current.Reset()
				hasField = false
			} else {
				inQuote = true
				hasField = false
				current.Reset()
			}
		case r == '{' && !inQuote:
			if inBrace {
				return nil, fmt.Errorf("nested object list")
			}
			inBrace = true
			hasField = true
			current.Reset()
		case r == '}' && !inQuote:
			if !inBrace {
				return nil, fmt.Errorf("unmatched closing brace in field list")
			}
			inBrace = false
			words = append(words, strings.TrimSpace(current.String()))
			current.Reset()
			hasField = false
		case (r == ' ' || r == '\t') && !inQuote && !inBrace:
			flush()
		default:
			current.WriteRune(r)
			hasField = true
		}
	}

	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	if inBrace {
		return nil, fmt.Errorf("unterminated object list")
	}
	flush()

	return words, nil
}

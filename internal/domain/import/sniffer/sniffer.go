// Package sniffer inspects raw statement files and detects their encoding
// and structural dialect before any parsing happens. It never fails on
// malformed input: an unreadable file simply yields an empty result that the
// caller reports as an empty-file condition.
package sniffer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding identifies the character encoding used to decode the file.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingLatin1 Encoding = "iso-8859-1"
)

// Kind is the structural dialect of an uploaded file, chosen once here and
// dispatched on by the rest of the pipeline.
type Kind int

const (
	KindDelimited Kind = iota // CSV/TSV bank export
	KindSIE                   // SIE accounting interchange file
)

// Format holds everything detected about a raw file.
type Format struct {
	Kind          Kind
	Encoding      Encoding
	Separator     rune
	SkipFirstLine bool // true when the first line is a sep= directive
	Text          string
}

// sniffLines is how many leading lines the delimiter counter looks at.
const sniffLines = 5

// Detect decodes the raw bytes and determines the file's dialect.
func Detect(data []byte) Format {
	text, encoding := decode(data)

	if looksLikeSIE(text) {
		return Format{Kind: KindSIE, Encoding: encoding, Text: text}
	}

	sep, skipFirst := detectSeparator(text)
	return Format{
		Kind:          KindDelimited,
		Encoding:      encoding,
		Separator:     sep,
		SkipFirstLine: skipFirst,
		Text:          text,
	}
}

// decode attempts UTF-8 first and falls back to Latin-1 when the bytes are
// not valid UTF-8. Swedish bank exports are commonly ISO 8859-1 encoded.
func decode(data []byte) (string, Encoding) {
	data = stripBOM(data)
	if utf8.Valid(data) {
		return string(data), EncodingUTF8
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		// Latin-1 decoding cannot actually fail; keep the lossy UTF-8
		// interpretation rather than dropping the file.
		return string(data), EncodingUTF8
	}
	return string(decoded), EncodingLatin1
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// looksLikeSIE reports whether the text starts with an SIE keyword line.
// Every SIE file opens with #FLAGGA per the standard, but some exporters
// reorder the preamble so any #KEYWORD first line is accepted.
func looksLikeSIE(text string) bool {
	for _, line := range strings.SplitN(text, "\n", 4) {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#") || len(line) < 2 {
			return false
		}
		keyword := line[1:]
		if i := strings.IndexFunc(keyword, unicode.IsSpace); i >= 0 {
			keyword = keyword[:i]
		}
		if keyword == "" {
			return false
		}
		for _, r := range keyword {
			if !unicode.IsUpper(r) && !unicode.IsDigit(r) {
				return false
			}
		}
		return true
	}
	return false
}

// detectSeparator finds the field separator for a delimited file. An explicit
// sep=X directive on the first line wins; otherwise the most frequent of
// ';', ',' and tab across the first lines is chosen, preferring ';' on ties
// (Swedish locale convention).
func detectSeparator(text string) (rune, bool) {
	lines := strings.Split(text, "\n")

	if len(lines) > 0 {
		if sep, ok := parseSepDirective(lines[0]); ok {
			return sep, true
		}
	}

	counts := map[rune]int{';': 0, ',': 0, '\t': 0}
	for i, line := range lines {
		if i >= sniffLines {
			break
		}
		for _, sep := range []rune{';', ',', '\t'} {
			counts[sep] += strings.Count(line, string(sep))
		}
	}

	best := ';'
	for _, sep := range []rune{';', ',', '\t'} {
		if counts[sep] > counts[best] {
			best = sep
		}
	}
	return best, false
}

// parseSepDirective recognizes the "sep=X" first line some banks (and Excel)
// emit ahead of the header row.
func parseSepDirective(line string) (rune, bool) {
	line = strings.TrimSpace(strings.TrimRight(line, "\r"))
	if len(line) < len("sep=")+1 {
		return 0, false
	}
	if !strings.EqualFold(line[:4], "sep=") {
		return 0, false
	}
	rest := []rune(line[4:])
	if len(rest) != 1 {
		return 0, false
	}
	return rest[0], true
}

// HeaderFingerprint hashes the normalized header names so a confirmed column
// mapping can be remembered and pre-filled next time the same bank's export
// is uploaded.
func HeaderFingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	joined := strings.Join(normalized, "|")
	hash := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(hash[:])
}

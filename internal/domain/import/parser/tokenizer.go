// Package parser turns decoded statement text into tabular form. The
// tokenizer is a pure function over (text, separator); it tolerates ragged
// rows and leaves all semantic validation to the row validator.
package parser

import (
	"encoding/csv"
	"io"
	"strings"
)

// ParsedTable is the tokenized form of a delimited file. Rows are not
// guaranteed to have the same width as Headers; malformed exports routinely
// ship short or long rows and downstream code indexes defensively.
type ParsedTable struct {
	Delimiter rune
	Headers   []string
	Rows      [][]string
}

// Empty reports whether the table carries no usable content.
func (t *ParsedTable) Empty() bool {
	return t == nil || (len(t.Headers) == 0 && len(t.Rows) == 0)
}

// Column returns up to max non-empty sample values from one column, for the
// mapping confirmation UI and the suggestion collaborators.
func (t *ParsedTable) Column(index, max int) []string {
	if index < 0 {
		return nil
	}
	samples := make([]string, 0, max)
	for _, row := range t.Rows {
		if index >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[index]); v != "" {
			samples = append(samples, v)
			if len(samples) >= max {
				break
			}
		}
	}
	return samples
}

// Tokenize splits text into a header row and data rows, honouring
// double-quote quoting and doubled-quote escaping. Blank lines are dropped.
// skipFirstLine discards a leading sep= directive line. An empty or
// unparseable input yields an empty table, never an error.
func Tokenize(text string, separator rune, skipFirstLine bool) *ParsedTable {
	table := &ParsedTable{Delimiter: separator}

	if skipFirstLine {
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		} else {
			text = ""
		}
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = separator
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A row the csv reader cannot recover belongs to nobody;
			// skip it rather than aborting the whole file.
			continue
		}
		if isBlank(record) {
			continue
		}
		if table.Headers == nil {
			headers := make([]string, len(record))
			for i, h := range record {
				headers[i] = strings.TrimSpace(h)
			}
			table.Headers = headers
			continue
		}
		table.Rows = append(table.Rows, record)
	}

	return table
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"unicode/utf8"

	"github.com/JonMunkholm/facturador/internal/core"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const sniffLines = 10

// decodeCSV reads delimited text. Every cell is a string; blank cells are nil
// so that empty rows are recognized downstream.
func decodeCSV(data []byte) (core.RawTable, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = toUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	table := make(core.RawTable, len(records))
	for i, rec := range records {
		row := make([]any, len(rec))
		for j, v := range rec {
			if v != "" {
				row[j] = v
			}
		}
		table[i] = row
	}
	return table, nil
}

// toUTF8 re-decodes files saved by spreadsheet tools in Windows-1252.
func toUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return out
}

// sniffDelimiter picks ';', tab or ',' by counting them outside quotes over
// the first sniffLines non-empty lines. Comma wins ties.
func sniffDelimiter(data []byte) rune {
	counts := map[rune]int{}
	seen := 0
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		inQuotes := false
		for _, r := range string(line) {
			switch {
			case r == '"':
				inQuotes = !inQuotes
			case inQuotes:
			case r == ';', r == '\t', r == ',':
				counts[r]++
			}
		}
		if seen++; seen == sniffLines {
			break
		}
	}

	best := ','
	for _, d := range []rune{';', '\t'} {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

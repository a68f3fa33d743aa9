// Package spreadsheet decodes uploaded invoice files into raw cell tables.
//
// XLSX workbooks are read with excelize; anything that is not a zip archive
// is treated as delimited text. Only the first sheet of a workbook is read.
package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/JonMunkholm/facturador/internal/core"
	"github.com/xuri/excelize/v2"
)

// zipMagic is the signature of every xlsx file.
var zipMagic = []byte("PK\x03\x04")

// Decoder implements core.Decoder.
type Decoder struct{}

// New returns a Decoder.
func New() Decoder { return Decoder{} }

// Decode returns the first sheet of data as a RawTable.
func (Decoder) Decode(fileName string, data []byte) (core.RawTable, error) {
	return Decode(fileName, data)
}

// Decode sniffs the content and dispatches to the xlsx or csv reader. The
// file name is only used in error messages.
func Decode(fileName string, data []byte) (core.RawTable, error) {
	if len(data) == 0 {
		return nil, core.ErrEmptyFile
	}
	if bytes.HasPrefix(data, zipMagic) {
		table, err := decodeXLSX(data)
		if err != nil && !errors.Is(err, core.ErrNoSheets) {
			return nil, fmt.Errorf("invalid spreadsheet %q: %w", fileName, err)
		}
		return table, err
	}
	table, err := decodeCSV(data)
	if err != nil {
		return nil, fmt.Errorf("parse csv %q: %w", fileName, err)
	}
	return table, nil
}

func decodeXLSX(data []byte) (core.RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, core.ErrNoSheets
	}
	sheet := sheets[0]

	// Raw values keep date serials and full-precision numbers intact.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	table := make(core.RawTable, len(rows))
	for r, row := range rows {
		cells := make([]any, len(row))
		for c, raw := range row {
			if raw == "" {
				continue
			}
			cells[c] = typedCell(f, sheet, c+1, r+1, raw)
		}
		table[r] = cells
	}
	return table, nil
}

// typedCell converts a raw xlsx value according to its stored cell type.
func typedCell(f *excelize.File, sheet string, col, row int, raw string) any {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}
	typ, err := f.GetCellType(sheet, ref)
	if err != nil {
		return raw
	}

	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || raw == "TRUE" || raw == "true"
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		// Untyped cells are numeric in the file format.
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
		return raw
	default:
		return raw
	}
}

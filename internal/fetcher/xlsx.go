package fetcher

import (
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/reconcile-cli/internal/table"
)

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	HeaderRow  int    // 0-indexed row holding column names
}

// ReadXLSX parses workbook bytes into a dataset.
func ReadXLSX(data []byte, opts XLSXOptions) (*table.Dataset, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}
	return readWorkbook(f, opts)
}

func readWorkbook(f *xlsx.File, opts XLSXOptions) (*table.Dataset, error) {
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if opts.HeaderRow >= len(sheet.Rows) {
		return nil, eris.Errorf("xlsx: header row %d out of range (sheet %q has %d rows)", opts.HeaderRow, sheet.Name, len(sheet.Rows))
	}

	header := make([]string, 0)
	if hr := sheet.Rows[opts.HeaderRow]; hr != nil {
		for _, c := range hr.Cells {
			header = append(header, cellValue(c, f.Date1904).Text())
		}
	}

	var rows [][]table.Value
	for _, row := range sheet.Rows[opts.HeaderRow+1:] {
		if row == nil {
			continue
		}
		vals := make([]table.Value, len(row.Cells))
		for j, c := range row.Cells {
			vals[j] = cellValue(c, f.Date1904)
		}
		rows = append(rows, vals)
	}

	ds, err := assemble(header, rows)
	return ds, eris.Wrapf(err, "xlsx: build dataset from sheet %q", sheet.Name)
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

// cellValue converts a cell: empty → null, numeric → number or date by
// number format, booleans → "true"/"false", everything else → string.
func cellValue(c *xlsx.Cell, date1904 bool) table.Value {
	if c == nil || c.Value == "" {
		return table.Null()
	}
	switch c.Type() {
	case xlsx.CellTypeNumeric:
		n, err := c.Float()
		if err != nil {
			return table.String(c.Value)
		}
		if isDateFormat(c.GetNumberFormat()) {
			if t, err := c.GetTime(date1904); err == nil {
				return table.Date(t)
			}
		}
		return table.Number(n)
	case xlsx.CellTypeDate:
		if t, err := c.GetTime(date1904); err == nil {
			return table.Date(t)
		}
		return table.String(c.Value)
	case xlsx.CellTypeBool:
		return table.String(strconv.FormatBool(c.Bool()))
	default:
		return table.String(c.Value)
	}
}

// isDateFormat reports whether an Excel number format renders a date or
// time. Quoted literals, escaped characters and bracketed sections such as
// colors or locales are ignored.
func isDateFormat(format string) bool {
	f := strings.ToLower(format)
	if f == "" || f == "general" || f == "@" {
		return false
	}
	var b strings.Builder
	inQuote, inBracket, escaped := false, false, false
	for _, r := range f {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case inQuote:
			inQuote = r != '"'
		case r == '"':
			inQuote = true
		case inBracket:
			inBracket = r != ']'
		case r == '[':
			inBracket = true
		default:
			b.WriteRune(r)
		}
	}
	return strings.ContainsAny(b.String(), "ydhs")
}

// WriteXLSX writes ds as a single-sheet workbook with a header row. Null
// cells are left empty.
func WriteXLSX(w io.Writer, sheetName string, ds *table.Dataset) error {
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "xlsx: add sheet %q", sheetName)
	}

	header := sheet.AddRow()
	for _, col := range ds.Schema() {
		header.AddCell().SetString(col)
	}

	for i := range ds.Len() {
		row := sheet.AddRow()
		for _, v := range ds.Row(i) {
			cell := row.AddCell()
			switch v.Kind() {
			case table.KindString:
				s, _ := v.Str()
				cell.SetString(s)
			case table.KindNumber:
				n, _ := v.Float()
				cell.SetFloat(n)
			case table.KindDate:
				t, _ := v.Time()
				cell.SetDateTime(t)
			}
		}
	}

	return eris.Wrap(f.Write(w), "xlsx: write workbook")
}

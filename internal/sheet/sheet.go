// Package sheet turns uploaded spreadsheets into import rows and writes the
// catalog back out as a workbook.
//
// CSV files are streamed through a BOM stripper and a UTF-8 sanitizer; XLSX
// files are read with excelize. Both locate the header within the first
// [MaxHeaderSearchRows] rows and map Spanish or English labels to fields.
// Cell anomalies never fail a parse: unreadable numbers become "not
// supplied" and negative quantities are clipped to zero.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/spares/internal/inventory"
)

// DefaultMaxFileSize caps uploads at 20MB.
const DefaultMaxFileSize int64 = 20 << 20

var (
	ErrFileTooLarge      = errors.New("file too large")
	ErrEmptyFile         = errors.New("empty file")
	ErrNoHeader          = errors.New("header not found")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Format is a supported file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromName picks the format from a file extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Options tunes a parse.
type Options struct {
	// MaxSize is the largest accepted input in bytes; <= 0 uses DefaultMaxFileSize.
	MaxSize int64
	// Size is the declared input size, when known, for progress reporting.
	Size int64
}

func (o Options) maxSize() int64 {
	if o.MaxSize <= 0 {
		return DefaultMaxFileSize
	}
	return o.MaxSize
}

// Result is a parsed sheet.
type Result struct {
	Format Format
	// Sheet is the worksheet the rows came from; empty for CSV.
	Sheet     string
	HeaderRow int
	Columns   Columns
	Rows      []inventory.ImportRow
	Skipped   int // blank rows
}

// Parse reads a spreadsheet, choosing the format from name.
func Parse(name string, r io.Reader, opts Options) (*Result, error) {
	format, err := FormatFromName(name)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatXLSX:
		return ParseXLSX(r, opts)
	default:
		return ParseCSV(r, opts)
	}
}

// numberParser converts a numeric cell.
type numberParser func(string) (decimal.Decimal, bool)

// buildRows maps the data rows following the header. lines[i] is the 1-based
// file line of records[i].
func buildRows(records [][]string, lines []int, num numberParser) (*Result, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	limit := min(MaxHeaderSearchRows, len(records))
	headerIdx := -1
	var cols Columns
	for i := 0; i < limit; i++ {
		if c, ok := matchHeader(records[i]); ok {
			headerIdx, cols = i, c
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w in the first %d rows (expected a code column plus description, value or quantity)", ErrNoHeader, limit)
	}

	res := &Result{HeaderRow: lines[headerIdx], Columns: cols}
	for i := headerIdx + 1; i < len(records); i++ {
		row := records[i]
		if isEmptyRow(row) {
			res.Skipped++
			continue
		}
		res.Rows = append(res.Rows, toImportRow(row, cols, lines[i], num))
	}
	return res, nil
}

func toImportRow(row []string, cols Columns, line int, num numberParser) inventory.ImportRow {
	out := inventory.ImportRow{
		Line:          line,
		PrimaryCode:   cols.cell(row, FieldPrimaryCode),
		SecondaryCode: cols.cell(row, FieldSecondaryCode),
		Description:   cols.cell(row, FieldDescription),
	}
	if v, ok := num(cols.cell(row, FieldUnitValue)); ok {
		if v.IsNegative() {
			v = decimal.Zero
		}
		out.UnitValue = &v
	}
	if v, ok := num(cols.cell(row, FieldQuantity)); ok {
		q := inventory.ClampQuantity(v)
		out.Quantity = &q
	}
	return out
}

var numberNoise = strings.NewReplacer("$", "", "€", "", "USD", "", "CLP", "", " ", "", "\u00a0", "")

// ParseNumber reads a number the way people type them in spreadsheets:
// currency symbols are ignored and both "1,234.50" and "1.234,50" are
// accepted. A single separator followed by exactly three digits is taken as
// a thousands separator.
func ParseNumber(s string) (decimal.Decimal, bool) {
	s = numberNoise.Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Decimal{}, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 && lastDot > 0 && !strings.HasPrefix(s, "0.") {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

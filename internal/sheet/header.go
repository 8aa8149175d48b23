package sheet

import (
	"strings"
)

// MaxHeaderSearchRows is how many leading rows are scanned for the header.
// Exports often start with a title block.
var MaxHeaderSearchRows = 20

// Field is a column the importer understands.
type Field int

const (
	FieldPrimaryCode Field = iota
	FieldSecondaryCode
	FieldDescription
	FieldUnitValue
	FieldQuantity
	fieldCount
)

func (f Field) String() string {
	switch f {
	case FieldPrimaryCode:
		return "primaryCode"
	case FieldSecondaryCode:
		return "secondaryCode"
	case FieldDescription:
		return "description"
	case FieldUnitValue:
		return "unitValue"
	case FieldQuantity:
		return "quantity"
	default:
		return "unknown"
	}
}

// headerAliases maps folded header labels to fields. Labels are matched after
// foldHeader, so accents and case do not matter.
var headerAliases = map[string]Field{
	"codigo":            FieldPrimaryCode,
	"codigo sap":        FieldPrimaryCode,
	"cod sap":           FieldPrimaryCode,
	"sap":               FieldPrimaryCode,
	"codigo principal":  FieldPrimaryCode,
	"code":              FieldPrimaryCode,
	"primary code":      FieldPrimaryCode,
	"part number":       FieldPrimaryCode,
	"codigo secundario": FieldSecondaryCode,
	"codigo alterno":    FieldSecondaryCode,
	"codigo fabricante": FieldSecondaryCode,
	"referencia":        FieldSecondaryCode,
	"secondary code":    FieldSecondaryCode,
	"alt code":          FieldSecondaryCode,
	"reference":         FieldSecondaryCode,
	"descripcion":       FieldDescription,
	"detalle":           FieldDescription,
	"description":       FieldDescription,
	"valor unitario":    FieldUnitValue,
	"precio unitario":   FieldUnitValue,
	"valor":             FieldUnitValue,
	"precio":            FieldUnitValue,
	"unit value":        FieldUnitValue,
	"unit price":        FieldUnitValue,
	"price":             FieldUnitValue,
	"cantidad":          FieldQuantity,
	"cant":              FieldQuantity,
	"quantity":          FieldQuantity,
	"qty":               FieldQuantity,
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

// foldHeader lower-cases a header cell, strips accents and punctuation, and
// collapses whitespace.
func foldHeader(s string) string {
	s = accentFolder.Replace(strings.ToLower(cleanCell(s)))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', ':', '_', '-', '/', '(', ')', '#':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Columns holds the position of each known field in a row, -1 when absent.
type Columns [fieldCount]int

// Has reports whether the sheet carries field f.
func (c Columns) Has(f Field) bool { return c[f] >= 0 }

func (c Columns) cell(row []string, f Field) string {
	i := c[f]
	if i < 0 || i >= len(row) {
		return ""
	}
	return cleanCell(row[i])
}

// matchHeader maps a candidate header row. It is a header when it names a
// code column and at least one other known field. The first occurrence of a
// field wins.
func matchHeader(row []string) (Columns, bool) {
	var cols Columns
	for i := range cols {
		cols[i] = -1
	}
	found := 0
	for i, cell := range row {
		f, ok := headerAliases[foldHeader(cell)]
		if !ok || cols[f] >= 0 {
			continue
		}
		cols[f] = i
		found++
	}
	hasCode := cols.Has(FieldPrimaryCode) || cols.Has(FieldSecondaryCode)
	return cols, hasCode && found >= 2
}

// cleanCell removes spreadsheet artifacts: surrounding whitespace, the
// ="..." text-forcing formula and stray quotes.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}
	return strings.TrimSpace(strings.Trim(s, `"'`))
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

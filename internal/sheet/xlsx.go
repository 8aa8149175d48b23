package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/spares/internal/inventory"
)

// CatalogSheet is the worksheet name used by WriteCatalogXLSX.
const CatalogSheet = "Catalogo"

// ParseXLSX reads the first worksheet that carries a recognizable header.
// Workbooks are small enough to be read whole.
func ParseXLSX(r io.Reader, opts Options) (*Result, error) {
	limit := opts.maxSize()
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, tooLarge(limit)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable workbook: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sawRows := false
	var lastErr error
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		if len(rows) == 0 {
			continue
		}
		sawRows = true

		lines := make([]int, len(rows))
		for i := range lines {
			lines[i] = i + 1
		}
		res, err := buildRows(rows, lines, parseCellNumber)
		if errors.Is(err, ErrNoHeader) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		res.Format = FormatXLSX
		res.Sheet = name
		return res, nil
	}
	if !sawRows {
		return nil, ErrEmptyFile
	}
	return nil, lastErr
}

// parseCellNumber prefers the raw stored value and falls back to the lenient
// parser for numbers typed as text.
func parseCellNumber(s string) (decimal.Decimal, bool) {
	if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
		return d, true
	}
	return ParseNumber(s)
}

var catalogHeader = []any{
	"ID",
	"Código",
	"Código secundario",
	"Descripción",
	"Valor unitario",
	"Cant. solicitada (histórica)",
	"Cant. stock (histórica)",
	"Contextos",
	"Total",
}

// WriteCatalogXLSX writes items as a single-sheet workbook. The header uses
// the same labels the importer recognizes, so an export can be re-imported
// as a catalog file.
func WriteCatalogXLSX(w io.Writer, items []inventory.Item) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", CatalogSheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(CatalogSheet)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", catalogHeader); err != nil {
		return err
	}
	for i, it := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			it.ID,
			it.PrimaryCode,
			it.SecondaryCode,
			it.Description,
			it.UnitValue.InexactFloat64(),
			it.LegacyRequestedQty,
			it.LegacyStockQty,
			formatContexts(it.Contexts),
			it.DerivedTotal.InexactFloat64(),
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

// formatContexts renders assignments as "name (kind): qty; ...".
func formatContexts(cs []inventory.ContextAssignment) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = fmt.Sprintf("%s (%s): %d", c.Name, c.Kind, c.Quantity)
	}
	return strings.Join(parts, "; ")
}

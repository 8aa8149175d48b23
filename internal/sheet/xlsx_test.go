package sheet

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/spares/internal/inventory"
)

func workbook(t *testing.T, sheets map[string][][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseXLSX_NumericCells(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Stock": {
			{"Conteo bodega central"},
			{"Fecha: enero"},
			{"Código", "Descripción", "Valor unitario", "Cantidad"},
			{"A1", "Rodamiento", 12.345, 4},
			{"B2", "Correa", "1.234,50", -2},
		},
	})

	res, err := ParseXLSX(buf, Options{})
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, res.Format)
	assert.Equal(t, "Stock", res.Sheet)
	assert.Equal(t, 3, res.HeaderRow)
	require.Len(t, res.Rows, 2)

	a := res.Rows[0]
	assert.Equal(t, 4, a.Line)
	require.NotNil(t, a.UnitValue)
	assert.True(t, a.UnitValue.Equal(decimal.RequireFromString("12.345")), "raw numeric cell kept: %s", a.UnitValue)
	require.NotNil(t, a.Quantity)
	assert.Equal(t, 4, *a.Quantity)

	b := res.Rows[1]
	require.NotNil(t, b.UnitValue)
	assert.True(t, b.UnitValue.Equal(decimal.RequireFromString("1234.50")), "text cell parsed leniently: %s", b.UnitValue)
	require.NotNil(t, b.Quantity)
	assert.Equal(t, 0, *b.Quantity)
}

func TestParseXLSX_NoHeaderOrEmpty(t *testing.T) {
	noHeader := workbook(t, map[string][][]any{"Hoja1": {{"a", "b"}, {1, 2}}})
	_, err := ParseXLSX(noHeader, Options{})
	assert.ErrorIs(t, err, ErrNoHeader)

	empty := workbook(t, map[string][][]any{"Hoja1": {}})
	_, err = ParseXLSX(empty, Options{})
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = ParseXLSX(bytes.NewReader([]byte("not a zip")), Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ParseXLSX(bytes.NewReader(nil), Options{})
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestWriteCatalogXLSX_RoundTrip(t *testing.T) {
	at := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	items := []inventory.Item{
		{
			ID:            "it-1",
			PrimaryCode:   "A1",
			SecondaryCode: "R-100",
			Description:   "Rodamiento 6204",
			UnitValue:     decimal.NewFromInt(10),
			Contexts: []inventory.ContextAssignment{
				{Name: "Req-Jan", Kind: inventory.KindRequest, Quantity: 5, AssignedAt: at},
				{Name: "Bodega", Kind: inventory.KindStock, Quantity: 3, AssignedAt: at},
			},
			DerivedTotal: decimal.NewFromInt(80),
		},
		{
			ID:            "it-2",
			PrimaryCode:   "pendiente",
			SecondaryCode: "pendiente",
			Description:   "Bolt",
			UnitValue:     decimal.RequireFromString("2.5"),
			Contexts:      []inventory.ContextAssignment{},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCatalogXLSX(&buf, items))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{CatalogSheet}, f.GetSheetList())

	rows, err := f.GetRows(CatalogSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Req-Jan (request): 5; Bodega (stock): 3", rows[1][7])

	res, err := ParseXLSX(bytes.NewReader(buf.Bytes()), Options{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.False(t, res.Columns.Has(FieldQuantity), "export carries no import quantity column")

	assert.Equal(t, "A1", res.Rows[0].PrimaryCode)
	assert.Equal(t, "R-100", res.Rows[0].SecondaryCode)
	assert.Equal(t, "Rodamiento 6204", res.Rows[0].Description)
	require.NotNil(t, res.Rows[0].UnitValue)
	assert.True(t, res.Rows[0].UnitValue.Equal(decimal.NewFromInt(10)))

	assert.Equal(t, "Bolt", res.Rows[1].Description)
	require.NotNil(t, res.Rows[1].UnitValue)
	assert.True(t, res.Rows[1].UnitValue.Equal(decimal.RequireFromString("2.5")))
}

package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/spares/internal/core"
	"github.com/JonMunkholm/spares/internal/inventory"
)

func TestImportSummary(t *testing.T) {
	tests := []struct {
		name string
		res  core.ImportResult
		want []string
	}{
		{
			name: "context import",
			res:  core.ImportResult{ImportID: "imp-1", Context: "Req <Ene>", Kind: inventory.KindRequest, Source: "req.csv", Rows: 4, Created: 1, Updated: 2, Unchanged: 1},
			want: []string{
				`data-import-id="imp-1"`,
				"Importación: Req &lt;Ene&gt; (request)",
				"<dt>Creados</dt><dd>1</dd>",
				"<dt>Actualizados</dt><dd>2</dd>",
				"<dt>Sin cambios</dt><dd>1</dd>",
			},
		},
		{
			name: "catalog import",
			res:  core.ImportResult{ImportID: "imp-2", Source: `"catalogo".xlsx`, Rows: 3, RowsNotAttempted: 3},
			want: []string{
				"Importación: catálogo",
				"&#34;catalogo&#34;.xlsx",
				"<dt>No aplicadas</dt><dd>3</dd>",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, ImportSummary(&tt.res).Render(context.Background(), &buf))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestErrorAlert(t *testing.T) {
	msg := core.UserMessage{Message: "Store <down>", Action: "Retry", Code: "STORE002"}

	var buf bytes.Buffer
	require.NoError(t, ErrorAlert(msg, nil).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), `role="alert"`)
	assert.Contains(t, buf.String(), "Store &lt;down&gt;")
	assert.Contains(t, buf.String(), "<small>STORE002</small>")
	assert.NotContains(t, buf.String(), "import-result")

	buf.Reset()
	partial := &core.ImportResult{ImportID: "imp-3", Rows: 3, Created: 1, RowsNotAttempted: 2}
	require.NoError(t, ErrorAlert(msg, partial).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), `data-import-id="imp-3"`)
	assert.Contains(t, buf.String(), "<dt>No aplicadas</dt><dd>2</dd>")
}

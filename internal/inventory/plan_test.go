package inventory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

func testPlanner() *Planner {
	return &Planner{Now: func() time.Time { return testNow }}
}

func qty(n int) *int { return &n }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestPlan_ContextImportScenarios(t *testing.T) {
	keys := NewKeys("")
	item := Item{
		ID:          "it-1",
		PrimaryCode: "A1",
		UnitValue:   decimal.NewFromInt(10),
		Contexts:    []ContextAssignment{},
	}
	target := ContextTarget("Req-Jan", KindRequest)

	plan, err := testPlanner().Plan(
		[]ImportRow{{Line: 2, PrimaryCode: "A1", Quantity: qty(5)}},
		BuildIndex([]Item{item}, keys),
		target,
	)
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	assert.Equal(t, 0, plan.Created())
	assert.Equal(t, 1, plan.Updated())

	after := plan.Operations[0].After
	require.Len(t, after.Contexts, 1)
	assert.Equal(t, "Req-Jan", after.Contexts[0].Name)
	assert.Equal(t, KindRequest, after.Contexts[0].Kind)
	assert.Equal(t, 5, after.Contexts[0].Quantity)
	assert.True(t, after.DerivedTotal.Equal(decimal.NewFromInt(50)), "total %s", after.DerivedTotal)

	// Re-import with a new quantity against the same context.
	plan, err = testPlanner().Plan(
		[]ImportRow{{Line: 2, PrimaryCode: "A1", Quantity: qty(8)}},
		BuildIndex([]Item{after}, keys),
		target,
	)
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	after = plan.Operations[0].After
	require.Len(t, after.Contexts, 1)
	assert.Equal(t, 8, after.Contexts[0].Quantity)
	assert.True(t, after.DerivedTotal.Equal(decimal.NewFromInt(80)), "total %s", after.DerivedTotal)
}

func TestPlan_PlaceholderRowCreatesItem(t *testing.T) {
	plan, err := testPlanner().Plan(
		[]ImportRow{{Line: 2, PrimaryCode: "pendiente", SecondaryCode: "pendiente", Description: "Bolt"}},
		BuildIndex(nil, NewKeys("")),
		CatalogTarget(),
	)
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)

	op := plan.Operations[0]
	assert.Equal(t, OpCreate, op.Kind)
	assert.Equal(t, "pendiente", op.After.PrimaryCode)
	assert.Equal(t, "pendiente", op.After.SecondaryCode)
	assert.Equal(t, "Bolt", op.After.Description)
	assert.Empty(t, op.After.Contexts)
	assert.Zero(t, op.After.LegacyRequestedQty)
	assert.Zero(t, op.After.LegacyStockQty)
}

func TestPlan_PlaceholderNeverMatches(t *testing.T) {
	existing := Item{ID: "it-1", PrimaryCode: "pendiente", SecondaryCode: "PENDIENTE", Description: "Old"}
	rows := []ImportRow{
		{Line: 2, PrimaryCode: "pendiente", Description: "Bolt"},
		{Line: 3, PrimaryCode: " Pendiente ", Description: "Nut"},
	}

	plan, err := testPlanner().Plan(rows, BuildIndex([]Item{existing}, NewKeys("")), CatalogTarget())
	require.NoError(t, err)
	require.Len(t, plan.Operations, 2)
	for _, op := range plan.Operations {
		assert.Equal(t, OpCreate, op.Kind)
		assert.Len(t, op.Lines, 1)
	}
	assert.Equal(t, "Bolt", plan.Operations[0].After.Description)
	assert.Equal(t, "Nut", plan.Operations[1].After.Description)
}

func TestPlan_NonDestructiveMerge(t *testing.T) {
	keys := NewKeys("")
	existing := Item{
		ID:            "it-1",
		PrimaryCode:   "A1",
		SecondaryCode: "pendiente",
		Description:   "Bearing 6204",
		UnitValue:     decimal.NewFromInt(12),
	}

	tests := []struct {
		name      string
		row       ImportRow
		wantOps   int
		wantDesc  string
		wantSec   string
		wantValue string
	}{
		{
			name:      "populated description kept",
			row:       ImportRow{Line: 2, PrimaryCode: "a1", Description: "Other text"},
			wantOps:   0,
			wantDesc:  "Bearing 6204",
			wantSec:   "pendiente",
			wantValue: "12",
		},
		{
			name:      "placeholder secondary filled",
			row:       ImportRow{Line: 2, PrimaryCode: "A1", SecondaryCode: "SAP-77"},
			wantOps:   1,
			wantDesc:  "Bearing 6204",
			wantSec:   "SAP-77",
			wantValue: "12",
		},
		{
			name:      "populated unit value kept",
			row:       ImportRow{Line: 2, PrimaryCode: "A1", UnitValue: dec("99.5")},
			wantOps:   0,
			wantDesc:  "Bearing 6204",
			wantSec:   "pendiente",
			wantValue: "12",
		},
		{
			name:      "placeholder in row does not overwrite",
			row:       ImportRow{Line: 2, PrimaryCode: "A1", Description: "pendiente"},
			wantOps:   0,
			wantDesc:  "Bearing 6204",
			wantSec:   "pendiente",
			wantValue: "12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := testPlanner().Plan([]ImportRow{tt.row}, BuildIndex([]Item{existing}, keys), CatalogTarget())
			require.NoError(t, err)
			require.Len(t, plan.Operations, tt.wantOps)

			got := existing
			if tt.wantOps > 0 {
				got = plan.Operations[0].After
			} else {
				assert.Equal(t, 1, plan.Unchanged)
			}
			assert.Equal(t, tt.wantDesc, got.Description)
			assert.Equal(t, tt.wantSec, got.SecondaryCode)
			assert.Equal(t, tt.wantValue, got.UnitValue.String())
		})
	}
}

func TestPlan_EmptyUnitValueFilled(t *testing.T) {
	existing := Item{ID: "it-1", PrimaryCode: "A1", Contexts: []ContextAssignment{
		{Name: "Stock-Dec", Kind: KindStock, Quantity: 3, AssignedAt: testNow.Add(-time.Hour)},
	}}
	plan, err := testPlanner().Plan(
		[]ImportRow{{Line: 2, PrimaryCode: "A1", UnitValue: dec("2.50")}},
		BuildIndex([]Item{existing}, NewKeys("")),
		CatalogTarget(),
	)
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)

	after := plan.Operations[0].After
	assert.Equal(t, "2.5", after.UnitValue.String())
	assert.Equal(t, "7.5", after.DerivedTotal.String())
	assert.Equal(t, existing.Contexts, after.Contexts, "catalog import must not touch contexts")
	assert.Equal(t, testNow, after.UpdatedAt)
}

func TestPlan_PrimaryWinsOnAmbiguousMatch(t *testing.T) {
	items := []Item{
		{ID: "by-primary", PrimaryCode: "P-1", SecondaryCode: "S-1"},
		{ID: "by-secondary", PrimaryCode: "P-2", SecondaryCode: "S-2"},
	}
	ix := BuildIndex(items, NewKeys(""))
	row := ImportRow{Line: 2, PrimaryCode: "p-1", SecondaryCode: "s-2", Quantity: qty(4)}

	pos, src := ix.Match(row)
	assert.Equal(t, 0, pos)
	assert.Equal(t, MatchPrimary, src)

	plan, err := testPlanner().Plan([]ImportRow{row}, ix, ContextTarget("Req-Feb", KindRequest))
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	assert.Equal(t, "by-primary", plan.Operations[0].After.ID)
	assert.Equal(t, MatchPrimary, plan.Operations[0].Match)
}

func TestPlan_SecondaryMatch(t *testing.T) {
	items := []Item{{ID: "it-1", PrimaryCode: "pendiente", SecondaryCode: "SAP-9"}}
	plan, err := testPlanner().Plan(
		[]ImportRow{{Line: 2, PrimaryCode: "A9", SecondaryCode: "sap-9", Quantity: qty(1)}},
		BuildIndex(items, NewKeys("")),
		ContextTarget("Stock-Jan", KindStock),
	)
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)

	op := plan.Operations[0]
	assert.Equal(t, OpUpdate, op.Kind)
	assert.Equal(t, MatchSecondary, op.Match)
	assert.Equal(t, "A9", op.After.PrimaryCode, "placeholder primary is filled from the row")
}

func TestPlan_DuplicateRowsFold(t *testing.T) {
	items := []Item{{ID: "it-1", PrimaryCode: "A1", UnitValue: decimal.NewFromInt(1)}}
	rows := []ImportRow{
		{Line: 2, PrimaryCode: "A1", Quantity: qty(2)},
		{Line: 3, PrimaryCode: "NEW-1", Quantity: qty(1)},
		{Line: 4, PrimaryCode: "A1", Quantity: qty(6)},
		{Line: 5, PrimaryCode: "new-1", SecondaryCode: "S-NEW", Quantity: qty(3)},
	}
	plan, err := testPlanner().Plan(rows, BuildIndex(items, NewKeys("")), ContextTarget("Req-Jan", KindRequest))
	require.NoError(t, err)
	require.Len(t, plan.Operations, 2)
	assert.Equal(t, 1, plan.Created())
	assert.Equal(t, 1, plan.Updated())
	assert.Equal(t, 4, plan.Rows)

	upd := plan.Operations[0]
	assert.Equal(t, []int{2, 4}, upd.Lines)
	require.Len(t, upd.After.Contexts, 1)
	assert.Equal(t, 6, upd.After.Contexts[0].Quantity, "last row wins")

	create := plan.Operations[1]
	assert.Equal(t, []int{3, 5}, create.Lines)
	assert.Equal(t, "S-NEW", create.After.SecondaryCode)
	require.Len(t, create.After.Contexts, 1)
	assert.Equal(t, 3, create.After.Contexts[0].Quantity)
}

func TestPlan_UnchangedQuantityIsNoOp(t *testing.T) {
	assigned := testNow.Add(-24 * time.Hour)
	items := []Item{{
		ID:          "it-1",
		PrimaryCode: "A1",
		Contexts:    []ContextAssignment{{Name: "Req-Jan", Kind: KindRequest, Quantity: 5, AssignedAt: assigned}},
	}}
	plan, err := testPlanner().Plan(
		[]ImportRow{{Line: 2, PrimaryCode: "A1", Quantity: qty(5)}},
		BuildIndex(items, NewKeys("")),
		ContextTarget("Req-Jan", KindRequest),
	)
	require.NoError(t, err)
	assert.Empty(t, plan.Operations)
	assert.Equal(t, 1, plan.Unchanged)
}

func TestPlan_NewItemSeedsContext(t *testing.T) {
	plan, err := testPlanner().Plan(
		[]ImportRow{{Line: 2, PrimaryCode: "Z9", UnitValue: dec("3"), Quantity: qty(-4)}},
		BuildIndex(nil, NewKeys("")),
		ContextTarget("Stock-Mar", KindStock),
	)
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)

	it := plan.Operations[0].After
	assert.Equal(t, "pendiente", it.SecondaryCode)
	require.Len(t, it.Contexts, 1)
	assert.Equal(t, ContextAssignment{Name: "Stock-Mar", Kind: KindStock, Quantity: 0, AssignedAt: testNow}, it.Contexts[0])
	assert.True(t, it.DerivedTotal.IsZero())
	assert.Equal(t, testNow, it.CreatedAt)
}

func TestPlan_InvalidTarget(t *testing.T) {
	tests := []struct {
		name   string
		target Target
	}{
		{name: "empty context name", target: ContextTarget("  ", KindRequest)},
		{name: "unknown kind", target: ContextTarget("Req-Jan", Kind("loan"))},
		{name: "no mode", target: Target{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testPlanner().Plan(nil, BuildIndex(nil, NewKeys("")), tt.target)
			assert.ErrorIs(t, err, ErrInvalidTarget)
		})
	}
}

func TestOperation_Patch(t *testing.T) {
	before := Item{ID: "it-1", PrimaryCode: "A1", Description: "", UnitValue: decimal.NewFromInt(2)}
	after := before.Clone()
	after.Description = "Filter"
	after.UpdatedAt = testNow

	patch := Operation{Kind: OpUpdate, Before: before, After: after}.Patch()
	assert.Equal(t, map[string]any{
		"description": "Filter",
		"updatedAt":   testNow,
	}, patch)
}

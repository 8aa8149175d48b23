package inventory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsert_Idempotent(t *testing.T) {
	var contexts []ContextAssignment
	first := Upsert(contexts, "Req-Jan", KindRequest, 5, testNow)
	second := Upsert(first, "Req-Jan", KindRequest, 5, testNow)

	assert.Equal(t, first, second)
	assert.Len(t, second, 1)
}

func TestUpsert_CopyOnWrite(t *testing.T) {
	orig := []ContextAssignment{
		{Name: "Req-Jan", Kind: KindRequest, Quantity: 1, AssignedAt: testNow.Add(-time.Hour)},
	}
	next := Upsert(orig, "Req-Jan", KindRequest, 9, testNow)

	assert.Equal(t, 1, orig[0].Quantity, "input list must not change")
	assert.Equal(t, 9, next[0].Quantity)
	assert.Equal(t, testNow, next[0].AssignedAt)
}

func TestUpsert_KindsCoexist(t *testing.T) {
	contexts := Upsert(nil, "Dec-2025", KindRequest, 4, testNow)
	contexts = Upsert(contexts, "Dec-2025", KindStock, 2, testNow)
	contexts = Upsert(contexts, "Dec-2025", KindRequest, -3, testNow)

	require.Len(t, contexts, 2)
	assert.Equal(t, 0, contexts[0].Quantity, "negative quantity clipped")
	assert.Equal(t, KindStock, contexts[1].Kind)
	assert.Equal(t, 2, contexts[1].Quantity)
}

func TestRenameContext(t *testing.T) {
	old := testNow.Add(-48 * time.Hour)
	items := []Item{
		{ID: "1", UnitValue: decimal.NewFromInt(2), Contexts: []ContextAssignment{{Name: "Req-Jan", Kind: KindRequest, Quantity: 3, AssignedAt: old}}},
		{ID: "2", Contexts: []ContextAssignment{{Name: "Stock-Jan", Kind: KindStock, Quantity: 1, AssignedAt: old}}},
		{ID: "3", Contexts: []ContextAssignment{{Name: "Req-Jan", Kind: KindStock, Quantity: 7, AssignedAt: old}}},
		{ID: "4", Contexts: []ContextAssignment{
			{Name: "Stock-Jan", Kind: KindStock, Quantity: 2, AssignedAt: old},
			{Name: "Req-Jan", Kind: KindRequest, Quantity: 1, AssignedAt: old},
		}},
	}

	updated := RenameContext(items, "Req-Jan", "Req-January", testNow)
	require.Len(t, updated, 3)

	ids := make([]string, 0, len(updated))
	for _, it := range updated {
		ids = append(ids, it.ID)
		assert.Equal(t, testNow, it.UpdatedAt)
		for _, c := range it.Contexts {
			assert.NotEqual(t, "Req-Jan", c.Name)
		}
	}
	assert.Equal(t, []string{"1", "3", "4"}, ids)

	assert.Equal(t, ContextAssignment{Name: "Req-January", Kind: KindRequest, Quantity: 3, AssignedAt: old}, updated[0].Contexts[0])
	assert.Equal(t, ContextAssignment{Name: "Req-January", Kind: KindStock, Quantity: 7, AssignedAt: old}, updated[1].Contexts[0])
	assert.Equal(t, "Stock-Jan", updated[2].Contexts[0].Name)
	assert.Equal(t, "6", updated[0].DerivedTotal.String())

	// originals untouched
	assert.Equal(t, "Req-Jan", items[0].Contexts[0].Name)
}

func TestRenameContext_Collision(t *testing.T) {
	items := []Item{{ID: "1", Contexts: []ContextAssignment{
		{Name: "Req-January", Kind: KindRequest, Quantity: 1},
		{Name: "Req-Jan", Kind: KindRequest, Quantity: 5},
		{Name: "Req-January", Kind: KindStock, Quantity: 2},
	}}}

	updated := RenameContext(items, "Req-Jan", "Req-January", testNow)
	require.Len(t, updated, 1)
	assert.Equal(t, []ContextAssignment{
		{Name: "Req-January", Kind: KindRequest, Quantity: 5},
		{Name: "Req-January", Kind: KindStock, Quantity: 2},
	}, updated[0].Contexts)
}

func TestRenameContext_SameName(t *testing.T) {
	items := []Item{{ID: "1", Contexts: []ContextAssignment{{Name: "A", Kind: KindRequest}}}}
	assert.Empty(t, RenameContext(items, "A", "A", testNow))
}

func TestRemoveContext(t *testing.T) {
	items := []Item{
		{ID: "1", UnitValue: decimal.NewFromInt(10), LegacyRequestedQty: 2, Contexts: []ContextAssignment{
			{Name: "Dec", Kind: KindRequest, Quantity: 3},
			{Name: "Dec", Kind: KindStock, Quantity: 1},
		}},
		{ID: "2", Contexts: []ContextAssignment{{Name: "Jan", Kind: KindRequest, Quantity: 3}}},
	}

	updated := RemoveContext(items, "Dec", testNow)
	require.Len(t, updated, 1)
	assert.Equal(t, "1", updated[0].ID)
	assert.Empty(t, updated[0].Contexts)
	assert.Equal(t, "20", updated[0].DerivedTotal.String(), "falls back to legacy quantities")
}

func TestSummarizeContexts(t *testing.T) {
	later := testNow.Add(time.Hour)
	items := []Item{
		{Contexts: []ContextAssignment{
			{Name: "Dec", Kind: KindRequest, Quantity: 3, AssignedAt: testNow},
			{Name: "Dec", Kind: KindStock, Quantity: 1, AssignedAt: later},
		}},
		{Contexts: []ContextAssignment{
			{Name: "Apr", Kind: KindStock, Quantity: 9, AssignedAt: testNow},
			{Name: "Dec", Kind: KindRequest, Quantity: 2, AssignedAt: testNow},
		}},
	}

	got := SummarizeContexts(items)
	assert.Equal(t, []ContextSummary{
		{Name: "Apr", Items: 1, StockQty: 9, LastAssigned: testNow},
		{Name: "Dec", Items: 2, RequestQty: 5, StockQty: 1, LastAssigned: later},
	}, got)
}

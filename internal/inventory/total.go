package inventory

import "github.com/shopspring/decimal"

// DeriveTotal computes the monetary total of an item.
//
// Context assignments of both kinds are summed (request and stock are
// separate events, not opposite signs). When that sum is zero the legacy
// requested and stock quantities are used instead, for items that predate
// contexts.
func DeriveTotal(it Item) decimal.Decimal {
	contextTotal := decimal.Zero
	for _, c := range it.Contexts {
		contextTotal = contextTotal.Add(it.UnitValue.Mul(decimal.NewFromInt(int64(c.Quantity))))
	}
	if contextTotal.IsPositive() {
		return contextTotal
	}
	requested := it.UnitValue.Mul(decimal.NewFromInt(int64(it.LegacyRequestedQty)))
	stock := it.UnitValue.Mul(decimal.NewFromInt(int64(it.LegacyStockQty)))
	return requested.Add(stock)
}

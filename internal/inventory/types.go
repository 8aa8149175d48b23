// Package inventory holds the reconciliation engine for the spare-parts catalog.
//
// Everything in this package is pure: it works on values handed to it by the
// caller (the current item snapshot, parsed spreadsheet rows) and returns new
// values. Persistence, the live subscription and history recording live in
// the core and store packages.
//
// # Flow
//
//  1. The caller builds an [Index] from the current snapshot with [BuildIndex]
//  2. [Planner.Plan] matches each [ImportRow] and emits create/update [Operation]s
//  3. The operations are handed to the batch executor (package core)
//
// # Contexts
//
// An item carries any number of named [ContextAssignment]s, each tagged with a
// [Kind]. The pair (name, kind) is unique per item; see [Upsert].
package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind tags a context assignment as a request tally or a stock count.
type Kind string

const (
	KindRequest Kind = "request"
	KindStock   Kind = "stock"
)

// ParseKind converts user input to a Kind. Matching is case-insensitive and
// accepts the Spanish labels used on the shop floor.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "request", "req", "solicitud", "pedido":
		return KindRequest, nil
	case "stock", "existencia", "inventario":
		return KindStock, nil
	default:
		return "", fmt.Errorf("unknown context kind %q (want request or stock)", s)
	}
}

// MaxQuantity caps a single quantity. Larger inputs are read as MaxQuantity.
const MaxQuantity = 1_000_000_000

var maxQuantity = decimal.NewFromInt(MaxQuantity)

// ClampQuantity converts q to a whole quantity in [0, MaxQuantity],
// dropping any fraction.
func ClampQuantity(q decimal.Decimal) int {
	switch {
	case q.Sign() <= 0:
		return 0
	case q.GreaterThanOrEqual(maxQuantity):
		return MaxQuantity
	}
	return int(q.IntPart())
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindRequest || k == KindStock
}

// ContextAssignment is one named, kind-tagged quantity attached to an item.
type ContextAssignment struct {
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	Quantity   int       `json:"quantity"`
	AssignedAt time.Time `json:"assignedAt"`
}

// Item is a catalog entry for one spare part.
type Item struct {
	ID                 string              `json:"id"`
	PrimaryCode        string              `json:"primaryCode"`
	SecondaryCode      string              `json:"secondaryCode"`
	Description        string              `json:"description"`
	UnitValue          decimal.Decimal     `json:"unitValue"`
	LegacyRequestedQty int                 `json:"legacyRequestedQty"`
	LegacyStockQty     int                 `json:"legacyStockQty"`
	Contexts           []ContextAssignment `json:"contexts"`
	DerivedTotal       decimal.Decimal     `json:"derivedTotal"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// Clone returns a copy of the item that shares no slices with the original.
func (it Item) Clone() Item {
	out := it
	if it.Contexts != nil {
		out.Contexts = make([]ContextAssignment, len(it.Contexts))
		copy(out.Contexts, it.Contexts)
	}
	return out
}

// Recompute refreshes DerivedTotal. Call it after any change to the unit
// value, the legacy quantities or the contexts.
func (it *Item) Recompute() {
	it.DerivedTotal = DeriveTotal(*it)
}

// Context returns the assignment for (name, kind), if present.
func (it Item) Context(name string, kind Kind) (ContextAssignment, bool) {
	for _, c := range it.Contexts {
		if c.Name == name && c.Kind == kind {
			return c, true
		}
	}
	return ContextAssignment{}, false
}

// ImportRow is one row handed over by the spreadsheet parser.
//
// UnitValue and Quantity are nil when the sheet has no such column or the
// cell is blank; catalog-only files carry no quantity at all.
type ImportRow struct {
	Line          int
	PrimaryCode   string
	SecondaryCode string
	Description   string
	UnitValue     *decimal.Decimal
	Quantity      *int
}

// Origin says who triggered a mutation. History is only recorded for
// OriginUser; restores replay earlier values and must not re-enter history.
type Origin string

const (
	OriginUser    Origin = "user"
	OriginRestore Origin = "restore"
)

package core

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/spares/internal/inventory"
	"github.com/JonMunkholm/spares/internal/logging"
	"github.com/JonMunkholm/spares/internal/sheet"
	"github.com/JonMunkholm/spares/internal/store"
)

// ItemEdit is a manual edit of one item. Nil fields are left alone. Unlike
// imports, an edit overwrites populated values.
type ItemEdit struct {
	PrimaryCode        *string
	SecondaryCode      *string
	Description        *string
	UnitValue          *decimal.Decimal
	LegacyRequestedQty *int
	LegacyStockQty     *int
}

func (e ItemEdit) apply(it *inventory.Item, keys inventory.Keys) {
	if e.PrimaryCode != nil {
		it.PrimaryCode = keys.OrPlaceholder(*e.PrimaryCode)
	}
	if e.SecondaryCode != nil {
		it.SecondaryCode = keys.OrPlaceholder(*e.SecondaryCode)
	}
	if e.Description != nil {
		it.Description = strings.TrimSpace(*e.Description)
	}
	if e.UnitValue != nil {
		it.UnitValue = *e.UnitValue
		if it.UnitValue.IsNegative() {
			it.UnitValue = decimal.Zero
		}
	}
	if e.LegacyRequestedQty != nil {
		it.LegacyRequestedQty = max(*e.LegacyRequestedQty, 0)
	}
	if e.LegacyStockQty != nil {
		it.LegacyStockQty = max(*e.LegacyStockQty, 0)
	}
	it.Recompute()
}

// CreateItem adds a single item outside of an import.
func (s *Service) CreateItem(ctx context.Context, edit ItemEdit) (inventory.Item, error) {
	now := s.now()
	it := inventory.Item{
		ID:            uuid.NewString(),
		PrimaryCode:   s.placeholder,
		SecondaryCode: s.placeholder,
		Contexts:      []inventory.ContextAssignment{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	edit.apply(&it, inventory.NewKeys(s.placeholder))

	rev, err := s.store.CommitBatch(ctx, []store.Mutation{
		{Kind: store.MutationCreate, ID: it.ID, Doc: it, Origin: inventory.OriginUser},
	})
	if err != nil {
		return inventory.Item{}, &ExternalStoreError{Op: "add", Err: err}
	}
	s.snapshot.MarkStale(rev)
	s.recordHistory(ctx, "", ActionItemCreate, inventory.OriginUser, []inventory.Operation{
		{Kind: inventory.OpCreate, After: it},
	})
	logging.FromContext(ctx).Info("item created", "item_id", it.ID, "primary_code", it.PrimaryCode)
	return it, nil
}

// UpdateItem applies a manual edit and writes only the changed fields.
func (s *Service) UpdateItem(ctx context.Context, id string, edit ItemEdit) (inventory.Item, error) {
	before, err := s.Item(ctx, id)
	if err != nil {
		return inventory.Item{}, err
	}
	after := before.Clone()
	edit.apply(&after, inventory.NewKeys(s.placeholder))

	op := inventory.Operation{Kind: inventory.OpUpdate, Before: before, After: after}
	if len(op.Changes()) == 0 {
		return before, nil
	}
	op.After.UpdatedAt = s.now()

	rev, err := s.store.CommitBatch(ctx, []store.Mutation{
		{Kind: store.MutationUpdate, ID: id, Patch: op.Patch(), Origin: inventory.OriginUser},
	})
	if err != nil {
		return inventory.Item{}, &ExternalStoreError{Op: "update", Err: err}
	}
	s.snapshot.MarkStale(rev)
	s.recordHistory(ctx, "", ActionItemEdit, inventory.OriginUser, []inventory.Operation{op})
	return op.After, nil
}

// Restore writes items back exactly as given, creating missing ones. The
// writes carry OriginRestore and never produce history. It returns the
// number of items written.
func (s *Service) Restore(ctx context.Context, items []inventory.Item) (int, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return 0, err
	}
	defer s.limiter.Release()

	docs := make([]inventory.Item, len(items))
	for i, it := range items {
		it = it.Clone()
		if it.Contexts == nil {
			it.Contexts = []inventory.ContextAssignment{}
		}
		it.Recompute()
		docs[i] = it
	}

	er, err := s.executor.Replace(ctx, docs, inventory.OriginRestore)
	if er.ChunksCommitted > 0 {
		s.snapshot.MarkStale(er.Revision)
	}
	log := logging.FromContext(ctx)
	if err != nil {
		log.Error("restore stopped at failed chunk", "items_written", er.OpsApplied, "error", err)
		return er.OpsApplied, err
	}
	log.Info("restore finished", "items_written", er.OpsApplied)
	return er.OpsApplied, nil
}

// ExportCatalog writes the catalog as an XLSX workbook.
func (s *Service) ExportCatalog(ctx context.Context, w io.Writer) error {
	items, err := s.currentItems(ctx)
	if err != nil {
		return err
	}
	if err := sheet.WriteCatalogXLSX(w, items); err != nil {
		return fmt.Errorf("export catalog: %w", err)
	}
	return nil
}

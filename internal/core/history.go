package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wI2L/jsondiff"

	"github.com/JonMunkholm/spares/internal/inventory"
	"github.com/JonMunkholm/spares/internal/logging"
	"github.com/JonMunkholm/spares/internal/store"
)

// History actions.
const (
	ActionImportCreate  = "import_create"
	ActionImportUpdate  = "import_update"
	ActionContextRename = "context_rename"
	ActionContextRemove = "context_remove"
	ActionItemCreate    = "item_create"
	ActionItemEdit      = "item_edit"
)

// historyEntries turns committed operations into history entries. The patch
// is an RFC 6902 JSON Patch from the old document to the new one. Restores
// are never recorded.
func historyEntries(ctx context.Context, importID, action string, origin inventory.Origin, ops []inventory.Operation, now time.Time) ([]store.HistoryEntry, error) {
	if origin != inventory.OriginUser || len(ops) == 0 {
		return nil, nil
	}
	ip := IPAddressFromContext(ctx)
	ua := UserAgentFromContext(ctx)

	entries := make([]store.HistoryEntry, 0, len(ops))
	for _, op := range ops {
		patch, err := diffDocuments(op.Before, op.After, op.Kind == inventory.OpCreate)
		if err != nil {
			return nil, fmt.Errorf("history for %s: %w", op.After.ID, err)
		}
		act := action
		if act == "" {
			act = ActionImportUpdate
			if op.Kind == inventory.OpCreate {
				act = ActionImportCreate
			}
		}
		entries = append(entries, store.HistoryEntry{
			ID:        uuid.NewString(),
			ItemID:    op.After.ID,
			ImportID:  importID,
			Action:    act,
			Origin:    origin,
			Patch:     patch,
			IPAddress: ip,
			UserAgent: ua,
			CreatedAt: now,
		})
	}
	return entries, nil
}

func diffDocuments(before, after inventory.Item, created bool) (json.RawMessage, error) {
	src := []byte("{}")
	if !created {
		b, err := json.Marshal(before)
		if err != nil {
			return nil, err
		}
		src = b
	}
	dst, err := json.Marshal(after)
	if err != nil {
		return nil, err
	}
	patch, err := jsondiff.CompareJSON(src, dst)
	if err != nil {
		return nil, err
	}
	return json.Marshal(patch)
}

// recordHistory stores history for ops. Failures are logged, never returned:
// the writes themselves already committed.
func (s *Service) recordHistory(ctx context.Context, importID, action string, origin inventory.Origin, ops []inventory.Operation) {
	entries, err := historyEntries(ctx, importID, action, origin, ops, s.now())
	if err == nil && len(entries) > 0 {
		err = s.store.AppendHistory(ctx, entries)
	}
	if err != nil {
		logging.FromContext(ctx).Warn("history not recorded",
			"import_id", importID,
			"entries", len(ops),
			"error", err,
		)
	}
}

// History returns the newest history entries for an item.
func (s *Service) History(ctx context.Context, itemID string, limit int) ([]store.HistoryEntry, error) {
	entries, err := s.store.ListHistory(ctx, itemID, limit)
	if err != nil {
		return nil, &ExternalStoreError{Op: "history", Err: err}
	}
	return entries, nil
}

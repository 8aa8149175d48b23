package core

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/spares/internal/inventory"
	"github.com/JonMunkholm/spares/internal/logging"
)

// RenameContext renames a context on every item that carries it, whatever
// the kind. It returns the number of items written; items without the
// context are not touched.
func (s *Service) RenameContext(ctx context.Context, oldName, newName string) (int, error) {
	oldName, newName = strings.TrimSpace(oldName), strings.TrimSpace(newName)
	if oldName == "" || newName == "" {
		return 0, ErrInvalidContextName
	}
	if oldName == newName {
		return 0, nil
	}
	return s.maintainContexts(ctx, ActionContextRename, func(items []inventory.Item) []inventory.Item {
		return inventory.RenameContext(items, oldName, newName, s.now())
	}, "old", oldName, "new", newName)
}

// RemoveContext drops every assignment with the given name, whatever the
// kind. It returns the number of items written.
func (s *Service) RemoveContext(ctx context.Context, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrInvalidContextName
	}
	return s.maintainContexts(ctx, ActionContextRemove, func(items []inventory.Item) []inventory.Item {
		return inventory.RemoveContext(items, name, s.now())
	}, "context", name)
}

// maintainContexts runs a catalog-wide context rewrite under the import slot
// and writes only the items the rewrite returned.
func (s *Service) maintainContexts(ctx context.Context, action string, rewrite func([]inventory.Item) []inventory.Item, logArgs ...any) (int, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return 0, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.importTimeout)
	defer cancel()

	runID := uuid.NewString()
	log := logging.WithFields(ctx, append([]any{"run_id", runID, "action", action}, logArgs...)...)

	items, err := s.currentItems(ctx)
	if err != nil {
		return 0, err
	}
	byID := make(map[string]inventory.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	updated := rewrite(items)
	if len(updated) == 0 {
		log.Info("context not in use, nothing written")
		return 0, nil
	}

	ops := make([]inventory.Operation, len(updated))
	for i, it := range updated {
		ops[i] = inventory.Operation{Kind: inventory.OpUpdate, Before: byID[it.ID], After: it}
	}
	er, err := s.executor.Execute(ctx, ops, inventory.OriginUser)
	if er.ChunksCommitted > 0 {
		s.snapshot.MarkStale(er.Revision)
	}
	s.recordHistory(ctx, runID, action, inventory.OriginUser, er.Applied)

	if err != nil {
		log.Error("context maintenance stopped at failed chunk", "items_written", er.OpsApplied, "error", err)
		return er.OpsApplied, err
	}
	log.Info("context maintenance finished", "items_written", er.OpsApplied)
	return er.OpsApplied, nil
}

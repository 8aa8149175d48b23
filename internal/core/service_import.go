package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/spares/internal/inventory"
	"github.com/JonMunkholm/spares/internal/logging"
	"github.com/JonMunkholm/spares/internal/metrics"
)

// ContextImport describes a context import: row quantities are written into
// the (Name, Kind) assignment of each matched or created item.
type ContextImport struct {
	Name string
	Kind inventory.Kind
	// Placeholder overrides the service default for this run.
	Placeholder string
	// Origin defaults to OriginUser.
	Origin inventory.Origin
	// Source names the file, for logs and results.
	Source   string
	Progress func(ChunkProgress)
}

// CatalogImport describes a catalog-only import: descriptive fields are
// filled, quantities and contexts are never touched.
type CatalogImport struct {
	Placeholder string
	Origin      inventory.Origin
	Source      string
	Progress    func(ChunkProgress)
}

// ImportResult reports the outcome of one import. On partial failure
// RowsApplied + Unchanged + RowsNotAttempted still equals Rows.
type ImportResult struct {
	ImportID         string         `json:"importId"`
	Mode             string         `json:"mode"`
	Context          string         `json:"context,omitempty"`
	Kind             inventory.Kind `json:"kind,omitempty"`
	Source           string         `json:"source,omitempty"`
	Rows             int            `json:"rows"`
	Created          int            `json:"created"`
	Updated          int            `json:"updated"`
	Unchanged        int            `json:"unchanged"`
	RowsApplied      int            `json:"rowsApplied"`
	RowsNotAttempted int            `json:"rowsNotAttempted"`
	ChunksCommitted  int            `json:"chunksCommitted"`
	ChunksTotal      int            `json:"chunksTotal"`
	StartedAt        time.Time      `json:"startedAt"`
	DurationMs       int64          `json:"durationMs"`
}

// Partial reports whether some rows were never written.
func (r *ImportResult) Partial() bool { return r.RowsNotAttempted > 0 }

// ReconcileContextImport merges rows into the catalog and records their
// quantities under the given context.
func (s *Service) ReconcileContextImport(ctx context.Context, rows []inventory.ImportRow, in ContextImport) (*ImportResult, error) {
	target := inventory.ContextTarget(in.Name, in.Kind)
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return s.reconcile(ctx, rows, target, in.Placeholder, in.Origin, in.Source, in.Progress)
}

// ReconcileCatalogImport merges rows into the catalog without touching
// quantities.
func (s *Service) ReconcileCatalogImport(ctx context.Context, rows []inventory.ImportRow, in CatalogImport) (*ImportResult, error) {
	return s.reconcile(ctx, rows, inventory.CatalogTarget(), in.Placeholder, in.Origin, in.Source, in.Progress)
}

func (s *Service) reconcile(
	ctx context.Context,
	rows []inventory.ImportRow,
	target inventory.Target,
	placeholder string,
	origin inventory.Origin,
	source string,
	progress func(ChunkProgress),
) (*ImportResult, error) {
	if origin == "" {
		origin = inventory.OriginUser
	}
	if placeholder == "" {
		placeholder = s.placeholder
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.importTimeout)
	defer cancel()

	started := s.now()
	res := &ImportResult{
		ImportID:  uuid.NewString(),
		Mode:      target.Mode.String(),
		Context:   target.ContextName,
		Kind:      target.ContextKind,
		Source:    source,
		Rows:      len(rows),
		StartedAt: started,
	}

	log := logging.WithFields(ctx,
		"import_id", res.ImportID,
		"mode", res.Mode,
		"context", res.Context,
		"kind", res.Kind,
		"source", source,
	)
	ctx = logging.NewContext(ctx, log)
	log.Info("import started", "rows", len(rows), "placeholder", placeholder)

	items, err := s.currentItems(ctx)
	if err != nil {
		log.Error("import aborted before planning", "error", err)
		return nil, err
	}

	ix := inventory.BuildIndex(items, inventory.NewKeys(placeholder))
	plan, err := s.planner.Plan(rows, ix, target)
	if err != nil {
		return nil, fmt.Errorf("plan import: %w", err)
	}
	res.Unchanged = plan.Unchanged
	log.Debug("import planned",
		"operations", len(plan.Operations),
		"creates", plan.Created(),
		"updates", plan.Updated(),
		"unchanged_rows", plan.Unchanged,
	)

	exec := s.executor
	if progress != nil {
		exec = exec.WithProgress(progress)
	}
	er, execErr := exec.Execute(ctx, plan.Operations, origin)

	for _, op := range er.Applied {
		if op.Kind == inventory.OpCreate {
			res.Created++
		} else {
			res.Updated++
		}
	}
	res.RowsApplied = er.RowsApplied
	res.RowsNotAttempted = er.RowsNotAttempted
	res.ChunksCommitted = er.ChunksCommitted
	res.ChunksTotal = er.ChunksTotal
	res.DurationMs = s.now().Sub(started).Milliseconds()

	if er.ChunksCommitted > 0 {
		s.snapshot.MarkStale(er.Revision)
	}
	s.recordHistory(ctx, res.ImportID, "", origin, er.Applied)

	metrics.RecordImport(res.Mode, map[string]int{
		metrics.OutcomeCreated:      res.Created,
		metrics.OutcomeUpdated:      res.Updated,
		metrics.OutcomeUnchanged:    res.Unchanged,
		metrics.OutcomeNotAttempted: res.RowsNotAttempted,
	}, time.Duration(res.DurationMs)*time.Millisecond)

	if execErr != nil {
		log.Error("import stopped at failed chunk",
			"rows_applied", res.RowsApplied,
			"rows_not_attempted", res.RowsNotAttempted,
			"chunks_committed", res.ChunksCommitted,
			"chunks_total", res.ChunksTotal,
			"error", execErr,
		)
		return res, execErr
	}

	log.Info("import finished",
		"created", res.Created,
		"updated", res.Updated,
		"unchanged", res.Unchanged,
		"duration_ms", res.DurationMs,
	)
	return res, nil
}

package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/spares/internal/inventory"
	"github.com/JonMunkholm/spares/internal/logging"
	"github.com/JonMunkholm/spares/internal/metrics"
	"github.com/JonMunkholm/spares/internal/store"
)

// DefaultImportTimeout bounds one import, planning and writes included.
const DefaultImportTimeout = 10 * time.Minute

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	// Placeholder is the default "unknown code" marker; imports may override it.
	Placeholder          string
	ChunkSize            int
	MaxConcurrentImports int
	ImportWaitTime       time.Duration
	ImportTimeout        time.Duration
	Logger               *slog.Logger
	Now                  func() time.Time
}

// Service is the entry point for reconciliation and context maintenance.
type Service struct {
	store         Store
	snapshot      *Snapshot
	executor      *Executor
	planner       *inventory.Planner
	limiter       *ImportLimiter
	placeholder   string
	importTimeout time.Duration
	logger        *slog.Logger
	clock         func() time.Time
}

// NewService creates a Service on top of st.
func NewService(st Store, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	exec, err := NewExecutor(st, opts.ChunkSize, logger)
	if err != nil {
		return nil, err
	}
	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}
	timeout := opts.ImportTimeout
	if timeout <= 0 {
		timeout = DefaultImportTimeout
	}

	return &Service{
		store:         st,
		snapshot:      &Snapshot{},
		executor:      exec,
		planner:       &inventory.Planner{Now: clock},
		limiter:       NewImportLimiter(opts.MaxConcurrentImports, opts.ImportWaitTime),
		placeholder:   inventory.NewKeys(opts.Placeholder).Placeholder,
		importTimeout: timeout,
		logger:        logger,
		clock:         clock,
	}, nil
}

func (s *Service) now() time.Time { return s.clock().UTC() }

// Run follows the store's live subscription, replacing the snapshot on every
// push, until ctx is done. Pushes older than the snapshot are dropped.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("following inventory changes")
	err := s.store.Subscribe(ctx, func(l store.Listing) {
		if !s.snapshot.Replace(l) {
			metrics.RecordSnapshotReload("push_dropped")
			s.logger.Debug("late snapshot push dropped", "revision", l.Revision)
			return
		}
		metrics.RecordSnapshotReload("push")
		s.logger.Debug("snapshot replaced", "items", len(l.Items), "revision", l.Revision)
	})
	if err != nil {
		return &ExternalStoreError{Op: "subscribe", Err: err}
	}
	return nil
}

// Limiter exposes the import limiter, for shutdown draining and status.
func (s *Service) Limiter() *ImportLimiter { return s.limiter }

// SnapshotStatus reports the state of the item snapshot.
func (s *Service) SnapshotStatus() SnapshotStatus { return s.snapshot.Status() }

// Placeholder returns the default placeholder code.
func (s *Service) Placeholder() string { return s.placeholder }

// currentItems returns the snapshot when it is fresh and otherwise pulls the
// collection from the store, installing it as the new snapshot.
func (s *Service) currentItems(ctx context.Context) ([]inventory.Item, error) {
	if items, fresh := s.snapshot.Items(); fresh {
		return items, nil
	}
	l, err := s.store.Load(ctx)
	if err != nil {
		return nil, &ExternalStoreError{Op: "list", Err: err}
	}
	s.snapshot.Replace(l)
	metrics.RecordSnapshotReload("pull")
	logging.FromContext(ctx).Debug("snapshot pulled", "items", len(l.Items), "revision", l.Revision)
	return l.Items, nil
}

// Items returns the current catalog.
func (s *Service) Items(ctx context.Context) ([]inventory.Item, error) {
	items, err := s.currentItems(ctx)
	if err != nil {
		return nil, err
	}
	return append([]inventory.Item(nil), items...), nil
}

// Item returns one item by ID.
func (s *Service) Item(ctx context.Context, id string) (inventory.Item, error) {
	items, err := s.currentItems(ctx)
	if err != nil {
		return inventory.Item{}, err
	}
	for _, it := range items {
		if it.ID == id {
			return it.Clone(), nil
		}
	}
	return inventory.Item{}, ErrItemNotFound
}

// Contexts lists every context name in use across the catalog.
func (s *Service) Contexts(ctx context.Context) ([]inventory.ContextSummary, error) {
	items, err := s.currentItems(ctx)
	if err != nil {
		return nil, err
	}
	return inventory.SummarizeContexts(items), nil
}

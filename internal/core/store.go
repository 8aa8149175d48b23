package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/spares/internal/inventory"
	"github.com/JonMunkholm/spares/internal/store"
)

// BatchCommitter commits one atomic batch of mutations and reports the store
// revision it produced.
type BatchCommitter interface {
	CommitBatch(ctx context.Context, muts []store.Mutation) (int64, error)
	MaxBatchOps() int
}

// HistoryStore persists history entries.
type HistoryStore interface {
	AppendHistory(ctx context.Context, entries []store.HistoryEntry) error
	ListHistory(ctx context.Context, itemID string, limit int) ([]store.HistoryEntry, error)
	PurgeHistory(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store is the document store the service runs against. It is satisfied by
// *store.Postgres and *store.Memory.
type Store interface {
	BatchCommitter
	HistoryStore

	AddDocument(ctx context.Context, it inventory.Item) (string, error)
	UpdateDocument(ctx context.Context, id string, patch map[string]any) error
	ListItems(ctx context.Context) ([]inventory.Item, error)
	Load(ctx context.Context) (store.Listing, error)
	// Subscribe blocks, calling fn with the full collection on start and
	// after every change, until ctx is done. Deliveries may arrive late.
	Subscribe(ctx context.Context, fn func(store.Listing)) error
}

var (
	_ Store = (*store.Postgres)(nil)
	_ Store = (*store.Memory)(nil)
)

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/JonMunkholm/spares/internal/inventory"
)

type memDoc struct {
	raw    []byte
	origin inventory.Origin
	seq    int
}

// Memory is an in-process document store. Batches are applied atomically
// under a single lock, and subscribers are called synchronously after every
// successful commit.
type Memory struct {
	maxOps int

	mu       sync.Mutex
	docs     map[string]memDoc
	seq      int
	rev      int64
	commits  int
	failures map[int]error
	history  []HistoryEntry

	subMu  sync.Mutex
	subs   map[int]func(Listing)
	nextID int
}

// NewMemory returns an empty store with the given batch ceiling.
func NewMemory(maxOps int) *Memory {
	if maxOps <= 0 {
		maxOps = DefaultMaxBatchOps
	}
	return &Memory{
		maxOps:   maxOps,
		docs:     make(map[string]memDoc),
		failures: make(map[int]error),
		subs:     make(map[int]func(Listing)),
	}
}

// MaxBatchOps returns the batch ceiling.
func (m *Memory) MaxBatchOps() int { return m.maxOps }

// FailCommit makes the n-th CommitBatch call (1-based, counted over the
// store's lifetime) fail with err without applying anything.
func (m *Memory) FailCommit(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[n] = err
}

// Commits returns how many CommitBatch calls were made, failed ones included.
func (m *Memory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Origin returns the origin of the last write to id.
func (m *Memory) Origin(id string) (inventory.Origin, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	return d.origin, ok
}

// Seed stores items directly, without notifying subscribers. Items without
// an ID get one. The revision still advances.
func (m *Memory) Seed(items ...inventory.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rev++
	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		raw, err := encodeItem(it)
		if err != nil {
			return err
		}
		m.seq++
		m.docs[it.ID] = memDoc{raw: raw, origin: inventory.OriginUser, seq: m.seq}
	}
	return nil
}

// SeedRaw stores a raw JSON document, for documents written by older clients.
func (m *Memory) SeedRaw(id string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rev++
	m.seq++
	m.docs[id] = memDoc{raw: raw, origin: inventory.OriginUser, seq: m.seq}
}

// AddDocument stores a new item and returns its ID.
func (m *Memory) AddDocument(ctx context.Context, it inventory.Item) (string, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	_, err := m.CommitBatch(ctx, []Mutation{{Kind: MutationCreate, ID: it.ID, Doc: it, Origin: inventory.OriginUser}})
	if err != nil {
		return "", err
	}
	return it.ID, nil
}

// UpdateDocument merges patch into the document id.
func (m *Memory) UpdateDocument(ctx context.Context, id string, patch map[string]any) error {
	_, err := m.CommitBatch(ctx, []Mutation{{Kind: MutationUpdate, ID: id, Patch: patch, Origin: inventory.OriginUser}})
	return err
}

// CommitBatch applies every mutation or none of them and returns the new
// revision.
func (m *Memory) CommitBatch(ctx context.Context, muts []Mutation) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(muts) == 0 {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.rev, nil
	}

	m.mu.Lock()
	m.commits++
	if err, ok := m.failures[m.commits]; ok {
		m.mu.Unlock()
		return 0, err
	}
	if err := checkBatch(muts, m.maxOps); err != nil {
		m.mu.Unlock()
		return 0, err
	}

	staged := make(map[string]memDoc, len(muts))
	lookup := func(id string) (memDoc, bool) {
		if d, ok := staged[id]; ok {
			return d, true
		}
		d, ok := m.docs[id]
		return d, ok
	}
	seq := m.seq
	for i, mut := range muts {
		seq++
		switch mut.Kind {
		case MutationCreate, MutationReplace:
			if _, exists := lookup(mut.ID); exists && mut.Kind == MutationCreate {
				m.mu.Unlock()
				return 0, errors.Errorf("mutation %d: document %s already exists", i, mut.ID)
			}
			doc := mut.Doc
			doc.ID = mut.ID
			raw, err := encodeItem(doc)
			if err != nil {
				m.mu.Unlock()
				return 0, err
			}
			prev, exists := lookup(mut.ID)
			d := memDoc{raw: raw, origin: mut.Origin, seq: seq}
			if exists {
				d.seq = prev.seq
			}
			staged[mut.ID] = d
		case MutationUpdate:
			cur, ok := lookup(mut.ID)
			if !ok {
				m.mu.Unlock()
				return 0, errors.Wrapf(ErrNotFound, "mutation %d: %s", i, mut.ID)
			}
			raw, err := applyPatch(cur.raw, mut.Patch)
			if err != nil {
				m.mu.Unlock()
				return 0, err
			}
			staged[mut.ID] = memDoc{raw: raw, origin: mut.Origin, seq: cur.seq}
		default:
			m.mu.Unlock()
			return 0, errors.Errorf("mutation %d: unknown kind %d", i, mut.Kind)
		}
	}
	for id, d := range staged {
		m.docs[id] = d
	}
	m.seq = seq
	m.rev++
	rev := m.rev
	l, err := m.listLocked()
	m.mu.Unlock()

	if err == nil {
		m.notify(l)
	}
	return rev, nil
}

// ListItems returns every item in insertion order.
func (m *Memory) ListItems(ctx context.Context) ([]inventory.Item, error) {
	l, err := m.Load(ctx)
	return l.Items, err
}

// Load returns every item in insertion order with the current revision.
func (m *Memory) Load(ctx context.Context) (Listing, error) {
	if err := ctx.Err(); err != nil {
		return Listing{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked()
}

func (m *Memory) listLocked() (Listing, error) {
	type entry struct {
		id  string
		doc memDoc
	}
	entries := make([]entry, 0, len(m.docs))
	for id, d := range m.docs {
		entries = append(entries, entry{id, d})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].doc.seq < entries[j].doc.seq })

	items := make([]inventory.Item, 0, len(entries))
	for _, e := range entries {
		it, err := decodeItem(e.id, e.doc.raw)
		if err != nil {
			return Listing{}, err
		}
		items = append(items, it)
	}
	return Listing{Items: items, Revision: m.rev}, nil
}

// Subscribe calls fn with the current collection and again after every
// commit, until ctx is done.
func (m *Memory) Subscribe(ctx context.Context, fn func(Listing)) error {
	l, err := m.Load(ctx)
	if err != nil {
		return err
	}

	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subMu.Unlock()

	fn(l)
	<-ctx.Done()

	m.subMu.Lock()
	delete(m.subs, id)
	m.subMu.Unlock()
	return nil
}

func (m *Memory) notify(l Listing) {
	m.subMu.Lock()
	fns := make([]func(Listing), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(l)
	}
}

// AppendHistory stores history entries.
func (m *Memory) AppendHistory(ctx context.Context, entries []HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, entries...)
	return nil
}

// ListHistory returns the newest entries for itemID first. limit <= 0 means
// no limit.
func (m *Memory) ListHistory(ctx context.Context, itemID string, limit int) ([]HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HistoryEntry
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ItemID != itemID {
			continue
		}
		out = append(out, m.history[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// PurgeHistory deletes entries created before cutoff.
func (m *Memory) PurgeHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.history[:0]
	for _, e := range m.history {
		if e.CreatedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	purged := int64(len(m.history) - len(kept))
	m.history = kept
	return purged, nil
}

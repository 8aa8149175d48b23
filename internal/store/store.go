// Package store persists catalog items as JSON documents.
//
// Two implementations share the same surface: [Postgres] keeps one JSONB row
// per item and pushes changes over LISTEN/NOTIFY, [Memory] keeps everything in
// process and backs the tests and the CLI --dry-run mode. Both accept atomic
// batches of at most MaxBatchOps mutations and deliver the full item
// collection to subscribers after every committed change.
//
// Every committed batch advances the store revision by one. A [Listing]
// carries the revision it was read at, so a reader can tell a late delivery
// from one that already includes a given commit.
package store

import (
	"encoding/json"
	"time"

	"github.com/go-faster/errors"

	"github.com/JonMunkholm/spares/internal/inventory"
)

// DefaultMaxBatchOps is the per-batch operation ceiling of the document store.
const DefaultMaxBatchOps = 500

var (
	// ErrNotFound is returned when an update targets a missing document.
	ErrNotFound = errors.New("document not found")
	// ErrBatchTooLarge is returned when a batch exceeds the operation ceiling.
	ErrBatchTooLarge = errors.New("batch exceeds operation limit")
)

// MutationKind is the kind of write inside a batch.
type MutationKind int

const (
	// MutationCreate inserts a new document; the ID must not exist.
	MutationCreate MutationKind = iota + 1
	// MutationUpdate merges Patch into an existing document.
	MutationUpdate
	// MutationReplace writes Doc as-is, inserting it when missing.
	MutationReplace
)

func (k MutationKind) String() string {
	switch k {
	case MutationCreate:
		return "create"
	case MutationUpdate:
		return "update"
	case MutationReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Mutation is one write inside a batch.
type Mutation struct {
	Kind   MutationKind
	ID     string
	Doc    inventory.Item
	Patch  map[string]any
	Origin inventory.Origin
}

// Listing is the whole item collection as of one store revision.
type Listing struct {
	Items    []inventory.Item
	Revision int64
}

// HistoryEntry records the field changes of one mutation.
type HistoryEntry struct {
	ID        string           `json:"id"`
	ItemID    string           `json:"itemId"`
	ImportID  string           `json:"importId,omitempty"`
	Action    string           `json:"action"`
	Origin    inventory.Origin `json:"origin"`
	Patch     json.RawMessage  `json:"patch"`
	IPAddress string           `json:"ipAddress,omitempty"`
	UserAgent string           `json:"userAgent,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// encodeItem serializes an item as a stored document.
func encodeItem(it inventory.Item) ([]byte, error) {
	if it.Contexts == nil {
		it.Contexts = []inventory.ContextAssignment{}
	}
	b, err := json.Marshal(it)
	if err != nil {
		return nil, errors.Wrap(err, "encode item")
	}
	return b, nil
}

// decodeItem reads a stored document. Contexts may be bare names or full
// records; they are normalized here so callers only ever see assignments.
// The derived total is recomputed rather than trusted.
func decodeItem(id string, raw []byte) (inventory.Item, error) {
	type plain inventory.Item
	var doc struct {
		plain
		Contexts json.RawMessage `json:"contexts"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return inventory.Item{}, errors.Wrapf(err, "decode item %s", id)
	}
	tags, err := inventory.DecodeTags(doc.Contexts)
	if err != nil {
		return inventory.Item{}, errors.Wrapf(err, "decode item %s", id)
	}
	it := inventory.Item(doc.plain)
	it.ID = id
	it.Contexts = inventory.NormalizeTags(tags)
	it.Recompute()
	return it, nil
}

// applyPatch merges patch into the stored document raw, top-level keys only,
// the same way JSONB concatenation does.
func applyPatch(raw []byte, patch map[string]any) ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, "apply patch")
	}
	for k, v := range patch {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "apply patch field %s", k)
		}
		fields[k] = b
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(err, "apply patch")
	}
	return out, nil
}

func checkBatch(muts []Mutation, maxOps int) error {
	if len(muts) > maxOps {
		return errors.Wrapf(ErrBatchTooLarge, "%d operations, limit %d", len(muts), maxOps)
	}
	for i, m := range muts {
		if m.ID == "" {
			return errors.Errorf("mutation %d: empty document id", i)
		}
	}
	return nil
}

package core

import (
	"sync"
	"time"

	"github.com/JonMunkholm/spares/internal/inventory"
	"github.com/JonMunkholm/spares/internal/store"
)

// Snapshot holds the latest item collection received from the store.
//
// Each listing carries the store revision it was read at. After the service
// writes, it records the revision of its last commit and the snapshot stays
// stale until a listing at or past that revision arrives, so an import never
// plans against pre-write state. Listings older than the one held are dropped.
type Snapshot struct {
	mu        sync.RWMutex
	items     []inventory.Item
	loaded    bool
	revision  int64
	want      int64
	updatedAt time.Time
}

// SnapshotStatus is a point-in-time view of the snapshot state.
type SnapshotStatus struct {
	Items     int       `json:"items"`
	Loaded    bool      `json:"loaded"`
	Stale     bool      `json:"stale"`
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Replace installs l unless the snapshot already holds a newer revision. It
// reports whether l was installed.
func (s *Snapshot) Replace(l store.Listing) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded && l.Revision < s.revision {
		return false
	}
	s.items = l.Items
	s.loaded = true
	s.revision = l.Revision
	s.updatedAt = time.Now()
	return true
}

// MarkStale records that the store holds writes up to rev which the snapshot
// must reflect before it is fresh again.
func (s *Snapshot) MarkStale(rev int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.want = max(s.want, rev)
}

// Items returns the collection and whether it can be planned against. The
// returned slice must not be modified.
func (s *Snapshot) Items() ([]inventory.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items, s.loaded && s.revision >= s.want
}

// Status returns the current state.
func (s *Snapshot) Status() SnapshotStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SnapshotStatus{
		Items:     len(s.items),
		Loaded:    s.loaded,
		Stale:     s.revision < s.want,
		Revision:  s.revision,
		UpdatedAt: s.updatedAt,
	}
}

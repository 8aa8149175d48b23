package inventory

import (
	"sort"
	"time"
)

// Upsert sets the quantity of the (name, kind) assignment, appending it when
// missing. The input slice is never modified; callers compare old and new
// lists to detect changes.
func Upsert(contexts []ContextAssignment, name string, kind Kind, quantity int, at time.Time) []ContextAssignment {
	if quantity < 0 {
		quantity = 0
	}
	out := make([]ContextAssignment, len(contexts), len(contexts)+1)
	copy(out, contexts)
	for i := range out {
		if out[i].Name == name && out[i].Kind == kind {
			out[i].Quantity = quantity
			out[i].AssignedAt = at
			return out
		}
	}
	return append(out, ContextAssignment{
		Name:       name,
		Kind:       kind,
		Quantity:   quantity,
		AssignedAt: at,
	})
}

// hasContext reports whether any assignment, of any kind, is named name.
func hasContext(contexts []ContextAssignment, name string) bool {
	for _, c := range contexts {
		if c.Name == name {
			return true
		}
	}
	return false
}

// RenameContext renames every assignment called oldName to newName across
// items. Only the items that carried oldName are returned, as updated copies.
//
// If an item already holds (newName, kind) the renamed entry replaces it, so
// the (name, kind) pair stays unique.
func RenameContext(items []Item, oldName, newName string, at time.Time) []Item {
	if oldName == newName {
		return nil
	}
	var updated []Item
	for _, it := range items {
		if !hasContext(it.Contexts, oldName) {
			continue
		}
		renamedKinds := make(map[Kind]bool, 2)
		for _, c := range it.Contexts {
			if c.Name == oldName {
				renamedKinds[c.Kind] = true
			}
		}
		// Renamed entries keep their position; a pre-existing (newName, kind)
		// twin is dropped.
		contexts := make([]ContextAssignment, 0, len(it.Contexts))
		for _, c := range it.Contexts {
			switch {
			case c.Name == oldName:
				c.Name = newName
			case c.Name == newName && renamedKinds[c.Kind]:
				continue
			}
			contexts = append(contexts, c)
		}
		next := it.Clone()
		next.Contexts = contexts
		next.UpdatedAt = at
		next.Recompute()
		updated = append(updated, next)
	}
	return updated
}

// RemoveContext drops every assignment called name, whatever its kind. Only
// the items that carried name are returned, as updated copies.
func RemoveContext(items []Item, name string, at time.Time) []Item {
	var updated []Item
	for _, it := range items {
		if !hasContext(it.Contexts, name) {
			continue
		}
		next := it.Clone()
		contexts := make([]ContextAssignment, 0, len(it.Contexts))
		for _, c := range it.Contexts {
			if c.Name != name {
				contexts = append(contexts, c)
			}
		}
		next.Contexts = contexts
		next.UpdatedAt = at
		next.Recompute()
		updated = append(updated, next)
	}
	return updated
}

// ContextSummary aggregates one context name across the catalog.
type ContextSummary struct {
	Name         string    `json:"name"`
	Items        int       `json:"items"`
	RequestQty   int       `json:"requestQty"`
	StockQty     int       `json:"stockQty"`
	LastAssigned time.Time `json:"lastAssigned"`
}

// SummarizeContexts lists every context name in use, sorted by name.
func SummarizeContexts(items []Item) []ContextSummary {
	byName := make(map[string]*ContextSummary)
	for _, it := range items {
		seen := make(map[string]bool, len(it.Contexts))
		for _, c := range it.Contexts {
			s, ok := byName[c.Name]
			if !ok {
				s = &ContextSummary{Name: c.Name}
				byName[c.Name] = s
			}
			if !seen[c.Name] {
				s.Items++
				seen[c.Name] = true
			}
			switch c.Kind {
			case KindRequest:
				s.RequestQty += c.Quantity
			case KindStock:
				s.StockQty += c.Quantity
			}
			if c.AssignedAt.After(s.LastAssigned) {
				s.LastAssigned = c.AssignedAt
			}
		}
	}
	out := make([]ContextSummary, 0, len(byName))
	for _, s := range byName {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

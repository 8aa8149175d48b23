package inventory

// MatchSource tells which code produced a match.
type MatchSource int

const (
	MatchNone MatchSource = iota
	MatchPrimary
	MatchSecondary
)

func (m MatchSource) String() string {
	switch m {
	case MatchPrimary:
		return "primary"
	case MatchSecondary:
		return "secondary"
	default:
		return "none"
	}
}

// Index maps normalized codes to positions in the snapshot it was built from.
// It is a read-only view for one planning pass.
type Index struct {
	keys        Keys
	items       []Item
	byPrimary   map[string]int
	bySecondary map[string]int
}

// BuildIndex registers every known primary and secondary code of items.
// Duplicate codes resolve to the last item carrying them.
func BuildIndex(items []Item, keys Keys) *Index {
	ix := &Index{
		keys:        keys,
		items:       items,
		byPrimary:   make(map[string]int, len(items)),
		bySecondary: make(map[string]int, len(items)),
	}
	for i, it := range items {
		if k, ok := keys.MatchKey(it.PrimaryCode); ok {
			ix.byPrimary[k] = i
		}
		if k, ok := keys.MatchKey(it.SecondaryCode); ok {
			ix.bySecondary[k] = i
		}
	}
	return ix
}

// Keys returns the key policy the index was built with.
func (ix *Index) Keys() Keys { return ix.keys }

// Len returns the number of items in the indexed snapshot.
func (ix *Index) Len() int { return len(ix.items) }

// Item returns the snapshot item at position i.
func (ix *Index) Item(i int) Item { return ix.items[i] }

// ByPrimary looks up an item position by primary code.
func (ix *Index) ByPrimary(code string) (int, bool) {
	k, ok := ix.keys.MatchKey(code)
	if !ok {
		return 0, false
	}
	i, found := ix.byPrimary[k]
	return i, found
}

// BySecondary looks up an item position by secondary code.
func (ix *Index) BySecondary(code string) (int, bool) {
	k, ok := ix.keys.MatchKey(code)
	if !ok {
		return 0, false
	}
	i, found := ix.bySecondary[k]
	return i, found
}

// Match resolves a row to a snapshot position. The primary code always wins,
// even when the secondary code points at a different item.
func (ix *Index) Match(row ImportRow) (int, MatchSource) {
	if i, ok := ix.ByPrimary(row.PrimaryCode); ok {
		return i, MatchPrimary
	}
	if i, ok := ix.BySecondary(row.SecondaryCode); ok {
		return i, MatchSecondary
	}
	return -1, MatchNone
}

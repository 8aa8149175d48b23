package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTarget is returned when a context import names no context or an
// unknown kind.
var ErrInvalidTarget = errors.New("invalid import target")

// Mode selects how matched rows are merged.
type Mode int

const (
	// ModeContext writes the row quantity into one named context.
	ModeContext Mode = iota + 1
	// ModeCatalog only fills descriptive and pricing fields.
	ModeCatalog
)

func (m Mode) String() string {
	switch m {
	case ModeContext:
		return "context"
	case ModeCatalog:
		return "catalog"
	default:
		return "unknown"
	}
}

// Target describes what an import writes to.
type Target struct {
	Mode        Mode
	ContextName string
	ContextKind Kind
}

// ContextTarget is shorthand for a context-import target.
func ContextTarget(name string, kind Kind) Target {
	return Target{Mode: ModeContext, ContextName: strings.TrimSpace(name), ContextKind: kind}
}

// CatalogTarget is shorthand for a catalog-only target.
func CatalogTarget() Target {
	return Target{Mode: ModeCatalog}
}

// Validate checks the target before planning.
func (t Target) Validate() error {
	switch t.Mode {
	case ModeCatalog:
		return nil
	case ModeContext:
		if strings.TrimSpace(t.ContextName) == "" {
			return fmt.Errorf("%w: context name is empty", ErrInvalidTarget)
		}
		if !t.ContextKind.Valid() {
			return fmt.Errorf("%w: context kind %q", ErrInvalidTarget, t.ContextKind)
		}
		return nil
	default:
		return fmt.Errorf("%w: mode %d", ErrInvalidTarget, t.Mode)
	}
}

// OpKind is the kind of write an operation performs.
type OpKind int

const (
	OpCreate OpKind = iota + 1
	OpUpdate
)

func (k OpKind) String() string {
	if k == OpCreate {
		return "create"
	}
	return "update"
}

// Operation is one planned write. Before is the zero Item for creates.
type Operation struct {
	Kind   OpKind
	Before Item
	After  Item
	// Lines lists the source rows folded into this operation.
	Lines []int
	Match MatchSource
}

// Plan is the outcome of one planning pass.
type Plan struct {
	Target     Target
	Operations []Operation
	Rows       int
	// Unchanged counts rows that matched an item but changed nothing.
	Unchanged int
}

// Created returns the number of create operations.
func (p Plan) Created() int { return p.count(OpCreate) }

// Updated returns the number of update operations.
func (p Plan) Updated() int { return p.count(OpUpdate) }

func (p Plan) count(kind OpKind) int {
	n := 0
	for _, op := range p.Operations {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Planner turns import rows into operations against an indexed snapshot.
type Planner struct {
	Now func() time.Time
}

// NewPlanner returns a Planner using the wall clock.
func NewPlanner() *Planner {
	return &Planner{Now: time.Now}
}

func (p *Planner) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

// Plan decides, per row, whether it updates an indexed item or creates a new
// one. Rows that resolve to the same item (including an item created earlier
// in the same pass) fold into a single operation.
func (p *Planner) Plan(rows []ImportRow, ix *Index, target Target) (Plan, error) {
	if err := target.Validate(); err != nil {
		return Plan{}, err
	}

	now := p.now()
	keys := ix.Keys()
	plan := Plan{Target: target, Rows: len(rows)}

	var ops []Operation
	bySnapshot := make(map[int]int)
	pendingPrimary := make(map[string]int)
	pendingSecondary := make(map[string]int)

	register := func(opIdx int) {
		it := ops[opIdx].After
		if k, ok := keys.MatchKey(it.PrimaryCode); ok {
			if _, taken := pendingPrimary[k]; !taken {
				pendingPrimary[k] = opIdx
			}
		}
		if k, ok := keys.MatchKey(it.SecondaryCode); ok {
			if _, taken := pendingSecondary[k]; !taken {
				pendingSecondary[k] = opIdx
			}
		}
	}

	fromSnapshot := func(pos int, src MatchSource) int {
		if opIdx, ok := bySnapshot[pos]; ok {
			return opIdx
		}
		orig := ix.Item(pos)
		ops = append(ops, Operation{
			Kind:   OpUpdate,
			Before: orig.Clone(),
			After:  orig.Clone(),
			Match:  src,
		})
		bySnapshot[pos] = len(ops) - 1
		return len(ops) - 1
	}

	for _, row := range rows {
		opIdx := -1
		if pos, ok := ix.ByPrimary(row.PrimaryCode); ok {
			opIdx = fromSnapshot(pos, MatchPrimary)
		} else if k, ok := keys.MatchKey(row.PrimaryCode); ok && hasKey(pendingPrimary, k) {
			opIdx = pendingPrimary[k]
		} else if pos, ok := ix.BySecondary(row.SecondaryCode); ok {
			opIdx = fromSnapshot(pos, MatchSecondary)
		} else if k, ok := keys.MatchKey(row.SecondaryCode); ok && hasKey(pendingSecondary, k) {
			opIdx = pendingSecondary[k]
		}

		if opIdx < 0 {
			ops = append(ops, Operation{
				Kind:  OpCreate,
				After: newItem(row, target, keys, now),
				Lines: []int{row.Line},
				Match: MatchNone,
			})
			register(len(ops) - 1)
			continue
		}

		op := &ops[opIdx]
		merge(&op.After, row, target, keys, now)
		op.Lines = append(op.Lines, row.Line)
		register(opIdx)
	}

	plan.Operations = make([]Operation, 0, len(ops))
	for _, op := range ops {
		if op.Kind == OpUpdate {
			if len(op.Changes()) == 0 {
				plan.Unchanged += len(op.Lines)
				continue
			}
			op.After.UpdatedAt = now
		}
		plan.Operations = append(plan.Operations, op)
	}
	return plan, nil
}

func hasKey(m map[string]int, k string) bool {
	_, ok := m[k]
	return ok
}

func newItem(row ImportRow, target Target, keys Keys, now time.Time) Item {
	it := Item{
		PrimaryCode:   keys.OrPlaceholder(row.PrimaryCode),
		SecondaryCode: keys.OrPlaceholder(row.SecondaryCode),
		Description:   strings.TrimSpace(row.Description),
		Contexts:      []ContextAssignment{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if row.UnitValue != nil && row.UnitValue.IsPositive() {
		it.UnitValue = *row.UnitValue
	}
	if target.Mode == ModeContext {
		it.Contexts = Upsert(it.Contexts, target.ContextName, target.ContextKind, rowQuantity(row), now)
	}
	it.Recompute()
	return it
}

// merge applies a row to an existing item. Descriptive fields are only
// filled when blank; the target context quantity is replaced outright.
func merge(it *Item, row ImportRow, target Target, keys Keys, now time.Time) {
	fill(&it.PrimaryCode, row.PrimaryCode, keys)
	fill(&it.SecondaryCode, row.SecondaryCode, keys)
	fill(&it.Description, row.Description, keys)
	if row.UnitValue != nil && row.UnitValue.IsPositive() && !it.UnitValue.IsPositive() {
		it.UnitValue = *row.UnitValue
	}
	if target.Mode == ModeContext {
		qty := rowQuantity(row)
		if cur, ok := it.Context(target.ContextName, target.ContextKind); !ok || cur.Quantity != qty {
			it.Contexts = Upsert(it.Contexts, target.ContextName, target.ContextKind, qty, now)
		}
	}
	it.Recompute()
}

func fill(dst *string, incoming string, keys Keys) {
	if keys.IsUnknown(*dst) && !keys.IsUnknown(incoming) {
		*dst = strings.TrimSpace(incoming)
	}
}

func rowQuantity(row ImportRow) int {
	if row.Quantity == nil || *row.Quantity < 0 {
		return 0
	}
	return *row.Quantity
}

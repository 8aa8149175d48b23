package inventory

// FieldChange is one field whose value differs between Before and After.
// Field uses the stored document's field name.
type FieldChange struct {
	Field string
	Old   any
	New   any
}

// Changes lists the fields an update operation modifies. UpdatedAt is not
// compared. For creates every populated field is reported against its zero
// value.
func (op Operation) Changes() []FieldChange {
	return diffItems(op.Before, op.After)
}

// Patch returns the partial document for an update: every changed field plus
// updatedAt.
func (op Operation) Patch() map[string]any {
	changes := op.Changes()
	patch := make(map[string]any, len(changes)+1)
	for _, c := range changes {
		patch[c.Field] = c.New
	}
	patch["updatedAt"] = op.After.UpdatedAt
	return patch
}

func diffItems(a, b Item) []FieldChange {
	var out []FieldChange
	add := func(field string, oldV, newV any) {
		out = append(out, FieldChange{Field: field, Old: oldV, New: newV})
	}
	if a.PrimaryCode != b.PrimaryCode {
		add("primaryCode", a.PrimaryCode, b.PrimaryCode)
	}
	if a.SecondaryCode != b.SecondaryCode {
		add("secondaryCode", a.SecondaryCode, b.SecondaryCode)
	}
	if a.Description != b.Description {
		add("description", a.Description, b.Description)
	}
	if !a.UnitValue.Equal(b.UnitValue) {
		add("unitValue", a.UnitValue, b.UnitValue)
	}
	if a.LegacyRequestedQty != b.LegacyRequestedQty {
		add("legacyRequestedQty", a.LegacyRequestedQty, b.LegacyRequestedQty)
	}
	if a.LegacyStockQty != b.LegacyStockQty {
		add("legacyStockQty", a.LegacyStockQty, b.LegacyStockQty)
	}
	if !contextsEqual(a.Contexts, b.Contexts) {
		add("contexts", a.Contexts, b.Contexts)
	}
	if !a.DerivedTotal.Equal(b.DerivedTotal) {
		add("derivedTotal", a.DerivedTotal, b.DerivedTotal)
	}
	return out
}

func contextsEqual(a, b []ContextAssignment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name ||
			a[i].Kind != b[i].Kind ||
			a[i].Quantity != b[i].Quantity ||
			!a[i].AssignedAt.Equal(b[i].AssignedAt) {
			return false
		}
	}
	return true
}

package policy

import (
	"github.com/docshield/docshield"
)

// Evaluate resolves the visibility decision for a role and field.
// Precedence is fixed: denial first, then semantic, then partial.
// It is pure and total: unknown roles and fields come out denied.
func Evaluate(t Table, role docshield.Role, field docshield.FieldID) docshield.Decision {
	rule := t.Get(role, field)

	if !rule.CanView {
		return docshield.DecisionDenied
	}

	switch rule.Mask {
	case docshield.MaskSemantic:
		return docshield.DecisionSemantic
	case docshield.MaskPartial:
		return docshield.DecisionPartial
	default:
		return docshield.DecisionFull
	}
}

// EvaluateDocument evaluates every field independently. The decision
// for one field never depends on another.
func EvaluateDocument(t Table, role docshield.Role, fields []docshield.Field) map[docshield.FieldID]docshield.Decision {
	decisions := make(map[docshield.FieldID]docshield.Decision, len(fields))
	for _, field := range fields {
		decisions[field.ID] = Evaluate(t, role, field.ID)
	}
	return decisions
}

// BuiltinTable is the access table loaded into an empty store,
// matching SeedFields. The store is authoritative after seeding.
func BuiltinTable() Table {
	return Table{
		docshield.RoleFounder: {
			"revenue":    {CanView: true, Mask: docshield.MaskNone},
			"risks":      {CanView: true, Mask: docshield.MaskNone},
			"roadmap":    {CanView: true, Mask: docshield.MaskNone},
			"marketSize": {CanView: true, Mask: docshield.MaskNone},
		},
		docshield.RoleEngineer: {
			"revenue":    {CanView: true, Mask: docshield.MaskPartial},
			"risks":      {CanView: false},
			"roadmap":    {CanView: true, Mask: docshield.MaskNone},
			"marketSize": {CanView: true, Mask: docshield.MaskNone},
		},
		docshield.RoleMarketing: {
			"revenue":    {CanView: true, Mask: docshield.MaskPartial},
			"risks":      {CanView: true, Mask: docshield.MaskSemantic},
			"roadmap":    {CanView: true, Mask: docshield.MaskNone},
			"marketSize": {CanView: true, Mask: docshield.MaskNone},
		},
	}
}

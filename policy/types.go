package policy

import (
	"github.com/docshield/docshield"
)

// Rule is one access rule for a (role, field) pair.
// The zero value is the fail-closed default: not viewable.
type Rule struct {
	CanView bool               `json:"canView"`
	Mask    docshield.MaskKind `json:"mask"`
}

// Table is a total mapping from (role, field) to a Rule.
// Pairs absent from the table evaluate to the zero Rule.
type Table map[docshield.Role]map[docshield.FieldID]Rule

func (t Table) lookup(role docshield.Role, field docshield.FieldID) (Rule, bool) {
	rules, ok := t[role]
	if !ok {
		return Rule{}, false
	}
	rule, ok := rules[field]
	return rule, ok
}

// Get resolves the rule for a role and field. The owner falls back to
// the founder profile when the table has no explicit owner row.
func (t Table) Get(role docshield.Role, field docshield.FieldID) Rule {
	rule, ok := t.lookup(role, field)
	if !ok && role == docshield.RoleOwner {
		rule, _ = t.lookup(docshield.RoleFounder, field)
	}
	return rule
}

// Set inserts or replaces a rule, allocating the role row as needed.
func (t Table) Set(role docshield.Role, field docshield.FieldID, rule Rule) {
	rules, ok := t[role]
	if !ok {
		rules = make(map[docshield.FieldID]Rule)
		t[role] = rules
	}
	rules[field] = rule
}

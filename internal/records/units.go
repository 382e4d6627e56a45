package records

import (
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// UnitKeys are the candidate fields holding the unit of a record.
var UnitKeys = []string{"unit", "unitId", "locationUnit", "floor", "wing"}

// Aliases maps free-text unit labels to canonical unit names.
type Aliases map[string]string

// NormalizeUnit trims raw and collapses its internal whitespace, then resolves it through aliases,
// first exactly and then ignoring case.
// It returns "" for an empty label.
func NormalizeUnit(raw string, aliases Aliases) string {
	label := strings.Join(strings.Fields(raw), " ")
	if label == "" {
		return ""
	}

	if target, ok := aliases[label]; ok {
		return canonicalTarget(target, label)
	}

	fold := cases.Fold()
	want := fold.String(label)
	// Sorted so that labels differing only by case resolve the same way every time.
	for _, from := range slices.Sorted(maps.Keys(aliases)) {
		if fold.String(strings.Join(strings.Fields(from), " ")) == want {
			return canonicalTarget(aliases[from], label)
		}
	}
	return label
}

// canonicalTarget normalizes an alias target, keeping label when the target is blank.
func canonicalTarget(target, label string) string {
	t := strings.Join(strings.Fields(target), " ")
	if t == "" {
		return label
	}
	return t
}

// UnitOf returns the normalized unit of a record, or "" when it has none.
func UnitOf(r Record, aliases Aliases) string {
	return NormalizeUnit(r.String(UnitKeys...), aliases)
}

// IsFacility reports whether scope designates the whole facility.
func IsFacility(scope string) bool {
	s := strings.TrimSpace(scope)
	return s == "" || strings.EqualFold(s, FacilityScope)
}

// FacilityScope is the unit scope sentinel disabling unit filtering.
const FacilityScope = "facility"

// MatchesUnit reports whether r belongs to scope.
// Every record matches the facility scope. Otherwise, the normalized unit of the record must equal the
// normalized scope.
func MatchesUnit(r Record, scope string, aliases Aliases) bool {
	if IsFacility(scope) {
		return true
	}
	unit := UnitOf(r, aliases)
	if unit == "" {
		return false
	}
	return unit == NormalizeUnit(scope, aliases)
}

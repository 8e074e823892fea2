package domain

import "sort"

// VariantSet is an immutable, case-insensitive set of spellings that denote the
// same region or country. The zero value is an empty set.
type VariantSet struct {
	items map[string]string // folded -> first-seen spelling
}

// NewVariantSet builds a set from the given spellings. Blank values are skipped.
func NewVariantSet(values ...string) VariantSet {
	items := make(map[string]string, len(values))
	for _, v := range values {
		key := Fold(v)
		if key == "" {
			continue
		}
		if _, ok := items[key]; !ok {
			items[key] = v
		}
	}
	return VariantSet{items: items}
}

// Len returns the number of distinct spellings.
func (s VariantSet) Len() int { return len(s.items) }

// IsEmpty reports whether the set has no members.
func (s VariantSet) IsEmpty() bool { return len(s.items) == 0 }

// Contains reports whether v is a member, ignoring case and surrounding space.
func (s VariantSet) Contains(v string) bool {
	_, ok := s.items[Fold(v)]
	return ok
}

// Values returns the spellings sorted alphabetically.
func (s VariantSet) Values() []string {
	out := make([]string, 0, len(s.items))
	for _, v := range s.items {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Keys returns the case-folded spellings sorted alphabetically. Stores use them
// for case-insensitive membership queries.
func (s VariantSet) Keys() []string {
	out := make([]string, 0, len(s.items))
	for k := range s.items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets contain the same spellings, ignoring case.
func (s VariantSet) Equal(other VariantSet) bool {
	if len(s.items) != len(other.items) {
		return false
	}
	for k := range s.items {
		if _, ok := other.items[k]; !ok {
			return false
		}
	}
	return true
}

package reconcile

import "strings"

// SuggestMapping proposes an incoming column for each reference column, in
// reference order. An exact case-insensitive name match is tried first; if
// none exists, the reference name lowercased and stripped of spaces must
// appear inside the lowercased incoming name. In both passes the first
// incoming column in schema order wins; candidates are never ranked.
// Reference columns with no candidate are left unmapped.
func SuggestMapping(refColumns, incColumns []string) Mapping {
	lowered := make([]string, len(incColumns))
	for i, c := range incColumns {
		lowered[i] = strings.ToLower(c)
	}

	var m Mapping
	for _, ref := range refColumns {
		if inc, ok := matchColumn(strings.ToLower(ref), incColumns, lowered); ok {
			m = m.With(ref, inc)
		}
	}
	return m
}

func matchColumn(ref string, incColumns, lowered []string) (string, bool) {
	for i, l := range lowered {
		if l == ref {
			return incColumns[i], true
		}
	}

	// A name made only of spaces strips to "", which every column contains.
	stripped := strings.ReplaceAll(ref, " ", "")
	for i, l := range lowered {
		if strings.Contains(l, stripped) {
			return incColumns[i], true
		}
	}
	return "", false
}

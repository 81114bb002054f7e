package reconcile

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/table"
)

// Pair maps one reference column to one incoming column.
type Pair struct {
	Reference string `json:"reference" yaml:"reference"`
	Incoming  string `json:"incoming" yaml:"incoming"`
}

// Mapping is an ordered partial function from reference columns to incoming
// columns. The first pair is the key pair used for novelty detection.
// Mapping values are immutable; every modifier returns a new Mapping.
type Mapping struct {
	pairs []Pair
}

// NewMapping builds a mapping from pairs in order. A later pair for the same
// reference column replaces the earlier one in place.
func NewMapping(pairs ...Pair) Mapping {
	var m Mapping
	for _, p := range pairs {
		m = m.With(p.Reference, p.Incoming)
	}
	return m
}

// Len returns the number of mapped reference columns.
func (m Mapping) Len() int { return len(m.pairs) }

// IsEmpty reports whether no column is mapped.
func (m Mapping) IsEmpty() bool { return len(m.pairs) == 0 }

// Pairs returns a copy of the pairs in order.
func (m Mapping) Pairs() []Pair {
	out := make([]Pair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// Get returns the incoming column mapped to ref.
func (m Mapping) Get(ref string) (string, bool) {
	for _, p := range m.pairs {
		if p.Reference == ref {
			return p.Incoming, true
		}
	}
	return "", false
}

// With returns a mapping where ref maps to inc. An existing entry for ref
// keeps its position.
func (m Mapping) With(ref, inc string) Mapping {
	out := make([]Pair, 0, len(m.pairs)+1)
	replaced := false
	for _, p := range m.pairs {
		if p.Reference == ref {
			out = append(out, Pair{Reference: ref, Incoming: inc})
			replaced = true
			continue
		}
		out = append(out, p)
	}
	if !replaced {
		out = append(out, Pair{Reference: ref, Incoming: inc})
	}
	return Mapping{pairs: out}
}

// Without returns a mapping with ref unmapped.
func (m Mapping) Without(ref string) Mapping {
	out := make([]Pair, 0, len(m.pairs))
	for _, p := range m.pairs {
		if p.Reference != ref {
			out = append(out, p)
		}
	}
	return Mapping{pairs: out}
}

// WithKey returns a mapping whose first pair is the one for ref, so that ref
// becomes the key column. ref must already be mapped.
func (m Mapping) WithKey(ref string) (Mapping, error) {
	inc, ok := m.Get(ref)
	if !ok {
		return Mapping{}, eris.Wrapf(ErrInvalidMapping, "key column %q is not mapped", ref)
	}
	out := make([]Pair, 0, len(m.pairs))
	out = append(out, Pair{Reference: ref, Incoming: inc})
	for _, p := range m.pairs {
		if p.Reference != ref {
			out = append(out, p)
		}
	}
	return Mapping{pairs: out}, nil
}

// KeyPair returns the first pair of the mapping.
func (m Mapping) KeyPair() (Pair, error) {
	if len(m.pairs) == 0 {
		return Pair{}, ErrEmptyMapping
	}
	return m.pairs[0], nil
}

// Validate checks that every mapped column exists in the given datasets.
func (m Mapping) Validate(ref, inc *table.Dataset) error {
	for _, p := range m.pairs {
		if !ref.HasColumn(p.Reference) {
			return &MappingError{Side: SideReference, Column: p.Reference}
		}
		if !inc.HasColumn(p.Incoming) {
			return &MappingError{Side: SideIncoming, Column: p.Incoming}
		}
	}
	return nil
}

// Equal reports whether both mappings hold the same pairs in the same order.
func (m Mapping) Equal(o Mapping) bool {
	if len(m.pairs) != len(o.pairs) {
		return false
	}
	for i, p := range m.pairs {
		if o.pairs[i] != p {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the mapping as an ordered list of pairs.
func (m Mapping) MarshalJSON() ([]byte, error) {
	pairs := m.pairs
	if pairs == nil {
		pairs = []Pair{}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON decodes an ordered list of pairs.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	var pairs []Pair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return eris.Wrap(err, "reconcile: decode mapping")
	}
	*m = NewMapping(pairs...)
	return nil
}

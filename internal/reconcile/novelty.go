package reconcile

import (
	"github.com/sells-group/reconcile-cli/internal/table"
)

// NovelRowSet holds the incoming rows whose key identity is absent from the
// reference dataset, in incoming order.
type NovelRowSet struct {
	// Rows are the novel rows in the incoming schema.
	Rows *table.Dataset
	// Indices are the positions of Rows in the incoming dataset.
	Indices []int
	// Counts describes how every row was classified.
	Counts NoveltyCounts
}

// NoveltyCounts partitions the rows seen by FindNovel. Rows with a null key
// are neither novel nor matched; they are counted so callers can surface
// them for manual review.
type NoveltyCounts struct {
	ReferenceRows     int `json:"reference_rows"`
	ReferenceTokens   int `json:"reference_tokens"`
	ReferenceNullKeys int `json:"reference_null_keys"`
	IncomingRows      int `json:"incoming_rows"`
	Novel             int `json:"novel"`
	Matched           int `json:"matched"`
	ExcludedNullKeys  int `json:"excluded_null_keys"`
}

// FindNovel returns the incoming rows whose token under key.Incoming is
// non-null and not among the reference tokens under key.Reference. Repeated
// identities within the incoming dataset are all reported.
func FindNovel(ref, inc *table.Dataset, key Pair) (*NovelRowSet, error) {
	refKeys, ok := ref.Column(key.Reference)
	if !ok {
		return nil, &MappingError{Side: SideReference, Column: key.Reference}
	}
	incKeys, ok := inc.Column(key.Incoming)
	if !ok {
		return nil, &MappingError{Side: SideIncoming, Column: key.Incoming}
	}

	counts := NoveltyCounts{ReferenceRows: ref.Len(), IncomingRows: inc.Len()}

	known := make(map[string]struct{}, ref.Len())
	for _, v := range refKeys {
		tok := Normalize(v)
		if tok.IsNull() {
			counts.ReferenceNullKeys++
			continue
		}
		known[tok.String()] = struct{}{}
	}
	counts.ReferenceTokens = len(known)

	var indices []int
	for i, v := range incKeys {
		tok := Normalize(v)
		if tok.IsNull() {
			counts.ExcludedNullKeys++
			continue
		}
		if _, ok := known[tok.String()]; ok {
			counts.Matched++
			continue
		}
		indices = append(indices, i)
	}
	counts.Novel = len(indices)

	return &NovelRowSet{
		Rows:    inc.Subset(indices),
		Indices: indices,
		Counts:  counts,
	}, nil
}

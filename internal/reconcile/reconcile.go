// Package reconcile finds the rows of an incoming dataset that are missing
// from a reference dataset and appends them in the reference layout.
//
// A run has four stages, each a pure function of its arguments:
//
//  1. SuggestMapping proposes reference→incoming column pairs by name.
//  2. The caller confirms or overrides the Mapping.
//  3. FindNovel compares the key pair (the mapping's first entry) using
//     Normalize and keeps incoming rows whose identity is unknown.
//  4. Project reshapes those rows into the reference schema and Merge
//     appends them after the reference rows.
//
// Reconcile chains stages 3 and 4. Nothing in this package logs, retries or
// keeps state between calls.
package reconcile

import (
	"github.com/sells-group/reconcile-cli/internal/table"
)

// Result is the outcome of one reconciliation.
type Result struct {
	Mapping   Mapping
	Key       Pair
	Novel     *NovelRowSet
	Projected *table.Dataset
	Updated   *table.Dataset
}

// Stats summarizes a Result.
type Stats struct {
	NoveltyCounts
	UpdatedRows int `json:"updated_rows"`
}

// Stats returns the row counts of r.
func (r *Result) Stats() Stats {
	return Stats{NoveltyCounts: r.Novel.Counts, UpdatedRows: r.Updated.Len()}
}

// Reconcile validates m against both datasets, detects novel incoming rows
// under the key pair and returns them projected and merged into ref.
func Reconcile(ref, inc *table.Dataset, m Mapping) (*Result, error) {
	key, err := m.KeyPair()
	if err != nil {
		return nil, err
	}
	if err := m.Validate(ref, inc); err != nil {
		return nil, err
	}

	novel, err := FindNovel(ref, inc, key)
	if err != nil {
		return nil, err
	}

	projected, err := Project(novel.Rows, m, ref.Schema())
	if err != nil {
		return nil, err
	}

	updated, err := Merge(ref, projected)
	if err != nil {
		return nil, err
	}

	return &Result{
		Mapping:   m,
		Key:       key,
		Novel:     novel,
		Projected: projected,
		Updated:   updated,
	}, nil
}

package reconcile

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/table"
)

// Project reshapes rows into refSchema. A reference column takes the value of
// its mapped incoming column when that column exists in rows; every other
// reference column is null. Incoming columns outside the mapping are dropped.
func Project(rows *table.Dataset, m Mapping, refSchema []string) (*table.Dataset, error) {
	sources := make([]int, len(refSchema))
	for j, col := range refSchema {
		sources[j] = -1
		if inc, ok := m.Get(col); ok {
			sources[j] = rows.ColumnIndex(inc)
		}
	}

	out := make([][]table.Value, rows.Len())
	for i := range rows.Len() {
		src := rows.Row(i)
		row := make([]table.Value, len(refSchema))
		for j, s := range sources {
			if s >= 0 {
				row[j] = src[s]
			}
		}
		out[i] = row
	}

	ds, err := table.NewDataset(refSchema, out)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: project")
	}
	return ds, nil
}

// Merge returns the reference rows followed by the projected rows. The
// projected dataset must already have the reference schema. Neither input is
// modified.
func Merge(ref, projected *table.Dataset) (*table.Dataset, error) {
	if !ref.SameSchema(projected) {
		return nil, eris.Wrapf(ErrSchemaMismatch, "projected columns %v, reference columns %v", projected.Schema(), ref.Schema())
	}
	return ref.Concat(projected)
}

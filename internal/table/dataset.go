package table

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

var (
	// ErrDuplicateColumn is returned when a schema names a column twice.
	ErrDuplicateColumn = eris.New("table: duplicate column")

	// ErrRowWidth is returned when a row has more cells than the schema has columns.
	ErrRowWidth = eris.New("table: row wider than schema")
)

// Dataset is an immutable schema plus ordered rows. Rows are stored in
// schema order; derived datasets share row storage with their source, which
// is safe because no row is written after construction.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// NewDataset builds a dataset from a schema and rows given in schema order.
// Input slices are copied. Rows shorter than the schema are padded with
// nulls.
func NewDataset(columns []string, rows [][]Value) (*Dataset, error) {
	d, err := newSchema(columns)
	if err != nil {
		return nil, err
	}
	d.rows = make([][]Value, len(rows))
	for i, r := range rows {
		if len(r) > len(columns) {
			return nil, eris.Wrapf(ErrRowWidth, "row %d has %d cells, schema has %d columns", i, len(r), len(columns))
		}
		row := make([]Value, len(columns))
		copy(row, r)
		d.rows[i] = row
	}
	return d, nil
}

// FromRecords builds a dataset from rows keyed by column name. Columns
// missing from a record are null; keys not in the schema are ignored.
func FromRecords(columns []string, records []map[string]Value) (*Dataset, error) {
	d, err := newSchema(columns)
	if err != nil {
		return nil, err
	}
	d.rows = make([][]Value, len(records))
	for i, rec := range records {
		row := make([]Value, len(columns))
		for j, c := range columns {
			row[j] = rec[c]
		}
		d.rows[i] = row
	}
	return d, nil
}

// MustDataset is NewDataset that panics on error. Intended for fixtures.
func MustDataset(columns []string, rows [][]Value) *Dataset {
	d, err := NewDataset(columns, rows)
	if err != nil {
		panic(err)
	}
	return d
}

func newSchema(columns []string) (*Dataset, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, eris.Wrapf(ErrDuplicateColumn, "column %q", c)
		}
		index[c] = i
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Dataset{columns: cols, index: index}, nil
}

// Schema returns a copy of the column names in order.
func (d *Dataset) Schema() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// Width returns the number of columns.
func (d *Dataset) Width() int { return len(d.columns) }

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// HasColumn reports whether the schema contains col.
func (d *Dataset) HasColumn(col string) bool {
	_, ok := d.index[col]
	return ok
}

// ColumnIndex returns the position of col in the schema, or -1.
func (d *Dataset) ColumnIndex(col string) int {
	if i, ok := d.index[col]; ok {
		return i
	}
	return -1
}

// Value returns the cell at row i under col. The second result is false when
// the column does not exist.
func (d *Dataset) Value(i int, col string) (Value, bool) {
	j, ok := d.index[col]
	if !ok {
		return Null(), false
	}
	return d.rows[i][j], true
}

// Row returns a copy of row i in schema order.
func (d *Dataset) Row(i int) []Value {
	out := make([]Value, len(d.rows[i]))
	copy(out, d.rows[i])
	return out
}

// Column returns a copy of every cell under col, in row order.
func (d *Dataset) Column(col string) ([]Value, bool) {
	j, ok := d.index[col]
	if !ok {
		return nil, false
	}
	out := make([]Value, len(d.rows))
	for i, r := range d.rows {
		out[i] = r[j]
	}
	return out, true
}

// Subset returns a dataset with the same schema holding the given rows in
// the given order.
func (d *Dataset) Subset(indices []int) *Dataset {
	rows := make([][]Value, len(indices))
	for k, i := range indices {
		rows[k] = d.rows[i]
	}
	return &Dataset{columns: d.columns, index: d.index, rows: rows}
}

// SameSchema reports whether both datasets have identical columns in the
// same order.
func (d *Dataset) SameSchema(o *Dataset) bool {
	if len(d.columns) != len(o.columns) {
		return false
	}
	for i, c := range d.columns {
		if o.columns[i] != c {
			return false
		}
	}
	return true
}

// Concat returns a new dataset holding d's rows followed by o's rows. Both
// datasets must share the same schema.
func (d *Dataset) Concat(o *Dataset) (*Dataset, error) {
	if !d.SameSchema(o) {
		return nil, eris.New("table: concat requires identical schemas")
	}
	rows := make([][]Value, 0, len(d.rows)+len(o.rows))
	rows = append(rows, d.rows...)
	rows = append(rows, o.rows...)
	return &Dataset{columns: d.columns, index: d.index, rows: rows}, nil
}

// Equal reports whether both datasets have the same schema and cells.
func (d *Dataset) Equal(o *Dataset) bool {
	if !d.SameSchema(o) || len(d.rows) != len(o.rows) {
		return false
	}
	for i := range d.rows {
		for j := range d.rows[i] {
			if !d.rows[i][j].Equal(o.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

type jsonDataset struct {
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

// MarshalJSON encodes the dataset as {"columns": [...], "rows": [[...]]}.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	rows := d.rows
	if rows == nil {
		rows = [][]Value{}
	}
	return json.Marshal(jsonDataset{Columns: d.columns, Rows: rows})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	var raw jsonDataset
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "table: decode dataset")
	}
	nd, err := NewDataset(raw.Columns, raw.Rows)
	if err != nil {
		return err
	}
	*d = *nd
	return nil
}

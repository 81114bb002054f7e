package table

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Text(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Null(), ""},
		{"string", String(" A1 "), " A1 "},
		{"integral number", Number(1012345678), "1012345678"},
		{"negative integral", Number(-7), "-7"},
		{"fraction", Number(1.5), "1.5"},
		{"date", Date(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)), "2024-03-01 00:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Text())
		})
	}
}

func TestValue_NaNIsNull(t *testing.T) {
	var zero float64
	assert.True(t, Number(zero/zero).IsNull())
}

func TestValue_ZeroIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.Equal(t, KindNull, v.Kind())
	assert.Equal(t, "null", v.Kind().String())
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, String("a").Equal(String("a")))
	assert.False(t, String("1").Equal(Number(1)))
	assert.True(t, Null().Equal(Null()))
	assert.False(t, Number(1).Equal(Number(2)))
}

func TestValue_JSON(t *testing.T) {
	data, err := json.Marshal([]Value{Null(), String("x"), Number(2)})
	require.NoError(t, err)
	assert.JSONEq(t, `[null,"x",2]`, string(data))

	var back []Value
	require.NoError(t, json.Unmarshal([]byte(`[null,"x",2,true]`), &back))
	require.Len(t, back, 4)
	assert.True(t, back[0].IsNull())
	assert.Equal(t, "x", back[1].Text())
	f, ok := back[2].Float()
	assert.True(t, ok)
	assert.Equal(t, 2.0, f)
	assert.Equal(t, "true", back[3].Text())
}

func TestValue_UnmarshalRejectsObjects(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte(`{"a":1}`), &v)
	require.Error(t, err)
}

func TestNewDataset_DuplicateColumn(t *testing.T) {
	_, err := NewDataset([]string{"a", "b", "a"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateColumn))
}

func TestNewDataset_RowTooWide(t *testing.T) {
	_, err := NewDataset([]string{"a"}, [][]Value{{String("1"), String("2")}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRowWidth))
}

func TestNewDataset_PadsShortRows(t *testing.T) {
	d, err := NewDataset([]string{"a", "b"}, [][]Value{{String("1")}})
	require.NoError(t, err)
	v, ok := d.Value(0, "b")
	assert.True(t, ok)
	assert.True(t, v.IsNull())
}

func TestNewDataset_CopiesInput(t *testing.T) {
	cols := []string{"a"}
	rows := [][]Value{{String("1")}}
	d := MustDataset(cols, rows)

	cols[0] = "z"
	rows[0][0] = String("changed")

	assert.Equal(t, []string{"a"}, d.Schema())
	v, _ := d.Value(0, "a")
	assert.Equal(t, "1", v.Text())
}

func TestDataset_AccessorsReturnCopies(t *testing.T) {
	d := MustDataset([]string{"a"}, [][]Value{{String("1")}})

	s := d.Schema()
	s[0] = "z"
	r := d.Row(0)
	r[0] = String("changed")

	assert.Equal(t, []string{"a"}, d.Schema())
	v, _ := d.Value(0, "a")
	assert.Equal(t, "1", v.Text())
}

func TestDataset_ValueUnknownColumn(t *testing.T) {
	d := MustDataset([]string{"a"}, [][]Value{{String("1")}})
	v, ok := d.Value(0, "missing")
	assert.False(t, ok)
	assert.True(t, v.IsNull())
	assert.Equal(t, -1, d.ColumnIndex("missing"))
}

func TestFromRecords(t *testing.T) {
	d, err := FromRecords([]string{"id", "name"}, []map[string]Value{
		{"id": String("1"), "name": String("Ana"), "extra": String("ignored")},
		{"id": String("2")},
	})
	require.NoError(t, err)
	require.Equal(t, 2, d.Len())
	id, _ := d.Value(1, "id")
	name, _ := d.Value(1, "name")
	assert.Equal(t, String("2"), id)
	assert.True(t, name.IsNull())
	assert.False(t, d.HasColumn("extra"))
}

func TestDataset_Subset(t *testing.T) {
	d := MustDataset([]string{"n"}, [][]Value{{Number(0)}, {Number(1)}, {Number(2)}, {Number(3)}})

	sub := d.Subset([]int{3, 1})
	col, ok := sub.Column("n")
	require.True(t, ok)
	assert.Equal(t, []Value{Number(3), Number(1)}, col)
	assert.Equal(t, 0, d.Subset(nil).Len())

	_, ok = d.Column("missing")
	assert.False(t, ok)
}

func TestDataset_Concat(t *testing.T) {
	a := MustDataset([]string{"x"}, [][]Value{{String("1")}})
	b := MustDataset([]string{"x"}, [][]Value{{String("2")}})

	c, err := a.Concat(b)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())

	_, err = a.Concat(MustDataset([]string{"y"}, nil))
	require.Error(t, err)
}

func TestDataset_JSONRoundTrip(t *testing.T) {
	d := MustDataset([]string{"id", "age"}, [][]Value{
		{String("A1"), Number(30)},
		{String("B2"), Null()},
	})
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":["id","age"],"rows":[["A1",30],["B2",null]]}`, string(data))

	var back Dataset
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, d.Equal(&back))
}

func TestDataset_JSONEmptyRows(t *testing.T) {
	d := MustDataset([]string{"id"}, nil)
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":["id"],"rows":[]}`, string(data))
}

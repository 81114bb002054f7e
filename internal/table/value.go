// Package table holds the immutable tabular values exchanged between the
// spreadsheet collaborators and the reconciliation engine.
package table

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Kind identifies the type of a cell value.
type Kind int

// Cell kinds.
const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindDate
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

// DateLayout is the textual form of date cells.
const DateLayout = "2006-01-02 15:04:05"

// Value is a single cell: null, string, number or date. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	date time.Time
}

// Null returns the null cell value.
func Null() Value { return Value{} }

// String returns a string cell.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric cell. NaN is treated as null, matching how
// spreadsheet readers represent missing numeric cells.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Date returns a date cell.
func Date(t time.Time) Value { return Value{kind: KindDate, date: t} }

// Kind returns the kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is absent.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload and whether v is a string cell.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Float returns the numeric payload and whether v is a number cell.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Time returns the date payload and whether v is a date cell.
func (v Value) Time() (time.Time, bool) { return v.date, v.kind == KindDate }

// Text returns the textual representation of v. Integral numbers render
// without a fractional part so that numeric identifiers read like the
// digits typed into the sheet. Null renders as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1e15 {
			return strconv.FormatInt(int64(v.num), 10)
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindDate:
		return v.date.Format(DateLayout)
	default:
		return ""
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindDate:
		return v.date.Equal(o.date)
	default:
		return true
	}
}

// MarshalJSON encodes null as null, numbers as JSON numbers, and strings and
// dates as JSON strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindDate:
		return json.Marshal(v.date.Format(DateLayout))
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes null, numbers and strings. Dates arrive as strings
// and stay strings. Booleans are kept as their textual form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "table: decode cell")
	}
	switch x := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = String(x)
	case float64:
		*v = Number(x)
	case bool:
		*v = String(strconv.FormatBool(x))
	default:
		return eris.Errorf("table: unsupported cell type %T", raw)
	}
	return nil
}

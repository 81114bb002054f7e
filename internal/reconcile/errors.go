package reconcile

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrInvalidMapping is returned when a mapping names a column that does
	// not exist in the dataset it is applied to.
	ErrInvalidMapping = eris.New("reconcile: invalid mapping")

	// ErrEmptyMapping is returned when novelty detection is requested without
	// any mapped column to use as key.
	ErrEmptyMapping = eris.New("reconcile: empty mapping")

	// ErrSchemaMismatch is returned when projected rows do not have the
	// reference schema.
	ErrSchemaMismatch = eris.New("reconcile: schema mismatch")
)

// Side names which dataset a column belongs to.
type Side string

// Dataset sides.
const (
	SideReference Side = "reference"
	SideIncoming  Side = "incoming"
)

// MappingError describes a mapped column missing from its dataset. It
// unwraps to ErrInvalidMapping.
type MappingError struct {
	Side   Side
	Column string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s: %s column %q not in schema", ErrInvalidMapping.Error(), e.Side, e.Column)
}

func (e *MappingError) Unwrap() error {
	return ErrInvalidMapping
}

package reconcile

import (
	"strings"

	"github.com/sells-group/reconcile-cli/internal/table"
)

// Token is the comparison form of a key cell. The zero Token carries no
// identity and is never equal to a token built from a non-null cell.
type Token struct {
	key   string
	valid bool
}

// Normalize converts a cell into its identity token: the cell's text with
// surrounding whitespace removed, lowercased. Null cells yield a token with
// no identity. Nothing else is folded, so accents and number formatting must
// already agree between the two sources.
func Normalize(v table.Value) Token {
	if v.IsNull() {
		return Token{}
	}
	return Token{key: strings.ToLower(strings.TrimSpace(v.Text())), valid: true}
}

// IsNull reports whether the token carries no identity.
func (t Token) IsNull() bool { return !t.valid }

// String returns the normalized key, or the empty string for null tokens.
func (t Token) String() string { return t.key }

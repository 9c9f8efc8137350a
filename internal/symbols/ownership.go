package symbols

import (
	"fmt"

	"owninfer/internal/ast"
)

// Ownership is how a parameter or receiver is passed.
type Ownership uint8

const (
	Owned Ownership = iota
	Borrowed
	MutBorrowed
)

func (o Ownership) String() string {
	switch o {
	case Owned:
		return "owned"
	case Borrowed:
		return "borrowed"
	case MutBorrowed:
		return "mut_borrowed"
	default:
		return "?"
	}
}

// MarshalText lets decisions serialise by name in YAML and JSON.
func (o Ownership) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Ownership) UnmarshalText(text []byte) error {
	for _, c := range []Ownership{Owned, Borrowed, MutBorrowed} {
		if c.String() == string(text) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown ownership %q", text)
}

// FromHint maps an explicit hint to its ownership; ok is false for Inferred.
func FromHint(h ast.OwnershipHint) (Ownership, bool) {
	switch h {
	case ast.HintOwned:
		return Owned, true
	case ast.HintRef:
		return Borrowed, true
	case ast.HintMut:
		return MutBorrowed, true
	}
	return Owned, false
}

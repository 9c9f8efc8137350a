// Package ownership turns the usage facts of one function into the
// parameter-passing mode of every parameter and receiver.
package ownership

import (
	"fmt"
	"slices"

	"owninfer/internal/ast"
	"owninfer/internal/source"
	"owninfer/internal/symbols"
	"owninfer/internal/usage"
)

// Reason records which rule produced a decision.
type Reason uint8

const (
	ReasonReadOnly Reason = iota
	ReasonHint
	ReasonCopy
	ReasonTrait
	ReasonConsumed
	ReasonAmbiguous
	ReasonReassigned
	ReasonUnused
	ReasonMutated
	ReasonSelfDefault
	ReasonSelfMutated
)

func (r Reason) String() string {
	switch r {
	case ReasonReadOnly:
		return "only read"
	case ReasonHint:
		return "explicit hint"
	case ReasonCopy:
		return "copy type"
	case ReasonTrait:
		return "trait signature"
	case ReasonConsumed:
		return "moved, stored or returned"
	case ReasonAmbiguous:
		return "ambiguous use"
	case ReasonReassigned:
		return "reassigned"
	case ReasonUnused:
		return "unused"
	case ReasonMutated:
		return "mutated in place"
	case ReasonSelfDefault:
		return "receiver default"
	case ReasonSelfMutated:
		return "receiver mutated"
	default:
		return "?"
	}
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Reason) UnmarshalText(text []byte) error {
	for c := ReasonReadOnly; c <= ReasonSelfMutated; c++ {
		if c.String() == string(text) {
			*r = c
			return nil
		}
	}
	return fmt.Errorf("unknown decision reason %q", text)
}

// Decision is the passing mode of one parameter.
type Decision struct {
	Param     int               `yaml:"param" json:"param" msgpack:"param"`
	Name      string            `yaml:"name" json:"name" msgpack:"name"`
	Binding   usage.BindingID   `yaml:"-" json:"-" msgpack:"-"`
	Self      bool              `yaml:"self,omitempty" json:"self,omitempty" msgpack:"self,omitempty"`
	Ownership symbols.Ownership `yaml:"ownership" json:"ownership" msgpack:"ownership"`
	Reason    Reason            `yaml:"reason" json:"reason" msgpack:"reason"`
	Hint      ast.OwnershipHint `yaml:"-" json:"-" msgpack:"-"`
	// TextView marks a borrowed text parameter that codegen may pass as a
	// read-only view instead of an owned string.
	TextView bool        `yaml:"text_view,omitempty" json:"text_view,omitempty" msgpack:"text_view,omitempty"`
	NeedsMut bool        `yaml:"needs_mut,omitempty" json:"needs_mut,omitempty" msgpack:"needs_mut,omitempty"`
	Span     source.Span `yaml:"-" json:"-" msgpack:"-"`
}

// Explicit reports whether the author wrote the passing mode.
func (d Decision) Explicit() bool { return d.Hint != ast.HintInferred }

// Local is a let or pattern binding whose declaration needs `mut`.
type Local struct {
	Binding usage.BindingID `yaml:"-" json:"-" msgpack:"-"`
	Name    string          `yaml:"name" json:"name" msgpack:"name"`
	Span    source.Span     `yaml:"-" json:"-" msgpack:"-"`
}

// Decisions is the immutable outcome of Infer for one function.
type Decisions struct {
	Fn        ast.ItemID
	Params    []Decision
	MutLocals []Local
	Conflicts []Conflict
}

// Ownerships returns the per-parameter modes in declaration order, the
// shape published in a signature snapshot.
func (d *Decisions) Ownerships() []symbols.Ownership {
	out := make([]symbols.Ownership, len(d.Params))
	for i, p := range d.Params {
		out[i] = p.Ownership
	}
	return out
}

// Param returns the decision of parameter idx.
func (d *Decisions) Param(idx int) (Decision, bool) {
	if idx < 0 || idx >= len(d.Params) {
		return Decision{}, false
	}
	return d.Params[idx], true
}

// ForBinding returns the decision of the parameter bound to b.
func (d *Decisions) ForBinding(b usage.BindingID) (Decision, bool) {
	i := slices.IndexFunc(d.Params, func(p Decision) bool { return p.Binding == b })
	if i < 0 {
		return Decision{}, false
	}
	return d.Params[i], true
}

// Equal compares the parameter modes only.
func (d *Decisions) Equal(o *Decisions) bool {
	if d == nil || o == nil {
		return d == o
	}
	return slices.Equal(d.Ownerships(), o.Ownerships())
}

package symbols

import (
	"maps"
	"slices"

	"owninfer/internal/ast"
	"owninfer/internal/config"
)

// Signatures is an immutable snapshot of the parameter ownership of every
// local function, one entry per declared parameter including self. The
// driver publishes a new snapshot per fixpoint round; passes only read it.
type Signatures struct {
	round  int
	params map[ast.ItemID][]Ownership
}

// NewSignatures copies params into a new snapshot.
func NewSignatures(round int, params map[ast.ItemID][]Ownership) *Signatures {
	cp := make(map[ast.ItemID][]Ownership, len(params))
	for id, ps := range params {
		cp[id] = slices.Clone(ps)
	}
	return &Signatures{round: round, params: cp}
}

func (s *Signatures) Round() int {
	if s == nil {
		return 0
	}
	return s.round
}

// Param returns the ownership of parameter idx of fn.
func (s *Signatures) Param(fn ast.ItemID, idx int) (Ownership, bool) {
	if s == nil {
		return Owned, false
	}
	ps, ok := s.params[fn]
	if !ok || idx < 0 || idx >= len(ps) {
		return Owned, false
	}
	return ps[idx], true
}

// Params returns a copy of fn's parameter ownership.
func (s *Signatures) Params(fn ast.ItemID) []Ownership {
	if s == nil {
		return nil
	}
	return slices.Clone(s.params[fn])
}

func (s *Signatures) Equal(o *Signatures) bool {
	if s == nil || o == nil {
		return s == o
	}
	return maps.EqualFunc(s.params, o.params, func(a, b []Ownership) bool { return slices.Equal(a, b) })
}

// Context is everything a per-function pass may read. It is built once per
// round and shared read-only by all workers.
type Context struct {
	Unit   *ast.Unit
	Table  *Table
	Policy *config.Policy
	Sigs   *Signatures
}

// CalleeParam returns how parameter idx of local function fn is passed:
// its explicit hint when written, else the current snapshot, else Owned.
func (c *Context) CalleeParam(fn ast.ItemID, idx int) Ownership {
	decl, ok := c.Unit.AST.Items.Fn(fn)
	if !ok || idx < 0 || idx >= len(decl.Params) {
		return Owned
	}
	p := c.Unit.AST.Items.Param(decl.Params[idx])
	if o, ok := FromHint(p.Hint); ok {
		return o
	}
	if o, ok := c.Sigs.Param(fn, idx); ok {
		return o
	}
	return Owned
}

// TraitParam is the trait-level ownership of a declared trait parameter:
// explicit hints as written, Inferred resolves to Owned for copy types and
// Borrowed otherwise.
func (c *Context) TraitParam(p ParamSig) Ownership {
	if o, ok := FromHint(p.Hint); ok {
		return o
	}
	if !p.Self && c.Table.IsCopyType(c.Unit.AST.Types, p.Type, 0) {
		return Owned
	}
	return Borrowed
}

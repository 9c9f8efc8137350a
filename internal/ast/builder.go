package ast

// Hints sizes the arenas of a new Builder; zero fields use per-arena defaults.
type Hints struct {
	Items, Stmts, Exprs, Patterns, Types uint
}

// Builder owns every arena of one compilation unit.
type Builder struct {
	Items    *Items
	Stmts    *Stmts
	Exprs    *Exprs
	Patterns *Patterns
	Types    *Types
}

func NewBuilder(hints Hints) *Builder {
	return &Builder{
		Items:    NewItems(hints.Items),
		Stmts:    NewStmts(hints.Stmts),
		Exprs:    NewExprs(hints.Exprs),
		Patterns: NewPatterns(hints.Patterns),
		Types:    NewTypes(hints.Types),
	}
}

// NodeCount is the number of expression and statement nodes allocated so far.
func (b *Builder) NodeCount() uint32 {
	return b.Exprs.Arena.Len() + b.Stmts.Arena.Len()
}

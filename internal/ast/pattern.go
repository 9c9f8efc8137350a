package ast

import (
	"slices"

	"owninfer/internal/source"
)

type PatternKind uint8

const (
	PatWildcard PatternKind = iota
	PatIdent
	PatLit
	PatTuple
	PatStruct
	// PatVariant is an enum variant with positional sub-patterns: Some(x).
	PatVariant
	PatOr
)

type Pattern struct {
	Kind    PatternKind
	Span    source.Span
	Payload PayloadID
}

type PatIdentData struct {
	Name  source.StringID
	Mut   bool
	ByRef bool
}

type PatLitData struct {
	Kind  LitKind
	Value source.StringID
}

// PatListData backs tuple and or-patterns.
type PatListData struct {
	Elems []PatternID
}

type PatField struct {
	Name    source.StringID
	Pattern PatternID
}

type PatStructData struct {
	Name   source.StringID
	Fields []PatField
	Rest   bool // trailing `..`
}

type PatVariantData struct {
	Name  source.StringID
	Elems []PatternID
}

type Patterns struct {
	Arena    *Arena[Pattern]
	Idents   *Arena[PatIdentData]
	Literals *Arena[PatLitData]
	Lists    *Arena[PatListData]
	Structs  *Arena[PatStructData]
	Variants *Arena[PatVariantData]
}

func NewPatterns(capHint uint) *Patterns {
	if capHint == 0 {
		capHint = 1 << 6
	}
	return &Patterns{
		Arena:    NewArena[Pattern](capHint),
		Idents:   NewArena[PatIdentData](capHint),
		Literals: NewArena[PatLitData](capHint),
		Lists:    NewArena[PatListData](capHint),
		Structs:  NewArena[PatStructData](capHint),
		Variants: NewArena[PatVariantData](capHint),
	}
}

func (p *Patterns) new(kind PatternKind, span source.Span, payload uint32) PatternID {
	return PatternID(p.Arena.Allocate(Pattern{Kind: kind, Span: span, Payload: PayloadID(payload)}))
}

func (p *Patterns) Get(id PatternID) *Pattern {
	return p.Arena.Get(uint32(id))
}

func (p *Patterns) NewWildcard(span source.Span) PatternID {
	return p.new(PatWildcard, span, 0)
}

func (p *Patterns) NewIdent(span source.Span, name source.StringID, mut bool) PatternID {
	return p.new(PatIdent, span, p.Idents.Allocate(PatIdentData{Name: name, Mut: mut}))
}

func (p *Patterns) Ident(id PatternID) (*PatIdentData, bool) {
	pat := p.Get(id)
	if pat == nil || pat.Kind != PatIdent {
		return nil, false
	}
	return p.Idents.Get(uint32(pat.Payload)), true
}

func (p *Patterns) NewLiteral(span source.Span, kind LitKind, value source.StringID) PatternID {
	return p.new(PatLit, span, p.Literals.Allocate(PatLitData{Kind: kind, Value: value}))
}

func (p *Patterns) NewTuple(span source.Span, elems []PatternID) PatternID {
	return p.new(PatTuple, span, p.Lists.Allocate(PatListData{Elems: slices.Clone(elems)}))
}

func (p *Patterns) NewOr(span source.Span, alts []PatternID) PatternID {
	return p.new(PatOr, span, p.Lists.Allocate(PatListData{Elems: slices.Clone(alts)}))
}

// List returns the elements of a tuple or the alternatives of an or-pattern.
func (p *Patterns) List(id PatternID) (*PatListData, bool) {
	pat := p.Get(id)
	if pat == nil || (pat.Kind != PatTuple && pat.Kind != PatOr) {
		return nil, false
	}
	return p.Lists.Get(uint32(pat.Payload)), true
}

func (p *Patterns) NewStruct(span source.Span, name source.StringID, fields []PatField, rest bool) PatternID {
	return p.new(PatStruct, span, p.Structs.Allocate(PatStructData{Name: name, Fields: slices.Clone(fields), Rest: rest}))
}

func (p *Patterns) Struct(id PatternID) (*PatStructData, bool) {
	pat := p.Get(id)
	if pat == nil || pat.Kind != PatStruct {
		return nil, false
	}
	return p.Structs.Get(uint32(pat.Payload)), true
}

func (p *Patterns) NewVariant(span source.Span, name source.StringID, elems []PatternID) PatternID {
	return p.new(PatVariant, span, p.Variants.Allocate(PatVariantData{Name: name, Elems: slices.Clone(elems)}))
}

func (p *Patterns) Variant(id PatternID) (*PatVariantData, bool) {
	pat := p.Get(id)
	if pat == nil || pat.Kind != PatVariant {
		return nil, false
	}
	return p.Variants.Get(uint32(pat.Payload)), true
}

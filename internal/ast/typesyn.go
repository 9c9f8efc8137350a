package ast

import (
	"slices"

	"owninfer/internal/source"
)

// TypeKind classifies written type expressions.
type TypeKind uint8

const (
	// TypePrim is a named primitive such as int, f32 or bool.
	TypePrim TypeKind = iota
	// TypeText is the surface language's string type.
	TypeText
	TypeNamed
	TypeGeneric
	TypeRef
	TypeMutRef
	TypeTuple
	TypeArray
	TypeSelf
	TypeInfer
	TypeFn
)

type Type struct {
	Kind    TypeKind
	Span    source.Span
	Payload PayloadID
}

// TypeData is shared by all type kinds; unused fields stay zero.
// Elems holds generic arguments, tuple members, fn params (result last),
// or the single element of a reference/array.
type TypeData struct {
	Name  source.StringID
	Elems []TypeID
	Len   uint32
}

type Types struct {
	Arena *Arena[Type]
	Data  *Arena[TypeData]
}

func NewTypes(capHint uint) *Types {
	if capHint == 0 {
		capHint = 1 << 6
	}
	return &Types{
		Arena: NewArena[Type](capHint),
		Data:  NewArena[TypeData](capHint),
	}
}

func (t *Types) New(kind TypeKind, span source.Span, data TypeData) TypeID {
	data.Elems = slices.Clone(data.Elems)
	payload := t.Data.Allocate(data)
	return TypeID(t.Arena.Allocate(Type{Kind: kind, Span: span, Payload: PayloadID(payload)}))
}

func (t *Types) Get(id TypeID) *Type {
	return t.Arena.Get(uint32(id))
}

// Lookup returns the node and its payload.
func (t *Types) Lookup(id TypeID) (*Type, *TypeData, bool) {
	typ := t.Get(id)
	if typ == nil {
		return nil, nil, false
	}
	return typ, t.Data.Get(uint32(typ.Payload)), true
}

func (t *Types) NewPrim(span source.Span, name source.StringID) TypeID {
	return t.New(TypePrim, span, TypeData{Name: name})
}

func (t *Types) NewText(span source.Span) TypeID {
	return t.New(TypeText, span, TypeData{})
}

func (t *Types) NewNamed(span source.Span, name source.StringID, args ...TypeID) TypeID {
	return t.New(TypeNamed, span, TypeData{Name: name, Elems: args})
}

func (t *Types) NewRef(span source.Span, elem TypeID, mut bool) TypeID {
	kind := TypeRef
	if mut {
		kind = TypeMutRef
	}
	return t.New(kind, span, TypeData{Elems: []TypeID{elem}})
}

func (t *Types) NewTuple(span source.Span, elems ...TypeID) TypeID {
	return t.New(TypeTuple, span, TypeData{Elems: elems})
}

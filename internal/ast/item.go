package ast

import (
	"slices"

	"owninfer/internal/source"
)

type ItemKind uint8

const (
	ItemFn ItemKind = iota
	ItemTrait
	ItemImpl
	ItemStruct
	ItemEnum
)

type Item struct {
	Kind    ItemKind
	Span    source.Span
	Payload PayloadID
}

// OwnershipHint is what the author wrote on a parameter.
type OwnershipHint uint8

const (
	HintInferred OwnershipHint = iota
	HintOwned
	HintRef
	HintMut
)

func (h OwnershipHint) String() string {
	switch h {
	case HintInferred:
		return "inferred"
	case HintOwned:
		return "owned"
	case HintRef:
		return "ref"
	case HintMut:
		return "mut"
	default:
		return "?"
	}
}

// Param is a function or trait-method parameter. The receiver is a Param
// with Self set, always in position 0.
type Param struct {
	Name source.StringID
	Type TypeID
	Hint OwnershipHint
	Self bool
	Mut  bool
	Span source.Span
}

// FnDecl is a free function or a method. Owner is the impl's type name and
// Trait the implemented trait, both NoStringID when absent.
type FnDecl struct {
	Name   source.StringID
	Params []ParamID
	Result TypeID
	Body   ExprID
	Owner  source.StringID
	Trait  source.StringID
	Span   source.Span
}

func (f *FnDecl) IsMethod() bool { return f.Owner != source.NoStringID }

func (f *FnDecl) IsTraitImpl() bool { return f.Trait != source.NoStringID }

type TraitMethod struct {
	Name   source.StringID
	Params []ParamID
	Result TypeID
	Span   source.Span
}

type TraitDecl struct {
	Name    source.StringID
	Methods []TraitMethod
}

type ImplDecl struct {
	Type    source.StringID
	Trait   source.StringID
	Methods []ItemID
}

type StructField struct {
	Name source.StringID
	Type TypeID
}

// StructDecl; Copy marks types declared with copy semantics.
type StructDecl struct {
	Name   source.StringID
	Fields []StructField
	Copy   bool
}

type EnumDecl struct {
	Name     source.StringID
	Variants []source.StringID
	Copy     bool
}

type Items struct {
	Arena   *Arena[Item]
	Params  *Arena[Param]
	Fns     *Arena[FnDecl]
	Traits  *Arena[TraitDecl]
	Impls   *Arena[ImplDecl]
	Structs *Arena[StructDecl]
	Enums   *Arena[EnumDecl]
}

func NewItems(capHint uint) *Items {
	if capHint == 0 {
		capHint = 1 << 6
	}
	return &Items{
		Arena:   NewArena[Item](capHint),
		Params:  NewArena[Param](capHint),
		Fns:     NewArena[FnDecl](capHint),
		Traits:  NewArena[TraitDecl](capHint),
		Impls:   NewArena[ImplDecl](capHint),
		Structs: NewArena[StructDecl](capHint),
		Enums:   NewArena[EnumDecl](capHint),
	}
}

func (i *Items) new(kind ItemKind, span source.Span, payload uint32) ItemID {
	return ItemID(i.Arena.Allocate(Item{Kind: kind, Span: span, Payload: PayloadID(payload)}))
}

func (i *Items) Get(id ItemID) *Item {
	return i.Arena.Get(uint32(id))
}

func (i *Items) NewParam(p Param) ParamID {
	return ParamID(i.Params.Allocate(p))
}

func (i *Items) Param(id ParamID) *Param {
	return i.Params.Get(uint32(id))
}

func (i *Items) NewFn(fn FnDecl) ItemID {
	fn.Params = slices.Clone(fn.Params)
	return i.new(ItemFn, fn.Span, i.Fns.Allocate(fn))
}

func (i *Items) Fn(id ItemID) (*FnDecl, bool) {
	item := i.Get(id)
	if item == nil || item.Kind != ItemFn {
		return nil, false
	}
	return i.Fns.Get(uint32(item.Payload)), true
}

// ReplaceFnBody rewrites the body slot of a function. Only the owner of the
// slot (the driver) calls this; the previous body stays valid in the arena.
func (i *Items) ReplaceFnBody(id ItemID, body ExprID) bool {
	fn, ok := i.Fn(id)
	if !ok {
		return false
	}
	fn.Body = body
	return true
}

func (i *Items) NewTrait(span source.Span, decl TraitDecl) ItemID {
	decl.Methods = slices.Clone(decl.Methods)
	return i.new(ItemTrait, span, i.Traits.Allocate(decl))
}

func (i *Items) Trait(id ItemID) (*TraitDecl, bool) {
	item := i.Get(id)
	if item == nil || item.Kind != ItemTrait {
		return nil, false
	}
	return i.Traits.Get(uint32(item.Payload)), true
}

func (i *Items) NewImpl(span source.Span, decl ImplDecl) ItemID {
	decl.Methods = slices.Clone(decl.Methods)
	return i.new(ItemImpl, span, i.Impls.Allocate(decl))
}

func (i *Items) Impl(id ItemID) (*ImplDecl, bool) {
	item := i.Get(id)
	if item == nil || item.Kind != ItemImpl {
		return nil, false
	}
	return i.Impls.Get(uint32(item.Payload)), true
}

func (i *Items) NewStruct(span source.Span, decl StructDecl) ItemID {
	decl.Fields = slices.Clone(decl.Fields)
	return i.new(ItemStruct, span, i.Structs.Allocate(decl))
}

func (i *Items) Struct(id ItemID) (*StructDecl, bool) {
	item := i.Get(id)
	if item == nil || item.Kind != ItemStruct {
		return nil, false
	}
	return i.Structs.Get(uint32(item.Payload)), true
}

func (i *Items) NewEnum(span source.Span, decl EnumDecl) ItemID {
	decl.Variants = slices.Clone(decl.Variants)
	return i.new(ItemEnum, span, i.Enums.Allocate(decl))
}

func (i *Items) Enum(id ItemID) (*EnumDecl, bool) {
	item := i.Get(id)
	if item == nil || item.Kind != ItemEnum {
		return nil, false
	}
	return i.Enums.Get(uint32(item.Payload)), true
}

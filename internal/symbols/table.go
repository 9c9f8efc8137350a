package symbols

import (
	"fmt"

	"owninfer/internal/ast"
	"owninfer/internal/source"
)

// ParamSig is one declared trait-method parameter, in declaration order.
type ParamSig struct {
	Name source.StringID
	Type ast.TypeID
	Hint ast.OwnershipHint
	Self bool
	Span source.Span
}

type MethodSig struct {
	Trait  source.StringID
	Method source.StringID
	Params []ParamSig
	Span   source.Span
}

// HasSelf reports whether position 0 is a receiver.
func (m *MethodSig) HasSelf() bool {
	return len(m.Params) > 0 && m.Params[0].Self
}

type TraitInfo struct {
	Name    source.StringID
	Methods map[source.StringID]*MethodSig
	Builtin bool
	Span    source.Span
}

// FnInfo is where a function was declared: its impl owner type and the
// implemented trait, NoStringID when absent.
type FnInfo struct {
	Item  ast.ItemID
	Name  source.StringID
	Owner source.StringID
	Trait source.StringID
}

func (f FnInfo) IsMethod() bool { return f.Owner != source.NoStringID }

func (f FnInfo) IsTraitImpl() bool { return f.Trait != source.NoStringID }

type methodKey struct {
	owner, name source.StringID
}

// Table is the declaration table of one unit: traits, functions, methods and
// copy/text types. It is filled single-threaded by Collect and frozen before
// any analysis starts; after Freeze every Declare* call panics, and reads
// need no locking.
type Table struct {
	strings *source.Interner

	traits        map[source.StringID]*TraitInfo
	fns           map[source.StringID]ast.ItemID
	methods       map[methodKey]ast.ItemID
	methodsByName map[source.StringID][]ast.ItemID
	copyTypes     map[source.StringID]bool
	textTypes     map[source.StringID]bool
	functions     []ast.ItemID
	info          map[ast.ItemID]FnInfo
	structs       map[source.StringID][]ast.StructField

	frozen bool
}

// NewTable creates a table with the built-in copy types, text types and
// operator traits already declared.
func NewTable(strings *source.Interner) *Table {
	t := &Table{
		strings:       strings,
		traits:        make(map[source.StringID]*TraitInfo),
		fns:           make(map[source.StringID]ast.ItemID),
		methods:       make(map[methodKey]ast.ItemID),
		methodsByName: make(map[source.StringID][]ast.ItemID),
		copyTypes:     make(map[source.StringID]bool),
		textTypes:     make(map[source.StringID]bool),
		info:          make(map[ast.ItemID]FnInfo),
		structs:       make(map[source.StringID][]ast.StructField),
	}
	for _, name := range builtinCopyTypes {
		t.copyTypes[strings.Intern(name)] = true
	}
	for _, name := range builtinTextTypes {
		t.textTypes[strings.Intern(name)] = true
	}
	for _, op := range operatorTraits {
		trait := strings.Intern(op.trait)
		method := strings.Intern(op.method)
		t.traits[trait] = &TraitInfo{
			Name:    trait,
			Builtin: true,
			Methods: map[source.StringID]*MethodSig{
				method: {
					Trait:  trait,
					Method: method,
					Params: []ParamSig{
						{Name: strings.Intern("self"), Hint: ast.HintOwned, Self: true},
						{Name: strings.Intern("rhs"), Hint: ast.HintOwned},
					},
				},
			},
		}
	}
	return t
}

func (t *Table) mustBeOpen(op string) {
	if t.frozen {
		panic(fmt.Sprintf("symbols: %s on a frozen table", op))
	}
}

// Freeze makes the table read-only.
func (t *Table) Freeze() { t.frozen = true }

func (t *Table) Frozen() bool { return t.frozen }

// DeclareTrait registers a trait. It returns false if the name is taken.
func (t *Table) DeclareTrait(info *TraitInfo) bool {
	t.mustBeOpen("DeclareTrait")
	if _, dup := t.traits[info.Name]; dup {
		return false
	}
	t.traits[info.Name] = info
	return true
}

// DeclareFn registers a free function; false on a duplicate name.
func (t *Table) DeclareFn(name source.StringID, id ast.ItemID) bool {
	t.mustBeOpen("DeclareFn")
	t.functions = append(t.functions, id)
	if _, dup := t.fns[name]; dup {
		return false
	}
	t.fns[name] = id
	return true
}

// DeclareMethod registers a method of owner; false on a duplicate.
func (t *Table) DeclareMethod(owner, name source.StringID, id ast.ItemID) bool {
	t.mustBeOpen("DeclareMethod")
	t.functions = append(t.functions, id)
	key := methodKey{owner, name}
	if _, dup := t.methods[key]; dup {
		return false
	}
	t.methods[key] = id
	t.methodsByName[name] = append(t.methodsByName[name], id)
	return true
}

func (t *Table) DeclareCopyType(name source.StringID) {
	t.mustBeOpen("DeclareCopyType")
	t.copyTypes[name] = true
}

func (t *Table) DeclareStruct(name source.StringID, fields []ast.StructField) {
	t.mustBeOpen("DeclareStruct")
	if _, dup := t.structs[name]; !dup {
		t.structs[name] = fields
	}
}

// StructField returns the declared type of field on struct name.
func (t *Table) StructField(name, field source.StringID) (ast.TypeID, bool) {
	for _, f := range t.structs[name] {
		if f.Name == field {
			return f.Type, true
		}
	}
	return ast.NoTypeID, false
}

func (t *Table) DeclareTextType(name source.StringID) {
	t.mustBeOpen("DeclareTextType")
	t.textTypes[name] = true
}

func (t *Table) Trait(name source.StringID) (*TraitInfo, bool) {
	info, ok := t.traits[name]
	return info, ok
}

// TraitMethod looks up the (trait, method) signature.
func (t *Table) TraitMethod(trait, method source.StringID) (*MethodSig, bool) {
	info, ok := t.traits[trait]
	if !ok {
		return nil, false
	}
	sig, ok := info.Methods[method]
	return sig, ok
}

// TraitMethodsNamed returns every user trait method called name, for method
// calls whose receiver type is unknown. Builtin operator traits are skipped.
func (t *Table) TraitMethodsNamed(name source.StringID) []*MethodSig {
	var out []*MethodSig
	for _, info := range t.traits {
		if info.Builtin {
			continue
		}
		if sig, ok := info.Methods[name]; ok {
			out = append(out, sig)
		}
	}
	return out
}

// Info returns the declaration context of a collected function.
func (t *Table) Info(id ast.ItemID) (FnInfo, bool) {
	info, ok := t.info[id]
	return info, ok
}

func (t *Table) Fn(name source.StringID) (ast.ItemID, bool) {
	id, ok := t.fns[name]
	return id, ok
}

func (t *Table) Method(owner, name source.StringID) (ast.ItemID, bool) {
	id, ok := t.methods[methodKey{owner, name}]
	return id, ok
}

// MethodsNamed returns all methods called name across owner types.
func (t *Table) MethodsNamed(name source.StringID) []ast.ItemID {
	return t.methodsByName[name]
}

// Functions lists every function and method with a body, in declaration order.
func (t *Table) Functions() []ast.ItemID {
	return t.functions
}

func (t *Table) IsCopyName(name source.StringID) bool {
	return t.copyTypes[name]
}

// IsCopyType reports copy semantics for a written type. self is the owner
// type used to resolve Self, NoStringID outside impls.
func (t *Table) IsCopyType(types *ast.Types, id ast.TypeID, self source.StringID) bool {
	typ, data, ok := types.Lookup(id)
	if !ok {
		return false
	}
	switch typ.Kind {
	case ast.TypePrim:
		return t.copyTypes[data.Name]
	case ast.TypeNamed:
		return len(data.Elems) == 0 && t.copyTypes[data.Name]
	case ast.TypeRef:
		return true
	case ast.TypeTuple:
		for _, e := range data.Elems {
			if !t.IsCopyType(types, e, self) {
				return false
			}
		}
		return true
	case ast.TypeSelf:
		return self != source.NoStringID && t.copyTypes[self]
	}
	return false
}

// IsTextType reports the built-in text type and names configured as text.
func (t *Table) IsTextType(types *ast.Types, id ast.TypeID) bool {
	typ, data, ok := types.Lookup(id)
	if !ok {
		return false
	}
	switch typ.Kind {
	case ast.TypeText:
		return true
	case ast.TypePrim, ast.TypeNamed:
		return t.textTypes[data.Name]
	}
	return false
}

package ast

import (
	"owninfer/internal/source"
)

// ExprKind enumerates the different kinds of expressions.
type ExprKind uint8

const (
	ExprIdent ExprKind = iota
	ExprLit
	ExprBinary
	ExprUnary
	ExprCall
	// ExprMethodCall is `recv.method(args)`.
	ExprMethodCall
	// ExprField is `target.field`; tuple fields use their decimal index as name.
	ExprField
	ExprIndex
	ExprBlock
	ExprIf
	ExprMatch
	ExprClosure
	ExprStruct
	ExprArray
	ExprTuple
	ExprMap
	// ExprMacro is a macro-like invocation such as println!(...).
	ExprMacro
	ExprCast
	ExprRange
	ExprTry
	ExprAwait
	// ExprDup is an explicit duplication of its operand. Never produced by
	// the parser; only the duplication pass allocates it.
	ExprDup
)

var exprKindNames = [...]string{
	ExprIdent:      "ident",
	ExprLit:        "lit",
	ExprBinary:     "binary",
	ExprUnary:      "unary",
	ExprCall:       "call",
	ExprMethodCall: "method-call",
	ExprField:      "field",
	ExprIndex:      "index",
	ExprBlock:      "block",
	ExprIf:         "if",
	ExprMatch:      "match",
	ExprClosure:    "closure",
	ExprStruct:     "struct",
	ExprArray:      "array",
	ExprTuple:      "tuple",
	ExprMap:        "map",
	ExprMacro:      "macro",
	ExprCast:       "cast",
	ExprRange:      "range",
	ExprTry:        "try",
	ExprAwait:      "await",
	ExprDup:        "dup",
}

func (k ExprKind) String() string {
	if int(k) < len(exprKindNames) {
		return exprKindNames[k]
	}
	return "?"
}

// Expr represents an expression node in the AST.
type Expr struct {
	Kind    ExprKind
	Span    source.Span
	Payload PayloadID
}

// LitKind classifies literal values.
type LitKind uint8

const (
	LitInt LitKind = iota
	LitFloat
	LitText
	LitChar
	LitBool
	LitUnit
)

// IsCopy reports whether a literal of this kind is a copy-semantics value.
func (k LitKind) IsCopy() bool {
	return k != LitText
}

// BinaryOp enumerates binary operator kinds. Assignments are statements.
type BinaryOp uint8

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinBitAnd
	BinBitOr
	BinBitXor
	BinShl
	BinShr
	BinAnd
	BinOr
	BinEq
	BinNotEq
	BinLess
	BinLessEq
	BinGreater
	BinGreaterEq
)

var binaryOpSymbols = [...]string{
	BinAdd: "+", BinSub: "-", BinMul: "*", BinDiv: "/", BinRem: "%",
	BinBitAnd: "&", BinBitOr: "|", BinBitXor: "^", BinShl: "<<", BinShr: ">>",
	BinAnd: "&&", BinOr: "||",
	BinEq: "==", BinNotEq: "!=", BinLess: "<", BinLessEq: "<=", BinGreater: ">", BinGreaterEq: ">=",
}

// String returns the symbol representation of a binary operator.
func (op BinaryOp) String() string {
	if int(op) < len(binaryOpSymbols) {
		return binaryOpSymbols[op]
	}
	return "?"
}

// IsArithmetic reports operators that dispatch through operator traits
// taking their operands by value.
func (op BinaryOp) IsArithmetic() bool {
	return op <= BinShr
}

// UnaryOp enumerates unary operator kinds.
type UnaryOp uint8

const (
	UnNeg UnaryOp = iota
	UnNot
	// UnRef is an explicit shared-borrow context.
	UnRef
	// UnRefMut is an explicit mutable context.
	UnRefMut
	UnDeref
)

func (op UnaryOp) String() string {
	switch op {
	case UnNeg:
		return "-"
	case UnNot:
		return "!"
	case UnRef:
		return "&"
	case UnRefMut:
		return "&mut"
	case UnDeref:
		return "*"
	default:
		return "?"
	}
}

type ExprIdentData struct {
	Name source.StringID
}

type ExprLitData struct {
	Kind  LitKind
	Value source.StringID
}

type ExprBinaryData struct {
	Op    BinaryOp
	Left  ExprID
	Right ExprID
}

type ExprUnaryData struct {
	Op      UnaryOp
	Operand ExprID
}

type ExprCallData struct {
	Target ExprID
	Args   []ExprID
}

type ExprMethodCallData struct {
	Receiver ExprID
	Method   source.StringID
	Args     []ExprID
}

type ExprFieldData struct {
	Target ExprID
	Field  source.StringID
}

type ExprIndexData struct {
	Target ExprID
	Index  ExprID
}

// ExprBlockData holds statements plus an optional tail expression whose
// value is the value of the block.
type ExprBlockData struct {
	Stmts []StmtID
	Tail  ExprID
}

type ExprIfData struct {
	Cond ExprID
	Then ExprID
	Else ExprID // NoExprID if absent
}

type MatchArm struct {
	Pattern PatternID
	Guard   ExprID
	Body    ExprID
}

type ExprMatchData struct {
	Scrutinee ExprID
	Arms      []MatchArm
}

type ExprClosureData struct {
	Params []PatternID
	Body   ExprID
	Move   bool
}

type FieldInit struct {
	Name  source.StringID
	Value ExprID
}

type ExprStructData struct {
	Name   source.StringID
	Fields []FieldInit
}

// ExprListData backs arrays and tuples.
type ExprListData struct {
	Elems []ExprID
}

type MapEntry struct {
	Key   ExprID
	Value ExprID
}

type ExprMapData struct {
	Entries []MapEntry
}

type ExprMacroData struct {
	Name source.StringID
	Args []ExprID
}

type ExprCastData struct {
	Value ExprID
	Type  TypeID
}

type ExprRangeData struct {
	Start     ExprID
	End       ExprID
	Inclusive bool
}

// ExprWrapData backs single-operand wrappers: try, await and dup.
type ExprWrapData struct {
	Value ExprID
}

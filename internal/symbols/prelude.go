package symbols

// builtinCopyTypes are the copy-semantics primitives of the surface language.
var builtinCopyTypes = []string{
	"int", "uint", "i8", "i16", "i32", "i64", "i128",
	"u8", "u16", "u32", "u64", "u128", "isize", "usize",
	"f32", "f64", "float", "bool", "char",
}

var builtinTextTypes = []string{"string", "String", "str"}

// operatorTraits are pre-registered: their methods take both operands by value.
var operatorTraits = []struct{ trait, method string }{
	{"Add", "add"},
	{"Sub", "sub"},
	{"Mul", "mul"},
	{"Div", "div"},
	{"Rem", "rem"},
}

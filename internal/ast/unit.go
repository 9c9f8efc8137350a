package ast

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"owninfer/internal/source"
)

// SchemaVersion is the wire format of encoded units produced by this build.
const SchemaVersion = "1.2.0"

// Unit is one compilation unit as handed over by the front end: the node
// arenas, the interned strings they reference, the source files their spans
// point into, and the top-level items in declaration order.
type Unit struct {
	Schema  string
	Strings *source.Interner
	Files   *source.FileSet
	AST     *Builder
	Roots   []ItemID
}

func NewUnit(hints Hints) *Unit {
	return &Unit{
		Schema:  SchemaVersion,
		Strings: source.NewInterner(),
		Files:   source.NewFileSet(),
		AST:     NewBuilder(hints),
	}
}

// Name resolves an interned identifier, empty for NoStringID.
func (u *Unit) Name(id source.StringID) string {
	s, _ := u.Strings.Lookup(id)
	return s
}

// AddRoot appends a top-level item.
func (u *Unit) AddRoot(id ItemID) {
	u.Roots = append(u.Roots, id)
}

type wireFile struct {
	Path    string `msgpack:"path"`
	Content []byte `msgpack:"content"`
}

type wireUnit struct {
	Schema  string     `msgpack:"schema"`
	Strings []string   `msgpack:"strings"`
	Files   []wireFile `msgpack:"files"`
	AST     *Builder   `msgpack:"ast"`
	Roots   []ItemID   `msgpack:"roots"`
}

// Encode writes the unit in msgpack form.
func (u *Unit) Encode(w io.Writer) error {
	wire := wireUnit{
		Schema:  u.Schema,
		Strings: u.Strings.Snapshot(),
		AST:     u.AST,
		Roots:   u.Roots,
	}
	for i := range u.Files.Len() {
		f := u.Files.Get(source.FileID(i))
		wire.Files = append(wire.Files, wireFile{Path: f.Path, Content: f.Content})
	}
	if err := msgpack.NewEncoder(w).Encode(&wire); err != nil {
		return fmt.Errorf("encode unit: %w", err)
	}
	return nil
}

// DecodeUnit reads a unit written by Encode. Schema compatibility is the
// caller's concern.
func DecodeUnit(r io.Reader) (*Unit, error) {
	var wire wireUnit
	if err := msgpack.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode unit: %w", err)
	}
	if wire.AST == nil {
		return nil, fmt.Errorf("decode unit: missing ast section")
	}
	u := &Unit{
		Schema:  wire.Schema,
		Strings: source.NewInternerFrom(wire.Strings),
		Files:   source.NewFileSet(),
		AST:     wire.AST,
		Roots:   wire.Roots,
	}
	for _, f := range wire.Files {
		u.Files.Add(f.Path, f.Content, source.FileVirtual)
	}
	return u, nil
}

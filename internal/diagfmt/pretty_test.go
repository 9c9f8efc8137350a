package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"owninfer/internal/ast"
	"owninfer/internal/diag"
	"owninfer/internal/source"
)

func sampleBag(t *testing.T) (*diag.Bag, *source.FileSet) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.Add("/home/user/project/src/main.wj", []byte("fn run(items) {\n    consume(items)\n    log(items)\n}\n"), 0)
	bag := diag.NewBag(10)
	// "items" inside consume(...) on line 2
	start := uint32(strings.LastIndex("fn run(items) {\n    consume(items)", "(items)")) + 1
	d := diag.NewError(diag.OwnPartialMoveReuse, source.Span{File: id, Start: start, End: start + 5}, "use of moved field").
		WithNote(source.Span{File: id, Start: 0, End: 2}, "declared here")
	bag.Add(d)
	return bag, fs
}

func TestPrettyCaretAndPathModes(t *testing.T) {
	bag, fs := sampleBag(t)
	tests := []struct {
		name     string
		opts     PrettyOpts
		contains []string
	}{
		{
			name:     "basename",
			opts:     PrettyOpts{PathMode: PathModeBasename},
			contains: []string{"main.wj:2:13: ERROR [OWN3004]: use of moved field", "2 |     consume(items)", "            ^~~~~"},
		},
		{
			name:     "relative with notes",
			opts:     PrettyOpts{PathMode: PathModeRelative, BaseDir: "/home/user/project", ShowNotes: true},
			contains: []string{"src/main.wj:2:13", "src/main.wj:1:1: note: declared here"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Pretty(&buf, bag, fs, tt.opts)
			out := buf.String()
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Fatalf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestPrettyWideRunes(t *testing.T) {
	fs := source.NewFileSet()
	line := "let 名前 = x"
	id := fs.Add("w.wj", []byte(line+"\n"), 0)
	start := uint32(strings.Index(line, "x"))
	bag := diag.NewBag(1)
	bag.Add(diag.New(diag.SevWarning, diag.OwnEscapingCaptureReuse, source.Span{File: id, Start: start, End: start + 1}, "w"))
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	caretLine := lines[len(lines)-1]
	// "let " + two double-width runes + " = " is 11 columns
	if !strings.HasSuffix(caretLine, "| "+strings.Repeat(" ", 11)+"^") {
		t.Fatalf("caret misaligned: %q", caretLine)
	}
}

func TestJSONIncludesPositions(t *testing.T) {
	bag, fs := sampleBag(t)
	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{IncludePositions: true, IncludeNotes: true, PathMode: PathModeBasename}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Count != 1 {
		t.Fatalf("count = %d", out.Count)
	}
	d := out.Diagnostics[0]
	if d.Code != "OWN3004" || d.Location.StartLine != 2 || d.Location.File != "main.wj" {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
	if len(d.Notes) != 1 {
		t.Fatalf("notes = %+v", d.Notes)
	}
}

func TestFormatExprShowsDup(t *testing.T) {
	u := ast.NewUnit(ast.Hints{})
	ex := u.AST.Exprs
	items := ex.NewIdent(source.NoSpan, u.Strings.Intern("items"))
	paths := ex.NewField(source.NoSpan, ex.NewIdent(source.NoSpan, u.Strings.Intern("config")), u.Strings.Intern("paths"))
	call := ex.NewCall(source.NoSpan, ex.NewIdent(source.NoSpan, u.Strings.Intern("consume")), []ast.ExprID{ex.NewDup(items), ex.NewDup(paths)})
	if got, want := FormatExpr(u, call), "consume(dup(items), dup(config.paths))"; got != want {
		t.Fatalf("FormatExpr = %q, want %q", got, want)
	}
}

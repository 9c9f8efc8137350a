package diag

import (
	"testing"

	"owninfer/internal/source"
)

func TestFormatShort(t *testing.T) {
	fs := source.NewFileSet()
	file := fs.Add("./testdata/sample.wj", []byte("a\nb\n"), 0)

	diags := []Diagnostic{
		{
			Severity: SevError,
			Code:     OwnPartialMoveReuse,
			Message:  "first line\nsecond",
			Primary:  source.Span{File: file, Start: 0, End: 1},
			Notes: []Note{
				{Span: source.Span{File: 42, Start: 0, End: 0}, Msg: "unknown file is skipped"},
				{Span: source.Span{File: file, Start: 2, End: 3}, Msg: "note line"},
			},
		},
		{
			Severity: SevWarning,
			Code:     OwnEscapingCaptureReuse,
			Message:  "another",
			Primary:  source.Span{File: file, Start: 2, End: 3},
		},
	}

	expected := "error OWN3004 testdata/sample.wj:1:1 first line second\n" +
		"note OWN3004 testdata/sample.wj:2:1 note line\n" +
		"warning OWN3006 testdata/sample.wj:2:1 another"

	if got := FormatShort(diags, fs, true); got != expected {
		t.Fatalf("unexpected output:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}
}

package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"owninfer/internal/diag"
	"owninfer/internal/source"
)

type palette struct {
	err, warn, info, note, loc, caret, gutter *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		info:   color.New(color.FgCyan, color.Bold),
		note:   color.New(color.FgBlue, color.Bold),
		loc:    color.New(color.Bold),
		caret:  color.New(color.FgGreen, color.Bold),
		gutter: color.New(color.FgBlue),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.note, p.loc, p.caret, p.gutter} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty renders diagnostics for humans, in bag order (call bag.Sort first):
//
//	path:line:col: SEV [CODE]: message
//	   3 |   consume(items)
//	     |           ^~~~~
//
// followed by the notes in the same shape.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for _, d := range bag.Items() {
		header := p.severity(d.Severity).Sprint(d.Severity.String())
		fmt.Fprintf(w, "%s: %s [%s]: %s\n", location(p, fs, d.Primary, opts), header, d.Code.ID(), d.Message)
		excerpt(w, p, fs, d.Primary, opts.Context)
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			fmt.Fprintf(w, "%s: %s: %s\n", location(p, fs, n.Span, opts), p.note.Sprint("note"), n.Msg)
			excerpt(w, p, fs, n.Span, 0)
		}
	}
}

func location(p palette, fs *source.FileSet, span source.Span, opts PrettyOpts) string {
	start, _, ok := fs.Resolve(span)
	if !ok {
		return p.loc.Sprint("<unknown>")
	}
	path := formatPath(fs.Get(span.File), opts.PathMode, opts.BaseDir)
	return p.loc.Sprintf("%s:%d:%d", path, start.Line, start.Col)
}

func excerpt(w io.Writer, p palette, fs *source.FileSet, span source.Span, context uint8) {
	start, end, ok := fs.Resolve(span)
	if !ok || start.Line == 0 {
		return
	}
	f := fs.Get(span.File)
	first := start.Line - min(uint32(context), start.Line-1)
	width := len(fmt.Sprint(start.Line))
	for ln := first; ln <= start.Line; ln++ {
		fmt.Fprintf(w, "%s %s\n", p.gutter.Sprintf("%*d |", width, ln), f.Line(ln))
	}

	line := f.Line(start.Line)
	from := columnWidth(line, start.Col)
	to := columnWidth(line, end.Col)
	if end.Line != start.Line {
		to = runewidth.StringWidth(line)
	}
	n := max(to-from, 1)
	marker := "^" + strings.Repeat("~", n-1)
	fmt.Fprintf(w, "%s %s%s\n", p.gutter.Sprintf("%*s |", width, ""), strings.Repeat(" ", from), p.caret.Sprint(marker))
}

// columnWidth is the display width of line up to the 1-based byte column.
func columnWidth(line string, col uint32) int {
	off := int(col) - 1
	off = min(max(off, 0), len(line))
	return runewidth.StringWidth(line[:off])
}

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"owninfer/internal/autoclone"
	"owninfer/internal/symbols"
)

type Format string

const (
	FormatPretty  Format = "pretty"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatPretty:
		return FormatPretty, nil
	case FormatJSON, FormatYAML, FormatMsgpack:
		return f, nil
	}
	return "", fmt.Errorf("invalid format %q (expected pretty|json|yaml|msgpack)", s)
}

// Write renders rep in format. color only affects FormatPretty.
func Write(w io.Writer, rep *Report, format Format, color bool) error {
	switch format {
	case FormatPretty, "":
		return WritePretty(w, rep, color)
	case FormatJSON:
		return WriteJSON(w, rep)
	case FormatYAML:
		return WriteYAML(w, rep)
	case FormatMsgpack:
		return WriteMsgpack(w, rep)
	}
	return fmt.Errorf("report: unknown format %q", format)
}

func WriteJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func WriteYAML(w io.Writer, rep *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}

// WriteMsgpack is the machine hand-off read by code generation.
func WriteMsgpack(w io.Writer, rep *Report) error {
	return msgpack.NewEncoder(w).Encode(rep)
}

// ReadMsgpack decodes a report written by WriteMsgpack.
func ReadMsgpack(r io.Reader) (*Report, error) {
	var rep Report
	if err := msgpack.NewDecoder(r).Decode(&rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

type styles struct {
	title, fn, trait, dim lipgloss.Style
	owned, borrowed, mut  lipgloss.Style
	dup, errs, warns      lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		title:    r.NewStyle().Bold(true),
		fn:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("7")),
		trait:    r.NewStyle().Foreground(lipgloss.Color("5")),
		dim:      r.NewStyle().Foreground(lipgloss.Color("8")),
		owned:    r.NewStyle().Foreground(lipgloss.Color("3")),
		borrowed: r.NewStyle().Foreground(lipgloss.Color("2")),
		mut:      r.NewStyle().Foreground(lipgloss.Color("6")),
		dup:      r.NewStyle().Foreground(lipgloss.Color("4")),
		errs:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		warns:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
	}
}

func (s styles) ownership(o symbols.Ownership) lipgloss.Style {
	switch o {
	case symbols.Borrowed:
		return s.borrowed
	case symbols.MutBorrowed:
		return s.mut
	default:
		return s.owned
	}
}

// WritePretty renders one block per function:
//
//	fn consume_twice
//	  items  owned         moved, stored or returned
//	  dup items at unit.own:3:11  used again later
func WritePretty(w io.Writer, rep *Report, color bool) error {
	st := newStyles(w, color)
	var b strings.Builder

	nameWidth := 0
	for _, f := range rep.Functions {
		for _, p := range f.Params {
			nameWidth = max(nameWidth, runewidth.StringWidth(p.Name))
		}
	}

	for _, f := range rep.Functions {
		b.WriteString(st.fn.Render("fn " + f.Name))
		if f.Trait != "" {
			b.WriteString(" " + st.trait.Render("impl "+f.Trait))
		}
		b.WriteString("\n")
		for _, p := range f.Params {
			mode := fmt.Sprintf("%-13s", p.Ownership.String())
			fmt.Fprintf(&b, "  %s  %s %s", runewidth.FillRight(p.Name, nameWidth), st.ownership(p.Ownership).Render(mode), st.dim.Render(p.Reason.String()))
			var flags []string
			if p.TextView {
				flags = append(flags, "text view")
			}
			if p.NeedsMut {
				flags = append(flags, "mut")
			}
			if len(flags) > 0 {
				b.WriteString(st.dim.Render(" [" + strings.Join(flags, ", ") + "]"))
			}
			b.WriteString("\n")
		}
		if len(f.MutLocals) > 0 {
			fmt.Fprintf(&b, "  %s %s\n", st.dim.Render("mut locals:"), strings.Join(f.MutLocals, ", "))
		}
		for _, d := range f.Dups {
			fmt.Fprintf(&b, "  %s %s at %s  %s\n", st.dup.Render("dup"), d.Expr, d.Location, st.dim.Render(reasonText(d.Reason)))
		}
	}

	summary := fmt.Sprintf("%d function(s), %d round(s)", len(rep.Functions), rep.Rounds)
	if !rep.Converged {
		summary += ", not converged"
	}
	b.WriteString(st.title.Render(summary))
	if n := rep.Diagnostics.Errors; n > 0 {
		b.WriteString(", " + st.errs.Render(fmt.Sprintf("%d error(s)", n)))
	}
	if n := rep.Diagnostics.Warnings; n > 0 {
		b.WriteString(", " + st.warns.Render(fmt.Sprintf("%d warning(s)", n)))
	}
	b.WriteString("\n")
	if rep.Timing != nil {
		fmt.Fprintf(&b, "%s %.2f ms\n", st.dim.Render("total"), rep.Timing.TotalMS)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func reasonText(r autoclone.Reason) string {
	switch r {
	case autoclone.MovedButUsedLater:
		return "used again later"
	case autoclone.MovedInLoop:
		return "moved on every iteration"
	case autoclone.BorrowedSource:
		return "source is borrowed"
	}
	return r.String()
}

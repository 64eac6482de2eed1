package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Palette.
var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#6C7A80")
)

// printer renders human-readable output. Colour is only used when the
// destination is a terminal and NO_COLOR is unset; otherwise every style
// renders as plain text.
type printer struct {
	w io.Writer

	title   lipgloss.Style
	section lipgloss.Style
	bold    lipgloss.Style
	muted   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
	plain   lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	p := &printer{w: w, plain: r.NewStyle()}
	if !colorEnabled(w) {
		p.title, p.section, p.bold = p.plain, p.plain, p.plain
		p.muted, p.ok, p.warn, p.bad = p.plain, p.plain, p.plain, p.plain
		return p
	}
	p.title = r.NewStyle().Bold(true).Foreground(colorSuccess)
	p.section = r.NewStyle().Bold(true).Foreground(colorAccent)
	p.bold = r.NewStyle().Bold(true)
	p.muted = r.NewStyle().Foreground(colorMuted)
	p.ok = r.NewStyle().Foreground(colorSuccess)
	p.warn = r.NewStyle().Foreground(colorWarning)
	p.bad = r.NewStyle().Foreground(colorError).Bold(true)
	return p
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) line(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) blank() { _, _ = fmt.Fprintln(p.w) }

func (p *printer) heading(text string) {
	p.line("%s", p.title.Render(text))
}

func (p *printer) sectionTitle(text string) {
	p.blank()
	p.line("%s", p.section.Render(strings.ToUpper(text)+":"))
}

func (p *printer) field(name string, value any) {
	p.line("  %s %v", p.bold.Render(fmt.Sprintf("%-16s", name+":")), value)
}

// verdictStyle maps both rule verdicts and overall verdicts to a colour.
func (p *printer) verdictStyle(v string) lipgloss.Style {
	switch v {
	case "pass", "compliant", "valid":
		return p.ok
	case "fail", "non_compliant", "invalid", "critical":
		return p.bad
	case "partial_compliance", "manual_review", "high":
		return p.warn
	case "not_applicable", "info", "low":
		return p.muted
	default:
		return p.plain
	}
}

func (p *printer) verdict(v string) string {
	return p.verdictStyle(v).Render(verdictLabel(v))
}

// verdictLabel turns "partial_compliance" into "Partial Compliance".
func verdictLabel(v string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(v, "_", " "))
}

// table renders rows in padded columns. style picks a per-cell style; it may
// return the zero style for plain cells. Widths are measured with
// lipgloss.Width so styled cells line up.
func (p *printer) table(headers []string, rows [][]string, style func(col int, cell string) lipgloss.Style) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder
	render := func(cells []string, pick func(int, string) lipgloss.Style) {
		b.WriteString("  ")
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			s := pick(i, cell)
			if i < len(cells)-1 {
				s = s.Width(widths[i] + 2)
			}
			b.WriteString(s.Render(cell))
		}
		p.line("%s", strings.TrimRight(b.String(), " "))
		b.Reset()
	}

	render(headers, func(int, string) lipgloss.Style { return p.bold })
	for _, row := range rows {
		render(row, func(col int, cell string) lipgloss.Style {
			if style == nil {
				return p.plain
			}
			return style(col, cell)
		})
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

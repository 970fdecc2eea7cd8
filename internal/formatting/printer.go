package formatting

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"sigs.k8s.io/yaml"
)

// Printer writes results in the configured format.
type Printer struct {
	out     io.Writer
	options Options
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, options Options) *Printer {
	if options.Format == "" {
		options.Format = FormatTable
	}
	return &Printer{out: out, options: options}
}

// Options returns the printer options.
func (p *Printer) Options() Options {
	return p.options
}

// Structured reports whether the printer emits JSON or YAML.
func (p *Printer) Structured() bool {
	return p.options.Format == FormatJSON || p.options.Format == FormatYAML
}

// Print writes v as JSON or YAML, or calls render with a fresh table for
// table output. YAML goes through the JSON encoding so that both formats
// share field names.
func (p *Printer) Print(v interface{}, render func(t table.Writer)) error {
	switch p.options.Format {
	case FormatJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		_, err = fmt.Fprintln(p.out, string(b))
		return err
	case FormatYAML:
		b, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		_, err = p.out.Write(b)
		return err
	default:
		t := p.NewTable()
		render(t)
		t.Render()
		return nil
	}
}

// NewTable creates a table with standard styling writing to the printer's output.
func (p *Printer) NewTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)
	if p.options.Color {
		t.Style().Color.Header = text.Colors{text.FgHiCyan}
	} else {
		t.Style().Color = table.ColorOptions{}
	}
	if p.options.NoHeaders {
		t.Style().Options.DrawBorder = false
		t.Style().Options.SeparateHeader = false
	}
	return t
}

// Header appends a header row unless headers are suppressed.
func (p *Printer) Header(t table.Writer, columns ...interface{}) {
	if p.options.NoHeaders {
		return
	}
	t.AppendHeader(table.Row(columns))
}

// KeyValues renders two-column key/value rows.
func (p *Printer) KeyValues(rows [][2]string) {
	t := p.NewTable()
	p.Header(t, "KEY", "VALUE")
	for _, r := range rows {
		t.AppendRow(table.Row{r[0], r[1]})
	}
	t.Render()
}

// Message writes a plain status line. It is suppressed for structured output.
func (p *Printer) Message(format string, args ...interface{}) {
	if p.Structured() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if p.options.Color {
		msg = text.FgYellow.Sprint(msg)
	}
	fmt.Fprintln(p.out, msg)
}

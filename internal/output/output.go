// Package output renders command results for people (tables) or for
// scripts (JSON).
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	waitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	headStyle = lipgloss.NewStyle().Bold(true)
)

// ErrorPayload is the JSON shape of a failed command.
type ErrorPayload struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Printer writes results in one mode.
type Printer struct {
	out    io.Writer
	json   bool
	styled bool
}

// New returns a printer on out. Styling is only applied when out is a
// terminal and JSON is off.
func New(out io.Writer, asJSON bool) *Printer {
	styled := false
	if f, ok := out.(*os.File); ok && !asJSON {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{out: out, json: asJSON, styled: styled}
}

func (p *Printer) JSON() bool {
	return p.json
}

// Value writes v as indented JSON in JSON mode, or calls human otherwise.
func (p *Printer) Value(v any, human func(p *Printer)) error {
	if p.json {
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human(p)
	return nil
}

// Raw writes pre-encoded JSON. It is re-indented in human mode.
func (p *Printer) Raw(data []byte) error {
	if len(data) == 0 {
		data = []byte("null")
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		_, err := p.out.Write(data)
		return err
	}
	enc := json.NewEncoder(p.out)
	if !p.json {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func (p *Printer) Linef(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// columnGap separates table columns.
const columnGap = 2

// Table prints an aligned table. Cell widths are measured with lipgloss so
// styled cells line up with plain ones.
func (p *Printer) Table(headers []string, rows [][]string) {
	header := make([]string, len(headers))
	for i, h := range headers {
		if p.styled {
			h = headStyle.Render(h)
		}
		header[i] = h
	}
	all := append([][]string{header}, rows...)

	var widths []int
	for _, row := range all {
		for i, cell := range row {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	for _, row := range all {
		var b strings.Builder
		for i, cell := range row {
			b.WriteString(cell)
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+columnGap))
			}
		}
		fmt.Fprintln(p.out, strings.TrimRight(b.String(), " "))
	}
}

// Status renders an execution status, colored on terminals.
func (p *Printer) Status(status string) string {
	if !p.styled {
		return status
	}
	switch status {
	case "passed":
		return passStyle.Render(status)
	case "failed":
		return failStyle.Render(status)
	default:
		return waitStyle.Render(status)
	}
}

// Error writes a failure. In JSON mode it is an ErrorPayload; otherwise a
// message line plus one line per field.
func (p *Printer) Error(kind, message string, fields map[string]string) error {
	if p.json {
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(ErrorPayload{Error: kind, Message: message, Fields: fields})
	}
	fmt.Fprintln(p.out, message)
	for _, name := range sortedKeys(fields) {
		fmt.Fprintf(p.out, "  %s: %s\n", name, fields[name])
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

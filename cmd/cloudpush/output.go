package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	label  string
	colors text.Colors
}{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed}},
}

const statusLabelWidth = 18

// Paths and titles wider than this wrap inside table cells.
const maxCellWidth = 60

func okOrError(passed bool) statusKind {
	if passed {
		return statusOK
	}
	return statusError
}

// printer writes human-readable command output, colouring only real terminals.
type printer struct {
	out   io.Writer
	color bool
}

func newPrinter(cmd *cobra.Command) *printer {
	out := cmd.OutOrStdout()
	return &printer{out: out, color: isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (p *printer) paint(colors text.Colors, s string) string {
	if !p.color {
		return s
	}
	return colors.Sprint(s)
}

// statusLine renders "  Label:   [KIND] message".
func (p *printer) statusLine(label string, kind statusKind, message string) string {
	style := statusStyles[kind]
	badge := "[" + style.label + "]"
	if message != "" {
		badge += " " + message
	}
	return p.paint(style.colors, fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", badge))
}

func (p *printer) status(label string, kind statusKind, message string) {
	fmt.Fprintln(p.out, p.statusLine(label, kind, message))
}

func (p *printer) section(title string) {
	heading := "== " + strings.TrimSpace(title) + " =="
	fmt.Fprintln(p.out, p.paint(text.Colors{text.Bold}, heading))
	fmt.Fprintln(p.out, strings.Repeat("-", len(heading)))
}

func (p *printer) outcome(success bool) string {
	if success {
		return p.paint(text.Colors{text.FgGreen}, "ok")
	}
	return p.paint(text.Colors{text.FgRed}, "failed")
}

// table renders rows under headers. Columns listed in numeric are right
// aligned (1-based, matching go-pretty column numbers).
func (p *printer) table(headers []string, rows [][]string, numeric ...int) {
	if len(headers) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(p.out)
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		configs[i] = table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft, WidthMax: maxCellWidth}
	}
	for _, n := range numeric {
		if n >= 1 && n <= len(configs) {
			configs[n-1].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)
	tw.Render()
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

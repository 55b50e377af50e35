// Package format provides console rendering for scan reports. It adapts
// column widths to the terminal and supports color and truncation.
package format

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/BBarkseeun/devsecops-console/pkg/report"
)

// ConsoleFormatter renders a scan report in a terminal-friendly layout.
type ConsoleFormatter struct {
	// MaxDescriptionColWidth constrains the description column. If 0, a
	// dynamic width is chosen based on terminal width.
	MaxDescriptionColWidth int

	// EnableColors toggles ANSI color output for severity cells.
	EnableColors bool
}

// NewConsoleFormatter creates a formatter with sensible defaults.
func NewConsoleFormatter() *ConsoleFormatter {
	return &ConsoleFormatter{EnableColors: true}
}

// Render writes the formatted report to writer. Reports without any
// well-known summary fields are rendered as indented raw JSON.
func (f *ConsoleFormatter) Render(rpt *report.Report, writer io.Writer) error {
	if rpt == nil {
		return fmt.Errorf("nil report")
	}

	if !rpt.HasSummary() {
		if _, err := fmt.Fprintln(writer, rpt.PrettyRaw()); err != nil {
			return fmt.Errorf("failed writing raw report: %w", err)
		}
		return nil
	}

	if rpt.Status != "" {
		if _, err := fmt.Fprintf(writer, "Status: %s\n", rpt.Status); err != nil {
			return fmt.Errorf("failed writing status line: %w", err)
		}
	}
	if rpt.Vulnerabilities != nil {
		if _, err := fmt.Fprintf(writer, "Vulnerabilities found: %d\n", *rpt.Vulnerabilities); err != nil {
			return fmt.Errorf("failed writing vulnerability count: %w", err)
		}
	}

	if len(rpt.Findings) == 0 {
		return nil
	}

	if _, err := fmt.Fprintln(writer); err != nil {
		return fmt.Errorf("failed writing findings spacer: %w", err)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(writer)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	tw.AppendHeader(table.Row{"Severity", "Rule", "Location", "Description"})

	if configs := f.buildColumnConfig(writer); len(configs) > 0 {
		tw.SetColumnConfigs(configs)
	}

	for _, fd := range rpt.FindingsBySeverity() {
		tw.AppendRow(table.Row{
			f.severityCell(fd.Severity),
			fd.Rule,
			location(fd),
			fd.Description,
		})
	}
	tw.Render()

	return nil
}

func location(fd report.Finding) string {
	if fd.File == "" {
		return "-"
	}
	if fd.Line > 0 {
		return fmt.Sprintf("%s:%d", fd.File, fd.Line)
	}
	return fd.File
}

// severityCell returns the (optionally colored) severity label.
func (f *ConsoleFormatter) severityCell(sev string) string {
	label := strings.ToUpper(sev)
	if label == "" {
		label = "UNKNOWN"
	}
	if !f.EnableColors {
		return label
	}
	switch strings.ToLower(sev) {
	case "critical", "high":
		return text.FgRed.Sprint(label)
	case "medium":
		return text.FgYellow.Sprint(label)
	case "low", "info":
		return text.FgHiBlack.Sprint(label)
	}
	return label
}

// buildColumnConfig creates per-column sizing to fit the terminal.
func (f *ConsoleFormatter) buildColumnConfig(w io.Writer) []table.ColumnConfig {
	termWidth := detectTerminalWidth(w)
	if termWidth <= 0 {
		return nil
	}
	if termWidth < 60 {
		termWidth = 60
	}

	descWidth := f.MaxDescriptionColWidth
	if descWidth <= 0 {
		// Severity, rule, and location consume roughly half the width.
		descWidth = termWidth / 2
		if descWidth < 20 {
			descWidth = 20
		}
	}

	return []table.ColumnConfig{
		{Number: 2, WidthMax: 30, Transformer: truncTransformer(30)},
		{Number: 3, WidthMax: 40, Transformer: truncTransformer(40)},
		{Number: 4, WidthMax: descWidth, Transformer: truncTransformer(descWidth)},
	}
}

// detectTerminalWidth attempts to get terminal width if writer is a file
// (stdout/stderr).
func detectTerminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	return -1
}

// truncTransformer returns a text.Transformer to ellipsize overly wide
// cells.
func truncTransformer(max int) text.Transformer {
	return func(val interface{}) string {
		s := fmt.Sprint(val)
		if utf8.RuneCountInString(s) <= max {
			return s
		}
		if max <= 1 {
			return "…"
		}
		var b strings.Builder
		count := 0
		for _, r := range s {
			if count >= max-1 {
				break
			}
			b.WriteRune(r)
			count++
		}
		b.WriteRune('…')
		return b.String()
	}
}

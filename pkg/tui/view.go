package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/BBarkseeun/devsecops-console/pkg/catalog"
	"github.com/BBarkseeun/devsecops-console/pkg/nav"
	"github.com/BBarkseeun/devsecops-console/pkg/report"
	"github.com/BBarkseeun/devsecops-console/pkg/scan"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#005F87")).
			Padding(0, 1)

	selectedRowStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(lipgloss.Color("205"))

	rowStyle = lipgloss.NewStyle().
			PaddingLeft(4).
			Foreground(lipgloss.Color("252"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Width(18)
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("DevSecOps Console"))
	b.WriteString("\n\n")

	switch m.Nav.Current() {
	case nav.PageHome:
		b.WriteString(m.viewHome())
	case nav.PageSelectionMenu:
		b.WriteString(m.viewSelectionMenu())
	case nav.PageCredentialInput:
		b.WriteString(m.viewCredentialInput())
	case nav.PageRepositoryList:
		b.WriteString(m.viewRepositoryList())
	case nav.PageScanInProgress:
		b.WriteString(m.viewScanInProgress())
	case nav.PageScanResult:
		b.WriteString(m.viewScanResult())
	case nav.PageInfra:
		b.WriteString(m.viewInfra())
	}

	if m.banner != "" {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("  " + m.banner))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + m.footer()))
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewHome() string {
	var b strings.Builder
	b.WriteString("  Pipeline and infrastructure security analysis.\n\n")
	b.WriteString("  Press enter to start.\n")
	return b.String()
}

func (m Model) viewSelectionMenu() string {
	var b strings.Builder
	b.WriteString("  What do you want to analyze?\n\n")
	b.WriteString(selectedRowStyle.Render("[1] CI/CD pipeline"))
	b.WriteString("\n")
	b.WriteString(selectedRowStyle.Render("[2] Infrastructure"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewCredentialInput() string {
	var b strings.Builder
	b.WriteString("  Enter your credentials. All fields are optional, but at\n")
	b.WriteString("  least one is required to sign in.\n\n")

	for i := range m.inputs {
		b.WriteString("  ")
		b.WriteString(labelStyle.Render(inputLabels[i]))
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
		if msg, ok := m.fieldErrs[inputFields[i]]; ok {
			b.WriteString("  ")
			b.WriteString(labelStyle.Render(""))
			b.WriteString(errStyle.Render(msg))
			b.WriteString("\n")
		}
	}

	if m.submitting {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  Signing in..."))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewRepositoryList() string {
	var b strings.Builder

	if len(m.repos.Repos) == 0 {
		b.WriteString("  No repositories loaded.\n\n")
		b.WriteString("  Press esc to sign in.\n")
		return b.String()
	}

	visible := m.repos.Visible()

	filters := fmt.Sprintf("sort: %s", sortLabel(m.repos.Query.Sort))
	if m.repos.Query.Language != "" {
		filters += ", language: " + m.repos.Query.Language
	}
	if m.repos.Query.Search != "" {
		filters += fmt.Sprintf(", search: %q", m.repos.Query.Search)
	}
	b.WriteString(dimStyle.Render("  " + filters))
	b.WriteString("\n")
	if m.searching {
		b.WriteString("  " + m.search.View() + "\n")
	}
	b.WriteString("\n")

	if len(visible) == 0 {
		b.WriteString(dimStyle.Render("  No repositories match the current filters."))
		b.WriteString("\n")
		return b.String()
	}

	for i, r := range visible {
		line := fmt.Sprintf("%s  %s  ★%d  %s",
			r.Name, r.Language, r.StarCount, r.Visibility)
		if m.selected != nil && m.selected.ID == r.ID {
			line += "  (selected)"
		}
		if i == m.cursor {
			b.WriteString(selectedRowStyle.Render("> " + line))
		} else {
			b.WriteString(rowStyle.Render(line))
		}
		b.WriteString("\n")
		if i == m.cursor {
			b.WriteString(dimStyle.Render("      " + r.Description))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) viewScanInProgress() string {
	var b strings.Builder
	if m.sim == nil {
		// Reached by deep link; there is no scan to show.
		b.WriteString("  No scan in progress.\n")
		return b.String()
	}

	pct := m.sim.Progress()
	b.WriteString("  " + m.sim.PhaseLabel() + "\n\n")
	b.WriteString("  " + m.bar.ViewAs(pct/100) + "\n\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %.0f%%", pct)))
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewScanResult() string {
	var b strings.Builder
	if m.outcome == nil {
		// Reached by deep link; there is no outcome to show.
		b.WriteString("  No scan result available.\n")
		return b.String()
	}

	if m.outcome.Warning != "" {
		b.WriteString(warnStyle.Render("  " + m.outcome.Warning))
		b.WriteString("\n\n")
	}

	if m.outcome.Kind == scan.OutcomeFailure {
		b.WriteString(errStyle.Render("  Scan failed"))
		b.WriteString("\n\n")
		b.WriteString("  " + m.outcome.Message + "\n")
		return b.String()
	}

	b.WriteString(okStyle.Render("  Scan completed"))
	b.WriteString("\n\n")

	rpt := report.Parse(m.outcome.Report)
	if rpt.HasSummary() {
		if rpt.Status != "" {
			b.WriteString("  Status: " + rpt.Status + "\n")
		}
		if rpt.Vulnerabilities != nil {
			b.WriteString(fmt.Sprintf("  Vulnerabilities found: %d\n", *rpt.Vulnerabilities))
		}
		for _, fd := range rpt.FindingsBySeverity() {
			b.WriteString(fmt.Sprintf("  [%s] %s  %s\n", fd.Severity, fd.Rule, fd.Description))
		}
	} else {
		for _, line := range strings.Split(rpt.PrettyRaw(), "\n") {
			b.WriteString("  " + line + "\n")
		}
	}
	return b.String()
}

func (m Model) viewInfra() string {
	var b strings.Builder
	b.WriteString("  Infrastructure analysis is not available yet.\n")
	return b.String()
}

func sortLabel(k catalog.SortKey) string {
	if k == "" {
		return string(catalog.SortByName)
	}
	return string(k)
}

func (m Model) footer() string {
	addr := "?" + m.Nav.Address().Encode()
	if addr == "?" {
		addr = "/"
	}

	var keys string
	switch m.Nav.Current() {
	case nav.PageHome:
		keys = "enter start · q quit"
	case nav.PageSelectionMenu:
		keys = "1 pipeline · 2 infra · esc back"
	case nav.PageCredentialInput:
		keys = "tab next field · enter submit · esc back"
	case nav.PageRepositoryList:
		keys = "enter select · r scan · / search · tab sort · f language · esc back"
	case nav.PageScanInProgress:
		keys = "scanning..."
	case nav.PageScanResult:
		keys = "enter back to repositories · q quit"
	case nav.PageInfra:
		keys = "q quit"
	}
	return keys + "   " + addr
}

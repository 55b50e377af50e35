package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BBarkseeun/devsecops-console/pkg/catalog"
	"github.com/BBarkseeun/devsecops-console/pkg/credentials"
	"github.com/BBarkseeun/devsecops-console/pkg/nav"
	"github.com/BBarkseeun/devsecops-console/pkg/scan"
	"github.com/BBarkseeun/devsecops-console/pkg/session"
)

// MsgSessionReady carries the result of a session establishment attempt.
type MsgSessionReady struct {
	Gen   uint64
	Repos []catalog.Repository
	Err   error
}

// MsgCIPrepared carries the result of the selection-time CI download.
type MsgCIPrepared struct {
	Gen    uint64
	RepoID string
	Err    error
}

// MsgScanDone carries the terminal outcome of a scan attempt.
type MsgScanDone struct {
	Gen     uint64
	Outcome scan.Outcome
}

// MsgTick advances the simulated progress display.
type MsgTick time.Time

// Update handles events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.window = msg
		w := msg.Width - 8
		if w > 60 {
			w = 60
		}
		if w > 0 {
			m.bar.Width = w
		}
		return m, nil

	case MsgSessionReady:
		// The submit affordance belongs to the attempt, not to whatever
		// page the completion lands on, so it unlatches even for stale
		// results.
		m.submitting = false
		if m.Nav.Stale(msg.Gen) {
			return m, nil
		}
		if msg.Err != nil {
			m.banner = sessionErrorBanner(msg.Err)
			return m, nil
		}
		m.repos = Catalog{Repos: msg.Repos, Languages: catalog.Languages(msg.Repos)}
		m.cursor = 0
		m.selected = nil
		m.banner = ""
		m.Nav.Apply(nav.EventSessionEstablished)
		return m, nil

	case MsgCIPrepared:
		if m.Nav.Stale(msg.Gen) {
			return m, nil
		}
		if msg.Err != nil {
			// The selection stays; only the notice changes.
			m.banner = msg.Err.Error()
			return m, nil
		}
		m.banner = ""
		return m, nil

	case MsgScanDone:
		if m.Nav.Stale(msg.Gen) {
			return m, nil
		}
		out := msg.Outcome
		m.outcome = &out
		m.sim = nil
		if out.Kind == scan.OutcomeSuccess {
			m.Nav.Apply(nav.EventScanSucceeded)
		} else {
			m.Nav.Apply(nav.EventScanFailed)
		}
		return m, nil

	case MsgTick:
		if m.Nav.Current() != nav.PageScanInProgress || m.sim == nil {
			return m, nil
		}
		return m, tickCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.Nav.Current() {
	case nav.PageHome:
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "enter":
			m.Nav.Apply(nav.EventStartAnalysis)
		}

	case nav.PageSelectionMenu:
		switch msg.String() {
		case "1", "p":
			m.Nav.Apply(nav.EventChoosePipeline)
			return m, textinput.Blink
		case "2", "i":
			m.Nav.Apply(nav.EventChooseInfra)
		case "esc":
			m.Nav.Apply(nav.EventBack)
		case "q":
			return m, tea.Quit
		}

	case nav.PageCredentialInput:
		return m.handleFormKey(msg)

	case nav.PageRepositoryList:
		return m.handleCatalogKey(msg)

	case nav.PageScanInProgress:
		// The scan runs to completion; only quit is honored here.

	case nav.PageScanResult:
		switch msg.String() {
		case "enter", "esc":
			m.outcome = nil
			m.Nav.Apply(nav.EventReturnToCatalog)
		case "q":
			return m, tea.Quit
		}

	case nav.PageInfra:
		if msg.String() == "q" {
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.banner = ""
		m.fieldErrs = nil
		m.Nav.Apply(nav.EventBack)
		return m, nil

	case "tab", "down":
		m.setFocus((m.focus + 1) % inputCount)
		return m, textinput.Blink

	case "shift+tab", "up":
		m.setFocus((m.focus + inputCount - 1) % inputCount)
		return m, textinput.Blink

	case "enter":
		if m.focus < inputCount-1 {
			m.setFocus(m.focus + 1)
			return m, textinput.Blink
		}
		return m.submitCredentials()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) submitCredentials() (tea.Model, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	b := m.bundle()
	m.fieldErrs = b.Validate()
	if len(m.fieldErrs) > 0 {
		m.banner = ""
		return m, nil
	}
	if !b.Submittable() {
		m.banner = "Enter at least one credential to continue"
		return m, nil
	}
	m.banner = ""
	m.submitting = true
	return m, m.establishCmd(m.Nav.Generation(), b)
}

func (m Model) handleCatalogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEsc:
			m.searching = false
			m.search.Blur()
			if msg.Type == tea.KeyEsc {
				m.search.SetValue("")
			}
			m.repos.Query.Search = m.search.Value()
			m.cursor = 0
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.repos.Query.Search = m.search.Value()
		m.cursor = 0
		return m, cmd
	}

	visible := m.repos.Visible()

	switch msg.String() {
	case "esc":
		m.banner = ""
		m.selected = nil
		m.Nav.Apply(nav.EventBack)

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(visible)-1 {
			m.cursor++
		}

	case "/":
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink

	case "tab":
		m.repos.Query.Sort = nextSortKey(m.repos.Query.Sort)

	case "f":
		m.repos.Query.Language = nextLanguage(m.repos.Languages, m.repos.Query.Language)
		m.cursor = 0

	case "enter":
		if m.cursor >= len(visible) {
			return m, nil
		}
		repo := visible[m.cursor]
		m.selected = &repo
		m.banner = ""
		return m, m.prepareCmd(m.Nav.Generation(), repo.ID)

	case "r":
		if m.selected == nil {
			m.banner = "Select a repository first"
			return m, nil
		}
		if !m.guard.TryAcquire() {
			m.banner = "A scan is already running"
			return m, nil
		}
		// The gate self-releases on a bounded window from acquisition,
		// not from completion, so a dropped completion cannot hold it
		// forever.
		m.guard.ReleaseAfter(scan.DefaultReleaseDelay)
		m.banner = ""
		m.sim = scan.NewSimulator()
		m.outcome = nil
		m.Nav.Apply(nav.EventScanRequested)
		return m, tea.Batch(m.runScanCmd(m.Nav.Generation(), m.selected.ID), tickCmd())

	case "q":
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) setFocus(idx int) {
	m.inputs[m.focus].Blur()
	m.focus = idx
	m.inputs[m.focus].Focus()
}

// nextSortKey cycles name, stars, lastActivity.
func nextSortKey(k catalog.SortKey) catalog.SortKey {
	switch k {
	case catalog.SortByName, "":
		return catalog.SortByStars
	case catalog.SortByStars:
		return catalog.SortByActivity
	default:
		return catalog.SortByName
	}
}

// nextLanguage cycles through "" (all) followed by the known languages.
func nextLanguage(langs []string, current string) string {
	if current == "" {
		if len(langs) == 0 {
			return ""
		}
		return langs[0]
	}
	for i, l := range langs {
		if l == current {
			if i+1 < len(langs) {
				return langs[i+1]
			}
			return ""
		}
	}
	return ""
}

func sessionErrorBanner(err error) string {
	if errors.Is(err, session.ErrNotSubmittable) {
		return "Enter at least one credential to continue"
	}
	return "Sign-in failed: " + err.Error()
}

func (m Model) establishCmd(gen uint64, b credentials.Bundle) tea.Cmd {
	return func() tea.Msg {
		repos, err := m.gateway.Establish(context.Background(), b)
		return MsgSessionReady{Gen: gen, Repos: repos, Err: err}
	}
}

func (m Model) prepareCmd(gen uint64, repoID string) tea.Cmd {
	return func() tea.Msg {
		err := m.orch.PrepareCI(context.Background(), repoID)
		return MsgCIPrepared{Gen: gen, RepoID: repoID, Err: err}
	}
}

func (m Model) runScanCmd(gen uint64, repoID string) tea.Cmd {
	return func() tea.Msg {
		out := m.orch.Run(context.Background(), repoID)
		return MsgScanDone{Gen: gen, Outcome: out}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(scan.SampleInterval, func(t time.Time) tea.Msg {
		return MsgTick(t)
	})
}

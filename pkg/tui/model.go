// Package tui is the interactive console front end. It drives the
// navigation state machine from key events, runs session and scan work in
// background commands, and discards completions whose navigation
// generation has been superseded.
package tui

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BBarkseeun/devsecops-console/pkg/catalog"
	"github.com/BBarkseeun/devsecops-console/pkg/credentials"
	"github.com/BBarkseeun/devsecops-console/pkg/nav"
	"github.com/BBarkseeun/devsecops-console/pkg/scan"
	"github.com/BBarkseeun/devsecops-console/pkg/session"
)

// Indices into Model.inputs; the order mirrors the form layout.
const (
	inputAccessKey = iota
	inputSecretKey
	inputInstanceID
	inputRepoToken
	inputCount
)

var inputLabels = [inputCount]string{
	"AWS Access Key",
	"AWS Secret Key",
	"EC2 Instance ID",
	"Repository Token",
}

var inputFields = [inputCount]string{
	credentials.FieldAccessKey,
	credentials.FieldSecretKey,
	credentials.FieldInstanceID,
	credentials.FieldRepoToken,
}

// Model holds the full TUI state. It is driven exclusively through
// Update; background work communicates back via typed messages.
type Model struct {
	Nav *nav.Machine

	gateway *session.Gateway
	orch    *scan.Orchestrator
	guard   *scan.Guard

	// Credential form
	inputs     [inputCount]textinput.Model
	focus      int
	fieldErrs  credentials.FieldErrors
	submitting bool

	// Transient notice shown under the active page.
	banner string

	// Repository catalog
	repos     Catalog
	cursor    int
	searching bool
	search    textinput.Model
	selected  *catalog.Repository

	// Scan
	sim     *scan.Simulator
	bar     progress.Model
	outcome *scan.Outcome

	window tea.WindowSizeMsg
}

// Catalog bundles the session's repositories with the active view query.
type Catalog struct {
	Repos     []catalog.Repository
	Query     catalog.Query
	Languages []string
}

// Visible returns the repositories after filtering and sorting.
func (c Catalog) Visible() []catalog.Repository {
	return c.Query.Apply(c.Repos)
}

// New builds the initial model. The starting page comes from the decoded
// deep-link address; pages reached that way render their empty shell
// because no in-memory data survives a reload.
func New(gateway *session.Gateway, orch *scan.Orchestrator, initial nav.Page) Model {
	m := Model{
		Nav:     nav.NewMachine(initial),
		gateway: gateway,
		orch:    orch,
		guard:   scan.NewGuard(),
		bar:     progress.New(progress.WithDefaultGradient()),
	}

	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = "> "
		ti.CharLimit = 128
		ti.Width = 40
		if i == inputSecretKey || i == inputRepoToken {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '*'
		}
		m.inputs[i] = ti
	}
	m.inputs[inputAccessKey].Placeholder = "AKIA..."
	m.inputs[inputInstanceID].Placeholder = "i-..."
	m.inputs[inputAccessKey].Focus()

	si := textinput.New()
	si.Prompt = "/ "
	si.CharLimit = 64
	si.Width = 30
	m.search = si

	return m
}

// Init starts the cursor blink when the form is the landing page.
func (m Model) Init() tea.Cmd {
	if m.Nav.Current() == nav.PageCredentialInput {
		return textinput.Blink
	}
	return nil
}

// bundle collects the form values into a credential bundle.
func (m Model) bundle() credentials.Bundle {
	return credentials.Bundle{
		AccessKey:  m.inputs[inputAccessKey].Value(),
		SecretKey:  m.inputs[inputSecretKey].Value(),
		InstanceID: m.inputs[inputInstanceID].Value(),
		RepoToken:  m.inputs[inputRepoToken].Value(),
	}
}

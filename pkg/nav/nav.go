// Package nav owns the page-level navigation state. Exactly one page is
// active at a time; every other component requests transitions through
// events and never mutates the page directly. The active page is mirrored
// into an address query string so deep links reconstruct the same page
// shell (in-memory data is deliberately not reconstructed).
package nav

import (
	"log/slog"
	"net/url"
)

// Page enumerates the navigable page states.
type Page string

const (
	PageHome            Page = "home"
	PageSelectionMenu   Page = "selectionMenu"
	PageCredentialInput Page = "credentialInput"
	PageRepositoryList  Page = "repositoryList"
	PageScanInProgress  Page = "scanInProgress"
	PageScanResult      Page = "scanResult"
	// PageInfra is a reachable but terminal placeholder: the
	// infrastructure-analysis flow is not implemented.
	PageInfra Page = "infra"
)

// Event enumerates the intents that drive transitions. Events outside the
// current page's row are ignored.
type Event string

const (
	EventStartAnalysis      Event = "startAnalysis"
	EventChoosePipeline     Event = "choosePipeline"
	EventChooseInfra        Event = "chooseInfra"
	EventBack               Event = "back"
	EventSessionEstablished Event = "sessionEstablished"
	EventScanRequested      Event = "scanRequested"
	EventScanSucceeded      Event = "scanSucceeded"
	EventScanFailed         Event = "scanFailed"
	EventReturnToCatalog    Event = "returnToCatalog"
)

// transitions is the full page/event table. Timers never appear here:
// every transition is triggered by an explicit user or child-component
// intent.
var transitions = map[Page]map[Event]Page{
	PageHome: {
		EventStartAnalysis: PageSelectionMenu,
	},
	PageSelectionMenu: {
		EventChoosePipeline: PageCredentialInput,
		EventChooseInfra:    PageInfra,
		EventBack:           PageHome,
	},
	PageCredentialInput: {
		EventBack:               PageSelectionMenu,
		EventSessionEstablished: PageRepositoryList,
	},
	PageRepositoryList: {
		EventBack:          PageCredentialInput,
		EventScanRequested: PageScanInProgress,
	},
	PageScanInProgress: {
		EventScanSucceeded: PageScanResult,
		EventScanFailed:    PageScanResult,
	},
	PageScanResult: {
		EventReturnToCatalog: PageRepositoryList,
	},
	PageInfra: {},
}

// queryParam is the single query parameter carrying the page state.
const queryParam = "page"

// EncodeQuery is the pure mapping from a page to its address fragment.
// Home maps to an empty query; every other page sets the parameter to its
// name.
func EncodeQuery(p Page) url.Values {
	v := url.Values{}
	if p != PageHome {
		v.Set(queryParam, string(p))
	}
	return v
}

// DecodePage is the inverse mapping. Absent or unrecognized parameters
// default to home.
func DecodePage(v url.Values) Page {
	switch p := Page(v.Get(queryParam)); p {
	case PageSelectionMenu, PageCredentialInput, PageRepositoryList,
		PageScanInProgress, PageScanResult, PageInfra:
		return p
	default:
		return PageHome
	}
}

// Machine holds the current page and a generation counter used to discard
// stale async completions. It assumes a single-threaded event loop, which
// is how both the TUI and the headless commands drive it.
type Machine struct {
	current    Page
	generation uint64
}

// NewMachine starts the machine at the given page (typically the decoded
// deep-link address).
func NewMachine(initial Page) *Machine {
	return &Machine{current: initial}
}

// Current returns the active page.
func (m *Machine) Current() Page { return m.current }

// Generation identifies the current navigation epoch. Async operations
// capture it at start; their completions are discarded when it no longer
// matches.
func (m *Machine) Generation() uint64 { return m.generation }

// Stale reports whether a completion started at gen has been superseded
// by a later transition.
func (m *Machine) Stale(gen uint64) bool { return gen != m.generation }

// Apply performs the transition for the event, if the table defines one
// for the current page. It returns the new page and whether a transition
// happened. Every applied transition bumps the generation.
func (m *Machine) Apply(ev Event) (Page, bool) {
	next, ok := transitions[m.current][ev]
	if !ok {
		slog.Debug("navigation event ignored", "page", m.current, "event", ev)
		return m.current, false
	}
	if next == PageInfra {
		slog.Info("infrastructure analysis selected (not implemented)")
	}
	m.current = next
	m.generation++
	return m.current, true
}

// Address returns the query string mirroring the current page.
func (m *Machine) Address() url.Values { return EncodeQuery(m.current) }

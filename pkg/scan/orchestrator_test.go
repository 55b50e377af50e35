package scan

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/BBarkseeun/devsecops-console/pkg/backend"
	"github.com/BBarkseeun/devsecops-console/pkg/state"
)

type fakeAPI struct {
	downloadErr   error
	scanBody      json.RawMessage
	scanErr       error
	downloadCalls int
	scanCalls     int
	lastRepoID    string
}

func (f *fakeAPI) CreateSession(context.Context, backend.SessionRequest) error { return nil }

func (f *fakeAPI) ListProjects(context.Context, string) (json.RawMessage, error) {
	return nil, nil
}

func (f *fakeAPI) DownloadCIConfig(_ context.Context, _, repoID string) error {
	f.downloadCalls++
	f.lastRepoID = repoID
	return f.downloadErr
}

func (f *fakeAPI) RunScan(_ context.Context, _, repoID string) (json.RawMessage, error) {
	f.scanCalls++
	f.lastRepoID = repoID
	return f.scanBody, f.scanErr
}

func storeWithKey(t *testing.T) state.KeyStore {
	t.Helper()
	s := state.NewInMemoryKeyStore()
	if err := s.SetAccessKey("AKIA1234567890ABCDEF"); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return s
}

func TestRunSuccess(t *testing.T) {
	api := &fakeAPI{scanBody: json.RawMessage(`{"vulnerabilities":3}`)}
	o := NewOrchestrator(api, storeWithKey(t))

	out := o.Run(context.Background(), "42")
	if out.Kind != OutcomeSuccess {
		t.Fatalf("Kind = %s, want success (message %q)", out.Kind, out.Message)
	}
	if string(out.Report) != `{"vulnerabilities":3}` {
		t.Errorf("Report = %s", out.Report)
	}
	if out.Warning != "" {
		t.Errorf("unexpected warning %q", out.Warning)
	}
	if api.downloadCalls != 1 || api.scanCalls != 1 {
		t.Errorf("calls = %d download, %d scan; want 1 and 1", api.downloadCalls, api.scanCalls)
	}
}

func TestRunOrdersDownloadBeforeScan(t *testing.T) {
	var order []string
	api := &orderedAPI{order: &order}
	o := NewOrchestrator(api, storeWithKey(t))

	o.Run(context.Background(), "42")
	if len(order) != 2 || order[0] != "download" || order[1] != "scan" {
		t.Errorf("call order = %v, want [download scan]", order)
	}
}

type orderedAPI struct {
	fakeAPI
	order *[]string
}

func (f *orderedAPI) DownloadCIConfig(ctx context.Context, key, repoID string) error {
	*f.order = append(*f.order, "download")
	return f.fakeAPI.DownloadCIConfig(ctx, key, repoID)
}

func (f *orderedAPI) RunScan(ctx context.Context, key, repoID string) (json.RawMessage, error) {
	*f.order = append(*f.order, "scan")
	return f.fakeAPI.RunScan(ctx, key, repoID)
}

func TestRunProceedsToScanWhenDownloadFails(t *testing.T) {
	api := &fakeAPI{
		downloadErr: &backend.APIError{StatusCode: 502, Message: "upstream down"},
		scanBody:    json.RawMessage(`{"vulnerabilities":0}`),
	}
	o := NewOrchestrator(api, storeWithKey(t))

	out := o.Run(context.Background(), "42")
	if out.Kind != OutcomeSuccess {
		t.Fatalf("scan result decides the outcome; got %s", out.Kind)
	}
	if api.scanCalls != 1 {
		t.Error("scan must run despite the download failure")
	}
	if !strings.Contains(out.Warning, "upstream down") {
		t.Errorf("Warning = %q, want the download failure recorded", out.Warning)
	}
}

func TestRunScanFailureCarriesBackendMessage(t *testing.T) {
	api := &fakeAPI{scanErr: &backend.APIError{StatusCode: 422, Message: "quota exceeded"}}
	o := NewOrchestrator(api, storeWithKey(t))

	out := o.Run(context.Background(), "42")
	if out.Kind != OutcomeFailure {
		t.Fatalf("Kind = %s, want failure", out.Kind)
	}
	if out.Message != "quota exceeded" {
		t.Errorf("Message = %q, want the backend-supplied message", out.Message)
	}
}

func TestRunMissingSessionIsFatal(t *testing.T) {
	api := &fakeAPI{}
	o := NewOrchestrator(api, state.NewInMemoryKeyStore())

	out := o.Run(context.Background(), "42")
	if out.Kind != OutcomeFailure {
		t.Fatalf("Kind = %s, want failure", out.Kind)
	}
	if out.Message != state.ErrNoSession.Error() {
		t.Errorf("Message = %q, want the specific missing-session message", out.Message)
	}
	if api.downloadCalls != 0 || api.scanCalls != 0 {
		t.Error("no network call may happen without a session")
	}
}

func TestPrepareCI(t *testing.T) {
	api := &fakeAPI{}
	o := NewOrchestrator(api, storeWithKey(t))

	if err := o.PrepareCI(context.Background(), "42"); err != nil {
		t.Fatalf("PrepareCI failed: %v", err)
	}
	if api.lastRepoID != "42" {
		t.Errorf("repository id = %q", api.lastRepoID)
	}
	if api.scanCalls != 0 {
		t.Error("PrepareCI must not trigger a scan")
	}
}

func TestPrepareCIDownloadFailure(t *testing.T) {
	api := &fakeAPI{downloadErr: &backend.APIError{StatusCode: 429, Message: "quota exceeded"}}
	o := NewOrchestrator(api, storeWithKey(t))

	err := o.PrepareCI(context.Background(), "42")
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "quota exceeded" {
		t.Errorf("error must carry the exact backend message, got %v", err)
	}
}

func TestPrepareCIMissingSession(t *testing.T) {
	o := NewOrchestrator(&fakeAPI{}, state.NewInMemoryKeyStore())
	if err := o.PrepareCI(context.Background(), "42"); !errors.Is(err, state.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BBarkseeun/devsecops-console/pkg/backend"
	"github.com/BBarkseeun/devsecops-console/pkg/catalog"
	"github.com/BBarkseeun/devsecops-console/pkg/credentials"
	"github.com/BBarkseeun/devsecops-console/pkg/scan"
	"github.com/BBarkseeun/devsecops-console/pkg/session"
	"github.com/BBarkseeun/devsecops-console/pkg/state"
)

// scriptedBackend implements the full backend surface for end-to-end
// exercises: session creation, project listing, CI download, and scan.
type scriptedBackend struct {
	t *testing.T

	projects    string
	downloadErr string // non-empty means the download endpoint fails
	scanBody    string

	paths []string
}

func (b *scriptedBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		b.paths = append(b.paths, r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/projects", func(w http.ResponseWriter, r *http.Request) {
		b.paths = append(b.paths, r.URL.Path)
		w.Write([]byte(b.projects))
	})
	mux.HandleFunc("/projects/download-ci", func(w http.ResponseWriter, r *http.Request) {
		b.paths = append(b.paths, r.URL.Path)
		if b.downloadErr != "" {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": b.downloadErr})
			return
		}
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/projects/download-ci/scan", func(w http.ResponseWriter, r *http.Request) {
		b.paths = append(b.paths, r.URL.Path)
		w.Write([]byte(b.scanBody))
	})
	return mux
}

func e2eBundle() credentials.Bundle {
	return credentials.Bundle{
		AccessKey: "AKIA" + strings.Repeat("A", 16),
		SecretKey: "supersecretvalue",
	}
}

// Full happy path: sign in, list the catalog, select a repository, and
// run the two-phase scan to a successful outcome.
func TestEndToEndScan(t *testing.T) {
	sb := &scriptedBackend{
		t: t,
		projects: `[
			{"id": 42, "name": "payments", "language": "Go", "star_count": 5, "last_activity_at": "2024-03-01T10:00:00Z"},
			{"id": 43, "name": "frontend", "language": "TypeScript"}
		]`,
		scanBody: `{"vulnerabilities": 3, "status": "completed"}`,
	}
	srv := httptest.NewServer(sb.handler())
	defer srv.Close()

	client, err := backend.NewClient(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	keys := state.NewInMemoryKeyStore()
	gateway := session.NewGateway(client, keys)

	repos, err := gateway.Establish(context.Background(), e2eBundle())
	if err != nil {
		t.Fatalf("Establish failed: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("repos = %d", len(repos))
	}

	repo, ok := catalog.FindByID(repos, "42")
	if !ok {
		t.Fatal("repository 42 not in catalog")
	}
	if repo.Name != "payments" {
		t.Errorf("Name = %q", repo.Name)
	}

	orch := scan.NewOrchestrator(client, keys)
	if err := orch.PrepareCI(context.Background(), repo.ID); err != nil {
		t.Fatalf("PrepareCI failed: %v", err)
	}

	outcome := orch.Run(context.Background(), repo.ID)
	if outcome.Kind != scan.OutcomeSuccess {
		t.Fatalf("outcome = %+v", outcome)
	}
	var body struct {
		Vulnerabilities int `json:"vulnerabilities"`
	}
	if err := json.Unmarshal(outcome.Report, &body); err != nil {
		t.Fatalf("report not JSON: %v", err)
	}
	if body.Vulnerabilities != 3 {
		t.Errorf("vulnerabilities = %d", body.Vulnerabilities)
	}

	want := []string{
		"/sessions", "/projects",
		"/projects/download-ci",
		"/projects/download-ci", "/projects/download-ci/scan",
	}
	if len(sb.paths) != len(want) {
		t.Fatalf("backend calls = %v", sb.paths)
	}
	for i := range want {
		if sb.paths[i] != want[i] {
			t.Fatalf("backend calls = %v, want %v", sb.paths, want)
		}
	}
}

// A failed CI download at selection time surfaces the backend's exact
// message, and a subsequent scan still completes with a warning.
func TestEndToEndScanWithFailedCIDownload(t *testing.T) {
	sb := &scriptedBackend{
		t:           t,
		projects:    `[{"id": 42, "name": "payments"}]`,
		downloadErr: "quota exceeded",
		scanBody:    `{"vulnerabilities": 0}`,
	}
	srv := httptest.NewServer(sb.handler())
	defer srv.Close()

	client, err := backend.NewClient(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	keys := state.NewInMemoryKeyStore()
	gateway := session.NewGateway(client, keys)

	repos, err := gateway.Establish(context.Background(), e2eBundle())
	if err != nil {
		t.Fatalf("Establish failed: %v", err)
	}

	orch := scan.NewOrchestrator(client, keys)
	err = orch.PrepareCI(context.Background(), repos[0].ID)
	if err == nil {
		t.Fatal("expected a CI download error")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("err = %v, want the exact backend message", err)
	}

	outcome := orch.Run(context.Background(), repos[0].ID)
	if outcome.Kind != scan.OutcomeSuccess {
		t.Fatalf("outcome = %+v, scan must proceed past the failed download", outcome)
	}
	if !strings.Contains(outcome.Warning, "quota exceeded") {
		t.Errorf("Warning = %q", outcome.Warning)
	}
}

// The access key never outlives a failed establishment and is available
// immediately after a successful one.
func TestEndToEndSessionPersistence(t *testing.T) {
	sb := &scriptedBackend{
		t:        t,
		projects: `[]`,
	}
	srv := httptest.NewServer(sb.handler())
	defer srv.Close()

	client, err := backend.NewClient(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	path := t.TempDir() + "/session.yaml"
	keys := state.NewFileKeyStore(path)
	gateway := session.NewGateway(client, keys)

	start := time.Now()
	if _, err := gateway.Establish(context.Background(), e2eBundle()); err != nil {
		t.Fatalf("Establish failed: %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Error("establishment took unreasonably long")
	}

	key, err := keys.AccessKey()
	if err != nil {
		t.Fatalf("AccessKey failed: %v", err)
	}
	if key != "AKIA"+strings.Repeat("A", 16) {
		t.Errorf("stored key = %q", key)
	}

	// A fresh store reading the same file sees the same session.
	key2, err := state.NewFileKeyStore(path).AccessKey()
	if err != nil || key2 != key {
		t.Errorf("reloaded key = %q, err = %v", key2, err)
	}
}

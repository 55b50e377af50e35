package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/BBarkseeun/devsecops-console/pkg/backend"
	"github.com/BBarkseeun/devsecops-console/pkg/credentials"
	"github.com/BBarkseeun/devsecops-console/pkg/state"
)

// fakeAPI scripts the backend responses per operation.
type fakeAPI struct {
	createErr    error
	listBody     json.RawMessage
	listErr      error
	createCalls  int
	listCalls    int
	lastSession  backend.SessionRequest
	lastListView string
}

func (f *fakeAPI) CreateSession(_ context.Context, req backend.SessionRequest) error {
	f.createCalls++
	f.lastSession = req
	return f.createErr
}

func (f *fakeAPI) ListProjects(_ context.Context, accessKey string) (json.RawMessage, error) {
	f.listCalls++
	f.lastListView = accessKey
	return f.listBody, f.listErr
}

func (f *fakeAPI) DownloadCIConfig(context.Context, string, string) error { return nil }

func (f *fakeAPI) RunScan(context.Context, string, string) (json.RawMessage, error) {
	return nil, nil
}

var validBundle = credentials.Bundle{
	AccessKey:  "AKIA1234567890ABCDEF",
	SecretKey:  "supersecretkey",
	InstanceID: "i-0123456789abcdef0",
	RepoToken:  "tok12",
}

func TestEstablishSuccessPersistsKey(t *testing.T) {
	api := &fakeAPI{listBody: json.RawMessage(`[{"id":42,"name":"payments"}]`)}
	keys := state.NewInMemoryKeyStore()
	g := NewGateway(api, keys)

	repos, err := g.Establish(context.Background(), validBundle)
	if err != nil {
		t.Fatalf("Establish failed: %v", err)
	}
	if len(repos) != 1 || repos[0].ID != "42" {
		t.Errorf("unexpected catalog %+v", repos)
	}
	if api.lastListView != validBundle.AccessKey {
		t.Errorf("list keyed by %q, want access key alone", api.lastListView)
	}

	stored, err := keys.AccessKey()
	if err != nil {
		t.Fatalf("access key not persisted: %v", err)
	}
	if stored != validBundle.AccessKey {
		t.Errorf("stored key = %q", stored)
	}
}

func TestEstablishRejectsNonSubmittableBundle(t *testing.T) {
	api := &fakeAPI{}
	g := NewGateway(api, state.NewInMemoryKeyStore())

	_, err := g.Establish(context.Background(), credentials.Bundle{})
	if !errors.Is(err, ErrNotSubmittable) {
		t.Fatalf("expected ErrNotSubmittable, got %v", err)
	}
	if api.createCalls != 0 {
		t.Error("no network call may happen for an invalid bundle")
	}
}

func TestEstablishCreateFailureLeavesNoState(t *testing.T) {
	api := &fakeAPI{createErr: &backend.APIError{StatusCode: 401, Message: "bad credentials"}}
	keys := state.NewInMemoryKeyStore()
	g := NewGateway(api, keys)

	_, err := g.Establish(context.Background(), validBundle)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "bad credentials" {
		t.Errorf("error should carry the backend message, got %v", err)
	}
	if api.listCalls != 0 {
		t.Error("listing must not run after session creation fails")
	}
	if _, err := keys.AccessKey(); !errors.Is(err, state.ErrNoSession) {
		t.Error("access key must not be persisted on failure")
	}
}

func TestEstablishListFailureLeavesNoState(t *testing.T) {
	api := &fakeAPI{listErr: &backend.APIError{StatusCode: 500}}
	keys := state.NewInMemoryKeyStore()
	g := NewGateway(api, keys)

	if _, err := g.Establish(context.Background(), validBundle); err == nil {
		t.Fatal("expected error")
	}
	if _, err := keys.AccessKey(); !errors.Is(err, state.ErrNoSession) {
		t.Error("access key must not be persisted when listing fails")
	}
}

func TestEstablishMalformedCatalogLeavesNoState(t *testing.T) {
	api := &fakeAPI{listBody: json.RawMessage(`{"not":"an array"}`)}
	keys := state.NewInMemoryKeyStore()
	g := NewGateway(api, keys)

	repos, err := g.Establish(context.Background(), validBundle)
	if err == nil {
		t.Fatal("expected normalization error")
	}
	if len(repos) != 0 {
		t.Error("no partial catalog may be returned")
	}
	if _, err := keys.AccessKey(); !errors.Is(err, state.ErrNoSession) {
		t.Error("access key must not be persisted on normalization failure")
	}
}

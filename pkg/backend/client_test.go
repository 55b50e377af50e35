package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateSessionSendsBundle(t *testing.T) {
	var got SessionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	req := SessionRequest{
		AccessKey:  "AKIA1234567890ABCDEF",
		SecretKey:  "supersecretkey",
		InstanceID: "i-0123456789abcdef0",
		RepoToken:  "tok12",
	}
	if err := c.CreateSession(context.Background(), req); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if got != req {
		t.Errorf("server received %+v, want %+v", got, req)
	}
}

func TestListProjectsReturnsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["access_key"] != "AKIA1234567890ABCDEF" {
			t.Errorf("access_key = %q", body["access_key"])
		}
		w.Write([]byte(`[{"id":42,"name":"payments"}]`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	raw, err := c.ListProjects(context.Background(), "AKIA1234567890ABCDEF")
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode raw body: %v", err)
	}
	if len(list) != 1 || list[0]["name"] != "payments" {
		t.Errorf("unexpected body %s", raw)
	}
}

func TestErrorEnvelopePreferred(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"quota exceeded"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	err := c.DownloadCIConfig(context.Background(), "AKIA1234567890ABCDEF", "42")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if apiErr.Message != "quota exceeded" {
		t.Errorf("Message = %q, want backend-supplied message", apiErr.Message)
	}
	if apiErr.Error() != "quota exceeded" {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestErrorWithoutEnvelopeFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.RunScan(context.Background(), "AKIA1234567890ABCDEF", "42")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Error() != "backend returned status 500" {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestUnreachableBackendIsAPIError(t *testing.T) {
	c, _ := NewClient("http://127.0.0.1:0")
	err := c.CreateSession(context.Background(), SessionRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError for transport failure, got %T: %v", err, err)
	}
	if apiErr.Message == "" {
		t.Error("transport failure should carry a message")
	}
}

func TestNewClientRejectsEmptyURL(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Error("expected error for empty base URL")
	}
}

func TestRunScanPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/download-ci/scan" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body projectRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.ProjectID != "42" {
			t.Errorf("project_id = %q", body.ProjectID)
		}
		w.Write([]byte(`{"vulnerabilities":3}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	raw, err := c.RunScan(context.Background(), "AKIA1234567890ABCDEF", "42")
	if err != nil {
		t.Fatalf("RunScan failed: %v", err)
	}
	if string(raw) != `{"vulnerabilities":3}` {
		t.Errorf("raw report = %s", raw)
	}
}

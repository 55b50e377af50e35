// Package backend provides the HTTP client for the scanning backend. The
// backend exposes four JSON operations: session creation, repository
// listing, CI-configuration download, and scan execution. All failures
// are converted to typed values at this boundary; no raw transport errors
// escape to callers.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// API is the narrow interface consumed by the session gateway and the
// scan orchestrator. Tests inject deterministic implementations; the
// production implementation is Client.
type API interface {
	// CreateSession establishes a server-side session for the bundle.
	CreateSession(ctx context.Context, req SessionRequest) error
	// ListProjects returns the raw JSON array of upstream repository
	// objects for the session identified by accessKey.
	ListProjects(ctx context.Context, accessKey string) (json.RawMessage, error)
	// DownloadCIConfig asks the backend to fetch the CI configuration of
	// the given project.
	DownloadCIConfig(ctx context.Context, accessKey, projectID string) error
	// RunScan executes the security scan and returns the raw report body.
	RunScan(ctx context.Context, accessKey, projectID string) (json.RawMessage, error)
}

// SessionRequest is the body of the session-creation call.
type SessionRequest struct {
	AccessKey  string `json:"access_key"`
	SecretKey  string `json:"secret_key"`
	InstanceID string `json:"instance_id"`
	RepoToken  string `json:"gitlab_token"`
}

// projectRequest is the body shared by the CI download and scan calls.
type projectRequest struct {
	AccessKey string `json:"access_key"`
	ProjectID string `json:"project_id"`
}

// APIError describes a non-200 backend response. Message carries the
// backend-supplied error field when present, otherwise a transport-level
// description.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// errorBody is the error envelope the backend emits on failures.
type errorBody struct {
	Error string `json:"error"`
}

// Client is the production API implementation.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (used in tests and for
// custom transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("backend: base URL cannot be empty")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // scans are slow; individual calls still honor ctx
			Transport: &http.Transport{
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 4 * time.Minute,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateSession posts the full credential bundle to the backend.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) error {
	_, err := c.post(ctx, "/sessions", req)
	return err
}

// ListProjects retrieves the upstream repository objects for the session.
func (c *Client) ListProjects(ctx context.Context, accessKey string) (json.RawMessage, error) {
	return c.post(ctx, "/projects", map[string]string{"access_key": accessKey})
}

// DownloadCIConfig triggers the server-side CI configuration download.
func (c *Client) DownloadCIConfig(ctx context.Context, accessKey, projectID string) error {
	_, err := c.post(ctx, "/projects/download-ci", projectRequest{AccessKey: accessKey, ProjectID: projectID})
	return err
}

// RunScan executes the scan and returns the opaque report body.
func (c *Client) RunScan(ctx context.Context, accessKey, projectID string) (json.RawMessage, error) {
	return c.post(ctx, "/projects/download-ci/scan", projectRequest{AccessKey: accessKey, ProjectID: projectID})
}

// post issues a JSON POST and returns the response body on 2xx. Non-2xx
// responses become *APIError with the backend message when available.
func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("backend: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb errorBody
		if jsonErr := json.Unmarshal(data, &eb); jsonErr == nil && eb.Error != "" {
			apiErr.Message = eb.Error
		}
		return nil, apiErr
	}

	return json.RawMessage(data), nil
}

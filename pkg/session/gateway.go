// Package session turns a credential bundle into an authenticated
// scanning session and the normalized list of repositories accessible to
// it. It owns the only network round trip that can fail due to bad
// credentials.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BBarkseeun/devsecops-console/pkg/backend"
	"github.com/BBarkseeun/devsecops-console/pkg/catalog"
	"github.com/BBarkseeun/devsecops-console/pkg/credentials"
	"github.com/BBarkseeun/devsecops-console/pkg/state"
)

// ErrNotSubmittable is returned when Establish is called with a bundle
// that is empty or has invalid populated fields. It indicates a caller
// bug: the form must validate before submitting.
var ErrNotSubmittable = errors.New("credential bundle is not submittable")

// Gateway establishes sessions against the backend. It does not
// deduplicate concurrent calls; the caller disables its submit affordance
// while one is outstanding.
type Gateway struct {
	api  backend.API
	keys state.KeyStore
	now  func() time.Time
}

// NewGateway wires a gateway to the backend API and the durable key
// store.
func NewGateway(api backend.API, keys state.KeyStore) *Gateway {
	return &Gateway{api: api, keys: keys, now: time.Now}
}

// Establish creates a backend session for the bundle, lists the
// repositories accessible to it, and persists the access key. The key is
// written only after both calls succeed, so a failure leaves no partial
// session state behind.
func (g *Gateway) Establish(ctx context.Context, bundle credentials.Bundle) ([]catalog.Repository, error) {
	if !bundle.Submittable() {
		return nil, ErrNotSubmittable
	}

	req := backend.SessionRequest{
		AccessKey:  bundle.AccessKey,
		SecretKey:  bundle.SecretKey,
		InstanceID: bundle.InstanceID,
		RepoToken:  bundle.RepoToken,
	}

	slog.Info("establishing session", "accessKey", credentials.Redact(bundle.AccessKey))
	if err := g.api.CreateSession(ctx, req); err != nil {
		return nil, fmt.Errorf("session creation failed: %w", err)
	}

	raw, err := g.api.ListProjects(ctx, bundle.AccessKey)
	if err != nil {
		return nil, fmt.Errorf("repository listing failed: %w", err)
	}

	repos, err := catalog.Normalize(raw, g.now())
	if err != nil {
		return nil, err
	}

	if err := g.keys.SetAccessKey(bundle.AccessKey); err != nil {
		return nil, fmt.Errorf("persisting access key failed: %w", err)
	}

	slog.Info("session established", "repositories", len(repos))
	return repos, nil
}

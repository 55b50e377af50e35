package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BBarkseeun/devsecops-console/pkg/backend"
	"github.com/BBarkseeun/devsecops-console/pkg/state"
)

// Orchestrator drives the two-phase remote operation for a selected
// repository. Phase 1 downloads the CI configuration; phase 2 runs the
// scan. Neither phase is retried automatically; every retry is a fresh
// user action.
//
// Policy for phase-1 failures during Run: the scan call proceeds anyway
// and alone decides the outcome; the download failure is recorded as a
// warning on the outcome. PrepareCI covers the selection-time path where
// only the download runs and its failure is surfaced directly.
type Orchestrator struct {
	api  backend.API
	keys state.KeyStore
}

// NewOrchestrator wires the orchestrator to the backend API and the
// session key store.
func NewOrchestrator(api backend.API, keys state.KeyStore) *Orchestrator {
	return &Orchestrator{api: api, keys: keys}
}

// PrepareCI downloads the CI configuration for the repository. The
// returned error carries the most specific message available; the caller
// keeps the selection so the user sees which repository was attempted.
func (o *Orchestrator) PrepareCI(ctx context.Context, repoID string) error {
	key, err := o.keys.AccessKey()
	if err != nil {
		return err
	}
	if err := o.api.DownloadCIConfig(ctx, key, repoID); err != nil {
		slog.Warn("CI config download failed", "repository", repoID, "error", err)
		return err
	}
	slog.Debug("CI config downloaded", "repository", repoID)
	return nil
}

// Run executes both phases and produces the terminal outcome for the
// attempt. A missing session is fatal for the operation and is surfaced
// with its specific message, distinguishable from a network failure.
func (o *Orchestrator) Run(ctx context.Context, repoID string) Outcome {
	key, err := o.keys.AccessKey()
	if err != nil {
		return Failure(err.Error())
	}

	var warning string
	if err := o.api.DownloadCIConfig(ctx, key, repoID); err != nil {
		// Phase 2 tolerates a failed download; record it for the result view.
		warning = fmt.Sprintf("CI config download failed: %v", err)
		slog.Warn("proceeding to scan despite download failure", "repository", repoID, "error", err)
	}

	report, err := o.api.RunScan(ctx, key, repoID)
	if err != nil {
		out := Failure(err.Error())
		out.Warning = warning
		return out
	}

	slog.Info("scan completed", "repository", repoID)
	out := Success(report)
	out.Warning = warning
	return out
}

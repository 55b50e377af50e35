// Package scan drives the two-phase remote scan operation (CI
// configuration download, then scan execution), guards against duplicate
// invocations, and simulates perceived progress for the loading view.
package scan

import "encoding/json"

// OutcomeKind tags the terminal result of a scan attempt.
type OutcomeKind string

const (
	// OutcomeSuccess carries an opaque scan report.
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeFailure carries a human-readable message.
	OutcomeFailure OutcomeKind = "failure"
)

// Outcome is the terminal result of one scan attempt. It is produced
// exactly once per attempt and never mutated afterwards; the navigation
// state machine consumes it to choose the next page.
type Outcome struct {
	Kind    OutcomeKind
	Report  json.RawMessage // populated on success
	Message string          // populated on failure
	Warning string          // non-blocking phase-1 failure note, if any
}

// Success builds a success outcome around the raw report body.
func Success(report json.RawMessage) Outcome {
	return Outcome{Kind: OutcomeSuccess, Report: report}
}

// Failure builds a failure outcome with the given message.
func Failure(message string) Outcome {
	return Outcome{Kind: OutcomeFailure, Message: message}
}

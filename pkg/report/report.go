// Package report interprets scan report bodies. The backend treats the
// report as opaque; this package extracts the well-known summary fields
// when present and keeps the raw body for verbatim rendering otherwise.
package report

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Finding is one security finding inside a scan report.
type Finding struct {
	Severity    string `json:"severity"`
	Rule        string `json:"rule"`
	File        string `json:"file"`
	Line        int    `json:"line"`
	Description string `json:"description"`
}

// Report is a parsed scan report. Raw always holds the exact body the
// backend returned; the remaining fields are populated only when the
// body carries them.
type Report struct {
	Raw json.RawMessage

	// Vulnerabilities is the reported total, when present.
	Vulnerabilities *int
	// Status is the backend's own verdict string, when present.
	Status string
	// Findings are individual results, when present.
	Findings []Finding
}

// reportBody mirrors the known optional fields of the scan report.
type reportBody struct {
	Vulnerabilities *int      `json:"vulnerabilities"`
	Status          string    `json:"status"`
	Findings        []Finding `json:"findings"`
}

// Parse never fails: bodies that are not JSON objects, or that carry
// none of the known fields, still yield a report whose Raw renders
// verbatim.
func Parse(raw json.RawMessage) *Report {
	r := &Report{Raw: raw}

	var body reportBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return r
	}
	r.Vulnerabilities = body.Vulnerabilities
	r.Status = body.Status
	r.Findings = body.Findings
	return r
}

// HasSummary reports whether any well-known field was present.
func (r *Report) HasSummary() bool {
	return r.Vulnerabilities != nil || r.Status != "" || len(r.Findings) > 0
}

// FindingsBySeverity returns the findings grouped and ordered by
// severity rank (critical first), preserving input order within a rank.
func (r *Report) FindingsBySeverity() []Finding {
	out := append([]Finding(nil), r.Findings...)
	sort.SliceStable(out, func(i, j int) bool {
		return severityRank(out[i].Severity) < severityRank(out[j].Severity)
	})
	return out
}

// severityRank orders severities; unknown values sort last.
func severityRank(s string) int {
	switch strings.ToLower(s) {
	case "critical":
		return 0
	case "high":
		return 1
	case "medium":
		return 2
	case "low":
		return 3
	case "info":
		return 4
	}
	return 5
}

// PrettyRaw returns the raw body indented for display, or the body
// unchanged when it is not valid JSON.
func (r *Report) PrettyRaw() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Raw, "", "  "); err != nil {
		return string(r.Raw)
	}
	return buf.String()
}

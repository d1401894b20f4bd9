package model

import (
	"time"

	"github.com/ppiankov/factgate/internal/errors"
)

// Policy selects which extraction runs feed a reconciliation
type Policy string

const (
	PolicyLatestRun  Policy = "latest-run"   // Most recent run per document
	PolicyBestPerDoc Policy = "best-per-doc" // Reserved; not implemented
)

// ReconciliationReport is the persisted artifact for one claim.
// It is created once per reconciliation and never mutated afterwards.
type ReconciliationReport struct {
	ClaimFacts
	FactCount   int                `json:"fact_count"`
	Conflicts   []FactConflict     `json:"conflicts"`
	Gate        ReconciliationGate `json:"gate"`
	Policy      Policy             `json:"policy"`
	GeneratedAt time.Time          `json:"generated_at"`

	LLM *LLMSummary `json:"llm,omitempty"` // Optional narrative (separate, never affects the gate)
}

// ReconciliationResult wraps the outcome of reconciling one claim
type ReconciliationResult struct {
	ClaimID   string
	Success   bool
	Report    *ReconciliationReport // Set iff Success
	Error     error                 // Set iff !Success
	ErrorKind errors.Kind
	Persisted string // Path of the written report, empty on dry-run
}

// Succeeded builds a successful result
func Succeeded(report *ReconciliationReport, path string) ReconciliationResult {
	return ReconciliationResult{
		ClaimID:   report.ClaimID,
		Success:   true,
		Report:    report,
		Persisted: path,
	}
}

// Failed builds a failed result carrying the error kind
func Failed(claimID string, err error) ReconciliationResult {
	return ReconciliationResult{
		ClaimID:   claimID,
		Success:   false,
		Error:     err,
		ErrorKind: errors.KindOf(err),
	}
}

// GetError returns the error from the result
func (r ReconciliationResult) GetError() error {
	return r.Error
}

// LLMSummary contains an optional model-written narrative of the report
type LLMSummary struct {
	Enabled   bool     `json:"enabled"`
	Provider  string   `json:"provider,omitempty"`
	Model     string   `json:"model,omitempty"`
	SummaryMD string   `json:"summary_md,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

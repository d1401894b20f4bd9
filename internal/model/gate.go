package model

import (
	"fmt"
	"sort"
)

// GateStatus is the terminal decision of the quality gate
type GateStatus string

const (
	GatePass GateStatus = "PASS"
	GateWarn GateStatus = "WARN"
	GateFail GateStatus = "FAIL"
)

// GateThresholds configures the quality gate
type GateThresholds struct {
	MaxConflicts      int      `json:"max_conflicts" yaml:"max_conflicts" mapstructure:"max_conflicts"`                // Above this the gate cannot PASS
	CriticalFacts     []string `json:"critical_facts" yaml:"critical_facts" mapstructure:"critical_facts"`             // Must be present for PASS
	WarnConflictRatio float64  `json:"warn_conflict_ratio" yaml:"warn_conflict_ratio" mapstructure:"warn_conflict_ratio"` // Conflicted fraction that triggers WARN
	MinConfidence     float64  `json:"min_confidence" yaml:"min_confidence" mapstructure:"min_confidence"`             // Below this a fact counts as missing
}

// DefaultGateThresholds returns the thresholds used when none are configured
func DefaultGateThresholds() GateThresholds {
	return GateThresholds{
		MaxConflicts:      3,
		CriticalFacts:     []string{"incident_date", "loss_amount", "policy_number"},
		WarnConflictRatio: 0.1,
		MinConfidence:     0.5,
	}
}

// Validate checks that thresholds are usable
func (t GateThresholds) Validate() error {
	if t.MaxConflicts < 0 {
		return fmt.Errorf("max_conflicts must be >= 0, got %d", t.MaxConflicts)
	}
	if t.WarnConflictRatio < 0 {
		return fmt.Errorf("warn_conflict_ratio must be >= 0, got %v", t.WarnConflictRatio)
	}
	if t.MinConfidence < 0 || t.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be within [0, 1], got %v", t.MinConfidence)
	}
	for _, name := range t.CriticalFacts {
		if name == "" {
			return fmt.Errorf("critical_facts contains an empty fact name")
		}
	}
	return nil
}

// Snapshot returns a copy with critical facts sorted and deduplicated
func (t GateThresholds) Snapshot() GateThresholds {
	seen := make(map[string]bool, len(t.CriticalFacts))
	critical := make([]string, 0, len(t.CriticalFacts))
	for _, name := range t.CriticalFacts {
		if !seen[name] {
			seen[name] = true
			critical = append(critical, name)
		}
	}
	sort.Strings(critical)
	t.CriticalFacts = critical
	return t
}

// GateReason documents one gate rule that fired, with the inputs it compared
type GateReason struct {
	Rule        string     `json:"rule"`
	Status      GateStatus `json:"status"`
	Description string     `json:"description"`
	Observed    float64    `json:"observed"`
	Threshold   float64    `json:"threshold"`
	Facts       []string   `json:"facts,omitempty"`
}

// ReconciliationGate is the auditable gate decision for one claim
type ReconciliationGate struct {
	Status               GateStatus     `json:"status"`
	ConflictCount        int            `json:"conflict_count"`
	MissingCriticalFacts []string       `json:"missing_critical_facts"`
	Thresholds           GateThresholds `json:"thresholds"` // Snapshot used for this decision
	Reasons              []GateReason   `json:"reasons,omitempty"`
}

// Blocking reports whether downstream assessment must stop
func (g ReconciliationGate) Blocking() bool {
	return g.Status == GateFail
}

package model

import "sort"

// FactType selects the normalization applied before values are compared
type FactType string

const (
	FactTypeString FactType = "string" // Case-folded, whitespace-collapsed
	FactTypeMoney  FactType = "money"  // Fixed-point minor currency units
	FactTypeDate   FactType = "date"   // ISO calendar date
	FactTypeExact  FactType = "exact"  // Raw string comparison
)

// AggregatedFact is the claim-level reconciled view of one fact name
type AggregatedFact struct {
	FactName       string           `json:"fact_name"`
	FactType       FactType         `json:"fact_type"`
	Value          string           `json:"value"`                // Winning normalized value
	RawValue       string           `json:"raw_value"`            // Representative raw value of the winner
	HasConflict    bool             `json:"has_conflict"`
	DistinctValues int              `json:"distinct_values"`      // Distinct normalized values observed
	Confidence     *float64         `json:"confidence,omitempty"` // Best confidence supporting the winner
	Provenance     []FactProvenance `json:"provenance"`
}

// ClaimFacts is the reconciled fact set for one claim.
// It is rebuilt from extraction state on every reconciliation, never updated in place.
type ClaimFacts struct {
	ClaimID string                    `json:"claim_id"`
	Facts   map[string]AggregatedFact `json:"facts"`
	RunIDs  []string                  `json:"run_ids"` // Extraction runs considered
}

// Names returns the fact names in lexical order
func (c ClaimFacts) Names() []string {
	names := make([]string, 0, len(c.Facts))
	for name := range c.Facts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolution names the tie-break rule that decided a conflict
type Resolution string

const (
	ResolutionDocumentPriority Resolution = "document_priority"
	ResolutionRecency          Resolution = "recency"
	ResolutionConfidence       Resolution = "confidence"
	ResolutionMajority         Resolution = "majority"
	ResolutionLexical          Resolution = "lexical"
)

// ConflictValue is one distinct normalized value observed for a conflicting fact
type ConflictValue struct {
	Value      string           `json:"value"`
	Provenance []FactProvenance `json:"provenance"`
}

// FactConflict records a disagreement between documents on one fact name
type FactConflict struct {
	FactName      string          `json:"fact_name"`
	Values        []ConflictValue `json:"values"` // Ranked, winner first
	SelectedValue string          `json:"selected_value"`
	Resolution    Resolution      `json:"resolution"`
}

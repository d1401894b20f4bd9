package model

import "time"

// SourceDocument identifies one document that contributed facts to a claim
type SourceDocument struct {
	DocumentID         string    `json:"document_id"`                   // Stable document identifier
	DocumentType       string    `json:"document_type"`                 // e.g. "claim_form", "police_report"
	RunID              string    `json:"extraction_run_id"`             // Extraction run that produced the output
	ExtractedAt        time.Time `json:"extracted_at"`                  // When the run extracted this document
	DocumentConfidence *float64  `json:"document_confidence,omitempty"` // Whole-document extraction confidence
}

// FactProvenance links one observed value back to the document and run that produced it
type FactProvenance struct {
	SourceDocument
	RawValue        string   `json:"raw_value"`            // Value as reported by the extractor
	NormalizedValue string   `json:"normalized_value"`     // Value after fact-type normalization
	Confidence      *float64 `json:"confidence,omitempty"` // Extractor-reported confidence for this fact
}

// EffectiveConfidence returns the fact confidence, falling back to the document confidence
func (p FactProvenance) EffectiveConfidence() (float64, bool) {
	if p.Confidence != nil {
		return *p.Confidence, true
	}
	if p.DocumentConfidence != nil {
		return *p.DocumentConfidence, true
	}
	return 0, false
}

// FactCandidate is one named value reported for a claim by one document in one run.
// Candidates are consumed by the engine and never persisted directly.
type FactCandidate struct {
	FactName   string         `json:"fact_name"`
	RawValue   any            `json:"raw_value"`
	Source     SourceDocument `json:"source"`
	Confidence *float64       `json:"confidence,omitempty"`
}

// DedupeKey identifies re-emissions of the same fact by the same document and run
func (c FactCandidate) DedupeKey() string {
	return c.Source.DocumentID + "\x00" + c.Source.RunID + "\x00" + c.FactName
}

// Float returns a pointer to v, for optional confidence fields
func Float(v float64) *float64 {
	return &v
}

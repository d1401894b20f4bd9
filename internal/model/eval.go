package model

// FactFrequency counts claims affected by one fact name in a run summary
type FactFrequency struct {
	FactName string `json:"fact_name"`
	Count    int    `json:"count"`
}

// ReconciliationClaimResult is one claim's row in a run evaluation
type ReconciliationClaimResult struct {
	ClaimID              string     `json:"claim_id"`
	Status               GateStatus `json:"status"`
	FactCount            int        `json:"fact_count"`
	ConflictCount        int        `json:"conflict_count"`
	MissingCriticalFacts []string   `json:"missing_critical_facts"`
}

// ReconciliationEvalSummary holds run-level counts and rates
type ReconciliationEvalSummary struct {
	TotalClaims     int     `json:"total_claims"`
	Passed          int     `json:"passed"`
	Warned          int     `json:"warned"`
	Failed          int     `json:"failed"`
	PassRatePercent float64 `json:"pass_rate_percent"`
	AvgFactCount    float64 `json:"avg_fact_count"`
	AvgConflicts    float64 `json:"avg_conflicts"`
	TotalConflicts  int     `json:"total_conflicts"`
}

// ReconciliationRunEval summarizes reconciliation outcomes across many claims.
// Callers check Summary.TotalClaims before treating it as meaningful.
type ReconciliationRunEval struct {
	Summary         ReconciliationEvalSummary   `json:"summary"`
	TopMissingFacts []FactFrequency             `json:"top_missing_facts"`
	TopConflicts    []FactFrequency             `json:"top_conflicts"`
	Claims          []ReconciliationClaimResult `json:"claims"`
}

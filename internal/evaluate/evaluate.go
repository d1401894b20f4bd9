// Package evaluate reduces many per-claim reconciliation reports into one
// run-level summary.
package evaluate

import (
	"math"
	"sort"

	"github.com/ppiankov/factgate/internal/model"
)

// Aggregate summarizes reports. Top lists are sorted by count descending,
// then fact name, and truncated to topN (topN <= 0 keeps every entry).
// Nil reports are skipped. With no reports the summary has TotalClaims 0
// and empty lists.
func Aggregate(reports []*model.ReconciliationReport, topN int) model.ReconciliationRunEval {
	eval := model.ReconciliationRunEval{
		TopMissingFacts: []model.FactFrequency{},
		TopConflicts:    []model.FactFrequency{},
		Claims:          []model.ReconciliationClaimResult{},
	}

	missing := make(map[string]int)
	conflicted := make(map[string]int)
	totalFacts := 0

	for _, r := range reports {
		if r == nil {
			continue
		}
		s := &eval.Summary
		s.TotalClaims++
		switch r.Gate.Status {
		case model.GatePass:
			s.Passed++
		case model.GateWarn:
			s.Warned++
		default:
			s.Failed++
		}
		totalFacts += r.FactCount
		s.TotalConflicts += r.Gate.ConflictCount

		for _, name := range r.Gate.MissingCriticalFacts {
			missing[name]++
		}
		// A fact counts once per claim even if listed twice
		seen := make(map[string]bool, len(r.Conflicts))
		for _, c := range r.Conflicts {
			if !seen[c.FactName] {
				seen[c.FactName] = true
				conflicted[c.FactName]++
			}
		}

		missingFacts := append([]string{}, r.Gate.MissingCriticalFacts...)
		eval.Claims = append(eval.Claims, model.ReconciliationClaimResult{
			ClaimID:              r.ClaimID,
			Status:               r.Gate.Status,
			FactCount:            r.FactCount,
			ConflictCount:        r.Gate.ConflictCount,
			MissingCriticalFacts: missingFacts,
		})
	}

	if n := eval.Summary.TotalClaims; n > 0 {
		eval.Summary.PassRatePercent = round(float64(eval.Summary.Passed)*100/float64(n), 1)
		eval.Summary.AvgFactCount = round(float64(totalFacts)/float64(n), 2)
		eval.Summary.AvgConflicts = round(float64(eval.Summary.TotalConflicts)/float64(n), 2)
	}

	eval.TopMissingFacts = topFrequencies(missing, topN)
	eval.TopConflicts = topFrequencies(conflicted, topN)
	sort.SliceStable(eval.Claims, func(i, j int) bool {
		return eval.Claims[i].ClaimID < eval.Claims[j].ClaimID
	})
	return eval
}

func topFrequencies(counts map[string]int, topN int) []model.FactFrequency {
	out := make([]model.FactFrequency, 0, len(counts))
	for name, count := range counts {
		out = append(out, model.FactFrequency{FactName: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].FactName < out[j].FactName
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Package gate decides whether a claim's reconciled facts may proceed to
// assessment.
package gate

import (
	"fmt"
	"sort"

	"github.com/ppiankov/factgate/internal/model"
)

// Rule names recorded in gate reasons
const (
	RuleMissingCritical   = "missing_critical_facts"
	RuleMaxConflicts      = "max_conflicts"
	RuleWarnConflictRatio = "warn_conflict_ratio"
	RuleResidualConflicts = "residual_conflicts"
	RulePass              = "pass"
)

// StatusOrdinal orders statuses by severity: PASS < WARN < FAIL
func StatusOrdinal(s model.GateStatus) int {
	switch s {
	case model.GatePass:
		return 0
	case model.GateWarn:
		return 1
	default:
		return 2
	}
}

// Evaluate applies thresholds to the reconciled facts. Rules are checked in
// order and the first that fires sets the status; every fired rule is kept
// as a reason. The thresholds snapshot is embedded in the result.
func Evaluate(facts model.ClaimFacts, conflicts []model.FactConflict, thresholds model.GateThresholds) model.ReconciliationGate {
	snapshot := thresholds.Snapshot()
	missing := MissingCritical(facts, snapshot)
	conflictCount := len(conflicts)
	factCount := len(facts.Facts)

	var reasons []model.GateReason

	if len(missing) > 0 {
		reasons = append(reasons, model.GateReason{
			Rule:        RuleMissingCritical,
			Status:      model.GateFail,
			Description: fmt.Sprintf("%d critical fact(s) missing or below confidence %.2f", len(missing), snapshot.MinConfidence),
			Observed:    float64(len(missing)),
			Threshold:   0,
			Facts:       missing,
		})
	}

	if conflictCount > snapshot.MaxConflicts {
		reasons = append(reasons, model.GateReason{
			Rule:        RuleMaxConflicts,
			Status:      model.GateFail,
			Description: fmt.Sprintf("%d conflicts exceed max_conflicts %d", conflictCount, snapshot.MaxConflicts),
			Observed:    float64(conflictCount),
			Threshold:   float64(snapshot.MaxConflicts),
			Facts:       conflictNames(conflicts),
		})
	}

	ratio := float64(conflictCount) / float64(max(1, factCount))
	if ratio > snapshot.WarnConflictRatio {
		reasons = append(reasons, model.GateReason{
			Rule:        RuleWarnConflictRatio,
			Status:      model.GateWarn,
			Description: fmt.Sprintf("conflict ratio %.3f (%d/%d) exceeds %.3f", ratio, conflictCount, factCount, snapshot.WarnConflictRatio),
			Observed:    ratio,
			Threshold:   snapshot.WarnConflictRatio,
			Facts:       conflictNames(conflicts),
		})
	}

	if conflictCount > 0 {
		reasons = append(reasons, model.GateReason{
			Rule:        RuleResidualConflicts,
			Status:      model.GateWarn,
			Description: fmt.Sprintf("%d conflict(s) resolved automatically; review recommended", conflictCount),
			Observed:    float64(conflictCount),
			Threshold:   0,
			Facts:       conflictNames(conflicts),
		})
	}

	status := model.GatePass
	if len(reasons) > 0 {
		status = reasons[0].Status
	} else {
		reasons = append(reasons, model.GateReason{
			Rule:        RulePass,
			Status:      model.GatePass,
			Description: "all critical facts present with no conflicts",
		})
	}

	return model.ReconciliationGate{
		Status:               status,
		ConflictCount:        conflictCount,
		MissingCriticalFacts: missing,
		Thresholds:           snapshot,
		Reasons:              reasons,
	}
}

// MissingCritical lists critical facts that are absent, or whose winning
// value is supported only below the confidence floor. A fact without any
// reported confidence is not treated as low confidence.
func MissingCritical(facts model.ClaimFacts, thresholds model.GateThresholds) []string {
	missing := []string{}
	for _, name := range thresholds.Snapshot().CriticalFacts {
		fact, ok := facts.Facts[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if fact.Confidence != nil && *fact.Confidence < thresholds.MinConfidence {
			missing = append(missing, name)
		}
	}
	return missing
}

func conflictNames(conflicts []model.FactConflict) []string {
	names := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		names = append(names, c.FactName)
	}
	sort.Strings(names)
	return names
}

package gate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/factgate/internal/model"
)

// claimWith builds n facts named fact_00..fact_nn plus any named extras
func claimWith(n int, extras ...string) model.ClaimFacts {
	facts := model.ClaimFacts{ClaimID: "CLM-1", Facts: map[string]model.AggregatedFact{}}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("fact_%02d", i)
		facts.Facts[name] = model.AggregatedFact{FactName: name, Value: "v"}
	}
	for _, name := range extras {
		facts.Facts[name] = model.AggregatedFact{FactName: name, Value: "v"}
	}
	return facts
}

func conflictsOn(names ...string) []model.FactConflict {
	out := make([]model.FactConflict, 0, len(names))
	for _, n := range names {
		out = append(out, model.FactConflict{FactName: n})
	}
	return out
}

func TestEvaluate_MissingCriticalFails(t *testing.T) {
	th := model.GateThresholds{MaxConflicts: 3, CriticalFacts: []string{"incident_date"}, WarnConflictRatio: 0.1}
	g := Evaluate(claimWith(4), nil, th)

	assert.Equal(t, model.GateFail, g.Status)
	assert.Equal(t, []string{"incident_date"}, g.MissingCriticalFacts)
	require.Len(t, g.Reasons, 1)
	assert.Equal(t, RuleMissingCritical, g.Reasons[0].Rule)
	assert.True(t, g.Blocking())
}

func TestEvaluate_ConflictRatioWarns(t *testing.T) {
	th := model.GateThresholds{MaxConflicts: 5, WarnConflictRatio: 0.1}
	g := Evaluate(claimWith(10), conflictsOn("fact_01", "fact_02"), th)

	assert.Equal(t, model.GateWarn, g.Status)
	assert.Equal(t, 2, g.ConflictCount)
	assert.Empty(t, g.MissingCriticalFacts)
	require.Len(t, g.Reasons, 2)
	assert.Equal(t, RuleWarnConflictRatio, g.Reasons[0].Rule)
	assert.InDelta(t, 0.2, g.Reasons[0].Observed, 1e-9)
	assert.Equal(t, RuleResidualConflicts, g.Reasons[1].Rule)
	assert.False(t, g.Blocking())
}

func TestEvaluate_MaxConflictsFails(t *testing.T) {
	th := model.GateThresholds{MaxConflicts: 1, WarnConflictRatio: 1}
	g := Evaluate(claimWith(10), conflictsOn("fact_01", "fact_02"), th)
	assert.Equal(t, model.GateFail, g.Status)
	assert.Equal(t, RuleMaxConflicts, g.Reasons[0].Rule)
}

func TestEvaluate_ResidualConflictWarns(t *testing.T) {
	th := model.GateThresholds{MaxConflicts: 5, WarnConflictRatio: 0.5}
	g := Evaluate(claimWith(10), conflictsOn("fact_03"), th)
	assert.Equal(t, model.GateWarn, g.Status)
	require.Len(t, g.Reasons, 1)
	assert.Equal(t, RuleResidualConflicts, g.Reasons[0].Rule)
	assert.Equal(t, []string{"fact_03"}, g.Reasons[0].Facts)
}

func TestEvaluate_Pass(t *testing.T) {
	th := model.DefaultGateThresholds()
	g := Evaluate(claimWith(2, "incident_date", "loss_amount", "policy_number"), nil, th)

	assert.Equal(t, model.GatePass, g.Status)
	assert.NotNil(t, g.MissingCriticalFacts)
	assert.Empty(t, g.MissingCriticalFacts)
	require.Len(t, g.Reasons, 1)
	assert.Equal(t, RulePass, g.Reasons[0].Rule)
}

func TestEvaluate_ZeroFactsUsesUnitDenominator(t *testing.T) {
	th := model.GateThresholds{MaxConflicts: 0, WarnConflictRatio: 0}
	g := Evaluate(claimWith(0), nil, th)
	assert.Equal(t, model.GatePass, g.Status)
}

func TestEvaluate_LowConfidenceCountsAsMissing(t *testing.T) {
	facts := claimWith(0)
	facts.Facts["policy_number"] = model.AggregatedFact{FactName: "policy_number", Confidence: model.Float(0.3)}
	facts.Facts["loss_amount"] = model.AggregatedFact{FactName: "loss_amount", Confidence: model.Float(0.5)}
	facts.Facts["incident_date"] = model.AggregatedFact{FactName: "incident_date"}

	th := model.DefaultGateThresholds()
	g := Evaluate(facts, nil, th)
	assert.Equal(t, model.GateFail, g.Status)
	assert.Equal(t, []string{"policy_number"}, g.MissingCriticalFacts)
}

func TestEvaluate_SnapshotEmbedded(t *testing.T) {
	th := model.GateThresholds{MaxConflicts: 2, CriticalFacts: []string{"b", "a", "b"}, WarnConflictRatio: 0.3, MinConfidence: 0.4}
	g := Evaluate(claimWith(0, "a", "b"), nil, th)
	assert.Equal(t, []string{"a", "b"}, g.Thresholds.CriticalFacts)
	assert.Equal(t, 2, g.Thresholds.MaxConflicts)
	assert.Equal(t, 0.4, g.Thresholds.MinConfidence)
	// caller's slice is untouched
	assert.Equal(t, []string{"b", "a", "b"}, th.CriticalFacts)
}

func TestStatusOrdinal(t *testing.T) {
	assert.Less(t, StatusOrdinal(model.GatePass), StatusOrdinal(model.GateWarn))
	assert.Less(t, StatusOrdinal(model.GateWarn), StatusOrdinal(model.GateFail))
}

func TestEvaluate_Monotonic(t *testing.T) {
	facts := claimWith(6, "incident_date", "policy_number")
	facts.Facts["loss_amount"] = model.AggregatedFact{FactName: "loss_amount", Confidence: model.Float(0.55)}
	conflictSets := [][]model.FactConflict{
		nil,
		conflictsOn("fact_01"),
		conflictsOn("fact_01", "fact_02"),
		conflictsOn("fact_01", "fact_02", "fact_03", "fact_04"),
	}
	criticalSets := [][]string{
		{"incident_date", "loss_amount", "policy_number", "deductible"},
		{"incident_date", "loss_amount", "policy_number"},
		{"incident_date"},
		{},
	}
	maxConflicts := []int{0, 1, 2, 3, 5}
	ratios := []float64{0, 0.1, 0.2, 0.5, 1}
	minConfs := []float64{0.9, 0.6, 0.5, 0}

	for _, conflicts := range conflictSets {
		for ci := range criticalSets {
			for mi := range maxConflicts {
				for ri := range ratios {
					for ki := range minConfs {
						base := model.GateThresholds{
							CriticalFacts:     criticalSets[ci],
							MaxConflicts:      maxConflicts[mi],
							WarnConflictRatio: ratios[ri],
							MinConfidence:     minConfs[ki],
						}
						before := StatusOrdinal(Evaluate(facts, conflicts, base).Status)

						relaxed := []model.GateThresholds{base, base, base, base}
						if ci+1 < len(criticalSets) {
							relaxed[0].CriticalFacts = criticalSets[ci+1]
						}
						if mi+1 < len(maxConflicts) {
							relaxed[1].MaxConflicts = maxConflicts[mi+1]
						}
						if ri+1 < len(ratios) {
							relaxed[2].WarnConflictRatio = ratios[ri+1]
						}
						if ki+1 < len(minConfs) {
							relaxed[3].MinConfidence = minConfs[ki+1]
						}
						for _, r := range relaxed {
							after := StatusOrdinal(Evaluate(facts, conflicts, r).Status)
							if after > before {
								t.Fatalf("relaxing %+v to %+v moved status from %d to %d", base, r, before, after)
							}
						}
					}
				}
			}
		}
	}
}

package evaluate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/factgate/internal/model"
)

func report(id string, status model.GateStatus, facts int, missing []string, conflicts ...string) *model.ReconciliationReport {
	r := &model.ReconciliationReport{
		ClaimFacts: model.ClaimFacts{ClaimID: id},
		FactCount:  facts,
		Gate: model.ReconciliationGate{
			Status:               status,
			ConflictCount:        len(conflicts),
			MissingCriticalFacts: missing,
		},
	}
	for _, c := range conflicts {
		r.Conflicts = append(r.Conflicts, model.FactConflict{FactName: c})
	}
	return r
}

func TestAggregate_PassRateAndTopMissing(t *testing.T) {
	var reports []*model.ReconciliationReport
	for i := 0; i < 3; i++ {
		reports = append(reports, report(fmt.Sprintf("CLM-F%d", i), model.GateFail, 8, []string{"incident_date"}))
	}
	for i := 0; i < 7; i++ {
		reports = append(reports, report(fmt.Sprintf("CLM-P%d", i), model.GatePass, 12, []string{}))
	}

	eval := Aggregate(reports, 5)

	assert.Equal(t, 10, eval.Summary.TotalClaims)
	assert.Equal(t, 7, eval.Summary.Passed)
	assert.Equal(t, 3, eval.Summary.Failed)
	assert.Equal(t, 0, eval.Summary.Warned)
	assert.Equal(t, 70.0, eval.Summary.PassRatePercent)
	assert.Equal(t, 10.8, eval.Summary.AvgFactCount)
	assert.Equal(t, []model.FactFrequency{{FactName: "incident_date", Count: 3}}, eval.TopMissingFacts)
	assert.Empty(t, eval.TopConflicts)
	require.Len(t, eval.Claims, 10)
	assert.Equal(t, "CLM-F0", eval.Claims[0].ClaimID)
}

func TestAggregate_Empty(t *testing.T) {
	eval := Aggregate(nil, 10)
	assert.Equal(t, 0, eval.Summary.TotalClaims)
	assert.Equal(t, 0.0, eval.Summary.PassRatePercent)
	assert.NotNil(t, eval.TopMissingFacts)
	assert.NotNil(t, eval.TopConflicts)
	assert.Empty(t, eval.TopMissingFacts)
	assert.Empty(t, eval.Claims)

	eval = Aggregate([]*model.ReconciliationReport{nil}, 10)
	assert.Equal(t, 0, eval.Summary.TotalClaims)
}

func TestAggregate_TopConflictsOrderingAndTruncation(t *testing.T) {
	reports := []*model.ReconciliationReport{
		report("CLM-3", model.GateWarn, 10, nil, "vin", "loss_amount"),
		report("CLM-1", model.GateWarn, 10, nil, "loss_amount", "claimant_name"),
		report("CLM-2", model.GateFail, 10, nil, "vin", "loss_amount", "claimant_name", "claimant_name"),
	}

	eval := Aggregate(reports, 2)
	assert.Equal(t, []model.FactFrequency{
		{FactName: "loss_amount", Count: 3},
		{FactName: "claimant_name", Count: 2},
	}, eval.TopConflicts)
	assert.Equal(t, 8, eval.Summary.TotalConflicts)
	assert.Equal(t, 2.67, eval.Summary.AvgConflicts)
	assert.Equal(t, 0.0, eval.Summary.PassRatePercent)
	assert.Equal(t, []string{"CLM-1", "CLM-2", "CLM-3"}, []string{eval.Claims[0].ClaimID, eval.Claims[1].ClaimID, eval.Claims[2].ClaimID})

	untruncated := Aggregate(reports, 0)
	assert.Len(t, untruncated.TopConflicts, 3)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	a := report("CLM-A", model.GatePass, 4, []string{})
	b := report("CLM-B", model.GateFail, 3, []string{"policy_number", "incident_date"}, "vin")
	c := report("CLM-C", model.GateFail, 5, []string{"incident_date"})

	assert.Equal(t,
		Aggregate([]*model.ReconciliationReport{a, b, c}, 3),
		Aggregate([]*model.ReconciliationReport{c, a, b}, 3))
}

func TestAggregate_PassRateRounding(t *testing.T) {
	reports := []*model.ReconciliationReport{
		report("a", model.GatePass, 1, nil),
		report("b", model.GateWarn, 1, nil),
		report("c", model.GateWarn, 1, nil),
	}
	eval := Aggregate(reports, 0)
	assert.Equal(t, 33.3, eval.Summary.PassRatePercent)
	assert.Equal(t, 2, eval.Summary.Warned)
}

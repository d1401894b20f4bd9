package llm

import "github.com/ppiankov/factgate/internal/model"

func testReport(status model.GateStatus) *model.ReconciliationReport {
	return &model.ReconciliationReport{
		ClaimFacts: model.ClaimFacts{ClaimID: "CLM-42"},
		FactCount:  5,
		Conflicts: []model.FactConflict{
			{
				FactName:      "loss_amount",
				SelectedValue: "1500.00",
				Resolution:    model.ResolutionDocumentPriority,
				Values: []model.ConflictValue{
					{Value: "1500.00", Provenance: []model.FactProvenance{{SourceDocument: model.SourceDocument{DocumentType: "claim_form"}}}},
					{Value: "1450.00", Provenance: []model.FactProvenance{{SourceDocument: model.SourceDocument{DocumentType: "invoice"}}}},
				},
			},
		},
		Gate: model.ReconciliationGate{
			Status:               status,
			ConflictCount:        1,
			MissingCriticalFacts: []string{},
			Reasons: []model.GateReason{
				{Rule: "warn_conflict_ratio", Status: model.GateWarn, Description: "1 of 5 facts conflict"},
			},
		},
	}
}

package pipeline

import (
	"fmt"
	"strings"

	"github.com/ppiankov/factgate/internal/model"
)

// StatusLine is the one-line human summary printed per claim
func StatusLine(r model.ReconciliationResult) string {
	if !r.Success {
		return fmt.Sprintf("✗ %s: %v", r.ClaimID, r.Error)
	}
	g := r.Report.Gate
	return fmt.Sprintf("✓ %s: %s (facts=%d conflicts=%d missing=%d)",
		r.ClaimID, g.Status, r.Report.FactCount, g.ConflictCount, len(g.MissingCriticalFacts))
}

// Tally counts batch outcomes by gate status
type Tally struct {
	Passed int
	Warned int
	Failed int
	Errors int
}

// Count tallies results
func Count(results []model.ReconciliationResult) Tally {
	var t Tally
	for _, r := range results {
		if !r.Success {
			t.Errors++
			continue
		}
		switch r.Report.Gate.Status {
		case model.GatePass:
			t.Passed++
		case model.GateWarn:
			t.Warned++
		default:
			t.Failed++
		}
	}
	return t
}

// Total returns the number of claims tallied
func (t Tally) Total() int {
	return t.Passed + t.Warned + t.Failed + t.Errors
}

func (t Tally) String() string {
	return fmt.Sprintf("%d claims: %d pass, %d warn, %d fail, %d error",
		t.Total(), t.Passed, t.Warned, t.Failed, t.Errors)
}

// RenderMarkdown renders a report for human review
func RenderMarkdown(report *model.ReconciliationReport) string {
	var b strings.Builder
	g := report.Gate

	fmt.Fprintf(&b, "# Reconciliation: %s\n\n", report.ClaimID)
	fmt.Fprintf(&b, "**Gate:** %s  \n", g.Status)
	fmt.Fprintf(&b, "**Facts:** %d  \n", report.FactCount)
	fmt.Fprintf(&b, "**Conflicts:** %d  \n", g.ConflictCount)
	fmt.Fprintf(&b, "**Policy:** %s  \n", report.Policy)
	fmt.Fprintf(&b, "**Runs:** %s  \n", joinOrNone(report.RunIDs))
	fmt.Fprintf(&b, "**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Gate decision\n\n")
	for _, r := range g.Reasons {
		fmt.Fprintf(&b, "- **%s** `%s`: %s", r.Status, r.Rule, r.Description)
		if len(r.Facts) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(r.Facts, ", "))
		}
		b.WriteString("\n")
	}
	if len(g.MissingCriticalFacts) > 0 {
		fmt.Fprintf(&b, "\nMissing critical facts: %s\n", strings.Join(g.MissingCriticalFacts, ", "))
	}
	fmt.Fprintf(&b, "\nThresholds: max_conflicts=%d, warn_conflict_ratio=%.2f, min_confidence=%.2f, critical_facts=[%s]\n\n",
		g.Thresholds.MaxConflicts, g.Thresholds.WarnConflictRatio, g.Thresholds.MinConfidence,
		strings.Join(g.Thresholds.CriticalFacts, ", "))

	b.WriteString("## Facts\n\n")
	if report.FactCount == 0 {
		b.WriteString("_No facts extracted._\n\n")
	} else {
		b.WriteString("| Fact | Value | Type | Sources | Conflict |\n")
		b.WriteString("|------|-------|------|---------|----------|\n")
		for _, name := range report.Names() {
			f := report.Facts[name]
			conflict := ""
			if f.HasConflict {
				conflict = fmt.Sprintf("⚠ %d values", f.DistinctValues)
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %s |\n",
				name, escapeCell(f.RawValue), f.FactType, len(f.Provenance), conflict)
		}
		b.WriteString("\n")
	}

	if len(report.Conflicts) > 0 {
		b.WriteString("## Conflicts\n\n")
		for _, c := range report.Conflicts {
			fmt.Fprintf(&b, "### %s\n\nSelected `%s` by %s.\n\n", c.FactName, c.SelectedValue, c.Resolution)
			for _, v := range c.Values {
				docs := make([]string, 0, len(v.Provenance))
				for _, p := range v.Provenance {
					docs = append(docs, fmt.Sprintf("%s (%s, %s)", p.DocumentID, p.DocumentType, p.RunID))
				}
				fmt.Fprintf(&b, "- `%s`: %s\n", v.Value, strings.Join(docs, "; "))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// RenderLLMMarkdown renders the narrative summary as its own document
func RenderLLMMarkdown(s *model.LLMSummary) string {
	var b strings.Builder
	b.WriteString("# Narrative Summary\n\n")
	fmt.Fprintf(&b, "_Generated by %s (%s). Informational only; the gate decision in report.json is authoritative._\n\n", s.Provider, s.Model)
	b.WriteString(strings.TrimSpace(s.SummaryMD))
	b.WriteString("\n")
	if len(s.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

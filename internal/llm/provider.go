package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/factgate/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize writes a narrative for a reconciliation report
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	// Report is the reconciliation report to narrate. Its gate decision is final.
	Report *model.ReconciliationReport

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	Summary    string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 800,
	}
}

const systemPrompt = "You narrate insurance claim reconciliation reports for adjusters. The report's gate decision is final and you never contradict it."

// maxPromptConflicts bounds how many conflicts are spelled out in the prompt
const maxPromptConflicts = 10

// BuildPrompt constructs the default prompt for a reconciliation report
func BuildPrompt(report *model.ReconciliationReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are summarizing the fact reconciliation for claim %s.

RULES:
1. The quality gate decided %s. Do not state or imply any other gate status.
2. Only mention facts, values and documents listed below. Do not infer missing values.
3. Explain which disagreements an adjuster should review and why the gate decided as it did.

Gate: %s (conflicts=%d, missing critical facts: %s)
Facts reconciled: %d
`, report.ClaimID, report.Gate.Status, report.Gate.Status, report.Gate.ConflictCount,
		joinOrNone(report.Gate.MissingCriticalFacts), report.FactCount)

	if len(report.Gate.Reasons) > 0 {
		b.WriteString("\nGate reasons:\n")
		for _, r := range report.Gate.Reasons {
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.Rule, r.Status, r.Description)
		}
	}

	if len(report.Conflicts) > 0 {
		b.WriteString("\nConflicts:\n")
		for i, c := range report.Conflicts {
			if i >= maxPromptConflicts {
				fmt.Fprintf(&b, "... and %d more conflicts\n", len(report.Conflicts)-maxPromptConflicts)
				break
			}
			values := make([]string, 0, len(c.Values))
			for _, v := range c.Values {
				docs := make([]string, 0, len(v.Provenance))
				for _, p := range v.Provenance {
					docs = append(docs, p.DocumentType)
				}
				values = append(values, fmt.Sprintf("%q from %s", v.Value, strings.Join(docs, "/")))
			}
			fmt.Fprintf(&b, "- %s: selected %q by %s; observed %s\n",
				c.FactName, c.SelectedValue, c.Resolution, strings.Join(values, ", "))
		}
	}

	b.WriteString("\nProvide a 3-4 sentence summary.")
	return b.String()
}

var statusPattern = regexp.MustCompile(`\b(PASS|WARN|FAIL)\b`)

// checkStatus rejects narratives that name a gate status other than the decided one
func checkStatus(summary string, status model.GateStatus) error {
	for _, m := range statusPattern.FindAllString(summary, -1) {
		if model.GateStatus(m) != status {
			return fmt.Errorf("STATUS DRIFT: narrative mentions %s but the gate decided %s", m, status)
		}
	}
	return nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

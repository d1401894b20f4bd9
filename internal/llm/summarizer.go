package llm

import (
	"context"
	"fmt"

	"github.com/ppiankov/factgate/internal/logging"
	"github.com/ppiankov/factgate/internal/model"
)

// Summarizer writes optional narratives for reconciliation reports.
// A failing provider degrades to warnings; it never fails the claim.
type Summarizer struct {
	provider Provider
	config   Config
}

// NewSummarizer creates a summarizer; a disabled config yields a no-op summarizer
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Summarizer{provider: provider, config: config}, nil
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s.provider != nil
}

// ProviderName returns the configured provider name, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// Narrate summarizes report. It returns nil when the summarizer is disabled.
func (s *Summarizer) Narrate(ctx context.Context, report *model.ReconciliationReport) (*model.LLMSummary, error) {
	if s.provider == nil {
		return nil, nil
	}

	summary := &model.LLMSummary{
		Provider: s.provider.Name(),
		Model:    s.config.Model,
	}

	if !s.provider.IsAvailable(ctx) {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("LLM provider %s is not available", s.provider.Name()))
		return summary, nil
	}

	summary.Enabled = true
	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		Report:    report,
		Model:     s.config.Model,
		MaxTokens: s.config.MaxTokens,
	})
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("provider", summary.Provider).Msg("narrative generation failed")
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("Summary generation failed: %v", err))
		return summary, nil
	}

	summary.SummaryMD = resp.Summary
	if resp.Model != "" {
		summary.Model = resp.Model
	}
	summary.Warnings = append(summary.Warnings, fmt.Sprintf("Tokens used: %d", resp.TokensUsed))
	return summary, nil
}

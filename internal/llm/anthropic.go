package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ppiankov/factgate/internal/logging"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicProvider implements the Provider interface for Anthropic Claude models.
// anthropic.Client is a value type.
type AnthropicProvider struct {
	client anthropic.Client
	config Config
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithRequestTimeout(timeoutOf(config, 30*time.Second)),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable checks if the provider is properly configured
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	if _, err := p.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("Anthropic API check failed")
		return false
	}
	return true
}

// Summarize generates a summary using Anthropic's Messages API
func (p *AnthropicProvider) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = BuildPrompt(req.Report)
	}

	model := firstNonEmpty(req.Model, p.config.Model, defaultAnthropicModel)
	maxTokens := firstPositive(req.MaxTokens, p.config.MaxTokens, 800)

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(0.2),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Anthropic API error: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no content in Anthropic response")
	}

	summary := strings.TrimSpace(strings.Join(parts, ""))
	if err := checkStatus(summary, req.Report.Gate.Status); err != nil {
		return nil, err
	}

	return &SummarizeResponse{
		Summary:    summary,
		Model:      string(msg.Model),
		TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}, nil
}

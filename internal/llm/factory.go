package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	var (
		p   Provider
		err error
	)
	switch provider {
	case "openai":
		p, err = asProvider(NewOpenAIProvider(config))

	case "anthropic", "claude":
		p, err = asProvider(NewAnthropicProvider(config))

	case "ollama":
		p, err = asProvider(NewOllamaProvider(config))

	case "":
		// No provider configured - return nil (LLM disabled)
		return nil, nil

	default:
		return nil, errors.NewConfigError("llm",
			fmt.Sprintf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider), nil)
	}
	if err != nil {
		return nil, errors.NewConfigError("llm", "provider setup failed", err)
	}
	return p, nil
}

// asProvider drops the typed nil a failed constructor returns
func asProvider[P Provider](p P, err error) (Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(c model.LLMConfig) Config {
	return Config{
		Provider:  c.Provider,
		Model:     c.Model,
		APIKey:    c.APIKey,
		BaseURL:   c.BaseURL,
		Timeout:   c.Timeout,
		MaxTokens: c.MaxTokens,
	}
}

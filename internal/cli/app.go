package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/factgate/internal/cache"
	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/llm"
	"github.com/ppiankov/factgate/internal/metrics"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/pipeline"
	"github.com/ppiankov/factgate/internal/provider"
	"github.com/ppiankov/factgate/internal/publish"
	"github.com/ppiankov/factgate/internal/worker"
)

// Keys that DefaultConfig leaves empty (omitempty or yaml:"-") but that may
// still arrive through FACTGATE_* environment variables
var envOnlyKeys = []string{
	"provider.dsn",
	"cache.disk_dir",
	"llm.api_key",
	"llm.base_url",
	"publish.brokers",
	"publish.client_id",
	"publish.pubsub_name",
	"server.schedule",
	"server.allowed_origins",
}

// loadConfig merges defaults, config file, environment and bound flags
func loadConfig() (*model.Config, error) {
	if err := registerDefaults(viper.GetViper()); err != nil {
		return nil, errors.NewConfigError("config", "register defaults", err)
	}

	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, errors.NewConfigError("config", "decode configuration", err)
	}
	applyEnvKeys(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfigError("config", "invalid configuration", err)
	}
	return cfg, nil
}

// registerDefaults declares every config key so AutomaticEnv can see keys
// that appear in no config file
func registerDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	flattenDefaults(v, "", tree)
	for _, key := range envOnlyKeys {
		v.SetDefault(key, nil)
	}
	return nil
}

func flattenDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			flattenDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// applyEnvKeys fills LLM credentials from the conventional provider variables
func applyEnvKeys(cfg *model.Config) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
}

// app bundles the long-lived collaborators of one CLI invocation
type app struct {
	cfg       *model.Config
	source    provider.Provider
	pipeline  *pipeline.Pipeline
	metrics   *metrics.Metrics
	publisher publish.Publisher
	closers   []io.Closer
}

// newApp wires provider, cache, limiter, metrics, publisher and narrator
// into a pipeline
func newApp(cfg *model.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	raw, err := provider.NewRegistry().New(cfg)
	if err != nil {
		return nil, err
	}
	if c, ok := raw.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	a.source = provider.WithCache(raw, cache.New(cfg.Cache))

	opts := []pipeline.Option{pipeline.WithRecorder(a.metrics)}

	pub, err := publish.New(cfg.Publish)
	if err != nil {
		a.Close()
		return nil, err
	}
	if pub != nil {
		a.publisher = pub
		a.closers = append(a.closers, pub)
		opts = append(opts, pipeline.WithPublisher(pub))
	}

	if cfg.LLM.Provider != "" {
		summarizer, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, pipeline.WithNarrator(summarizer))
	}

	limiter := worker.NewLimiter(cfg.Provider.RequestsPerSecond, cfg.Provider.Burst)
	p, err := pipeline.New(cfg, a.source, limiter, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = p
	return a, nil
}

// Close releases provider connections and publisher clients
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: close: %v\n", err)
		}
	}
	a.closers = nil
}

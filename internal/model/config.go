package model

import (
	"fmt"
	"time"
)

// MaxWorkers bounds claim-level parallelism
const MaxWorkers = 8

// Config holds all factgate settings
type Config struct {
	Workspace        string              `yaml:"workspace" mapstructure:"workspace"`
	Policy           Policy              `yaml:"policy" mapstructure:"policy"`
	Provider         ProviderConfig      `yaml:"provider" mapstructure:"provider"`
	Gate             GateThresholds      `yaml:"gate" mapstructure:"gate"`
	DocumentPriority []string            `yaml:"document_priority" mapstructure:"document_priority"` // Highest priority first
	FactTypes        map[string]FactType `yaml:"fact_types" mapstructure:"fact_types"`
	Concurrency      ConcurrencyConfig   `yaml:"concurrency" mapstructure:"concurrency"`
	Cache            CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Output           OutputConfig        `yaml:"output" mapstructure:"output"`
	LLM              LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Publish          PublishConfig       `yaml:"publish" mapstructure:"publish"`
	Server           ServerConfig        `yaml:"server" mapstructure:"server"`
	Logging          LoggingConfig       `yaml:"logging" mapstructure:"logging"`
}

// ProviderConfig selects where extraction outputs are read from
type ProviderConfig struct {
	Name              string  `yaml:"name" mapstructure:"name"` // workspace, sqlite, postgres
	DSN               string  `yaml:"dsn,omitempty" mapstructure:"dsn"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables throttling
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// ConcurrencyConfig controls the claim worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// CacheConfig controls caching of extraction candidates
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskDir   string        `yaml:"disk_dir,omitempty" mapstructure:"disk_dir"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Markdown bool `yaml:"markdown" mapstructure:"markdown"`
	DryRun   bool `yaml:"dry_run" mapstructure:"dry_run"`
	Verbose  bool `yaml:"verbose" mapstructure:"verbose"`
}

// LLMConfig configures the optional narrative summary
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, ollama, anthropic, "" (disabled)
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PublishConfig selects where gate decisions are announced
type PublishConfig struct {
	Sink       string   `yaml:"sink" mapstructure:"sink"` // "", log, kafka, redis, mqtt, dapr
	Brokers    []string `yaml:"brokers,omitempty" mapstructure:"brokers"`
	Topic      string   `yaml:"topic" mapstructure:"topic"`
	ClientID   string   `yaml:"client_id,omitempty" mapstructure:"client_id"`
	PubsubName string   `yaml:"pubsub_name,omitempty" mapstructure:"pubsub_name"`
}

// ServerConfig configures `factgate serve`
type ServerConfig struct {
	Addr           string   `yaml:"addr" mapstructure:"addr"`
	Schedule       string   `yaml:"schedule,omitempty" mapstructure:"schedule"` // cron expression for reconcile-all
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" mapstructure:"allowed_origins"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Workspace: "./workspace",
		Policy:    PolicyLatestRun,
		Provider: ProviderConfig{
			Name:  "workspace",
			Burst: 5,
		},
		Gate: DefaultGateThresholds(),
		DocumentPriority: []string{
			"claim_form",
			"policy_declaration",
			"police_report",
			"invoice",
			"repair_estimate",
			"medical_report",
			"adjuster_notes",
			"correspondence",
		},
		FactTypes: map[string]FactType{
			"policy_number": FactTypeString,
			"claim_number":  FactTypeString,
			"claimant_name": FactTypeString,
			"incident_date": FactTypeDate,
			"loss_amount":   FactTypeMoney,
			"vin":           FactTypeString,
		},
		Concurrency: ConcurrencyConfig{Workers: 4},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Output: OutputConfig{Markdown: false},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 800,
		},
		Publish: PublishConfig{Topic: "factgate.gate"},
		Server:  ServerConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info", Format: "auto", Output: "stderr"},
	}
}

// Validate rejects configuration that would make reconciliation meaningless
func (c *Config) Validate() error {
	if err := c.Gate.Validate(); err != nil {
		return fmt.Errorf("gate: %w", err)
	}
	switch c.Policy {
	case PolicyLatestRun, PolicyBestPerDoc:
	default:
		return fmt.Errorf("policy: unknown reconciliation policy %q (supported: %s)", c.Policy, PolicyLatestRun)
	}
	for name, ft := range c.FactTypes {
		switch ft {
		case FactTypeString, FactTypeMoney, FactTypeDate, FactTypeExact:
		default:
			return fmt.Errorf("fact_types: %s has unknown type %q", name, ft)
		}
	}
	seen := make(map[string]bool, len(c.DocumentPriority))
	for _, docType := range c.DocumentPriority {
		if seen[docType] {
			return fmt.Errorf("document_priority: %s listed twice", docType)
		}
		seen[docType] = true
	}
	return nil
}

// ClampWorkers bounds n to [1, MaxWorkers]
func ClampWorkers(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

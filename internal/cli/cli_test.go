package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/pipeline"
	"github.com/ppiankov/factgate/internal/provider"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	bindEnv(viper.GetViper())
	t.Cleanup(viper.Reset)
}

func writeClaim(t *testing.T, root, claimID string, facts map[string]any) {
	t.Helper()
	dir := filepath.Join(provider.ClaimDir(root, claimID), "extractions", "run-1")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	list := make([]map[string]any, 0, len(facts))
	for name, value := range facts {
		list = append(list, map[string]any{"name": name, "value": value})
	}
	data, err := json.Marshal(map[string]any{
		"document_id":       "form-1",
		"document_type":     "claim_form",
		"extraction_run_id": "run-1",
		"extracted_at":      "2024-03-01T09:00:00Z",
		"facts":             list,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "form-1.json"), data, 0o644))
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := loadConfig()
	require.NoError(t, err)
	want := model.DefaultConfig()
	assert.Equal(t, want.Workspace, cfg.Workspace)
	assert.Equal(t, want.Gate, cfg.Gate)
	assert.Equal(t, want.Cache.MemoryTTL, cfg.Cache.MemoryTTL)
	assert.Equal(t, want.FactTypes, cfg.FactTypes)
	assert.Equal(t, want.DocumentPriority, cfg.DocumentPriority)
}

func TestLoadConfig_Environment(t *testing.T) {
	resetViper(t)
	t.Setenv("FACTGATE_GATE_MAX_CONFLICTS", "7")
	t.Setenv("FACTGATE_CACHE_MEMORY_TTL", "90s")
	t.Setenv("FACTGATE_LLM_API_KEY", "secret")
	t.Setenv("FACTGATE_PROVIDER_DSN", "facts.db")
	t.Setenv("FACTGATE_PUBLISH_BROKERS", "a:9092,b:9092")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Gate.MaxConflicts)
	assert.Equal(t, 90*time.Second, cfg.Cache.MemoryTTL)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
	assert.Equal(t, "facts.db", cfg.Provider.DSN)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Publish.Brokers)
}

func TestLoadConfig_InvalidIsConfigError(t *testing.T) {
	resetViper(t)
	t.Setenv("FACTGATE_GATE_MIN_CONFIDENCE", "1.5")

	_, err := loadConfig()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
}

func TestApplyEnvKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")

	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "openai"
	applyEnvKeys(cfg)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)

	// An explicit key wins
	cfg.LLM.APIKey = "configured"
	applyEnvKeys(cfg)
	assert.Equal(t, "configured", cfg.LLM.APIKey)

	cfg = model.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	applyEnvKeys(cfg)
	assert.Equal(t, "http://ollama:11434", cfg.LLM.BaseURL)
}

func TestWriteDefaultConfig_RoundTrips(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), ".factgate", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))
	assert.Error(t, writeDefaultConfig(path), "existing file must not be overwritten")

	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig().Gate, cfg.Gate)
	assert.Equal(t, model.DefaultConfig().Server.Addr, cfg.Server.Addr)
}

func TestConfigFile_AddsFactType(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fact_types:\n  vin: exact\n"), 0o644))

	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, model.FactTypeExact, cfg.FactTypes["vin"])
	assert.Equal(t, model.FactTypeMoney, cfg.FactTypes["loss_amount"])
}

func TestCheckSelection(t *testing.T) {
	defer func() { claimsFile, reconcileAll = "", false }()

	assert.Error(t, checkSelection(nil))
	assert.NoError(t, checkSelection([]string{"CLM-1"}))

	reconcileAll = true
	assert.NoError(t, checkSelection(nil))
	err := checkSelection([]string{"CLM-1"})
	require.Error(t, err)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
}

func TestExitStatus(t *testing.T) {
	defer func() { failOnBlocking = false }()

	assert.NoError(t, exitStatus(pipeline.Tally{Passed: 2, Failed: 1}, nil))
	assert.Error(t, exitStatus(pipeline.Tally{Passed: 2, Errors: 1}, nil))
	assert.ErrorIs(t, exitStatus(pipeline.Tally{}, context.Canceled), context.Canceled)

	failOnBlocking = true
	assert.Error(t, exitStatus(pipeline.Tally{Passed: 2, Failed: 1}, nil))
}

func TestNewApp_ReconcilesWorkspace(t *testing.T) {
	root := t.TempDir()
	writeClaim(t, root, "CLM-1", map[string]any{
		"policy_number": "POL-1", "incident_date": "2024-02-28", "loss_amount": "1200.00",
	})

	cfg := model.DefaultConfig()
	cfg.Workspace = root
	cfg.Publish.Sink = "log"
	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.Close()

	reconcileAll = true
	defer func() { reconcileAll = false }()
	ids, err := selectClaims(context.Background(), nil, a.source)
	require.NoError(t, err)
	assert.Equal(t, []string{"CLM-1"}, ids)

	result := a.pipeline.ReconcileClaim(context.Background(), "CLM-1", pipeline.Options{})
	require.True(t, result.Success, "%v", result.Error)
	assert.Equal(t, model.GatePass, result.Report.Gate.Status)
	assert.FileExists(t, result.Persisted)

	metricsPath := filepath.Join(t.TempDir(), "factgate.prom")
	require.NoError(t, a.metrics.WriteTextfile(metricsPath))
	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `factgate_reconciliations_total{status="PASS"} 1`)
}

func TestNewApp_UnknownProvider(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Provider.Name = "s3"
	_, err := newApp(cfg)
	require.Error(t, err)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
}

func TestWriteSummaryTable(t *testing.T) {
	eval := model.ReconciliationRunEval{
		Summary: model.ReconciliationEvalSummary{TotalClaims: 2, Passed: 1, Failed: 1, PassRatePercent: 50},
		TopMissingFacts: []model.FactFrequency{{FactName: "loss_amount", Count: 1}},
		TopConflicts:    []model.FactFrequency{},
		Claims: []model.ReconciliationClaimResult{
			{ClaimID: "CLM-1", Status: model.GatePass, FactCount: 3},
			{ClaimID: "CLM-2", Status: model.GateFail, FactCount: 2, MissingCriticalFacts: []string{"loss_amount"}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeSummaryTable(&buf, eval))
	out := buf.String()
	assert.Contains(t, out, "Pass rate: 50.0%")
	assert.Contains(t, out, "Most missing critical facts:")
	assert.NotContains(t, out, "Most conflicting facts:")
	assert.Contains(t, out, "CLM-2")
	assert.Contains(t, out, "loss_amount")
}

func TestWriteSummaryTable_NoReports(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSummaryTable(&buf, model.ReconciliationRunEval{}))
	assert.Contains(t, buf.String(), "Claims: 0")
	assert.NotContains(t, buf.String(), "Claim ")
}

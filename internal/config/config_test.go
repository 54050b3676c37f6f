package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/ai"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/evaluator"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ssff.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, domain.AllKinds, cfg.EnabledKinds())
	assert.Equal(t, 120*time.Second, cfg.Orchestrator.RoundTimeout)
	assert.InDelta(t, 0.7, cfg.Aggregation.InvestThreshold, 1e-9)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
aggregation:
  weights:
    quantitative: 2
  invest_threshold: 0.8
orchestrator:
  round_timeout: 30s
  evaluators:
    product:
      enabled: false
    market:
      optional: true
      max_attempts: 2
      timeout: 10s
`)
	t.Setenv("SSFF_DB_PATH", filepath.Join(t.TempDir(), "test.db"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.InDelta(t, 0.8, cfg.Aggregation.InvestThreshold, 1e-9)
	assert.InDelta(t, 0.4, cfg.Aggregation.WatchThreshold, 1e-9)
	assert.InDelta(t, 2.0, cfg.Aggregation.Weight(domain.KindQuantitative), 1e-9)
	assert.InDelta(t, 1.0, cfg.Aggregation.Weight(domain.KindMarket), 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.RoundTimeout)
	assert.Equal(t, []domain.Kind{domain.KindMarket, domain.KindFounder, domain.KindQuantitative}, cfg.EnabledKinds())

	market := cfg.Orchestrator.Evaluators["market"].Policy()
	assert.True(t, market.Optional)
	assert.Equal(t, 2, market.MaxAttempts)
	assert.Equal(t, 10*time.Second, market.Timeout)
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":      "sk-test",
		"OPENAI_MODEL":        "gpt-test",
		"OPENAI_TEMPERATURE":  "0.5",
		"OPENAI_MAX_TOKENS":   "800",
		"DISABLE_AI":          "true",
		"PORT":                "9000",
		"SSFF_DB_PATH":        "/tmp/x.db",
		"SEARCH_PROVIDER":     "HTML",
		"CLASSIFIER_ENDPOINT": "http://model:8080",
		"ROUND_TIMEOUT":       "90s",
		"LOG_LEVEL":           "warn",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(key string) string { return env[key] }))

	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, "gpt-test", cfg.AI.Model)
	assert.InDelta(t, 0.5, cfg.AI.Temperature, 1e-9)
	assert.Equal(t, 800, cfg.AI.MaxTokens)
	assert.True(t, cfg.AI.Disabled)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, "html", cfg.Search.Provider)
	assert.Equal(t, "http://model:8080", cfg.Classifier.Endpoint)
	assert.Equal(t, 90*time.Second, cfg.Orchestrator.RoundTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvRejectsMalformedValues(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(key string) string {
		if key == "ROUND_TIMEOUT" {
			return "soon"
		}
		return ""
	})
	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Error(), "ROUND_TIMEOUT")
}

func TestValidateRejectsInconsistentSettings(t *testing.T) {
	disabled := false
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"no db path", func(c *Config) { c.Database.Path = " " }},
		{"unknown provider", func(c *Config) { c.Search.Provider = "bing" }},
		{"serper without key", func(c *Config) { c.Search.Provider = "serper" }},
		{"thresholds inverted", func(c *Config) { c.Aggregation.WatchThreshold = 0.9 }},
		{"unknown evaluator", func(c *Config) { c.Orchestrator.Evaluators["vibes"] = EvaluatorConfig{} }},
		{"too many attempts", func(c *Config) {
			c.Orchestrator.Evaluators["market"] = EvaluatorConfig{MaxAttempts: 5}
		}},
		{"quorum kind disabled", func(c *Config) {
			c.Orchestrator.Evaluators["quantitative"] = EvaluatorConfig{Enabled: &disabled}
		}},
		{"quorum unknown kind", func(c *Config) { c.Orchestrator.Quorum.RequiredKinds = []string{"oracle"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *domain.ConfigurationError
			require.Error(t, err)
			assert.True(t, errors.As(err, &cfgErr), "got %T", err)
		})
	}
}

func TestReasonerFallsBackToHeuristic(t *testing.T) {
	cfg := Default()
	cfg.AI.APIKey = ""
	reasoner, err := cfg.Reasoner()
	require.NoError(t, err)
	_, ok := reasoner.(*ai.Heuristic)
	assert.True(t, ok)

	cfg.AI.APIKey = "sk-test"
	cfg.AI.Disabled = true
	reasoner, err = cfg.Reasoner()
	require.NoError(t, err)
	_, ok = reasoner.(*ai.Heuristic)
	assert.True(t, ok)
}

func TestSearchSourceNone(t *testing.T) {
	cfg := Default()
	cfg.Search.Provider = "none"
	source, err := cfg.SearchSource()
	require.NoError(t, err)
	assert.Nil(t, source)
}

type comparablesStub struct {
	sector, exclude string
}

func (c *comparablesStub) Comparables(sector, excludeName string, limit int) ([]evaluator.Comparable, error) {
	c.sector, c.exclude = sector, excludeName
	return []evaluator.Comparable{{Name: "Prior", Sector: sector}}, nil
}

func TestOrchestratorRunsOffline(t *testing.T) {
	cfg := Default()
	cfg.Search.Provider = "none"
	cfg.AI.Disabled = true
	lookup := &comparablesStub{}

	orch, err := cfg.BuildOrchestrator(lookup, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AllKinds, orch.Kinds())

	report, err := orch.Run(context.Background(), domain.StartupProfile{
		Name:        "Ledgerly",
		Sector:      "fintech",
		Stage:       domain.StageSeed,
		Description: "Automated reconciliation for small business payments.",
		Metrics:     domain.Metrics{FundingRaised: 2_000_000, TeamSize: 12, PatentCount: 1},
		Founders:    []domain.Founder{{Name: "Ada", Background: "ex-Stripe engineer"}},
	})
	require.NoError(t, err)
	require.Len(t, report.Assessments, len(domain.AllKinds))
	for _, a := range report.Assessments {
		assert.Equal(t, domain.StatusOK, a.Status, "%s: %s", a.Kind, a.Rationale)
	}
	assert.True(t, report.Decision.Determined())
	assert.Equal(t, "fintech", lookup.sector)
	assert.Equal(t, "Ledgerly", lookup.exclude)
}

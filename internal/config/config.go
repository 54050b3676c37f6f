package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/orchestrator"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/scoring"
)

const (
	configPathEnv = "SSFF_CONFIG"

	searchProviderSerper = "serper"
	searchProviderHTML   = "html"
	searchProviderAuto   = "auto"
	searchProviderNone   = "none"
)

// Config holds every setting of the service and the CLI. It is built once by Load and
// passed by value afterwards.
type Config struct {
	LogLevel     string             `yaml:"log_level"`
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	AI           AIConfig           `yaml:"ai"`
	Search       SearchConfig       `yaml:"search"`
	Classifier   ClassifierConfig   `yaml:"classifier"`
	Aggregation  scoring.Config     `yaml:"aggregation"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
}

// ServerConfig drives the HTTP API.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig locates the SQLite report store.
type DatabaseConfig struct {
	Path   string `yaml:"path"`
	Silent bool   `yaml:"silent"`
}

// AIConfig configures the OpenAI-compatible reasoner.
type AIConfig struct {
	Disabled    bool          `yaml:"disabled"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SearchConfig selects the external document source.
type SearchConfig struct {
	// Provider is one of auto, serper, html or none. auto uses the JSON API when a key is
	// present and falls back to HTML scraping.
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	HTMLURL  string        `yaml:"html_url"`
	Results  int           `yaml:"results"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ClassifierConfig selects the predictive model. Endpoint wins over Artifact; with
// neither the bundled model is used.
type ClassifierConfig struct {
	Artifact   string  `yaml:"artifact"`
	Endpoint   string  `yaml:"endpoint"`
	APIKey     string  `yaml:"api_key"`
	Confidence float64 `yaml:"confidence"`
}

// EvaluatorConfig is the per-kind switch and policy.
type EvaluatorConfig struct {
	Enabled     *bool         `yaml:"enabled"`
	Optional    bool          `yaml:"optional"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

// IsEnabled treats a missing switch as on.
func (e EvaluatorConfig) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Policy converts the entry into an orchestrator policy.
func (e EvaluatorConfig) Policy() orchestrator.Policy {
	return orchestrator.Policy{
		Timeout:     e.Timeout,
		MaxAttempts: e.MaxAttempts,
		Backoff:     e.Backoff,
		Optional:    e.Optional,
	}
}

// QuorumConfig is the YAML form of scoring.Quorum.
type QuorumConfig struct {
	RequiredKinds  []string `yaml:"required_kinds"`
	MinQualitative int      `yaml:"min_qualitative"`
}

// OrchestratorConfig drives rounds.
type OrchestratorConfig struct {
	RoundTimeout    time.Duration              `yaml:"round_timeout"`
	MaxConcurrency  int                        `yaml:"max_concurrency"`
	DocumentsPerKey int                        `yaml:"documents_per_query"`
	Comparables     int                        `yaml:"comparables"`
	Quorum          QuorumConfig               `yaml:"quorum"`
	Evaluators      map[string]EvaluatorConfig `yaml:"evaluators"`
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() Config {
	policy := orchestrator.DefaultPolicy()
	evaluators := make(map[string]EvaluatorConfig, len(domain.AllKinds))
	for _, kind := range domain.AllKinds {
		evaluators[string(kind)] = EvaluatorConfig{
			Timeout:     policy.Timeout,
			MaxAttempts: policy.MaxAttempts,
			Backoff:     policy.Backoff,
		}
	}
	quorum := scoring.DefaultQuorum()
	required := make([]string, 0, len(quorum.RequiredKinds))
	for _, kind := range quorum.RequiredKinds {
		required = append(required, string(kind))
	}
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Port: "2000",
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			},
		},
		Database: DatabaseConfig{Path: "data/ssff.db"},
		AI: AIConfig{
			Model:       "gpt-4.1-mini",
			BaseURL:     "https://api.openai.com/v1",
			Temperature: 0.2,
			MaxTokens:   1200,
			Timeout:     60 * time.Second,
		},
		Search: SearchConfig{
			Provider: searchProviderAuto,
			Results:  5,
			Timeout:  20 * time.Second,
			CacheTTL: 12 * time.Hour,
		},
		Classifier:  ClassifierConfig{Confidence: 1},
		Aggregation: scoring.DefaultConfig(),
		Orchestrator: OrchestratorConfig{
			RoundTimeout:    orchestrator.DefaultOptions().RoundTimeout,
			DocumentsPerKey: 3,
			Comparables:     5,
			Quorum: QuorumConfig{
				RequiredKinds:  required,
				MinQualitative: quorum.MinQualitative,
			},
			Evaluators: evaluators,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or $SSFF_CONFIG),
// then .env and process environment overrides. The result is validated.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("load .env file")
	}

	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = os.Getenv(configPathEnv)
	}
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	lookup := func(key string) (string, bool) {
		v := strings.TrimSpace(getenv(key))
		return v, v != ""
	}

	if v, ok := lookup("OPENAI_API_KEY"); ok {
		c.AI.APIKey = v
	}
	if v, ok := lookup("OPENAI_MODEL"); ok {
		c.AI.Model = v
	}
	if v, ok := lookup("OPENAI_BASE_URL"); ok {
		c.AI.BaseURL = v
	}
	if v, ok := lookup("OPENAI_TEMPERATURE"); ok {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("OPENAI_TEMPERATURE", err)
		}
		c.AI.Temperature = parsed
	}
	if v, ok := lookup("OPENAI_MAX_TOKENS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return envError("OPENAI_MAX_TOKENS", err)
		}
		c.AI.MaxTokens = parsed
	}
	if v, ok := lookup("DISABLE_AI"); ok {
		c.AI.Disabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v, ok := lookup("PORT"); ok {
		c.Server.Port = v
	}
	if v, ok := lookup("SSFF_DB_PATH"); ok {
		c.Database.Path = v
	}
	if v, ok := lookup("SEARCH_API_KEY"); ok {
		c.Search.APIKey = v
	}
	if v, ok := lookup("SEARCH_PROVIDER"); ok {
		c.Search.Provider = strings.ToLower(v)
	}
	if v, ok := lookup("CLASSIFIER_ARTIFACT"); ok {
		c.Classifier.Artifact = v
	}
	if v, ok := lookup("CLASSIFIER_ENDPOINT"); ok {
		c.Classifier.Endpoint = v
	}
	if v, ok := lookup("ROUND_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("ROUND_TIMEOUT", err)
		}
		c.Orchestrator.RoundTimeout = d
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	return nil
}

func envError(key string, err error) error {
	return &domain.ConfigurationError{Reason: "environment variable " + key, Err: err}
}

// Validate reports inconsistent settings as a ConfigurationError.
func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return &domain.ConfigurationError{Reason: "log_level", Err: err}
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return domain.NewConfigurationError("database.path is required")
	}
	switch c.Search.Provider {
	case searchProviderAuto, searchProviderSerper, searchProviderHTML, searchProviderNone:
	default:
		return domain.NewConfigurationError("search.provider %q must be one of auto, serper, html, none", c.Search.Provider)
	}
	if c.Search.Provider == searchProviderSerper && strings.TrimSpace(c.Search.APIKey) == "" {
		return domain.NewConfigurationError("search.provider serper needs an api key")
	}
	if c.Classifier.Confidence < 0 || c.Classifier.Confidence > 1 {
		return domain.NewConfigurationError("classifier.confidence %.2f must be in [0,1]", c.Classifier.Confidence)
	}
	if err := c.Aggregation.Validate(); err != nil {
		return err
	}
	if c.Orchestrator.RoundTimeout < 0 {
		return domain.NewConfigurationError("orchestrator.round_timeout must not be negative")
	}
	enabled := 0
	for name, entry := range c.Orchestrator.Evaluators {
		kind, err := domain.ParseKind(name)
		if err != nil {
			return &domain.ConfigurationError{Reason: "orchestrator.evaluators", Err: err}
		}
		if err := entry.Policy().Validate(kind); err != nil {
			return err
		}
		if entry.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return domain.NewConfigurationError("no evaluators enabled")
	}
	quorum, err := c.Quorum()
	if err != nil {
		return err
	}
	return quorum.Validate(c.EnabledKinds())
}

// EnabledKinds lists the enabled evaluator kinds in canonical order.
func (c Config) EnabledKinds() []domain.Kind {
	var kinds []domain.Kind
	for _, kind := range domain.AllKinds {
		entry, ok := c.Orchestrator.Evaluators[string(kind)]
		if ok && entry.IsEnabled() {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Quorum parses the configured quorum.
func (c Config) Quorum() (scoring.Quorum, error) {
	q := scoring.Quorum{MinQualitative: c.Orchestrator.Quorum.MinQualitative}
	for _, name := range c.Orchestrator.Quorum.RequiredKinds {
		kind, err := domain.ParseKind(name)
		if err != nil {
			return scoring.Quorum{}, &domain.ConfigurationError{Reason: "orchestrator.quorum", Err: err}
		}
		q.RequiredKinds = append(q.RequiredKinds, kind)
	}
	return q, nil
}

// Level returns the parsed log level, defaulting to info.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Summary is a redacted view safe to expose over the API.
func (c Config) Summary() map[string]any {
	kinds := c.EnabledKinds()
	names := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return map[string]any{
		"ai_enabled":          !c.AI.Disabled && c.AI.APIKey != "",
		"ai_model":            c.AI.Model,
		"search_provider":     c.Search.Provider,
		"classifier_remote":   c.Classifier.Endpoint != "",
		"evaluators":          names,
		"round_timeout":       c.Orchestrator.RoundTimeout.String(),
		"aggregation":         c.Aggregation,
		"quorum_required":     c.Orchestrator.Quorum.RequiredKinds,
		"quorum_qualitative":  c.Orchestrator.Quorum.MinQualitative,
		"documents_per_query": c.Orchestrator.DocumentsPerKey,
	}
}

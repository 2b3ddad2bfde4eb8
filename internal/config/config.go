package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the trialmatch configuration shared by the API server and the CLI.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Search     SearchConfig     `yaml:"search"`
	LLM        LLMConfig        `yaml:"llm"`
	Cache      CacheConfig      `yaml:"cache"`
	Criteria   CriteriaConfig   `yaml:"criteria"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// SearchConfig holds trial index settings. Boost maps are keyed by field name;
// missing fields keep their default weight.
type SearchConfig struct {
	Index           string             `yaml:"index"`
	PrimaryBoosts   map[string]float64 `yaml:"primary_boosts"`
	SecondaryBoosts map[string]float64 `yaml:"secondary_boosts"`
}

// LLMConfig selects the model provider.
type LLMConfig struct {
	Provider    string       `yaml:"provider"` // openai (default), anthropic
	APIKey      string       `yaml:"api_key"`
	BaseURL     string       `yaml:"base_url"`
	Model       string       `yaml:"model"`
	Temperature float64      `yaml:"temperature"`
	MaxTokens   int          `yaml:"max_tokens"`
	MaxRetries  int          `yaml:"max_retries"`
	TimeoutSec  int          `yaml:"timeout_sec"`
	Budget      BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit      int64   `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit    int64   `yaml:"monthly_token_limit"` // 0 = unlimited
	CostPerMillionTokens float64 `yaml:"cost_per_million_tokens"`
	Action               string  `yaml:"action"` // "reject" | "warn" (default)
}

// Enabled reports whether any limit is set.
func (b BudgetConfig) Enabled() bool {
	return b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0
}

// CacheConfig holds term cache settings.
type CacheConfig struct {
	Enabled             *bool  `yaml:"enabled"`
	Backend             string `yaml:"backend"` // file (default), redis, badger
	Dir                 string `yaml:"dir"`
	MaxAgeDays          int    `yaml:"max_age_days"`
	EnrichmentBatchSize int    `yaml:"enrichment_batch_size"`
}

// IsEnabled reports whether the term cache is on. Unset means on.
func (c CacheConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// CriteriaConfig points at the relational store with eligibility criteria.
// An empty DSN disables criterion matching.
type CriteriaConfig struct {
	Driver string `yaml:"driver"` // sqlite (default), pgx
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

// PipelineConfig holds per-run defaults. Requests may override them.
type PipelineConfig struct {
	MaxTrials           int    `yaml:"max_trials"`
	SearchSize          int    `yaml:"search_size"`
	SkipMasking         bool   `yaml:"skip_masking"`
	UseEnrichedKeywords *bool  `yaml:"use_enriched_keywords"`
	EmptyTermsPolicy    string `yaml:"empty_terms_policy"` // match_all (default), no_results
	MatchCriteria       bool   `yaml:"match_criteria"`
	ClassificationMode  string `yaml:"classification_mode"` // individual (default), whole
	MaxCriteriaPerTrial int    `yaml:"max_criteria_per_trial"`
}

// EvaluationConfig holds defaults for the eval command.
type EvaluationConfig struct {
	K       int `yaml:"k"`
	Workers int `yaml:"workers"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first; existing variables win.
func Load(env string) (Config, error) {
	_ = godotenv.Load()
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	// a match run makes several sequential model calls
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if len(c.Database.Addrs) == 0 {
		c.Database.Addrs = []string{"localhost:6379"}
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Search.Index == "" {
		c.Search.Index = "trials"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o"
		if c.LLM.Provider == "anthropic" {
			c.LLM.Model = "claude-sonnet-4-5"
		}
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 60
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "file"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "cache"
	}
	if c.Cache.MaxAgeDays <= 0 {
		c.Cache.MaxAgeDays = 30
	}
	if c.Criteria.Driver == "" {
		c.Criteria.Driver = "sqlite"
	}
	if c.Pipeline.MaxTrials <= 0 {
		c.Pipeline.MaxTrials = 10
	}
	if c.Pipeline.SearchSize <= 0 {
		c.Pipeline.SearchSize = 20
	}
	if c.Pipeline.EmptyTermsPolicy == "" {
		c.Pipeline.EmptyTermsPolicy = "match_all"
	}
	if c.Pipeline.ClassificationMode == "" {
		c.Pipeline.ClassificationMode = "individual"
	}
	if c.Pipeline.MaxCriteriaPerTrial <= 0 {
		c.Pipeline.MaxCriteriaPerTrial = 10
	}
	if c.Evaluation.K <= 0 {
		c.Evaluation.K = 20
	}
	if c.Evaluation.Workers <= 0 {
		c.Evaluation.Workers = 4
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be \"openai\" or \"anthropic\", got %q", c.LLM.Provider)
	}
	switch c.LLM.Budget.Action {
	case "", "warn", "reject":
	default:
		return fmt.Errorf("llm.budget.action must be \"warn\" or \"reject\", got %q", c.LLM.Budget.Action)
	}
	switch c.Cache.Backend {
	case "file", "redis", "badger":
	default:
		return fmt.Errorf("cache.backend must be file, redis or badger, got %q", c.Cache.Backend)
	}
	if c.Cache.EnrichmentBatchSize < 0 {
		return fmt.Errorf("cache.enrichment_batch_size must not be negative")
	}
	switch c.Criteria.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("criteria.driver must be \"sqlite\" or \"pgx\", got %q", c.Criteria.Driver)
	}
	if c.Pipeline.MatchCriteria && c.Criteria.DSN == "" {
		return fmt.Errorf("pipeline.match_criteria requires criteria.dsn")
	}
	for name, set := range map[string]map[string]float64{
		"primary_boosts":   c.Search.PrimaryBoosts,
		"secondary_boosts": c.Search.SecondaryBoosts,
	} {
		for field, w := range set {
			if w <= 0 {
				return fmt.Errorf("search.%s.%s must be positive, got %g", name, field, w)
			}
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

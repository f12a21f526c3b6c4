// Package config loads and validates apiconform's YAML configuration,
// generalized from the teacher's internal/config.Config (environment,
// test execution, reporting sections) to the conformance-tester domain:
// the service under test, state tracking, synthesis, run, and reporting
// knobs spec.md §4.4 and §6 describe, plus the ambient logging and
// advisor sections the teacher's own config never needed.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the whole apiconform runtime configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	State     StateConfig     `yaml:"state"`
	Run       RunConfig       `yaml:"run"`
	Reporting ReportingConfig `yaml:"reporting"`
	Logging   LoggingConfig   `yaml:"logging"`
	Advisor   AdvisorConfig   `yaml:"advisor"`
}

// ServiceConfig describes the service under test.
type ServiceConfig struct {
	BaseURL       string     `yaml:"base_url"`
	SwaggerPath   string     `yaml:"swagger_path"`
	Auth          AuthConfig `yaml:"auth"`
	TimeoutSecs   int        `yaml:"timeout_seconds"`
	RateLimitRPS  float64    `yaml:"rate_limit_rps"`
}

// AuthConfig describes how to authenticate to the service under test.
type AuthConfig struct {
	Type  string `yaml:"type"` // "none", "bearer", "jwt"
	Token string `yaml:"token"`
	// JWT signing inputs, used when Type == "jwt" to mint a fresh bearer
	// token for every request sent instead of using a static Token.
	JWTSecret  string `yaml:"jwt_secret"`
	JWTSubject string `yaml:"jwt_subject"`
}

// StateConfig mirrors spec.md §4.4's StateSampler configuration.
type StateConfig struct {
	TrackEntityCounts    bool     `yaml:"track_entity_counts"`
	TrackEntityChecksums bool     `yaml:"track_entity_checksums"`
	IncludeOnly          []string `yaml:"include_only"`
	Exclude              []string `yaml:"exclude"`
	MaxParallelism       int      `yaml:"max_parallelism"`
	SampleTimeoutSecs    int      `yaml:"sample_timeout_seconds"`
	Driver               string   `yaml:"driver"` // "postgres", "mysql", "sqlserver", "sqlite"
	DSN                  string   `yaml:"dsn"`
}

// RunConfig controls orchestrator scheduling.
type RunConfig struct {
	MaxPerEndpoint     int      `yaml:"max_per_endpoint"`
	Seed               int64    `yaml:"seed"`
	ParallelEndpoints  bool     `yaml:"parallel_endpoints"`
	MaxEndpointWorkers int      `yaml:"max_endpoint_workers"`
	ExcludeEndpoints   []string `yaml:"exclude_endpoints"`
	IncludeOnly        []string `yaml:"include_only_endpoints"`
	ExcludedProperties []string `yaml:"excluded_properties"`
}

// ReportingConfig controls report output.
type ReportingConfig struct {
	OutputPath string `yaml:"output_path"`
	Title      string `yaml:"title"`
}

// LoggingConfig controls internal/logging's zap construction.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// AdvisorConfig controls the optional LLM-backed rule-suggestion advisor.
type AdvisorConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// Load reads path, parses it as YAML, fills defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("apiconform/config: read %s: %w", path, err)
	}
	return FromYAML(data)
}

// FromYAML parses raw YAML bytes into a defaulted, validated Config.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("apiconform/config: parse: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults mirrors the teacher's LoadConfig's post-unmarshal
// default-filling style (zero-value fields get the documented default).
func applyDefaults(cfg *Config) {
	if cfg.Service.SwaggerPath == "" {
		cfg.Service.SwaggerPath = "/swagger/v1/swagger.json"
	}
	if cfg.Service.TimeoutSecs == 0 {
		cfg.Service.TimeoutSecs = 30
	}
	if cfg.Service.Auth.Type == "" {
		cfg.Service.Auth.Type = "none"
	}
	if token := os.Getenv("APICONFORM_AUTH_TOKEN"); token != "" {
		cfg.Service.Auth.Token = token
	}
	if cfg.State.MaxParallelism == 0 {
		cfg.State.MaxParallelism = 8
	}
	if cfg.State.SampleTimeoutSecs == 0 {
		cfg.State.SampleTimeoutSecs = 30
	}
	if !cfg.State.TrackEntityCounts && !cfg.State.TrackEntityChecksums {
		cfg.State.TrackEntityCounts = true
	}
	if cfg.Run.MaxPerEndpoint == 0 {
		cfg.Run.MaxPerEndpoint = 3
	}
	if cfg.Run.MaxEndpointWorkers == 0 {
		cfg.Run.MaxEndpointWorkers = 4
	}
	if cfg.Reporting.OutputPath == "" {
		cfg.Reporting.OutputPath = "apiconform-report.json"
	}
	if cfg.Reporting.Title == "" {
		cfg.Reporting.Title = "apiconform conformance report"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Advisor.APIKey == "" {
		cfg.Advisor.APIKey = key
	}
	if cfg.Advisor.Model == "" {
		cfg.Advisor.Model = "gpt-4o-mini"
	}
}

// Validate ensures the config meets the structural requirements the rest
// of the module depends on.
func (c *Config) Validate() error {
	if c.Service.BaseURL == "" {
		return fmt.Errorf("apiconform/config: service.base_url is required")
	}
	switch c.Service.Auth.Type {
	case "none", "bearer", "jwt":
	default:
		return fmt.Errorf("apiconform/config: service.auth.type %q is not one of none, bearer, jwt", c.Service.Auth.Type)
	}
	if c.Service.Auth.Type == "jwt" && c.Service.Auth.JWTSecret == "" {
		return fmt.Errorf("apiconform/config: service.auth.jwt_secret is required when auth.type is jwt")
	}
	if c.State.MaxParallelism < 0 {
		return fmt.Errorf("apiconform/config: state.max_parallelism must be >= 0")
	}
	if c.Run.MaxPerEndpoint <= 0 {
		return fmt.Errorf("apiconform/config: run.max_per_endpoint must be > 0")
	}
	if c.Advisor.Enabled && c.Advisor.APIKey == "" {
		return fmt.Errorf("apiconform/config: advisor.enabled requires advisor.api_key (or OPENAI_API_KEY)")
	}
	return nil
}

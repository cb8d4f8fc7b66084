package plexapm

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/plexapm/internal/aggregate"
	"github.com/plexsphere/plexapm/internal/api"
	"github.com/plexsphere/plexapm/internal/dispatch"
	"github.com/plexsphere/plexapm/internal/filter"
	"github.com/plexsphere/plexapm/internal/measure"
	"github.com/plexsphere/plexapm/internal/recent"
)

const (
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultExplainSQLThreshold is the query duration above which SELECT
	// statements get an execution plan attached.
	DefaultExplainSQLThreshold = 500 * time.Millisecond
)

// Environment variables that override file configuration.
const (
	EnvAPIURL  = "PLEXAPM_API_URL"
	EnvAppID   = "PLEXAPM_APP_ID"
	EnvAPIKey  = "PLEXAPM_API_KEY"
	EnvAppRoot = "PLEXAPM_APP_ROOT"
)

// Config is the client configuration. It is populated from a YAML file via
// ParseConfig or built directly in code.
type Config struct {
	// APIURL is the collector base URL.
	// Default: "https://www.plexapm.com/api"
	APIURL string `yaml:"api_url"`

	// AppID and APIKey authenticate the application.
	AppID  string `yaml:"app_id"`
	APIKey string `yaml:"api_key"`

	// CAFile replaces the system roots when verifying the collector.
	CAFile string `yaml:"ca_file"`

	// ConnectTimeout bounds connection establishment. Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// RequestTimeout bounds one transmission. Default: 0 (no limit).
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// AppRoot is the application's source root. Code locations under it are
	// preferred and reported relative to it.
	AppRoot string `yaml:"app_root"`

	// IgnoredExceptions lists exception classes that are never reported.
	IgnoredExceptions []string `yaml:"ignored_exceptions"`

	// SensitiveParameters lists key fragments whose values are redacted.
	// Default: password, passwd, secret, token, api_key, authorization, cookie.
	SensitiveParameters []string `yaml:"sensitive_parameters"`

	// MeaninglessQueries add to runtime but not to call counts.
	// Default: BEGIN, COMMIT.
	MeaninglessQueries []string `yaml:"meaningless_queries"`

	// ExplainSQLThreshold is the duration above which SELECT statements get
	// an execution plan. Default: 500ms.
	ExplainSQLThreshold time.Duration `yaml:"explain_sql_threshold"`

	// TopN bounds the queries and views kept per sample. Default: 25.
	TopN int `yaml:"top_n"`

	// RecentSamples is the size of the recent requests ring. Default: 100.
	RecentSamples int `yaml:"recent_samples"`

	// MaxConcurrentSends bounds simultaneous transmissions. Default: 8.
	MaxConcurrentSends int64 `yaml:"max_concurrent_sends"`

	// LogLevel is one of "debug", "info", "warn", "error". Default: "info".
	LogLevel string `yaml:"log_level"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.APIURL == "" {
		c.APIURL = api.DefaultBaseURL
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = api.DefaultConnectTimeout
	}
	if c.SensitiveParameters == nil {
		c.SensitiveParameters = append([]string(nil), filter.DefaultSensitiveNames...)
	}
	if c.MeaninglessQueries == nil {
		c.MeaninglessQueries = append([]string(nil), aggregate.DefaultMeaninglessCommands...)
	}
	if c.ExplainSQLThreshold == 0 {
		c.ExplainSQLThreshold = DefaultExplainSQLThreshold
	}
	if c.TopN == 0 {
		c.TopN = aggregate.DefaultTopN
	}
	if c.RecentSamples == 0 {
		c.RecentSamples = recent.DefaultCapacity
	}
	if c.MaxConcurrentSends == 0 {
		c.MaxConcurrentSends = dispatch.DefaultMaxConcurrent
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// ApplyEnv overrides fields from the PLEXAPM_* environment variables.
// lookup is typically os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for name, field := range map[string]*string{
		EnvAPIURL:  &c.APIURL,
		EnvAppID:   &c.AppID,
		EnvAPIKey:  &c.APIKey,
		EnvAppRoot: &c.AppRoot,
	} {
		if v, ok := lookup(name); ok && v != "" {
			*field = v
		}
	}
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("plexapm: config: invalid log_level %q (must be debug, info, warn or error)", c.LogLevel)
	}
	if c.ExplainSQLThreshold < 0 {
		return errors.New("plexapm: config: explain_sql_threshold must not be negative")
	}
	if c.RecentSamples < 0 {
		return errors.New("plexapm: config: recent_samples must not be negative")
	}
	apiCfg := c.apiConfig()
	if err := apiCfg.Validate(); err != nil {
		return err
	}
	dispatchCfg := c.dispatchConfig()
	if err := dispatchCfg.Validate(); err != nil {
		return err
	}
	measureCfg := c.measureConfig()
	return measureCfg.Validate()
}

func (c *Config) apiConfig() api.Config {
	return api.Config{
		BaseURL:        c.APIURL,
		AppID:          c.AppID,
		APIKey:         c.APIKey,
		CAFile:         c.CAFile,
		ConnectTimeout: c.ConnectTimeout,
		RequestTimeout: c.RequestTimeout,
	}
}

func (c *Config) dispatchConfig() dispatch.Config {
	return dispatch.Config{MaxConcurrent: c.MaxConcurrentSends}
}

func (c *Config) measureConfig() measure.Config {
	return measure.Config{
		AppRoot:            c.AppRoot,
		TopN:               c.TopN,
		MeaninglessQueries: c.MeaninglessQueries,
	}
}

// ParseConfig reads a YAML configuration file, applies environment
// overrides and defaults, and validates the result.
func ParseConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plexapm: config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("plexapm: config: parse %s: %w", path, err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ABOUTME: Configuration loading and parsing for vaultgate
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxRefreshTTL is the hard upper bound for refresh token lifetime.
// Configured values above this are rejected at load time, and the token
// codec enforces the same bound again at issuance.
const MaxRefreshTTL = 3 * time.Hour

// Config represents the complete vaultgate configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	RequestTimeout    time.Duration `yaml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds the credential pepper, the per-scope token secrets,
// and the token lifetimes. Each token scope is signed with its own secret
// so a token issued for one stage of the login flow cannot be presented
// at another stage.
type AuthConfig struct {
	Pepper string `yaml:"pepper"`

	ChallengeSecret string `yaml:"challenge_secret"`
	SessionSecret   string `yaml:"session_secret"`
	AccessSecret    string `yaml:"access_secret"`
	RefreshSecret   string `yaml:"refresh_secret"`
	EmailSecret     string `yaml:"email_secret"`

	ChallengeTTL time.Duration `yaml:"-"`
	SessionTTL   time.Duration `yaml:"-"`
	AccessTTL    time.Duration `yaml:"-"`
	RefreshTTL   time.Duration `yaml:"-"`
	EmailTTL     time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ChallengeTTLRaw string `yaml:"challenge_ttl"`
	SessionTTLRaw   string `yaml:"session_ttl"`
	AccessTTLRaw    string `yaml:"access_ttl"`
	RefreshTTLRaw   string `yaml:"refresh_ttl"`
	EmailTTLRaw     string `yaml:"email_ttl"`
}

// SMTPConfig holds outgoing mail configuration for verification emails
type SMTPConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Server      string `yaml:"server"`
	Port        int    `yaml:"port"`
	SenderEmail string `yaml:"sender_email"`
	SenderName  string `yaml:"sender_name"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	// VerifyURL is the deep link base the verification token is appended to
	VerifyURL string `yaml:"verify_url"`
}

// SweepConfig holds the optional hygiene sweep configuration
type SweepConfig struct {
	Enabled bool `yaml:"enabled"`

	Interval       time.Duration `yaml:"-"`
	TrashRetention time.Duration `yaml:"-"`

	IntervalRaw       string `yaml:"interval"`
	TrashRetentionRaw string `yaml:"trash_retention"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in zero-valued fields that have sensible defaults.
func (c *Config) applyDefaults() {
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 10 * time.Second
	}
	if c.Auth.ChallengeTTL == 0 {
		c.Auth.ChallengeTTL = 2 * time.Minute
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 2 * time.Minute
	}
	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = 3 * time.Minute
	}
	if c.Auth.RefreshTTL == 0 {
		c.Auth.RefreshTTL = MaxRefreshTTL
	}
	if c.Auth.EmailTTL == 0 {
		c.Auth.EmailTTL = 5 * time.Minute
	}
	if c.Sweep.Interval == 0 {
		c.Sweep.Interval = time.Hour
	}
	if c.Sweep.TrashRetention == 0 {
		c.Sweep.TrashRetention = 30 * 24 * time.Hour
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 465
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.Pepper == "" {
		return fmt.Errorf("auth.pepper is required")
	}

	secrets := []struct {
		name  string
		value string
	}{
		{"auth.challenge_secret", c.Auth.ChallengeSecret},
		{"auth.session_secret", c.Auth.SessionSecret},
		{"auth.access_secret", c.Auth.AccessSecret},
		{"auth.refresh_secret", c.Auth.RefreshSecret},
		{"auth.email_secret", c.Auth.EmailSecret},
	}
	seen := make(map[string]string, len(secrets))
	for _, s := range secrets {
		if s.value == "" {
			return fmt.Errorf("%s is required", s.name)
		}
		if prior, ok := seen[s.value]; ok {
			return fmt.Errorf("%s must differ from %s: token scopes require disjoint secrets", s.name, prior)
		}
		seen[s.value] = s.name
	}

	if c.Auth.RefreshTTL > MaxRefreshTTL {
		return fmt.Errorf("auth.refresh_ttl %v exceeds maximum %v", c.Auth.RefreshTTL, MaxRefreshTTL)
	}

	if c.SMTP.Enabled {
		if c.SMTP.Server == "" {
			return fmt.Errorf("smtp.server is required when smtp is enabled")
		}
		if c.SMTP.SenderEmail == "" {
			return fmt.Errorf("smtp.sender_email is required when smtp is enabled")
		}
		if c.SMTP.VerifyURL == "" {
			return fmt.Errorf("smtp.verify_url is required when smtp is enabled")
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{cfg.Server.RequestTimeoutRaw, &cfg.Server.RequestTimeout, "request_timeout"},
		{cfg.Auth.ChallengeTTLRaw, &cfg.Auth.ChallengeTTL, "challenge_ttl"},
		{cfg.Auth.SessionTTLRaw, &cfg.Auth.SessionTTL, "session_ttl"},
		{cfg.Auth.AccessTTLRaw, &cfg.Auth.AccessTTL, "access_ttl"},
		{cfg.Auth.RefreshTTLRaw, &cfg.Auth.RefreshTTL, "refresh_ttl"},
		{cfg.Auth.EmailTTLRaw, &cfg.Auth.EmailTTL, "email_ttl"},
		{cfg.Sweep.IntervalRaw, &cfg.Sweep.Interval, "sweep.interval"},
		{cfg.Sweep.TrashRetentionRaw, &cfg.Sweep.TrashRetention, "sweep.trash_retention"},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

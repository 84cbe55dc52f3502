// ABOUTME: Configuration loading and parsing for pantry-auth
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete pantry-auth configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	WebAuthn    WebAuthnConfig    `yaml:"webauthn"`
	Session     SessionConfig     `yaml:"session"`
	Enroll      EnrollConfig      `yaml:"enroll"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WebAuthnConfig holds relying-party configuration for passkey logins.
// A single origin is supported; assertions from any other origin are rejected.
type WebAuthnConfig struct {
	RPID          string `yaml:"rp_id"`
	RPOrigin      string `yaml:"rp_origin"`
	RPDisplayName string `yaml:"rp_display_name"`
}

// SessionConfig holds session cookie and JWT signing configuration
type SessionConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	CookieName string `yaml:"cookie_name"`

	TTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TTLRaw string `yaml:"ttl"`
}

// EnrollConfig guards the administrative credential enrollment endpoint.
// TokenHash is a bcrypt hash of the bearer token enrollment callers present.
type EnrollConfig struct {
	TokenHash string `yaml:"token_hash"`
}

// MaintenanceConfig holds the maintenance-mode flag.
// When File is set, the flag is also considered raised while that file exists,
// so operators can toggle maintenance without a restart.
type MaintenanceConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
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

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.WebAuthn.RPID == "" {
		return fmt.Errorf("webauthn.rp_id is required")
	}
	if c.WebAuthn.RPOrigin == "" {
		return fmt.Errorf("webauthn.rp_origin is required")
	}

	if c.Session.JWTSecret == "" {
		return fmt.Errorf("session.jwt_secret is required")
	}

	return nil
}

// MaintenanceActive reports whether maintenance mode is currently raised.
func (c *Config) MaintenanceActive() bool {
	if c.Maintenance.Enabled {
		return true
	}
	if c.Maintenance.File == "" {
		return false
	}
	_, err := os.Stat(c.Maintenance.File)
	return err == nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Session.TTLRaw != "" {
		cfg.Session.TTL, err = time.ParseDuration(cfg.Session.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session ttl %q: %w", cfg.Session.TTLRaw, err)
		}
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 7 * 24 * time.Hour
	}

	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "pantry_session"
	}

	return nil
}

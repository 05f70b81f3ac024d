// Package config is ZETA's YAML configuration loader, adapted from the
// teacher's config package: same LoadFromFile/SaveToFile/setDefaults
// shape and gopkg.in/yaml.v3 dependency, restructured from SAGE's
// blockchain/DID/keystore sections to ZETA's server/database/crypto
// sections.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is ZETA's top-level configuration structure.
type Config struct {
	Environment string          `yaml:"environment"`
	Server      *ServerConfig   `yaml:"server"`
	Database    *DatabaseConfig `yaml:"database"`
	NonceStore  *NonceConfig    `yaml:"nonce_store"`
	Crypto      *CryptoConfig   `yaml:"crypto"`
	Logging     *LoggingConfig  `yaml:"logging"`
	Metrics     *MetricsConfig  `yaml:"metrics"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

// DatabaseConfig describes the Postgres connection.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	MinConns int32  `yaml:"min_conns"`
	MaxConns int32  `yaml:"max_conns"`
}

// NonceConfig selects and tunes the replay-defense backend.
type NonceConfig struct {
	// Backend is "memory" or "postgres".
	Backend         string        `yaml:"backend"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// CryptoConfig controls server keypair material.
type CryptoConfig struct {
	PrivateKeyPath string `yaml:"private_key_path"`
	KeyBits        int    `yaml:"key_bits"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig holds Prometheus exporter settings. zeta-server does not
// read them: /metrics is always served on the main listener by
// internal/server's Handler.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoadFromFile reads and parses a YAML config file, substituting
// ${VAR}/${VAR:default} environment references before defaults are
// applied, then filling in any zero-valued fields.
//
// Before reading the config, it loads a local .env file into the process
// environment if one is present (godotenv.Load ignores a missing file),
// so a developer's local secrets never need to live in the checked-in
// YAML or be exported by hand before every run.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	substituted := SubstituteEnvVars(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(substituted), cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg back out as YAML, used by zeta-ctl's init
// subcommand to emit a starter config.
func SaveToFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Server == nil {
		cfg.Server = &ServerConfig{}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8443"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	if cfg.Server.ShutdownGrace == 0 {
		cfg.Server.ShutdownGrace = 15 * time.Second
	}

	if cfg.Database != nil {
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MinConns == 0 {
			cfg.Database.MinConns = 1
		}
		if cfg.Database.MaxConns == 0 {
			cfg.Database.MaxConns = 5
		}
	}

	if cfg.NonceStore == nil {
		cfg.NonceStore = &NonceConfig{}
	}
	if cfg.NonceStore.Backend == "" {
		cfg.NonceStore.Backend = "memory"
	}
	if cfg.NonceStore.CleanupInterval == 0 {
		cfg.NonceStore.CleanupInterval = 10 * time.Second
	}

	if cfg.Crypto == nil {
		cfg.Crypto = &CryptoConfig{}
	}
	if cfg.Crypto.KeyBits == 0 {
		cfg.Crypto.KeyBits = 4096
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// GetEnvironment returns the current environment from ZETA_ENV, falling
// back to ENVIRONMENT, then "development".
func GetEnvironment() string {
	env := os.Getenv("ZETA_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction reports whether GetEnvironment returns "production".
func IsProduction() bool { return GetEnvironment() == "production" }

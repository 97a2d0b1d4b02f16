// Package config loads the tabstore CLI configuration.
//
// A configuration file is YAML (.yaml, .yml) or TOML (.toml). Values may
// reference environment variables as ${VAR} or ${VAR:-default}. After the
// file, TABSTORE_* environment variables override it; command-line flags
// override both and are applied by the caller.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tabstore/internal/persist"
)

// Environment variables that override file values.
const (
	EnvDB       = "TABSTORE_DB"
	EnvBackend  = "TABSTORE_BACKEND"
	EnvLogLevel = "TABSTORE_LOG_LEVEL"
)

// Config is the CLI configuration.
type Config struct {
	// DB is the path of the database or content file.
	DB string `yaml:"db" toml:"db"`

	// Backend selects the persistence backend: sqlite, bolt or file.
	Backend string `yaml:"backend" toml:"backend"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" toml:"log_level"`

	// Format is the default output format: text or json.
	Format string `yaml:"format" toml:"format"`

	// Schema is an optional CUE schema applied to every opened store.
	Schema string `yaml:"schema,omitempty" toml:"schema,omitempty"`

	// Debounce delays auto-saves, e.g. "250ms". Zero saves on every
	// transaction.
	Debounce time.Duration `yaml:"debounce,omitempty" toml:"debounce,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DB:       "tabstore.db",
		Backend:  string(persist.KindSQLite),
		LogLevel: "info",
		Format:   "text",
	}
}

// Load reads path over the defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Schema != "" && !filepath.IsAbs(cfg.Schema) {
		cfg.Schema = filepath.Join(filepath.Dir(path), cfg.Schema)
	}
	return cfg, nil
}

// Parse decodes configuration text. ext selects the syntax: ".toml" for
// TOML, anything else for YAML.
func Parse(data []byte, ext string) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var raw map[string]any
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	cfg := Default()
	if err := decode(raw, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode maps the generic document onto cfg. Unknown keys are errors so
// typos do not go unnoticed.
func decode(raw map[string]any, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      cfg,
		TagName:     "yaml",
		ErrorUnused: true,
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from TABSTORE_* variables read with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvDB); v != "" {
		c.DB = v
	}
	if v := getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the enumerated fields.
func (c *Config) Validate() error {
	switch persist.Kind(c.Backend) {
	case persist.KindSQLite, persist.KindBolt, persist.KindFile:
	default:
		return fmt.Errorf("invalid backend %q (must be sqlite, bolt or file)", c.Backend)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid format %q (must be text or json)", c.Format)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative")
	}
	return nil
}

// Level returns the slog level for LogLevel. Validate has rejected
// unknown names, so they fall back to info.
func (c *Config) Level() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel resolves a log level name.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q (must be debug, info, warn or error)", name)
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} references.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

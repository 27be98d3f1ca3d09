// Package config loads climq settings from climq.yaml and CLIMQ_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/climq/internal/geocode"
	"github.com/roach88/climq/internal/narrate"
)

// FileName is the configuration file name, without extension.
const FileName = "climq"

// EnvPrefix prefixes environment overrides: CLIMQ_DATA_DIR,
// CLIMQ_NARRATOR_CHAT_API_KEY, ...
const EnvPrefix = "CLIMQ"

// Config is the complete climq configuration.
type Config struct {
	// DataDir holds one <database>.db sqlite file per dataset database.
	DataDir string `mapstructure:"data_dir"`

	// VocabDir optionally replaces the built-in domains with the CUE files
	// in this directory.
	VocabDir string `mapstructure:"vocab_dir"`

	// Domain is a domain name or "auto".
	Domain string `mapstructure:"domain"`

	Source    SourceConfig    `mapstructure:"source"`
	Execute   ExecuteConfig   `mapstructure:"execute"`
	Gazetteer GazetteerConfig `mapstructure:"gazetteer"`
	Narrator  NarratorConfig  `mapstructure:"narrator"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SourceConfig selects the dataset collaborator.
type SourceConfig struct {
	// Kind is "sqlite" to open DataDir directly or "rpc" to start Command
	// and talk JSON-RPC over its stdio.
	Kind    string   `mapstructure:"kind"`
	Command []string `mapstructure:"command"`
}

// ExecuteConfig bounds query dispatch.
type ExecuteConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// GazetteerConfig configures the location gazetteer.
type GazetteerConfig struct {
	Enabled bool            `mapstructure:"enabled"`
	Budget  int             `mapstructure:"budget"`
	Options geocode.Options `mapstructure:",squash"`
}

// NarratorConfig selects the answer renderer.
type NarratorConfig struct {
	// Kind is "plain" or "chat".
	Kind string              `mapstructure:"kind"`
	Chat narrate.ChatOptions `mapstructure:"chat"`
}

// MetricsConfig configures the prometheus endpoint. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("vocab_dir", "")
	v.SetDefault("domain", "auto")
	v.SetDefault("source.kind", "sqlite")
	v.SetDefault("source.command", []string{})
	v.SetDefault("execute.timeout", 30*time.Second)
	v.SetDefault("gazetteer.enabled", true)
	v.SetDefault("gazetteer.budget", 3)
	v.SetDefault("gazetteer.base_url", geocode.DefaultBaseURL)
	v.SetDefault("gazetteer.user_agent", "climq/1.0")
	v.SetDefault("gazetteer.timeout", 10*time.Second)
	v.SetDefault("gazetteer.requests_per_second", 1.0)
	v.SetDefault("narrator.kind", "plain")
	v.SetDefault("narrator.chat.base_url", "")
	v.SetDefault("narrator.chat.model", "")
	v.SetDefault("narrator.chat.user", "")
	v.SetDefault("narrator.chat.api_key", "")
	v.SetDefault("narrator.chat.timeout", 60*time.Second)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.level", "info")
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return cfg
}

// Load reads configuration. If path is empty, climq.yaml is searched in
// dir; a missing file yields the defaults. Environment variables override
// the file.
func Load(dir, path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if used := v.ConfigFileUsed(); used != "" && !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(filepath.Dir(used), cfg.DataDir)
	}
	return cfg, cfg.Validate()
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "sqlite":
	case "rpc":
		if len(c.Source.Command) == 0 {
			return &Error{Field: "source.command", Message: "required for rpc source"}
		}
	default:
		return &Error{Field: "source.kind", Message: fmt.Sprintf("unknown source %q", c.Source.Kind)}
	}
	switch c.Narrator.Kind {
	case "plain", "chat":
	default:
		return &Error{Field: "narrator.kind", Message: fmt.Sprintf("unknown narrator %q", c.Narrator.Kind)}
	}
	if c.Execute.Timeout < 0 {
		return &Error{Field: "execute.timeout", Message: "must not be negative"}
	}
	return nil
}

// Error is a configuration error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

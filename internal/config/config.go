package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type SessionConfig struct {
	// WorkspaceRoot is where per-session workspace directories are created.
	// Empty means the system temp directory.
	WorkspaceRoot string `mapstructure:"workspace_root"`
	// PollIntervalMS bounds how long an output read may block before the
	// pump re-checks for cancellation.
	PollIntervalMS int `mapstructure:"poll_interval_ms"`
	// SeedSQL is an optional script applied to each fresh SQL session
	// database before the submitted statements run.
	SeedSQL string `mapstructure:"seed_sql"`
	// LanguagesFile optionally defines extra runtimes in YAML.
	LanguagesFile string `mapstructure:"languages_file"`
}

type ArtifactConfig struct {
	MaxDimension int `mapstructure:"max_dimension"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Session  SessionConfig  `mapstructure:"session"`
	Artifact ArtifactConfig `mapstructure:"artifact"`
}

// Load reads coderoom.yaml from the working directory or ~/.coderoom.
// A missing config file is fine: every key has a default.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("coderoom")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.coderoom")

	v.SetDefault("server.port", 5000)
	v.SetDefault("session.workspace_root", "")
	v.SetDefault("session.poll_interval_ms", 100)
	v.SetDefault("session.seed_sql", "prepopulate.sql")
	v.SetDefault("session.languages_file", "")
	v.SetDefault("artifact.max_dimension", 800)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// PollInterval returns the pump's bounded-wait read interval.
func (c *Config) PollInterval() time.Duration {
	ms := c.Session.PollIntervalMS
	if ms <= 0 {
		ms = 100
	}
	return time.Duration(ms) * time.Millisecond
}

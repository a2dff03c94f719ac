package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. WORKBOX_SHELL.
const EnvPrefix = "WORKBOX"

// Config field names map to WORKBOX_<SPLIT_WORDS> variables. Explicit
// envconfig tags are avoided so unprefixed names such as SHELL never leak in.
type Config struct {
	Shell          string        `yaml:"shell"`
	WorkDir        string        `yaml:"work_dir" split_words:"true"`
	ExecTimeout    time.Duration `yaml:"exec_timeout" split_words:"true"`
	LogLevel       string        `yaml:"log_level" split_words:"true"`
	LogDevelopment bool          `yaml:"log_development" split_words:"true"`
	MetricsAddr    string        `yaml:"metrics_addr" split_words:"true"`
}

// Flags holds command-line overrides. Zero values leave the lower layers
// untouched.
type Flags struct {
	Shell          string
	WorkDir        string
	ExecTimeout    time.Duration
	LogLevel       string
	LogDevelopment bool
	MetricsAddr    string
}

// Load resolves configuration from flags > env > config file.
func Load(flags Flags) (*Config, error) {
	cfg := &Config{LogLevel: "info"}

	// 1. Config file as base
	if cfgPath := configFilePath(); cfgPath != "" {
		data, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", cfgPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfgPath, err)
		}
	}

	// 2. Environment variables override the file
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	// 3. CLI flags override everything
	if flags.Shell != "" {
		cfg.Shell = flags.Shell
	}
	if flags.WorkDir != "" {
		cfg.WorkDir = flags.WorkDir
	}
	if flags.ExecTimeout > 0 {
		cfg.ExecTimeout = flags.ExecTimeout
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	if flags.LogDevelopment {
		cfg.LogDevelopment = true
	}
	if flags.MetricsAddr != "" {
		cfg.MetricsAddr = flags.MetricsAddr
	}

	if cfg.ExecTimeout < 0 {
		return nil, fmt.Errorf("exec timeout must not be negative, got %s", cfg.ExecTimeout)
	}

	// Default working directory to home
	if cfg.WorkDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.WorkDir = home
	}

	abs, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("invalid work directory: %w", err)
	}
	cfg.WorkDir = abs

	return cfg, nil
}

// FilePath is where Load looks for the config file.
func FilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".workbox", "config.yaml")
}

func configFilePath() string {
	p := FilePath()
	if p == "" {
		return ""
	}
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

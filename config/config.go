// Package config handles configuration loading for crewmesh. It supports XDG
// config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for crewmesh.
type Config struct {
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Transport TransportConfig `mapstructure:"transport"`
	Run       RunConfig       `mapstructure:"run"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// OracleConfig holds planning oracle settings.
type OracleConfig struct {
	// Provider selects the oracle backend, "openai" or "anthropic".
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// TransportConfig holds agent transport settings.
type TransportConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxPolls     int           `mapstructure:"max_polls"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// RunConfig holds orchestrator run settings.
type RunConfig struct {
	MaxIterations int `mapstructure:"max_iterations"`
	// Tolerant switches invocation failure handling from aborting the run
	// to recording the failure and replanning.
	Tolerant      bool          `mapstructure:"tolerant"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Driver selects the store backend, "sqlite" or "memory".
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Oracle: OracleConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Transport: TransportConfig{
			BaseURL:      "https://directline.botframework.com",
			PollInterval: time.Second,
			MaxPolls:     10,
			Timeout:      30 * time.Second,
		},
		Run: RunConfig{
			MaxIterations: 15,
			RetryAttempts: 3,
			RetryBackoff:  250 * time.Millisecond,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   filepath.Join(getUserDataDir(), "crewmesh.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (CREWMESH_*, OPENAI_API_KEY, ANTHROPIC_API_KEY)
//  2. Project config (.crewmesh.yaml in the current directory or a parent)
//  3. User config (~/.config/crewmesh/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("CREWMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = providerKeyFromEnv(cfg.Oracle.Provider)
	}
	cfg.Oracle.APIKey = expandEnv(cfg.Oracle.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = providerKeyFromEnv(cfg.Oracle.Provider)
	}
	cfg.Oracle.APIKey = expandEnv(cfg.Oracle.APIKey)

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("oracle.provider", def.Oracle.Provider)
	v.SetDefault("oracle.model", def.Oracle.Model)
	v.SetDefault("oracle.temperature", def.Oracle.Temperature)
	v.SetDefault("oracle.max_tokens", def.Oracle.MaxTokens)
	v.SetDefault("transport.base_url", def.Transport.BaseURL)
	v.SetDefault("transport.poll_interval", def.Transport.PollInterval)
	v.SetDefault("transport.max_polls", def.Transport.MaxPolls)
	v.SetDefault("transport.timeout", def.Transport.Timeout)
	v.SetDefault("run.max_iterations", def.Run.MaxIterations)
	v.SetDefault("run.tolerant", def.Run.Tolerant)
	v.SetDefault("run.retry_attempts", def.Run.RetryAttempts)
	v.SetDefault("run.retry_backoff", def.Run.RetryBackoff)
	v.SetDefault("store.driver", def.Store.Driver)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
}

func providerKeyFromEnv(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

// expandEnv expands ${VAR} references, leaving unresolved references empty.
func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.ExpandEnv(s)
}

func getUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "crewmesh")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crewmesh"
	}
	return filepath.Join(home, ".config", "crewmesh")
}

func getUserDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "crewmesh")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crewmesh"
	}
	return filepath.Join(home, ".local", "share", "crewmesh")
}

// findProjectConfig walks from the current directory upward looking for a
// .crewmesh.yaml file.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".crewmesh.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

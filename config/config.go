// Package config handles configuration loading and saving.
package config

import (
	"os"
	"path/filepath"

	"github.com/msgpilot/msgpilot/internal/runtimecfg"
)

// Config is the root configuration structure.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Engine   EngineConfig   `yaml:"engine,omitempty"`
	Bridge   BridgeConfig   `yaml:"bridge,omitempty"`
	Delivery DeliveryConfig `yaml:"delivery,omitempty"`
	Server   ServerConfig   `yaml:"server,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	DataDir  string         `yaml:"dataDir,omitempty"`
}

// ProviderConfig contains LLM provider settings.
type ProviderConfig struct {
	Name        string  `yaml:"name"`              // openai, anthropic
	APIKey      string  `yaml:"apiKey"`
	APIBase     string  `yaml:"apiBase,omitempty"` // optional custom base URL
	Model       string  `yaml:"model,omitempty"`
	MaxTokens   int     `yaml:"maxTokens,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

// EngineConfig bounds the agent loop and the context window.
type EngineConfig struct {
	MaxRounds         int `yaml:"maxRounds,omitempty"`
	MaxTurns          int `yaml:"maxTurns,omitempty"`
	FullFidelityTurns int `yaml:"fullFidelityTurns,omitempty"`
	ToolResultBudget  int `yaml:"toolResultBudget,omitempty"`
}

// BridgeConfig points at the external delivery bridge.
type BridgeConfig struct {
	URL string `yaml:"url,omitempty"`
}

// DeliveryConfig tunes the scheduled-delivery worker.
type DeliveryConfig struct {
	PollIntervalSeconds int `yaml:"pollIntervalSeconds,omitempty"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Level   string `yaml:"level,omitempty"`
	Stdout  bool   `yaml:"stdout,omitempty"`
	File    string `yaml:"file,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	cfg := &Config{
		Provider: ProviderConfig{
			Name:        runtimecfg.EngineDefaultProvider,
			Model:       runtimecfg.EngineDefaultModel,
			MaxTokens:   runtimecfg.EngineDefaultMaxTokens,
			Temperature: runtimecfg.EngineDefaultTemperature,
		},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Provider.Name == "" {
		c.Provider.Name = runtimecfg.EngineDefaultProvider
	}
	if c.Provider.Model == "" {
		c.Provider.Model = runtimecfg.EngineDefaultModel
	}
	if c.Provider.MaxTokens == 0 {
		c.Provider.MaxTokens = runtimecfg.EngineDefaultMaxTokens
	}
	if c.Engine.MaxRounds == 0 {
		c.Engine.MaxRounds = runtimecfg.EngineDefaultMaxRounds
	}
	if c.Engine.MaxTurns == 0 {
		c.Engine.MaxTurns = runtimecfg.ContextDefaultMaxTurns
	}
	if c.Engine.FullFidelityTurns == 0 {
		c.Engine.FullFidelityTurns = runtimecfg.ContextDefaultFullFidelityTurns
	}
	if c.Engine.ToolResultBudget == 0 {
		c.Engine.ToolResultBudget = runtimecfg.ContextDefaultToolResultBudget
	}
	if c.Bridge.URL == "" {
		c.Bridge.URL = runtimecfg.BridgeDefaultURL
	}
	if c.Delivery.PollIntervalSeconds == 0 {
		c.Delivery.PollIntervalSeconds = int(runtimecfg.DeliveryDefaultPollInterval.Seconds())
	}
	if c.Server.Addr == "" {
		c.Server.Addr = runtimecfg.ServerDefaultAddr
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// ConfigDir returns the msgpilot config directory (~/.msgpilot).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".msgpilot"), nil
}

// ConfigPath returns the path to config.yaml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DataDirPath returns the data directory, defaulting to <configDir>/data.
func (c *Config) DataDirPath() (string, error) {
	if c.DataDir != "" {
		if c.DataDir[0] == '~' {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, c.DataDir[1:]), nil
		}
		return c.DataDir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// LogEnabled reports whether logging is on (default true).
func (c *Config) LogEnabled() bool {
	if c.Logging.Enabled == nil {
		return true
	}
	return *c.Logging.Enabled
}

package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

// IntelConfig holds the endpoints of the external analysis services
type IntelConfig struct {
	IntentEndpoint string `yaml:"intent_endpoint"`
	EmbedEndpoint  string `yaml:"embed_endpoint"`
}

type Config struct {
	SelectedProvider string                    `yaml:"selected_provider"`
	SelectedModel    string                    `yaml:"selected_model"`
	Providers        map[string]ProviderConfig `yaml:"providers"`
	ToolsRoot        string                    `yaml:"tools_root"`
	Concurrency      int                       `yaml:"concurrency"`
	LogLevel         string                    `yaml:"log_level"`
	HistoryPath      string                    `yaml:"history_path"`
	RulesPath        string                    `yaml:"rules_path"`
	AllowedRoots     []string                  `yaml:"allowed_roots"`
	Intel            IntelConfig               `yaml:"intel"`
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".solaudit")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// DefaultConfig returns the configuration used when no file exists yet
func DefaultConfig() *Config {
	return &Config{
		SelectedProvider: "gemini",
		SelectedModel:    "gemini-1.5-flash",
		Providers:        make(map[string]ProviderConfig),
		ToolsRoot:        "tools",
		Concurrency:      4,
		LogLevel:         "info",
		Intel: IntelConfig{
			IntentEndpoint: "http://localhost:8081",
			EmbedEndpoint:  "http://localhost:9900",
		},
	}
}

func LoadConfig() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	cfg.fillDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func SaveConfig(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// 0600 permissions for security (api keys)
	return os.WriteFile(path, data, 0600)
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.SelectedProvider == "" {
		c.SelectedProvider = def.SelectedProvider
	}
	if c.SelectedModel == "" {
		c.SelectedModel = def.SelectedModel
	}
	if c.ToolsRoot == "" {
		c.ToolsRoot = def.ToolsRoot
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Intel.IntentEndpoint == "" {
		c.Intel.IntentEndpoint = def.Intel.IntentEndpoint
	}
	if c.Intel.EmbedEndpoint == "" {
		c.Intel.EmbedEndpoint = def.Intel.EmbedEndpoint
	}
}

// applyEnv lets environment variables override file values. API keys from
// the environment fill gaps but never clobber keys set via the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("SOLAUDIT_TOOLS_ROOT"); v != "" {
		c.ToolsRoot = v
	}
	if v := os.Getenv("WEB3_SEKIT_API"); v != "" {
		c.Intel.IntentEndpoint = v
	}
	if v := os.Getenv("SMARTBERT_API"); v != "" {
		c.Intel.EmbedEndpoint = v
	}
	if c.GetAPIKey("gemini") == "" {
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			c.SetAPIKey("gemini", v)
		} else if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
			c.SetAPIKey("gemini", v)
		}
	}
}

// HistoryDBPath resolves the run history database location, defaulting to
// the config directory next to config.yaml
func (c *Config) HistoryDBPath() (string, error) {
	if c.HistoryPath != "" {
		return c.HistoryPath, nil
	}
	path, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(path), "history.db"), nil
}

func (c *Config) SetAPIKey(provider, key string) {
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

func (c *Config) GetAPIKey(provider string) string {
	return c.Providers[provider].APIKey
}

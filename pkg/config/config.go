package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file is missing or a field is unset.
const (
	DefaultProvider     = "openai"
	DefaultModel        = "gpt-4o"
	DefaultDBPath       = "bugbounty.db"
	DefaultWorkspace    = "workspace"
	DefaultLogFile      = "bugbounty.log"
	DefaultBatchSize    = 5
	DefaultMinChainSize = 2
	DefaultTimeout      = 120 * time.Second
)

type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

// Config carries every setting the pipeline needs. It is constructed once at
// startup and passed explicitly into each stage; no stage reads the
// environment or the config file on its own.
type Config struct {
	SelectedProvider string                    `yaml:"selected_provider"`
	SelectedModel    string                    `yaml:"selected_model"`
	Providers        map[string]ProviderConfig `yaml:"providers"`

	DBPath       string        `yaml:"db_path"`
	WorkspaceDir string        `yaml:"workspace_dir"`
	LogFile      string        `yaml:"log_file"`
	BatchSize    int           `yaml:"batch_size"`
	MinChainSize int           `yaml:"min_chain_size"`
	Timeout      time.Duration `yaml:"request_timeout"`
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".bugbounty")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file yields the default configuration, not an error.
func Load(path string) (*Config, error) {
	var err error
	if path == "" {
		path, err = GetConfigPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaults(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func Save(cfg *Config) error {
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

func defaults() *Config {
	return &Config{
		SelectedProvider: DefaultProvider,
		SelectedModel:    DefaultModel,
		Providers:        make(map[string]ProviderConfig),
		DBPath:           DefaultDBPath,
		WorkspaceDir:     DefaultWorkspace,
		LogFile:          DefaultLogFile,
		BatchSize:        DefaultBatchSize,
		MinChainSize:     DefaultMinChainSize,
		Timeout:          DefaultTimeout,
	}
}

func (c *Config) applyDefaults() {
	if c.SelectedProvider == "" {
		c.SelectedProvider = DefaultProvider
	}
	if c.SelectedModel == "" {
		c.SelectedModel = DefaultModel
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.WorkspaceDir == "" {
		c.WorkspaceDir = DefaultWorkspace
	}
	if c.LogFile == "" {
		c.LogFile = DefaultLogFile
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MinChainSize < 2 {
		c.MinChainSize = DefaultMinChainSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

func (c *Config) SetAPIKey(provider, key string) {
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

// APIKey returns the configured key for a provider, falling back to the
// conventional environment variable when the config file has none.
func (c *Config) APIKey(provider string) string {
	if key := c.Providers[provider].APIKey; key != "" {
		return key
	}
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "gemini":
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

// TargetWorkspace returns the per-target artifact directory, creating it if
// needed.
func (c *Config) TargetWorkspace(target string) (string, error) {
	dir := filepath.Join(c.WorkspaceDir, target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

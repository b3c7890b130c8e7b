package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigSource represents where the configuration was loaded from
type ConfigSource string

const (
	SourceCLI        ConfigSource = "cli"         // From command line argument
	SourceConfigFile ConfigSource = "config-file" // From ~/.config/jmsqctl/config.yaml
	SourceDefault    ConfigSource = "default"     // Default configuration
)

// Config represents the application configuration
type Config struct {
	Environments       []Environment `yaml:"environments"`
	DefaultEnvironment string        `yaml:"default_environment"`
	Engine             Engine        `yaml:"engine"`
	currentEnvironment *Environment
	source             ConfigSource // Where this config was loaded from
	sourcePath         string       // Specific file path or server URL
}

// Environment represents a broker connection profile
type Environment struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	Creds    string `yaml:"creds,omitempty"`
}

// Engine holds the mutation engine tuning options
type Engine struct {
	BatchSize              int    `yaml:"batch_size"`
	MaxConcurrentMutations int    `yaml:"max_concurrent_mutations"`
	RetryOnTransientError  bool   `yaml:"retry_on_transient_error"`
	RetryLimit             int    `yaml:"retry_limit"`
	RetryBackoff           string `yaml:"retry_backoff"`
	DMQSuffix              string `yaml:"dmq_suffix"`
}

// GetRetryBackoff returns the retry backoff as duration
func (e Engine) GetRetryBackoff() time.Duration {
	d, err := time.ParseDuration(e.RetryBackoff)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

func defaultEngine() Engine {
	return Engine{
		BatchSize:              50,
		MaxConcurrentMutations: 4,
		RetryOnTransientError:  true,
		RetryLimit:             3,
		RetryBackoff:           "200ms",
		DMQSuffix:              "_dmq",
	}
}

// expandPath expands environment variables, tilde, and relative paths
// Supports:
// - Environment variables: $HOME, ${HOME}, $VAR_NAME
// - Tilde expansion: ~/path or ~
// - Relative paths: ./creds/file.creds (relative to configDir)
func expandPath(path string, configDir string) (string, error) {
	if path == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(path)

	if strings.HasPrefix(expanded, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		expanded = filepath.Join(homeDir, expanded[2:])
	} else if expanded == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		expanded = homeDir
	}

	if !filepath.IsAbs(expanded) && configDir != "" {
		expanded = filepath.Join(configDir, expanded)
	}

	return filepath.Clean(expanded), nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Environments: []Environment{
			{
				Name: "local",
				URL:  "nats://localhost:4222",
			},
		},
		DefaultEnvironment: "local",
		Engine:             defaultEngine(),
		source:             SourceDefault,
		sourcePath:         "built-in default",
	}
}

// Load loads configuration from file or creates a default. A non-empty
// serverURL short-circuits file loading entirely.
func Load(configPath, serverURL string) (*Config, error) {
	if serverURL != "" {
		cfg := &Config{
			Environments: []Environment{
				{
					Name: "cli",
					URL:  serverURL,
				},
			},
			DefaultEnvironment: "cli",
			Engine:             defaultEngine(),
			source:             SourceCLI,
			sourcePath:         serverURL,
		}
		cfg.currentEnvironment = &cfg.Environments[0]
		return cfg, nil
	}

	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(homeDir, ".config", "jmsqctl", "config.yaml")
	}

	var cfg *Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Defaults first so fields missing from the file keep their
		// documented values.
		cfg = &Config{Engine: defaultEngine()}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		cfg.source = SourceConfigFile
		cfg.sourcePath = configPath

		configDir := filepath.Dir(configPath)
		for i := range cfg.Environments {
			if cfg.Environments[i].Creds != "" {
				expanded, err := expandPath(cfg.Environments[i].Creds, configDir)
				if err != nil {
					return nil, fmt.Errorf("failed to expand creds path for environment '%s': %w", cfg.Environments[i].Name, err)
				}
				cfg.Environments[i].Creds = expanded
			}
			if cfg.Environments[i].Token != "" && strings.Contains(cfg.Environments[i].Token, "$") {
				cfg.Environments[i].Token = os.ExpandEnv(cfg.Environments[i].Token)
			}
			if cfg.Environments[i].Password != "" && strings.Contains(cfg.Environments[i].Password, "$") {
				cfg.Environments[i].Password = os.ExpandEnv(cfg.Environments[i].Password)
			}
		}
	}

	for i := range cfg.Environments {
		if cfg.Environments[i].Name == cfg.DefaultEnvironment {
			cfg.currentEnvironment = &cfg.Environments[i]
			break
		}
	}
	if cfg.currentEnvironment == nil && len(cfg.Environments) > 0 {
		cfg.currentEnvironment = &cfg.Environments[0]
	}

	return cfg, nil
}

// Save saves the configuration to file
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CurrentEnvironment returns the active environment
func (c *Config) CurrentEnvironment() *Environment {
	if c.currentEnvironment != nil {
		return c.currentEnvironment
	}
	return &Environment{
		Name: "default",
		URL:  "nats://localhost:4222",
	}
}

// CurrentEnvironmentName returns the active environment name
func (c *Config) CurrentEnvironmentName() string {
	if c.currentEnvironment != nil {
		return c.currentEnvironment.Name
	}
	return "unknown"
}

// SetEnvironment switches to a different environment
func (c *Config) SetEnvironment(name string) error {
	for i := range c.Environments {
		if c.Environments[i].Name == name {
			c.currentEnvironment = &c.Environments[i]
			c.DefaultEnvironment = name
			return nil
		}
	}
	return fmt.Errorf("environment '%s' not found", name)
}

// AddEnvironment adds a new environment
func (c *Config) AddEnvironment(name, url string) error {
	for _, env := range c.Environments {
		if env.Name == name {
			return fmt.Errorf("environment '%s' already exists", name)
		}
	}

	c.Environments = append(c.Environments, Environment{
		Name: name,
		URL:  url,
	})

	return nil
}

// RemoveEnvironment removes an environment
func (c *Config) RemoveEnvironment(name string) error {
	for i, env := range c.Environments {
		if env.Name == name {
			c.Environments = append(c.Environments[:i], c.Environments[i+1:]...)
			if c.currentEnvironment != nil && c.currentEnvironment.Name == name {
				if len(c.Environments) > 0 {
					c.currentEnvironment = &c.Environments[0]
					c.DefaultEnvironment = c.Environments[0].Name
				} else {
					c.currentEnvironment = nil
					c.DefaultEnvironment = ""
				}
			}
			return nil
		}
	}
	return fmt.Errorf("environment '%s' not found", name)
}

// GetConfigSource returns where the configuration was loaded from
func (c *Config) GetConfigSource() ConfigSource {
	return c.source
}

// GetConfigSourcePath returns the specific path or identifier for the config source
func (c *Config) GetConfigSourcePath() string {
	return c.sourcePath
}

// GetConfigSourceDescription returns a human-readable description of the config source
func (c *Config) GetConfigSourceDescription() string {
	switch c.source {
	case SourceCLI:
		return fmt.Sprintf("Command line: %s", c.sourcePath)
	case SourceConfigFile:
		return fmt.Sprintf("Config file: %s", c.sourcePath)
	case SourceDefault:
		return "Built-in default (no config found)"
	default:
		return "Unknown source"
	}
}

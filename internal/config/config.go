package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources []Source `yaml:"sources"`
	Fetch   Fetch    `yaml:"fetch"`
	Output  Output   `yaml:"output"`
	Server  Server   `yaml:"server"`
	Logging Logging  `yaml:"logging"`
}

// Source is one remote or local payload and the dataset sections to import from it.
type Source struct {
	Name     string    `yaml:"name"`
	URL      string    `yaml:"url"`
	Sections []Section `yaml:"sections"`
}

// Section names a top-level dataset inside a payload.
type Section struct {
	Key           string `yaml:"key"`
	DefaultRegion string `yaml:"default_region"`
	Collection    string `yaml:"collection"`
}

type Fetch struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for covidstat.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "covidstat")
}

// DataDir returns the XDG data directory for covidstat.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "covidstat")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/covidstat/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'covidstat init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Fetch: Fetch{
			TimeoutSeconds: 30,
			UserAgent:      "covidstat/1.0",
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for i, s := range c.Sources {
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("sources[%d]: url is required", i)
		}
		if len(s.Sections) == 0 {
			return fmt.Errorf("sources[%d] (%s): at least one section is required", i, s.URL)
		}
		for j, sec := range s.Sections {
			if strings.TrimSpace(sec.Key) == "" {
				return fmt.Errorf("sources[%d].sections[%d]: key is required", i, j)
			}
		}
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// FetchTimeout returns the HTTP timeout for payload downloads.
func (c *Config) FetchTimeout() time.Duration {
	if c.Fetch.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// Debug reports whether debug logging is configured.
func (c *Config) Debug() bool {
	return strings.EqualFold(c.Logging.Level, "DEBUG")
}

// SourceName returns the display name of a source, falling back to its URL.
func (s Source) SourceName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

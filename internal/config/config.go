// Package config loads the YAML configuration file and applies defaults.
// Configuration is read once at startup and passed down; no package reads
// files or environment variables on its own.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all K9 configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Data and ontology locations
	Data DataConfig `yaml:"data"`

	// LLM collaborator
	LLM LLMConfig `yaml:"llm"`

	// Graph database (recommendations)
	Graph GraphConfig `yaml:"graph"`

	// Session persistence
	Store StoreConfig `yaml:"store"`

	// HTTP API
	Server ServerConfig `yaml:"server"`

	// Logging and audit
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig locates the CSV datasets and the ontology catalogs.
type DataConfig struct {
	Dir         string `yaml:"dir"`
	OntologyDir string `yaml:"ontology_dir"`
	// Scenario, when set, activates the named what-if overlay table.
	Scenario string `yaml:"scenario"`
}

// LLMConfig configures the language model collaborator.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, mock
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// GraphConfig configures the graph database connection. An empty URI
// disables recommendations.
type GraphConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// StoreConfig configures the SQLite session store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures trace and audit logging.
type LoggingConfig struct {
	Dir              string `yaml:"dir"`
	Debug            bool   `yaml:"debug"`
	ClarificationLog string `yaml:"clarification_log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Name:    "k9",
		Version: "0.1.0",
		Data: DataConfig{
			Dir:         "data",
			OntologyDir: "ontology",
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  "60s",
		},
		Store: StoreConfig{
			DatabasePath: filepath.Join("data", "k9_sessions.db"),
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Dir:              ".",
			ClarificationLog: filepath.Join("data", "clarifications.jsonl"),
		},
	}
}

// Load reads a YAML config file, layering it over the defaults. A missing
// path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.Data.OntologyDir == "" {
		return fmt.Errorf("data.ontology_dir is required")
	}
	if c.LLM.Timeout != "" {
		if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
			return fmt.Errorf("llm.timeout: %w", err)
		}
	}
	return nil
}

// LLMTimeout parses the configured LLM timeout, falling back to a minute.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

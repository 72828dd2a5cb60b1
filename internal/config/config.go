package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ConfigFileName is the name of the config file within .voxvault.
const ConfigFileName = "config.json"

// Default values for optional configuration fields.
const (
	DefaultArchiveDir              = "~/.voxvault/archive"
	DefaultTranscribeURL           = "http://localhost:9000"
	DefaultAnalyzeURL              = "https://api.openai.com/v1"
	DefaultAnalyzeModel            = "gpt-4o-mini"
	DefaultLanguage                = "auto"
	DefaultRetryCount              = 3
	DefaultStabilizationIntervalMs = 500
	DefaultStabilizationChecks     = 3
)

// EnvAnalyzeKey is the environment variable holding the analysis API key.
const EnvAnalyzeKey = "VOXVAULT_ANALYZE_KEY"

// Config is the voxvault service configuration, stored at
// <root>/.voxvault/config.json. Paths may use ~ for the home directory.
type Config struct {
	ArchiveDir              string `json:"archive_dir"`
	LogDir                  string `json:"log_dir"`
	TranscribeURL           string `json:"transcribe_url"`
	AnalyzeURL              string `json:"analyze_url"`
	AnalyzeModel            string `json:"analyze_model"`
	Language                string `json:"language"`
	RetryCount              int    `json:"retry_count"`
	StabilizationIntervalMs int    `json:"stabilization_interval_ms"`
	StabilizationChecks     int    `json:"stabilization_checks"`
}

// Validation errors.
var (
	ErrTranscribeURLRequired = errors.New("transcribe_url is required")
	ErrAnalyzeURLRequired    = errors.New("analyze_url is required")
)

// Load reads the configuration from the store root found via FindStoreRoot.
func Load() (*Config, error) {
	root, err := FindStoreRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(root)
}

// LoadFrom reads the configuration from a specific store root.
func LoadFrom(root string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(root, MarkerDir, ConfigFileName))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	cfg.expandPaths()
	return &cfg, nil
}

// Save writes the configuration back to the store root found via FindStoreRoot.
func (c *Config) Save() error {
	root, err := FindStoreRoot()
	if err != nil {
		return err
	}
	return c.SaveTo(root)
}

// SaveTo writes the configuration to a specific store root with 0644 permissions.
func (c *Config) SaveTo(root string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(root, MarkerDir, ConfigFileName), data, 0644)
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.TranscribeURL == "" {
		return ErrTranscribeURLRequired
	}
	if c.AnalyzeURL == "" {
		return ErrAnalyzeURLRequired
	}
	return nil
}

// ApplyDefaults fills in zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	if c.ArchiveDir == "" {
		c.ArchiveDir = DefaultArchiveDir
	}
	if c.TranscribeURL == "" {
		c.TranscribeURL = DefaultTranscribeURL
	}
	if c.AnalyzeURL == "" {
		c.AnalyzeURL = DefaultAnalyzeURL
	}
	if c.AnalyzeModel == "" {
		c.AnalyzeModel = DefaultAnalyzeModel
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.RetryCount == 0 {
		c.RetryCount = DefaultRetryCount
	}
	if c.StabilizationIntervalMs == 0 {
		c.StabilizationIntervalMs = DefaultStabilizationIntervalMs
	}
	if c.StabilizationChecks == 0 {
		c.StabilizationChecks = DefaultStabilizationChecks
	}
}

// AnalyzeKey returns the analysis API key from the environment. Key material
// never lives in config.json.
func (c *Config) AnalyzeKey() string {
	return os.Getenv(EnvAnalyzeKey)
}

func (c *Config) expandPaths() {
	c.ArchiveDir = expandTilde(c.ArchiveDir)
	c.LogDir = expandTilde(c.LogDir)
}

// expandTilde expands a leading ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

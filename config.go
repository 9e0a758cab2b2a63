package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigDir = ".notesmith/"

// GetConfigPath returns the full path to a config file
func GetConfigPath(filename string) string {
	return filepath.Join(defaultConfigDir, filename)
}

// ConfigOverrides holds file path overrides for embedded configurations
type ConfigOverrides struct {
	OverviewerPromptPath *string
	AnalystPromptPath    *string
	WriterPromptPath     *string
	AuditorPromptPath    *string
	TranslatorPromptPath *string
	SettingsPath         *string
}

//go:embed config/overviewer-system-prompt.md
var overviewerSystemPrompt string

//go:embed config/analyst-system-prompt.md
var analystSystemPrompt string

//go:embed config/writer-system-prompt.md
var writerSystemPrompt string

//go:embed config/auditor-system-prompt.md
var auditorSystemPrompt string

//go:embed config/translator-system-prompt.md
var translatorSystemPrompt string

//go:embed config/auditor-output-schema.json
var auditorSchema string

//go:embed config/settings.yaml
var defaultSettings string

// AgentSettings holds per-stage model parameters
type AgentSettings struct {
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Settings represents the YAML configuration structure
type Settings struct {
	OutputDirectory  string `yaml:"output_directory"`
	BaselineLanguage string `yaml:"baseline_language"`
	Provider         string `yaml:"provider"`
	Gemini           struct {
		ProjectID string `yaml:"project_id"`
		Region    string `yaml:"region"`
	} `yaml:"gemini"`
	Retry struct {
		BackoffSeconds int `yaml:"backoff_seconds"`
	} `yaml:"retry"`
	Agents struct {
		Overviewer AgentSettings `yaml:"overviewer"`
		Analyst    AgentSettings `yaml:"analyst"`
		Writer     AgentSettings `yaml:"writer"`
		Auditor    AgentSettings `yaml:"auditor"`
		Translator AgentSettings `yaml:"translator"`
	} `yaml:"agents"`
}

// StageBackoff returns the fixed wait between the two attempts of a stage.
func (s *Settings) StageBackoff() time.Duration {
	if s.Retry.BackoffSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(s.Retry.BackoffSeconds) * time.Second
}

// Config holds configuration and overrides
type Config struct {
	Settings  *Settings
	Overrides *ConfigOverrides
}

// NewConfig creates a new Config with settings and overrides
func NewConfig(overrides *ConfigOverrides) (*Config, error) {
	if err := ensureConfigExists(); err != nil {
		return nil, fmt.Errorf("ensuring config files exist: %w", err)
	}

	var settings *Settings
	var err error
	if overrides != nil && overrides.SettingsPath != nil {
		// Explicit settings file must exist
		settings, err = loadSettingsRequired(*overrides.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("settings file missing: %s: %w", *overrides.SettingsPath, err)
		}
	} else {
		settings, err = loadSettings(GetConfigPath("settings.yaml"))
		if err != nil {
			return nil, fmt.Errorf("loading settings: %w", err)
		}
	}

	return &Config{
		Settings:  settings,
		Overrides: overrides,
	}, nil
}

// GetOverviewerPrompt returns the overviewer system prompt (from override file or embedded)
func (c *Config) GetOverviewerPrompt() (string, error) {
	return c.promptFor(c.overridePath(func(o *ConfigOverrides) *string { return o.OverviewerPromptPath }), overviewerSystemPrompt)
}

// GetAnalystPrompt returns the analyst system prompt (from override file or embedded)
func (c *Config) GetAnalystPrompt() (string, error) {
	return c.promptFor(c.overridePath(func(o *ConfigOverrides) *string { return o.AnalystPromptPath }), analystSystemPrompt)
}

// GetWriterPrompt returns the writer system prompt (from override file or embedded)
func (c *Config) GetWriterPrompt() (string, error) {
	return c.promptFor(c.overridePath(func(o *ConfigOverrides) *string { return o.WriterPromptPath }), writerSystemPrompt)
}

// GetAuditorPrompt returns the auditor system prompt (from override file or embedded)
func (c *Config) GetAuditorPrompt() (string, error) {
	return c.promptFor(c.overridePath(func(o *ConfigOverrides) *string { return o.AuditorPromptPath }), auditorSystemPrompt)
}

// GetTranslatorPrompt returns the translator system prompt (from override file or embedded)
func (c *Config) GetTranslatorPrompt() (string, error) {
	return c.promptFor(c.overridePath(func(o *ConfigOverrides) *string { return o.TranslatorPromptPath }), translatorSystemPrompt)
}

// GetAuditorSchema returns the JSON schema for the auditor's structured output.
func (c *Config) GetAuditorSchema() string {
	return strings.TrimSpace(auditorSchema)
}

func (c *Config) overridePath(pick func(*ConfigOverrides) *string) *string {
	if c.Overrides == nil {
		return nil
	}
	return pick(c.Overrides)
}

// promptFor reads an explicitly overridden prompt file, which must exist,
// or falls back to the embedded default.
func (c *Config) promptFor(path *string, embedded string) (string, error) {
	if path != nil {
		data, err := os.ReadFile(*path)
		if err != nil {
			return "", fmt.Errorf("prompt file missing: %s: %w", *path, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(embedded), nil
}

// loadSettings loads settings from YAML file with fallback to embedded defaults
func loadSettings(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		data = []byte(defaultSettings)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}
	applySettingsDefaults(&settings)
	return &settings, nil
}

// loadSettingsRequired loads settings from YAML file, failing if the file doesn't exist
func loadSettingsRequired(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, err
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}
	applySettingsDefaults(&settings)
	return &settings, nil
}

func applySettingsDefaults(settings *Settings) {
	if settings.OutputDirectory == "" {
		settings.OutputDirectory = "generate"
	}
	if settings.BaselineLanguage == "" {
		settings.BaselineLanguage = "en"
	}
	if settings.Provider == "" {
		settings.Provider = "anthropic"
	}
	if settings.Gemini.Region == "" {
		settings.Gemini.Region = "us-central1"
	}
}

// ensureConfigExists creates the config directory and writes settings.yaml if needed
func ensureConfigExists() error {
	if err := os.MkdirAll(defaultConfigDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	settingsFile := GetConfigPath("settings.yaml")
	if _, err := os.Stat(settingsFile); os.IsNotExist(err) {
		if err := os.WriteFile(settingsFile, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("writing settings.yaml: %w", err)
		}
	}

	return nil
}

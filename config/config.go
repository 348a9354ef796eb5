// Package config loads run configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/goccy/go-yaml"
)

// Config is the file representation of a helm deployment: model settings,
// loop bounds, compaction thresholds, and logging.
type Config struct {
	// Model settings.
	Model ModelConfig `yaml:"model"`

	// TurnBudget caps model invocations per run. Zero selects the default.
	TurnBudget int `yaml:"turn_budget,omitempty"`

	// ResultToolName overrides the designated terminal tool name.
	ResultToolName string `yaml:"result_tool_name,omitempty"`

	// Compaction settings.
	Compaction CompactionConfig `yaml:"compaction,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`
}

// ModelConfig selects and configures the reasoning model.
type ModelConfig struct {
	// Name of the model, e.g. "claude-sonnet-4-5".
	Name string `yaml:"name,omitempty"`

	// APIKey authenticates with the provider. Supports ${ENV_VAR}
	// interpolation.
	APIKey string `yaml:"api_key,omitempty"`

	// MaxTokens bounds the response length.
	MaxTokens int64 `yaml:"max_tokens,omitempty"`

	// SystemPrompt is passed with every request.
	SystemPrompt string `yaml:"system_prompt,omitempty"`
}

// CompactionConfig configures the context compactor.
type CompactionConfig struct {
	// Enabled activates compaction. Disabled by default.
	Enabled bool `yaml:"enabled,omitempty"`

	// TokenThreshold triggers compaction when the estimate crosses it.
	// Zero selects the default.
	TokenThreshold int `yaml:"token_threshold,omitempty"`

	// KeepRecentTurns is how many trailing turns survive verbatim.
	KeepRecentTurns int `yaml:"keep_recent_turns,omitempty"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses a config file. ${ENV_VAR} references anywhere in
// the file are replaced with the variable's value before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse parses config YAML.
func Parse(data []byte) (*Config, error) {
	interpolated := envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
	var cfg Config
	if err := yaml.Unmarshal(interpolated, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

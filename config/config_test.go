package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
model:
  name: claude-sonnet-4-5
  max_tokens: 4096
  system_prompt: You are a careful assistant.
turn_budget: 25
result_tool_name: respond
compaction:
  enabled: true
  token_threshold: 50000
  keep_recent_turns: 8
log_level: debug
`))
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Model.Name)
	assert.Equal(t, int64(4096), cfg.Model.MaxTokens)
	assert.Equal(t, 25, cfg.TurnBudget)
	assert.Equal(t, "respond", cfg.ResultToolName)
	assert.True(t, cfg.Compaction.Enabled)
	assert.Equal(t, 50000, cfg.Compaction.TokenThreshold)
	assert.Equal(t, 8, cfg.Compaction.KeepRecentTurns)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseEnvInterpolation(t *testing.T) {
	t.Setenv("HELM_TEST_API_KEY", "sk-test-123")
	cfg, err := Parse([]byte(`
model:
  api_key: ${HELM_TEST_API_KEY}
`))
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", cfg.Model.APIKey)
}

func TestParseUnsetEnvBecomesEmpty(t *testing.T) {
	cfg, err := Parse([]byte(`
model:
  api_key: "${HELM_TEST_DEFINITELY_UNSET}"
`))
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Model.APIKey)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("model: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("turn_budget: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.TurnBudget)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

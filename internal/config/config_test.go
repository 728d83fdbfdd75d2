package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_SLACK_TOKEN", "xoxb-secret")
	t.Setenv("GEMINI_API_KEY", "")

	path := writeConfig(t, `
slack:
  enabled: true
  bot_token: ${TEST_SLACK_TOKEN}
  channel_id: C123
ai:
  api_key: k-from-file
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "xoxb-secret", cfg.Slack.BotToken)
	assert.Equal(t, "C123", cfg.Slack.ChannelID)
	assert.Equal(t, "k-from-file", cfg.AI.APIKey)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	path := writeConfig(t, `
server:
  port: 9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gemini-pro", cfg.AI.Model)
	assert.Equal(t, "./data/inboxlm.db", cfg.Database.Path)
	assert.EqualValues(t, 25, cfg.Gmail.MaxResults)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_MissingAPIKeyIsFatal(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := DefaultConfig()
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)

	cfg.AI.APIKey = "k-123"
	assert.NoError(t, cfg.Validate())
}

func TestAIConfig_DurationDefaults(t *testing.T) {
	var c AIConfig
	assert.Equal(t, 30*time.Second, c.Timeout())
	assert.Equal(t, 500*time.Millisecond, c.BaseDelay())

	c.TimeoutSeconds = 5
	c.BaseDelayMS = 50
	assert.Equal(t, 5*time.Second, c.Timeout())
	assert.Equal(t, 50*time.Millisecond, c.BaseDelay())
}

package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the unified inbox service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Gmail    GmailConfig    `yaml:"gmail"`
	Slack    SlackConfig    `yaml:"slack"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	AI       AIConfig       `yaml:"ai"`
	Pushover PushoverConfig `yaml:"pushover"`
}

type ServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type GmailConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsPath string `yaml:"credentials_path"`
	TokenPath       string `yaml:"token_path"`
	MaxResults      int64  `yaml:"max_results"`
}

type SlackConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

type WhatsAppConfig struct {
	Enabled     bool   `yaml:"enabled"`
	StoragePath string `yaml:"storage_path"`
}

type AIConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxAttempts    int    `yaml:"max_attempts"`
	BaseDelayMS    int    `yaml:"base_delay_ms"`
}

// Timeout returns the per-call timeout for AI provider requests.
func (c AIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BaseDelay returns the initial backoff delay for rate-limited retries.
func (c AIConfig) BaseDelay() time.Duration {
	if c.BaseDelayMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

type PushoverConfig struct {
	Enabled   bool   `yaml:"enabled"`
	AppToken  string `yaml:"app_token"`
	UserToken string `yaml:"user_token"`
}

// ErrMissingAPIKey is returned by Validate when no AI provider key is
// configured. The annotator cannot run without one, so startup must fail.
var ErrMissingAPIKey = errors.New("ai.api_key is required (set GEMINI_API_KEY)")

// Load reads configuration from a YAML file. Environment variable
// references in the file (e.g. ${GEMINI_API_KEY}) are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the fatal startup conditions. A missing AI key is a
// developer error and must stop the process rather than degrade silently.
func (c *Config) Validate() error {
	if c.AI.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// DefaultConfig returns a config with sensible defaults. Credentials still
// have to come from the config file or environment.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Database: DatabaseConfig{
			Path: "./data/inboxlm.db",
		},
		Gmail: GmailConfig{
			Enabled:         true,
			CredentialsPath: "./credentials.json",
			TokenPath:       "./token.json",
			MaxResults:      25,
		},
		Slack: SlackConfig{
			Enabled: true,
		},
		WhatsApp: WhatsAppConfig{
			Enabled:     false,
			StoragePath: "./data/whatsapp",
		},
		AI: AIConfig{
			APIKey:         os.Getenv("GEMINI_API_KEY"),
			Model:          "gemini-pro",
			TimeoutSeconds: 30,
			MaxAttempts:    3,
			BaseDelayMS:    500,
		},
	}
}

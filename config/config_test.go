package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"varsle/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
database = "varsle.db"
interval = "2m"
workers = 8
port = 9090

[analysis]
model = "gemini-2.5-flash"
prompt = "Summarize these posts."
entries = 3

[[servers]]
id = "srv-1"
name = "Gaming"
color = "#5865F2"

[[servers.channels]]
id = "chan-1"
name = "releases"
webhook_url = "https://discord.com/api/webhooks/1/abc"

[[servers.channels]]
id = "chan-2"
name = "news"

[[servers]]
id = "srv-2"
name = "Work"

[[servers.channels]]
id = "chan-3"
name = "alerts"
webhook_url = "https://discord.com/api/webhooks/3/xyz"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "varsle.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := config.LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "varsle.db", cfg.Database)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 2*time.Minute, cfg.TickInterval())
	require.Len(t, cfg.Servers, 2)
	assert.Len(t, cfg.Servers[0].Channels, 2)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestTickIntervalDefaults(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		expected time.Duration
	}{
		{name: "empty", interval: "", expected: time.Minute},
		{name: "garbage", interval: "often", expected: time.Minute},
		{name: "negative", interval: "-5m", expected: time.Minute},
		{name: "valid", interval: "30s", expected: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.TomlConfig{Interval: tt.interval}
			assert.Equal(t, tt.expected, cfg.TickInterval())
		})
	}
}

func TestDirectory(t *testing.T) {
	cfg, err := config.LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	directory := cfg.Directory()

	servers := directory.Servers()
	require.Len(t, servers, 2)
	assert.Equal(t, "srv-1", servers[0].ID)
	assert.Equal(t, "#5865F2", servers[0].Color)
	assert.True(t, servers[0].Active)

	channels := directory.Channels("srv-1")
	require.Len(t, channels, 2)
	assert.Equal(t, "chan-1", channels[0].ID)
	assert.Equal(t, "srv-1", channels[0].ServerID)

	assert.Empty(t, directory.Channels("srv-unknown"))
}

func TestWebhookURLsAndColors(t *testing.T) {
	cfg, err := config.LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	urls := cfg.WebhookURLs()
	assert.Equal(t, "https://discord.com/api/webhooks/1/abc", urls["chan-1"])
	assert.Equal(t, "https://discord.com/api/webhooks/3/xyz", urls["chan-3"])
	// Channels without a webhook are left out
	assert.NotContains(t, urls, "chan-2")

	colors := cfg.Colors()
	assert.Equal(t, "#5865F2", colors["chan-1"])
	assert.Equal(t, "#5865F2", colors["chan-2"])
	assert.Equal(t, "", colors["chan-3"])
}

func TestPromptTemplate(t *testing.T) {
	cfg, err := config.LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	template, err := cfg.PromptTemplate()
	require.NoError(t, err)
	assert.Equal(t, "Summarize these posts.", template)
}

func TestPromptTemplateFromFile(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(promptPath, []byte("From a file."), 0o644))

	cfg := &config.TomlConfig{}
	cfg.Analysis.PromptPath = promptPath

	template, err := cfg.PromptTemplate()
	require.NoError(t, err)
	assert.Equal(t, "From a file.", template)

	cfg.Analysis.PromptPath = ""
	_, err = cfg.PromptTemplate()
	assert.Error(t, err)
}

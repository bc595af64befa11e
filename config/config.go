package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"

	"varsle/models"
)

// TomlChannel represents a notification channel inside a server block.
type TomlChannel struct {
	ID         string `toml:"id"`
	Name       string `toml:"name"`
	WebhookURL string `toml:"webhook_url,omitempty"`
}

// TomlServer represents a chat server block.
type TomlServer struct {
	ID       string        `toml:"id"`
	Name     string        `toml:"name"`
	Color    string        `toml:"color,omitempty"`
	Channels []TomlChannel `toml:"channels"`
}

// TomlAnalysis holds the summarization settings.
type TomlAnalysis struct {
	Model      string `toml:"model"`
	Prompt     string `toml:"prompt,omitempty"`      // inline prompt template
	PromptPath string `toml:"prompt_path,omitempty"` // or a file to read it from
	Entries    int    `toml:"entries,omitempty"`     // recent entries per analysis
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Database string       `toml:"database"`
	Interval string       `toml:"interval,omitempty"`
	Workers  int          `toml:"workers,omitempty"`
	Port     int          `toml:"port,omitempty"`
	Analysis TomlAnalysis `toml:"analysis"`
	Servers  []TomlServer `toml:"servers"`
}

func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config TomlConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

// TickInterval parses the configured scheduler interval, defaulting to
// one minute when unset or unparsable.
func (c *TomlConfig) TickInterval() time.Duration {
	if c.Interval == "" {
		return time.Minute
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// PromptTemplate returns the analysis prompt, reading it from
// prompt_path when no inline prompt is configured.
func (c *TomlConfig) PromptTemplate() (string, error) {
	if c.Analysis.Prompt != "" {
		return c.Analysis.Prompt, nil
	}
	if c.Analysis.PromptPath == "" {
		return "", fmt.Errorf("no analysis prompt configured")
	}
	data, err := os.ReadFile(c.Analysis.PromptPath)
	if err != nil {
		return "", fmt.Errorf("error reading prompt file: %w", err)
	}
	return string(data), nil
}

// Directory is the live view of servers and channels the scheduler
// reconciles the store against. This implementation is backed by the
// static topology in the config file; a gateway-connected bot would
// supply its own.
type Directory struct {
	servers []TomlServer
}

func (c *TomlConfig) Directory() *Directory {
	return &Directory{servers: c.Servers}
}

func (d *Directory) Servers() []models.Server {
	return lo.Map(d.servers, func(s TomlServer, _ int) models.Server {
		return models.Server{ID: s.ID, Name: s.Name, Color: s.Color, Active: true}
	})
}

func (d *Directory) Channels(serverID string) []models.Channel {
	srv, ok := lo.Find(d.servers, func(s TomlServer) bool { return s.ID == serverID })
	if !ok {
		return nil
	}
	return lo.Map(srv.Channels, func(ch TomlChannel, _ int) models.Channel {
		return models.Channel{ID: ch.ID, ServerID: srv.ID, Name: ch.Name, Active: true}
	})
}

// WebhookURLs flattens the topology into a channel id → webhook url map
// for the outbound notifier.
func (c *TomlConfig) WebhookURLs() map[string]string {
	urls := make(map[string]string)
	for _, srv := range c.Servers {
		for _, ch := range srv.Channels {
			if ch.WebhookURL != "" {
				urls[ch.ID] = ch.WebhookURL
			}
		}
	}
	return urls
}

// Colors maps every channel id to its server's embed color.
func (c *TomlConfig) Colors() map[string]string {
	colors := make(map[string]string)
	for _, srv := range c.Servers {
		for _, ch := range srv.Channels {
			colors[ch.ID] = srv.Color
		}
	}
	return colors
}

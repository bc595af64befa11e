package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"varsle/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/labstack/gommon/log"
)

// Embed is the rich content block of a webhook message.
type Embed struct {
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	Description string      `json:"description,omitempty"`
	Color       int         `json:"color,omitempty"`
	Image       *EmbedImage `json:"image,omitempty"`
	Footer      *Footer     `json:"footer,omitempty"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type Footer struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type payload struct {
	Embeds []Embed `json:"embeds"`
}

// Webhook posts notifications to per-channel webhook endpoints using the
// embed message format chat platforms accept.
type Webhook struct {
	urls   map[string]string
	colors map[string]string
	client *http.Client
}

// NewWebhook builds a notifier from channel id → webhook url and channel
// id → embed color (hex like "#5865F2" or a decimal string) maps.
func NewWebhook(urls map[string]string, colors map[string]string) *Webhook {
	return &Webhook{
		urls:   urls,
		colors: colors,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *Webhook) Send(ctx context.Context, notification models.Notification) error {
	url, ok := w.urls[notification.Channel.ID]
	if !ok || url == "" {
		return fmt.Errorf("no webhook configured for channel %s", notification.Channel.ID)
	}

	body, err := json.Marshal(payload{Embeds: []Embed{w.embed(notification)}})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	// Webhook endpoints rate limit aggressively, back off and retry on 429
	// and transient server errors.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = time.Minute

	return backoff.Retry(func() error {
		return w.post(ctx, url, body)
	}, backoff.WithContext(bo, ctx))
}

func (w *Webhook) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		log.Errorf("failed to post webhook: %s", err)
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		log.Warnf("webhook returned %d, retrying", resp.StatusCode)
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("webhook returned %d", resp.StatusCode))
	}
}

func (w *Webhook) embed(notification models.Notification) Embed {
	entry := notification.Entry
	feed := notification.Feed

	embed := Embed{
		Title:       entry.Title,
		URL:         entry.Link,
		Description: entry.Description,
		Color:       parseColor(w.colors[notification.Channel.ID]),
	}

	if entry.Image != "" {
		embed.Image = &EmbedImage{URL: entry.Image}
	}

	if feed.Title != "" {
		embed.Footer = &Footer{
			Text:    feed.Title,
			IconURL: feed.Logo,
		}
	}

	return embed
}

// parseColor reads "#RRGGBB" as hex and anything else as decimal.
func parseColor(color string) int {
	color = strings.TrimSpace(color)
	if color == "" {
		return 0
	}
	base := 10
	if strings.HasPrefix(color, "#") {
		color = strings.TrimPrefix(color, "#")
		base = 16
	}
	n, err := strconv.ParseInt(color, base, 32)
	if err != nil {
		return 0
	}
	return int(n)
}

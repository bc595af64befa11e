package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NormalizeURL cleans up a user-supplied address: trims it, prefixes
// https:// when no scheme is present and collapses redundant slash runs
// after the scheme.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	raw = strings.ReplaceAll(raw, ":///", "://")
	raw = strings.ReplaceAll(raw, "///", "//")
	return raw
}

// DiscoverFeedURL fetches a web page and extracts the advertised RSS
// feed address from its <link type="application/rss+xml"> element.
func DiscoverFeedURL(ctx context.Context, client *http.Client, pageURL string) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, NormalizeURL(pageURL), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "varsle/1.0")

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: unexpected status %s", pageURL, res.Status)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", err
	}

	href, ok := doc.Find(`link[type="application/rss+xml"]`).First().Attr("href")
	if !ok || href == "" {
		return "", fmt.Errorf("no rss link advertised at %s", pageURL)
	}

	return href, nil
}

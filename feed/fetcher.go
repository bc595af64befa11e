package feed

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"varsle/models"
)

const fetchTimeout = 30 * time.Second

// StripFunc converts an HTML fragment to plain text. The default is
// StripHTML; callers can plug in their own extraction step.
type StripFunc func(string) string

// Parser fetches a feed address and turns the document into normalized
// feed and entry records. RSS and Atom field differences are folded by
// gofeed; the fallback chains below cover what sources leave out.
type Parser struct {
	Strip StripFunc // optional, defaults to StripHTML

	fp *gofeed.Parser
}

func NewParser() *Parser {
	fp := gofeed.NewParser()
	fp.Client = &http.Client{Timeout: fetchTimeout}
	fp.UserAgent = "varsle/1.0"
	return &Parser{fp: fp}
}

// Fetch retrieves and parses the feed at addr. A feed with zero entries
// is not an error: the feed record comes back with a nil entry slice.
// Network and parse failures surface as errors for the caller to log
// and skip; they never carry partial data.
func (p *Parser) Fetch(ctx context.Context, addr string) (models.Feed, []models.Entry, error) {
	parsed, err := p.fp.ParseURLWithContext(addr, ctx)
	if err != nil {
		return models.Feed{}, nil, err
	}

	feed := p.normalizeFeed(parsed, addr)

	if len(parsed.Items) == 0 {
		return feed, nil, nil
	}

	entries := make([]models.Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entries = append(entries, p.normalizeEntry(item, feed))
	}

	return feed, entries, nil
}

// normalizeFeed resolves feed-level metadata. The fetch address is the
// fallback identity when the source omits its own link or self link.
func (p *Parser) normalizeFeed(parsed *gofeed.Feed, addr string) models.Feed {
	logo := ""
	if parsed.Image != nil {
		logo = parsed.Image.URL
	}

	return models.Feed{
		Link:        firstNonEmpty(parsed.Link, addr),
		AtomLink:    firstNonEmpty(parsed.FeedLink, addr),
		Title:       parsed.Title,
		Description: parsed.Description,
		Logo:        logo,
		PublishedAt: firstNonEmpty(parsed.Published, parsed.Updated),
		Active:      true,
	}
}

// normalizeEntry extracts a stable identity, plain-text description,
// image and publish date from one raw item.
func (p *Parser) normalizeEntry(item *gofeed.Item, feed models.Feed) models.Entry {
	strip := p.Strip
	if strip == nil {
		strip = StripHTML
	}

	description := strip(firstNonEmpty(item.Content, item.Description))

	// GitHub Atom feeds wrap release notes in markup whose whitespace
	// survives text extraction; collapse it so one entry stays one line.
	if strings.Contains(feed.AtomLink, "github.com") {
		description = collapseWhitespace(description)
	}

	return models.Entry{
		Link:        item.Link,
		FeedLink:    feed.Link,
		AtomLink:    feed.AtomLink,
		Title:       strings.TrimSpace(item.Title),
		Description: description,
		Image:       mediaImage(item),
		PublishedAt: firstNonEmpty(item.Published, item.Updated),
	}
}

// mediaImage resolves an entry image from the media RSS extension:
// thumbnail first, content second.
func mediaImage(item *gofeed.Item) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}
	if thumbs := media["thumbnail"]; len(thumbs) > 0 {
		if url := thumbs[0].Attrs["url"]; url != "" {
			return url
		}
	}
	if contents := media["content"]; len(contents) > 0 {
		if url := contents[0].Attrs["url"]; url != "" {
			return url
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

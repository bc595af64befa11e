package feed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"varsle/feed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssWithEntries = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Example Blog</title>
    <link>https://example.com/blog</link>
    <description>Posts about things</description>
    <image>
      <url>https://example.com/logo.png</url>
      <title>Example Blog</title>
      <link>https://example.com/blog</link>
    </image>
    <item>
      <title>  First post  </title>
      <link>https://example.com/blog/first</link>
      <description>&lt;p&gt;Hello &lt;b&gt;world&lt;/b&gt;&lt;/p&gt;&lt;script&gt;alert(1)&lt;/script&gt;</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
      <media:thumbnail url="https://example.com/thumb.jpg"/>
    </item>
    <item>
      <title>Second post</title>
      <link>https://example.com/blog/second</link>
      <description>Plain text only</description>
    </item>
  </channel>
</rss>`

const rssNoEntries = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Quiet Feed</title>
    <description>Nothing yet</description>
  </channel>
</rss>`

func serveXML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
}

func TestFetchNormalizesFeedAndEntries(t *testing.T) {
	srv := serveXML(t, rssWithEntries)
	defer srv.Close()

	parser := feed.NewParser()
	f, entries, err := parser.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Example Blog", f.Title)
	assert.Equal(t, "https://example.com/blog", f.Link)
	// RSS has no atom self link, identity falls back to the fetch address
	assert.Equal(t, srv.URL, f.AtomLink)
	assert.Equal(t, "https://example.com/logo.png", f.Logo)
	assert.True(t, f.Active)

	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "First post", first.Title)
	assert.Equal(t, "https://example.com/blog/first", first.Link)
	assert.Equal(t, "Hello world", first.Description)
	assert.NotContains(t, first.Description, "<")
	assert.NotContains(t, first.Description, "alert")
	assert.Equal(t, "https://example.com/thumb.jpg", first.Image)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", first.PublishedAt)
	assert.Equal(t, f.Link, first.FeedLink)
	assert.Equal(t, f.AtomLink, first.AtomLink)

	assert.Equal(t, "Plain text only", entries[1].Description)
	assert.Empty(t, entries[1].Image)
}

func TestFetchFeedWithoutEntries(t *testing.T) {
	srv := serveXML(t, rssNoEntries)
	defer srv.Close()

	parser := feed.NewParser()
	f, entries, err := parser.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Quiet Feed", f.Title)
	// No link in the document at all, both identities fall back
	assert.Equal(t, srv.URL, f.Link)
	assert.Equal(t, srv.URL, f.AtomLink)
	assert.Nil(t, entries)
}

func TestFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	parser := feed.NewParser()
	_, entries, err := parser.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.Nil(t, entries)
}

func TestFetchCollapsesGitHubReleaseNotes(t *testing.T) {
	atom := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Release notes from example</title>
  <link rel="self" href="https://github.com/example/project/releases.atom"/>
  <link rel="alternate" href="https://github.com/example/project/releases"/>
  <entry>
    <title>v1.2.3</title>
    <link rel="alternate" href="https://github.com/example/project/releases/tag/v1.2.3"/>
    <content type="html">&lt;h2&gt;Changes&lt;/h2&gt;

&lt;ul&gt;
&lt;li&gt;Fixed a bug&lt;/li&gt;

&lt;li&gt;Added   a feature&lt;/li&gt;
&lt;/ul&gt;</content>
    <updated>2024-05-01T10:00:00Z</updated>
  </entry>
</feed>`

	srv := serveXML(t, atom)
	defer srv.Close()

	parser := feed.NewParser()
	f, entries, err := parser.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Contains(t, f.AtomLink, "github.com")

	description := entries[0].Description
	assert.Equal(t, "Changes Fixed a bug Added a feature", description)
	assert.NotContains(t, description, "\n")
	assert.NotContains(t, description, "  ")
	assert.Equal(t, description, strings.TrimSpace(description))
}

func TestFetchCustomStrip(t *testing.T) {
	srv := serveXML(t, rssWithEntries)
	defer srv.Close()

	parser := feed.NewParser()
	parser.Strip = func(string) string { return "stripped" }

	_, entries, err := parser.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "stripped", entries[0].Description)
}

package models

// Server is a chat server (guild) that contains notification channels.
type Server struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color,omitempty"`
	Active bool   `json:"active"`
}

// Channel is a delivery target: a server channel or, when ServerID is
// empty, a direct-message recipient.
type Channel struct {
	ID       string `json:"id"`
	ServerID string `json:"serverId,omitempty"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
}

// Feed is a feed registration bound to a single channel. Link is the
// canonical page link of the feed, AtomLink the feed-level identity used
// as the dedup namespace. Both fall back to the fetch address when the
// source omits them.
type Feed struct {
	Link        string `json:"link"`
	AtomLink    string `json:"atomLink"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Logo        string `json:"logo,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
	ChannelID   string `json:"channelId"`
	Active      bool   `json:"active"`
}

// Entry is one delivered feed item. Rows are written at most once per
// (Link, ChannelID) pair and only removed by explicit purges.
type Entry struct {
	Link        string `json:"link"`
	FeedLink    string `json:"feedLink"`
	AtomLink    string `json:"atomLink"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
	ChannelID   string `json:"channelId"`
}

// Notification pairs a fresh entry with the feed and channel it belongs
// to, as handed to outbound notifiers.
type Notification struct {
	Channel Channel `json:"channel"`
	Feed    Feed    `json:"feed"`
	Entry   Entry   `json:"entry"`
}

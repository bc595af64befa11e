package scheduler_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"varsle/models"
	"varsle/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	servers  map[string]models.Server
	channels map[string]models.Channel
	feeds    map[string][]models.Feed
	updated  []models.Feed
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		servers:  make(map[string]models.Server),
		channels: make(map[string]models.Channel),
		feeds:    make(map[string][]models.Feed),
	}
}

func (s *fakeStore) UpsertServer(_ context.Context, server models.Server) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[server.ID] = server
	return nil
}

func (s *fakeStore) UpsertChannel(_ context.Context, channel models.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[channel.ID] = channel
	return nil
}

func (s *fakeStore) ListFeedsByChannel(_ context.Context, channelID string, _ bool) ([]models.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeds[channelID], nil
}

func (s *fakeStore) UpdateFeed(_ context.Context, feed models.Feed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, feed)
	return nil
}

type fakeLedger struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{seen: make(map[string]bool)}
}

func (l *fakeLedger) TryRecord(_ context.Context, entry models.Entry) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := entry.Link + "_" + entry.ChannelID
	if l.seen[key] {
		return false, nil
	}
	l.seen[key] = true
	return true, nil
}

type fakeSource struct {
	mu      sync.Mutex
	entries map[string][]models.Entry
	err     error
	fetches int
}

func (f *fakeSource) Fetch(_ context.Context, addr string) (models.Feed, []models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return models.Feed{}, nil, f.err
	}
	feed := models.Feed{Link: addr, AtomLink: addr, Title: "Feed " + addr, Active: true}
	return feed, f.entries[addr], nil
}

func (f *fakeSource) setEntries(addr string, entries []models.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[addr] = entries
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *fakeNotifier) Send(_ context.Context, notification models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *fakeNotifier) notifications() []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notification(nil), n.sent...)
}

type fakeDirectory struct {
	servers  []models.Server
	channels map[string][]models.Channel
}

func (d *fakeDirectory) Servers() []models.Server { return d.servers }

func (d *fakeDirectory) Channels(serverID string) []models.Channel {
	return d.channels[serverID]
}

func testTopology() (*fakeDirectory, *fakeStore) {
	directory := &fakeDirectory{
		servers: []models.Server{{ID: "srv-1", Name: "Test"}},
		channels: map[string][]models.Channel{
			"srv-1": {{ID: "chan-1", ServerID: "srv-1", Name: "releases"}},
		},
	}

	store := newFakeStore()
	store.feeds["chan-1"] = []models.Feed{
		{Link: "https://example.com", AtomLink: "https://example.com/feed.xml", ChannelID: "chan-1", Active: true},
	}
	return directory, store
}

func entry(link string) models.Entry {
	return models.Entry{Link: link, Title: "Entry " + link}
}

func TestTickDeliversOnlyFreshEntries(t *testing.T) {
	directory, store := testTopology()
	source := &fakeSource{entries: make(map[string][]models.Entry)}
	notifier := &fakeNotifier{}

	sched := scheduler.New(store, newFakeLedger(), source, notifier, directory, time.Minute, 2)

	ctx := context.Background()

	// First tick sees E1
	source.setEntries("https://example.com/feed.xml", []models.Entry{entry("https://example.com/e1")})
	sched.Tick(ctx)

	// Second tick sees the same head entry, nothing fresh
	sched.Tick(ctx)

	// Third tick sees a new head entry
	source.setEntries("https://example.com/feed.xml", []models.Entry{
		entry("https://example.com/e2"),
		entry("https://example.com/e1"),
	})
	sched.Tick(ctx)

	sent := notifier.notifications()
	require.Len(t, sent, 2)
	assert.Equal(t, "https://example.com/e1", sent[0].Entry.Link)
	assert.Equal(t, "https://example.com/e2", sent[1].Entry.Link)
	assert.Equal(t, "chan-1", sent[0].Channel.ID)
	assert.Equal(t, "chan-1", sent[0].Entry.ChannelID)
}

func TestTickReconcilesTopology(t *testing.T) {
	directory, store := testTopology()
	source := &fakeSource{entries: make(map[string][]models.Entry)}

	sched := scheduler.New(store, newFakeLedger(), source, &fakeNotifier{}, directory, time.Minute, 2)
	sched.Tick(context.Background())

	assert.Contains(t, store.servers, "srv-1")
	assert.Contains(t, store.channels, "chan-1")
	// Feed metadata refreshed from the fetch
	require.Len(t, store.updated, 1)
	assert.Equal(t, "chan-1", store.updated[0].ChannelID)
}

func TestTickSurvivesFetchErrors(t *testing.T) {
	directory, store := testTopology()
	store.feeds["chan-1"] = append(store.feeds["chan-1"],
		models.Feed{Link: "https://good.com", AtomLink: "https://good.com/feed.xml", ChannelID: "chan-1", Active: true})

	source := &fakeSource{entries: make(map[string][]models.Entry), err: fmt.Errorf("connection refused")}
	notifier := &fakeNotifier{}

	sched := scheduler.New(store, newFakeLedger(), source, notifier, directory, time.Minute, 2)
	sched.Tick(context.Background())

	// Both feeds attempted despite errors, nothing delivered
	assert.Equal(t, 2, source.fetches)
	assert.Empty(t, notifier.notifications())
}

func TestTickSkipsFeedWithoutEntries(t *testing.T) {
	directory, store := testTopology()
	source := &fakeSource{entries: make(map[string][]models.Entry)}
	notifier := &fakeNotifier{}

	sched := scheduler.New(store, newFakeLedger(), source, notifier, directory, time.Minute, 2)
	sched.Tick(context.Background())

	assert.Empty(t, notifier.notifications())
}

type blockingNotifier struct {
	mu      sync.Mutex
	started chan struct{}
	release chan struct{}
	sent    []models.Notification
	ctxErr  error
}

func (n *blockingNotifier) Send(ctx context.Context, notification models.Notification) error {
	close(n.started)
	<-n.release

	n.mu.Lock()
	defer n.mu.Unlock()
	n.ctxErr = ctx.Err()
	if n.ctxErr != nil {
		return n.ctxErr
	}
	n.sent = append(n.sent, notification)
	return nil
}

func TestStopWaitsForInFlightDelivery(t *testing.T) {
	directory, store := testTopology()
	source := &fakeSource{entries: make(map[string][]models.Entry)}
	source.setEntries("https://example.com/feed.xml", []models.Entry{entry("https://example.com/e1")})

	ledger := newFakeLedger()
	notifier := &blockingNotifier{started: make(chan struct{}), release: make(chan struct{})}

	sched := scheduler.New(store, ledger, source, notifier, directory, time.Hour, 2)
	require.True(t, sched.Start(context.Background()))

	// The immediate tick claims the entry in the ledger and blocks in Send
	<-notifier.started

	stopped := make(chan struct{})
	go func() {
		sched.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a delivery was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(notifier.release)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the tick finished")
	}

	// The claimed entry went out before shutdown completed
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.NoError(t, notifier.ctxErr)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "https://example.com/e1", notifier.sent[0].Entry.Link)
}

func TestStartStop(t *testing.T) {
	directory, store := testTopology()
	source := &fakeSource{entries: make(map[string][]models.Entry)}

	sched := scheduler.New(store, newFakeLedger(), source, &fakeNotifier{}, directory, time.Hour, 2)

	assert.False(t, sched.IsRunning())
	assert.True(t, sched.Start(context.Background()))
	assert.True(t, sched.IsRunning())

	// Second start is rejected while running
	assert.False(t, sched.Start(context.Background()))

	sched.Stop()
	assert.False(t, sched.IsRunning())

	// The immediate tick on start fetched the registered feed
	source.mu.Lock()
	fetches := source.fetches
	source.mu.Unlock()
	assert.GreaterOrEqual(t, fetches, 1)
}

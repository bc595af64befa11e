package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"varsle/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	tickCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "varsle_scheduler_ticks_total",
		Help: "The total number of completed scheduler ticks",
	})

	fetchCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "varsle_feed_fetches_total",
		Help: "The total number of feed fetch attempts",
	})

	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "varsle_feed_fetch_errors_total",
		Help: "The total number of failed feed fetches",
	})

	notificationsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "varsle_notifications_delivered_total",
		Help: "The total number of notifications handed to the notifier",
	})

	duplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "varsle_duplicates_skipped_total",
		Help: "The total number of entries skipped because they were already delivered",
	})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "varsle_scheduler_tick_duration_seconds",
		Help:    "Duration of a full scheduler tick",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // Start at 100ms, double each bucket, 10 buckets
	})
)

// Store is the registration state the scheduler reconciles and reads.
type Store interface {
	UpsertServer(ctx context.Context, server models.Server) error
	UpsertChannel(ctx context.Context, channel models.Channel) error
	ListFeedsByChannel(ctx context.Context, channelID string, onlyActive bool) ([]models.Feed, error)
	UpdateFeed(ctx context.Context, feed models.Feed) error
}

// Ledger records deliveries. TryRecord returns true exactly once per
// entry/channel pair.
type Ledger interface {
	TryRecord(ctx context.Context, entry models.Entry) (bool, error)
}

// Source fetches and normalizes a feed from its address.
type Source interface {
	Fetch(ctx context.Context, addr string) (models.Feed, []models.Entry, error)
}

// Notifier delivers a notification to a channel.
type Notifier interface {
	Send(ctx context.Context, notification models.Notification) error
}

// Directory is the configured server/channel topology.
type Directory interface {
	Servers() []models.Server
	Channels(serverID string) []models.Channel
}

// Scheduler drives the poll loop: on each tick it reconciles the configured
// topology into the store, then fetches every registered feed and notifies
// channels about entries not seen before.
type Scheduler struct {
	store     Store
	ledger    Ledger
	source    Source
	notifier  Notifier
	directory Directory

	interval time.Duration
	workers  int

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

func New(store Store, ledger Ledger, source Source, notifier Notifier, directory Directory, interval time.Duration, workers int) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if workers <= 0 {
		workers = 4
	}
	return &Scheduler{
		store:     store,
		ledger:    ledger,
		source:    source,
		notifier:  notifier,
		directory: directory,
		interval:  interval,
		workers:   workers,
	}
}

// Start launches the tick loop. Returns false if the scheduler was already
// running. The first tick runs immediately.
func (s *Scheduler) Start(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	log.WithFields(log.Fields{
		"interval": s.interval,
		"workers":  s.workers,
	}).Info("Starting scheduler")

	go s.run(ctx)
	return true
}

// Stop tells the loop to exit and waits for the in-flight tick to run to
// completion. The tick's context stays alive so a delivery claimed in the
// ledger is never cut off before its notification goes out; cancelling the
// context passed to Start remains the hard-abort path.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
	<-s.done
	log.Info("Scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// run executes ticks on a single goroutine, so a slow tick delays the next
// one instead of overlapping it. The stop signal is only checked between
// ticks; a tick in progress always finishes first.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Tick runs one reconcile-and-dispatch pass. Exposed for one-shot runs.
func (s *Scheduler) Tick(ctx context.Context) {
	s.tick(ctx)
}

func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()

	channels := s.reconcile(ctx)
	s.dispatch(ctx, channels)

	tickCount.Inc()
	tickDuration.Observe(time.Since(start).Seconds())
}

// reconcile pushes the configured topology into the store and returns the
// channels to poll. Failures are logged per item; a channel that failed to
// upsert is still polled with its stored registrations.
func (s *Scheduler) reconcile(ctx context.Context) []models.Channel {
	var channels []models.Channel

	for _, server := range s.directory.Servers() {
		if err := s.store.UpsertServer(ctx, server); err != nil {
			log.WithFields(log.Fields{
				"server": server.ID,
				"error":  err,
			}).Error("Failed to upsert server")
		}

		for _, channel := range s.directory.Channels(server.ID) {
			if err := s.store.UpsertChannel(ctx, channel); err != nil {
				log.WithFields(log.Fields{
					"channel": channel.ID,
					"error":   err,
				}).Error("Failed to upsert channel")
			}
			channels = append(channels, channel)
		}
	}

	return channels
}

// dispatch polls every channel's feeds on a bounded worker pool.
func (s *Scheduler) dispatch(ctx context.Context, channels []models.Channel) {
	type job struct {
		channel models.Channel
		feed    models.Feed
	}

	jobs := make(chan job)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				s.poll(ctx, j.channel, j.feed)
			}
		}()
	}

	for _, channel := range channels {
		feeds, err := s.store.ListFeedsByChannel(ctx, channel.ID, true)
		if err != nil {
			log.WithFields(log.Fields{
				"channel": channel.ID,
				"error":   err,
			}).Error("Failed to list feeds for channel")
			continue
		}

		for _, feed := range feeds {
			select {
			case <-ctx.Done():
				close(jobs)
				wg.Wait()
				return
			case jobs <- job{channel: channel, feed: feed}:
			}
		}
	}

	close(jobs)
	wg.Wait()
}

// poll fetches one feed and delivers its newest entry if unseen. Every
// failure is logged and swallowed so one broken feed never stalls the tick.
func (s *Scheduler) poll(ctx context.Context, channel models.Channel, registered models.Feed) {
	fetchCount.Inc()

	feed, entries, err := s.source.Fetch(ctx, registered.AtomLink)
	if err != nil {
		fetchErrors.Inc()
		log.WithFields(log.Fields{
			"feed":    registered.AtomLink,
			"channel": channel.ID,
			"error":   err,
		}).Warn("Failed to fetch feed")
		return
	}

	feed.ChannelID = channel.ID
	if err := s.store.UpdateFeed(ctx, feed); err != nil {
		log.WithFields(log.Fields{
			"feed":    feed.AtomLink,
			"channel": channel.ID,
			"error":   err,
		}).Error("Failed to refresh feed metadata")
	}

	if len(entries) == 0 {
		return
	}

	// Feeds list newest first, so only the head entry is a candidate for
	// delivery. Older entries are left for history.
	entry := entries[0]
	entry.ChannelID = channel.ID

	fresh, err := s.ledger.TryRecord(ctx, entry)
	if err != nil {
		log.WithFields(log.Fields{
			"entry":   entry.Link,
			"channel": channel.ID,
			"error":   err,
		}).Error("Failed to record delivery")
		return
	}
	if !fresh {
		duplicatesSkipped.Inc()
		return
	}

	notification := models.Notification{
		Channel: channel,
		Feed:    feed,
		Entry:   entry,
	}

	if err := s.notifier.Send(ctx, notification); err != nil {
		log.WithFields(log.Fields{
			"entry":   entry.Link,
			"channel": channel.ID,
			"error":   err,
		}).Error("Failed to deliver notification")
		return
	}

	notificationsDelivered.Inc()
	log.WithFields(log.Fields{
		"entry":   entry.Link,
		"channel": channel.ID,
		"feed":    feed.AtomLink,
	}).Info("Delivered notification")
}

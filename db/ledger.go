package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"varsle/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// TryRecord marks an entry as delivered for its channel. Returns true if the
// entry was not seen before and the caller should notify, false if a prior
// delivery already claimed it. The insert-if-absent is a single statement so
// two concurrent calls for the same entry resolve to exactly one true.
func (db *DB) TryRecord(ctx context.Context, entry models.Entry) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	id := EntryKey(entry.Link, entry.ChannelID)

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertIgnoreInto("entries").
		Cols("id", "link", "feed_link", "atom_link", "title", "description", "image", "published_at", "channel_id", "created_at").
		Values(id, entry.Link, entry.FeedLink, entry.AtomLink, entry.Title, entry.Description,
			entry.Image, entry.PublishedAt, entry.ChannelID, time.Now().Unix())

	sql, args := ib.Build()
	res, err := db.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("record entry error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return affected == 1, nil
}

func (db *DB) GetEntry(ctx context.Context, link, channelID string) (*models.Entry, error) {
	var entry models.Entry
	err := db.db.QueryRowContext(ctx, `
		SELECT link, feed_link, atom_link, title, description, image, published_at, channel_id
		FROM entries WHERE id = ?`,
		EntryKey(link, channelID),
	).Scan(&entry.Link, &entry.FeedLink, &entry.AtomLink, &entry.Title,
		&entry.Description, &entry.Image, &entry.PublishedAt, &entry.ChannelID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	return &entry, nil
}

func (db *DB) CountEntries(ctx context.Context, channelID string) (int64, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("count(*)").From("entries")
	if channelID != "" {
		sb.Where(sb.Equal("channel_id", channelID))
	}

	sql, args := sb.Build()
	var count int64
	if err := db.db.QueryRowContext(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("query error: %w", err)
	}
	return count, nil
}

// DeleteEntry removes a single delivery record so the entry would be
// delivered again if it reappears in the feed.
func (db *DB) DeleteEntry(ctx context.Context, link, channelID string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", EntryKey(link, channelID))
	if err != nil {
		return fmt.Errorf("delete entry error: %w", err)
	}
	return nil
}

func (db *DB) DeleteEntriesByFeed(ctx context.Context, atomLink, channelID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log.WithFields(log.Fields{
		"feed":    atomLink,
		"channel": channelID,
	}).Info("Deleting delivery records for feed")

	res, err := db.db.ExecContext(ctx,
		"DELETE FROM entries WHERE atom_link = ? AND channel_id = ?",
		atomLink, channelID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete entries error: %w", err)
	}
	return res.RowsAffected()
}

func (db *DB) DeleteEntriesByChannel(ctx context.Context, channelID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log.WithField("channel", channelID).Info("Deleting delivery records for channel")

	res, err := db.db.ExecContext(ctx, "DELETE FROM entries WHERE channel_id = ?", channelID)
	if err != nil {
		return 0, fmt.Errorf("delete entries error: %w", err)
	}
	return res.RowsAffected()
}

// PurgeEntries drops every delivery record. Delivery rows are pure dedup
// cache; a full purge means every feed's current head entry gets delivered
// once more.
func (db *DB) PurgeEntries(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log.Warn("Purging all delivery records")

	res, err := db.db.ExecContext(ctx, "DELETE FROM entries")
	if err != nil {
		return 0, fmt.Errorf("purge entries error: %w", err)
	}
	return res.RowsAffected()
}

// ListEntries returns the most recently recorded deliveries for a channel,
// newest first. Used to build analysis digests.
func (db *DB) ListEntries(ctx context.Context, channelID string, limit int) ([]models.Entry, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("link", "feed_link", "atom_link", "title", "description", "image", "published_at", "channel_id").
		From("entries")
	if channelID != "" {
		sb.Where(sb.Equal("channel_id", channelID))
	}
	sb.OrderBy("created_at").Desc()
	sb.Limit(limit)

	sql, args := sb.Build()
	rows, err := db.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var entry models.Entry
		if err := rows.Scan(&entry.Link, &entry.FeedLink, &entry.AtomLink, &entry.Title,
			&entry.Description, &entry.Image, &entry.PublishedAt, &entry.ChannelID); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

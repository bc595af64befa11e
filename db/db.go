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

// DB handles all database operations with a shared connection
type DB struct {
	db *sql.DB
}

func NewDB(database string) (*DB, error) {
	db, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return &DB{db: db}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Server operations

func (db *DB) UpsertServer(ctx context.Context, server models.Server) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(ctx, `
		INSERT INTO servers (id, name, color, is_active)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			color = excluded.color,
			is_active = 1`,
		server.ID,
		server.Name,
		server.Color,
	)
	if err != nil {
		return fmt.Errorf("upsert server error: %w", err)
	}

	return nil
}

func (db *DB) DeactivateServer(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log.WithField("server", id).Info("Deactivating server")
	_, err := db.db.ExecContext(ctx, "UPDATE servers SET is_active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deactivate server error: %w", err)
	}
	return nil
}

func (db *DB) GetServer(ctx context.Context, id string) (*models.Server, error) {
	var server models.Server
	err := db.db.QueryRowContext(ctx,
		"SELECT id, name, color, is_active FROM servers WHERE id = ?", id,
	).Scan(&server.ID, &server.Name, &server.Color, &server.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	return &server, nil
}

func (db *DB) ListServers(ctx context.Context, onlyActive bool) ([]models.Server, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "name", "color", "is_active").From("servers")
	if onlyActive {
		sb.Where(sb.Equal("is_active", 1))
	}
	sb.OrderBy("id").Asc()

	sql, args := sb.Build()
	rows, err := db.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var servers []models.Server
	for rows.Next() {
		var server models.Server
		if err := rows.Scan(&server.ID, &server.Name, &server.Color, &server.Active); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		servers = append(servers, server)
	}

	return servers, rows.Err()
}

// Channel operations

func (db *DB) UpsertChannel(ctx context.Context, channel models.Channel) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(ctx, `
		INSERT INTO channels (id, server_id, name, is_active)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (id) DO UPDATE SET
			server_id = excluded.server_id,
			name = excluded.name,
			is_active = 1`,
		channel.ID,
		channel.ServerID,
		channel.Name,
	)
	if err != nil {
		return fmt.Errorf("upsert channel error: %w", err)
	}

	return nil
}

func (db *DB) DeactivateChannel(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log.WithField("channel", id).Info("Deactivating channel")
	_, err := db.db.ExecContext(ctx, "UPDATE channels SET is_active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deactivate channel error: %w", err)
	}
	return nil
}

func (db *DB) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	var channel models.Channel
	err := db.db.QueryRowContext(ctx,
		"SELECT id, server_id, name, is_active FROM channels WHERE id = ?", id,
	).Scan(&channel.ID, &channel.ServerID, &channel.Name, &channel.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	return &channel, nil
}

func (db *DB) ListChannels(ctx context.Context, onlyActive bool) ([]models.Channel, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "server_id", "name", "is_active").From("channels")
	if onlyActive {
		sb.Where(sb.Equal("is_active", 1))
	}
	sb.OrderBy("server_id", "id").Asc()

	sql, args := sb.Build()
	rows, err := db.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		var channel models.Channel
		if err := rows.Scan(&channel.ID, &channel.ServerID, &channel.Name, &channel.Active); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		channels = append(channels, channel)
	}

	return channels, rows.Err()
}

// Feed operations

// InsertFeed registers a feed for a channel. Returns true if the feed was
// newly registered, false if a row with the same identity already existed.
func (db *DB) InsertFeed(ctx context.Context, feed models.Feed) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	id := FeedKey(feed.Link, feed.AtomLink, feed.ChannelID)

	log.WithFields(log.Fields{
		"feed":    feed.AtomLink,
		"channel": feed.ChannelID,
	}).Info("Registering feed")

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertIgnoreInto("feeds").
		Cols("id", "link", "atom_link", "title", "description", "logo", "published_at", "channel_id", "is_active").
		Values(id, feed.Link, feed.AtomLink, feed.Title, feed.Description, feed.Logo, feed.PublishedAt, feed.ChannelID, 1)

	sql, args := ib.Build()
	res, err := db.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("insert feed error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return affected == 1, nil
}

// UpdateFeed refreshes the stored metadata for a feed registration and
// reactivates it if it had been soft-deleted.
func (db *DB) UpdateFeed(ctx context.Context, feed models.Feed) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("feeds").Set(
		ub.Assign("title", feed.Title),
		ub.Assign("description", feed.Description),
		ub.Assign("logo", feed.Logo),
		ub.Assign("published_at", feed.PublishedAt),
		ub.Assign("is_active", 1),
	).Where(
		ub.Equal("atom_link", feed.AtomLink),
		ub.Equal("channel_id", feed.ChannelID),
	)

	sql, args := ub.Build()
	if _, err := db.db.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("update feed error: %w", err)
	}
	return nil
}

// SoftDeleteFeed deactivates a feed registration without removing the row,
// so the registration history survives for later reactivation.
func (db *DB) SoftDeleteFeed(ctx context.Context, atomLink, channelID string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log.WithFields(log.Fields{
		"feed":    atomLink,
		"channel": channelID,
	}).Info("Deactivating feed")

	_, err := db.db.ExecContext(ctx,
		"UPDATE feeds SET is_active = 0 WHERE atom_link = ? AND channel_id = ?",
		atomLink, channelID,
	)
	if err != nil {
		return fmt.Errorf("deactivate feed error: %w", err)
	}
	return nil
}

// SoftDeleteFeedsByChannel deactivates every feed registered to a channel.
// Returns the number of rows flipped.
func (db *DB) SoftDeleteFeedsByChannel(ctx context.Context, channelID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log.WithField("channel", channelID).Info("Deactivating feeds for channel")

	res, err := db.db.ExecContext(ctx,
		"UPDATE feeds SET is_active = 0 WHERE channel_id = ?", channelID)
	if err != nil {
		return 0, fmt.Errorf("deactivate feeds error: %w", err)
	}
	return res.RowsAffected()
}

func (db *DB) GetFeed(ctx context.Context, atomLink, channelID string) (*models.Feed, error) {
	var feed models.Feed
	err := db.db.QueryRowContext(ctx, `
		SELECT link, atom_link, title, description, logo, published_at, channel_id, is_active
		FROM feeds WHERE atom_link = ? AND channel_id = ?`,
		atomLink, channelID,
	).Scan(&feed.Link, &feed.AtomLink, &feed.Title, &feed.Description,
		&feed.Logo, &feed.PublishedAt, &feed.ChannelID, &feed.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	return &feed, nil
}

func (db *DB) ListFeeds(ctx context.Context, onlyActive bool) ([]models.Feed, error) {
	return db.listFeeds(ctx, "", onlyActive)
}

func (db *DB) ListFeedsByChannel(ctx context.Context, channelID string, onlyActive bool) ([]models.Feed, error) {
	return db.listFeeds(ctx, channelID, onlyActive)
}

func (db *DB) listFeeds(ctx context.Context, channelID string, onlyActive bool) ([]models.Feed, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("link", "atom_link", "title", "description", "logo", "published_at", "channel_id", "is_active").
		From("feeds")
	if channelID != "" {
		sb.Where(sb.Equal("channel_id", channelID))
	}
	if onlyActive {
		sb.Where(sb.Equal("is_active", 1))
	}
	sb.OrderBy("channel_id", "atom_link").Asc()

	sql, args := sb.Build()
	rows, err := db.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var feeds []models.Feed
	for rows.Next() {
		var feed models.Feed
		if err := rows.Scan(&feed.Link, &feed.AtomLink, &feed.Title, &feed.Description,
			&feed.Logo, &feed.PublishedAt, &feed.ChannelID, &feed.Active); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		feeds = append(feeds, feed)
	}

	return feeds, rows.Err()
}

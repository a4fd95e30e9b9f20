package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StatCache keeps raw Hypixel player objects keyed by uuid.
type StatCache struct {
	db *Database
}

// NewStatCache returns the stats cache.
func NewStatCache(db *Database) *StatCache {
	return &StatCache{db: db}
}

// Get returns a cached body younger than maxAge.
func (c *StatCache) Get(ctx context.Context, playerUUID string, maxAge time.Duration) (string, bool, error) {
	var (
		body      string
		fetchedAt int64
	)
	err := c.db.QueryRow(ctx, `SELECT body, fetched_at FROM stat_cache WHERE player_uuid = ?`, playerUUID).
		Scan(&body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read stat cache: %w", err)
	}
	if time.Since(time.UnixMilli(fetchedAt)) > maxAge {
		return "", false, nil
	}
	return body, true, nil
}

// Put stores a player body.
func (c *StatCache) Put(ctx context.Context, playerUUID, body string, at time.Time) error {
	_, err := c.db.Exec(ctx, `
		INSERT INTO stat_cache (player_uuid, body, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(player_uuid) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		playerUUID, body, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("write stat cache: %w", err)
	}
	return nil
}

// Purge deletes entries fetched before cutoff and returns how many went.
func (c *StatCache) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.Exec(ctx, `DELETE FROM stat_cache WHERE fetched_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge stat cache: %w", err)
	}
	return res.RowsAffected()
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DownloadCache provides SQLite-backed storage for raw image downloads.
// Entries are keyed by URL+referer (the referer changes what some CDNs
// serve) and carry a short absolute expiry, so repeated runs against the
// same article within the TTL skip the network entirely.
//
// Design decision: Downloads are the one cache that outlives a processing
// session; extraction results stay in memory because they are keyed to a
// session's model+prompt configuration and cheap to regenerate relative to
// re-downloading megabytes of images.
type DownloadCache struct {
	db     *sql.DB
	dbPath string
	ttl    time.Duration
}

// Options configures DownloadCache behavior.
type Options struct {
	// TTL is the absolute expiry applied to stored downloads.
	TTL time.Duration

	// EnableWAL enables Write-Ahead Logging. Recommended.
	EnableWAL bool
}

// DefaultOptions returns the default cache options.
func DefaultOptions() Options {
	return Options{
		TTL:       time.Hour,
		EnableWAL: true,
	}
}

// Open opens or creates a DownloadCache under dbDir.
// Expired rows are purged on open.
func Open(dbDir string, opts Options) (*DownloadCache, error) {
	if opts.TTL <= 0 {
		return nil, errors.New("download cache TTL must be positive")
	}

	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, "downloads.db")
	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open download cache: %w", err)
	}

	// SQLite supports one writer; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	c := &DownloadCache{
		db:     db,
		dbPath: dbPath,
		ttl:    opts.TTL,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := c.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := c.purgeExpired(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to purge expired downloads: %w", err)
	}

	return c, nil
}

// Close closes the underlying database.
func (c *DownloadCache) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *DownloadCache) Path() string {
	return c.dbPath
}

// createTables creates the schema if it doesn't exist.
func (c *DownloadCache) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS downloads (
		url TEXT NOT NULL,
		referer TEXT NOT NULL,
		body BLOB NOT NULL,
		fetched_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		PRIMARY KEY (url, referer)
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_expires ON downloads(expires_at);
	`

	_, err := c.db.ExecContext(context.Background(), schema)
	return err
}

// Get returns the cached body for url+referer, or ok=false when absent or
// expired. Expired rows are deleted on access.
func (c *DownloadCache) Get(ctx context.Context, url, referer string) ([]byte, bool, error) {
	var body []byte
	var expiresAt time.Time

	row := c.db.QueryRowContext(ctx,
		"SELECT body, expires_at FROM downloads WHERE url = ? AND referer = ?",
		url, referer,
	)
	if err := row.Scan(&body, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read download cache: %w", err)
	}

	if time.Now().After(expiresAt) {
		_, err := c.db.ExecContext(ctx,
			"DELETE FROM downloads WHERE url = ? AND referer = ?", url, referer)
		if err != nil {
			return nil, false, fmt.Errorf("failed to evict expired download: %w", err)
		}
		return nil, false, nil
	}

	return body, true, nil
}

// Put stores a downloaded body under url+referer with the configured TTL.
// An existing entry is replaced and its expiry reset.
func (c *DownloadCache) Put(ctx context.Context, url, referer string, body []byte) error {
	now := time.Now()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO downloads (url, referer, body, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(url, referer) DO UPDATE SET
			body = excluded.body,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at`,
		url, referer, body, now, now.Add(c.ttl),
	)
	if err != nil {
		return fmt.Errorf("failed to store download: %w", err)
	}
	return nil
}

// purgeExpired removes every expired row.
func (c *DownloadCache) purgeExpired(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx,
		"DELETE FROM downloads WHERE expires_at < ?", time.Now())
	return err
}

// Count returns the number of cached downloads, for diagnostics.
func (c *DownloadCache) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM downloads").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count downloads: %w", err)
	}
	return n, nil
}

// Package store persists scraped pages and per-stage progress in sqlite
// so an interrupted scrape resumes without re-fetching source pages.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Cache is the sqlite-backed scrape cache.
type Cache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database and configures WAL mode.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	return &Cache{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS pages (
	url        TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scrape_progress (
	stage     TEXT NOT NULL,
	item_id   TEXT NOT NULL,
	run_id    TEXT NOT NULL,
	done_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (stage, item_id)
);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id         TEXT PRIMARY KEY,
	stage      TEXT NOT NULL,
	started_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_progress_stage ON scrape_progress(stage);
`

// Migrate creates the cache schema.
func (c *Cache) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "store: migrate")
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// BeginRun records the start of a scrape stage and returns its run ID.
func (c *Cache) BeginRun(ctx context.Context, stage string) (string, error) {
	id := uuid.New().String()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO scrape_runs (id, stage, started_at) VALUES (?, ?, ?)`,
		id, stage, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "store: begin run")
	}
	return id, nil
}

// GetPage returns the cached body for a URL, if present.
func (c *Cache) GetPage(ctx context.Context, url string) ([]byte, bool, error) {
	var body []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT body FROM pages WHERE url = ?`, url,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "store: get page %s", url)
	}
	return body, true, nil
}

// PutPage stores a fetched body, replacing any previous copy.
func (c *Cache) PutPage(ctx context.Context, url string, body []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO pages (url, body, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		url, body, time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: put page %s", url)
}

// MarkDone records that an item finished within a stage.
func (c *Cache) MarkDone(ctx context.Context, stage, itemID, runID string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO scrape_progress (stage, item_id, run_id, done_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(stage, item_id) DO NOTHING`,
		stage, itemID, runID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: mark done %s/%s", stage, itemID)
}

// DoneSet returns the IDs already processed for a stage.
func (c *Cache) DoneSet(ctx context.Context, stage string) (map[string]bool, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT item_id FROM scrape_progress WHERE stage = ?`, stage,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "store: done set %s", stage)
	}
	defer rows.Close() //nolint:errcheck

	done := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "store: scan item id")
		}
		done[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate done set")
	}
	return done, nil
}

// Reset clears progress for a stage so it scrapes from scratch.
func (c *Cache) Reset(ctx context.Context, stage string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM scrape_progress WHERE stage = ?`, stage,
	)
	return eris.Wrapf(err, "store: reset %s", stage)
}

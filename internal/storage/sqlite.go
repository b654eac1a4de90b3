// Package storage persists the outputs of a crawl run: the links file, the
// page archive document and an optional SQLite export of the whole run.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/masahif/postcrawl/internal/crawler"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// MetaLastRunID is the crawl_meta key holding the most recent run ID
const MetaLastRunID = "last_run_id"

// SQLiteStorage exports crawl runs to a SQLite database
type SQLiteStorage struct {
	db *sql.DB
}

// RunSummary is the stored view of one run
type RunSummary struct {
	ID            string
	SeedURL       string
	Cancelled     bool
	Links         int
	ArchivedPages int
	Errors        int
}

// NewSQLiteStorage opens (or creates) the database at dbPath
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	storage := &SQLiteStorage{db: db}

	if err := storage.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// InitSchema creates the database schema
func (s *SQLiteStorage) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000", // 30 second timeout for locks
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveRun writes a run with its links, archive and errors in one transaction.
// Saving the same run ID twice fails.
func (s *SQLiteStorage) SaveRun(ctx context.Context, result *crawler.Result) error {
	if result == nil || result.RunID == "" {
		return errors.New("run has no ID")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stats := result.Stats
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, seed_url, started_at, duration_ms, cancelled,
			frontier_pops, pages_fetched, fetch_failures, retries,
			sites_enqueued, links_discovered
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.RunID, result.SeedURL, stats.StartTime.UTC(), stats.Duration.Milliseconds(), result.Cancelled,
		stats.FrontierPops, stats.PagesFetched, stats.FetchFailures, stats.Retries,
		stats.SitesEnqueued, stats.LinksDiscovered,
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", result.RunID, err)
	}

	if err := insertDiscoveries(ctx, tx, result.RunID, result.Discoveries); err != nil {
		return err
	}
	if err := insertArchive(ctx, tx, result.RunID, result.Archive); err != nil {
		return err
	}
	if err := insertErrors(ctx, tx, result.RunID, result.Errors); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO crawl_meta (key, value) VALUES (?, ?)",
		MetaLastRunID, result.RunID,
	); err != nil {
		return fmt.Errorf("failed to set meta: %w", err)
	}

	return tx.Commit()
}

func insertDiscoveries(ctx context.Context, tx *sql.Tx, runID string, discoveries []crawler.Discovery) error {
	if len(discoveries) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO discovered_links (
			run_id, position, url, source_url, kind, discovered_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, d := range discoveries {
		if _, err := stmt.ExecContext(ctx, runID, i, d.URL, d.SourceURL, d.Kind, d.DiscoveredAt); err != nil {
			return fmt.Errorf("failed to insert link %s: %w", d.URL, err)
		}
	}
	return nil
}

func insertArchive(ctx context.Context, tx *sql.Tx, runID string, archive map[string]string) error {
	if len(archive) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO page_archive (run_id, url, markup, size_bytes) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, url := range slices.Sorted(maps.Keys(archive)) {
		markup := archive[url]
		if _, err := stmt.ExecContext(ctx, runID, url, markup, len(markup)); err != nil {
			return fmt.Errorf("failed to archive page %s: %w", url, err)
		}
	}
	return nil
}

func insertErrors(ctx context.Context, tx *sql.Tx, runID string, crawlErrors []*crawler.CrawlError) error {
	for _, crawlErr := range crawlErrors {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO crawl_errors (
				run_id, url, kind, error_type, error_message, attempts, occurred_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			runID, crawlErr.URL, crawlErr.Kind, crawlErr.ErrorType,
			crawlErr.ErrorMessage, crawlErr.Attempts, crawlErr.OccurredAt,
		); err != nil {
			return fmt.Errorf("failed to save error: %w", err)
		}
	}
	return nil
}

// GetRunLinks returns the links of a run in discovery order
func (s *SQLiteStorage) GetRunLinks(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url FROM discovered_links WHERE run_id = ? ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []string
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// GetArchivedPage returns the stored markup of url for a run
func (s *SQLiteStorage) GetArchivedPage(ctx context.Context, runID, url string) (string, bool, error) {
	var markup string
	err := s.db.QueryRowContext(ctx,
		"SELECT markup FROM page_archive WHERE run_id = ? AND url = ?", runID, url,
	).Scan(&markup)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get archived page: %w", err)
	}
	return markup, true, nil
}

// GetRunSummary returns the counts stored for a run
func (s *SQLiteStorage) GetRunSummary(ctx context.Context, runID string) (*RunSummary, error) {
	var summary RunSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seed_url, cancelled, links, archived_pages, errors
		FROM run_summary WHERE id = ?
	`, runID).Scan(
		&summary.ID, &summary.SeedURL, &summary.Cancelled,
		&summary.Links, &summary.ArchivedPages, &summary.Errors,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return &summary, nil
}

// GetMeta retrieves a metadata value
func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM crawl_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta: %w", err)
	}
	return value, nil
}

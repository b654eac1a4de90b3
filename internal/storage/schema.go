package storage

const schemaSQL = `
-- One row per crawl run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY NOT NULL,
    seed_url TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    cancelled INTEGER NOT NULL DEFAULT 0,

    -- Run statistics
    frontier_pops INTEGER NOT NULL DEFAULT 0,
    pages_fetched INTEGER NOT NULL DEFAULT 0,
    fetch_failures INTEGER NOT NULL DEFAULT 0,
    retries INTEGER NOT NULL DEFAULT 0,
    sites_enqueued INTEGER NOT NULL DEFAULT 0,
    links_discovered INTEGER NOT NULL DEFAULT 0
);

-- Result set in discovery order
CREATE TABLE IF NOT EXISTS discovered_links (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    url TEXT NOT NULL,
    source_url TEXT NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('post', 'outbound')),
    discovered_at DATETIME NOT NULL,
    UNIQUE(run_id, url)
);

CREATE INDEX IF NOT EXISTS idx_links_run_position ON discovered_links(run_id, position);
CREATE INDEX IF NOT EXISTS idx_links_source ON discovered_links(source_url);

-- Raw markup of every fetched page
CREATE TABLE IF NOT EXISTS page_archive (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    markup TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    PRIMARY KEY (run_id, url)
);

-- Per-URL failures absorbed by the run
CREATE TABLE IF NOT EXISTS crawl_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    kind TEXT NOT NULL,
    error_type TEXT NOT NULL,
    error_message TEXT,
    attempts INTEGER NOT NULL DEFAULT 0,
    occurred_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_errors_run ON crawl_errors(run_id);
CREATE INDEX IF NOT EXISTS idx_errors_type ON crawl_errors(error_type);

-- View of link counts per run (for reporting)
CREATE VIEW IF NOT EXISTS run_summary AS
SELECT
    r.id, r.seed_url, r.started_at, r.cancelled,
    (SELECT COUNT(*) FROM discovered_links l WHERE l.run_id = r.id) AS links,
    (SELECT COUNT(*) FROM page_archive a WHERE a.run_id = r.id) AS archived_pages,
    (SELECT COUNT(*) FROM crawl_errors e WHERE e.run_id = r.id) AS errors
FROM runs r;

-- Crawl meta table stores metadata as key-value pairs
CREATE TABLE IF NOT EXISTS crawl_meta (
    key TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);
`

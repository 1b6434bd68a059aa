package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 holds finished runs and their per-pass traces.
const schemaV1 = `
-- One row per finished run (growth, equilibrium or diffusion)
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,          -- 'grow', 'equilibrium', 'diffuse'
    created_at TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    seed INTEGER NOT NULL,
    config TEXT,                 -- JSON of the run settings

    -- Final network measures
    geodesic REAL,
    clustering REAL,
    avg_degree REAL,
    degree_skew REAL,
    converged INTEGER NOT NULL DEFAULT 0
);

-- Per-pass samples of an equilibrium trace
CREATE TABLE IF NOT EXISTS samples (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    pass INTEGER NOT NULL,
    iterations INTEGER NOT NULL,
    edges INTEGER NOT NULL,
    geodesic REAL NOT NULL,
    clustering REAL NOT NULL,
    avg_degree REAL NOT NULL,
    degree_skew REAL NOT NULL,
    movement REAL NOT NULL,
    PRIMARY KEY (run_id, pass)
);
CREATE INDEX IF NOT EXISTS idx_samples_run ON samples(run_id);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InitSchema creates the tables if needed and records the schema version.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

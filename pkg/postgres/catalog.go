package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const createBuildsTable = `
CREATE TABLE IF NOT EXISTS index_builds (
	run_id       TEXT PRIMARY KEY,
	codec        TEXT NOT NULL,
	data_dir     TEXT NOT NULL,
	output_dir   TEXT NOT NULL,
	blocks       INTEGER NOT NULL,
	files        INTEGER NOT NULL,
	terms        INTEGER NOT NULL,
	merges       INTEGER NOT NULL,
	index_bytes  BIGINT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const insertBuild = `
INSERT INTO index_builds
	(run_id, codec, data_dir, output_dir, blocks, files, terms, merges, index_bytes, started_at, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (run_id) DO NOTHING`

// BuildRecord is one row of the index_builds table.
type BuildRecord struct {
	RunID      string
	Codec      string
	DataDir    string
	OutputDir  string
	Blocks     int
	Files      int
	Terms      int
	Merges     int
	IndexBytes int64
	StartedAt  time.Time
	Duration   time.Duration
}

// EnsureSchema creates the catalog table if it does not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, createBuildsTable); err != nil {
		return fmt.Errorf("creating index_builds table: %w", err)
	}
	return nil
}

// RecordBuild inserts rec. Recording the same run twice is a no-op.
func (c *Client) RecordBuild(ctx context.Context, rec BuildRecord) error {
	return c.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertBuild,
			rec.RunID, rec.Codec, rec.DataDir, rec.OutputDir,
			rec.Blocks, rec.Files, rec.Terms, rec.Merges, rec.IndexBytes,
			rec.StartedAt.UTC(), rec.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("inserting build %s: %w", rec.RunID, err)
		}
		return nil
	})
}

// LatestBuild returns the most recent build recorded for outputDir.
func (c *Client) LatestBuild(ctx context.Context, outputDir string) (*BuildRecord, error) {
	row := c.DB.QueryRowContext(ctx, `
SELECT run_id, codec, data_dir, output_dir, blocks, files, terms, merges, index_bytes, started_at, duration_ms
FROM index_builds WHERE output_dir = $1 ORDER BY started_at DESC LIMIT 1`, outputDir)
	var (
		rec        BuildRecord
		durationMs int64
	)
	err := row.Scan(&rec.RunID, &rec.Codec, &rec.DataDir, &rec.OutputDir,
		&rec.Blocks, &rec.Files, &rec.Terms, &rec.Merges, &rec.IndexBytes, &rec.StartedAt, &durationMs)
	if err != nil {
		return nil, fmt.Errorf("querying latest build: %w", err)
	}
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return &rec, nil
}

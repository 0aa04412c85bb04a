// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/mdhender/regsnap/model"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite-backed run manifest. It records, per pipeline
// invocation, the archive fetch outcomes and the shard ranges written,
// so operators can answer "what did run X actually do" after the fact.
type Store struct {
	db *sql.DB
}

// StoreConfig holds configuration for creating a Store.
type StoreConfig struct {
	// Path is the file path for file-based SQLite.
	// If empty, an in-memory database is used.
	Path string

	// InitSchema controls whether to run schema initialization.
	// For file-based mode, this should typically be false since the
	// pipeline expects the database to already exist with schema applied.
	InitSchema bool
}

// NewStore creates a new in-memory Store with schema loaded.
func NewStore() (*Store, error) {
	return NewStoreWithConfig(StoreConfig{InitSchema: true})
}

// NewStoreWithConfig creates a Store based on the provided configuration.
// For file-based mode (Path is set), the database file MUST already
// exist. Use InitDatabase to create and initialize a new database file.
func NewStoreWithConfig(cfg StoreConfig) (*Store, error) {
	var dsn string

	if cfg.Path == "" {
		dsn = "file::memory:?cache=shared&_pragma=foreign_keys(1)"
	} else {
		if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
			return nil, fmt.Errorf("database file does not exist: %s (run init-db command to create it)", cfg.Path)
		}

		// Apply PRAGMA's per-connection via DSN so the pool always has them.
		// modernc.org/sqlite supports repeated _pragma=... parameters.
		dsn = fmt.Sprintf(
			"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
			cfg.Path,
		)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.InitSchema || cfg.Path == "" {
		if _, err := db.Exec(schemaSQL); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// InitDatabase creates a new SQLite database file and initializes the
// schema. Returns an error if the file already exists.
func InitDatabase(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("database file already exists: %s", path)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InsertRun records the start of a pipeline run.
func (s *Store) InsertRun(ctx context.Context, run *model.Run) error {
	const query = `
		INSERT INTO runs (id, feed, started_at)
		VALUES (?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Feed,
		run.StartedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the final counts for a completed run.
func (s *Store) FinishRun(ctx context.Context, run *model.Run) error {
	const query = `
		UPDATE runs
		SET finished_at = ?, raw_rows = ?, clean_rows = ?,
		    dropped_date = ?, dropped_name = ?, shard_count = ?
		WHERE id = ?
	`
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	_, err := s.db.ExecContext(ctx, query,
		finished.Format(time.RFC3339),
		run.RawRows,
		run.CleanRows,
		run.DroppedDate,
		run.DroppedName,
		run.ShardCount,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	run.FinishedAt = &finished
	return nil
}

// InsertRunArchive records one archive outcome for a run. errorCode and
// errorMsg are empty for successful fetches and cache hits.
func (s *Store) InsertRunArchive(ctx context.Context, ra *model.RunArchive, errorCode, errorMsg string) error {
	const query = `
		INSERT INTO run_archives (run_id, filename, status, part_no, part_total, error_code, error_msg)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		ra.RunID,
		ra.Filename,
		ra.Status,
		ra.PartNo,
		ra.PartTotal,
		nullString(errorCode),
		nullString(errorMsg),
	)
	if err != nil {
		return fmt.Errorf("insert run_archive: %w", err)
	}
	return nil
}

// InsertRunShard records one written shard range for a run.
func (s *Store) InsertRunShard(ctx context.Context, runID string, shard model.ShardRange) error {
	const query = `
		INSERT INTO run_shards (run_id, idx, start_row, end_row, dir)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		runID,
		shard.Index,
		shard.StartRow,
		shard.EndRow,
		shard.Dir,
	)
	if err != nil {
		return fmt.Errorf("insert run_shard: %w", err)
	}
	return nil
}

// GetRun returns one run by id, or nil if it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*model.Run, error) {
	const query = `
		SELECT id, feed, started_at, finished_at,
		       raw_rows, clean_rows, dropped_date, dropped_name, shard_count
		FROM runs
		WHERE id = ?
	`
	var run model.Run
	var started string
	var finished sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Feed, &started, &finished,
		&run.RawRows, &run.CleanRows, &run.DroppedDate, &run.DroppedName, &run.ShardCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	run.StartedAt, err = time.Parse(time.RFC3339, started)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339, finished.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	return &run, nil
}

// RunArchives returns the archive outcomes for a run, in filename order.
func (s *Store) RunArchives(ctx context.Context, runID string) ([]model.RunArchive, error) {
	const query = `
		SELECT run_id, filename, status, part_no, part_total
		FROM run_archives
		WHERE run_id = ?
		ORDER BY filename
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query run_archives: %w", err)
	}
	defer rows.Close()

	var archives []model.RunArchive
	for rows.Next() {
		var ra model.RunArchive
		if err := rows.Scan(&ra.RunID, &ra.Filename, &ra.Status, &ra.PartNo, &ra.PartTotal); err != nil {
			return nil, fmt.Errorf("scan run_archive: %w", err)
		}
		archives = append(archives, ra)
	}
	return archives, rows.Err()
}

// RunShards returns the shard ranges for a run, in index order.
func (s *Store) RunShards(ctx context.Context, runID string) ([]model.ShardRange, error) {
	const query = `
		SELECT idx, start_row, end_row, dir
		FROM run_shards
		WHERE run_id = ?
		ORDER BY idx
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query run_shards: %w", err)
	}
	defer rows.Close()

	var shards []model.ShardRange
	for rows.Next() {
		var shard model.ShardRange
		if err := rows.Scan(&shard.Index, &shard.StartRow, &shard.EndRow, &shard.Dir); err != nil {
			return nil, fmt.Errorf("scan run_shard: %w", err)
		}
		shard.Rows = shard.EndRow - shard.StartRow + 1
		shards = append(shards, shard)
	}
	return shards, rows.Err()
}

// TableStats returns row counts for every manifest table.
func (s *Store) TableStats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)
	for _, table := range []string{"runs", "run_archives", "run_shards"} {
		var count int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats[table] = count
	}
	return stats, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

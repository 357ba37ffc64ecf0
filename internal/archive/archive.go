// Package archive stores headless run summaries in SQLite.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run is one archived headless run.
type Run struct {
	ID        uuid.UUID `db:"id"`
	StartedAt time.Time `db:"-"`
	Seed      int64     `db:"seed"`
	Ticks     int       `db:"ticks"`
	Agents    int       `db:"agents"`
	Width     int       `db:"width"`
	Height    int       `db:"height"`
	Workers   int       `db:"workers"`

	Spawned        int64   `db:"spawned"`
	Arrived        int64   `db:"arrived"`
	Unreachable    int64   `db:"unreachable"`
	Promotions     int64   `db:"promotions"`
	Demotions      int64   `db:"demotions"`
	CacheHits      int64   `db:"cache_hits"`
	CacheEvictions int64   `db:"cache_evictions"`
	FreshPlans     int64   `db:"fresh_plans"`
	NoPath         int64   `db:"no_path"`
	PeakLeaders    int     `db:"peak_leaders"`
	HitRate        float64 `db:"hit_rate"`

	// Events counts recorded events by "category/key".
	Events map[string]int `db:"-"`
}

type runRow struct {
	Run
	StartedUnix int64 `db:"started_unix"`
}

// DB wraps a SQLite connection holding run summaries.
type DB struct {
	conn *sqlx.DB
	log  *slog.Logger
}

// Open opens or creates the archive at path.
func Open(path string, logger *slog.Logger) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// One writer keeps WAL contention out of the headless loop.
	conn.SetMaxOpenConns(1)
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db := &DB{conn: conn, log: logger}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_unix INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		ticks INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		workers INTEGER NOT NULL,
		spawned INTEGER NOT NULL,
		arrived INTEGER NOT NULL,
		unreachable INTEGER NOT NULL,
		promotions INTEGER NOT NULL,
		demotions INTEGER NOT NULL,
		cache_hits INTEGER NOT NULL,
		cache_evictions INTEGER NOT NULL,
		fresh_plans INTEGER NOT NULL,
		no_path INTEGER NOT NULL,
		peak_leaders INTEGER NOT NULL,
		hit_rate REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_events (
		run_id TEXT NOT NULL REFERENCES runs(id),
		name TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (run_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_unix);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun stores r and its event counts. A nil ID is replaced with a fresh
// one, which is returned.
func (db *DB) SaveRun(ctx context.Context, r Run) (uuid.UUID, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	row := runRow{Run: r, StartedUnix: r.StartedAt.UnixMilli()}
	_, err = tx.NamedExecContext(ctx, `INSERT INTO runs
		(id, started_unix, seed, ticks, agents, width, height, workers,
		 spawned, arrived, unreachable, promotions, demotions,
		 cache_hits, cache_evictions, fresh_plans, no_path, peak_leaders, hit_rate)
		VALUES (:id, :started_unix, :seed, :ticks, :agents, :width, :height, :workers,
		 :spawned, :arrived, :unreachable, :promotions, :demotions,
		 :cache_hits, :cache_evictions, :fresh_plans, :no_path, :peak_leaders, :hit_rate)`, row)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	for name, n := range r.Events {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_events (run_id, name, count) VALUES (?, ?, ?)",
			r.ID, name, n,
		); err != nil {
			return uuid.Nil, fmt.Errorf("insert event count %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, err
	}
	db.log.Info("run archived", "id", r.ID, "seed", r.Seed, "arrived", r.Arrived)
	return r.ID, nil
}

// GetRun loads one run with its event counts.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	var row runRow
	err := db.conn.GetContext(ctx, &row, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, err
	}
	r := row.toRun()
	if r.Events, err = db.eventCounts(ctx, id); err != nil {
		return Run{}, err
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first, without event counts.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	var rows []runRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT * FROM runs ORDER BY started_unix DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	runs := make([]Run, len(rows))
	for i := range rows {
		runs[i] = rows[i].toRun()
	}
	return runs, nil
}

func (db *DB) eventCounts(ctx context.Context, id uuid.UUID) (map[string]int, error) {
	var rows []struct {
		Name  string `db:"name"`
		Count int    `db:"count"`
	}
	if err := db.conn.SelectContext(ctx, &rows,
		"SELECT name, count FROM run_events WHERE run_id = ?", id); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Name] = r.Count
	}
	return counts, nil
}

func (row runRow) toRun() Run {
	r := row.Run
	r.StartedAt = time.UnixMilli(row.StartedUnix)
	return r
}

package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Run statuses.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
)

// Store provides SQLite-based persistence for analysis series.
type Store struct {
	db *sql.DB
}

// RunRecord represents one analysis run.
type RunRecord struct {
	ID          int64
	OraclePrice float64
	Status      string
	StartedAt   time.Time
	FinishedAt  sql.NullTime
}

// SeriesRecord describes one ordered series produced by a sweep over a pool.
type SeriesRecord struct {
	ID                int64
	RunID             int64
	Sweep             string
	Pool              string
	Family            string
	XLabel            string
	YLabel            string
	Points            int
	DomainErrors      int
	ConvergenceErrors int
	CreatedAt         time.Time
}

// Sample is one (x, y) point of a series.
type Sample struct {
	X float64
	Y float64
}

// NewStore creates a new SQLite store and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

// migrate runs database schema migrations.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			oracle_price REAL NOT NULL,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS series (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL,
			sweep TEXT NOT NULL,
			pool TEXT NOT NULL,
			family TEXT NOT NULL,
			x_label TEXT NOT NULL,
			y_label TEXT NOT NULL,
			points INTEGER NOT NULL,
			domain_errors INTEGER NOT NULL DEFAULT 0,
			convergence_errors INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (run_id, sweep, pool),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
		`CREATE TABLE IF NOT EXISTS samples (
			series_id INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			PRIMARY KEY (series_id, idx),
			FOREIGN KEY (series_id) REFERENCES series(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_series_run ON series(run_id, sweep)`,
		`CREATE TABLE IF NOT EXISTS system_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	log.Info().Msg("Database migrations completed")
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun records the start of an analysis run and returns its id.
func (s *Store) BeginRun(ctx context.Context, oraclePrice float64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (oracle_price, status, started_at) VALUES (?, ?, ?)`,
		oraclePrice, RunRunning, time.Now())
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun marks a run as finished with the given status.
func (s *Store) FinishRun(ctx context.Context, runID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("updating run %d: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %d not found", runID)
	}
	return s.SetSystemState(ctx, "last_run_id", fmt.Sprintf("%d", runID))
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(ctx context.Context, runID int64) (*RunRecord, error) {
	query := `SELECT id, oracle_price, status, started_at, finished_at FROM runs WHERE id = ?`

	var r RunRecord
	err := s.db.QueryRowContext(ctx, query, runID).Scan(&r.ID, &r.OraclePrice, &r.Status, &r.StartedAt, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveSeries stores a series and all its samples in one transaction.
func (s *Store) SaveSeries(ctx context.Context, rec SeriesRecord, samples []Sample) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO series
		(run_id, sweep, pool, family, x_label, y_label, points, domain_errors, convergence_errors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Sweep, rec.Pool, rec.Family, rec.XLabel, rec.YLabel,
		len(samples), rec.DomainErrors, rec.ConvergenceErrors, time.Now())
	if err != nil {
		return 0, fmt.Errorf("inserting series %s/%s: %w", rec.Sweep, rec.Pool, err)
	}
	seriesID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading series id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples (series_id, idx, x, y) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for idx, smp := range samples {
		if _, err := stmt.ExecContext(ctx, seriesID, idx, smp.X, smp.Y); err != nil {
			return 0, fmt.Errorf("inserting sample %d of %s/%s: %w", idx, rec.Sweep, rec.Pool, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing series: %w", err)
	}
	return seriesID, nil
}

// ListSeries retrieves all series of a run ordered by sweep and pool.
func (s *Store) ListSeries(ctx context.Context, runID int64) ([]SeriesRecord, error) {
	query := `SELECT id, run_id, sweep, pool, family, x_label, y_label, points, domain_errors, convergence_errors, created_at
		FROM series
		WHERE run_id = ?
		ORDER BY sweep, pool`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("querying series: %w", err)
	}
	defer rows.Close()

	var out []SeriesRecord
	for rows.Next() {
		var r SeriesRecord
		if err := rows.Scan(&r.ID, &r.RunID, &r.Sweep, &r.Pool, &r.Family, &r.XLabel, &r.YLabel,
			&r.Points, &r.DomainErrors, &r.ConvergenceErrors, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

// LoadSamples retrieves the samples of a series in domain order.
func (s *Store) LoadSamples(ctx context.Context, seriesID int64) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT x, y FROM samples WHERE series_id = ? ORDER BY idx`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var smp Sample
		if err := rows.Scan(&smp.X, &smp.Y); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, smp)
	}

	return out, rows.Err()
}

// GetSampleCount returns the total number of stored samples.
func (s *Store) GetSampleCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM samples").Scan(&count)
	return count, err
}

// SetSystemState stores a key-value pair in system state.
func (s *Store) SetSystemState(ctx context.Context, key, value string) error {
	query := `INSERT INTO system_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query, key, value, time.Now())
	return err
}

// GetSystemState retrieves a value from system state.
func (s *Store) GetSystemState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM system_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Package history keeps every persisted observation in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Observation is one labelled value of a run.
type Observation struct {
	Label    string
	Provider string
	Value    float64
}

// Run is the set of observations written by one successful invocation.
type Run struct {
	ID           string
	ObservedAt   time.Time
	Observations []Observation
}

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  observed_at_ms INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_observed ON runs(observed_at_ms);

CREATE TABLE IF NOT EXISTS observations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL REFERENCES runs(id),
  position INTEGER NOT NULL,
  label TEXT NOT NULL,
  provider TEXT NOT NULL,
  value REAL NOT NULL,
  UNIQUE(run_id, label)
);
CREATE INDEX IF NOT EXISTS idx_observations_label ON observations(label);
`)
	return err
}

// Record stores run atomically.
func (s *Store) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id is empty")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs(id, observed_at_ms, created_at) VALUES(?, ?, ?)`,
		run.ID, run.ObservedAt.UnixMilli(), time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	for i, o := range run.Observations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO observations(run_id, position, label, provider, value) VALUES(?, ?, ?, ?, ?)`,
			run.ID, i, o.Label, o.Provider, o.Value,
		); err != nil {
			return fmt.Errorf("insert observation %s: %w", o.Label, err)
		}
	}
	return tx.Commit()
}

// Latest returns the most recently observed run, or sql.ErrNoRows when empty.
func (s *Store) Latest(ctx context.Context) (Run, error) {
	var (
		run Run
		ms  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, observed_at_ms FROM runs ORDER BY observed_at_ms DESC, created_at DESC LIMIT 1`,
	).Scan(&run.ID, &ms)
	if err != nil {
		return Run{}, err
	}
	run.ObservedAt = time.UnixMilli(ms).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT label, provider, value FROM observations WHERE run_id=? ORDER BY position`, run.ID)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.Label, &o.Provider, &o.Value); err != nil {
			return Run{}, err
		}
		run.Observations = append(run.Observations, o)
	}
	return run, rows.Err()
}

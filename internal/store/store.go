// Package store persists simulation runs and their equilibrium traces in
// a SQLite database, so batch experiments can be compared after the fact.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/socgrid/socgrid/internal/equilibrium"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("store: run not found")

// Run is one persisted simulation run.
type Run struct {
	ID        string
	Kind      string
	CreatedAt time.Time
	Width     int
	Height    int
	Seed      uint64
	Config    any // marshaled to JSON on save; raw JSON on load

	Geodesic   float64
	Clustering float64
	AvgDegree  float64
	DegreeSkew float64
	Converged  bool
}

// RunStore wraps a SQLite database holding runs and traces.
type RunStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*RunStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return &RunStore{db: db}, nil
}

// Close closes the underlying database.
func (s *RunStore) Close() error { return s.db.Close() }

// SaveRun inserts a run and returns its id. A blank ID gets a fresh UUID;
// a zero CreatedAt gets the current time.
func (s *RunStore) SaveRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	var configJSON []byte
	if run.Config != nil {
		var err error
		configJSON, err = json.Marshal(run.Config)
		if err != nil {
			return "", fmt.Errorf("failed to marshal run config: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, created_at, width, height, seed, config,
		                  geodesic, clustering, avg_degree, degree_skew, converged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.CreatedAt.Format(time.RFC3339), run.Width, run.Height,
		int64(run.Seed), string(configJSON),
		run.Geodesic, run.Clustering, run.AvgDegree, run.DegreeSkew, run.Converged)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return run.ID, nil
}

// SaveTrace stores the per-pass samples of an equilibrium run, replacing
// any previous trace for the same run id.
func (s *RunStore) SaveTrace(ctx context.Context, runID string, trace equilibrium.Trace) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM samples WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear trace: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (run_id, pass, iterations, edges, geodesic,
		                     clustering, avg_degree, degree_skew, movement)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, sm := range trace {
		if _, err := stmt.ExecContext(ctx, runID, sm.Pass, sm.Iterations, sm.Edges,
			sm.Geodesic, sm.Clustering, sm.AvgDegree, sm.DegreeSkew, sm.Movement); err != nil {
			return fmt.Errorf("failed to insert sample %d: %w", sm.Pass, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trace: %w", err)
	}
	return nil
}

// GetRun fetches a single run by id.
func (s *RunStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, created_at, width, height, seed, config,
		       geodesic, clustering, avg_degree, degree_skew, converged
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// ListRuns returns runs of the given kind, newest first. An empty kind
// returns everything.
func (s *RunStore) ListRuns(ctx context.Context, kind string) ([]Run, error) {
	query := `
		SELECT id, kind, created_at, width, height, seed, config,
		       geodesic, clustering, avg_degree, degree_skew, converged
		FROM runs`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// GetTrace returns the stored equilibrium trace for a run, in pass order.
func (s *RunStore) GetTrace(ctx context.Context, runID string) (equilibrium.Trace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pass, iterations, edges, geodesic, clustering, avg_degree, degree_skew, movement
		FROM samples WHERE run_id = ? ORDER BY pass`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace: %w", err)
	}
	defer rows.Close()

	var trace equilibrium.Trace
	for rows.Next() {
		var sm equilibrium.Sample
		if err := rows.Scan(&sm.Pass, &sm.Iterations, &sm.Edges, &sm.Geodesic,
			&sm.Clustering, &sm.AvgDegree, &sm.DegreeSkew, &sm.Movement); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		trace = append(trace, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trace: %w", err)
	}
	return trace, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run       Run
		createdAt string
		config    sql.NullString
		seed      int64
	)
	err := row.Scan(&run.ID, &run.Kind, &createdAt, &run.Width, &run.Height, &seed,
		&config, &run.Geodesic, &run.Clustering, &run.AvgDegree, &run.DegreeSkew, &run.Converged)
	if err != nil {
		return Run{}, err
	}
	run.Seed = uint64(seed)
	if config.Valid && config.String != "" {
		run.Config = json.RawMessage(config.String)
	}
	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	run.CreatedAt = ts
	return run, nil
}

package runlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS aggregation_runs (
		id            TEXT PRIMARY KEY,
		trigger       TEXT NOT NULL,
		started_at    TIMESTAMPTZ NOT NULL,
		finished_at   TIMESTAMPTZ NOT NULL,
		zip_codes     TEXT[] NOT NULL,
		start_date    DATE NOT NULL,
		end_date      DATE NOT NULL,
		observations  INTEGER NOT NULL,
		fetches       INTEGER NOT NULL,
		failed        INTEGER NOT NULL,
		abandoned     TEXT[] NOT NULL,
		warnings      TEXT[] NOT NULL
	);
	CREATE INDEX IF NOT EXISTS aggregation_runs_started_at_idx ON aggregation_runs (started_at DESC);
`

const selectColumns = `
	id, trigger, started_at, finished_at, zip_codes,
	to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'),
	observations, fetches, failed, abandoned, warnings
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL run repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the run table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create run log schema: %w", err)
	}
	return nil
}

// Create stores a new run.
func (r *PostgresRepository) Create(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO aggregation_runs (
			id, trigger, started_at, finished_at, zip_codes,
			start_date, end_date, observations, fetches, failed,
			abandoned, warnings
		) VALUES ($1, $2, $3, $4, $5, $6::date, $7::date, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		run.ID,
		string(run.Trigger),
		run.StartedAt,
		run.FinishedAt,
		nonNil(run.ZipCodes),
		run.StartDate,
		run.EndDate,
		run.Observations,
		run.Fetches,
		run.Failed,
		nonNil(run.Abandoned),
		nonNil(run.Warnings),
	)
	return err
}

// Get retrieves a run by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + selectColumns + ` FROM aggregation_runs WHERE id = $1`

	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + selectColumns + ` FROM aggregation_runs ORDER BY started_at DESC, id DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	var trigger string
	err := row.Scan(
		&run.ID,
		&trigger,
		&run.StartedAt,
		&run.FinishedAt,
		&run.ZipCodes,
		&run.StartDate,
		&run.EndDate,
		&run.Observations,
		&run.Fetches,
		&run.Failed,
		&run.Abandoned,
		&run.Warnings,
	)
	if err != nil {
		return nil, err
	}
	run.Trigger = Trigger(trigger)
	return &run, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

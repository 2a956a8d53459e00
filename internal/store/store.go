package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Run is one invocation of the scenario runner.
type Run struct {
	ID         string
	Browser    string
	Platform   string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
}

// Outcome is the result of a single scenario.
type Outcome struct {
	Scenario   string
	Status     string
	FailedStep string
	Error      string
	Duration   time.Duration
}

const (
	sqlCreateRuns = `
        CREATE TABLE IF NOT EXISTS wedcheck_runs (
            id          UUID PRIMARY KEY,
            browser     TEXT NOT NULL,
            platform    TEXT NOT NULL,
            started_at  TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ NOT NULL
        );
    `
	sqlCreateOutcomes = `
        CREATE TABLE IF NOT EXISTS wedcheck_outcomes (
            run_id      UUID NOT NULL REFERENCES wedcheck_runs (id),
            scenario    TEXT NOT NULL,
            status      TEXT NOT NULL,
            failed_step TEXT NOT NULL,
            error       TEXT NOT NULL,
            duration_ms BIGINT NOT NULL,
            PRIMARY KEY (run_id, scenario)
        );
    `
	sqlInsertRun = `
        INSERT INTO wedcheck_runs (id, browser, platform, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5);
    `
	sqlInsertOutcome = `
        INSERT INTO wedcheck_outcomes (run_id, scenario, status, failed_step, error, duration_ms)
        VALUES ($1, $2, $3, $4, $5, $6);
    `
)

// Store records run outcomes in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the result tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{sqlCreateRuns, sqlCreateOutcomes} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// SaveRun writes a run and its outcomes in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err = tx.Exec(ctx, sqlInsertRun,
		run.ID, run.Browser, run.Platform, run.StartedAt.UTC(), run.FinishedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	for _, o := range run.Outcomes {
		if _, err = tx.Exec(ctx, sqlInsertOutcome,
			run.ID, o.Scenario, o.Status, o.FailedStep, o.Error, o.Duration.Milliseconds()); err != nil {
			return fmt.Errorf("failed to insert outcome for %q: %w", o.Scenario, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Saved run.", zap.String("run_id", run.ID), zap.Int("outcomes", len(run.Outcomes)))
	return nil
}

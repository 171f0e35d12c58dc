package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mikey/email-verifier/internal/core"
	"go.uber.org/zap"
)

// PostgresStore is a PostgreSQL implementation of core.ResultRepository
type PostgresStore struct {
	pool    *pgxpool.Pool
	logger  *zap.Logger
	now     func() time.Time
	janitor *janitor
}

// NewPostgresStore connects a pool and creates the schema if needed. maxConns <= 0 keeps
// the pgxpool default.
func NewPostgresStore(ctx context.Context, dsn string, maxConns int32, logger *zap.Logger, cleanupFreq time.Duration) (*PostgresStore, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL DSN: %w", err)
	}
	if maxConns > 0 {
		pcfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS verification_results (
			email TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			bucket TEXT NOT NULL,
			job_id TEXT,
			endpoint TEXT,
			verified_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_results_expires_at ON verification_results(expires_at)
	`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	s := &PostgresStore{
		pool:   pool,
		logger: logger,
		now:    time.Now,
	}
	s.janitor = startJanitor(cleanupFreq, s.Cleanup, logger)
	return s, nil
}

// Get retrieves the record for an address
func (s *PostgresStore) Get(ctx context.Context, email string) (*core.ResultRecord, error) {
	var rec core.ResultRecord
	var bucket, endpoint string
	var jobID *string

	err := s.pool.QueryRow(ctx, `
		SELECT email, status, bucket, job_id, endpoint, verified_at, expires_at
		FROM verification_results
		WHERE email = $1 AND expires_at > $2
	`, email, s.now()).Scan(&rec.Email, &rec.Status, &bucket, &jobID, &endpoint, &rec.VerifiedAt, &rec.ExpiresAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query result history: %w", err)
	}

	rec.Bucket = core.Bucket(bucket)
	rec.Endpoint = core.Endpoint(endpoint)
	if jobID != nil {
		rec.JobID = *jobID
	}
	return &rec, nil
}

// Set stores a record
func (s *PostgresStore) Set(ctx context.Context, record *core.ResultRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO verification_results (email, status, bucket, job_id, endpoint, verified_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE SET
			status = EXCLUDED.status,
			bucket = EXCLUDED.bucket,
			job_id = EXCLUDED.job_id,
			endpoint = EXCLUDED.endpoint,
			verified_at = EXCLUDED.verified_at,
			expires_at = EXCLUDED.expires_at
	`, record.Email, record.Status, string(record.Bucket), record.JobID, string(record.Endpoint),
		record.VerifiedAt, record.ExpiresAt)

	if err != nil {
		return fmt.Errorf("failed to insert result record: %w", err)
	}
	return nil
}

// Delete removes a record
func (s *PostgresStore) Delete(ctx context.Context, email string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM verification_results WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("failed to delete result record: %w", err)
	}
	return nil
}

// Cleanup removes expired records
func (s *PostgresStore) Cleanup(ctx context.Context) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM verification_results WHERE expires_at <= $1`, s.now())
	if err != nil {
		return fmt.Errorf("failed to clean up expired records: %w", err)
	}

	s.logger.Debug("Cleaned up expired result records", zap.Int64("expired_count", tag.RowsAffected()))
	return nil
}

// Stop stops the background cleanup task and closes the pool
func (s *PostgresStore) Stop() {
	s.janitor.stop()
	s.pool.Close()
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/email-verifier/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of core.ResultRepository.
// Timestamps are stored as Unix nanoseconds.
type SQLiteStore struct {
	db      *sql.DB
	logger  *zap.Logger
	now     func() time.Time
	janitor *janitor
}

// NewSQLiteStore opens the database and creates the schema if needed
func NewSQLiteStore(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verification_results (
			email TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			bucket TEXT NOT NULL,
			job_id TEXT,
			endpoint TEXT,
			verified_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_results_expires_at ON verification_results(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
	s.janitor = startJanitor(cleanupFreq, s.Cleanup, logger)
	return s, nil
}

// Get retrieves the record for an address
func (s *SQLiteStore) Get(ctx context.Context, email string) (*core.ResultRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT email, status, bucket, job_id, endpoint, verified_at, expires_at
		FROM verification_results
		WHERE email = ? AND expires_at > ?
	`, email, s.now().UnixNano())

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query result history: %w", err)
	}
	return rec, nil
}

// Set stores a record
func (s *SQLiteStore) Set(ctx context.Context, record *core.ResultRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO verification_results (email, status, bucket, job_id, endpoint, verified_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.Email, record.Status, string(record.Bucket), record.JobID, string(record.Endpoint),
		record.VerifiedAt.UnixNano(), record.ExpiresAt.UnixNano())

	if err != nil {
		return fmt.Errorf("failed to insert result record: %w", err)
	}
	return nil
}

// Delete removes a record
func (s *SQLiteStore) Delete(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM verification_results
		WHERE email = ?
	`, email)

	if err != nil {
		return fmt.Errorf("failed to delete result record: %w", err)
	}
	return nil
}

// Cleanup removes expired records
func (s *SQLiteStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM verification_results
		WHERE expires_at <= ?
	`, s.now().UnixNano())

	if err != nil {
		return fmt.Errorf("failed to clean up expired records: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired result records", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (s *SQLiteStore) Stop() {
	s.janitor.stop()
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}

// scanRecord reads one row laid out as email, status, bucket, job_id, endpoint,
// verified_at, expires_at with nanosecond timestamps
func scanRecord(row *sql.Row) (*core.ResultRecord, error) {
	var rec core.ResultRecord
	var bucket, endpoint string
	var jobID sql.NullString
	var verifiedAt, expiresAt int64

	if err := row.Scan(&rec.Email, &rec.Status, &bucket, &jobID, &endpoint, &verifiedAt, &expiresAt); err != nil {
		return nil, err
	}

	rec.Bucket = core.Bucket(bucket)
	rec.Endpoint = core.Endpoint(endpoint)
	rec.JobID = jobID.String
	rec.VerifiedAt = time.Unix(0, verifiedAt)
	rec.ExpiresAt = time.Unix(0, expiresAt)
	return &rec, nil
}

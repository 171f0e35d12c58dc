package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/email-verifier/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of core.ResultRepository
type MySQLStore struct {
	db      *sql.DB
	logger  *zap.Logger
	now     func() time.Time
	janitor *janitor
}

// NewMySQLStore connects to the database and creates the schema if needed
func NewMySQLStore(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verification_results (
			email VARCHAR(320) PRIMARY KEY,
			status VARCHAR(255) NOT NULL,
			bucket VARCHAR(16) NOT NULL,
			job_id VARCHAR(64),
			endpoint VARCHAR(255),
			verified_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_results_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	s := &MySQLStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
	s.janitor = startJanitor(cleanupFreq, s.Cleanup, logger)
	return s, nil
}

// Get retrieves the record for an address
func (s *MySQLStore) Get(ctx context.Context, email string) (*core.ResultRecord, error) {
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
func (s *MySQLStore) Set(ctx context.Context, record *core.ResultRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_results (email, status, bucket, job_id, endpoint, verified_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status),
			bucket = VALUES(bucket),
			job_id = VALUES(job_id),
			endpoint = VALUES(endpoint),
			verified_at = VALUES(verified_at),
			expires_at = VALUES(expires_at)
	`, record.Email, record.Status, string(record.Bucket), record.JobID, string(record.Endpoint),
		record.VerifiedAt.UnixNano(), record.ExpiresAt.UnixNano())

	if err != nil {
		return fmt.Errorf("failed to insert result record: %w", err)
	}
	return nil
}

// Delete removes a record
func (s *MySQLStore) Delete(ctx context.Context, email string) error {
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
func (s *MySQLStore) Cleanup(ctx context.Context) error {
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
func (s *MySQLStore) Stop() {
	s.janitor.stop()
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}

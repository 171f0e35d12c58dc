package store

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/email-verifier/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of core.ResultRepository
type MemoryStore struct {
	records map[string]core.ResultRecord
	mu      sync.RWMutex
	logger  *zap.Logger
	now     func() time.Time
	janitor *janitor
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger, cleanupFreq time.Duration) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]core.ResultRecord),
		logger:  logger,
		now:     time.Now,
	}
	s.janitor = startJanitor(cleanupFreq, s.Cleanup, logger)
	return s
}

// Get retrieves the record for an address
func (s *MemoryStore) Get(ctx context.Context, email string) (*core.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[email]
	if !ok || !s.now().Before(rec.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Set stores a record, replacing any earlier verdict for the address
func (s *MemoryStore) Set(ctx context.Context, record *core.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.Email] = *record
	return nil
}

// Delete removes a record
func (s *MemoryStore) Delete(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, email)
	return nil
}

// Cleanup removes expired records
func (s *MemoryStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expired := 0
	for email, rec := range s.records {
		if !now.Before(rec.ExpiresAt) {
			delete(s.records, email)
			expired++
		}
	}

	s.logger.Debug("Cleaned up expired result records", zap.Int("expired_count", expired))
	return nil
}

// Len returns the number of stored records, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Stop stops the background cleanup task
func (s *MemoryStore) Stop() {
	s.janitor.stop()
}

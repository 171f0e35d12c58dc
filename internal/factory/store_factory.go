package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mikey/email-verifier/internal/adapters/store"
	"github.com/mikey/email-verifier/internal/config"
	"github.com/mikey/email-verifier/internal/core"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// HistoryStore is a result repository with a background cleanup task
type HistoryStore interface {
	core.ResultRepository
	Stop()
}

// StoreFactory creates result history repositories based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateHistoryStore creates a repository based on the configuration. It returns nil
// when history is disabled.
func (f *StoreFactory) CreateHistoryStore() (HistoryStore, error) {
	hc, err := f.cfg.GetHistory()
	if err != nil {
		return nil, fmt.Errorf("invalid history configuration: %w", err)
	}
	if !hc.Enabled {
		f.logger.Debug("Result history disabled")
		return nil, nil
	}

	var hs HistoryStore
	switch hc.Type {
	case "memory":
		hs = store.NewMemoryStore(f.logger, hc.CleanupFrequency)
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(hc.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		hs, err = store.NewSQLiteStore(hc.SQLitePath, f.logger, hc.CleanupFrequency)
	case "mysql":
		hs, err = store.NewMySQLStore(hc.MySQLDSN, f.logger, hc.CleanupFrequency)
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		hs, err = store.NewPostgresStore(ctx, hc.PostgresDSN, int32(hc.PostgresMaxConns), f.logger, hc.CleanupFrequency)
	default:
		return nil, core.ConfigurationError("history.type", fmt.Errorf("unsupported history type: %s", hc.Type))
	}
	if err != nil {
		return nil, err
	}

	f.logger.Debug("Created result history store", zap.String("type", hc.Type))
	return hs, nil
}

// SessionConfig returns the session tunables derived from the configuration
func (f *StoreFactory) SessionConfig() (core.SessionConfig, error) {
	hc, err := f.cfg.GetHistory()
	if err != nil {
		return core.SessionConfig{}, fmt.Errorf("invalid history configuration: %w", err)
	}
	tc, err := f.cfg.GetTransport()
	if err != nil {
		return core.SessionConfig{}, fmt.Errorf("invalid transport configuration: %w", err)
	}
	return core.SessionConfig{
		HistoryEnabled: hc.Enabled,
		HistoryTTL:     hc.TTL,
		ReadBufferSize: tc.ReadBufferSize,
	}, nil
}

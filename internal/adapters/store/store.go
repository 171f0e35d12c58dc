package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when no live record exists for an address
	ErrNotFound = errors.New("result record not found")
)

// janitor runs a repository's Cleanup on a fixed schedule until stopped
type janitor struct {
	freq    time.Duration
	cleanup func(ctx context.Context) error
	logger  *zap.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func startJanitor(freq time.Duration, cleanup func(ctx context.Context) error, logger *zap.Logger) *janitor {
	j := &janitor{
		freq:    freq,
		cleanup: cleanup,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	if freq <= 0 {
		close(j.doneCh)
		return j
	}

	go j.run()
	return j
}

func (j *janitor) run() {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.cleanup(context.Background()); err != nil {
				j.logger.Error("Failed to clean up result history", zap.Error(err))
			}
		case <-j.stopCh:
			return
		}
	}
}

// stop is safe to call more than once
func (j *janitor) stop() {
	select {
	case <-j.stopCh:
	default:
		close(j.stopCh)
	}
	<-j.doneCh
}

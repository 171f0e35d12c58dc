package core

import (
	"fmt"
	"sync"
)

// ResultAggregator accumulates classified events for the active job. Writes come from the
// session's read loop; snapshots may be taken from any goroutine.
type ResultAggregator struct {
	mu      sync.RWMutex
	status  string
	valid   []string
	invalid []string
	unknown []string
	log     []string
}

// NewResultAggregator creates an empty aggregator
func NewResultAggregator() *ResultAggregator {
	return &ResultAggregator{}
}

// FormatLogLine renders the activity log line for a result
func FormatLogLine(email, status string) string {
	return fmt.Sprintf("✔️ %s → %s", email, status)
}

// Apply folds one event into the result set. Replaying an event duplicates it.
func (a *ResultAggregator) Apply(event ClassifiedEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch event.Kind {
	case EventInfo:
		a.status = event.Message
	case EventResult:
		a.log = append(a.log, FormatLogLine(event.Email, event.Status))
		switch event.Bucket {
		case BucketValid:
			a.valid = append(a.valid, event.Email)
		case BucketInvalid:
			a.invalid = append(a.invalid, event.Email)
		default:
			a.unknown = append(a.unknown, event.Email)
		}
	}
}

// SetStatus replaces the status narration
func (a *ResultAggregator) SetStatus(status string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = status
}

// Status returns the current status narration
func (a *ResultAggregator) Status() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Reset clears everything for a new job
func (a *ResultAggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = ""
	a.valid = nil
	a.invalid = nil
	a.unknown = nil
	a.log = nil
}

// Snapshot returns an immutable copy of the current state
func (a *ResultAggregator) Snapshot() ResultSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return ResultSnapshot{
		Status:  a.status,
		Valid:   cloneStrings(a.valid),
		Invalid: cloneStrings(a.invalid),
		Unknown: cloneStrings(a.unknown),
		Log:     cloneStrings(a.log),
	}
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

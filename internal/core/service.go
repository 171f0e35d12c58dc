package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// StatusUploading is the narration shown while the request is being sent
	StatusUploading = "Uploading & verifying..."
	// StatusComplete is the narration shown when the stream ended normally
	StatusComplete = "✅ Verification complete."
	// VerificationFailedMessage is the user-visible message for an aborted job
	VerificationFailedMessage = "Verification failed ❌"
	// ProbeFailedMessage is the user-visible message for a failed proxy probe
	ProbeFailedMessage = "Proxy test failed ❌"
	// ProbeUnknownStatus is reported when the service answers without a status
	ProbeUnknownStatus = "Unknown"

	defaultReadBufferSize = 4096
)

// ErrHistoryDisabled is returned by Lookup when no history repository is configured
var ErrHistoryDisabled = errors.New("result history disabled")

// FrameErrorSink is implemented by sinks that want to see discarded frames
type FrameErrorSink interface {
	OnFrameError(err error)
}

// SessionConfig holds the tunables of a Session
type SessionConfig struct {
	HistoryEnabled bool
	HistoryTTL     time.Duration
	ReadBufferSize int
}

// VerifyRequest is the user's input for one job
type VerifyRequest struct {
	FileName string
	Content  []byte
	Proxies  []ProxySpec
}

// Session is one client session. It owns at most one active job and its connection.
type Session struct {
	pool       *GatewayPool
	submitter  Submitter
	prober     ProxyProber
	classifier *EventClassifier
	results    *ResultAggregator
	history    ResultRepository
	logger     *zap.Logger
	cfg        SessionConfig
	newID      func() string
	now        func() time.Time

	mu     sync.Mutex
	job    *UploadJob
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
	sinks  []EventSink
}

// NewSession creates a new session. history may be nil when HistoryEnabled is false.
func NewSession(
	pool *GatewayPool,
	submitter Submitter,
	prober ProxyProber,
	classifier *EventClassifier,
	history ResultRepository,
	logger *zap.Logger,
	cfg SessionConfig,
) *Session {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = defaultReadBufferSize
	}
	if history == nil {
		cfg.HistoryEnabled = false
	}
	return &Session{
		pool:       pool,
		submitter:  submitter,
		prober:     prober,
		classifier: classifier,
		results:    NewResultAggregator(),
		history:    history,
		logger:     logger,
		cfg:        cfg,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// AddSink registers an observer
func (s *Session) AddSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Verify runs one job to completion on the caller's goroutine. It fails with
// ErrJobInFlight while another job is uploading or streaming.
func (s *Session) Verify(ctx context.Context, req VerifyRequest) (UploadJob, error) {
	job, runCtx, err := s.begin(ctx, req)
	if err != nil {
		return UploadJob{}, err
	}

	s.logger.Info("Starting verification job",
		zap.String("job_id", job.ID),
		zap.String("endpoint", string(job.Endpoint)),
		zap.Int("size", len(job.Content)),
		zap.Int("proxies", len(job.Proxies)))

	body, err := s.submitter.Submit(runCtx, job.Endpoint, job)
	if err != nil {
		return s.finish(job, err)
	}

	s.transition(job, JobStreaming)
	err = s.stream(runCtx, job, body)
	if cerr := body.Close(); cerr != nil {
		s.logger.Debug("Failed to close response stream", zap.Error(cerr))
	}
	return s.finish(job, err)
}

// Restart cancels any active job, waits for its connection to be released and starts a new one
func (s *Session) Restart(ctx context.Context, req VerifyRequest) (UploadJob, error) {
	s.Cancel()
	return s.Verify(ctx, req)
}

// Cancel stops the active job, if any, and blocks until its read loop has returned
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close cancels the active job and rejects further jobs
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Cancel()
}

// State returns the state of the current job, or JobIdle when none was started
func (s *Session) State() JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return JobIdle
	}
	return s.job.State
}

// Job returns a copy of the current job
func (s *Session) Job() (UploadJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return UploadJob{}, false
	}
	return *s.job, true
}

// Snapshot returns the accumulated results of the current job
func (s *Session) Snapshot() ResultSnapshot {
	return s.results.Snapshot()
}

// ProbeProxy checks one proxy and returns the status text to show to the user
func (s *Session) ProbeProxy(ctx context.Context, proxy ProxySpec) string {
	endpoint := s.pool.Select()
	result, err := s.prober.Probe(ctx, endpoint, proxy)
	if err != nil {
		s.logger.Warn("Proxy probe failed",
			zap.String("endpoint", string(endpoint)),
			zap.String("proxy", proxy.Address),
			zap.Error(err))
		return ProbeFailedMessage
	}
	if strings.TrimSpace(result.Status) == "" {
		return ProbeUnknownStatus
	}
	return result.Status
}

// ProbeAll checks every proxy of the pool in order
func (s *Session) ProbeAll(ctx context.Context, proxies []ProxySpec) []ProbeResult {
	results := make([]ProbeResult, 0, len(proxies))
	for _, proxy := range proxies {
		if ctx.Err() != nil {
			results = append(results, ProbeResult{Proxy: proxy, Status: ProbeFailedMessage})
			continue
		}
		results = append(results, ProbeResult{Proxy: proxy, Status: s.ProbeProxy(ctx, proxy)})
	}
	return results
}

// Lookup returns the last recorded verdict for an address
func (s *Session) Lookup(ctx context.Context, email string) (*ResultRecord, error) {
	if !s.cfg.HistoryEnabled {
		return nil, ErrHistoryDisabled
	}
	return s.history.Get(ctx, strings.TrimSpace(email))
}

// begin enforces single-flight and creates the job
func (s *Session) begin(ctx context.Context, req VerifyRequest) (*UploadJob, context.Context, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, ErrSessionClosed
	}
	if s.job != nil && s.job.State.Active() {
		s.mu.Unlock()
		return nil, nil, ErrJobInFlight
	}

	runCtx, cancel := context.WithCancel(ctx)
	job := &UploadJob{
		ID:        s.newID(),
		FileName:  req.FileName,
		Content:   req.Content,
		Proxies:   req.Proxies,
		State:     JobUploading,
		Endpoint:  s.pool.Select(),
		StartedAt: s.now(),
	}
	s.job = job
	s.cancel = cancel
	s.done = make(chan struct{})
	s.results.Reset()
	s.results.SetStatus(StatusUploading)
	sinks := s.sinks
	s.mu.Unlock()

	for _, sink := range sinks {
		sink.OnStateChange(JobUploading)
	}
	return job, runCtx, nil
}

// stream drives the decoder from the response body until EOF, error or cancellation
func (s *Session) stream(ctx context.Context, job *UploadJob, body io.Reader) error {
	decoder := NewFrameDecoder()
	buf := make([]byte, s.cfg.ReadBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := body.Read(buf)
		if n > 0 {
			for _, frame := range decoder.Feed(buf[:n]) {
				s.handleFrame(ctx, job, frame)
			}
		}

		if errors.Is(err, io.EOF) {
			if rest := decoder.Finish(); strings.TrimSpace(rest) != "" {
				s.logger.Warn("Discarding unterminated trailing frame",
					zap.String("job_id", job.ID),
					zap.Int("size", len(rest)))
			}
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return ConnectionError("core.stream", err)
		}
	}
}

// handleFrame classifies and applies one frame. A bad frame is reported and skipped.
func (s *Session) handleFrame(ctx context.Context, job *UploadJob, frame Frame) {
	event, err := s.classifier.Classify(frame)
	if err != nil {
		s.logger.Warn("Skipping malformed frame",
			zap.String("job_id", job.ID),
			zap.Int("payload_size", len(frame.Payload)),
			zap.Error(err))
		for _, sink := range s.currentSinks() {
			if fs, ok := sink.(FrameErrorSink); ok {
				fs.OnFrameError(err)
			}
		}
		return
	}

	s.results.Apply(event)

	if event.Kind == EventResult {
		s.logger.Debug("Received result",
			zap.String("job_id", job.ID),
			zap.String("email", event.Email),
			zap.String("status", event.Status),
			zap.String("bucket", string(event.Bucket)))
		if s.cfg.HistoryEnabled {
			s.record(ctx, job, event)
		}
	}

	for _, sink := range s.currentSinks() {
		sink.OnEvent(event)
	}
}

// record stores the verdict in the history repository
func (s *Session) record(ctx context.Context, job *UploadJob, event ClassifiedEvent) {
	now := s.now()
	record := &ResultRecord{
		Email:      event.Email,
		Status:     event.Status,
		Bucket:     event.Bucket,
		JobID:      job.ID,
		Endpoint:   job.Endpoint,
		VerifiedAt: now,
		ExpiresAt:  now.Add(s.cfg.HistoryTTL),
	}
	if err := s.history.Set(ctx, record); err != nil {
		s.logger.Error("Failed to record verification result",
			zap.String("email", event.Email),
			zap.Error(err))
	}
}

func (s *Session) transition(job *UploadJob, state JobState) {
	s.mu.Lock()
	job.State = state
	sinks := s.sinks
	s.mu.Unlock()

	for _, sink := range sinks {
		sink.OnStateChange(state)
	}
}

// finish records the outcome, releases the job's context and wakes Cancel callers
func (s *Session) finish(job *UploadJob, err error) (UploadJob, error) {
	s.mu.Lock()
	job.EndedAt = s.now()
	if err != nil {
		job.State = JobFailed
		job.Err = err
	} else {
		job.State = JobComplete
		s.results.SetStatus(StatusComplete)
	}
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	out := *job
	sinks := s.sinks
	s.mu.Unlock()

	cancel()
	close(done)

	if err != nil {
		s.logger.Error("Verification job failed",
			zap.String("job_id", job.ID),
			zap.String("endpoint", string(job.Endpoint)),
			zap.Error(err))
		err = fmt.Errorf("failed to verify %s: %w", job.FileName, err)
	} else {
		snap := s.results.Snapshot()
		s.logger.Info("Verification job complete",
			zap.String("job_id", job.ID),
			zap.Int("valid", len(snap.Valid)),
			zap.Int("invalid", len(snap.Invalid)),
			zap.Int("unknown", len(snap.Unknown)),
			zap.Duration("duration", job.EndedAt.Sub(job.StartedAt)))
	}

	for _, sink := range sinks {
		sink.OnStateChange(out.State)
	}
	return out, err
}

func (s *Session) currentSinks() []EventSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sinks
}

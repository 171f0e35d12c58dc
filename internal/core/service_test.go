package core

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type chunkReader struct {
	chunks []string
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

type fakeSubmitter struct {
	mu        sync.Mutex
	bodies    []func(ctx context.Context) io.ReadCloser
	err       error
	endpoints []Endpoint
	jobs      []string
}

func (f *fakeSubmitter) Submit(ctx context.Context, endpoint Endpoint, job *UploadJob) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endpoints = append(f.endpoints, endpoint)
	f.jobs = append(f.jobs, job.FileName)
	if f.err != nil {
		return nil, f.err
	}
	body := f.bodies[0]
	f.bodies = f.bodies[1:]
	return body(ctx), nil
}

func staticBody(chunks ...string) func(context.Context) io.ReadCloser {
	return func(context.Context) io.ReadCloser {
		return io.NopCloser(&chunkReader{chunks: chunks})
	}
}

type releasingBody struct {
	*io.PipeReader
	once     sync.Once
	released chan<- struct{}
}

func (b *releasingBody) Close() error {
	b.once.Do(func() { close(b.released) })
	return b.PipeReader.Close()
}

// blockingBody never ends on its own; it fails once ctx is cancelled and reports
// when the session closes it.
func blockingBody(first string, released chan<- struct{}) func(context.Context) io.ReadCloser {
	return func(ctx context.Context) io.ReadCloser {
		pr, pw := io.Pipe()
		go func() {
			_, _ = pw.Write([]byte(first))
			<-ctx.Done()
			_ = pw.CloseWithError(ctx.Err())
		}()
		return &releasingBody{PipeReader: pr, released: released}
	}
}

type fakeProber struct {
	result *ProbeResult
	err    error
}

func (f *fakeProber) Probe(_ context.Context, _ Endpoint, proxy ProxySpec) (*ProbeResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.Proxy = proxy
	return &r, nil
}

type recordingSink struct {
	mu          sync.Mutex
	events      []ClassifiedEvent
	states      []JobState
	frameErrors []error
	streaming   chan struct{}
}

func (s *recordingSink) OnEvent(event ClassifiedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) OnStateChange(state JobState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
	if state == JobStreaming && s.streaming != nil {
		select {
		case s.streaming <- struct{}{}:
		default:
		}
	}
}

func (s *recordingSink) OnFrameError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameErrors = append(s.frameErrors, err)
}

type memoryHistory struct {
	mu      sync.Mutex
	records map[string]*ResultRecord
}

func (h *memoryHistory) Get(_ context.Context, email string) (*ResultRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.records[email]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

func (h *memoryHistory) Set(_ context.Context, record *ResultRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[record.Email] = record
	return nil
}

func (h *memoryHistory) Delete(_ context.Context, email string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.records, email)
	return nil
}

func (h *memoryHistory) Cleanup(context.Context) error { return nil }

var (
	_ Submitter        = (*fakeSubmitter)(nil)
	_ ProxyProber      = (*fakeProber)(nil)
	_ EventSink        = (*recordingSink)(nil)
	_ FrameErrorSink   = (*recordingSink)(nil)
	_ ResultRepository = (*memoryHistory)(nil)
)

func newTestSession(t *testing.T, sub Submitter, prober ProxyProber, history ResultRepository) (*Session, *recordingSink) {
	t.Helper()
	pool, err := NewGatewayPool([]string{"A", "B"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := NewSession(pool, sub, prober, NewEventClassifier(UnknownAsInvalid), history, zap.NewNop(), SessionConfig{
		HistoryEnabled: history != nil,
		HistoryTTL:     time.Hour,
		ReadBufferSize: 16,
	})
	sink := &recordingSink{streaming: make(chan struct{}, 1)}
	s.AddSink(sink)
	return s, sink
}

func TestVerifyScenario(t *testing.T) {
	sub := &fakeSubmitter{bodies: []func(context.Context) io.ReadCloser{staticBody(
		"data: {\"info\":\"starting\"}\n\n",
		"data: {\"email\":\"x@y.com\",\"status\":\"Valid\"}\n\n",
		"data: {\"email\":\"z@y.com\",\"status\":\"Invalid-syntax\"}\n\n",
	)}}
	s, sink := newTestSession(t, sub, nil, nil)

	job, err := s.Verify(context.Background(), VerifyRequest{FileName: "list.csv", Content: []byte("x@y.com\nz@y.com")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.State != JobComplete || s.State() != JobComplete {
		t.Fatalf("expected complete job, got %s", job.State)
	}
	if job.Endpoint != "A" && job.Endpoint != "B" {
		t.Fatalf("unexpected endpoint %q", job.Endpoint)
	}
	if job.EndedAt.Before(job.StartedAt) {
		t.Fatalf("expected EndedAt >= StartedAt")
	}

	snap := s.Snapshot()
	if !reflect.DeepEqual(snap.Valid, []string{"x@y.com"}) {
		t.Fatalf("unexpected valid %v", snap.Valid)
	}
	if !reflect.DeepEqual(snap.Invalid, []string{"z@y.com"}) {
		t.Fatalf("unexpected invalid %v", snap.Invalid)
	}
	wantLog := []string{FormatLogLine("x@y.com", "Valid"), FormatLogLine("z@y.com", "Invalid-syntax")}
	if !reflect.DeepEqual(snap.Log, wantLog) {
		t.Fatalf("unexpected log %v", snap.Log)
	}
	if snap.Status != StatusComplete {
		t.Fatalf("unexpected status %q", snap.Status)
	}

	if len(sink.events) != 3 || sink.events[0].Kind != EventInfo || sink.events[0].Message != "starting" {
		t.Fatalf("unexpected events %+v", sink.events)
	}
	if sink.events[1].Email != "x@y.com" || sink.events[2].Email != "z@y.com" {
		t.Fatalf("events out of order %+v", sink.events)
	}
	wantStates := []JobState{JobUploading, JobStreaming, JobComplete}
	if !reflect.DeepEqual(sink.states, wantStates) {
		t.Fatalf("unexpected states %v", sink.states)
	}
}

func TestVerifySplitFrame(t *testing.T) {
	second := "data: {\"email\":\"x@y.com\",\"status\":\"Valid\"}\n\ndata: {\"email\":\"z@y.com\",\"status\":\"Invalid-syntax\"}\n\n"
	cut := len("data: {\"email\":\"x@y")
	sub := &fakeSubmitter{bodies: []func(context.Context) io.ReadCloser{staticBody(
		"data: {\"info\":\"starting\"}\n\n", second[:cut], second[cut:],
	)}}
	s, sink := newTestSession(t, sub, nil, nil)

	if _, err := s.Verify(context.Background(), VerifyRequest{FileName: "list.csv"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := s.Snapshot()
	if !reflect.DeepEqual(snap.Valid, []string{"x@y.com"}) || !reflect.DeepEqual(snap.Invalid, []string{"z@y.com"}) {
		t.Fatalf("unexpected partition %+v", snap)
	}
	if len(sink.events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(sink.events))
	}
}

func TestVerifyMalformedFrameIsIsolated(t *testing.T) {
	sub := &fakeSubmitter{bodies: []func(context.Context) io.ReadCloser{staticBody(
		"data: {not json}\n\n",
		"data: {\"email\":\"x@y.com\",\"status\":\"Valid\"}\n\n",
	)}}
	s, sink := newTestSession(t, sub, nil, nil)

	job, err := s.Verify(context.Background(), VerifyRequest{FileName: "list.csv"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.State != JobComplete {
		t.Fatalf("expected complete job, got %s", job.State)
	}
	if len(sink.events) != 1 || sink.events[0].Email != "x@y.com" {
		t.Fatalf("expected one classified event, got %+v", sink.events)
	}
	if len(sink.frameErrors) != 1 || !IsKind(sink.frameErrors[0], KindSchema) {
		t.Fatalf("expected one schema error, got %v", sink.frameErrors)
	}
}

func TestVerifyTrailingPartialFrameDiscarded(t *testing.T) {
	sub := &fakeSubmitter{bodies: []func(context.Context) io.ReadCloser{staticBody(
		"data: {\"email\":\"x@y.com\",\"status\":\"Valid\"}\n\n",
		"data: {\"email\":\"z@y.com\",\"status\":\"Valid\"}",
	)}}
	s, _ := newTestSession(t, sub, nil, nil)

	if _, err := s.Verify(context.Background(), VerifyRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Snapshot().Valid; !reflect.DeepEqual(got, []string{"x@y.com"}) {
		t.Fatalf("expected unterminated frame to be dropped, got %v", got)
	}
}

func TestVerifySubmitErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"connection", ConnectionError("test", errors.New("refused")), KindConnection},
		{"service", ServiceError("test", 502), KindService},
	} {
		sub := &fakeSubmitter{err: tc.err}
		s, sink := newTestSession(t, sub, nil, nil)

		job, err := s.Verify(context.Background(), VerifyRequest{FileName: "list.csv"})
		if !IsKind(err, tc.kind) {
			t.Fatalf("%s: expected %s error, got %v", tc.name, tc.kind, err)
		}
		if job.State != JobFailed || !IsKind(job.Err, tc.kind) {
			t.Fatalf("%s: expected failed job, got %+v", tc.name, job)
		}
		if !reflect.DeepEqual(sink.states, []JobState{JobUploading, JobFailed}) {
			t.Fatalf("%s: unexpected states %v", tc.name, sink.states)
		}
	}
}

func TestVerifyMidStreamFailure(t *testing.T) {
	sub := &fakeSubmitter{bodies: []func(context.Context) io.ReadCloser{func(context.Context) io.ReadCloser {
		return io.NopCloser(&chunkReader{
			chunks: []string{"data: {\"email\":\"x@y.com\",\"status\":\"Valid\"}\n\n"},
			err:    errors.New("connection reset by peer"),
		})
	}}}
	s, _ := newTestSession(t, sub, nil, nil)

	job, err := s.Verify(context.Background(), VerifyRequest{})
	if !IsKind(err, KindConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if job.State != JobFailed {
		t.Fatalf("expected failed job, got %s", job.State)
	}
	if got := s.Snapshot().Valid; len(got) != 1 {
		t.Fatalf("expected results received before the failure to be kept, got %v", got)
	}
}

func TestVerifySingleFlightAndCancel(t *testing.T) {
	released := make(chan struct{})
	sub := &fakeSubmitter{bodies: []func(context.Context) io.ReadCloser{
		blockingBody("data: {\"email\":\"x@y.com\",\"status\":\"Valid\"}\n\n", released),
	}}
	s, sink := newTestSession(t, sub, nil, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Verify(context.Background(), VerifyRequest{FileName: "first.csv"})
		errCh <- err
	}()

	select {
	case <-sink.streaming:
	case <-time.After(2 * time.Second):
		t.Fatalf("job never started streaming")
	}

	if _, err := s.Verify(context.Background(), VerifyRequest{FileName: "second.csv"}); !errors.Is(err, ErrJobInFlight) {
		t.Fatalf("expected ErrJobInFlight, got %v", err)
	}

	s.Cancel()

	select {
	case <-released:
	default:
		t.Fatalf("expected connection released before Cancel returned")
	}
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.State() != JobFailed {
		t.Fatalf("expected failed state after cancel, got %s", s.State())
	}
}

func TestRestartReplacesStreamingJob(t *testing.T) {
	released := make(chan struct{})
	sub := &fakeSubmitter{bodies: []func(context.Context) io.ReadCloser{
		blockingBody("data: {\"email\":\"old@y.com\",\"status\":\"Valid\"}\n\n", released),
		staticBody("data: {\"email\":\"new@y.com\",\"status\":\"Invalid\"}\n\n"),
	}}
	s, sink := newTestSession(t, sub, nil, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Verify(context.Background(), VerifyRequest{FileName: "first.csv"})
		errCh <- err
	}()
	<-sink.streaming

	job, err := s.Restart(context.Background(), VerifyRequest{FileName: "second.csv"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(<-errCh, context.Canceled) {
		t.Fatalf("expected first job to be cancelled")
	}
	if job.State != JobComplete || job.FileName != "second.csv" {
		t.Fatalf("unexpected job %+v", job)
	}

	snap := s.Snapshot()
	if len(snap.Valid) != 0 || !reflect.DeepEqual(snap.Invalid, []string{"new@y.com"}) {
		t.Fatalf("expected results reset for the new job, got %+v", snap)
	}
}

func TestClosedSessionRejectsJobs(t *testing.T) {
	s, _ := newTestSession(t, &fakeSubmitter{}, nil, nil)
	s.Close()
	if _, err := s.Verify(context.Background(), VerifyRequest{}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestVerifyRecordsHistory(t *testing.T) {
	history := &memoryHistory{records: map[string]*ResultRecord{}}
	sub := &fakeSubmitter{bodies: []func(context.Context) io.ReadCloser{staticBody(
		"data: {\"email\":\"x@y.com\",\"status\":\"Valid\"}\n\n",
	)}}
	s, _ := newTestSession(t, sub, nil, history)

	job, err := s.Verify(context.Background(), VerifyRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := s.Lookup(context.Background(), " x@y.com ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != "Valid" || rec.Bucket != BucketValid || rec.JobID != job.ID {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.ExpiresAt.After(rec.VerifiedAt) {
		t.Fatalf("expected expiry after verification time")
	}
}

func TestLookupWithoutHistory(t *testing.T) {
	s, _ := newTestSession(t, &fakeSubmitter{}, nil, nil)
	if _, err := s.Lookup(context.Background(), "x@y.com"); !errors.Is(err, ErrHistoryDisabled) {
		t.Fatalf("expected ErrHistoryDisabled, got %v", err)
	}
}

func TestProbeProxyMessages(t *testing.T) {
	proxy := ProxySpec{Address: "1.1.1.1:1080"}

	s, _ := newTestSession(t, &fakeSubmitter{}, &fakeProber{result: &ProbeResult{Status: "Proxy OK ✅"}}, nil)
	if got := s.ProbeProxy(context.Background(), proxy); got != "Proxy OK ✅" {
		t.Fatalf("unexpected status %q", got)
	}

	s, _ = newTestSession(t, &fakeSubmitter{}, &fakeProber{result: &ProbeResult{}}, nil)
	if got := s.ProbeProxy(context.Background(), proxy); got != ProbeUnknownStatus {
		t.Fatalf("expected Unknown, got %q", got)
	}

	s, _ = newTestSession(t, &fakeSubmitter{}, &fakeProber{err: ConnectionError("test", errors.New("refused"))}, nil)
	if got := s.ProbeProxy(context.Background(), proxy); got != ProbeFailedMessage {
		t.Fatalf("expected failure message, got %q", got)
	}
}

func TestProbeAllKeepsOrder(t *testing.T) {
	s, _ := newTestSession(t, &fakeSubmitter{}, &fakeProber{result: &ProbeResult{Status: "ok"}}, nil)
	proxies := []ProxySpec{{Address: "1.1.1.1:1"}, {Address: "2.2.2.2:2"}}

	results := s.ProbeAll(context.Background(), proxies)
	if len(results) != 2 || results[0].Proxy != proxies[0] || results[1].Proxy != proxies[1] {
		t.Fatalf("unexpected results %+v", results)
	}
}

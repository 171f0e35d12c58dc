package core

import (
	"context"
	"io"
)

// Submitter opens the streaming verification response for a job
type Submitter interface {
	// Submit sends the job to the endpoint and returns the response body stream
	Submit(ctx context.Context, endpoint Endpoint, job *UploadJob) (io.ReadCloser, error)
}

// ProxyProber checks a single proxy against the verification service
type ProxyProber interface {
	// Probe performs one request/response check of the proxy
	Probe(ctx context.Context, endpoint Endpoint, proxy ProxySpec) (*ProbeResult, error)
}

// EventSink observes a session. Calls happen on the session's control flow, in order.
type EventSink interface {
	// OnEvent is called after each classified event has been applied
	OnEvent(event ClassifiedEvent)

	// OnStateChange is called on every job state transition
	OnStateChange(state JobState)
}

// ResultRepository stores the last known verdict per address
type ResultRepository interface {
	// Get retrieves the record for an address
	Get(ctx context.Context, email string) (*ResultRecord, error)

	// Set stores a record
	Set(ctx context.Context, record *ResultRecord) error

	// Delete removes a record
	Delete(ctx context.Context, email string) error

	// Cleanup removes expired records
	Cleanup(ctx context.Context) error
}

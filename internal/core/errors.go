package core

import (
	"errors"
	"fmt"
)

var (
	// ErrJobInFlight is returned when a job is started while another one is uploading or streaming
	ErrJobInFlight = errors.New("verification job already in progress")
	// ErrSessionClosed is returned when a job is started on a closed session
	ErrSessionClosed = errors.New("session closed")
	// ErrEmptyPool is returned when no gateway endpoints are configured
	ErrEmptyPool = errors.New("gateway pool is empty")
)

// ErrorKind is a coarse-grained categorization for errors
type ErrorKind string

const (
	KindConnection    ErrorKind = "connection"
	KindService       ErrorKind = "service"
	KindSchema        ErrorKind = "schema"
	KindConfiguration ErrorKind = "configuration"
)

// Error wraps an underlying error with the operation that failed and its kind.
// Status is only set for service errors.
type Error struct {
	Op     string
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		base += fmt.Sprintf(" (status=%d)", e.Status)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ConnectionError reports a transport that could not be established or was interrupted
func ConnectionError(op string, err error) error {
	return &Error{Op: op, Kind: KindConnection, Err: err}
}

// ServiceError reports a non-success response received before streaming began
func ServiceError(op string, status int) error {
	return &Error{Op: op, Kind: KindService, Status: status}
}

// SchemaError reports a frame payload matching neither recognised shape
func SchemaError(op string, err error) error {
	return &Error{Op: op, Kind: KindSchema, Err: err}
}

// ConfigurationError reports an unusable configuration
func ConfigurationError(op string, err error) error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

// IsKind reports whether err is a *Error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// StatusOf returns the HTTP status carried by a service error, or 0
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Endpoint is the base URL of one verification service replica
type Endpoint string

// ProxySpec holds proxy connection parameters forwarded to the verification service.
// Raw is the line as the user wrote it; Address and the credentials are derived from it
// for the credential form fields only.
type ProxySpec struct {
	Raw      string
	Address  string
	Username string
	Password string
}

// IsEmpty reports whether no proxy is configured
func (p ProxySpec) IsEmpty() bool {
	return p.Raw == "" && p.Address == ""
}

// String returns the proxy as the user wrote it, or host:port[:username:password] when it
// was built from parts
func (p ProxySpec) String() string {
	if p.Raw != "" {
		return p.Raw
	}
	if p.Username == "" && p.Password == "" {
		return p.Address
	}
	return p.Address + ":" + p.Username + ":" + p.Password
}

// ParseProxySpec keeps one trimmed proxy line and splits it into address and credentials.
// Lines in URL form (scheme://[user:pass@]host:port) keep the scheme in Address. Otherwise
// the address is host:port, with IPv6 hosts in brackets, and what follows is
// username[:password]; the password may itself contain ':'. Anything else is kept whole as
// the address. A blank line yields an empty proxy.
func ParseProxySpec(line string) ProxySpec {
	line = strings.TrimSpace(line)
	if line == "" {
		return ProxySpec{}
	}

	spec := ProxySpec{Raw: line, Address: line}
	if strings.Contains(line, "://") {
		u, err := url.Parse(line)
		if err != nil || u.Host == "" {
			return spec
		}
		spec.Address = u.Scheme + "://" + u.Host
		if u.User != nil {
			spec.Username = u.User.Username()
			spec.Password, _ = u.User.Password()
		}
		return spec
	}

	end := hostPortEnd(line)
	if end < 0 {
		return spec
	}
	spec.Address = line[:end]
	if end == len(line) {
		return spec
	}

	creds := line[end+1:]
	if user, pass, ok := strings.Cut(creds, ":"); ok {
		spec.Username, spec.Password = user, pass
	} else {
		spec.Username = creds
	}
	return spec
}

// hostPortEnd returns the length of the leading host:port of line, or -1 when line does
// not start with one
func hostPortEnd(line string) int {
	hostEnd := strings.IndexByte(line, ':')
	if strings.HasPrefix(line, "[") {
		closing := strings.IndexByte(line, ']')
		if closing < 0 || closing+1 >= len(line) || line[closing+1] != ':' {
			return -1
		}
		hostEnd = closing + 1
	}
	if hostEnd <= 0 {
		return -1
	}

	portEnd := strings.IndexByte(line[hostEnd+1:], ':')
	if portEnd < 0 {
		portEnd = len(line)
	} else {
		portEnd += hostEnd + 1
	}
	if portEnd == hostEnd+1 {
		return -1
	}
	return portEnd
}

// ParseProxyPool keeps one proxy per line, skipping blank lines
func ParseProxyPool(text string) []ProxySpec {
	var pool []ProxySpec
	for _, line := range strings.Split(text, "\n") {
		spec := ParseProxySpec(line)
		if spec.IsEmpty() {
			continue
		}
		pool = append(pool, spec)
	}
	return pool
}

// JobState is the lifecycle state of an upload job
type JobState string

const (
	JobIdle      JobState = "idle"
	JobUploading JobState = "uploading"
	JobStreaming JobState = "streaming"
	JobComplete  JobState = "complete"
	JobFailed    JobState = "failed"
)

// Active reports whether the job currently owns a connection
func (s JobState) Active() bool {
	return s == JobUploading || s == JobStreaming
}

// UploadJob is one verification run owned by a session
type UploadJob struct {
	ID        string
	FileName  string
	Content   []byte
	Proxies   []ProxySpec
	State     JobState
	Endpoint  Endpoint
	StartedAt time.Time
	EndedAt   time.Time
	Err       error
}

// Frame is one complete unit of the streaming protocol
type Frame struct {
	Payload string
}

// EventKind tags a classified event
type EventKind string

const (
	EventInfo   EventKind = "info"
	EventResult EventKind = "result"
)

// Bucket is the partition a classified result belongs to. It doubles as the export tag.
type Bucket string

const (
	BucketValid   Bucket = "valid"
	BucketInvalid Bucket = "invalid"
	BucketUnknown Bucket = "unknown"
)

// ClassifiedEvent is either an informational status message or a per-address result
type ClassifiedEvent struct {
	Kind    EventKind
	Message string
	Email   string
	Status  string
	Bucket  Bucket
}

// InfoEvent creates an informational event
func InfoEvent(message string) ClassifiedEvent {
	return ClassifiedEvent{Kind: EventInfo, Message: message}
}

// ResultEvent creates a per-address result event
func ResultEvent(email, status string, bucket Bucket) ClassifiedEvent {
	return ClassifiedEvent{Kind: EventResult, Email: email, Status: status, Bucket: bucket}
}

// ResultSnapshot is a point-in-time copy of the accumulated results of a job
type ResultSnapshot struct {
	Status  string
	Valid   []string
	Invalid []string
	Unknown []string
	Log     []string
}

// Emails returns the sequence for the given bucket
func (s ResultSnapshot) Emails(bucket Bucket) []string {
	switch bucket {
	case BucketValid:
		return s.Valid
	case BucketInvalid:
		return s.Invalid
	default:
		return s.Unknown
	}
}

// ResultRecord is the last known verdict for an address, kept in the history repository
type ResultRecord struct {
	Email      string
	Status     string
	Bucket     Bucket
	JobID      string
	Endpoint   Endpoint
	VerifiedAt time.Time
	ExpiresAt  time.Time
}

// ProbeResult is the answer of a proxy probe
type ProbeResult struct {
	Proxy  ProxySpec
	Status string
}

// UnknownStatusPolicy decides where results with an unrecognised status label go
type UnknownStatusPolicy string

const (
	UnknownAsInvalid UnknownStatusPolicy = "invalid"
	UnknownAsUnknown UnknownStatusPolicy = "unknown"
	UnknownReject    UnknownStatusPolicy = "reject"
)

// ParseUnknownStatusPolicy validates a configured policy name
func ParseUnknownStatusPolicy(name string) (UnknownStatusPolicy, error) {
	switch p := UnknownStatusPolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case UnknownAsInvalid, UnknownAsUnknown, UnknownReject:
		return p, nil
	case "":
		return UnknownAsInvalid, nil
	default:
		return "", ConfigurationError("core.policy", fmt.Errorf("unsupported unknown status policy: %s", name))
	}
}

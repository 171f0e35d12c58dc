package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	validPrefix   = "Valid"
	invalidPrefix = "Invalid"
)

var errUnrecognisedShape = errors.New("payload carries neither info nor email/status")

// framePayload is the union of both recognised payload shapes
type framePayload struct {
	Info   *string `json:"info"`
	Email  *string `json:"email"`
	Status *string `json:"status"`
}

// EventClassifier interprets frame payloads
type EventClassifier struct {
	policy UnknownStatusPolicy
}

// NewEventClassifier creates a classifier with the given policy for unrecognised labels
func NewEventClassifier(policy UnknownStatusPolicy) *EventClassifier {
	if policy == "" {
		policy = UnknownAsInvalid
	}
	return &EventClassifier{policy: policy}
}

// Classify decodes a frame into an Info or Result event
func (c *EventClassifier) Classify(frame Frame) (ClassifiedEvent, error) {
	var p framePayload
	if err := json.Unmarshal([]byte(frame.Payload), &p); err != nil {
		return ClassifiedEvent{}, SchemaError("core.classify", fmt.Errorf("failed to parse frame payload: %w", err))
	}

	if p.Info != nil {
		return InfoEvent(*p.Info), nil
	}

	if p.Email == nil || p.Status == nil || *p.Email == "" {
		return ClassifiedEvent{}, SchemaError("core.classify", errUnrecognisedShape)
	}

	bucket, err := c.Bucket(*p.Status)
	if err != nil {
		return ClassifiedEvent{}, err
	}
	return ResultEvent(*p.Email, *p.Status, bucket), nil
}

// Bucket maps a status label to its bucket by exact, case-sensitive prefix
func (c *EventClassifier) Bucket(status string) (Bucket, error) {
	switch {
	case strings.HasPrefix(status, validPrefix):
		return BucketValid, nil
	case strings.HasPrefix(status, invalidPrefix):
		return BucketInvalid, nil
	}

	switch c.policy {
	case UnknownAsUnknown:
		return BucketUnknown, nil
	case UnknownReject:
		return "", SchemaError("core.classify", fmt.Errorf("unrecognised status label %q", status))
	default:
		return BucketInvalid, nil
	}
}

// Policy returns the configured unknown status policy
func (c *EventClassifier) Policy() UnknownStatusPolicy {
	return c.policy
}

package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoCandidate is returned by selectors when the candidate list is empty
	ErrNoCandidate = errors.New("no candidate backends")

	// ErrQueueClosed is returned when enqueuing onto a pool that has been stopped
	ErrQueueClosed = errors.New("backend queue closed")
)

type BackendError struct {
	Err        error
	Operation  string
	Backend    string
	URL        string
	StatusCode int
	Latency    time.Duration
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed for backend %s (%s): HTTP %d after %v: %v",
			e.Operation, e.Backend, e.URL, e.StatusCode, e.Latency, e.Err)
	}
	return fmt.Sprintf("%s failed for backend %s (%s) after %v: %v",
		e.Operation, e.Backend, e.URL, e.Latency, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func NewBackendError(operation string, cfg EndpointConfig, statusCode int, latency time.Duration, err error) *BackendError {
	return &BackendError{
		Operation:  operation,
		Backend:    cfg.Name,
		URL:        cfg.URLString(),
		StatusCode: statusCode,
		Latency:    latency,
		Err:        err,
	}
}

type ConfigValidationError struct {
	Value  interface{}
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s=%v: %s", e.Field, e.Value, e.Reason)
}

func NewConfigValidationError(field string, value interface{}, reason string) *ConfigValidationError {
	return &ConfigValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

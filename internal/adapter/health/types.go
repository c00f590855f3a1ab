package health

import (
	"net/http"
	"time"

	"github.com/corral-proxy/corral/internal/core/constants"
)

// State is a copy of a tracker's fields at one instant
type State struct {
	LastFailureAt time.Time
	LastError     string
	Failures      int
	Healthy       bool
	ProbeDue      bool
}

// Classify maps a backend status code onto an outcome class. Anything below
// 400 is a success, 429 is overload, 5xx is a server error and the remaining
// 4xx are the caller's problem.
func Classify(statusCode int) string {
	switch {
	case statusCode < http.StatusBadRequest:
		return constants.OutcomeSuccess
	case statusCode == http.StatusTooManyRequests:
		return constants.OutcomeOverload
	case statusCode >= http.StatusInternalServerError:
		return constants.OutcomeServerError
	default:
		return constants.OutcomeClientError
	}
}

// IsFailure reports whether an outcome counts against a backend's health.
// Client errors are returned to the caller but leave the backend alone.
func IsFailure(outcome string) bool {
	switch outcome {
	case constants.OutcomeOverload, constants.OutcomeServerError,
		constants.OutcomeTransport, constants.OutcomeTimeout:
		return true
	}
	return false
}

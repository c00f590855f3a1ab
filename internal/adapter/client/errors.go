package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/corral-proxy/corral/internal/core/domain"
)

// MakeUserFriendlyError turns a transport error into something an operator can
// act on. The result is what ends up as a backend's lastError and inside the
// error event sent to the caller.
//
//nolint:gocognit // a flat switch reads better than a lookup table here
func MakeUserFriendlyError(err error, duration time.Duration, errorContext string, headerTimeout time.Duration) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("request cancelled after %.1fs - client disconnected during processing", duration.Seconds())

	case errors.Is(err, context.DeadlineExceeded):
		if headerTimeout > 0 {
			return fmt.Errorf("request timeout after %.1fs - backend did not send headers within %.1fs",
				duration.Seconds(), headerTimeout.Seconds())
		}
		return fmt.Errorf("request timeout after %.1fs - backend response took too long", duration.Seconds())

	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if errorContext == "streaming" {
			return fmt.Errorf("backend closed connection after %.1fs - response stream ended unexpectedly", duration.Seconds())
		}
		return fmt.Errorf("connection closed after %.1fs - backend ended communication unexpectedly", duration.Seconds())
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			if errors.Is(err, syscall.ECONNREFUSED) {
				return fmt.Errorf("connection refused after %.1fs - backend at %s is not running or not accepting connections",
					duration.Seconds(), opErr.Addr)
			}
			return fmt.Errorf("connection failed after %.1fs - cannot reach backend at %s (check backend is running)",
				duration.Seconds(), opErr.Addr)
		case "read":
			return fmt.Errorf("connection lost after %.1fs while reading response - backend disconnected unexpectedly", duration.Seconds())
		case "write":
			return fmt.Errorf("connection lost after %.1fs while sending request - backend unavailable", duration.Seconds())
		}
	}

	if errors.Is(err, syscall.ECONNRESET) {
		return fmt.Errorf("connection reset after %.1fs - backend forcibly closed connection (possibly overloaded)", duration.Seconds())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("network timeout after %.1fs - unable to reach backend (check backend availability)", duration.Seconds())
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return fmt.Errorf("connection refused after %.1fs - backend is not running or not accepting connections", duration.Seconds())
	case strings.Contains(errStr, "no such host"):
		return fmt.Errorf("DNS lookup failed after %.1fs - cannot resolve backend hostname (check configuration)", duration.Seconds())
	case strings.Contains(errStr, "certificate"):
		return fmt.Errorf("TLS certificate error after %.1fs - invalid certificate on backend", duration.Seconds())
	}

	return fmt.Errorf("request failed after %.1fs: %w", duration.Seconds(), err)
}

// failure synthesizes the 500 event-stream response adapters return instead
// of an error
func failure(cfg domain.EndpointConfig, err error, started time.Time, headerTimeout time.Duration) *domain.Response {
	latency := time.Since(started)
	friendly := MakeUserFriendlyError(err, latency, "request", headerTimeout)
	resp := domain.NewSSEErrorResponse(http.StatusInternalServerError, friendly.Error())
	resp.Err = domain.NewBackendError("invoke", cfg, 0, latency, friendly)
	resp.Backend = cfg.Name
	return resp
}

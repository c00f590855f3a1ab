package security

/*
				Corral Security Adapter - Size Limit Validator
	SizeValidator rejects oversized requests before a body is read. Bodies
	without a Content-Length are wrapped in http.MaxBytesReader so the proxy
	handler fails the read instead.

	No mutable state, safe for concurrent use.
*/

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/docker/go-units"

	"github.com/corral-proxy/corral/internal/config"
	"github.com/corral-proxy/corral/internal/core/ports"
	"github.com/corral-proxy/corral/internal/logger"
	"github.com/corral-proxy/corral/internal/util"
)

const DefaultProtocol = "HTTP/1.1"

type SizeValidator struct {
	metrics       ports.SecurityMetricsService
	logger        logger.StyledLogger
	maxBodySize   int64
	maxHeaderSize int64
}

func NewSizeValidator(limits config.ServerRequestLimits, metrics ports.SecurityMetricsService, logger logger.StyledLogger) *SizeValidator {
	return &SizeValidator{
		maxBodySize:   limits.MaxBodyBytes,
		maxHeaderSize: limits.MaxHeaderBytes,
		metrics:       metrics,
		logger:        logger,
	}
}

func (sv *SizeValidator) Name() string {
	return "size_limit"
}

func (sv *SizeValidator) Validate(ctx context.Context, req ports.SecurityRequest) (ports.SecurityResult, error) {
	if sv.maxHeaderSize > 0 {
		size := estimateHeaderSize(req.Headers, req.Method, req.Endpoint, DefaultProtocol)
		if size > sv.maxHeaderSize {
			return ports.SecurityResult{
				Allowed: false,
				Reason: fmt.Sprintf("Request headers too large: %s exceeds limit %s",
					units.BytesSize(float64(size)), units.BytesSize(float64(sv.maxHeaderSize))),
			}, nil
		}
	}

	if sv.maxBodySize > 0 && req.BodySize > sv.maxBodySize {
		return ports.SecurityResult{
			Allowed: false,
			Reason: fmt.Sprintf("Request body too large: %s exceeds limit %s",
				units.BytesSize(float64(req.BodySize)), units.BytesSize(float64(sv.maxBodySize))),
		}, nil
	}

	return ports.SecurityResult{Allowed: true}, nil
}

func (sv *SizeValidator) CreateMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := ports.SecurityRequest{
				Endpoint: r.URL.RequestURI(),
				Method:   r.Method,
				BodySize: r.ContentLength,
				Headers:  r.Header,
			}

			result, err := sv.Validate(r.Context(), req)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Internal server error", "proxy_error")
				return
			}

			if !result.Allowed {
				sv.logger.Warn("Request rejected",
					"reason", result.Reason,
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr)

				if sv.metrics != nil {
					_ = sv.metrics.RecordViolation(r.Context(), ports.SecurityViolation{
						ClientID:      util.GetClientIP(r, false, nil),
						ViolationType: ports.ViolationSizeLimit,
						Endpoint:      r.URL.Path,
						Size:          r.ContentLength,
						Timestamp:     time.Now(),
					})
				}

				if sv.maxBodySize > 0 && r.ContentLength > sv.maxBodySize {
					writeError(w, http.StatusRequestEntityTooLarge, result.Reason, "request_too_large")
				} else {
					writeError(w, http.StatusRequestHeaderFieldsTooLarge, result.Reason, "request_too_large")
				}
				return
			}

			if sv.maxBodySize > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, sv.maxBodySize)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func estimateHeaderSize(headers http.Header, method, uri, proto string) int64 {
	totalSize := int64(len(method) + len(uri) + len(proto) + 4) // request line

	for name, values := range headers {
		for _, value := range values {
			totalSize += int64(len(name) + len(value) + 4) // ": " and CRLF
		}
	}

	return totalSize
}

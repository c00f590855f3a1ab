package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/corral-proxy/corral/internal/adapter/client"
	"github.com/corral-proxy/corral/internal/adapter/health"
	"github.com/corral-proxy/corral/internal/app/middleware"
	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/domain"
	"github.com/corral-proxy/corral/internal/core/ports"
	"github.com/corral-proxy/corral/internal/logger"
	"github.com/corral-proxy/corral/internal/util"
)

const proxyRouteLabel = "proxy"

func (a *Application) proxyHandler(w http.ResponseWriter, r *http.Request) {
	stats := ports.RequestStats{
		RequestID: middleware.GetRequestID(r.Context()),
		StartTime: time.Now(),
	}
	if stats.RequestID == "" {
		stats.RequestID = util.RequestIDFrom(r)
		w.Header().Set(constants.HeaderCorralRequestID, stats.RequestID)
	}

	requestLogger := a.logger.WithRequestID(stats.RequestID)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		a.rejectBody(w, requestLogger, err)
		a.recordHTTP(http.StatusBadRequest, stats.StartTime)
		return
	}

	rl := a.Config.Server.RateLimits
	clientIP := util.GetClientIP(r, rl.TrustProxyHeaders, rl.TrustedProxyCIDRsParsed)

	req := domain.NewRequest(stats.RequestID, NormalisePath(r.URL.Path), payload, r.Header.Clone())

	requestLogger.Info("Request started",
		"client_ip", clientIP,
		"path", r.URL.Path,
		"target_path", req.Path,
		"stream", req.WantsStream,
		"local_only", req.LocalOnly,
		"request_size", units.BytesSize(float64(len(payload))))

	resp := a.dispatch(r, req)
	stats.Backend = resp.Backend
	stats.StatusCode = resp.StatusCode
	stats.FailedOver = resp.FailedOver

	streamErr := a.writeResponse(w, resp, &stats)

	stats.EndTime = time.Now()
	stats.Latency = stats.EndTime.Sub(stats.StartTime).Milliseconds()

	if a.statsCollector != nil {
		a.statsCollector.RecordRequest(stats.Backend, outcomeOf(resp), stats.EndTime.Sub(stats.StartTime), req.WantsStream)
	}
	a.recordHTTP(stats.StatusCode, stats.StartTime)

	logFields := []any{
		"backend", stats.Backend,
		"status", stats.StatusCode,
		"failed_over", stats.FailedOver,
		"total_bytes", stats.TotalBytes,
		"duration_ms", stats.Latency,
		"first_data_ms", stats.FirstDataMs,
		"streaming_ms", stats.StreamingMs,
	}
	if streamErr != nil {
		requestLogger.Warn("Request ended early", append(logFields, "error", streamErr)...)
		return
	}
	requestLogger.Info("Request completed", logFields...)
}

// dispatch hands the request to the dispatcher in the configured mode
func (a *Application) dispatch(r *http.Request, req *domain.Request) *domain.Response {
	ctx := r.Context()
	if a.Config.Proxy.DispatchMode == constants.DispatchModeQueued {
		a.router.Submit(ctx, req)
		return a.router.Await(ctx, req)
	}
	return a.router.Route(ctx, req)
}

// writeResponse relays status, headers and body, flushing after every chunk
// so SSE events reach the caller as the backend produces them. The response
// is always closed.
func (a *Application) writeResponse(w http.ResponseWriter, resp *domain.Response, stats *ports.RequestStats) error {
	defer resp.Close()

	header := w.Header()
	for name, values := range resp.Header {
		if client.IsHopByHopHeader(name) || strings.EqualFold(name, "Content-Length") {
			continue
		}
		header[name] = values
	}
	if resp.Backend != "" {
		header.Set(constants.HeaderCorralBackend, resp.Backend)
	}
	if resp.FailedOver {
		header.Set(constants.HeaderCorralFailover, "true")
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body == nil {
		return nil
	}

	rc := http.NewResponseController(w)
	buf := a.buffers.Get()
	defer a.buffers.Put(buf)

	var firstData time.Time
	for {
		n, readErr := resp.Body.Read(*buf)
		if n > 0 {
			if firstData.IsZero() {
				firstData = time.Now()
				stats.FirstDataMs = firstData.Sub(stats.StartTime).Milliseconds()
			}
			written, writeErr := w.Write((*buf)[:n])
			stats.TotalBytes += int64(written)
			if writeErr != nil {
				return writeErr
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return err
			}
		}
		if readErr != nil {
			if !firstData.IsZero() {
				stats.StreamingMs = time.Since(firstData).Milliseconds()
			}
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}

func (a *Application) rejectBody(w http.ResponseWriter, requestLogger logger.StyledLogger, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		requestLogger.Warn("Request body too large", "limit", units.BytesSize(float64(maxBytes.Limit)))
		writeJSONError(w, http.StatusRequestEntityTooLarge, "request body exceeds "+units.BytesSize(float64(maxBytes.Limit)), "request_too_large")
		return
	}
	requestLogger.Warn("Failed to read request body", "error", err)
	writeJSONError(w, http.StatusBadRequest, "failed to read request body", "invalid_request_error")
}

func (a *Application) recordHTTP(statusCode int, started time.Time) {
	if a.metrics != nil {
		a.metrics.RecordHTTPRequest(proxyRouteLabel, statusCode, time.Since(started))
	}
}

// NormalisePath folds the Azure SDK deployment path onto the plain
// chat-completions path, every backend sees the same shape
func NormalisePath(path string) string {
	if rest, ok := strings.CutPrefix(path, constants.PathAzureDeploymentsPrefix); ok {
		if _, tail, found := strings.Cut(rest, "/"); found && "/"+tail == constants.PathChatCompletions {
			return constants.PathChatCompletions
		}
	}
	return path
}

// outcomeOf classifies the final response the caller received
func outcomeOf(resp *domain.Response) string {
	if resp.Err != nil {
		return constants.OutcomeTransport
	}
	return health.Classify(resp.StatusCode)
}

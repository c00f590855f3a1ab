package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/docker/go-units"

	"github.com/corral-proxy/corral/internal/app/middleware"
	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/util"
)

// LogServerConfig reports the limits the server is about to run with
func (a *Application) LogServerConfig() {
	configServer := a.Config.Server

	a.logger.Info("Starting Corral server...", "host", configServer.Host, "port", configServer.Port,
		"read_timeout", configServer.ReadTimeout, "write_timeout", configServer.WriteTimeout)

	if configServer.WriteTimeout > 0 {
		a.logger.Warn("Write timeout is set, long streamed completions will be cut off (default: 0s)",
			"write_timeout", configServer.WriteTimeout)
	}

	limits := configServer.RequestLimits
	if limits.MaxBodyBytes > 0 || limits.MaxHeaderBytes > 0 {
		a.logger.Info("Request size limits enabled",
			"max_body_size", units.BytesSize(float64(limits.MaxBodyBytes)),
			"max_header_size", units.BytesSize(float64(limits.MaxHeaderBytes)))
	}

	rl := configServer.RateLimits
	if rl.GlobalRequestsPerMinute > 0 || rl.PerIPRequestsPerMinute > 0 {
		a.logger.Info("Rate limiting enabled",
			"global_limit", rl.GlobalRequestsPerMinute,
			"per_ip_limit", rl.PerIPRequestsPerMinute,
			"burst_size", rl.BurstSize,
			"health_limit", rl.HealthRequestsPerMinute,
			"trust_proxy", rl.TrustProxyHeaders)
	}

	if rl.TrustProxyHeaders && len(rl.TrustedProxyCIDRs) > 0 {
		a.logger.Info("Configured trusted proxy CIDRs", "cidrs", strings.Join(rl.TrustedProxyCIDRs, ", "))
	}

	a.logger.Info("Dispatch configured",
		"mode", a.Config.Proxy.DispatchMode,
		"load_balancer", a.Config.Proxy.LoadBalancer,
		"queue_capacity", a.Config.Proxy.QueueCapacity,
		"invoke_timeout", a.Config.Proxy.InvokeTimeout,
		"await_timeout", a.Config.Proxy.AwaitTimeout)
}

func (a *Application) loggingMiddleware(next http.Handler) http.Handler {
	enhanced := middleware.EnhancedLoggingMiddleware(a.logger)
	access := middleware.AccessLoggingMiddleware(a.logger)
	return enhanced(access(next))
}

// requestIDMiddleware is the bare minimum when request logging is off, every
// response still carries its id
func (a *Application) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := util.RequestIDFrom(r)
		w.Header().Set(constants.HeaderCorralRequestID, requestID)
		ctx := context.WithValue(r.Context(), constants.ContextRequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

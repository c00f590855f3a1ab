package security

/*
				Corral Security Adapter - Rate Limit Validator
	RateLimitValidator enforces global and per-IP rate limits using token buckets.
	Health checks get their own, more generous, bucket per IP. Stale IP limiters
	are swept by a background goroutine.

	References:
	- https://pkg.go.dev/golang.org/x/time/rate
	- https://datatracker.ietf.org/doc/draft-ietf-httpapi-ratelimit-headers/
*/

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/corral-proxy/corral/internal/config"
	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/ports"
	"github.com/corral-proxy/corral/internal/logger"
	"github.com/corral-proxy/corral/internal/util"
)

const staleLimiterAge = 10 * time.Minute

type RateLimitValidator struct {
	metrics ports.SecurityMetricsService
	logger  logger.StyledLogger

	globalLimiter           *rate.Limiter
	cleanupTicker           *time.Ticker
	stopCleanup             chan struct{}
	ipLimiters              sync.Map
	trustedCIDRs            []*net.IPNet
	globalRequestsPerMinute int
	perIPRequestsPerMinute  int
	burstSize               int
	healthRequestsPerMinute int
	stopOnce                sync.Once
	trustProxyHeaders       bool
}

type ipLimiterInfo struct {
	lastAccess  time.Time
	windowStart time.Time
	limiter     *rate.Limiter
	tokensUsed  int
	mu          sync.Mutex
}

func NewRateLimitValidator(limits config.ServerRateLimits, metrics ports.SecurityMetricsService, logger logger.StyledLogger) *RateLimitValidator {
	burst := limits.BurstSize
	if burst < 1 {
		burst = 1
	}

	rl := &RateLimitValidator{
		globalRequestsPerMinute: limits.GlobalRequestsPerMinute,
		perIPRequestsPerMinute:  limits.PerIPRequestsPerMinute,
		burstSize:               burst,
		healthRequestsPerMinute: limits.HealthRequestsPerMinute,
		trustProxyHeaders:       limits.TrustProxyHeaders,
		trustedCIDRs:            limits.TrustedProxyCIDRsParsed,
		metrics:                 metrics,
		logger:                  logger,
		stopCleanup:             make(chan struct{}),
	}

	if limits.GlobalRequestsPerMinute > 0 {
		rl.globalLimiter = rate.NewLimiter(perMinute(limits.GlobalRequestsPerMinute), burst)
	}

	if limits.CleanupInterval > 0 {
		rl.cleanupTicker = time.NewTicker(limits.CleanupInterval)
		go rl.cleanupRoutine()
	}

	return rl
}

func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

func (rl *RateLimitValidator) Name() string {
	return "rate_limit"
}

// Validate applies the global bucket then the caller's per-IP bucket. A
// request rejected by the per-IP bucket gives its global token back.
func (rl *RateLimitValidator) Validate(ctx context.Context, req ports.SecurityRequest) (ports.SecurityResult, error) {
	now := time.Now()

	limit := rl.perIPRequestsPerMinute
	if req.IsHealthCheck {
		limit = rl.healthRequestsPerMinute
	}

	var global *rate.Reservation
	if rl.globalLimiter != nil && !req.IsHealthCheck {
		global = rl.globalLimiter.ReserveN(now, 1)
		if !global.OK() || global.DelayFrom(now) > 0 {
			global.CancelAt(now)
			return ports.SecurityResult{
				Allowed:    false,
				RetryAfter: retryAfter(rl.globalRequestsPerMinute),
				RateLimit:  rl.globalRequestsPerMinute,
				ResetTime:  now.Add(time.Minute),
				Reason:     "Global rate limit exceeded",
			}, nil
		}
	}

	if limit <= 0 {
		return ports.SecurityResult{
			Allowed:   true,
			ResetTime: now.Add(time.Minute),
		}, nil
	}

	result := rl.checkIPLimit(req.ClientID, limit, now, req.IsHealthCheck)
	if !result.Allowed && global != nil {
		global.CancelAt(now)
	}
	return result, nil
}

func retryAfter(limit int) int {
	if limit <= 0 {
		return 60
	}
	if seconds := 60 / limit; seconds > 0 {
		return seconds
	}
	return 1
}

// checkIPLimit handles per-IP enforcement, health checks use a separate bucket
func (rl *RateLimitValidator) checkIPLimit(clientIP string, limit int, now time.Time, isHealthEndpoint bool) ports.SecurityResult {
	bucketKey := clientIP
	if isHealthEndpoint {
		bucketKey = clientIP + ":health"
	}

	info := rl.getOrCreateLimiter(bucketKey, limit)
	info.mu.Lock()
	defer info.mu.Unlock()

	info.lastAccess = now
	if now.Sub(info.windowStart) >= time.Minute {
		info.windowStart = now
		info.tokensUsed = 0
	}

	reservation := info.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return ports.SecurityResult{
			Allowed:    false,
			RetryAfter: retryAfter(limit),
			RateLimit:  limit,
			ResetTime:  info.windowStart.Add(time.Minute),
			Reason:     "Rate limit exceeded",
		}
	}

	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return ports.SecurityResult{
			Allowed:    false,
			RetryAfter: int(delay.Seconds()) + 1,
			RateLimit:  limit,
			Remaining:  remaining(info.tokensUsed, limit),
			ResetTime:  info.windowStart.Add(time.Minute),
			Reason:     "Rate limit exceeded",
		}
	}

	info.tokensUsed++
	return ports.SecurityResult{
		Allowed:   true,
		RateLimit: limit,
		Remaining: remaining(info.tokensUsed, limit),
		ResetTime: info.windowStart.Add(time.Minute),
	}
}

func remaining(used, limit int) int {
	return max(limit-used, 0)
}

func (rl *RateLimitValidator) getOrCreateLimiter(key string, limit int) *ipLimiterInfo {
	if existing, ok := rl.ipLimiters.Load(key); ok {
		if info, ok := existing.(*ipLimiterInfo); ok {
			return info
		}
	}

	now := time.Now()
	fresh := &ipLimiterInfo{
		limiter:     rate.NewLimiter(perMinute(limit), rl.burstSize),
		lastAccess:  now,
		windowStart: now,
	}
	actual, _ := rl.ipLimiters.LoadOrStore(key, fresh)
	if info, ok := actual.(*ipLimiterInfo); ok {
		return info
	}
	return fresh
}

func (rl *RateLimitValidator) cleanupRoutine() {
	for {
		select {
		case <-rl.stopCleanup:
			return
		case <-rl.cleanupTicker.C:
			rl.cleanupOldLimiters(time.Now())
		}
	}
}

// cleanupOldLimiters drops IP limiters that have not been used recently
func (rl *RateLimitValidator) cleanupOldLimiters(now time.Time) {
	cutoff := now.Add(-staleLimiterAge)

	rl.ipLimiters.Range(func(key, value any) bool {
		info, ok := value.(*ipLimiterInfo)
		if !ok {
			rl.ipLimiters.Delete(key)
			return true
		}
		info.mu.Lock()
		lastAccess := info.lastAccess
		info.mu.Unlock()

		if lastAccess.Before(cutoff) {
			rl.ipLimiters.Delete(key)
		}
		return true
	})
}

func (rl *RateLimitValidator) Stop() {
	rl.stopOnce.Do(func() {
		if rl.cleanupTicker != nil {
			rl.cleanupTicker.Stop()
		}
		close(rl.stopCleanup)
	})
}

func (rl *RateLimitValidator) CreateMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := util.GetClientIP(r, rl.trustProxyHeaders, rl.trustedCIDRs)

			req := ports.SecurityRequest{
				ClientID:      clientIP,
				Endpoint:      r.URL.Path,
				Method:        r.Method,
				IsHealthCheck: r.URL.Path == constants.DefaultHealthCheckEndpoint,
			}

			result, err := rl.Validate(r.Context(), req)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Internal server error", "proxy_error")
				return
			}

			if result.RateLimit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.RateLimit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))
			}

			if !result.Allowed {
				w.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(result.RetryAfter))

				if rl.metrics != nil {
					_ = rl.metrics.RecordViolation(r.Context(), ports.SecurityViolation{
						ClientID:      clientIP,
						ViolationType: ports.ViolationRateLimit,
						Endpoint:      r.URL.Path,
						Timestamp:     time.Now(),
					})
				}

				rl.logger.Warn("Rate limit exceeded",
					"client_ip", clientIP,
					"method", r.Method,
					"path", r.URL.Path,
					"limit", result.RateLimit,
					"retry_after", result.RetryAfter)

				writeError(w, http.StatusTooManyRequests, result.Reason, "rate_limit_exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package security

import (
	"net/http"

	"github.com/corral-proxy/corral/internal/config"
	"github.com/corral-proxy/corral/internal/core/ports"
	"github.com/corral-proxy/corral/internal/logger"
)

type Adapters struct {
	RateLimit      *RateLimitValidator
	SizeValidation *SizeValidator
	Metrics        *MetricsAdapter
	Chain          *ports.SecurityChain
}

// NewSecurityAdapters wires the validators so they're easy to chain and consume
func NewSecurityAdapters(cfg *config.Config, statsCollector ports.StatsCollector, logger logger.StyledLogger) *Adapters {
	metricsAdapter := NewSecurityMetricsAdapter(statsCollector, logger)
	rateLimitValidator := NewRateLimitValidator(cfg.Server.RateLimits, metricsAdapter, logger)
	sizeValidator := NewSizeValidator(cfg.Server.RequestLimits, metricsAdapter, logger)

	return &Adapters{
		RateLimit:      rateLimitValidator,
		SizeValidation: sizeValidator,
		Metrics:        metricsAdapter,
		Chain: ports.NewSecurityChain(
			rateLimitValidator, // cheapest rejection first
			sizeValidator,
		),
	}
}

func (sa *Adapters) Stop() {
	if sa.RateLimit != nil {
		sa.RateLimit.Stop()
	}
}

// CreateChainMiddleware applies rate limiting then size limits
func (sa *Adapters) CreateChainMiddleware() func(http.Handler) http.Handler {
	rateLimit := sa.CreateRateLimitMiddleware()
	size := sa.CreateSizeMiddleware()
	return func(next http.Handler) http.Handler {
		return rateLimit(size(next))
	}
}

func (sa *Adapters) CreateRateLimitMiddleware() func(http.Handler) http.Handler {
	if sa.RateLimit != nil {
		return sa.RateLimit.CreateMiddleware()
	}
	return passthrough
}

func (sa *Adapters) CreateSizeMiddleware() func(http.Handler) http.Handler {
	if sa.SizeValidation != nil {
		return sa.SizeValidation.CreateMiddleware()
	}
	return passthrough
}

func passthrough(next http.Handler) http.Handler {
	return next
}

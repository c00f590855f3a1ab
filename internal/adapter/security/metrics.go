package security

import (
	"context"

	"github.com/docker/go-units"

	"github.com/corral-proxy/corral/internal/core/ports"
	"github.com/corral-proxy/corral/internal/logger"
)

// largeRequestThreshold is the size above which a blocked body is worth a warning
const largeRequestThreshold = 50 * units.MiB

type MetricsAdapter struct {
	statsCollector ports.StatsCollector
	logger         logger.StyledLogger
}

// NewSecurityMetricsAdapter forwards violations into the stats collector
func NewSecurityMetricsAdapter(statsCollector ports.StatsCollector, logger logger.StyledLogger) *MetricsAdapter {
	return &MetricsAdapter{
		statsCollector: statsCollector,
		logger:         logger,
	}
}

func (sma *MetricsAdapter) RecordViolation(ctx context.Context, violation ports.SecurityViolation) error {
	sma.statsCollector.RecordSecurityViolation(violation)

	if violation.ViolationType == ports.ViolationSizeLimit && violation.Size > largeRequestThreshold {
		sma.logger.Warn("Large request blocked",
			"client_id", violation.ClientID,
			"size", units.HumanSize(float64(violation.Size)),
			"endpoint", violation.Endpoint)
	}

	return nil
}

func (sma *MetricsAdapter) GetMetrics(ctx context.Context) (ports.SecurityStats, error) {
	return sma.statsCollector.GetSecurityStats(), nil
}

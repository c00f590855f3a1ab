package services

import (
	"context"
	"fmt"

	"github.com/corral-proxy/corral/internal/adapter/metrics"
	"github.com/corral-proxy/corral/internal/config"
	"github.com/corral-proxy/corral/internal/logger"
)

// MetricsService owns the prometheus collector. The dispatcher reports into
// it whether or not the scrape route is exposed.
type MetricsService struct {
	config    *config.MetricsConfig
	collector *metrics.Collector
	logger    logger.StyledLogger
}

func NewMetricsService(cfg *config.MetricsConfig, logger logger.StyledLogger) *MetricsService {
	return &MetricsService{
		config: cfg,
		logger: logger,
	}
}

func (s *MetricsService) Name() string {
	return ServiceMetrics
}

func (s *MetricsService) Start(ctx context.Context) error {
	s.collector = metrics.NewCollector(nil)
	if s.config.Enabled {
		s.logger.Info("Prometheus metrics enabled", "path", s.config.Path)
	}
	return nil
}

func (s *MetricsService) Stop(ctx context.Context) error {
	return nil
}

func (s *MetricsService) Dependencies() []string {
	return nil
}

func (s *MetricsService) GetCollector() (*metrics.Collector, error) {
	if s.collector == nil {
		return nil, fmt.Errorf("metrics collector not initialised")
	}
	return s.collector, nil
}

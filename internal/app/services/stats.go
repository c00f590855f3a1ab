package services

import (
	"context"
	"fmt"

	"github.com/corral-proxy/corral/internal/adapter/stats"
	"github.com/corral-proxy/corral/internal/logger"
)

// StatsService owns the request counters behind the status pages. Most other
// services record into it, so it comes up first.
type StatsService struct {
	collector *stats.Collector
	logger    logger.StyledLogger
}

func NewStatsService(logger logger.StyledLogger) *StatsService {
	return &StatsService{
		logger: logger,
	}
}

func (s *StatsService) Name() string {
	return ServiceStats
}

func (s *StatsService) Start(ctx context.Context) error {
	s.collector = stats.NewCollector(s.logger)
	s.logger.Debug("Stats collector initialised")
	return nil
}

// Stop has nothing to release, the counters are plain atomics
func (s *StatsService) Stop(ctx context.Context) error {
	return nil
}

func (s *StatsService) Dependencies() []string {
	return nil
}

func (s *StatsService) GetCollector() (*stats.Collector, error) {
	if s.collector == nil {
		return nil, fmt.Errorf("stats collector not initialised")
	}
	return s.collector, nil
}

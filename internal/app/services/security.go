package services

import (
	"context"
	"fmt"

	"github.com/docker/go-units"

	"github.com/corral-proxy/corral/internal/adapter/security"
	"github.com/corral-proxy/corral/internal/config"
	"github.com/corral-proxy/corral/internal/logger"
)

// SecurityService builds the rate limit and size validators that sit in
// front of every route
type SecurityService struct {
	config       *config.Config
	statsService *StatsService
	adapters     *security.Adapters
	logger       logger.StyledLogger
}

func NewSecurityService(cfg *config.Config, statsService *StatsService, logger logger.StyledLogger) *SecurityService {
	return &SecurityService{
		config:       cfg,
		statsService: statsService,
		logger:       logger,
	}
}

func (s *SecurityService) Name() string {
	return ServiceSecurity
}

func (s *SecurityService) Start(ctx context.Context) error {
	collector, err := s.statsService.GetCollector()
	if err != nil {
		return fmt.Errorf("failed to get stats collector: %w", err)
	}

	s.adapters = security.NewSecurityAdapters(s.config, collector, s.logger)

	limits := s.config.Server.RequestLimits
	rl := s.config.Server.RateLimits
	s.logger.Debug("Security validators initialised",
		"global_rate_limit", rl.GlobalRequestsPerMinute,
		"per_ip_rate_limit", rl.PerIPRequestsPerMinute,
		"max_body_size", units.BytesSize(float64(limits.MaxBodyBytes)))
	return nil
}

// Stop ends the limiter cleanup goroutine
func (s *SecurityService) Stop(ctx context.Context) error {
	if s.adapters != nil {
		s.adapters.Stop()
	}
	return nil
}

func (s *SecurityService) Dependencies() []string {
	return []string{ServiceStats}
}

func (s *SecurityService) GetAdapters() (*security.Adapters, error) {
	if s.adapters == nil {
		return nil, fmt.Errorf("security adapters not initialised")
	}
	return s.adapters, nil
}

package services

import (
	"context"
	"fmt"

	"github.com/corral-proxy/corral/internal/adapter/backend"
	"github.com/corral-proxy/corral/internal/adapter/balancer"
	"github.com/corral-proxy/corral/internal/adapter/client"
	"github.com/corral-proxy/corral/internal/adapter/dispatch"
	"github.com/corral-proxy/corral/internal/config"
	"github.com/corral-proxy/corral/internal/logger"
)

// ProxyService builds the backend handles and the dispatcher in front of
// them. Workers run from Start until Stop, anything still queued at Stop is
// answered with a 503.
type ProxyService struct {
	config         *config.Config
	statsService   *StatsService
	metricsService *MetricsService
	pool           *backend.Pool
	dispatcher     *dispatch.Dispatcher
	logger         logger.StyledLogger
}

func NewProxyService(cfg *config.Config, statsService *StatsService, metricsService *MetricsService, logger logger.StyledLogger) *ProxyService {
	return &ProxyService{
		config:         cfg,
		statsService:   statsService,
		metricsService: metricsService,
		logger:         logger,
	}
}

func (s *ProxyService) Name() string {
	return ServiceProxy
}

func (s *ProxyService) Start(ctx context.Context) error {
	collector, err := s.statsService.GetCollector()
	if err != nil {
		return fmt.Errorf("failed to get stats collector: %w", err)
	}
	metricsCollector, err := s.metricsService.GetCollector()
	if err != nil {
		return fmt.Errorf("failed to get metrics collector: %w", err)
	}

	endpoints, err := s.config.EndpointConfigs()
	if err != nil {
		return fmt.Errorf("invalid backend configuration: %w", err)
	}

	proxyCfg := s.config.Proxy
	httpClient := client.NewHTTPClient(client.TransportOptions{
		ResponseHeaderTimeout: proxyCfg.ResponseHeaderTimeout,
		DialTimeout:           proxyCfg.ConnectionTimeout,
	})
	clients := client.NewFactory(httpClient, proxyCfg.InvokeTimeout)

	s.pool, err = backend.NewPool(endpoints, clients.Create, backend.HandleOptions{
		Metrics:          metricsCollector,
		QueueCapacity:    proxyCfg.QueueCapacity,
		FailureThreshold: proxyCfg.FailureThreshold,
		InvokeTimeout:    proxyCfg.InvokeTimeout,
		RecoveryCooldown: proxyCfg.RecoveryCooldown,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create backend pool: %w", err)
	}
	if err := metricsCollector.WatchBackends(s.pool); err != nil {
		return fmt.Errorf("failed to register backend gauges: %w", err)
	}

	selector, err := balancer.NewFactory().Create(proxyCfg.LoadBalancer)
	if err != nil {
		return fmt.Errorf("failed to create load balancer: %w", err)
	}

	s.dispatcher = dispatch.New(s.pool, selector, dispatch.Config{
		Metrics:      metricsCollector,
		Stats:        collector,
		AwaitTimeout: proxyCfg.AwaitTimeout,
	}, s.logger)

	if s.pool.Len() == 0 {
		s.logger.Warn("No backends configured, every proxied request will get a 503")
	}

	// workers outlive the caller's context, Stop ends them once the HTTP
	// server has drained
	s.pool.Start(context.WithoutCancel(ctx))
	s.logger.InfoWithCount("Backends ready", s.pool.Len(),
		"load_balancer", proxyCfg.LoadBalancer,
		"dispatch_mode", proxyCfg.DispatchMode)
	return nil
}

func (s *ProxyService) Stop(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	if err := s.pool.Stop(); err != nil {
		return fmt.Errorf("backend workers: %w", err)
	}
	return nil
}

func (s *ProxyService) Dependencies() []string {
	return []string{ServiceStats, ServiceMetrics}
}

func (s *ProxyService) GetDispatcher() (*dispatch.Dispatcher, error) {
	if s.dispatcher == nil {
		return nil, fmt.Errorf("dispatcher not initialised")
	}
	return s.dispatcher, nil
}

func (s *ProxyService) GetPool() (*backend.Pool, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("backend pool not initialised")
	}
	return s.pool, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/corral-proxy/corral/internal/app/handlers"
	"github.com/corral-proxy/corral/internal/config"
	"github.com/corral-proxy/corral/internal/logger"
)

const defaultShutdownTimeout = 10 * time.Second

// HTTPService runs the front door. It binds the listener inside Start so a
// busy port fails startup instead of surfacing later.
type HTTPService struct {
	config          *config.Config
	statsService    *StatsService
	metricsService  *MetricsService
	securityService *SecurityService
	proxyService    *ProxyService
	server          *http.Server
	listener        net.Listener
	application     *handlers.Application
	logger          logger.StyledLogger
	errCh           chan error
	done            chan struct{}
	stopOnce        sync.Once
}

func NewHTTPService(
	cfg *config.Config,
	statsService *StatsService,
	metricsService *MetricsService,
	securityService *SecurityService,
	proxyService *ProxyService,
	logger logger.StyledLogger,
) *HTTPService {
	return &HTTPService{
		config:          cfg,
		statsService:    statsService,
		metricsService:  metricsService,
		securityService: securityService,
		proxyService:    proxyService,
		logger:          logger,
		errCh:           make(chan error, 1),
		done:            make(chan struct{}),
	}
}

func (s *HTTPService) Name() string {
	return ServiceHTTP
}

func (s *HTTPService) Start(ctx context.Context) error {
	collector, err := s.statsService.GetCollector()
	if err != nil {
		return err
	}
	metricsCollector, err := s.metricsService.GetCollector()
	if err != nil {
		return err
	}
	dispatcher, err := s.proxyService.GetDispatcher()
	if err != nil {
		return err
	}
	pool, err := s.proxyService.GetPool()
	if err != nil {
		return err
	}

	securityAdapters, err := s.securityService.GetAdapters()
	if err != nil {
		return err
	}

	s.application, err = handlers.NewApplication(s.config, dispatcher, collector, pool, metricsCollector, securityAdapters, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	s.application.LogServerConfig()

	serverCfg := s.config.Server
	s.server = &http.Server{
		Addr:         serverCfg.GetAddress(),
		Handler:      s.application.Handler(),
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
		IdleTimeout:  serverCfg.IdleTimeout,
	}
	if serverCfg.RequestLimits.MaxHeaderBytes > 0 {
		s.server.MaxHeaderBytes = int(serverCfg.RequestLimits.MaxHeaderBytes)
	}

	s.listener, err = net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	go func() {
		defer close(s.done)
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
			s.errCh <- err
		}
	}()

	s.logger.Info("Corral started, waiting for requests...", "bind", s.listener.Addr().String())
	return nil
}

// Stop stops accepting connections and waits, up to the shutdown timeout,
// for requests in flight to finish
func (s *HTTPService) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	var err error
	s.stopOnce.Do(func() {
		timeout := s.config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err = s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP server did not drain in time, closing connections", "timeout", timeout, "error", err)
			_ = s.server.Close()
		}
		<-s.done
	})
	return err
}

func (s *HTTPService) Dependencies() []string {
	return []string{ServiceStats, ServiceMetrics, ServiceSecurity, ServiceProxy}
}

// Addr is the bound address, useful when the configured port was 0
func (s *HTTPService) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Errors delivers a fatal serve error, at most one
func (s *HTTPService) Errors() <-chan error {
	return s.errCh
}

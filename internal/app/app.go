package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corral-proxy/corral/internal/app/services"
	"github.com/corral-proxy/corral/internal/config"
	"github.com/corral-proxy/corral/internal/logger"
)

// Application is a running Corral proxy: the service graph plus the config
// it was built from
type Application struct {
	config    *config.Config
	manager   *services.ServiceManager
	http      *services.HTTPService
	logger    logger.StyledLogger
	levelVar  *slog.LevelVar
	StartTime time.Time
}

// New registers every service. levelVar may be nil, config reloads then
// cannot change the log level.
func New(startTime time.Time, cfg *config.Config, levelVar *slog.LevelVar, log logger.StyledLogger) (*Application, error) {
	manager := services.NewServiceManager(log)

	statsService := services.NewStatsService(log)
	metricsService := services.NewMetricsService(&cfg.Metrics, log)
	securityService := services.NewSecurityService(cfg, statsService, log)
	proxyService := services.NewProxyService(cfg, statsService, metricsService, log)
	httpService := services.NewHTTPService(cfg, statsService, metricsService, securityService, proxyService, log)

	for _, svc := range []services.ManagedService{statsService, metricsService, securityService, proxyService, httpService} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("failed to register %s service: %w", svc.Name(), err)
		}
	}

	return &Application{
		config:    cfg,
		manager:   manager,
		http:      httpService,
		logger:    log,
		levelVar:  levelVar,
		StartTime: startTime,
	}, nil
}

func (a *Application) Start(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return err
	}

	if a.config.Watch(a.applyConfig) {
		a.logger.Info("Watching configuration for changes", "file", a.config.Filename)
	}
	return nil
}

// Stop drains the HTTP server first, then the backend workers
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Errors reports a server failure after a successful Start
func (a *Application) Errors() <-chan error {
	return a.http.Errors()
}

func (a *Application) Addr() string {
	return a.http.Addr()
}

// ExpectedWorkers is the number of backend worker goroutines the config
// asks for, used to judge goroutine counts
func (a *Application) ExpectedWorkers() int {
	endpoints, err := a.config.EndpointConfigs()
	if err != nil {
		return 0
	}
	total := 0
	for _, ep := range endpoints {
		total += ep.MaxConcurrent
	}
	return total
}

// applyConfig takes what can change on a live process from a reloaded
// config. Only the log level qualifies, the backend set is fixed at start.
func (a *Application) applyConfig(updated *config.Config, err error) {
	if err != nil {
		a.logger.Warn("Ignoring configuration change", "error", err)
		return
	}

	if a.levelVar != nil && updated.Logging.Level != a.config.Logging.Level {
		a.levelVar.Set(logger.ParseLevel(updated.Logging.Level))
		a.logger.Info("Log level changed", "from", a.config.Logging.Level, "to", updated.Logging.Level)
		a.config.Logging.Level = updated.Logging.Level
	}

	if a.config.BackendsChanged(updated) {
		a.logger.Warn("Backend changes need a restart to take effect")
	}
}

package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/corral-proxy/corral/internal/config"
	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/ports"
	"github.com/corral-proxy/corral/internal/logger"
	"github.com/corral-proxy/corral/internal/router"
	"github.com/corral-proxy/corral/pkg/pool"
)

// MetricsExporter is the slice of the prometheus collector the front door uses
type MetricsExporter interface {
	RecordHTTPRequest(route string, statusCode int, duration time.Duration)
	Handler() http.Handler
}

// Application holds all the dependencies needed for the HTTP handlers
type Application struct {
	Config           *config.Config
	logger           logger.StyledLogger
	router           ports.RequestRouter
	statsCollector   ports.StatsCollector
	backends         ports.BackendSnapshotSource
	metrics          MetricsExporter
	securityAdapters router.SecurityMiddleware
	routeRegistry    *router.RouteRegistry
	buffers          *pool.Pool[*[]byte]
	StartTime        time.Time
}

// NewApplication wires the handlers. metrics and securityAdapters may be nil,
// which disables the metrics route and the security middleware respectively.
func NewApplication(
	cfg *config.Config,
	requestRouter ports.RequestRouter,
	statsCollector ports.StatsCollector,
	backends ports.BackendSnapshotSource,
	metrics MetricsExporter,
	securityAdapters router.SecurityMiddleware,
	logger logger.StyledLogger,
) (*Application, error) {
	bufferSize := cfg.Proxy.StreamBufferBytes
	if bufferSize <= 0 {
		bufferSize = constants.DefaultStreamBufferSize
	}
	buffers, err := pool.NewBufferPool(bufferSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream buffer pool: %w", err)
	}

	return &Application{
		Config:           cfg,
		logger:           logger,
		router:           requestRouter,
		statsCollector:   statsCollector,
		backends:         backends,
		metrics:          metrics,
		securityAdapters: securityAdapters,
		routeRegistry:    router.NewRouteRegistry(logger),
		buffers:          buffers,
		StartTime:        time.Now(),
	}, nil
}

func (a *Application) GetRouteRegistry() *router.RouteRegistry {
	return a.routeRegistry
}

// Handler registers every route and returns the finished handler tree,
// wrapped in request logging when that is switched on
func (a *Application) Handler() http.Handler {
	a.registerRoutes()

	mux := http.NewServeMux()
	a.routeRegistry.WireUpWithSecurityChain(mux, a.securityAdapters)

	if a.Config.Server.RequestLogging {
		return a.loggingMiddleware(mux)
	}
	return a.requestIDMiddleware(mux)
}

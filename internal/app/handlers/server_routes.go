package handlers

import (
	"net/http"

	"github.com/corral-proxy/corral/internal/core/constants"
)

// registerRoutes sets up the complete HTTP routing table
func (a *Application) registerRoutes() {
	// operational endpoints first, they must keep working whatever the backends do
	a.routeRegistry.RegisterWithMethod(constants.DefaultHealthCheckEndpoint, a.healthHandler, "Health check endpoint", http.MethodGet)
	a.routeRegistry.RegisterWithMethod(constants.DefaultStatusEndpoint, a.backendsStatusHandler, "Backend status", http.MethodGet)
	a.routeRegistry.RegisterWithMethod(constants.DefaultLegacyStatusEndpoint, a.monitorStatusHandler, "Backend status (legacy)", http.MethodGet)
	a.routeRegistry.RegisterWithMethod(constants.DefaultProcessEndpoint, a.processStatsHandler, "Process status", http.MethodGet)
	a.routeRegistry.RegisterWithMethod(constants.DefaultVersionEndpoint, a.versionHandler, "Corral version information", http.MethodGet)

	if a.metrics != nil && a.Config.Metrics.Enabled {
		path := a.Config.Metrics.Path
		if path == "" {
			path = constants.DefaultMetricsEndpoint
		}
		a.routeRegistry.RegisterWithMethod(path, a.metrics.Handler().ServeHTTP, "Prometheus metrics", http.MethodGet)
	}

	a.routeRegistry.RegisterProxyRoute(constants.PathV1ChatCompletions, a.proxyHandler, "Chat completions", http.MethodPost)
	a.routeRegistry.RegisterProxyRoute(constants.PathChatCompletions, a.proxyHandler, "Chat completions (unversioned)", http.MethodPost)
	a.routeRegistry.RegisterProxyRoute(constants.PathAzureDeploymentsPrefix, a.proxyHandler, "Azure OpenAI deployments", http.MethodPost)

	// anything else posted is treated as a chat completion too
	a.routeRegistry.RegisterProxyRoute("/", a.proxyHandler, "Catch-all proxy", http.MethodPost)
}

package handlers

import (
	"net/http"
	"runtime"

	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/version"
)

type VersionResponse struct {
	version.Info
	Description string            `json:"description"`
	Platform    string            `json:"platform"`
	Endpoints   map[string]string `json:"endpoints"`
	Links       map[string]string `json:"links"`
}

func (a *Application) versionHandler(w http.ResponseWriter, r *http.Request) {
	metricsPath := ""
	if a.metrics != nil && a.Config.Metrics.Enabled {
		metricsPath = a.Config.Metrics.Path
	}

	if err := writeJSON(w, http.StatusOK, VersionResponse{
		Info:        version.Get(),
		Description: version.Description,
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		Endpoints: map[string]string{
			"chat":    constants.PathV1ChatCompletions,
			"health":  constants.DefaultHealthCheckEndpoint,
			"status":  constants.DefaultStatusEndpoint,
			"process": constants.DefaultProcessEndpoint,
			"metrics": metricsPath,
		},
		Links: map[string]string{
			"homepage": version.GithubHomeUri,
			"releases": version.GithubLatestUri,
		},
	}); err != nil {
		a.logger.Error("Failed to encode version response", "error", err)
	}
}

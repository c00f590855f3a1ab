package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/corral-proxy/corral/internal/core/ports"
	"github.com/corral-proxy/corral/pkg/format"
)

type BackendSummary struct {
	Name          string              `json:"name"`
	URL           string              `json:"url"`
	Type          string              `json:"type"`
	Protocol      string              `json:"protocol"`
	Status        string              `json:"status"`
	LastError     string              `json:"last_error,omitempty"`
	LastUsed      string              `json:"last_used"`
	SuccessRate   string              `json:"success_rate"`
	Stats         *ports.BackendStats `json:"stats,omitempty"`
	Weight        int                 `json:"weight"`
	MaxConcurrent int                 `json:"max_concurrent"`
	InFlight      int64               `json:"in_flight"`
	QueueDepth    int                 `json:"queue_depth"`
	QueueCapacity int                 `json:"queue_capacity"`
	Failures      int                 `json:"failures"`
	Healthy       bool                `json:"healthy"`
}

type BackendStatusResponse struct {
	Timestamp    time.Time           `json:"timestamp"`
	Backends     []BackendSummary    `json:"backends"`
	Proxy        ports.ProxyStats    `json:"proxy"`
	Security     ports.SecurityStats `json:"security"`
	TotalCount   int                 `json:"total_count"`
	HealthyCount int                 `json:"healthy_count"`
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

func (a *Application) backendsStatusHandler(w http.ResponseWriter, r *http.Request) {
	snapshots := a.snapshots()

	var backendStats map[string]ports.BackendStats
	response := BackendStatusResponse{
		Timestamp:  time.Now(),
		TotalCount: len(snapshots),
		Backends:   make([]BackendSummary, 0, len(snapshots)),
	}
	if a.statsCollector != nil {
		backendStats = a.statsCollector.GetBackendStats()
		response.Proxy = a.statsCollector.GetProxyStats()
		response.Security = a.statsCollector.GetSecurityStats()
	}

	for _, snap := range snapshots {
		summary := buildBackendSummary(snap, backendStats)
		if snap.Healthy {
			response.HealthyCount++
		}
		response.Backends = append(response.Backends, summary)
	}

	// healthy first, configuration order otherwise
	sort.SliceStable(response.Backends, func(i, j int) bool {
		return response.Backends[i].Healthy && !response.Backends[j].Healthy
	})

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		a.logger.Error("Failed to encode backend status", "error", err)
	}
}

func buildBackendSummary(snap ports.BackendSnapshot, statsMap map[string]ports.BackendStats) BackendSummary {
	summary := BackendSummary{
		Name:          snap.Name,
		URL:           snap.URL,
		Type:          snap.Type,
		Protocol:      snap.Protocol,
		Status:        statusUnhealthy,
		LastError:     snap.LastError,
		LastUsed:      format.TimeAgo(snap.LastUsedAt),
		SuccessRate:   "N/A",
		Weight:        snap.Weight,
		MaxConcurrent: snap.MaxConcurrent,
		InFlight:      snap.InFlight,
		QueueDepth:    snap.QueueDepth,
		QueueCapacity: snap.QueueCapacity,
		Failures:      snap.Failures,
		Healthy:       snap.Healthy,
	}
	if snap.Healthy {
		summary.Status = statusHealthy
	}

	if stats, ok := statsMap[snap.Name]; ok {
		summary.Stats = &stats
		if stats.TotalRequests > 0 {
			summary.SuccessRate = format.Percentage(stats.SuccessRate)
		}
	}
	return summary
}

type monitorEndpoint struct {
	Name     string `json:"name"`
	Weight   int    `json:"weight"`
	Failures int    `json:"failures"`
}

type monitorStatus struct {
	Endpoints []monitorEndpoint `json:"endpoints"`
}

// monitorStatusHandler keeps the original /monitor/status shape for existing dashboards
func (a *Application) monitorStatusHandler(w http.ResponseWriter, r *http.Request) {
	snapshots := a.snapshots()
	status := monitorStatus{Endpoints: make([]monitorEndpoint, 0, len(snapshots))}
	for _, snap := range snapshots {
		status.Endpoints = append(status.Endpoints, monitorEndpoint{
			Name:     snap.Name,
			Weight:   snap.Weight,
			Failures: snap.Failures,
		})
	}
	_ = writeJSON(w, http.StatusOK, status)
}

func (a *Application) snapshots() []ports.BackendSnapshot {
	if a.backends == nil {
		return nil
	}
	return a.backends.Snapshots()
}

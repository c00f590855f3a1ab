package handlers

import (
	"net/http"
	"time"

	"github.com/corral-proxy/corral/pkg/format"
)

type healthResponse struct {
	Status   string `json:"status"`
	Backends string `json:"backends"`
	Uptime   string `json:"uptime"`
}

// healthHandler reports the proxy itself. Backends are listed for operators
// but an unhealthy fleet still answers 200, the proxy can serve the 503s.
func (a *Application) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthy, total := 0, 0
	if a.backends != nil {
		for _, snap := range a.backends.Snapshots() {
			total++
			if snap.Healthy {
				healthy++
			}
		}
	}

	status := "healthy"
	if total > 0 && healthy == 0 {
		status = "degraded"
	}

	_ = writeJSON(w, http.StatusOK, healthResponse{
		Status:   status,
		Backends: format.BackendsUp(healthy, total),
		Uptime:   format.Duration(time.Since(a.StartTime)),
	})
}

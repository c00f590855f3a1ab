package handlers

import (
	"net/http"
	"time"

	"github.com/corral-proxy/corral/pkg/format"
	"github.com/corral-proxy/corral/pkg/nerdstats"
)

type ProcessStatsResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Memory    struct {
		HeapAlloc      string `json:"heap_alloc"`
		HeapSys        string `json:"heap_sys"`
		HeapInuse      string `json:"heap_inuse"`
		StackInuse     string `json:"stack_inuse"`
		TotalAlloc     string `json:"total_alloc"`
		MemoryPressure string `json:"memory_pressure"`
	} `json:"memory"`

	GarbageCollection struct {
		LastGC        string  `json:"last_gc,omitempty"`
		AvgGCPause    string  `json:"avg_gc_pause"`
		GCCPUFraction float64 `json:"gc_cpu_fraction"`
		NumGC         uint32  `json:"num_gc_cycles"`
	} `json:"garbage_collection"`

	Goroutines struct {
		HealthStatus    string `json:"health_status"`
		Count           int    `json:"count"`
		ExpectedWorkers int    `json:"expected_workers"`
	} `json:"goroutines"`

	Runtime struct {
		Uptime     string `json:"uptime"`
		GoVersion  string `json:"go_version"`
		NumCPU     int    `json:"num_cpu"`
		GOMAXPROCS int    `json:"gomaxprocs"`
	} `json:"runtime"`
}

func (a *Application) processStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := nerdstats.Snapshot(a.StartTime)
	workers := a.expectedWorkers()

	response := ProcessStatsResponse{Timestamp: time.Now()}

	response.Memory.HeapAlloc = format.Bytes(stats.HeapAlloc)
	response.Memory.HeapSys = format.Bytes(stats.HeapSys)
	response.Memory.HeapInuse = format.Bytes(stats.HeapInuse)
	response.Memory.StackInuse = format.Bytes(stats.StackInuse)
	response.Memory.TotalAlloc = format.Bytes(stats.TotalAlloc)
	response.Memory.MemoryPressure = stats.MemoryPressure()

	response.GarbageCollection.NumGC = stats.NumGC
	response.GarbageCollection.GCCPUFraction = stats.GCCPUFraction
	response.GarbageCollection.AvgGCPause = format.Duration(stats.AverageGCPause())
	if !stats.LastGC.IsZero() {
		response.GarbageCollection.LastGC = stats.LastGC.Format(time.RFC3339)
	}

	response.Goroutines.Count = stats.NumGoroutines
	response.Goroutines.ExpectedWorkers = workers
	response.Goroutines.HealthStatus = stats.GoroutineStatus(workers)

	response.Runtime.Uptime = format.Duration(stats.Uptime)
	response.Runtime.GoVersion = stats.GoVersion
	response.Runtime.NumCPU = stats.NumCPU
	response.Runtime.GOMAXPROCS = stats.GOMAXPROCS

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		a.logger.Error("Failed to encode process stats response", "error", err)
	}
}

// expectedWorkers is one goroutine per backend concurrency slot
func (a *Application) expectedWorkers() int {
	total := 0
	for _, snap := range a.snapshots() {
		total += snap.MaxConcurrent
	}
	return total
}

package nerdstats

import (
	"runtime"
	"runtime/debug"
	"time"
)

// Stats is a snapshot of the Go runtime, reported at shutdown and served by
// the process status endpoint. See runtime.MemStats for field meanings.
type Stats struct {
	LastGC    time.Time
	BuildInfo *debug.BuildInfo
	GoVersion string

	HeapAlloc    uint64
	HeapSys      uint64
	HeapInuse    uint64
	HeapReleased uint64
	StackInuse   uint64
	TotalAlloc   uint64
	Mallocs      uint64
	Frees        uint64

	TotalGCTime   time.Duration
	Uptime        time.Duration
	GCCPUFraction float64
	NumCgoCall    int64
	NumGoroutines int
	NumCPU        int
	GOMAXPROCS    int
	NumGC         uint32
}

func Snapshot(startTime time.Time) *Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &Stats{
		HeapAlloc:     m.HeapAlloc,
		HeapSys:       m.HeapSys,
		HeapInuse:     m.HeapInuse,
		HeapReleased:  m.HeapReleased,
		StackInuse:    m.StackInuse,
		TotalAlloc:    m.TotalAlloc,
		Mallocs:       m.Mallocs,
		Frees:         m.Frees,
		NumGC:         m.NumGC,
		GCCPUFraction: m.GCCPUFraction,
		NumGoroutines: runtime.NumGoroutine(),
		NumCgoCall:    runtime.NumCgoCall(),
		NumCPU:        runtime.NumCPU(),
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		GoVersion:     runtime.Version(),
		Uptime:        time.Since(startTime),
	}

	if m.LastGC > 0 {
		stats.LastGC = time.Unix(0, int64(m.LastGC))
		stats.TotalGCTime = time.Duration(m.PauseTotalNs)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		stats.BuildInfo = info
	}
	return stats
}

// NetObjects is live heap objects, clamped at zero
func (s *Stats) NetObjects() int64 {
	if s.Frees >= s.Mallocs {
		return 0
	}
	return int64(s.Mallocs - s.Frees)
}

func (s *Stats) MemoryPressure() string {
	if s.HeapSys == 0 {
		return "LOW"
	}
	heapUsage := float64(s.HeapInuse) / float64(s.HeapSys)
	allocsPerFree := float64(s.Mallocs) / float64(s.Frees+1)

	switch {
	case heapUsage > 0.9 && allocsPerFree > 1.5:
		return "HIGH"
	case heapUsage > 0.7 || allocsPerFree > 1.2:
		return "MEDIUM"
	}
	return "LOW"
}

// GoroutineStatus compares the live goroutine count against what the worker
// pools account for. Every backend slot owns one worker, anything well past
// that is usually parked streams or a leak.
func (s *Stats) GoroutineStatus(expectedWorkers int) string {
	excess := s.NumGoroutines - expectedWorkers
	switch {
	case excess > 1000:
		return "CONCERNING"
	case excess > 500:
		return "ELEVATED"
	case excess > 100:
		return "NORMAL"
	}
	return "HEALTHY"
}

func (s *Stats) AverageGCPause() time.Duration {
	if s.NumGC == 0 {
		return 0
	}
	return s.TotalGCTime / time.Duration(s.NumGC)
}

func (s *Stats) BuildSummary() map[string]string {
	summary := make(map[string]string)
	if s.BuildInfo == nil {
		return summary
	}

	summary["path"] = s.BuildInfo.Path
	summary["main_version"] = s.BuildInfo.Main.Version
	for _, setting := range s.BuildInfo.Settings {
		switch setting.Key {
		case "CGO_ENABLED", "GOARCH", "GOOS", "vcs.revision", "vcs.time":
			summary[setting.Key] = setting.Value
		}
	}
	return summary
}

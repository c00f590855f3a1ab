package ports

import "time"

type StatsCollector interface {
	RecordRequest(backend, outcome string, latency time.Duration, streaming bool)
	RecordFailover(backend string)
	RecordSecurityViolation(violation SecurityViolation)

	GetProxyStats() ProxyStats
	GetBackendStats() map[string]BackendStats
	GetSecurityStats() SecurityStats
}

// ProxyStats contains totals across all backends
type ProxyStats struct {
	TotalRequests      int64 `json:"total_requests"`
	SuccessfulRequests int64 `json:"successful_requests"`
	FailedRequests     int64 `json:"failed_requests"`
	Failovers          int64 `json:"failovers"`
	AverageLatency     int64 `json:"avg_latency_ms"`
}

type BackendStats struct {
	LastUsed           time.Time `json:"last_used"`
	Name               string    `json:"name"`
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	StreamingRequests  int64     `json:"streaming_requests"`
	FailoversFrom      int64     `json:"failovers_from"`
	AverageLatency     int64     `json:"avg_latency_ms"`
	P50Latency         int64     `json:"p50_latency_ms"`
	P95Latency         int64     `json:"p95_latency_ms"`
	P99Latency         int64     `json:"p99_latency_ms"`
	SuccessRate        float64   `json:"success_rate"`
}

type SecurityStats struct {
	RateLimitViolations  int64 `json:"rate_limit_violations"`
	SizeLimitViolations  int64 `json:"size_limit_violations"`
	UniqueRateLimitedIPs int   `json:"unique_rate_limited_ips"`
}

// RequestStats is filled in by the front door for a single proxied request
type RequestStats struct {
	StartTime   time.Time
	EndTime     time.Time
	RequestID   string
	Backend     string
	TotalBytes  int64
	FirstDataMs int64
	StreamingMs int64
	Latency     int64
	StatusCode  int
	FailedOver  bool
}

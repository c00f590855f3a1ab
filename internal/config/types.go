package config

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	v        *viper.Viper
	Filename string          `yaml:"-" mapstructure:"-"`
	Logging  LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Backends []BackendConfig `yaml:"backends" mapstructure:"backends"`
	Proxy    ProxyConfig     `yaml:"proxy" mapstructure:"proxy"`
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string              `yaml:"host" mapstructure:"host"`
	RateLimits      ServerRateLimits    `yaml:"rate_limits" mapstructure:"rate_limits"`
	RequestLimits   ServerRequestLimits `yaml:"request_limits" mapstructure:"request_limits"`
	Port            int                 `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration       `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration       `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration       `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration       `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	RequestLogging  bool                `yaml:"request_logging" mapstructure:"request_logging"`
}

// GetAddress returns the server address in host:port format
func (s *ServerConfig) GetAddress() string {
	return net.JoinHostPort(s.Host, fmt.Sprintf("%d", s.Port))
}

// ServerRequestLimits are written as human sizes ("10MB"), Validate fills in
// the byte counts
type ServerRequestLimits struct {
	MaxBodySize    string `yaml:"max_body_size" mapstructure:"max_body_size"`
	MaxHeaderSize  string `yaml:"max_header_size" mapstructure:"max_header_size"`
	MaxBodyBytes   int64  `yaml:"-" mapstructure:"-"`
	MaxHeaderBytes int64  `yaml:"-" mapstructure:"-"`
}

// ServerRateLimits defines rate limiting configuration, zero disables a limit
type ServerRateLimits struct {
	TrustedProxyCIDRs       []string      `yaml:"trusted_proxy_cidrs" mapstructure:"trusted_proxy_cidrs"`
	TrustedProxyCIDRsParsed []*net.IPNet  `yaml:"-" mapstructure:"-"`
	GlobalRequestsPerMinute int           `yaml:"global_requests_per_minute" mapstructure:"global_requests_per_minute"`
	PerIPRequestsPerMinute  int           `yaml:"per_ip_requests_per_minute" mapstructure:"per_ip_requests_per_minute"`
	BurstSize               int           `yaml:"burst_size" mapstructure:"burst_size"`
	HealthRequestsPerMinute int           `yaml:"health_requests_per_minute" mapstructure:"health_requests_per_minute"`
	CleanupInterval         time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	TrustProxyHeaders       bool          `yaml:"trust_proxy_headers" mapstructure:"trust_proxy_headers"`
}

// ProxyConfig holds dispatch and backend transport settings
type ProxyConfig struct {
	DispatchMode          string        `yaml:"dispatch_mode" mapstructure:"dispatch_mode"`
	LoadBalancer          string        `yaml:"load_balancer" mapstructure:"load_balancer"`
	StreamBufferSize      string        `yaml:"stream_buffer_size" mapstructure:"stream_buffer_size"`
	QueueCapacity         int           `yaml:"queue_capacity" mapstructure:"queue_capacity"`
	FailureThreshold      int           `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	StreamBufferBytes     int           `yaml:"-" mapstructure:"-"`
	InvokeTimeout         time.Duration `yaml:"invoke_timeout" mapstructure:"invoke_timeout"`
	AwaitTimeout          time.Duration `yaml:"await_timeout" mapstructure:"await_timeout"`
	RecoveryCooldown      time.Duration `yaml:"recovery_cooldown" mapstructure:"recovery_cooldown"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout" mapstructure:"response_header_timeout"`
	ConnectionTimeout     time.Duration `yaml:"connection_timeout" mapstructure:"connection_timeout"`
}

// BackendConfig is one configured inference endpoint as written in the file
type BackendConfig struct {
	Name          string `yaml:"name" mapstructure:"name"`
	URL           string `yaml:"url" mapstructure:"url"`
	APIKey        string `yaml:"api_key" mapstructure:"api_key"`
	Type          string `yaml:"type" mapstructure:"type"`
	Protocol      string `yaml:"protocol,omitempty" mapstructure:"protocol"`
	Model         string `yaml:"model,omitempty" mapstructure:"model"`
	MaxConcurrent int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	Weight        int    `yaml:"weight" mapstructure:"weight"`
}

// legacyEndpoint matches the older OpenAIEndpoints list (Name, Url, ApiKey,
// Type, MaxConcurrent, Weight), mapstructure matches keys case-insensitively
type legacyEndpoint struct {
	Name          string `mapstructure:"name"`
	URL           string `mapstructure:"url"`
	APIKey        string `mapstructure:"apikey"`
	Type          string `mapstructure:"type"`
	MaxConcurrent int    `mapstructure:"maxconcurrent"`
	Weight        int    `mapstructure:"weight"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Theme      string `yaml:"theme" mapstructure:"theme"`
	LogDir     string `yaml:"log_dir" mapstructure:"log_dir"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`
	FileOutput bool   `yaml:"file_output" mapstructure:"file_output"`
}

type MetricsConfig struct {
	Path    string `yaml:"path" mapstructure:"path"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
}

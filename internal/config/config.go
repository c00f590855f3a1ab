package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/corral-proxy/corral/internal/core/constants"
)

const (
	DefaultPort = 5150
	DefaultHost = "localhost"

	EnvPrefix     = "CORRAL"
	EnvConfigFile = "CORRAL_CONFIG_FILE"

	// keys the older deployments used for the backend list
	legacyBackendsKey      = "openaiendpoints"
	legacyBackendsSnakeKey = "openai_endpoints"
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        DefaultHost,
			Port:        DefaultPort,
			ReadTimeout: 30 * time.Second,
			// streams run for minutes, the await timeout bounds them instead
			WriteTimeout:    0,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestLogging:  true,
			RequestLimits: ServerRequestLimits{
				MaxBodySize:   "10MB",
				MaxHeaderSize: "512KB",
			},
			RateLimits: ServerRateLimits{
				BurstSize:               50,
				HealthRequestsPerMinute: 1000,
				CleanupInterval:         5 * time.Minute,
			},
		},
		Proxy: ProxyConfig{
			DispatchMode:     constants.DispatchModeDirect,
			LoadBalancer:     "least-loaded",
			QueueCapacity:    constants.DefaultQueueCapacity,
			InvokeTimeout:    constants.DefaultInvokeTimeout,
			AwaitTimeout:     constants.DefaultAwaitTimeout,
			FailureThreshold: constants.DefaultFailureThreshold,
			StreamBufferSize: "8KB",

			ConnectionTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Theme:      "default",
			LogDir:     "./logs",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    constants.DefaultMetricsEndpoint,
		},
	}
}

// LoadDotEnv reads .env style files into the process environment without
// overriding anything already set. Missing files are fine.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// Load reads configuration from the given file, or config.yaml in . and
// ./config, or the file named by CORRAL_CONFIG_FILE. CORRAL_ prefixed
// environment variables override file values.
func Load(configFile string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	setDefaults(v, config)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = os.Getenv(EnvConfigFile)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			// running without a file is fine, it just means no backends
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if len(config.Backends) == 0 {
		legacy, err := legacyBackends(v)
		if err != nil {
			return nil, err
		}
		config.Backends = legacy
	}

	for i := range config.Backends {
		config.Backends[i].APIKey = os.ExpandEnv(config.Backends[i].APIKey)
		config.Backends[i].URL = os.ExpandEnv(config.Backends[i].URL)
	}

	config.Filename = v.ConfigFileUsed()
	config.v = v

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func legacyBackends(v *viper.Viper) ([]BackendConfig, error) {
	for _, key := range []string{legacyBackendsKey, legacyBackendsSnakeKey} {
		if !v.IsSet(key) {
			continue
		}

		var endpoints []legacyEndpoint
		if err := v.UnmarshalKey(key, &endpoints); err != nil {
			return nil, fmt.Errorf("unable to decode %s: %w", key, err)
		}

		backends := make([]BackendConfig, 0, len(endpoints))
		for _, ep := range endpoints {
			backends = append(backends, BackendConfig{
				Name:          ep.Name,
				URL:           ep.URL,
				APIKey:        ep.APIKey,
				Type:          ep.Type,
				MaxConcurrent: ep.MaxConcurrent,
				Weight:        ep.Weight,
			})
		}
		return backends, nil
	}
	return nil, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it
// during Unmarshal
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("server.host", c.Server.Host)
	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.read_timeout", c.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", c.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", c.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.request_logging", c.Server.RequestLogging)
	v.SetDefault("server.request_limits.max_body_size", c.Server.RequestLimits.MaxBodySize)
	v.SetDefault("server.request_limits.max_header_size", c.Server.RequestLimits.MaxHeaderSize)
	v.SetDefault("server.rate_limits.global_requests_per_minute", c.Server.RateLimits.GlobalRequestsPerMinute)
	v.SetDefault("server.rate_limits.per_ip_requests_per_minute", c.Server.RateLimits.PerIPRequestsPerMinute)
	v.SetDefault("server.rate_limits.burst_size", c.Server.RateLimits.BurstSize)
	v.SetDefault("server.rate_limits.health_requests_per_minute", c.Server.RateLimits.HealthRequestsPerMinute)
	v.SetDefault("server.rate_limits.cleanup_interval", c.Server.RateLimits.CleanupInterval)
	v.SetDefault("server.rate_limits.trust_proxy_headers", c.Server.RateLimits.TrustProxyHeaders)

	v.SetDefault("proxy.dispatch_mode", c.Proxy.DispatchMode)
	v.SetDefault("proxy.load_balancer", c.Proxy.LoadBalancer)
	v.SetDefault("proxy.stream_buffer_size", c.Proxy.StreamBufferSize)
	v.SetDefault("proxy.queue_capacity", c.Proxy.QueueCapacity)
	v.SetDefault("proxy.failure_threshold", c.Proxy.FailureThreshold)
	v.SetDefault("proxy.invoke_timeout", c.Proxy.InvokeTimeout)
	v.SetDefault("proxy.await_timeout", c.Proxy.AwaitTimeout)
	v.SetDefault("proxy.recovery_cooldown", c.Proxy.RecoveryCooldown)
	v.SetDefault("proxy.response_header_timeout", c.Proxy.ResponseHeaderTimeout)
	v.SetDefault("proxy.connection_timeout", c.Proxy.ConnectionTimeout)

	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.theme", c.Logging.Theme)
	v.SetDefault("logging.log_dir", c.Logging.LogDir)
	v.SetDefault("logging.max_size", c.Logging.MaxSize)
	v.SetDefault("logging.max_backups", c.Logging.MaxBackups)
	v.SetDefault("logging.max_age", c.Logging.MaxAge)
	v.SetDefault("logging.file_output", c.Logging.FileOutput)

	v.SetDefault("metrics.enabled", c.Metrics.Enabled)
	v.SetDefault("metrics.path", c.Metrics.Path)
}

// Watch re-reads the config file whenever it changes and hands the freshly
// decoded and validated config to onChange. Backends are fixed for the life
// of the process, so callers only apply what is safe to change live. Returns
// false when there is no file to watch.
func (c *Config) Watch(onChange func(*Config, error)) bool {
	if c.v == nil || c.Filename == "" {
		return false
	}

	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		updated, err := Load(e.Name)
		onChange(updated, err)
	})
	c.v.WatchConfig()
	return true
}

// BackendsChanged reports whether a reloaded config differs in its backend
// list, which needs a restart to take effect
func (c *Config) BackendsChanged(other *Config) bool {
	if other == nil || len(c.Backends) != len(other.Backends) {
		return true
	}
	for i := range c.Backends {
		if c.Backends[i] != other.Backends[i] {
			return true
		}
	}
	return false
}

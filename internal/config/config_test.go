package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/domain"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Zero(t, cfg.Server.WriteTimeout)
	assert.Equal(t, constants.DispatchModeDirect, cfg.Proxy.DispatchMode)
	assert.Equal(t, "least-loaded", cfg.Proxy.LoadBalancer)
	assert.Equal(t, 1000, cfg.Proxy.QueueCapacity)
	assert.Equal(t, 240*time.Second, cfg.Proxy.InvokeTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Proxy.AwaitTimeout)
	assert.Equal(t, 3, cfg.Proxy.FailureThreshold)
	assert.Zero(t, cfg.Proxy.RecoveryCooldown)
	assert.Empty(t, cfg.Backends)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(10*1024*1024), cfg.Server.RequestLimits.MaxBodyBytes)
	assert.Equal(t, 8*1024, cfg.Proxy.StreamBufferBytes)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8088
  request_limits:
    max_body_size: 2MB
proxy:
  dispatch_mode: queued
  load_balancer: weighted-round-robin
  recovery_cooldown: 30s
backends:
  - name: gpt-4o
    url: https://api.openai.com/v1/chat/completions
    api_key: sk-one
    type: remote-cloud
    weight: 3
  - name: llama3
    url: http://localhost:11434
    type: local-hosted
    max_concurrent: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Filename)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, int64(2*1024*1024), cfg.Server.RequestLimits.MaxBodyBytes)
	assert.Equal(t, constants.DispatchModeQueued, cfg.Proxy.DispatchMode)
	assert.Equal(t, 30*time.Second, cfg.Proxy.RecoveryCooldown)
	// untouched keys keep their defaults
	assert.Equal(t, 1000, cfg.Proxy.QueueCapacity)

	require.Len(t, cfg.Backends, 2)
	assert.Equal(t, "sk-one", cfg.Backends[0].APIKey)
	assert.Equal(t, 2, cfg.Backends[1].MaxConcurrent)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8088\n")
	t.Setenv("CORRAL_SERVER_PORT", "9099")
	t.Setenv("CORRAL_PROXY_AWAIT_TIMEOUT", "90s")
	t.Setenv("CORRAL_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9099, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Proxy.AwaitTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ConfigFileFromEnvironment(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 7001\n")
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Server.Port)
}

func TestLoad_LegacyEndpointList(t *testing.T) {
	path := writeConfig(t, `
OpenAIEndpoints:
  - Name: azure-gpt
    Url: https://example.openai.azure.com/openai/deployments/gpt/chat/completions
    ApiKey: ${TEST_AZURE_KEY}
    Type: Azure
    MaxConcurrent: 4
    Weight: 2
  - Name: llama3
    Url: http://localhost:11434
    Type: Ollama
`)
	t.Setenv("TEST_AZURE_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Backends, 2)
	assert.Equal(t, "from-env", cfg.Backends[0].APIKey)
	assert.Equal(t, 4, cfg.Backends[0].MaxConcurrent)

	endpoints, err := cfg.EndpointConfigs()
	require.NoError(t, err)
	require.Len(t, endpoints, 2)

	assert.Equal(t, domain.BackendRemoteCloud, endpoints[0].Type)
	assert.Equal(t, constants.ProtocolAzure, endpoints[0].Protocol)
	assert.Equal(t, 2, endpoints[0].Weight)

	assert.Equal(t, domain.BackendLocalHosted, endpoints[1].Type)
	assert.Equal(t, constants.ProtocolOllama, endpoints[1].Protocol)
	assert.Equal(t, "llama3", endpoints[1].Model)
	assert.Equal(t, 1, endpoints[1].MaxConcurrent)
	assert.Equal(t, 1, endpoints[1].Weight)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not, a, map"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	backend := func() BackendConfig {
		return BackendConfig{Name: "a", URL: "http://localhost:11434", Type: "local-hosted"}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad body size", func(c *Config) { c.Server.RequestLimits.MaxBodySize = "lots" }, "server.request_limits.max_body_size"},
		{"bad cidr", func(c *Config) { c.Server.RateLimits.TrustedProxyCIDRs = []string{"10.0.0.0/99"} }, "server.rate_limits.trusted_proxy_cidrs"},
		{"bad dispatch mode", func(c *Config) { c.Proxy.DispatchMode = "eventually" }, "proxy.dispatch_mode"},
		{"zero queue", func(c *Config) { c.Proxy.QueueCapacity = 0 }, "proxy.queue_capacity"},
		{"zero invoke timeout", func(c *Config) { c.Proxy.InvokeTimeout = 0 }, "proxy.invoke_timeout"},
		{"negative cooldown", func(c *Config) { c.Proxy.RecoveryCooldown = -time.Second }, "proxy.recovery_cooldown"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"unnamed backend", func(c *Config) { b := backend(); b.Name = ""; c.Backends = []BackendConfig{b} }, "backends[0].name"},
		{"unknown type", func(c *Config) { b := backend(); b.Type = "mainframe"; c.Backends = []BackendConfig{b} }, "backends[0].type"},
		{"unknown protocol", func(c *Config) { b := backend(); b.Protocol = "grpc"; c.Backends = []BackendConfig{b} }, "backends[0].protocol"},
		{"relative url", func(c *Config) { b := backend(); b.URL = "localhost:11434"; c.Backends = []BackendConfig{b} }, "backends[0].url"},
		{"duplicate names", func(c *Config) { c.Backends = []BackendConfig{backend(), backend()} }, "backends[1].name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cve *domain.ConfigValidationError
			require.ErrorAs(t, err, &cve)
			assert.Equal(t, tt.field, cve.Field)
		})
	}
}

func TestYAMLRedactsKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backends = []BackendConfig{
		{Name: "cloud", URL: "https://api.example.com", APIKey: "sk-secret", Type: "remote-cloud"},
		{Name: "local", URL: "http://localhost:11434", Type: "local-hosted"},
	}

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "sk-secret")

	var decoded Config
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, redacted, decoded.Backends[0].APIKey)
	assert.Empty(t, decoded.Backends[1].APIKey)
	assert.Equal(t, "sk-secret", cfg.Backends[0].APIKey)
}

func TestBackendsChanged(t *testing.T) {
	a := DefaultConfig()
	a.Backends = []BackendConfig{{Name: "x", URL: "http://a", Type: "local"}}
	b := DefaultConfig()
	b.Backends = []BackendConfig{{Name: "x", URL: "http://a", Type: "local"}}

	assert.False(t, a.BackendsChanged(b))
	b.Backends[0].Weight = 5
	assert.True(t, a.BackendsChanged(b))
	assert.True(t, a.BackendsChanged(nil))
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CORRAL_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("CORRAL_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("CORRAL_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "loaded", os.Getenv("CORRAL_TEST_DOTENV"))
}

func TestWatch_NoFile(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Watch(func(*Config, error) {}))
}

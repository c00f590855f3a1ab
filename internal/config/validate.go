package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/docker/go-units"

	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/domain"
	"github.com/corral-proxy/corral/internal/logger"
	"github.com/corral-proxy/corral/internal/util"
)

// Validate checks bounds, parses human sizes and CIDRs and rejects backend
// lists that can never route. An empty backend list is allowed, every request
// then gets a 503.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return domain.NewConfigValidationError("server.port", c.Server.Port, "must be between 1 and 65535")
	}

	if err := c.parseSizes(); err != nil {
		return err
	}

	cidrs, err := util.ParseTrustedCIDRs(c.Server.RateLimits.TrustedProxyCIDRs)
	if err != nil {
		return domain.NewConfigValidationError("server.rate_limits.trusted_proxy_cidrs", c.Server.RateLimits.TrustedProxyCIDRs, err.Error())
	}
	c.Server.RateLimits.TrustedProxyCIDRsParsed = cidrs

	if err := c.Proxy.validate(); err != nil {
		return err
	}

	if !logger.IsValidLevel(c.Logging.Level) {
		return domain.NewConfigValidationError("logging.level", c.Logging.Level, "must be one of debug, info, warn, error")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return domain.NewConfigValidationError("metrics.path", c.Metrics.Path, "must start with /")
	}

	seen := make(map[string]struct{}, len(c.Backends))
	for i, b := range c.Backends {
		field := fmt.Sprintf("backends[%d]", i)
		if err := b.validate(field); err != nil {
			return err
		}
		key := strings.ToLower(b.Name)
		if _, dup := seen[key]; dup {
			return domain.NewConfigValidationError(field+".name", b.Name, "backend names must be unique")
		}
		seen[key] = struct{}{}
	}

	return nil
}

func (c *Config) parseSizes() error {
	var err error
	limits := &c.Server.RequestLimits

	if limits.MaxBodyBytes, err = parseSize(limits.MaxBodySize); err != nil {
		return domain.NewConfigValidationError("server.request_limits.max_body_size", limits.MaxBodySize, err.Error())
	}
	if limits.MaxHeaderBytes, err = parseSize(limits.MaxHeaderSize); err != nil {
		return domain.NewConfigValidationError("server.request_limits.max_header_size", limits.MaxHeaderSize, err.Error())
	}

	buffer, err := parseSize(c.Proxy.StreamBufferSize)
	if err != nil {
		return domain.NewConfigValidationError("proxy.stream_buffer_size", c.Proxy.StreamBufferSize, err.Error())
	}
	if buffer <= 0 {
		buffer = constants.DefaultStreamBufferSize
	}
	c.Proxy.StreamBufferBytes = int(buffer)
	return nil
}

// parseSize reads "10MB", "512KB" or a plain byte count, empty and "0" mean
// no limit
func parseSize(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return 0, nil
	}
	return units.RAMInBytes(raw)
}

func (p *ProxyConfig) validate() error {
	switch p.DispatchMode {
	case constants.DispatchModeDirect, constants.DispatchModeQueued:
	default:
		return domain.NewConfigValidationError("proxy.dispatch_mode", p.DispatchMode, "must be direct or queued")
	}
	if p.QueueCapacity < 1 {
		return domain.NewConfigValidationError("proxy.queue_capacity", p.QueueCapacity, "must be at least 1")
	}
	if p.FailureThreshold < 1 {
		return domain.NewConfigValidationError("proxy.failure_threshold", p.FailureThreshold, "must be at least 1")
	}
	if p.InvokeTimeout <= 0 {
		return domain.NewConfigValidationError("proxy.invoke_timeout", p.InvokeTimeout, "must be positive")
	}
	if p.AwaitTimeout <= 0 {
		return domain.NewConfigValidationError("proxy.await_timeout", p.AwaitTimeout, "must be positive")
	}
	if p.RecoveryCooldown < 0 {
		return domain.NewConfigValidationError("proxy.recovery_cooldown", p.RecoveryCooldown, "cannot be negative")
	}
	return nil
}

func (b BackendConfig) validate(field string) error {
	if strings.TrimSpace(b.Name) == "" {
		return domain.NewConfigValidationError(field+".name", b.Name, "is required")
	}
	if _, _, err := domain.ParseBackendType(b.Type); err != nil {
		return domain.NewConfigValidationError(field+".type", b.Type, err.Error())
	}
	switch strings.ToLower(b.Protocol) {
	case "", constants.ProtocolOpenAI, constants.ProtocolAzure, constants.ProtocolOllama:
	default:
		return domain.NewConfigValidationError(field+".protocol", b.Protocol, "must be openai, azure or ollama")
	}
	if _, err := parseBackendURL(b.URL); err != nil {
		return domain.NewConfigValidationError(field+".url", b.URL, err.Error())
	}
	return nil
}

func parseBackendURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	return u, nil
}

// EndpointConfigs converts the backend list into the immutable form the
// engine runs on, in configured order. Call after Validate.
func (c *Config) EndpointConfigs() ([]domain.EndpointConfig, error) {
	endpoints := make([]domain.EndpointConfig, 0, len(c.Backends))
	for i, b := range c.Backends {
		backendType, impliedProtocol, err := domain.ParseBackendType(b.Type)
		if err != nil {
			return nil, domain.NewConfigValidationError(fmt.Sprintf("backends[%d].type", i), b.Type, err.Error())
		}
		u, err := parseBackendURL(b.URL)
		if err != nil {
			return nil, domain.NewConfigValidationError(fmt.Sprintf("backends[%d].url", i), b.URL, err.Error())
		}

		protocol := strings.ToLower(b.Protocol)
		if protocol == "" {
			protocol = impliedProtocol
		}

		endpoints = append(endpoints, domain.EndpointConfig{
			Name:          b.Name,
			URL:           u,
			APIKey:        b.APIKey,
			Type:          backendType,
			Protocol:      protocol,
			Model:         b.Model,
			MaxConcurrent: b.MaxConcurrent,
			Weight:        b.Weight,
		}.Normalise())
	}
	return endpoints, nil
}

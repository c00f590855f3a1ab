package config

import (
	"gopkg.in/yaml.v3"
)

const redacted = "********"

// Redacted returns a copy safe to print, api keys are masked
func (c *Config) Redacted() *Config {
	out := *c
	out.v = nil
	out.Backends = make([]BackendConfig, len(c.Backends))
	for i, b := range c.Backends {
		if b.APIKey != "" {
			b.APIKey = redacted
		}
		out.Backends[i] = b
	}
	return &out
}

// YAML renders the effective configuration with secrets redacted
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}

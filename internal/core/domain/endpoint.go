package domain

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/corral-proxy/corral/internal/core/constants"
)

// BackendType says where an inference backend lives, local-only requests
// are restricted to BackendLocalHosted
type BackendType string

const (
	BackendRemoteCloud BackendType = constants.BackendTypeRemoteCloud
	BackendLocalHosted BackendType = constants.BackendTypeLocalHosted
)

func (t BackendType) String() string {
	return string(t)
}

func (t BackendType) IsLocal() bool {
	return t == BackendLocalHosted
}

// EndpointConfig is the immutable description of one configured backend
type EndpointConfig struct {
	URL           *url.URL
	Name          string
	APIKey        string
	Type          BackendType
	Protocol      string
	Model         string
	MaxConcurrent int
	Weight        int
}

// ParseBackendType maps a configured type onto a BackendType and the protocol
// it implies. Legacy spellings (ollama, azure, ...) carry their protocol along,
// the canonical spellings leave protocol empty for the caller to default.
func ParseBackendType(raw string) (BackendType, string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case constants.BackendTypeLocalHosted, constants.TypeAliasLocal:
		return BackendLocalHosted, "", nil
	case constants.BackendTypeRemoteCloud, constants.TypeAliasCloud, constants.TypeAliasRemote:
		return BackendRemoteCloud, "", nil
	case constants.TypeAliasOllama:
		return BackendLocalHosted, constants.ProtocolOllama, nil
	case constants.TypeAliasAzure:
		return BackendRemoteCloud, constants.ProtocolAzure, nil
	case constants.TypeAliasOpenAI:
		return BackendRemoteCloud, constants.ProtocolOpenAI, nil
	default:
		return "", "", fmt.Errorf("unknown backend type %q", raw)
	}
}

// DefaultProtocol is used when neither the type nor the config names one
func DefaultProtocol(t BackendType) string {
	if t.IsLocal() {
		return constants.ProtocolOllama
	}
	return constants.ProtocolOpenAI
}

// Normalise fills in defaults so handles never see a zero bound
func (c EndpointConfig) Normalise() EndpointConfig {
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = constants.DefaultMaxConcurrent
	}
	if c.Weight < 1 {
		c.Weight = constants.DefaultWeight
	}
	if c.Protocol == "" {
		c.Protocol = DefaultProtocol(c.Type)
	}
	if c.Model == "" {
		c.Model = c.Name
	}
	return c
}

func (c EndpointConfig) URLString() string {
	if c.URL == nil {
		return ""
	}
	return c.URL.String()
}

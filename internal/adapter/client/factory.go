package client

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/domain"
	"github.com/corral-proxy/corral/internal/core/ports"
)

type Creator func(cfg domain.EndpointConfig, httpClient *http.Client, headerTimeout time.Duration) ports.BackendClient

// Factory builds a BackendClient for an endpoint from its protocol. Every
// client shares one http.Client so connections are pooled per host.
type Factory struct {
	http          *http.Client
	creators      map[string]Creator
	headerTimeout time.Duration
	mu            sync.RWMutex
}

func NewFactory(httpClient *http.Client, headerTimeout time.Duration) *Factory {
	f := &Factory{
		http:          httpClient,
		creators:      make(map[string]Creator),
		headerTimeout: headerTimeout,
	}

	passthrough := func(cfg domain.EndpointConfig, hc *http.Client, timeout time.Duration) ports.BackendClient {
		return NewPassthroughClient(cfg, hc, timeout)
	}
	f.Register(constants.ProtocolOpenAI, passthrough)
	f.Register(constants.ProtocolAzure, passthrough)
	f.Register(constants.ProtocolOllama, func(cfg domain.EndpointConfig, hc *http.Client, timeout time.Duration) ports.BackendClient {
		return NewOllamaClient(cfg, hc, timeout)
	})

	return f
}

func (f *Factory) Register(protocol string, creator Creator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[protocol] = creator
}

func (f *Factory) Create(cfg domain.EndpointConfig) (ports.BackendClient, error) {
	cfg = cfg.Normalise()

	f.mu.RLock()
	creator, exists := f.creators[cfg.Protocol]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported backend protocol: %s", cfg.Protocol)
	}
	if cfg.URL == nil {
		return nil, fmt.Errorf("backend %s has no url", cfg.Name)
	}

	return creator(cfg, f.http, f.headerTimeout), nil
}

func (f *Factory) GetAvailableProtocols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	protocols := make([]string, 0, len(f.creators))
	for name := range f.creators {
		protocols = append(protocols, name)
	}
	sort.Strings(protocols)
	return protocols
}

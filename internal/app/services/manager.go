package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/corral-proxy/corral/internal/logger"
)

// ManagedService is one piece of the running proxy. Start and Stop must be
// safe to call once each, dependencies are named and resolved by the manager.
type ManagedService interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Dependencies() []string
}

// ServiceManager starts services so that every dependency is running before
// its dependants and stops them in the reverse order. A failed start unwinds
// whatever already came up.
type ServiceManager struct {
	services   map[string]ManagedService
	registry   *ServiceRegistry
	logger     logger.StyledLogger
	startOrder []string
	mu         sync.RWMutex
}

func NewServiceManager(logger logger.StyledLogger) *ServiceManager {
	return &ServiceManager{
		services: make(map[string]ManagedService),
		registry: NewServiceRegistry(),
		logger:   logger,
	}
}

func (sm *ServiceManager) Register(service ManagedService) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	name := service.Name()
	if _, exists := sm.services[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}

	sm.services[name] = service
	sm.registry.Register(name, service)
	sm.logger.Debug("Service registered", "name", name)
	return nil
}

// resolveDependencies is Kahn's algorithm over the dependency graph. Ready
// services are taken in name order so the start order is the same every run.
func (sm *ServiceManager) resolveDependencies() ([]string, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	dependants := make(map[string][]string, len(sm.services))
	pending := make(map[string]int, len(sm.services))

	for name, service := range sm.services {
		deps := service.Dependencies()
		for _, dep := range deps {
			if _, exists := sm.services[dep]; !exists {
				return nil, fmt.Errorf("service %s depends on %s which is not registered", name, dep)
			}
			dependants[dep] = append(dependants[dep], name)
		}
		pending[name] = len(deps)
	}

	ready := make([]string, 0, len(sm.services))
	for name, count := range pending {
		if count == 0 {
			ready = append(ready, name)
		}
	}

	order := make([]string, 0, len(sm.services))
	for len(ready) > 0 {
		sort.Strings(ready)
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		for _, dependant := range dependants[current] {
			pending[dependant]--
			if pending[dependant] == 0 {
				ready = append(ready, dependant)
			}
		}
	}

	if len(order) != len(sm.services) {
		return nil, fmt.Errorf("circular dependency detected")
	}
	return order, nil
}

func (sm *ServiceManager) Start(ctx context.Context) error {
	order, err := sm.resolveDependencies()
	if err != nil {
		return fmt.Errorf("failed to resolve dependencies: %w", err)
	}

	sm.logger.Debug("Starting services", "order", order)

	started := make([]string, 0, len(order))
	for _, name := range order {
		service := sm.services[name]
		sm.logger.Debug("Starting service", "name", name, "dependencies", service.Dependencies())

		if err := service.Start(ctx); err != nil {
			sm.logger.Error("Failed to start service", "name", name, "error", err)
			sm.stopServices(ctx, reversed(started))
			return fmt.Errorf("failed to start service %s: %w", name, err)
		}
		started = append(started, name)
	}

	sm.mu.Lock()
	sm.startOrder = order
	sm.mu.Unlock()
	return nil
}

// Stop shuts dependants down before the services they use. Every service is
// asked to stop even when an earlier one fails, the first error is returned.
func (sm *ServiceManager) Stop(ctx context.Context) error {
	sm.mu.Lock()
	order := reversed(sm.startOrder)
	sm.startOrder = nil
	sm.mu.Unlock()

	sm.logger.Debug("Stopping services", "order", order)
	return sm.stopServices(ctx, order)
}

func (sm *ServiceManager) stopServices(ctx context.Context, names []string) error {
	var firstErr error

	for _, name := range names {
		service, exists := sm.services[name]
		if !exists {
			continue
		}

		if err := service.Stop(ctx); err != nil {
			sm.logger.Error("Failed to stop service", "name", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sm.logger.Debug("Service stopped", "name", name)
	}

	return firstErr
}

func (sm *ServiceManager) Get(name string) (ManagedService, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	service, exists := sm.services[name]
	return service, exists
}

func (sm *ServiceManager) GetRegistry() *ServiceRegistry {
	return sm.registry
}

func reversed(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[len(names)-1-i] = name
	}
	return out
}

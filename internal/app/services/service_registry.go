package services

import (
	"fmt"
)

const (
	ServiceStats    = "stats"
	ServiceMetrics  = "metrics"
	ServiceSecurity = "security"
	ServiceProxy    = "proxy"
	ServiceHTTP     = "http"
)

// ServiceRegistry looks services up by name once registration is done
type ServiceRegistry struct {
	services map[string]ManagedService
}

func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]ManagedService),
	}
}

func (r *ServiceRegistry) Register(name string, service ManagedService) {
	r.services[name] = service
}

func (r *ServiceRegistry) Get(name string) (ManagedService, error) {
	service, exists := r.services[name]
	if !exists {
		return nil, fmt.Errorf("service %s not found", name)
	}
	return service, nil
}

func lookup[T ManagedService](r *ServiceRegistry, name string) (T, error) {
	var zero T
	service, err := r.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("service %s is a %T", name, service)
	}
	return typed, nil
}

func (r *ServiceRegistry) GetStats() (*StatsService, error) {
	return lookup[*StatsService](r, ServiceStats)
}

func (r *ServiceRegistry) GetMetrics() (*MetricsService, error) {
	return lookup[*MetricsService](r, ServiceMetrics)
}

func (r *ServiceRegistry) GetSecurity() (*SecurityService, error) {
	return lookup[*SecurityService](r, ServiceSecurity)
}

func (r *ServiceRegistry) GetProxy() (*ProxyService, error) {
	return lookup[*ProxyService](r, ServiceProxy)
}

func (r *ServiceRegistry) GetHTTP() (*HTTPService, error) {
	return lookup[*HTTPService](r, ServiceHTTP)
}

package router

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/pterm/pterm"

	"github.com/corral-proxy/corral/internal/logger"
)

type RouteInfo struct {
	Handler     http.HandlerFunc
	Description string
	Method      string
	Order       int
	IsProxy     bool
}

// SecurityMiddleware is what the registry needs from the security adapters,
// proxy routes get the full chain and everything else only rate limiting
type SecurityMiddleware interface {
	CreateChainMiddleware() func(http.Handler) http.Handler
	CreateRateLimitMiddleware() func(http.Handler) http.Handler
}

type RouteRegistry struct {
	routes   map[string]RouteInfo
	logger   logger.StyledLogger
	orderSeq int
}

func NewRouteRegistry(logger logger.StyledLogger) *RouteRegistry {
	return &RouteRegistry{
		routes: make(map[string]RouteInfo),
		logger: logger,
	}
}

func (r *RouteRegistry) Register(route string, handler http.HandlerFunc, description string) {
	r.RegisterWithMethod(route, handler, description, http.MethodGet)
}

func (r *RouteRegistry) RegisterWithMethod(route string, handler http.HandlerFunc, description, method string) {
	r.register(route, handler, description, method, false)
}

// RegisterProxyRoute marks a route as carrying proxied traffic, these get
// the body size limit on top of rate limiting
func (r *RouteRegistry) RegisterProxyRoute(route string, handler http.HandlerFunc, description, method string) {
	r.register(route, handler, description, method, true)
}

func (r *RouteRegistry) register(route string, handler http.HandlerFunc, description, method string, isProxy bool) {
	r.routes[route] = RouteInfo{
		Handler:     handler,
		Description: description,
		Method:      method,
		Order:       r.orderSeq,
		IsProxy:     isProxy,
	}
	r.orderSeq++
}

// pattern uses Go 1.22 method matching when a method is set
func pattern(route string, info RouteInfo) string {
	if info.Method == "" {
		return route
	}
	return info.Method + " " + route
}

func (r *RouteRegistry) WireUp(mux *http.ServeMux) {
	for route, info := range r.routes {
		mux.HandleFunc(pattern(route, info), info.Handler)
	}
	r.logRoutesTable()
}

func (r *RouteRegistry) WireUpWithSecurityChain(mux *http.ServeMux, security SecurityMiddleware) {
	if security == nil {
		r.WireUp(mux)
		return
	}

	chain := security.CreateChainMiddleware()
	rateLimit := security.CreateRateLimitMiddleware()

	for route, info := range r.routes {
		var handler http.Handler = info.Handler
		if info.IsProxy {
			handler = chain(handler)
		} else {
			handler = rateLimit(handler)
		}
		mux.Handle(pattern(route, info), handler)
	}
	r.logRoutesTable()
}

func (r *RouteRegistry) GetRoutes() map[string]RouteInfo {
	return r.routes
}

func (r *RouteRegistry) logRoutesTable() {
	if len(r.routes) == 0 {
		return
	}

	type routeEntry struct {
		path   string
		method string
		desc   string
		order  int
	}

	entries := make([]routeEntry, 0, len(r.routes))
	for route, info := range r.routes {
		method := info.Method
		if method == "" {
			method = "*"
		}
		entries = append(entries, routeEntry{
			path:   route,
			method: method,
			desc:   info.Description,
			order:  info.Order,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].order < entries[j].order
	})

	tableData := [][]string{
		{"ROUTE", "METHOD", "DESCRIPTION"},
	}
	for _, entry := range entries {
		tableData = append(tableData, []string{entry.path, entry.method, entry.desc})
	}

	r.logger.InfoWithCount("Registered web routes", len(entries))
	tableString, _ := pterm.DefaultTable.WithHasHeader().WithData(tableData).Srender()
	fmt.Print(tableString)
}

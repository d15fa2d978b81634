package portaros

import (
	"net/http"
	"strings"
	"sync"

	"github.com/julienschmidt/httprouter"
)

var routeMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
}

// RouteTable is the bundled Router implementation. Patterns use httprouter
// syntax: named segments as `:name` and a trailing catch-all as `*name`.
// Registration is expected at startup; Dispatch is safe for concurrent use.
type RouteTable struct {
	mu        sync.RWMutex
	tree      *httprouter.Router
	methods   map[string]struct{}
	fallbacks map[string]any
	disabled  []DispatchTarget
}

// NewRouteTable returns an empty route table.
func NewRouteTable() *RouteTable {
	return &RouteTable{
		tree:      httprouter.New(),
		methods:   map[string]struct{}{},
		fallbacks: map[string]any{},
	}
}

type routeEntry struct {
	target any
	route  *Route
}

// entryCapture recovers the entry bound to a looked-up handle. The handle is
// invoked with it in place of a real response writer; no request is served.
type entryCapture struct {
	http.ResponseWriter
	entry *routeEntry
}

func entryHandle(e *routeEntry) httprouter.Handle {
	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		if c, ok := w.(*entryCapture); ok {
			c.entry = e
		}
	}
}

// Handle registers a target for a method and pattern and returns the route
// template. Conflicting patterns panic, as is usual for startup-time route
// registration.
func (t *RouteTable) Handle(method, path string, target any, middleware ...any) *Route {
	t.mu.Lock()
	defer t.mu.Unlock()

	route := &Route{
		Method:      method,
		Path:        path,
		Middlewares: middleware,
	}
	t.tree.Handle(method, path, entryHandle(&routeEntry{target: target, route: route}))
	t.methods[method] = struct{}{}
	return route
}

// Get registers a GET route.
func (t *RouteTable) Get(path string, target any, middleware ...any) *Route {
	return t.Handle(http.MethodGet, path, target, middleware...)
}

// Post registers a POST route.
func (t *RouteTable) Post(path string, target any, middleware ...any) *Route {
	return t.Handle(http.MethodPost, path, target, middleware...)
}

// Put registers a PUT route.
func (t *RouteTable) Put(path string, target any, middleware ...any) *Route {
	return t.Handle(http.MethodPut, path, target, middleware...)
}

// Patch registers a PATCH route.
func (t *RouteTable) Patch(path string, target any, middleware ...any) *Route {
	return t.Handle(http.MethodPatch, path, target, middleware...)
}

// Delete registers a DELETE route.
func (t *RouteTable) Delete(path string, target any, middleware ...any) *Route {
	return t.Handle(http.MethodDelete, path, target, middleware...)
}

// Head registers a HEAD route.
func (t *RouteTable) Head(path string, target any, middleware ...any) *Route {
	return t.Handle(http.MethodHead, path, target, middleware...)
}

// Options registers an OPTIONS route.
func (t *RouteTable) Options(path string, target any, middleware ...any) *Route {
	return t.Handle(http.MethodOptions, path, target, middleware...)
}

// Any registers the target for every common method and returns the route
// templates in method order.
func (t *RouteTable) Any(path string, target any, middleware ...any) []*Route {
	routes := make([]*Route, 0, len(routeMethods))
	for _, method := range routeMethods {
		routes = append(routes, t.Handle(method, path, target, middleware...))
	}
	return routes
}

// Group returns a registration scope with a shared path prefix and middleware
// applied ahead of each route's own. Groups nest.
func (t *RouteTable) Group(prefix string, middleware ...any) *RouteGroup {
	return &RouteGroup{table: t, prefix: prefix, middleware: middleware}
}

// SetFallback registers the target invoked when neither the table nor
// convention resolution match a path under the given plugin. Use "" for the
// main application.
func (t *RouteTable) SetFallback(plugin string, target any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fallbacks[plugin] = target
}

// DisableDefaultRoute registers a convention-routing disable rule. Empty
// fields act as wildcards, so the zero value disables convention resolution
// entirely and e.g. {App: "admin"} disables it for one app.
func (t *RouteTable) DisableDefaultRoute(rule DispatchTarget) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = append(t.disabled, rule)
}

// Dispatch implements Router.
func (t *RouteTable) Dispatch(method, path string) RouteResolution {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if handle, ps, _ := t.tree.Lookup(method, path); handle != nil {
		capture := &entryCapture{}
		handle(capture, nil, nil)
		entry := capture.entry
		if entry == nil {
			return RouteResolution{Status: RouteNotFound}
		}
		var params []RouteParam
		if len(ps) > 0 {
			params = make([]RouteParam, len(ps))
			for i, p := range ps {
				params[i] = RouteParam{Key: p.Key, Value: p.Value}
			}
		}
		return RouteResolution{
			Status: RouteFound,
			Target: entry.target,
			Params: params,
			Route:  entry.route,
		}
	}

	for other := range t.methods {
		if other == method {
			continue
		}
		if handle, _, _ := t.tree.Lookup(other, path); handle != nil {
			return RouteResolution{Status: RouteMethodNotAllowed}
		}
	}
	return RouteResolution{Status: RouteNotFound}
}

// DefaultRouteDisabled implements Router. A rule matches when each of its
// non-empty fields equals the target's.
func (t *RouteTable) DefaultRouteDisabled(target DispatchTarget) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, rule := range t.disabled {
		if ruleMatches(rule, target) {
			return true
		}
	}
	return false
}

func ruleMatches(rule, target DispatchTarget) bool {
	if rule.Plugin != "" && rule.Plugin != target.Plugin {
		return false
	}
	if rule.App != "" && rule.App != target.App {
		return false
	}
	if rule.Controller != "" && rule.Controller != target.Controller {
		return false
	}
	if rule.Action != "" && rule.Action != target.Action {
		return false
	}
	return true
}

// FallbackFor implements Router.
func (t *RouteTable) FallbackFor(plugin string) any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fallbacks[plugin]
}

// RouteGroup registers routes under a shared prefix with shared middleware.
type RouteGroup struct {
	table      *RouteTable
	prefix     string
	middleware []any
}

// Group returns a nested scope. The child prefix is appended to the parent's
// and the parent's middleware run ahead of the child's.
func (g *RouteGroup) Group(prefix string, middleware ...any) *RouteGroup {
	return &RouteGroup{
		table:      g.table,
		prefix:     joinRoutePath(g.prefix, prefix),
		middleware: concatMiddleware(g.middleware, middleware),
	}
}

// Handle registers a route inside the group.
func (g *RouteGroup) Handle(method, path string, target any, middleware ...any) *Route {
	return g.table.Handle(method, joinRoutePath(g.prefix, path), target, concatMiddleware(g.middleware, middleware)...)
}

// Get registers a GET route inside the group.
func (g *RouteGroup) Get(path string, target any, middleware ...any) *Route {
	return g.Handle(http.MethodGet, path, target, middleware...)
}

// Post registers a POST route inside the group.
func (g *RouteGroup) Post(path string, target any, middleware ...any) *Route {
	return g.Handle(http.MethodPost, path, target, middleware...)
}

// Put registers a PUT route inside the group.
func (g *RouteGroup) Put(path string, target any, middleware ...any) *Route {
	return g.Handle(http.MethodPut, path, target, middleware...)
}

// Patch registers a PATCH route inside the group.
func (g *RouteGroup) Patch(path string, target any, middleware ...any) *Route {
	return g.Handle(http.MethodPatch, path, target, middleware...)
}

// Delete registers a DELETE route inside the group.
func (g *RouteGroup) Delete(path string, target any, middleware ...any) *Route {
	return g.Handle(http.MethodDelete, path, target, middleware...)
}

// Any registers the target for every common method inside the group.
func (g *RouteGroup) Any(path string, target any, middleware ...any) []*Route {
	routes := make([]*Route, 0, len(routeMethods))
	for _, method := range routeMethods {
		routes = append(routes, g.Handle(method, path, target, middleware...))
	}
	return routes
}

func joinRoutePath(prefix, path string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if path == "" {
		if prefix == "" {
			return "/"
		}
		return prefix
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return prefix + path
}

func concatMiddleware(a, b []any) []any {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make([]any, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

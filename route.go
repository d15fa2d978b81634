package portaros

// RouteStatus is the outcome of a router dispatch.
type RouteStatus int

const (
	// RouteFound means the router matched a registered route.
	RouteFound RouteStatus = iota
	// RouteNotFound means no route matched the path. The dispatcher falls
	// back to convention-based controller resolution.
	RouteNotFound
	// RouteMethodNotAllowed means the path is registered but not for the
	// requested method.
	RouteMethodNotAllowed
)

// RouteParam is a single path parameter. Parameters keep their pattern order
// because the argument binder consumes them positionally.
type RouteParam struct {
	Key   string
	Value string
}

// RouteResolution is the result of consulting the router for a method and
// path. Target, Params and Route are only meaningful when Status is
// RouteFound.
type RouteResolution struct {
	Status RouteStatus
	Target any
	Params []RouteParam
	Route  *Route
}

// Route describes a matched static route: its pattern, method, and the
// route-level middleware to wrap around the target. The instance held by the
// router is a template — the dispatcher clones it before binding per-request
// parameters so the template is never mutated.
type Route struct {
	Method      string
	Path        string
	Middlewares []any

	params []RouteParam
}

// Clone returns a copy of the route safe for per-request parameter binding.
// The middleware list is shared (it is immutable after registration); the
// parameter slice is never shared with the template.
func (r *Route) Clone() *Route {
	if r == nil {
		return nil
	}
	clone := *r
	clone.params = nil
	return &clone
}

// SetParams binds per-request path parameters. Call only on clones.
func (r *Route) SetParams(params []RouteParam) {
	r.params = params
}

// Params returns the bound path parameters in pattern order.
func (r *Route) Params() []RouteParam {
	return r.params
}

// Param returns the value of a named path parameter, or "" if absent.
func (r *Route) Param(key string) string {
	for _, p := range r.params {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

// ControllerRef names a registered controller action as a route target, as an
// alternative to referencing a function directly:
//
//	table.Get("/products/:id", portaros.ControllerRef{Controller: "product", Action: "view"})
//
// Plugin and App scope the registry lookup; the zero value means the default
// scope. The referenced name must match the registered name exactly — the
// convention-suffix rules of the resolver do not apply here.
type ControllerRef struct {
	Plugin     string
	App        string
	Controller string
	Action     string
}

// DispatchTarget identifies resolved handling code. The router consults it
// when deciding whether convention-resolved targets are disabled.
type DispatchTarget struct {
	Plugin     string
	App        string
	Controller string
	Action     string
}

// Router is the routing collaborator the dispatcher consults during
// handshakes. The dispatch core treats path matching as a black box; the
// bundled RouteTable implementation is one realisation, and hosts may supply
// their own.
type Router interface {
	// Dispatch resolves a method and path into a route resolution.
	Dispatch(method, path string) RouteResolution

	// DefaultRouteDisabled reports whether convention-based resolution is
	// disabled for the given target. Disabled targets fall through to the
	// plugin fallback handler or a 404.
	DefaultRouteDisabled(target DispatchTarget) bool

	// FallbackFor returns the fallback target for a plugin, or nil if none
	// is configured. The fallback is invoked when neither the route table
	// nor convention resolution produce a target.
	FallbackFor(plugin string) any
}

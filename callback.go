package portaros

import (
	"errors"
	"net/http"
)

// Build failures the dispatcher maps to protocol responses rather than the
// exception converter.
var (
	errBuildMethodNotAllowed = errors.New("portaros: method not allowed")
	errBuildNotFound         = errors.New("portaros: no target for path")
)

// callback is a compiled dispatch unit: the middleware-wrapped invocable
// plus the identity stamped onto each request. Immutable once built; safe to
// invoke concurrently as long as the underlying controller honors its Reuse
// contract.
type callback struct {
	invoke Next
	target DispatchTarget
	route  *Route
	args   []string
}

// run stamps the compiled identity onto the request and invokes the chain.
func (cb *callback) run(req *Request) *Response {
	req.Plugin = cb.target.Plugin
	req.App = cb.target.App
	req.Controller = cb.target.Controller
	req.Action = cb.target.Action
	req.Route = cb.route
	req.Args = cb.args
	return cb.invoke(req)
}

// buildCallback resolves a method and path into a compiled callback. It
// returns errBuildMethodNotAllowed or errBuildNotFound when routing fails,
// any other error being a build defect for the converter (bad middleware,
// unbindable target).
func (a *App) buildCallback(method, path string) (*callback, error) {
	plugin := PluginFromPath(path)

	// Explicit routes match with hyphens intact; only convention resolution
	// and the cache key use the hyphen-stripped normalized form.
	res := a.router.Dispatch(method, routePath(path))
	switch res.Status {
	case RouteMethodNotAllowed:
		return nil, errBuildMethodNotAllowed
	case RouteFound:
		return a.compileRoute(plugin, res)
	}

	resolution, err := a.resolver.Resolve(path)
	if err != nil {
		return nil, errBuildNotFound
	}
	if a.router.DefaultRouteDisabled(resolution.Target) {
		return nil, errBuildNotFound
	}
	return a.compile(resolution.Target, nil, resolution.Args, nil, resolution.Binding)
}

// compileRoute builds from a route-table match: clone the template, bind the
// matched parameters, and feed their values to the target as explicit
// arguments.
func (a *App) compileRoute(plugin string, res RouteResolution) (*callback, error) {
	identity := DispatchTarget{Plugin: plugin}
	bindTarget := res.Target
	if ref, ok := res.Target.(ControllerRef); ok {
		binding, err := a.registry.Lookup(ref.Plugin, ref.App, ref.Controller, ref.Action)
		if err != nil {
			return nil, err
		}
		identity.App = binding.Target.App
		identity.Controller = binding.Target.Controller
		identity.Action = binding.Target.Action
		bindTarget = binding
	}

	var route *Route
	var routeMW []any
	args := make([]string, 0, len(res.Params))
	if res.Route != nil {
		route = res.Route.Clone()
		route.SetParams(res.Params)
		routeMW = res.Route.Middlewares
	}
	for _, p := range res.Params {
		args = append(args, p.Value)
	}
	return a.compile(identity, route, args, routeMW, bindTarget)
}

// compile binds the target and folds the middleware chain: route middleware
// first, then the scoped global middleware, so route layers sit outermost.
func (a *App) compile(identity DispatchTarget, route *Route, args []string, routeMW []any, bindTarget any) (*callback, error) {
	bound, err := a.binder.Bind(bindTarget)
	if err != nil {
		return nil, err
	}
	entries := concatMiddleware(routeMW, a.middlewareFor(identity))
	invoke, err := a.chain.Build(entries, bound)
	if err != nil {
		return nil, err
	}
	return &callback{invoke: invoke, target: identity, route: route, args: args}, nil
}

// cachedCallback returns the compiled callback for a method and path,
// building and caching it on first use. Concurrent first uses may both
// build; both writers produce equivalent callbacks so last-writer-wins is
// harmless.
func (a *App) cachedCallback(method, path string) (*callback, error) {
	key := callbackKey(method, path)
	if cb, ok := a.callbacks.get(key); ok {
		return cb, nil
	}
	cb, err := a.buildCallback(method, path)
	if err != nil {
		return nil, err
	}
	a.callbacks.set(key, cb)
	return cb, nil
}

func callbackKey(method, path string) string {
	return method + " " + NormalizePath(path)
}

func statusResponse(status int) *Response {
	return NewResponse(status, http.StatusText(status))
}

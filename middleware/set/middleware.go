package set

import "github.com/portaros/portaros"

// Middleware creates middleware that attaches a value to every request
// passing through it. The value is captured once when the middleware is
// created and shared across dispatches, so it should be immutable or safe
// for concurrent reads. Attached values live for the duration of a single
// dispatch.
//
// Example:
//
//	app.Use(set.Middleware("apiVersion", "v1"))
//
//	// in a handler:
//	version := req.Get("apiVersion").(string) // "v1"
//
// See also: setfn.Middleware for values generated per dispatch.
func Middleware[V any](key string, value V) portaros.MiddlewareFunc {
	return func(req *portaros.Request, next portaros.Next) *portaros.Response {
		req.Set(key, value)
		return next(req)
	}
}

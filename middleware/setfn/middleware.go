package setfn

import "github.com/portaros/portaros"

// Middleware creates middleware that attaches a freshly generated value to
// every request passing through it. The valueFn function runs once per
// dispatch. Attached values live for the duration of a single dispatch.
//
// Use this for per-request values such as timestamps or correlation ids.
//
// Example:
//
//	app.Use(setfn.Middleware("receivedAt", time.Now))
//
//	// in a handler:
//	received := req.Get("receivedAt").(time.Time)
//
// See also: set.Middleware for constant values.
func Middleware[V any](key string, valueFn func() V) portaros.MiddlewareFunc {
	return func(req *portaros.Request, next portaros.Next) *portaros.Response {
		req.Set(key, valueFn())
		return next(req)
	}
}
